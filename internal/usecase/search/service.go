// Package search implements the tiered retrieval engine: a fixed cascade of
// search strategies from vector-hybrid down to a built-in static result set,
// stepping down a tier whenever the current one errors or comes back empty.
package search

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/uxlens/uxlens/internal/domain"
	"github.com/uxlens/uxlens/internal/domain/capability"
	"github.com/uxlens/uxlens/internal/domain/guideline"
	"github.com/uxlens/uxlens/internal/domain/search"
	"github.com/uxlens/uxlens/internal/logger"
	"github.com/uxlens/uxlens/internal/metrics"
)

// Tuning carries the blend and scoring knobs.
type Tuning struct {
	Alpha       float64       // weight of vector similarity in the hybrid blend
	Decay       float64       // positional score decay for unscored tiers
	CallTimeout time.Duration // per-tier store call budget
}

func (t Tuning) withDefaults() Tuning {
	if t.Alpha <= 0 {
		t.Alpha = search.DefaultAlpha
	}
	if t.Decay <= 0 {
		t.Decay = search.DefaultDecay
	}
	if t.CallTimeout <= 0 {
		t.CallTimeout = 12 * time.Second
	}
	return t
}

// Engine runs the search tier cascade.
type Engine struct {
	store   Store
	embed   Embedder
	offline OfflineIndex
	caps    *capability.Cache
	tuning  Tuning
}

// NewEngine creates a search engine.
func NewEngine(
	store Store, embed Embedder, offline OfflineIndex,
	caps *capability.Cache, tuning Tuning,
) *Engine {
	if caps == nil {
		caps = capability.NewCache()
	}
	return &Engine{
		store:   store,
		embed:   embed,
		offline: offline,
		caps:    caps,
		tuning:  tuning.withDefaults(),
	}
}

// tierSet selects which slice of the cascade to run.
type tierSet int

const (
	tiersAll        tierSet = iota // hybrid through static fallback
	tiersStoreOnly                 // hybrid through category listing, no offline/static
	tiersFinal                     // category listing, offline index, static fallback
)

// tier is one cascade step. An empty capability name means the step is
// always attempted.
type tier struct {
	name string
	cap  capability.Name
	run  func(ctx context.Context) ([]search.Result, error)
}

// Search runs the full cascade for a free-text query.
func (e *Engine) Search(
	ctx context.Context, query string, opts search.Options,
) (search.Response, error) {
	return e.timed(ctx, "search", query, nil, opts, tiersAll)
}

// SearchByElements derives a category allow-list from detected UI element
// labels, widens the query with them, and runs the full cascade.
func (e *Engine) SearchByElements(
	ctx context.Context, elements []string, prompt string, opts search.Options,
) (search.Response, error) {
	opts.Categories = guideline.CategoriesForElements(elements)
	enhanced := strings.TrimSpace(prompt + " " + strings.Join(elements, " "))
	return e.timed(ctx, "elements", enhanced, elements, opts, tiersAll)
}

func (e *Engine) timed(
	ctx context.Context, entry, query string, elements []string,
	opts search.Options, set tierSet,
) (search.Response, error) {
	if strings.TrimSpace(query) == "" {
		return search.Response{}, domain.ErrEmptyQuery
	}
	start := time.Now()
	defer func() {
		metrics.SearchDuration.WithLabelValues(entry).Observe(time.Since(start).Seconds())
	}()

	opts = opts.WithDefaults()
	results := e.cascade(ctx, query, elements, opts, set)
	return search.Response{
		Results:        results,
		Query:          query,
		TotalResults:   len(results),
		ProcessingTime: time.Since(start).Milliseconds(),
	}, nil
}

// cascade walks the selected tiers in order and returns the first tier's
// results that are non-empty. A tier that errors or returns nothing hands
// over to the next one.
func (e *Engine) cascade(
	ctx context.Context, query string, elements []string,
	opts search.Options, set tierSet,
) []search.Result {
	log := logger.FromContext(ctx)

	for _, t := range e.tiers(query, elements, opts, set) {
		if t.cap != "" && e.caps.Missing(t.cap) {
			metrics.SearchTierTotal.WithLabelValues(t.name, "skipped").Inc()
			continue
		}
		if t.cap != "" {
			e.caps.RecordAttempt(t.cap)
		}

		tctx, cancel := context.WithTimeout(ctx, e.tuning.CallTimeout)
		results, err := t.run(tctx)
		cancel()

		switch {
		case err != nil:
			if errors.Is(err, domain.ErrCapabilityNotFound) && t.cap != "" {
				e.caps.MarkMissing(t.cap)
			}
			metrics.SearchTierTotal.WithLabelValues(t.name, "error").Inc()
			log.Warn("search tier failed",
				zap.String("tier", t.name),
				zap.Error(err))
		case len(results) == 0:
			metrics.SearchTierTotal.WithLabelValues(t.name, "empty").Inc()
		default:
			metrics.SearchTierTotal.WithLabelValues(t.name, "hit").Inc()
			log.Debug("search tier hit",
				zap.String("tier", t.name),
				zap.Int("results", len(results)))
			return results
		}
	}
	return nil
}

// tiers assembles the cascade for one call. The vector tiers are included
// only when the query embedding succeeds; an embedding failure degrades to
// text search rather than failing the request.
func (e *Engine) tiers(
	query string, elements []string, opts search.Options, set tierSet,
) []tier {
	var list []tier

	if set != tiersFinal {
		list = append(list, e.vectorTiers(query, opts)...)
		list = append(list,
			tier{name: "text_only", run: func(ctx context.Context) ([]search.Result, error) {
				return e.textOnly(ctx, query, opts)
			}},
		)
	}

	list = append(list, tier{
		name: "category_listing",
		run: func(ctx context.Context) ([]search.Result, error) {
			return e.categoryListing(ctx, opts)
		},
	})

	if set == tiersStoreOnly {
		return list
	}

	return append(list,
		tier{name: "offline_index", run: func(context.Context) ([]search.Result, error) {
			return e.offline.Search(query, elements, opts.Categories, opts.Limit), nil
		}},
		tier{name: "static_fallback", run: func(context.Context) ([]search.Result, error) {
			return staticFallback(query), nil
		}},
	)
}

// vectorTiers embeds the query once and shares the vector between both
// hybrid tiers. When embedding fails no vector tier is offered at all.
func (e *Engine) vectorTiers(query string, opts search.Options) []tier {
	var (
		vec      []float32
		embedErr error
		embedded bool
	)
	embedOnce := func(ctx context.Context) ([]float32, error) {
		if embedded {
			return vec, embedErr
		}
		embedded = true
		res, err := e.embed.Embed(ctx, query)
		if err != nil {
			embedErr = err
			return nil, err
		}
		vec = res.Embedding
		return vec, nil
	}

	return []tier{
		{
			name: "hybrid",
			cap:  capability.HybridSearch,
			run: func(ctx context.Context) ([]search.Result, error) {
				v, err := embedOnce(ctx)
				if err != nil {
					return nil, err
				}
				rows, err := e.store.VectorHybridSearch(ctx, query, v, opts, e.tuning.Alpha)
				if err != nil {
					return nil, err
				}
				return resultsFromRows(rows), nil
			},
		},
		{
			name: "hybrid_category",
			cap:  capability.HybridSearchByCategory,
			run: func(ctx context.Context) ([]search.Result, error) {
				v, err := embedOnce(ctx)
				if err != nil {
					return nil, err
				}
				rows, err := e.store.VectorHybridSearchByCategory(
					ctx, query, v, opts.Categories, opts, e.tuning.Alpha,
				)
				if err != nil {
					return nil, err
				}
				return resultsFromRows(rows), nil
			},
		},
	}
}

// textOnly runs a full-text query and a substring scan concurrently, merges
// them deduplicating by ID with the first occurrence winning, and scores
// results by position. Both legs honor the category allow-list; the
// substring leg fetches half the limit as a supplement. A failure in one leg
// never cancels the other; the tier errors only when both legs fail.
func (e *Engine) textOnly(
	ctx context.Context, query string, opts search.Options,
) ([]search.Result, error) {
	var (
		ftRows, subRows []search.Row
		ftErr, subErr   error
	)

	var g errgroup.Group
	ftWanted := !e.caps.Missing(capability.FullTextSearch)
	if ftWanted {
		e.caps.RecordAttempt(capability.FullTextSearch)
		g.Go(func() error {
			ftRows, ftErr = e.store.FullTextSearch(ctx, query, opts)
			if errors.Is(ftErr, domain.ErrCapabilityNotFound) {
				e.caps.MarkMissing(capability.FullTextSearch)
			}
			return nil
		})
	}
	g.Go(func() error {
		subRows, subErr = e.store.SubstringSearch(ctx, query, opts.Categories, (opts.Limit+1)/2)
		return nil
	})
	_ = g.Wait()

	if ftWanted && ftErr != nil && subErr != nil {
		return nil, subErr
	}

	var rows []search.Row
	if ftErr == nil {
		rows = append(rows, ftRows...)
	}
	if subErr == nil {
		rows = append(rows, subRows...)
	}

	results := dedupeFirst(resultsFromRows(rows))
	if len(results) > opts.Limit {
		results = results[:opts.Limit]
	}
	return positionalResults(results, e.tuning.Decay), nil
}

// categoryListing pulls documents per category in allow-list order until the
// limit is reached.
func (e *Engine) categoryListing(
	ctx context.Context, opts search.Options,
) ([]search.Result, error) {
	var rows []search.Row
	for _, cat := range opts.Categories {
		if len(rows) >= opts.Limit {
			break
		}
		batch, err := e.store.ListByCategory(ctx, cat, opts.Limit-len(rows))
		if err != nil {
			return nil, err
		}
		rows = append(rows, batch...)
	}
	return categoryResults(rows, e.tuning.Decay), nil
}

// SearchByKeywords matches documents against a keyword list. The combined
// score carries the raw match score; similarity and text rank stay zero.
func (e *Engine) SearchByKeywords(
	ctx context.Context, keywords []string, limit int,
) ([]search.Result, error) {
	if len(keywords) == 0 {
		return nil, nil
	}
	start := time.Now()
	defer func() {
		metrics.SearchDuration.WithLabelValues("keywords").Observe(time.Since(start).Seconds())
	}()

	e.caps.RecordAttempt(capability.KeywordSearch)
	tctx, cancel := context.WithTimeout(ctx, e.tuning.CallTimeout)
	defer cancel()

	rows, err := e.store.KeywordSearch(tctx, keywords, limit)
	if err != nil {
		if errors.Is(err, domain.ErrCapabilityNotFound) {
			e.caps.MarkMissing(capability.KeywordSearch)
		}
		return nil, err
	}
	return resultsFromRows(rows), nil
}

// MultiModal combines element-aware hybrid search with keyword search. The
// two branches run concurrently and tolerate each other's failures; results
// merge by ID keeping the highest combined score. When both branches come
// back empty the final fallback tiers take over.
func (e *Engine) MultiModal(
	ctx context.Context, query string, elements, keywords []string, opts search.Options,
) (search.Response, error) {
	if strings.TrimSpace(query) == "" {
		return search.Response{}, domain.ErrEmptyQuery
	}
	start := time.Now()
	defer func() {
		metrics.SearchDuration.WithLabelValues("multimodal").Observe(time.Since(start).Seconds())
	}()

	callerCategories := opts.Categories
	opts = opts.WithDefaults()
	log := logger.FromContext(ctx)

	var (
		hybridResults  []search.Result
		keywordResults []search.Result
	)
	branchOpts := opts
	branchOpts.Limit = 3
	branchCategories := guideline.CategoriesForElements(elements)
	enhanced := strings.TrimSpace(query + " " + strings.Join(elements, " "))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		bOpts := branchOpts
		bOpts.Categories = branchCategories
		hybridResults = e.cascade(gctx, enhanced, elements, bOpts, tiersStoreOnly)
		return nil
	})
	g.Go(func() error {
		results, err := e.SearchByKeywords(gctx, keywords, 3)
		if err != nil {
			log.Warn("keyword branch failed", zap.Error(err))
			return nil
		}
		keywordResults = results
		return nil
	})
	_ = g.Wait()

	merged := dedupeMax(append(hybridResults, keywordResults...))
	if len(merged) == 0 {
		// Explicit caller categories win over the element-derived list.
		fallbackOpts := opts
		fallbackOpts.Categories = branchCategories
		if len(callerCategories) > 0 {
			fallbackOpts.Categories = callerCategories
		}
		merged = e.cascade(ctx, enhanced, elements, fallbackOpts, tiersFinal)
	}
	sortByCombined(merged)

	total := len(merged)
	if len(merged) > opts.Limit {
		merged = merged[:opts.Limit]
	}
	return search.Response{
		Results:        merged,
		Query:          query,
		TotalResults:   total,
		ProcessingTime: time.Since(start).Milliseconds(),
	}, nil
}

// relevantGuidelineLimit and relevantGuidelineThreshold tune the analysis
// retrieval call: a wider net with a softer similarity bar.
const (
	relevantGuidelineLimit     = 8
	relevantGuidelineThreshold = 0.65
)

// RelevantGuidelines retrieves the guideline set backing one analysis run:
// keywords extracted from the prompt plus the detected element labels fed
// into a multi-modal search.
func (e *Engine) RelevantGuidelines(
	ctx context.Context, elements []string, prompt string,
) ([]search.Result, error) {
	keywords := ExtractKeywords(prompt, elements)
	resp, err := e.MultiModal(ctx, prompt, elements, keywords, search.Options{
		Limit:     relevantGuidelineLimit,
		Threshold: relevantGuidelineThreshold,
	})
	if err != nil {
		return nil, err
	}
	return resp.Results, nil
}
