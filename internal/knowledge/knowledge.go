// Package knowledge is the in-memory fallback corpus: bundled guideline
// snapshots with their own keyword scoring, used when the guideline store is
// entirely unreachable. It has no external dependency and never fails.
package knowledge

import (
	"embed"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/uxlens/uxlens/internal/domain/guideline"
	"github.com/uxlens/uxlens/internal/domain/search"
)

//go:embed data/*.json
var snapshotFS embed.FS

// scoreCeiling normalizes raw keyword scores into the 0-1 range. Empirical:
// category hit (10) + one content hit (5) + one element hit (8) ≈ 20.
const scoreCeiling = 20.0

// ID offsets keep offline results distinguishable from persisted documents.
const (
	searchIDOffset   = 1000
	categoryIDOffset = 2000
)

type snapshot struct {
	Source     string `json:"source"`
	Guidelines []item `json:"guidelines"`
}

type item struct {
	Content     string         `json:"content"`
	Category    string         `json:"category"`
	Subcategory string         `json:"subcategory"`
	Keywords    []string       `json:"keywords"`
	Metadata    map[string]any `json:"metadata"`
}

// entry is one indexed guideline with precomputed lowercase fields.
type entry struct {
	content      string
	contentLower string
	source       string
	category     guideline.Category
	subcategory  string
	keywords     []string // lowercased
	metadata     map[string]any
}

// Index is the offline knowledge base, built once at process start.
type Index struct {
	entries []entry
}

// Load parses the bundled snapshots into an index.
func Load() (*Index, error) {
	files, err := snapshotFS.ReadDir("data")
	if err != nil {
		return nil, fmt.Errorf("read snapshot dir: %w", err)
	}

	idx := &Index{}
	for _, f := range files {
		raw, err := snapshotFS.ReadFile("data/" + f.Name())
		if err != nil {
			return nil, fmt.Errorf("read snapshot %s: %w", f.Name(), err)
		}
		var snap snapshot
		if err := json.Unmarshal(raw, &snap); err != nil {
			return nil, fmt.Errorf("parse snapshot %s: %w", f.Name(), err)
		}
		for _, it := range snap.Guidelines {
			if it.Content == "" {
				continue
			}
			kw := make([]string, len(it.Keywords))
			for i, k := range it.Keywords {
				kw[i] = strings.ToLower(k)
			}
			idx.entries = append(idx.entries, entry{
				content:      it.Content,
				contentLower: strings.ToLower(it.Content),
				source:       snap.Source,
				category:     guideline.Category(it.Category),
				subcategory:  it.Subcategory,
				keywords:     kw,
				metadata:     it.Metadata,
			})
		}
	}
	return idx, nil
}

// MustLoad loads the bundled snapshots or panics. The snapshots ship inside
// the binary, so a failure here is a build defect, not a runtime condition.
func MustLoad() *Index {
	idx, err := Load()
	if err != nil {
		panic(err)
	}
	return idx
}

// Search scores the corpus against a query, detected element labels and a
// category allow-list. Pure function of its inputs and the corpus.
func (idx *Index) Search(
	query string, elements []string, categories []guideline.Category, limit int,
) []search.Result {
	if limit <= 0 {
		limit = search.DefaultLimit
	}
	if len(categories) == 0 {
		categories = guideline.AllCategories()
	}

	allowed := make(map[guideline.Category]struct{}, len(categories))
	for _, c := range categories {
		allowed[c] = struct{}{}
	}

	queryTokens := strings.Fields(strings.ToLower(query))
	elementTokens := make([]string, len(elements))
	for i, el := range elements {
		elementTokens[i] = strings.ToLower(el)
	}

	type scored struct {
		e     entry
		score float64
	}
	var hits []scored
	for _, e := range idx.entries {
		s := scoreEntry(e, query, queryTokens, elementTokens, allowed)
		if s > 0 {
			hits = append(hits, scored{e: e, score: s})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })
	if len(hits) > limit {
		hits = hits[:limit]
	}

	results := make([]search.Result, len(hits))
	for i, h := range hits {
		norm := h.score / scoreCeiling
		if norm > 1 {
			norm = 1
		}
		results[i] = search.Result{
			ID:              int64(i + searchIDOffset),
			Content:         h.e.content,
			Source:          h.e.source,
			Category:        string(h.e.category),
			SimilarityScore: norm,
			TextRank:        norm,
			CombinedScore:   norm,
			Metadata:        h.e.metadata,
		}
	}
	return results
}

// scoreEntry implements the offline scoring rules:
// +10 category in allow-list, +5 per query token in content, +3 per query
// token in the keyword set, +8 per element label in content, +15 for
// source/language coincidences.
func scoreEntry(
	e entry, query string, queryTokens, elementTokens []string,
	allowed map[guideline.Category]struct{},
) float64 {
	var score float64

	if _, ok := allowed[e.category]; ok {
		score += 10
	}

	for _, tok := range append(queryTokens, elementTokens...) {
		if strings.Contains(e.contentLower, tok) {
			score += 5
		}
		for _, k := range e.keywords {
			if strings.Contains(k, tok) {
				score += 3
				break
			}
		}
	}

	for _, el := range elementTokens {
		if strings.Contains(e.contentLower, el) {
			score += 8
		}
	}

	// Topic/source coincidences: accessibility-themed queries boost WCAG,
	// usability Apple HIG, design Refactoring UI.
	if strings.Contains(query, "アクセシビリティ") && e.source == "WCAG 2.2" {
		score += 15
	}
	if strings.Contains(query, "ユーザビリティ") && e.source == "Apple HIG" {
		score += 15
	}
	if strings.Contains(query, "デザイン") && e.source == "Refactoring UI" {
		score += 15
	}

	return score
}

// ByCategory lists up to limit guidelines of one category with a flat score.
func (idx *Index) ByCategory(category guideline.Category, limit int) []search.Result {
	if limit <= 0 {
		limit = 10
	}
	var results []search.Result
	for _, e := range idx.entries {
		if e.category != category {
			continue
		}
		results = append(results, search.Result{
			ID:              int64(len(results) + categoryIDOffset),
			Content:         e.content,
			Source:          e.source,
			Category:        string(e.category),
			SimilarityScore: 0.8,
			TextRank:        0.8,
			CombinedScore:   0.8,
			Metadata:        e.metadata,
		})
		if len(results) == limit {
			break
		}
	}
	return results
}

// Documents returns the corpus as store documents, IDs assigned in load
// order starting from 1. Embeddings are left empty; ingestion fills them.
func (idx *Index) Documents() []guideline.Document {
	docs := make([]guideline.Document, len(idx.entries))
	for i, e := range idx.entries {
		docs[i] = guideline.Document{
			ID:          int64(i + 1),
			Content:     e.content,
			Source:      e.source,
			Category:    e.category,
			Subcategory: e.subcategory,
			Keywords:    e.keywords,
			Metadata:    e.metadata,
		}
	}
	return docs
}

// Stats describes the loaded corpus.
type Stats struct {
	TotalItems    int            `json:"totalItems"`
	SourceCount   map[string]int `json:"sourceCount"`
	CategoryCount map[string]int `json:"categoryCount"`
	Available     bool           `json:"isAvailable"`
}

// Stats returns corpus totals per source and category.
func (idx *Index) Stats() Stats {
	s := Stats{
		TotalItems:    len(idx.entries),
		SourceCount:   make(map[string]int),
		CategoryCount: make(map[string]int),
		Available:     len(idx.entries) > 0,
	}
	for _, e := range idx.entries {
		s.SourceCount[e.source]++
		s.CategoryCount[string(e.category)]++
	}
	return s
}
