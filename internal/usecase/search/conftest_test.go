package search

import (
	"context"
	"sync"

	"github.com/uxlens/uxlens/internal/domain"
	"github.com/uxlens/uxlens/internal/domain/guideline"
	"github.com/uxlens/uxlens/internal/domain/search"
)

// stubStore is a scriptable Store. Each operation returns its configured
// rows/error and records the call.
type stubStore struct {
	mu    sync.Mutex
	calls []string

	hybridRows []search.Row
	hybridErr  error

	hybridCatRows []search.Row
	hybridCatErr  error
	gotCategories []guideline.Category

	ftRows        []search.Row
	ftErr         error
	ftCategories  []guideline.Category

	subRows       []search.Row
	subErr        error
	subCategories []guideline.Category

	kwRows      []search.Row
	kwErr       error
	gotKeywords []string

	listRows map[guideline.Category][]search.Row
	listErr  error
}

func (s *stubStore) record(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, name)
}

func (s *stubStore) called(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.calls {
		if c == name {
			return true
		}
	}
	return false
}

func (s *stubStore) VectorHybridSearch(
	_ context.Context, _ string, _ []float32, _ search.Options, _ float64,
) ([]search.Row, error) {
	s.record("hybrid")
	return s.hybridRows, s.hybridErr
}

func (s *stubStore) VectorHybridSearchByCategory(
	_ context.Context, _ string, _ []float32,
	categories []guideline.Category, _ search.Options, _ float64,
) ([]search.Row, error) {
	s.record("hybrid_category")
	s.gotCategories = categories
	return s.hybridCatRows, s.hybridCatErr
}

func (s *stubStore) FullTextSearch(
	_ context.Context, _ string, opts search.Options,
) ([]search.Row, error) {
	s.record("fulltext")
	s.mu.Lock()
	s.ftCategories = opts.Categories
	s.mu.Unlock()
	return s.ftRows, s.ftErr
}

func (s *stubStore) SubstringSearch(
	_ context.Context, _ string, categories []guideline.Category, _ int,
) ([]search.Row, error) {
	s.record("substring")
	s.mu.Lock()
	s.subCategories = categories
	s.mu.Unlock()
	return s.subRows, s.subErr
}

func (s *stubStore) KeywordSearch(
	_ context.Context, keywords []string, _ int,
) ([]search.Row, error) {
	s.record("keywords")
	s.gotKeywords = keywords
	return s.kwRows, s.kwErr
}

func (s *stubStore) ListByCategory(
	_ context.Context, category guideline.Category, _ int,
) ([]search.Row, error) {
	s.record("list")
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.listRows[category], nil
}

// downStore fails every operation with the same error.
type downStore struct{ err error }

func (d *downStore) VectorHybridSearch(
	context.Context, string, []float32, search.Options, float64,
) ([]search.Row, error) {
	return nil, d.err
}

func (d *downStore) VectorHybridSearchByCategory(
	context.Context, string, []float32, []guideline.Category, search.Options, float64,
) ([]search.Row, error) {
	return nil, d.err
}

func (d *downStore) FullTextSearch(
	context.Context, string, search.Options,
) ([]search.Row, error) {
	return nil, d.err
}

func (d *downStore) SubstringSearch(
	context.Context, string, []guideline.Category, int,
) ([]search.Row, error) {
	return nil, d.err
}

func (d *downStore) KeywordSearch(context.Context, []string, int) ([]search.Row, error) {
	return nil, d.err
}

func (d *downStore) ListByCategory(
	context.Context, guideline.Category, int,
) ([]search.Row, error) {
	return nil, d.err
}

type stubEmbedder struct {
	vec []float32
	err error
}

func (e *stubEmbedder) Embed(context.Context, string) (domain.EmbeddingResult, error) {
	if e.err != nil {
		return domain.EmbeddingResult{}, e.err
	}
	return domain.EmbeddingResult{Embedding: e.vec, TotalTokens: 7}, nil
}

type stubOffline struct {
	results       []search.Result
	byCat         []search.Result
	gotCategories []guideline.Category
}

func (o *stubOffline) Search(
	_ string, _ []string, categories []guideline.Category, _ int,
) []search.Result {
	o.gotCategories = categories
	return o.results
}

func (o *stubOffline) ByCategory(guideline.Category, int) []search.Result {
	return o.byCat
}

func doc(id int64, content string, cat guideline.Category) guideline.Document {
	return guideline.Document{ID: id, Content: content, Source: "WCAG 2.2", Category: cat}
}

func row(id int64, combined float64) search.Row {
	return search.Row{
		Document: doc(id, "ガイドライン", guideline.CategoryAccessibility),
		Combined: combined,
	}
}
