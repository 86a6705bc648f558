package search

import (
	"context"

	"github.com/uxlens/uxlens/internal/domain"
	"github.com/uxlens/uxlens/internal/domain/guideline"
	"github.com/uxlens/uxlens/internal/domain/search"
)

// Store is the guideline repository surface the engine depends on. Tiered
// operations report missing server features as domain.ErrCapabilityNotFound.
type Store interface {
	VectorHybridSearch(
		ctx context.Context, query string, vector []float32,
		opts search.Options, alpha float64,
	) ([]search.Row, error)
	VectorHybridSearchByCategory(
		ctx context.Context, query string, vector []float32,
		categories []guideline.Category, opts search.Options, alpha float64,
	) ([]search.Row, error)
	FullTextSearch(ctx context.Context, query string, opts search.Options) ([]search.Row, error)
	SubstringSearch(
		ctx context.Context, query string, categories []guideline.Category, limit int,
	) ([]search.Row, error)
	KeywordSearch(ctx context.Context, keywords []string, limit int) ([]search.Row, error)
	ListByCategory(
		ctx context.Context, category guideline.Category, limit int,
	) ([]search.Row, error)
}

// Embedder turns query text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// OfflineIndex is the bundled in-memory corpus consulted when the store is
// unreachable. Its methods never fail.
type OfflineIndex interface {
	Search(
		query string, elements []string, categories []guideline.Category, limit int,
	) []search.Result
	ByCategory(category guideline.Category, limit int) []search.Result
}
