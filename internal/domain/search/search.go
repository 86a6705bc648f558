// Package search defines the canonical search result shape and request
// options shared by every retrieval tier.
package search

import (
	"github.com/uxlens/uxlens/internal/domain/guideline"
)

// Default tuning values. Alpha and the positional decay are heuristics, not
// correctness properties; they are configurable through Tuning.
const (
	DefaultThreshold = 0.7
	DefaultLimit     = 5
	DefaultAlpha     = 0.7
	DefaultDecay     = 0.1
)

// Result is the canonical search hit produced by the normalizer.
// CombinedScore is the sole sort key; the component scores are informational.
type Result struct {
	ID              int64          `json:"id"`
	Content         string         `json:"content"`
	Source          string         `json:"source"`
	Category        string         `json:"category"`
	SimilarityScore float64        `json:"similarity_score"`
	TextRank        float64        `json:"text_rank"`
	CombinedScore   float64        `json:"combined_score"`
	Metadata        map[string]any `json:"metadata,omitempty"`
}

// Row is a raw guideline store hit before normalization. Similarity,
// TextRank and Combined are zero for tiers that do not compute them.
type Row struct {
	Document   guideline.Document
	Similarity float64
	TextRank   float64
	Combined   float64
}

// Options are the caller-supplied search parameters.
type Options struct {
	Categories []guideline.Category
	Sources    []string
	Threshold  float64
	Limit      int
}

// WithDefaults fills unset options.
func (o Options) WithDefaults() Options {
	if len(o.Categories) == 0 {
		o.Categories = guideline.AllCategories()
	}
	if o.Threshold <= 0 {
		o.Threshold = DefaultThreshold
	}
	if o.Limit <= 0 {
		o.Limit = DefaultLimit
	}
	return o
}

// Response is the engine's answer to one search call.
type Response struct {
	Results        []Result `json:"results"`
	Query          string   `json:"query"`
	TotalResults   int      `json:"totalResults"`
	ProcessingTime int64    `json:"processingTime"` // milliseconds
}
