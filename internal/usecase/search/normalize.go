package search

import (
	"sort"
	"strings"

	"github.com/uxlens/uxlens/internal/domain/search"
)

// resultsFromRows maps store rows to canonical results, carrying the scores
// the store computed.
func resultsFromRows(rows []search.Row) []search.Result {
	results := make([]search.Result, len(rows))
	for i, row := range rows {
		results[i] = search.Result{
			ID:              row.Document.ID,
			Content:         row.Document.Content,
			Source:          row.Document.Source,
			Category:        string(row.Document.Category),
			SimilarityScore: row.Similarity,
			TextRank:        row.TextRank,
			CombinedScore:   row.Combined,
			Metadata:        row.Document.Metadata,
		}
	}
	return results
}

// positionalResults scores results by their position alone: the i-th result
// gets 1 - i*decay as both text rank and combined score. Used by the
// text-only tier, where the store returns an ordered list without scores.
func positionalResults(results []search.Result, decay float64) []search.Result {
	for i := range results {
		score := 1 - float64(i)*decay
		if score < 0 {
			score = 0
		}
		results[i].SimilarityScore = 0
		results[i].TextRank = score
		results[i].CombinedScore = score
	}
	return results
}

// categoryResults scores category-listing rows: flat 0.5 text rank, combined
// decaying from 0.5 by position.
func categoryResults(rows []search.Row, decay float64) []search.Result {
	results := resultsFromRows(rows)
	for i := range results {
		combined := 0.5 - float64(i)*decay
		if combined < 0 {
			combined = 0
		}
		results[i].SimilarityScore = 0
		results[i].TextRank = 0.5
		results[i].CombinedScore = combined
	}
	return results
}

// dedupeFirst removes duplicate IDs keeping the first occurrence.
func dedupeFirst(results []search.Result) []search.Result {
	seen := make(map[int64]struct{}, len(results))
	out := results[:0]
	for _, r := range results {
		if _, ok := seen[r.ID]; ok {
			continue
		}
		seen[r.ID] = struct{}{}
		out = append(out, r)
	}
	return out
}

// dedupeMax removes duplicate IDs keeping the first occurrence but raising
// its combined score to the maximum seen across duplicates.
func dedupeMax(results []search.Result) []search.Result {
	index := make(map[int64]int, len(results))
	var out []search.Result
	for _, r := range results {
		if at, ok := index[r.ID]; ok {
			if r.CombinedScore > out[at].CombinedScore {
				out[at].CombinedScore = r.CombinedScore
			}
			continue
		}
		index[r.ID] = len(out)
		out = append(out, r)
	}
	return out
}

// sortByCombined orders results by combined score descending, stably.
func sortByCombined(results []search.Result) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].CombinedScore > results[j].CombinedScore
	})
}

// staticGuidelines is the last-resort result set, served when every store
// and offline path has failed. Negative IDs mark results that never came
// from a persisted document.
func staticGuidelines() []search.Result {
	return []search.Result{
		{
			ID:              -1,
			Content:         "アクセシビリティを確保するため、すべてのインタラクティブ要素は最小44px×44pxのタッチターゲットサイズを持つ必要があります。これにより、モバイルデバイスでの操作性が向上します。",
			Source:          "WCAG 2.1",
			Category:        "accessibility",
			SimilarityScore: 0.8,
			TextRank:        0.7,
			CombinedScore:   0.75,
			Metadata:        map[string]any{"level": "AA", "priority": "high"},
		},
		{
			ID:              -2,
			Content:         "色のコントラスト比は、通常テキストで4.5:1以上、大きなテキスト（18pt以上）で3:1以上を確保する必要があります。これにより視覚的なアクセシビリティが向上します。",
			Source:          "WCAG 2.1",
			Category:        "accessibility",
			SimilarityScore: 0.7,
			TextRank:        0.8,
			CombinedScore:   0.73,
			Metadata:        map[string]any{"level": "AA", "priority": "high"},
		},
		{
			ID:              -3,
			Content:         "ユーザーインターフェースの一貫性を保つため、同じ機能を持つ要素は統一されたデザインパターンを使用してください。ナビゲーション、ボタン、フォーム要素などで一貫性を保ちます。",
			Source:          "Apple HIG",
			Category:        "usability",
			SimilarityScore: 0.6,
			TextRank:        0.7,
			CombinedScore:   0.63,
			Metadata:        map[string]any{"platform": "universal", "priority": "medium"},
		},
		{
			ID:              -4,
			Content:         "レイアウトでは視覚的階層を明確にし、重要な情報から順番に配置してください。大きなサイズ、高いコントラスト、上部配置により重要度を表現します。",
			Source:          "Refactoring UI",
			Category:        "visual_design",
			SimilarityScore: 0.5,
			TextRank:        0.6,
			CombinedScore:   0.53,
			Metadata:        map[string]any{"topic": "layout", "priority": "medium"},
		},
	}
}

// staticFallback filters the built-in guidelines by rough prompt relevance.
// When nothing matches it still returns the first three, so the caller is
// never left empty-handed.
func staticFallback(prompt string) []search.Result {
	all := staticGuidelines()
	p := strings.ToLower(prompt)

	var relevant []search.Result
	for _, g := range all {
		content := strings.ToLower(g.Content)
		switch {
		case strings.Contains(p, strings.ToLower(g.Category)),
			strings.Contains(content, "アクセシビリティ") && strings.Contains(p, "アクセシ"),
			strings.Contains(content, "ユーザビリティ") && strings.Contains(p, "使いやす"),
			strings.Contains(content, "デザイン") && strings.Contains(p, "デザイン"),
			strings.Contains(p, "改善"),
			strings.Contains(p, "問題"):
			relevant = append(relevant, g)
		}
	}
	if len(relevant) == 0 {
		return all[:3]
	}
	return relevant
}
