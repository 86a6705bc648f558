package search

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/uxlens/uxlens/internal/domain"
	"github.com/uxlens/uxlens/internal/domain/capability"
	"github.com/uxlens/uxlens/internal/domain/guideline"
	"github.com/uxlens/uxlens/internal/domain/search"
)

func newEngine(store Store, embed Embedder, offline OfflineIndex) (*Engine, *capability.Cache) {
	caps := capability.NewCache()
	return NewEngine(store, embed, offline, caps, Tuning{}), caps
}

func TestSearch_EmptyQuery(t *testing.T) {
	e, _ := newEngine(&stubStore{}, &stubEmbedder{vec: []float32{0.1}}, &stubOffline{})

	if _, err := e.Search(context.Background(), "   ", search.Options{}); !errors.Is(err, domain.ErrEmptyQuery) {
		t.Fatalf("expected ErrEmptyQuery, got %v", err)
	}
	if _, err := e.MultiModal(context.Background(), "", nil, nil, search.Options{}); !errors.Is(err, domain.ErrEmptyQuery) {
		t.Fatalf("MultiModal: expected ErrEmptyQuery, got %v", err)
	}
}

func TestSearch_HybridHit(t *testing.T) {
	store := &stubStore{hybridRows: []search.Row{
		{Document: doc(1, "コントラスト比は4.5:1以上", guideline.CategoryAccessibility),
			Similarity: 0.9, TextRank: 0.8, Combined: 0.87},
	}}
	e, _ := newEngine(store, &stubEmbedder{vec: []float32{0.1}}, &stubOffline{})

	resp, err := e.Search(context.Background(), "コントラストを改善したい", search.Options{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if resp.TotalResults != 1 || len(resp.Results) != 1 {
		t.Fatalf("expected 1 result, got %+v", resp)
	}
	r := resp.Results[0]
	if r.ID != 1 || r.CombinedScore != 0.87 || r.SimilarityScore != 0.9 {
		t.Errorf("scores not carried: %+v", r)
	}
	if store.called("hybrid_category") || store.called("fulltext") {
		t.Error("lower tiers should not run after a hybrid hit")
	}
	if resp.Query != "コントラストを改善したい" {
		t.Errorf("query echoed wrong: %q", resp.Query)
	}
}

func TestSearch_EmbeddingFailureFallsToTextOnly(t *testing.T) {
	store := &stubStore{
		ftRows:  []search.Row{row(1, 0), row(2, 0)},
		subRows: []search.Row{row(2, 0), row(3, 0)},
	}
	e, _ := newEngine(store, &stubEmbedder{err: domain.ErrEmbeddingProviderError}, &stubOffline{})

	resp, err := e.Search(context.Background(), "ボタン", search.Options{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	// Duplicate ID 2 collapses to the first occurrence.
	if len(resp.Results) != 3 {
		t.Fatalf("expected 3 deduplicated results, got %d", len(resp.Results))
	}
	for i, want := range []float64{1.0, 0.9, 0.8} {
		got := resp.Results[i].CombinedScore
		if diff := got - want; diff > 1e-9 || diff < -1e-9 {
			t.Errorf("result %d positional score = %f, want %f", i, got, want)
		}
		if resp.Results[i].SimilarityScore != 0 {
			t.Errorf("text-only result %d should have zero similarity", i)
		}
	}
}

func TestSearch_CapabilityMissingSkipsTierNextTime(t *testing.T) {
	capErr := fmt.Errorf("%w: unknown command", domain.ErrCapabilityNotFound)
	store := &stubStore{
		hybridErr:     capErr,
		hybridCatRows: []search.Row{row(10, 0.8)},
	}
	e, caps := newEngine(store, &stubEmbedder{vec: []float32{0.1}}, &stubOffline{})

	if _, err := e.Search(context.Background(), "ナビゲーション", search.Options{}); err != nil {
		t.Fatalf("first search: %v", err)
	}
	if !caps.Missing(capability.HybridSearch) {
		t.Fatal("hybrid capability should be marked missing")
	}

	store.mu.Lock()
	store.calls = nil
	store.mu.Unlock()

	if _, err := e.Search(context.Background(), "ナビゲーション", search.Options{}); err != nil {
		t.Fatalf("second search: %v", err)
	}
	if store.called("hybrid") {
		t.Error("missing capability should be skipped without a store round trip")
	}
	if !store.called("hybrid_category") {
		t.Error("next tier should still run")
	}
}

func TestSearch_EmptyTierStepsDown(t *testing.T) {
	store := &stubStore{
		// hybrid and hybrid_category return nothing, text tiers too;
		// category listing finally has rows.
		listRows: map[guideline.Category][]search.Row{
			guideline.CategoryAccessibility: {row(5, 0)},
		},
	}
	e, _ := newEngine(store, &stubEmbedder{vec: []float32{0.1}}, &stubOffline{})

	resp, err := e.Search(context.Background(), "zzz", search.Options{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(resp.Results) != 1 || resp.Results[0].ID != 5 {
		t.Fatalf("expected category listing result, got %+v", resp.Results)
	}
	if resp.Results[0].TextRank != 0.5 || resp.Results[0].CombinedScore != 0.5 {
		t.Errorf("category listing scoring wrong: %+v", resp.Results[0])
	}
}

func TestSearch_StoreDownUsesOfflineIndex(t *testing.T) {
	offline := &stubOffline{results: []search.Result{
		{ID: 1001, Content: "コントラスト比を確保", Source: "WCAG 2.2",
			Category: "accessibility", CombinedScore: 0.9},
	}}
	e, _ := newEngine(
		&downStore{err: errors.New("connection refused")},
		&stubEmbedder{vec: []float32{0.1}},
		offline,
	)

	resp, err := e.Search(context.Background(), "コントラスト", search.Options{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(resp.Results) != 1 || resp.Results[0].ID != 1001 {
		t.Fatalf("expected offline result, got %+v", resp.Results)
	}
}

func TestSearch_EverythingDownServesStaticFallback(t *testing.T) {
	e, _ := newEngine(
		&downStore{err: errors.New("connection refused")},
		&stubEmbedder{err: errors.New("quota exceeded")},
		&stubOffline{}, // empty offline corpus
	)

	resp, err := e.Search(context.Background(), "改善したい", search.Options{})
	if err != nil {
		t.Fatalf("Search must not fail: %v", err)
	}
	if len(resp.Results) == 0 {
		t.Fatal("static fallback must be non-empty")
	}
	for _, r := range resp.Results {
		if r.ID >= 0 {
			t.Errorf("static fallback IDs are negative, got %d", r.ID)
		}
	}
	for i := 1; i < len(resp.Results); i++ {
		if resp.Results[i].CombinedScore > resp.Results[i-1].CombinedScore {
			t.Errorf("static results not sorted at %d", i)
		}
	}
}

func TestSearch_Idempotent(t *testing.T) {
	store := &stubStore{hybridRows: []search.Row{row(1, 0.9), row(2, 0.8)}}
	e, _ := newEngine(store, &stubEmbedder{vec: []float32{0.1}}, &stubOffline{})

	first, err := e.Search(context.Background(), "フォーム", search.Options{})
	if err != nil {
		t.Fatal(err)
	}
	second, err := e.Search(context.Background(), "フォーム", search.Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(first.Results) != len(second.Results) {
		t.Fatalf("result counts differ: %d vs %d", len(first.Results), len(second.Results))
	}
	for i := range first.Results {
		if first.Results[i].ID != second.Results[i].ID {
			t.Errorf("result %d differs between identical calls", i)
		}
	}
}

func TestSearchByElements_CategoryRestriction(t *testing.T) {
	capErr := fmt.Errorf("%w: unknown command", domain.ErrCapabilityNotFound)
	store := &stubStore{
		hybridErr:     capErr, // force the category tier so we can observe the filter
		hybridCatRows: []search.Row{row(3, 0.7)},
	}
	e, _ := newEngine(store, &stubEmbedder{vec: []float32{0.1}}, &stubOffline{})

	_, err := e.SearchByElements(
		context.Background(), []string{"contrast"}, "コントラストが低い", search.Options{},
	)
	if err != nil {
		t.Fatalf("SearchByElements: %v", err)
	}
	if len(store.gotCategories) != 1 || store.gotCategories[0] != guideline.CategoryAccessibility {
		t.Errorf("contrast element should restrict to accessibility, got %v", store.gotCategories)
	}
}

func TestSearchByElements_UnknownElementsDefaultToAll(t *testing.T) {
	capErr := fmt.Errorf("%w: unknown command", domain.ErrCapabilityNotFound)
	store := &stubStore{hybridErr: capErr, hybridCatRows: []search.Row{row(3, 0.7)}}
	e, _ := newEngine(store, &stubEmbedder{vec: []float32{0.1}}, &stubOffline{})

	_, err := e.SearchByElements(
		context.Background(), []string{"hologram"}, "未知の要素", search.Options{},
	)
	if err != nil {
		t.Fatal(err)
	}
	if len(store.gotCategories) != 3 {
		t.Errorf("unknown elements should search all categories, got %v", store.gotCategories)
	}
}

func TestSearchByElements_TextOnlyForwardsCategoryFilter(t *testing.T) {
	store := &stubStore{
		subRows: []search.Row{{Document: doc(42, "ボタンの説明", guideline.CategoryAccessibility)}},
	}
	e, _ := newEngine(store, &stubEmbedder{err: errors.New("embedding down")}, &stubOffline{})

	resp, err := e.SearchByElements(
		context.Background(), []string{"button"}, "ボタン", search.Options{},
	)
	if err != nil {
		t.Fatalf("SearchByElements: %v", err)
	}
	if len(resp.Results) != 1 || resp.Results[0].ID != 42 {
		t.Fatalf("unexpected results: %+v", resp.Results)
	}

	want := []guideline.Category{guideline.CategoryAccessibility, guideline.CategoryUsability}
	for leg, got := range map[string][]guideline.Category{
		"full_text": store.ftCategories,
		"substring": store.subCategories,
	} {
		if len(got) != len(want) {
			t.Fatalf("%s leg allow-list = %v, want %v", leg, got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("%s leg allow-list[%d] = %v, want %v", leg, i, got[i], want[i])
			}
		}
	}
}

func TestSearch_TextOnlyLegFailureDoesNotFailTier(t *testing.T) {
	store := &stubStore{
		ftErr:   errors.New("transient"),
		subRows: []search.Row{{Document: doc(7, "コントラスト比4.5:1", guideline.CategoryAccessibility)}},
	}
	e, _ := newEngine(store, &stubEmbedder{err: errors.New("embedding down")}, &stubOffline{})

	resp, err := e.Search(context.Background(), "コントラスト", search.Options{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(resp.Results) != 1 || resp.Results[0].ID != 7 {
		t.Fatalf("substring leg should survive a full-text failure, got %+v", resp.Results)
	}
}

func TestSearchByKeywords(t *testing.T) {
	store := &stubStore{kwRows: []search.Row{
		{Document: doc(1, "コントラスト", guideline.CategoryAccessibility), Combined: 3},
		{Document: doc(2, "ボタン", guideline.CategoryUsability), Combined: 1},
	}}
	e, _ := newEngine(store, &stubEmbedder{vec: []float32{0.1}}, &stubOffline{})

	results, err := e.SearchByKeywords(context.Background(), []string{"コントラスト", "ボタン"}, 10)
	if err != nil {
		t.Fatalf("SearchByKeywords: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].CombinedScore != 3 || results[0].SimilarityScore != 0 || results[0].TextRank != 0 {
		t.Errorf("keyword scoring wrong: %+v", results[0])
	}

	empty, err := e.SearchByKeywords(context.Background(), nil, 10)
	if err != nil || empty != nil {
		t.Errorf("empty keyword list should be a no-op, got %v, %v", empty, err)
	}
}

func TestMultiModal_MergesWithMaxScore(t *testing.T) {
	store := &stubStore{
		hybridRows: []search.Row{
			{Document: doc(1, "a", guideline.CategoryAccessibility), Combined: 0.6},
			{Document: doc(2, "b", guideline.CategoryUsability), Combined: 0.5},
		},
		kwRows: []search.Row{
			{Document: doc(1, "a", guideline.CategoryAccessibility), Combined: 0.9},
			{Document: doc(3, "c", guideline.CategoryVisualDesign), Combined: 0.4},
		},
	}
	e, _ := newEngine(store, &stubEmbedder{vec: []float32{0.1}}, &stubOffline{})

	resp, err := e.MultiModal(
		context.Background(), "改善提案", []string{"button"}, []string{"ボタン"}, search.Options{},
	)
	if err != nil {
		t.Fatalf("MultiModal: %v", err)
	}
	if resp.TotalResults != 3 {
		t.Fatalf("expected 3 unique results, got %d", resp.TotalResults)
	}
	if resp.Results[0].ID != 1 || resp.Results[0].CombinedScore != 0.9 {
		t.Errorf("duplicate should keep max score and lead: %+v", resp.Results[0])
	}
	for i := 1; i < len(resp.Results); i++ {
		if resp.Results[i].CombinedScore > resp.Results[i-1].CombinedScore {
			t.Errorf("results not sorted at %d", i)
		}
	}
}

func TestMultiModal_KeywordBranchFailureTolerated(t *testing.T) {
	store := &stubStore{
		hybridRows: []search.Row{row(1, 0.8)},
		kwErr:      errors.New("connection refused"),
	}
	e, _ := newEngine(store, &stubEmbedder{vec: []float32{0.1}}, &stubOffline{})

	resp, err := e.MultiModal(
		context.Background(), "改善", nil, []string{"ボタン"}, search.Options{},
	)
	if err != nil {
		t.Fatalf("MultiModal: %v", err)
	}
	if len(resp.Results) != 1 || resp.Results[0].ID != 1 {
		t.Fatalf("hybrid branch alone should carry the response, got %+v", resp.Results)
	}
}

func TestMultiModal_AllBranchesEmptyUsesFinalFallback(t *testing.T) {
	offline := &stubOffline{results: []search.Result{
		{ID: 1001, Content: "オフライン", Source: "Apple HIG",
			Category: "usability", CombinedScore: 0.6},
	}}
	e, _ := newEngine(
		&downStore{err: errors.New("connection refused")},
		&stubEmbedder{vec: []float32{0.1}},
		offline,
	)

	resp, err := e.MultiModal(context.Background(), "改善", nil, nil, search.Options{})
	if err != nil {
		t.Fatalf("MultiModal: %v", err)
	}
	if len(resp.Results) != 1 || resp.Results[0].ID != 1001 {
		t.Fatalf("expected offline fallback, got %+v", resp.Results)
	}
}

func TestMultiModal_FinalFallbackHonorsCallerCategories(t *testing.T) {
	offline := &stubOffline{results: []search.Result{
		{ID: 1002, Content: "余白", Source: "Refactoring UI",
			Category: "visual_design", CombinedScore: 0.5},
	}}
	e, _ := newEngine(
		&downStore{err: errors.New("connection refused")},
		&stubEmbedder{vec: []float32{0.1}},
		offline,
	)

	_, err := e.MultiModal(context.Background(), "余白を整えたい", []string{"button"}, nil,
		search.Options{Categories: []guideline.Category{guideline.CategoryVisualDesign}})
	if err != nil {
		t.Fatalf("MultiModal: %v", err)
	}
	if len(offline.gotCategories) != 1 || offline.gotCategories[0] != guideline.CategoryVisualDesign {
		t.Errorf("fallback should keep the caller's categories, got %v", offline.gotCategories)
	}
}

func TestMultiModal_FinalFallbackDerivesCategoriesFromElements(t *testing.T) {
	offline := &stubOffline{results: []search.Result{
		{ID: 1003, Content: "ラベル", Source: "WCAG 2.2",
			Category: "accessibility", CombinedScore: 0.5},
	}}
	e, _ := newEngine(
		&downStore{err: errors.New("connection refused")},
		&stubEmbedder{vec: []float32{0.1}},
		offline,
	)

	_, err := e.MultiModal(context.Background(), "フォームを見て", []string{"form"}, nil, search.Options{})
	if err != nil {
		t.Fatalf("MultiModal: %v", err)
	}
	want := []guideline.Category{guideline.CategoryAccessibility, guideline.CategoryUsability}
	if len(offline.gotCategories) != len(want) {
		t.Fatalf("fallback categories = %v, want %v", offline.gotCategories, want)
	}
	for i := range want {
		if offline.gotCategories[i] != want[i] {
			t.Errorf("fallback categories[%d] = %v, want %v", i, offline.gotCategories[i], want[i])
		}
	}
}

func TestRelevantGuidelines(t *testing.T) {
	var rows []search.Row
	for i := int64(1); i <= 10; i++ {
		rows = append(rows, row(i, 1.0-float64(i)*0.05))
	}
	store := &stubStore{hybridRows: rows[:3], kwRows: rows[3:]}
	e, _ := newEngine(store, &stubEmbedder{vec: []float32{0.1}}, &stubOffline{})

	results, err := e.RelevantGuidelines(
		context.Background(), []string{"button"}, "ボタンのコントラストを改善",
	)
	if err != nil {
		t.Fatalf("RelevantGuidelines: %v", err)
	}
	if len(results) == 0 || len(results) > relevantGuidelineLimit {
		t.Fatalf("expected 1..%d results, got %d", relevantGuidelineLimit, len(results))
	}
	if len(store.gotKeywords) == 0 {
		t.Error("extracted keywords should reach the keyword branch")
	}
}

func TestSearch_LimitApplied(t *testing.T) {
	var rows []search.Row
	for i := int64(1); i <= 8; i++ {
		rows = append(rows, row(i, 0))
	}
	store := &stubStore{ftRows: rows}
	e, _ := newEngine(store, &stubEmbedder{err: errors.New("down")}, &stubOffline{})

	resp, err := e.Search(context.Background(), "レイアウト", search.Options{Limit: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Results) != 2 {
		t.Fatalf("limit 2 not applied, got %d", len(resp.Results))
	}
}
