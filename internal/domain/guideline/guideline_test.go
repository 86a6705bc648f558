package guideline

import "testing"

func TestCategoriesForElements_Union(t *testing.T) {
	cats := CategoriesForElements([]string{"button", "color"})

	want := map[Category]bool{
		CategoryAccessibility: true,
		CategoryUsability:     true,
		CategoryVisualDesign:  true,
	}
	if len(cats) != len(want) {
		t.Fatalf("expected %d categories, got %v", len(want), cats)
	}
	for _, c := range cats {
		if !want[c] {
			t.Errorf("unexpected category %q", c)
		}
	}
}

func TestCategoriesForElements_SingleElement(t *testing.T) {
	cats := CategoriesForElements([]string{"button"})

	if len(cats) != 2 {
		t.Fatalf("expected 2 categories for button, got %v", cats)
	}
	for _, c := range cats {
		if c == CategoryVisualDesign {
			t.Error("button should not map to visual_design")
		}
	}
}

func TestCategoriesForElements_CaseInsensitive(t *testing.T) {
	cats := CategoriesForElements([]string{"Contrast"})
	if len(cats) != 1 || cats[0] != CategoryAccessibility {
		t.Errorf("expected [accessibility], got %v", cats)
	}
}

func TestCategoriesForElements_UnknownDefaultsToAll(t *testing.T) {
	cats := CategoriesForElements([]string{"carousel", "hero"})
	if len(cats) != 3 {
		t.Errorf("unknown elements should default to all categories, got %v", cats)
	}

	cats = CategoriesForElements(nil)
	if len(cats) != 3 {
		t.Errorf("empty element list should default to all categories, got %v", cats)
	}
}
