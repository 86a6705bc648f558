// Package guideline holds the design-guideline document model shared by the
// store, the search engine, and the offline knowledge index.
package guideline

import "strings"

// Category classifies a guideline document.
type Category string

// Known categories. The set is extensible: unknown values pass through the
// store untouched, they just never match the element lookup table.
const (
	CategoryAccessibility Category = "accessibility"
	CategoryUsability     Category = "usability"
	CategoryVisualDesign  Category = "visual_design"
)

// AllCategories returns the default category filter.
func AllCategories() []Category {
	return []Category{CategoryAccessibility, CategoryUsability, CategoryVisualDesign}
}

// Document is a persisted guideline. Embedding, when present, must match the
// dimension of the configured embedding provider; documents embedded under a
// different provider must not be compared.
type Document struct {
	ID          int64
	Content     string
	Source      string
	Category    Category
	Subcategory string
	Keywords    []string
	Embedding   []float32
	Metadata    map[string]any
}

// elementCategories maps a detected UI element label to the guideline
// categories most likely to mention it.
var elementCategories = map[string][]Category{
	"button":       {CategoryAccessibility, CategoryUsability},
	"form":         {CategoryAccessibility, CategoryUsability},
	"navigation":   {CategoryUsability, CategoryVisualDesign},
	"text":         {CategoryAccessibility, CategoryVisualDesign},
	"image":        {CategoryAccessibility, CategoryVisualDesign},
	"color":        {CategoryAccessibility, CategoryVisualDesign},
	"layout":       {CategoryVisualDesign, CategoryUsability},
	"touch_target": {CategoryAccessibility, CategoryUsability},
	"contrast":     {CategoryAccessibility},
	"typography":   {CategoryAccessibility, CategoryVisualDesign},
}

// CategoriesForElements unions the categories mapped from each detected
// element label. Labels with no mapping are ignored; if nothing matches, the
// full category set is returned so recall never collapses to zero.
func CategoriesForElements(elements []string) []Category {
	seen := make(map[Category]struct{})
	var cats []Category
	for _, el := range elements {
		for _, c := range elementCategories[strings.ToLower(el)] {
			if _, ok := seen[c]; !ok {
				seen[c] = struct{}{}
				cats = append(cats, c)
			}
		}
	}
	if len(cats) == 0 {
		return AllCategories()
	}
	return cats
}

// CategoryStrings converts a category list for use in wire formats and
// store queries.
func CategoryStrings(cats []Category) []string {
	out := make([]string, len(cats))
	for i, c := range cats {
		out[i] = string(c)
	}
	return out
}
