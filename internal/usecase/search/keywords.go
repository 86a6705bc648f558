package search

import "strings"

// keywordVocabulary is the fixed list of design terms mined from prompts.
var keywordVocabulary = []string{
	"アクセシビリティ", "ユーザビリティ", "デザイン", "レイアウト",
	"色", "コントラスト", "フォント", "ボタン", "ナビゲーション",
	"accessibility", "usability", "design", "layout", "color", "contrast",
}

// ExtractKeywords pulls known design terms out of a prompt and unions them
// with the detected element labels, preserving first-seen order.
func ExtractKeywords(prompt string, elements []string) []string {
	words := strings.Fields(strings.ToLower(prompt))

	keywords := make([]string, 0, len(elements)+4)
	seen := make(map[string]struct{})
	add := func(k string) {
		if _, ok := seen[k]; ok {
			return
		}
		seen[k] = struct{}{}
		keywords = append(keywords, k)
	}

	for _, el := range elements {
		add(el)
	}
	for _, kw := range keywordVocabulary {
		lower := strings.ToLower(kw)
		for _, w := range words {
			if strings.Contains(w, lower) {
				add(kw)
				break
			}
		}
	}
	return keywords
}
