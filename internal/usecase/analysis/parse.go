package analysis

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/uxlens/uxlens/internal/domain/analysis"
)

// Section and field patterns for the Markdown skeleton the model fills in.
var (
	currentSectionRe = regexp.MustCompile(`(?s)## 🔍 現状分析\s*(.*?)(?:\n##|\z)`)
	improvementsRe   = regexp.MustCompile(`(?s)## 💡 改善提案.*?(###.*?)(?:## 💻|## 📊|\z)`)
	impactSectionRe  = regexp.MustCompile(`(?s)## 📊 改善効果予測\s*(.*?)(?:\n##|\z)`)

	priorityHighRe   = regexp.MustCompile(`(?s)### 🔴 高優先度\s*(.*?)(?:### 🟡|### 🟢|\z)`)
	priorityMediumRe = regexp.MustCompile(`(?s)### 🟡 中優先度\s*(.*?)(?:### 🔴|### 🟢|\z)`)
	priorityLowRe    = regexp.MustCompile(`(?s)### 🟢 低優先度\s*(.*?)(?:### 🔴|### 🟡|\z)`)

	boldRe           = regexp.MustCompile(`\*\*([^*]+)\*\*`)
	problemRe        = regexp.MustCompile(`[・-]\s*\*\*問題\*\*[：:]\s*([^\n]+)`)
	solutionRe       = regexp.MustCompile(`[・-]\s*\*\*改善案\*\*[：:]\s*([^\n]+)`)
	implementationRe = regexp.MustCompile("[・-]\\s*\\*\\*実装\\*\\*[：:]\\s*`([^`]+)`")
	guidelineRefRe   = regexp.MustCompile(`[・-]\s*\*\*根拠\*\*[：:]\s*([^\n]+)`)

	scoreRe      = regexp.MustCompile(`アクセシビリティスコア[：:]?\s*[^→\n]*?(?:→|->)\s*([^\n(（]+)`)
	usabilityRe  = regexp.MustCompile(`ユーザビリティ向上\*{0,2}[：:]\s*([^\n]+)`)
	conversionRe = regexp.MustCompile(`コンバージョン影響\*{0,2}[：:]\s*([^\n]+)`)
)

// fieldLabels are bold tokens that belong to an item's body, not its title.
var fieldLabels = map[string]struct{}{
	"問題": {}, "改善案": {}, "実装": {}, "根拠": {},
}

// parseAnalysis reads the model's Markdown answer back into structured form.
// Missing sections degrade to placeholders; parsing never fails outright.
func parseAnalysis(text string) analysis.Analysis {
	current := "分析結果を取得できませんでした。"
	if m := currentSectionRe.FindStringSubmatch(text); m != nil {
		if s := strings.TrimSpace(m[1]); s != "" {
			current = s
		}
	}

	return analysis.Analysis{
		CurrentIssues:   current,
		Improvements:    parseImprovements(text),
		PredictedImpact: parseImpact(text),
	}
}

func parseImprovements(text string) []analysis.Improvement {
	m := improvementsRe.FindStringSubmatch(text)
	if m == nil {
		return []analysis.Improvement{}
	}
	section := m[1]

	improvements := []analysis.Improvement{}
	for _, pr := range []struct {
		re       *regexp.Regexp
		priority analysis.Priority
	}{
		{priorityHighRe, analysis.PriorityHigh},
		{priorityMediumRe, analysis.PriorityMedium},
		{priorityLowRe, analysis.PriorityLow},
	} {
		pm := pr.re.FindStringSubmatch(section)
		if pm == nil || strings.TrimSpace(pm[1]) == "" {
			continue
		}
		improvements = append(improvements, parseItems(pm[1], pr.priority)...)
	}
	return improvements
}

// parseItems splits one priority block into items. An item begins at a bold
// token that is not a field label (問題, 改善案, 実装, 根拠) and runs until
// the next such token.
func parseItems(content string, priority analysis.Priority) []analysis.Improvement {
	matches := boldRe.FindAllStringSubmatchIndex(content, -1)

	var starts []int
	var titles []string
	for _, m := range matches {
		title := strings.TrimSpace(content[m[2]:m[3]])
		if _, isField := fieldLabels[title]; isField {
			continue
		}
		starts = append(starts, m[0])
		titles = append(titles, title)
	}

	var items []analysis.Improvement
	for i, start := range starts {
		end := len(content)
		if i+1 < len(starts) {
			end = starts[i+1]
		}
		items = append(items, parseItem(content[start:end], titles[i], priority))
	}
	return items
}

func parseItem(itemText, title string, priority analysis.Priority) analysis.Improvement {
	return analysis.Improvement{
		Priority:           priority,
		Title:              title,
		Problem:            matchOr(problemRe, itemText, "問題の詳細が取得できませんでした"),
		Solution:           matchOr(solutionRe, itemText, "解決策が取得できませんでした"),
		Implementation:     matchOr(implementationRe, itemText, "実装例が取得できませんでした"),
		GuidelineReference: matchOr(guidelineRefRe, itemText, "関連ガイドラインが取得できませんでした"),
	}
}

func matchOr(re *regexp.Regexp, text, fallback string) string {
	if m := re.FindStringSubmatch(text); m != nil {
		if s := strings.TrimSpace(m[1]); s != "" {
			return s
		}
	}
	return fallback
}

func parseImpact(text string) analysis.PredictedImpact {
	impact := analysis.PredictedImpact{
		UsabilityImprovement: "分析できませんでした",
		ConversionImpact:     "分析できませんでした",
	}

	m := impactSectionRe.FindStringSubmatch(text)
	if m == nil {
		return impact
	}
	section := m[1]

	if sm := scoreRe.FindStringSubmatch(section); sm != nil {
		impact.AccessibilityScore = leadingNumber(strings.TrimSpace(sm[1]))
	}
	if um := usabilityRe.FindStringSubmatch(section); um != nil {
		if s := strings.TrimSpace(um[1]); s != "" {
			impact.UsabilityImprovement = s
		}
	}
	if cm := conversionRe.FindStringSubmatch(section); cm != nil {
		if s := strings.TrimSpace(cm[1]); s != "" {
			impact.ConversionImpact = s
		}
	}
	return impact
}

// leadingNumber parses the numeric prefix of a string, tolerating trailing
// text like "85点" or "90 (推定)".
func leadingNumber(s string) float64 {
	end := 0
	for end < len(s) && (s[end] >= '0' && s[end] <= '9' || s[end] == '.') {
		end++
	}
	if end == 0 {
		return 0
	}
	n, err := strconv.ParseFloat(s[:end], 64)
	if err != nil {
		return 0
	}
	return n
}

// stripJSONFences removes Markdown code fences around a JSON payload.
func stripJSONFences(s string) string {
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}
