package analysis

// Shape validation and repair for analysis results.
//
// Upstream stages (LLM output parsing, client-side persistence) can hand us
// arbitrarily malformed values. Validate reports the first structural
// problem; Repair rebuilds a fully-typed Result, preserving every field that
// already has the correct type and substituting typed, human-readable
// placeholders for the rest. Both are pure functions over decoded JSON
// (map[string]any) so call sites never scatter ad hoc type switches.

// Placeholder values used when a field cannot be recovered.
const (
	placeholderIssues      = "分析結果を取得できませんでした。"
	placeholderBrokenShape = "分析データの構造に問題があります。"
	placeholderImpactText  = "分析できませんでした"
)

func parseErrorImprovement() Improvement {
	return Improvement{
		Priority:           PriorityMedium,
		Title:              "分析結果の処理エラー",
		Problem:            "改善提案を正しく解析できませんでした。",
		Solution:           "画像を再度アップロードして分析を試してください。",
		Implementation:     "エラーが発生しました",
		GuidelineReference: "システムエラー",
	}
}

// Validate checks that a candidate value has the required envelope shape.
// It returns an empty string when the shape is valid, otherwise a
// description of the first failed check. Checks short-circuit in order.
func Validate(v any) string {
	obj, ok := v.(map[string]any)
	if !ok || obj == nil {
		return "result is not an object"
	}

	if _, ok := obj["success"]; !ok {
		return "missing success field"
	}
	if _, ok := obj["analysis"]; !ok {
		return "missing analysis field"
	}
	if _, ok := obj["guidelines_used"]; !ok {
		return "missing guidelines_used field"
	}
	if _, ok := obj["processing_time"]; !ok {
		return "missing processing_time field"
	}

	if a, ok := obj["analysis"].(map[string]any); ok {
		if _, ok := a["current_issues"]; !ok {
			return "missing analysis.current_issues field"
		}
		if _, ok := a["improvements"]; !ok {
			return "missing analysis.improvements field"
		}
		if _, ok := a["predicted_impact"]; !ok {
			return "missing analysis.predicted_impact field"
		}
		if _, ok := a["improvements"].([]any); !ok {
			return "analysis.improvements is not an array"
		}
		if impact, ok := a["predicted_impact"].(map[string]any); ok {
			if _, ok := impact["accessibility_score"]; !ok {
				return "missing analysis.predicted_impact.accessibility_score field"
			}
			if _, ok := impact["usability_improvement"]; !ok {
				return "missing analysis.predicted_impact.usability_improvement field"
			}
			if _, ok := impact["conversion_impact"]; !ok {
				return "missing analysis.predicted_impact.conversion_impact field"
			}
		}
	}

	if _, ok := obj["guidelines_used"].([]any); !ok {
		return "guidelines_used is not an array"
	}

	return ""
}

// Repair builds a well-formed Result from an arbitrary candidate value.
// Success is coerced to true unless explicitly false: a partially repaired
// result is still presentable, discarding it would not be.
func Repair(v any) Result {
	obj, _ := v.(map[string]any)

	out := Result{
		Success:        true,
		GuidelinesUsed: []GuidelineRef{},
	}

	if b, ok := obj["success"].(bool); ok {
		out.Success = b
	}
	if n, ok := asNumber(obj["processing_time"]); ok {
		out.ProcessingTime = int64(n)
	}
	if s, ok := obj["error"].(string); ok {
		out.Error = s
	}

	if a, ok := obj["analysis"].(map[string]any); ok {
		out.Analysis = repairAnalysis(a)
	} else {
		out.Analysis.CurrentIssues = placeholderBrokenShape
		out.Analysis.Improvements = []Improvement{{
			Priority:           PriorityMedium,
			Title:              "データ構造エラー",
			Problem:            "分析結果の構造が無効です。",
			Solution:           "再度分析を実行してください。",
			Implementation:     "エラーが発生しました",
			GuidelineReference: "システムエラー",
		}}
	}

	if refs, ok := obj["guidelines_used"].([]any); ok {
		out.GuidelinesUsed = repairGuidelineRefs(refs)
	}

	return out
}

// ValidateAndRepair returns the candidate unchanged when it is already a
// typed Result, otherwise validates and (if needed) repairs it. The second
// return value reports whether a repair was applied.
func ValidateAndRepair(v any) (Result, bool) {
	switch r := v.(type) {
	case Result:
		return r, false
	case *Result:
		if r != nil {
			return *r, false
		}
	}
	repaired := Validate(v) != ""
	return Repair(v), repaired
}

func repairAnalysis(a map[string]any) Analysis {
	out := Analysis{CurrentIssues: placeholderIssues}

	if s, ok := a["current_issues"].(string); ok {
		out.CurrentIssues = s
	}

	if items, ok := a["improvements"].([]any); ok {
		out.Improvements = repairImprovements(items)
	} else {
		out.Improvements = []Improvement{parseErrorImprovement()}
	}

	if impact, ok := a["predicted_impact"].(map[string]any); ok {
		out.PredictedImpact = PredictedImpact{
			UsabilityImprovement: placeholderImpactText,
			ConversionImpact:     placeholderImpactText,
		}
		if n, ok := asNumber(impact["accessibility_score"]); ok {
			out.PredictedImpact.AccessibilityScore = n
		}
		if s, ok := impact["usability_improvement"].(string); ok {
			out.PredictedImpact.UsabilityImprovement = s
		}
		if s, ok := impact["conversion_impact"].(string); ok {
			out.PredictedImpact.ConversionImpact = s
		}
	}

	return out
}

func repairImprovements(items []any) []Improvement {
	out := make([]Improvement, 0, len(items))
	for _, it := range items {
		m, ok := it.(map[string]any)
		if !ok {
			continue
		}
		imp := Improvement{Priority: PriorityMedium}
		if p, ok := m["priority"].(string); ok {
			switch Priority(p) {
			case PriorityHigh, PriorityMedium, PriorityLow:
				imp.Priority = Priority(p)
			}
		}
		imp.Title = stringOr(m["title"], "")
		imp.Problem = stringOr(m["problem"], "")
		imp.Solution = stringOr(m["solution"], "")
		imp.Implementation = stringOr(m["implementation"], "")
		imp.GuidelineReference = stringOr(m["guideline_reference"], "")
		out = append(out, imp)
	}
	return out
}

func repairGuidelineRefs(refs []any) []GuidelineRef {
	out := make([]GuidelineRef, 0, len(refs))
	for _, it := range refs {
		m, ok := it.(map[string]any)
		if !ok {
			continue
		}
		ref := GuidelineRef{
			Source:  stringOr(m["source"], ""),
			Content: stringOr(m["content"], ""),
		}
		if n, ok := asNumber(m["relevance_score"]); ok {
			ref.RelevanceScore = n
		}
		out = append(out, ref)
	}
	return out
}

func stringOr(v any, fallback string) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fallback
}

// asNumber accepts the numeric types encoding/json can produce.
func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	}
	return 0, false
}
