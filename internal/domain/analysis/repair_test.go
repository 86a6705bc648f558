package analysis

import (
	"encoding/json"
	"reflect"
	"testing"
)

func validResult() Result {
	return Result{
		Success: true,
		Analysis: Analysis{
			CurrentIssues: "コントラストが不足しています。",
			Improvements: []Improvement{{
				Priority:           PriorityHigh,
				Title:              "コントラスト比の改善",
				Problem:            "テキストが背景に溶けている",
				Solution:           "コントラスト比を4.5:1以上にする",
				Implementation:     "text-gray-900 bg-white",
				GuidelineReference: "WCAG 2.2 1.4.3",
			}},
			PredictedImpact: PredictedImpact{
				AccessibilityScore:   85,
				UsabilityImprovement: "中程度の改善",
				ConversionImpact:     "離脱率の低下",
			},
		},
		GuidelinesUsed: []GuidelineRef{{
			Source:         "WCAG 2.2",
			Content:        "コントラスト比は4.5:1以上",
			RelevanceScore: 0.82,
		}},
		ProcessingTime: 1200,
	}
}

// decode round-trips a Result through JSON the way a wire payload arrives.
func decode(t *testing.T, v any) any {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return out
}

func TestValidate_ValidPayload(t *testing.T) {
	if msg := Validate(decode(t, validResult())); msg != "" {
		t.Errorf("expected valid payload, got %q", msg)
	}
}

func TestValidate_ShortCircuitOrder(t *testing.T) {
	tests := []struct {
		name    string
		payload any
		want    string
	}{
		{"not an object", "just a string", "result is not an object"},
		{"nil", nil, "result is not an object"},
		{"empty object", map[string]any{}, "missing success field"},
		{
			"no analysis",
			map[string]any{"success": true},
			"missing analysis field",
		},
		{
			"no guidelines_used",
			map[string]any{"success": true, "analysis": map[string]any{}},
			"missing guidelines_used field",
		},
		{
			"improvements not array",
			map[string]any{
				"success": true,
				"analysis": map[string]any{
					"current_issues":   "x",
					"improvements":     "oops",
					"predicted_impact": map[string]any{},
				},
				"guidelines_used": []any{},
				"processing_time": 1.0,
			},
			"analysis.improvements is not an array",
		},
		{
			"guidelines_used not array",
			map[string]any{
				"success":         true,
				"analysis":        "broken",
				"guidelines_used": "oops",
				"processing_time": 1.0,
			},
			"guidelines_used is not an array",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Validate(tt.payload); got != tt.want {
				t.Errorf("Validate() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRepair_EmptyObject(t *testing.T) {
	got, repaired := ValidateAndRepair(map[string]any{})
	if !repaired {
		t.Error("empty object should be reported as repaired")
	}
	if !got.Success {
		t.Error("success should be coerced to true")
	}
	if len(got.Analysis.Improvements) != 1 {
		t.Fatalf("expected exactly 1 placeholder improvement, got %d", len(got.Analysis.Improvements))
	}
	if got.Analysis.Improvements[0].Priority != PriorityMedium {
		t.Errorf("placeholder priority = %q, want medium", got.Analysis.Improvements[0].Priority)
	}
	if got.GuidelinesUsed == nil || len(got.GuidelinesUsed) != 0 {
		t.Errorf("guidelines_used should be an empty array, got %v", got.GuidelinesUsed)
	}
	if got.ProcessingTime != 0 {
		t.Errorf("processing_time should default to 0, got %d", got.ProcessingTime)
	}
}

func TestRepair_ValidInputUnchanged(t *testing.T) {
	want := validResult()
	got, repaired := ValidateAndRepair(decode(t, want))
	if repaired {
		t.Error("valid payload should not be reported as repaired")
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("valid payload was altered:\n got %+v\nwant %+v", got, want)
	}
}

func TestValidateAndRepair_TypedPassthrough(t *testing.T) {
	want := validResult()
	got, repaired := ValidateAndRepair(want)
	if repaired {
		t.Error("typed Result should pass through unrepaired")
	}
	if !reflect.DeepEqual(got, want) {
		t.Error("typed Result was altered")
	}
}

func TestRepair_ExplicitFalseSuccessPreserved(t *testing.T) {
	got := Repair(map[string]any{"success": false})
	if got.Success {
		t.Error("explicit success=false must be preserved")
	}
}

func TestRepair_MistypedImprovements(t *testing.T) {
	got := Repair(map[string]any{
		"success": true,
		"analysis": map[string]any{
			"current_issues":   "問題あり",
			"improvements":     42,
			"predicted_impact": map[string]any{},
		},
		"guidelines_used": []any{},
		"processing_time": 100.0,
	})

	if got.Analysis.CurrentIssues != "問題あり" {
		t.Error("well-typed current_issues should be preserved")
	}
	if len(got.Analysis.Improvements) != 1 {
		t.Fatalf("mistyped improvements should become 1 placeholder, got %d", len(got.Analysis.Improvements))
	}
	if got.Analysis.PredictedImpact.UsabilityImprovement != placeholderImpactText {
		t.Error("missing impact fields should get placeholder text")
	}
	if got.ProcessingTime != 100 {
		t.Errorf("processing_time = %d, want 100", got.ProcessingTime)
	}
}

func TestRepair_UnknownPriorityNormalized(t *testing.T) {
	got := Repair(map[string]any{
		"analysis": map[string]any{
			"improvements": []any{
				map[string]any{"priority": "urgent", "title": "x"},
			},
		},
	})
	if len(got.Analysis.Improvements) != 1 {
		t.Fatalf("expected 1 improvement, got %d", len(got.Analysis.Improvements))
	}
	if got.Analysis.Improvements[0].Priority != PriorityMedium {
		t.Errorf("unknown priority should normalize to medium, got %q", got.Analysis.Improvements[0].Priority)
	}
	if got.Analysis.Improvements[0].Title != "x" {
		t.Error("title should be preserved")
	}
}

func TestRepair_NeverPanics(t *testing.T) {
	inputs := []any{
		nil,
		"string",
		3.14,
		[]any{1, 2, 3},
		map[string]any{"analysis": []any{"not", "a", "map"}},
		map[string]any{"guidelines_used": map[string]any{}},
	}
	for _, in := range inputs {
		got := Repair(in)
		if got.GuidelinesUsed == nil {
			t.Errorf("Repair(%v) produced nil guidelines_used", in)
		}
	}
}
