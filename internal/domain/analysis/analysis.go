// Package analysis defines the externally-contracted analysis response
// envelope and the shape validator/repairer that keeps it well-formed on the
// wire even when upstream stages failed.
package analysis

// Priority ranks an improvement suggestion.
type Priority string

// Improvement priorities.
const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Improvement is one actionable design-improvement suggestion.
type Improvement struct {
	Priority           Priority `json:"priority"`
	Title              string   `json:"title"`
	Problem            string   `json:"problem"`
	Solution           string   `json:"solution"`
	Implementation     string   `json:"implementation"`
	GuidelineReference string   `json:"guideline_reference"`
}

// PredictedImpact estimates the effect of applying the improvements.
type PredictedImpact struct {
	AccessibilityScore   float64 `json:"accessibility_score"`
	UsabilityImprovement string  `json:"usability_improvement"`
	ConversionImpact     string  `json:"conversion_impact"`
}

// Analysis is the parsed body of one design review.
type Analysis struct {
	CurrentIssues   string          `json:"current_issues"`
	Improvements    []Improvement   `json:"improvements"`
	PredictedImpact PredictedImpact `json:"predicted_impact"`
}

// GuidelineRef cites a guideline that grounded the analysis.
type GuidelineRef struct {
	Source         string  `json:"source"`
	Content        string  `json:"content"`
	RelevanceScore float64 `json:"relevance_score"`
}

// Result is the response envelope returned to the caller. It must always be
// well-formed on the wire; Repair enforces this by construction.
type Result struct {
	Success         bool           `json:"success"`
	Analysis        Analysis       `json:"analysis"`
	GuidelinesUsed  []GuidelineRef `json:"guidelines_used"`
	ProcessingTime  int64          `json:"processing_time"` // milliseconds
	Error           string         `json:"error,omitempty"`
}

// UIElement is a UI component detected in a screenshot.
type UIElement struct {
	Type        string  `json:"type"`
	Confidence  float64 `json:"confidence"`
	Description string  `json:"description"`
}
