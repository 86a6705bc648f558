// Package analysis runs the design review pipeline: detect UI elements in a
// screenshot, retrieve the guidelines they implicate, ask the vision model
// for a structured review, and parse the answer into the response envelope.
// The envelope is always well-formed; upstream failures surface as
// success=false with an error message, never as a dropped response.
package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/uxlens/uxlens/internal/domain"
	"github.com/uxlens/uxlens/internal/domain/analysis"
	"github.com/uxlens/uxlens/internal/domain/search"
	"github.com/uxlens/uxlens/internal/logger"
)

// Mode selects the analysis depth.
type Mode string

// Analysis modes. Quick mode is used for batches.
const (
	ModeComprehensive Mode = "comprehensive"
	ModeQuick         Mode = "quick"
)

// Token budgets per call.
const (
	defaultMaxTokens   = 8000
	detectionMaxTokens = 2000
	quickMaxTokens     = 3000
)

// maxBatchSize bounds one batch analysis request.
const maxBatchSize = 5

// Options tune one analysis run.
type Options struct {
	Mode      Mode
	MaxTokens int
}

func (o Options) withDefaults() Options {
	if o.Mode == "" {
		o.Mode = ModeComprehensive
	}
	if o.MaxTokens <= 0 {
		o.MaxTokens = defaultMaxTokens
	}
	return o
}

// Service is the analysis pipeline.
type Service struct {
	vision     Vision
	guidelines GuidelineSearcher
}

// New creates an analysis service.
func New(vision Vision, guidelines GuidelineSearcher) *Service {
	return &Service{vision: vision, guidelines: guidelines}
}

// Analyze reviews one screenshot against the user's request. The returned
// envelope always carries a complete analysis object; a pipeline failure is
// reported inside it with success=false.
func (s *Service) Analyze(
	ctx context.Context, image []byte, mimeType, userPrompt string, opts Options,
) (analysis.Result, error) {
	if len(image) == 0 {
		return analysis.Result{}, fmt.Errorf("%w: empty image", domain.ErrInvalidInput)
	}
	opts = opts.withDefaults()
	start := time.Now()
	log := logger.FromContext(ctx)

	elements := s.detectElements(ctx, image, mimeType)
	types := make([]string, len(elements))
	for i, el := range elements {
		types[i] = el.Type
	}

	guidelines, err := s.guidelines.RelevantGuidelines(ctx, types, userPrompt)
	if err != nil {
		log.Error("guideline retrieval failed", zap.Error(err))
		return failureEnvelope(err, start), nil
	}

	var prompt string
	if opts.Mode == ModeQuick {
		prompt = quickPrompt(userPrompt, guidelines)
	} else {
		prompt = comprehensivePrompt(userPrompt, elements, guidelines)
		prompt = optimizePromptForTokenLimit(prompt, opts.MaxTokens*7/10)
	}

	maxTokens := opts.MaxTokens
	if opts.Mode == ModeQuick {
		maxTokens = quickMaxTokens
	}

	text, err := s.vision.Generate(ctx, image, mimeType, prompt, maxTokens)
	if err != nil {
		log.Error("vision analysis failed", zap.Error(err))
		return failureEnvelope(fmt.Errorf("%w: %w", domain.ErrVisionProviderError, err), start), nil
	}

	result := analysis.Result{
		Success:        true,
		Analysis:       parseAnalysis(text),
		GuidelinesUsed: guidelineRefs(guidelines),
		ProcessingTime: time.Since(start).Milliseconds(),
	}
	log.Info("analysis completed",
		zap.Int("elements", len(elements)),
		zap.Int("guidelines", len(guidelines)),
		zap.Int("improvements", len(result.Analysis.Improvements)),
		zap.Int64("processing_ms", result.ProcessingTime))
	return result, nil
}

// AnalyzeBatch reviews up to five screenshots concurrently in quick mode.
// Images and prompts pair up by index.
func (s *Service) AnalyzeBatch(
	ctx context.Context, images [][]byte, mimeTypes, prompts []string, opts Options,
) ([]analysis.Result, error) {
	if len(images) != len(prompts) || len(images) != len(mimeTypes) {
		return nil, fmt.Errorf("%w: images, mime types and prompts must pair up", domain.ErrInvalidInput)
	}
	if len(images) > maxBatchSize {
		return nil, fmt.Errorf("%w: at most %d images per batch", domain.ErrInvalidInput, maxBatchSize)
	}

	opts.Mode = ModeQuick
	results := make([]analysis.Result, len(images))

	g, gctx := errgroup.WithContext(ctx)
	for i := range images {
		g.Go(func() error {
			res, err := s.Analyze(gctx, images[i], mimeTypes[i], prompts[i], opts)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// detectElements asks the vision model for a JSON element inventory. Any
// failure, including unparseable output, degrades to a generic element
// triple so the rest of the pipeline still has something to search with.
func (s *Service) detectElements(
	ctx context.Context, image []byte, mimeType string,
) []analysis.UIElement {
	log := logger.FromContext(ctx)

	raw, err := s.vision.Generate(ctx, image, mimeType, elementDetectionPrompt, detectionMaxTokens)
	if err == nil {
		var payload struct {
			Elements []analysis.UIElement `json:"elements"`
		}
		if jsonErr := json.Unmarshal([]byte(stripJSONFences(raw)), &payload); jsonErr == nil &&
			len(payload.Elements) > 0 {
			return payload.Elements
		}
		err = fmt.Errorf("unparseable detection output")
	}

	log.Warn("element detection failed, using generic elements", zap.Error(err))
	return []analysis.UIElement{
		{Type: "button", Confidence: 0.5, Description: "General interactive elements"},
		{Type: "text", Confidence: 0.8, Description: "Text content"},
		{Type: "layout", Confidence: 0.7, Description: "Overall layout structure"},
	}
}

// failureEnvelope is the well-formed response for a failed pipeline run.
func failureEnvelope(err error, start time.Time) analysis.Result {
	return analysis.Result{
		Success: false,
		Analysis: analysis.Analysis{
			CurrentIssues: "",
			Improvements:  []analysis.Improvement{},
		},
		GuidelinesUsed: []analysis.GuidelineRef{},
		ProcessingTime: time.Since(start).Milliseconds(),
		Error:          err.Error(),
	}
}

func guidelineRefs(guidelines []search.Result) []analysis.GuidelineRef {
	refs := make([]analysis.GuidelineRef, len(guidelines))
	for i, g := range guidelines {
		refs[i] = analysis.GuidelineRef{
			Source:         g.Source,
			Content:        g.Content,
			RelevanceScore: g.CombinedScore,
		}
	}
	return refs
}
