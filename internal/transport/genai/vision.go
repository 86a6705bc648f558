// Package genai provides the vision provider over Google's Gemini API.
package genai

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/uxlens/uxlens/internal/domain"
)

// Vision analyzes screenshots with a Gemini multimodal model.
type Vision struct {
	client *genai.Client
	model  string
}

// Config holds the vision provider settings.
type Config struct {
	APIKey string
	Model  string
}

// NewVision creates a Gemini vision provider.
func NewVision(ctx context.Context, cfg *Config) (*Vision, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("vision API key is required")
	}
	model := cfg.Model
	if model == "" {
		model = "gemini-2.5-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: cfg.APIKey})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &Vision{client: client, model: model}, nil
}

// Generate sends the image and the instruction prompt to the model and
// returns its text answer.
func (v *Vision) Generate(
	ctx context.Context, image []byte, mimeType, prompt string, maxTokens int,
) (string, error) {
	if mimeType == "" {
		mimeType = "image/png"
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(image, mimeType),
			genai.NewPartFromText(prompt),
		}, genai.RoleUser),
	}

	cfg := &genai.GenerateContentConfig{}
	if maxTokens > 0 {
		cfg.MaxOutputTokens = int32(maxTokens)
	}

	resp, err := v.client.Models.GenerateContent(ctx, v.model, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrVisionProviderError, err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("%w: empty model response", domain.ErrVisionProviderError)
	}
	return text, nil
}
