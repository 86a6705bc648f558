package analysis

import (
	"context"

	"github.com/uxlens/uxlens/internal/domain/search"
)

// Vision generates text from an image plus an instruction prompt.
type Vision interface {
	Generate(
		ctx context.Context, image []byte, mimeType, prompt string, maxTokens int,
	) (string, error)
}

// GuidelineSearcher retrieves the guideline set backing one analysis run.
type GuidelineSearcher interface {
	RelevantGuidelines(
		ctx context.Context, elements []string, prompt string,
	) ([]search.Result, error)
}
