package domain

import "context"

// EmbeddingResult carries the vector and token usage of one embedding call.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// Embedder vectorizes text into embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// HealthChecker is implemented by providers that can verify connectivity.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}
