package domain

import "errors"

var (
	// ErrEmptyQuery signals a caller error: a blank search query.
	ErrEmptyQuery = errors.New("query is empty")
	// ErrInvalidFilter signals a malformed category or source filter.
	ErrInvalidFilter = errors.New("invalid filter")
	// ErrCapabilityNotFound signals that the store lacks an optional search
	// function, as opposed to a transient failure of an existing one.
	ErrCapabilityNotFound = errors.New("store capability not found")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrVisionProviderError signals a vision provider failure.
	ErrVisionProviderError = errors.New("vision provider error")
	// ErrStoreUnavailable signals that the guideline store is unreachable.
	ErrStoreUnavailable = errors.New("guideline store unavailable")
	// ErrVectorDimMismatch signals a vector dimension mismatch.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
	// ErrInvalidInput signals a malformed analysis request.
	ErrInvalidInput = errors.New("invalid input")
)
