// Package mcp provides an MCP (Model Context Protocol) server adapter for docchat.
// It lets AI assistants ask questions about the indexed documentation.
package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/custodia-labs/docchat/internal/core/domain"
)

var (
	// ErrMissingAnswerService is returned when the answer service is not provided.
	ErrMissingAnswerService = errors.New("mcp: answer service is required")

	// ErrMissingSearchService is returned when the search service is not provided.
	ErrMissingSearchService = errors.New("mcp: search service is required")
)

// toolError turns a service error into the message a tool caller sees.
// The original error stays in the chain.
func toolError(err error) error {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return fmt.Errorf("invalid request: %w", err)
	case errors.Is(err, domain.ErrIndexUnavailable):
		return fmt.Errorf("the documentation index is not available, run `docchat ingest`: %w", err)
	case errors.Is(err, domain.ErrRateLimited):
		return fmt.Errorf("the AI provider is rate limiting requests, try again later: %w", err)
	case errors.Is(err, domain.ErrEmbeddingService):
		return fmt.Errorf("the embedding provider failed: %w", err)
	case errors.Is(err, domain.ErrGenerationService):
		return fmt.Errorf("the language model failed: %w", err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("request cancelled: %w", err)
	default:
		return err
	}
}
