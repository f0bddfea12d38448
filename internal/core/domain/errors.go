package domain

import "errors"

// Domain errors represent business logic failures.
// Adapters wrap these with %w so callers can match them with errors.Is.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrRateLimited indicates the remote API rate limit was exceeded.
	ErrRateLimited = errors.New("rate limited")

	// Crawl Errors.

	// ErrScopeRejected marks a discovered URL outside the crawl scope.
	// It is counted, never surfaced as a failure.
	ErrScopeRejected = errors.New("url out of scope")

	// ErrFetch indicates a network or HTTP failure fetching a page.
	// The page is abandoned for this run.
	ErrFetch = errors.New("fetch failed")

	// ErrExtraction indicates page content could not be converted to text.
	ErrExtraction = errors.New("extraction failed")

	// ErrArtifactCollision indicates an artifact ID is already held by a different URL.
	ErrArtifactCollision = errors.New("artifact id collision")

	// Ingestion Errors.

	// ErrConfiguration indicates invalid configuration, such as a chunk
	// overlap that is not smaller than the chunk size.
	ErrConfiguration = errors.New("invalid configuration")

	// ErrEmbeddingService indicates the embedding service call failed.
	// Fatal to an ingestion run.
	ErrEmbeddingService = errors.New("embedding service error")

	// Answering Errors.

	// ErrGenerationService indicates the generation service call failed.
	ErrGenerationService = errors.New("generation service error")

	// ErrIndexUnavailable indicates the index storage is missing or corrupt.
	ErrIndexUnavailable = errors.New("index unavailable")
)
