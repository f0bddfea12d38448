package domain

import "time"

// TextArtifact is the plain-text rendering of one fetched page.
// It is created once per unique canonical URL and never modified.
type TextArtifact struct {
	// ID is ArtifactID(URL); it names the artifact in the corpus.
	ID string

	// URL is the canonical source URL.
	URL string

	// Title is the page title, when one was found.
	Title string

	// Text is the normalised plain text.
	Text string

	// FetchedAt is when the page was fetched.
	FetchedAt time.Time
}

// Chunk represents a contiguous window of one artifact's text.
// Chunks are derived from artifacts and never mutated.
type Chunk struct {
	// ID is "<artifactID>:<position>".
	ID string

	// ArtifactID links to the source TextArtifact.
	ArtifactID string

	// SourceURL is the artifact's canonical URL, carried for citations.
	SourceURL string

	// Position is the ordinal position within the artifact.
	Position int

	// StartOffset is the rune offset of the window within the artifact text.
	StartOffset int

	// Content is the text of this window.
	Content string

	// Embedding is the vector representation, set by the indexer.
	// A Chunk with an Embedding is a vector index entry.
	Embedding []float32
}

// IndexStats summarises the contents of the vector index.
type IndexStats struct {
	// Chunks is the number of stored entries.
	Chunks int

	// Artifacts is the number of distinct source artifacts.
	Artifacts int

	// Dimensions is the embedding size, zero when the index is empty.
	Dimensions int

	// Model is the embedding model that built the index.
	Model string
}
