package domain

// SearchOptions configures a retrieval query.
type SearchOptions struct {
	// Limit is the maximum number of results (the retrieval k).
	Limit int

	// Mode selects the retrieval method. Empty uses the configured default.
	Mode SearchMode
}

// SearchResult represents a single retrieved chunk.
type SearchResult struct {
	// Chunk is the matched chunk.
	Chunk Chunk

	// Score is the relevance score; higher is better.
	Score float64

	// Highlights contains snippets with matched terms.
	Highlights []string
}
