package driven

import (
	"iter"

	"github.com/custodia-labs/docchat/internal/core/domain"
)

// Chunker splits artifacts into overlapping fixed-size windows.
type Chunker interface {
	// Chunks returns a lazy, restartable sequence of windows covering the
	// artifact text end to end.
	Chunks(artifact domain.TextArtifact) iter.Seq[domain.Chunk]

	// Size returns the window size in characters.
	Size() int

	// Overlap returns the overlap between consecutive windows in characters.
	Overlap() int
}
