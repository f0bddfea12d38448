// Package chunker splits artifact text into fixed-size overlapping windows.
package chunker

import (
	"fmt"
	"iter"

	"github.com/custodia-labs/docchat/internal/core/domain"
	"github.com/custodia-labs/docchat/internal/core/ports/driven"
)

// DefaultChunkSize is the default number of characters per chunk.
const DefaultChunkSize = 1024

// DefaultChunkOverlap is the default number of overlapping characters.
const DefaultChunkOverlap = 128

// Ensure Chunker implements the interface.
var _ driven.Chunker = (*Chunker)(nil)

// Chunker produces windows of a fixed number of characters, each
// overlapping its predecessor by a fixed number of characters.
// Sizes count runes, so multi-byte text is never split mid-character.
type Chunker struct {
	chunkSize int
	overlap   int
}

// Option configures the chunker.
type Option func(*Chunker)

// WithChunkSize sets the chunk size in characters.
func WithChunkSize(size int) Option {
	return func(c *Chunker) {
		c.chunkSize = size
	}
}

// WithOverlap sets the overlap between chunks in characters.
func WithOverlap(overlap int) Option {
	return func(c *Chunker) {
		c.overlap = overlap
	}
}

// New creates a chunker. A non-positive size, a negative overlap, or an
// overlap not smaller than the size is a domain.ErrConfiguration.
func New(opts ...Option) (*Chunker, error) {
	c := &Chunker{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultChunkOverlap,
	}

	for _, opt := range opts {
		opt(c)
	}

	settings := domain.ChunkSettings{Size: c.chunkSize, Overlap: c.overlap}
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	return c, nil
}

// Size returns the window size in characters.
func (c *Chunker) Size() int { return c.chunkSize }

// Overlap returns the overlap in characters.
func (c *Chunker) Overlap() int { return c.overlap }

// Chunks returns the windows of the artifact text as a lazy sequence.
// Each iteration starts from the beginning and yields the same chunks.
// Text no longer than the window yields exactly one chunk; empty text
// yields none.
func (c *Chunker) Chunks(artifact domain.TextArtifact) iter.Seq[domain.Chunk] {
	return func(yield func(domain.Chunk) bool) {
		runes := []rune(artifact.Text)
		total := len(runes)
		if total == 0 {
			return
		}

		step := c.chunkSize - c.overlap
		for position, start := 0, 0; ; position, start = position+1, start+step {
			end := min(start+c.chunkSize, total)

			chunk := domain.Chunk{
				ID:          fmt.Sprintf("%s:%d", artifact.ID, position),
				ArtifactID:  artifact.ID,
				SourceURL:   artifact.URL,
				Position:    position,
				StartOffset: start,
				Content:     string(runes[start:end]),
			}
			if !yield(chunk) {
				return
			}
			if end == total {
				return
			}
		}
	}
}

// Split collects every chunk of the artifact.
func (c *Chunker) Split(artifact domain.TextArtifact) []domain.Chunk {
	var chunks []domain.Chunk
	for chunk := range c.Chunks(artifact) {
		chunks = append(chunks, chunk)
	}
	return chunks
}

// Count returns how many chunks text of the given length produces.
func (c *Chunker) Count(length int) int {
	if length <= 0 {
		return 0
	}
	if length <= c.chunkSize {
		return 1
	}
	step := c.chunkSize - c.overlap
	return (length - c.overlap + step - 1) / step
}
