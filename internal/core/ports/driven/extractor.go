package driven

import (
	"context"

	"github.com/custodia-labs/docchat/internal/core/domain"
)

// Extractor converts a fetched page into normalised plain text and
// the raw hyperlinks it contains.
type Extractor interface {
	// SupportedMIMETypes returns the media types this extractor handles.
	SupportedMIMETypes() []string

	// Extract returns the page text and links. Content that cannot be
	// converted is reported as an error wrapping domain.ErrExtraction.
	Extract(ctx context.Context, page *domain.FetchedPage) (*domain.Extraction, error)
}
