package normalisers

import (
	"context"
	"fmt"
	"mime"
	"sort"
	"strings"

	"github.com/custodia-labs/docchat/internal/core/domain"
	"github.com/custodia-labs/docchat/internal/core/ports/driven"
)

// Ensure Registry implements the interface.
var _ driven.Extractor = (*Registry)(nil)

// defaultMediaType is assumed when a server sends no Content-Type.
const defaultMediaType = "text/html"

// Registry routes pages to extractors by media type. The first extractor
// registered for a type wins.
type Registry struct {
	byType map[string]driven.Extractor
}

// NewRegistry creates a registry over the given extractors.
func NewRegistry(extractors ...driven.Extractor) *Registry {
	r := &Registry{byType: make(map[string]driven.Extractor)}
	for _, e := range extractors {
		r.Register(e)
	}
	return r
}

// Register adds an extractor for every type it supports that is not
// already claimed.
func (r *Registry) Register(e driven.Extractor) {
	if e == nil {
		return
	}
	for _, mt := range e.SupportedMIMETypes() {
		mt = strings.ToLower(mt)
		if _, ok := r.byType[mt]; !ok {
			r.byType[mt] = e
		}
	}
}

// SupportedMIMETypes returns every registered type, sorted.
func (r *Registry) SupportedMIMETypes() []string {
	types := make([]string, 0, len(r.byType))
	for mt := range r.byType {
		types = append(types, mt)
	}
	sort.Strings(types)
	return types
}

// Extract hands the page to the extractor for its media type.
func (r *Registry) Extract(ctx context.Context, page *domain.FetchedPage) (*domain.Extraction, error) {
	if page == nil {
		return nil, fmt.Errorf("%w: nil page", domain.ErrExtraction)
	}

	mediaType := defaultMediaType
	if page.ContentType != "" {
		mt, _, err := mime.ParseMediaType(page.ContentType)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: bad content type %q", domain.ErrExtraction, page.URL, page.ContentType)
		}
		mediaType = mt
	}

	e, ok := r.byType[mediaType]
	if !ok {
		return nil, fmt.Errorf("%w: %s: unsupported content type %q", domain.ErrExtraction, page.URL, mediaType)
	}
	return e.Extract(ctx, page)
}
