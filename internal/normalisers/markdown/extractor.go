// Package markdown converts Markdown pages, which some documentation sites
// serve raw, into plain text.
package markdown

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"net/url"
	"path"
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/docchat/internal/core/domain"
	"github.com/custodia-labs/docchat/internal/core/ports/driven"
)

// Ensure Extractor implements the interface.
var _ driven.Extractor = (*Extractor)(nil)

var (
	fence        = regexp.MustCompile("(?m)^[ \\t]*(```|~~~).*$")
	inlineCode   = regexp.MustCompile("`([^`\n]+)`")
	images       = regexp.MustCompile(`!\[[^\]]*\]\([^)]*\)`)
	inlineLinks  = regexp.MustCompile(`\[([^\]]+)\]\(\s*<?([^)\s>]+)>?(?:\s+"[^"]*")?\s*\)`)
	refLinkDefs  = regexp.MustCompile(`(?m)^[ ]{0,3}\[[^\]]+\]:[ \t]*<?(\S+?)>?(?:[ \t]+"[^"]*")?[ \t]*$`)
	autoLinks    = regexp.MustCompile(`<(https?://[^>\s]+)>`)
	headings     = regexp.MustCompile(`(?m)^#{1,6}[ \t]+`)
	closingHash  = regexp.MustCompile(`(?m)[ \t]+#+[ \t]*$`)
	emphasis     = regexp.MustCompile(`(\*\*|__)(\S(?:.*?\S)?)(\*\*|__)`)
	italic       = regexp.MustCompile(`\*([^*\s][^*\n]*?)\*`)
	blockquote   = regexp.MustCompile(`(?m)^>[ \t]?`)
	hr           = regexp.MustCompile(`(?m)^[ \t]*([-*_])([ \t]*([-*_])){2,}[ \t]*$`)
	listMarkers  = regexp.MustCompile(`(?m)^([ \t]*)[-*+][ \t]+`)
	htmlComments = regexp.MustCompile(`(?s)<!--.*?-->`)
	multiNewline = regexp.MustCompile(`\n{3,}`)
)

// Extractor handles Markdown documents.
type Extractor struct{}

// New creates a new Markdown extractor.
func New() *Extractor {
	return &Extractor{}
}

// SupportedMIMETypes returns the MIME types this extractor handles.
func (e *Extractor) SupportedMIMETypes() []string {
	return []string{"text/markdown", "text/x-markdown"}
}

// Extract converts a Markdown page to text. Fenced code keeps its content
// without the fences; link targets are returned for the crawl frontier.
func (e *Extractor) Extract(_ context.Context, page *domain.FetchedPage) (*domain.Extraction, error) {
	if page == nil {
		return nil, fmt.Errorf("%w: nil page", domain.ErrExtraction)
	}
	if page.ContentType != "" {
		mt, _, err := mime.ParseMediaType(page.ContentType)
		if err != nil || (mt != "text/markdown" && mt != "text/x-markdown") {
			return nil, fmt.Errorf("%w: %s: unsupported content type %q", domain.ErrExtraction, page.URL, page.ContentType)
		}
	}
	if len(bytes.TrimSpace(page.Body)) == 0 {
		return nil, fmt.Errorf("%w: %s: empty body", domain.ErrExtraction, page.URL)
	}
	if !utf8.Valid(page.Body) || bytes.IndexByte(page.Body, 0) >= 0 {
		return nil, fmt.Errorf("%w: %s: body is not text", domain.ErrExtraction, page.URL)
	}

	source := strings.ReplaceAll(string(page.Body), "\r\n", "\n")

	return &domain.Extraction{
		Title: title(source, page.URL),
		Text:  stripMarkdown(source),
		Links: collectLinks(source),
	}, nil
}

// title returns the first level-one heading, or a name derived from the
// last URL path segment.
func title(source, rawURL string) string {
	for _, line := range strings.Split(source, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "# ") {
			return strings.TrimSpace(closingHash.ReplaceAllString(strings.TrimPrefix(line, "#"), ""))
		}
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	name := path.Base(u.Path)
	if name == "/" || name == "." {
		return ""
	}
	name = strings.TrimSuffix(name, path.Ext(name))
	name = strings.ReplaceAll(name, "_", " ")
	return strings.ReplaceAll(name, "-", " ")
}

// collectLinks returns inline, reference and autolink targets in document order.
func collectLinks(source string) []string {
	type match struct {
		at   int
		href string
	}
	var found []match
	for _, m := range inlineLinks.FindAllStringSubmatchIndex(source, -1) {
		found = append(found, match{m[0], source[m[4]:m[5]]})
	}
	for _, m := range refLinkDefs.FindAllStringSubmatchIndex(source, -1) {
		found = append(found, match{m[0], source[m[2]:m[3]]})
	}
	for _, m := range autoLinks.FindAllStringSubmatchIndex(source, -1) {
		found = append(found, match{m[0], source[m[2]:m[3]]})
	}

	slices.SortStableFunc(found, func(a, b match) int { return a.at - b.at })

	links := make([]string, 0, len(found))
	for _, f := range found {
		links = append(links, f.href)
	}
	return links
}

// stripMarkdown removes Markdown syntax while keeping the words a reader sees.
func stripMarkdown(content string) string {
	content = htmlComments.ReplaceAllString(content, "")
	content = fence.ReplaceAllString(content, "")
	content = images.ReplaceAllString(content, "")
	content = inlineLinks.ReplaceAllString(content, "$1")
	content = refLinkDefs.ReplaceAllString(content, "")
	content = autoLinks.ReplaceAllString(content, "$1")
	content = inlineCode.ReplaceAllString(content, "$1")
	content = headings.ReplaceAllString(content, "")
	content = closingHash.ReplaceAllString(content, "")
	content = emphasis.ReplaceAllString(content, "$2")
	content = blockquote.ReplaceAllString(content, "")
	content = hr.ReplaceAllString(content, "")
	content = listMarkers.ReplaceAllString(content, "$1")
	content = italic.ReplaceAllString(content, "$1")

	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	content = strings.Join(lines, "\n")
	content = multiNewline.ReplaceAllString(content, "\n\n")

	return strings.Trim(content, "\n")
}
