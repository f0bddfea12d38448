package html

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/custodia-labs/docchat/internal/core/domain"
	"github.com/custodia-labs/docchat/internal/core/ports/driven"
)

// Ensure Extractor implements the interface.
var _ driven.Extractor = (*Extractor)(nil)

// Extractor handles HTML pages and passes plain text through.
type Extractor struct{}

// New creates a new HTML extractor.
func New() *Extractor {
	return &Extractor{}
}

// SupportedMIMETypes returns the MIME types this extractor handles.
func (e *Extractor) SupportedMIMETypes() []string {
	return []string{"text/html", "application/xhtml+xml", "text/plain"}
}

// Extract converts the page body to text. A missing content type is
// treated as HTML.
func (e *Extractor) Extract(_ context.Context, page *domain.FetchedPage) (*domain.Extraction, error) {
	if page == nil {
		return nil, fmt.Errorf("%w: nil page", domain.ErrExtraction)
	}

	mediaType := "text/html"
	if page.ContentType != "" {
		mt, _, err := mime.ParseMediaType(page.ContentType)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: bad content type %q", domain.ErrExtraction, page.URL, page.ContentType)
		}
		mediaType = mt
	}
	if !e.supports(mediaType) {
		return nil, fmt.Errorf("%w: %s: unsupported content type %q", domain.ErrExtraction, page.URL, mediaType)
	}

	if len(bytes.TrimSpace(page.Body)) == 0 {
		return nil, fmt.Errorf("%w: %s: empty body", domain.ErrExtraction, page.URL)
	}
	if !utf8.Valid(page.Body) || bytes.IndexByte(page.Body, 0) >= 0 {
		return nil, fmt.Errorf("%w: %s: body is not text", domain.ErrExtraction, page.URL)
	}

	if mediaType == "text/plain" {
		return &domain.Extraction{Text: tidy(string(page.Body))}, nil
	}

	doc, err := html.Parse(bytes.NewReader(page.Body))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrExtraction, page.URL, err)
	}

	r := &renderer{}
	r.walk(doc)
	r.flush()

	return &domain.Extraction{
		Title: findTitle(doc),
		Text:  tidy(strings.Join(r.lines, "\n")),
		Links: collectLinks(doc),
	}, nil
}

func (e *Extractor) supports(mediaType string) bool {
	for _, mt := range e.SupportedMIMETypes() {
		if mt == mediaType {
			return true
		}
	}
	return false
}

// Elements whose content never reaches the text.
var skipped = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Head:     true,
	atom.Svg:      true,
	atom.Nav:      true,
	atom.Footer:   true,
	atom.Template: true,
	atom.Iframe:   true,
	atom.Img:      true,
	atom.Picture:  true,
	atom.Button:   true,
}

// Elements that start a new paragraph.
var paragraphs = map[atom.Atom]bool{
	atom.P:          true,
	atom.Div:        true,
	atom.Section:    true,
	atom.Article:    true,
	atom.Main:       true,
	atom.Header:     true,
	atom.Aside:      true,
	atom.Blockquote: true,
	atom.Figure:     true,
	atom.Figcaption: true,
	atom.Details:    true,
	atom.Summary:    true,
	atom.Dl:         true,
	atom.Table:      true,
	atom.Ul:         true,
	atom.Ol:         true,
	atom.Hr:         true,
}

// Elements that end the current line without a blank line.
var lineBreaks = map[atom.Atom]bool{
	atom.Br: true,
	atom.Tr: true,
	atom.Dt: true,
	atom.Dd: true,
	atom.Li: true,
}

var headingLevel = map[atom.Atom]int{
	atom.H1: 1, atom.H2: 2, atom.H3: 3, atom.H4: 4, atom.H5: 5, atom.H6: 6,
}

// renderer accumulates inline text into lines.
type renderer struct {
	lines     []string
	line      strings.Builder
	prefix    string
	listDepth int
}

func (r *renderer) walk(n *html.Node) {
	switch n.Type {
	case html.TextNode:
		r.line.WriteString(n.Data)
		return
	case html.ElementNode:
		// handled below
	case html.DocumentNode:
		r.children(n)
		return
	default:
		return
	}

	if skipped[n.DataAtom] {
		return
	}

	if level, ok := headingLevel[n.DataAtom]; ok {
		r.paragraph()
		r.prefix = strings.Repeat("#", level) + " "
		r.children(n)
		r.paragraph()
		r.prefix = ""
		return
	}

	switch n.DataAtom {
	case atom.Pre:
		r.paragraph()
		r.lines = append(r.lines, strings.Split(strings.TrimRight(textContent(n), "\n"), "\n")...)
		r.paragraph()
		return
	case atom.Li:
		r.flush()
		r.prefix = strings.Repeat("  ", max(r.listDepth, 1)) + "* "
		r.children(n)
		r.flush()
		r.prefix = ""
		return
	case atom.Ul, atom.Ol:
		if r.listDepth == 0 {
			r.paragraph()
		} else {
			r.flush()
		}
		r.listDepth++
		r.children(n)
		r.listDepth--
		if r.listDepth == 0 {
			r.paragraph()
		}
		return
	case atom.Td, atom.Th:
		r.line.WriteByte(' ')
		r.children(n)
		r.line.WriteByte(' ')
		return
	}

	switch {
	case paragraphs[n.DataAtom]:
		r.paragraph()
		r.children(n)
		r.paragraph()
	case lineBreaks[n.DataAtom]:
		r.flush()
		r.children(n)
		r.flush()
	default:
		r.children(n)
	}
}

func (r *renderer) children(n *html.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		r.walk(c)
	}
}

// flush ends the current line, collapsing its whitespace. The prefix is
// consumed only by a line that has text.
func (r *renderer) flush() {
	text := strings.Join(strings.Fields(r.line.String()), " ")
	r.line.Reset()
	if text == "" {
		return
	}
	r.lines = append(r.lines, r.prefix+text)
	r.prefix = ""
}

// paragraph ends the current line and separates the next block with a blank line.
func (r *renderer) paragraph() {
	r.flush()
	if len(r.lines) > 0 && r.lines[len(r.lines)-1] != "" {
		r.lines = append(r.lines, "")
	}
}

// textContent returns the unmodified text below n.
func textContent(n *html.Node) string {
	var b strings.Builder
	var visit func(*html.Node)
	visit = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		if n.Type == html.ElementNode && n.DataAtom == atom.Br {
			b.WriteByte('\n')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	visit(n)
	return b.String()
}

func findTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.DataAtom == atom.Title {
		return strings.Join(strings.Fields(textContent(n)), " ")
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if title := findTitle(c); title != "" {
			return title
		}
	}
	return ""
}

// collectLinks returns every anchor href in document order, navigation
// and footer included.
func collectLinks(n *html.Node) []string {
	var links []string
	var visit func(*html.Node)
	visit = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.A {
			for _, attr := range n.Attr {
				if attr.Key == "href" {
					if href := strings.TrimSpace(attr.Val); href != "" {
						links = append(links, href)
					}
					break
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	visit(n)
	return links
}

var multiNewlines = regexp.MustCompile(`\n{3,}`)

// tidy trims trailing spaces and collapses runs of blank lines.
func tidy(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	text = strings.Join(lines, "\n")
	text = multiNewlines.ReplaceAllString(text, "\n\n")
	return strings.Trim(text, "\n")
}
