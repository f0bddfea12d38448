package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/docchat/internal/core/domain"
	"github.com/custodia-labs/docchat/internal/core/ports/driven"
	"github.com/custodia-labs/docchat/internal/core/ports/driving"
	"github.com/custodia-labs/docchat/internal/logger"
)

// Ensure CrawlService implements the interface.
var _ driving.Crawler = (*CrawlService)(nil)

// pageOutcome is what a worker reports back to the coordinator.
type pageOutcome struct {
	url      string
	links    []string
	redirect string
	err      error
}

// CrawlService builds the corpus by walking a site from its seeds.
// One coordinator goroutine owns the frontier; a bounded pool of workers
// fetches, extracts and persists pages concurrently.
type CrawlService struct {
	fetcher       driven.Fetcher
	extractor     driven.Extractor
	artifacts     driven.ArtifactStore
	controlTokens []string
	now           func() time.Time

	mu     sync.RWMutex
	status driving.CrawlStatus
}

// NewCrawlService creates a crawl service. Every occurrence of a control
// token in extracted text is replaced with a single space.
func NewCrawlService(
	fetcher driven.Fetcher,
	extractor driven.Extractor,
	artifacts driven.ArtifactStore,
	controlTokens []string,
) *CrawlService {
	return &CrawlService{
		fetcher:       fetcher,
		extractor:     extractor,
		artifacts:     artifacts,
		controlTokens: controlTokens,
		now:           time.Now,
	}
}

// Status returns progress of the current or last crawl.
func (s *CrawlService) Status() driving.CrawlStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Crawl walks the site until no queued URL remains.
// Per-page failures are logged and counted; only cancellation and
// invalid requests are returned as errors.
//
//nolint:gocyclo // Coordinator loop with necessary select arms
func (s *CrawlService) Crawl(ctx context.Context, req domain.CrawlRequest) (*domain.CrawlReport, error) {
	if s.fetcher == nil || s.extractor == nil || s.artifacts == nil {
		return nil, errors.New("crawl service not fully configured")
	}
	if len(req.Seeds) == 0 {
		return nil, fmt.Errorf("%w: at least one seed URL is required", domain.ErrInvalidInput)
	}
	workers := req.Workers
	if workers <= 0 {
		workers = 1
	}

	start := s.now()
	scope := NewScopeFilter(req.AllowedDomains, req.PathPrefixes, req.Seeds)
	frontier := NewFrontier(req.MaxPages)
	report := &domain.CrawlReport{}

	for _, seed := range req.Seeds {
		canonical, err := domain.CanonicalURL(seed)
		if err != nil {
			return nil, fmt.Errorf("seed %q: %w", seed, err)
		}
		if !scope.InScope(canonical) {
			logger.Warn("Seed %s is outside the crawl scope, skipping", canonical)
			report.Rejected++
			continue
		}
		if frontier.Offer(canonical) == CapReached {
			report.Capped++
		}
	}
	if frontier.Pending() == 0 {
		return nil, fmt.Errorf("%w: no seed URL is in scope (domains %v, prefixes %v)",
			domain.ErrInvalidInput, scope.Domains(), req.PathPrefixes)
	}

	logger.Section("Crawl")
	logger.Info("Crawling %d seeds with %d workers, domains %v, prefixes %v",
		frontier.Pending(), workers, scope.Domains(), req.PathPrefixes)

	s.setStatus(driving.CrawlStatus{Running: true, Pending: frontier.Pending()})
	defer s.finishStatus()

	work := make(chan string)
	results := make(chan pageOutcome)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			for url := range work {
				out := s.processPage(gctx, url)
				select {
				case results <- out:
				case <-gctx.Done():
					return nil
				}
			}
			return nil
		})
	}

	var next string
	for {
		if next == "" {
			if url, ok := frontier.Next(); ok {
				next = url
			}
		}
		if next == "" && frontier.Done() {
			break
		}

		var dispatch chan<- string
		if next != "" {
			dispatch = work
		}

		select {
		case dispatch <- next:
			next = ""
		case out := <-results:
			s.record(out, scope, frontier, report)
		case <-ctx.Done():
			close(work)
			_ = g.Wait()
			report.Duration = s.now().Sub(start)
			logger.Warn("Crawl cancelled after %d pages", report.Fetched)
			return report, ctx.Err()
		}
	}

	close(work)
	_ = g.Wait()

	report.Duration = s.now().Sub(start)
	if err := ctx.Err(); err != nil {
		return report, err
	}
	logger.Info("Crawl finished: %d fetched, %d failed, %d redirects, %d out of scope, %d duplicate links, %d over the page cap in %s",
		report.Fetched, report.Failed, report.Redirects, report.Rejected, report.Duplicates, report.Capped, report.Duration)

	return report, nil
}

// record applies a worker outcome to the frontier. It runs only on the
// coordinator goroutine.
func (s *CrawlService) record(
	out pageOutcome, scope *ScopeFilter, frontier *Frontier, report *domain.CrawlReport,
) {
	if out.err != nil {
		frontier.MarkFailed(out.url)
		report.Failed++
		logger.Warn("Abandoned %s: %v", out.url, out.err)
		s.updateStatus(report, frontier)
		return
	}

	if out.redirect != "" {
		frontier.MarkRedirected(out.url)
		report.Redirects++
		logger.Debug("%s redirects to %s", out.url, out.redirect)
		s.discover(out.redirect, scope, frontier, report)
		s.updateStatus(report, frontier)
		return
	}

	frontier.MarkFetched(out.url)
	report.Fetched++

	for _, link := range out.links {
		s.discover(link, scope, frontier, report)
	}

	s.updateStatus(report, frontier)
}

// discover passes a canonical URL found on a page or in a redirect through
// the scope filter and the frontier.
func (s *CrawlService) discover(
	link string, scope *ScopeFilter, frontier *Frontier, report *domain.CrawlReport,
) {
	if !scope.InScope(link) {
		report.Rejected++
		return
	}
	switch frontier.Offer(link) {
	case AlreadySeen:
		report.Duplicates++
	case CapReached:
		report.Capped++
	case Admitted:
		logger.Debug("Queued %s", link)
	}
}

// processPage fetches, extracts and persists one page and returns its
// outbound links resolved to canonical absolute URLs.
func (s *CrawlService) processPage(ctx context.Context, url string) pageOutcome {
	logger.Debug("Fetching %s", url)

	page, err := s.fetcher.Fetch(ctx, url)
	if err != nil {
		return pageOutcome{url: url, err: err}
	}
	if page.Redirect != "" {
		target, err := domain.CanonicalURL(page.Redirect)
		if err != nil {
			return pageOutcome{url: url, err: fmt.Errorf("%w: redirect to %q: %w", domain.ErrFetch, page.Redirect, err)}
		}
		return pageOutcome{url: url, redirect: target}
	}

	extraction, err := s.extractor.Extract(ctx, page)
	if err != nil {
		return pageOutcome{url: url, err: err}
	}

	artifact := &domain.TextArtifact{
		ID:        domain.ArtifactID(url),
		URL:       url,
		Title:     extraction.Title,
		Text:      s.scrub(extraction.Text),
		FetchedAt: s.now(),
	}
	if err := s.artifacts.Save(ctx, artifact); err != nil {
		return pageOutcome{url: url, err: fmt.Errorf("save artifact: %w", err)}
	}

	base := url
	if page.FinalURL != "" {
		if canonical, err := domain.CanonicalURL(page.FinalURL); err == nil {
			base = canonical
		}
	}
	links := make([]string, 0, len(extraction.Links))
	for _, href := range extraction.Links {
		resolved, err := domain.ResolveURL(base, href)
		if err != nil {
			continue
		}
		links = append(links, resolved)
	}

	logger.Debug("Saved %s as %s (%d links)", url, artifact.ID, len(links))
	return pageOutcome{url: url, links: links}
}

// scrub replaces reserved control tokens with a single space.
func (s *CrawlService) scrub(text string) string {
	for _, token := range s.controlTokens {
		if token == "" {
			continue
		}
		text = strings.ReplaceAll(text, token, " ")
	}
	return text
}

func (s *CrawlService) setStatus(status driving.CrawlStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
}

func (s *CrawlService) updateStatus(report *domain.CrawlReport, frontier *Frontier) {
	s.setStatus(driving.CrawlStatus{
		Running: true,
		Fetched: report.Fetched,
		Failed:  report.Failed,
		Pending: frontier.Pending(),
	})
}

func (s *CrawlService) finishStatus() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.Running = false
}
