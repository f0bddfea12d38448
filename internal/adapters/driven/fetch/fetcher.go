// Package fetch retrieves pages over HTTP for the crawler.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/docchat/internal/core/domain"
	"github.com/custodia-labs/docchat/internal/core/ports/driven"
)

// Ensure Fetcher implements the interface.
var _ driven.Fetcher = (*Fetcher)(nil)

// Config configures the fetcher.
type Config struct {
	UserAgent    string
	Timeout      time.Duration
	MaxBodyBytes int64
	// RequestsPerSecond of zero disables throttling.
	RequestsPerSecond float64
	Burst             int
}

// ConfigFromSettings maps crawl settings to fetcher configuration.
func ConfigFromSettings(s domain.CrawlSettings) Config {
	return Config{
		UserAgent:         s.UserAgent,
		Timeout:           time.Duration(s.TimeoutSeconds) * time.Second,
		MaxBodyBytes:      s.MaxBodyBytes,
		RequestsPerSecond: s.RequestsPerSecond,
		Burst:             s.Burst,
	}
}

// Fetcher is a rate-limited HTTP GET client.
type Fetcher struct {
	client  *http.Client
	limiter *RateLimiter
	cfg     Config
}

// New creates a fetcher with its own HTTP client. The client does not
// follow redirects; they are returned to the caller as FetchedPage.Redirect.
func New(cfg Config) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 10 << 20
	}
	return &Fetcher{
		client: &http.Client{
			Timeout: cfg.Timeout,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		limiter: NewRateLimiter(cfg.RequestsPerSecond, cfg.Burst),
		cfg:     cfg,
	}
}

// Fetch GETs url. Network errors, HTTP status >= 400, redirects without a
// Location and oversized bodies are reported as domain.ErrFetch. A redirect
// yields a page whose Redirect holds the absolute target.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*domain.FetchedPage, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrFetch, url, err)
	}
	if f.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", f.cfg.UserAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/markdown;q=0.9,text/plain;q=0.9,*/*;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrFetch, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		f.limiter.RecordRateLimitError(retryAfter(resp.Header.Get("Retry-After")))
		return nil, fmt.Errorf("%w: %s: HTTP %d: %w", domain.ErrFetch, url, resp.StatusCode, domain.ErrRateLimited)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("%w: %s: HTTP %d", domain.ErrFetch, url, resp.StatusCode)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return f.redirect(url, resp)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.cfg.MaxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: reading body: %v", domain.ErrFetch, url, err)
	}
	if int64(len(body)) > f.cfg.MaxBodyBytes {
		return nil, fmt.Errorf("%w: %s: body exceeds %d bytes", domain.ErrFetch, url, f.cfg.MaxBodyBytes)
	}

	return &domain.FetchedPage{
		URL:         url,
		FinalURL:    url,
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}

func (f *Fetcher) redirect(url string, resp *http.Response) (*domain.FetchedPage, error) {
	location := strings.TrimSpace(resp.Header.Get("Location"))
	if location == "" {
		return nil, fmt.Errorf("%w: %s: HTTP %d without Location", domain.ErrFetch, url, resp.StatusCode)
	}
	target, err := resp.Request.URL.Parse(location)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: bad Location %q: %v", domain.ErrFetch, url, location, err)
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	return &domain.FetchedPage{
		URL:        url,
		FinalURL:   url,
		StatusCode: resp.StatusCode,
		Redirect:   target.String(),
	}, nil
}

// retryAfter parses a Retry-After header given in seconds or as an HTTP date.
func retryAfter(header string) time.Duration {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0
	}
	if secs, err := strconv.Atoi(header); err == nil {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(header); err == nil {
		return time.Until(at)
	}
	return 0
}
