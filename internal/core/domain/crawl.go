package domain

import "time"

// URLState is the lifecycle state of a discovered URL.
// Undiscovered URLs have no state at all.
type URLState string

// URL lifecycle states.
const (
	// URLQueued means the URL has been admitted to the frontier.
	URLQueued URLState = "queued"

	// URLFetched means the page was fetched and its artifact emitted.
	URLFetched URLState = "fetched"

	// URLFailed means fetch or extraction failed; the URL is abandoned for the run.
	URLFailed URLState = "failed"

	// URLRedirected means the server answered with a redirect; the target
	// went through the scope filter and frontier as a new discovery.
	URLRedirected URLState = "redirected"
)

// CrawlRequest configures one crawl run.
type CrawlRequest struct {
	// Seeds are the start URLs.
	Seeds []string

	// AllowedDomains restricts crawling to these hosts.
	// Empty means the seed hosts.
	AllowedDomains []string

	// PathPrefixes restricts crawling to these path subtrees.
	// Empty means every path on an allowed domain.
	PathPrefixes []string

	// Workers is the number of concurrent fetches.
	Workers int

	// MaxPages caps the number of URLs admitted to the frontier. Zero is unlimited.
	MaxPages int
}

// CrawlReport summarises a crawl run.
type CrawlReport struct {
	// Fetched is the number of artifacts written.
	Fetched int

	// Failed is the number of URLs abandoned after fetch or extraction failure.
	Failed int

	// Rejected is the number of discovered links dropped as out of scope.
	Rejected int

	// Duplicates is the number of discoveries of already-known URLs.
	Duplicates int

	// Redirects is the number of fetched URLs that answered with a redirect.
	Redirects int

	// Capped is the number of new in-scope URLs dropped because MaxPages
	// was reached.
	Capped int

	// Duration is the wall time of the run.
	Duration time.Duration
}

// FetchedPage is the raw response for one URL.
type FetchedPage struct {
	// URL is the requested canonical URL.
	URL string

	// FinalURL is the URL the body was served from; links resolve against it.
	FinalURL string

	// Redirect is the absolute target of a 3xx response. Redirects are
	// never followed by the fetcher; a page with a Redirect has no body.
	Redirect string

	// StatusCode is the HTTP status.
	StatusCode int

	// ContentType is the response media type.
	ContentType string

	// Body is the response body.
	Body []byte
}

// Extraction is the result of converting a page to text.
type Extraction struct {
	// Title is the document title, if any.
	Title string

	// Text is the normalised plain text.
	Text string

	// Links are raw href values in document order.
	Links []string
}
