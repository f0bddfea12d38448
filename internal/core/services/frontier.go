package services

import (
	"sync"

	"github.com/custodia-labs/docchat/internal/core/domain"
)

// Frontier is the crawl worklist: a FIFO of queued URLs plus the set of
// every URL ever admitted. A URL enters the queue at most once for the
// lifetime of the frontier; the dedup check and the enqueue happen under
// one lock.
type Frontier struct {
	mu       sync.Mutex
	pending  []string
	states   map[string]domain.URLState
	inFlight int
	maxPages int
}

// NewFrontier creates an empty frontier. maxPages caps the number of URLs
// ever admitted; zero means unlimited.
func NewFrontier(maxPages int) *Frontier {
	return &Frontier{
		states:   make(map[string]domain.URLState),
		maxPages: maxPages,
	}
}

// OfferResult says what Offer did with a URL.
type OfferResult int

// Offer outcomes.
const (
	// Admitted means the URL was enqueued.
	Admitted OfferResult = iota
	// AlreadySeen means the URL was admitted earlier in this run.
	AlreadySeen
	// CapReached means the URL is new but the page cap is exhausted.
	CapReached
)

// Offer admits url unless it was seen before or the page cap is reached.
func (f *Frontier) Offer(url string) OfferResult {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, seen := f.states[url]; seen {
		return AlreadySeen
	}
	if f.maxPages > 0 && len(f.states) >= f.maxPages {
		return CapReached
	}
	f.states[url] = domain.URLQueued
	f.pending = append(f.pending, url)
	return Admitted
}

// Next dequeues the oldest pending URL and counts it as in flight.
func (f *Frontier) Next() (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.pending) == 0 {
		return "", false
	}
	url := f.pending[0]
	f.pending[0] = ""
	f.pending = f.pending[1:]
	f.inFlight++
	return url, true
}

// MarkFetched records a successful fetch of an in-flight URL.
func (f *Frontier) MarkFetched(url string) {
	f.finish(url, domain.URLFetched)
}

// MarkRedirected records that an in-flight URL answered with a redirect.
func (f *Frontier) MarkRedirected(url string) {
	f.finish(url, domain.URLRedirected)
}

// MarkFailed records that an in-flight URL was abandoned.
func (f *Frontier) MarkFailed(url string) {
	f.finish(url, domain.URLFailed)
}

func (f *Frontier) finish(url string, state domain.URLState) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.states[url] != domain.URLQueued {
		return
	}
	f.states[url] = state
	if f.inFlight > 0 {
		f.inFlight--
	}
}

// State returns the lifecycle state of url and whether it was ever discovered.
func (f *Frontier) State(url string) (domain.URLState, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	state, ok := f.states[url]
	return state, ok
}

// Pending returns the number of queued URLs not yet dequeued.
func (f *Frontier) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pending)
}

// InFlight returns the number of dequeued URLs without an outcome.
func (f *Frontier) InFlight() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inFlight
}

// Done reports whether the crawl has terminated: nothing is queued and
// nothing is in flight.
func (f *Frontier) Done() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pending) == 0 && f.inFlight == 0
}

// Seen returns the number of URLs ever admitted.
func (f *Frontier) Seen() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.states)
}
