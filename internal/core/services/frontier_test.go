package services

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docchat/internal/core/domain"
)

func TestFrontier_OfferOnce(t *testing.T) {
	f := NewFrontier(0)

	assert.Equal(t, Admitted, f.Offer("https://docs.example/a"))
	assert.Equal(t, AlreadySeen, f.Offer("https://docs.example/a"))
	assert.Equal(t, 1, f.Pending())
}

func TestFrontier_NoRequeueAfterFetched(t *testing.T) {
	f := NewFrontier(0)
	require.Equal(t, Admitted, f.Offer("https://docs.example/a"))

	url, ok := f.Next()
	require.True(t, ok)
	f.MarkFetched(url)

	assert.Equal(t, AlreadySeen, f.Offer("https://docs.example/a"))
	state, seen := f.State("https://docs.example/a")
	assert.True(t, seen)
	assert.Equal(t, domain.URLFetched, state)
	assert.True(t, f.Done())
}

func TestFrontier_FailedStaysDiscovered(t *testing.T) {
	f := NewFrontier(0)
	require.Equal(t, Admitted, f.Offer("https://docs.example/broken"))

	url, _ := f.Next()
	f.MarkFailed(url)

	assert.Equal(t, AlreadySeen, f.Offer("https://docs.example/broken"))
	state, _ := f.State(url)
	assert.Equal(t, domain.URLFailed, state)
}

func TestFrontier_FIFOOrder(t *testing.T) {
	f := NewFrontier(0)
	f.Offer("a")
	f.Offer("b")
	f.Offer("c")

	var got []string
	for {
		url, ok := f.Next()
		if !ok {
			break
		}
		got = append(got, url)
	}

	assert.Equal(t, []string{"a", "b", "c"}, got)
}

func TestFrontier_DoneTracksInFlight(t *testing.T) {
	f := NewFrontier(0)
	f.Offer("a")

	assert.False(t, f.Done())
	url, _ := f.Next()
	assert.Equal(t, 0, f.Pending())
	assert.Equal(t, 1, f.InFlight())
	assert.False(t, f.Done(), "in-flight URLs keep the crawl alive")

	f.MarkFetched(url)
	assert.True(t, f.Done())
}

func TestFrontier_MaxPages(t *testing.T) {
	f := NewFrontier(2)

	assert.Equal(t, Admitted, f.Offer("a"))
	assert.Equal(t, Admitted, f.Offer("b"))
	assert.Equal(t, CapReached, f.Offer("c"))
	assert.Equal(t, AlreadySeen, f.Offer("a"), "known URLs are duplicates even at the cap")
	assert.Equal(t, 2, f.Seen())
}

func TestFrontier_RedirectedIsTerminal(t *testing.T) {
	f := NewFrontier(0)
	require.Equal(t, Admitted, f.Offer("https://docs.example/old"))

	url, _ := f.Next()
	f.MarkRedirected(url)

	state, _ := f.State(url)
	assert.Equal(t, domain.URLRedirected, state)
	assert.Equal(t, AlreadySeen, f.Offer(url))
	assert.True(t, f.Done())
}

func TestFrontier_ConcurrentOfferAdmitsOnce(t *testing.T) {
	f := NewFrontier(0)

	var wg sync.WaitGroup
	var mu sync.Mutex
	admitted := 0

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				if f.Offer(fmt.Sprintf("https://docs.example/%d", j)) == Admitted {
					mu.Lock()
					admitted++
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 20, admitted)
	assert.Equal(t, 20, f.Pending())
}
