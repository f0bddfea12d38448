package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docchat/internal/core/domain"
)

func TestFetch_Success(t *testing.T) {
	var gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html><body>hello</body></html>"))
	}))
	defer server.Close()

	f := New(Config{UserAgent: "docchat-test"})
	page, err := f.Fetch(context.Background(), server.URL+"/docs/index")

	require.NoError(t, err)
	assert.Equal(t, "docchat-test", gotUA)
	assert.Equal(t, http.StatusOK, page.StatusCode)
	assert.Equal(t, "text/html; charset=utf-8", page.ContentType)
	assert.Equal(t, server.URL+"/docs/index", page.URL)
	assert.Equal(t, server.URL+"/docs/index", page.FinalURL)
	assert.Contains(t, string(page.Body), "hello")
}

func TestFetch_ReturnsRedirectWithoutFollowing(t *testing.T) {
	var newHits int32
	mux := http.NewServeMux()
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/new/page", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/new/page", func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&newHits, 1)
		_, _ = w.Write([]byte("moved"))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	page, err := New(Config{}).Fetch(context.Background(), server.URL+"/old")

	require.NoError(t, err)
	assert.Equal(t, http.StatusMovedPermanently, page.StatusCode)
	assert.Equal(t, server.URL+"/old", page.URL)
	assert.Equal(t, server.URL+"/old", page.FinalURL)
	assert.Equal(t, server.URL+"/new/page", page.Redirect)
	assert.Empty(t, page.Body)
	assert.Zero(t, atomic.LoadInt32(&newHits))
}

func TestFetch_RelativeRedirectResolvedAgainstRequest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Location", "../sibling")
		w.WriteHeader(http.StatusFound)
	}))
	defer server.Close()

	page, err := New(Config{}).Fetch(context.Background(), server.URL+"/docs/guide/page")

	require.NoError(t, err)
	assert.Equal(t, server.URL+"/docs/sibling", page.Redirect)
}

func TestFetch_RedirectWithoutLocation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusFound)
	}))
	defer server.Close()

	_, err := New(Config{}).Fetch(context.Background(), server.URL)

	assert.ErrorIs(t, err, domain.ErrFetch)
}

func TestFetch_HTTPErrorStatus(t *testing.T) {
	for _, status := range []int{http.StatusNotFound, http.StatusInternalServerError} {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(status)
		}))

		_, err := New(Config{}).Fetch(context.Background(), server.URL)
		server.Close()

		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrFetch)
		assert.NotErrorIs(t, err, domain.ErrRateLimited)
	}
}

func TestFetch_TooManyRequests(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Retry-After", "2")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	f := New(Config{})
	_, err := f.Fetch(context.Background(), server.URL)

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrFetch)
	assert.ErrorIs(t, err, domain.ErrRateLimited)
	assert.True(t, f.limiter.PausedUntil().After(time.Now()))
}

func TestFetch_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := New(Config{Timeout: time.Second}).Fetch(context.Background(), url)

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrFetch)
}

func TestFetch_BodyTooLarge(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 100)))
	}))
	defer server.Close()

	_, err := New(Config{MaxBodyBytes: 10}).Fetch(context.Background(), server.URL)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrFetch)

	page, err := New(Config{MaxBodyBytes: 100}).Fetch(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Len(t, page.Body, 100)
}

func TestFetch_InvalidURL(t *testing.T) {
	_, err := New(Config{}).Fetch(context.Background(), "http://[::1")
	assert.ErrorIs(t, err, domain.ErrFetch)
}

func TestFetch_CancelledContext(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		hits.Add(1)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(Config{RequestsPerSecond: 1, Burst: 1}).Fetch(ctx, server.URL)
	require.Error(t, err)
	assert.Zero(t, hits.Load())
}

func TestConfigFromSettings(t *testing.T) {
	s := domain.DefaultSettings().Crawl
	cfg := ConfigFromSettings(s)

	assert.Equal(t, s.UserAgent, cfg.UserAgent)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, s.MaxBodyBytes, cfg.MaxBodyBytes)
	assert.InDelta(t, s.RequestsPerSecond, cfg.RequestsPerSecond, 0.0001)
	assert.Equal(t, s.Burst, cfg.Burst)
}

func TestRetryAfter(t *testing.T) {
	assert.Equal(t, 5*time.Second, retryAfter("5"))
	assert.Zero(t, retryAfter(""))
	assert.Zero(t, retryAfter("soon"))

	future := time.Now().Add(time.Minute).UTC().Format(http.TimeFormat)
	d := retryAfter(future)
	assert.Greater(t, d, 50*time.Second)
}
