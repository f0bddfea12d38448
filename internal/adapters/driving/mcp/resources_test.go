package mcp

import (
	"context"
	"errors"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docchat/internal/core/domain"
)

func TestExtractSessionID(t *testing.T) {
	tests := []struct {
		name     string
		uri      string
		expected string
	}{
		{"valid session URI", "docchat://sessions/abc-123", "abc-123"},
		{"invalid prefix", "file://sessions/abc-123", ""},
		{"nested path", "docchat://sessions/abc/extra", ""},
		{"sessions root", "docchat://sessions", ""},
		{"empty URI", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, extractSessionID(tt.uri))
		})
	}
}

// Helper to create a ReadResourceRequest with the given URI.
func makeReadResourceRequest(uri string) *mcp.ReadResourceRequest {
	return &mcp.ReadResourceRequest{
		Params: &mcp.ReadResourceParams{
			URI: uri,
		},
	}
}

func TestServer_handleSessionsResource(t *testing.T) {
	ctx := context.Background()

	t.Run("lists sessions", func(t *testing.T) {
		answers := newMockAnswerService()
		answers.sessions = []string{"a", "b"}
		server := newTestServer(answers, &mockSearchService{})

		result, err := server.handleSessionsResource(ctx, makeReadResourceRequest("docchat://sessions"))

		require.NoError(t, err)
		require.Len(t, result.Contents, 1)
		assert.JSONEq(t, `["a","b"]`, result.Contents[0].Text)
		assert.Equal(t, "application/json", result.Contents[0].MIMEType)
	})

	t.Run("no sessions is an empty list", func(t *testing.T) {
		server := newTestServer(newMockAnswerService(), &mockSearchService{})

		result, err := server.handleSessionsResource(ctx, makeReadResourceRequest("docchat://sessions"))

		require.NoError(t, err)
		assert.Equal(t, "[]", result.Contents[0].Text)
	})

	t.Run("returns error on list failure", func(t *testing.T) {
		answers := newMockAnswerService()
		answers.err = errors.New("redis down")
		server := newTestServer(answers, &mockSearchService{})

		_, err := server.handleSessionsResource(ctx, makeReadResourceRequest("docchat://sessions"))

		require.Error(t, err)
		assert.Contains(t, err.Error(), "listing sessions")
	})
}

func TestServer_handleSessionHistoryResource(t *testing.T) {
	ctx := context.Background()

	t.Run("returns history", func(t *testing.T) {
		answers := newMockAnswerService()
		answers.turns["s1"] = []domain.Turn{{Question: "What is a scheduler?", Answer: "A component."}}
		server := newTestServer(answers, &mockSearchService{})

		result, err := server.handleSessionHistoryResource(ctx, makeReadResourceRequest("docchat://sessions/s1"))

		require.NoError(t, err)
		require.Len(t, result.Contents, 1)
		assert.Contains(t, result.Contents[0].Text, "What is a scheduler?")
		assert.Contains(t, result.Contents[0].Text, `"session_id": "s1"`)
	})

	t.Run("invalid URI returns not found", func(t *testing.T) {
		server := newTestServer(newMockAnswerService(), &mockSearchService{})

		_, err := server.handleSessionHistoryResource(ctx, makeReadResourceRequest("docchat://other/s1"))

		require.Error(t, err)
	})
}

func TestServer_handleIndexResource(t *testing.T) {
	ctx := context.Background()

	t.Run("without ingester returns not found", func(t *testing.T) {
		server := newTestServer(newMockAnswerService(), &mockSearchService{})

		_, err := server.handleIndexResource(ctx, makeReadResourceRequest("docchat://index"))

		require.Error(t, err)
	})

	t.Run("returns stats", func(t *testing.T) {
		server, err := NewServer(&Ports{
			Answer: newMockAnswerService(),
			Search: &mockSearchService{},
			Ingester: &mockIngester{stats: domain.IndexStats{
				Chunks: 42, Artifacts: 7, Dimensions: 1536, Model: "text-embedding-3-small",
			}},
		})
		require.NoError(t, err)

		result, err := server.handleIndexResource(ctx, makeReadResourceRequest("docchat://index"))

		require.NoError(t, err)
		assert.JSONEq(t,
			`{"artifacts":7,"chunks":42,"model":"text-embedding-3-small","dimensions":1536}`,
			result.Contents[0].Text)
	})

	t.Run("returns error on stats failure", func(t *testing.T) {
		server, err := NewServer(&Ports{
			Answer:   newMockAnswerService(),
			Search:   &mockSearchService{},
			Ingester: &mockIngester{err: domain.ErrIndexUnavailable},
		})
		require.NoError(t, err)

		_, err = server.handleIndexResource(ctx, makeReadResourceRequest("docchat://index"))

		assert.ErrorIs(t, err, domain.ErrIndexUnavailable)
	})
}
