package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	// uriScheme is the custom URI scheme for docchat resources.
	uriScheme = "docchat://"
)

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "sessions",
		Name:        "sessions",
		Description: "IDs of the known conversation sessions",
		MIMEType:    "application/json",
	}, s.handleSessionsResource)

	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "sessions/{sessionId}",
		Name:        "session-history",
		Description: "Questions and answers of one conversation",
		MIMEType:    "application/json",
	}, s.handleSessionHistoryResource)

	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "index",
		Name:        "index",
		Description: "Statistics of the documentation index",
		MIMEType:    "application/json",
	}, s.handleIndexResource)
}

// handleSessionsResource lists the known session IDs.
func (s *Server) handleSessionsResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	ids, err := s.ports.Answer.Sessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	if ids == nil {
		ids = []string{}
	}
	return jsonResource(req.Params.URI, ids)
}

// handleSessionHistoryResource returns the turns of one session.
func (s *Server) handleSessionHistoryResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	sessionID := extractSessionID(req.Params.URI)
	if sessionID == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	turns, err := s.ports.Answer.History(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}
	return jsonResource(req.Params.URI, HistoryOutput{
		SessionID: sessionID,
		Turns:     turnOutputs(turns),
	})
}

// handleIndexResource reports index statistics.
func (s *Server) handleIndexResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.Ingester == nil {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	stats, err := s.ports.Ingester.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading index stats: %w", err)
	}

	type indexInfo struct {
		Artifacts  int    `json:"artifacts"`
		Chunks     int    `json:"chunks"`
		Model      string `json:"model"`
		Dimensions int    `json:"dimensions"`
	}
	return jsonResource(req.Params.URI, indexInfo{
		Artifacts:  stats.Artifacts,
		Chunks:     stats.Chunks,
		Model:      stats.Model,
		Dimensions: stats.Dimensions,
	})
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling %s: %w", uri, err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// extractSessionID extracts the session ID from a URI like docchat://sessions/{sessionId}.
func extractSessionID(uri string) string {
	const prefix = uriScheme + "sessions/"

	if !strings.HasPrefix(uri, prefix) {
		return ""
	}

	id := strings.TrimPrefix(uri, prefix)
	if strings.Contains(id, "/") {
		return ""
	}
	return id
}
