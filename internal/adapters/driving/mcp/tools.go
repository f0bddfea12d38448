package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/docchat/internal/core/domain"
	"github.com/custodia-labs/docchat/internal/logger"
)

// defaultSearchLimit applies when the caller gives no limit.
const defaultSearchLimit = 4

// AskInput is the input schema for the ask tool.
type AskInput struct {
	Question  string `json:"question" jsonschema:"the question to answer from the documentation"`
	SessionID string `json:"session_id,omitempty" jsonschema:"conversation to continue; omit to start a new one"`
}

// AskOutput is the output schema for the ask tool.
type AskOutput struct {
	Answer             string            `json:"answer"`
	SessionID          string            `json:"session_id"`
	Sources            []string          `json:"sources"`
	StandaloneQuestion string            `json:"standalone_question,omitempty"`
	Usage              domain.TokenUsage `json:"usage"`
}

// SearchInput is the input schema for the search tool.
type SearchInput struct {
	Query string `json:"query" jsonschema:"the search query"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of chunks to return (default 4)"`
	Mode  string `json:"mode,omitempty" jsonschema:"vector, keyword or hybrid; omit for the configured default"`
}

// SearchOutput is the output schema for the search tool.
type SearchOutput struct {
	Results []SearchResultOutput `json:"results"`
	Count   int                  `json:"count"`
}

// SearchResultOutput represents a single retrieved chunk.
type SearchResultOutput struct {
	ChunkID    string   `json:"chunk_id"`
	URL        string   `json:"url"`
	Position   int      `json:"position"`
	Score      float64  `json:"score"`
	Highlights []string `json:"highlights,omitempty"`
	Content    string   `json:"content"`
}

// HistoryInput is the input schema for the history tool.
type HistoryInput struct {
	SessionID string `json:"session_id" jsonschema:"the conversation to show"`
}

// HistoryOutput is the output schema for the history tool.
type HistoryOutput struct {
	SessionID string       `json:"session_id"`
	Turns     []TurnOutput `json:"turns"`
}

// TurnOutput is one question and its answer.
type TurnOutput struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
	AskedAt  string `json:"asked_at"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name: "ask",
		Description: "Answer a question from the indexed documentation. " +
			"Pass the returned session_id on follow-up questions to keep the conversation.",
	}, s.handleAsk)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search",
		Description: "Retrieve the documentation chunks most relevant to a query",
	}, s.handleSearch)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "history",
		Description: "Show the questions and answers of a conversation",
	}, s.handleHistory)
}

// handleAsk handles the ask tool invocation.
func (s *Server) handleAsk(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input AskInput,
) (*mcp.CallToolResult, AskOutput, error) {
	sessionID := strings.TrimSpace(input.SessionID)
	if sessionID == "" {
		sessionID = uuid.NewString()
		logger.Debug("MCP ask started session %s", sessionID)
	}

	answer, err := s.ports.Answer.Answer(ctx, sessionID, input.Question)
	if err != nil {
		return nil, AskOutput{}, toolError(err)
	}

	output := AskOutput{
		Answer:             answer.Text,
		SessionID:          sessionID,
		Sources:            []string{},
		StandaloneQuestion: answer.StandaloneQuestion,
		Usage:              answer.Usage,
	}
	seen := make(map[string]bool)
	for _, src := range answer.Sources {
		u := src.Chunk.SourceURL
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		output.Sources = append(output.Sources, u)
	}

	return nil, output, nil
}

// handleSearch handles the search tool invocation.
func (s *Server) handleSearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	opts := domain.SearchOptions{Limit: limit, Mode: domain.SearchMode(input.Mode)}
	results, err := s.ports.Search.Search(ctx, input.Query, opts)
	if err != nil {
		return nil, SearchOutput{}, toolError(err)
	}

	output := SearchOutput{
		Results: make([]SearchResultOutput, len(results)),
		Count:   len(results),
	}

	for i := range results {
		output.Results[i] = SearchResultOutput{
			ChunkID:    results[i].Chunk.ID,
			URL:        results[i].Chunk.SourceURL,
			Position:   results[i].Chunk.Position,
			Score:      results[i].Score,
			Highlights: results[i].Highlights,
			Content:    results[i].Chunk.Content,
		}
	}

	return nil, output, nil
}

// handleHistory handles the history tool invocation.
func (s *Server) handleHistory(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input HistoryInput,
) (*mcp.CallToolResult, HistoryOutput, error) {
	if strings.TrimSpace(input.SessionID) == "" {
		return nil, HistoryOutput{}, toolError(fmt.Errorf("%w: session_id is required", domain.ErrInvalidInput))
	}

	turns, err := s.ports.Answer.History(ctx, input.SessionID)
	if err != nil {
		return nil, HistoryOutput{}, toolError(err)
	}

	output := HistoryOutput{
		SessionID: input.SessionID,
		Turns:     turnOutputs(turns),
	}
	return nil, output, nil
}

func turnOutputs(turns []domain.Turn) []TurnOutput {
	out := make([]TurnOutput, len(turns))
	for i, t := range turns {
		out[i] = TurnOutput{
			Question: t.Question,
			Answer:   t.Answer,
			AskedAt:  t.AskedAt.UTC().Format("2006-01-02T15:04:05Z"),
		}
	}
	return out
}
