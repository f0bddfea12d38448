// Package messages defines Bubbletea message types for the TUI.
// Messages represent events and commands that flow through the Elm architecture.
package messages

import (
	"github.com/custodia-labs/docchat/internal/core/domain"
)

// QuestionAsked is sent when the user submits a question.
type QuestionAsked struct {
	SessionID string
	Question  string
}

// AnswerReceived carries the answer to a question back to the model.
type AnswerReceived struct {
	Question string
	Answer   *domain.Answer
	Err      error
}

// HistoryLoaded carries the turns of the current session.
type HistoryLoaded struct {
	SessionID string
	Turns     []domain.Turn
	Err       error
}

// SessionReset signals the conversation was forgotten.
type SessionReset struct {
	SessionID string
	Err       error
}

// SearchCompleted carries search results back to the model.
type SearchCompleted struct {
	Query   string
	Results []domain.SearchResult
	Err     error
}

// ViewChanged is sent when navigating between views.
type ViewChanged struct {
	View ViewType
}

// ViewType identifies which view is currently active.
type ViewType int

const (
	// ViewChat is the conversation view.
	ViewChat ViewType = iota
	// ViewSearch is the retrieval-only view.
	ViewSearch
)

// String returns the string representation of the view type.
func (v ViewType) String() string {
	switch v {
	case ViewChat:
		return "chat"
	case ViewSearch:
		return "search"
	default:
		return "unknown"
	}
}

// Next returns the view after v in tab order.
func (v ViewType) Next() ViewType {
	if v == ViewChat {
		return ViewSearch
	}
	return ViewChat
}

// ErrorOccurred signals that an error happened.
type ErrorOccurred struct {
	Err error
}
