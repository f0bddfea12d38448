package domain

import "time"

// Turn is one answered question within a session.
type Turn struct {
	Question string    `json:"question"`
	Answer   string    `json:"answer"`
	AskedAt  time.Time `json:"asked_at"`
}

// Session is the ordered turn history of one conversation.
type Session struct {
	// ID is the conversation identifier supplied by the caller.
	ID string

	// Turns are ordered oldest first.
	Turns []Turn

	// CreatedAt is when the session was first seen.
	CreatedAt time.Time

	// UpdatedAt is when the last turn was appended.
	UpdatedAt time.Time
}

// Len returns the number of turns.
func (s *Session) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Turns)
}

// Answer is the result of answering one question.
type Answer struct {
	// SessionID is the conversation the question belongs to.
	SessionID string

	// Question is the question as asked.
	Question string

	// Text is the generated answer.
	Text string

	// Sources are the retrieved chunks that formed the context.
	Sources []SearchResult

	// StandaloneQuestion is the rewritten question used for retrieval when
	// question condensing is on. Empty otherwise.
	StandaloneQuestion string

	// Usage is the token usage of every model call made for this answer.
	Usage TokenUsage
}

// TokenUsage counts the tokens consumed by model calls. Providers that do
// not report usage leave it zero.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// Total returns prompt plus completion tokens.
func (u TokenUsage) Total() int {
	return u.PromptTokens + u.CompletionTokens
}

// Add returns the sum of two usages.
func (u TokenUsage) Add(other TokenUsage) TokenUsage {
	return TokenUsage{
		PromptTokens:     u.PromptTokens + other.PromptTokens,
		CompletionTokens: u.CompletionTokens + other.CompletionTokens,
	}
}
