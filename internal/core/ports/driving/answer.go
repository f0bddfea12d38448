package driving

import (
	"context"

	"github.com/custodia-labs/docchat/internal/core/domain"
)

// AnswerService answers questions within a conversation.
// It is the only surface chat front ends call.
type AnswerService interface {
	// Answer answers a question in the given session. On failure the
	// session is left unchanged.
	Answer(ctx context.Context, sessionID, question string) (*domain.Answer, error)

	// History returns the session's turns, oldest first.
	History(ctx context.Context, sessionID string) ([]domain.Turn, error)

	// Sessions lists known session IDs.
	Sessions(ctx context.Context) ([]string, error)

	// Reset forgets a session's history.
	Reset(ctx context.Context, sessionID string) error
}
