package driven

import (
	"context"

	"github.com/custodia-labs/docchat/internal/core/domain"
)

// SessionStore keeps conversation history keyed by session ID.
// Stores never prune turns; bounding history is the caller's concern.
type SessionStore interface {
	// GetOrCreate returns the session, creating an empty one on first use.
	// Calling it repeatedly with the same ID returns the same session.
	GetOrCreate(ctx context.Context, id string) (*domain.Session, error)

	// Append adds a turn to the end of the session, creating it if needed.
	Append(ctx context.Context, id string, turn domain.Turn) error

	// History returns the turns of a session, oldest first.
	// An unknown session has an empty history.
	History(ctx context.Context, id string) ([]domain.Turn, error)

	// List returns the IDs of known sessions, sorted.
	List(ctx context.Context) ([]string, error)

	// Delete removes a session. Deleting an unknown session is not an error.
	Delete(ctx context.Context, id string) error
}
