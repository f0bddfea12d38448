// Package redis provides a driven.SessionStore backed by Redis, so that
// conversations survive restarts and can be shared between processes.
//
// Each session is a list of JSON-encoded turns plus a metadata hash. Both
// keys share a TTL that is refreshed whenever the session is touched.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/custodia-labs/docchat/internal/core/domain"
	"github.com/custodia-labs/docchat/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.SessionStore = (*Store)(nil)

const (
	keyPrefix  = "docchat:session:"
	indexKey   = "docchat:sessions"
	fieldStart = "created_at"
	fieldLast  = "updated_at"
)

// Store keeps sessions in Redis.
type Store struct {
	client *goredis.Client
	ttl    time.Duration
	now    func() time.Time
}

// New wraps an existing client. A zero ttl keeps sessions forever.
func New(client *goredis.Client, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl, now: time.Now}
}

// Open connects to addr and verifies the connection.
func Open(ctx context.Context, addr string, db int, ttl time.Duration) (*Store, error) {
	client := goredis.NewClient(&goredis.Options{Addr: addr, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: redis at %s: %v", domain.ErrConfiguration, addr, err)
	}
	return New(client, ttl), nil
}

// Close closes the client.
func (s *Store) Close() error {
	return s.client.Close()
}

func metaKey(id string) string  { return keyPrefix + id + ":meta" }
func turnsKey(id string) string { return keyPrefix + id + ":turns" }

// GetOrCreate returns the session, creating its metadata on first use.
func (s *Store) GetOrCreate(ctx context.Context, id string) (*domain.Session, error) {
	now := s.now().UTC().Format(time.RFC3339Nano)

	_, err := s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.HSetNX(ctx, metaKey(id), fieldStart, now)
		pipe.HSetNX(ctx, metaKey(id), fieldLast, now)
		pipe.SAdd(ctx, indexKey, id)
		s.touch(ctx, pipe, id)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create session %s: %w", id, err)
	}

	meta, err := s.client.HGetAll(ctx, metaKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("read session %s: %w", id, err)
	}
	turns, err := s.History(ctx, id)
	if err != nil {
		return nil, err
	}

	return &domain.Session{
		ID:        id,
		Turns:     turns,
		CreatedAt: parseTime(meta[fieldStart]),
		UpdatedAt: parseTime(meta[fieldLast]),
	}, nil
}

// Append pushes a turn and refreshes the session TTL in one transaction.
func (s *Store) Append(ctx context.Context, id string, turn domain.Turn) error {
	data, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("encode turn: %w", err)
	}
	now := s.now().UTC().Format(time.RFC3339Nano)

	_, err = s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.RPush(ctx, turnsKey(id), data)
		pipe.HSetNX(ctx, metaKey(id), fieldStart, now)
		pipe.HSet(ctx, metaKey(id), fieldLast, now)
		pipe.SAdd(ctx, indexKey, id)
		s.touch(ctx, pipe, id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("append turn to session %s: %w", id, err)
	}
	return nil
}

// History returns the turns oldest first.
func (s *Store) History(ctx context.Context, id string) ([]domain.Turn, error) {
	raw, err := s.client.LRange(ctx, turnsKey(id), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read history of session %s: %w", id, err)
	}

	turns := make([]domain.Turn, 0, len(raw))
	for i, item := range raw {
		var turn domain.Turn
		if err := json.Unmarshal([]byte(item), &turn); err != nil {
			return nil, fmt.Errorf("decode turn %d of session %s: %w", i, id, err)
		}
		turns = append(turns, turn)
	}
	return turns, nil
}

// List returns live session IDs, dropping index entries whose keys expired.
func (s *Store) List(ctx context.Context) ([]string, error) {
	ids, err := s.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	live := make([]string, 0, len(ids))
	for _, id := range ids {
		n, err := s.client.Exists(ctx, metaKey(id)).Result()
		if err != nil {
			return nil, fmt.Errorf("check session %s: %w", id, err)
		}
		if n == 0 {
			s.client.SRem(ctx, indexKey, id)
			continue
		}
		live = append(live, id)
	}
	slices.Sort(live)
	return live, nil
}

// Delete removes the session keys.
func (s *Store) Delete(ctx context.Context, id string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Del(ctx, metaKey(id), turnsKey(id))
		pipe.SRem(ctx, indexKey, id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete session %s: %w", id, err)
	}
	return nil
}

func (s *Store) touch(ctx context.Context, pipe goredis.Pipeliner, id string) {
	if s.ttl <= 0 {
		return
	}
	pipe.Expire(ctx, metaKey(id), s.ttl)
	pipe.Expire(ctx, turnsKey(id), s.ttl)
}

func parseTime(v string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}
	}
	return t
}
