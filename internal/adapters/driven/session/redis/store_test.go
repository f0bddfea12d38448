package redis

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docchat/internal/core/domain"
)

func newTestStore(t *testing.T, ttl time.Duration) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return New(client, ttl), mr
}

func turn(n int) domain.Turn {
	return domain.Turn{
		Question: fmt.Sprintf("question %d", n),
		Answer:   fmt.Sprintf("answer %d", n),
		AskedAt:  time.Date(2026, 1, 1, 0, 0, n, 0, time.UTC),
	}
}

func TestOpen(t *testing.T) {
	mr := miniredis.RunT(t)

	store, err := Open(context.Background(), mr.Addr(), 0, time.Hour)
	require.NoError(t, err)
	assert.NoError(t, store.Close())
}

func TestOpen_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := Open(context.Background(), addr, 0, time.Hour)
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestGetOrCreate_Idempotent(t *testing.T) {
	store, mr := newTestStore(t, 0)
	ctx := context.Background()

	first, err := store.GetOrCreate(ctx, "chat-1")
	require.NoError(t, err)
	assert.Equal(t, "chat-1", first.ID)
	assert.Empty(t, first.Turns)
	assert.False(t, first.CreatedAt.IsZero())

	second, err := store.GetOrCreate(ctx, "chat-1")
	require.NoError(t, err)
	assert.Equal(t, first.CreatedAt, second.CreatedAt)

	assert.True(t, mr.Exists(metaKey("chat-1")))
}

func TestAppendAndHistory(t *testing.T) {
	store, _ := newTestStore(t, 0)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		require.NoError(t, store.Append(ctx, "chat-1", turn(i)))
	}

	history, err := store.History(ctx, "chat-1")
	require.NoError(t, err)
	require.Len(t, history, 3)
	for i, got := range history {
		assert.Equal(t, turn(i+1), got)
	}

	session, err := store.GetOrCreate(ctx, "chat-1")
	require.NoError(t, err)
	assert.Equal(t, 3, session.Len())
}

func TestHistory_UnknownSession(t *testing.T) {
	store, _ := newTestStore(t, 0)

	history, err := store.History(context.Background(), "missing")
	require.NoError(t, err)
	assert.NotNil(t, history)
	assert.Empty(t, history)
}

func TestHistory_CorruptTurn(t *testing.T) {
	store, mr := newTestStore(t, 0)
	_, err := mr.RPush(turnsKey("chat-1"), "{not json")
	require.NoError(t, err)

	_, err = store.History(context.Background(), "chat-1")
	assert.Error(t, err)
}

func TestSessionsIsolated(t *testing.T) {
	store, _ := newTestStore(t, 0)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, "a", turn(1)))
	require.NoError(t, store.Append(ctx, "b", turn(2)))

	a, err := store.History(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []domain.Turn{turn(1)}, a)
}

func TestTTL_RefreshedAndExpires(t *testing.T) {
	store, mr := newTestStore(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, "chat-1", turn(1)))
	assert.Equal(t, time.Minute, mr.TTL(turnsKey("chat-1")))

	mr.FastForward(40 * time.Second)
	require.NoError(t, store.Append(ctx, "chat-1", turn(2)))
	assert.Equal(t, time.Minute, mr.TTL(turnsKey("chat-1")))
	assert.Equal(t, time.Minute, mr.TTL(metaKey("chat-1")))

	mr.FastForward(2 * time.Minute)

	history, err := store.History(ctx, "chat-1")
	require.NoError(t, err)
	assert.Empty(t, history)

	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestList_Sorted(t *testing.T) {
	store, _ := newTestStore(t, 0)
	ctx := context.Background()

	for _, id := range []string{"zeta", "alpha", "mid"} {
		_, err := store.GetOrCreate(ctx, id)
		require.NoError(t, err)
	}

	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, ids)
}

func TestDelete(t *testing.T) {
	store, mr := newTestStore(t, 0)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, "chat-1", turn(1)))
	require.NoError(t, store.Delete(ctx, "chat-1"))
	require.NoError(t, store.Delete(ctx, "never-existed"))

	assert.False(t, mr.Exists(turnsKey("chat-1")))
	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestAppend_Concurrent(t *testing.T) {
	store, _ := newTestStore(t, 0)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, store.Append(ctx, "chat-1", turn(i)))
		}()
	}
	wg.Wait()

	history, err := store.History(ctx, "chat-1")
	require.NoError(t, err)
	assert.Len(t, history, 20)
}
