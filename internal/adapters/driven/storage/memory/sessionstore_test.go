package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docchat/internal/core/domain"
)

func TestSessionStore_GetOrCreate_Idempotent(t *testing.T) {
	store := NewSessionStore()
	ctx := context.Background()

	first, err := store.GetOrCreate(ctx, "chat-1")
	require.NoError(t, err)
	second, err := store.GetOrCreate(ctx, "chat-1")
	require.NoError(t, err)

	assert.Equal(t, "chat-1", first.ID)
	assert.Equal(t, first.CreatedAt, second.CreatedAt)
	assert.Zero(t, second.Len())

	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"chat-1"}, ids)
}

func TestSessionStore_AppendKeepsOrder(t *testing.T) {
	store := NewSessionStore()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, store.Append(ctx, "s", domain.Turn{Question: fmt.Sprintf("q%d", i)}))
	}

	history, err := store.History(ctx, "s")
	require.NoError(t, err)
	require.Len(t, history, 5)
	for i, turn := range history {
		assert.Equal(t, fmt.Sprintf("q%d", i), turn.Question)
	}
}

func TestSessionStore_ReturnsCopies(t *testing.T) {
	store := NewSessionStore()
	ctx := context.Background()
	require.NoError(t, store.Append(ctx, "s", domain.Turn{Question: "original"}))

	session, err := store.GetOrCreate(ctx, "s")
	require.NoError(t, err)
	session.Turns[0].Question = "mutated"

	history, err := store.History(ctx, "s")
	require.NoError(t, err)
	history = append(history, domain.Turn{Question: "extra"})
	_ = history

	stored, err := store.History(ctx, "s")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "original", stored[0].Question)
}

func TestSessionStore_UnknownSessionHasEmptyHistory(t *testing.T) {
	store := NewSessionStore()

	history, err := store.History(context.Background(), "nobody")

	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestSessionStore_SessionsAreIndependent(t *testing.T) {
	store := NewSessionStore()
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, "a", domain.Turn{Question: "for a"}))
	require.NoError(t, store.Append(ctx, "b", domain.Turn{Question: "for b"}))

	a, _ := store.History(ctx, "a")
	b, _ := store.History(ctx, "b")
	assert.Equal(t, "for a", a[0].Question)
	assert.Equal(t, "for b", b[0].Question)
}

func TestSessionStore_Delete(t *testing.T) {
	store := NewSessionStore()
	ctx := context.Background()
	require.NoError(t, store.Append(ctx, "s", domain.Turn{Question: "q"}))

	require.NoError(t, store.Delete(ctx, "s"))
	require.NoError(t, store.Delete(ctx, "never-existed"))

	history, _ := store.History(ctx, "s")
	assert.Empty(t, history)
	ids, _ := store.List(ctx)
	assert.Empty(t, ids)
}

func TestSessionStore_ConcurrentAppends(t *testing.T) {
	store := NewSessionStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = store.Append(ctx, "shared", domain.Turn{Question: fmt.Sprint(i)})
		}()
	}
	wg.Wait()

	history, err := store.History(ctx, "shared")
	require.NoError(t, err)
	assert.Len(t, history, 100)
}
