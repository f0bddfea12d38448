package file

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docchat/internal/core/ports/driven"
)

const promptDir = "/home/docchat/prompts"

func newMemPromptStore(t *testing.T, files map[string]string) (*PromptStore, afero.Fs) {
	t.Helper()
	fsys := afero.NewMemMapFs()
	for name, content := range files {
		require.NoError(t, afero.WriteFile(fsys, filepath.Join(promptDir, name), []byte(content), 0o600))
	}
	store, err := NewPromptStoreFs(fsys, promptDir)
	require.NoError(t, err)
	return store, fsys
}

func TestNewPromptStore_Dirs(t *testing.T) {
	dir := t.TempDir()
	store, err := NewPromptStore(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, store.Dir())

	home := t.TempDir()
	t.Setenv(EnvHome, home)
	store, err = NewPromptStore("")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "prompts"), store.Dir())

	_, statErr := os.Stat(store.Dir())
	assert.True(t, errors.Is(statErr, fs.ErrNotExist), "nothing is written before the first load")
}

func TestPromptStore_Builtins(t *testing.T) {
	store, _ := newMemPromptStore(t, nil)

	for _, name := range []string{driven.PromptAnswerContext, driven.PromptAnswerHistory, driven.PromptCondenseQuestion} {
		prompt, err := store.Load(name)
		require.NoError(t, err)
		assert.Equal(t, 1, strings.Count(prompt, "%s"), name)
		assert.Equal(t, strings.TrimSpace(prompt), prompt)
	}

	system, err := store.Load(driven.PromptAnswerSystem)
	require.NoError(t, err)
	assert.NotContains(t, system, "%s")
	assert.Contains(t, system, "don't know")
}

func TestPromptStore_SeedsDirectory(t *testing.T) {
	store, fsys := newMemPromptStore(t, map[string]string{
		"answer_context.txt": "pre-existing %s",
	})

	_, err := store.Load(driven.PromptAnswerSystem)
	require.NoError(t, err)

	for _, f := range []string{"answer_system.txt", "answer_context.txt", "answer_history.txt", "condense_question.txt", "README.md"} {
		exists, err := afero.Exists(fsys, filepath.Join(promptDir, f))
		require.NoError(t, err)
		assert.True(t, exists, f)
	}

	data, err := afero.ReadFile(fsys, filepath.Join(promptDir, "answer_context.txt"))
	require.NoError(t, err)
	assert.Equal(t, "pre-existing %s", string(data), "existing files are kept")
}

func TestPromptStore_UserFileWins(t *testing.T) {
	store, _ := newMemPromptStore(t, map[string]string{
		"answer_context.txt": "\n\n  Excerpts:\n%s  \n",
	})

	prompt, err := store.Load(driven.PromptAnswerContext)

	require.NoError(t, err)
	assert.Equal(t, "Excerpts:\n%s", prompt)
}

func TestPromptStore_MalformedFileFallsBack(t *testing.T) {
	store, _ := newMemPromptStore(t, map[string]string{
		"answer_context.txt": "no placeholder here",
		"answer_history.txt": "two %s and %s",
		"answer_system.txt":  "system with %s",
	})

	for _, name := range []string{driven.PromptAnswerContext, driven.PromptAnswerHistory, driven.PromptAnswerSystem} {
		prompt, err := store.Load(name)
		require.NoError(t, err)
		builtin, ok := builtinPrompt(name)
		require.True(t, ok)
		assert.Equal(t, builtin, prompt, name)
	}
}

func TestPromptStore_LiteralPercentIsAccepted(t *testing.T) {
	store, _ := newMemPromptStore(t, map[string]string{
		"answer_context.txt": "Be 100% sure. Excerpts:\n%s",
	})

	prompt, err := store.Load(driven.PromptAnswerContext)

	require.NoError(t, err)
	assert.Equal(t, "Be 100% sure. Excerpts:\n%s", prompt)
}

func TestPromptStore_DeletedFileFallsBack(t *testing.T) {
	store, fsys := newMemPromptStore(t, nil)
	_, err := store.Load(driven.PromptAnswerContext)
	require.NoError(t, err)

	require.NoError(t, fsys.Remove(filepath.Join(promptDir, "answer_context.txt")))
	store.Reload()

	prompt, err := store.Load(driven.PromptAnswerContext)
	require.NoError(t, err)
	assert.Contains(t, prompt, "documentation excerpts")
}

func TestPromptStore_CacheAndReload(t *testing.T) {
	store, fsys := newMemPromptStore(t, nil)
	first, err := store.Load(driven.PromptAnswerContext)
	require.NoError(t, err)

	path := filepath.Join(promptDir, "answer_context.txt")
	require.NoError(t, afero.WriteFile(fsys, path, []byte("edited: %s"), 0o600))

	cached, err := store.Load(driven.PromptAnswerContext)
	require.NoError(t, err)
	assert.Equal(t, first, cached)

	store.Reload()
	fresh, err := store.Load(driven.PromptAnswerContext)
	require.NoError(t, err)
	assert.Equal(t, "edited: %s", fresh)
}

func TestPromptStore_UnknownPrompt(t *testing.T) {
	store, _ := newMemPromptStore(t, map[string]string{"custom.txt": "anything"})

	custom, err := store.Load("custom")
	require.NoError(t, err)
	assert.Equal(t, "anything", custom)

	_, err = store.Load("nonexistent_prompt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nonexistent_prompt")
}

func TestPromptStore_ReadOnlyFsUsesBuiltins(t *testing.T) {
	fsys := afero.NewReadOnlyFs(afero.NewMemMapFs())
	store, err := NewPromptStoreFs(fsys, promptDir)
	require.NoError(t, err)

	prompt, err := store.Load(driven.PromptAnswerHistory)
	require.NoError(t, err)
	assert.Contains(t, prompt, "%s")

	_, err = store.Load("nonexistent_prompt")
	assert.Error(t, err)
}

func TestPromptStore_ConcurrentLoads(t *testing.T) {
	store, _ := newMemPromptStore(t, nil)

	const goroutines = 50
	results := make([]string, goroutines)
	var wg sync.WaitGroup
	for i := range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			prompt, err := store.Load(driven.PromptAnswerContext)
			assert.NoError(t, err)
			results[i] = prompt
		}()
	}
	wg.Wait()

	for _, r := range results {
		assert.Equal(t, results[0], r)
	}
}
