package file

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/afero"

	"github.com/custodia-labs/docchat/internal/core/ports/driven"
	"github.com/custodia-labs/docchat/internal/logger"
)

// Ensure PromptStore implements the interface.
var _ driven.PromptStore = (*PromptStore)(nil)

//go:embed defaults
var defaultFiles embed.FS

const (
	promptExt   = ".txt"
	promptsDir  = "prompts"
	readmeName  = "README.md"
	placeholder = "%s"
)

// placeholders is how many %s each prompt must carry.
var placeholders = map[string]int{
	driven.PromptAnswerSystem:     0,
	driven.PromptAnswerContext:    1,
	driven.PromptAnswerHistory:    1,
	driven.PromptCondenseQuestion: 1,
}

// PromptStore serves prompt templates from a directory of user-editable
// files. The directory is seeded with the built-in prompts on first use;
// a missing or malformed file falls back to its built-in version.
type PromptStore struct {
	fs  afero.Fs
	dir string

	seedOnce sync.Once
	seedErr  error

	mu    sync.RWMutex
	cache map[string]string
}

// NewPromptStore creates a store over dir. An empty dir means the prompts
// directory under DefaultDir. Nothing is written until the first Load.
func NewPromptStore(dir string) (*PromptStore, error) {
	return NewPromptStoreFs(afero.NewOsFs(), dir)
}

// NewPromptStoreFs is NewPromptStore over an arbitrary filesystem.
func NewPromptStoreFs(fsys afero.Fs, dir string) (*PromptStore, error) {
	if dir == "" {
		home, err := DefaultDir()
		if err != nil {
			return nil, fmt.Errorf("get home directory: %w", err)
		}
		dir = filepath.Join(home, promptsDir)
	}
	return &PromptStore{fs: fsys, dir: dir, cache: make(map[string]string)}, nil
}

// Load returns the named template.
func (s *PromptStore) Load(name string) (string, error) {
	s.seedOnce.Do(s.seed)

	s.mu.RLock()
	prompt, ok := s.cache[name]
	s.mu.RUnlock()
	if ok {
		return prompt, nil
	}

	prompt, err := s.resolve(name)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	if cached, ok := s.cache[name]; ok {
		prompt = cached
	} else {
		s.cache[name] = prompt
	}
	s.mu.Unlock()
	return prompt, nil
}

// Reload drops cached templates so edited files are read again.
func (s *PromptStore) Reload() {
	s.mu.Lock()
	s.cache = make(map[string]string)
	s.mu.Unlock()
}

// Dir returns the prompt directory.
func (s *PromptStore) Dir() string {
	return s.dir
}

// resolve prefers the user's file, then the built-in prompt.
func (s *PromptStore) resolve(name string) (string, error) {
	builtin, hasBuiltin := builtinPrompt(name)

	if s.seedErr == nil {
		data, err := afero.ReadFile(s.fs, filepath.Join(s.dir, name+promptExt))
		switch {
		case err == nil:
			prompt := strings.TrimSpace(string(data))
			if err := checkPlaceholders(name, prompt); err != nil {
				if !hasBuiltin {
					return "", err
				}
				logger.Warn("ignoring prompt %s: %v", name, err)
				return builtin, nil
			}
			return prompt, nil
		case !errors.Is(err, fs.ErrNotExist):
			logger.Warn("reading prompt %s: %v", name, err)
		}
	}

	if hasBuiltin {
		return builtin, nil
	}
	if s.seedErr != nil {
		return "", fmt.Errorf("load prompt %q: %w", name, s.seedErr)
	}
	return "", fmt.Errorf("load prompt %q: %w", name, fs.ErrNotExist)
}

// seed writes the built-in files the directory is missing. Existing files
// are never overwritten.
func (s *PromptStore) seed() {
	if err := s.fs.MkdirAll(s.dir, dirPerm); err != nil {
		s.seedErr = fmt.Errorf("create prompt directory: %w", err)
		return
	}

	s.seedErr = fs.WalkDir(defaultFiles, "defaults", func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		target := filepath.Join(s.dir, path.Base(p))
		exists, err := afero.Exists(s.fs, target)
		if err != nil || exists {
			return err
		}
		data, err := defaultFiles.ReadFile(p)
		if err != nil {
			return err
		}
		if err := afero.WriteFile(s.fs, target, data, configPerm); err != nil {
			return fmt.Errorf("create default prompt %s: %w", path.Base(p), err)
		}
		return nil
	})
}

func builtinPrompt(name string) (string, bool) {
	data, err := defaultFiles.ReadFile(path.Join("defaults", name+promptExt))
	if err != nil {
		return "", false
	}
	return strings.TrimSpace(string(data)), true
}

func checkPlaceholders(name, prompt string) error {
	want, known := placeholders[name]
	if !known {
		return nil
	}
	if got := strings.Count(prompt, placeholder); got != want {
		return fmt.Errorf("want %d %s placeholder(s), found %d", want, placeholder, got)
	}
	return nil
}
