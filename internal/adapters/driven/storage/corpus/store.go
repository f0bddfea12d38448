// Package corpus stores crawled pages as plain-text artifacts on a filesystem.
//
// Each artifact is written as <id>.txt holding the extracted text, next to
// a <id>.url sidecar whose first line is the canonical URL, followed by the
// page title and the fetch time. The sidecar is what makes ID collisions
// detectable.
package corpus

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/afero"

	"github.com/custodia-labs/docchat/internal/core/domain"
	"github.com/custodia-labs/docchat/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.ArtifactStore = (*Store)(nil)

const (
	textExt    = ".txt"
	sidecarExt = ".url"
	filePerm   = 0o644
	dirPerm    = 0o755
)

// Store is an afero-backed driven.ArtifactStore.
type Store struct {
	fs   afero.Fs
	root string
}

// NewStore creates a store rooted at root on the OS filesystem.
func NewStore(root string) (*Store, error) {
	return NewStoreFs(afero.NewOsFs(), root)
}

// NewStoreFs creates a store rooted at root on the given filesystem.
func NewStoreFs(base afero.Fs, root string) (*Store, error) {
	if root == "" {
		return nil, fmt.Errorf("%w: corpus path is empty", domain.ErrConfiguration)
	}
	if err := base.MkdirAll(root, dirPerm); err != nil {
		return nil, fmt.Errorf("creating corpus directory: %w", err)
	}
	return &Store{
		fs:   afero.NewBasePathFs(base, root),
		root: root,
	}, nil
}

// Path returns the corpus root.
func (s *Store) Path() string {
	return s.root
}

// Save writes the artifact text and its sidecar. An ID already held by a
// different URL is refused; the same URL is left untouched.
func (s *Store) Save(_ context.Context, artifact *domain.TextArtifact) error {
	if artifact == nil || artifact.ID == "" {
		return fmt.Errorf("%w: artifact has no id", domain.ErrInvalidInput)
	}
	if err := checkID(artifact.ID); err != nil {
		return err
	}

	existing, err := s.readSidecar(artifact.ID)
	switch {
	case err == nil && existing.url == artifact.URL:
		return nil
	case err == nil:
		return fmt.Errorf("%w: %s is held by %s, refusing %s",
			domain.ErrArtifactCollision, artifact.ID, existing.url, artifact.URL)
	case !errors.Is(err, domain.ErrNotFound):
		return err
	}

	if err := s.writeAtomic(artifact.ID+textExt, []byte(artifact.Text)); err != nil {
		return fmt.Errorf("write artifact %s: %w", artifact.ID, err)
	}

	fetched := artifact.FetchedAt
	if fetched.IsZero() {
		fetched = time.Now()
	}
	sidecar := fmt.Sprintf("%s\n%s\n%s\n", artifact.URL,
		strings.ReplaceAll(artifact.Title, "\n", " "), fetched.UTC().Format(time.RFC3339))
	if err := s.writeAtomic(artifact.ID+sidecarExt, []byte(sidecar)); err != nil {
		return fmt.Errorf("write sidecar %s: %w", artifact.ID, err)
	}

	return nil
}

// Get reads an artifact. Text files without a sidecar load with an empty URL.
func (s *Store) Get(_ context.Context, id string) (*domain.TextArtifact, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}

	text, err := afero.ReadFile(s.fs, id+textExt)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("artifact %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read artifact %s: %w", id, err)
	}

	artifact := &domain.TextArtifact{ID: id, Text: string(text)}

	meta, err := s.readSidecar(id)
	switch {
	case err == nil:
		artifact.URL = meta.url
		artifact.Title = meta.title
		artifact.FetchedAt = meta.fetchedAt
	case !errors.Is(err, domain.ErrNotFound):
		return nil, err
	}

	return artifact, nil
}

// List globs every *.txt file below the root and returns their IDs, sorted.
func (s *Store) List(_ context.Context) ([]string, error) {
	matches, err := doublestar.Glob(afero.NewIOFS(s.fs), "**/*"+textExt)
	if err != nil {
		return nil, fmt.Errorf("glob corpus: %w", err)
	}

	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		ids = append(ids, strings.TrimSuffix(m, textExt))
	}
	sort.Strings(ids)
	return ids, nil
}

type sidecar struct {
	url       string
	title     string
	fetchedAt time.Time
}

func (s *Store) readSidecar(id string) (*sidecar, error) {
	f, err := s.fs.Open(id + sidecarExt)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("open sidecar %s: %w", id, err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read sidecar %s: %w", id, err)
	}

	meta := &sidecar{}
	if len(lines) > 0 {
		meta.url = strings.TrimSpace(lines[0])
	}
	if len(lines) > 1 {
		meta.title = lines[1]
	}
	if len(lines) > 2 {
		meta.fetchedAt, _ = time.Parse(time.RFC3339, strings.TrimSpace(lines[2]))
	}
	return meta, nil
}

// writeAtomic writes to a temporary file and renames it into place.
func (s *Store) writeAtomic(name string, data []byte) error {
	if dir := path.Dir(name); dir != "." {
		if err := s.fs.MkdirAll(dir, dirPerm); err != nil {
			return err
		}
	}
	tmp := name + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, data, filePerm); err != nil {
		return err
	}
	if err := s.fs.Rename(tmp, name); err != nil {
		_ = s.fs.Remove(tmp)
		return err
	}
	return nil
}

func checkID(id string) error {
	if id == "" || strings.HasPrefix(id, "/") || strings.Contains(id, "\\") {
		return fmt.Errorf("%w: bad artifact id %q", domain.ErrInvalidInput, id)
	}
	for _, part := range strings.Split(id, "/") {
		if part == "" || part == "." || part == ".." {
			return fmt.Errorf("%w: bad artifact id %q", domain.ErrInvalidInput, id)
		}
	}
	return nil
}

// Remove deletes an artifact and its sidecar. Used by `docchat crawl --fresh`.
func (s *Store) Remove(_ context.Context, id string) error {
	if err := checkID(id); err != nil {
		return err
	}
	for _, name := range []string{id + textExt, id + sidecarExt} {
		if err := s.fs.Remove(name); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove %s: %w", name, err)
		}
	}
	return nil
}
