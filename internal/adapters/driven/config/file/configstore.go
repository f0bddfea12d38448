package file

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/afero"

	"github.com/custodia-labs/docchat/internal/adapters/driven/config"
	"github.com/custodia-labs/docchat/internal/core/ports/driven"
)

// Ensure ConfigStore implements the interface.
var _ driven.ConfigStore = (*ConfigStore)(nil)

const (
	// EnvHome overrides the docchat home directory.
	EnvHome = "DOCCHAT_HOME"

	configFile = "config.toml"
	dirPerm    = 0o700
	configPerm = 0o600
)

// DefaultDir returns $DOCCHAT_HOME, or ~/.docchat when it is unset.
func DefaultDir() (string, error) {
	if dir := os.Getenv(EnvHome); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".docchat"), nil
}

// ConfigStore keeps settings in a TOML file. Values are held flattened
// ("chunk.size") and written back as nested tables on every Set.
type ConfigStore struct {
	*config.Values

	fs   afero.Fs
	path string
}

// NewConfigStore opens the config file under dir, creating dir when needed.
// An empty dir means DefaultDir.
func NewConfigStore(dir string) (*ConfigStore, error) {
	return NewConfigStoreFs(afero.NewOsFs(), dir)
}

// NewConfigStoreFs is NewConfigStore over an arbitrary filesystem.
func NewConfigStoreFs(fsys afero.Fs, dir string) (*ConfigStore, error) {
	if dir == "" {
		home, err := DefaultDir()
		if err != nil {
			return nil, err
		}
		dir = home
	}
	if err := fsys.MkdirAll(dir, dirPerm); err != nil {
		return nil, fmt.Errorf("creating config dir: %w", err)
	}

	s := &ConfigStore{
		Values: config.NewValues(nil),
		fs:     fsys,
		path:   filepath.Join(dir, configFile),
	}
	if err := s.Load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Set stores a value and rewrites the file.
func (s *ConfigStore) Set(key string, value any) error {
	s.Put(key, value)
	return s.Save()
}

// Save writes the current values to disk.
func (s *ConfigStore) Save() error {
	data, err := toml.Marshal(s.Nested())
	if err != nil {
		return fmt.Errorf("encoding %s: %w", s.path, err)
	}
	return afero.WriteFile(s.fs, s.path, data, configPerm)
}

// Load replaces the in-memory values with the file's contents. A missing
// file leaves the store empty.
func (s *ConfigStore) Load() error {
	data, err := afero.ReadFile(s.fs, s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.Replace(nil)
		return nil
	}
	if err != nil {
		return err
	}

	var tables map[string]any
	if err := toml.Unmarshal(data, &tables); err != nil {
		return fmt.Errorf("parsing %s: %w", s.path, err)
	}
	s.Replace(config.Flatten(tables))
	return nil
}

// Path returns the config file path.
func (s *ConfigStore) Path() string {
	return s.path
}
