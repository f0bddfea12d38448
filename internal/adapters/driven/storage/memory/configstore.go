package memory

import (
	"github.com/custodia-labs/docchat/internal/adapters/driven/config"
	"github.com/custodia-labs/docchat/internal/core/ports/driven"
)

// Ensure ConfigStore implements the interface.
var _ driven.ConfigStore = (*ConfigStore)(nil)

// ConfigStore keeps settings in process memory. It backs tests and runs
// that must not touch a config file.
type ConfigStore struct {
	*config.Values
}

// NewConfigStore creates a store seeded with a copy of values.
func NewConfigStore(values ...map[string]any) *ConfigStore {
	seed := make(map[string]any)
	for _, m := range values {
		for k, v := range m {
			seed[k] = v
		}
	}
	return &ConfigStore{Values: config.NewValues(seed)}
}

// Set stores a value.
func (s *ConfigStore) Set(key string, value any) error {
	s.Put(key, value)
	return nil
}

// Save is a no-op.
func (s *ConfigStore) Save() error { return nil }

// Load is a no-op.
func (s *ConfigStore) Load() error { return nil }

// Path returns ":memory:".
func (s *ConfigStore) Path() string { return ":memory:" }
