// Package config holds the flattened key space shared by the ConfigStore
// adapters. Keys use dot notation; nested TOML tables become "table.key".
package config

import (
	"maps"
	"slices"
	"strconv"
	"strings"
	"sync"
)

// Values is a concurrency-safe flat key/value map with lenient typed reads.
// Numbers may arrive as int, int64 or float64 depending on the source; the
// typed getters accept any of them, and also parse numeric strings.
type Values struct {
	mu   sync.RWMutex
	data map[string]any
}

// NewValues creates a Values holding a copy of seed.
func NewValues(seed map[string]any) *Values {
	v := &Values{data: make(map[string]any, len(seed))}
	maps.Copy(v.data, seed)
	return v
}

// Get returns the raw value stored under key.
func (v *Values) Get(key string) (any, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	val, ok := v.data[key]
	return val, ok
}

// GetString returns the string under key, or "".
func (v *Values) GetString(key string) string {
	s, _ := lookup[string](v, key)
	return s
}

// GetInt returns the integer under key, or 0. Floats are truncated.
func (v *Values) GetInt(key string) int {
	val, ok := v.Get(key)
	if !ok {
		return 0
	}
	switch n := val.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	case string:
		i, _ := strconv.Atoi(strings.TrimSpace(n))
		return i
	}
	return 0
}

// GetFloat returns the number under key, or 0. Integers are widened so
// "rps = 4" and "rps = 4.0" read the same.
func (v *Values) GetFloat(key string) float64 {
	val, ok := v.Get(key)
	if !ok {
		return 0
	}
	switch n := val.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case string:
		f, _ := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f
	}
	return 0
}

// GetBool returns the boolean under key, or false.
func (v *Values) GetBool(key string) bool {
	val, ok := v.Get(key)
	if !ok {
		return false
	}
	switch b := val.(type) {
	case bool:
		return b
	case string:
		parsed, _ := strconv.ParseBool(strings.TrimSpace(b))
		return parsed
	}
	return false
}

// GetStringSlice returns the list under key. Non-string items of a
// decoded TOML array are skipped.
func (v *Values) GetStringSlice(key string) []string {
	val, ok := v.Get(key)
	if !ok {
		return nil
	}
	switch list := val.(type) {
	case []string:
		return slices.Clone(list)
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// Put stores value under key.
func (v *Values) Put(key string, value any) {
	v.mu.Lock()
	v.data[key] = value
	v.mu.Unlock()
}

// Replace swaps the whole key space.
func (v *Values) Replace(data map[string]any) {
	if data == nil {
		data = make(map[string]any)
	}
	v.mu.Lock()
	v.data = data
	v.mu.Unlock()
}

// Keys returns the stored keys, sorted.
func (v *Values) Keys() []string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return slices.Sorted(maps.Keys(v.data))
}

// Nested returns the values as nested tables, ready for TOML encoding.
func (v *Values) Nested() map[string]any {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return Unflatten(v.data)
}

func lookup[T any](v *Values, key string) (T, bool) {
	var zero T
	val, ok := v.Get(key)
	if !ok {
		return zero, false
	}
	t, ok := val.(T)
	return t, ok
}

// Flatten converts nested tables to dot-notation keys:
// {"a": {"b": 1}} becomes {"a.b": 1}.
func Flatten(m map[string]any) map[string]any {
	out := make(map[string]any)
	flattenInto(out, m, "")
	return out
}

func flattenInto(out, m map[string]any, prefix string) {
	for key, value := range m {
		if prefix != "" {
			key = prefix + "." + key
		}
		if nested, ok := value.(map[string]any); ok {
			flattenInto(out, nested, key)
			continue
		}
		out[key] = value
	}
}

// Unflatten turns dot-notation keys back into nested tables. A key that
// is both a value and a table prefix keeps the value.
func Unflatten(flat map[string]any) map[string]any {
	out := make(map[string]any)
	for _, key := range slices.Sorted(maps.Keys(flat)) {
		parts := strings.Split(key, ".")
		node := out
		for _, part := range parts[:len(parts)-1] {
			child, exists := node[part]
			if !exists {
				next := make(map[string]any)
				node[part] = next
				node = next
				continue
			}
			next, isTable := child.(map[string]any)
			if !isTable {
				node = nil
				break
			}
			node = next
		}
		if node != nil {
			node[parts[len(parts)-1]] = flat[key]
		}
	}
	return out
}
