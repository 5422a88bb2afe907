// pkg/registry/memory.go - in-memory registry used off Windows and in tests.

package registry

import (
	"sort"
	"strings"
	"sync"
)

type memKey struct {
	name   string // original spelling of the full path
	values map[string]namedValue
}

type namedValue struct {
	name  string
	value Value
}

// Memory is a case-insensitive in-memory Registry.
type Memory struct {
	mu   sync.RWMutex
	keys map[string]*memKey
}

// NewMemory returns an empty in-memory registry.
func NewMemory() *Memory {
	return &Memory{keys: make(map[string]*memKey)}
}

func fullPath(hive Hive, path string) string {
	p := CleanPath(path)
	if p == "" {
		return string(hive)
	}
	return string(hive) + `\` + p
}

// SetValue creates every missing key along the path and stores v.
func (m *Memory) SetValue(hive Hive, path, name string, v Value) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	full := fullPath(hive, path)
	parts := strings.Split(full, `\`)
	for i := 1; i <= len(parts); i++ {
		p := strings.Join(parts[:i], `\`)
		if _, ok := m.keys[strings.ToLower(p)]; !ok {
			m.keys[strings.ToLower(p)] = &memKey{name: p, values: make(map[string]namedValue)}
		}
	}
	k := m.keys[strings.ToLower(full)]
	k.values[strings.ToLower(name)] = namedValue{name: name, value: v}
	return nil
}

// GetValue returns ErrNotExist when either the key or the value is missing.
func (m *Memory) GetValue(hive Hive, path, name string) (Value, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	k, ok := m.keys[strings.ToLower(fullPath(hive, path))]
	if !ok {
		return Value{}, ErrNotExist
	}
	nv, ok := k.values[strings.ToLower(name)]
	if !ok {
		return Value{}, ErrNotExist
	}
	return nv.value, nil
}

// DeleteKey removes the key and everything below it.
func (m *Memory) DeleteKey(hive Hive, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	full := strings.ToLower(fullPath(hive, path))
	for k := range m.keys {
		if k == full || strings.HasPrefix(k, full+`\`) {
			delete(m.keys, k)
		}
	}
	return nil
}

// KeyExists reports whether the key is present.
func (m *Memory) KeyExists(hive Hive, path string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.keys[strings.ToLower(fullPath(hive, path))]
	return ok, nil
}

// Keys lists every key path currently stored, sorted.
func (m *Memory) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]string, 0, len(m.keys))
	for _, k := range m.keys {
		out = append(out, k.name)
	}
	sort.Strings(out)
	return out
}

// ValueCount returns the number of values stored under a key.
func (m *Memory) ValueCount(hive Hive, path string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	k, ok := m.keys[strings.ToLower(fullPath(hive, path))]
	if !ok {
		return 0
	}
	return len(k.values)
}

// Snapshot returns every stored value keyed by `<key>\<name>`, with the key
// in its original spelling. Keys without values are omitted.
func (m *Memory) Snapshot() map[string]Value {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]Value)
	for _, k := range m.keys {
		for _, nv := range k.values {
			out[k.name+`\`+nv.name] = nv.value
		}
	}
	return out
}
