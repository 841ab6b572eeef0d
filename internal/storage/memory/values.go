package memory

import (
	"sort"
	"sync"
)

// Values is a string-keyed map of arbitrary serializable values.
type Values struct {
	mu   sync.RWMutex
	data map[string]any
}

// New creates an empty map.
func New() *Values {
	return &Values{data: make(map[string]any)}
}

// Get returns the value stored under name.
func (v *Values) Get(name string) (any, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	value, ok := v.data[name]
	return value, ok
}

// Set stores value under name.
func (v *Values) Set(name string, value any) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.data[name] = value
}

// Delete removes name. It reports whether the name was present.
func (v *Values) Delete(name string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	if _, ok := v.data[name]; !ok {
		return false
	}
	delete(v.data, name)
	return true
}

// Has reports whether name is present.
func (v *Values) Has(name string) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()

	_, ok := v.data[name]
	return ok
}

// Len returns the number of stored names.
func (v *Values) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()

	return len(v.data)
}

// Keys returns the stored names in sorted order.
func (v *Values) Keys() []string {
	v.mu.RLock()
	defer v.mu.RUnlock()

	keys := make([]string, 0, len(v.data))
	for k := range v.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// LoadOrInit seeds name with def when absent and returns the current value.
func (v *Values) LoadOrInit(name string, def any) any {
	v.mu.Lock()
	defer v.mu.Unlock()

	if value, ok := v.data[name]; ok {
		return value
	}
	v.data[name] = def
	return def
}

// Snapshot returns a shallow copy of the map.
func (v *Values) Snapshot() map[string]any {
	v.mu.RLock()
	defer v.mu.RUnlock()

	out := make(map[string]any, len(v.data))
	for k, value := range v.data {
		out[k] = value
	}
	return out
}

// Replace swaps the whole content for a copy of data. A nil map empties the
// values.
func (v *Values) Replace(data map[string]any) {
	next := make(map[string]any, len(data))
	for k, value := range data {
		next[k] = value
	}

	v.mu.Lock()
	v.data = next
	v.mu.Unlock()
}
