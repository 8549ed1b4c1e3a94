package environment

import "strings"

// Set is an ordered mapping of environment variable names to values. Keys are
// unique; setting an existing key replaces its value in place.
type Set struct {
	keys   []string
	values map[string]string
}

// NewSet creates an empty set
func NewSet() *Set {
	return &Set{values: make(map[string]string)}
}

// FromEnviron parses "KEY=VALUE" entries as returned by os.Environ. Entries
// without a separator are ignored; later duplicates win.
func FromEnviron(environ []string) *Set {
	s := NewSet()
	for _, entry := range environ {
		key, value, ok := strings.Cut(entry, "=")
		if !ok || key == "" {
			continue
		}
		s.Set(key, value)
	}
	return s
}

// Set adds or overrides a variable
func (s *Set) Set(key, value string) {
	if _, exists := s.values[key]; !exists {
		s.keys = append(s.keys, key)
	}
	s.values[key] = value
}

// Get returns the value of key, or "" when absent
func (s *Set) Get(key string) string {
	return s.values[key]
}

// Lookup returns the value of key and whether it is present
func (s *Set) Lookup(key string) (string, bool) {
	if s == nil {
		return "", false
	}
	value, ok := s.values[key]
	return value, ok
}

// Keys returns the variable names in insertion order
func (s *Set) Keys() []string {
	keys := make([]string, len(s.keys))
	copy(keys, s.keys)
	return keys
}

// Len returns the number of variables
func (s *Set) Len() int {
	return len(s.keys)
}

// Environ renders the set as "KEY=VALUE" entries in insertion order
func (s *Set) Environ() []string {
	environ := make([]string, 0, len(s.keys))
	for _, key := range s.keys {
		environ = append(environ, key+"="+s.values[key])
	}
	return environ
}

// Clone returns an independent copy
func (s *Set) Clone() *Set {
	c := &Set{
		keys:   make([]string, len(s.keys)),
		values: make(map[string]string, len(s.values)),
	}
	copy(c.keys, s.keys)
	for k, v := range s.values {
		c.values[k] = v
	}
	return c
}
