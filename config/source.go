// Package config defines the opaque key/value configuration source the
// lattice runtime reads from. It defines only the interface the node
// controller needs, plus one convenience loader (FromTOMLFile); it is
// deliberately not a general-purpose config framework.
package config

import "strings"

// Source is the opaque key/value source the node controller reads
// startup configuration from. Keys are looked up case-insensitively.
type Source interface {
	// String returns the string value for key, if present.
	String(key string) (string, bool)
	// Int returns the integer value for key, if present.
	Int(key string) (int, bool)
	// List returns the list-of-strings value for key, if present.
	List(key string) ([]string, bool)
	// IntPair returns a two-element integer range for key (e.g.
	// port-range, connect-backoff-ms), if present.
	IntPair(key string) (lo, hi int, ok bool)
}

// Map is the simplest possible Source: an in-memory key/value map, handy
// for tests and for constructing a Source without a file on disk.
type Map map[string]interface{}

func lower(key string) string { return strings.ToLower(key) }

// String implements Source.
func (m Map) String(key string) (string, bool) {
	v, ok := m[lower(key)]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Int implements Source.
func (m Map) Int(key string) (int, bool) {
	v, ok := m[lower(key)]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	}
	return 0, false
}

// List implements Source.
func (m Map) List(key string) ([]string, bool) {
	v, ok := m[lower(key)]
	if !ok {
		return nil, false
	}
	switch l := v.(type) {
	case []string:
		return l, true
	case []interface{}:
		out := make([]string, 0, len(l))
		for _, e := range l {
			s, ok := e.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	}
	return nil, false
}

// IntPair implements Source.
func (m Map) IntPair(key string) (int, int, bool) {
	v, ok := m[lower(key)]
	if !ok {
		return 0, 0, false
	}
	pair, ok := v.([2]int)
	if !ok {
		return 0, 0, false
	}
	return pair[0], pair[1], true
}
