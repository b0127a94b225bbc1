package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// FromTOMLFile loads a Source from a TOML file. It exists as a
// convenience because TOML's native list and two-element-array syntax
// map directly onto known-hosts and port-range/connect-backoff-ms
// without any bespoke parsing code.
//
// Expected shape:
//
//	role = "MASTER"
//	hostname = "localhost"
//	listen-port = 9001
//	known-hosts = ["h1.internal", "h2.internal"]
//	magic = "shared-secret-token"
//	port-range = [40000, 40100]
//	connect-backoff-ms = [100, 30000]
func FromTOMLFile(path string) (Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("lattice/config: opening %s: %w", path, err)
	}
	defer f.Close()

	var raw map[string]interface{}
	if _, err := toml.NewDecoder(f).Decode(&raw); err != nil {
		return nil, fmt.Errorf("lattice/config: parsing %s: %w", path, err)
	}

	m := make(Map, len(raw))
	for k, v := range raw {
		m[lower(k)] = normalize(v)
	}
	return m, nil
}

// normalize converts TOML's native int64 and []interface{} shapes into
// the forms Map's accessors expect: plain int, and the [2]int pair used
// by IntPair for two-element ranges.
func normalize(v interface{}) interface{} {
	switch val := v.(type) {
	case int64:
		return int(val)
	case []interface{}:
		if pair, ok := asIntPair(val); ok {
			return pair
		}
		return val
	default:
		return val
	}
}

func asIntPair(vals []interface{}) ([2]int, bool) {
	if len(vals) != 2 {
		return [2]int{}, false
	}
	var pair [2]int
	for i, v := range vals {
		n, ok := v.(int64)
		if !ok {
			return [2]int{}, false
		}
		pair[i] = int(n)
	}
	return pair, true
}
