package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFromTOMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "node.toml")
	contents := `
hostname = "localhost"
listen-port = 9001
magic = "secret"
known-hosts = ["a.internal", "b.internal"]
port-range = [9000, 9100]
connect-backoff-ms = [100, 30000]
`
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	src, err := FromTOMLFile(path)
	if err != nil {
		t.Fatalf("FromTOMLFile: %v", err)
	}

	host, ok := src.String("hostname")
	if !ok || host != "localhost" {
		t.Fatalf("unexpected hostname: %q %v", host, ok)
	}

	port, ok := src.Int("listen-port")
	if !ok || port != 9001 {
		t.Fatalf("unexpected port: %d %v", port, ok)
	}

	lo, hi, ok := src.IntPair("port-range")
	if !ok || lo != 9000 || hi != 9100 {
		t.Fatalf("unexpected port-range: %d %d %v", lo, hi, ok)
	}

	hosts, ok := src.List("known-hosts")
	if !ok || len(hosts) != 2 {
		t.Fatalf("unexpected known-hosts: %v %v", hosts, ok)
	}
}
