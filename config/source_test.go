package config

import "testing"

func TestMapCaseInsensitiveLookup(t *testing.T) {
	m := Map{"hostname": "localhost"}
	v, ok := m.String("HostName")
	if !ok || v != "localhost" {
		t.Fatalf("expected localhost, got %q, %v", v, ok)
	}
}

func TestMapIntPair(t *testing.T) {
	m := Map{"port-range": [2]int{100, 200}}
	lo, hi, ok := m.IntPair("port-range")
	if !ok || lo != 100 || hi != 200 {
		t.Fatalf("unexpected pair: %d %d %v", lo, hi, ok)
	}
}

func TestMapListFromInterfaceSlice(t *testing.T) {
	m := Map{"known-hosts": []interface{}{"a", "b"}}
	l, ok := m.List("known-hosts")
	if !ok || len(l) != 2 || l[0] != "a" || l[1] != "b" {
		t.Fatalf("unexpected list: %v %v", l, ok)
	}
}

func TestMapMissingKey(t *testing.T) {
	m := Map{}
	if _, ok := m.String("missing"); ok {
		t.Fatal("expected ok=false for missing key")
	}
}
