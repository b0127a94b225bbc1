package lattice

import "testing"

func TestNodeIDStringRoundTrip(t *testing.T) {
	n := NodeID{Host: "10.0.0.1", Port: 9001, Epoch: 42}
	parsed, err := ParseNodeID(n.String())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if parsed != n {
		t.Fatalf("round trip mismatch: got %+v, want %+v", parsed, n)
	}
}

func TestProcessIDStringRoundTrip(t *testing.T) {
	p := ProcessID{Node: NodeID{Host: "10.0.0.1", Port: 9001}, Local: 7}
	parsed, err := ParseProcessID(p.String())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if parsed.Node.Host != p.Node.Host || parsed.Node.Port != p.Node.Port || parsed.Local != p.Local {
		t.Fatalf("round trip mismatch: got %+v, want %+v", parsed, p)
	}
}

func TestNodeIDLessIsTotalOrder(t *testing.T) {
	a := NodeID{Host: "a", Port: 1, Epoch: 1}
	b := NodeID{Host: "b", Port: 1, Epoch: 1}

	if !a.less(b) {
		t.Fatal("expected a < b")
	}
	if b.less(a) == a.less(b) {
		t.Fatal("less must be asymmetric")
	}
	if a.less(a) {
		t.Fatal("a must not be less than itself")
	}
}

func TestLocalIndexAllocatorNeverRepeats(t *testing.T) {
	var a localIndexAllocator
	seen := make(map[uint64]bool)
	for i := 0; i < 1000; i++ {
		id := a.allocate()
		if seen[id] {
			t.Fatalf("allocator repeated index %d", id)
		}
		seen[id] = true
	}
}
