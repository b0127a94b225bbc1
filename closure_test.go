package lattice

import (
	"context"
	"testing"
)

func TestClosureRegistryLookup(t *testing.T) {
	r := newClosureRegistry()
	r.Register("greet", "", func(ctx context.Context, self *Process, args interface{}) {})

	e, ok := r.lookup("greet")
	if !ok {
		t.Fatal("expected greet to be registered")
	}
	if e.argsZero != "" {
		t.Fatalf("unexpected argsZero: %v", e.argsZero)
	}

	if _, ok := r.lookup("nonexistent"); ok {
		t.Fatal("expected nonexistent closure to be absent")
	}
}

func TestClosureRegistryPanicsAfterFreeze(t *testing.T) {
	r := newClosureRegistry()
	r.freeze()

	defer func() {
		if recover() == nil {
			t.Fatal("expected Register to panic after freeze")
		}
	}()
	r.Register("late", nil, func(ctx context.Context, self *Process, args interface{}) {})
}
