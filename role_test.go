package lattice

import (
	"context"
	"testing"
	"time"

	"github.com/latticerun/lattice/config"
)

func TestDispatchRoleRunsRegisteredClosure(t *testing.T) {
	cfg := config.Map{
		"hostname":    "127.0.0.1",
		"listen-port": 19301,
		"magic":       "test-magic",
		"role":        "worker",
	}
	n, err := New(cfg, WithLogger(NullLogger))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	started := make(chan struct{})
	n.RegisterClosure("worker", nil, func(ctx context.Context, self *Process, args interface{}) {
		close(started)
		<-ctx.Done()
	})

	n.Start()
	defer n.Stop()

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("role closure never ran")
	}
}

func TestDispatchRoleIdleWhenUnset(t *testing.T) {
	cfg := config.Map{
		"hostname":    "127.0.0.1",
		"listen-port": 19302,
		"magic":       "test-magic",
	}
	n, err := New(cfg, WithLogger(NullLogger))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	n.Start()
	defer n.Stop()
	// no closure registered; Start must not block or panic
}
