package lattice

import (
	"context"
	"testing"
	"time"

	"github.com/latticerun/lattice/config"
)

func TestChannelLocalSendReceive(t *testing.T) {
	cfg := config.Map{
		"hostname":    "127.0.0.1",
		"listen-port": 19201,
		"magic":       "test-magic",
	}
	n, err := New(cfg, WithLogger(NullLogger))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	n.Start()
	defer n.Stop()

	send, recv := NewChannel[string](n)

	if err := send.Send("hello"); err != nil {
		t.Fatalf("Send: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	v, err := recv.Receive(ctx)
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if v != "hello" {
		t.Fatalf("expected hello, got %q", v)
	}
}

func TestChannelCloseUnblocksReceive(t *testing.T) {
	cfg := config.Map{
		"hostname":    "127.0.0.1",
		"listen-port": 19202,
		"magic":       "test-magic",
	}
	n, err := New(cfg, WithLogger(NullLogger))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	n.Start()
	defer n.Stop()

	_, recv := NewChannel[int](n)

	errCh := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_, err := recv.Receive(ctx)
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	recv.Close()

	select {
	case err := <-errCh:
		if err != ErrMailboxTerminated {
			t.Fatalf("expected ErrMailboxTerminated, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for Close to unblock Receive")
	}
}
