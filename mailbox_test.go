package lattice

import (
	"testing"
	"time"
)

type intMsg int
type strMsg string

func TestMailboxReceiveInOrder(t *testing.T) {
	m := newMailbox(nil, ProcessID{})
	m.deliver(intMsg(1))
	m.deliver(intMsg(2))

	v, err := m.Receive(MatchType(func(intMsg) {}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.(intMsg) != 1 {
		t.Fatalf("expected 1, got %v", v)
	}
}

func TestMailboxSelectiveReceiveSkipsNonMatching(t *testing.T) {
	m := newMailbox(nil, ProcessID{})
	m.deliver(intMsg(1))
	m.deliver(strMsg("hello"))

	var got string
	_, err := m.Receive(MatchType(func(s strMsg) { got = string(s) }))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "hello" {
		t.Fatalf("expected hello, got %q", got)
	}

	// the int message should still be in the mailbox, in original order
	if m.Len() != 1 {
		t.Fatalf("expected 1 remaining message, got %d", m.Len())
	}
}

func TestMailboxReceiveBlocksUntilMatch(t *testing.T) {
	m := newMailbox(nil, ProcessID{})

	done := make(chan intMsg, 1)
	go func() {
		v, err := m.Receive(MatchType(func(i intMsg) { done <- i }))
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		_ = v
	}()

	time.Sleep(20 * time.Millisecond)
	m.deliver(intMsg(42))

	select {
	case v := <-done:
		if v != 42 {
			t.Fatalf("expected 42, got %v", v)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for Receive to unblock")
	}
}

func TestMailboxReceiveTimeout(t *testing.T) {
	m := newMailbox(nil, ProcessID{})

	_, err := m.ReceiveTimeout(30*time.Millisecond, MatchType(func(int) {}))
	if err != ErrReceiveTimeout {
		t.Fatalf("expected ErrReceiveTimeout, got %v", err)
	}
}

func TestMailboxTerminateWakesReceivers(t *testing.T) {
	m := newMailbox(nil, ProcessID{})

	errCh := make(chan error, 1)
	go func() {
		_, err := m.Receive(MatchType(func(int) {}))
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	m.terminate()

	select {
	case err := <-errCh:
		if err != ErrMailboxTerminated {
			t.Fatalf("expected ErrMailboxTerminated, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for terminate to wake receiver")
	}
}

func TestMailboxDeliverAfterTerminateFails(t *testing.T) {
	m := newMailbox(nil, ProcessID{})
	m.terminate()

	if err := m.deliver(intMsg(1)); err != ErrMailboxTerminated {
		t.Fatalf("expected ErrMailboxTerminated, got %v", err)
	}
}
