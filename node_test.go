package lattice

import (
	"context"
	"testing"
	"time"

	"github.com/latticerun/lattice/config"
)

type chatMsg struct {
	Text string
}

func startTestNode(t *testing.T, port, peerPort int) *Node {
	t.Helper()
	cfg := config.Map{
		"hostname":           "127.0.0.1",
		"listen-port":        port,
		"magic":              "test-magic",
		"known-hosts":        []interface{}{"127.0.0.1"},
		"port-range":         [2]int{peerPort, peerPort},
		"connect-backoff-ms": [2]int{20, 200},
	}
	n, err := New(cfg, WithLogger(NullLogger))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return n
}

func TestNodeLocalSpawnAndSend(t *testing.T) {
	n := startTestNode(t, 19101, 19102)
	n.Start()
	defer n.Stop()

	received := make(chan chatMsg, 1)
	p := n.Spawn(func(ctx context.Context, self *Process) {
		msg, err := self.Mailbox.ReceiveNext()
		if err != nil {
			return
		}
		received <- msg.(chatMsg)
	})

	if err := n.Send(p.ID(), chatMsg{Text: "hi"}); err != nil {
		t.Fatalf("Send: %v", err)
	}

	select {
	case m := <-received:
		if m.Text != "hi" {
			t.Fatalf("unexpected message: %+v", m)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for local delivery")
	}
}

func TestNodeRemoteSendAndSpawn(t *testing.T) {
	RegisterType(chatMsg{})

	a := startTestNode(t, 19111, 19112)
	b := startTestNode(t, 19112, 19111)

	received := make(chan chatMsg, 1)
	b.RegisterClosure("echo", chatMsg{}, func(ctx context.Context, self *Process, args interface{}) {
		msg, err := self.Mailbox.ReceiveNext()
		if err != nil {
			return
		}
		received <- msg.(chatMsg)
	})

	a.Start()
	defer a.Stop()
	b.Start()
	defer b.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var remote ProcessID
	var err error
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		remote, err = a.SpawnRemote(ctx, b.ID(), Closure{Name: "echo"})
		if err == nil {
			break
		}
		time.Sleep(100 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("SpawnRemote: %v", err)
	}

	if err := a.Send(remote, chatMsg{Text: "remote hello"}); err != nil {
		t.Fatalf("Send: %v", err)
	}

	select {
	case m := <-received:
		if m.Text != "remote hello" {
			t.Fatalf("unexpected message: %+v", m)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for remote delivery")
	}
}

func TestNodeKillTerminatesMailbox(t *testing.T) {
	n := startTestNode(t, 19121, 19122)
	n.Start()
	defer n.Stop()

	p := n.Spawn(func(ctx context.Context, self *Process) {
		<-ctx.Done()
	})

	n.Kill(p.ID())

	select {
	case <-p.Done():
	case <-time.After(time.Second):
		t.Fatal("process did not terminate after Kill")
	}
}
