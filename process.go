package lattice

// This file implements the process table: allocation of ProcessIDs,
// spawning (both local and remote-via-closure), and termination. A
// Process is deliberately thin — little more than a Mailbox plus the
// bookkeeping needed to terminate it and tell linked processes about it
// — since the real work of "what a process does" lives entirely in the
// function the caller passes to Spawn.

import (
	"context"
	"fmt"
	"sync"
)

// Process is a running unit of computation: a Mailbox plus the goroutine
// consuming it. Processes are identified cluster-wide by a ProcessID.
type Process struct {
	id      ProcessID
	Mailbox *Mailbox

	node   *Node
	cancel context.CancelFunc

	mu       sync.Mutex
	done     chan struct{}
	finished bool
}

// ID returns this process's cluster-wide identifier.
func (p *Process) ID() ProcessID { return p.id }

// Done returns a channel that is closed once the process has terminated.
func (p *Process) Done() <-chan struct{} { return p.done }

// terminate tears down the process's mailbox and removes it from the
// owning node's process table. It is idempotent.
func (p *Process) terminate() {
	p.mu.Lock()
	if p.finished {
		p.mu.Unlock()
		return
	}
	p.finished = true
	cancel := p.cancel
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	p.Mailbox.terminate()
	p.node.processes.remove(p.id)
	close(p.done)
}

// processTable owns every locally-running Process, keyed by local index.
type processTable struct {
	node *Node

	mu        sync.RWMutex
	processes map[uint64]*Process
	allocator localIndexAllocator
}

func newProcessTable(node *Node) *processTable {
	return &processTable{
		node:      node,
		processes: make(map[uint64]*Process),
	}
}

func (t *processTable) spawnLocal(body func(ctx context.Context, self *Process)) *Process {
	local := t.allocator.allocate()
	id := ProcessID{Node: t.node.id, Local: local}

	p := &Process{
		id:   id,
		node: t.node,
		done: make(chan struct{}),
	}
	p.Mailbox = newMailbox(t.node, id)

	t.mu.Lock()
	t.processes[local] = p
	t.mu.Unlock()

	ctx, cancel := context.WithCancel(t.node.ctx)
	p.cancel = cancel
	go func() {
		defer p.terminate()
		body(ctx, p)
	}()

	return p
}

func (t *processTable) lookup(id ProcessID) (*Process, bool) {
	if id.Node != t.node.id {
		return nil, false
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.processes[id.Local]
	return p, ok
}

func (t *processTable) remove(id ProcessID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.processes, id.Local)
}

// Spawn starts a process and returns its Process handle, whose Mailbox
// is ready to receive before Spawn returns: body is run in its own
// goroutine and will see self.Mailbox already registered in the node's
// process table, so messages sent to self.ID() immediately after Spawn
// returns are never lost.
func (n *Node) Spawn(body func(ctx context.Context, self *Process)) *Process {
	return n.processes.spawnLocal(body)
}

// SpawnRemote starts a process on a peer node by invoking a registered
// Closure there. It blocks until the peer replies with the new
// process's ProcessID, or until ctx is cancelled, or until the default
// spawn deadline elapses.
func (n *Node) SpawnRemote(ctx context.Context, node NodeID, closure Closure) (ProcessID, error) {
	return n.spawnRemote(ctx, node, closure)
}

// Kill requests termination of a local process. It is a no-op if pid
// does not name a process local to this node.
func (n *Node) Kill(pid ProcessID) {
	if p, ok := n.processes.lookup(pid); ok {
		p.terminate()
	}
}

// Link arranges for target to receive a ProcessTerminated message when
// the local process owner terminates. target may be local or remote;
// remote targets are notified indirectly, since a local mailbox has no
// way to deliver to a remote process directly (see router.go).
func (n *Node) Link(owner ProcessID, target ProcessID) error {
	p, ok := n.processes.lookup(owner)
	if !ok {
		return fmt.Errorf("lattice: %w", ErrNotLocalMailbox)
	}
	p.Mailbox.notifyOnTerminate(target)
	return nil
}

// Unlink undoes a prior Link.
func (n *Node) Unlink(owner ProcessID, target ProcessID) {
	if p, ok := n.processes.lookup(owner); ok {
		p.Mailbox.removeNotify(target)
	}
}
