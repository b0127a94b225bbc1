package lattice

// This file implements the typed channel layer: SendPort[T] /
// ReceivePort[T]. Where a Mailbox is a heterogeneous, selectively
// received inbox, a channel is a single-type, non-selective FIFO closer
// in spirit to a Go channel — except that its send half can be handed to
// a remote process and used from there exactly as it is used locally.

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"reflect"
	"sync"

	"github.com/latticerun/lattice/internal"
)

// channelCore is the node-local state backing one channel: an owner
// process's worth of queued values of a single type, read by exactly one
// ReceivePort.
type channelCore struct {
	node    *Node
	owner   NodeID
	id      uint64
	mailbox *Mailbox
}

// newChannel allocates a fresh channel on n, returning its two ends. T is
// fixed at the call site, so the SendPort and ReceivePort returned only
// ever carry values of that type.
func newChannel[T any](n *Node) (SendPort[T], ReceivePort[T]) {
	id := n.channels.allocator.allocate()
	core := &channelCore{
		node:  n,
		owner: n.id,
		id:    id,
		// channels reuse a Mailbox's FIFO and blocking-wait machinery,
		// under a synthetic ProcessID; the send router finds the channel
		// by its id in the channel table, not in the process table.
		mailbox: newMailbox(n, ProcessID{Node: n.id, Local: id}),
	}
	n.channels.register(core)
	return SendPort[T]{core: core}, ReceivePort[T]{core: core}
}

// NewChannel is the exported constructor for a fresh typed channel pair
// on n.
func NewChannel[T any](n *Node) (SendPort[T], ReceivePort[T]) {
	return newChannel[T](n)
}

// SendPort is the sending half of a channel. Unlike ReceivePort, it is
// serializable: it can be embedded in a message sent to a remote
// process, and used from there to send back to this channel's owner.
type SendPort[T any] struct {
	core *channelCore
}

// Send delivers v to the channel. It never blocks on delivery to a
// remote owner beyond what the underlying connection's outbound queue
// requires (see connection.go). For a channel owned by this node it
// returns ErrMailboxTerminated once the channel has been closed; a send
// to a closed channel on another node is dropped there without an error.
func (s SendPort[T]) Send(v T) error {
	if s.core == nil {
		return fmt.Errorf("lattice: send on zero-value SendPort")
	}
	return s.core.node.sendToChannel(s.core.owner, s.core.id, v)
}

func (s SendPort[T]) wireOwner() NodeID { return s.core.owner }
func (s SendPort[T]) wireID() uint64    { return s.core.id }

func (s SendPort[T]) typeTag() string {
	var zero T
	return reflect.TypeOf(&zero).Elem().String()
}

// MarshalBinary implements encoding.BinaryMarshaler, giving SendPort a
// compact wire form: just enough to find the channel again (owner node,
// channel id, element type), not the node-local mailbox state behind it.
// cbor invokes this automatically for any field or top-level value of
// type SendPort[T], so a SendPort embedded in a message crosses the wire
// correctly without the caller doing anything special.
func (s SendPort[T]) MarshalBinary() ([]byte, error) {
	if s.core == nil {
		return nil, fmt.Errorf("lattice: cannot marshal a zero-value SendPort")
	}
	wire := internal.SendPortWire{
		Owner:   s.core.owner.toWire(),
		Channel: s.core.id,
		TypeTag: s.typeTag(),
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(wire); err != nil {
		return nil, fmt.Errorf("lattice: encoding send port: %w", err)
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler. It reconstructs
// a channelCore bound to the node currently decoding this value (see
// currentDecodeNode in encodable.go) rather than the node that
// originally created the channel: Send always routes through whichever
// node is holding the SendPort, local or remote, to reach the owner.
func (s *SendPort[T]) UnmarshalBinary(data []byte) error {
	var wire internal.SendPortWire
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&wire); err != nil {
		return fmt.Errorf("lattice: decoding send port: %w", err)
	}
	n := currentDecodeNode()
	if n == nil {
		return fmt.Errorf("lattice: send port decoded outside of a node decode")
	}
	s.core = &channelCore{
		node:  n,
		owner: nodeIDFromWire(wire.Owner),
		id:    wire.Channel,
	}
	return nil
}

// ReceivePort is the receiving half of a channel. It is not serializable
// — it may only ever be used on the node that created it — since
// delivering to a remote receiver would require routing every Send
// through a third node instead of directly to the owner.
type ReceivePort[T any] struct {
	core *channelCore
}

// receivePortMarker satisfies encodable.go's receivePortMarker interface,
// so Encode refuses a ReceivePort before ever calling into cbor.
func (r ReceivePort[T]) receivePortMarker() {}

// MarshalBinary implements encoding.BinaryMarshaler by always failing:
// a ReceivePort may only ever be used on the node that created it, so it
// has no wire form. This also catches a ReceivePort nested inside a
// larger message's fields, which the top-level marker check in Encode
// does not see.
func (r ReceivePort[T]) MarshalBinary() ([]byte, error) {
	return nil, ErrReceivePortNotSerializable
}

// Receive blocks until a value arrives or ctx is cancelled.
func (r ReceivePort[T]) Receive(ctx context.Context) (T, error) {
	var zero T
	if r.core == nil {
		return zero, fmt.Errorf("lattice: receive on zero-value ReceivePort")
	}

	type result struct {
		v   T
		err error
	}
	resultCh := make(chan result, 1)
	go func() {
		v, err := r.core.mailbox.ReceiveNext()
		if err != nil {
			resultCh <- result{zero, err}
			return
		}
		typed, ok := v.(T)
		if !ok {
			resultCh <- result{zero, fmt.Errorf("lattice: channel received unexpected type %T", v)}
			return
		}
		resultCh <- result{typed, nil}
	}()

	select {
	case r := <-resultCh:
		return r.v, r.err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Close terminates the channel; any blocked or future Receive calls
// observe ErrMailboxTerminated, and any Send on this node from a SendPort
// pointed at it fails the same way. Sends arriving from other nodes are
// dropped.
func (r ReceivePort[T]) Close() {
	r.core.mailbox.terminate()
	r.core.node.channels.unregister(r.core.id)
}

// channelTable tracks every locally-owned channel, so the send router
// can deliver a UserToPort frame to the right channelCore's mailbox.
type channelTable struct {
	node      *Node
	allocator localIndexAllocator

	mu   sync.RWMutex
	byID map[uint64]*channelCore
}

func newChannelTable(n *Node) *channelTable {
	return &channelTable{node: n, byID: make(map[uint64]*channelCore)}
}

func (t *channelTable) register(c *channelCore) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.byID[c.id] = c
}

func (t *channelTable) unregister(id uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.byID, id)
}

func (t *channelTable) lookup(id uint64) (*channelCore, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	c, ok := t.byID[id]
	return c, ok
}
