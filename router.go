package lattice

// This file implements the send router: the single place that decides,
// for any ProcessID, SendPort target, or incoming frame, whether to
// deliver locally (straight into a Mailbox) or hand off to a
// peerConnection. It also handles spawn-request/spawn-reply and
// peer-announce frames, which don't address a mailbox at all.

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/latticerun/lattice/internal"
)

// SpawnTimeout bounds how long SpawnRemote waits for a spawn-reply
// before giving up.
var SpawnTimeout = 10 * time.Second

type router struct {
	node *Node

	pendingSpawns pendingSpawnTable
}

func newRouter(n *Node) *router {
	return &router{node: n}
}

// Send delivers msg to target, locally or remotely as appropriate. msg
// must have been registered with the node's Encodable. A send to a local
// ProcessID with no running process is dropped and returns nil.
func (n *Node) Send(target ProcessID, msg interface{}) error {
	if target.Node == n.id {
		if err := n.deliverLocal(target, msg); err != ErrNotLocalMailbox {
			return err
		}
		return nil
	}
	return n.sendRemote(target, msg)
}

// deliverLocal places msg directly into target's mailbox, bypassing
// encoding entirely, since no wire crossing is involved.
func (n *Node) deliverLocal(target ProcessID, msg interface{}) error {
	p, ok := n.processes.lookup(target)
	if !ok {
		return ErrNotLocalMailbox
	}
	return p.Mailbox.deliver(msg)
}

func (n *Node) sendRemote(target ProcessID, msg interface{}) error {
	pc, ok := n.directory.lookup(target.Node)
	if !ok {
		return ErrNodeUnreachable
	}
	tag, data, err := n.encodable.Encode(msg)
	if err != nil {
		return fmt.Errorf("lattice: encoding message for %s: %w", target, err)
	}
	return pc.send(tagUserToPid, &internal.UserToPid{
		Target:  target.toWire(),
		TypeTag: tag,
		Payload: data,
	})
}

// sendToChannel delivers v to the channel identified by (owner, id),
// locally or remotely.
func (n *Node) sendToChannel(owner NodeID, id uint64, v interface{}) error {
	if owner == n.id {
		core, ok := n.channels.lookup(id)
		if !ok {
			return ErrMailboxTerminated
		}
		return core.mailbox.deliver(v)
	}

	pc, ok := n.directory.lookup(owner)
	if !ok {
		return ErrNodeUnreachable
	}
	tag, data, err := n.encodable.Encode(v)
	if err != nil {
		return fmt.Errorf("lattice: encoding channel message: %w", err)
	}
	return pc.send(tagUserToPort, &internal.UserToPort{
		Owner:   owner.toWire(),
		Channel: id,
		TypeTag: tag,
		Payload: data,
	})
}

// pendingSpawn tracks one in-flight SpawnRemote call awaiting a reply.
type pendingSpawn struct {
	result chan internal.SpawnReply
}

type pendingSpawnTable struct {
	mu        sync.Mutex
	next      uint64
	byRequest map[uint64]pendingSpawn
}

func (n *Node) spawnRemote(ctx context.Context, target NodeID, closure Closure) (ProcessID, error) {
	pc, ok := n.directory.lookup(target)
	if !ok {
		return ProcessID{}, ErrNodeUnreachable
	}

	// A nil Args is sent as no bytes at all; the receiving node then hands
	// the closure its registered zero value (see decodeClosureArgs).
	var data []byte
	if closure.Args != nil {
		var err error
		_, data, err = n.encodable.Encode(closure.Args)
		if err != nil {
			return ProcessID{}, fmt.Errorf("lattice: encoding spawn args: %w", err)
		}
	}

	reqID, resultCh := n.router.pendingSpawns.register()
	defer n.router.pendingSpawns.forget(reqID)

	if err := pc.send(tagSpawnRequest, &internal.SpawnRequest{
		RequestID: reqID,
		Closure:   closure.Name,
		Args:      data,
	}); err != nil {
		return ProcessID{}, err
	}

	timeout := time.NewTimer(SpawnTimeout)
	defer timeout.Stop()

	select {
	case reply := <-resultCh:
		if reply.Err != "" {
			return ProcessID{}, &RemoteSpawnError{Node: target, Reason: reply.Err}
		}
		return processIDFromWire(reply.Process), nil
	case <-timeout.C:
		return ProcessID{}, ErrSpawnTimeout
	case <-ctx.Done():
		return ProcessID{}, ctx.Err()
	}
}

func (t *pendingSpawnTable) register() (uint64, chan internal.SpawnReply) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.byRequest == nil {
		t.byRequest = make(map[uint64]pendingSpawn)
	}
	t.next++
	id := t.next
	ch := make(chan internal.SpawnReply, 1)
	t.byRequest[id] = pendingSpawn{result: ch}
	return id, ch
}

func (t *pendingSpawnTable) forget(id uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.byRequest, id)
}

func (t *pendingSpawnTable) complete(reply internal.SpawnReply) {
	t.mu.Lock()
	p, ok := t.byRequest[reply.RequestID]
	t.mu.Unlock()
	if ok {
		p.result <- reply
	}
}

// handleFrame dispatches one decoded frame received from peer.
func (r *router) handleFrame(pc *peerConnection, f frame) {
	n := r.node
	switch body := f.body.(type) {
	case *internal.UserToPid:
		target := processIDFromWire(body.Target)
		v, err := n.decode(body.TypeTag, body.Payload)
		if err != nil {
			n.logger.Error("decoding message for %s: %s", target, err)
			return
		}
		if err := n.deliverLocal(target, v); err != nil && err != ErrNotLocalMailbox {
			n.logger.Warn("delivering to %s: %s", target, err)
		}

	case *internal.UserToPort:
		owner := nodeIDFromWire(body.Owner)
		v, err := n.decode(body.TypeTag, body.Payload)
		if err != nil {
			n.logger.Error("decoding channel message: %s", err)
			return
		}
		if owner == n.id {
			if core, ok := n.channels.lookup(body.Channel); ok {
				if err := core.mailbox.deliver(v); err != nil && err != ErrMailboxTerminated {
					n.logger.Warn("delivering to channel %d: %s", body.Channel, err)
				}
			}
		}

	case *internal.SpawnRequest:
		n.handleSpawnRequest(pc, body)

	case *internal.SpawnReply:
		r.pendingSpawns.complete(*body)

	case *internal.PeerAnnounce:
		for _, w := range body.Nodes {
			n.directory.learn(nodeIDFromWire(w))
		}

	case *internal.Ping:
		pc.send(tagPong, &internal.Pong{})

	case *internal.Pong:
		// no-op: receipt alone resets the read deadline in readLoop.

	default:
		n.logger.Warn("received frame of unexpected type %T", body)
	}
}

func (n *Node) handleSpawnRequest(pc *peerConnection, req *internal.SpawnRequest) {
	entry, ok := n.closures.lookup(req.Closure)
	if !ok {
		pc.send(tagSpawnReply, &internal.SpawnReply{
			RequestID: req.RequestID,
			Err:       ErrUnknownClosure.Error(),
		})
		return
	}

	args, err := n.decodeClosureArgs(entry, req.Args)
	if err != nil {
		pc.send(tagSpawnReply, &internal.SpawnReply{
			RequestID: req.RequestID,
			Err:       err.Error(),
		})
		return
	}

	p := n.processes.spawnLocal(func(ctx context.Context, self *Process) {
		entry.body(ctx, self, args)
	})

	pc.send(tagSpawnReply, &internal.SpawnReply{
		RequestID: req.RequestID,
		Process:   p.ID().toWire(),
	})
}

func (n *Node) decodeClosureArgs(entry closureEntry, data []byte) (interface{}, error) {
	if len(data) == 0 {
		return entry.argsZero, nil
	}
	tag := reflect.TypeOf(entry.argsZero).String()
	return n.decode(tag, data)
}
