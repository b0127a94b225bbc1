package lattice

// This file implements peerConnection: the reliability layer over one
// raw TCP socket to a peer node. It owns the state machine (new,
// connecting, up, backoff, connecting again), a bounded outbound
// queue that applies backpressure to senders rather than growing
// unboundedly, and a reconnect loop with exponential backoff. It runs as
// a github.com/thejerf/suture service so a panic or a returned error
// restarts it rather than silently dropping the peer forever.

import (
	"bufio"
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/latticerun/lattice/internal"
)

const clusterVersion = 1

// outboundQueueSize bounds how many not-yet-written frames a
// peerConnection will buffer before Send blocks the caller, providing
// backpressure when the network or the peer can't keep up.
const outboundQueueSize = 256

type peerConnState int

const (
	connStateNew peerConnState = iota
	connStateConnecting
	connStateUp
	connStateBackoff
)

// peerConnection manages connectivity to exactly one peer NodeID for the
// lifetime of this node. It is looked up by NodeID from the peer
// directory and addressed by the send router.
type peerConnection struct {
	node *Node
	peer NodeID

	mu        sync.Mutex
	state     peerConnState
	conn      net.Conn
	outbound  chan frameToSend
	stopCh    chan struct{}
	adoptedCh chan net.Conn
}

type frameToSend struct {
	tag  frameTag
	body interface{}
}

func newPeerConnection(n *Node, peer NodeID) *peerConnection {
	return &peerConnection{
		node:      n,
		peer:      peer,
		outbound:  make(chan frameToSend, outboundQueueSize),
		stopCh:    make(chan struct{}),
		adoptedCh: make(chan net.Conn, 1),
	}
}

func (pc *peerConnection) String() string {
	return fmt.Sprintf("peer-connection(%s)", pc.peer)
}

// requestStop ends this connection's Serve loop for good; used when the
// directory invalidates a stale peer.
func (pc *peerConnection) requestStop() {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	select {
	case <-pc.stopCh:
	default:
		close(pc.stopCh)
	}
}

// adopt hands a connection that has already completed its handshake
// (established by the peer-prober's outbound dial, or accepted by the
// listener) directly to this peerConnection, short-circuiting the
// connect-and-handshake dance in Serve.
func (pc *peerConnection) adopt(conn net.Conn) {
	select {
	case pc.adoptedCh <- conn:
	default:
		conn.Close()
	}
}

// Serve implements the suture service contract: obtain a connection
// (dial, or accept one handed over by adopt), exchange frames until the
// connection drops, then retry with exponential backoff until ctx is
// cancelled or requestStop is called. The node in a pair with the lower
// NodeID is responsible for dialing; the other side waits for an
// adopted inbound connection from the listener.
func (pc *peerConnection) Serve(ctx context.Context) error {
	backoff := pc.node.connectBackoffMin
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-pc.stopCh:
			return nil
		default:
		}

		pc.setConnecting()
		conn, err := pc.obtainConnection(ctx)
		if err != nil {
			pc.node.logger.Warn("connection to %s: %s", pc.peer, err)
			if !pc.sleep(ctx, backoff) {
				return nil
			}
			backoff = nextBackoff(backoff, pc.node.connectBackoffMax)
			continue
		}

		backoff = pc.node.connectBackoffMin
		pc.setUp(conn)
		pc.node.logger.Info("connection to %s established", pc.peer)

		err = pc.runSession(ctx, conn)
		pc.setDown()
		conn.Close()
		// Frames still queued for the lost session are dropped.
	drain:
		for {
			select {
			case <-pc.outbound:
			default:
				break drain
			}
		}
		if err != nil {
			pc.node.logger.Warn("connection to %s lost: %s", pc.peer, err)
		}

		if !pc.sleep(ctx, backoff) {
			return nil
		}
		backoff = nextBackoff(backoff, pc.node.connectBackoffMax)
	}
}

func (pc *peerConnection) sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-pc.stopCh:
		return false
	case <-time.After(d):
		return true
	}
}

func nextBackoff(cur, max time.Duration) time.Duration {
	next := cur * 2
	if next > max {
		return max
	}
	return next
}

// obtainConnection waits for an adopted connection, or dials the peer
// itself if this node's NodeID sorts lower than the peer's.
func (pc *peerConnection) obtainConnection(ctx context.Context) (net.Conn, error) {
	select {
	case conn := <-pc.adoptedCh:
		return conn, nil
	default:
	}

	if !pc.node.id.less(pc.peer) {
		select {
		case conn := <-pc.adoptedCh:
			return conn, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	dialer := net.Dialer{Timeout: 5 * time.Second}
	addr := fmt.Sprintf("%s:%d", pc.peer.Host, pc.peer.Port)
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	if pc.node.tlsConfig != nil {
		conn = tls.Client(conn, pc.node.tlsConfig)
	}
	got, err := handshakeOutbound(conn, pc.node.id, pc.node.magic)
	if err != nil {
		conn.Close()
		return nil, err
	}
	if got != pc.peer {
		conn.Close()
		pc.node.directory.invalidate(pc.peer)
		return nil, fmt.Errorf("lattice: peer at %s is now %s, not %s", addr, got, pc.peer)
	}
	return conn, nil
}

func (pc *peerConnection) setConnecting() {
	pc.mu.Lock()
	pc.state = connStateConnecting
	pc.mu.Unlock()
}

func (pc *peerConnection) setUp(conn net.Conn) {
	pc.mu.Lock()
	pc.state = connStateUp
	pc.conn = conn
	pc.mu.Unlock()
}

func (pc *peerConnection) setDown() {
	pc.mu.Lock()
	pc.state = connStateBackoff
	pc.conn = nil
	pc.mu.Unlock()
}

// runSession drains the outbound queue to the wire and reads incoming
// frames, handing each to the node's router, until the connection fails
// or a ping keepalive lapses.
func (pc *peerConnection) runSession(ctx context.Context, conn net.Conn) error {
	sessionCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 3)

	go func() { errCh <- pc.writeLoop(sessionCtx, conn) }()
	go func() { errCh <- pc.readLoop(sessionCtx, conn) }()
	go func() { errCh <- pingLoop(sessionCtx, pc) }()

	err := <-errCh
	cancel()
	return err
}

func (pc *peerConnection) writeLoop(ctx context.Context, conn net.Conn) error {
	w := bufio.NewWriter(conn)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case f := <-pc.outbound:
			if err := writeFrame(w, f.tag, f.body); err != nil {
				return err
			}
		}
	}
}

func (pc *peerConnection) readLoop(ctx context.Context, conn net.Conn) error {
	r := bufio.NewReader(conn)
	for {
		if deadline, ok := ctx.Deadline(); ok {
			conn.SetReadDeadline(deadline)
		} else {
			conn.SetReadDeadline(time.Now().Add(pc.node.deadlineInterval))
		}
		f, err := readFrame(r)
		if err != nil {
			return err
		}
		pc.node.router.handleFrame(pc, f)
	}
}

// send enqueues a frame for this peer and returns as soon as it is
// queued; it blocks only if the outbound queue is full, which is the
// only backpressure a caller should ever feel. It does not wait for the
// frame to reach the wire: a write failure only drives this connection's
// own state machine (runSession returns, Serve backs off and retries) and
// never propagates back to a call that has already returned. A dropped
// connection is therefore a silent drop from the sender's point of view,
// not an error.
func (pc *peerConnection) send(tag frameTag, body interface{}) error {
	select {
	case pc.outbound <- frameToSend{tag: tag, body: body}:
		return nil
	case <-pc.stopCh:
		return ErrNodeUnreachable
	}
}

// handshakeOutbound performs the dialing side of the magic-token
// handshake: send our handshake, then read the peer's and verify its
// magic matches ours.
func handshakeOutbound(conn net.Conn, self NodeID, magic string) (NodeID, error) {
	w := bufio.NewWriter(conn)
	if err := writeHandshake(w, internal.Handshake{
		Magic:   magic,
		Node:    self.toWire(),
		Version: clusterVersion,
	}); err != nil {
		return NodeID{}, err
	}

	r := bufio.NewReader(conn)
	h, err := readHandshake(r)
	if err != nil {
		return NodeID{}, err
	}
	if h.Magic != magic {
		return NodeID{}, ErrMagicMismatch
	}
	return nodeIDFromWire(h.Node), nil
}

// handshakeInbound performs the accepting side, used by the listener for
// a freshly-accepted connection.
func handshakeInbound(conn net.Conn, self NodeID, magic string) (NodeID, error) {
	r := bufio.NewReader(conn)
	h, err := readHandshake(r)
	if err != nil {
		return NodeID{}, err
	}
	if h.Magic != magic {
		return NodeID{}, ErrMagicMismatch
	}

	w := bufio.NewWriter(conn)
	if err := writeHandshake(w, internal.Handshake{
		Magic:   magic,
		Node:    self.toWire(),
		Version: clusterVersion,
	}); err != nil {
		return NodeID{}, err
	}
	return nodeIDFromWire(h.Node), nil
}
