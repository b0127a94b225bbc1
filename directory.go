package lattice

// This file implements the peer directory: the set of nodes this node
// currently knows how to reach, discovered by probing a configured list
// of hosts across a bounded port range and grown afterward by gossip
// (peer-announce frames) from already-connected peers.

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/latticerun/lattice/internal"
)

// peerDirectory tracks every NodeID this node has learned about, along
// with the live *peerConnection serving it, if any.
type peerDirectory struct {
	node *Node

	mu    sync.RWMutex
	known map[NodeID]*peerConnection
}

func newPeerDirectory(n *Node) *peerDirectory {
	return &peerDirectory{node: n, known: make(map[NodeID]*peerConnection)}
}

// learn records id as known, creating a connection if one doesn't
// already exist for it. It is called both when a configured host probe
// succeeds and when a peer-announce frame names a node we hadn't heard
// of yet.
func (d *peerDirectory) learn(id NodeID) *peerConnection {
	if id == d.node.id {
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if pc, ok := d.known[id]; ok {
		return pc
	}
	pc := newPeerConnection(d.node, id)
	d.known[id] = pc
	d.node.supervisor.Add(pc)
	return pc
}

// lookup returns the connection for id, if this node has ever learned
// of it.
func (d *peerDirectory) lookup(id NodeID) (*peerConnection, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	pc, ok := d.known[id]
	return pc, ok
}

// snapshot returns every known NodeID, for inclusion in an outgoing
// peer-announce frame.
func (d *peerDirectory) snapshot() []NodeID {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]NodeID, 0, len(d.known))
	for id := range d.known {
		out = append(out, id)
	}
	return out
}

// announce gossips this node's current directory snapshot to every peer
// it's connected to, so a node only configured with host A's address can
// still learn of host C once B, connected to both, announces it. It is
// best-effort: a peer whose outbound queue is full or not yet up is
// skipped rather than blocked on, since gossip is retried on the next
// sweep anyway.
func (d *peerDirectory) announce() {
	nodes := d.snapshot()
	if len(nodes) == 0 {
		return
	}
	wire := make([]internal.NodeIDWire, len(nodes))
	for i, id := range nodes {
		wire[i] = id.toWire()
	}

	d.mu.RLock()
	peers := make([]*peerConnection, 0, len(d.known))
	for _, pc := range d.known {
		peers = append(peers, pc)
	}
	d.mu.RUnlock()

	body := &internal.PeerAnnounce{Nodes: wire}
	for _, pc := range peers {
		select {
		case pc.outbound <- frameToSend{tag: tagPeerAnnounce, body: body}:
		default:
		}
	}
}

// resolve finds a known NodeID matching host:port regardless of epoch,
// for callers that only know a peer's configured address and need the
// full identity — including the epoch a discovery probe learned — before
// they can address it.
func (d *peerDirectory) resolve(host string, port uint16) (NodeID, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for id := range d.known {
		if id.Host == host && id.Port == port {
			return id, true
		}
	}
	return NodeID{}, false
}

// invalidate drops id from the directory entirely, forcing a future
// learn to rebuild the connection from scratch. It's used when a peer's
// epoch turns out to be stale (the node restarted on the same
// host:port).
func (d *peerDirectory) invalidate(id NodeID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if pc, ok := d.known[id]; ok {
		pc.requestStop()
		delete(d.known, id)
	}
}

// probeConfig describes the bounded search space discovery sweeps over:
// a list of hostnames and a [lo, hi] port range to try on each.
type probeConfig struct {
	Hosts   []string
	PortLo  int
	PortHi  int
	Magic   string
	Timeout time.Duration
}

// probeOnce tries every (host, port) combination in cfg once, each with
// a short dial timeout, and learns any node that completes a handshake.
// It does not block waiting for hosts that are down; a dial timeout or
// refusal is treated as "not there yet" rather than an error.
func (d *peerDirectory) probeOnce(ctx context.Context, cfg probeConfig) {
	for _, host := range cfg.Hosts {
		for port := cfg.PortLo; port <= cfg.PortHi; port++ {
			select {
			case <-ctx.Done():
				return
			default:
			}
			d.probeOne(ctx, host, port, cfg)
		}
	}
}

func (d *peerDirectory) probeOne(ctx context.Context, host string, port int, cfg probeConfig) {
	addr := fmt.Sprintf("%s:%d", host, port)

	dialer := net.Dialer{Timeout: cfg.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return
	}

	peerID, err := handshakeOutbound(conn, d.node.id, cfg.Magic)
	if err != nil {
		conn.Close()
		d.node.logger.Trace("discovery probe %s: handshake failed: %s", addr, err)
		return
	}

	d.node.logger.Info("discovered peer %s at %s", peerID, addr)
	pc := d.learn(peerID)
	if pc != nil {
		pc.adopt(conn)
	}
}

// prober is a suture-supervised service that repeatedly sweeps the
// configured host/port space and gossips the directory after each sweep.
// The wait between sweeps starts at 2s and doubles after each sweep
// until it is 30s or more, whether or not any peer has connected.
type prober struct {
	node *Node
	cfg  probeConfig
}

func (p *prober) String() string { return "peer-prober" }

func (p *prober) Serve(ctx context.Context) error {
	interval := 2 * time.Second
	for {
		p.node.directory.probeOnce(ctx, p.cfg)
		p.node.directory.announce()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
		if interval < 30*time.Second {
			interval *= 2
		}
	}
}
