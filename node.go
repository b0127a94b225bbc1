package lattice

// This file implements the node controller: construction from a
// configuration Source, wiring every other component together, starting
// the supervised services (listener, prober, and one peerConnection per
// known peer), and the role dispatcher that gives the node something to
// do. It is the one place that owns the lifetime of everything else in
// this package.

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/latticerun/lattice/config"
)

// Node is one running instance of the cluster runtime: an identity, a
// process table, a channel table, a closure registry, a peer directory,
// and the supervised network services that keep all of it connected to
// the rest of the cluster.
type Node struct {
	id     NodeID
	magic  string
	logger Logger

	encodable Encodable

	processes *processTable
	channels  *channelTable
	closures  *closureRegistry
	directory *peerDirectory
	router    *router

	connectBackoffMin time.Duration
	connectBackoffMax time.Duration
	deadlineInterval  time.Duration

	// tlsConfig, if set, wraps every outbound dial and inbound accept in
	// TLS before the magic-token handshake runs over it. See
	// latticetls.LoadConfig for building one.
	tlsConfig *tls.Config

	ctx        context.Context
	cancel     context.CancelFunc
	supervisor *suture.Supervisor

	role string
}

// Option customizes a Node at construction time.
type Option func(*Node)

// WithLogger overrides the default StdLogger.
func WithLogger(l Logger) Option {
	return func(n *Node) { n.logger = resolveLogger(l) }
}

// WithEncodable overrides the default CBOR-backed Encodable.
func WithEncodable(e Encodable) Option {
	return func(n *Node) { n.encodable = e }
}

// WithTLSConfig makes the node wrap every connection, dialed or accepted,
// in TLS before running the magic-token handshake over it. Use
// latticetls.LoadConfig to build cfg from a certificate and key on disk,
// such as those written by latticeinit.
func WithTLSConfig(cfg *tls.Config) Option {
	return func(n *Node) { n.tlsConfig = cfg }
}

// New constructs a Node from a configuration Source. Required keys:
// hostname, listen-port, magic. Optional keys: role, known-hosts,
// port-range (defaults to listen-port..listen-port), connect-backoff-ms
// (defaults to 100ms..30s).
func New(cfg config.Source, opts ...Option) (*Node, error) {
	host, ok := cfg.String("hostname")
	if !ok || host == "" {
		return nil, fmt.Errorf("%w: missing hostname", ErrConfigInvalid)
	}
	port, ok := cfg.Int("listen-port")
	if !ok {
		return nil, fmt.Errorf("%w: missing listen-port", ErrConfigInvalid)
	}
	magic, ok := cfg.String("magic")
	if !ok || magic == "" {
		return nil, fmt.Errorf("%w: missing magic", ErrConfigInvalid)
	}

	id := NodeID{Host: host, Port: uint16(port), Epoch: newEpoch()}

	ctx, cancel := context.WithCancel(context.Background())

	n := &Node{
		id:                id,
		magic:             magic,
		logger:            StdLogger,
		encodable:         defaultEncodable,
		connectBackoffMin: 100 * time.Millisecond,
		connectBackoffMax: 30 * time.Second,
		deadlineInterval:  5 * time.Minute,
		ctx:               ctx,
		cancel:            cancel,
	}
	n.processes = newProcessTable(n)
	n.channels = newChannelTable(n)
	n.closures = newClosureRegistry()
	n.directory = newPeerDirectory(n)
	n.router = newRouter(n)

	for _, opt := range opts {
		opt(n)
	}

	if lo, hi, ok := cfg.IntPair("connect-backoff-ms"); ok {
		n.connectBackoffMin = time.Duration(lo) * time.Millisecond
		n.connectBackoffMax = time.Duration(hi) * time.Millisecond
	}
	if role, ok := cfg.String(roleConfigKey); ok {
		n.role = role
	}

	n.supervisor = suture.NewSimple(fmt.Sprintf("lattice-node(%s)", id))

	n.buildProber(cfg, port)

	return n, nil
}

func (n *Node) buildProber(cfg config.Source, listenPort int) {
	portLo, portHi := listenPort, listenPort
	if lo, hi, ok := cfg.IntPair("port-range"); ok {
		portLo, portHi = lo, hi
	}
	hosts, _ := cfg.List("known-hosts")

	n.supervisor.Add(&prober{
		node: n,
		cfg: probeConfig{
			Hosts:   hosts,
			PortLo:  portLo,
			PortHi:  portHi,
			Magic:   n.magic,
			Timeout: 2 * time.Second,
		},
	})
}

// ID returns this node's identity.
func (n *Node) ID() NodeID { return n.id }

// ResolvePeer looks up the full identity, including epoch, of a peer
// this node has discovered at host:port. Callers that only know a
// peer's configured address — rather than a NodeID learned from a
// handshake or peer-announce frame — must resolve it this way instead
// of constructing a NodeID{Host, Port} directly, since that would leave
// Epoch zero and never match the peer's real identity.
func (n *Node) ResolvePeer(host string, port uint16) (NodeID, bool) {
	return n.directory.resolve(host, port)
}

// Start freezes the closure registry, starts the supervisor (listener,
// prober, and any already-known peer connections), and runs the role
// dispatcher. It returns once startup has been kicked off; it does not
// block for the lifetime of the node — use Wait for that.
func (n *Node) Start() {
	n.closures.freeze()
	n.supervisor.Add(newNodeListener(n))
	n.supervisor.ServeBackground(n.ctx)
	n.dispatchRole(n.role)
}

// Wait blocks until the node's context is cancelled, i.e. until Stop is
// called.
func (n *Node) Wait() {
	<-n.ctx.Done()
}

// Stop shuts the node down: cancels every supervised service and the
// context passed to every local process body. A process terminates once
// its body returns.
func (n *Node) Stop() {
	n.cancel()
}
