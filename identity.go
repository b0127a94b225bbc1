package lattice

// This file defines NodeID and ProcessID: the two identifiers that must
// be meaningful from any peer in the cluster, not just the node that
// minted them. Nodes are discovered dynamically rather than drawn from a
// small fixed set, so identity has to be self-describing: a (hostname,
// port) pair plus an epoch that disambiguates a node that restarts on the
// same host:port from its previous incarnation.

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/latticerun/lattice/internal"
)

// NodeID identifies one runtime instance on one host. Two NodeIDs are
// equal only if host, port, and epoch all match; a node that restarts
// gets a new epoch and is therefore never confused with its previous run,
// even if the OS hands it back the same listening port.
type NodeID struct {
	Host  string
	Port  uint16
	Epoch uint64
}

// newEpoch derives a process-start nonce from a random UUID rather than
// the wall clock, since two nodes started in the same instant on
// different hosts (or even the same host, in tests) must not collide.
func newEpoch() uint64 {
	id := uuid.New()
	lo := uint64(0)
	for _, b := range id[8:] {
		lo = lo<<8 | uint64(b)
	}
	return lo
}

// String renders a NodeID in nid://host:port/ form, with the epoch
// carried as a query parameter.
func (n NodeID) String() string {
	return fmt.Sprintf("nid://%s:%d/?epoch=%d", n.Host, n.Port, n.Epoch)
}

// ParseNodeID parses the nid:// textual form produced by NodeID.String.
func ParseNodeID(s string) (NodeID, error) {
	u, err := url.Parse(s)
	if err != nil {
		return NodeID{}, fmt.Errorf("lattice: invalid node id %q: %w", s, err)
	}
	if u.Scheme != "nid" {
		return NodeID{}, fmt.Errorf("lattice: invalid node id %q: wrong scheme", s)
	}
	host := u.Hostname()
	portStr := u.Port()
	if host == "" || portStr == "" {
		return NodeID{}, fmt.Errorf("lattice: invalid node id %q: missing host or port", s)
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return NodeID{}, fmt.Errorf("lattice: invalid node id %q: bad port: %w", s, err)
	}
	var epoch uint64
	if e := u.Query().Get("epoch"); e != "" {
		epoch, err = strconv.ParseUint(e, 10, 64)
		if err != nil {
			return NodeID{}, fmt.Errorf("lattice: invalid node id %q: bad epoch: %w", s, err)
		}
	}
	return NodeID{Host: host, Port: uint16(port), Epoch: epoch}, nil
}

func (n NodeID) toWire() internal.NodeIDWire {
	return internal.NodeIDWire{Host: n.Host, Port: n.Port, Epoch: n.Epoch}
}

func nodeIDFromWire(w internal.NodeIDWire) NodeID {
	return NodeID{Host: w.Host, Port: w.Port, Epoch: w.Epoch}
}

// less gives NodeID a total order used to decide which side of a
// simultaneous dial race keeps its connection: the node with the lower
// NodeID is responsible for establishing and maintaining the connection
// to the other node. The order is lexicographic over (host, port, epoch).
func (n NodeID) less(other NodeID) bool {
	if n.Host != other.Host {
		return n.Host < other.Host
	}
	if n.Port != other.Port {
		return n.Port < other.Port
	}
	return n.Epoch < other.Epoch
}

// ProcessID identifies one process, anywhere in the cluster. Local is a
// monotonically increasing index, unique for the lifetime of the owning
// node and never reused.
type ProcessID struct {
	Node  NodeID
	Local uint64
}

// String renders a ProcessID in pid://host:port/<local-index>/ form.
func (p ProcessID) String() string {
	return fmt.Sprintf("pid://%s:%d/%d/", p.Node.Host, p.Node.Port, p.Local)
}

// ParseProcessID parses the pid:// textual form produced by
// ProcessID.String.
func ParseProcessID(s string) (ProcessID, error) {
	const prefix = "pid://"
	if !strings.HasPrefix(s, prefix) {
		return ProcessID{}, fmt.Errorf("lattice: invalid process id %q", s)
	}
	rest := strings.TrimSuffix(strings.TrimPrefix(s, prefix), "/")
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 {
		return ProcessID{}, fmt.Errorf("lattice: invalid process id %q", s)
	}
	hostPort := parts[0]
	idx := strings.LastIndex(hostPort, ":")
	if idx < 0 {
		return ProcessID{}, fmt.Errorf("lattice: invalid process id %q", s)
	}
	host := hostPort[:idx]
	port, err := strconv.ParseUint(hostPort[idx+1:], 10, 16)
	if err != nil {
		return ProcessID{}, fmt.Errorf("lattice: invalid process id %q: bad port: %w", s, err)
	}
	local, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		return ProcessID{}, fmt.Errorf("lattice: invalid process id %q: bad index: %w", s, err)
	}
	return ProcessID{Node: NodeID{Host: host, Port: uint16(port)}, Local: local}, nil
}

func (p ProcessID) toWire() internal.ProcessIDWire {
	return internal.ProcessIDWire{Node: p.Node.toWire(), Local: p.Local}
}

func processIDFromWire(w internal.ProcessIDWire) ProcessID {
	return ProcessID{Node: nodeIDFromWire(w.Node), Local: w.Local}
}

// localIndexAllocator hands out monotonically increasing, never-reused
// local indexes for ProcessIDs and channel indexes.
type localIndexAllocator struct {
	next uint64
}

func (a *localIndexAllocator) allocate() uint64 {
	return atomic.AddUint64(&a.next, 1)
}
