package lattice

// This file implements the closure registry used for remote spawn: a
// frozen-after-startup map from a symbolic name to a decoder and a
// process body. Spawning a process on a remote node never ships code —
// only the name and the CBOR-encoded arguments cross the wire, and the
// receiving node must already have that name registered.

import (
	"context"
	"fmt"
	"sync"
)

// Closure names a registered process body plus the arguments to start it
// with. It is the unit of work SpawnRemote ships to a peer.
type Closure struct {
	Name string
	Args interface{}
}

// ClosureBody is invoked on the node that receives a spawn request. args
// has already been decoded into the concrete type registered for this
// closure's name.
type ClosureBody func(ctx context.Context, self *Process, args interface{})

type closureEntry struct {
	argsZero interface{}
	body     ClosureBody
}

// closureRegistry is built up during startup by calls to RegisterClosure
// and then frozen: once a Node starts serving spawn requests, the
// registry is read-only, so lookups only ever take the read lock.
type closureRegistry struct {
	mu     sync.RWMutex
	byName map[string]closureEntry
	frozen bool
}

func newClosureRegistry() *closureRegistry {
	return &closureRegistry{byName: make(map[string]closureEntry)}
}

// Register associates name with a process body and the zero value of the
// argument type that body expects. It panics if called after the
// registry has been frozen (i.e. after the owning Node has started),
// since a closure that could appear or disappear at runtime would make
// remote spawn requests racy.
func (r *closureRegistry) Register(name string, argsZero interface{}, body ClosureBody) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		panic(fmt.Sprintf("lattice: cannot register closure %q after node start", name))
	}
	r.byName[name] = closureEntry{argsZero: argsZero, body: body}
}

func (r *closureRegistry) freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

func (r *closureRegistry) lookup(name string) (closureEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byName[name]
	return e, ok
}

// RegisterClosure registers a process body under name on n, for use as a
// remote-spawn target. It must be called before n.Start.
func (n *Node) RegisterClosure(name string, argsZero interface{}, body ClosureBody) {
	n.closures.Register(name, argsZero, body)
}
