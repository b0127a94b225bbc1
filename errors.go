package lattice

import "fmt"

// These sentinel errors give each distinct failure mode a stable identity
// that callers can compare against with errors.Is rather than matching on
// formatted strings.
var (
	// ErrMailboxTerminated is returned when the target mailbox has
	// (already) been terminated.
	ErrMailboxTerminated = fmt.Errorf("lattice: mailbox has been terminated")

	// ErrNotLocalMailbox is returned when a remote ProcessID is passed
	// into a function that only works on local mailboxes.
	ErrNotLocalMailbox = fmt.Errorf("lattice: process is not local to this node")

	// ErrReceivePortNotSerializable is returned by the Encodable capability
	// when asked to encode a ReceivePort; only SendPort may cross the wire.
	ErrReceivePortNotSerializable = fmt.Errorf("lattice: receive ports cannot be serialized")

	// ErrReceiveTimeout is returned by ReceiveTimeout and
	// ReceiveNextTimeout when no matching message arrives before the
	// deadline.
	ErrReceiveTimeout = fmt.Errorf("lattice: receive timed out")

	// ErrUnknownClosure is carried in a spawn-reply when the requested
	// closure name is not registered on the target node.
	ErrUnknownClosure = fmt.Errorf("lattice: unknown closure")

	// ErrNodeUnreachable is returned by SpawnRemote when the target node cannot
	// be reached at all (no connection, and none could be established).
	ErrNodeUnreachable = fmt.Errorf("lattice: node unreachable")

	// ErrSpawnTimeout is returned by SpawnRemote when no spawn-reply arrives
	// before the configured deadline.
	ErrSpawnTimeout = fmt.Errorf("lattice: remote spawn timed out")

	// ErrConfigInvalid is returned by node construction when the supplied
	// configuration source is missing required keys or has invalid values.
	ErrConfigInvalid = fmt.Errorf("lattice: invalid configuration")

	// ErrMagicMismatch is returned when a peer's handshake carries a
	// different magic token than our own; the connection is refused.
	ErrMagicMismatch = fmt.Errorf("lattice: magic token mismatch")
)

// FrameError reports a wire-framing violation: a length bound exceeded or
// an unrecognized frame tag. It is fatal only to the connection that
// produced it.
type FrameError struct {
	Reason string
}

func (fe *FrameError) Error() string {
	return fmt.Sprintf("lattice: frame corrupt: %s", fe.Reason)
}

// RemoteSpawnError is returned by SpawnRemote when the target node replies with
// a spawn-reply carrying an error (e.g. unknown closure, or the closure's
// argument decoder rejected the encoded arguments).
type RemoteSpawnError struct {
	Node   NodeID
	Reason string
}

func (rse *RemoteSpawnError) Error() string {
	return fmt.Sprintf("lattice: remote spawn on %s failed: %s", rse.Node, rse.Reason)
}
