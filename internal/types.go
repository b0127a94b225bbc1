/*

Package internal holds the wire-level message shapes exchanged between
nodes. They must be exported for gob to encode/decode them, but have no
place in the public API, hence the separate internal package: it keeps
these types out of reach of callers while letting the main package
import them without a circular dependency.

*/
package internal

import "encoding/gob"

func init() {
	gob.Register(&Handshake{})
	gob.Register(&UserToPid{})
	gob.Register(&UserToPort{})
	gob.Register(&SpawnRequest{})
	gob.Register(&SpawnReply{})
	gob.Register(&PeerAnnounce{})
	gob.Register(&Ping{})
	gob.Register(&Pong{})
	gob.Register(SendPortWire{})
}

// NodeIDWire is the wire encoding of the main package's NodeID.
type NodeIDWire struct {
	Host  string
	Port  uint16
	Epoch uint64
}

// ProcessIDWire is the wire encoding of the main package's ProcessID.
type ProcessIDWire struct {
	Node  NodeIDWire
	Local uint64
}

// Handshake is exchanged immediately after a TCP connection is opened,
// before any tagged frame is sent. It carries the sender's NodeID and
// the shared magic token; a mismatched token is fatal to the connection.
type Handshake struct {
	Magic   string
	Node    NodeIDWire
	Version uint16
}

// UserToPid is the body of a tag-1 frame: a user message addressed to a
// process mailbox.
type UserToPid struct {
	Target  ProcessIDWire
	TypeTag string
	Payload []byte
}

// UserToPort is the body of a tag-2 frame: a user message addressed to a
// channel's receive queue.
type UserToPort struct {
	Owner   NodeIDWire
	Channel uint64
	TypeTag string
	Payload []byte
}

// SpawnRequest is the body of a tag-3 frame.
type SpawnRequest struct {
	RequestID uint64
	Closure   string
	Args      []byte
}

// SpawnReply is the body of a tag-4 frame. Err is empty on success.
type SpawnReply struct {
	RequestID uint64
	Process   ProcessIDWire
	Err       string
}

// PeerAnnounce is the body of a tag-5 frame: a snapshot of NodeIDs the
// sender currently knows about, propagated so discovery is transitive.
type PeerAnnounce struct {
	Nodes []NodeIDWire
}

// Ping is the body of a tag-6 frame.
type Ping struct{}

// Pong is the body of a tag-7 frame.
type Pong struct{}

// SendPortWire is the binary encoding of a SendPort, the compact form
// it takes when embedded in a message that crosses the wire: enough to
// find the owning channel again on the receiving side, plus the element
// type it carries.
type SendPortWire struct {
	Owner   NodeIDWire
	Channel uint64
	TypeTag string
}
