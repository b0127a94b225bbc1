package lattice

// User payload serialization is a pluggable capability rather than a
// fixed format: this file defines that capability's interface and a
// default implementation backed by github.com/fxamacker/cbor/v2. The
// wire codec (codec.go) never looks inside the bytes an Encodable
// produces; it only ever sees (tag string, data []byte).

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/fxamacker/cbor/v2"
)

// Encodable is the capability a value must have to cross the wire inside
// a user-to-pid or user-to-port frame: the ability to become (type tag,
// bytes) and back. The type tag is chosen by the caller's type system and
// is opaque to the transport and codec layers.
type Encodable interface {
	Encode(v interface{}) (tag string, data []byte, err error)
	Decode(tag string, data []byte) (interface{}, error)
}

// ErrUnknownTypeTag is returned by Decode when no constructor has been
// registered for a given type tag.
var ErrUnknownTypeTag = fmt.Errorf("lattice: unknown type tag")

// CBOREncodable is the default Encodable, keyed by the Go type's
// reflect.Type string as the wire tag.
type CBOREncodable struct {
	mu           sync.RWMutex
	constructors map[string]func() interface{}
}

// NewCBOREncodable returns a ready-to-use CBOREncodable with no types
// registered; Register must be called once per concrete type you intend
// to send, mirroring RegisterType below.
func NewCBOREncodable() *CBOREncodable {
	return &CBOREncodable{constructors: make(map[string]func() interface{})}
}

// Register teaches the Encodable how to decode values of the same
// concrete type as the zero value passed in. This must be called on both
// the sending and the receiving node before a value of that type is sent.
func (c *CBOREncodable) Register(zero interface{}) {
	t := reflect.TypeOf(zero)
	tag := t.String()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.constructors[tag] = func() interface{} {
		return reflect.New(t).Interface()
	}
}

// receivePortMarker is implemented by every ReceivePort[T]; Encode uses it
// to refuse serialization up front rather than letting cbor attempt it and
// silently succeed against an unexported field.
type receivePortMarker interface {
	receivePortMarker()
}

// Encode implements Encodable.
func (c *CBOREncodable) Encode(v interface{}) (string, []byte, error) {
	if _, ok := v.(receivePortMarker); ok {
		return "", nil, ErrReceivePortNotSerializable
	}
	tag := reflect.TypeOf(v).String()
	data, err := cbor.Marshal(v)
	if err != nil {
		return "", nil, fmt.Errorf("lattice: cbor encode of %s: %w", tag, err)
	}
	return tag, data, nil
}

// Decode implements Encodable.
func (c *CBOREncodable) Decode(tag string, data []byte) (interface{}, error) {
	c.mu.RLock()
	ctor, ok := c.constructors[tag]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTypeTag, tag)
	}

	target := ctor()
	if err := cbor.Unmarshal(data, target); err != nil {
		return nil, fmt.Errorf("lattice: cbor decode of %s: %w", tag, err)
	}
	return reflect.ValueOf(target).Elem().Interface(), nil
}

// ambientDecodeNode carries the receiving Node across a single Decode
// call, for the benefit of types (SendPort, notably) whose
// UnmarshalBinary must reconstruct a reference bound to the node doing
// the decoding rather than the node that sent it. It is held only for
// the duration of one cbor.Unmarshal call, serializing decodes
// process-wide in exchange for not having to thread a Node through every
// layer of cbor's recursive field decoding.
var ambientDecodeNode struct {
	mu   sync.Mutex
	node *Node
}

// currentDecodeNode returns the Node on whose behalf a Decode call is
// currently in progress, or nil if called outside of one. It is only ever
// called from within cbor's recursive decode of a value passed to
// (*Node).decode below, i.e. from the same goroutine that already holds
// ambientDecodeNode.mu for the duration of that call, so no locking is
// needed (or possible, without deadlocking) here.
func currentDecodeNode() *Node {
	return ambientDecodeNode.node
}

// decode is the node-aware entry point the rest of the package should use
// in place of calling n.encodable.Decode directly, whenever the decoded
// value might embed a SendPort.
func (n *Node) decode(tag string, data []byte) (interface{}, error) {
	ambientDecodeNode.mu.Lock()
	defer ambientDecodeNode.mu.Unlock()
	ambientDecodeNode.node = n
	defer func() { ambientDecodeNode.node = nil }()
	return n.encodable.Decode(tag, data)
}

// defaultEncodable is shared by any Node that doesn't supply its own
// Encodable; RegisterType below registers against this instance.
var defaultEncodable = NewCBOREncodable()

// RegisterType registers a type to be sent across the cluster using the
// default Encodable.
func RegisterType(value interface{}) {
	defaultEncodable.Register(value)
}
