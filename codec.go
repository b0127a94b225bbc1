package lattice

// This file implements the wire codec: an explicit (length, tag, body)
// frame written ahead of every control or routing message, so a reader
// knows exactly how many bytes to pull off the socket before decoding.
// The body of each frame is gob-encoded, which keeps identifier and
// control-message encoding uniform across the whole connection.
//
// User payloads riding inside a UserToPid/UserToPort body are opaque to
// this codec: they arrive as (type-tag string, encoded bytes) from the
// caller's Encodable capability and are carried as raw bytes, never
// gob-inspected.

import (
	"bufio"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"io"

	"github.com/latticerun/lattice/internal"
)

// frameTag identifies the shape of a frame's body.
type frameTag uint8

const (
	tagUserToPid     frameTag = 1
	tagUserToPort    frameTag = 2
	tagSpawnRequest  frameTag = 3
	tagSpawnReply    frameTag = 4
	tagPeerAnnounce  frameTag = 5
	tagPing          frameTag = 6
	tagPong          frameTag = 7
)

// maxFrameLength bounds a single frame's length prefix (tag byte plus
// body) to guard against a corrupt or hostile peer claiming an enormous
// length prefix.
const maxFrameLength = 64 << 20 // 64 MiB

// frame is a fully decoded wire frame: a tag plus its typed body.
type frame struct {
	tag  frameTag
	body interface{}
}

// writeFrame encodes body with gob, then writes the (length, tag, body)
// header+payload specified in section 6, big-endian.
func writeFrame(w *bufio.Writer, tag frameTag, body interface{}) error {
	var buf fixedBuffer
	enc := gob.NewEncoder(&buf)
	if err := enc.Encode(body); err != nil {
		return fmt.Errorf("lattice: encoding frame body: %w", err)
	}

	length := uint32(len(buf.data) + 1) // +1 for the tag byte
	if len(buf.data)+1 > maxFrameLength {
		return &FrameError{Reason: "outbound frame exceeds maximum length"}
	}

	var header [5]byte
	binary.BigEndian.PutUint32(header[0:4], length)
	header[4] = byte(tag)

	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	if _, err := w.Write(buf.data); err != nil {
		return err
	}
	return w.Flush()
}

// readFrame reads one (length, tag, body) frame and decodes its body into
// the concrete type associated with tag. An unrecognized tag or a length
// outside [1, maxFrameLength] is a *FrameError; the caller must treat
// this as fatal to the connection.
func readFrame(r *bufio.Reader) (frame, error) {
	var header [5]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return frame{}, err
	}
	length := binary.BigEndian.Uint32(header[0:4])
	tag := frameTag(header[4])

	if length == 0 || length > maxFrameLength {
		return frame{}, &FrameError{Reason: fmt.Sprintf("illegal frame length %d", length)}
	}

	body := make([]byte, length-1)
	if _, err := io.ReadFull(r, body); err != nil {
		return frame{}, err
	}

	target, err := newBodyForTag(tag)
	if err != nil {
		return frame{}, err
	}

	dec := gob.NewDecoder(&fixedBuffer{data: body})
	if err := dec.Decode(target); err != nil {
		return frame{}, &FrameError{Reason: fmt.Sprintf("decoding tag %d body: %s", tag, err)}
	}

	return frame{tag: tag, body: target}, nil
}

func newBodyForTag(tag frameTag) (interface{}, error) {
	switch tag {
	case tagUserToPid:
		return &internal.UserToPid{}, nil
	case tagUserToPort:
		return &internal.UserToPort{}, nil
	case tagSpawnRequest:
		return &internal.SpawnRequest{}, nil
	case tagSpawnReply:
		return &internal.SpawnReply{}, nil
	case tagPeerAnnounce:
		return &internal.PeerAnnounce{}, nil
	case tagPing:
		return &internal.Ping{}, nil
	case tagPong:
		return &internal.Pong{}, nil
	default:
		return nil, &FrameError{Reason: fmt.Sprintf("unknown frame tag %d", tag)}
	}
}

// fixedBuffer is a tiny io.Reader/io.Writer over a byte slice, used so
// gob can encode/decode into a buffer we've already length-prefixed,
// without pulling in bytes.Buffer's growth bookkeeping we don't need.
type fixedBuffer struct {
	data []byte
	pos  int
}

func (b *fixedBuffer) Write(p []byte) (int, error) {
	b.data = append(b.data, p...)
	return len(p), nil
}

func (b *fixedBuffer) Read(p []byte) (int, error) {
	if b.pos >= len(b.data) {
		return 0, io.EOF
	}
	n := copy(p, b.data[b.pos:])
	b.pos += n
	return n, nil
}

// readHandshake and writeHandshake exchange the pre-frame handshake
// (magic token + NodeID). This happens before any tagged frame and so is
// encoded directly, not wrapped in a frame header.
func writeHandshake(w *bufio.Writer, h internal.Handshake) error {
	enc := gob.NewEncoder(w)
	if err := enc.Encode(&h); err != nil {
		return err
	}
	return w.Flush()
}

func readHandshake(r *bufio.Reader) (internal.Handshake, error) {
	var h internal.Handshake
	dec := gob.NewDecoder(r)
	if err := dec.Decode(&h); err != nil {
		return internal.Handshake{}, err
	}
	return h, nil
}
