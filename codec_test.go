package lattice

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/latticerun/lattice/internal"
)

func TestWriteReadFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)

	body := &internal.UserToPid{
		Target:  internal.ProcessIDWire{Node: internal.NodeIDWire{Host: "h", Port: 1}, Local: 9},
		TypeTag: "lattice.Message",
		Payload: []byte("hello"),
	}

	if err := writeFrame(w, tagUserToPid, body); err != nil {
		t.Fatalf("writeFrame: %v", err)
	}

	r := bufio.NewReader(&buf)
	f, err := readFrame(r)
	if err != nil {
		t.Fatalf("readFrame: %v", err)
	}
	if f.tag != tagUserToPid {
		t.Fatalf("expected tag %d, got %d", tagUserToPid, f.tag)
	}
	got, ok := f.body.(*internal.UserToPid)
	if !ok {
		t.Fatalf("expected *internal.UserToPid, got %T", f.body)
	}
	if got.TypeTag != body.TypeTag || string(got.Payload) != string(body.Payload) {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, body)
	}
}

func TestReadFrameRejectsIllegalLength(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0, 0, 0, 0, byte(tagPing)})

	_, err := readFrame(bufio.NewReader(&buf))
	if _, ok := err.(*FrameError); !ok {
		t.Fatalf("expected *FrameError, got %v (%T)", err, err)
	}
}

func TestHandshakeRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)

	h := internal.Handshake{Magic: "secret", Node: internal.NodeIDWire{Host: "h", Port: 2}, Version: 1}
	if err := writeHandshake(w, h); err != nil {
		t.Fatalf("writeHandshake: %v", err)
	}

	got, err := readHandshake(bufio.NewReader(&buf))
	if err != nil {
		t.Fatalf("readHandshake: %v", err)
	}
	if got.Magic != h.Magic || got.Node != h.Node {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, h)
	}
}
