package lattice

import "testing"

type encTestMsg struct {
	A int
	B string
}

func TestCBOREncodableRoundTrip(t *testing.T) {
	c := NewCBOREncodable()
	c.Register(encTestMsg{})

	tag, data, err := c.Encode(encTestMsg{A: 1, B: "x"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	v, err := c.Decode(tag, data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got, ok := v.(encTestMsg)
	if !ok {
		t.Fatalf("expected encTestMsg, got %T", v)
	}
	if got.A != 1 || got.B != "x" {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestCBOREncodableUnknownTag(t *testing.T) {
	c := NewCBOREncodable()
	_, err := c.Decode("nonexistent", []byte{})
	if err == nil {
		t.Fatal("expected error for unregistered tag")
	}
}
