package blehost

import (
	"bytes"
	"testing"
)

func TestNewAddr(t *testing.T) {
	a, err := NewAddr(AddrTypePublic, "a1:b2:c3:d4:e5:f6")
	if err != nil {
		t.Fatal(err)
	}

	// wire order is reversed from the printed form
	if !bytes.Equal(a.B[:], []byte{0xf6, 0xe5, 0xd4, 0xc3, 0xb2, 0xa1}) {
		t.Fatalf("wire bytes %x", a.B)
	}
	if a.String() != "a1:b2:c3:d4:e5:f6" {
		t.Fatalf("string form %q", a.String())
	}
}

func TestNewAddrInvalid(t *testing.T) {
	if _, err := NewAddr(AddrTypePublic, "a1:b2:c3"); err == nil {
		t.Fatal("short address accepted")
	}
	if _, err := NewAddr(AddrTypePublic, "zz:b2:c3:d4:e5:f6"); err == nil {
		t.Fatal("non-hex address accepted")
	}
}

func TestAddrWire(t *testing.T) {
	a, err := NewAddr(AddrTypeRandom, "00:56:12:37:37:bf")
	if err != nil {
		t.Fatal(err)
	}

	w := a.Wire()
	if len(w) != 7 {
		t.Fatalf("wire length %d", len(w))
	}
	if w[6] != AddrTypeRandom {
		t.Fatalf("type byte %#x", w[6])
	}
	if !bytes.Equal(w[:6], a.B[:]) {
		t.Fatal("address bytes not in wire order")
	}
}
