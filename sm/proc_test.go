package sm

import (
	"testing"
)

func TestPasskeyBits(t *testing.T) {
	p := &proc{}
	p.setPasskey(0b1010_0110) // 166

	exp := []byte{0, 1, 1, 0, 0, 1, 0, 1}
	for i, want := range exp {
		if got := p.passkeyBit(); got != want {
			t.Fatalf("bit %d: got %d want %d", i, got, want)
		}
		p.passkeyBits++
	}

	// bits beyond the passkey value are zero
	p.passkeyBits = passkeyBitCount - 1
	if p.passkeyBit() != 0 {
		t.Fatal("high bit not zero")
	}
}

func TestSetPasskeyLayout(t *testing.T) {
	p := &proc{}
	p.setPasskey(999999)

	if len(p.tk) != 16 {
		t.Fatalf("tk length %d", len(p.tk))
	}
	// 999999 = 0x0f423f, little endian in the low bytes
	if p.tk[0] != 0x3f || p.tk[1] != 0x42 || p.tk[2] != 0x0f {
		t.Fatalf("tk layout % x", p.tk[:4])
	}
	for _, b := range p.tk[4:] {
		if b != 0 {
			t.Fatal("high tk bytes not zero")
		}
	}
}

func TestCanAdvanceGating(t *testing.T) {
	p := &proc{state: StateConfirm, action: ActionInput}
	if p.canAdvance() {
		t.Fatal("advanced past missing passkey")
	}

	p.flags |= flagIOInjected
	if !p.canAdvance() {
		t.Fatal("blocked after injection")
	}

	// numeric comparison only gates the dhkey check
	q := &proc{state: StateConfirm, action: ActionNumericCompare}
	if !q.canAdvance() {
		t.Fatal("comparison blocked the confirm stage")
	}
	q.state = StateDHKeyCheck
	if q.canAdvance() {
		t.Fatal("advanced past missing comparison answer")
	}
}
