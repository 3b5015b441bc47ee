package sm

import (
	"bytes"
	"testing"
)

func TestSplitMsg(t *testing.T) {
	payload := make([]byte, confirmSize)
	payload[0] = 0xaa

	op, got, err := splitMsg(buildMsg(pairingConfirm, payload))
	if err != nil {
		t.Fatal(err)
	}
	if op != pairingConfirm {
		t.Fatalf("opcode %#x", op)
	}
	if !bytes.Equal(got, payload) {
		t.Fatal("payload mismatch")
	}
}

func TestSplitMsgSizeChecks(t *testing.T) {
	cases := [][]byte{
		nil,
		{},
		buildMsg(pairingConfirm, make([]byte, confirmSize-1)),
		buildMsg(pairingRandom, make([]byte, randomSize+1)),
		buildMsg(pairingPublicKey, make([]byte, 32)),
		buildMsg(pairingDHKeyCheck, nil),
	}

	for i, pdu := range cases {
		if _, _, err := splitMsg(pdu); err == nil {
			t.Fatalf("case %d accepted", i)
		}
	}
}

func TestBuildPairingFailed(t *testing.T) {
	pdu := buildPairingFailed(reasonConfirmValueFailed)
	if !bytes.Equal(pdu, []byte{pairingFailed, reasonConfirmValueFailed}) {
		t.Fatalf("pdu % x", pdu)
	}
}
