package sm

import (
	"github.com/pkg/errors"
)

// SMP messages are fixed-layout records: a one-byte opcode followed by
// the payload [Vol 3, Part H, 3.3].

func buildMsg(op byte, payload []byte) []byte {
	out := make([]byte, 0, 1+len(payload))
	out = append(out, op)
	return append(out, payload...)
}

func buildPairingFailed(reason byte) []byte {
	return []byte{pairingFailed, reason}
}

var payloadSizes = map[byte]int{
	pairingPublicKey:  publicKeySize,
	pairingConfirm:    confirmSize,
	pairingRandom:     randomSize,
	pairingDHKeyCheck: dhKeyCheckSize,
}

// splitMsg validates the fixed payload size for the message types this
// core consumes and returns opcode and payload.
func splitMsg(pdu []byte) (byte, []byte, error) {
	if len(pdu) < 1 {
		return 0, nil, errors.Wrap(ErrProtocolViolation, "empty pdu")
	}

	op := pdu[0]
	payload := pdu[1:]

	if want, ok := payloadSizes[op]; ok && len(payload) != want {
		return 0, nil, errors.Wrapf(ErrProtocolViolation,
			"opcode %#x: payload length %d, want %d", op, len(payload), want)
	}

	return op, payload, nil
}
