package sm

import (
	"github.com/pkg/errors"
)

// Terminal pairing errors. Steps wrap these with context via
// errors.Wrap; callers compare with errors.Cause.
var (
	// ErrInvalidPeerKey indicates the peer's public key was not a valid
	// point on the curve, or matched our own key (CVE-2020-26558).
	ErrInvalidPeerKey = errors.New("invalid peer public key")

	// ErrCryptoFailure indicates a key generation or key derivation
	// primitive failed.
	ErrCryptoFailure = errors.New("crypto operation failed")

	// ErrRNGFailure indicates the random source failed.
	ErrRNGFailure = errors.New("random source failed")

	// ErrConfirmMismatch indicates a received random value did not
	// reproduce the previously committed confirm value.
	ErrConfirmMismatch = errors.New("confirm value mismatch")

	// ErrDHKeyCheckFailed indicates the final mutual authentication
	// check did not match, i.e. forged authentication data.
	ErrDHKeyCheckFailed = errors.New("dhkey check mismatch")

	// ErrProtocolViolation indicates a message arrived for a connection
	// or state with no matching procedure. Dropped at the protocol
	// layer; possibly a stray retransmission.
	ErrProtocolViolation = errors.New("message in unexpected state")

	// ErrResourceExhausted indicates the procedure store is full.
	ErrResourceExhausted = errors.New("too many pairing procedures in flight")

	// ErrNumericRejected indicates the user rejected the numeric
	// comparison value.
	ErrNumericRejected = errors.New("numeric comparison rejected by user")

	// ErrPasskeyRejected indicates the user declined to provide a
	// passkey or OOB data.
	ErrPasskeyRejected = errors.New("passkey entry rejected by user")

	// ErrPeerAborted indicates the peer sent Pairing Failed.
	ErrPeerAborted = errors.New("pairing failed by peer")

	// ErrPairingCanceled indicates the owning connection was torn down
	// while the procedure was in flight.
	ErrPairingCanceled = errors.New("pairing canceled")
)

// reasonFor maps a terminal error to the Pairing Failed reason code
// reported to the peer. Zero means no failure message is sent (the peer
// aborted first, or the procedure never touched the link).
func reasonFor(err error) byte {
	switch errors.Cause(err) {
	case ErrConfirmMismatch:
		return reasonConfirmValueFailed
	case ErrDHKeyCheckFailed, ErrInvalidPeerKey:
		return reasonDHKeyCheckFailed
	case ErrNumericRejected:
		return reasonNumericCompFailed
	case ErrPasskeyRejected:
		return reasonPasskeyEntryFailed
	case ErrCryptoFailure, ErrRNGFailure:
		return reasonUnspecified
	case ErrPeerAborted, ErrPairingCanceled:
		return 0
	default:
		return reasonUnspecified
	}
}
