package sm

const (
	pairingRequest          = 0x01 // Pairing Request LE-U, ACL-U
	pairingResponse         = 0x02 // Pairing Response LE-U, ACL-U
	pairingConfirm          = 0x03 // Pairing Confirm LE-U
	pairingRandom           = 0x04 // Pairing Random LE-U
	pairingFailed           = 0x05 // Pairing Failed LE-U, ACL-U
	encryptionInformation   = 0x06 // Encryption Information LE-U
	masterIdentification    = 0x07 // Master Identification LE-U
	identityInformation     = 0x08 // Identity Information LE-U, ACL-U
	identityAddrInformation = 0x09 // Identity Address Information LE-U, ACL-U
	signingInformation      = 0x0A // Signing Information LE-U, ACL-U
	securityRequest         = 0x0B // Security Request LE-U
	pairingPublicKey        = 0x0C // Pairing Public Key LE-U
	pairingDHKeyCheck       = 0x0D // Pairing DHKey Check LE-U
	pairingKeypress         = 0x0E // Pairing Keypress Notification LE-U
)

// Payload sizes per Core spec v5.0, Vol 3, Part H, 3.5 and 3.6.
const (
	publicKeySize  = 64
	confirmSize    = 16
	randomSize     = 16
	dhKeyCheckSize = 16
)

// Pairing Failed reason codes, Core spec v5.2, Vol 3, Part H, 3.5.5,
// Table 3.7.
const (
	reasonPasskeyEntryFailed  = 0x01
	reasonOOBNotAvailable     = 0x02
	reasonAuthRequirements    = 0x03
	reasonConfirmValueFailed  = 0x04
	reasonPairingNotSupported = 0x05
	reasonEncKeySize          = 0x06
	reasonCmdNotSupported     = 0x07
	reasonUnspecified         = 0x08
	reasonRepeatedAttempts    = 0x09
	reasonInvalidParameters   = 0x0A
	reasonDHKeyCheckFailed    = 0x0B
	reasonNumericCompFailed   = 0x0C
)

var failedReasonStrings = map[byte]string{
	reasonPasskeyEntryFailed:  "passkey entry failed",
	reasonOOBNotAvailable:     "oob not available",
	reasonAuthRequirements:    "authentication requirements",
	reasonConfirmValueFailed:  "confirm value failed",
	reasonPairingNotSupported: "pairing not supported",
	reasonEncKeySize:          "encryption key size",
	reasonCmdNotSupported:     "command not supported",
	reasonUnspecified:         "unspecified reason",
	reasonRepeatedAttempts:    "repeated attempts",
	reasonInvalidParameters:   "invalid parameters",
	reasonDHKeyCheckFailed:    "dhkey check failed",
	reasonNumericCompFailed:   "numeric comparison failed",
}

func failedReasonString(r byte) string {
	if s, ok := failedReasonStrings[r]; ok {
		return s
	}
	return "unknown"
}

// IO capability values, Core spec v5.0, Vol 3, Part H, 2.3.2, Table 2.3.
const (
	IOCapDisplayOnly     = 0x00
	IOCapDisplayYesNo    = 0x01
	IOCapKeyboardOnly    = 0x02
	IOCapNoInputNoOutput = 0x03
	IOCapKeyboardDisplay = 0x04

	ioCapReservedStart = 0x05
)

// AuthReq bit masks.
const (
	AuthReqBond     = 0x01
	AuthReqMITM     = 0x04
	AuthReqSC       = 0x08
	AuthReqKeypress = 0x10
)

// OOB data flag values.
const (
	OOBNotPresent = 0x00
	OOBPresent    = 0x01
)

// A passkey is 20 bits, exchanged one bit per confirm/random round
// [Vol 3, Part H, 2.3.5.6.3].
const passkeyBitCount = 20
