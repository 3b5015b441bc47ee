package blehost

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Address types per the Core spec [Vol 6, Part B, 1.3].
const (
	AddrTypePublic byte = 0x00
	AddrTypeRandom byte = 0x01
)

// Addr is a Bluetooth device address together with its address type.
// The bytes are held in wire order (little endian).
type Addr struct {
	Type byte
	B    [6]byte
}

// NewAddr parses a colon-separated address string such as
// "aa:bb:cc:dd:ee:ff". The printed form is MSB first, so the bytes are
// reversed into wire order.
func NewAddr(typ byte, s string) (Addr, error) {
	hexStr := strings.Replace(strings.ToLower(s), ":", "", -1)

	b, err := hex.DecodeString(hexStr)
	if err != nil {
		return Addr{}, fmt.Errorf("invalid address %q: %s", s, err)
	}
	if len(b) != 6 {
		return Addr{}, fmt.Errorf("invalid address %q: need 6 bytes, got %d", s, len(b))
	}

	a := Addr{Type: typ}
	for i := range b {
		a.B[5-i] = b[i]
	}
	return a, nil
}

func (a Addr) String() string {
	out := make([]string, 6)
	for i := 0; i < 6; i++ {
		out[i] = hex.EncodeToString([]byte{a.B[5-i]})
	}
	return strings.Join(out, ":")
}

// Wire returns the 7-byte form used by the security manager key
// derivation functions: the 6 address bytes followed by the address type
// [Vol 3, Part H, 2.2.7].
func (a Addr) Wire() []byte {
	out := make([]byte, 0, 7)
	out = append(out, a.B[:]...)
	out = append(out, a.Type)
	return out
}
