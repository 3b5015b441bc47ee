package sm

import (
	"crypto"
	"crypto/aes"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/binary"

	"github.com/aead/cmac"
	"github.com/pkg/errors"
	ecdh "github.com/wsddn/go-ecdh"

	"github.com/seclink/blehost/sliceops"
)

// KeyPair is an ephemeral P-256 key pair. Public holds the 64-byte wire
// form (X then Y, each little endian); the private half never leaves the
// engine except through SharedSecret.
type KeyPair struct {
	Public  []byte
	private crypto.PrivateKey
}

// Engine is the crypto toolkit the pairing state machine runs on: ECDH
// key agreement plus the key derivation functions f4, f5, f6 and g2 from
// Core spec v5.0, Vol 3, Part H, 2.2. All byte parameters are little
// endian (wire order).
type Engine interface {
	GenerateKeyPair() (*KeyPair, error)
	SharedSecret(kp *KeyPair, peerPublic []byte) ([]byte, error)

	F4(u, v, x []byte, z byte) ([]byte, error)
	F5(w, n1, n2, a1, a2 []byte) (macKey, ltk []byte, err error)
	F6(w, n1, n2, r, ioCap, a1, a2 []byte) ([]byte, error)
	G2(u, v, x, y []byte) (uint32, error)
}

// DefaultEngine returns the AES-CMAC based engine used in production.
func DefaultEngine() Engine {
	return &cmacEngine{}
}

type cmacEngine struct{}

func (e *cmacEngine) GenerateKeyPair() (*KeyPair, error) {
	ec := ecdh.NewEllipticECDH(elliptic.P256())

	priv, pub, err := ec.GenerateKey(rand.Reader)
	if err != nil {
		return nil, errors.Wrap(ErrCryptoFailure, err.Error())
	}

	return &KeyPair{Public: marshalPublicKeyXY(pub), private: priv}, nil
}

func (e *cmacEngine) SharedSecret(kp *KeyPair, peerPublic []byte) ([]byte, error) {
	if kp == nil || kp.private == nil {
		return nil, errors.Wrap(ErrCryptoFailure, "no local key pair")
	}

	pub, ok := unmarshalPublicKey(peerPublic)
	if !ok {
		return nil, errors.Wrap(ErrInvalidPeerKey, "point not on curve")
	}

	ec := ecdh.NewEllipticECDH(elliptic.P256())
	secret, err := ec.GenerateSharedSecret(kp.private, pub)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidPeerKey, err.Error())
	}

	return sliceops.SwapBuf(secret), nil
}

func (e *cmacEngine) F4(u, v, x []byte, z byte) ([]byte, error) {
	if len(u) != 32 || len(v) != 32 || len(x) != 16 {
		return nil, errors.Wrap(ErrCryptoFailure, "f4 length error")
	}

	// f4(U, V, X, Z) = AES-CMAC_X(U || V || Z)
	m := []byte{z}
	m = append(m, v...)
	m = append(m, u...)

	return aesCMAC(x, m)
}

func (e *cmacEngine) F5(w, n1, n2, a1, a2 []byte) ([]byte, []byte, error) {
	switch {
	case len(w) != 32:
		return nil, nil, errors.Wrap(ErrCryptoFailure, "f5 length error w")
	case len(n1) != 16:
		return nil, nil, errors.Wrap(ErrCryptoFailure, "f5 length error n1")
	case len(n2) != 16:
		return nil, nil, errors.Wrap(ErrCryptoFailure, "f5 length error n2")
	case len(a1) != 7:
		return nil, nil, errors.Wrap(ErrCryptoFailure, "f5 length error a1")
	case len(a2) != 7:
		return nil, nil, errors.Wrap(ErrCryptoFailure, "f5 length error a2")
	}

	// keyID "btle" and the fixed salt, little endian.
	btle := []byte{0x65, 0x6c, 0x74, 0x62}
	salt := []byte{0xbe, 0x83, 0x60, 0x5a, 0xdb, 0x0b, 0x37, 0x60,
		0x38, 0xa5, 0xf5, 0xaa, 0x91, 0x83, 0x88, 0x6c}
	length := []byte{0x00, 0x01}

	t, err := aesCMAC(salt, w)
	if err != nil {
		return nil, nil, err
	}

	m := length
	m = append(m, a2...)
	m = append(m, a1...)
	m = append(m, n2...)
	m = append(m, n1...)
	m = append(m, btle...)
	m = append(m, 0x00)

	macKey, err := aesCMAC(t, m)
	if err != nil {
		return nil, nil, err
	}

	// counter = 1 selects the LTK half.
	m[52] = 0x01

	ltk, err := aesCMAC(t, m)
	if err != nil {
		return nil, nil, err
	}

	return macKey, ltk, nil
}

func (e *cmacEngine) F6(w, n1, n2, r, ioCap, a1, a2 []byte) ([]byte, error) {
	if len(w) != 16 || len(n1) != 16 || len(n2) != 16 || len(r) != 16 ||
		len(ioCap) != 3 || len(a1) != 7 || len(a2) != 7 {
		return nil, errors.Wrap(ErrCryptoFailure, "f6 length error")
	}

	// f6(W, N1, N2, R, IOcap, A1, A2) = AES-CMAC_W(N1 || N2 || R || IOcap || A1 || A2)
	m := append([]byte{}, a2...)
	m = append(m, a1...)
	m = append(m, ioCap...)
	m = append(m, r...)
	m = append(m, n2...)
	m = append(m, n1...)

	return aesCMAC(w, m)
}

func (e *cmacEngine) G2(u, v, x, y []byte) (uint32, error) {
	if len(u) != 32 || len(v) != 32 || len(x) != 16 || len(y) != 16 {
		return 0, errors.Wrap(ErrCryptoFailure, "g2 length error")
	}

	// g2(U, V, X, Y) = AES-CMAC_X(U || V || Y) mod 2^32
	m := append([]byte{}, y...)
	m = append(m, v...)
	m = append(m, u...)

	h, err := aesCMAC(x, m)
	if err != nil {
		return 0, err
	}

	out := binary.LittleEndian.Uint32(h[:4])
	return out % 1000000, nil
}

// aesCMAC computes AES-CMAC over little-endian key and message, swapping
// to MSB order for the cipher and back for the result.
func aesCMAC(key, msg []byte) ([]byte, error) {
	mCipher, err := aes.NewCipher(sliceops.SwapBuf(key))
	if err != nil {
		return nil, errors.Wrap(ErrCryptoFailure, err.Error())
	}

	mMac, err := cmac.New(mCipher)
	if err != nil {
		return nil, errors.Wrap(ErrCryptoFailure, err.Error())
	}

	mMac.Write(sliceops.SwapBuf(msg))

	return sliceops.SwapBuf(mMac.Sum(nil)), nil
}

func unmarshalPublicKey(b []byte) (crypto.PublicKey, bool) {
	if len(b) != publicKeySize {
		return nil, false
	}

	e := ecdh.NewEllipticECDH(elliptic.P256())
	xs := sliceops.SwapBuf(b[:32])
	ys := sliceops.SwapBuf(b[32:])

	// uncompressed point header
	r := append([]byte{0x04}, xs...)
	r = append(r, ys...)

	return e.Unmarshal(r)
}

func marshalPublicKeyXY(k crypto.PublicKey) []byte {
	e := ecdh.NewEllipticECDH(elliptic.P256())

	ba := e.Marshal(k)
	ba = ba[1:] // strip header
	x := sliceops.SwapBuf(ba[:32])
	y := sliceops.SwapBuf(ba[32:])

	return append(x, y...)
}
