package sm

import (
	"bytes"
	"sync"

	"github.com/pkg/errors"

	"github.com/seclink/blehost"
)

// keyManager owns the stack-wide ephemeral ECDH key pair. The pair is
// generated lazily on first use and then never regenerated; rotating it
// requires a new Manager. Procedures only borrow the public key for
// transmission and route shared-secret computation through here, so the
// private key stays in one place.
type keyManager struct {
	mu     sync.Mutex
	engine Engine
	kp     *KeyPair
	log    blehost.Logger
}

func newKeyManager(engine Engine, log blehost.Logger) *keyManager {
	return &keyManager{engine: engine, log: log}
}

// ensureKeys generates the key pair if it does not exist yet. Idempotent
// on success; a failed generation may be retried.
func (k *keyManager) ensureKeys() error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.kp != nil {
		return nil
	}

	kp, err := k.engine.GenerateKeyPair()
	if err != nil {
		return errors.Wrap(err, "ecdh key generation")
	}

	k.kp = kp
	k.log.Debug("generated ecdh key pair")
	return nil
}

// publicKey returns the 64-byte local public key. ensureKeys must have
// succeeded first.
func (k *keyManager) publicKey() []byte {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.kp == nil {
		return nil
	}
	return k.kp.Public
}

// sharedSecret computes the 32-byte DH shared secret against a peer
// public key. A peer key identical to our own is rejected outright
// (CVE-2020-26558).
func (k *keyManager) sharedSecret(peerPublic []byte) ([]byte, error) {
	k.mu.Lock()
	kp := k.kp
	k.mu.Unlock()

	if kp == nil {
		return nil, errors.Wrap(ErrCryptoFailure, "key pair not generated")
	}

	if bytes.Equal(kp.Public, peerPublic) {
		return nil, errors.Wrap(ErrInvalidPeerKey, "peer public key matches local public key")
	}

	return k.engine.SharedSecret(kp, peerPublic)
}
