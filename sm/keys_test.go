package sm

import (
	"bytes"
	"testing"

	"github.com/pkg/errors"

	"github.com/seclink/blehost"
)

func TestKeyManagerEnsureIdempotent(t *testing.T) {
	km := newKeyManager(DefaultEngine(), blehost.GetLogger())

	if err := km.ensureKeys(); err != nil {
		t.Fatal(err)
	}
	pub := km.publicKey()
	if len(pub) != publicKeySize {
		t.Fatalf("public key length %d", len(pub))
	}

	if err := km.ensureKeys(); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(pub, km.publicKey()) {
		t.Fatal("key pair regenerated")
	}
}

func TestKeyManagerRejectsReflectedKey(t *testing.T) {
	km := newKeyManager(DefaultEngine(), blehost.GetLogger())
	if err := km.ensureKeys(); err != nil {
		t.Fatal(err)
	}

	// a peer echoing our own public key must be refused
	_, err := km.sharedSecret(km.publicKey())
	if errors.Cause(err) != ErrInvalidPeerKey {
		t.Fatalf("got %v, want invalid peer key", err)
	}
}

func TestKeyManagerSharedSecret(t *testing.T) {
	a := newKeyManager(DefaultEngine(), blehost.GetLogger())
	b := newKeyManager(DefaultEngine(), blehost.GetLogger())
	if err := a.ensureKeys(); err != nil {
		t.Fatal(err)
	}
	if err := b.ensureKeys(); err != nil {
		t.Fatal(err)
	}

	sab, err := a.sharedSecret(b.publicKey())
	if err != nil {
		t.Fatal(err)
	}
	sba, err := b.sharedSecret(a.publicKey())
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(sab, sba) {
		t.Fatal("shared secrets disagree")
	}
}
