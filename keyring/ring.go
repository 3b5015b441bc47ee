// Package keyring stores long term keys derived by pairing, indexed by
// peer address. The ring lives in memory; Snapshot and Restore move its
// contents through a JSON blob so the host application decides where
// bonds persist.
package keyring

import (
	"encoding/hex"
	"fmt"
	"sync"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Key is one stored bond.
type Key struct {
	Addr          string
	LTK           []byte
	Authenticated bool
	Method        string
}

type keyRecord struct {
	Address       string `json:"address"`
	LongTermKey   string `json:"longTermKey"`
	Authenticated bool   `json:"authenticated"`
	Method        string `json:"method"`
}

type snapshot struct {
	Keys []keyRecord `json:"keys"`
}

// Ring is a concurrency-safe key store.
type Ring struct {
	lock sync.RWMutex
	keys map[string]Key
}

func NewRing() *Ring {
	return &Ring{keys: make(map[string]Key)}
}

// Put stores or replaces the bond for the key's address.
func (r *Ring) Put(k Key) {
	r.lock.Lock()
	defer r.lock.Unlock()

	k.LTK = append([]byte{}, k.LTK...)
	r.keys[k.Addr] = k
}

// Get returns the bond for addr if one is stored.
func (r *Ring) Get(addr string) (Key, bool) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	k, ok := r.keys[addr]
	if !ok {
		return Key{}, false
	}

	k.LTK = append([]byte{}, k.LTK...)
	return k, true
}

func (r *Ring) Exists(addr string) bool {
	r.lock.RLock()
	defer r.lock.RUnlock()

	_, ok := r.keys[addr]
	return ok
}

func (r *Ring) Delete(addr string) {
	r.lock.Lock()
	defer r.lock.Unlock()

	delete(r.keys, addr)
}

func (r *Ring) Len() int {
	r.lock.RLock()
	defer r.lock.RUnlock()

	return len(r.keys)
}

// Snapshot serializes every stored bond.
func (r *Ring) Snapshot() ([]byte, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	snap := snapshot{Keys: make([]keyRecord, 0, len(r.keys))}
	for _, k := range r.keys {
		snap.Keys = append(snap.Keys, keyRecord{
			Address:       k.Addr,
			LongTermKey:   hex.EncodeToString(k.LTK),
			Authenticated: k.Authenticated,
			Method:        k.Method,
		})
	}

	out, err := json.Marshal(&snap)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal keyring: %s", err)
	}
	return out, nil
}

// Restore merges the bonds from a Snapshot blob into the ring. Existing
// entries for the same address are replaced.
func (r *Ring) Restore(data []byte) error {
	var snap snapshot
	if len(data) > 0 {
		if err := json.Unmarshal(data, &snap); err != nil {
			return fmt.Errorf("failed to unmarshal keyring: %s", err)
		}
	}

	r.lock.Lock()
	defer r.lock.Unlock()

	for _, rec := range snap.Keys {
		ltk, err := hex.DecodeString(rec.LongTermKey)
		if err != nil {
			return fmt.Errorf("failed to decode long term key for %s: %s", rec.Address, err)
		}

		r.keys[rec.Address] = Key{
			Addr:          rec.Address,
			LTK:           ltk,
			Authenticated: rec.Authenticated,
			Method:        rec.Method,
		}
	}

	return nil
}
