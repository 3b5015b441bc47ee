package sm

import (
	"encoding/binary"

	"github.com/seclink/blehost"
)

// Role selects which side of the pairing exchange the local device is.
type Role int

const (
	RoleInitiator Role = iota
	RoleResponder
)

func (r Role) String() string {
	if r == RoleInitiator {
		return "initiator"
	}
	return "responder"
}

// State is a pairing procedure's position in the Secure Connections
// exchange. Progression is strictly monotonic; a procedure never moves
// backwards except for the bounded Confirm<-Random passkey loop.
type State int

const (
	StatePublicKey State = iota
	StateConfirm
	StateRandom
	StateDHKeyCheck
	StateEncStart
	StateAborted
)

// stateAny matches any state in store lookups; stateNone is the pseudo
// state of actions that never gate a transition.
const (
	stateAny  State = -1
	stateNone State = -2
)

var stateStrings = map[State]string{
	StatePublicKey:  "public key exchange",
	StateConfirm:    "confirm",
	StateRandom:     "random",
	StateDHKeyCheck: "dhkey check",
	StateEncStart:   "encryption start",
	StateAborted:    "aborted",
}

func (s State) String() string {
	if str, ok := stateStrings[s]; ok {
		return str
	}
	return "unknown"
}

const (
	flagInitiator = 1 << iota
	flagAuthenticated
	flagIOInjected
	flagAdvancePending
)

// proc is one in-flight pairing procedure. All fields are mutated only
// under the Manager lock.
type proc struct {
	conn   uint16
	state  State
	method AuthMethod
	action Action
	flags  uint8

	// capability triples from the phase 1 feature exchange; req is
	// always the initiator's.
	reqCaps Capabilities
	rspCaps Capabilities

	localAddr blehost.Addr
	peerAddr  blehost.Addr

	localPub []byte
	peerPub  []byte

	localRand   []byte
	peerRand    []byte
	peerConfirm []byte

	// ri is the confirm round value; tk holds the passkey or OOB seed,
	// little endian [Vol 3, Part H, 2.3.5.6.3].
	ri byte
	tk []byte

	dhkey  []byte
	macKey []byte
	ltk    []byte

	passkeyBits int

	log blehost.Logger
}

func (p *proc) initiator() bool {
	return p.flags&flagInitiator != 0
}

func (p *proc) authenticated() bool {
	return p.flags&flagAuthenticated != 0
}

func (p *proc) ioInjected() bool {
	return p.flags&flagIOInjected != 0
}

// ourCaps is the local capability triple, peerCaps the remote one.
func (p *proc) ourCaps() Capabilities {
	if p.initiator() {
		return p.reqCaps
	}
	return p.rspCaps
}

func (p *proc) peerCaps() Capabilities {
	if p.initiator() {
		return p.rspCaps
	}
	return p.reqCaps
}

// randM and randS are the initiator's and responder's nonces regardless
// of which side is local; f5 and g2 take them in that order.
func (p *proc) randM() []byte {
	if p.initiator() {
		return p.localRand
	}
	return p.peerRand
}

func (p *proc) randS() []byte {
	if p.initiator() {
		return p.peerRand
	}
	return p.localRand
}

// addrM and addrS are the initiator's and responder's 7-byte address
// forms for f5.
func (p *proc) addrM() []byte {
	if p.initiator() {
		return p.localAddr.Wire()
	}
	return p.peerAddr.Wire()
}

func (p *proc) addrS() []byte {
	if p.initiator() {
		return p.peerAddr.Wire()
	}
	return p.localAddr.Wire()
}

// setPasskey loads a 6-digit passkey into the tk seed, little endian.
func (p *proc) setPasskey(passkey uint32) {
	p.tk = make([]byte, 16)
	binary.LittleEndian.PutUint32(p.tk[:4], passkey)
}

// passkeyBit extracts the next unexchanged passkey bit from tk.
func (p *proc) passkeyBit() byte {
	byteIdx := p.passkeyBits / 8
	bitIdx := uint(p.passkeyBits % 8)
	if p.tk[byteIdx]&(1<<bitIdx) != 0 {
		return 1
	}
	return 0
}

// ioActionState is the state at which the resolved user action gates
// progress: passkey and OOB seeds are needed before the confirm
// exchange, numeric comparison approval before the dhkey check.
func ioActionState(a Action) State {
	switch a {
	case ActionInput, ActionDisplay, ActionOOB:
		return StateConfirm
	case ActionNumericCompare:
		return StateDHKeyCheck
	default:
		return stateNone
	}
}

// canAdvance reports whether the procedure is free to run its current
// state's transmit step, i.e. it is not suspended waiting for user IO.
func (p *proc) canAdvance() bool {
	return ioActionState(p.action) != p.state || p.ioInjected()
}

// Initiator does not send a confirm when the method is just works or
// numeric comparison [Vol 3, Part H, 2.3.5.6.2].
func (p *proc) initiatorTxesConfirm() bool {
	return p.method != JustWorks && p.method != NumericComparison
}

// Responder does not verify the initiator's random for just works or
// numeric comparison; there was no initiator confirm to check it
// against. The initiator always verifies [Vol 3, Part H, 2.3.5.6.2].
func (p *proc) mustVerifyRandom() bool {
	if p.initiator() {
		return true
	}
	return p.method != JustWorks && p.method != NumericComparison
}

// wipe discards partially computed key material on teardown or abort.
func (p *proc) wipe() {
	for _, b := range [][]byte{p.dhkey, p.macKey, p.ltk, p.tk, p.localRand} {
		for i := range b {
			b[i] = 0
		}
	}
	p.dhkey, p.macKey, p.ltk, p.tk = nil, nil, nil, nil
}
