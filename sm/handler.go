package sm

import (
	"bytes"
	"encoding/binary"

	"github.com/pkg/errors"
)

// State machine steps. Each step mutates the procedure under the Manager
// lock and reports its continuation through a stepResult: at most one
// outgoing message, an optional user action, and whether the next
// state's transmit step should run immediately. Message numbering and
// the role asymmetries follow Core spec v5.0, Vol 3, Part H, 2.3.5.6.

func pubX(key []byte) []byte {
	return key[:32]
}

// executeState runs the transmit step for the procedure's current state.
func (m *Manager) executeState(p *proc, res *stepResult) {
	switch p.state {
	case StatePublicKey:
		m.publicKeyGo(p, res)
	case StateConfirm:
		m.confirmGo(p, res)
	case StateRandom:
		m.randomGo(p, res)
	case StateDHKeyCheck:
		m.dhKeyCheckGo(p, res)
	}
}

// publicKeyGo transmits the local public key. The initiator runs it when
// pairing starts; the responder runs it after receiving the initiator's
// key, which keeps the exchange ordered and race free.
func (m *Manager) publicKeyGo(p *proc, res *stepResult) {
	if err := m.keys.ensureKeys(); err != nil {
		res.err = err
		return
	}
	p.localPub = m.keys.publicKey()

	res.out = buildMsg(pairingPublicKey, p.localPub)

	// Surface the passkey/OOB request now so the seed can be entered
	// while the confirm exchange is still pending.
	if ioActionState(p.action) == StateConfirm && !p.ioInjected() {
		m.raiseIOAction(p, res)
		if res.err != nil {
			return
		}
	}

	if !p.initiator() {
		p.state = StateConfirm

		if p.canAdvance() && !p.initiatorTxesConfirm() {
			res.execute = true
		}
	}
}

// publicKeyRx consumes the peer's public key and computes the shared
// secret. The responder answers with its own key; the initiator moves to
// the confirm stage.
func (m *Manager) publicKeyRx(p *proc, payload []byte, res *stepResult) {
	if p.peerPub != nil {
		res.err = errors.Wrap(ErrProtocolViolation, "peer public key already received")
		return
	}

	if err := m.keys.ensureKeys(); err != nil {
		res.err = err
		return
	}
	p.localPub = m.keys.publicKey()
	p.peerPub = append([]byte{}, payload...)

	secret, err := m.keys.sharedSecret(p.peerPub)
	if err != nil {
		res.err = err
		return
	}
	p.dhkey = secret

	if p.initiator() {
		p.state = StateConfirm

		if p.canAdvance() && p.initiatorTxesConfirm() {
			res.execute = true
		}
	} else {
		res.execute = true
	}
}

// confirmGo commits to the round value: generate ri, compute the confirm
// over our nonce and transmit it.
func (m *Manager) confirmGo(p *proc, res *stepResult) {
	if p.localRand == nil {
		r, err := m.randomBytes(16)
		if err != nil {
			res.err = err
			return
		}
		p.localRand = r
	}

	if err := m.genRi(p); err != nil {
		res.err = err
		return
	}

	conf, err := m.engine.F4(pubX(p.localPub), pubX(p.peerPub), p.localRand, p.ri)
	if err != nil {
		res.err = err
		return
	}

	res.out = buildMsg(pairingConfirm, conf)

	if !p.initiator() {
		p.state = StateRandom
	}
}

// genRi produces the confirm round value [Vol 3, Part H, 2.3.5.6.2-4]:
// zero for just works and numeric comparison, 0x80 plus the next passkey
// bit for passkey entry, a fresh random byte for OOB.
func (m *Manager) genRi(p *proc) error {
	switch p.method {
	case JustWorks, NumericComparison:
		p.ri = 0
		return nil

	case PasskeyEntry:
		p.ri = 0x80 | p.passkeyBit()
		p.passkeyBits++
		return nil

	case OutOfBand:
		b, err := m.randomBytes(1)
		if err != nil {
			return err
		}
		p.ri = b[0]
		return nil

	default:
		return errors.Wrapf(ErrCryptoFailure, "unknown method %v", p.method)
	}
}

// confirmRx stores the peer's commitment. The initiator replies with its
// random; the responder answers with its own confirm once the passkey
// seed is available.
func (m *Manager) confirmRx(p *proc, payload []byte, res *stepResult) {
	p.peerConfirm = append([]byte{}, payload...)

	if p.initiator() {
		p.state = StateRandom
		res.execute = true
		return
	}

	if p.canAdvance() {
		res.execute = true
	} else {
		p.flags |= flagAdvancePending
	}
}

// randomGo reveals our nonce. The responder then decides whether the
// passkey loop continues and, for numeric comparison, raises the
// comparison value once its random is on the wire.
func (m *Manager) randomGo(p *proc, res *stepResult) {
	if p.localRand == nil {
		r, err := m.randomBytes(16)
		if err != nil {
			res.err = err
			return
		}
		p.localRand = r
	}

	res.out = buildMsg(pairingRandom, p.localRand)

	if !p.initiator() {
		if err := m.randomAdvance(p); err != nil {
			res.err = err
			return
		}

		if ioActionState(p.action) == p.state && !p.ioInjected() {
			m.raiseNumCmp(p, res)
		}
	}
}

// randomAdvance moves past a completed random step: back to confirm with
// a fresh nonce while passkey bits remain, otherwise on to the dhkey
// check.
func (m *Manager) randomAdvance(p *proc) error {
	if p.method != PasskeyEntry || p.passkeyBits >= passkeyBitCount {
		p.state = StateDHKeyCheck
		return nil
	}

	p.state = StateConfirm

	r, err := m.randomBytes(16)
	if err != nil {
		return err
	}
	p.localRand = r
	return nil
}

// randomRx verifies the peer's earlier commitment against the revealed
// nonce, then derives MacKey and LTK. Both nonces are in hand from here
// on, so f5 runs on every completed round; later passkey rounds
// overwrite it with the final nonces.
func (m *Manager) randomRx(p *proc, payload []byte, res *stepResult) {
	p.peerRand = append([]byte{}, payload...)

	if p.mustVerifyRandom() {
		exp, err := m.engine.F4(pubX(p.peerPub), pubX(p.localPub), p.peerRand, p.ri)
		if err != nil {
			res.err = err
			return
		}

		if !bytes.Equal(exp, p.peerConfirm) {
			res.err = errors.Wrapf(ErrConfirmMismatch, "exp %x got %x", exp, p.peerConfirm)
			return
		}
	}

	macKey, ltk, err := m.engine.F5(p.dhkey, p.randM(), p.randS(), p.addrM(), p.addrS())
	if err != nil {
		res.err = err
		return
	}
	p.macKey = macKey
	p.ltk = ltk

	if !p.initiator() {
		res.execute = true
		return
	}

	if err := m.randomAdvance(p); err != nil {
		res.err = err
		return
	}

	if ioActionState(p.action) == p.state && !p.ioInjected() {
		m.raiseNumCmp(p, res)
		return
	}

	res.execute = true
}

// raiseNumCmp computes the 6-digit comparison value from both public
// keys and nonces and surfaces it. The procedure stays suspended until
// the application answers through ConfirmNumeric.
func (m *Manager) raiseNumCmp(p *proc, res *stepResult) {
	pka, pkb := pubX(p.localPub), pubX(p.peerPub)
	if !p.initiator() {
		pka, pkb = pkb, pka
	}

	val, err := m.engine.G2(pka, pkb, p.randM(), p.randS())
	if err != nil {
		res.err = err
		return
	}

	res.action = &ActionRequest{Conn: p.conn, Action: ActionNumericCompare, Value: val}
}

// checkR is the r input to f6: zeros for just works and numeric
// comparison, the passkey or OOB seed otherwise.
func (p *proc) checkR() []byte {
	if p.tk == nil {
		return make([]byte, 16)
	}
	return p.tk
}

// dhKeyCheckGo computes and transmits our check value. The responder is
// done once its check is out; its encryption start is driven by the
// link layer.
func (m *Manager) dhKeyCheckGo(p *proc, res *stepResult) {
	ea, err := m.engine.F6(p.macKey, p.localRand, p.peerRand, p.checkR(),
		p.ourCaps().triple(), p.localAddr.Wire(), p.peerAddr.Wire())
	if err != nil {
		res.err = err
		return
	}

	res.out = buildMsg(pairingDHKeyCheck, ea)

	if !p.initiator() {
		p.state = StateEncStart
	}
}

// dhKeyCheckRx verifies the peer's check value with nonces, addresses
// and capability triple swapped to the peer's point of view.
func (m *Manager) dhKeyCheckRx(p *proc, payload []byte, res *stepResult) {
	exp, err := m.engine.F6(p.macKey, p.peerRand, p.localRand, p.checkR(),
		p.peerCaps().triple(), p.peerAddr.Wire(), p.localAddr.Wire())
	if err != nil {
		res.err = err
		return
	}

	if !bytes.Equal(exp, payload) {
		res.err = errors.Wrapf(ErrDHKeyCheckFailed, "exp %x got %x", exp, payload)
		return
	}

	if ioActionState(p.action) == p.state && !p.ioInjected() {
		// valid check, but the user has not answered the comparison
		// yet; resume from ConfirmNumeric
		p.flags |= flagAdvancePending
		return
	}

	if p.initiator() {
		p.state = StateEncStart
		return
	}

	res.execute = true
}

// raiseIOAction surfaces the passkey/OOB request resolved for this
// procedure. Display does not suspend: the stack picks the value, shows
// it and keeps going; input and OOB wait for the application.
func (m *Manager) raiseIOAction(p *proc, res *stepResult) {
	ar := &ActionRequest{Conn: p.conn, Action: p.action}

	if p.action == ActionDisplay {
		pk, err := m.randomPasskey()
		if err != nil {
			res.err = err
			return
		}
		p.setPasskey(pk)
		p.flags |= flagIOInjected
		ar.Value = pk
	}

	res.action = ar
}

func (m *Manager) randomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := m.rand.Read(b); err != nil {
		return nil, errors.Wrap(ErrRNGFailure, err.Error())
	}
	return b, nil
}

func (m *Manager) randomPasskey() (uint32, error) {
	b, err := m.randomBytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b) % 1000000, nil
}
