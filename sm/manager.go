package sm

import (
	"crypto/rand"
	"io"
	"sync"

	"github.com/pkg/errors"

	"github.com/seclink/blehost"
	"github.com/seclink/blehost/keyring"
)

const defaultMaxProcedures = 8

// Transport carries SMP PDUs to the peer, typically over the security
// manager L2CAP channel of the connection.
type Transport interface {
	Send(conn uint16, pdu []byte) error
}

// AddressProvider reports the identity address pairing runs under.
type AddressProvider interface {
	LocalIdentityAddr() blehost.Addr
}

// AddrProviderFunc adapts a function to the AddressProvider interface.
type AddrProviderFunc func() blehost.Addr

func (f AddrProviderFunc) LocalIdentityAddr() blehost.Addr {
	return f()
}

type fixedAddr struct {
	addr blehost.Addr
}

func (f fixedAddr) LocalIdentityAddr() blehost.Addr {
	return f.addr
}

// Manager runs LE Secure Connections pairing for any number of
// connections. All entry points serialize on one mutex; outgoing PDUs
// and application callbacks are delivered after it is released, so
// handlers may re-enter the Manager.
type Manager struct {
	mu       sync.Mutex
	store    *procStore
	keys     *keyManager
	engine   Engine
	rand     io.Reader
	tport    Transport
	handler  Handler
	provider AddressProvider
	ring     *keyring.Ring
	log      blehost.Logger
}

// Option customizes a Manager at construction time.
type Option func(*Manager)

// OptLogger substitutes the package logger.
func OptLogger(l blehost.Logger) Option {
	return func(m *Manager) { m.log = l }
}

// OptEngine substitutes the crypto engine. Used by tests to force
// primitive failures.
func OptEngine(e Engine) Option {
	return func(m *Manager) { m.engine = e }
}

// OptRandom substitutes the entropy source.
func OptRandom(r io.Reader) Option {
	return func(m *Manager) { m.rand = r }
}

// OptHandler registers the application callback sink.
func OptHandler(h Handler) Option {
	return func(m *Manager) { m.handler = h }
}

// OptAddressProvider sets the source of the local identity address.
func OptAddressProvider(p AddressProvider) Option {
	return func(m *Manager) { m.provider = p }
}

// OptLocalAddr pins the local identity address.
func OptLocalAddr(a blehost.Addr) Option {
	return func(m *Manager) { m.provider = fixedAddr{addr: a} }
}

// OptMaxProcedures caps the number of concurrent pairing procedures.
func OptMaxProcedures(n int) Option {
	return func(m *Manager) { m.store = newProcStore(n) }
}

// OptKeyring stores each derived LTK in the given ring on success.
func OptKeyring(r *keyring.Ring) Option {
	return func(m *Manager) { m.ring = r }
}

// NewManager creates a pairing manager transmitting over t.
func NewManager(t Transport, opts ...Option) *Manager {
	m := &Manager{
		store:  newProcStore(defaultMaxProcedures),
		engine: DefaultEngine(),
		rand:   rand.Reader,
		tport:  t,
		log:    blehost.GetLogger(),
	}

	for _, o := range opts {
		o(m)
	}

	if m.provider == nil {
		m.provider = fixedAddr{}
	}
	m.keys = newKeyManager(m.engine, m.log.ChildLogger(map[string]interface{}{"smp": "keys"}))

	return m
}

// PairConfig describes an agreed pairing feature exchange. Capabilities
// of both sides come from the pairing request and response, which are
// negotiated outside this package.
type PairConfig struct {
	Local Capabilities
	Peer  Capabilities

	PeerAddr blehost.Addr
}

// Pair starts a pairing procedure on the connection. The initiator
// transmits its public key immediately; the responder arms and waits
// for the peer. The returned Result carries any IO action raised while
// starting.
func (m *Manager) Pair(conn uint16, role Role, cfg PairConfig) (Result, error) {
	m.mu.Lock()

	if m.store.find(conn, stateAny) != nil {
		m.mu.Unlock()
		return Result{}, errors.Wrapf(ErrProtocolViolation, "pairing already in progress: conn %d", conn)
	}

	p := &proc{
		conn:      conn,
		state:     StatePublicKey,
		localAddr: m.provider.LocalIdentityAddr(),
		peerAddr:  cfg.PeerAddr,
		log:       m.log.ChildLogger(map[string]interface{}{"conn": conn}),
	}

	if role == RoleInitiator {
		p.flags |= flagInitiator
		p.reqCaps, p.rspCaps = cfg.Local, cfg.Peer
	} else {
		p.reqCaps, p.rspCaps = cfg.Peer, cfg.Local
	}

	if p.reqCaps.IOCap >= ioCapReservedStart || p.rspCaps.IOCap >= ioCapReservedStart {
		p.log.Warnf("reserved io capability %d/%d, falling back to just works",
			p.reqCaps.IOCap, p.rspCaps.IOCap)
	}

	p.method, p.action = ResolveAuthMethod(p.initiator(), p.reqCaps, p.rspCaps)
	if p.method != JustWorks {
		p.flags |= flagAuthenticated
	}

	if err := m.store.insert(p); err != nil {
		m.mu.Unlock()
		return Result{}, err
	}

	p.log.Infof("pairing started: role %v method %v action %v", role, p.method, p.action)

	var res stepResult
	if role == RoleInitiator {
		m.publicKeyGo(p, &res)
	}

	return m.drive(p, res), nil
}

// OnPeerMessage feeds a received SMP PDU into the state machine.
// Messages that do not match a procedure in the expected state are
// dropped. The returned error reports malformed input only; protocol
// failures surface through Result and the outcome callback.
func (m *Manager) OnPeerMessage(conn uint16, pdu []byte) (Result, error) {
	op, payload, err := splitMsg(pdu)
	if err != nil {
		m.log.Warnf("smp rx: conn %d: %v", conn, err)
		return Result{}, err
	}

	var want State
	switch op {
	case pairingPublicKey:
		want = StatePublicKey
	case pairingConfirm:
		want = StateConfirm
	case pairingRandom:
		want = StateRandom
	case pairingDHKeyCheck:
		want = StateDHKeyCheck
	case pairingFailed:
		want = stateAny
	default:
		m.log.Debugf("smp rx: conn %d: unhandled code %#x", conn, op)
		if err := m.tport.Send(conn, buildPairingFailed(reasonCmdNotSupported)); err != nil {
			m.log.Errorf("smp tx failed: conn %d: %v", conn, err)
		}
		return Result{}, nil
	}

	m.mu.Lock()

	p := m.store.find(conn, want)
	if p == nil {
		m.mu.Unlock()
		m.log.Debugf("smp rx: conn %d: no procedure for code %#x, dropped", conn, op)
		return Result{}, nil
	}

	var res stepResult
	switch op {
	case pairingPublicKey:
		m.publicKeyRx(p, payload, &res)
	case pairingConfirm:
		m.confirmRx(p, payload, &res)
	case pairingRandom:
		m.randomRx(p, payload, &res)
	case pairingDHKeyCheck:
		m.dhKeyCheckRx(p, payload, &res)
	case pairingFailed:
		reason := "unknown"
		if len(payload) > 0 {
			reason = failedReasonString(payload[0])
		}
		res.err = errors.Wrapf(ErrPeerAborted, "reason: %s", reason)
	}

	return m.drive(p, res), nil
}

// SupplyPasskey resumes a procedure waiting on a keyboard passkey.
func (m *Manager) SupplyPasskey(conn uint16, passkey uint32) (Result, error) {
	m.mu.Lock()

	p := m.store.find(conn, stateAny)
	if p == nil {
		m.mu.Unlock()
		return Result{}, errors.Wrapf(ErrProtocolViolation, "no pairing in progress: conn %d", conn)
	}

	p.setPasskey(passkey)

	var res stepResult
	res.execute = m.injectIO(p)
	return m.drive(p, res), nil
}

// SupplyOOBData resumes a procedure waiting on the 128-bit secret
// shared over the out of band channel.
func (m *Manager) SupplyOOBData(conn uint16, data []byte) (Result, error) {
	if len(data) != 16 {
		return Result{}, errors.Errorf("oob data must be 16 bytes, got %d", len(data))
	}

	m.mu.Lock()

	p := m.store.find(conn, stateAny)
	if p == nil {
		m.mu.Unlock()
		return Result{}, errors.Wrapf(ErrProtocolViolation, "no pairing in progress: conn %d", conn)
	}

	p.tk = append([]byte{}, data...)

	var res stepResult
	res.execute = m.injectIO(p)
	return m.drive(p, res), nil
}

// ConfirmNumeric answers a numeric comparison request. Rejecting aborts
// the procedure with Numeric Comparison Failed.
func (m *Manager) ConfirmNumeric(conn uint16, accept bool) (Result, error) {
	m.mu.Lock()

	p := m.store.find(conn, stateAny)
	if p == nil {
		m.mu.Unlock()
		return Result{}, errors.Wrapf(ErrProtocolViolation, "no pairing in progress: conn %d", conn)
	}

	var res stepResult
	if !accept {
		res.err = errors.Wrap(ErrNumericRejected, "user rejected comparison value")
		return m.drive(p, res), nil
	}

	res.execute = m.injectIO(p)
	return m.drive(p, res), nil
}

// injectIO marks the user input as delivered and reports whether a
// transmit step unblocks right away. A responder held back by a message
// that arrived before the input resumes through the pending flag.
func (m *Manager) injectIO(p *proc) bool {
	p.flags |= flagIOInjected

	if p.flags&flagAdvancePending != 0 {
		p.flags &^= flagAdvancePending
		return true
	}

	return p.initiator() && ioActionState(p.action) == p.state
}

// CancelConnection aborts every procedure on the connection, typically
// on disconnect. No Pairing Failed is sent; the link is assumed gone.
func (m *Manager) CancelConnection(conn uint16) {
	m.mu.Lock()

	procs := m.store.removeConn(conn)

	outcomes := make([]Outcome, 0, len(procs))
	for _, p := range procs {
		p.state = StateAborted
		outcomes = append(outcomes, Outcome{
			Conn:   p.conn,
			Method: p.method,
			Err:    errors.Wrapf(ErrPairingCanceled, "conn %d", p.conn),
		})
		p.wipe()
	}

	m.mu.Unlock()

	if m.handler != nil {
		for _, o := range outcomes {
			m.handler.OnOutcome(o)
		}
	}
}

// drive runs the execute chain for one entry point. Called with the
// lock held; releases it before transmitting collected PDUs and
// invoking the handler.
func (m *Manager) drive(p *proc, res stepResult) Result {
	var (
		outs    [][]byte
		actions []ActionRequest
		outcome *Outcome
		ringKey *keyring.Key
		out     Result
	)
	conn := p.conn

	for {
		if res.out != nil {
			outs = append(outs, res.out)
		}
		if res.action != nil {
			actions = append(actions, *res.action)
			out.Action = res.action
		}

		if res.err != nil {
			if errors.Cause(res.err) == ErrProtocolViolation {
				p.log.Debugf("smp: dropped: %v", res.err)
				out.Err = res.err
				break
			}

			if reason := reasonFor(res.err); reason != 0 {
				outs = append(outs, buildPairingFailed(reason))
			}
			p.log.Warnf("pairing failed: %v", res.err)

			p.state = StateAborted
			m.store.remove(p)
			outcome = &Outcome{Conn: conn, Method: p.method, Err: res.err}
			out.Err = res.err
			p.wipe()
			break
		}

		if p.state == StateEncStart {
			m.store.remove(p)
			outcome = &Outcome{
				Conn:          conn,
				LTK:           append([]byte{}, p.ltk...),
				Authenticated: p.authenticated(),
				Method:        p.method,
			}
			if m.ring != nil {
				ringKey = &keyring.Key{
					Addr:          p.peerAddr.String(),
					LTK:           append([]byte{}, p.ltk...),
					Authenticated: p.authenticated(),
					Method:        p.method.String(),
				}
			}
			out.Complete = true
			p.log.Infof("pairing complete: method %v authenticated %t", p.method, p.authenticated())
			p.wipe()
			break
		}

		if !res.execute {
			break
		}

		res = stepResult{}
		m.executeState(p, &res)
	}

	m.mu.Unlock()

	for _, pdu := range outs {
		if err := m.tport.Send(conn, pdu); err != nil {
			m.log.Errorf("smp tx failed: conn %d: %v", conn, err)
		}
	}

	if ringKey != nil {
		m.ring.Put(*ringKey)
	}

	if m.handler != nil {
		for i := range actions {
			m.handler.OnAction(actions[i])
		}
		if outcome != nil {
			m.handler.OnOutcome(*outcome)
		}
	}

	return out
}
