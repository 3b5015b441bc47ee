package sm

// AuthMethod is the authentication method selected for a pairing
// procedure. It is derived once from both peers' capabilities and fixed
// for the life of the procedure.
type AuthMethod int

const (
	JustWorks AuthMethod = iota
	OutOfBand
	PasskeyEntry
	NumericComparison
)

var authMethodStrings = map[AuthMethod]string{
	JustWorks:         "just works",
	OutOfBand:         "out of band",
	PasskeyEntry:      "passkey entry",
	NumericComparison: "numeric comparison",
}

func (m AuthMethod) String() string {
	if s, ok := authMethodStrings[m]; ok {
		return s
	}
	return "unknown"
}

// Action is the user interaction a pairing procedure requires from the
// local application.
type Action int

const (
	ActionNone Action = iota
	ActionOOB
	ActionInput
	ActionDisplay
	ActionNumericCompare
)

var actionStrings = map[Action]string{
	ActionNone:           "none",
	ActionOOB:            "oob",
	ActionInput:          "input passkey",
	ActionDisplay:        "display passkey",
	ActionNumericCompare: "numeric compare",
}

func (a Action) String() string {
	if s, ok := actionStrings[a]; ok {
		return s
	}
	return "unknown"
}

// Capabilities is one party's pairing feature triple as carried in the
// pairing request/response: IO capability, OOB data flag and the AuthReq
// bit field. Immutable once exchanged.
type Capabilities struct {
	IOCap   byte
	OOBFlag byte
	AuthReq byte
}

func (c Capabilities) MITM() bool {
	return c.AuthReq&AuthReqMITM != 0
}

// triple packs the capabilities in the wire order consumed by f6, LSB
// first [Vol 3, Part H, 2.2.8].
func (c Capabilities) triple() []byte {
	return []byte{c.IOCap, c.OOBFlag, c.AuthReq}
}

// Initiator and responder action tables, Core spec v5.0, Vol 3, Part H,
// 2.3.5.1, Tables 2.6-2.8. Indexed [responder io cap][initiator io cap].
// Kept as constant data so both peers resolve identically.
var initiatorActions = [5][5]Action{
	{ActionNone, ActionNone, ActionInput, ActionNone, ActionInput},
	{ActionNone, ActionNumericCompare, ActionInput, ActionNone, ActionNumericCompare},
	{ActionDisplay, ActionDisplay, ActionInput, ActionNone, ActionDisplay},
	{ActionNone, ActionNone, ActionNone, ActionNone, ActionNone},
	{ActionDisplay, ActionNumericCompare, ActionInput, ActionNone, ActionNumericCompare},
}

var responderActions = [5][5]Action{
	{ActionNone, ActionNone, ActionDisplay, ActionNone, ActionDisplay},
	{ActionNone, ActionNumericCompare, ActionDisplay, ActionNone, ActionNumericCompare},
	{ActionInput, ActionInput, ActionInput, ActionNone, ActionInput},
	{ActionNone, ActionNone, ActionNone, ActionNone, ActionNone},
	{ActionInput, ActionNumericCompare, ActionDisplay, ActionNone, ActionNumericCompare},
}

// methodForAction maps the required user action to the authentication
// method that produces it.
func methodForAction(a Action) AuthMethod {
	switch a {
	case ActionOOB:
		return OutOfBand
	case ActionInput, ActionDisplay:
		return PasskeyEntry
	case ActionNumericCompare:
		return NumericComparison
	default:
		return JustWorks
	}
}

// ResolveAuthMethod determines the authentication method and the local
// user action from both parties' capability triples. req is always the
// initiator's triple and rsp the responder's; initiator selects which
// side is local. Deterministic: both peers run this independently and
// must agree without further negotiation.
func ResolveAuthMethod(initiator bool, req, rsp Capabilities) (AuthMethod, Action) {
	var action Action

	switch {
	case req.OOBFlag == OOBPresent || rsp.OOBFlag == OOBPresent:
		action = ActionOOB

	case !req.MITM() && !rsp.MITM():
		action = ActionNone

	case req.IOCap >= ioCapReservedStart || rsp.IOCap >= ioCapReservedStart:
		// Reserved capability values get the weakest association model
		// rather than a hard failure, matching common host behavior.
		action = ActionNone

	case initiator:
		action = initiatorActions[rsp.IOCap][req.IOCap]

	default:
		action = responderActions[rsp.IOCap][req.IOCap]
	}

	return methodForAction(action), action
}
