package sm

// ActionRequest asks the application for a user interaction before the
// procedure can continue. Value carries the 6-digit passkey for
// ActionDisplay and the comparison value for ActionNumericCompare.
type ActionRequest struct {
	Conn   uint16
	Action Action
	Value  uint32
}

// Outcome is the terminal report for a procedure. Every procedure that
// was started produces exactly one Outcome: either a derived LTK or a
// named abort reason. There is no silent failure path.
type Outcome struct {
	Conn          uint16
	LTK           []byte
	Authenticated bool
	Method        AuthMethod
	Err           error
}

// Handler is the application callback surface.
type Handler interface {
	OnAction(ActionRequest)
	OnOutcome(Outcome)
}

// Result is returned to the driving host loop by Pair, OnPeerMessage and
// the IO injection calls. Action is non-nil when the step raised a user
// interaction request; Complete reports terminal success; Err carries a
// terminal failure. Handler callbacks receive the same information.
type Result struct {
	Action   *ActionRequest
	Complete bool
	Err      error
}

// stepResult is the per-step continuation: at most one outgoing message,
// an optional raised action, and whether the next protocol step should
// run immediately instead of waiting for peer input.
type stepResult struct {
	out     []byte
	action  *ActionRequest
	execute bool
	err     error
}
