package master

import "github.com/arloliu/go-ecat/engine"

// State is the lifecycle state of a session's device group as reported to callers.
type State uint32

const (
	// InitState indicates that no group exists, the session is not initialized.
	InitState State = iota
	// PreOpState allows mailbox access only.
	PreOpState
	// SafeOpState exposes sized process-data areas, outputs are not applied.
	SafeOpState
	// OpState applies outputs on the bus.
	OpState
)

// IsInit returns if the state is Init.
func (s State) IsInit() bool { return s == InitState }

// IsPreOp returns if the state is PRE-OP.
func (s State) IsPreOp() bool { return s == PreOpState }

// IsSafeOp returns if the state is SAFE-OP.
func (s State) IsSafeOp() bool { return s == SafeOpState }

// IsOp returns if the state is OP.
func (s State) IsOp() bool { return s == OpState }

// IsValid returns if the state is one of the four defined states.
func (s State) IsValid() bool { return s <= OpState }

// String returns string representation of the state.
func (s State) String() string {
	switch s {
	case InitState:
		return "init"
	case PreOpState:
		return "pre-op"
	case SafeOpState:
		return "safe-op"
	case OpState:
		return "op"
	default:
		return "unknown"
	}
}

// alState maps a group state to the engine AL state.
func (s State) alState() engine.ALState {
	switch s {
	case PreOpState:
		return engine.ALStatePreOp
	case SafeOpState:
		return engine.ALStateSafeOp
	case OpState:
		return engine.ALStateOp
	default:
		return engine.ALStateInit
	}
}
