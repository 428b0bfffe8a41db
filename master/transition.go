package master

import (
	"context"
	"fmt"
)

// RequestState drives the group towards target.
//
//	current   target   result
//	any       same     unchanged
//	PRE-OP    SAFE-OP  SAFE-OP, sizes recomputed, expected working counter = device count
//	SAFE-OP   OP       OP, sizes carried
//	OP        SAFE-OP  SAFE-OP, sizes carried
//	SAFE-OP   INIT     PRE-OP, sizes zeroed (same for target PRE-OP)
//	OP        INIT     SAFE-OP then PRE-OP, sizes zeroed (same for target PRE-OP)
//	PRE-OP    INIT     PRE-OP, sizes zeroed
//
// Any other pair, including targets outside 0..3, leaves the group untouched and returns nil.
//
// It returns ErrNoGroup when the session is not initialized. An engine failure returns an error
// wrapping ErrProtocol and the group stays in the last state the engine reached. For the two-step
// requests from OP to PRE-OP or INIT this may be an intermediate state: when the SAFE-OP to PRE-OP step
// fails the group is left in SAFE-OP, not in OP, and CurrentState reports SafeOpState.
func (s *Session) RequestState(target State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.state
	if st == nil || st.group == nil {
		return s.fail(fmt.Errorf("%w: request state %s", ErrNoGroup, target))
	}

	current := st.group.State()
	if target == current {
		return nil
	}

	ctx, cancel := context.WithTimeout(st.ctx, st.cfg.Timeouts().StateTransition)
	defer cancel()

	switch g := st.group.(type) {
	case preOpGroup:
		switch target {
		case InitState:
			st.resetSizes()
			return nil
		case SafeOpState:
			next, err := g.intoSafeOp(ctx)
			if err != nil {
				return s.transitionFailed(st, current, SafeOpState, err)
			}
			s.metrics.incTransitionCount()
			st.group = next
			st.inputSize, st.outputSize = next.areaSizes()
			st.expectedWKC = uint16(next.eg.Len())
		default:
			return s.ignoreTransition(st, current, target)
		}

	case safeOpGroup:
		switch target {
		case InitState, PreOpState:
			next, err := g.intoPreOp(ctx)
			if err != nil {
				return s.transitionFailed(st, current, PreOpState, err)
			}
			s.metrics.incTransitionCount()
			st.group = next
			st.resetSizes()
		case OpState:
			next, err := g.intoOp(ctx)
			if err != nil {
				return s.transitionFailed(st, current, OpState, err)
			}
			s.metrics.incTransitionCount()
			st.group = next
		default:
			return s.ignoreTransition(st, current, target)
		}

	case opGroup:
		switch target {
		case SafeOpState:
			next, err := g.intoSafeOp(ctx)
			if err != nil {
				return s.transitionFailed(st, current, SafeOpState, err)
			}
			s.metrics.incTransitionCount()
			st.group = next
		case InitState, PreOpState:
			safe, err := g.intoSafeOp(ctx)
			if err != nil {
				return s.transitionFailed(st, current, SafeOpState, err)
			}
			s.metrics.incTransitionCount()
			// the engine reached SAFE-OP, keep it if the second step fails
			st.group = safe

			next, err := safe.intoPreOp(ctx)
			if err != nil {
				return s.transitionFailed(st, SafeOpState, PreOpState, err)
			}
			s.metrics.incTransitionCount()
			st.group = next
			st.resetSizes()
		default:
			return s.ignoreTransition(st, current, target)
		}
	}

	st.logger.Info("group state changed", "from", current, "to", st.group.State(),
		"inputs", st.inputSize, "outputs", st.outputSize, "expected_wkc", st.expectedWKC)

	return nil
}

func (st *sessionState) resetSizes() {
	st.inputSize = 0
	st.outputSize = 0
	st.expectedWKC = 0
}

func (s *Session) transitionFailed(st *sessionState, from State, to State, cause error) error {
	s.metrics.incTransitionErrCount()
	st.logger.Error("state transition failed", "from", from, "to", to, "error", cause)

	return s.fail(fmt.Errorf("%w: transition %s -> %s: %w", ErrProtocol, from, to, cause))
}

// ignoreTransition implements the policy for unsupported pairs: the group is left untouched and the
// request succeeds.
func (s *Session) ignoreTransition(st *sessionState, from State, to State) error {
	st.logger.Warn("unsupported state transition ignored", "from", from, "to", to)
	return nil
}
