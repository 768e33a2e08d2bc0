package auth

import "fmt"

// Phase is the store's position in the auth lifecycle. The navigation layer
// maps each phase to a screen stack.
type Phase string

const (
	PhaseInitializing            Phase = "initializing"
	PhaseUnauthenticated         Phase = "unauthenticated"
	PhaseAuthenticatedIncomplete Phase = "authenticated:profile-incomplete"
	PhaseAuthenticatedComplete   Phase = "authenticated:complete"
)

// Authenticated reports whether the phase holds a session.
func (p Phase) Authenticated() bool {
	return p == PhaseAuthenticatedIncomplete || p == PhaseAuthenticatedComplete
}

type phaseEvent string

const (
	evNoSession          phaseEvent = "no_session"
	evSessionEstablished phaseEvent = "session_established"
	evProfileCompleted   phaseEvent = "profile_completed"
	evSignedOut          phaseEvent = "signed_out"
)

// transition moves from one phase on an event. When guard is set the
// transition only applies if guard(complete) holds.
type transition struct {
	from  Phase
	event phaseEvent
	to    Phase
	guard func(complete bool) bool
}

func whenComplete(complete bool) bool   { return complete }
func whenIncomplete(complete bool) bool { return !complete }

var transitions = buildTransitions()

func buildTransitions() []transition {
	var t []transition
	establishFrom := []Phase{
		PhaseInitializing,
		PhaseUnauthenticated,
		PhaseAuthenticatedIncomplete,
		PhaseAuthenticatedComplete,
	}
	for _, from := range establishFrom {
		t = append(t,
			transition{from: from, event: evSessionEstablished, to: PhaseAuthenticatedComplete, guard: whenComplete},
			transition{from: from, event: evSessionEstablished, to: PhaseAuthenticatedIncomplete, guard: whenIncomplete},
			transition{from: from, event: evSignedOut, to: PhaseUnauthenticated},
		)
	}
	t = append(t,
		transition{from: PhaseInitializing, event: evNoSession, to: PhaseUnauthenticated},
		transition{from: PhaseUnauthenticated, event: evNoSession, to: PhaseUnauthenticated},
		transition{from: PhaseAuthenticatedIncomplete, event: evProfileCompleted, to: PhaseAuthenticatedComplete},
		transition{from: PhaseAuthenticatedComplete, event: evProfileCompleted, to: PhaseAuthenticatedComplete},
	)
	return t
}

// nextPhase resolves the target of event fired in from.
func nextPhase(from Phase, event phaseEvent, complete bool) (Phase, error) {
	for _, tr := range transitions {
		if tr.from != from || tr.event != event {
			continue
		}
		if tr.guard != nil && !tr.guard(complete) {
			continue
		}
		return tr.to, nil
	}
	return from, fmt.Errorf("no transition from %q on %q", from, event)
}
