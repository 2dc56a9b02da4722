package resource

import (
	"fmt"
	"time"
)

// well-known condition types stamped by phase transitions.
const (
	ConditionReady       = "Ready"
	ConditionAvailable   = "Available"
	ConditionError       = "Error"
	ConditionDegraded    = "Degraded"
	ConditionReconciling = "Reconciling"
)

// TransitionError reports an attempt to move a resource's phase along an edge
// that is not permitted by the status machine's transition graph.
type TransitionError struct {
	From, To Phase
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("InvalidStateTransition: %s -> %s", e.From, e.To)
}

// allowedTransitions encodes the permitted phase-transition edges. Every
// phase may additionally transition to PhaseUnknown; that edge is checked
// separately in CanTransition rather than duplicated in every entry.
var allowedTransitions = map[Phase]map[Phase]bool{
	PhasePending:      {PhaseInitializing: true, PhaseFailed: true, PhaseTerminating: true},
	PhaseInitializing: {PhaseRunning: true, PhaseFailed: true, PhaseTerminating: true},
	PhaseRunning:      {PhaseDegraded: true, PhaseFailed: true, PhaseTerminating: true},
	PhaseDegraded:     {PhaseRunning: true, PhaseFailed: true, PhaseTerminating: true},
	PhaseFailed:       {PhaseInitializing: true, PhaseTerminating: true},
	PhaseTerminating:  {},
	PhaseUnknown:      nil, // any phase is reachable from Unknown; see CanTransition
}

// CanTransition reports whether moving from -> to is a permitted edge.
// A transition to the same phase is always permitted (idempotent reconcile).
func CanTransition(from, to Phase) bool {
	if from == to {
		return true
	}
	if to == PhaseUnknown {
		return true
	}
	if from == PhaseUnknown {
		return true
	}
	edges, ok := allowedTransitions[from]
	if !ok {
		return false
	}
	return edges[to]
}

// Transition moves the status to the target phase, validating the edge,
// stamping the side-effect conditions for Failed/Running/Degraded, and
// returning the previous phase for event emission. now is threaded in
// explicitly so callers (and tests) control time.
func Transition(s *Status, to Phase, now time.Time) (Phase, error) {
	if s == nil {
		return "", fmt.Errorf("status is required")
	}
	from := s.Phase
	if !CanTransition(from, to) {
		return from, &TransitionError{From: from, To: to}
	}
	s.Phase = to
	switch to {
	case PhaseFailed:
		s.SetCondition(now, Condition{Type: ConditionError, Status: ConditionTrue})
		t := now
		s.LastFailureTime = &t
	case PhaseRunning:
		s.SetCondition(now, Condition{Type: ConditionReady, Status: ConditionTrue})
		s.SetCondition(now, Condition{Type: ConditionAvailable, Status: ConditionTrue})
		t := now
		s.LastSuccessTime = &t
	case PhaseDegraded:
		s.SetCondition(now, Condition{Type: ConditionReady, Status: ConditionTrue})
		s.SetCondition(now, Condition{Type: ConditionDegraded, Status: ConditionTrue})
	}
	return from, nil
}
