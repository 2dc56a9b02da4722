package resource

import "time"

type (
	// Phase is the high-level lifecycle state of a resource.
	Phase string

	// ConditionStatus is the tri-state value a Condition can hold.
	ConditionStatus string

	// Status is the observed state of a resource as driven by its controller.
	Status struct {
		Phase              Phase          `json:"phase" yaml:"phase"`
		Conditions         []Condition    `json:"conditions,omitempty" yaml:"conditions,omitempty"`
		ObservedGeneration int64          `json:"observedGeneration,omitempty" yaml:"observedGeneration,omitempty"`
		LastSuccessTime    *time.Time     `json:"lastSuccessTime,omitempty" yaml:"lastSuccessTime,omitempty"`
		LastFailureTime    *time.Time     `json:"lastFailureTime,omitempty" yaml:"lastFailureTime,omitempty"`
		Details            map[string]any `json:"details,omitempty" yaml:"details,omitempty"`
	}

	// Condition is one entry in a Status's ordered condition list. A condition
	// of a given Type appears at most once; SetCondition updates in place.
	Condition struct {
		Type               string          `json:"type" yaml:"type"`
		Status             ConditionStatus `json:"status" yaml:"status"`
		Reason             string          `json:"reason,omitempty" yaml:"reason,omitempty"`
		Message            string          `json:"message,omitempty" yaml:"message,omitempty"`
		LastTransitionTime time.Time       `json:"lastTransitionTime" yaml:"lastTransitionTime"`
		LastUpdateTime     time.Time       `json:"lastUpdateTime" yaml:"lastUpdateTime"`
	}
)

const (
	PhasePending      Phase = "Pending"
	PhaseInitializing Phase = "Initializing"
	PhaseRunning      Phase = "Running"
	PhaseDegraded     Phase = "Degraded"
	PhaseFailed       Phase = "Failed"
	PhaseTerminating  Phase = "Terminating"
	PhaseUnknown      Phase = "Unknown"

	ConditionTrue    ConditionStatus = "True"
	ConditionFalse   ConditionStatus = "False"
	ConditionUnknown ConditionStatus = "Unknown"
)

// NewStatus returns a Status in PhasePending with no conditions, the starting
// point the controller framework stamps onto a freshly reconciled resource.
func NewStatus() *Status {
	return &Status{Phase: PhasePending}
}

// DeepCopy returns an independent copy of the status.
func (s Status) DeepCopy() Status {
	cp := s
	if s.Conditions != nil {
		cp.Conditions = make([]Condition, len(s.Conditions))
		copy(cp.Conditions, s.Conditions)
	}
	if s.LastSuccessTime != nil {
		t := *s.LastSuccessTime
		cp.LastSuccessTime = &t
	}
	if s.LastFailureTime != nil {
		t := *s.LastFailureTime
		cp.LastFailureTime = &t
	}
	if s.Details != nil {
		cp.Details = make(map[string]any, len(s.Details))
		for k, v := range s.Details {
			cp.Details[k] = v
		}
	}
	return cp
}

// SetCondition inserts or updates a condition by Type. LastTransitionTime is
// preserved across an update unless Status actually changes, per the data
// model's condition invariant.
func (s *Status) SetCondition(now time.Time, c Condition) {
	c.LastUpdateTime = now
	for i := range s.Conditions {
		if s.Conditions[i].Type == c.Type {
			if s.Conditions[i].Status != c.Status {
				c.LastTransitionTime = now
			} else {
				c.LastTransitionTime = s.Conditions[i].LastTransitionTime
			}
			s.Conditions[i] = c
			return
		}
	}
	c.LastTransitionTime = now
	s.Conditions = append(s.Conditions, c)
}

// Condition returns the condition with the given type and whether it exists.
func (s *Status) Condition(typ string) (Condition, bool) {
	for _, c := range s.Conditions {
		if c.Type == typ {
			return c, true
		}
	}
	return Condition{}, false
}

// IsConditionTrue reports whether the named condition exists and is True.
func (s *Status) IsConditionTrue(typ string) bool {
	c, ok := s.Condition(typ)
	return ok && c.Status == ConditionTrue
}
