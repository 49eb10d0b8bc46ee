package scheduling

// transitions maps each state to the states it may move to. Requesting the
// current state again is a no-op success, handled by CanTransition directly.
var transitions = map[State][]State{
	StateSlotsOffered:      {StateCandidatePicked, StateCancelled},
	StateCandidatePicked:   {StateEmployerConfirmed, StateCancelled},
	StateEmployerConfirmed: {StateScheduled, StateCancelled},
	StateScheduled:         {StateCancelled},
	StateCancelled:         {},
}

// CanTransition reports whether moving from one state to another is legal.
func CanTransition(from, to State) bool {
	if from == to {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether a state has no outgoing transitions.
func IsTerminal(s State) bool {
	return len(transitions[s]) == 0
}

// ValidState reports whether s is a known lifecycle state.
func ValidState(s State) bool {
	_, ok := transitions[s]
	return ok
}
