package state

import "github.com/netpulsehq/netpulse/internal/models"

// validTransitions enumerates the directed pairs the engine will apply.
// Self-loops are always valid but never recorded; every other pair not
// listed here is rejected without mutating stored state.
var validTransitions = map[models.NetworkState][]models.NetworkState{
	models.StateUp:         {models.StateDegraded, models.StateDown},
	models.StateDegraded:   {models.StateUp, models.StateDown},
	models.StateDown:       {models.StateRecovering, models.StateUp},
	models.StateRecovering: {models.StateUp, models.StateDegraded},
}

// ValidTransition reports whether the engine may move from one state to
// another. Self-loops are valid.
func ValidTransition(from, to models.NetworkState) bool {
	if from == to {
		return true
	}
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// TargetState maps a cycle verdict onto the coarse state the network
// should move toward. A degraded verdict observed while DOWN means the
// link is coming back, so it targets RECOVERING rather than DEGRADED,
// which the transition map would reject anyway.
func TargetState(current models.NetworkState, verdict models.Verdict) models.NetworkState {
	switch {
	case !verdict.Online():
		return models.StateDown
	case verdict == models.VerdictHealthy:
		return models.StateUp
	case current == models.StateDown:
		return models.StateRecovering
	default:
		return models.StateDegraded
	}
}
