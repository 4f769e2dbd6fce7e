package trip

import "github.com/uit-go/ridehail/internal/domain/types"

// allowedTransitions is the complete trip state machine. Anything absent
// here is rejected, including self-transitions.
var allowedTransitions = map[types.TripStatus][]types.TripStatus{
	types.StatusPending:    {types.StatusAccepted, types.StatusCancelled},
	types.StatusAccepted:   {types.StatusInProgress, types.StatusCancelled},
	types.StatusInProgress: {types.StatusCompleted},
	types.StatusCompleted:  {},
	types.StatusCancelled:  {},
}

// CanTransition reports whether from -> to is a legal trip transition.
func CanTransition(from, to types.TripStatus) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
