package scheduler

import (
	"fmt"

	"github.com/iliyamo/room-reservation/internal/model"
)

// transitions lists every legal status move.  Rejected and Cancelled are
// terminal and nothing ever returns to Pending.
var transitions = map[model.Status][]model.Status{
	model.StatusPending:  {model.StatusApproved, model.StatusRejected, model.StatusCancelled},
	model.StatusApproved: {model.StatusCancelled},
}

// CanTransition reports whether from -> to is allowed.
func CanTransition(from, to model.Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// CheckTransition returns an InvalidTransition error when from -> to is
// not allowed.
func CheckTransition(from, to model.Status) error {
	if CanTransition(from, to) {
		return nil
	}
	return &Error{
		Kind: KindInvalidTransition,
		Msg:  fmt.Sprintf("cannot move reservation from %s to %s", displayStatus(from), displayStatus(to)),
	}
}

// Editable reports whether an administrative edit may change room, window
// or purpose of a reservation in status s.
func Editable(s model.Status) bool {
	return s == model.StatusPending || s == model.StatusApproved
}

// invalidState wraps a disallowed transition as the InvalidState failure
// surfaced by approve, reject and cancel.
func invalidState(op string, r model.Reservation, to model.Status) error {
	return &Error{
		Kind: KindInvalidState,
		Op:   op,
		Msg:  fmt.Sprintf("reservation %d is %s", r.ID, displayStatus(r.Status)),
		Err:  CheckTransition(r.Status, to),
	}
}

func displayStatus(s model.Status) string {
	if s == "" {
		return "unset"
	}
	return string(s)
}
