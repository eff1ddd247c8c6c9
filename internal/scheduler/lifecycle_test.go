package scheduler

import (
	"errors"
	"testing"

	"github.com/iliyamo/room-reservation/internal/model"
)

func TestTransitions(t *testing.T) {
	all := []model.Status{model.StatusPending, model.StatusApproved, model.StatusRejected, model.StatusCancelled}
	allowed := map[[2]model.Status]bool{
		{model.StatusPending, model.StatusApproved}:   true,
		{model.StatusPending, model.StatusRejected}:   true,
		{model.StatusPending, model.StatusCancelled}:  true,
		{model.StatusApproved, model.StatusCancelled}: true,
	}
	for _, from := range all {
		for _, to := range all {
			want := allowed[[2]model.Status{from, to}]
			if got := CanTransition(from, to); got != want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", from, to, got, want)
			}
			err := CheckTransition(from, to)
			if want && err != nil {
				t.Errorf("CheckTransition(%s, %s) = %v", from, to, err)
			}
			if !want && !errors.Is(err, ErrInvalidTransition) {
				t.Errorf("CheckTransition(%s, %s) = %v, want invalid transition", from, to, err)
			}
		}
	}
}

func TestNothingReturnsToPending(t *testing.T) {
	for from := range transitions {
		if CanTransition(from, model.StatusPending) {
			t.Fatalf("%s -> Pending must not be allowed", from)
		}
	}
}

func TestInvalidStateWrapsTransition(t *testing.T) {
	err := invalidState("approve", model.Reservation{ID: 4, Status: model.StatusRejected}, model.StatusApproved)
	if KindOf(err) != KindInvalidState {
		t.Fatalf("kind = %v", KindOf(err))
	}
	if !errors.Is(err, ErrInvalidState) || !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("error chain does not match both kinds: %v", err)
	}
	if errors.Is(err, ErrConflict) {
		t.Fatal("must not match conflict")
	}
}
