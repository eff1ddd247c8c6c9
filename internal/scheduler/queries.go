package scheduler

import (
	"context"

	"github.com/iliyamo/room-reservation/internal/model"
)

// GetReservation returns a reservation visible to actor.
func (s *Scheduler) GetReservation(ctx context.Context, id uint64, actor model.Actor) (model.Reservation, error) {
	const op = "get"
	r, err := s.store.Get(ctx, id)
	if err != nil {
		return model.Reservation{}, wrap(op, err)
	}
	if !actor.CanAccess(r.UserID) {
		return model.Reservation{}, forbidden(op)
	}
	return r, nil
}

// ListReservations returns a page of reservations and the total count.
// Non-admin actors only ever see their own reservations.
func (s *Scheduler) ListReservations(ctx context.Context, f model.ReservationFilter, actor model.Actor) ([]model.Reservation, int, error) {
	const op = "list"
	if !actor.IsAdmin() {
		if actor.UserID == 0 {
			return nil, 0, forbidden(op)
		}
		f.UserID = actor.UserID
	}
	items, total, err := s.store.List(ctx, f.Normalize())
	if err != nil {
		return nil, 0, wrap(op, err)
	}
	if items == nil {
		items = []model.Reservation{}
	}
	return items, total, nil
}
