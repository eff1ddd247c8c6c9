// Package scheduler implements reservation conflict resolution: request
// validation against approved bookings, availability search, the status
// lifecycle and approve-with-cascade-reject.  Storage and transport are
// supplied by the caller through the RoomDirectory and Store interfaces.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/room-reservation/internal/model"
)

// maxRelock bounds how often a locked operation restarts because the
// reservation moved to another room between the unlocked read and the lock.
const maxRelock = 3

var errRelock = errors.New("reservation moved to another room")

// Options configures a Scheduler.  Zero values select defaults.
type Options struct {
	// Clock returns the current time.  Defaults to time.Now.
	Clock func() time.Time
	// Notifier receives committed events.  Defaults to a no-op.
	Notifier Notifier
	// Observer records outcomes.  Defaults to a no-op.
	Observer Observer
	// Logger defaults to slog.Default().
	Logger *slog.Logger
	// PendingBlocksAvailability makes Pending reservations hide a room from
	// FindAvailable in addition to Approved ones.
	PendingBlocksAvailability bool
}

// Scheduler is safe for concurrent use.  All cross-record invariants are
// enforced inside Store.InRoomTx, so several Scheduler instances may share
// one store.
type Scheduler struct {
	rooms    RoomDirectory
	store    Store
	now      func() time.Time
	notifier Notifier
	observer Observer
	log      *slog.Logger
	blocking []model.Status
}

// New builds a Scheduler over the given directory and store.
func New(rooms RoomDirectory, store Store, opts Options) *Scheduler {
	if rooms == nil || store == nil {
		panic("scheduler: nil room directory or store")
	}
	s := &Scheduler{
		rooms:    rooms,
		store:    store,
		now:      opts.Clock,
		notifier: opts.Notifier,
		observer: opts.Observer,
		log:      opts.Logger,
		blocking: []model.Status{model.StatusApproved},
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.notifier == nil {
		s.notifier = nopNotifier{}
	}
	if s.observer == nil {
		s.observer = nopObserver{}
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	if opts.PendingBlocksAvailability {
		s.blocking = append(s.blocking, model.StatusPending)
	}
	s.log = s.log.With("component", "scheduler")
	return s
}

func (s *Scheduler) clock() time.Time {
	return model.Canonical(s.now())
}

func (s *Scheduler) observe(op string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = KindOf(err).String()
	}
	s.observer.ObserveOperation(op, outcome)
}

// withReservation loads reservation id, locks the rooms returned by
// rooms(current) and runs fn on the locked, re-read reservation.
func (s *Scheduler) withReservation(ctx context.Context, op string, id uint64, rooms func(model.Reservation) []uint64, fn func(ctx context.Context, tx Tx, r model.Reservation) error) error {
	if id == 0 {
		return newError(KindNotFound, op, "reservation not found")
	}
	for attempt := 0; attempt < maxRelock; attempt++ {
		current, err := s.store.Get(ctx, id)
		if err != nil {
			return wrap(op, err)
		}
		err = s.store.InRoomTx(ctx, rooms(current), func(ctx context.Context, tx Tx) error {
			r, err := tx.Get(ctx, id)
			if err != nil {
				return err
			}
			if r.RoomID != current.RoomID {
				return errRelock
			}
			return fn(ctx, tx, r)
		})
		if errors.Is(err, errRelock) {
			s.log.Debug("reservation moved while locking, retrying", "op", op, "reservation_id", id, "attempt", attempt+1)
			continue
		}
		return wrap(op, err)
	}
	return newError(KindBusy, op, "reservation kept moving between rooms")
}

func newEvent(typ model.EventType, r model.Reservation, actor uint64, at time.Time) model.Event {
	return model.Event{
		ID:            uuid.NewString(),
		Type:          typ,
		ReservationID: r.ID,
		RoomID:        r.RoomID,
		UserID:        r.UserID,
		ActorID:       actor,
		Start:         r.Start,
		End:           r.End,
		Status:        r.Status,
		OccurredAt:    at,
	}
}

func without(rs []model.Reservation, id uint64) []model.Reservation {
	out := rs[:0:0]
	for _, r := range rs {
		if r.ID != id {
			out = append(out, r)
		}
	}
	return out
}

func ids(rs []model.Reservation) []uint64 {
	out := make([]uint64, 0, len(rs))
	for _, r := range rs {
		out = append(out, r.ID)
	}
	return out
}

func conflictError(op string, with []model.Reservation) error {
	return &Error{
		Kind:      KindConflict,
		Op:        op,
		Msg:       "room is already booked for an overlapping time",
		Conflicts: ids(with),
	}
}

func forbidden(op string) error {
	return newError(KindForbidden, op, "not allowed")
}
