package scheduler

import (
	"context"
	"time"

	"github.com/iliyamo/room-reservation/internal/model"
)

// RoomDirectory is the read-only view of room inventory the scheduler
// consults.  GetRoom returns ErrNotFound for unknown or soft-deleted rooms.
type RoomDirectory interface {
	ListRooms(ctx context.Context, f model.RoomFilter) ([]model.Room, error)
	GetRoom(ctx context.Context, id uint64) (model.Room, error)
}

// Store persists reservations.  Reads outside InRoomTx are not locked and
// may be stale by the time the caller acts on them.
type Store interface {
	// InRoomTx runs fn in a single all-or-nothing transaction while holding
	// exclusive locks on every listed room.  Implementations lock rooms in
	// ascending id order and may re-run fn after transient contention, so
	// fn must not leak state from an aborted attempt.  When retries are
	// exhausted the error matches ErrBusy.
	InRoomTx(ctx context.Context, roomIDs []uint64, fn func(ctx context.Context, tx Tx) error) error

	// Get returns the reservation or an error matching ErrNotFound.
	Get(ctx context.Context, id uint64) (model.Reservation, error)

	// List returns one page of reservations matching f, newest first, and
	// the total number of matches.
	List(ctx context.Context, f model.ReservationFilter) ([]model.Reservation, int, error)

	// BlockedRooms returns the subset of roomIDs holding at least one
	// reservation in one of statuses whose window overlaps w.
	BlockedRooms(ctx context.Context, roomIDs []uint64, w model.Window, statuses []model.Status) (map[uint64]bool, error)
}

// Tx is the view of the store inside InRoomTx.
type Tx interface {
	Get(ctx context.Context, id uint64) (model.Reservation, error)
	// Overlapping returns the room's reservations in one of statuses whose
	// window overlaps w, ordered by start time then id.
	Overlapping(ctx context.Context, roomID uint64, w model.Window, statuses []model.Status) ([]model.Reservation, error)
	// Insert stores r and assigns r.ID.
	Insert(ctx context.Context, r *model.Reservation) error
	// SetStatus moves every listed reservation currently in from to to and
	// reports how many rows changed.
	SetStatus(ctx context.Context, ids []uint64, from, to model.Status, at time.Time) (int64, error)
	// Update rewrites room, window, purpose and updated_at of r provided its
	// stored status still equals expected, reporting rows changed.
	Update(ctx context.Context, r model.Reservation, expected model.Status) (int64, error)
}

// Notifier receives events after their transaction commits.  Notify must
// not block on I/O.
type Notifier interface {
	Notify(events ...model.Event)
}

// Observer records operation outcomes.  outcome is "ok" or a Kind name.
type Observer interface {
	ObserveOperation(op, outcome string)
	ObserveAutoRejected(n int)
}

type nopNotifier struct{}

func (nopNotifier) Notify(...model.Event) {}

type nopObserver struct{}

func (nopObserver) ObserveOperation(string, string) {}
func (nopObserver) ObserveAutoRejected(int)         {}
