package scheduler_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/iliyamo/room-reservation/internal/model"
	"github.com/iliyamo/room-reservation/internal/repository/memstore"
	"github.com/iliyamo/room-reservation/internal/scheduler"
)

var (
	now   = time.Date(2024, 12, 1, 8, 0, 0, 0, time.UTC)
	day   = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	admin = model.Actor{UserID: 1, Role: model.RoleAdmin}
	alice = model.Actor{UserID: 10, Role: model.RoleStudent}
	bob   = model.Actor{UserID: 11, Role: model.RoleProfessor}
)

func hm(h, m int) time.Time { return day.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute) }

type recorder struct {
	mu     sync.Mutex
	events []model.Event
}

func (r *recorder) Notify(events ...model.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, events...)
}

func (r *recorder) types() []model.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

type counter struct {
	mu           sync.Mutex
	ops          map[string]int
	autoRejected int
}

func (c *counter) ObserveOperation(op, outcome string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ops == nil {
		c.ops = make(map[string]int)
	}
	c.ops[op+"/"+outcome]++
}

func (c *counter) ObserveAutoRejected(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.autoRejected += n
}

type fixture struct {
	*scheduler.Scheduler
	dir      *memstore.Directory
	store    *memstore.Store
	events   *recorder
	observed *counter
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWith(t, func(s scheduler.Store) scheduler.Store { return s })
}

func newFixtureWith(t *testing.T, wrapStore func(scheduler.Store) scheduler.Store) *fixture {
	t.Helper()
	f := &fixture{
		dir: memstore.NewDirectory(
			model.Room{ID: 101, Name: "101", Sector: "A", Capacity: 10, IsAvailable: true},
			model.Room{ID: 102, Name: "102", Sector: "A", Capacity: 40, IsAvailable: true},
			model.Room{ID: 201, Name: "201", Sector: "B", Capacity: 25, IsAvailable: true},
			model.Room{ID: 301, Name: "301", Sector: "C", Capacity: 60, IsAvailable: false},
		),
		store:    memstore.NewStore(),
		events:   &recorder{},
		observed: &counter{},
	}
	f.Scheduler = scheduler.New(f.dir, wrapStore(f.store), scheduler.Options{
		Clock:                     func() time.Time { return now },
		Notifier:                  f.events,
		Observer:                  f.observed,
		PendingBlocksAvailability: true,
	})
	return f
}

func (f *fixture) book(t *testing.T, who model.Actor, room uint64, start, end time.Time) model.Reservation {
	t.Helper()
	r, err := f.CreateReservation(context.Background(), scheduler.BookingRequest{
		RoomID: room, UserID: who.UserID, Start: start, End: end, Purpose: "lecture",
	})
	if err != nil {
		t.Fatalf("book room %d [%s, %s): %v", room, start.Format("15:04"), end.Format("15:04"), err)
	}
	return r
}

func (f *fixture) status(t *testing.T, id uint64) model.Status {
	t.Helper()
	r, err := f.store.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("get %d: %v", id, err)
	}
	return r.Status
}

func wantKind(t *testing.T, err error, kind scheduler.Kind) {
	t.Helper()
	if got := scheduler.KindOf(err); got != kind {
		t.Fatalf("error kind = %s (%v), want %s", got, err, kind)
	}
}
