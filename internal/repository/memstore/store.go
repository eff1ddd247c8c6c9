package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/room-reservation/internal/model"
	"github.com/iliyamo/room-reservation/internal/scheduler"
)

// Store keeps reservations in memory.  Writes made inside InRoomTx are
// staged and applied together only when the callback succeeds.
type Store struct {
	mu     sync.RWMutex
	rows   map[uint64]model.Reservation
	nextID uint64
	locks  roomLocks
}

var _ scheduler.Store = (*Store)(nil)

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{rows: make(map[uint64]model.Reservation)}
}

// Put stores r as-is, bypassing validation, and returns it with its id.
// Intended for seeding fixtures.
func (s *Store) Put(r model.Reservation) model.Reservation {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.ID == 0 {
		s.nextID++
		r.ID = s.nextID
	} else if r.ID > s.nextID {
		s.nextID = r.ID
	}
	r.Start, r.End = model.Canonical(r.Start), model.Canonical(r.End)
	s.rows[r.ID] = r
	return r
}

// All returns a snapshot of every reservation ordered by id.
func (s *Store) All() []model.Reservation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Reservation, 0, len(s.rows))
	for _, r := range s.rows {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// InRoomTx implements scheduler.Store.
func (s *Store) InRoomTx(ctx context.Context, roomIDs []uint64, fn func(ctx context.Context, tx scheduler.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	unlock := s.locks.lock(roomIDs)
	defer unlock()

	tx := &memTx{store: s, staged: make(map[uint64]model.Reservation)}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	for id, r := range tx.staged {
		s.rows[id] = r
	}
	s.mu.Unlock()
	return nil
}

// Get implements scheduler.Store.
func (s *Store) Get(ctx context.Context, id uint64) (model.Reservation, error) {
	if err := ctx.Err(); err != nil {
		return model.Reservation{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rows[id]
	if !ok {
		return model.Reservation{}, fmt.Errorf("reservation %d: %w", id, scheduler.ErrNotFound)
	}
	return r, nil
}

// List implements scheduler.Store.  Results are newest first.
func (s *Store) List(ctx context.Context, f model.ReservationFilter) ([]model.Reservation, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	f = f.Normalize()
	s.mu.RLock()
	matched := make([]model.Reservation, 0)
	for _, r := range s.rows {
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		if f.RoomID != 0 && r.RoomID != f.RoomID {
			continue
		}
		if f.UserID != 0 && r.UserID != f.UserID {
			continue
		}
		matched = append(matched, r)
	}
	s.mu.RUnlock()
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})
	total := len(matched)
	lo := f.Offset()
	if lo < 0 || lo > total {
		lo = total
	}
	hi := lo + f.PageSize
	if hi > total {
		hi = total
	}
	return matched[lo:hi], total, nil
}

// BlockedRooms implements scheduler.Store.
func (s *Store) BlockedRooms(ctx context.Context, roomIDs []uint64, w model.Window, statuses []model.Status) (map[uint64]bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	wanted := make(map[uint64]bool, len(roomIDs))
	for _, id := range roomIDs {
		wanted[id] = true
	}
	out := make(map[uint64]bool)
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.rows {
		if wanted[r.RoomID] && hasStatus(statuses, r.Status) && r.Window().Overlaps(w) {
			out[r.RoomID] = true
		}
	}
	return out, nil
}

type memTx struct {
	store  *Store
	staged map[uint64]model.Reservation
}

func (t *memTx) lookup(id uint64) (model.Reservation, bool) {
	if r, ok := t.staged[id]; ok {
		return r, true
	}
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	r, ok := t.store.rows[id]
	return r, ok
}

func (t *memTx) Get(ctx context.Context, id uint64) (model.Reservation, error) {
	r, ok := t.lookup(id)
	if !ok {
		return model.Reservation{}, fmt.Errorf("reservation %d: %w", id, scheduler.ErrNotFound)
	}
	return r, nil
}

func (t *memTx) Overlapping(ctx context.Context, roomID uint64, w model.Window, statuses []model.Status) ([]model.Reservation, error) {
	view := make(map[uint64]model.Reservation)
	t.store.mu.RLock()
	for id, r := range t.store.rows {
		if r.RoomID == roomID {
			view[id] = r
		}
	}
	t.store.mu.RUnlock()
	for id, r := range t.staged {
		view[id] = r
	}
	var out []model.Reservation
	for _, r := range view {
		if r.RoomID == roomID && hasStatus(statuses, r.Status) && r.Window().Overlaps(w) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Start.Equal(out[j].Start) {
			return out[i].Start.Before(out[j].Start)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (t *memTx) Insert(ctx context.Context, r *model.Reservation) error {
	t.store.mu.Lock()
	t.store.nextID++
	r.ID = t.store.nextID
	t.store.mu.Unlock()
	t.staged[r.ID] = *r
	return nil
}

func (t *memTx) SetStatus(ctx context.Context, ids []uint64, from, to model.Status, at time.Time) (int64, error) {
	var n int64
	for _, id := range uniqueSorted(ids) {
		r, ok := t.lookup(id)
		if !ok || r.Status != from {
			continue
		}
		r.Status = to
		r.UpdatedAt = at
		t.staged[id] = r
		n++
	}
	return n, nil
}

func (t *memTx) Update(ctx context.Context, r model.Reservation, expected model.Status) (int64, error) {
	cur, ok := t.lookup(r.ID)
	if !ok || cur.Status != expected {
		return 0, nil
	}
	cur.RoomID = r.RoomID
	cur.Start, cur.End = r.Start, r.End
	cur.Purpose = r.Purpose
	cur.UpdatedAt = r.UpdatedAt
	t.staged[r.ID] = cur
	return 1, nil
}

func hasStatus(set []model.Status, s model.Status) bool {
	for _, x := range set {
		if x == s {
			return true
		}
	}
	return false
}
