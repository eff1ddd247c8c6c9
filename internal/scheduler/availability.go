package scheduler

import (
	"context"
	"time"

	"github.com/iliyamo/room-reservation/internal/model"
)

// FindAvailable returns the rooms matching f that have no blocking
// reservation overlapping [start, end), in directory order.  Rooms under
// maintenance are never returned, whatever f says.  Approved reservations
// always block; Pending ones block when the scheduler was built with
// PendingBlocksAvailability.
func (s *Scheduler) FindAvailable(ctx context.Context, start, end time.Time, f model.RoomFilter) (rooms []model.Room, err error) {
	const op = "find_available"
	defer func() { s.observe(op, err) }()

	w := model.NewWindow(start, end)
	var v validationError
	s.checkWindow(&v, w, false)
	if f.MinCapacity < 0 {
		v.add("min_capacity", "min_capacity must not be negative")
	}
	if err := v.err(op); err != nil {
		return nil, err
	}

	f.IncludeUnavailable = false
	candidates, err := s.rooms.ListRooms(ctx, f)
	if err != nil {
		return nil, wrap(op, err)
	}
	roomIDs := make([]uint64, 0, len(candidates))
	for _, r := range candidates {
		if r.Bookable() {
			roomIDs = append(roomIDs, r.ID)
		}
	}
	if len(roomIDs) == 0 {
		return []model.Room{}, nil
	}
	blocked, err := s.store.BlockedRooms(ctx, roomIDs, w, s.blocking)
	if err != nil {
		return nil, wrap(op, err)
	}
	out := make([]model.Room, 0, len(roomIDs))
	for _, r := range candidates {
		if r.Bookable() && !blocked[r.ID] {
			out = append(out, r)
		}
	}
	return out, nil
}

// ListRooms exposes the room directory.  Only admins see rooms under
// maintenance.
func (s *Scheduler) ListRooms(ctx context.Context, f model.RoomFilter, actor model.Actor) ([]model.Room, error) {
	if !actor.IsAdmin() {
		f.IncludeUnavailable = false
	}
	rooms, err := s.rooms.ListRooms(ctx, f)
	return rooms, wrap("list_rooms", err)
}

// GetRoom looks up one room.
func (s *Scheduler) GetRoom(ctx context.Context, id uint64) (model.Room, error) {
	room, err := s.rooms.GetRoom(ctx, id)
	return room, wrap("get_room", err)
}
