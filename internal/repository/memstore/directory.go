// Package memstore provides in-memory implementations of the scheduler's
// room directory and reservation store.  They honour the same locking and
// all-or-nothing contract as the MySQL repositories and back the test
// suites and the STORE_DRIVER=memory mode.
package memstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/iliyamo/room-reservation/internal/model"
	"github.com/iliyamo/room-reservation/internal/scheduler"
)

// Directory is a room directory held in memory.
type Directory struct {
	mu    sync.RWMutex
	rooms map[uint64]model.Room
}

// NewDirectory returns a directory holding rooms.
func NewDirectory(rooms ...model.Room) *Directory {
	d := &Directory{rooms: make(map[uint64]model.Room, len(rooms))}
	for _, r := range rooms {
		d.Put(r)
	}
	return d
}

// LoadDirectory reads a JSON array of rooms from path.
func LoadDirectory(path string) (*Directory, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rooms seed: %w", err)
	}
	var rooms []model.Room
	if err := json.Unmarshal(raw, &rooms); err != nil {
		return nil, fmt.Errorf("decode rooms seed: %w", err)
	}
	for i, r := range rooms {
		if r.ID == 0 || r.Capacity < 1 {
			return nil, fmt.Errorf("rooms seed entry %d: id and positive capacity are required", i)
		}
	}
	return NewDirectory(rooms...), nil
}

// Put inserts or replaces a room.
func (d *Directory) Put(r model.Room) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rooms[r.ID] = r
}

// ListRooms returns matching rooms ordered by sector, name and id.
func (d *Directory) ListRooms(ctx context.Context, f model.RoomFilter) ([]model.Room, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	name := strings.ToLower(strings.TrimSpace(f.NameContains))
	out := make([]model.Room, 0, len(d.rooms))
	for _, r := range d.rooms {
		if r.IsDeleted {
			continue
		}
		if !r.IsAvailable && !f.IncludeUnavailable {
			continue
		}
		if f.Sector != "" && !strings.EqualFold(r.Sector, strings.TrimSpace(f.Sector)) {
			continue
		}
		if r.Capacity < f.MinCapacity {
			continue
		}
		if name != "" && !strings.Contains(strings.ToLower(r.Name), name) {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Sector != out[j].Sector {
			return out[i].Sector < out[j].Sector
		}
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// GetRoom returns the room or scheduler.ErrNotFound.  Soft-deleted rooms
// are reported as missing.
func (d *Directory) GetRoom(ctx context.Context, id uint64) (model.Room, error) {
	if err := ctx.Err(); err != nil {
		return model.Room{}, err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	r, ok := d.rooms[id]
	if !ok || r.IsDeleted {
		return model.Room{}, fmt.Errorf("room %d: %w", id, scheduler.ErrNotFound)
	}
	return r, nil
}
