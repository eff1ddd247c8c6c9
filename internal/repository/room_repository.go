package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/iliyamo/room-reservation/internal/model"
	"github.com/iliyamo/room-reservation/internal/scheduler"
)

// RoomRepo reads the rooms table.  Room inventory is maintained outside
// this service; the repository never writes to it.
type RoomRepo struct {
	db *sql.DB
}

var _ scheduler.RoomDirectory = (*RoomRepo)(nil)

// NewRoomRepo returns a RoomRepo bound to the given database.
func NewRoomRepo(db *sql.DB) *RoomRepo { return &RoomRepo{db: db} }

const roomColumns = `id, name, sector, capacity, is_available, is_deleted`

// ListRooms returns non-deleted rooms matching f ordered by sector, name
// and id.  Rooms under maintenance are skipped unless f asks for them.
func (r *RoomRepo) ListRooms(ctx context.Context, f model.RoomFilter) ([]model.Room, error) {
	where := []string{"is_deleted = 0"}
	var args []interface{}
	if !f.IncludeUnavailable {
		where = append(where, "is_available = 1")
	}
	if s := strings.TrimSpace(f.Sector); s != "" {
		// Column collation is case-insensitive.
		where = append(where, "sector = ?")
		args = append(args, s)
	}
	if f.MinCapacity > 0 {
		where = append(where, "capacity >= ?")
		args = append(args, f.MinCapacity)
	}
	if n := strings.TrimSpace(f.NameContains); n != "" {
		where = append(where, "name LIKE ?")
		args = append(args, "%"+escapeLike(n)+"%")
	}
	q := `SELECT ` + roomColumns + ` FROM rooms WHERE ` + strings.Join(where, " AND ") + ` ORDER BY sector, name, id`
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	defer rows.Close()
	rooms := make([]model.Room, 0)
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, fmt.Errorf("scan room: %w", err)
		}
		rooms = append(rooms, room)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	return rooms, nil
}

// GetRoom returns the room with the given id.  Soft-deleted rooms are
// reported as scheduler.ErrNotFound.
func (r *RoomRepo) GetRoom(ctx context.Context, id uint64) (model.Room, error) {
	q := `SELECT ` + roomColumns + ` FROM rooms WHERE id = ? AND is_deleted = 0`
	room, err := scanRoom(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		return model.Room{}, notFound(err, "room", id)
	}
	return room, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRoom(s scanner) (model.Room, error) {
	var room model.Room
	err := s.Scan(&room.ID, &room.Name, &room.Sector, &room.Capacity, &room.IsAvailable, &room.IsDeleted)
	return room, err
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }
