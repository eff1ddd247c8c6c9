package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/iliyamo/room-reservation/internal/model"
	"github.com/iliyamo/room-reservation/internal/scheduler"
)

// ReservationRepo persists reservations in MySQL and implements
// scheduler.Store.  Room locks are row locks on the rooms table taken with
// SELECT ... FOR UPDATE, always in ascending id order.  All timestamps are
// stored in UTC.
type ReservationRepo struct {
	db    *sql.DB
	retry RetryPolicy
}

var _ scheduler.Store = (*ReservationRepo)(nil)

// NewReservationRepo returns a ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB, retry RetryPolicy) *ReservationRepo {
	return &ReservationRepo{db: db, retry: retry.withDefaults()}
}

// DB exposes the underlying sql.DB.
func (r *ReservationRepo) DB() *sql.DB { return r.db }

const reservationColumns = `id, room_id, user_id, start_time, end_time, purpose, status, created_at, updated_at`

// InRoomTx implements scheduler.Store.  fn runs inside one transaction
// after every listed room row is locked.  Deadlocks and lock wait timeouts
// restart the whole transaction, so fn may run more than once.
func (r *ReservationRepo) InRoomTx(ctx context.Context, roomIDs []uint64, fn func(ctx context.Context, tx scheduler.Tx) error) error {
	ids := uniqueSorted(roomIDs)
	return r.retry.do(ctx, func() error { return r.runTx(ctx, ids, fn) })
}

func (r *ReservationRepo) runTx(ctx context.Context, roomIDs []uint64, fn func(ctx context.Context, tx scheduler.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := lockRooms(ctx, tx, roomIDs); err != nil {
		return err
	}
	if err := fn(ctx, &reservationTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return nil
}

func lockRooms(ctx context.Context, tx *sql.Tx, roomIDs []uint64) error {
	if len(roomIDs) == 0 {
		return nil
	}
	q := `SELECT id FROM rooms WHERE id IN (` + placeholders(len(roomIDs)) + `) ORDER BY id FOR UPDATE`
	rows, err := tx.QueryContext(ctx, q, uint64Args(roomIDs)...)
	if err != nil {
		return fmt.Errorf("lock rooms: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return fmt.Errorf("lock rooms: %w", err)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("lock rooms: %w", err)
	}
	return nil
}

// Get implements scheduler.Store.
func (r *ReservationRepo) Get(ctx context.Context, id uint64) (model.Reservation, error) {
	return getReservation(ctx, r.db, id)
}

// List implements scheduler.Store.  Results are ordered newest first.
func (r *ReservationRepo) List(ctx context.Context, f model.ReservationFilter) ([]model.Reservation, int, error) {
	f = f.Normalize()
	var where []string
	var args []interface{}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.RoomID != 0 {
		where = append(where, "room_id = ?")
		args = append(args, f.RoomID)
	}
	if f.UserID != 0 {
		where = append(where, "user_id = ?")
		args = append(args, f.UserID)
	}
	cond := ""
	if len(where) > 0 {
		cond = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM reservations`+cond, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count reservations: %w", err)
	}
	q := `SELECT ` + reservationColumns + ` FROM reservations` + cond + ` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	rows, err := r.db.QueryContext(ctx, q, append(args, f.PageSize, f.Offset())...)
	if err != nil {
		return nil, 0, fmt.Errorf("list reservations: %w", err)
	}
	defer rows.Close()
	items, err := scanReservations(rows)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// BlockedRooms implements scheduler.Store.
func (r *ReservationRepo) BlockedRooms(ctx context.Context, roomIDs []uint64, w model.Window, statuses []model.Status) (map[uint64]bool, error) {
	out := make(map[uint64]bool)
	if len(roomIDs) == 0 || len(statuses) == 0 {
		return out, nil
	}
	q := `SELECT DISTINCT room_id FROM reservations
	      WHERE room_id IN (` + placeholders(len(roomIDs)) + `)
	        AND status IN (` + placeholders(len(statuses)) + `)
	        AND NOT (end_time <= ? OR start_time >= ?)`
	args := append(uint64Args(roomIDs), statusArgs(statuses)...)
	args = append(args, w.Start, w.End)
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("blocked rooms: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan blocked room: %w", err)
		}
		out[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("blocked rooms: %w", err)
	}
	return out, nil
}

// reservationTx is the scheduler.Tx view over an open *sql.Tx.
type reservationTx struct {
	tx *sql.Tx
}

func (t *reservationTx) Get(ctx context.Context, id uint64) (model.Reservation, error) {
	return getReservation(ctx, t.tx, id)
}

// Overlapping selects reservations where NOT (existing ends before the
// window starts OR existing starts after the window ends).  Touching
// endpoints do not overlap.
func (t *reservationTx) Overlapping(ctx context.Context, roomID uint64, w model.Window, statuses []model.Status) ([]model.Reservation, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	q := `SELECT ` + reservationColumns + ` FROM reservations
	      WHERE room_id = ? AND status IN (` + placeholders(len(statuses)) + `)
	        AND NOT (end_time <= ? OR start_time >= ?)
	      ORDER BY start_time, id`
	args := append([]interface{}{roomID}, statusArgs(statuses)...)
	args = append(args, w.Start, w.End)
	rows, err := t.tx.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("find overlapping: %w", err)
	}
	defer rows.Close()
	return scanReservations(rows)
}

func (t *reservationTx) Insert(ctx context.Context, r *model.Reservation) error {
	const q = `INSERT INTO reservations (room_id, user_id, start_time, end_time, purpose, status, created_at, updated_at)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := t.tx.ExecContext(ctx, q, r.RoomID, r.UserID, r.Start, r.End, r.Purpose, string(r.Status), r.CreatedAt, r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert reservation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert reservation: %w", err)
	}
	r.ID = uint64(id)
	return nil
}

// SetStatus is a compare-and-set: rows whose status is no longer from are
// left alone and not counted.
func (t *reservationTx) SetStatus(ctx context.Context, ids []uint64, from, to model.Status, at time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	q := `UPDATE reservations SET status = ?, updated_at = ? WHERE status = ? AND id IN (` + placeholders(len(ids)) + `)`
	args := append([]interface{}{string(to), at, string(from)}, uint64Args(ids)...)
	res, err := t.tx.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, fmt.Errorf("set status %s: %w", to, err)
	}
	return res.RowsAffected()
}

func (t *reservationTx) Update(ctx context.Context, r model.Reservation, expected model.Status) (int64, error) {
	const q = `UPDATE reservations SET room_id = ?, start_time = ?, end_time = ?, purpose = ?, updated_at = ?
	           WHERE id = ? AND status = ?`
	res, err := t.tx.ExecContext(ctx, q, r.RoomID, r.Start, r.End, r.Purpose, r.UpdatedAt, r.ID, string(expected))
	if err != nil {
		return 0, fmt.Errorf("update reservation %d: %w", r.ID, err)
	}
	return res.RowsAffected()
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func getReservation(ctx context.Context, q queryer, id uint64) (model.Reservation, error) {
	row := q.QueryRowContext(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, id)
	r, err := scanReservation(row)
	if err != nil {
		return model.Reservation{}, notFound(err, "reservation", id)
	}
	return r, nil
}

func scanReservation(s scanner) (model.Reservation, error) {
	var (
		r      model.Reservation
		status string
	)
	err := s.Scan(&r.ID, &r.RoomID, &r.UserID, &r.Start, &r.End, &r.Purpose, &status, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return model.Reservation{}, err
	}
	r.Status = model.Status(status)
	r.Start, r.End = r.Start.UTC(), r.End.UTC()
	r.CreatedAt, r.UpdatedAt = r.CreatedAt.UTC(), r.UpdatedAt.UTC()
	return r, nil
}

func scanReservations(rows *sql.Rows) ([]model.Reservation, error) {
	out := make([]model.Reservation, 0)
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reservation: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reservations: %w", err)
	}
	return out, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func uint64Args(ids []uint64) []interface{} {
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

func statusArgs(statuses []model.Status) []interface{} {
	args := make([]interface{}, len(statuses))
	for i, s := range statuses {
		args[i] = string(s)
	}
	return args
}

func uniqueSorted(ids []uint64) []uint64 {
	out := append([]uint64(nil), ids...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	n := 0
	for i, id := range out {
		if i == 0 || id != out[n-1] {
			out[n] = id
			n++
		}
	}
	return out[:n]
}
