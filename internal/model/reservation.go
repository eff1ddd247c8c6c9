package model

import (
	"math"
	"strings"
	"time"
)

// Status is the lifecycle state of a reservation.
type Status string

const (
	StatusPending   Status = "Pending"
	StatusApproved  Status = "Approved"
	StatusRejected  Status = "Rejected"
	StatusCancelled Status = "Cancelled"
)

// ParseStatus accepts the canonical spelling in any letter case.
func ParseStatus(s string) (Status, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pending":
		return StatusPending, true
	case "approved":
		return StatusApproved, true
	case "rejected":
		return StatusRejected, true
	case "cancelled", "canceled":
		return StatusCancelled, true
	}
	return "", false
}

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	return s == StatusRejected || s == StatusCancelled
}

// Reservation records a user's request to occupy a room for a time window.
// Rejected and cancelled reservations are never deleted; they remain for
// history and audit.
//
// Fields:
//  ID        – primary key identifier.
//  RoomID    – room being reserved.
//  UserID    – requester.
//  Start/End – half-open window in UTC.
//  Purpose   – non-empty free text.
//  Status    – Pending, Approved, Rejected or Cancelled.
//  CreatedAt – creation timestamp.
//  UpdatedAt – last modification timestamp.
type Reservation struct {
	ID        uint64    `json:"id"`         // reservations.id
	RoomID    uint64    `json:"room_id"`    // reservations.room_id
	UserID    uint64    `json:"user_id"`    // reservations.user_id
	Start     time.Time `json:"start"`      // reservations.start_time
	End       time.Time `json:"end"`        // reservations.end_time
	Purpose   string    `json:"purpose"`    // reservations.purpose
	Status    Status    `json:"status"`     // reservations.status
	CreatedAt time.Time `json:"created_at"` // reservations.created_at
	UpdatedAt time.Time `json:"updated_at"` // reservations.updated_at
}

// Window returns the reservation's time window.
func (r Reservation) Window() Window {
	return Window{Start: r.Start, End: r.End}
}

// ReservationFilter narrows a reservation listing.  Zero values mean no
// constraint.  Page is 1-based.
type ReservationFilter struct {
	Status   Status
	RoomID   uint64
	UserID   uint64
	Page     int
	PageSize int
}

// MaxOffset bounds the rows a listing may skip.  Pages beyond it are
// clamped to the last reachable page, which is empty in practice.
const MaxOffset = math.MaxInt32

// MaxPurposeLen is the longest purpose accepted, in characters.  It
// matches reservations.purpose VARCHAR(500).
const MaxPurposeLen = 500

// Normalize clamps paging to sane bounds: page >= 1, 1 <= size <= 100,
// default size 20, and an offset no larger than MaxOffset.
func (f ReservationFilter) Normalize() ReservationFilter {
	if f.PageSize < 1 {
		f.PageSize = 20
	}
	if f.PageSize > 100 {
		f.PageSize = 100
	}
	if f.Page < 1 {
		f.Page = 1
	}
	if maxPage := MaxOffset/f.PageSize + 1; f.Page > maxPage {
		f.Page = maxPage
	}
	return f
}

// Offset is the number of rows skipped for the current page.
func (f ReservationFilter) Offset() int {
	return (f.Page - 1) * f.PageSize
}

// ReservationPatch carries an administrative edit.  Nil fields are left
// unchanged.  A non-nil RoomID must be a resolved, non-zero id.
type ReservationPatch struct {
	RoomID  *uint64
	Start   *time.Time
	End     *time.Time
	Purpose *string
}

// Empty reports whether the patch changes nothing.
func (p ReservationPatch) Empty() bool {
	return p.RoomID == nil && p.Start == nil && p.End == nil && p.Purpose == nil
}
