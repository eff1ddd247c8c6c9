package model

import "time"

// EventType names a committed reservation state change.
type EventType string

const (
	EventCreated      EventType = "reservation.created"
	EventUpdated      EventType = "reservation.updated"
	EventApproved     EventType = "reservation.approved"
	EventAutoRejected EventType = "reservation.auto_rejected"
	EventRejected     EventType = "reservation.rejected"
	EventCancelled    EventType = "reservation.cancelled"
)

// Event is emitted after a transaction commits.  CausedBy is set on
// auto-rejections to the id of the reservation whose approval rejected it.
// ActorID is zero for system-initiated changes.
type Event struct {
	ID            string    `json:"id"`
	Type          EventType `json:"type"`
	ReservationID uint64    `json:"reservation_id"`
	RoomID        uint64    `json:"room_id"`
	UserID        uint64    `json:"user_id"`
	ActorID       uint64    `json:"actor_id,omitempty"`
	Start         time.Time `json:"start"`
	End           time.Time `json:"end"`
	Status        Status    `json:"status"`
	CausedBy      uint64    `json:"caused_by,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}
