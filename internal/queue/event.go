// Package queue moves committed reservation events to RabbitMQ and back
// out into the audit log.
package queue

import (
	"fmt"
	"time"

	"github.com/iliyamo/room-reservation/internal/model"
)

// EventsQueue is the durable queue carrying model.Event JSON bodies.  The
// AMQP message type header holds the event type and MessageId the event id.
const EventsQueue = "reservation.events"

// AuditLine renders ev as one human-friendly log line.
func AuditLine(ev model.Event) string {
	line := fmt.Sprintf("[%s] %s | event_id=%s | reservation_id=%d | room_id=%d | user_id=%d | window=%s/%s | status=%s",
		ev.OccurredAt.UTC().Format(time.RFC3339), ev.Type, ev.ID, ev.ReservationID, ev.RoomID, ev.UserID,
		ev.Start.UTC().Format(time.RFC3339), ev.End.UTC().Format(time.RFC3339), ev.Status)
	if ev.ActorID != 0 {
		line += fmt.Sprintf(" | actor_id=%d", ev.ActorID)
	}
	if ev.CausedBy != 0 {
		line += fmt.Sprintf(" | caused_by=%d", ev.CausedBy)
	}
	return line + "\n"
}
