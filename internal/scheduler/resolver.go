package scheduler

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/iliyamo/room-reservation/internal/model"
)

// BookingRequest is the input of CreateReservation.  The room must be a
// resolved id; rooms are never looked up by display name.
type BookingRequest struct {
	RoomID  uint64
	UserID  uint64
	Start   time.Time
	End     time.Time
	Purpose string
}

// Approval is the result of Approve: the approved reservation and every
// pending reservation rejected because it overlapped.
type Approval struct {
	Approved     model.Reservation   `json:"approved"`
	AutoRejected []model.Reservation `json:"auto_rejected"`
}

// checkWindow records window problems.  Windows starting before now are
// rejected when checkPast is set.
func (s *Scheduler) checkWindow(v *validationError, w model.Window, checkPast bool) {
	switch {
	case w.Start.IsZero():
		v.add("start", "start is required")
	case w.End.IsZero():
		v.add("end", "end is required")
	case !w.Valid():
		v.add("end", "end must be after start")
	case checkPast && w.Start.Before(s.clock()):
		v.add("start", "start must not be in the past")
	}
}

// checkPurpose records an empty or over-long purpose.  Length is counted
// in characters, like the VARCHAR column that stores it.
func checkPurpose(v *validationError, purpose string) {
	switch {
	case purpose == "":
		v.add("purpose", "purpose is required")
	case utf8.RuneCountInString(purpose) > model.MaxPurposeLen:
		v.add("purpose", fmt.Sprintf("purpose must be at most %d characters", model.MaxPurposeLen))
	}
}

// bookableRoom resolves roomID through the directory.  Unknown, deleted
// and unavailable rooms are validation failures.
func (s *Scheduler) bookableRoom(ctx context.Context, op string, roomID uint64) (model.Room, error) {
	room, err := s.rooms.GetRoom(ctx, roomID)
	if err != nil {
		if KindOf(err) == KindNotFound {
			return model.Room{}, &Error{Kind: KindValidation, Op: op, Msg: "invalid request", Fields: map[string]string{"room_id": "unknown room"}}
		}
		return model.Room{}, wrap(op, err)
	}
	if !room.Bookable() {
		return model.Room{}, &Error{Kind: KindValidation, Op: op, Msg: "invalid request", Fields: map[string]string{"room_id": "room is not available for booking"}}
	}
	return room, nil
}

// approvedOverlaps returns Approved reservations on roomID overlapping w,
// ignoring exclude.
func approvedOverlaps(ctx context.Context, tx Tx, roomID uint64, w model.Window, exclude uint64) ([]model.Reservation, error) {
	hits, err := tx.Overlapping(ctx, roomID, w, []model.Status{model.StatusApproved})
	if err != nil {
		return nil, err
	}
	return without(hits, exclude), nil
}

// ValidateRequest reports whether a new booking of roomID for [start, end)
// would be accepted.  It fails with a Conflict when an Approved reservation
// overlaps; pending requests never block.
func (s *Scheduler) ValidateRequest(ctx context.Context, roomID uint64, start, end time.Time) (err error) {
	const op = "validate"
	defer func() { s.observe(op, err) }()

	w := model.NewWindow(start, end)
	var v validationError
	if roomID == 0 {
		v.add("room_id", "room_id is required")
	}
	s.checkWindow(&v, w, true)
	if err := v.err(op); err != nil {
		return err
	}
	if _, err := s.bookableRoom(ctx, op, roomID); err != nil {
		return err
	}
	return wrap(op, s.store.InRoomTx(ctx, []uint64{roomID}, func(ctx context.Context, tx Tx) error {
		hits, err := approvedOverlaps(ctx, tx, roomID, w, 0)
		if err != nil {
			return err
		}
		if len(hits) > 0 {
			return conflictError(op, hits)
		}
		return nil
	}))
}

// CreateReservation validates req and stores it as Pending.
func (s *Scheduler) CreateReservation(ctx context.Context, req BookingRequest) (res model.Reservation, err error) {
	const op = "create"
	defer func() { s.observe(op, err) }()

	w := model.NewWindow(req.Start, req.End)
	purpose := strings.TrimSpace(req.Purpose)
	var v validationError
	if req.RoomID == 0 {
		v.add("room_id", "room_id is required")
	}
	if req.UserID == 0 {
		v.add("user_id", "user_id is required")
	}
	checkPurpose(&v, purpose)
	s.checkWindow(&v, w, true)
	if err := v.err(op); err != nil {
		return model.Reservation{}, err
	}
	if _, err := s.bookableRoom(ctx, op, req.RoomID); err != nil {
		return model.Reservation{}, err
	}

	err = s.store.InRoomTx(ctx, []uint64{req.RoomID}, func(ctx context.Context, tx Tx) error {
		hits, err := approvedOverlaps(ctx, tx, req.RoomID, w, 0)
		if err != nil {
			return err
		}
		if len(hits) > 0 {
			return conflictError(op, hits)
		}
		now := s.clock()
		res = model.Reservation{
			RoomID:    req.RoomID,
			UserID:    req.UserID,
			Start:     w.Start,
			End:       w.End,
			Purpose:   purpose,
			Status:    model.StatusPending,
			CreatedAt: now,
			UpdatedAt: now,
		}
		return tx.Insert(ctx, &res)
	})
	if err != nil {
		return model.Reservation{}, wrap(op, err)
	}
	s.notifier.Notify(newEvent(model.EventCreated, res, req.UserID, res.CreatedAt))
	return res, nil
}

// Approve moves a Pending reservation to Approved and, in the same
// transaction, rejects every other Pending reservation on the room whose
// window overlaps it.
func (s *Scheduler) Approve(ctx context.Context, id uint64, actor model.Actor) (out Approval, err error) {
	const op = "approve"
	defer func() { s.observe(op, err) }()

	if !actor.IsAdmin() {
		return Approval{}, forbidden(op)
	}
	var events []model.Event
	err = s.withReservation(ctx, op, id, lockOwnRoom, func(ctx context.Context, tx Tx, r model.Reservation) error {
		out, events = Approval{}, nil
		if r.Status != model.StatusPending {
			return invalidState(op, r, model.StatusApproved)
		}
		w := r.Window()
		clash, err := approvedOverlaps(ctx, tx, r.RoomID, w, r.ID)
		if err != nil {
			return err
		}
		if len(clash) > 0 {
			return conflictError(op, clash)
		}
		pending, err := tx.Overlapping(ctx, r.RoomID, w, []model.Status{model.StatusPending})
		if err != nil {
			return err
		}
		losers := without(pending, r.ID)

		now := s.clock()
		n, err := tx.SetStatus(ctx, []uint64{r.ID}, model.StatusPending, model.StatusApproved, now)
		if err != nil {
			return err
		}
		if n != 1 {
			return newError(KindBusy, op, "reservation changed concurrently")
		}
		if len(losers) > 0 {
			n, err = tx.SetStatus(ctx, ids(losers), model.StatusPending, model.StatusRejected, now)
			if err != nil {
				return err
			}
			if n != int64(len(losers)) {
				return newError(KindBusy, op, fmt.Sprintf("rejected %d of %d overlapping requests", n, len(losers)))
			}
		}

		r.Status, r.UpdatedAt = model.StatusApproved, now
		out.Approved = r
		out.AutoRejected = make([]model.Reservation, 0, len(losers))
		events = append(events, newEvent(model.EventApproved, r, actor.UserID, now))
		for _, l := range losers {
			l.Status, l.UpdatedAt = model.StatusRejected, now
			out.AutoRejected = append(out.AutoRejected, l)
			ev := newEvent(model.EventAutoRejected, l, actor.UserID, now)
			ev.CausedBy = r.ID
			events = append(events, ev)
		}
		return nil
	})
	if err != nil {
		return Approval{}, err
	}
	if n := len(out.AutoRejected); n > 0 {
		s.observer.ObserveAutoRejected(n)
		s.log.InfoContext(ctx, "approval rejected overlapping requests", "reservation_id", id, "room_id", out.Approved.RoomID, "auto_rejected", ids(out.AutoRejected))
	}
	s.notifier.Notify(events...)
	return out, nil
}

// Reject moves a Pending reservation to Rejected.  No other reservation is
// touched.
func (s *Scheduler) Reject(ctx context.Context, id uint64, actor model.Actor) (res model.Reservation, err error) {
	const op = "reject"
	defer func() { s.observe(op, err) }()

	if !actor.IsAdmin() {
		return model.Reservation{}, forbidden(op)
	}
	return s.transition(ctx, op, id, actor, model.StatusRejected, model.EventRejected)
}

// Cancel moves a Pending or Approved reservation to Cancelled.  Only the
// owner or an admin may cancel.
func (s *Scheduler) Cancel(ctx context.Context, id uint64, actor model.Actor) (res model.Reservation, err error) {
	const op = "cancel"
	defer func() { s.observe(op, err) }()

	return s.transition(ctx, op, id, actor, model.StatusCancelled, model.EventCancelled)
}

func (s *Scheduler) transition(ctx context.Context, op string, id uint64, actor model.Actor, to model.Status, typ model.EventType) (model.Reservation, error) {
	var res model.Reservation
	err := s.withReservation(ctx, op, id, lockOwnRoom, func(ctx context.Context, tx Tx, r model.Reservation) error {
		if !actor.CanAccess(r.UserID) {
			return forbidden(op)
		}
		if !CanTransition(r.Status, to) {
			return invalidState(op, r, to)
		}
		now := s.clock()
		n, err := tx.SetStatus(ctx, []uint64{r.ID}, r.Status, to, now)
		if err != nil {
			return err
		}
		if n != 1 {
			return newError(KindBusy, op, "reservation changed concurrently")
		}
		r.Status, r.UpdatedAt = to, now
		res = r
		return nil
	})
	if err != nil {
		return model.Reservation{}, err
	}
	s.notifier.Notify(newEvent(typ, res, actor.UserID, res.UpdatedAt))
	return res, nil
}

// UpdateReservation applies an administrative edit.  Status is never
// changed; when room or window change the new slot is validated against
// Approved reservations before anything is written.
func (s *Scheduler) UpdateReservation(ctx context.Context, id uint64, patch model.ReservationPatch, actor model.Actor) (res model.Reservation, err error) {
	const op = "update"
	defer func() { s.observe(op, err) }()

	if !actor.IsAdmin() {
		return model.Reservation{}, forbidden(op)
	}
	var v validationError
	if patch.Empty() {
		v.add("patch", "nothing to update")
	}
	if patch.RoomID != nil && *patch.RoomID == 0 {
		v.add("room_id", "room_id must be a resolved room id")
	}
	if patch.Purpose != nil {
		checkPurpose(&v, strings.TrimSpace(*patch.Purpose))
	}
	if err := v.err(op); err != nil {
		return model.Reservation{}, err
	}

	rooms := lockOwnRoom
	if patch.RoomID != nil {
		target := *patch.RoomID
		rooms = func(r model.Reservation) []uint64 { return []uint64{r.RoomID, target} }
	}

	err = s.withReservation(ctx, op, id, rooms, func(ctx context.Context, tx Tx, r model.Reservation) error {
		if !Editable(r.Status) {
			return &Error{Kind: KindInvalidState, Op: op, Msg: fmt.Sprintf("reservation %d is %s and cannot be edited", r.ID, r.Status)}
		}
		next := r
		if patch.RoomID != nil {
			next.RoomID = *patch.RoomID
		}
		start, end := r.Start, r.End
		if patch.Start != nil {
			start = *patch.Start
		}
		if patch.End != nil {
			end = *patch.End
		}
		w := model.NewWindow(start, end)
		next.Start, next.End = w.Start, w.End
		if patch.Purpose != nil {
			next.Purpose = strings.TrimSpace(*patch.Purpose)
		}

		moved := next.RoomID != r.RoomID
		retimed := !w.Equal(r.Window())
		// Only a move needs a bookable destination; staying in a room that
		// went under maintenance is allowed.
		if moved {
			if _, err := s.bookableRoom(ctx, op, next.RoomID); err != nil {
				return err
			}
		}
		var v validationError
		s.checkWindow(&v, w, retimed)
		if err := v.err(op); err != nil {
			return err
		}
		if moved || retimed {
			clash, err := approvedOverlaps(ctx, tx, next.RoomID, w, r.ID)
			if err != nil {
				return err
			}
			if len(clash) > 0 {
				return conflictError(op, clash)
			}
		}
		next.UpdatedAt = s.clock()
		n, err := tx.Update(ctx, next, r.Status)
		if err != nil {
			return err
		}
		if n != 1 {
			return newError(KindBusy, op, "reservation changed concurrently")
		}
		res = next
		return nil
	})
	if err != nil {
		return model.Reservation{}, err
	}
	s.notifier.Notify(newEvent(model.EventUpdated, res, actor.UserID, res.UpdatedAt))
	return res, nil
}

func lockOwnRoom(r model.Reservation) []uint64 { return []uint64{r.RoomID} }
