package memstore

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/iliyamo/room-reservation/internal/model"
	"github.com/iliyamo/room-reservation/internal/scheduler"
)

var base = time.Date(2030, 3, 4, 9, 0, 0, 0, time.UTC)

func at(h int) time.Time { return base.Add(time.Duration(h) * time.Hour) }

func TestInRoomTxDiscardsStagedWritesOnError(t *testing.T) {
	s := NewStore()
	boom := errors.New("boom")
	err := s.InRoomTx(context.Background(), []uint64{1}, func(ctx context.Context, tx scheduler.Tx) error {
		r := model.Reservation{RoomID: 1, UserID: 7, Start: at(0), End: at(1), Purpose: "x", Status: model.StatusPending}
		if err := tx.Insert(ctx, &r); err != nil {
			return err
		}
		if _, err := tx.Get(ctx, r.ID); err != nil {
			t.Fatalf("staged row not visible inside tx: %v", err)
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if n := len(s.All()); n != 0 {
		t.Fatalf("store holds %d rows after failed tx", n)
	}
}

func TestSetStatusIsCompareAndSet(t *testing.T) {
	s := NewStore()
	a := s.Put(model.Reservation{RoomID: 1, UserID: 1, Start: at(0), End: at(1), Status: model.StatusPending})
	b := s.Put(model.Reservation{RoomID: 1, UserID: 2, Start: at(0), End: at(1), Status: model.StatusCancelled})

	var n int64
	err := s.InRoomTx(context.Background(), []uint64{1}, func(ctx context.Context, tx scheduler.Tx) error {
		var err error
		n, err = tx.SetStatus(ctx, []uint64{a.ID, b.ID, 99}, model.StatusPending, model.StatusRejected, at(-1))
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("changed %d rows, want 1", n)
	}
	got, _ := s.Get(context.Background(), b.ID)
	if got.Status != model.StatusCancelled {
		t.Fatalf("cancelled row became %s", got.Status)
	}
	got, _ = s.Get(context.Background(), a.ID)
	if got.Status != model.StatusRejected || !got.UpdatedAt.Equal(at(-1)) {
		t.Fatalf("got %+v", got)
	}
}

func TestOverlappingOrdersAndFilters(t *testing.T) {
	s := NewStore()
	late := s.Put(model.Reservation{RoomID: 1, Start: at(2), End: at(4), Status: model.StatusApproved})
	early := s.Put(model.Reservation{RoomID: 1, Start: at(1), End: at(3), Status: model.StatusApproved})
	s.Put(model.Reservation{RoomID: 1, Start: at(3), End: at(5), Status: model.StatusPending})
	s.Put(model.Reservation{RoomID: 2, Start: at(1), End: at(3), Status: model.StatusApproved})
	s.Put(model.Reservation{RoomID: 1, Start: at(0), End: at(2), Status: model.StatusApproved}) // touches

	var hits []model.Reservation
	_ = s.InRoomTx(context.Background(), []uint64{1}, func(ctx context.Context, tx scheduler.Tx) error {
		var err error
		hits, err = tx.Overlapping(ctx, 1, model.NewWindow(at(2), at(3)), []model.Status{model.StatusApproved})
		return err
	})
	if len(hits) != 2 || hits[0].ID != early.ID || hits[1].ID != late.ID {
		t.Fatalf("hits = %+v", hits)
	}
}

func TestUpdateRequiresExpectedStatus(t *testing.T) {
	s := NewStore()
	r := s.Put(model.Reservation{RoomID: 1, Start: at(0), End: at(1), Purpose: "a", Status: model.StatusApproved})
	next := r
	next.Purpose = "b"

	_ = s.InRoomTx(context.Background(), []uint64{1}, func(ctx context.Context, tx scheduler.Tx) error {
		if n, _ := tx.Update(ctx, next, model.StatusPending); n != 0 {
			t.Errorf("update with stale status changed %d rows", n)
		}
		if n, _ := tx.Update(ctx, next, model.StatusApproved); n != 1 {
			t.Errorf("update changed %d rows, want 1", n)
		}
		return nil
	})
	got, _ := s.Get(context.Background(), r.ID)
	if got.Purpose != "b" {
		t.Fatalf("purpose = %q", got.Purpose)
	}
}

func TestListPaginatesNewestFirst(t *testing.T) {
	s := NewStore()
	for i := 0; i < 5; i++ {
		s.Put(model.Reservation{RoomID: 1, UserID: uint64(i%2 + 1), Status: model.StatusPending, CreatedAt: at(i)})
	}
	items, total, err := s.List(context.Background(), model.ReservationFilter{Page: 2, PageSize: 2})
	if err != nil {
		t.Fatal(err)
	}
	if total != 5 || len(items) != 2 || items[0].ID != 3 || items[1].ID != 2 {
		t.Fatalf("total=%d items=%+v", total, items)
	}
	items, total, _ = s.List(context.Background(), model.ReservationFilter{UserID: 2})
	if total != 2 || len(items) != 2 {
		t.Fatalf("user filter: total=%d", total)
	}
	items, _, _ = s.List(context.Background(), model.ReservationFilter{Page: 9})
	if len(items) != 0 {
		t.Fatalf("page past end returned %d items", len(items))
	}
}

func TestListHugePageIsEmpty(t *testing.T) {
	s := NewStore()
	s.Put(model.Reservation{RoomID: 1, UserID: 1, Status: model.StatusPending, CreatedAt: at(0)})
	for _, page := range []int{math.MaxInt64 / 10, math.MaxInt64} {
		items, total, err := s.List(context.Background(), model.ReservationFilter{Page: page, PageSize: 20})
		if err != nil {
			t.Fatal(err)
		}
		if total != 1 || len(items) != 0 {
			t.Fatalf("page %d: total=%d items=%d", page, total, len(items))
		}
	}
}

func TestBlockedRooms(t *testing.T) {
	s := NewStore()
	s.Put(model.Reservation{RoomID: 1, Start: at(0), End: at(2), Status: model.StatusApproved})
	s.Put(model.Reservation{RoomID: 2, Start: at(0), End: at(2), Status: model.StatusPending})
	s.Put(model.Reservation{RoomID: 3, Start: at(0), End: at(2), Status: model.StatusRejected})

	got, err := s.BlockedRooms(context.Background(), []uint64{1, 2, 3}, model.NewWindow(at(1), at(3)), []model.Status{model.StatusApproved})
	if err != nil {
		t.Fatal(err)
	}
	if !got[1] || got[2] || got[3] {
		t.Fatalf("blocked = %v", got)
	}
}

func TestGetMissing(t *testing.T) {
	_, err := NewStore().Get(context.Background(), 42)
	if !errors.Is(err, scheduler.ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
}

func TestDirectoryListRooms(t *testing.T) {
	d := NewDirectory(
		model.Room{ID: 1, Name: "B101", Sector: "B", Capacity: 30, IsAvailable: true},
		model.Room{ID: 2, Name: "A201", Sector: "A", Capacity: 10, IsAvailable: true},
		model.Room{ID: 3, Name: "A100", Sector: "A", Capacity: 50, IsAvailable: false},
		model.Room{ID: 4, Name: "A050", Sector: "A", Capacity: 80, IsAvailable: true, IsDeleted: true},
	)
	rooms, err := d.ListRooms(context.Background(), model.RoomFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(rooms) != 2 || rooms[0].ID != 2 || rooms[1].ID != 1 {
		t.Fatalf("rooms = %+v", rooms)
	}
	rooms, _ = d.ListRooms(context.Background(), model.RoomFilter{Sector: "a", IncludeUnavailable: true})
	if len(rooms) != 2 || rooms[0].ID != 3 {
		t.Fatalf("sector a = %+v", rooms)
	}
	rooms, _ = d.ListRooms(context.Background(), model.RoomFilter{MinCapacity: 20})
	if len(rooms) != 1 || rooms[0].ID != 1 {
		t.Fatalf("min capacity = %+v", rooms)
	}
	if _, err := d.GetRoom(context.Background(), 4); !errors.Is(err, scheduler.ErrNotFound) {
		t.Fatalf("deleted room: %v", err)
	}
}
