package model

// Room represents a bookable room as exposed by the room directory.  The
// scheduler only reads rooms; inventory changes happen elsewhere.
//
// Fields:
//  ID          – primary key identifier.
//  Name        – display name, unique per sector.
//  Sector      – grouping label (wing, building, floor).
//  Capacity    – number of people the room seats; always positive.
//  IsAvailable – false while the room is under maintenance.  Such rooms
//                are excluded from search and new bookings but their
//                existing reservations stay visible.
//  IsDeleted   – soft-delete flag.  Deleted rooms behave like unavailable
//                rooms and are hidden from listings.
type Room struct {
	ID          uint64 `json:"id"`           // rooms.id
	Name        string `json:"name"`         // rooms.name
	Sector      string `json:"sector"`       // rooms.sector
	Capacity    int    `json:"capacity"`     // rooms.capacity
	IsAvailable bool   `json:"is_available"` // rooms.is_available
	IsDeleted   bool   `json:"is_deleted"`   // rooms.is_deleted
}

// Bookable reports whether new reservations may target the room.
func (r Room) Bookable() bool {
	return r.IsAvailable && !r.IsDeleted
}

// RoomFilter narrows a room directory listing.  Zero values mean "no
// constraint" except IncludeUnavailable, which must be set explicitly to
// see rooms under maintenance.  Soft-deleted rooms are never listed.
type RoomFilter struct {
	Sector             string // exact sector match (case-insensitive)
	MinCapacity        int    // minimum capacity, inclusive
	NameContains       string // case-insensitive substring of the name
	IncludeUnavailable bool   // include rooms whose IsAvailable flag is false
}
