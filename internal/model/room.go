package model

import "time"

// RoomStatus is the terminal-local occupation state layered on top of the
// server snapshot.
type RoomStatus string

const (
	RoomAvailable RoomStatus = "available"
	RoomOccupied  RoomStatus = "occupied"
	RoomReserved  RoomStatus = "reserved"
)

// CachedRoom is the last known snapshot of a physical room plus its offline
// overlay. OccupiedBy, OccupiedFrom and OccupiedTo are set and cleared
// together, and only while OfflineStatus is RoomOccupied.
type CachedRoom struct {
	ID            int64      `json:"id"`
	RoomNumber    string     `json:"roomNumber"`
	RoomType      string     `json:"roomType"`
	PricePerNight float64    `json:"pricePerNight"`
	Capacity      int        `json:"capacity"`
	Description   string     `json:"description"`
	HotelID       int64      `json:"hotelId"`
	IsAvailable   bool       `json:"isAvailable"`
	LastUpdated   time.Time  `json:"lastUpdated"`
	OccupiedBy    string     `json:"occupiedBy,omitempty"`
	OccupiedFrom  Date       `json:"occupiedFrom,omitzero"`
	OccupiedTo    Date       `json:"occupiedTo,omitzero"`
	OfflineStatus RoomStatus `json:"offlineStatus,omitempty"`
}

// Occupy marks the room as held by an offline booking for stay. The
// server-reported IsAvailable flag is left alone so the room stays bookable
// for dates outside stay.
func (r *CachedRoom) Occupy(bookingID string, stay Stay, now time.Time) {
	r.OfflineStatus = RoomOccupied
	r.OccupiedBy = bookingID
	r.OccupiedFrom = stay.CheckIn
	r.OccupiedTo = stay.CheckOut
	r.LastUpdated = now.UTC()
}

// Release clears the offline occupation.
func (r *CachedRoom) Release(now time.Time) {
	r.OfflineStatus = RoomAvailable
	r.OccupiedBy = ""
	r.OccupiedFrom = Date{}
	r.OccupiedTo = Date{}
	r.IsAvailable = true
	r.LastUpdated = now.UTC()
}

// OccupiedDuring reports whether the offline overlay claims the room for any
// night of stay.
func (r *CachedRoom) OccupiedDuring(stay Stay) bool {
	if r.OfflineStatus != RoomOccupied || r.OccupiedFrom.IsZero() || r.OccupiedTo.IsZero() {
		return false
	}
	return Stay{CheckIn: r.OccupiedFrom, CheckOut: r.OccupiedTo}.Overlaps(stay)
}
