// Package availability answers "which rooms can I sell for these dates"
// entirely from local data: the cached room snapshot, the cached confirmed
// bookings and the walk-in bookings created on this terminal that the server
// may not know about yet.
package availability

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/njoerd114/frontdesk/internal/model"
)

// Store is the subset of the offline store the resolver reads.
type Store interface {
	CachedRooms(ctx context.Context, hotelID int64) ([]*model.CachedRoom, error)
	CachedBookingsForRange(ctx context.Context, hotelID int64, stay model.Stay) ([]*model.ConfirmedBooking, error)
	ListOfflineBookings(ctx context.Context, hotelID int64) ([]*model.PendingBooking, error)
}

// Query selects rooms for one hotel, stay and party size.
type Query struct {
	HotelID int64
	Stay    model.Stay
	Guests  int
}

// Validate rejects empty or inverted stays and parties smaller than one.
func (q Query) Validate() error {
	if q.HotelID <= 0 {
		return &model.ValidationError{Field: "hotelId", Reason: "must be greater than 0"}
	}
	if err := q.Stay.Validate(); err != nil {
		return err
	}
	if q.Guests < 1 {
		return &model.ValidationError{Field: "guests", Reason: "must be at least 1"}
	}
	return nil
}

// Resolver computes free rooms without touching the network.
type Resolver struct {
	store Store
	log   *slog.Logger
}

// New creates a Resolver reading from store.
func New(store Store, logger *slog.Logger) *Resolver {
	return &Resolver{store: store, log: logger}
}

// Resolve returns the rooms of q.HotelID that can host q.Guests for every
// night of q.Stay, in snapshot order.
func (r *Resolver) Resolve(ctx context.Context, q Query) ([]model.CachedRoom, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	rooms, err := r.store.CachedRooms(ctx, q.HotelID)
	if err != nil {
		return nil, fmt.Errorf("loading cached rooms: %w", err)
	}
	confirmed, err := r.store.CachedBookingsForRange(ctx, q.HotelID, q.Stay)
	if err != nil {
		return nil, fmt.Errorf("loading cached bookings: %w", err)
	}
	pending, err := r.store.ListOfflineBookings(ctx, q.HotelID)
	if err != nil {
		return nil, fmt.Errorf("loading offline bookings: %w", err)
	}

	free := Filter(rooms, Occupied(q.Stay, confirmed, pending), q)
	r.log.Debug("availability resolved",
		"hotel_id", q.HotelID, "stay", q.Stay.String(), "guests", q.Guests,
		"rooms", len(rooms), "free", len(free))
	return free, nil
}

// IsRoomAvailable reports whether roomID is among the rooms Resolve returns
// for q.
func (r *Resolver) IsRoomAvailable(ctx context.Context, q Query, roomID int64) (bool, error) {
	free, err := r.Resolve(ctx, q)
	if err != nil {
		return false, err
	}
	for _, room := range free {
		if room.ID == roomID {
			return true, nil
		}
	}
	return false, nil
}

// Occupied collects the ids of rooms claimed during stay by a non-cancelled
// confirmed booking or by any local booking that names a room.
func Occupied(stay model.Stay, confirmed []*model.ConfirmedBooking, pending []*model.PendingBooking) map[int64]struct{} {
	taken := make(map[int64]struct{})
	for _, b := range confirmed {
		if b.Status == model.BookingCancelled || b.RoomID == 0 {
			continue
		}
		if b.Stay().Overlaps(stay) {
			taken[b.RoomID] = struct{}{}
		}
	}
	for _, b := range pending {
		if b.RoomID == 0 {
			continue
		}
		if b.Stay().Overlaps(stay) {
			taken[b.RoomID] = struct{}{}
		}
	}
	return taken
}

// Filter keeps the rooms that are large enough, not in taken, not held by an
// overlapping offline occupation and reported available by the server.
func Filter(rooms []*model.CachedRoom, taken map[int64]struct{}, q Query) []model.CachedRoom {
	var out []model.CachedRoom
	for _, room := range rooms {
		if room.Capacity < q.Guests || !room.IsAvailable {
			continue
		}
		if _, ok := taken[room.ID]; ok {
			continue
		}
		if room.OccupiedDuring(q.Stay) {
			continue
		}
		out = append(out, *room)
	}
	return out
}
