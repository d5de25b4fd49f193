package state

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/njoerd114/frontdesk/internal/model"
)

var cachedBookings = &collection[model.ConfirmedBooking]{
	name:    "cached_bookings",
	key:     func(b *model.ConfirmedBooking) string { return b.ID },
	indexes: []string{"hotel_id", "room_id", "check_in", "check_out", "status", "source"},
	values: func(b *model.ConfirmedBooking) []any {
		return []any{
			b.HotelID, b.RoomID, b.CheckInDate.String(), b.CheckOutDate.String(),
			string(b.Status), string(b.Source),
		}
	},
}

// SaveCachedBookings upserts confirmed bookings in one transaction.
func (s *Store) SaveCachedBookings(ctx context.Context, bookings []model.ConfirmedBooking) error {
	return s.update(ctx, "save cached bookings", func(tx *sql.Tx) error {
		return putConfirmed(ctx, tx, bookings)
	})
}

// ReplaceCachedBookings swaps the cached confirmed bookings of hotelID for
// bookings in one transaction.
func (s *Store) ReplaceCachedBookings(ctx context.Context, hotelID int64, bookings []model.ConfirmedBooking) error {
	return s.update(ctx, "replace cached bookings", func(tx *sql.Tx) error {
		if _, err := cachedBookings.clear(ctx, tx, "hotel_id", hotelID); err != nil {
			return err
		}
		return putConfirmed(ctx, tx, bookings)
	})
}

func putConfirmed(ctx context.Context, q queryer, bookings []model.ConfirmedBooking) error {
	for i := range bookings {
		if err := cachedBookings.put(ctx, q, &bookings[i]); err != nil {
			return fmt.Errorf("caching booking %s: %w", bookings[i].ID, err)
		}
	}
	return nil
}

// CachedBookings returns the confirmed bookings cached for hotelID.
func (s *Store) CachedBookings(ctx context.Context, hotelID int64) ([]*model.ConfirmedBooking, error) {
	var out []*model.ConfirmedBooking
	err := s.update(ctx, "list cached bookings", func(tx *sql.Tx) error {
		var err error
		out, err = cachedBookings.where(ctx, tx, "hotel_id", hotelID)
		return err
	})
	return out, err
}

// CachedBookingsForRange returns the confirmed bookings of hotelID whose stay
// overlaps stay. Cancelled bookings are included; callers decide whether
// they count.
func (s *Store) CachedBookingsForRange(ctx context.Context, hotelID int64, stay model.Stay) ([]*model.ConfirmedBooking, error) {
	all, err := s.CachedBookings(ctx, hotelID)
	if err != nil {
		return nil, err
	}
	var out []*model.ConfirmedBooking
	for _, b := range all {
		if b.Stay().Overlaps(stay) {
			out = append(out, b)
		}
	}
	return out, nil
}
