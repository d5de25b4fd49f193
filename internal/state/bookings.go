package state

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"time"

	"github.com/njoerd114/frontdesk/internal/model"
)

var offlineBookings = &collection[model.PendingBooking]{
	name:    "offline_bookings",
	key:     func(b *model.PendingBooking) string { return b.ID },
	indexes: []string{"hotel_id", "status", "created_at"},
	values: func(b *model.PendingBooking) []any {
		return []any{b.HotelID, string(b.Status), formatTime(b.CreatedAt)}
	},
}

// SaveOfflineBooking stores a new booking and records its guest in the
// directory, both in one transaction. A booking id that already exists
// yields ErrDuplicateKey.
func (s *Store) SaveOfflineBooking(ctx context.Context, b *model.PendingBooking) error {
	return s.update(ctx, "save offline booking", func(tx *sql.Tx) error {
		if err := offlineBookings.add(ctx, tx, b); err != nil {
			return err
		}
		return upsertGuest(ctx, tx, b.GuestEntry())
	})
}

// PutOfflineBooking inserts or replaces b. The sync manager uses it to
// persist status transitions.
func (s *Store) PutOfflineBooking(ctx context.Context, b *model.PendingBooking) error {
	return s.update(ctx, "put offline booking", func(tx *sql.Tx) error {
		return offlineBookings.put(ctx, tx, b)
	})
}

// GetOfflineBooking returns the booking with the given id, or (nil, nil) if
// no such booking exists.
func (s *Store) GetOfflineBooking(ctx context.Context, id string) (*model.PendingBooking, error) {
	var b *model.PendingBooking
	err := s.update(ctx, "get offline booking", func(tx *sql.Tx) error {
		var err error
		b, err = offlineBookings.get(ctx, tx, id)
		return err
	})
	return b, err
}

// ListOfflineBookings returns the bookings for hotelID, newest first. A zero
// hotelID returns every hotel's bookings.
func (s *Store) ListOfflineBookings(ctx context.Context, hotelID int64) ([]*model.PendingBooking, error) {
	var out []*model.PendingBooking
	err := s.update(ctx, "list offline bookings", func(tx *sql.Tx) error {
		var err error
		if hotelID == 0 {
			out, err = offlineBookings.all(ctx, tx)
		} else {
			out, err = offlineBookings.where(ctx, tx, "hotel_id", hotelID)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(out, func(a, b *model.PendingBooking) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out, nil
}

// ListBookingsByStatus returns the bookings in status, in the order they were
// first stored.
func (s *Store) ListBookingsByStatus(ctx context.Context, status model.SyncStatus) ([]*model.PendingBooking, error) {
	var out []*model.PendingBooking
	err := s.update(ctx, "list bookings by status", func(tx *sql.Tx) error {
		var err error
		out, err = offlineBookings.where(ctx, tx, "status", string(status))
		return err
	})
	return out, err
}

// DeleteOfflineBooking removes the booking with the given id. Deleting an
// unknown id is not an error.
func (s *Store) DeleteOfflineBooking(ctx context.Context, id string) error {
	return s.update(ctx, "delete offline booking", func(tx *sql.Tx) error {
		return offlineBookings.delete(ctx, tx, id)
	})
}

// PurgeSyncedBookings deletes SYNCED bookings created before cutoff and
// returns how many were removed.
func (s *Store) PurgeSyncedBookings(ctx context.Context, cutoff time.Time) (int, error) {
	var n int
	err := s.update(ctx, "purge synced bookings", func(tx *sql.Tx) error {
		n = 0
		synced, err := offlineBookings.where(ctx, tx, "status", string(model.StatusSynced))
		if err != nil {
			return err
		}
		for _, b := range synced {
			if !b.CreatedAt.Before(cutoff) {
				continue
			}
			if err := offlineBookings.delete(ctx, tx, b.ID); err != nil {
				return fmt.Errorf("deleting booking %s: %w", b.ID, err)
			}
			n++
		}
		return nil
	})
	return n, err
}
