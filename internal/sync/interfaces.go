// Package sync replays walk-in bookings created while the terminal was
// offline to the booking backend and keeps the local store tidy afterwards.
//
// The package contains three components:
//
//   - [Manager] runs replay and retry passes, reports sync status and
//     exports the local bookings.
//   - [Engine] runs the daemon loop: a pass every interval plus an immediate
//     pass whenever the backend comes back online.
//   - [Preloader] downloads the room inventory and confirmed bookings so
//     availability can be answered offline.
package sync

import (
	"context"
	"time"

	"github.com/njoerd114/frontdesk/internal/api"
	"github.com/njoerd114/frontdesk/internal/model"
)

// BookingCreator submits one walk-in booking to the backend.
// Implemented by [api.Client].
type BookingCreator interface {
	CreateWalkInBooking(ctx context.Context, creds api.Credentials, b *model.PendingBooking) (string, error)
}

// Backend lists what the preloader downloads.
// Implemented by [api.Client].
type Backend interface {
	ListAllRooms(ctx context.Context, creds api.Credentials, hotelID int64) ([]model.CachedRoom, error)
	ListBookings(ctx context.Context, creds api.Credentials, hotelID int64) ([]model.ConfirmedBooking, error)
}

// Store is the booking side of the offline store.
// Implemented by [state.Store].
type Store interface {
	ListBookingsByStatus(ctx context.Context, status model.SyncStatus) ([]*model.PendingBooking, error)
	ListOfflineBookings(ctx context.Context, hotelID int64) ([]*model.PendingBooking, error)
	PutOfflineBooking(ctx context.Context, b *model.PendingBooking) error
	PurgeSyncedBookings(ctx context.Context, cutoff time.Time) (int, error)
	Guests(ctx context.Context) ([]*model.GuestDirectoryEntry, error)
	CleanupOrphanedGuests(ctx context.Context) (int, error)
	SetAppData(ctx context.Context, key string, value any) error
	GetAppData(ctx context.Context, key string, maxAge time.Duration, dest any) (bool, error)
}

// SessionStore is the staff session side of the offline store.
// Implemented by [state.Store].
type SessionStore interface {
	ActiveStaffSession(ctx context.Context) (*model.StaffSession, error)
	PurgeExpiredSessions(ctx context.Context) (int, error)
}

// SnapshotStore receives preloaded data.
// Implemented by [state.Store].
type SnapshotStore interface {
	SaveRooms(ctx context.Context, hotelID int64, rooms []model.CachedRoom) error
	ReplaceCachedBookings(ctx context.Context, hotelID int64, bookings []model.ConfirmedBooking) error
}
