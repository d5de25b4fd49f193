package state

import (
	"context"
	"database/sql"

	"github.com/njoerd114/frontdesk/internal/model"
)

// Health describes the on-disk schema.
type Health struct {
	Version     int      `json:"version"`
	Collections []string `json:"collections"`
	Missing     []string `json:"missing,omitempty"`
	Healthy     bool     `json:"healthy"`
}

// Health inspects the schema version and the collections present.
func (s *Store) Health(ctx context.Context) (Health, error) {
	var h Health
	err := s.runOnce(ctx, "health", func(tx *sql.Tx) error {
		var err error
		if h.Version, err = userVersion(ctx, tx); err != nil {
			return err
		}
		if h.Collections, err = existingCollections(ctx, tx); err != nil {
			return err
		}
		h.Missing, err = missingCollections(ctx, tx)
		return err
	})
	h.Healthy = err == nil && h.Version == schemaVersion && len(h.Missing) == 0
	return h, err
}

// Stats counts the records held per collection.
type Stats struct {
	OfflineBookings   int `json:"offlineBookings"`
	PendingSync       int `json:"pendingSync"`
	SyncFailed        int `json:"syncFailed"`
	Synced            int `json:"synced"`
	Guests            int `json:"guests"`
	CachedRooms       int `json:"cachedRooms"`
	ConfirmedBookings int `json:"confirmedBookings"`
	StaffSessions     int `json:"staffSessions"`
}

// Stats returns record counts for every collection.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.update(ctx, "stats", func(tx *sql.Tx) error {
		bookings, err := offlineBookings.all(ctx, tx)
		if err != nil {
			return err
		}
		st.OfflineBookings = len(bookings)
		for _, b := range bookings {
			switch b.Status {
			case model.StatusPendingSync:
				st.PendingSync++
			case model.StatusSyncFailed:
				st.SyncFailed++
			case model.StatusSynced:
				st.Synced++
			}
		}
		if st.Guests, err = guestDirectory.count(ctx, tx); err != nil {
			return err
		}
		if st.CachedRooms, err = cachedRooms.count(ctx, tx); err != nil {
			return err
		}
		if st.ConfirmedBookings, err = cachedBookings.count(ctx, tx); err != nil {
			return err
		}
		st.StaffSessions, err = staffSessions.count(ctx, tx)
		return err
	})
	return st, err
}

// ClearAllData deletes offline bookings, the guest directory and app data.
// Cached rooms, confirmed bookings and staff sessions are kept so the
// terminal stays usable offline.
func (s *Store) ClearAllData(ctx context.Context) error {
	return s.update(ctx, "clear all data", func(tx *sql.Tx) error {
		if _, err := offlineBookings.clear(ctx, tx, "", nil); err != nil {
			return err
		}
		if _, err := guestDirectory.clear(ctx, tx, "", nil); err != nil {
			return err
		}
		_, err := appData.clear(ctx, tx, "", nil)
		return err
	})
}
