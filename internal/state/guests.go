package state

import (
	"context"
	"database/sql"
	"strings"

	"github.com/njoerd114/frontdesk/internal/model"
)

var guestDirectory = &collection[model.GuestDirectoryEntry]{
	name:    "guest_directory",
	key:     func(g *model.GuestDirectoryEntry) string { return g.Email },
	indexes: []string{"name", "last_stay"},
	values: func(g *model.GuestDirectoryEntry) []any {
		return []any{g.Name, g.LastStay.String()}
	},
}

// upsertGuest writes g, keeping preferences already on file when g has none.
func upsertGuest(ctx context.Context, q queryer, g model.GuestDirectoryEntry) error {
	if g.Email == "" {
		return nil
	}
	prev, err := guestDirectory.get(ctx, q, g.Email)
	if err != nil {
		return err
	}
	if prev != nil && g.Preferences == "" {
		g.Preferences = prev.Preferences
	}
	return guestDirectory.put(ctx, q, &g)
}

// SaveGuest inserts or replaces a guest-directory entry.
func (s *Store) SaveGuest(ctx context.Context, g model.GuestDirectoryEntry) error {
	return s.update(ctx, "save guest", func(tx *sql.Tx) error {
		return upsertGuest(ctx, tx, g)
	})
}

// Guests returns the whole guest directory.
func (s *Store) Guests(ctx context.Context) ([]*model.GuestDirectoryEntry, error) {
	var out []*model.GuestDirectoryEntry
	err := s.update(ctx, "list guests", func(tx *sql.Tx) error {
		var err error
		out, err = guestDirectory.all(ctx, tx)
		return err
	})
	return out, err
}

// SearchGuests returns the guests whose name or email contains query, ignoring
// case, or whose phone contains it verbatim.
func (s *Store) SearchGuests(ctx context.Context, query string) ([]*model.GuestDirectoryEntry, error) {
	all, err := s.Guests(ctx)
	if err != nil {
		return nil, err
	}
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return all, nil
	}
	var out []*model.GuestDirectoryEntry
	for _, g := range all {
		if strings.Contains(strings.ToLower(g.Name), q) ||
			strings.Contains(strings.ToLower(g.Email), q) ||
			(g.Phone != "" && strings.Contains(g.Phone, query)) {
			out = append(out, g)
		}
	}
	return out, nil
}

// CleanupOrphanedGuests deletes guests whose email no longer appears on any
// offline booking, returning how many were removed.
func (s *Store) CleanupOrphanedGuests(ctx context.Context) (int, error) {
	var n int
	err := s.update(ctx, "cleanup orphaned guests", func(tx *sql.Tx) error {
		n = 0
		bookings, err := offlineBookings.all(ctx, tx)
		if err != nil {
			return err
		}
		referenced := make(map[string]struct{}, len(bookings))
		for _, b := range bookings {
			referenced[b.GuestEmail] = struct{}{}
		}

		guests, err := guestDirectory.all(ctx, tx)
		if err != nil {
			return err
		}
		for _, g := range guests {
			if _, ok := referenced[g.Email]; ok {
				continue
			}
			if err := guestDirectory.delete(ctx, tx, g.Email); err != nil {
				return err
			}
			n++
		}
		return nil
	})
	return n, err
}
