package state

import (
	"context"
	"database/sql"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/njoerd114/frontdesk/internal/model"
)

var staffSessions = &collection[model.StaffSession]{
	name:    "staff_sessions",
	key:     func(s *model.StaffSession) string { return s.ID },
	indexes: []string{"user_id", "email", "hotel_id", "is_active", "expires_at"},
	values: func(s *model.StaffSession) []any {
		return []any{s.UserID, s.Email, s.HotelID, boolIndex(s.IsActive), formatTime(s.ExpiresAt)}
	},
}

// SaveStaffSession stores sess as the single record for its user. In one
// transaction it deletes earlier sessions with the same email or user id,
// deletes every expired session, deactivates other users' sessions when
// sess is active, and inserts sess. A non-empty password is stored as
// HashPassword(password, sess.Email) for later offline sign-in; with an
// empty password the hash already on sess is kept.
func (s *Store) SaveStaffSession(ctx context.Context, sess *model.StaffSession, password string) error {
	if err := model.Validate(sess); err != nil {
		return err
	}
	rec := *sess
	rec.Roles = slices.Clone(sess.Roles)
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if password != "" {
		rec.PasswordHash = HashPassword(password, rec.Email)
	}
	now := s.now()

	err := s.update(ctx, "save staff session", func(tx *sql.Tx) error {
		existing, err := staffSessions.all(ctx, tx)
		if err != nil {
			return err
		}
		for _, e := range existing {
			switch {
			case e.Email == rec.Email || e.UserID == rec.UserID || e.Expired(now):
				if err := staffSessions.delete(ctx, tx, e.ID); err != nil {
					return fmt.Errorf("removing session %s: %w", e.ID, err)
				}
			case rec.IsActive && e.IsActive:
				e.IsActive = false
				if err := staffSessions.put(ctx, tx, e); err != nil {
					return err
				}
			}
		}
		return staffSessions.add(ctx, tx, &rec)
	})
	if err != nil {
		return err
	}
	sess.ID = rec.ID
	sess.PasswordHash = rec.PasswordHash
	return nil
}

// ActiveStaffSession returns the active, unexpired session with the most
// recent activity, or (nil, nil) if nobody is signed in.
func (s *Store) ActiveStaffSession(ctx context.Context) (*model.StaffSession, error) {
	var active []*model.StaffSession
	err := s.update(ctx, "active staff session", func(tx *sql.Tx) error {
		var err error
		active, err = staffSessions.where(ctx, tx, "is_active", 1)
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.latestUnexpired(active), nil
}

// StaffSessionForOfflineAuth returns the most recently active unexpired
// session for email, whether or not it is currently active, or (nil, nil)
// if there is none.
func (s *Store) StaffSessionForOfflineAuth(ctx context.Context, email string) (*model.StaffSession, error) {
	var matches []*model.StaffSession
	err := s.update(ctx, "offline auth lookup", func(tx *sql.Tx) error {
		var err error
		matches, err = staffSessions.where(ctx, tx, "email", email)
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.latestUnexpired(matches), nil
}

func (s *Store) latestUnexpired(sessions []*model.StaffSession) *model.StaffSession {
	now := s.now()
	var best *model.StaffSession
	for _, sess := range sessions {
		if sess.Expired(now) {
			continue
		}
		if best == nil || sess.LastActivity.After(best.LastActivity) {
			best = sess
		}
	}
	return best
}

// TouchStaffSession marks the session id active and bumps its last activity.
func (s *Store) TouchStaffSession(ctx context.Context, id string) error {
	now := s.now().UTC()
	return s.update(ctx, "touch staff session", func(tx *sql.Tx) error {
		sess, err := staffSessions.get(ctx, tx, id)
		if err != nil {
			return err
		}
		if sess == nil {
			return fmt.Errorf("session %s: %w", id, ErrNotFound)
		}
		sess.IsActive = true
		sess.LastActivity = now
		return staffSessions.put(ctx, tx, sess)
	})
}

// DeactivateStaffSessions signs everybody out. Records are kept so their
// owners can still sign in offline.
func (s *Store) DeactivateStaffSessions(ctx context.Context) error {
	now := s.now().UTC()
	return s.update(ctx, "deactivate staff sessions", func(tx *sql.Tx) error {
		active, err := staffSessions.where(ctx, tx, "is_active", 1)
		if err != nil {
			return err
		}
		for _, sess := range active {
			sess.IsActive = false
			sess.LastActivity = now
			if err := staffSessions.put(ctx, tx, sess); err != nil {
				return err
			}
		}
		return nil
	})
}

// PurgeExpiredSessions deletes expired sessions and returns how many were
// removed.
func (s *Store) PurgeExpiredSessions(ctx context.Context) (int, error) {
	now := s.now()
	var n int
	err := s.update(ctx, "purge expired sessions", func(tx *sql.Tx) error {
		n = 0
		all, err := staffSessions.all(ctx, tx)
		if err != nil {
			return err
		}
		for _, sess := range all {
			if !sess.Expired(now) {
				continue
			}
			if err := staffSessions.delete(ctx, tx, sess.ID); err != nil {
				return err
			}
			n++
		}
		return nil
	})
	return n, err
}

// ClearStaffSessions deletes every cached session.
func (s *Store) ClearStaffSessions(ctx context.Context) error {
	return s.update(ctx, "clear staff sessions", func(tx *sql.Tx) error {
		_, err := staffSessions.clear(ctx, tx, "", nil)
		return err
	})
}
