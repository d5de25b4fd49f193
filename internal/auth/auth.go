// Package auth signs front-desk staff in and out. Online it authenticates
// against the backend and caches the resulting session together with a
// password fingerprint; offline it checks credentials against that cache.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/njoerd114/frontdesk/internal/api"
	"github.com/njoerd114/frontdesk/internal/connectivity"
	"github.com/njoerd114/frontdesk/internal/model"
	"github.com/njoerd114/frontdesk/internal/state"
)

// DefaultSessionTTL applies when the token carries no usable expiry.
const DefaultSessionTTL = 8 * time.Hour

var (
	// ErrNoCachedSession means offline sign-in found no unexpired session
	// for the email.
	ErrNoCachedSession = errors.New("no cached session for offline sign-in")

	// ErrInvalidCredentials means the password does not match.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Authenticator is the backend sign-in call.
type Authenticator interface {
	Authenticate(ctx context.Context, email, password string) (*api.LoginResult, error)
}

// Store is the session part of the offline store.
type Store interface {
	SaveStaffSession(ctx context.Context, s *model.StaffSession, password string) error
	StaffSessionForOfflineAuth(ctx context.Context, email string) (*model.StaffSession, error)
	TouchStaffSession(ctx context.Context, id string) error
	DeactivateStaffSessions(ctx context.Context) error
	ActiveStaffSession(ctx context.Context) (*model.StaffSession, error)
}

// Service signs staff in and out.
type Service struct {
	backend Authenticator
	store   Store
	online  connectivity.Checker
	logger  *slog.Logger
	ttl     time.Duration
	now     func() time.Time
}

// New creates a Service. A non-positive ttl selects DefaultSessionTTL.
func New(backend Authenticator, store Store, online connectivity.Checker, ttl time.Duration, logger *slog.Logger) *Service {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &Service{backend: backend, store: store, online: online, ttl: ttl, logger: logger, now: time.Now}
}

// Login authenticates online when the backend is reachable and caches the
// session for later offline use. When the backend cannot be reached it falls
// back to OfflineLogin. A credential rejection from the backend is final.
func (s *Service) Login(ctx context.Context, email, password string) (*model.StaffSession, error) {
	email = strings.TrimSpace(email)
	if !s.online.Online(ctx) {
		s.logger.Info("backend offline, using cached session", "email", email)
		return s.OfflineLogin(ctx, email, password)
	}

	res, err := s.backend.Authenticate(ctx, email, password)
	if err != nil {
		var se *api.StatusError
		if errors.As(err, &se) && !se.Temporary() {
			return nil, fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
		}
		s.logger.Warn("online sign-in failed, trying cached session", "email", email, "error", err)
		return s.OfflineLogin(ctx, email, password)
	}

	sess := s.sessionFrom(res)
	if err := s.store.SaveStaffSession(ctx, sess, password); err != nil {
		return nil, fmt.Errorf("caching session: %w", err)
	}
	s.logger.Info("signed in", "email", sess.Email, "role", sess.Role, "hotel_id", sess.HotelID,
		"expires_at", sess.ExpiresAt)
	return sess, nil
}

// OfflineLogin signs in against the cached session for email, reactivating
// it when the password matches.
func (s *Service) OfflineLogin(ctx context.Context, email, password string) (*model.StaffSession, error) {
	sess, err := s.store.StaffSessionForOfflineAuth(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("looking up cached session: %w", err)
	}
	if sess == nil {
		return nil, ErrNoCachedSession
	}
	if !state.ValidatePassword(password, sess.Email, sess.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	if err := s.store.TouchStaffSession(ctx, sess.ID); err != nil {
		return nil, fmt.Errorf("reactivating session: %w", err)
	}
	sess.IsActive = true
	sess.LastActivity = s.now().UTC()
	s.logger.Info("signed in offline", "email", sess.Email, "expires_at", sess.ExpiresAt)
	return sess, nil
}

// Logout deactivates every session. The records stay for offline sign-in.
func (s *Service) Logout(ctx context.Context) error {
	return s.store.DeactivateStaffSessions(ctx)
}

// Current returns the signed-in session, or nil if nobody is signed in.
func (s *Service) Current(ctx context.Context) (*model.StaffSession, error) {
	return s.store.ActiveStaffSession(ctx)
}

// --- token claims ------------------------------------------------------------

type tokenClaims struct {
	Roles    []string `json:"roles,omitempty"`
	Role     string   `json:"role,omitempty"`
	TenantID string   `json:"tenantId,omitempty"`
	jwt.RegisteredClaims
}

// claims reads the token payload without verifying the signature; the
// terminal holds no key and only needs the expiry and role hints.
func claims(token string) (*tokenClaims, bool) {
	var c tokenClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &c); err != nil {
		return nil, false
	}
	return &c, true
}

func (s *Service) sessionFrom(res *api.LoginResult) *model.StaffSession {
	now := s.now().UTC()
	sess := &model.StaffSession{
		UserID:       res.ID,
		Username:     strings.TrimSpace(res.FirstName + " " + res.LastName),
		Email:        res.Email,
		Roles:        res.Roles,
		HotelID:      res.Hotel(),
		HotelName:    res.HotelName,
		TenantID:     res.TenantID,
		Token:        res.Token,
		RefreshToken: res.RefreshToken,
		ExpiresAt:    now.Add(s.ttl),
		LastActivity: now,
		IsActive:     true,
	}
	if sess.Username == "" {
		sess.Username = res.Email
	}

	if c, ok := claims(res.Token); ok {
		if c.ExpiresAt != nil && c.ExpiresAt.After(now) {
			sess.ExpiresAt = c.ExpiresAt.UTC()
		}
		if len(sess.Roles) == 0 {
			sess.Roles = c.Roles
			if len(sess.Roles) == 0 && c.Role != "" {
				sess.Roles = []string{c.Role}
			}
		}
		if sess.TenantID == "" {
			sess.TenantID = c.TenantID
		}
	}
	sess.Role = primaryRole(sess.Roles)
	return sess
}

// primaryRole picks the role that decides which backend listings to use.
func primaryRole(roles []string) string {
	for _, r := range roles {
		if r == model.RoleHotelAdmin {
			return r
		}
	}
	for _, r := range roles {
		if r == model.RoleFrontDesk {
			return r
		}
	}
	if len(roles) > 0 {
		return roles[0]
	}
	return ""
}
