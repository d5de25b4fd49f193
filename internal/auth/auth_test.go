package auth

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/njoerd114/frontdesk/internal/api"
	"github.com/njoerd114/frontdesk/internal/connectivity"
	"github.com/njoerd114/frontdesk/internal/model"
	"github.com/njoerd114/frontdesk/internal/state"
)

var testLogger = slog.Default()

type mockBackend struct {
	res   *api.LoginResult
	err   error
	calls int
}

func (m *mockBackend) Authenticate(context.Context, string, string) (*api.LoginResult, error) {
	m.calls++
	return m.res, m.err
}

func signedToken(t *testing.T, c tokenClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte("test-key"))
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}
	return tok
}

func newTestService(t *testing.T, backend *mockBackend, online bool) (*Service, *state.Store) {
	t.Helper()
	store, err := state.Open(context.Background(), filepath.Join(t.TempDir(), "offline.db"), testLogger)
	if err != nil {
		t.Fatalf("state.Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return New(backend, store, connectivity.NewStatic(online), 0, testLogger), store
}

func loginResult(token string) *api.LoginResult {
	return &api.LoginResult{
		ID: 12, Email: "desk@example.com", FirstName: "Sara", LastName: "Tesfaye",
		Roles: []string{model.RoleFrontDesk}, HotelName: "Blue Nile", Token: token,
	}
}

func TestLogin_OnlineCachesSession(t *testing.T) {
	exp := time.Now().Add(2 * time.Hour).Truncate(time.Second)
	token := signedToken(t, tokenClaims{
		TenantID:         "tenant-a",
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(exp)},
	})
	svc, store := newTestService(t, &mockBackend{res: loginResult(token)}, true)

	sess, err := svc.Login(context.Background(), " desk@example.com ", "pw")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if !sess.ExpiresAt.Equal(exp) {
		t.Errorf("ExpiresAt = %v, want token expiry %v", sess.ExpiresAt, exp)
	}
	if sess.TenantID != "tenant-a" || sess.Role != model.RoleFrontDesk || sess.Username != "Sara Tesfaye" {
		t.Errorf("session = %+v", sess)
	}

	cur, err := svc.Current(context.Background())
	if err != nil || cur == nil || cur.Email != "desk@example.com" {
		t.Fatalf("Current = %+v, %v", cur, err)
	}
	if !state.ValidatePassword("pw", "desk@example.com", cur.PasswordHash) {
		t.Error("stored hash does not match the password")
	}
	if _, err := store.StaffSessionForOfflineAuth(context.Background(), "desk@example.com"); err != nil {
		t.Errorf("StaffSessionForOfflineAuth: %v", err)
	}
}

func TestLogin_FallbackExpiryWithoutClaims(t *testing.T) {
	svc, _ := newTestService(t, &mockBackend{res: loginResult("opaque-token")}, true)
	now := time.Date(2025, 9, 1, 8, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	sess, err := svc.Login(context.Background(), "desk@example.com", "pw")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if want := now.Add(DefaultSessionTTL); !sess.ExpiresAt.Equal(want) {
		t.Errorf("ExpiresAt = %v, want %v", sess.ExpiresAt, want)
	}
}

func TestLogin_RejectedByBackend(t *testing.T) {
	backend := &mockBackend{err: &api.StatusError{Code: 401, Body: "Invalid credentials"}}
	svc, _ := newTestService(t, backend, true)
	_, err := svc.Login(context.Background(), "desk@example.com", "wrong")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("err = %v, want ErrInvalidCredentials", err)
	}
}

func TestLogin_OfflineAfterLogout(t *testing.T) {
	ctx := context.Background()
	backend := &mockBackend{res: loginResult("opaque-token")}
	svc, _ := newTestService(t, backend, true)
	if _, err := svc.Login(ctx, "desk@example.com", "pw"); err != nil {
		t.Fatalf("online Login: %v", err)
	}
	if err := svc.Logout(ctx); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if cur, _ := svc.Current(ctx); cur != nil {
		t.Fatalf("still signed in after Logout: %+v", cur)
	}

	// Network drops: the backend call fails with a transport error.
	backend.err = errors.New("dial tcp: connection refused")
	sess, err := svc.Login(ctx, "desk@example.com", "pw")
	if err != nil {
		t.Fatalf("Login with backend down: %v", err)
	}
	if !sess.IsActive {
		t.Error("offline session not reactivated")
	}
	if cur, _ := svc.Current(ctx); cur == nil || cur.ID != sess.ID {
		t.Errorf("Current = %+v, want %s", cur, sess.ID)
	}
}

func TestOfflineLogin_Errors(t *testing.T) {
	ctx := context.Background()
	backend := &mockBackend{res: loginResult("opaque-token")}
	svc, _ := newTestService(t, backend, true)
	if _, err := svc.Login(ctx, "desk@example.com", "pw"); err != nil {
		t.Fatalf("Login: %v", err)
	}

	svc.online = connectivity.NewStatic(false)
	if _, err := svc.Login(ctx, "desk@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password err = %v, want ErrInvalidCredentials", err)
	}
	if _, err := svc.Login(ctx, "nobody@example.com", "pw"); !errors.Is(err, ErrNoCachedSession) {
		t.Errorf("unknown user err = %v, want ErrNoCachedSession", err)
	}
	if backend.calls != 1 {
		t.Errorf("backend called %d times, want 1 (offline logins stay local)", backend.calls)
	}
}

func TestPrimaryRole(t *testing.T) {
	tests := []struct {
		roles []string
		want  string
	}{
		{[]string{"GUEST", model.RoleFrontDesk, model.RoleHotelAdmin}, model.RoleHotelAdmin},
		{[]string{"GUEST", model.RoleFrontDesk}, model.RoleFrontDesk},
		{[]string{"HOUSEKEEPING"}, "HOUSEKEEPING"},
		{nil, ""},
	}
	for _, tt := range tests {
		if got := primaryRole(tt.roles); got != tt.want {
			t.Errorf("primaryRole(%v) = %q, want %q", tt.roles, got, tt.want)
		}
	}
}
