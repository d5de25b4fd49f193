package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/njoerd114/frontdesk/internal/api"
	"github.com/njoerd114/frontdesk/internal/model"
)

// --- Mock backend ------------------------------------------------------------

type mockBackend struct {
	mu      sync.Mutex
	fail    map[string]error // booking ID → error
	failAll error
	created []string // booking IDs in call order
	creds   []api.Credentials
	ctxErrs []error

	entered chan struct{} // receives once per create call when non-nil
	release chan struct{} // blocks each create call until closed when non-nil

	rooms      []model.CachedRoom
	bookings   []model.ConfirmedBooking
	listErr    error
	roomCalls  int
	listCalls  int
	createHook func(b *model.PendingBooking)
}

func newMockBackend() *mockBackend {
	return &mockBackend{fail: make(map[string]error)}
}

func (m *mockBackend) CreateWalkInBooking(ctx context.Context, creds api.Credentials, b *model.PendingBooking) (string, error) {
	m.mu.Lock()
	m.created = append(m.created, b.ID)
	m.creds = append(m.creds, creds)
	entered, release, hook := m.entered, m.release, m.createHook
	m.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if release != nil {
		<-release
	}
	if hook != nil {
		hook(b)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.ctxErrs = append(m.ctxErrs, ctx.Err())
	if m.failAll != nil {
		return "", m.failAll
	}
	if err := m.fail[b.ID]; err != nil {
		return "", err
	}
	return "srv-" + b.ID, nil
}

func (m *mockBackend) ListAllRooms(_ context.Context, _ api.Credentials, hotelID int64) ([]model.CachedRoom, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.roomCalls++
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.rooms, nil
}

func (m *mockBackend) ListBookings(_ context.Context, _ api.Credentials, hotelID int64) ([]model.ConfirmedBooking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls++
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.bookings, nil
}

func (m *mockBackend) setFail(id string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail[id] = err
}

func (m *mockBackend) calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.created...)
}

// --- Mock store --------------------------------------------------------------

type mockStore struct {
	mu        sync.Mutex
	bookings  []*model.PendingBooking // insertion order
	guests    map[string]*model.GuestDirectoryEntry
	appData   map[string][]byte
	session   *model.StaffSession
	rooms     map[int64][]model.CachedRoom
	confirmed map[int64][]model.ConfirmedBooking

	putErr        error
	listErr       error
	cleanups      int
	sessionPurges int
	expiredPurgeN int
	purgedCutoffs []time.Time
}

func newMockStore() *mockStore {
	return &mockStore{
		guests:    make(map[string]*model.GuestDirectoryEntry),
		appData:   make(map[string][]byte),
		rooms:     make(map[int64][]model.CachedRoom),
		confirmed: make(map[int64][]model.ConfirmedBooking),
	}
}

// seed stores copies of books and their guests.
func (m *mockStore) seed(books ...*model.PendingBooking) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range books {
		cp := *b
		m.bookings = append(m.bookings, &cp)
		g := b.GuestEntry()
		m.guests[g.Email] = &g
	}
}

func (m *mockStore) booking(id string) *model.PendingBooking {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.bookings {
		if b.ID == id {
			cp := *b
			return &cp
		}
	}
	return nil
}

func (m *mockStore) ListBookingsByStatus(_ context.Context, status model.SyncStatus) ([]*model.PendingBooking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []*model.PendingBooking
	for _, b := range m.bookings {
		if b.Status == status {
			cp := *b
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockStore) ListOfflineBookings(_ context.Context, hotelID int64) ([]*model.PendingBooking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []*model.PendingBooking
	for _, b := range m.bookings {
		if hotelID == 0 || b.HotelID == hotelID {
			cp := *b
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockStore) PutOfflineBooking(_ context.Context, b *model.PendingBooking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putErr != nil {
		return m.putErr
	}
	cp := *b
	for i, existing := range m.bookings {
		if existing.ID == b.ID {
			m.bookings[i] = &cp
			return nil
		}
	}
	m.bookings = append(m.bookings, &cp)
	return nil
}

func (m *mockStore) PurgeSyncedBookings(_ context.Context, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.purgedCutoffs = append(m.purgedCutoffs, cutoff)
	kept := m.bookings[:0]
	n := 0
	for _, b := range m.bookings {
		if b.Status == model.StatusSynced && b.CreatedAt.Before(cutoff) {
			n++
			continue
		}
		kept = append(kept, b)
	}
	m.bookings = kept
	return n, nil
}

func (m *mockStore) Guests(context.Context) ([]*model.GuestDirectoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.GuestDirectoryEntry
	for _, g := range m.guests {
		cp := *g
		out = append(out, &cp)
	}
	return out, nil
}

func (m *mockStore) CleanupOrphanedGuests(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleanups++
	referenced := make(map[string]bool, len(m.bookings))
	for _, b := range m.bookings {
		referenced[b.GuestEmail] = true
	}
	n := 0
	for email := range m.guests {
		if !referenced[email] {
			delete(m.guests, email)
			n++
		}
	}
	return n, nil
}

func (m *mockStore) SetAppData(_ context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appData[key] = raw
	return nil
}

func (m *mockStore) GetAppData(_ context.Context, key string, _ time.Duration, dest any) (bool, error) {
	m.mu.Lock()
	raw, ok := m.appData[key]
	m.mu.Unlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, fmt.Errorf("decoding %q: %w", key, err)
	}
	return true, nil
}

func (m *mockStore) ActiveStaffSession(context.Context) (*model.StaffSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return nil, nil
	}
	cp := *m.session
	return &cp, nil
}

func (m *mockStore) PurgeExpiredSessions(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessionPurges++
	return m.expiredPurgeN, nil
}

func (m *mockStore) SaveRooms(_ context.Context, hotelID int64, rooms []model.CachedRoom) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rooms[hotelID] = rooms
	return nil
}

func (m *mockStore) ReplaceCachedBookings(_ context.Context, hotelID int64, bookings []model.ConfirmedBooking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.confirmed[hotelID] = bookings
	return nil
}
