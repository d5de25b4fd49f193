package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/njoerd114/frontdesk/internal/model"
)

var testLogger = slog.Default()

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func openTestStore(t *testing.T) (*Store, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2025, 9, 1, 8, 0, 0, 0, time.UTC)}
	path := filepath.Join(t.TempDir(), "offline.db")
	s, err := Open(context.Background(), path, testLogger, WithClock(clock.Now))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s, clock
}

func sampleBooking(t *testing.T, hotelID int64, email string, created time.Time) *model.PendingBooking {
	t.Helper()
	b, err := model.NewPendingBooking(model.WalkIn{
		HotelID:        hotelID,
		GuestName:      "Guest " + email,
		GuestEmail:     email,
		RoomType:       "DOUBLE",
		RoomID:         101,
		CheckInDate:    model.MustParseDate("2025-09-01"),
		CheckOutDate:   model.MustParseDate("2025-09-03"),
		NumberOfGuests: 2,
		TotalAmount:    200,
		PricePerNight:  100,
		PaymentMethod:  model.PaymentCash,
	}, 5, created)
	if err != nil {
		t.Fatalf("NewPendingBooking: %v", err)
	}
	return b
}

// --- open / schema -----------------------------------------------------------

func TestOpen_CreatesSchema(t *testing.T) {
	s, _ := openTestStore(t)
	h, err := s.Health(context.Background())
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if !h.Healthy || h.Version != schemaVersion {
		t.Errorf("Health = %+v, want healthy at version %d", h, schemaVersion)
	}
	if len(h.Missing) != 0 {
		t.Errorf("missing collections: %v", h.Missing)
	}
}

func TestOpen_ConcurrentCallersShareOneOpen(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "offline.db"), testLogger)
	t.Cleanup(func() { _ = s.Close() })

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.Open(context.Background())
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
	}
	if err := s.Open(context.Background()); err != nil {
		t.Fatalf("Open after open: %v", err)
	}
}

func TestOpen_Idempotent(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "offline.db")
	s1, err := Open(ctx, path, testLogger)
	if err != nil {
		t.Fatalf("first Open: %v", err)
	}
	b := sampleBooking(t, 1, "a@example.com", time.Now())
	if err := s1.SaveOfflineBooking(ctx, b); err != nil {
		t.Fatalf("SaveOfflineBooking: %v", err)
	}
	if err := s1.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Re-opening the same file must not fail or wipe data.
	s2, err := Open(ctx, path, testLogger)
	if err != nil {
		t.Fatalf("second Open: %v", err)
	}
	defer func() { _ = s2.Close() }()
	got, err := s2.GetOfflineBooking(ctx, b.ID)
	if err != nil || got == nil {
		t.Fatalf("GetOfflineBooking after reopen = %v, %v", got, err)
	}
}

func TestMigrate_FromVersion1(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "offline.db")

	b := sampleBooking(t, 1, "old@example.com", time.Now())
	data, err := json.Marshal(b)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	raw, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	for _, stmt := range []string{
		schemaV1,
		`INSERT INTO cached_rooms (key, data, hotel_id, room_number) VALUES ('101', '{"id":101,"hotelId":1}', 1, '101')`,
		`PRAGMA user_version = 1`,
	} {
		if _, err := raw.Exec(stmt); err != nil {
			t.Fatalf("seeding v1 database: %v", err)
		}
	}
	if _, err := raw.Exec(`INSERT INTO offline_bookings (key, data, hotel_id, status, created_at) VALUES (?, ?, 1, ?, '')`,
		b.ID, string(data), string(b.Status)); err != nil {
		t.Fatalf("seeding booking: %v", err)
	}
	_ = raw.Close()

	s, err := Open(ctx, path, testLogger)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() { _ = s.Close() }()

	h, err := s.Health(ctx)
	if err != nil || h.Version != schemaVersion || !h.Healthy {
		t.Fatalf("Health = %+v, %v", h, err)
	}
	rooms, err := s.CachedRooms(ctx, 0)
	if err != nil {
		t.Fatalf("CachedRooms: %v", err)
	}
	if len(rooms) != 0 {
		t.Errorf("cached rooms survived the version 3 migration: %d", len(rooms))
	}
	pending, err := s.ListBookingsByStatus(ctx, model.StatusPendingSync)
	if err != nil {
		t.Fatalf("ListBookingsByStatus: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != b.ID {
		t.Errorf("pending after migration = %v, want [%s]", pending, b.ID)
	}
}

func TestOpen_RecreatesWhenCollectionMissing(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "offline.db")
	s, err := Open(ctx, path, testLogger)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.SaveOfflineBooking(ctx, sampleBooking(t, 1, "a@example.com", time.Now())); err != nil {
		t.Fatalf("SaveOfflineBooking: %v", err)
	}
	_ = s.Close()

	raw, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	if _, err := raw.Exec(`DROP TABLE staff_sessions`); err != nil {
		t.Fatalf("dropping table: %v", err)
	}
	_ = raw.Close()

	s, err = Open(ctx, path, testLogger)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = s.Close() }()

	h, err := s.Health(ctx)
	if err != nil || !h.Healthy {
		t.Fatalf("Health after self-heal = %+v, %v", h, err)
	}
	sess, err := s.ActiveStaffSession(ctx)
	if err != nil || sess != nil {
		t.Errorf("ActiveStaffSession = %v, %v; want nil, nil", sess, err)
	}
	all, err := s.ListOfflineBookings(ctx, 0)
	if err != nil {
		t.Fatalf("ListOfflineBookings: %v", err)
	}
	if len(all) != 0 {
		t.Errorf("recreated database still holds %d bookings", len(all))
	}
}

func TestOpen_RecreatesWhenOldVersionMissingCollection(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "offline.db")

	raw, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	for _, stmt := range []string{
		schemaV1,
		`PRAGMA user_version = 1`,
		`DROP TABLE cached_rooms`,
	} {
		if _, err := raw.Exec(stmt); err != nil {
			t.Fatalf("seeding v1 database: %v", err)
		}
	}
	_ = raw.Close()

	// The version 2 migration alters cached_rooms, so this used to fail
	// before any collection check ran. Every open must now succeed.
	for i := range 2 {
		s, err := Open(ctx, path, testLogger)
		if err != nil {
			t.Fatalf("Open #%d: %v", i+1, err)
		}
		h, err := s.Health(ctx)
		if err != nil || !h.Healthy || h.Version != schemaVersion {
			t.Fatalf("Health after Open #%d = %+v, %v", i+1, h, err)
		}
		if err := s.SaveRooms(ctx, 1, rooms(1, 101)); err != nil {
			t.Fatalf("SaveRooms after Open #%d: %v", i+1, err)
		}
		_ = s.Close()
	}
}

func TestMigrate_MissingTableIsSchemaError(t *testing.T) {
	ctx := context.Background()
	raw, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "offline.db"))
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	defer func() { _ = raw.Close() }()
	for _, stmt := range []string{schemaV1, `PRAGMA user_version = 1`, `DROP TABLE cached_rooms`} {
		if _, err := raw.Exec(stmt); err != nil {
			t.Fatalf("seeding v1 database: %v", err)
		}
	}

	err = migrate(ctx, raw)
	var schemaErr *SchemaError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("migrate err = %v, want *SchemaError", err)
	}
	if schemaErr.Collection != "cached_rooms" {
		t.Errorf("Collection = %q, want cached_rooms", schemaErr.Collection)
	}
	if v, _ := userVersion(ctx, raw); v != 1 {
		t.Errorf("user_version = %d after failed migration, want 1", v)
	}
}

func TestOpen_CancelledCallerDoesNotFailSharedOpen(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "offline.db"), testLogger)
	t.Cleanup(func() { _ = s.Close() })

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Open(cancelled); err != nil {
		t.Fatalf("Open with a cancelled context: %v", err)
	}

	h, err := s.Health(context.Background())
	if err != nil || !h.Healthy {
		t.Fatalf("Health = %+v, %v", h, err)
	}
}

func TestRun_RecreatesOnMissingCollectionAtRuntime(t *testing.T) {
	ctx := context.Background()
	s, _ := openTestStore(t)
	if _, err := s.db.ExecContext(ctx, `DROP TABLE cached_bookings`); err != nil {
		t.Fatalf("dropping table: %v", err)
	}

	got, err := s.CachedBookings(ctx, 1)
	if err != nil {
		t.Fatalf("CachedBookings after drop: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("CachedBookings = %v, want empty", got)
	}
	h, err := s.Health(ctx)
	if err != nil || !h.Healthy {
		t.Errorf("Health = %+v, %v", h, err)
	}
}

func TestReset_DeletesDatabase(t *testing.T) {
	ctx := context.Background()
	s, _ := openTestStore(t)
	b := sampleBooking(t, 1, "a@example.com", time.Now())
	if err := s.SaveOfflineBooking(ctx, b); err != nil {
		t.Fatalf("SaveOfflineBooking: %v", err)
	}
	if err := s.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	got, err := s.GetOfflineBooking(ctx, b.ID)
	if err != nil {
		t.Fatalf("GetOfflineBooking after reset: %v", err)
	}
	if got != nil {
		t.Error("booking survived Reset")
	}
}

// --- offline bookings --------------------------------------------------------

func TestSaveOfflineBooking_RecordsGuest(t *testing.T) {
	ctx := context.Background()
	s, _ := openTestStore(t)
	b := sampleBooking(t, 1, "abebe@example.com", time.Now())

	if err := s.SaveOfflineBooking(ctx, b); err != nil {
		t.Fatalf("SaveOfflineBooking: %v", err)
	}
	guests, err := s.SearchGuests(ctx, "ABEBE")
	if err != nil {
		t.Fatalf("SearchGuests: %v", err)
	}
	if len(guests) != 1 || guests[0].Email != "abebe@example.com" {
		t.Errorf("guests = %v, want abebe@example.com", guests)
	}
	if !guests[0].LastStay.Equal(b.CheckInDate) {
		t.Errorf("LastStay = %s, want %s", guests[0].LastStay, b.CheckInDate)
	}
}

func TestSaveOfflineBooking_DuplicateKey(t *testing.T) {
	ctx := context.Background()
	s, _ := openTestStore(t)
	b := sampleBooking(t, 1, "a@example.com", time.Now())
	if err := s.SaveOfflineBooking(ctx, b); err != nil {
		t.Fatalf("first save: %v", err)
	}
	err := s.SaveOfflineBooking(ctx, b)
	if !errors.Is(err, ErrDuplicateKey) {
		t.Fatalf("second save err = %v, want ErrDuplicateKey", err)
	}
}

func TestGetOfflineBooking_NotFound(t *testing.T) {
	s, _ := openTestStore(t)
	got, err := s.GetOfflineBooking(context.Background(), "offline_missing")
	if err != nil {
		t.Fatalf("GetOfflineBooking: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil, got %+v", got)
	}
}

func TestListOfflineBookings_NewestFirstPerHotel(t *testing.T) {
	ctx := context.Background()
	s, _ := openTestStore(t)
	base := time.Date(2025, 9, 1, 8, 0, 0, 0, time.UTC)

	older := sampleBooking(t, 1, "a@example.com", base)
	newer := sampleBooking(t, 1, "b@example.com", base.Add(time.Hour))
	other := sampleBooking(t, 2, "c@example.com", base.Add(2*time.Hour))
	for _, b := range []*model.PendingBooking{older, newer, other} {
		if err := s.SaveOfflineBooking(ctx, b); err != nil {
			t.Fatalf("SaveOfflineBooking: %v", err)
		}
	}

	got, err := s.ListOfflineBookings(ctx, 1)
	if err != nil {
		t.Fatalf("ListOfflineBookings: %v", err)
	}
	if len(got) != 2 || got[0].ID != newer.ID || got[1].ID != older.ID {
		t.Errorf("hotel 1 bookings out of order: %v", got)
	}

	all, err := s.ListOfflineBookings(ctx, 0)
	if err != nil {
		t.Fatalf("ListOfflineBookings(0): %v", err)
	}
	if len(all) != 3 || all[0].ID != other.ID {
		t.Errorf("all bookings = %v", all)
	}
}

func TestListBookingsByStatus_FollowsTransitions(t *testing.T) {
	ctx := context.Background()
	s, _ := openTestStore(t)
	first := sampleBooking(t, 1, "a@example.com", time.Now())
	second := sampleBooking(t, 1, "b@example.com", time.Now())
	for _, b := range []*model.PendingBooking{first, second} {
		if err := s.SaveOfflineBooking(ctx, b); err != nil {
			t.Fatalf("SaveOfflineBooking: %v", err)
		}
	}

	if err := first.MarkFailed("HTTP 500: boom", time.Now()); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}
	if err := s.PutOfflineBooking(ctx, first); err != nil {
		t.Fatalf("PutOfflineBooking: %v", err)
	}

	pending, err := s.ListBookingsByStatus(ctx, model.StatusPendingSync)
	if err != nil {
		t.Fatalf("ListBookingsByStatus: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != second.ID {
		t.Errorf("pending = %v, want [%s]", pending, second.ID)
	}
	failed, err := s.ListBookingsByStatus(ctx, model.StatusSyncFailed)
	if err != nil {
		t.Fatalf("ListBookingsByStatus: %v", err)
	}
	if len(failed) != 1 || failed[0].SyncAttempts != 1 || failed[0].ErrorMessage != "HTTP 500: boom" {
		t.Errorf("failed = %+v", failed)
	}
}

func TestPurgeSyncedBookings(t *testing.T) {
	ctx := context.Background()
	s, _ := openTestStore(t)
	cutoff := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)

	old := sampleBooking(t, 1, "a@example.com", cutoff.Add(-48*time.Hour))
	recent := sampleBooking(t, 1, "b@example.com", cutoff.Add(time.Hour))
	oldPending := sampleBooking(t, 1, "c@example.com", cutoff.Add(-48*time.Hour))
	for _, b := range []*model.PendingBooking{old, recent} {
		if err := b.MarkSynced(cutoff); err != nil {
			t.Fatalf("MarkSynced: %v", err)
		}
	}
	for _, b := range []*model.PendingBooking{old, recent, oldPending} {
		if err := s.SaveOfflineBooking(ctx, b); err != nil {
			t.Fatalf("SaveOfflineBooking: %v", err)
		}
	}

	n, err := s.PurgeSyncedBookings(ctx, cutoff)
	if err != nil {
		t.Fatalf("PurgeSyncedBookings: %v", err)
	}
	if n != 1 {
		t.Errorf("purged %d, want 1", n)
	}
	if got, _ := s.GetOfflineBooking(ctx, old.ID); got != nil {
		t.Error("old synced booking still present")
	}
	if got, _ := s.GetOfflineBooking(ctx, oldPending.ID); got == nil {
		t.Error("pending booking must never be purged")
	}
}

func TestCleanupOrphanedGuests(t *testing.T) {
	ctx := context.Background()
	s, _ := openTestStore(t)
	b := sampleBooking(t, 1, "kept@example.com", time.Now())
	if err := s.SaveOfflineBooking(ctx, b); err != nil {
		t.Fatalf("SaveOfflineBooking: %v", err)
	}
	if err := s.SaveGuest(ctx, model.GuestDirectoryEntry{Email: "orphan@example.com", Name: "Orphan"}); err != nil {
		t.Fatalf("SaveGuest: %v", err)
	}

	n, err := s.CleanupOrphanedGuests(ctx)
	if err != nil {
		t.Fatalf("CleanupOrphanedGuests: %v", err)
	}
	if n != 1 {
		t.Errorf("removed %d, want 1", n)
	}
	guests, _ := s.Guests(ctx)
	if len(guests) != 1 || guests[0].Email != "kept@example.com" {
		t.Errorf("guests = %v", guests)
	}
}

func TestSaveGuest_KeepsPreferences(t *testing.T) {
	ctx := context.Background()
	s, _ := openTestStore(t)
	if err := s.SaveGuest(ctx, model.GuestDirectoryEntry{Email: "a@example.com", Name: "A", Preferences: "quiet room"}); err != nil {
		t.Fatalf("SaveGuest: %v", err)
	}
	if err := s.SaveOfflineBooking(ctx, sampleBooking(t, 1, "a@example.com", time.Now())); err != nil {
		t.Fatalf("SaveOfflineBooking: %v", err)
	}
	guests, _ := s.SearchGuests(ctx, "a@example.com")
	if len(guests) != 1 || guests[0].Preferences != "quiet room" {
		t.Errorf("guests = %+v, want preferences kept", guests)
	}
}

// --- rooms -------------------------------------------------------------------

func rooms(hotelID int64, ids ...int64) []model.CachedRoom {
	out := make([]model.CachedRoom, 0, len(ids))
	for _, id := range ids {
		out = append(out, model.CachedRoom{
			ID: id, HotelID: hotelID, RoomNumber: strconv.FormatInt(id, 10),
			RoomType: "DOUBLE", Capacity: 2, IsAvailable: true,
		})
	}
	return out
}

func TestSaveRooms_ReplacesOnlyThatHotel(t *testing.T) {
	ctx := context.Background()
	s, _ := openTestStore(t)
	if err := s.SaveRooms(ctx, 1, rooms(1, 101, 102)); err != nil {
		t.Fatalf("SaveRooms hotel 1: %v", err)
	}
	if err := s.SaveRooms(ctx, 2, rooms(2, 201)); err != nil {
		t.Fatalf("SaveRooms hotel 2: %v", err)
	}
	if err := s.SaveRooms(ctx, 1, rooms(1, 103)); err != nil {
		t.Fatalf("SaveRooms hotel 1 again: %v", err)
	}

	h1, _ := s.CachedRooms(ctx, 1)
	if len(h1) != 1 || h1[0].ID != 103 {
		t.Errorf("hotel 1 rooms = %v, want [103]", h1)
	}
	h2, _ := s.CachedRooms(ctx, 2)
	if len(h2) != 1 || h2[0].ID != 201 {
		t.Errorf("hotel 2 rooms = %v, want [201]", h2)
	}
}

func TestSaveRooms_KeepsOfflineOccupation(t *testing.T) {
	ctx := context.Background()
	s, _ := openTestStore(t)
	stay := model.Stay{CheckIn: model.MustParseDate("2025-09-01"), CheckOut: model.MustParseDate("2025-09-03")}
	if err := s.SaveRooms(ctx, 1, rooms(1, 101)); err != nil {
		t.Fatalf("SaveRooms: %v", err)
	}
	if err := s.MarkRoomOccupied(ctx, 101, "offline_x", stay); err != nil {
		t.Fatalf("MarkRoomOccupied: %v", err)
	}
	if err := s.SaveRooms(ctx, 1, rooms(1, 101)); err != nil {
		t.Fatalf("SaveRooms refresh: %v", err)
	}

	got, _ := s.CachedRooms(ctx, 1)
	if len(got) != 1 || !got[0].OccupiedDuring(stay) || got[0].OccupiedBy != "offline_x" {
		t.Fatalf("overlay lost on refresh: %+v", got)
	}

	if err := s.MarkRoomAvailable(ctx, 101); err != nil {
		t.Fatalf("MarkRoomAvailable: %v", err)
	}
	got, _ = s.CachedRooms(ctx, 1)
	if got[0].OccupiedDuring(stay) {
		t.Error("room still occupied after MarkRoomAvailable")
	}
}

func TestMarkRoomOccupied_UnknownRoom(t *testing.T) {
	s, _ := openTestStore(t)
	err := s.MarkRoomOccupied(context.Background(), 999, "offline_x", model.Stay{})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestRoomsCacheAge(t *testing.T) {
	ctx := context.Background()
	s, clock := openTestStore(t)

	if _, ok, err := s.RoomsCacheAge(ctx, 1); err != nil || ok {
		t.Fatalf("RoomsCacheAge on empty cache = ok %v, err %v", ok, err)
	}
	if err := s.SaveRooms(ctx, 1, rooms(1, 101)); err != nil {
		t.Fatalf("SaveRooms: %v", err)
	}
	clock.Advance(31 * time.Minute)

	age, ok, err := s.RoomsCacheAge(ctx, 1)
	if err != nil || !ok {
		t.Fatalf("RoomsCacheAge = ok %v, err %v", ok, err)
	}
	if age != 31*time.Minute {
		t.Errorf("age = %v, want 31m", age)
	}

	if err := s.ClearCachedRooms(ctx, 1); err != nil {
		t.Fatalf("ClearCachedRooms: %v", err)
	}
	if _, ok, _ := s.RoomsCacheAge(ctx, 1); ok {
		t.Error("cache age reported after clear")
	}
}

// --- confirmed bookings ------------------------------------------------------

func TestCachedBookingsForRange(t *testing.T) {
	ctx := context.Background()
	s, _ := openTestStore(t)
	d := model.MustParseDate
	err := s.SaveCachedBookings(ctx, []model.ConfirmedBooking{
		{ID: "b1", HotelID: 1, RoomID: 101, CheckInDate: d("2025-09-01"), CheckOutDate: d("2025-09-10"), Status: model.BookingConfirmed},
		{ID: "b2", HotelID: 1, RoomID: 102, CheckInDate: d("2025-09-10"), CheckOutDate: d("2025-09-12"), Status: model.BookingConfirmed},
		{ID: "b3", HotelID: 2, RoomID: 201, CheckInDate: d("2025-09-05"), CheckOutDate: d("2025-09-06"), Status: model.BookingConfirmed},
	})
	if err != nil {
		t.Fatalf("SaveCachedBookings: %v", err)
	}

	got, err := s.CachedBookingsForRange(ctx, 1, model.Stay{CheckIn: d("2025-09-05"), CheckOut: d("2025-09-10")})
	if err != nil {
		t.Fatalf("CachedBookingsForRange: %v", err)
	}
	if len(got) != 1 || got[0].ID != "b1" {
		t.Errorf("overlapping = %v, want [b1]", got)
	}

	if err := s.ReplaceCachedBookings(ctx, 1, nil); err != nil {
		t.Fatalf("ReplaceCachedBookings: %v", err)
	}
	h1, _ := s.CachedBookings(ctx, 1)
	h2, _ := s.CachedBookings(ctx, 2)
	if len(h1) != 0 || len(h2) != 1 {
		t.Errorf("after replace: hotel 1 = %d, hotel 2 = %d", len(h1), len(h2))
	}
}

// --- app data ----------------------------------------------------------------

func TestAppData_MaxAge(t *testing.T) {
	ctx := context.Background()
	s, clock := openTestStore(t)
	if err := s.SetAppData(ctx, "lastHotel", map[string]int{"id": 7}); err != nil {
		t.Fatalf("SetAppData: %v", err)
	}

	var v map[string]int
	ok, err := s.GetAppData(ctx, "lastHotel", time.Hour, &v)
	if err != nil || !ok || v["id"] != 7 {
		t.Fatalf("GetAppData = %v, %v, %v", v, ok, err)
	}

	clock.Advance(2 * time.Hour)
	if ok, _ := s.GetAppData(ctx, "lastHotel", time.Hour, &v); ok {
		t.Error("expected stale value to be ignored")
	}
	if ok, _ := s.GetAppData(ctx, "lastHotel", 0, &v); !ok {
		t.Error("expected value without age limit")
	}
	if ok, _ := s.GetAppData(ctx, "missing", 0, &v); ok {
		t.Error("expected unknown key to report false")
	}
}

// --- maintenance -------------------------------------------------------------

func TestStatsAndClearAllData(t *testing.T) {
	ctx := context.Background()
	s, _ := openTestStore(t)
	if err := s.SaveOfflineBooking(ctx, sampleBooking(t, 1, "a@example.com", time.Now())); err != nil {
		t.Fatalf("SaveOfflineBooking: %v", err)
	}
	if err := s.SaveRooms(ctx, 1, rooms(1, 101)); err != nil {
		t.Fatalf("SaveRooms: %v", err)
	}

	st, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if st.OfflineBookings != 1 || st.PendingSync != 1 || st.Guests != 1 || st.CachedRooms != 1 {
		t.Errorf("Stats = %+v", st)
	}

	if err := s.ClearAllData(ctx); err != nil {
		t.Fatalf("ClearAllData: %v", err)
	}
	st, _ = s.Stats(ctx)
	if st.OfflineBookings != 0 || st.Guests != 0 {
		t.Errorf("after clear Stats = %+v", st)
	}
	if st.CachedRooms != 1 {
		t.Error("ClearAllData must keep the room snapshot")
	}
}
