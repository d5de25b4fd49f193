package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/njoerd114/frontdesk/internal/api"
	"github.com/njoerd114/frontdesk/internal/model"
)

const (
	// ExportVersion tags the export document layout.
	ExportVersion = "1.0"

	// systemBookingID marks result errors that concern the pass rather than
	// a single booking.
	systemBookingID = "system"

	lastRunKey = "sync.last_run"
)

// MsgSyncInProgress is the error reported when a pass is requested while
// another one is running.
const MsgSyncInProgress = "sync already in progress"

// BookingError is the failure of one booking within a pass.
type BookingError struct {
	BookingID string `json:"bookingId"`
	Error     string `json:"error"`
}

// Result aggregates one replay or retry pass. Success is false only when the
// pass itself could not run; per-booking failures are counted in
// FailedCount and listed in Errors.
type Result struct {
	Success     bool           `json:"success"`
	SyncedCount int            `json:"syncedCount"`
	FailedCount int            `json:"failedCount"`
	Errors      []BookingError `json:"errors"`
}

func (r *Result) systemError(msg string) {
	r.Success = false
	r.Errors = append(r.Errors, BookingError{BookingID: systemBookingID, Error: msg})
}

// Run is the persisted summary of the last finished pass.
type Run struct {
	At          time.Time `json:"at"`
	Kind        string    `json:"kind"`
	SyncedCount int       `json:"syncedCount"`
	FailedCount int       `json:"failedCount"`
}

// Status is a snapshot of the sync queue.
type Status struct {
	IsSyncing       bool       `json:"isSyncing"`
	PendingCount    int        `json:"pendingCount"`
	SyncedCount     int        `json:"syncedCount"`
	FailedCount     int        `json:"failedCount"`
	TotalCount      int        `json:"totalCount"`
	LastSyncAttempt *time.Time `json:"lastSyncAttempt,omitempty"`
	LastSyncSuccess *time.Time `json:"lastSyncSuccess,omitempty"`
	LastSyncError   string     `json:"lastSyncError,omitempty"`
	LastRun         *Run       `json:"lastRun,omitempty"`
}

// Export is the backup document written by ExportOfflineBookings.
type Export struct {
	Bookings   []*model.PendingBooking      `json:"bookings"`
	Guests     []*model.GuestDirectoryEntry `json:"guests"`
	ExportedAt time.Time                    `json:"exportedAt"`
	Version    string                       `json:"version"`
}

// Manager replays offline bookings to the backend one at a time. Only one
// replay or retry pass runs at once; a second caller gets an immediate
// "sync already in progress" result instead of waiting.
type Manager struct {
	backend BookingCreator
	store   Store
	log     *slog.Logger
	now     func() time.Time

	busy atomic.Bool
}

// NewManager creates a Manager.
func NewManager(backend BookingCreator, store Store, logger *slog.Logger) *Manager {
	return &Manager{backend: backend, store: store, log: logger, now: time.Now}
}

// Syncing reports whether a pass is running.
func (m *Manager) Syncing() bool { return m.busy.Load() }

// SyncAllPendingBookings replays every PENDING_SYNC booking with creds. Each
// booking ends the pass as SYNCED or SYNC_FAILED. After at least one
// success, guests no longer referenced by any booking are removed.
//
// The pass is not cancellable once started: it runs to completion on a
// context detached from ctx's cancellation.
func (m *Manager) SyncAllPendingBookings(ctx context.Context, creds api.Credentials) Result {
	if !m.busy.CompareAndSwap(false, true) {
		return busyResult()
	}
	defer m.busy.Store(false)
	ctx = context.WithoutCancel(ctx)

	res := Result{Success: true, Errors: []BookingError{}}
	pending, err := m.store.ListBookingsByStatus(ctx, model.StatusPendingSync)
	if err != nil {
		res.systemError(fmt.Sprintf("listing pending bookings: %v", err))
		return res
	}
	m.log.Info("syncing pending bookings", "count", len(pending))

	for _, b := range pending {
		m.replay(ctx, creds, b, &res)
	}
	m.afterPass(ctx, "sync", &res)
	return res
}

// RetryFailedBookings resets every SYNC_FAILED booking to PENDING_SYNC with a
// clean attempt history and replays it straight away.
func (m *Manager) RetryFailedBookings(ctx context.Context, creds api.Credentials) Result {
	if !m.busy.CompareAndSwap(false, true) {
		return busyResult()
	}
	defer m.busy.Store(false)
	ctx = context.WithoutCancel(ctx)

	res := Result{Success: true, Errors: []BookingError{}}
	failed, err := m.store.ListBookingsByStatus(ctx, model.StatusSyncFailed)
	if err != nil {
		res.systemError(fmt.Sprintf("listing failed bookings: %v", err))
		return res
	}
	m.log.Info("retrying failed bookings", "count", len(failed))

	for _, b := range failed {
		if err := b.ResetForRetry(); err != nil {
			m.recordFailure(&res, b.ID, err)
			continue
		}
		if err := m.store.PutOfflineBooking(ctx, b); err != nil {
			m.recordFailure(&res, b.ID, fmt.Errorf("resetting booking %s: %w", b.ID, err))
			continue
		}
		m.replay(ctx, creds, b, &res)
	}
	m.afterPass(ctx, "retry", &res)
	return res
}

func busyResult() Result {
	return Result{
		Success: false,
		Errors:  []BookingError{{BookingID: systemBookingID, Error: MsgSyncInProgress}},
	}
}

// replay submits b and persists the outcome.
func (m *Manager) replay(ctx context.Context, creds api.Credentials, b *model.PendingBooking, res *Result) {
	serverID, callErr := m.backend.CreateWalkInBooking(ctx, creds, b)
	now := m.now()

	if callErr != nil {
		if err := b.MarkFailed(callErr.Error(), now); err != nil {
			m.recordFailure(res, b.ID, err)
			return
		}
		if err := m.store.PutOfflineBooking(ctx, b); err != nil {
			m.log.Error("persisting failed booking", "booking_id", b.ID, "error", err)
		}
		m.log.Warn("booking sync failed", "booking_id", b.ID, "attempts", b.SyncAttempts, "error", callErr)
		m.recordFailure(res, b.ID, callErr)
		return
	}

	if err := b.MarkSynced(now); err != nil {
		m.recordFailure(res, b.ID, err)
		return
	}
	if err := m.store.PutOfflineBooking(ctx, b); err != nil {
		// The server has the booking; report the local write failure so the
		// operator sees it, and leave the record for the next pass.
		m.recordFailure(res, b.ID, fmt.Errorf("booking %s synced as %s but not saved: %w", b.ID, serverID, err))
		return
	}
	res.SyncedCount++
	m.log.Info("booking synced", "booking_id", b.ID, "server_id", serverID)
}

func (m *Manager) recordFailure(res *Result, bookingID string, err error) {
	res.FailedCount++
	res.Errors = append(res.Errors, BookingError{BookingID: bookingID, Error: err.Error()})
}

// afterPass runs the guest cleanup after successful replays and persists
// the run summary. Neither can fail the pass.
func (m *Manager) afterPass(ctx context.Context, kind string, res *Result) {
	if res.SyncedCount > 0 {
		if n, err := m.store.CleanupOrphanedGuests(ctx); err != nil {
			m.log.Warn("cleaning up orphaned guests", "error", err)
		} else if n > 0 {
			m.log.Info("removed orphaned guests", "count", n)
		}
	}

	run := Run{At: m.now().UTC(), Kind: kind, SyncedCount: res.SyncedCount, FailedCount: res.FailedCount}
	if err := m.store.SetAppData(ctx, lastRunKey, run); err != nil {
		m.log.Warn("recording sync run", "error", err)
	}
	m.log.Info("sync pass complete", "kind", kind, "synced", res.SyncedCount, "failed", res.FailedCount)
}

// GetSyncStatus reads the queue counts and the most recent attempt, success
// and error from the stored bookings.
func (m *Manager) GetSyncStatus(ctx context.Context) (Status, error) {
	st := Status{IsSyncing: m.busy.Load()}
	bookings, err := m.store.ListOfflineBookings(ctx, 0)
	if err != nil {
		return st, fmt.Errorf("listing bookings: %w", err)
	}

	var lastFailed time.Time
	for _, b := range bookings {
		st.TotalCount++
		switch b.Status {
		case model.StatusPendingSync:
			st.PendingCount++
		case model.StatusSynced:
			st.SyncedCount++
			st.LastSyncSuccess = later(st.LastSyncSuccess, b.LastSyncAttemptAt)
		case model.StatusSyncFailed:
			st.FailedCount++
			if b.LastSyncAttemptAt.After(lastFailed) || st.LastSyncError == "" {
				lastFailed = b.LastSyncAttemptAt
				st.LastSyncError = b.ErrorMessage
			}
		}
		st.LastSyncAttempt = later(st.LastSyncAttempt, b.LastSyncAttemptAt)
	}

	var run Run
	ok, err := m.store.GetAppData(ctx, lastRunKey, 0, &run)
	if err != nil {
		m.log.Warn("reading last sync run", "error", err)
	} else if ok {
		st.LastRun = &run
	}
	return st, nil
}

func later(cur *time.Time, t time.Time) *time.Time {
	if t.IsZero() || (cur != nil && !t.After(*cur)) {
		return cur
	}
	return &t
}

// ClearOldSyncedBookings deletes SYNCED bookings created more than daysOld
// days ago and returns how many were removed.
func (m *Manager) ClearOldSyncedBookings(ctx context.Context, daysOld int) (int, error) {
	if daysOld < 0 {
		return 0, fmt.Errorf("daysOld must not be negative, got %d", daysOld)
	}
	cutoff := m.now().UTC().AddDate(0, 0, -daysOld)
	n, err := m.store.PurgeSyncedBookings(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purging synced bookings: %w", err)
	}
	if n > 0 {
		m.log.Info("purged synced bookings", "count", n, "older_than_days", daysOld)
	}
	return n, nil
}

// ExportOfflineBookings renders every booking and the guest directory as an
// indented JSON document.
func (m *Manager) ExportOfflineBookings(ctx context.Context) ([]byte, error) {
	bookings, err := m.store.ListOfflineBookings(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("listing bookings: %w", err)
	}
	guests, err := m.store.Guests(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing guests: %w", err)
	}
	doc := Export{
		Bookings:   bookings,
		Guests:     guests,
		ExportedAt: m.now().UTC(),
		Version:    ExportVersion,
	}
	if doc.Bookings == nil {
		doc.Bookings = []*model.PendingBooking{}
	}
	if doc.Guests == nil {
		doc.Guests = []*model.GuestDirectoryEntry{}
	}
	return json.MarshalIndent(doc, "", "  ")
}

// CleanupOrphanedGuests removes guest-directory entries no booking refers to.
func (m *Manager) CleanupOrphanedGuests(ctx context.Context) (int, error) {
	n, err := m.store.CleanupOrphanedGuests(ctx)
	if err != nil {
		return 0, fmt.Errorf("cleaning up orphaned guests: %w", err)
	}
	m.log.Info("removed orphaned guests", "count", n)
	return n, nil
}
