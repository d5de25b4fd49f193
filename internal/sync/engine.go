package sync

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"

	"github.com/njoerd114/frontdesk/internal/api"
	"github.com/njoerd114/frontdesk/internal/connectivity"
)

const (
	otelScope      = "frontdesk/sync"
	spanPass       = "sync.pass"
	metricSynced   = "frontdesk.sync.bookings.synced"
	metricFailed   = "frontdesk.sync.bookings.failed"
	metricPurged   = "frontdesk.sync.bookings.purged"
	metricSessions = "frontdesk.sync.sessions.purged"

	// DefaultInterval applies when EngineOptions.Interval is not positive.
	DefaultInterval = 5 * time.Minute
)

// EngineOptions tunes the daemon loop.
type EngineOptions struct {
	// Interval between regular passes.
	Interval time.Duration
	// WatchInterval is how often connectivity is checked for an
	// offline-to-online transition. Zero disables the watch.
	WatchInterval time.Duration
	// PurgeAfterDays is the age after which SYNCED bookings are deleted.
	// Zero or less keeps them.
	PurgeAfterDays int
	// HotelID is the hotel whose rooms and bookings are preloaded. It is
	// preferred over the signed-in staff member's hotel, which hotel admins
	// do not have.
	HotelID int64
}

// PassStats describes one engine pass.
type PassStats struct {
	Online         bool
	SignedIn       bool
	Synced         int
	Failed         int
	PurgedBookings int
	PurgedSessions int
	Preloaded      bool
}

// Engine runs the sync lifecycle: a pass every interval, plus an immediate
// pass when the backend comes back after being unreachable. Create one with
// [NewEngine] and start it with [Engine.Run].
type Engine struct {
	manager   *Manager
	sessions  SessionStore
	online    connectivity.Checker
	preloader *Preloader
	opts      EngineOptions
	log       *slog.Logger

	// OTel instruments; no-op when telemetry is disabled.
	tracer      trace.Tracer
	cntSynced   metric.Int64Counter
	cntFailed   metric.Int64Counter
	cntPurged   metric.Int64Counter
	cntSessions metric.Int64Counter
}

// NewEngine creates an Engine. preloader may be nil, in which case passes do
// not refresh the offline room and booking snapshot.
func NewEngine(manager *Manager, sessions SessionStore, online connectivity.Checker, preloader *Preloader, opts EngineOptions, logger *slog.Logger) *Engine {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	tracer := otel.Tracer(otelScope)
	meter := otel.Meter(otelScope)

	mustCounter := func(name, desc string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(desc))
		if err != nil {
			logger.Error("creating OTel counter", "name", name, "error", err)
			return noop.Int64Counter{}
		}
		return c
	}

	return &Engine{
		manager:   manager,
		sessions:  sessions,
		online:    online,
		preloader: preloader,
		opts:      opts,
		log:       logger,

		tracer:      tracer,
		cntSynced:   mustCounter(metricSynced, "Number of offline bookings accepted by the backend"),
		cntFailed:   mustCounter(metricFailed, "Number of offline bookings the backend rejected or could not be reached for"),
		cntPurged:   mustCounter(metricPurged, "Number of old synced bookings deleted"),
		cntSessions: mustCounter(metricSessions, "Number of expired staff sessions deleted"),
	}
}

// pass runs local housekeeping and, when online and signed in, replays the
// pending bookings and refreshes the offline snapshot.
func (e *Engine) pass(ctx context.Context) (PassStats, error) {
	ctx, span := e.tracer.Start(ctx, spanPass)
	defer span.End()

	var stats PassStats
	if e.opts.PurgeAfterDays > 0 {
		n, err := e.manager.ClearOldSyncedBookings(ctx, e.opts.PurgeAfterDays)
		if err != nil {
			e.log.Warn("purging synced bookings", "error", err)
		}
		stats.PurgedBookings = n
	}
	n, err := e.sessions.PurgeExpiredSessions(ctx)
	if err != nil {
		e.log.Warn("purging expired sessions", "error", err)
	}
	stats.PurgedSessions = n

	stats.Online = e.online.Online(ctx)
	if stats.Online {
		if err := e.replay(ctx, &stats); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "pass failed")
			e.record(ctx, span, stats)
			return stats, err
		}
	} else {
		e.log.Debug("backend offline, skipping replay")
	}

	e.record(ctx, span, stats)
	return stats, nil
}

func (e *Engine) replay(ctx context.Context, stats *PassStats) error {
	sess, err := e.sessions.ActiveStaffSession(ctx)
	if err != nil {
		return err
	}
	if sess == nil {
		e.log.Debug("nobody signed in, skipping replay")
		return nil
	}
	stats.SignedIn = true
	creds := api.CredentialsFor(sess)

	res := e.manager.SyncAllPendingBookings(ctx, creds)
	stats.Synced = res.SyncedCount
	stats.Failed = res.FailedCount
	if !res.Success {
		e.log.Warn("sync pass did not run", "errors", res.Errors)
	}

	hotelID := e.opts.HotelID
	if hotelID == 0 {
		hotelID = sess.HotelID
	}
	if e.preloader != nil && hotelID != 0 {
		if _, err := e.preloader.Run(ctx, creds, hotelID); err != nil {
			e.log.Warn("refreshing offline snapshot", "hotel_id", hotelID, "error", err)
		} else {
			stats.Preloaded = true
		}
	}
	return nil
}

func (e *Engine) record(ctx context.Context, span trace.Span, stats PassStats) {
	if stats.Synced > 0 {
		e.cntSynced.Add(ctx, int64(stats.Synced))
	}
	if stats.Failed > 0 {
		e.cntFailed.Add(ctx, int64(stats.Failed))
	}
	if stats.PurgedBookings > 0 {
		e.cntPurged.Add(ctx, int64(stats.PurgedBookings))
	}
	if stats.PurgedSessions > 0 {
		e.cntSessions.Add(ctx, int64(stats.PurgedSessions))
	}
	span.SetAttributes(
		attribute.Bool("sync.online", stats.Online),
		attribute.Int("sync.synced", stats.Synced),
		attribute.Int("sync.failed", stats.Failed),
		attribute.Int("sync.purged_bookings", stats.PurgedBookings),
		attribute.Int("sync.purged_sessions", stats.PurgedSessions),
	)
}

// RunOnce performs a single pass and returns.
func (e *Engine) RunOnce(ctx context.Context) (PassStats, error) {
	return e.pass(ctx)
}

// Run starts the loop. It blocks until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.opts.Interval)
	defer ticker.Stop()

	var watch <-chan time.Time
	if e.opts.WatchInterval > 0 {
		wt := time.NewTicker(e.opts.WatchInterval)
		defer wt.Stop()
		watch = wt.C
	}

	// Run an immediate first pass.
	stats, err := e.pass(ctx)
	if err != nil {
		e.log.Error("initial sync pass failed", "error", err)
	}
	wasOnline := stats.Online

	for {
		select {
		case <-ctx.Done():
			e.log.Info("sync engine shutting down")
			return ctx.Err()
		case <-ticker.C:
			stats, err := e.pass(ctx)
			if err != nil {
				e.log.Error("sync pass failed", "error", err)
			}
			wasOnline = stats.Online
		case <-watch:
			online := e.online.Online(ctx)
			if online && !wasOnline {
				e.log.Info("backend reachable again, syncing now")
				stats, err := e.pass(ctx)
				if err != nil {
					e.log.Error("sync pass failed", "error", err)
				}
				online = stats.Online
			}
			wasOnline = online
		}
	}
}
