// Package roomcache keeps a per-hotel snapshot of the room inventory fresh
// enough to sell rooms offline. Reads are served from the offline store;
// the backend is only contacted when the snapshot is missing, expired or a
// refresh is forced, and never while the terminal is offline.
package roomcache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/njoerd114/frontdesk/internal/api"
	"github.com/njoerd114/frontdesk/internal/connectivity"
	"github.com/njoerd114/frontdesk/internal/model"
)

const (
	otelScope = "frontdesk/roomcache"
	spanFetch = "roomcache.fetch"

	// DefaultExpiry is how old a snapshot may get before GetRooms refreshes it.
	DefaultExpiry = 30 * time.Minute

	// DefaultRefreshPeriod is the periodic refresh interval.
	DefaultRefreshPeriod = 15 * time.Minute
)

// ErrNoSession is returned by FetchAndCacheRooms when nobody is signed in,
// so there are no credentials to call the backend with.
var ErrNoSession = errors.New("no active staff session")

// Lister fetches a hotel's room inventory from the backend.
// Implemented by [api.Client].
type Lister interface {
	ListAllRooms(ctx context.Context, creds api.Credentials, hotelID int64) ([]model.CachedRoom, error)
}

// Store is the part of the offline store the cache uses.
// Implemented by [state.Store].
type Store interface {
	CachedRooms(ctx context.Context, hotelID int64) ([]*model.CachedRoom, error)
	RoomsCacheAge(ctx context.Context, hotelID int64) (time.Duration, bool, error)
	SaveRooms(ctx context.Context, hotelID int64, rooms []model.CachedRoom) error
	ClearCachedRooms(ctx context.Context, hotelID int64) error
	ActiveStaffSession(ctx context.Context) (*model.StaffSession, error)
}

// Cache serves room snapshots.
type Cache struct {
	lister Lister
	store  Store
	online connectivity.Checker
	expiry time.Duration
	period time.Duration
	log    *slog.Logger
	tracer trace.Tracer

	mu   sync.Mutex
	task *Task
}

// New creates a Cache. Non-positive expiry or period select the defaults.
func New(lister Lister, store Store, online connectivity.Checker, expiry, period time.Duration, logger *slog.Logger) *Cache {
	if expiry <= 0 {
		expiry = DefaultExpiry
	}
	if period <= 0 {
		period = DefaultRefreshPeriod
	}
	return &Cache{
		lister: lister,
		store:  store,
		online: online,
		expiry: expiry,
		period: period,
		log:    logger,
		tracer: otel.Tracer(otelScope),
	}
}

// GetRooms returns the snapshot for hotelID. A missing snapshot, or
// forceRefresh, triggers a fetch when online; an expired snapshot is
// refreshed when online. A failed fetch never fails the call: whatever is
// cached, possibly nothing, is returned instead. Only store failures are
// reported as errors.
func (c *Cache) GetRooms(ctx context.Context, hotelID int64, forceRefresh bool) ([]*model.CachedRoom, error) {
	cached, err := c.store.CachedRooms(ctx, hotelID)
	if err != nil {
		return nil, fmt.Errorf("reading cached rooms: %w", err)
	}

	if len(cached) == 0 || forceRefresh {
		if !c.online.Online(ctx) {
			c.log.Debug("offline, serving cached rooms", "hotel_id", hotelID, "rooms", len(cached))
			return cached, nil
		}
		fresh, err := c.FetchAndCacheRooms(ctx, hotelID)
		if err != nil {
			c.log.Warn("room fetch failed, serving cached rooms",
				"hotel_id", hotelID, "rooms", len(cached), "error", err)
			return cached, nil
		}
		return fresh, nil
	}

	age, _, err := c.store.RoomsCacheAge(ctx, hotelID)
	if err != nil {
		return nil, fmt.Errorf("reading cache age: %w", err)
	}
	if age > c.expiry && c.online.Online(ctx) {
		fresh, err := c.FetchAndCacheRooms(ctx, hotelID)
		if err == nil {
			return fresh, nil
		}
		c.log.Warn("refreshing expired room cache failed, serving stale rooms",
			"hotel_id", hotelID, "age", age, "error", err)
	}
	return cached, nil
}

// FetchAndCacheRooms downloads the hotel's rooms with the signed-in staff
// member's credentials and replaces that hotel's snapshot.
func (c *Cache) FetchAndCacheRooms(ctx context.Context, hotelID int64) ([]*model.CachedRoom, error) {
	ctx, span := c.tracer.Start(ctx, spanFetch, trace.WithAttributes(attribute.Int64("hotel.id", hotelID)))
	defer span.End()

	rooms, err := c.fetch(ctx, hotelID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		return nil, err
	}
	span.SetAttributes(attribute.Int("rooms", len(rooms)))
	c.log.Info("room cache refreshed", "hotel_id", hotelID, "rooms", len(rooms))
	return rooms, nil
}

func (c *Cache) fetch(ctx context.Context, hotelID int64) ([]*model.CachedRoom, error) {
	sess, err := c.store.ActiveStaffSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading staff session: %w", err)
	}
	if sess == nil {
		return nil, ErrNoSession
	}
	if hotelID == 0 {
		hotelID = sess.HotelID
	}

	rooms, err := c.lister.ListAllRooms(ctx, api.CredentialsFor(sess), hotelID)
	if err != nil {
		return nil, err
	}
	if err := c.store.SaveRooms(ctx, hotelID, rooms); err != nil {
		return nil, fmt.Errorf("caching rooms: %w", err)
	}
	return c.store.CachedRooms(ctx, hotelID)
}

// AllCachedRooms returns every cached room across hotels.
func (c *Cache) AllCachedRooms(ctx context.Context) ([]*model.CachedRoom, error) {
	return c.store.CachedRooms(ctx, 0)
}

// ClearCache drops the snapshot of hotelID, or all snapshots when zero.
func (c *Cache) ClearCache(ctx context.Context, hotelID int64) error {
	if err := c.store.ClearCachedRooms(ctx, hotelID); err != nil {
		return err
	}
	c.log.Info("room cache cleared", "hotel_id", hotelID)
	return nil
}

// RoomTypes returns the distinct room types of hotelID, sorted.
func (c *Cache) RoomTypes(ctx context.Context, hotelID int64) ([]string, error) {
	rooms, err := c.GetRooms(ctx, hotelID, false)
	if err != nil {
		return nil, err
	}
	var types []string
	for _, r := range rooms {
		if !slices.Contains(types, r.RoomType) {
			types = append(types, r.RoomType)
		}
	}
	slices.Sort(types)
	return types, nil
}

// RoomsByType returns the rooms of hotelID whose type is roomType.
func (c *Cache) RoomsByType(ctx context.Context, hotelID int64, roomType string) ([]*model.CachedRoom, error) {
	rooms, err := c.GetRooms(ctx, hotelID, false)
	if err != nil {
		return nil, err
	}
	var out []*model.CachedRoom
	for _, r := range rooms {
		if r.RoomType == roomType {
			out = append(out, r)
		}
	}
	return out, nil
}
