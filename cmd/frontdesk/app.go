package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/njoerd114/frontdesk/internal/api"
	"github.com/njoerd114/frontdesk/internal/auth"
	"github.com/njoerd114/frontdesk/internal/availability"
	"github.com/njoerd114/frontdesk/internal/config"
	"github.com/njoerd114/frontdesk/internal/connectivity"
	"github.com/njoerd114/frontdesk/internal/model"
	"github.com/njoerd114/frontdesk/internal/roomcache"
	"github.com/njoerd114/frontdesk/internal/state"
	syncp "github.com/njoerd114/frontdesk/internal/sync"
)

// errNotSignedIn is returned by commands that need staff credentials.
var errNotSignedIn = errors.New("nobody is signed in, run 'frontdesk login' first")

// app holds every component a subcommand might need.
type app struct {
	cfg    *config.Config
	log    *slog.Logger
	store  *state.Store
	client *api.Client
	online *connectivity.Prober
	auth   *auth.Service
	rooms  *roomcache.Cache
	avail  *availability.Resolver
	sync   *syncp.Manager
}

// openApp loads the config, opens the offline store and builds the rest.
func openApp(ctx context.Context, g globalFlags) (*app, error) {
	logger := newLogger(*g.verbose)

	cfgPath := *g.config
	if _, err := os.Stat(cfgPath); errors.Is(err, os.ErrNotExist) {
		// Environment-only setups are allowed.
		logger.Debug("config file not found, using environment", "path", cfgPath)
		cfgPath = ""
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("loading config from %q: %w", *g.config, err)
	}

	dbPath := cfg.DBPath
	if dbPath == "" {
		if dbPath, err = state.DefaultDBPath(); err != nil {
			return nil, fmt.Errorf("resolving offline DB path: %w", err)
		}
	}
	store, err := state.Open(ctx, dbPath, logger)
	if err != nil {
		return nil, fmt.Errorf("opening offline DB at %q: %w", dbPath, err)
	}
	logger.Debug("offline DB opened", "path", dbPath)

	client, err := api.New(api.Options{
		BaseURL:           cfg.APIURL,
		Timeout:           cfg.API.Timeout,
		RequestsPerSecond: cfg.API.RequestsPerSecond,
		Burst:             cfg.API.Burst,
		MaxAttempts:       cfg.API.MaxAttempts,
	}, logger)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("creating API client: %w", err)
	}

	online := connectivity.NewProber(client, cfg.Connectivity.Timeout, cfg.Connectivity.CacheTTL, logger)
	return &app{
		cfg:    cfg,
		log:    logger,
		store:  store,
		client: client,
		online: online,
		auth:   auth.New(client, store, online, 0, logger),
		rooms:  roomcache.New(client, store, online, cfg.RoomCache.Expiry, cfg.RoomCache.RefreshInterval, logger),
		avail:  availability.New(store, logger),
		sync:   syncp.NewManager(client, store, logger),
	}, nil
}

func (a *app) close() {
	if err := a.store.Close(); err != nil {
		a.log.Error("closing offline DB", "error", err)
	}
}

func (a *app) engine() *syncp.Engine {
	return syncp.NewEngine(a.sync, a.store, a.online,
		syncp.NewPreloader(a.client, a.store, a.log),
		syncp.EngineOptions{
			Interval:       a.cfg.Sync.Interval,
			WatchInterval:  a.cfg.Sync.WatchInterval,
			PurgeAfterDays: a.cfg.Sync.PurgeAfterDays,
			HotelID:        a.cfg.HotelID,
		}, a.log)
}

// session returns the signed-in staff member or errNotSignedIn.
func (a *app) session(ctx context.Context) (*model.StaffSession, error) {
	sess, err := a.auth.Current(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading staff session: %w", err)
	}
	if sess == nil {
		return nil, errNotSignedIn
	}
	return sess, nil
}

// hotelID picks the configured hotel, falling back to the signed-in staff
// member's hotel.
func (a *app) hotelID(ctx context.Context) (int64, error) {
	if a.cfg.HotelID > 0 {
		return a.cfg.HotelID, nil
	}
	sess, err := a.session(ctx)
	if err != nil {
		return 0, err
	}
	if sess.HotelID == 0 {
		return 0, errors.New("no hotel selected: set hotel_id in the config")
	}
	return sess.HotelID, nil
}
