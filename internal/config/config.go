// Package config loads and validates the frontdesk YAML configuration.
//
// Values come from the YAML file first; FRONTDESK_* environment variables
// then override individual keys (for example FRONTDESK_API_URL or
// FRONTDESK_SYNC_INTERVAL).
package config

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "FRONTDESK"

// Config holds the full application configuration.
type Config struct {
	// APIURL is the base URL of the booking backend (e.g. "https://api.hotel.example").
	APIURL string `yaml:"api_url" envconfig:"API_URL"`

	// HotelID selects the hotel whose rooms are cached. Zero uses the hotel
	// of the signed-in staff member.
	HotelID int64 `yaml:"hotel_id" split_words:"true"`

	// DBPath is the offline database file. Defaults to
	// ~/.local/share/frontdesk/offline.db when empty.
	DBPath string `yaml:"db_path" split_words:"true"`

	RoomCache    RoomCacheConfig    `yaml:"room_cache" split_words:"true"`
	Sync         SyncConfig         `yaml:"sync"`
	API          APIConfig          `yaml:"api"`
	Connectivity ConnectivityConfig `yaml:"connectivity"`

	// Telemetry configures optional OpenTelemetry export via OTLP gRPC.
	// Omit the block entirely to disable telemetry.
	Telemetry *TelemetryConfig `yaml:"telemetry,omitempty" ignored:"true"`
}

// RoomCacheConfig controls the room snapshot.
type RoomCacheConfig struct {
	// Expiry is the snapshot age after which reads refresh it. Defaults to 30m.
	Expiry time.Duration `yaml:"expiry"`

	// RefreshInterval is the period of the background refresh. Defaults to 15m.
	RefreshInterval time.Duration `yaml:"refresh_interval" split_words:"true"`
}

// SyncConfig controls the sync daemon.
type SyncConfig struct {
	// Interval between sync passes. Minimum 10s, defaults to 5m.
	Interval time.Duration `yaml:"interval"`

	// WatchInterval is how often the daemon checks whether the backend came
	// back online. Defaults to 30s.
	WatchInterval time.Duration `yaml:"watch_interval" split_words:"true"`

	// PurgeAfterDays deletes synced bookings older than this many days.
	// Zero selects the default of 30; a negative value keeps them forever.
	PurgeAfterDays int `yaml:"purge_after_days" split_words:"true"`
}

// APIConfig tunes the backend HTTP client.
type APIConfig struct {
	// Timeout bounds each HTTP request. Defaults to 15s.
	Timeout time.Duration `yaml:"timeout"`

	// RequestsPerSecond paces outgoing requests. Defaults to 5; negative
	// disables pacing.
	RequestsPerSecond float64 `yaml:"requests_per_second" split_words:"true"`

	// Burst is the limiter bucket size. Defaults to 5.
	Burst int `yaml:"burst"`

	// MaxAttempts bounds retries of read requests. Between 1 and 10,
	// defaults to 3.
	MaxAttempts int `yaml:"max_attempts" split_words:"true"`
}

// ConnectivityConfig tunes the backend reachability probe.
type ConnectivityConfig struct {
	// Timeout bounds each probe. Defaults to 3s.
	Timeout time.Duration `yaml:"timeout"`

	// CacheTTL is how long a probe answer is reused. Defaults to 10s.
	CacheTTL time.Duration `yaml:"cache_ttl" split_words:"true"`
}

// TelemetryConfig holds optional OpenTelemetry settings.
type TelemetryConfig struct {
	// OTLPEndpoint is the gRPC host:port of the OTLP collector (e.g. "localhost:4317").
	OTLPEndpoint string `yaml:"otlp_endpoint"`

	// Insecure disables TLS for the collector connection. Use for local collectors.
	Insecure bool `yaml:"insecure"`

	// ServiceName overrides the OTel service.name attribute. Defaults to "frontdesk".
	ServiceName string `yaml:"service_name"`

	// Headers contains key-value pairs sent as gRPC metadata on every OTLP
	// request, e.g. Authorization: "Bearer <token>".
	Headers map[string]string `yaml:"headers,omitempty"`
}

// DefaultPath returns the default config file path: ~/.config/frontdesk/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".config", "frontdesk", "config.yaml"), nil
}

// Load reads the configuration file at path, applies environment overrides
// and validates the result. An empty path skips the file, so the
// configuration comes from the environment alone.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		if err := decodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("reading %s_* environment: %w", EnvPrefix, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func decodeFile(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening config file %q: %w", path, err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true) // reject unknown keys to catch typos early
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parsing config file %q: %w", path, err)
	}
	return nil
}

// validate checks required fields and fills in defaults.
func (c *Config) validate() error {
	if c.APIURL == "" {
		return fmt.Errorf("api_url is required")
	}
	u, err := url.ParseRequestURI(c.APIURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("api_url %q must be a valid http or https URL", c.APIURL)
	}
	if c.HotelID < 0 {
		return fmt.Errorf("hotel_id %d must not be negative", c.HotelID)
	}

	if c.RoomCache.Expiry == 0 {
		c.RoomCache.Expiry = 30 * time.Minute
	}
	if c.RoomCache.RefreshInterval == 0 {
		c.RoomCache.RefreshInterval = 15 * time.Minute
	}
	if c.RoomCache.Expiry < time.Minute || c.RoomCache.RefreshInterval < time.Minute {
		return fmt.Errorf("room_cache.expiry and room_cache.refresh_interval must be at least 1m")
	}

	if c.Sync.Interval == 0 {
		c.Sync.Interval = 5 * time.Minute
	}
	if c.Sync.Interval < 10*time.Second {
		return fmt.Errorf("sync.interval %v is too short (minimum 10s)", c.Sync.Interval)
	}
	if c.Sync.WatchInterval == 0 {
		c.Sync.WatchInterval = 30 * time.Second
	}
	if c.Sync.WatchInterval < time.Second {
		return fmt.Errorf("sync.watch_interval %v is too short (minimum 1s)", c.Sync.WatchInterval)
	}
	if c.Sync.PurgeAfterDays == 0 {
		c.Sync.PurgeAfterDays = 30
	}

	if c.API.Timeout == 0 {
		c.API.Timeout = 15 * time.Second
	}
	if c.API.RequestsPerSecond == 0 {
		c.API.RequestsPerSecond = 5
	}
	if c.API.Burst == 0 {
		c.API.Burst = 5
	}
	if c.API.MaxAttempts == 0 {
		c.API.MaxAttempts = 3
	}
	if c.API.MaxAttempts < 1 || c.API.MaxAttempts > 10 {
		return fmt.Errorf("api.max_attempts %d must be between 1 and 10", c.API.MaxAttempts)
	}

	if c.Connectivity.Timeout == 0 {
		c.Connectivity.Timeout = 3 * time.Second
	}
	if c.Connectivity.CacheTTL == 0 {
		c.Connectivity.CacheTTL = 10 * time.Second
	}

	if c.Telemetry != nil {
		if c.Telemetry.OTLPEndpoint == "" {
			return fmt.Errorf("telemetry.otlp_endpoint is required when telemetry is configured")
		}
	}

	return nil
}
