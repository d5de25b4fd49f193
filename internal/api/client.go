// Package api is the HTTP client for the hotel booking backend. It covers the
// handful of endpoints the offline terminal needs: creating walk-in bookings,
// listing rooms and bookings, signing in and a health probe.
//
// Idempotent GETs are repeated with exponential [Backoff]; writes are attempted exactly once so a replayed booking can never
// be submitted twice by the client itself. Every request is paced by a
// token-bucket limiter.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/njoerd114/frontdesk/internal/model"
)

// maxBodyBytes bounds how much of a response body is read.
const maxBodyBytes = 4 << 20

// Credentials identify the signed-in staff member on every request.
type Credentials struct {
	Token    string
	HotelID  int64
	TenantID string
	Role     string
}

// CredentialsFor builds request credentials from a cached staff session.
func CredentialsFor(s *model.StaffSession) Credentials {
	return Credentials{Token: s.Token, HotelID: s.HotelID, TenantID: s.TenantID, Role: s.Role}
}

func (c Credentials) hotelAdmin() bool { return c.Role == model.RoleHotelAdmin }

// Options configures a Client.
type Options struct {
	BaseURL           string
	Timeout           time.Duration
	RequestsPerSecond float64 // <= 0 disables pacing
	Burst             int
	MaxAttempts       int // for GETs; 0 means 3
}

// Client talks to the booking backend.
type Client struct {
	base     *url.URL
	hc       *http.Client
	limiter  *rate.Limiter
	backoff  Backoff
	logger   *slog.Logger
}

// New creates a Client for the backend at opts.BaseURL.
func New(opts Options, logger *slog.Logger) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid API base URL %q", opts.BaseURL)
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Client{
		base:     base,
		hc:       &http.Client{Timeout: timeout},
		limiter:  rate.NewLimiter(limit, burst),
		backoff:  defaultBackoff(opts.MaxAttempts),
		logger:   logger,
	}, nil
}

// BaseURL returns the backend address.
func (c *Client) BaseURL() string { return c.base.String() }

// --- endpoints ---------------------------------------------------------------

// Ping checks that the backend answers its health endpoint. It makes a
// single attempt so connectivity probes stay fast.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.once(ctx, request{method: http.MethodGet, path: "/api/health"}, nil); err != nil {
		return fmt.Errorf("ping backend: %w", err)
	}
	return nil
}

// Authenticate signs in with email and password.
func (c *Client) Authenticate(ctx context.Context, email, password string) (*LoginResult, error) {
	body := map[string]string{"email": email, "password": password}
	var res LoginResult
	if err := c.once(ctx, request{method: http.MethodPost, path: "/api/auth/login", body: body}, &res); err != nil {
		return nil, err
	}
	if res.Token == "" {
		return nil, fmt.Errorf("login response for %s carries no token", email)
	}
	return &res, nil
}

// CreateWalkInBooking submits b to the backend and returns the server id of
// the created booking, which may be empty if the response does not name one.
// It is attempted once; a non-2xx answer is returned as *StatusError.
func (c *Client) CreateWalkInBooking(ctx context.Context, creds Credentials, b *model.PendingBooking) (string, error) {
	creds.HotelID = b.HotelID
	var raw json.RawMessage
	req := request{method: http.MethodPost, path: "/api/walk-in-bookings", creds: &creds, body: newWalkInRequest(b)}
	if err := c.once(ctx, req, &raw); err != nil {
		return "", err
	}
	var created createdBooking
	if len(raw) > 0 && raw[0] == '{' {
		_ = json.Unmarshal(raw, &created)
	}
	return created.id(), nil
}

// ListAvailableRooms asks the backend which rooms are free for stay.
func (c *Client) ListAvailableRooms(ctx context.Context, creds Credentials, hotelID int64, stay model.Stay, guests int) ([]model.CachedRoom, error) {
	q := url.Values{
		"checkInDate":  {stay.CheckIn.String()},
		"checkOutDate": {stay.CheckOut.String()},
		"guests":       {strconv.Itoa(guests)},
	}
	path := fmt.Sprintf("/api/front-desk/hotels/%d/available-rooms", hotelID)
	if creds.hotelAdmin() {
		path = "/api/hotel-admin/available-rooms"
	}
	creds.HotelID = hotelID
	return c.listRooms(ctx, request{method: http.MethodGet, path: path, query: q, creds: &creds}, hotelID)
}

// ListAllRooms returns the hotel's full room inventory using the listing
// that matches the caller's role.
func (c *Client) ListAllRooms(ctx context.Context, creds Credentials, hotelID int64) ([]model.CachedRoom, error) {
	path := "/api/front-desk/rooms"
	if creds.hotelAdmin() {
		path = "/api/hotel-admin/rooms"
	}
	q := url.Values{"hotelId": {strconv.FormatInt(hotelID, 10)}, "size": {"1000"}}
	creds.HotelID = hotelID
	return c.listRooms(ctx, request{method: http.MethodGet, path: path, query: q, creds: &creds}, hotelID)
}

func (c *Client) listRooms(ctx context.Context, req request, hotelID int64) ([]model.CachedRoom, error) {
	var raw json.RawMessage
	if err := c.get(ctx, req, &raw); err != nil {
		return nil, fmt.Errorf("list rooms for hotel %d: %w", hotelID, err)
	}
	dtos, err := decodeList[roomDTO](raw)
	if err != nil {
		return nil, fmt.Errorf("list rooms for hotel %d: %w", hotelID, err)
	}
	rooms := make([]model.CachedRoom, 0, len(dtos))
	for _, d := range dtos {
		rooms = append(rooms, d.toModel(hotelID))
	}
	return rooms, nil
}

// ListBookings returns the hotel's confirmed bookings. Records the terminal
// cannot interpret are skipped with a warning.
func (c *Client) ListBookings(ctx context.Context, creds Credentials, hotelID int64) ([]model.ConfirmedBooking, error) {
	path := "/api/front-desk/bookings"
	if creds.hotelAdmin() {
		path = "/api/hotel-admin/bookings"
	}
	q := url.Values{"hotelId": {strconv.FormatInt(hotelID, 10)}, "size": {"1000"}}
	creds.HotelID = hotelID

	var raw json.RawMessage
	if err := c.get(ctx, request{method: http.MethodGet, path: path, query: q, creds: &creds}, &raw); err != nil {
		return nil, fmt.Errorf("list bookings for hotel %d: %w", hotelID, err)
	}
	dtos, err := decodeList[bookingDTO](raw)
	if err != nil {
		return nil, fmt.Errorf("list bookings for hotel %d: %w", hotelID, err)
	}
	out := make([]model.ConfirmedBooking, 0, len(dtos))
	for _, d := range dtos {
		b, err := d.toModel(hotelID)
		if err != nil {
			c.logger.Warn("skipping unreadable booking", "hotel_id", hotelID, "error", err)
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

// --- transport ---------------------------------------------------------------

type request struct {
	method string
	path   string
	query  url.Values
	creds  *Credentials
	body   any
}

// get performs an idempotent request with retry.
func (c *Client) get(ctx context.Context, req request, out any) error {
	return c.backoff.Do(ctx, func() error {
		return c.once(ctx, req, out)
	})
}

// once performs req exactly one time and decodes a JSON body into out.
func (c *Client) once(ctx context.Context, req request, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("waiting for rate limiter: %w", err)
	}

	u := *c.base
	u.Path = c.base.Path + req.path
	if len(req.query) > 0 {
		u.RawQuery = req.query.Encode()
	}

	var body io.Reader
	if req.body != nil {
		data, err := json.Marshal(req.body)
		if err != nil {
			return fmt.Errorf("encoding %s body: %w", req.path, err)
		}
		body = bytes.NewReader(data)
	}

	hr, err := http.NewRequestWithContext(ctx, req.method, u.String(), body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	hr.Header.Set("Accept", "application/json")
	if body != nil {
		hr.Header.Set("Content-Type", "application/json")
	}
	if cr := req.creds; cr != nil {
		if cr.Token != "" {
			hr.Header.Set("Authorization", "Bearer "+cr.Token)
		}
		if cr.HotelID > 0 {
			hr.Header.Set("X-Hotel-ID", strconv.FormatInt(cr.HotelID, 10))
		}
		if cr.TenantID != "" {
			hr.Header.Set("X-Tenant-ID", cr.TenantID)
		}
	}

	start := time.Now()
	resp, err := c.hc.Do(hr)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.method, req.path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("reading %s response: %w", req.path, err)
	}
	c.logger.Debug("api request",
		"method", req.method, "path", req.path,
		"status", resp.StatusCode, "duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding %s response: %w", req.path, err)
	}
	return nil
}
