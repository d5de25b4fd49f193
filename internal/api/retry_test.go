package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync/atomic"
	"testing"
	"time"
)

// flakyBackend answers the first failures requests with status, then serves
// an empty booking page.
func flakyBackend(calls *atomic.Int32, failures int32, status int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) <= failures {
			http.Error(w, "maintenance window", status)
			return
		}
		_, _ = io.WriteString(w, `{"content":[]}`)
	})
}

func TestListBookings_RecoversAfterMaintenance(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, flakyBackend(&calls, 1, http.StatusServiceUnavailable))

	got, err := c.ListBookings(context.Background(), Credentials{Token: "tok"}, 1)
	if err != nil {
		t.Fatalf("ListBookings: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("bookings = %v, want none", got)
	}
	if n := calls.Load(); n != 2 {
		t.Errorf("server saw %d requests, want 2", n)
	}
}

func TestListAllRooms_GivesUpAfterMaxAttempts(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, flakyBackend(&calls, 100, http.StatusBadGateway))

	_, err := c.ListAllRooms(context.Background(), Credentials{Token: "tok"}, 1)
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusBadGateway {
		t.Fatalf("err = %v, want the last 502 in the chain", err)
	}
	if n := calls.Load(); n != defaultMaxAttempts {
		t.Errorf("server saw %d requests, want %d", n, defaultMaxAttempts)
	}
}

func TestListBookings_TooManyRequestsIsRetried(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, flakyBackend(&calls, 2, http.StatusTooManyRequests))

	if _, err := c.ListBookings(context.Background(), Credentials{Token: "tok"}, 1); err != nil {
		t.Fatalf("ListBookings: %v", err)
	}
	if n := calls.Load(); n != 3 {
		t.Errorf("server saw %d requests, want 3", n)
	}
}

func TestListAllRooms_BadRequestAnsweredOnce(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, flakyBackend(&calls, 100, http.StatusBadRequest))

	_, err := c.ListAllRooms(context.Background(), Credentials{Token: "tok"}, 1)
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusBadRequest {
		t.Fatalf("err = %v, want a 400 *StatusError", err)
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("server saw %d requests, want 1", n)
	}
}

func TestBackoff_CancelledRequestNotRepeated(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := Backoff{Attempts: 3, Base: time.Millisecond, Max: time.Millisecond}.Do(ctx, func() error {
		calls++
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if calls != 0 {
		t.Errorf("fn called %d times with a cancelled context", calls)
	}
}

func TestBackoff_DeadlineDuringWait(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	calls := 0
	b := Backoff{Attempts: 5, Base: time.Hour, Max: time.Hour}
	err := b.Do(ctx, func() error {
		calls++
		return &StatusError{Code: http.StatusServiceUnavailable, Body: "down"}
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want context.DeadlineExceeded", err)
	}
	if calls != 1 {
		t.Errorf("fn called %d times, want 1 before the wait was cut short", calls)
	}
}

func TestBackoff_DelayGrowsAndCaps(t *testing.T) {
	b := defaultBackoff(0)
	if b.Attempts != defaultMaxAttempts {
		t.Errorf("Attempts = %d, want %d", b.Attempts, defaultMaxAttempts)
	}
	tests := []struct {
		retry    int
		min, max time.Duration
	}{
		{0, 250 * time.Millisecond, 500 * time.Millisecond},
		{1, 500 * time.Millisecond, time.Second},
		{2, time.Second, 2 * time.Second},
		{10, b.Max / 2, b.Max},
		{62, b.Max / 2, b.Max},
	}
	for _, tt := range tests {
		d := b.delay(tt.retry)
		if d < tt.min || d >= tt.max {
			t.Errorf("delay(%d) = %v, want in [%v, %v)", tt.retry, d, tt.min, tt.max)
		}
	}
}
