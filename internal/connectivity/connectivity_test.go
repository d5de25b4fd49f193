package connectivity

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"
)

type mockPinger struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (m *mockPinger) Ping(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.err
}

func (m *mockPinger) set(err error) {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
}

func TestProber_CachesAnswer(t *testing.T) {
	ping := &mockPinger{}
	p := NewProber(ping, time.Second, time.Minute, slog.Default())
	now := time.Date(2025, 9, 1, 8, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return now }

	if !p.Online(context.Background()) {
		t.Fatal("expected online")
	}
	ping.set(errors.New("connection refused"))
	if !p.Online(context.Background()) {
		t.Error("cached answer should still be online")
	}
	if ping.calls != 1 {
		t.Errorf("pinged %d times, want 1", ping.calls)
	}

	now = now.Add(2 * time.Minute)
	if p.Online(context.Background()) {
		t.Error("expected offline after ttl")
	}

	ping.set(nil)
	p.Invalidate()
	if !p.Online(context.Background()) {
		t.Error("expected online after Invalidate")
	}
	if ping.calls != 3 {
		t.Errorf("pinged %d times, want 3", ping.calls)
	}
}

func TestStatic(t *testing.T) {
	s := NewStatic(false)
	if s.Online(context.Background()) {
		t.Error("expected offline")
	}
	s.Set(true)
	if !s.Online(context.Background()) {
		t.Error("expected online")
	}
}
