// Package connectivity decides whether the booking backend is reachable.
package connectivity

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Checker reports whether the backend can be reached right now.
type Checker interface {
	Online(ctx context.Context) bool
}

// Pinger is the backend health probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Prober answers Online by pinging the backend, caching the result for ttl
// so bursts of callers share one probe.
type Prober struct {
	pinger  Pinger
	timeout time.Duration
	ttl     time.Duration
	logger  *slog.Logger
	now     func() time.Time

	mu      sync.Mutex
	checked time.Time
	online  bool
}

// NewProber creates a Prober. timeout bounds each ping; ttl is how long an
// answer is reused.
func NewProber(p Pinger, timeout, ttl time.Duration, logger *slog.Logger) *Prober {
	return &Prober{pinger: p, timeout: timeout, ttl: ttl, logger: logger, now: time.Now}
}

// Online implements [Checker].
func (p *Prober) Online(ctx context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	if !p.checked.IsZero() && now.Sub(p.checked) < p.ttl {
		return p.online
	}

	pctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	err := p.pinger.Ping(pctx)
	online := err == nil
	if online != p.online || p.checked.IsZero() {
		if online {
			p.logger.Info("backend reachable")
		} else {
			p.logger.Warn("backend unreachable, working offline", "error", err)
		}
	}
	p.online = online
	p.checked = now
	return online
}

// Invalidate drops the cached answer so the next Online call probes again.
func (p *Prober) Invalidate() {
	p.mu.Lock()
	p.checked = time.Time{}
	p.mu.Unlock()
}

// Static is a Checker with a fixed, settable answer. It backs forced
// offline mode and tests.
type Static struct {
	online atomic.Bool
}

// NewStatic returns a Static whose answer starts as online.
func NewStatic(online bool) *Static {
	s := &Static{}
	s.online.Store(online)
	return s
}

// Online implements [Checker].
func (s *Static) Online(context.Context) bool { return s.online.Load() }

// Set changes the reported state.
func (s *Static) Set(online bool) { s.online.Store(online) }
