package roomcache

import (
	"context"
	"time"
)

// Task is a running periodic refresh.
type Task struct {
	hotelID int64
	cancel  context.CancelFunc
	done    chan struct{}
}

// HotelID returns the hotel the task refreshes.
func (t *Task) HotelID() int64 { return t.hotelID }

// Done is closed once the task has stopped and any refresh it had in flight
// has finished.
func (t *Task) Done() <-chan struct{} { return t.done }

// StartPeriodicRefresh refreshes hotelID every refresh period while online
// until ctx ends or the task is stopped. Starting a task stops the previous
// one; only one runs at a time.
func (c *Cache) StartPeriodicRefresh(ctx context.Context, hotelID int64) *Task {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.task != nil {
		c.task.cancel()
	}

	ctx, cancel := context.WithCancel(ctx)
	t := &Task{hotelID: hotelID, cancel: cancel, done: make(chan struct{})}
	c.task = t
	go c.runRefresh(ctx, t)
	c.log.Info("periodic room refresh started", "hotel_id", hotelID, "period", c.period)
	return t
}

// StopPeriodicRefresh stops the running task, if any. A refresh already in
// flight is left to finish.
func (c *Cache) StopPeriodicRefresh() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.task == nil {
		return
	}
	c.task.cancel()
	c.log.Info("periodic room refresh stopped", "hotel_id", c.task.hotelID)
	c.task = nil
}

func (c *Cache) runRefresh(ctx context.Context, t *Task) {
	defer close(t.done)
	ticker := time.NewTicker(c.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Detached so stopping the task does not abort a fetch mid-request.
			fetchCtx := context.WithoutCancel(ctx)
			if !c.online.Online(fetchCtx) {
				continue
			}
			if _, err := c.FetchAndCacheRooms(fetchCtx, t.hotelID); err != nil {
				c.log.Warn("periodic room refresh failed", "hotel_id", t.hotelID, "error", err)
			}
		}
	}
}
