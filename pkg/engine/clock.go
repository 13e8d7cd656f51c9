package engine

import "time"

// FrameClock delivers frame boundaries to the update scheduler.
type FrameClock interface {
	// Ticks returns the channel on which frame boundaries arrive.
	Ticks() <-chan time.Time
}

// TickerClock is a FrameClock backed by a time.Ticker.
type TickerClock struct {
	ticker *time.Ticker
}

// NewTickerClock creates a clock ticking at the given frames per second.
func NewTickerClock(fps int) *TickerClock {
	if fps <= 0 {
		fps = DefaultFrameRate
	}
	return &TickerClock{ticker: time.NewTicker(time.Second / time.Duration(fps))}
}

// Ticks implements FrameClock.
func (c *TickerClock) Ticks() <-chan time.Time {
	return c.ticker.C
}

// Stop releases the underlying ticker.
func (c *TickerClock) Stop() {
	c.ticker.Stop()
}

// ManualClock is a FrameClock advanced explicitly, used in tests.
type ManualClock struct {
	ch chan time.Time
}

// NewManualClock creates a manual clock.
func NewManualClock() *ManualClock {
	return &ManualClock{ch: make(chan time.Time, 1)}
}

// Ticks implements FrameClock.
func (c *ManualClock) Ticks() <-chan time.Time {
	return c.ch
}

// Step delivers one frame boundary and blocks until it is consumed or
// the timeout expires. It reports whether the tick was consumed.
func (c *ManualClock) Step(timeout time.Duration) bool {
	select {
	case c.ch <- time.Now():
		return true
	case <-time.After(timeout):
		return false
	}
}
