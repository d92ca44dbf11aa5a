package scheduler

import (
	"context"
	"time"
)

// Holdoff tracks named "not before" instants: entry cooldowns after a
// rejection, loop backoff after a fault. State is explicit so callers (and
// tests) can inspect when an action becomes eligible instead of sleeping
// blindly.
type Holdoff struct {
	clock    Clock
	eligible map[string]time.Time
}

// NewHoldoff creates a holdoff tracker on the given clock.
func NewHoldoff(clock Clock) *Holdoff {
	return &Holdoff{
		clock:    clock,
		eligible: make(map[string]time.Time),
	}
}

// Set records that key is not eligible again until d from now.
func (h *Holdoff) Set(key string, d time.Duration) {
	h.eligible[key] = h.clock.Now().Add(d)
}

// Clear removes any holdoff for key.
func (h *Holdoff) Clear(key string) {
	delete(h.eligible, key)
}

// Ready reports whether key has no pending holdoff.
func (h *Holdoff) Ready(key string) bool {
	until, ok := h.eligible[key]
	if !ok {
		return true
	}
	if h.clock.Now().Before(until) {
		return false
	}
	delete(h.eligible, key)
	return true
}

// EligibleAt returns when key becomes eligible, or the zero time when it
// already is.
func (h *Holdoff) EligibleAt(key string) time.Time {
	until, ok := h.eligible[key]
	if !ok || !h.clock.Now().Before(until) {
		return time.Time{}
	}
	return until
}

// Wait sleeps for d on the holdoff's clock, returning early with the
// context's error on cancellation. Used for the entry hold pause and the
// inter-cycle sleep so shutdown is never blocked behind a timer.
func (h *Holdoff) Wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-h.clock.After(d):
		return nil
	}
}
