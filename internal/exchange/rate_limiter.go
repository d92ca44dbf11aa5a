package exchange

import (
	"sync"
	"time"
)

// RequestPriority defines priority levels for API requests. Higher priority
// requests get a larger share of the per-minute weight budget so that order
// placement and closes are never starved by market-data polling.
type RequestPriority int

const (
	// PriorityCritical - order placement and position closes.
	PriorityCritical RequestPriority = iota
	// PriorityNormal - snapshot and account data.
	PriorityNormal
)

// budget share of the weight window each priority may consume
const (
	criticalBudget = 0.95
	normalBudget   = 0.60
)

// RateLimiter tracks request weight against the exchange's rolling one-minute
// window. It is deliberately conservative: when the budget for a priority is
// exhausted the caller blocks until the window rolls over.
type RateLimiter struct {
	mu          sync.Mutex
	maxWeight   int
	usedWeight  int
	windowStart time.Time
}

// NewRateLimiter creates a limiter for the given per-minute weight cap.
func NewRateLimiter(maxWeight int) *RateLimiter {
	if maxWeight <= 0 {
		maxWeight = 1200
	}
	return &RateLimiter{
		maxWeight:   maxWeight,
		windowStart: time.Now(),
	}
}

// Acquire blocks until weight units are available within the priority's
// budget, then records the spend.
func (rl *RateLimiter) Acquire(weight int, priority RequestPriority) {
	for {
		if rl.tryAcquire(weight, priority) {
			return
		}
		time.Sleep(250 * time.Millisecond)
	}
}

func (rl *RateLimiter) tryAcquire(weight int, priority RequestPriority) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	if now.Sub(rl.windowStart) >= time.Minute {
		rl.usedWeight = 0
		rl.windowStart = now
	}

	budget := normalBudget
	if priority == PriorityCritical {
		budget = criticalBudget
	}
	if float64(rl.usedWeight+weight) > float64(rl.maxWeight)*budget {
		return false
	}
	rl.usedWeight += weight
	return true
}

// Usage returns the fraction of the window's weight currently consumed.
func (rl *RateLimiter) Usage() float64 {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if time.Since(rl.windowStart) >= time.Minute {
		return 0
	}
	return float64(rl.usedWeight) / float64(rl.maxWeight)
}
