package metrics

import (
	"sync"
	"sync/atomic"
)

// rateLimitStats holds counters for rate limit drops (HTTP 429).
// Kept simple/thread-safe for use from middlewares and exposition.
type rateLimitStats struct {
	total    uint64
	mu       sync.Mutex
	byPrefix map[string]uint64
}

var rl rateLimitStats

// IncRateLimitDrop increments drop counters for the given prefix.
// Use prefix "global" for global limiter rejections.
func IncRateLimitDrop(prefix string) {
	if prefix == "" {
		prefix = "global"
	}
	atomic.AddUint64(&rl.total, 1)
	rl.mu.Lock()
	if rl.byPrefix == nil {
		rl.byPrefix = make(map[string]uint64)
	}
	rl.byPrefix[prefix]++
	rl.mu.Unlock()
}

// RateLimitSnapshot returns a copy of the current counters.
func RateLimitSnapshot() (total uint64, by map[string]uint64) {
	total = atomic.LoadUint64(&rl.total)
	rl.mu.Lock()
	defer rl.mu.Unlock()
	by = make(map[string]uint64, len(rl.byPrefix))
	for k, v := range rl.byPrefix {
		by[k] = v
	}
	return total, by
}

// automationStats counts engine invocations by final status.
type automationStats struct {
	mu       sync.Mutex
	byStatus map[string]uint64
}

var auto automationStats

// IncAutomationRun increments the run counter for a final status
// (applied, skipped, pending_review, error).
func IncAutomationRun(status string) {
	if status == "" {
		return
	}
	auto.mu.Lock()
	if auto.byStatus == nil {
		auto.byStatus = make(map[string]uint64)
	}
	auto.byStatus[status]++
	auto.mu.Unlock()
}

// AutomationSnapshot returns a copy of the automation run counters.
func AutomationSnapshot() map[string]uint64 {
	auto.mu.Lock()
	defer auto.mu.Unlock()
	out := make(map[string]uint64, len(auto.byStatus))
	for k, v := range auto.byStatus {
		out[k] = v
	}
	return out
}
