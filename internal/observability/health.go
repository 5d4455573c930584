package observability

import (
	"sync/atomic"
	"time"
)

// HealthChecker tracks readiness. The daemon marks itself ready once the
// database is open and the scheduler has started.
type HealthChecker struct {
	ready     atomic.Bool
	startTime time.Time
}

func NewHealthChecker() *HealthChecker {
	return &HealthChecker{
		startTime: time.Now(),
	}
}

func (h *HealthChecker) SetReady(ready bool) {
	h.ready.Store(ready)
}

func (h *HealthChecker) IsReady() bool {
	return h.ready.Load()
}

func (h *HealthChecker) Uptime() time.Duration {
	return time.Since(h.startTime)
}
