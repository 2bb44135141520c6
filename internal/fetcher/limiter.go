package fetcher

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// SECFairAccessRate is the published request ceiling for SEC hosts.
const SECFairAccessRate rate.Limit = 10

// DefaultHostRate applies to hosts without a configured rate.
const DefaultHostRate rate.Limit = 5

// recoverAfter is the number of consecutive successes before a throttled
// host regains rate.
const recoverAfter = 20

// SECHostRates returns the per-host rates for the EDGAR archive and data APIs.
func SECHostRates() map[string]rate.Limit {
	return map[string]rate.Limit{
		"www.sec.gov":  SECFairAccessRate,
		"data.sec.gov": SECFairAccessRate,
	}
}

// HostThrottle paces requests to one host. A throttling response (429 or 503)
// halves the rate down to a quarter of the ceiling; every recoverAfter
// consecutive successes restore a quarter of the ceiling.
type HostThrottle struct {
	host    string
	ceiling rate.Limit
	limiter *rate.Limiter

	mu        sync.Mutex
	current   rate.Limit
	successes int
}

// NewHostThrottle creates a throttle that starts at ceiling.
func NewHostThrottle(host string, ceiling rate.Limit) *HostThrottle {
	burst := max(1, int(ceiling))
	return &HostThrottle{
		host:    host,
		ceiling: ceiling,
		limiter: rate.NewLimiter(ceiling, burst),
		current: ceiling,
	}
}

// Wait blocks until the next request to the host may start.
func (h *HostThrottle) Wait(ctx context.Context) error {
	return h.limiter.Wait(ctx)
}

// Throttled records a throttling response from the host.
func (h *HostThrottle) Throttled() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.successes = 0
	h.current = max(h.current/2, h.ceiling/4)
	h.limiter.SetLimit(h.current)
	zap.L().Warn("fetcher: host throttled, reducing request rate",
		zap.String("host", h.host),
		zap.Float64("rate", float64(h.current)),
	)
}

// Succeeded records a successful response from the host.
func (h *HostThrottle) Succeeded() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.current >= h.ceiling {
		return
	}
	h.successes++
	if h.successes < recoverAfter {
		return
	}
	h.successes = 0
	h.current = min(h.current+h.ceiling/4, h.ceiling)
	h.limiter.SetLimit(h.current)
}

// Limit returns the current request rate.
func (h *HostThrottle) Limit() rate.Limit {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current
}
