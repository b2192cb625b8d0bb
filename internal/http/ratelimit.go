package http

import (
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// limitClass buckets endpoints by cost. Form posts are cheap but easy to
// spam from a stuck HTMX retry loop; exports render whole workbooks and
// PDFs, and imports parse uploads row by row, so those share a much
// smaller budget.
type limitClass int

const (
	classForm limitClass = iota
	classHeavy
)

const limitWindow = time.Minute

// requestsPerWindow is the per-client budget for each class.
func requestsPerWindow(class limitClass) int {
	if class == classHeavy {
		return 10
	}
	return 60
}

// limitClassFor maps a request onto its budget. Plain page loads and
// partials are not limited at all.
func limitClassFor(r *http.Request) (limitClass, bool) {
	if strings.HasPrefix(r.URL.Path, "/export/") {
		return classHeavy, true
	}
	if r.Method != http.MethodPost {
		return 0, false
	}
	switch r.URL.Path {
	case "/import", "/recurring/generate":
		return classHeavy, true
	}
	return classForm, true
}

type limitKey struct {
	ip    string
	class limitClass
}

// window is one fixed counting window. The count resets when a request
// arrives more than limitWindow after startedAt.
type window struct {
	startedAt time.Time
	count     int
}

// rateLimiter counts requests per client IP and class over fixed
// one-minute windows.
type rateLimiter struct {
	mu       sync.Mutex
	windows  map[limitKey]*window
	entryTTL time.Duration

	stopSweep    chan struct{}
	shutdownOnce sync.Once
}

func newRateLimiter() *rateLimiter {
	rl := &rateLimiter{
		windows:   make(map[limitKey]*window),
		entryTTL:  10 * time.Minute,
		stopSweep: make(chan struct{}),
	}
	go rl.sweepLoop(5 * time.Minute)
	return rl
}

func (rl *rateLimiter) sweepLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.sweepStale()
		case <-rl.stopSweep:
			return
		}
	}
}

// sweepStale drops windows that have not seen a request within entryTTL
// and reports how many were removed.
func (rl *rateLimiter) sweepStale() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-rl.entryTTL)
	removed := 0
	for key, win := range rl.windows {
		if win.startedAt.Before(cutoff) {
			delete(rl.windows, key)
			removed++
		}
	}
	return removed
}

// stop shuts down the sweep goroutine.
func (rl *rateLimiter) stop() {
	rl.shutdownOnce.Do(func() {
		close(rl.stopSweep)
	})
}

// allow records one request and reports whether it fits the class budget.
// When it does not, the returned duration says how long until the current
// window rolls over.
func (rl *rateLimiter) allow(clientIP string, class limitClass, metrics *securityMetrics) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	key := limitKey{ip: clientIP, class: class}

	win, ok := rl.windows[key]
	if !ok || now.Sub(win.startedAt) >= limitWindow {
		rl.windows[key] = &window{startedAt: now, count: 1}
		return true, 0
	}

	win.count++
	if win.count > requestsPerWindow(class) {
		if metrics != nil {
			atomic.AddInt64(&metrics.rateLimitHits, 1)
		}
		return false, limitWindow - now.Sub(win.startedAt)
	}
	return true, 0
}
