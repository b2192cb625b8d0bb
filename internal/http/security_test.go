package http

import (
	"net/http/httptest"
	"testing"
	"time"
)

func TestRateLimiterAllowsUpToClassLimit(t *testing.T) {
	rl := newRateLimiter()
	defer rl.stop()

	metrics := &securityMetrics{}
	for i := 0; i < 60; i++ {
		if ok, _ := rl.allow("203.0.113.5", classForm, metrics); !ok {
			t.Fatalf("form request %d blocked below the limit", i+1)
		}
	}
	ok, retryAfter := rl.allow("203.0.113.5", classForm, metrics)
	if ok {
		t.Error("request 61 allowed over the form limit")
	}
	if retryAfter <= 0 || retryAfter > limitWindow {
		t.Errorf("retryAfter = %v, want within (0, %v]", retryAfter, limitWindow)
	}
	if metrics.rateLimitHits != 1 {
		t.Errorf("rateLimitHits = %d, want 1", metrics.rateLimitHits)
	}

	// A different client has its own budget.
	if ok, _ := rl.allow("203.0.113.6", classForm, metrics); !ok {
		t.Error("independent client blocked")
	}
}

func TestRateLimiterClassesAreIndependent(t *testing.T) {
	rl := newRateLimiter()
	defer rl.stop()

	for i := 0; i < 10; i++ {
		if ok, _ := rl.allow("203.0.113.5", classHeavy, nil); !ok {
			t.Fatalf("heavy request %d blocked below the limit", i+1)
		}
	}
	if ok, _ := rl.allow("203.0.113.5", classHeavy, nil); ok {
		t.Error("heavy request 11 allowed over the limit")
	}

	// Exhausting the heavy budget leaves form posts untouched.
	if ok, _ := rl.allow("203.0.113.5", classForm, nil); !ok {
		t.Error("form request blocked by the heavy class budget")
	}
}

func TestRateLimiterWindowRollsOver(t *testing.T) {
	rl := newRateLimiter()
	defer rl.stop()

	for i := 0; i < 11; i++ {
		rl.allow("203.0.113.5", classHeavy, nil)
	}
	key := limitKey{ip: "203.0.113.5", class: classHeavy}

	rl.mu.Lock()
	rl.windows[key].startedAt = time.Now().Add(-limitWindow - time.Second)
	rl.mu.Unlock()

	if ok, _ := rl.allow("203.0.113.5", classHeavy, nil); !ok {
		t.Error("request blocked after the window rolled over")
	}
	rl.mu.Lock()
	count := rl.windows[key].count
	rl.mu.Unlock()
	if count != 1 {
		t.Errorf("count after rollover = %d, want 1", count)
	}
}

func TestRateLimiterSweepRemovesStaleWindows(t *testing.T) {
	rl := newRateLimiter()
	defer rl.stop()

	rl.allow("203.0.113.5", classForm, nil)
	rl.allow("203.0.113.7", classHeavy, nil)
	key := limitKey{ip: "203.0.113.5", class: classForm}

	rl.mu.Lock()
	rl.windows[key].startedAt = time.Now().Add(-11 * time.Minute)
	rl.mu.Unlock()

	if removed := rl.sweepStale(); removed != 1 {
		t.Errorf("sweepStale removed %d windows, want 1", removed)
	}

	rl.mu.Lock()
	_, stale := rl.windows[key]
	_, fresh := rl.windows[limitKey{ip: "203.0.113.7", class: classHeavy}]
	rl.mu.Unlock()
	if stale {
		t.Error("stale window survived the sweep")
	}
	if !fresh {
		t.Error("fresh window removed by the sweep")
	}
}

func TestLimitClassFor(t *testing.T) {
	tests := []struct {
		method  string
		path    string
		class   limitClass
		limited bool
	}{
		{"GET", "/", 0, false},
		{"GET", "/expenses/month", 0, false},
		{"GET", "/export/csv", classHeavy, true},
		{"GET", "/export/pdf", classHeavy, true},
		{"POST", "/expenses", classForm, true},
		{"POST", "/budgets", classForm, true},
		{"POST", "/import", classHeavy, true},
		{"POST", "/recurring/generate", classHeavy, true},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			r := httptest.NewRequest(tt.method, tt.path, nil)
			class, limited := limitClassFor(r)
			if limited != tt.limited {
				t.Fatalf("limited = %v, want %v", limited, tt.limited)
			}
			if limited && class != tt.class {
				t.Errorf("class = %d, want %d", class, tt.class)
			}
		})
	}
}

func TestExtractClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		xff        string
		xri        string
		want       string
	}{
		{
			name:       "direct connection",
			remoteAddr: "203.0.113.5:1234",
			want:       "203.0.113.5",
		},
		{
			name:       "forwarded header from untrusted peer is ignored",
			remoteAddr: "203.0.113.5:1234",
			xff:        "198.51.100.7",
			want:       "203.0.113.5",
		},
		{
			name:       "forwarded header from trusted proxy",
			remoteAddr: "10.0.0.2:1234",
			xff:        "198.51.100.7",
			want:       "198.51.100.7",
		},
		{
			name:       "first hop of a forwarded chain",
			remoteAddr: "192.168.1.1:1234",
			xff:        "198.51.100.7, 10.0.0.2",
			want:       "198.51.100.7",
		},
		{
			name:       "x-real-ip from trusted proxy",
			remoteAddr: "127.0.0.1:1234",
			xri:        "198.51.100.7",
			want:       "198.51.100.7",
		},
		{
			name:       "garbage forwarded value falls back to peer",
			remoteAddr: "10.0.0.2:1234",
			xff:        "not-an-ip",
			want:       "10.0.0.2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			r.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				r.Header.Set("X-Real-IP", tt.xri)
			}

			if got := extractClientIP(r, nil); got != tt.want {
				t.Errorf("extractClientIP = %q, want %q", got, tt.want)
			}
		})
	}
}
