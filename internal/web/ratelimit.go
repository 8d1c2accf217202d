package web

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/JonMunkholm/dummycsv/internal/core"
)

// rateLimiter counts requests per client address in fixed windows. The
// counts of a finished window are dropped when the next one starts.
type rateLimiter struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	current time.Time // start of the window being counted
	counts  map[string]int
}

func newRateLimiter(limit int, window time.Duration) *rateLimiter {
	return &rateLimiter{
		limit:  limit,
		window: window,
		now:    time.Now,
		counts: make(map[string]int),
	}
}

// allow records one request from addr and reports whether it fits the limit.
func (rl *rateLimiter) allow(addr string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if start := rl.now().Truncate(rl.window); !start.Equal(rl.current) {
		rl.current = start
		clear(rl.counts)
	}
	if rl.counts[addr] >= rl.limit {
		return false
	}
	rl.counts[addr]++
	return true
}

// retryAfter is the number of seconds until the current window ends.
func (rl *rateLimiter) retryAfter() int {
	rl.mu.Lock()
	end := rl.current.Add(rl.window)
	rl.mu.Unlock()

	secs := int(end.Sub(rl.now()).Seconds()) + 1
	return max(secs, 1)
}

// middleware rejects requests over the limit with 429. RemoteAddr has
// already been rewritten by TrustedRealIP.
func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		addr := r.RemoteAddr
		if host, _, err := net.SplitHostPort(addr); err == nil {
			addr = host
		}

		if !rl.allow(addr) {
			w.Header().Set("Retry-After", strconv.Itoa(rl.retryAfter()))
			writeJSON(w, http.StatusTooManyRequests, errorBody(core.MapError(errRateLimited), nil))
			return
		}
		next.ServeHTTP(w, r)
	})
}
