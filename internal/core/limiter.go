package core

import (
	"context"
	"sync"
	"time"
)

const (
	// DefaultMaxConcurrentDownloads applies when no slot count is configured.
	DefaultMaxConcurrentDownloads = 10
	// DefaultMaxWaitTime applies when no wait is configured.
	DefaultMaxWaitTime = 10 * time.Second
)

// DownloadLimiter caps how many dataset files stream at once. A caller that
// finds every slot taken waits up to maxWait, then gets ErrTooManyDownloads.
type DownloadLimiter struct {
	slots   chan struct{}
	maxWait time.Duration

	mu       sync.Mutex
	active   int
	idle     chan struct{} // closed whenever active is zero
	served   uint64
	rejected uint64
}

// NewDownloadLimiter returns a limiter with maxConcurrent slots. Non-positive
// arguments fall back to the package defaults.
func NewDownloadLimiter(maxConcurrent int, maxWait time.Duration) *DownloadLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentDownloads
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxWaitTime
	}

	idle := make(chan struct{})
	close(idle)
	return &DownloadLimiter{
		slots:   make(chan struct{}, maxConcurrent),
		maxWait: maxWait,
		idle:    idle,
	}
}

// Acquire takes a slot. Every nil return must be paired with one Release.
func (l *DownloadLimiter) Acquire(ctx context.Context) error {
	timer := time.NewTimer(l.maxWait)
	defer timer.Stop()

	select {
	case l.slots <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		l.mu.Lock()
		l.rejected++
		l.mu.Unlock()
		return ErrTooManyDownloads
	}

	l.mu.Lock()
	if l.active == 0 {
		l.idle = make(chan struct{})
	}
	l.active++
	l.served++
	l.mu.Unlock()
	return nil
}

// Release returns a slot taken by Acquire.
func (l *DownloadLimiter) Release() {
	l.mu.Lock()
	l.active--
	if l.active == 0 {
		close(l.idle)
	}
	l.mu.Unlock()

	<-l.slots
}

// ActiveCount reports how many downloads hold a slot.
func (l *DownloadLimiter) ActiveCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active
}

// MaxConcurrent reports the slot count.
func (l *DownloadLimiter) MaxConcurrent() int { return cap(l.slots) }

// WaitForDrain returns once no download holds a slot, or with ctx's error.
func (l *DownloadLimiter) WaitForDrain(ctx context.Context) error {
	l.mu.Lock()
	idle := l.idle
	l.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// LimiterStatus is the limiter snapshot reported by /healthz.
type LimiterStatus struct {
	Active        int    `json:"active"`
	Available     int    `json:"available"`
	MaxConcurrent int    `json:"max_concurrent"`
	Served        uint64 `json:"served"`
	Rejected      uint64 `json:"rejected"`
}

func (l *DownloadLimiter) Status() LimiterStatus {
	l.mu.Lock()
	defer l.mu.Unlock()
	return LimiterStatus{
		Active:        l.active,
		Available:     cap(l.slots) - l.active,
		MaxConcurrent: cap(l.slots),
		Served:        l.served,
		Rejected:      l.rejected,
	}
}
