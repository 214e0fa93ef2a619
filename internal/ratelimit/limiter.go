package ratelimit

import (
	"sync"
	"time"
)

// Clock abstracts time so tests can control it
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns the wall clock
func SystemClock() Clock { return systemClock{} }

// Limiter enforces a minimum interval between successful fetches of one feed.
// It is safe to share between concurrent pipeline cycles.
type Limiter struct {
	mu            sync.Mutex
	clock         Clock
	minInterval   time.Duration
	lastFetchTime time.Time
	inFlight      bool
}

// New creates a limiter; a nil clock means the system clock
func New(minInterval time.Duration, clock Clock) *Limiter {
	if clock == nil {
		clock = SystemClock()
	}
	return &Limiter{minInterval: minInterval, clock: clock}
}

// Permit is handed out by Acquire and must be completed exactly once
type Permit struct {
	limiter   *Limiter
	startedAt time.Time
	done      bool
}

// Acquire checks the interval and, if a fetch is allowed, reserves the feed.
// While a permit is outstanding all other callers are denied.
func (l *Limiter) Acquire() (*Permit, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.inFlight {
		return nil, false
	}
	now := l.clock.Now()
	if !l.lastFetchTime.IsZero() && now.Sub(l.lastFetchTime) < l.minInterval {
		return nil, false
	}

	l.inFlight = true
	return &Permit{limiter: l, startedAt: now}, true
}

// Complete releases the reservation. lastFetchTime only moves on success,
// and moves to when the fetch was acquired so spacing does not drift by the
// fetch duration.
func (p *Permit) Complete(success bool) {
	if p == nil || p.done {
		return
	}
	p.done = true

	l := p.limiter
	l.mu.Lock()
	defer l.mu.Unlock()

	l.inFlight = false
	if success {
		l.lastFetchTime = p.startedAt
	}
}

// LastFetchTime returns when the last successful fetch started
func (l *Limiter) LastFetchTime() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastFetchTime
}

// MinInterval returns the configured spacing
func (l *Limiter) MinInterval() time.Duration {
	return l.minInterval
}

// NextAllowed returns when the next fetch may happen
func (l *Limiter) NextAllowed() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.lastFetchTime.IsZero() {
		return time.Time{}
	}
	return l.lastFetchTime.Add(l.minInterval)
}
