// Package ratelimit provides a per-client sliding-window request limiter for
// the public HTTP endpoints.
package ratelimit

import (
	"sync"
	"time"
)

const (
	window        = time.Minute
	sweepInterval = 5 * time.Minute
)

// Limiter allows up to a fixed number of requests per client key (normally
// the remote IP) within a sliding one-minute window. Requests over the
// limit are rejected, never queued.
type Limiter struct {
	limit int
	now   func() time.Time

	mu      sync.Mutex
	clients map[string][]time.Time
	stop    chan struct{}
	once    sync.Once
}

// New creates a Limiter allowing requestsPerMinute per key and starts a
// background sweep that drops idle keys. Call Close when done.
func New(requestsPerMinute int) *Limiter {
	l := &Limiter{
		limit:   requestsPerMinute,
		now:     time.Now,
		clients: make(map[string][]time.Time),
		stop:    make(chan struct{}),
	}
	go l.sweepLoop()
	return l
}

// Allow reports whether key may make a request now and records it if so.
func (l *Limiter) Allow(key string) bool {
	now := l.now()
	cutoff := now.Add(-window)

	l.mu.Lock()
	defer l.mu.Unlock()

	recent := l.clients[key][:0]
	for _, t := range l.clients[key] {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}

	if len(recent) >= l.limit {
		l.clients[key] = recent
		return false
	}
	l.clients[key] = append(recent, now)
	return true
}

// Close stops the background sweep.
func (l *Limiter) Close() {
	l.once.Do(func() { close(l.stop) })
}

func (l *Limiter) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			l.sweep()
		}
	}
}

// sweep removes keys whose every recorded request has aged out, so one-off
// clients do not accumulate forever.
func (l *Limiter) sweep() {
	cutoff := l.now().Add(-window)

	l.mu.Lock()
	defer l.mu.Unlock()

	for key, times := range l.clients {
		idle := true
		for _, t := range times {
			if t.After(cutoff) {
				idle = false
				break
			}
		}
		if idle {
			delete(l.clients, key)
		}
	}
}
