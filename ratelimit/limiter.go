// Package ratelimit provides per-session sliding-window admission control.
//
// Information Hiding:
// - Window bookkeeping (timestamp slices, expiry) hidden behind Admit/Reset
// - Clock injectable for deterministic tests
package ratelimit

import (
	"sync"
	"time"
)

// Default admission ceilings.
const (
	DefaultPerMinute = 50
	DefaultPerHour   = 1000
)

const (
	minuteWindow = time.Minute
	hourWindow   = time.Hour
)

// Reason explains an admission decision.
type Reason string

const (
	// ReasonOK means the request was admitted.
	ReasonOK Reason = "ok"
	// ReasonMinute means the trailing-minute ceiling was hit.
	ReasonMinute Reason = "rate_limit_minute"
	// ReasonHour means the trailing-hour ceiling was hit.
	ReasonHour Reason = "rate_limit_hour"
)

// Result is the outcome of an admission check.
type Result struct {
	Allowed bool
	Reason  Reason
}

// Limiter applies sliding-window rate limits per session. Admitted
// requests consume quota; denied attempts are never recorded, so a
// denial does not extend the caller's wait.
type Limiter struct {
	mu        sync.Mutex
	windows   map[string][]time.Time
	perMinute int
	perHour   int
	now       func() time.Time
}

// New creates a limiter with the given ceilings. Non-positive values
// select the defaults.
func New(perMinute, perHour int) *Limiter {
	if perMinute <= 0 {
		perMinute = DefaultPerMinute
	}
	if perHour <= 0 {
		perHour = DefaultPerHour
	}
	return &Limiter{
		windows:   make(map[string][]time.Time),
		perMinute: perMinute,
		perHour:   perHour,
		now:       time.Now,
	}
}

// Admit checks and, when allowed, records one request for sessionID.
func (l *Limiter) Admit(sessionID string) Result {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	recent := discardExpired(l.windows[sessionID], now)

	lastMinute := 0
	for _, ts := range recent {
		if now.Sub(ts) < minuteWindow {
			lastMinute++
		}
	}

	if lastMinute >= l.perMinute {
		l.windows[sessionID] = recent
		return Result{Allowed: false, Reason: ReasonMinute}
	}
	if len(recent) >= l.perHour {
		l.windows[sessionID] = recent
		return Result{Allowed: false, Reason: ReasonHour}
	}

	l.windows[sessionID] = append(recent, now)
	return Result{Allowed: true, Reason: ReasonOK}
}

// Reset clears the recorded window for sessionID.
func (l *Limiter) Reset(sessionID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.windows, sessionID)
}

// Count returns the number of admitted requests within the trailing hour
// for sessionID.
func (l *Limiter) Count(sessionID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(discardExpired(l.windows[sessionID], l.now()))
}

// discardExpired drops timestamps older than the hour window.
func discardExpired(window []time.Time, now time.Time) []time.Time {
	recent := window[:0:len(window)]
	for _, ts := range window {
		if now.Sub(ts) < hourWindow {
			recent = append(recent, ts)
		}
	}
	return recent
}
