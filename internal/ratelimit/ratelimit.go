// Package ratelimit enforces a minimum interval between accepted calls per user.
package ratelimit

import (
	"sync"
	"time"
)

// Decision is the outcome of a Check.
// Notify is set only on the first rejection after an accepted call.
type Decision struct {
	Allowed bool
	Notify  bool
}

type entry struct {
	last     time.Time
	notified bool
}

// Limiter tracks the last accepted call per user. It is safe for concurrent use.
type Limiter struct {
	mu      sync.Mutex
	entries map[int64]*entry
	now     func() time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// New creates a Limiter.
func New(opts ...Option) *Limiter {
	l := &Limiter{
		entries: make(map[int64]*entry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Check records a call by userID. The call is accepted when at least
// minInterval has elapsed since the last accepted one.
func (l *Limiter) Check(userID int64, minInterval time.Duration) Decision {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[userID]
	if !ok {
		l.entries[userID] = &entry{last: now}
		return Decision{Allowed: true}
	}

	if now.Sub(e.last) >= minInterval {
		e.last = now
		e.notified = false
		return Decision{Allowed: true}
	}

	if e.notified {
		return Decision{}
	}
	e.notified = true
	return Decision{Notify: true}
}

// Allow is Check without the notice flag.
func (l *Limiter) Allow(userID int64, minInterval time.Duration) bool {
	return l.Check(userID, minInterval).Allowed
}

// Sweep forgets users whose last accepted call is older than idle and
// returns how many were removed.
func (l *Limiter) Sweep(idle time.Duration) int {
	cutoff := l.now().Add(-idle)

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for id, e := range l.entries {
		if e.last.Before(cutoff) {
			delete(l.entries, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked users.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
