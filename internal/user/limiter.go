package user

import (
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// SignInLimiter throttles password attempts per email address.
// Idle addresses are swept at most once per idle period rather than on every attempt.
type SignInLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*limiterEntry
	every     time.Duration
	burst     int
	idle      time.Duration
	now       func() time.Time
	lastSweep time.Time
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewSignInLimiter allows burst attempts, refilled one per every.
func NewSignInLimiter(every time.Duration, burst int) *SignInLimiter {
	return &SignInLimiter{
		limiters: make(map[string]*limiterEntry),
		every:    every,
		burst:    burst,
		idle:     every * time.Duration(burst) * 2,
		now:      time.Now,
	}
}

func (l *SignInLimiter) Allow(email string) bool {
	key := strings.ToLower(strings.TrimSpace(email))
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) >= l.idle {
		l.sweep(now)
	}

	e, ok := l.limiters[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(rate.Every(l.every), l.burst)}
		l.limiters[key] = e
	}
	e.lastSeen = now
	return e.limiter.AllowN(now, 1)
}

func (l *SignInLimiter) sweep(now time.Time) {
	for k, e := range l.limiters {
		if now.Sub(e.lastSeen) > l.idle {
			delete(l.limiters, k)
		}
	}
	l.lastSweep = now
}

// Reset forgets the attempts for email after a successful sign-in.
func (l *SignInLimiter) Reset(email string) {
	key := strings.ToLower(strings.TrimSpace(email))
	l.mu.Lock()
	delete(l.limiters, key)
	l.mu.Unlock()
}
