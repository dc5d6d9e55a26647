// Package ratelimit gates composition requests per caller with a token bucket.
//
// Buckets refill continuously from elapsed wall-clock time, evaluated when a
// request arrives; nothing runs in the background. The bucket map is never
// pruned, so memory grows with the number of distinct callers seen by the
// process.
package ratelimit

import (
	"errors"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	DefaultCapacity = 10
	DefaultWindow   = 60 * time.Second

	// DefaultCaller is used when a request carries no caller identity.
	DefaultCaller = "local"
)

// ErrRateLimited maps to HTTP 429 at the transport.
var ErrRateLimited = errors.New("rate limit exceeded, try again soon")

type Config struct {
	// Capacity is both the bucket size and the number of tokens restored per Window.
	Capacity int
	Window   time.Duration
}

type Limiter struct {
	limit    rate.Limit
	capacity int
	now      func() time.Time

	mu      sync.Mutex
	buckets map[string]*rate.Limiter
}

func New(cfg Config) *Limiter {
	return NewWithClock(cfg, time.Now)
}

func NewWithClock(cfg Config, now func() time.Time) *Limiter {
	if cfg.Capacity < 1 {
		cfg.Capacity = DefaultCapacity
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if now == nil {
		now = time.Now
	}
	return &Limiter{
		limit:    rate.Limit(float64(cfg.Capacity) / cfg.Window.Seconds()),
		capacity: cfg.Capacity,
		now:      now,
		buckets:  make(map[string]*rate.Limiter),
	}
}

// Admit debits one token from the caller's bucket or returns ErrRateLimited.
// Each bucket serializes its own refill-and-debit, so concurrent requests from
// the same caller cannot double-spend.
func (l *Limiter) Admit(callerID string) error {
	if l.bucket(callerID).AllowN(l.now(), 1) {
		return nil
	}
	return ErrRateLimited
}

// Tokens reports the caller's bucket level as of now, after lazy refill.
func (l *Limiter) Tokens(callerID string) float64 {
	key := normalizeCaller(callerID)
	l.mu.Lock()
	b, ok := l.buckets[key]
	l.mu.Unlock()
	if !ok {
		return float64(l.capacity)
	}
	return b.TokensAt(l.now())
}

func (l *Limiter) Capacity() int {
	return l.capacity
}

func (l *Limiter) bucket(callerID string) *rate.Limiter {
	key := normalizeCaller(callerID)

	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok {
		// rate.NewLimiter starts full, which is what first-seen callers get.
		b = rate.NewLimiter(l.limit, l.capacity)
		l.buckets[key] = b
	}
	return b
}

func normalizeCaller(callerID string) string {
	if id := strings.TrimSpace(callerID); id != "" {
		return id
	}
	return DefaultCaller
}
