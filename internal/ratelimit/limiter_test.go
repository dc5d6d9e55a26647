package ratelimit

import (
	"errors"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func TestAdmitRejectsEleventhWithinWindow(t *testing.T) {
	clock := newFakeClock()
	l := NewWithClock(Config{}, clock.Now)

	for i := 0; i < 10; i++ {
		if err := l.Admit("agent-1"); err != nil {
			t.Fatalf("request %d unexpectedly rejected: %v", i+1, err)
		}
	}
	if err := l.Admit("agent-1"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited on 11th request, got %v", err)
	}
}

func TestBucketRefillsAfterFullWindow(t *testing.T) {
	clock := newFakeClock()
	l := NewWithClock(Config{Capacity: 10, Window: time.Minute}, clock.Now)

	for i := 0; i < 10; i++ {
		_ = l.Admit("agent-1")
	}
	if got := l.Tokens("agent-1"); got >= 1 {
		t.Fatalf("expected empty bucket, got %f tokens", got)
	}

	clock.Advance(time.Minute)
	if got := l.Tokens("agent-1"); got != 10 {
		t.Fatalf("expected full bucket after a window, got %f", got)
	}
	for i := 0; i < 10; i++ {
		if err := l.Admit("agent-1"); err != nil {
			t.Fatalf("request %d after refill rejected: %v", i+1, err)
		}
	}
}

func TestFractionalRefill(t *testing.T) {
	clock := newFakeClock()
	l := NewWithClock(Config{Capacity: 10, Window: time.Minute}, clock.Now)
	for i := 0; i < 10; i++ {
		_ = l.Admit("agent-1")
	}

	clock.Advance(3 * time.Second)
	if err := l.Admit("agent-1"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("half a token must not admit, got %v", err)
	}

	clock.Advance(3 * time.Second)
	if err := l.Admit("agent-1"); err != nil {
		t.Fatalf("one refilled token should admit, got %v", err)
	}
	if err := l.Admit("agent-1"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected rejection after spending refilled token, got %v", err)
	}
}

func TestCallersAreIsolated(t *testing.T) {
	clock := newFakeClock()
	l := NewWithClock(Config{Capacity: 2, Window: time.Minute}, clock.Now)

	_ = l.Admit("a")
	_ = l.Admit("a")
	if err := l.Admit("a"); err == nil {
		t.Fatal("expected caller a to be limited")
	}
	if err := l.Admit("b"); err != nil {
		t.Fatalf("caller b must start with a full bucket: %v", err)
	}
	if got := l.Tokens("never-seen"); got != 2 {
		t.Fatalf("unseen caller should report full capacity, got %f", got)
	}
}

func TestEmptyCallerSharesLocalBucket(t *testing.T) {
	clock := newFakeClock()
	l := NewWithClock(Config{Capacity: 1, Window: time.Minute}, clock.Now)

	if err := l.Admit(""); err != nil {
		t.Fatalf("first anonymous request rejected: %v", err)
	}
	if err := l.Admit(DefaultCaller); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("blank caller should share the %q bucket, got %v", DefaultCaller, err)
	}
}

func TestTokensStayWithinBounds(t *testing.T) {
	clock := newFakeClock()
	l := NewWithClock(Config{}, clock.Now)
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 500; i++ {
		clock.Advance(time.Duration(rng.Intn(8000)) * time.Millisecond)
		_ = l.Admit("agent-1")
		got := l.Tokens("agent-1")
		if got < 0 || got > float64(l.Capacity()) {
			t.Fatalf("step %d: tokens %f outside [0,%d]", i, got, l.Capacity())
		}
	}
}

func TestConcurrentSameCallerAdmitsExactlyCapacity(t *testing.T) {
	clock := newFakeClock()
	l := NewWithClock(Config{}, clock.Now)

	var admitted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Admit("agent-1") == nil {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := admitted.Load(); got != 10 {
		t.Fatalf("expected exactly 10 admissions, got %d", got)
	}
}
