package kvconf

import (
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu    sync.Mutex
	now   time.Time
	slept time.Duration
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	c.slept += d
}

func newTestRateLimiter(bytesPerSecond int64, mode RateLimiterMode) (*GenericRateLimiter, *fakeClock) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	rl := NewGenericRateLimiter(bytesPerSecond, 0, mode)
	rl.now = clock.Now
	rl.sleep = clock.Sleep
	rl.lastRefillTime = clock.Now()
	return rl, clock
}

func TestRateLimiter_WaitsForTokens(t *testing.T) {
	rl, clock := newTestRateLimiter(1000, RateLimiterModeWritesOnly)

	// The bucket starts with a tenth of a second worth of bytes.
	rl.Request(100, IOPriorityLow)
	if clock.slept != 0 {
		t.Fatalf("first request slept %v", clock.slept)
	}

	rl.Request(500, IOPriorityLow)
	if clock.slept != 500*time.Millisecond {
		t.Errorf("slept %v, want 500ms", clock.slept)
	}
	if got := rl.GetTotalBytesThrough(IOPriorityLow); got != 600 {
		t.Errorf("GetTotalBytesThrough = %d, want 600", got)
	}
}

func TestRateLimiter_WritesOnlySkipsHighPriority(t *testing.T) {
	rl, clock := newTestRateLimiter(10, RateLimiterModeWritesOnly)

	rl.Request(1<<20, IOPriorityHigh)
	if clock.slept != 0 {
		t.Errorf("high priority request slept %v", clock.slept)
	}
	if rl.IsRateLimited(IOPriorityHigh) {
		t.Error("high priority is rate limited in writes-only mode")
	}
	if !rl.IsRateLimited(IOPriorityLow) {
		t.Error("low priority is not rate limited in writes-only mode")
	}
	if got := rl.GetTotalBytesThrough(IOPriorityHigh); got != 1<<20 {
		t.Errorf("GetTotalBytesThrough = %d", got)
	}
}

func TestRateLimiter_LargeRequestBounded(t *testing.T) {
	rl, clock := newTestRateLimiter(1000, RateLimiterModeAllIO)

	// Larger than the one second burst: waits for a full bucket, then goes
	// into debt.
	rl.Request(5000, IOPriorityHigh)
	if clock.slept != 900*time.Millisecond {
		t.Errorf("slept %v, want 900ms", clock.slept)
	}
}

func TestRateLimiter_SetBytesPerSecond(t *testing.T) {
	rl := NewRateLimiter(100)
	if rl.GetBytesPerSecond() != 100 {
		t.Errorf("GetBytesPerSecond = %d", rl.GetBytesPerSecond())
	}
	rl.SetBytesPerSecond(200)
	if rl.GetBytesPerSecond() != 200 {
		t.Errorf("GetBytesPerSecond = %d", rl.GetBytesPerSecond())
	}
}

func TestRateLimiter_ReadsOnly(t *testing.T) {
	rl, _ := newTestRateLimiter(1000, RateLimiterModeReadsOnly)
	if !rl.IsRateLimited(IOPriorityHigh) || rl.IsRateLimited(IOPriorityLow) {
		t.Error("reads-only mode limits the wrong priority")
	}
}
