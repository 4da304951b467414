// rate_limiter.go implements the token bucket attached to engine options when
// rate-bytes-per-sec is positive.
//
// Reference: RocksDB v10.7.5
//   - include/rocksdb/rate_limiter.h
//   - util/rate_limiter.cc
package kvconf

import (
	"sync"
	"time"
)

// RateLimiterMode specifies which I/O is throttled.
type RateLimiterMode int

const (
	// RateLimiterModeReadsOnly applies rate limiting only to reads.
	RateLimiterModeReadsOnly RateLimiterMode = iota
	// RateLimiterModeWritesOnly applies rate limiting only to flush and compaction writes.
	RateLimiterModeWritesOnly
	// RateLimiterModeAllIO applies rate limiting to all I/O.
	RateLimiterModeAllIO
)

// IOPriority specifies the priority of I/O operations.
type IOPriority int

const (
	// IOPriorityLow is for background operations like compaction.
	IOPriorityLow IOPriority = iota
	// IOPriorityHigh is for user reads and writes.
	IOPriorityHigh
	// IOPriorityTotal is the count of priorities.
	IOPriorityTotal
)

// RateLimiter controls the rate of I/O operations.
type RateLimiter interface {
	// Request blocks until bytes may pass at the given priority.
	Request(bytes int64, priority IOPriority)

	// SetBytesPerSecond changes the rate limit.
	SetBytesPerSecond(bytesPerSecond int64)

	// GetBytesPerSecond returns the current rate limit.
	GetBytesPerSecond() int64

	// GetTotalBytesThrough returns total bytes passed at priority.
	GetTotalBytesThrough(priority IOPriority) int64

	// IsRateLimited reports whether requests at priority are throttled.
	IsRateLimited(priority IOPriority) bool
}

// GenericRateLimiter is a token bucket refilled continuously with a burst of
// one second worth of bytes.
type GenericRateLimiter struct {
	mu sync.Mutex

	bytesPerSecond int64
	refillPeriod   time.Duration
	mode           RateLimiterMode

	availableBytes int64
	lastRefillTime time.Time

	totalBytesThrough [IOPriorityTotal]int64

	now   func() time.Time
	sleep func(time.Duration)
}

// NewGenericRateLimiter creates a limiter. A refill period of zero uses 100ms.
func NewGenericRateLimiter(bytesPerSecond int64, refillPeriod time.Duration, mode RateLimiterMode) *GenericRateLimiter {
	if refillPeriod <= 0 {
		refillPeriod = 100 * time.Millisecond
	}
	rl := &GenericRateLimiter{
		bytesPerSecond: bytesPerSecond,
		refillPeriod:   refillPeriod,
		mode:           mode,
		now:            time.Now,
		sleep:          time.Sleep,
	}
	rl.lastRefillTime = rl.now()
	rl.availableBytes = bytesPerSecond / 10
	return rl
}

// NewRateLimiter creates a write-only limiter with the given rate, as attached
// by the engine config builder.
func NewRateLimiter(bytesPerSecond int64) RateLimiter {
	return NewGenericRateLimiter(bytesPerSecond, 0, RateLimiterModeWritesOnly)
}

// Request blocks until bytes may pass. Requests at unthrottled priorities
// are only counted.
func (rl *GenericRateLimiter) Request(bytes int64, priority IOPriority) {
	if bytes <= 0 {
		return
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.totalBytesThrough[priority] += bytes
	if !rl.limited(priority) || rl.bytesPerSecond <= 0 {
		return
	}

	rl.refill()
	for rl.availableBytes < bytes && rl.availableBytes < rl.bytesPerSecond {
		needed := bytes - rl.availableBytes
		wait := min(time.Duration(needed)*time.Second/time.Duration(rl.bytesPerSecond), rl.refillPeriod)

		rl.mu.Unlock()
		rl.sleep(wait)
		rl.mu.Lock()

		rl.refill()
	}
	// Requests larger than the burst drain the bucket into debt.
	rl.availableBytes -= bytes
}

// refill must be called with rl.mu held.
func (rl *GenericRateLimiter) refill() {
	now := rl.now()
	elapsed := now.Sub(rl.lastRefillTime)
	if elapsed <= 0 {
		return
	}
	rl.availableBytes += int64(float64(rl.bytesPerSecond) * elapsed.Seconds())
	rl.lastRefillTime = now
	rl.availableBytes = min(rl.availableBytes, rl.bytesPerSecond)
}

// SetBytesPerSecond changes the rate limit.
func (rl *GenericRateLimiter) SetBytesPerSecond(bytesPerSecond int64) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.bytesPerSecond = bytesPerSecond
}

// GetBytesPerSecond returns the current rate limit.
func (rl *GenericRateLimiter) GetBytesPerSecond() int64 {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return rl.bytesPerSecond
}

// GetTotalBytesThrough returns total bytes passed through the limiter.
func (rl *GenericRateLimiter) GetTotalBytesThrough(priority IOPriority) int64 {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return rl.totalBytesThrough[priority]
}

// IsRateLimited returns true if the priority is rate limited.
func (rl *GenericRateLimiter) IsRateLimited(priority IOPriority) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return rl.limited(priority)
}

func (rl *GenericRateLimiter) limited(priority IOPriority) bool {
	switch rl.mode {
	case RateLimiterModeReadsOnly:
		return priority == IOPriorityHigh
	case RateLimiterModeWritesOnly:
		return priority == IOPriorityLow
	case RateLimiterModeAllIO:
		return true
	default:
		return false
	}
}
