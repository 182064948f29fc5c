package ratelimit

import (
	"sync"
	"time"
)

// TokenBucket refills at an integer rate of tokens per second against an
// injected Clock. Token accounting is done in nano-tokens (1 token = 1e9) so
// refill never accumulates float rounding error; at a rate of R tokens/sec,
// one elapsed nanosecond adds exactly R nano-tokens.
type TokenBucket struct {
	mu sync.Mutex

	clock    Clock
	capacity int64 // nano-tokens
	rate     int64 // tokens/sec == nano-tokens/ns

	available int64 // nano-tokens
	last      time.Time
}

const nanosPerToken = int64(time.Second)

// NewTokenBucket creates a bucket that starts full. Non-positive capacity or
// rate produce a bucket that always rejects once drained.
func NewTokenBucket(clock Clock, capacityTokens, tokensPerSecond int64) *TokenBucket {
	if clock == nil {
		clock = RealClock{}
	}
	rate := tokensPerSecond
	if rate < 0 {
		rate = 0
	}
	capacity := saturatingNanoTokens(capacityTokens)
	return &TokenBucket{
		clock:     clock,
		capacity:  capacity,
		rate:      rate,
		available: capacity,
		last:      clock.Now(),
	}
}

// Allow consumes tokens if available. tokens <= 0 always succeeds.
func (b *TokenBucket) Allow(tokens int64) bool {
	if tokens <= 0 {
		return true
	}
	cost := saturatingNanoTokens(tokens)

	b.mu.Lock()
	defer b.mu.Unlock()

	b.refill()
	if b.available < cost {
		return false
	}
	b.available -= cost
	return true
}

func (b *TokenBucket) refill() {
	now := b.clock.Now()
	if now.Before(b.last) {
		// Clock went backwards; re-anchor without refilling.
		b.last = now
		return
	}
	elapsed := now.Sub(b.last).Nanoseconds()
	b.last = now
	if elapsed <= 0 || b.rate <= 0 || b.available >= b.capacity {
		return
	}

	// elapsed*rate can overflow for long idle periods; if the elapsed time is
	// enough to fill the bucket, clamp instead of multiplying.
	need := b.capacity - b.available
	if elapsed > need/b.rate {
		b.available = b.capacity
		return
	}
	b.available += elapsed * b.rate
	if b.available > b.capacity {
		b.available = b.capacity
	}
}

func saturatingNanoTokens(tokens int64) int64 {
	if tokens <= 0 {
		return 0
	}
	const maxInt64 = int64(^uint64(0) >> 1)
	if tokens > maxInt64/nanosPerToken {
		return maxInt64
	}
	return tokens * nanosPerToken
}
