package ratelimit

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

type RateLimiter interface {
	Wait(ctx context.Context) error
	SetDelay(min, max time.Duration)
}

// SimpleRateLimiter enforces a jittered minimum spacing between actions.
type SimpleRateLimiter struct {
	mu       sync.Mutex
	minDelay time.Duration
	maxDelay time.Duration
	last     time.Time
	jitter   bool
}

func NewSimpleRateLimiter(minDelay, maxDelay time.Duration) *SimpleRateLimiter {
	return &SimpleRateLimiter{
		minDelay: minDelay,
		maxDelay: maxDelay,
		jitter:   true,
	}
}

func (r *SimpleRateLimiter) Wait(ctx context.Context) error {
	r.mu.Lock()
	elapsed := time.Since(r.last)
	delay := r.nextDelay()
	r.mu.Unlock()

	if elapsed < delay {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay - elapsed):
		}
	}

	r.mu.Lock()
	r.last = time.Now()
	r.mu.Unlock()
	return nil
}

func (r *SimpleRateLimiter) SetDelay(min, max time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.minDelay = min
	r.maxDelay = max
}

func (r *SimpleRateLimiter) nextDelay() time.Duration {
	if !r.jitter || r.minDelay >= r.maxDelay {
		return r.minDelay
	}
	return r.minDelay + time.Duration(rand.Int63n(int64(r.maxDelay-r.minDelay)))
}

// Adaptive limiter tuning. Quota errors from the verification API are
// throttling signals, so two in a row double the spacing; sustained success
// decays it back toward the configured floor.
const (
	adaptiveErrorThreshold = 2
	adaptiveSuccessStreak  = 5
	adaptiveBackoffFactor  = 2.0
	adaptiveDecayFactor    = 0.9
	adaptiveMinCeiling     = 30 * time.Second
	adaptiveMaxCeiling     = 60 * time.Second
)

// AdaptiveRateLimiter paces calls to the external verification service.
// The configured minDelay is the floor the limiter decays back to.
type AdaptiveRateLimiter struct {
	*SimpleRateLimiter
	floor        time.Duration
	errorStreak  int
	successCount int
}

func NewAdaptiveRateLimiter(minDelay, maxDelay time.Duration) *AdaptiveRateLimiter {
	return &AdaptiveRateLimiter{
		SimpleRateLimiter: NewSimpleRateLimiter(minDelay, maxDelay),
		floor:             minDelay,
	}
}

// RecordSuccess decays the spacing back toward the floor after a streak of
// successful calls.
func (a *AdaptiveRateLimiter) RecordSuccess() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.successCount++
	a.errorStreak = 0

	if a.successCount < adaptiveSuccessStreak {
		return
	}
	a.successCount = 0

	decayed := time.Duration(float64(a.minDelay) * adaptiveDecayFactor)
	if decayed < a.floor {
		decayed = a.floor
	}
	a.minDelay = decayed
}

// RecordError widens the spacing once errors persist. Capped so a flapping
// service cannot push the verifier pause past a minute.
func (a *AdaptiveRateLimiter) RecordError() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.errorStreak++
	a.successCount = 0

	if a.errorStreak < adaptiveErrorThreshold {
		return
	}
	a.errorStreak = 0

	a.minDelay = capDuration(time.Duration(float64(a.minDelay)*adaptiveBackoffFactor), adaptiveMinCeiling)
	a.maxDelay = capDuration(time.Duration(float64(a.maxDelay)*adaptiveBackoffFactor), adaptiveMaxCeiling)
}

func capDuration(d, max time.Duration) time.Duration {
	if d > max {
		return max
	}
	return d
}

// TokenBucketRateLimiter bounds worker throughput: a page fetch takes one
// token, tokens refill at a fixed rate, and a spacing delay keeps fetches
// from landing back to back even when the bucket is full.
type TokenBucketRateLimiter struct {
	mu         sync.Mutex
	tokens     int
	maxTokens  int
	refillRate time.Duration
	lastRefill time.Time
	spacing    time.Duration
}

func NewTokenBucketRateLimiter(maxTokens int, refillRate time.Duration) *TokenBucketRateLimiter {
	return &TokenBucketRateLimiter{
		tokens:     maxTokens,
		maxTokens:  maxTokens,
		refillRate: refillRate,
		lastRefill: time.Now(),
		spacing:    time.Second,
	}
}

func (t *TokenBucketRateLimiter) Wait(ctx context.Context) error {
	for {
		t.mu.Lock()
		t.refill()
		if t.tokens > 0 {
			t.tokens--
			spacing := t.spacing
			t.mu.Unlock()

			if spacing <= 0 {
				return nil
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(spacing):
				return nil
			}
		}
		retry := t.refillRate
		t.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retry):
		}
	}
}

// refill credits tokens for elapsed time. Callers must hold mu.
func (t *TokenBucketRateLimiter) refill() {
	credits := int(time.Since(t.lastRefill) / t.refillRate)
	if credits <= 0 {
		return
	}
	t.tokens += credits
	if t.tokens > t.maxTokens {
		t.tokens = t.maxTokens
	}
	t.lastRefill = time.Now()
}

func (t *TokenBucketRateLimiter) SetDelay(min, max time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.spacing = min
}
