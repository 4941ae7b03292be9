// Package ratelimit throttles inbound control calls with per-key token buckets.
package ratelimit

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrRateLimited is returned by CheckLimit when a tool's bucket is empty.
var ErrRateLimited = errors.New("rate limit exceeded")

// Limiter implements a per-key token bucket rate limiter.
// It is safe for concurrent use.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	rate    float64 // tokens per second
	burst   int     // bucket capacity, also the initial token count
	nowFunc func() time.Time
}

type bucket struct {
	tokens    float64
	lastCheck time.Time
}

// NewLimiter creates a rate limiter with the given rate (tokens/sec) and burst size.
func NewLimiter(rate float64, burst int) *Limiter {
	return &Limiter{
		buckets: make(map[string]*bucket),
		rate:    rate,
		burst:   burst,
		nowFunc: time.Now,
	}
}

// refill returns the bucket for key topped up to now. Callers hold l.mu.
func (l *Limiter) refill(key string) *bucket {
	now := l.nowFunc()

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: float64(l.burst), lastCheck: now}
		l.buckets[key] = b
		return b
	}

	if elapsed := now.Sub(b.lastCheck).Seconds(); elapsed > 0 {
		b.tokens = min(b.tokens+l.rate*elapsed, float64(l.burst))
		b.lastCheck = now
	}
	return b
}

// Allow takes a token for key if one is available.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.refill(key)
	if b.tokens < 1.0 {
		return false
	}
	b.tokens--
	return true
}

// Remaining returns the whole tokens currently available for key.
func (l *Limiter) Remaining(key string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return int(l.refill(key).tokens)
}

// Limit is a rate (per second) and burst pair.
type Limit struct {
	Rate  float64
	Burst int
}

// DefaultLimits are the per-tool limits of the MCP control surface.
// Predictions arrive from a classifier at most a few times per second;
// protocol commands are human-paced.
var DefaultLimits = map[string]Limit{
	"cvep_predict":  {Rate: 10, Burst: 20},
	"cvep_train":    {Rate: 6.0 / 60.0, Burst: 2},
	"cvep_test":     {Rate: 6.0 / 60.0, Burst: 2},
	"cvep_stop":     {Rate: 1, Burst: 5},
	"cvep_status":   {Rate: 5, Burst: 20},
	"cvep_events":   {Rate: 2, Burst: 10},
	"cvep_snapshot": {Rate: 1, Burst: 5},
}

// ToolLimiters maps tool names to their rate limiters.
type ToolLimiters map[string]*Limiter

// NewToolLimiters creates a limiter per tool in DefaultLimits.
func NewToolLimiters() ToolLimiters {
	limiters := make(ToolLimiters, len(DefaultLimits))
	for tool, lim := range DefaultLimits {
		limiters[tool] = NewLimiter(lim.Rate, lim.Burst)
	}
	return limiters
}

// CheckLimit returns nil if toolName may run now, or an error wrapping
// ErrRateLimited. Tools without a configured limiter are always allowed.
func CheckLimit(limiters ToolLimiters, toolName string) error {
	limiter, ok := limiters[toolName]
	if !ok {
		return nil
	}

	if !limiter.Allow(toolName) {
		return fmt.Errorf("%w for %s, please try again shortly", ErrRateLimited, toolName)
	}

	return nil
}
