package service

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"

	"github.com/yndnr/tokvault-go/internal/core/domain"
)

const (
	limiterCapacity = 65536
	limiterIdle     = 10 * time.Minute
)

// RateLimiterRegistry holds one token bucket per API key or client
// address. Buckets idle for ten minutes are evicted, which also bounds the
// memory a stream of spoofed addresses can pin.
type RateLimiterRegistry struct {
	mu       sync.Mutex
	limiters *expirable.LRU[string, *rate.Limiter]
}

func NewRateLimiterRegistry() *RateLimiterRegistry {
	return &RateLimiterRegistry{
		limiters: expirable.NewLRU[string, *rate.Limiter](limiterCapacity, nil, limiterIdle),
	}
}

// GetOrCreate returns the bucket of key. A new bucket refills at perSecond
// with a burst of the same size; non-positive values use
// domain.DefaultRateLimit.
func (r *RateLimiterRegistry) GetOrCreate(key string, perSecond int) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()
	if l, ok := r.limiters.Get(key); ok {
		return l
	}
	if perSecond <= 0 {
		perSecond = domain.DefaultRateLimit
	}
	l := rate.NewLimiter(rate.Limit(perSecond), perSecond)
	r.limiters.Add(key, l)
	return l
}

func (r *RateLimiterRegistry) Delete(key string) {
	r.limiters.Remove(key)
}

// Clear drops every bucket.
func (r *RateLimiterRegistry) Clear() {
	r.limiters.Purge()
}

func (r *RateLimiterRegistry) Len() int {
	return r.limiters.Len()
}
