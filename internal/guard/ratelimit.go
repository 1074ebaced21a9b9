package guard

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// Rate-limit defaults.
const (
	DefaultBurst        = 20
	DefaultRefillPerSec = 5
	DefaultMaxBuckets   = 10000
)

type bucketKey struct {
	client string
	route  string
}

// RateLimiter keeps one token bucket per (client, route). Buckets live in
// a bounded LRU cache; an evicted client starts again with a full bucket.
type RateLimiter struct {
	burst  int
	refill rate.Limit
	now    func() time.Time

	mu      sync.Mutex
	buckets *lru.Cache[bucketKey, *rate.Limiter]
}

// RateLimiterOption configures a RateLimiter.
type RateLimiterOption func(*RateLimiter)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) RateLimiterOption {
	return func(r *RateLimiter) {
		if now != nil {
			r.now = now
		}
	}
}

// NewRateLimiter creates a limiter with the given burst, refill rate in
// tokens per second and maximum number of tracked buckets.
func NewRateLimiter(burst int, refillPerSec float64, maxBuckets int, opts ...RateLimiterOption) (*RateLimiter, error) {
	if burst <= 0 || refillPerSec <= 0 || maxBuckets <= 0 {
		return nil, eris.Errorf("guard: invalid rate limit (burst=%d refill=%.2f max_buckets=%d)", burst, refillPerSec, maxBuckets)
	}
	cache, err := lru.New[bucketKey, *rate.Limiter](maxBuckets)
	if err != nil {
		return nil, eris.Wrap(err, "guard: create bucket cache")
	}
	r := &RateLimiter{
		burst:   burst,
		refill:  rate.Limit(refillPerSec),
		now:     time.Now,
		buckets: cache,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Allow consumes one token from the (clientID, route) bucket. It returns
// false when less than one token is available.
func (r *RateLimiter) Allow(clientID, route string) bool {
	return r.bucket(bucketKey{client: clientID, route: route}).AllowN(r.now(), 1)
}

// Len returns the number of tracked buckets.
func (r *RateLimiter) Len() int {
	return r.buckets.Len()
}

func (r *RateLimiter) bucket(k bucketKey) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()
	if lim, ok := r.buckets.Get(k); ok {
		return lim
	}
	lim := rate.NewLimiter(r.refill, r.burst)
	r.buckets.Add(k, lim)
	return lim
}
