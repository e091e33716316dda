package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/rcvscrap/config"
	"github.com/use-agent/rcvscrap/models"
	"golang.org/x/time/rate"
)

// idleBucketTTL is how long a caller's bucket survives without requests.
const idleBucketTTL = time.Hour

// RateLimit caps every protected route per caller.
func RateLimit(cfg config.RateLimitConfig) gin.HandlerFunc {
	return newLimiterSet(rate.Limit(cfg.RequestsPerSecond), cfg.Burst).
		handler("rate limit exceeded, please slow down")
}

// ExtractLimit caps how often one caller may start a run. A run holds the
// only browser session for minutes, so the budget is cfg.ExtractPerMinute
// starts with no burst.
func ExtractLimit(cfg config.RateLimitConfig) gin.HandlerFunc {
	return newLimiterSet(rate.Limit(cfg.ExtractPerMinute/60), 1).
		handler("too many extraction requests, wait before starting another run")
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// limiterSet keeps one token bucket per caller.
type limiterSet struct {
	limit rate.Limit
	burst int

	mu      sync.Mutex
	buckets map[string]*bucket
}

func newLimiterSet(limit rate.Limit, burst int) *limiterSet {
	s := &limiterSet{limit: limit, burst: burst, buckets: make(map[string]*bucket)}
	go s.sweep(5 * time.Minute)
	return s
}

func (s *limiterSet) get(caller string, now time.Time) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.buckets[caller]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(s.limit, s.burst)}
		s.buckets[caller] = b
	}
	b.lastSeen = now
	return b.limiter
}

// sweep drops buckets idle for longer than idleBucketTTL.
func (s *limiterSet) sweep(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for now := range ticker.C {
		cutoff := now.Add(-idleBucketTTL)
		s.mu.Lock()
		for caller, b := range s.buckets {
			if b.lastSeen.Before(cutoff) {
				delete(s.buckets, caller)
			}
		}
		s.mu.Unlock()
	}
}

// handler rejects a caller whose bucket is empty with 429. Retry-After
// carries the wait until the next token when the limiter can tell.
func (s *limiterSet) handler(message string) gin.HandlerFunc {
	return func(c *gin.Context) {
		now := time.Now()
		r := s.get(Caller(c), now).ReserveN(now, 1)
		if !r.OK() {
			abort(c, http.StatusTooManyRequests, models.ErrCodeRateLimited, message)
			return
		}
		if wait := r.DelayFrom(now); wait > 0 {
			r.CancelAt(now)
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			abort(c, http.StatusTooManyRequests, models.ErrCodeRateLimited, message)
			return
		}
		c.Next()
	}
}
