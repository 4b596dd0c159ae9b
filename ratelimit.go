package dtoapi

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitConfig configures the RateLimit middleware.
type RateLimitConfig struct {
	Rate    float64                                      // requests per second
	Burst   int                                          // max burst
	KeyFunc func(r *http.Request) string                 // default: remote IP
	OnLimit func(w http.ResponseWriter, r *http.Request) // default: 429 problem details

	// PerRoute gives every route its own budget per key. It needs the matched
	// pattern, so use it through WithGroupMiddleware; router middleware runs
	// before a route is matched and shares one budget.
	PerRoute bool

	CleanupInterval time.Duration // how often to prune idle limiters (default: 1m)
	MaxIdle         time.Duration // remove limiters idle longer than this (default: 5m)
}

// RateLimit returns middleware that applies per-key rate limiting. Limited
// requests get a Retry-After header and, by default, a 429 problem.
func RateLimit(cfg RateLimitConfig) Middleware {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = remoteHost
	}
	if cfg.OnLimit == nil {
		codecs := newCodecRegistry(nil, nil)
		cfg.OnLimit = func(w http.ResponseWriter, r *http.Request) {
			writeErrorResponse(w, r, Error(http.StatusTooManyRequests, "rate limit exceeded"), codecs)
		}
	}
	set := newLimiterSet(cfg)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := cfg.KeyFunc(r)
			if cfg.PerRoute {
				key = r.Pattern + "\x00" + key
			}

			if wait, ok := set.allow(key, time.Now()); !ok {
				w.Header().Set("Retry-After", strconv.FormatFloat(wait, 'f', 0, 64))
				cfg.OnLimit(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// limiterSet holds one token bucket per key and drops idle ones lazily.
type limiterSet struct {
	limit   rate.Limit
	burst   int
	every   time.Duration
	maxIdle time.Duration

	mu       sync.Mutex
	limiters map[string]*limiterEntry
	swept    time.Time
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newLimiterSet(cfg RateLimitConfig) *limiterSet {
	s := &limiterSet{
		limit:    rate.Limit(cfg.Rate),
		burst:    cfg.Burst,
		every:    cfg.CleanupInterval,
		maxIdle:  cfg.MaxIdle,
		limiters: make(map[string]*limiterEntry),
	}
	if s.every <= 0 {
		s.every = time.Minute
	}
	if s.maxIdle <= 0 {
		s.maxIdle = 5 * time.Minute
	}
	return s
}

// allow takes a token for key. When none is left it reports the whole
// seconds until one is, at least 1.
func (s *limiterSet) allow(key string, now time.Time) (float64, bool) {
	s.mu.Lock()
	if now.Sub(s.swept) >= s.every {
		for k, e := range s.limiters {
			if now.Sub(e.lastSeen) > s.maxIdle {
				delete(s.limiters, k)
			}
		}
		s.swept = now
	}
	e, ok := s.limiters[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(s.limit, s.burst)}
		s.limiters[key] = e
	}
	e.lastSeen = now
	s.mu.Unlock()

	if e.limiter.AllowN(now, 1) {
		return 0, true
	}
	next := e.limiter.ReserveN(now, 1)
	wait := math.Ceil(next.DelayFrom(now).Seconds())
	next.CancelAt(now)
	return max(wait, 1), false
}

func (s *limiterSet) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.limiters)
}
