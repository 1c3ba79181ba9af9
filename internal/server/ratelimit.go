package server

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/54b3r/docqa-go/internal/logging"
)

const (
	defaultRateLimit = 10
	defaultRateBurst = 20

	// limiterIdleTTL drops a caller's bucket after this long without traffic.
	limiterIdleTTL       = 5 * time.Minute
	limiterSweepInterval = time.Minute
)

// rateLimiter applies a token bucket per caller (owner, else client IP) to
// uploads and chat, the two routes that cost embedding or model calls.
type rateLimiter struct {
	mu       sync.Mutex
	limiters *cache.Cache
	rps      rate.Limit
	burst    int
	log      *slog.Logger
}

// newRateLimiter returns the limiter and a stop func that drops all buckets.
func newRateLimiter(rps float64, burst int, log *slog.Logger) (*rateLimiter, func()) {
	rl := &rateLimiter{
		limiters: cache.New(limiterIdleTTL, limiterSweepInterval),
		rps:      rate.Limit(rps),
		burst:    burst,
		log:      log,
	}
	return rl, rl.limiters.Flush
}

// getLimiter returns key's bucket and pushes back its idle expiry.
func (rl *rateLimiter) getLimiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	lim, ok := rl.limiters.Get(key)
	if !ok {
		lim = rate.NewLimiter(rl.rps, rl.burst)
	}
	rl.limiters.SetDefault(key, lim)
	return lim.(*rate.Limiter)
}

// middleware rejects callers over their budget with 429 and a Retry-After
// saying when the next token is due.
func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := callerKey(r)
		res := rl.getLimiter(key).Reserve()
		if delay := res.Delay(); !res.OK() || delay > 0 {
			res.Cancel()
			logging.FromContext(r.Context()).Warn("rate limit exceeded",
				slog.String("caller", key),
				slog.String("path", r.URL.Path),
			)
			w.Header().Set("Retry-After", retryAfter(delay))
			writeJSON(w, r, http.StatusTooManyRequests, errorResponse{Error: "rate limit exceeded"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// retryAfter renders delay as whole seconds, at least one.
func retryAfter(delay time.Duration) string {
	secs := math.Ceil(delay.Seconds())
	if secs < 1 || math.IsInf(secs, 0) || secs > math.MaxInt32 {
		secs = 1
	}
	return strconv.Itoa(int(secs))
}

func callerKey(r *http.Request) string {
	if owner := ownerFrom(r.Context()); owner != "" {
		return "owner:" + owner
	}
	return "ip:" + clientIP(r)
}

// clientIP is the connection's remote host. X-Forwarded-For is not trusted.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
