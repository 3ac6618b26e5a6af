package httpx

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/Dhairyash-1/auth-system/pkg/ratelimit"
	"github.com/Dhairyash-1/auth-system/pkg/slogx"
)

// RateLimitClass names a group of endpoints that share one sliding window
// per client IP.
type RateLimitClass struct {
	Name    string
	Rule    ratelimit.Rule
	Message string
}

// Default classes. app.Config may override Rule for each of them.
var (
	GlobalLimit = RateLimitClass{
		Name:    "global",
		Rule:    ratelimit.Rule{Limit: 200, Window: time.Minute},
		Message: "Too many requests, please try again later.",
	}
	LoginLimit = RateLimitClass{
		Name:    "login",
		Rule:    ratelimit.Rule{Limit: 5, Window: time.Minute},
		Message: "Too many login attempts, please try again later.",
	}
	ResetLimit = RateLimitClass{
		Name:    "reset",
		Rule:    ratelimit.Rule{Limit: 3, Window: time.Hour},
		Message: "Too many password reset attempts, please try again later.",
	}
	OAuthLimit = RateLimitClass{
		Name:    "oauth",
		Rule:    ratelimit.Rule{Limit: 10, Window: 10 * time.Minute},
		Message: "Too many OAuth requests from this IP, please try again later.",
	}
)

// KeyExtractor returns the per-client part of the rate limit key.
type KeyExtractor func(*http.Request) string

// RateLimiter builds admission middleware for rate limit classes.
type RateLimiter struct {
	Limiter *ratelimit.Limiter
	Key     KeyExtractor

	// OnReject, when set, is told about every rejected request.
	OnReject func(r *http.Request, class string)
}

// NewRateLimiter keys requests by socket peer address. Set Key to a
// ClientIPResolver behind trusted proxies.
func NewRateLimiter(l *ratelimit.Limiter) *RateLimiter {
	return &RateLimiter{Limiter: l, Key: ClientIP}
}

// Limit rejects requests over the class threshold with 429 before the wrapped
// handler runs. Store failures admit the request.
func (rl *RateLimiter) Limit(class RateLimitClass) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := slogx.FromContext(ctx)

			client := rl.Key(r)
			if client == "" {
				log.Warn("rate limit: unable to extract key, allowing request", "class", class.Name)
				next.ServeHTTP(w, r)
				return
			}

			d, err := rl.Limiter.Allow(ctx, class.Name+":"+client, class.Rule)
			if err != nil {
				log.Error("rate limit: store failure, allowing request", "class", class.Name, "err", err)
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(class.Rule.Limit))
			w.Header().Set("X-RateLimit-Window", class.Rule.Window.String())
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))

			if !d.Allowed {
				retryAfter := max(int(math.Ceil(d.RetryAfter.Seconds())), 1)
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))

				log.Warn("rate limit exceeded",
					"class", class.Name,
					"client_ip", client,
					"retry_after", retryAfter,
				)
				if rl.OnReject != nil {
					rl.OnReject(r, class.Name)
				}

				WriteJSON(w, http.StatusTooManyRequests, map[string]any{
					"success": false,
					"code":    "RATE_LIMITED",
					"message": class.Message,
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
