package middleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/angelmondragon/yardgate-backend/api/responses"
	pkgerrors "github.com/angelmondragon/yardgate-backend/pkg/errors"
	"github.com/angelmondragon/yardgate-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/yardgate-backend/pkg/redis"
)

// SubmitRateLimitPolicy bounds how many desk or gate submissions one
// operator (or, without an operator id, one client address) can make per
// window.
type SubmitRateLimitPolicy struct {
	name   string
	limit  int64
	window time.Duration
}

func NewSubmitRateLimitPolicy(name string, limit int64, window time.Duration) SubmitRateLimitPolicy {
	return SubmitRateLimitPolicy{
		name:   strings.ToLower(strings.TrimSpace(name)),
		limit:  limit,
		window: window,
	}
}

func (p SubmitRateLimitPolicy) enabled() bool {
	return p.limit > 0 && p.window > 0
}

func (p SubmitRateLimitPolicy) normalizedName() string {
	if p.name == "" {
		return "submit"
	}
	return p.name
}

func (p SubmitRateLimitPolicy) scope(r *http.Request) string {
	if id := OperatorIDFromContext(r.Context()); id != "" {
		return p.normalizedName() + ":operator:" + id
	}
	return p.normalizedName() + ":ip:" + clientIP(r)
}

// SubmitRateLimit throttles mutating requests. GET and HEAD pass through.
func SubmitRateLimit(policy SubmitRateLimitPolicy, limiter pkgredis.RateLimiter, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !policy.enabled() || limiter == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet || r.Method == http.MethodHead {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			scope := policy.scope(r)
			win, err := limiter.FixedWindowAllow(ctx, scope, policy.limit, policy.window)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting"))
				return
			}
			if !win.Allowed {
				respondRateLimited(ctx, logg, w, policy, scope, win)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func respondRateLimited(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, policy SubmitRateLimitPolicy, scope string, win pkgredis.Window) {
	retryAfter := win.RetryAfter
	if retryAfter <= 0 {
		retryAfter = policy.window
	}
	seconds := int(math.Ceil(retryAfter.Seconds()))

	if logg != nil {
		logCtx := logg.WithFields(ctx, map[string]any{
			"scope":               scope,
			"policy":              policy.normalizedName(),
			"attempts":            win.Count,
			"limit":               policy.limit,
			"retry_after_seconds": seconds,
		})
		logg.Warn(logCtx, "submit.rate_limit.blocked")
	}
	w.Header().Set("Retry-After", strconv.Itoa(seconds))
	err := pkgerrors.New(pkgerrors.CodeRateLimit, "rate limit exceeded").
		WithDetails(map[string]any{"retry_after_seconds": seconds})
	responses.WriteError(ctx, logg, w, err)
}

func clientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	if header := r.Header.Get("X-Forwarded-For"); header != "" {
		for _, part := range strings.Split(header, ",") {
			if ip := strings.TrimSpace(part); ip != "" {
				return ip
			}
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}
