package api

import (
	"net/http"
	"sync"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"

	"github.com/taskpilot/internal/api/auth"
)

// userRateLimiter keeps one token bucket per verified user. Entries are never
// evicted; the population is bounded by the number of distinct active users.
type userRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

func newUserRateLimiter(perMinute int, burst int) *userRateLimiter {
	if perMinute <= 0 {
		perMinute = 60
	}
	if burst <= 0 {
		burst = perMinute
	}
	return &userRateLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Limit(float64(perMinute) / 60.0),
		burst:    burst,
	}
}

func (l *userRateLimiter) limiterFor(userID string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := l.limiters[userID]
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.limiters[userID] = lim
	}
	return lim
}

// Middleware rejects requests that exceed the per-user rate with 429.
// Must be registered after RequireAuth so the identity is available.
func (l *userRateLimiter) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userID := auth.VerifiedUserID(c)
			if userID == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Authentication required")
			}
			if !l.limiterFor(userID).Allow() {
				return echo.NewHTTPError(http.StatusTooManyRequests, "Rate limit exceeded, slow down")
			}
			return next(c)
		}
	}
}
