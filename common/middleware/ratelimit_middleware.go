package middleware

import (
	"net/http"

	"github.com/cortexlab/neuroscan/common/ratelimit"
	"github.com/labstack/echo/v4"
)

// UserIDKey is the echo context key under which the authenticated user id is
// stored by the session middleware.
const UserIDKey = "user_id"

// UserRateLimitMiddleware bounds how often one user can submit scans.
// Fails open: a broken limiter must not take the predict endpoint down.
func UserRateLimitMiddleware(limiter *ratelimit.Limiter, limit int64, windowSec int) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userID, ok := c.Get(UserIDKey).(int64)
			if !ok {
				// No authenticated user; the auth middleware rejects these
				return next(c)
			}

			result, err := limiter.CheckUserLimit(c.Request().Context(), userID, limit, windowSec)
			if err != nil {
				return next(c)
			}

			if !result.Allowed {
				return c.JSON(http.StatusTooManyRequests, map[string]interface{}{
					"error":   "rate_limit_exceeded",
					"message": "Too many uploads. Please wait before trying again.",
					"details": map[string]interface{}{
						"limit":               result.Limit,
						"current_count":       result.CurrentCount,
						"retry_after_seconds": result.RetryAfterSeconds,
					},
				})
			}

			return next(c)
		}
	}
}
