package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	commonmw "github.com/cortexlab/neuroscan/common/middleware"
)

// SessionCookieName is the cookie carrying the session token.
const SessionCookieName = "session_token"

// SessionHeaderName is the header alternative for non-browser clients.
const SessionHeaderName = "X-Session-Token"

// RequireSession rejects requests without a valid session and stores the
// resolved user id in the echo context for downstream handlers.
//
// The token is read from the session cookie, falling back to the
// X-Session-Token header for API clients.
func RequireSession(validate func(c echo.Context, token string) (int64, error)) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := extractToken(c)
			if token == "" {
				return c.JSON(http.StatusUnauthorized, map[string]interface{}{
					"error": "authentication required",
				})
			}

			userID, err := validate(c, token)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, map[string]interface{}{
					"error": "session invalid or expired",
				})
			}

			c.Set(commonmw.UserIDKey, userID)
			return next(c)
		}
	}
}

// GetUserID retrieves the authenticated user id from the echo context.
// Returns false if the session middleware did not run.
func GetUserID(c echo.Context) (int64, bool) {
	userID, ok := c.Get(commonmw.UserIDKey).(int64)
	return userID, ok
}

func extractToken(c echo.Context) string {
	if cookie, err := c.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	return c.Request().Header.Get(SessionHeaderName)
}
