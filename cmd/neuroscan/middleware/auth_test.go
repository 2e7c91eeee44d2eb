package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sessionTestServer(validate func(c echo.Context, token string) (int64, error)) *echo.Echo {
	e := echo.New()
	e.GET("/protected", func(c echo.Context) error {
		userID, ok := GetUserID(c)
		if !ok {
			return c.NoContent(http.StatusInternalServerError)
		}
		return c.JSON(http.StatusOK, map[string]int64{"user_id": userID})
	}, RequireSession(validate))
	return e
}

func acceptToken(want string, userID int64) func(c echo.Context, token string) (int64, error) {
	return func(c echo.Context, token string) (int64, error) {
		if token == want {
			return userID, nil
		}
		return 0, errors.New("unknown token")
	}
}

func TestRequireSessionAcceptsCookie(t *testing.T) {
	e := sessionTestServer(acceptToken("tok-1", 7))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "tok-1"})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"user_id":7`)
}

func TestRequireSessionAcceptsHeader(t *testing.T) {
	e := sessionTestServer(acceptToken("tok-2", 9))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set(SessionHeaderName, "tok-2")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireSessionPrefersCookieOverHeader(t *testing.T) {
	e := sessionTestServer(acceptToken("cookie-tok", 7))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "cookie-tok"})
	req.Header.Set(SessionHeaderName, "other-tok")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireSessionRejectsMissingToken(t *testing.T) {
	e := sessionTestServer(acceptToken("tok", 7))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireSessionRejectsInvalidToken(t *testing.T) {
	e := sessionTestServer(acceptToken("tok", 7))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set(SessionHeaderName, "expired")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
