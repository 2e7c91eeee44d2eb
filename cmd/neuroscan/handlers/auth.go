package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/cortexlab/neuroscan/cmd/neuroscan/middleware"
	"github.com/cortexlab/neuroscan/cmd/neuroscan/service"
	"github.com/cortexlab/neuroscan/common/bootstrap"
)

// AuthHandler handles registration, login, and logout
type AuthHandler struct {
	components *bootstrap.Components
	auth       *service.AuthService
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(components *bootstrap.Components, auth *service.AuthService) *AuthHandler {
	return &AuthHandler{
		components: components,
		auth:       auth,
	}
}

type registerRequest struct {
	Username   string `json:"username" form:"username"`
	Email      string `json:"email" form:"email"`
	Password   string `json:"password" form:"password"`
	BirthYear  int    `json:"birth_year" form:"birth_year"`
	Gender     string `json:"gender" form:"gender"`
	BloodGroup string `json:"blood_group" form:"blood_group"`
	Address    string `json:"address" form:"address"`
}

type loginRequest struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

// Register creates a new account
// POST /api/v1/auth/register
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	user, err := h.auth.Register(c.Request().Context(), service.RegisterInput{
		Username:   req.Username,
		Email:      req.Email,
		Password:   req.Password,
		BirthYear:  req.BirthYear,
		Gender:     req.Gender,
		BloodGroup: req.BloodGroup,
		Address:    req.Address,
	})
	if err != nil {
		var vErr *service.ValidationError
		switch {
		case errors.As(err, &vErr):
			return echo.NewHTTPError(http.StatusBadRequest, vErr.Error())
		case errors.Is(err, service.ErrAccountExists):
			return echo.NewHTTPError(http.StatusConflict, "username or email already registered")
		default:
			h.components.Logger.Error("registration failed", "error", err)
			return echo.NewHTTPError(http.StatusInternalServerError, "registration failed")
		}
	}

	return c.JSON(http.StatusCreated, map[string]interface{}{
		"user_id":  user.ID,
		"username": user.Username,
	})
}

// Login checks credentials and opens a session
// POST /api/v1/auth/login
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Username == "" || req.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "username and password are required")
	}

	user, token, err := h.auth.Login(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid credentials")
		}
		h.components.Logger.Error("login failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "login failed")
	}

	c.SetCookie(&http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    token,
		Path:     "/",
		Expires:  time.Now().Add(h.components.Config.Session.TTL),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	return c.JSON(http.StatusOK, map[string]interface{}{
		"user_id":       user.ID,
		"username":      user.Username,
		"session_token": token,
	})
}

// Logout closes the current session
// POST /api/v1/auth/logout
func (h *AuthHandler) Logout(c echo.Context) error {
	token := ""
	if cookie, err := c.Cookie(middleware.SessionCookieName); err == nil {
		token = cookie.Value
	}
	if token == "" {
		token = c.Request().Header.Get(middleware.SessionHeaderName)
	}

	if err := h.auth.Logout(c.Request().Context(), token); err != nil {
		h.components.Logger.Warn("logout cleanup failed", "error", err)
	}

	c.SetCookie(&http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
	})

	return c.JSON(http.StatusOK, map[string]interface{}{
		"status": "logged_out",
	})
}
