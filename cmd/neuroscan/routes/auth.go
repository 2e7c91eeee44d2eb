package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/cortexlab/neuroscan/cmd/neuroscan/container"
	"github.com/cortexlab/neuroscan/cmd/neuroscan/handlers"
)

// RegisterAuthRoutes registers registration, login, and logout routes
func RegisterAuthRoutes(e *echo.Echo, c *container.Container) {
	h := handlers.NewAuthHandler(c.Components, c.AuthService)

	auth := e.Group("/api/v1/auth")
	{
		auth.POST("/register", h.Register) // POST /api/v1/auth/register
		auth.POST("/login", h.Login)       // POST /api/v1/auth/login
		auth.POST("/logout", h.Logout)     // POST /api/v1/auth/logout
	}
}
