package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/cortexlab/neuroscan/cmd/neuroscan/container"
	"github.com/cortexlab/neuroscan/cmd/neuroscan/handlers"
	appmw "github.com/cortexlab/neuroscan/cmd/neuroscan/middleware"
	commonmw "github.com/cortexlab/neuroscan/common/middleware"
)

// RegisterPredictionRoutes registers scan upload and retrieval routes.
// All routes require an authenticated session; uploads are additionally
// rate limited per user.
func RegisterPredictionRoutes(e *echo.Echo, c *container.Container) {
	h := handlers.NewPredictionHandler(c.Components, c.PredictionService)

	session := appmw.RequireSession(func(ec echo.Context, token string) (int64, error) {
		return c.AuthService.Validate(ec.Request().Context(), token)
	})

	rlCfg := c.Components.Config.RateLimit
	if rlCfg.Enabled {
		limited := commonmw.UserRateLimitMiddleware(c.Limiter, rlCfg.UserLimit, rlCfg.WindowSeconds)
		e.POST("/api/v1/predict", h.Predict, session, limited)
	} else {
		e.POST("/api/v1/predict", h.Predict, session)
	}

	predictions := e.Group("/api/v1/predictions", session)
	{
		predictions.GET("", h.History)            // GET /api/v1/predictions
		predictions.GET("/:id/image", h.GetImage) // GET /api/v1/predictions/42/image
	}
}
