package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/cortexlab/neuroscan/cmd/neuroscan/container"
	"github.com/cortexlab/neuroscan/cmd/neuroscan/repository"
	"github.com/cortexlab/neuroscan/cmd/neuroscan/routes"
	"github.com/cortexlab/neuroscan/cmd/neuroscan/service"
	"github.com/cortexlab/neuroscan/common/bootstrap"
	"github.com/cortexlab/neuroscan/common/server"
)

func main() {
	ctx := context.Background()

	// Bootstrap common components (config, logger, DB, queue, cache, telemetry)
	components, err := bootstrap.Setup(ctx, "neuroscan",
		bootstrap.WithDBInitHook(repository.Migrate),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap neuroscan: %v\n", err)
		os.Exit(1)
	}
	defer components.Shutdown(ctx)

	// Initialize service container (singleton pattern - all services created once)
	serviceContainer, err := container.NewContainer(components)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize service container: %v\n", err)
		os.Exit(1)
	}

	// Background audit trail consumer
	if err := serviceContainer.AuditRecorder.Start(ctx, service.TopicPredictionStored); err != nil {
		components.Logger.Warn("audit recorder unavailable", "error", err)
	}

	e := setupEcho()
	setupMiddleware(e)
	setupHealthCheck(e, serviceContainer)
	registerRoutes(e, serviceContainer)

	srv := server.New("neuroscan", components.Config.Service.Port, e, components.Logger)
	if err := srv.Start(); err != nil {
		components.Logger.Error("Server error", "error", err)
		os.Exit(1)
	}
}

// setupEcho initializes the Echo server with basic configuration
func setupEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	return e
}

// setupMiddleware configures all middleware for the Echo server
func setupMiddleware(e *echo.Echo) {
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.RequestID())
}

// setupHealthCheck registers liveness and readiness endpoints
func setupHealthCheck(e *echo.Echo, c *container.Container) {
	e.GET("/health", func(ec echo.Context) error {
		return ec.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"service": "neuroscan",
		})
	})

	e.GET("/health/ready", func(ec echo.Context) error {
		if err := c.Components.Health(ec.Request().Context()); err != nil {
			return ec.JSON(http.StatusServiceUnavailable, map[string]string{
				"status": "unavailable",
				"error":  err.Error(),
			})
		}
		if err := c.Redis.Health(ec.Request().Context()); err != nil {
			return ec.JSON(http.StatusServiceUnavailable, map[string]string{
				"status": "unavailable",
				"error":  err.Error(),
			})
		}

		// The model being down degrades predict but history and image
		// retrieval still work, so report it without failing readiness
		classifierStatus := "ok"
		if hc, ok := c.Classifier.(*service.HTTPClassifier); ok {
			if err := hc.Health(ec.Request().Context()); err != nil {
				classifierStatus = "down"
			}
		}

		return ec.JSON(http.StatusOK, map[string]string{
			"status":     "ready",
			"classifier": classifierStatus,
		})
	})
}

// registerRoutes registers all application routes using the service container
func registerRoutes(e *echo.Echo, serviceContainer *container.Container) {
	routes.RegisterAuthRoutes(e, serviceContainer)
	routes.RegisterPredictionRoutes(e, serviceContainer)
}
