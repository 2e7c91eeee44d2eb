package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cortexlab/neuroscan/common/logger"
	"github.com/labstack/echo/v4"
)

// Server wraps an echo instance with graceful shutdown
type Server struct {
	echo *echo.Echo
	log  *logger.Logger
	name string
	addr string
}

// New creates a new server
func New(name string, port int, e *echo.Echo, log *logger.Logger) *Server {
	return &Server{
		echo: e,
		log:  log,
		name: name,
		addr: fmt.Sprintf(":%d", port),
	}
}

// Start runs the server until an error occurs or a shutdown signal arrives.
// In-flight uploads get time to finish before the listener closes.
func (s *Server) Start() error {
	serverErrors := make(chan error, 1)

	go func() {
		s.log.Info(fmt.Sprintf("%s starting", s.name), "addr", s.addr)
		serverErrors <- s.echo.Start(s.addr)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err == http.ErrServerClosed {
			return nil
		}
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		s.log.Info("shutdown signal received", "signal", sig.String())

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := s.echo.Shutdown(ctx); err != nil {
			s.log.Error("graceful shutdown failed", "error", err)
			if err := s.echo.Close(); err != nil {
				return fmt.Errorf("could not stop server: %w", err)
			}
		}

		s.log.Info("shutdown complete")
	}

	return nil
}
