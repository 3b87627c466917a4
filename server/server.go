// Package server assembles the HTTP server: global middleware, the API routes, health
// and metrics endpoints, and graceful shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"

	"github.com/hrygo/tutormind/internal/profile"
	"github.com/hrygo/tutormind/plugin/ai"
	"github.com/hrygo/tutormind/plugin/ai/timeout"
	"github.com/hrygo/tutormind/server/auth"
	"github.com/hrygo/tutormind/server/internal/observability"
	"github.com/hrygo/tutormind/server/middleware"
	apiv1 "github.com/hrygo/tutormind/server/router/api/v1"
	"github.com/hrygo/tutormind/server/service/session"
	"github.com/hrygo/tutormind/store"
)

const bodyLimit = "64K"

type Server struct {
	Profile *profile.Profile
	Store   *store.Store

	echoServer *echo.Echo
	metrics    *observability.Metrics
}

// NewServer wires the routes. llm may be nil, in which case the generating endpoints answer
// with 503 and the read-only ones keep working.
func NewServer(profile *profile.Profile, store *store.Store, llm ai.LLMService) *Server {
	s := &Server{
		Profile: profile,
		Store:   store,
		metrics: observability.NewMetrics(),
	}

	echoServer := echo.New()
	echoServer.HideBanner = true
	echoServer.HidePort = true
	echoServer.HTTPErrorHandler = apiv1.HTTPErrorHandler
	echoServer.Server.ReadTimeout = 30 * time.Second
	echoServer.Server.WriteTimeout = timeout.RequestTimeout + 5*time.Second
	echoServer.Use(echomiddleware.Recover())
	echoServer.Use(echomiddleware.BodyLimit(bodyLimit))
	echoServer.Use(middleware.RequestContext(slog.Default()))
	echoServer.Use(echomiddleware.ContextTimeout(timeout.RequestTimeout))
	s.echoServer = echoServer

	echoServer.GET("/healthz", s.healthz)
	echoServer.GET("/metrics", echo.WrapHandler(s.metrics.Handler()))

	sessionService := session.NewService(store, llm, profile, s.metrics)
	apiV1Service := apiv1.NewAPIV1Service(profile, sessionService, auth.NewAuthenticator(profile.Secret), s.metrics)
	apiV1Service.RegisterRoutes(echoServer)

	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echoServer
}

// Start serves until ctx is done and then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	address := fmt.Sprintf("%s:%d", s.Profile.Addr, s.Profile.Port)
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", slog.String("addr", address), slog.String("mode", s.Profile.Mode))
		if err := s.echoServer.Start(address); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout.ShutdownTimeout)
	defer cancel()
	return s.Shutdown(shutdownCtx)
}

func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("server shutting down")
	if err := s.echoServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	if err := s.Store.Close(); err != nil {
		return fmt.Errorf("failed to close store: %w", err)
	}
	slog.Info("server stopped")
	return nil
}

func (s *Server) healthz(c echo.Context) error {
	if err := s.Store.GetDriver().GetDB().PingContext(c.Request().Context()); err != nil {
		slog.Warn("health check failed", slog.String("error", err.Error()))
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
