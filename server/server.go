// Package server hosts the HTTP surface and the background insight
// scheduler.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/hrygo/athena/ai/metrics"
	"github.com/hrygo/athena/internal/profile"
	apiv1 "github.com/hrygo/athena/server/router/api/v1"
	"github.com/hrygo/athena/store"
)

// digestCheckInterval is how often the scheduler asks whether a weekly
// digest is due.
const digestCheckInterval = time.Hour

// Server is the main application server.
type Server struct {
	Profile *profile.Profile
	Store   *store.Store

	echoServer *echo.Echo
	apiV1      *apiv1.APIV1Service
	exporter   *metrics.Exporter
}

// NewServer creates the server with all routes registered.
func NewServer(_ context.Context, instanceProfile *profile.Profile, storeInstance *store.Store) (*Server, error) {
	echoServer := echo.New()
	echoServer.Debug = true
	echoServer.HideBanner = true
	echoServer.HidePort = true

	echoServer.Use(middleware.Recover())
	echoServer.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:    true,
		LogStatus: true,
		LogMethod: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			slog.InfoContext(c.Request().Context(), "request",
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status))
			return nil
		},
	}))

	exporter := metrics.NewExporter(metrics.DefaultConfig())

	s := &Server{
		Profile:    instanceProfile,
		Store:      storeInstance,
		echoServer: echoServer,
		exporter:   exporter,
	}

	echoServer.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "Service ready.")
	})
	echoServer.GET("/metrics", echo.WrapHandler(exporter.Handler()))

	s.apiV1 = apiv1.NewAPIV1Service(instanceProfile, storeInstance, exporter)
	s.apiV1.Register(echoServer)

	return s, nil
}

// Start begins serving and launches the digest scheduler. It returns once
// the listener is up; serve errors surface through the echo server's own
// logging and Shutdown.
func (s *Server) Start(ctx context.Context) error {
	go s.runDigestScheduler(ctx)

	address := fmt.Sprintf("%s:%d", s.Profile.Addr, s.Profile.Port)
	go func() {
		if err := s.echoServer.Start(address); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("failed to start echo server", "error", err)
		}
	}()
	return nil
}

// Shutdown gracefully stops the server and closes the store.
func (s *Server) Shutdown(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := s.echoServer.Shutdown(ctx); err != nil {
		slog.Error("failed to shutdown server", "error", err)
	}

	if err := s.Store.Close(); err != nil {
		slog.Error("failed to close database", "error", err)
	}

	slog.Info("athena stopped properly")
}

// runDigestScheduler periodically generates the weekly digest when one is
// due. Runs only when the insights engine is configured.
func (s *Server) runDigestScheduler(ctx context.Context) {
	if s.apiV1.Insights == nil {
		return
	}

	ticker := time.NewTicker(digestCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !s.apiV1.Insights.ShouldGenerateWeeklyDigest(ctx) {
				continue
			}
			if _, err := s.apiV1.Insights.GenerateWeeklyDigest(ctx); err != nil {
				slog.Error("scheduled digest generation failed", "error", err)
			}
		}
	}
}
