package main

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// APIServer is the operator HTTP surface (SPEC_FULL §6 EXPANSION):
// read-only, outside the UDP wire protocol, running on its own TCP port.
// Grounded directly on the teacher's own api.go (echo, HideBanner,
// middleware.Recover, a consistent JSON error handler), trimmed to the
// three routes this domain actually has.
type APIServer struct {
	core *Core
	echo *echo.Echo
}

func newAPIServer(core *Core, log zerolog.Logger) *APIServer {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod: true,
		LogURI:    true,
		LogStatus: true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			log.Debug().Str("method", v.Method).Str("uri", v.URI).Int("status", v.Status).Msg("api request")
			return nil
		},
	}))
	e.Use(middleware.Recover())
	e.HTTPErrorHandler = jsonErrorHandler

	s := &APIServer{core: core, echo: e}
	s.registerRoutes()
	return s
}

func (s *APIServer) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/api/stats", s.handleStats)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

// Run starts the HTTP server on addr and blocks until ctx is canceled.
func (s *APIServer) Run(ctx context.Context, addr string, log zerolog.Logger) {
	go func() {
		if err := s.echo.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("operator HTTP server error")
		}
	}()
	<-ctx.Done()
	shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.echo.Shutdown(shutCtx); err != nil {
		log.Warn().Err(err).Msg("operator HTTP shutdown")
	}
}

// HealthResponse is the payload for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

func (s *APIServer) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// StatsResponse is the payload for GET /api/stats.
type StatsResponse struct {
	Clients   int `json:"clients"`
	Rooms     int `json:"rooms"`
	HeapDepth int `json:"heap_depth"`
}

func (s *APIServer) handleStats(c echo.Context) error {
	return c.JSON(http.StatusOK, StatsResponse{
		Clients:   s.core.Clients.count(),
		Rooms:     s.core.Rooms.count(),
		HeapDepth: s.core.Clients.snapshotHeapDepth(),
	})
}

// jsonErrorHandler ensures all error responses have a consistent JSON
// body: {"error": "message"}. Replaces Echo's default handler, which
// varies between text and JSON.
func jsonErrorHandler(err error, c echo.Context) {
	code := http.StatusInternalServerError
	msg := err.Error()
	if he, ok := err.(*echo.HTTPError); ok {
		code = he.Code
		if m, ok := he.Message.(string); ok {
			msg = m
		}
	}
	if !c.Response().Committed {
		if c.Request().Method == http.MethodHead {
			c.NoContent(code) //nolint:errcheck
		} else {
			c.JSON(code, map[string]string{"error": msg}) //nolint:errcheck
		}
	}
}
