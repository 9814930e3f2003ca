// Package server exposes the normalized content API over HTTP. It maps the
// client's typed errors onto downstream status codes and serves health and
// metrics endpoints alongside the API routes.
package server

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/snooproxy"
)

// Server wraps the echo engine together with the upstream client.
type Server struct {
	echo   *echo.Echo
	client *snooproxy.Client
	logger zerolog.Logger
}

// New builds the HTTP server with its middleware chain and routes.
func New(client *snooproxy.Client, logger zerolog.Logger) *Server {
	s := &Server{
		client: client,
		logger: logger,
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(middleware.CORS())
	e.Use(middleware.Secure())
	e.Use(middleware.BodyLimit("64K"))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogRemoteIP:  true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			event := logger.Info()
			if v.Error != nil || v.Status >= http.StatusInternalServerError {
				event = logger.Error()
			}
			event.
				Str("request_id", v.RequestID).
				Str("remote_ip", v.RemoteIP).
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Err(v.Error).
				Msg("request")
			return nil
		},
	}))

	e.GET("/healthz", s.health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api")
	api.GET("/r/:subreddit", s.subreddit)
	api.GET("/r/:subreddit/rules", s.rules)
	api.GET("/r/:subreddit/posts", s.posts)
	api.GET("/r/:subreddit/comments/:postID", s.comments)
	api.POST("/morechildren", s.moreChildren)

	s.echo = e
	return s
}

// Start begins serving on addr and blocks until the server stops. A clean
// shutdown is not reported as an error.
func (s *Server) Start(addr string) error {
	s.logger.Info().Str("addr", addr).Msg("http server starting")
	if err := s.echo.Start(addr); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("http server shutting down")
	return s.echo.Shutdown(ctx)
}

// Handler exposes the routing tree, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}
