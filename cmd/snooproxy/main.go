// Command snooproxy runs the HTTP service: it wires configuration, the
// upstream client and the server together, verifies credentials at startup,
// and handles graceful shutdown.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/snooproxy"
	"github.com/snooproxy/internal/config"
	"github.com/snooproxy/internal/server"
)

const (
	connectTimeout  = 15 * time.Second
	shutdownTimeout = 10 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "configuration error:", err)
		os.Exit(1)
	}

	logger := newLogger(cfg)

	client, err := snooproxy.New(&snooproxy.Config{
		ClientID:       cfg.ClientID,
		ClientSecret:   cfg.ClientSecret,
		UserAgent:      cfg.UserAgent,
		BaseURL:        cfg.BaseURL,
		AuthURL:        cfg.AuthURL,
		HTTPClient:     httpClient(cfg),
		PacingInterval: cfg.PacingInterval,
		MaxRetries:     cfg.MaxRetries,
		Logger:         &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build upstream client")
	}

	// Fail fast on bad credentials instead of on the first request.
	connectCtx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	err = client.Connect(connectCtx)
	cancel()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to verify upstream credentials")
	}
	logger.Info().Msg("upstream credentials verified")

	srv := server.New(client, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(cfg.ListenAddr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	case sig := <-quit:
		logger.Info().Str("signal", sig.String()).Msg("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("graceful shutdown failed")
		}
	}

	logger.Info().Msg("stopped")
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if cfg.LogFormat == "console" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		logger = zerolog.New(os.Stderr)
	}

	return logger.Level(level).With().
		Timestamp().
		Str("service", "snooproxy").
		Logger()
}

func httpClient(cfg *config.Config) *http.Client {
	return &http.Client{Timeout: cfg.HTTPTimeout}
}
