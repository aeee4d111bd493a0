// Command gateway runs the OpenAI-compatible GenAI gateway.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ocigw/genai-gateway/internal/config"
	"github.com/ocigw/genai-gateway/internal/httpserver"
	"github.com/ocigw/genai-gateway/internal/monitoring"
	"github.com/ocigw/genai-gateway/internal/registry"
	"github.com/ocigw/genai-gateway/internal/upstream"
)

func main() {
	// Optional .env for local runs; the environment always wins.
	_ = godotenv.Load()
	setupLogging()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	client := upstream.NewClient(cfg.Credentials)
	if client.DryRun() {
		log.Warn().Msg("no upstream credentials; serving simulated responses only")
	}

	tracker, err := monitoring.NewTracker(cfg.TelemetryDB)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.TelemetryDB).Msg("failed to open telemetry database")
	}
	defer func() { _ = tracker.Close() }()

	srv := httpserver.New(cfg, client, registry.New(cfg.ModelsPath), monitoring.NewMetricsCollector(), tracker)

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      srv.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Bool("dry_run", client.DryRun()).Msg("gateway listening")
		errCh <- server.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("shutdown did not complete cleanly")
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}
}

func setupLogging() {
	level := zerolog.InfoLevel
	if os.Getenv("DEBUG") != "" {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
}
