package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/juju/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/murmurnet/murmur/internal/auth"
	"github.com/murmurnet/murmur/internal/config"
	"github.com/murmurnet/murmur/internal/database"
	"github.com/murmurnet/murmur/internal/handlers"
	"github.com/murmurnet/murmur/internal/metrics"
	"github.com/murmurnet/murmur/internal/realtime"
)

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		errLog := zerolog.New(os.Stderr)
		errLog.Fatal().Err(err).Msg("configuration")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(ctx, cfg.DatabaseURL, log)
	if err != nil {
		log.Fatal().Err(err).Msg("database")
	}
	defer db.Close()

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	hub := realtime.NewHub(log, m)
	go hub.Run(ctx)

	dispatcher := realtime.NewDispatcher(hub, db, log, m)

	tokens := auth.NewTokens(cfg.JWTSecret, cfg.TokenTTL, clock.WallClock)
	otp := auth.NewOTP(db, auth.LogSender{Log: log}, clock.WallClock)
	authMW := auth.NewMiddleware(tokens, nil, log)

	h := handlers.New(db, dispatcher, hub, tokens, otp, log)
	router := handlers.NewRouter(h, authMW, m, registry, cfg.CORSOrigins)

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", cfg.Addr).Msg("murmur server listening")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("server")
	}
	log.Info().Msg("server stopped")
}
