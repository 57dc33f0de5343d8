package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"patentes-service/internal/config"
	"patentes-service/internal/db"
	httphandler "patentes-service/internal/http"
	"patentes-service/internal/repository"
	"patentes-service/internal/service"
)

func main() {
	log := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The pool belongs to this process alone: built after startup, closed
	// before exit, never shared across a spawn boundary.
	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create connection pool")
	}
	defer pool.Close()

	detectionRepo := repository.NewDetectionRepository(pool, cfg)
	imageRepo := repository.NewImageRepository(pool, cfg)
	queryService := service.NewQueryService(detectionRepo, imageRepo, cfg, log)

	router := httphandler.NewRouter(cfg)
	handler := httphandler.NewHandler(queryService, cfg, log)
	handler.Register(router, httphandler.AuthRequired(cfg.HTTP.JWTSecret))

	srv := &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: router,
	}

	go func() {
		log.Info().Str("addr", cfg.HTTP.Addr).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}
