package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"patentes-service/internal/config"
	"patentes-service/internal/db"
	"patentes-service/internal/downloader"
	"patentes-service/internal/repository"
	"patentes-service/internal/service"
)

func main() {
	once := flag.Bool("once", false, "run a single download pass and exit")
	flag.Parse()

	log := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create connection pool")
	}
	defer pool.Close()

	detectionRepo := repository.NewDetectionRepository(pool, cfg)
	imageRepo := repository.NewImageRepository(pool, cfg)
	queryService := service.NewQueryService(detectionRepo, imageRepo, cfg, log)
	dl := downloader.New(queryService, cfg, log)

	if *once {
		if err := dl.Run(ctx); err != nil {
			log.Fatal().Err(err).Msg("download pass failed")
		}
		return
	}

	if err := dl.RunLoop(ctx, cfg.Downloader.PollInterval); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal().Err(err).Msg("downloader stopped")
	}
}
