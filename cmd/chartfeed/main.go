package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chartfeed/internal/infrastructure/config"
	"chartfeed/internal/infrastructure/logger"
	"chartfeed/internal/infrastructure/svc"
	"chartfeed/internal/interfaces/httpapi"

	"github.com/rs/zerolog/log"
)

func main() {
	logger.Setup()

	configPath := flag.String("config", "configs/config.toml", "path to config.toml")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Str("config", *configPath).Msg("load config failed")
	}
	logger.SetLevel(cfg.App.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sc, err := svc.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("init services failed")
	}
	defer sc.Close()

	// live trades
	go sc.StreamFeed().Run(ctx)

	server := httpapi.NewServer(sc.Datafeed(), cfg.HTTP.Listen, cfg.App.LogLevel)
	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	log.Info().
		Str("config", *configPath).
		Str("listen", cfg.HTTP.Listen).
		Strs("exchanges", cfg.Catalog.Exchanges).
		Bool("stream", cfg.Stream.Enabled).
		Msg("chartfeed started")

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("http server exited")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown failed")
	}
	log.Info().Msg("chartfeed stopped")
}
