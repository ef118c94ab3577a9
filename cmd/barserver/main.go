package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"chartfeed/internal/application/port"
	"chartfeed/internal/domain/model"
	"chartfeed/internal/infrastructure/config"
	"chartfeed/internal/infrastructure/logger"
	"chartfeed/internal/infrastructure/storage/postgres"
	"chartfeed/internal/infrastructure/storage/sqlite"
	"chartfeed/internal/interfaces/barapi"
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

	store, err := openStore(cfg)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.BarServer.Driver).Msg("open bar store failed")
	}
	defer store.Close()

	var seed *model.SymbolIdentity
	if cfg.BarServer.SeedSymbol != "" {
		sym, ok := model.ParseFullSymbol(cfg.BarServer.SeedSymbol)
		if !ok {
			log.Fatal().Str("seed_symbol", cfg.BarServer.SeedSymbol).Msg("invalid seed symbol")
		}
		seed = &sym
		if cfg.BarServer.SeedFile != "" {
			if _, err := barapi.LoadSeed(ctx, store, sym, cfg.BarServer.SeedFile); err != nil {
				log.Fatal().Err(err).Msg("load seed failed")
			}
		}
	}

	if !strings.EqualFold(cfg.App.LogLevel, "debug") {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	barapi.NewHandler(store, seed).Register(engine)

	srv := &http.Server{
		Addr:              cfg.BarServer.Listen,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("bar server exited")
			stop()
		}
	}()

	log.Info().
		Str("listen", cfg.BarServer.Listen).
		Str("driver", cfg.BarServer.Driver).
		Str("seed_symbol", cfg.BarServer.SeedSymbol).
		Msg("barserver started")

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("bar server shutdown failed")
	}
}

func openStore(cfg *config.Config) (port.BarStore, error) {
	switch cfg.BarServer.Driver {
	case "postgres":
		return postgres.New(cfg.BarServer.PostgresDSN)
	default:
		return sqlite.New(cfg.BarServer.SQLitePath)
	}
}
