package svc

import (
	"context"
	"fmt"
	"time"

	redisclient "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"chartfeed/internal/application/port"
	"chartfeed/internal/application/service"
	"chartfeed/internal/application/usecase/datafeed"
	"chartfeed/internal/domain/model"
	"chartfeed/internal/infrastructure/config"
	"chartfeed/internal/infrastructure/exchange/cryptocompare"
	"chartfeed/internal/infrastructure/exchange/localbars"
	"chartfeed/internal/infrastructure/storage/memory"
	redisrepo "chartfeed/internal/infrastructure/storage/redis"
	"chartfeed/internal/infrastructure/streamfeed"
)

type ServiceContext struct {
	Ctx    context.Context
	Config *config.Config

	// upstream clients
	symbolSource port.SymbolSource
	barSource    port.BarSource
	streamFeed   streamfeed.Feed

	// last bar store
	redisClient *redisclient.Client
	lastBars    port.LastBarStore

	// application
	subscriptions *service.SubscriptionManager
	datafeed      *datafeed.Datafeed

	closerChain []func() error
}

// New builds every component in dependency order.
func New(ctx context.Context, cfg *config.Config) (*ServiceContext, error) {
	sc := &ServiceContext{
		Ctx:         ctx,
		Config:      cfg,
		closerChain: make([]func() error, 0),
	}

	if err := sc.initializeComponents(); err != nil {
		_ = sc.Close()
		return nil, err
	}
	return sc, nil
}

func (sc *ServiceContext) initializeComponents() error {
	cfg := sc.Config

	sc.symbolSource = cryptocompare.NewExchangesClient(cryptocompare.ExchangesClientOptions{
		BaseURL:    cfg.Aggregator.RestURL,
		APIKey:     cfg.Aggregator.APIKey,
		Timeout:    time.Duration(cfg.Aggregator.TimeoutSec) * time.Second,
		RatePerSec: cfg.Aggregator.RatePerSec,
	})
	sc.barSource = localbars.NewClient(cfg.Bars.BaseURL, time.Duration(cfg.Bars.TimeoutSec)*time.Second)

	if err := sc.initializeStream(); err != nil {
		return err
	}
	if err := sc.initializeLastBarStore(); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageInitFailed, err)
	}

	dfCfg := model.DefaultConfiguration()
	dfCfg.Exchanges = exchangeDescriptors(dfCfg.Exchanges, cfg.Catalog.Exchanges)

	sc.subscriptions = service.NewSubscriptionManager(sc.streamFeed)
	sc.datafeed = datafeed.New(datafeed.Deps{
		Config:        dfCfg,
		Catalog:       service.NewSymbolCatalog(sc.symbolSource, cfg.Catalog.Exchanges, time.Duration(cfg.Catalog.TTLSeconds)*time.Second),
		Bars:          service.NewBarRepository(sc.barSource, cfg.Bars.Limit),
		LastBars:      sc.lastBars,
		Subscriptions: sc.subscriptions,
	})

	log.Info().
		Strs("exchanges", cfg.Catalog.Exchanges).
		Str("stream", sc.streamFeed.Name()).
		Bool("redis", cfg.Redis.Enabled).
		Msg("✓ All components initialized")
	return nil
}

func (sc *ServiceContext) initializeStream() error {
	provider := sc.Config.Stream.Provider
	if !sc.Config.Stream.Enabled {
		provider = streamfeed.ProviderNone
	}
	factory, ok := streamfeed.Get(provider)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownStreamProvider, provider)
	}
	sc.streamFeed = factory(streamfeed.Options{
		WsURL:  sc.Config.Stream.WsURL,
		APIKey: sc.Config.Aggregator.APIKey,
	})
	return nil
}

// initializeLastBarStore picks redis when enabled, otherwise the in-process LRU.
func (sc *ServiceContext) initializeLastBarStore() error {
	if !sc.Config.Redis.Enabled {
		sc.lastBars = memory.NewLastBarCache(sc.Config.Cache.Capacity)
		return nil
	}

	rdb := redisclient.NewClient(&redisclient.Options{
		Addr:     sc.Config.Redis.Addr,
		Password: sc.Config.Redis.Password,
		DB:       sc.Config.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(sc.Ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return fmt.Errorf("redis ping failed: %w", err)
	}

	sc.redisClient = rdb
	sc.lastBars = redisrepo.New(rdb, sc.Config.Redis.Prefix, time.Duration(sc.Config.Redis.TTLSeconds)*time.Second)
	sc.closerChain = append(sc.closerChain, func() error {
		log.Info().Msg("closing redis connection")
		return rdb.Close()
	})

	log.Info().
		Str("addr", sc.Config.Redis.Addr).
		Int("db", sc.Config.Redis.DB).
		Msg("✓ Redis initialized")
	return nil
}

// exchangeDescriptors keeps the known descriptors for the configured exchanges, in config order.
func exchangeDescriptors(known []model.ExchangeDescriptor, names []string) []model.ExchangeDescriptor {
	byValue := make(map[string]model.ExchangeDescriptor, len(known))
	for _, d := range known {
		byValue[d.Value] = d
	}
	out := make([]model.ExchangeDescriptor, 0, len(names))
	for _, n := range names {
		d, ok := byValue[n]
		if !ok {
			d = model.ExchangeDescriptor{Value: n, Name: n, Desc: n}
		}
		out = append(out, d)
	}
	return out
}

// Datafeed returns the adapter facade.
func (sc *ServiceContext) Datafeed() *datafeed.Datafeed {
	return sc.datafeed
}

// StreamFeed returns the live transport; its Run loop is started by the caller.
func (sc *ServiceContext) StreamFeed() streamfeed.Feed {
	return sc.streamFeed
}

// Close releases resources in reverse order.
func (sc *ServiceContext) Close() error {
	for i := len(sc.closerChain) - 1; i >= 0; i-- {
		if err := sc.closerChain[i](); err != nil {
			log.Error().Err(err).Msg("error closing resource")
		}
	}
	sc.closerChain = nil
	return nil
}
