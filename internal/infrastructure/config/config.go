package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment overrides for secrets.
const (
	EnvCryptoCompareAPIKey = "CRYPTOCOMPARE_API_KEY"
	EnvRedisPassword       = "CHARTFEED_REDIS_PASSWORD"
	EnvPostgresDSN         = "CHARTFEED_POSTGRES_DSN"
)

type Config struct {
	App struct {
		LogLevel string `toml:"log_level" yaml:"log_level"`
	} `toml:"app" yaml:"app"`

	HTTP struct {
		Listen string `toml:"listen" yaml:"listen"`
	} `toml:"http" yaml:"http"`

	Catalog struct {
		Exchanges  []string `toml:"exchanges" yaml:"exchanges"`
		TTLSeconds int      `toml:"ttl_seconds" yaml:"ttl_seconds"`
	} `toml:"catalog" yaml:"catalog"`

	Aggregator struct {
		RestURL    string  `toml:"rest_url" yaml:"rest_url"`
		APIKey     string  `toml:"api_key" yaml:"api_key"`
		TimeoutSec int     `toml:"timeout_sec" yaml:"timeout_sec"`
		RatePerSec float64 `toml:"rate_per_sec" yaml:"rate_per_sec"`
	} `toml:"aggregator" yaml:"aggregator"`

	Bars struct {
		BaseURL    string `toml:"base_url" yaml:"base_url"`
		TimeoutSec int    `toml:"timeout_sec" yaml:"timeout_sec"`
		Limit      int    `toml:"limit" yaml:"limit"`
	} `toml:"bars" yaml:"bars"`

	Stream struct {
		Enabled  bool   `toml:"enabled" yaml:"enabled"`
		Provider string `toml:"provider" yaml:"provider"`
		WsURL    string `toml:"ws_url" yaml:"ws_url"` // e.g. wss://streaming.cryptocompare.com/v2
	} `toml:"stream" yaml:"stream"`

	Cache struct {
		Capacity int `toml:"capacity" yaml:"capacity"`
	} `toml:"cache" yaml:"cache"`

	Redis struct {
		Enabled    bool   `toml:"enabled" yaml:"enabled"`
		Addr       string `toml:"addr" yaml:"addr"`
		Password   string `toml:"password" yaml:"password"`
		DB         int    `toml:"db" yaml:"db"`
		Prefix     string `toml:"prefix" yaml:"prefix"`
		TTLSeconds int    `toml:"ttl_seconds" yaml:"ttl_seconds"`
	} `toml:"redis" yaml:"redis"`

	BarServer struct {
		Listen      string `toml:"listen" yaml:"listen"`
		Driver      string `toml:"driver" yaml:"driver"` // sqlite | postgres
		SQLitePath  string `toml:"sqlite_path" yaml:"sqlite_path"`
		PostgresDSN string `toml:"postgres_dsn" yaml:"postgres_dsn"`
		SeedFile    string `toml:"seed_file" yaml:"seed_file"`
		SeedSymbol  string `toml:"seed_symbol" yaml:"seed_symbol"`
	} `toml:"barserver" yaml:"barserver"`
}

// Load reads a TOML (or .yaml/.yml) config file, then applies .env and
// environment overrides, defaults and validation.
func Load(path string) (*Config, error) {
	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse yaml config: %w", err)
		}
	default:
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// .env is optional
	_ = godotenv.Load()
	applyEnv(&cfg)
	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv(EnvCryptoCompareAPIKey)); v != "" {
		cfg.Aggregator.APIKey = v
	}
	if v := os.Getenv(EnvRedisPassword); v != "" {
		cfg.Redis.Password = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvPostgresDSN)); v != "" {
		cfg.BarServer.PostgresDSN = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.App.LogLevel == "" {
		cfg.App.LogLevel = "info"
	}
	if cfg.HTTP.Listen == "" {
		cfg.HTTP.Listen = ":8080"
	}
	if len(cfg.Catalog.Exchanges) == 0 {
		cfg.Catalog.Exchanges = []string{"Bitfinex", "Binance", "Kraken"}
	}
	if cfg.Aggregator.RestURL == "" {
		cfg.Aggregator.RestURL = "https://min-api.cryptocompare.com"
	}
	if cfg.Aggregator.TimeoutSec <= 0 {
		cfg.Aggregator.TimeoutSec = 10
	}
	if cfg.Aggregator.RatePerSec <= 0 {
		cfg.Aggregator.RatePerSec = 5
	}
	if cfg.Bars.BaseURL == "" {
		cfg.Bars.BaseURL = "http://127.0.0.1:8000"
	}
	if cfg.Bars.TimeoutSec <= 0 {
		cfg.Bars.TimeoutSec = 10
	}
	if cfg.Bars.Limit <= 0 {
		cfg.Bars.Limit = 2000
	}
	if cfg.Stream.Provider == "" {
		cfg.Stream.Provider = "cryptocompare"
	}
	if cfg.Cache.Capacity <= 0 {
		cfg.Cache.Capacity = 1024
	}
	if cfg.Redis.Prefix == "" {
		cfg.Redis.Prefix = "chartfeed"
	}
	if cfg.BarServer.Listen == "" {
		cfg.BarServer.Listen = "127.0.0.1:8000"
	}
	if cfg.BarServer.Driver == "" {
		cfg.BarServer.Driver = "sqlite"
	}
	if cfg.BarServer.SQLitePath == "" {
		cfg.BarServer.SQLitePath = "data/bars.db"
	}
}

func validate(cfg *Config) error {
	cfg.Catalog.Exchanges = normalizeExchanges(cfg.Catalog.Exchanges)
	if len(cfg.Catalog.Exchanges) == 0 {
		return errors.New("catalog.exchanges is empty")
	}
	if cfg.Stream.Enabled && strings.TrimSpace(cfg.Stream.WsURL) == "" {
		return errors.New("stream.ws_url empty but enabled")
	}
	if cfg.Redis.Enabled && strings.TrimSpace(cfg.Redis.Addr) == "" {
		return errors.New("redis.addr empty but enabled")
	}
	switch cfg.BarServer.Driver {
	case "sqlite":
	case "postgres":
		if strings.TrimSpace(cfg.BarServer.PostgresDSN) == "" {
			return errors.New("barserver.postgres_dsn empty but driver is postgres")
		}
	default:
		return fmt.Errorf("barserver.driver %q not supported", cfg.BarServer.Driver)
	}
	return nil
}

// normalizeExchanges trims and dedups, keeping order. Exchange names are
// case-sensitive upstream so case is preserved.
func normalizeExchanges(in []string) []string {
	out := make([]string, 0, len(in))
	seen := map[string]struct{}{}
	for _, s := range in {
		u := strings.TrimSpace(s)
		if u == "" {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}
