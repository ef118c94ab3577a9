package streamfeed

import (
	"context"

	"chartfeed/internal/application/port"

	"github.com/rs/zerolog/log"
)

// Feed is a live trade transport that owns its connection loop.
type Feed interface {
	port.StreamTransport
	Name() string
	Run(ctx context.Context)
}

// Options are handed to a Factory.
type Options struct {
	WsURL  string
	APIKey string
}

type Factory func(opts Options) Feed

// registry maps provider names to their feed factories
var registry = make(map[string]Factory)

// Register is called from provider packages' init().
func Register(name string, factory Factory) {
	if factory == nil {
		log.Warn().Str("provider", name).Msg("invalid stream feed factory")
		return
	}
	if _, exists := registry[name]; exists {
		log.Warn().Str("provider", name).Msg("stream feed factory already registered, overwriting")
	}
	registry[name] = factory
	log.Debug().Str("provider", name).Msg("stream feed factory registered")
}

// Get returns the factory registered for name.
func Get(name string) (Factory, bool) {
	factory, ok := registry[name]
	return factory, ok
}
