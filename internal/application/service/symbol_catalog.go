package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"chartfeed/internal/application/port"
	"chartfeed/internal/domain/model"

	"github.com/rs/zerolog/log"
)

// SymbolCatalog flattens the aggregator's exchange/pair listing into symbol descriptors.
type SymbolCatalog struct {
	source    port.SymbolSource
	exchanges []string
	ttl       time.Duration
	now       func() time.Time

	mu        sync.Mutex
	snapshot  []model.SymbolDescriptor
	fetchedAt time.Time
}

// NewSymbolCatalog creates a catalog over the given exchanges.
// ttl <= 0 refetches the listing on every call.
func NewSymbolCatalog(source port.SymbolSource, exchanges []string, ttl time.Duration) *SymbolCatalog {
	return &SymbolCatalog{
		source:    source,
		exchanges: exchanges,
		ttl:       ttl,
		now:       time.Now,
	}
}

// FetchAll returns one descriptor per (exchange, base, quote) triple.
func (c *SymbolCatalog) FetchAll(ctx context.Context) ([]model.SymbolDescriptor, error) {
	if c.ttl > 0 {
		c.mu.Lock()
		if c.snapshot != nil && c.now().Sub(c.fetchedAt) < c.ttl {
			out := c.snapshot
			c.mu.Unlock()
			return out, nil
		}
		c.mu.Unlock()
	}

	pairs, err := c.source.FetchExchangePairs(ctx)
	if err != nil {
		return nil, err
	}

	var all []model.SymbolDescriptor
	for _, exchange := range c.exchanges {
		bases, ok := pairs[exchange]
		if !ok {
			log.Warn().Str("exchange", exchange).Msg("exchange missing from aggregator listing")
			continue
		}

		baseNames := make([]string, 0, len(bases))
		for b := range bases {
			baseNames = append(baseNames, b)
		}
		sort.Strings(baseNames)

		for _, base := range baseNames {
			for _, quote := range bases[base] {
				sym := model.GenerateSymbol(exchange, base, quote)
				all = append(all, model.SymbolDescriptor{
					Symbol:      sym.Short,
					FullName:    sym.Full,
					Description: sym.Short,
					Exchange:    exchange,
					Type:        model.SymbolTypeCrypto,
				})
			}
		}
	}

	if c.ttl > 0 {
		c.mu.Lock()
		c.snapshot = all
		c.fetchedAt = c.now()
		c.mu.Unlock()
	}
	return all, nil
}

// Search matches userInput case-insensitively against full_name.
// Empty exchange or symbolType means no filter on that field.
func (c *SymbolCatalog) Search(ctx context.Context, userInput, exchange, symbolType string) ([]model.SymbolDescriptor, error) {
	all, err := c.FetchAll(ctx)
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(userInput)
	out := make([]model.SymbolDescriptor, 0)
	for _, s := range all {
		if exchange != "" && s.Exchange != exchange {
			continue
		}
		if symbolType != "" && s.Type != symbolType {
			continue
		}
		if !strings.Contains(strings.ToLower(s.FullName), needle) {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

// Resolve returns the first descriptor whose full_name equals symbolName.
func (c *SymbolCatalog) Resolve(ctx context.Context, symbolName string) (model.SymbolDescriptor, error) {
	all, err := c.FetchAll(ctx)
	if err != nil {
		return model.SymbolDescriptor{}, err
	}
	for _, s := range all {
		if s.FullName == symbolName {
			return s, nil
		}
	}
	return model.SymbolDescriptor{}, fmt.Errorf("%w: %s", model.ErrSymbolResolution, symbolName)
}
