package port

import "context"

// ExchangePairs maps exchange name -> base asset -> quote assets.
type ExchangePairs map[string]map[string][]string

// SymbolSource is the aggregator listing every exchange and its pairs.
type SymbolSource interface {
	FetchExchangePairs(ctx context.Context) (ExchangePairs, error)
}
