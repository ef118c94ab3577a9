package model

// ExchangeDescriptor is an entry of the exchange filter offered to the host.
type ExchangeDescriptor struct {
	Value string `json:"value"`
	Name  string `json:"name"`
	Desc  string `json:"desc"`
}

// SymbolTypeDescriptor is an entry of the symbol type filter.
type SymbolTypeDescriptor struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// DatafeedConfiguration is delivered once through onReady.
type DatafeedConfiguration struct {
	SupportedResolutions []string               `json:"supported_resolutions"`
	Exchanges            []ExchangeDescriptor   `json:"exchanges"`
	SymbolsTypes         []SymbolTypeDescriptor `json:"symbols_types"`
}

// DefaultConfiguration mirrors the static adapter configuration.
func DefaultConfiguration() DatafeedConfiguration {
	return DatafeedConfiguration{
		SupportedResolutions: []string{"1D", "1W", "1M", "1h", "1"},
		Exchanges: []ExchangeDescriptor{
			{Value: "Bitfinex", Name: "Bitfinex", Desc: "Bitfinex"},
			{Value: "Binance", Name: "Binance", Desc: "Binance"},
			{Value: "Kraken", Name: "Kraken", Desc: "Kraken bitcoin exchange"},
		},
		SymbolsTypes: []SymbolTypeDescriptor{
			{Name: SymbolTypeCrypto, Value: SymbolTypeCrypto},
		},
	}
}

// ExchangeValues returns the configured exchange values in order.
func (c DatafeedConfiguration) ExchangeValues() []string {
	out := make([]string, 0, len(c.Exchanges))
	for _, e := range c.Exchanges {
		out = append(out, e.Value)
	}
	return out
}
