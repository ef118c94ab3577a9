package exchange

import (
	"strings"

	"chartfeed/internal/domain/model"
)

// TradeChannelPrefix is the CryptoCompare streaming sub-type for trades.
const TradeChannelPrefix = "0"

// TradeChannel converts a symbol into a streaming subscription channel.
// e.g. Binance:BTC/USDT -> 0~Binance~BTC~USDT
func TradeChannel(sym model.SymbolIdentity) string {
	return strings.Join([]string{TradeChannelPrefix, sym.Exchange, sym.FromAsset, sym.ToAsset}, "~")
}

// ParseTradeChannel is the inverse of TradeChannel.
func ParseTradeChannel(channel string) (model.SymbolIdentity, bool) {
	parts := strings.Split(channel, "~")
	if len(parts) != 4 || parts[0] != TradeChannelPrefix {
		return model.SymbolIdentity{}, false
	}
	for _, p := range parts[1:] {
		if p == "" {
			return model.SymbolIdentity{}, false
		}
	}
	return model.SymbolIdentity{Exchange: parts[1], FromAsset: parts[2], ToAsset: parts[3]}, true
}
