package exchange

import (
	"testing"

	"chartfeed/internal/domain/model"
)

func TestTradeChannel(t *testing.T) {
	sym := model.SymbolIdentity{Exchange: "Binance", FromAsset: "BTC", ToAsset: "USDT"}
	ch := TradeChannel(sym)
	if ch != "0~Binance~BTC~USDT" {
		t.Fatalf("unexpected channel %s", ch)
	}
	got, ok := ParseTradeChannel(ch)
	if !ok || got != sym {
		t.Errorf("round trip failed: %+v %v", got, ok)
	}

	for _, bad := range []string{"", "0~Binance~BTC", "2~Binance~BTC~USDT", "0~~BTC~USDT", "0~a~b~c~d"} {
		if _, ok := ParseTradeChannel(bad); ok {
			t.Errorf("ParseTradeChannel(%q) should fail", bad)
		}
	}
}
