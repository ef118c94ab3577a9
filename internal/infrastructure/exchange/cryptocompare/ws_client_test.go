package cryptocompare

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"chartfeed/internal/domain/model"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

// newStreamServer sends one trade on the first connection, then drops it.
// Later connections stay open until the client goes away.
func newStreamServer(t *testing.T, subs chan<- subMsg) *httptest.Server {
	t.Helper()
	var conns int32
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		n := atomic.AddInt32(&conns, 1)

		_ = conn.WriteJSON(map[string]any{"TYPE": "20", "MESSAGE": "STREAMERWELCOME"})

		var sub subMsg
		if err := conn.ReadJSON(&sub); err != nil {
			return
		}
		subs <- sub

		if n == 1 {
			_ = conn.WriteJSON(map[string]any{"TYPE": "16", "MESSAGE": "SUBSCRIBECOMPLETE"})
			_ = conn.WriteJSON(map[string]any{
				"TYPE": "0", "M": "Binance", "FSYM": "BTC", "TSYM": "USDT",
				"P": 42000.5, "Q": 0.25, "TS": 1700000000,
			})
			_ = conn.WriteJSON(map[string]any{
				"TYPE": "0", "M": "Kraken", "FSYM": "BTC", "TSYM": "USD",
				"P": 1, "Q": 1, "TS": 1700000001,
			})
			time.Sleep(100 * time.Millisecond)
			return
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
}

func TestStreamClientDeliversTradesAndResets(t *testing.T) {
	subs := make(chan subMsg, 4)
	srv := newStreamServer(t, subs)
	defer srv.Close()

	client := NewStreamClient("ws"+strings.TrimPrefix(srv.URL, "http"), "")
	trades := make(chan model.Trade, 4)
	resets := make(chan struct{}, 4)

	sym := model.SymbolIdentity{Exchange: "Binance", FromAsset: "BTC", ToAsset: "USDT"}
	err := client.Attach(context.Background(), "uid-1", sym,
		func(tr model.Trade) { trades <- tr },
		func() { resets <- struct{}{} })
	if err != nil {
		t.Fatalf("Attach failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go client.Run(ctx)

	select {
	case sub := <-subs:
		if sub.Action != "SubAdd" || len(sub.Subs) != 1 || sub.Subs[0] != "0~Binance~BTC~USDT" {
			t.Errorf("unexpected subscription %+v", sub)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no subscription received")
	}

	select {
	case tr := <-trades:
		if tr.Price != 42000.5 || tr.Time != 1700000000 || tr.Exchange != "Binance" || tr.Volume != 0.25 {
			t.Errorf("unexpected trade %+v", tr)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no trade received")
	}

	select {
	case <-resets:
	case <-time.After(10 * time.Second):
		t.Fatal("expected reset after reconnect")
	}

	select {
	case tr := <-trades:
		t.Errorf("unexpected extra trade %+v", tr)
	default:
	}
}

func TestStreamClientAttachDetach(t *testing.T) {
	client := NewStreamClient("", "")
	sym := model.SymbolIdentity{Exchange: "Binance", FromAsset: "BTC", ToAsset: "USDT"}
	ctx := context.Background()

	if err := client.Attach(ctx, "a", sym, func(model.Trade) {}, nil); err != nil {
		t.Fatal(err)
	}
	if err := client.Attach(ctx, "a", sym, func(model.Trade) {}, nil); err == nil {
		t.Error("expected duplicate attach to fail")
	}
	if err := client.Attach(ctx, "b", sym, func(model.Trade) {}, nil); err != nil {
		t.Fatal(err)
	}
	if n := len(client.channels["0~Binance~BTC~USDT"]); n != 2 {
		t.Errorf("expected 2 listeners on channel, got %d", n)
	}

	client.Detach("a")
	client.Detach("a")
	client.Detach("b")
	if len(client.channels) != 0 || len(client.listeners) != 0 {
		t.Errorf("expected empty registry, got %v %v", client.channels, client.listeners)
	}
}

func TestStreamClientBuildURL(t *testing.T) {
	u, err := NewStreamClient("wss://example.com/v2", "secret").buildURL()
	if err != nil {
		t.Fatal(err)
	}
	if u != "wss://example.com/v2?api_key=secret" {
		t.Errorf("unexpected url %s", u)
	}
}

func TestStreamClientHandleMessageIgnoresGarbage(t *testing.T) {
	client := NewStreamClient("", "")
	got := 0
	_ = client.Attach(context.Background(), "a", model.SymbolIdentity{Exchange: "Binance", FromAsset: "ETH", ToAsset: "BTC"},
		func(model.Trade) { got++ }, nil)

	client.handleMessage([]byte("not json"))
	b, _ := json.Marshal(map[string]any{"TYPE": "999"})
	client.handleMessage(b)
	b, _ = json.Marshal(map[string]any{"TYPE": "0", "M": "Binance", "FSYM": "ETH", "TSYM": "BTC", "P": 0.05, "TS": 10})
	client.handleMessage(b)
	b, _ = json.Marshal(map[string]any{"TYPE": "0", "M": "Binance", "FSYM": "ETH", "TSYM": "BTC", "P": 0, "TS": 11})
	client.handleMessage(b)

	if got != 1 {
		t.Errorf("expected 1 trade, got %d", got)
	}
}
