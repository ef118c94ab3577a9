package cryptocompare

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"chartfeed/internal/application/port"
	"chartfeed/internal/domain/model"
	"chartfeed/internal/infrastructure/exchange"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const DefaultStreamURL = "wss://streaming.cryptocompare.com/v2"

// message TYPE values of the v2 streaming API
const (
	typeTrade          = "0"
	typeWelcome        = "20"
	typeSubscribeOK    = "16"
	typeUnsubscribeOK  = "17"
	typeLoadComplete   = "3"
	typeHeartbeat      = "999"
	typeInvalidSub     = "500"
	typeRateLimited    = "429"
	typeUnauthorized   = "401"
	typeTooManySockets = "409"
)

// StreamClient is a single shared websocket to the streaming API that fans
// trades out to attached listeners.
type StreamClient struct {
	wsURL  string
	apiKey string

	mu        sync.Mutex
	listeners map[string]*listener          // uid -> listener
	channels  map[string]map[string]struct{} // channel -> uids
	conn      *websocket.Conn
	connected bool // at least one successful connect so far

	writeMu sync.Mutex
}

type listener struct {
	channel string
	onTrade func(model.Trade)
	onReset func()
}

type subMsg struct {
	Action string   `json:"action"`
	Subs   []string `json:"subs"`
}

type streamMsg struct {
	Type    string  `json:"TYPE"`
	Market  string  `json:"M"`
	From    string  `json:"FSYM"`
	To      string  `json:"TSYM"`
	Price   float64 `json:"P"`
	Qty     float64 `json:"Q"`
	Ts      int64   `json:"TS"`
	Message string  `json:"MESSAGE"`
	Info    string  `json:"INFO"`
	Param   string  `json:"PARAMETER"`
}

func NewStreamClient(wsURL, apiKey string) *StreamClient {
	wsURL = strings.TrimSpace(wsURL)
	if wsURL == "" {
		wsURL = DefaultStreamURL
	}
	return &StreamClient{
		wsURL:     wsURL,
		apiKey:    strings.TrimSpace(apiKey),
		listeners: make(map[string]*listener),
		channels:  make(map[string]map[string]struct{}),
	}
}

func (c *StreamClient) Name() string { return "cryptocompare" }

func (c *StreamClient) Attach(ctx context.Context, uid string, symbol model.SymbolIdentity, onTrade func(model.Trade), onReset func()) error {
	channel := exchange.TradeChannel(symbol)

	c.mu.Lock()
	if _, exists := c.listeners[uid]; exists {
		c.mu.Unlock()
		return fmt.Errorf("stream listener %s already attached", uid)
	}
	c.listeners[uid] = &listener{channel: channel, onTrade: onTrade, onReset: onReset}
	uids, ok := c.channels[channel]
	if !ok {
		uids = make(map[string]struct{})
		c.channels[channel] = uids
	}
	uids[uid] = struct{}{}
	firstOnChannel := len(uids) == 1
	conn := c.conn
	c.mu.Unlock()

	if firstOnChannel && conn != nil {
		if err := c.send(conn, subMsg{Action: "SubAdd", Subs: []string{channel}}); err != nil {
			// resubscribed on reconnect
			log.Warn().Str("feed", c.Name()).Str("channel", channel).Err(err).Msg("ws subscribe failed")
		}
	}
	return nil
}

func (c *StreamClient) Detach(uid string) {
	c.mu.Lock()
	l, ok := c.listeners[uid]
	if !ok {
		c.mu.Unlock()
		return
	}
	delete(c.listeners, uid)
	uids := c.channels[l.channel]
	delete(uids, uid)
	lastOnChannel := len(uids) == 0
	if lastOnChannel {
		delete(c.channels, l.channel)
	}
	conn := c.conn
	c.mu.Unlock()

	if lastOnChannel && conn != nil {
		if err := c.send(conn, subMsg{Action: "SubRemove", Subs: []string{l.channel}}); err != nil {
			log.Warn().Str("feed", c.Name()).Str("channel", l.channel).Err(err).Msg("ws unsubscribe failed")
		}
	}
}

// Run keeps the connection alive until ctx is done.
func (c *StreamClient) Run(ctx context.Context) {
	wsURL, err := c.buildURL()
	if err != nil {
		log.Error().Str("feed", c.Name()).Err(err).Msg("invalid ws url")
		return
	}

	backoff := 500 * time.Millisecond
	maxBackoff := 10 * time.Second

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		log.Info().Str("feed", c.Name()).Str("url", c.wsURL).Msg("ws connecting")
		cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		conn, _, err := websocket.DefaultDialer.DialContext(cctx, wsURL, nil)
		cancel()
		if err != nil {
			log.Error().Str("feed", c.Name()).Err(err).Msg("ws dial failed")
			if !sleepCtx(ctx, backoff) {
				return
			}
			backoff = minDur(backoff*2, maxBackoff)
			continue
		}

		backoff = 500 * time.Millisecond
		log.Info().Str("feed", c.Name()).Msg("ws connected")
		c.onConnected(conn)

		err = readLoop(ctx, conn, c.handleMessage)

		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
		_ = conn.Close()

		if ctx.Err() != nil {
			return
		}

		log.Warn().Str("feed", c.Name()).Err(err).Msg("ws disconnected, reconnecting")
		if !sleepCtx(ctx, backoff) {
			return
		}
		backoff = minDur(backoff*2, maxBackoff)
	}
}

func (c *StreamClient) buildURL() (string, error) {
	u, err := url.Parse(c.wsURL)
	if err != nil {
		return "", err
	}
	if c.apiKey != "" {
		q := u.Query()
		q.Set("api_key", c.apiKey)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// onConnected resubscribes every active channel. After a reconnect the
// listeners are told to reset since trades may have been missed.
func (c *StreamClient) onConnected(conn *websocket.Conn) {
	c.mu.Lock()
	c.conn = conn
	reconnect := c.connected
	c.connected = true
	channels := make([]string, 0, len(c.channels))
	for ch := range c.channels {
		channels = append(channels, ch)
	}
	var resets []func()
	if reconnect {
		for _, l := range c.listeners {
			if l.onReset != nil {
				resets = append(resets, l.onReset)
			}
		}
	}
	c.mu.Unlock()

	if len(channels) > 0 {
		if err := c.send(conn, subMsg{Action: "SubAdd", Subs: channels}); err != nil {
			log.Error().Str("feed", c.Name()).Err(err).Msg("ws resubscribe failed")
		}
	}
	for _, reset := range resets {
		reset()
	}
}

func (c *StreamClient) handleMessage(b []byte) {
	var msg streamMsg
	if err := json.Unmarshal(b, &msg); err != nil {
		log.Error().Str("feed", c.Name()).Err(err).Msg("json unmarshal failed")
		return
	}

	switch msg.Type {
	case typeTrade:
		c.dispatch(model.Trade{
			Exchange: msg.Market,
			From:     msg.From,
			To:       msg.To,
			Price:    msg.Price,
			Volume:   msg.Qty,
			Time:     msg.Ts,
		})
	case typeWelcome, typeSubscribeOK, typeUnsubscribeOK, typeLoadComplete, typeHeartbeat:
		log.Debug().Str("feed", c.Name()).Str("type", msg.Type).Str("msg", msg.Message).Msg("ws control message")
	case typeInvalidSub, typeRateLimited, typeUnauthorized, typeTooManySockets:
		log.Warn().
			Str("feed", c.Name()).
			Str("type", msg.Type).
			Str("msg", msg.Message).
			Str("info", msg.Info).
			Str("param", msg.Param).
			Msg("ws error message")
	}
}

func (c *StreamClient) dispatch(t model.Trade) {
	if t.Price <= 0 {
		return
	}
	channel := exchange.TradeChannel(model.SymbolIdentity{Exchange: t.Exchange, FromAsset: t.From, ToAsset: t.To})

	c.mu.Lock()
	uids := c.channels[channel]
	targets := make([]func(model.Trade), 0, len(uids))
	for uid := range uids {
		targets = append(targets, c.listeners[uid].onTrade)
	}
	c.mu.Unlock()

	for _, onTrade := range targets {
		onTrade(t)
	}
}

func (c *StreamClient) send(conn *websocket.Conn, v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteJSON(v)
}

func readLoop(ctx context.Context, conn *websocket.Conn, onMsg func([]byte)) error {
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	pingTicker := time.NewTicker(25 * time.Second)
	defer pingTicker.Stop()

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		for {
			_, b, err := conn.ReadMessage()
			if err != nil {
				errCh <- err
				return
			}
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			onMsg(b)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errCh:
			return err
		case <-pingTicker.C:
			_ = conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(5*time.Second))
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func minDur(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}

var _ port.StreamTransport = (*StreamClient)(nil)
