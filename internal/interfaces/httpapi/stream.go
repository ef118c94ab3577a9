package httpapi

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"chartfeed/internal/domain/model"
)

const (
	writeWait      = 5 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBuffer     = 256
)

// Frame types written to stream clients.
const (
	FrameBar   = "bar"
	FrameReset = "reset"
	FrameError = "error"
)

type clientFrame struct {
	Action     string `json:"action"` // subscribe | unsubscribe
	UID        string `json:"uid"`
	Symbol     string `json:"symbol"`
	Resolution string `json:"resolution"`
}

type serverFrame struct {
	UID     string     `json:"uid"`
	Type    string     `json:"type"`
	Bar     *model.Bar `json:"bar,omitempty"`
	Message string     `json:"message,omitempty"`
}

type client struct {
	srv  *Server
	id   string
	conn *websocket.Conn
	send chan serverFrame
	done chan struct{}

	mu   sync.Mutex
	uids map[string]struct{} // client uid set
}

func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	cl := &client{
		srv:  s,
		id:   strconv.FormatUint(s.clientSeq.Add(1), 10),
		conn: conn,
		send: make(chan serverFrame, sendBuffer),
		done: make(chan struct{}),
		uids: make(map[string]struct{}),
	}

	s.mu.Lock()
	s.clients[cl] = struct{}{}
	s.mu.Unlock()
	log.Info().Str("client", cl.id).Msg("stream client connected")

	go cl.writePump()
	cl.readPump()
}

// feedUID scopes a client uid so two clients may reuse the same id.
func (c *client) feedUID(uid string) string {
	return c.id + ":" + uid
}

// readPump owns the connection until it fails, then releases every subscription.
func (c *client) readPump() {
	defer c.release()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("client", c.id).Msg("stream read error")
			}
			return
		}
		c.handle(msg)
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case f := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(f); err != nil {
				log.Warn().Err(err).Str("client", c.id).Msg("stream write error")
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *client) handle(msg []byte) {
	var f clientFrame
	if err := json.Unmarshal(msg, &f); err != nil {
		c.enqueue(serverFrame{Type: FrameError, Message: "invalid frame"})
		return
	}
	if f.UID == "" {
		c.enqueue(serverFrame{Type: FrameError, Message: "uid is required"})
		return
	}

	switch f.Action {
	case "subscribe":
		c.subscribe(f)
	case "unsubscribe":
		c.unsubscribe(f.UID)
	default:
		c.enqueue(serverFrame{UID: f.UID, Type: FrameError, Message: "unknown action " + f.Action})
	}
}

func (c *client) subscribe(f clientFrame) {
	ctx := context.Background()
	info, reason, ok := c.srv.resolveSymbol(ctx, f.Symbol)
	if !ok {
		c.enqueue(serverFrame{UID: f.UID, Type: FrameError, Message: reason})
		return
	}

	uid := f.UID
	err := c.srv.feed.SubscribeBars(ctx, info, f.Resolution,
		func(bar model.Bar) {
			c.enqueue(serverFrame{UID: uid, Type: FrameBar, Bar: &bar})
		},
		c.feedUID(uid),
		func() {
			c.enqueue(serverFrame{UID: uid, Type: FrameReset})
		},
	)
	if err != nil {
		c.enqueue(serverFrame{UID: uid, Type: FrameError, Message: err.Error()})
		return
	}

	c.mu.Lock()
	c.uids[uid] = struct{}{}
	c.mu.Unlock()
}

func (c *client) unsubscribe(uid string) {
	c.mu.Lock()
	_, ok := c.uids[uid]
	delete(c.uids, uid)
	c.mu.Unlock()

	if ok {
		c.srv.feed.UnsubscribeBars(c.feedUID(uid))
	}
}

// enqueue never blocks the feed; frames for a full or closed client are dropped.
func (c *client) enqueue(f serverFrame) {
	select {
	case <-c.done:
		return
	default:
	}
	select {
	case c.send <- f:
	default:
		log.Warn().Str("client", c.id).Str("uid", f.UID).Str("type", f.Type).Msg("stream client too slow, frame dropped")
	}
}

func (c *client) release() {
	c.mu.Lock()
	uids := make([]string, 0, len(c.uids))
	for uid := range c.uids {
		uids = append(uids, uid)
	}
	c.uids = map[string]struct{}{}
	c.mu.Unlock()

	for _, uid := range uids {
		c.srv.feed.UnsubscribeBars(c.feedUID(uid))
	}

	c.srv.mu.Lock()
	delete(c.srv.clients, c)
	c.srv.mu.Unlock()

	close(c.done)
	log.Info().Str("client", c.id).Int("released", len(uids)).Msg("stream client disconnected")
}
