package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"chartfeed/internal/application/usecase/datafeed"
	"chartfeed/internal/domain/model"
)

// Server exposes the datafeed to a browser chart host over HTTP and a websocket.
type Server struct {
	feed   *datafeed.Datafeed
	engine *gin.Engine
	srv    *http.Server

	upgrader websocket.Upgrader

	clientSeq  atomic.Uint64
	requestSeq atomic.Uint64
	mu        sync.RWMutex
	clients   map[*client]struct{}
}

func NewServer(feed *datafeed.Datafeed, listen, logLevel string) *Server {
	if !strings.EqualFold(logLevel, "debug") {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		feed:    feed,
		engine:  gin.New(),
		clients: make(map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	s.engine.Use(gin.Recovery(), requestLogger(), cors())
	s.setupRoutes()

	s.srv = &http.Server{
		Addr:              listen,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.engine.GET("/config", s.getConfig)
	s.engine.GET("/search", s.search)
	s.engine.GET("/symbols", s.resolve)
	s.engine.GET("/history", s.history)
	s.engine.GET("/healthz", s.health)

	s.engine.GET("/stream", s.handleWebSocket)
}

// Handler returns the routed engine.
func (s *Server) Handler() http.Handler { return s.engine }

// Start blocks serving until Shutdown.
func (s *Server) Start() error {
	log.Info().Str("addr", s.srv.Addr).Msg("http server listening")
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and drops every websocket client.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.srv.Shutdown(ctx)

	s.mu.RLock()
	clients := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.RUnlock()
	for _, c := range clients {
		_ = c.conn.Close()
	}
	return err
}

func (s *Server) getConfig(c *gin.Context) {
	done := make(chan model.DatafeedConfiguration, 1)
	s.feed.OnReady(func(cfg model.DatafeedConfiguration) { done <- cfg })

	select {
	case cfg := <-done:
		c.JSON(http.StatusOK, cfg)
	case <-c.Request.Context().Done():
		c.Status(http.StatusRequestTimeout)
	}
}

func (s *Server) search(c *gin.Context) {
	var out []model.SymbolDescriptor
	s.feed.SearchSymbols(c.Request.Context(), c.Query("query"), c.Query("exchange"), c.Query("type"),
		func(items []model.SymbolDescriptor) { out = items })
	c.JSON(http.StatusOK, out)
}

func (s *Server) resolve(c *gin.Context) {
	info, reason, ok := s.resolveSymbol(c.Request.Context(), c.Query("symbol"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"s": "error", "errmsg": reason})
		return
	}
	c.JSON(http.StatusOK, info)
}

func (s *Server) history(c *gin.Context) {
	resolution := c.Query("resolution")
	from, errFrom := strconv.ParseInt(c.Query("from"), 10, 64)
	to, errTo := strconv.ParseInt(c.Query("to"), 10, 64)
	if resolution == "" || errFrom != nil || errTo != nil {
		c.JSON(http.StatusBadRequest, gin.H{"s": "error", "errmsg": "resolution, from and to are required"})
		return
	}
	first, _ := strconv.ParseBool(c.Query("first"))

	ctx := c.Request.Context()
	info, reason, ok := s.resolveSymbol(ctx, c.Query("symbol"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"s": "error", "errmsg": reason})
		return
	}

	s.feed.GetBars(s.historyScope(ctx, c.Query("session")), info, resolution, from, to,
		func(bars []model.Bar, meta model.HistoryMeta) {
			status := "ok"
			if meta.NoData {
				status = "no_data"
			}
			c.JSON(http.StatusOK, gin.H{"s": status, "bars": bars})
		},
		func(reason string) {
			c.JSON(http.StatusBadGateway, gin.H{"s": "error", "errmsg": reason})
		},
		first,
	)
}

func (s *Server) health(c *gin.Context) {
	s.mu.RLock()
	connections := len(s.clients)
	s.mu.RUnlock()

	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"connections": connections,
	})
}

// historyScope limits stale-request detection to one host session. Without a
// session every request gets its own scope and is never superseded.
func (s *Server) historyScope(ctx context.Context, session string) context.Context {
	if session != "" {
		return datafeed.WithScope(ctx, "session:"+session)
	}
	return datafeed.WithScope(ctx, "request:"+strconv.FormatUint(s.requestSeq.Add(1), 10))
}

// resolveSymbol adapts the callback pair of ResolveSymbol to a return value.
func (s *Server) resolveSymbol(ctx context.Context, name string) (model.SymbolInfo, string, bool) {
	var (
		info   model.SymbolInfo
		reason string
		ok     bool
	)
	s.feed.ResolveSymbol(ctx, name,
		func(si model.SymbolInfo) { info, ok = si, true },
		func(r string) { reason = r },
	)
	return info, reason, ok
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("http request")
	}
}

func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Headers", "Content-Type, Accept, Origin, Cache-Control, X-Requested-With")
		h.Set("Access-Control-Allow-Methods", "GET, OPTIONS")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
