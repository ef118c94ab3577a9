package barapi

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"chartfeed/internal/application/port"
	"chartfeed/internal/domain/model"
)

const (
	defaultLimit = 2000
	maxLimit     = 10000
)

var errMissingSymbol = errors.New("e, fsym and tsym are required")

// Handler serves stored bars as positional rows [time, open, high, low, close].
type Handler struct {
	store port.BarStore
	seed  *model.SymbolIdentity
}

// NewHandler builds the bars API. seed, when set, is served for requests
// that carry no symbol parameters.
func NewHandler(store port.BarStore, seed *model.SymbolIdentity) *Handler {
	return &Handler{store: store, seed: seed}
}

func (h *Handler) Register(r gin.IRoutes) {
	r.GET("/get-bars", h.getBars)
	r.POST("/bars", h.ingest)
	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
}

func (h *Handler) getBars(c *gin.Context) {
	sym, err := h.symbol(c, true)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	toTs, err := optionalInt(c.Query("toTs"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid toTs"})
		return
	}
	limit, err := optionalInt(c.Query("limit"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
		return
	}
	switch {
	case limit <= 0:
		limit = defaultLimit
	case limit > maxLimit:
		limit = maxLimit
	}

	bars, err := h.store.ListBars(c.Request.Context(), sym, toTs, int(limit))
	if err != nil {
		log.Error().Err(err).Str("symbol", sym.Full()).Msg("list bars failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list bars failed"})
		return
	}

	rows := make([][]float64, 0, len(bars))
	for _, b := range bars {
		rows = append(rows, []float64{float64(b.Time), b.Open, b.High, b.Low, b.Close})
	}
	c.JSON(http.StatusOK, rows)
}

func (h *Handler) ingest(c *gin.Context) {
	sym, err := h.symbol(c, false)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var raw [][]decimal.NullDecimal
	if err := c.ShouldBindJSON(&raw); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "body must be an array of [time, open, high, low, close]"})
		return
	}
	bars, err := RowsToBars(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.store.UpsertBars(c.Request.Context(), sym, bars); err != nil {
		log.Error().Err(err).Str("symbol", sym.Full()).Msg("upsert bars failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "upsert bars failed"})
		return
	}
	log.Debug().Str("symbol", sym.Full()).Int("bars", len(bars)).Msg("bars ingested")
	c.JSON(http.StatusOK, gin.H{"stored": len(bars)})
}

func (h *Handler) symbol(c *gin.Context, allowSeed bool) (model.SymbolIdentity, error) {
	sym := model.SymbolIdentity{Exchange: c.Query("e"), FromAsset: c.Query("fsym"), ToAsset: c.Query("tsym")}
	if sym.Exchange == "" && sym.FromAsset == "" && sym.ToAsset == "" && allowSeed && h.seed != nil {
		return *h.seed, nil
	}
	if sym.Exchange == "" || sym.FromAsset == "" || sym.ToAsset == "" {
		return model.SymbolIdentity{}, errMissingSymbol
	}
	return sym, nil
}

// RowsToBars converts positional rows into bars. Short rows and null cells are rejected.
func RowsToBars(raw [][]decimal.NullDecimal) ([]model.Bar, error) {
	bars := make([]model.Bar, 0, len(raw))
	for i, r := range raw {
		if len(r) < 5 {
			return nil, fmt.Errorf("row %d has %d fields", i, len(r))
		}
		for j := 0; j < 5; j++ {
			if !r[j].Valid {
				return nil, fmt.Errorf("row %d field %d is null", i, j)
			}
		}
		bars = append(bars, model.Bar{
			Time:  r[0].Decimal.IntPart(),
			Open:  r[1].Decimal.InexactFloat64(),
			High:  r[2].Decimal.InexactFloat64(),
			Low:   r[3].Decimal.InexactFloat64(),
			Close: r[4].Decimal.InexactFloat64(),
		})
	}
	return bars, nil
}

func optionalInt(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseInt(s, 10, 64)
}
