package port

import (
	"context"

	"chartfeed/internal/domain/model"
)

// BarQuery carries the parameters of a bars request.
type BarQuery struct {
	Exchange string
	From     string // base asset
	To       string // quote asset
	ToTs     int64  // exclusive end, epoch seconds
	Limit    int
}

// BarRow is one positional row: [time, open, high, low, close].
type BarRow []float64

// BarSource returns raw bar rows, ascending by time.
type BarSource interface {
	FetchBars(ctx context.Context, q BarQuery) ([]BarRow, error)
}

// BarStore persists bars for the local bars server.
type BarStore interface {
	UpsertBars(ctx context.Context, symbol model.SymbolIdentity, bars []model.Bar) error
	// ListBars returns up to limit bars with time < toTs (0 = unbounded), ascending.
	ListBars(ctx context.Context, symbol model.SymbolIdentity, toTs int64, limit int) ([]model.Bar, error)
	Close() error
}
