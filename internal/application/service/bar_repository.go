package service

import (
	"context"
	"fmt"

	"chartfeed/internal/application/port"
	"chartfeed/internal/domain/model"

	"github.com/rs/zerolog/log"
)

// DefaultBarLimit is the number of rows requested per history page.
const DefaultBarLimit = 2000

// BarRepository fetches raw rows from a bars source and maps them into chart bars.
type BarRepository struct {
	source port.BarSource
	limit  int
}

func NewBarRepository(source port.BarSource, limit int) *BarRepository {
	if limit <= 0 {
		limit = DefaultBarLimit
	}
	return &BarRepository{source: source, limit: limit}
}

// GetBars returns the bars of symbolInfo with from <= time < to, ascending.
func (r *BarRepository) GetBars(ctx context.Context, symbolInfo model.SymbolInfo, from, to int64) ([]model.Bar, error) {
	sym, ok := model.ParseFullSymbol(symbolInfo.FullName)
	if !ok {
		return nil, fmt.Errorf("%w: %q", model.ErrMalformedSymbol, symbolInfo.FullName)
	}

	rows, err := r.source.FetchBars(ctx, port.BarQuery{
		Exchange: sym.Exchange,
		From:     sym.FromAsset,
		To:       sym.ToAsset,
		ToTs:     to,
		Limit:    r.limit,
	})
	if err != nil {
		return nil, err
	}

	bars := make([]model.Bar, 0, len(rows))
	for i, row := range rows {
		if len(row) < 5 {
			return nil, fmt.Errorf("%w: bar row %d has %d fields", model.ErrDataSource, i, len(row))
		}
		ts := int64(row[0])
		if ts < from || ts >= to {
			continue
		}
		if n := len(bars); n > 0 && ts <= bars[n-1].Time {
			log.Debug().Str("symbol", symbolInfo.FullName).Int64("time", ts).Msg("skipping out-of-order bar row")
			continue
		}
		bars = append(bars, model.Bar{
			Time:  ts,
			Open:  row[1],
			High:  row[2],
			Low:   row[3],
			Close: row[4],
		})
	}
	return bars, nil
}
