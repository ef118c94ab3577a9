package service

import (
	"context"
	"errors"
	"testing"

	"chartfeed/internal/application/port"
	"chartfeed/internal/domain/model"
)

type mockBarSource struct {
	rows  []port.BarRow
	err   error
	query port.BarQuery
}

func (m *mockBarSource) FetchBars(ctx context.Context, q port.BarQuery) ([]port.BarRow, error) {
	m.query = q
	return m.rows, m.err
}

func btcInfo() model.SymbolInfo {
	return model.SymbolInfo{Name: "BTC/USDT", FullName: "Binance:BTC/USDT"}
}

func TestBarRepositoryWindow(t *testing.T) {
	src := &mockBarSource{rows: []port.BarRow{
		{100, 1, 2, 0.5, 1.5},
		{160, 1.5, 3, 1, 2},
		{220, 2, 2.5, 1.8, 2.2},
		{280, 2.2, 2.4, 2, 2.1},
	}}
	repo := NewBarRepository(src, 0)

	bars, err := repo.GetBars(context.Background(), btcInfo(), 160, 280)
	if err != nil {
		t.Fatalf("GetBars failed: %v", err)
	}
	if len(bars) != 2 {
		t.Fatalf("expected 2 bars, got %d", len(bars))
	}
	if bars[0] != (model.Bar{Time: 160, Open: 1.5, High: 3, Low: 1, Close: 2}) {
		t.Errorf("unexpected first bar %+v", bars[0])
	}
	if bars[1].Time != 220 {
		t.Errorf("expected second bar at 220, got %d", bars[1].Time)
	}

	q := src.query
	if q.Exchange != "Binance" || q.From != "BTC" || q.To != "USDT" || q.ToTs != 280 || q.Limit != DefaultBarLimit {
		t.Errorf("unexpected query %+v", q)
	}
}

func TestBarRepositoryWindowProperty(t *testing.T) {
	var rows []port.BarRow
	for ts := 0; ts < 50; ts++ {
		rows = append(rows, port.BarRow{float64(ts * 10), 1, 1, 1, 1})
	}
	repo := NewBarRepository(&mockBarSource{rows: rows}, 10)

	windows := [][2]int64{{0, 500}, {0, 0}, {15, 16}, {10, 20}, {-100, 5}, {495, 1000}, {123, 377}}
	for _, w := range windows {
		bars, err := repo.GetBars(context.Background(), btcInfo(), w[0], w[1])
		if err != nil {
			t.Fatal(err)
		}
		for i, b := range bars {
			if b.Time < w[0] || b.Time >= w[1] {
				t.Errorf("window %v: bar %d outside window", w, b.Time)
			}
			if i > 0 && bars[i-1].Time >= b.Time {
				t.Errorf("window %v: order broken at %d", w, i)
			}
		}
	}
}

func TestBarRepositorySkipsDuplicates(t *testing.T) {
	src := &mockBarSource{rows: []port.BarRow{
		{100, 1, 1, 1, 1},
		{100, 2, 2, 2, 2},
		{90, 3, 3, 3, 3},
		{110, 4, 4, 4, 4},
	}}
	bars, err := NewBarRepository(src, 0).GetBars(context.Background(), btcInfo(), 0, 1000)
	if err != nil {
		t.Fatal(err)
	}
	if len(bars) != 2 || bars[0].Open != 1 || bars[1].Time != 110 {
		t.Errorf("unexpected bars %+v", bars)
	}
}

func TestBarRepositoryErrors(t *testing.T) {
	ctx := context.Background()

	repo := NewBarRepository(&mockBarSource{}, 0)
	if _, err := repo.GetBars(ctx, model.SymbolInfo{FullName: "BAD"}, 0, 1); !errors.Is(err, model.ErrMalformedSymbol) {
		t.Errorf("expected ErrMalformedSymbol, got %v", err)
	}

	repo = NewBarRepository(&mockBarSource{err: model.ErrDataSource}, 0)
	if _, err := repo.GetBars(ctx, btcInfo(), 0, 1); !errors.Is(err, model.ErrDataSource) {
		t.Errorf("expected ErrDataSource, got %v", err)
	}

	repo = NewBarRepository(&mockBarSource{rows: []port.BarRow{{1, 2, 3}}}, 0)
	if _, err := repo.GetBars(ctx, btcInfo(), 0, 10); !errors.Is(err, model.ErrDataSource) {
		t.Errorf("expected ErrDataSource for short row, got %v", err)
	}
}
