package barapi

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"chartfeed/internal/application/port"
	"chartfeed/internal/domain/model"
)

// LoadSeed upserts the JSON rows in path as bars of sym.
func LoadSeed(ctx context.Context, store port.BarStore, sym model.SymbolIdentity, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read seed %s: %w", path, err)
	}

	var raw [][]decimal.NullDecimal
	if err := json.Unmarshal(data, &raw); err != nil {
		return 0, fmt.Errorf("parse seed %s: %w", path, err)
	}
	bars, err := RowsToBars(raw)
	if err != nil {
		return 0, fmt.Errorf("seed %s: %w", path, err)
	}
	if err := store.UpsertBars(ctx, sym, bars); err != nil {
		return 0, err
	}

	log.Info().Str("symbol", sym.Full()).Int("bars", len(bars)).Str("file", path).Msg("seed loaded")
	return len(bars), nil
}
