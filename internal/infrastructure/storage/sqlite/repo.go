package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"chartfeed/internal/application/port"
	"chartfeed/internal/domain/model"
)

type Repo struct {
	db *sql.DB
}

func New(path string) (*Repo, error) {
	// ensure directory exists
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		_ = os.MkdirAll(dir, 0o755)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	r := &Repo{db: db}
	if err := r.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

func (r *Repo) Close() error { return r.db.Close() }

func (r *Repo) migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS bars (
  exchange TEXT NOT NULL,
  from_asset TEXT NOT NULL,
  to_asset TEXT NOT NULL,
  ts INTEGER NOT NULL,
  open REAL NOT NULL,
  high REAL NOT NULL,
  low REAL NOT NULL,
  close REAL NOT NULL,
  updated_at INTEGER NOT NULL,
  PRIMARY KEY(exchange, from_asset, to_asset, ts)
);
CREATE INDEX IF NOT EXISTS idx_bars_ts ON bars(ts);
`)
	return err
}

func (r *Repo) UpsertBars(ctx context.Context, symbol model.SymbolIdentity, bars []model.Bar) error {
	if len(bars) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO bars(exchange, from_asset, to_asset, ts, open, high, low, close, updated_at)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(exchange, from_asset, to_asset, ts) DO UPDATE SET
		open=excluded.open, high=excluded.high, low=excluded.low, close=excluded.close, updated_at=excluded.updated_at
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now().UnixMilli()
	for _, b := range bars {
		if _, err := stmt.ExecContext(ctx, symbol.Exchange, symbol.FromAsset, symbol.ToAsset, b.Time, b.Open, b.High, b.Low, b.Close, now); err != nil {
			return fmt.Errorf("upsert bar %s@%d: %w", symbol.Full(), b.Time, err)
		}
	}
	return tx.Commit()
}

func (r *Repo) ListBars(ctx context.Context, symbol model.SymbolIdentity, toTs int64, limit int) ([]model.Bar, error) {
	query := `SELECT ts, open, high, low, close FROM bars WHERE exchange=? AND from_asset=? AND to_asset=?`
	args := []any{symbol.Exchange, symbol.FromAsset, symbol.ToAsset}
	if toTs > 0 {
		query += ` AND ts < ?`
		args = append(args, toTs)
	}
	query += ` ORDER BY ts DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bars []model.Bar
	for rows.Next() {
		var b model.Bar
		if err := rows.Scan(&b.Time, &b.Open, &b.High, &b.Low, &b.Close); err != nil {
			return nil, err
		}
		bars = append(bars, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	reverse(bars)
	return bars, nil
}

func reverse(bars []model.Bar) {
	for i, j := 0, len(bars)-1; i < j; i, j = i+1, j-1 {
		bars[i], bars[j] = bars[j], bars[i]
	}
}

var _ port.BarStore = (*Repo)(nil)
