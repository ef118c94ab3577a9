package postgres

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"

	"chartfeed/internal/application/port"
	"chartfeed/internal/domain/model"
)

type Repo struct {
	db *sql.DB
}

func New(dsn string) (*Repo, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

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
  ts BIGINT NOT NULL,
  open DOUBLE PRECISION NOT NULL,
  high DOUBLE PRECISION NOT NULL,
  low DOUBLE PRECISION NOT NULL,
  close DOUBLE PRECISION NOT NULL,
  PRIMARY KEY(exchange, from_asset, to_asset, ts)
);
CREATE INDEX IF NOT EXISTS idx_bars_ts ON bars(ts);
`)
	return err
}

func (r *Repo) UpsertBars(ctx context.Context, symbol model.SymbolIdentity, bars []model.Bar) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, b := range bars {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO bars(exchange, from_asset, to_asset, ts, open, high, low, close)
			VALUES($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT(exchange, from_asset, to_asset, ts) DO UPDATE SET
			open=EXCLUDED.open, high=EXCLUDED.high, low=EXCLUDED.low, close=EXCLUDED.close
		`, symbol.Exchange, symbol.FromAsset, symbol.ToAsset, b.Time, b.Open, b.High, b.Low, b.Close)
		if err != nil {
			return fmt.Errorf("upsert bar %s@%d: %w", symbol.Full(), b.Time, err)
		}
	}
	return tx.Commit()
}

func (r *Repo) ListBars(ctx context.Context, symbol model.SymbolIdentity, toTs int64, limit int) ([]model.Bar, error) {
	query := `SELECT ts, open, high, low, close FROM (
		SELECT ts, open, high, low, close FROM bars
		WHERE exchange=$1 AND from_asset=$2 AND to_asset=$3 AND ($4 = 0 OR ts < $4)
		ORDER BY ts DESC`
	args := []any{symbol.Exchange, symbol.FromAsset, symbol.ToAsset, toTs}
	if limit > 0 {
		query += ` LIMIT $5`
		args = append(args, limit)
	}
	query += `) t ORDER BY ts ASC`

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
	return bars, rows.Err()
}

var _ port.BarStore = (*Repo)(nil)
