package postgres

import (
	"context"
	"os"
	"testing"

	"chartfeed/internal/domain/model"
)

// Runs only when CHARTFEED_TEST_POSTGRES_DSN points at a disposable database.
func TestPostgresRepoUpsertAndList(t *testing.T) {
	dsn := os.Getenv("CHARTFEED_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("CHARTFEED_TEST_POSTGRES_DSN not set")
	}

	repo, err := New(dsn)
	if err != nil {
		t.Fatalf("failed to create repo: %v", err)
	}
	defer repo.Close()

	ctx := context.Background()
	sym := model.SymbolIdentity{Exchange: "Test", FromAsset: "AAA", ToAsset: "BBB"}
	if _, err := repo.db.ExecContext(ctx, `DELETE FROM bars WHERE exchange=$1`, sym.Exchange); err != nil {
		t.Fatalf("cleanup failed: %v", err)
	}

	err = repo.UpsertBars(ctx, sym, []model.Bar{
		{Time: 100, Open: 1, High: 1, Low: 1, Close: 1},
		{Time: 200, Open: 2, High: 2, Low: 2, Close: 2},
		{Time: 300, Open: 3, High: 3, Low: 3, Close: 3},
	})
	if err != nil {
		t.Fatalf("UpsertBars failed: %v", err)
	}
	if err := repo.UpsertBars(ctx, sym, []model.Bar{{Time: 200, Open: 2, High: 5, Low: 2, Close: 4}}); err != nil {
		t.Fatalf("UpsertBars overwrite failed: %v", err)
	}

	bars, err := repo.ListBars(ctx, sym, 300, 10)
	if err != nil {
		t.Fatalf("ListBars failed: %v", err)
	}
	if len(bars) != 2 || bars[0].Time != 100 || bars[1].High != 5 {
		t.Errorf("unexpected bars %+v", bars)
	}

	bars, err = repo.ListBars(ctx, sym, 0, 1)
	if err != nil {
		t.Fatalf("ListBars failed: %v", err)
	}
	if len(bars) != 1 || bars[0].Time != 300 {
		t.Errorf("limit should keep newest bar, got %+v", bars)
	}
}
