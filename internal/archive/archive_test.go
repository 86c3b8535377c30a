package archive

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"marketwatch/internal/domain"
)

func TestHoldingsPath(t *testing.T) {
	a := New("/data")
	at := time.Date(2024, 6, 15, 10, 30, 0, 0, time.UTC)
	want := filepath.Join("/data", "holdings", "2024-06-15.parquet")
	if got := a.holdingsPath(at); got != want {
		t.Errorf("holdingsPath = %q, want %q", got, want)
	}
	want = filepath.Join("/data", "indices", "2024.parquet")
	if got := a.indicesPath(at); got != want {
		t.Errorf("indicesPath = %q, want %q", got, want)
	}
}

func TestWriteReadHoldings(t *testing.T) {
	ctx := context.Background()
	a := New(t.TempDir())
	price := decimal.RequireFromString("2512.5")
	first := time.Date(2024, 6, 15, 9, 0, 0, 0, time.UTC)
	second := first.Add(time.Hour)

	if err := a.WriteHoldings(ctx, first, []domain.Holding{
		{Symbol: "RELI", Name: "Reliance Industries", Quantity: 10, AvgPrice: decimal.NewFromInt(2400), CurrentPrice: &price},
		{Symbol: "INFY", Quantity: 5, AvgPrice: decimal.NewFromInt(1500)},
	}); err != nil {
		t.Fatalf("WriteHoldings: %v", err)
	}
	if err := a.WriteHoldings(ctx, second, []domain.Holding{
		{Symbol: "INFY", Quantity: 6, AvgPrice: decimal.NewFromInt(1490)},
	}); err != nil {
		t.Fatalf("WriteHoldings: %v", err)
	}

	got, err := a.ReadHoldings(ctx, first)
	if err != nil {
		t.Fatalf("ReadHoldings: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("snapshots = %d, want 2", len(got))
	}
	early := got[first]
	if len(early) != 2 {
		t.Fatalf("first snapshot = %+v", early)
	}
	// Records are sorted by symbol within a snapshot.
	if early[0].Symbol != "INFY" || early[0].CurrentPrice != nil {
		t.Errorf("early[0] = %+v", early[0])
	}
	if early[1].Name != "Reliance Industries" || early[1].CurrentPrice == nil || !early[1].CurrentPrice.Equal(price) {
		t.Errorf("early[1] = %+v", early[1])
	}
	if late := got[second]; len(late) != 1 || late[0].Quantity != 6 {
		t.Errorf("second snapshot = %+v", late)
	}

	days, err := a.ListDays()
	if err != nil {
		t.Fatal(err)
	}
	if len(days) != 1 || !days[0].Equal(time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("ListDays = %v", days)
	}
}

func TestReadHoldingsMissingDay(t *testing.T) {
	a := New(t.TempDir())
	got, err := a.ReadHoldings(context.Background(), time.Now())
	if err != nil || got != nil {
		t.Errorf("ReadHoldings = %v, %v; want nil, nil", got, err)
	}
}

func TestIndicesRange(t *testing.T) {
	ctx := context.Background()
	a := New(t.TempDir())
	base := time.Date(2024, 12, 31, 15, 0, 0, 0, time.UTC)
	for i, at := range []time.Time{base, base.Add(24 * time.Hour), base.Add(48 * time.Hour)} {
		idx := domain.Indices{Nifty: decimal.NewFromInt(int64(22000 + i)), Sensex: decimal.NewFromInt(73000)}
		if err := a.WriteIndices(ctx, at, idx); err != nil {
			t.Fatalf("WriteIndices: %v", err)
		}
	}

	got, err := a.ReadIndices(ctx, base.Add(time.Hour), base.Add(72*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Nifty != 22001 || got[1].Nifty != 22002 {
		t.Errorf("ReadIndices = %+v", got)
	}
}
