package report

import (
	"bytes"
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"marketwatch/internal/domain"
	"marketwatch/internal/util"
)

func TestGenerate(t *testing.T) {
	price := decimal.NewFromInt(2640)
	data := Data{
		Holdings: []domain.Holding{
			{Symbol: "RELI", Name: "Reliance Industries", Quantity: 10, AvgPrice: decimal.NewFromInt(2400), CurrentPrice: &price},
			{Symbol: "INFY", Quantity: 5, AvgPrice: decimal.NewFromInt(1500)},
		},
		Alerts: []domain.Alert{
			{Symbol: "TATA", TargetPrice: decimal.NewFromInt(950), Status: domain.AlertActive},
		},
		Indices: &domain.Indices{Nifty: decimal.NewFromInt(22000), Sensex: decimal.NewFromInt(73000)},
	}

	raw, err := New(util.Discard()).Generate(context.Background(), data)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) != 2 || sheets[0] != SheetPortfolio || sheets[1] != SheetAlerts {
		t.Fatalf("sheets = %v", sheets)
	}

	cells := map[string]string{
		"A3": "Reliance Industries",
		"B3": "RELI",
		"C3": "10",
		"E3": "24000",
		"G3": "10",
		"B4": "INFY",
		"A5": "total",
		"E5": "31500",
		"B7": "22000",
	}
	for cell, want := range cells {
		got, err := f.GetCellValue(SheetPortfolio, cell)
		if err != nil {
			t.Fatalf("GetCellValue(%s): %v", cell, err)
		}
		if got != want {
			t.Errorf("%s = %q, want %q", cell, got, want)
		}
	}

	if got, _ := f.GetCellValue(SheetAlerts, "A3"); got != "TATA" {
		t.Errorf("alerts A3 = %q, want TATA", got)
	}
	if got, _ := f.GetCellValue(SheetAlerts, "C3"); got != "active" {
		t.Errorf("alerts C3 = %q, want active", got)
	}
}

func TestGenerateEmpty(t *testing.T) {
	if _, err := New(util.Discard()).Generate(context.Background(), Data{}); err == nil {
		t.Fatal("Generate with no data should fail")
	}
}
