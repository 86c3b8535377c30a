// Package report renders the dashboard's holdings and alerts as an xlsx
// workbook.
package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/xuri/excelize/v2"

	"marketwatch/internal/domain"
	"marketwatch/internal/util"
)

// Sheet names.
const (
	SheetPortfolio = "Portfolio"
	SheetAlerts    = "Alerts"
)

// Data is what goes into a workbook.
type Data struct {
	Holdings []domain.Holding
	Alerts   []domain.Alert
	Indices  *domain.Indices
}

// Generator builds workbooks.
type Generator struct {
	log *slog.Logger
}

// New returns a Generator.
func New(log *slog.Logger) *Generator {
	return &Generator{log: log}
}

// Generate returns the workbook bytes.
func (g *Generator) Generate(ctx context.Context, d Data) ([]byte, error) {
	rqID := util.RequestID(ctx)
	op := "report.Generate"

	if len(d.Holdings) == 0 && len(d.Alerts) == 0 {
		return nil, errors.New("nothing to export")
	}
	g.log.Debug("generate start", "rqID", rqID, "op", op)

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			g.log.Error("closing workbook", "rqID", rqID, "op", op, "error", err)
		}
	}()

	if err := g.fillPortfolio(f, d); err != nil {
		return nil, fmt.Errorf("portfolio sheet: %w", err)
	}
	if err := g.fillAlerts(f, d.Alerts); err != nil {
		return nil, fmt.Errorf("alerts sheet: %w", err)
	}

	if err := f.DeleteSheet("Sheet1"); err != nil {
		g.log.Error("deleting Sheet1", "rqID", rqID, "op", op, "error", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	g.log.Debug("generate completed", "rqID", rqID, "op", op, "bytes", buf.Len())
	return buf.Bytes(), nil
}

func headerStyle(f *excelize.File, color string) (int, error) {
	return f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{
			Type:    "pattern",
			Pattern: 1,
			Color:   []string{color},
		},
	})
}

func (g *Generator) fillPortfolio(f *excelize.File, d Data) error {
	sheet := SheetPortfolio
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}
	if err := f.MergeCell(sheet, "A1", "G1"); err != nil {
		return err
	}
	_ = f.SetCellStr(sheet, "A1", "Holdings")
	style, err := headerStyle(f, "#d9ead3")
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", "A1", style); err != nil {
		return err
	}

	for i, h := range []string{"name", "symbol", "quantity", "avg price", "invested", "current price", "change %"} {
		cell, _ := excelize.CoordinatesToCellName(i+1, 2)
		_ = f.SetCellStr(sheet, cell, h)
	}

	for i, h := range d.Holdings {
		row := i + 3
		_ = f.SetCellStr(sheet, fmt.Sprintf("A%d", row), h.Name)
		_ = f.SetCellStr(sheet, fmt.Sprintf("B%d", row), h.Symbol)
		_ = f.SetCellInt(sheet, fmt.Sprintf("C%d", row), h.Quantity)
		_ = f.SetCellValue(sheet, fmt.Sprintf("D%d", row), h.AvgPrice.InexactFloat64())
		_ = f.SetCellValue(sheet, fmt.Sprintf("E%d", row), h.Invested().InexactFloat64())
		if h.CurrentPrice != nil {
			_ = f.SetCellValue(sheet, fmt.Sprintf("F%d", row), h.CurrentPrice.InexactFloat64())
			if h.AvgPrice.IsPositive() {
				pct := h.CurrentPrice.Sub(h.AvgPrice).Div(h.AvgPrice).Shift(2).Round(2)
				_ = f.SetCellValue(sheet, fmt.Sprintf("G%d", row), pct.InexactFloat64())
			}
		}
	}

	row := len(d.Holdings) + 3
	_ = f.SetCellStr(sheet, fmt.Sprintf("A%d", row), "total")
	_ = f.SetCellValue(sheet, fmt.Sprintf("E%d", row), domain.TotalInvested(d.Holdings).InexactFloat64())

	if d.Indices != nil {
		row += 2
		_ = f.SetCellStr(sheet, fmt.Sprintf("A%d", row), "NIFTY 50")
		_ = f.SetCellValue(sheet, fmt.Sprintf("B%d", row), d.Indices.Nifty.InexactFloat64())
		_ = f.SetCellStr(sheet, fmt.Sprintf("A%d", row+1), "SENSEX")
		_ = f.SetCellValue(sheet, fmt.Sprintf("B%d", row+1), d.Indices.Sensex.InexactFloat64())
	}
	return nil
}

func (g *Generator) fillAlerts(f *excelize.File, alerts []domain.Alert) error {
	sheet := SheetAlerts
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}
	if err := f.MergeCell(sheet, "A1", "D1"); err != nil {
		return err
	}
	st := domain.CountAlerts(alerts)
	_ = f.SetCellStr(sheet, "A1", fmt.Sprintf("Alerts (%d active, %d triggered)", st.Active, st.Triggered))
	style, err := headerStyle(f, "#cfe2f3")
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", "A1", style); err != nil {
		return err
	}

	_ = f.SetCellStr(sheet, "A2", "symbol")
	_ = f.SetCellStr(sheet, "B2", "target")
	_ = f.SetCellStr(sheet, "C2", "status")
	_ = f.SetCellStr(sheet, "D2", "created")

	for i, a := range alerts {
		row := i + 3
		_ = f.SetCellStr(sheet, fmt.Sprintf("A%d", row), a.Symbol)
		_ = f.SetCellValue(sheet, fmt.Sprintf("B%d", row), a.TargetPrice.InexactFloat64())
		_ = f.SetCellStr(sheet, fmt.Sprintf("C%d", row), string(a.Status))
		_ = f.SetCellStr(sheet, fmt.Sprintf("D%d", row), a.CreatedAt)
	}
	return nil
}
