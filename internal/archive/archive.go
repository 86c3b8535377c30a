// Package archive writes point-in-time snapshots of the portfolio and the
// market indices to Parquet files on disk.
package archive

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/shopspring/decimal"

	"marketwatch/internal/domain"
)

// Archive stores snapshots under Dir.
type Archive struct {
	Dir string
}

// New returns an Archive rooted at dir.
func New(dir string) *Archive {
	return &Archive{Dir: dir}
}

// ---------------------------------------------------------------------------
// Parquet record types (on-disk schema)
// ---------------------------------------------------------------------------

// HoldingRecord is one holding at one snapshot time.
type HoldingRecord struct {
	Timestamp    int64   `parquet:"timestamp,timestamp(millisecond)"` // Unix ms
	Symbol       string  `parquet:"symbol"`
	Name         string  `parquet:"name"`
	Quantity     int64   `parquet:"quantity"`
	AvgPrice     float64 `parquet:"avg_price"`
	CurrentPrice float64 `parquet:"current_price"`
	HasPrice     bool    `parquet:"has_price"`
}

// IndexRecord is the index levels at one snapshot time.
type IndexRecord struct {
	Timestamp int64   `parquet:"timestamp,timestamp(millisecond)"` // Unix ms
	Nifty     float64 `parquet:"nifty"`
	Sensex    float64 `parquet:"sensex"`
}

// ---------------------------------------------------------------------------
// Holdings
// ---------------------------------------------------------------------------

// WriteHoldings appends the holdings as of at to that day's file:
//
//	<Dir>/holdings/<YYYY-MM-DD>.parquet
//
// A second snapshot with the same timestamp replaces the first.
func (a *Archive) WriteHoldings(_ context.Context, at time.Time, holdings []domain.Holding) error {
	if len(holdings) == 0 {
		return nil
	}
	ts := at.UnixMilli()
	records := make([]HoldingRecord, 0, len(holdings))
	for _, h := range holdings {
		r := HoldingRecord{
			Timestamp: ts,
			Symbol:    h.Symbol,
			Name:      h.Name,
			Quantity:  h.Quantity,
			AvgPrice:  h.AvgPrice.InexactFloat64(),
		}
		if h.CurrentPrice != nil {
			r.CurrentPrice = h.CurrentPrice.InexactFloat64()
			r.HasPrice = true
		}
		records = append(records, r)
	}

	path := a.holdingsPath(at)
	existing, _ := readParquetFile[HoldingRecord](path)
	merged := mergeHoldingRecords(existing, records)
	if err := writeParquetFile(path, merged); err != nil {
		return fmt.Errorf("writing holdings for %s: %w", at.Format(time.DateOnly), err)
	}
	return nil
}

// ReadHoldings returns every holding recorded on day, grouped by snapshot
// time in ascending order.
func (a *Archive) ReadHoldings(_ context.Context, day time.Time) (map[time.Time][]domain.Holding, error) {
	records, err := readParquetFile[HoldingRecord](a.holdingsPath(day))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	out := make(map[time.Time][]domain.Holding)
	for _, r := range records {
		h := domain.Holding{
			Symbol:   r.Symbol,
			Name:     r.Name,
			Quantity: r.Quantity,
			AvgPrice: decimal.NewFromFloat(r.AvgPrice),
		}
		if r.HasPrice {
			p := decimal.NewFromFloat(r.CurrentPrice)
			h.CurrentPrice = &p
		}
		ts := time.UnixMilli(r.Timestamp).UTC()
		out[ts] = append(out[ts], h)
	}
	return out, nil
}

// ListDays returns the days that have a holdings file, oldest first.
func (a *Archive) ListDays() ([]time.Time, error) {
	entries, err := os.ReadDir(filepath.Join(a.Dir, "holdings"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var days []time.Time
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || filepath.Ext(name) != ".parquet" {
			continue
		}
		d, err := time.Parse(time.DateOnly, name[:len(name)-len(".parquet")])
		if err != nil {
			continue
		}
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	return days, nil
}

// ---------------------------------------------------------------------------
// Indices
// ---------------------------------------------------------------------------

// WriteIndices appends one index reading to the year's file:
//
//	<Dir>/indices/<YYYY>.parquet
func (a *Archive) WriteIndices(_ context.Context, at time.Time, idx domain.Indices) error {
	path := a.indicesPath(at)
	existing, _ := readParquetFile[IndexRecord](path)
	merged := mergeIndexRecords(existing, []IndexRecord{{
		Timestamp: at.UnixMilli(),
		Nifty:     idx.Nifty.InexactFloat64(),
		Sensex:    idx.Sensex.InexactFloat64(),
	}})
	if err := writeParquetFile(path, merged); err != nil {
		return fmt.Errorf("writing indices for %d: %w", at.Year(), err)
	}
	return nil
}

// ReadIndices returns index readings in [start, end].
func (a *Archive) ReadIndices(_ context.Context, start, end time.Time) ([]IndexRecord, error) {
	var out []IndexRecord
	for year := start.Year(); year <= end.Year(); year++ {
		records, err := readParquetFile[IndexRecord](a.indicesPath(time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)))
		if err != nil {
			continue
		}
		for _, r := range records {
			ts := time.UnixMilli(r.Timestamp)
			if !ts.Before(start) && !ts.After(end) {
				out = append(out, r)
			}
		}
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Path helpers
// ---------------------------------------------------------------------------

func (a *Archive) holdingsPath(t time.Time) string {
	return filepath.Join(a.Dir, "holdings", t.UTC().Format(time.DateOnly)+".parquet")
}

func (a *Archive) indicesPath(t time.Time) string {
	return filepath.Join(a.Dir, "indices", fmt.Sprintf("%d.parquet", t.UTC().Year()))
}

// ---------------------------------------------------------------------------
// Parquet file helpers
// ---------------------------------------------------------------------------

func writeParquetFile[T any](path string, records []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, records)
}

func readParquetFile[T any](path string) ([]T, error) {
	return parquet.ReadFile[T](path)
}

// mergeHoldingRecords deduplicates by (timestamp, symbol), preferring
// incoming records, sorted by timestamp then symbol.
func mergeHoldingRecords(existing, incoming []HoldingRecord) []HoldingRecord {
	type key struct {
		ts     int64
		symbol string
	}
	seen := make(map[key]HoldingRecord, len(existing)+len(incoming))
	for _, r := range existing {
		seen[key{r.Timestamp, r.Symbol}] = r
	}
	for _, r := range incoming {
		seen[key{r.Timestamp, r.Symbol}] = r
	}
	merged := make([]HoldingRecord, 0, len(seen))
	for _, r := range seen {
		merged = append(merged, r)
	}
	sort.Slice(merged, func(i, j int) bool {
		if merged[i].Timestamp != merged[j].Timestamp {
			return merged[i].Timestamp < merged[j].Timestamp
		}
		return merged[i].Symbol < merged[j].Symbol
	})
	return merged
}

func mergeIndexRecords(existing, incoming []IndexRecord) []IndexRecord {
	seen := make(map[int64]IndexRecord, len(existing)+len(incoming))
	for _, r := range existing {
		seen[r.Timestamp] = r
	}
	for _, r := range incoming {
		seen[r.Timestamp] = r
	}
	merged := make([]IndexRecord, 0, len(seen))
	for _, r := range seen {
		merged = append(merged, r)
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].Timestamp < merged[j].Timestamp })
	return merged
}
