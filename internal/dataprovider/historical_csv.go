package dataprovider

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/quadra-systems/hlquad/internal/eventbus"
	"github.com/shopspring/decimal"
)

// HistoricalCsv replays a "timestamp,symbol,open,high,low,close,volume" CSV
// file in ascending timestamp order, per SPEC_FULL §4.5. It is finite: once
// every row has been yielded, NextEvent returns ErrExhausted.
type HistoricalCsv struct {
	symbol string
	bars   []eventbus.MarketEvent
	cursor int
}

// NewHistoricalCsv reads and sorts the whole file up front -- the teacher's
// CSV-loading helpers (internal/backtester) do the same eager-parse, since
// backtests need deterministic replay order rather than streaming I/O.
func NewHistoricalCsv(path, symbol string) (*HistoricalCsv, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dataprovider: open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = 7

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("dataprovider: read header: %w", err)
	}
	if err := validateHeader(header); err != nil {
		return nil, err
	}

	var bars []eventbus.MarketEvent
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("dataprovider: read row: %w", err)
		}
		if record[1] != symbol {
			continue
		}
		bar, err := parseRow(record)
		if err != nil {
			return nil, err
		}
		bars = append(bars, bar)
	}

	sort.Slice(bars, func(i, j int) bool { return bars[i].Timestamp.Before(bars[j].Timestamp) })

	return &HistoricalCsv{symbol: symbol, bars: bars}, nil
}

func validateHeader(header []string) error {
	want := []string{"timestamp", "symbol", "open", "high", "low", "close", "volume"}
	if len(header) != len(want) {
		return fmt.Errorf("dataprovider: expected %d columns, got %d", len(want), len(header))
	}
	for i, col := range want {
		if header[i] != col {
			return fmt.Errorf("dataprovider: expected column %q at position %d, got %q", col, i, header[i])
		}
	}
	return nil
}

func parseRow(record []string) (eventbus.MarketEvent, error) {
	timestamp, err := parseTimestamp(record[0])
	if err != nil {
		return eventbus.MarketEvent{}, fmt.Errorf("dataprovider: parse timestamp %q: %w", record[0], err)
	}
	open, err := decimal.NewFromString(record[2])
	if err != nil {
		return eventbus.MarketEvent{}, fmt.Errorf("dataprovider: parse open %q: %w", record[2], err)
	}
	high, err := decimal.NewFromString(record[3])
	if err != nil {
		return eventbus.MarketEvent{}, fmt.Errorf("dataprovider: parse high %q: %w", record[3], err)
	}
	low, err := decimal.NewFromString(record[4])
	if err != nil {
		return eventbus.MarketEvent{}, fmt.Errorf("dataprovider: parse low %q: %w", record[4], err)
	}
	closePrice, err := decimal.NewFromString(record[5])
	if err != nil {
		return eventbus.MarketEvent{}, fmt.Errorf("dataprovider: parse close %q: %w", record[5], err)
	}
	volume, err := decimal.NewFromString(record[6])
	if err != nil {
		return eventbus.MarketEvent{}, fmt.Errorf("dataprovider: parse volume %q: %w", record[6], err)
	}
	return eventbus.NewBarEvent(record[1], timestamp, open, high, low, closePrice, volume)
}

// parseTimestamp accepts the spec's RFC-3339 UTC column format, falling back
// to integer epoch seconds for older CSVs that predate it.
func parseTimestamp(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	unixSeconds, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("not RFC-3339 or integer epoch seconds")
	}
	return time.Unix(unixSeconds, 0).UTC(), nil
}

// NextEvent returns the next bar in timestamp order, or ErrExhausted.
func (h *HistoricalCsv) NextEvent(ctx context.Context) (*eventbus.MarketEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if h.cursor >= len(h.bars) {
		return nil, ErrExhausted
	}
	bar := h.bars[h.cursor]
	h.cursor++
	return &bar, nil
}

// Close is a no-op; the source file is closed during loading.
func (h *HistoricalCsv) Close() error { return nil }
