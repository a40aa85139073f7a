package dataprovider

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func writeCsv(t *testing.T, rows string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "bars.csv")
	if err := os.WriteFile(path, []byte(rows), 0o644); err != nil {
		t.Fatalf("failed to write fixture csv: %v", err)
	}
	return path
}

func TestHistoricalCsvYieldsBarsInAscendingOrder(t *testing.T) {
	path := writeCsv(t, "timestamp,symbol,open,high,low,close,volume\n"+
		"200,ETH,101,102,100,101.5,10\n"+
		"100,ETH,100,101,99,100.5,12\n"+
		"150,BTC,50,51,49,50.5,20\n")

	provider, err := NewHistoricalCsv(path, "ETH")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	first, err := provider.NextEvent(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.Timestamp.Unix() != 100 {
		t.Fatalf("expected first bar at t=100, got t=%d", first.Timestamp.Unix())
	}

	second, err := provider.NextEvent(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second.Timestamp.Unix() != 200 {
		t.Fatalf("expected second bar at t=200, got t=%d", second.Timestamp.Unix())
	}

	if _, err := provider.NextEvent(context.Background()); err != ErrExhausted {
		t.Fatalf("expected ErrExhausted, got %v", err)
	}
}

func TestHistoricalCsvParsesRFC3339Timestamps(t *testing.T) {
	path := writeCsv(t, "timestamp,symbol,open,high,low,close,volume\n"+
		"2024-01-01T00:01:40Z,ETH,101,102,100,101.5,10\n"+
		"2024-01-01T00:00:00Z,ETH,100,101,99,100.5,12\n")

	provider, err := NewHistoricalCsv(path, "ETH")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	first, err := provider.NextEvent(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.Timestamp.Unix() != 1704067200 {
		t.Fatalf("expected first bar at t=2024-01-01T00:00:00Z, got %v", first.Timestamp)
	}

	second, err := provider.NextEvent(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second.Timestamp.Unix() != 1704067300 {
		t.Fatalf("expected second bar at t=2024-01-01T00:01:40Z, got %v", second.Timestamp)
	}
}

func TestHistoricalCsvFiltersOtherSymbols(t *testing.T) {
	path := writeCsv(t, "timestamp,symbol,open,high,low,close,volume\n"+
		"100,BTC,50,51,49,50.5,20\n")

	provider, err := NewHistoricalCsv(path, "ETH")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := provider.NextEvent(context.Background()); err != ErrExhausted {
		t.Fatalf("expected ErrExhausted for a file with no matching symbol, got %v", err)
	}
}

func TestHistoricalCsvRejectsBadHeader(t *testing.T) {
	path := writeCsv(t, "ts,sym,o,h,l,c,v\n100,ETH,1,2,0,1,1\n")
	if _, err := NewHistoricalCsv(path, "ETH"); err == nil {
		t.Fatal("expected an error for a malformed header")
	}
}
