package gather

import (
	"testing"
	"time"

	"scizor/internal/domain"
	"scizor/internal/store"
)

func TestNewDailyBarGatherer(t *testing.T) {
	g := NewDailyBarGatherer(DailyBarOptions{
		APIKey:    "test-key",
		APISecret: "test-secret",
		Market:    domain.MarketUS,
		Symbols:   []string{"AAPL", "MSFT"},
		StartDate: "2024-01-01",
	}, store.NewParquetStore(t.TempDir()))

	if g == nil {
		t.Fatal("NewDailyBarGatherer returned nil")
	}
	if g.Name() != "daily-bars" {
		t.Errorf("Name() = %q, want %q", g.Name(), "daily-bars")
	}
	// Zero batch/worker/rate settings fall back to usable values.
	if g.batchSize <= 0 || g.maxWorkers <= 0 {
		t.Errorf("defaults not applied: batchSize=%d maxWorkers=%d", g.batchSize, g.maxWorkers)
	}
}

func TestEndDateNonUSMarket(t *testing.T) {
	// Non-US markets resolve the end date from the local session calendar
	// without touching the Alpaca API.
	g := NewDailyBarGatherer(DailyBarOptions{
		Market:    domain.MarketASX,
		Symbols:   []string{"BHP.AX"},
		StartDate: "2024-01-01",
	}, store.NewParquetStore(t.TempDir()))

	end, err := g.endDate()
	if err != nil {
		t.Fatalf("endDate: %v", err)
	}
	if end.After(time.Now()) {
		t.Errorf("endDate = %v, in the future", end)
	}
	if wd := end.Weekday(); wd == time.Saturday || wd == time.Sunday {
		t.Errorf("endDate = %v, falls on a weekend", end)
	}

	// An unknown market has no session calendar to consult.
	g = NewDailyBarGatherer(DailyBarOptions{
		Market:    domain.Market("lse"),
		Symbols:   []string{"VOD"},
		StartDate: "2024-01-01",
	}, store.NewParquetStore(t.TempDir()))
	if _, err := g.endDate(); err == nil {
		t.Error("endDate accepted a market without a session calendar")
	}
}

func TestSplitBatches(t *testing.T) {
	symbols := []string{"A", "B", "C", "D", "E"}

	batches := splitBatches(symbols, 2)
	if len(batches) != 3 {
		t.Fatalf("got %d batches, want 3", len(batches))
	}
	if len(batches[0]) != 2 || len(batches[2]) != 1 {
		t.Errorf("batch sizes = %d/%d/%d, want 2/2/1",
			len(batches[0]), len(batches[1]), len(batches[2]))
	}

	if got := splitBatches(nil, 10); got != nil {
		t.Errorf("splitBatches(nil) = %v, want nil", got)
	}
	if got := splitBatches(symbols, 10); len(got) != 1 {
		t.Errorf("oversized batch split into %d, want 1", len(got))
	}
}
