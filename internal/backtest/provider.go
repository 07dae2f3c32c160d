package backtest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"scizor/internal/domain"
	"scizor/internal/store"
)

// ErrDataNotFound reports that a provider holds no bars for a symbol in the
// requested range.
var ErrDataNotFound = errors.New("no bars in range")

// DataProvider supplies ordered historical bars for one symbol. A sparse
// series is valid; providers never synthesize bars to fill gaps.
type DataProvider interface {
	GetBars(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error)
}

// Compile-time interface check.
var _ DataProvider = (*StoreProvider)(nil)

// StoreProvider reads bars from a BarStore and caches each (symbol, range)
// result. The cache is safe for concurrent readers, so one provider can be
// shared across optimizer workers; cached slices are read-only by contract.
type StoreProvider struct {
	store  store.BarStore
	market domain.Market

	mu    sync.RWMutex
	cache map[string][]domain.Bar
}

// NewStoreProvider creates a caching provider over st for one market.
func NewStoreProvider(st store.BarStore, market domain.Market) *StoreProvider {
	return &StoreProvider{
		store:  st,
		market: market,
		cache:  make(map[string][]domain.Bar),
	}
}

// GetBars returns the ordered bars for symbol within [start, end],
// reading from the underlying store at most once per (symbol, range).
// It fails with ErrDataNotFound when the range holds no bars.
func (p *StoreProvider) GetBars(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error) {
	key := cacheKey(symbol, start, end)

	p.mu.RLock()
	bars, ok := p.cache[key]
	p.mu.RUnlock()
	if ok {
		return bars, nil
	}

	bars, err := p.store.ReadBars(ctx, p.market, symbol, start, end)
	if err != nil {
		return nil, fmt.Errorf("provider: read %s: %w", symbol, err)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("provider: %s %s..%s: %w",
			symbol, start.Format(time.DateOnly), end.Format(time.DateOnly), ErrDataNotFound)
	}

	p.mu.Lock()
	p.cache[key] = bars
	p.mu.Unlock()
	return bars, nil
}

func cacheKey(symbol string, start, end time.Time) string {
	return symbol + "|" + start.Format(time.RFC3339) + "|" + end.Format(time.RFC3339)
}
