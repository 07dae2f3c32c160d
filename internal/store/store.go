// Package store persists and retrieves OHLCV bar data. Two backends are
// provided: Parquet files laid out per symbol and year, and a SQLite
// database for single-file deployments.
package store

import (
	"context"
	"time"

	"scizor/internal/domain"
)

// BarStore persists and retrieves OHLCV bar data for a market.
type BarStore interface {
	// WriteBars persists a batch of bars under the given market,
	// replacing any existing bar with the same symbol and timestamp.
	WriteBars(ctx context.Context, market domain.Market, bars []domain.Bar) error

	// ReadBars returns the bars for symbol within [start, end] in
	// ascending timestamp order. An empty range yields an empty slice,
	// not an error.
	ReadBars(ctx context.Context, market domain.Market, symbol string, start, end time.Time) ([]domain.Bar, error)

	// ListSymbols returns all distinct symbols with data in the market,
	// sorted.
	ListSymbols(ctx context.Context, market domain.Market) ([]string, error)
}
