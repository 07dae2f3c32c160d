package builtins

import (
	"fmt"
	"time"

	"scizor/internal/domain"
	"scizor/internal/portfolio"
	"scizor/internal/strategy"
)

// Compile-time interface check.
var _ strategy.Strategy = (*BuyAndHold)(nil)

// BuyAndHold opens a position in every tracked symbol at its first
// available bar, sized at allocation x initial capital / first price, and
// never exits. It is the baseline other strategies are measured against.
type BuyAndHold struct {
	allocation float64 // fraction of initial capital per symbol
	symbols    []string

	initialCapital float64
	bought         map[string]bool
}

// NewBuyAndHold creates a BuyAndHold strategy allocating the given
// fraction of initial capital to each symbol.
func NewBuyAndHold(allocation float64) *BuyAndHold {
	return &BuyAndHold{allocation: allocation}
}

// BuyAndHoldFactory builds a BuyAndHold from the allocation param
// (default 0.95, leaving headroom for commissions).
func BuyAndHoldFactory(params strategy.Params) (strategy.Strategy, error) {
	alloc := params.Get("allocation", 0.95)
	if alloc <= 0 || alloc > 1 {
		return nil, fmt.Errorf("buy-hold: allocation %v outside (0,1]", alloc)
	}
	return NewBuyAndHold(alloc), nil
}

// Name returns "buy-hold".
func (s *BuyAndHold) Name() string {
	return "buy-hold"
}

// Init records the tracked symbols and resets the bought set.
func (s *BuyAndHold) Init(symbols []string, _, _ time.Time) error {
	s.symbols = symbols
	s.bought = make(map[string]bool, len(symbols))
	s.initialCapital = 0
	return nil
}

// GenerateSignals emits one BUY per symbol the first time a bar is
// available for it, then stays silent forever.
func (s *BuyAndHold) GenerateSignals(window strategy.Window, ts time.Time, pf portfolio.Snapshot) ([]domain.Signal, error) {
	// The first step sees the untouched portfolio, so its total value is
	// the initial capital every later allocation is based on.
	if s.initialCapital == 0 {
		s.initialCapital = pf.TotalValue
	}

	var signals []domain.Signal
	for _, symbol := range s.symbols {
		if s.bought[symbol] {
			continue
		}
		bar, ok := window.Latest(symbol)
		if !ok {
			continue
		}

		qty := int64(s.allocation * s.initialCapital / bar.Close)
		if qty <= 0 {
			continue
		}
		s.bought[symbol] = true
		signals = append(signals, domain.Signal{
			Symbol:     symbol,
			Type:       domain.SignalBuy,
			Price:      bar.Close,
			Quantity:   qty,
			Timestamp:  ts,
			Confidence: 1.0,
			Order:      domain.OrderMarket,
			Reason:     "buy and hold entry",
		})
	}
	return signals, nil
}

// UpdateState is a no-op.
func (s *BuyAndHold) UpdateState(_ strategy.Window, _ time.Time, _ portfolio.Snapshot) error {
	return nil
}
