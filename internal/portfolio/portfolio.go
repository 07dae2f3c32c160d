// Package portfolio implements the ledger that tracks cash, open
// positions, realized and unrealized P&L, and the per-step equity curve of
// a backtest run. The ledger performs no I/O; every side effect is a
// mutation of its own state.
package portfolio

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"scizor/internal/domain"
)

// Ledger operation errors. Over-allocation is hard-rejected: cash can
// never go negative.
var (
	ErrInsufficientCapital = errors.New("insufficient capital")
	ErrDuplicatePosition   = errors.New("position already open")
	ErrPositionNotFound    = errors.New("no open position")
	ErrOverClose           = errors.New("close quantity exceeds held quantity")
	ErrInvalidQuantity     = errors.New("quantity must be positive")
)

// ValuePoint is one (timestamp, total value) snapshot of the equity curve.
type ValuePoint struct {
	Timestamp time.Time
	Value     float64
}

// Snapshot is a read-only view of the ledger handed to strategies. The
// Positions map holds copies; mutating them has no effect on the ledger.
type Snapshot struct {
	Cash       float64
	Positions  map[string]domain.Position
	TotalValue float64
}

// Ledger tracks the simulated portfolio of a single backtest run.
type Ledger struct {
	initialCapital float64
	cash           float64
	positions      map[string]*domain.Position
	trades         []domain.Trade
	valueSeries    []ValuePoint
}

// NewLedger creates a Ledger holding initialCapital in cash and no
// positions.
func NewLedger(initialCapital float64) *Ledger {
	return &Ledger{
		initialCapital: initialCapital,
		cash:           initialCapital,
		positions:      make(map[string]*domain.Position),
	}
}

// InitialCapital returns the capital the ledger started with.
func (l *Ledger) InitialCapital() float64 { return l.initialCapital }

// Cash returns the current cash balance.
func (l *Ledger) Cash() float64 { return l.cash }

// OpenPositions returns the number of currently open positions.
func (l *Ledger) OpenPositions() int { return len(l.positions) }

// Position returns a copy of the open position for symbol, if any.
func (l *Ledger) Position(symbol string) (domain.Position, bool) {
	p, ok := l.positions[symbol]
	if !ok {
		return domain.Position{}, false
	}
	return *p, true
}

// OpenPosition opens a new position. It fails with ErrDuplicatePosition if
// a position in the symbol is already open (pyramiding is not supported)
// and with ErrInsufficientCapital if the notional plus commission exceeds
// available cash. Opening a short credits the proceeds to cash.
func (l *Ledger) OpenPosition(symbol string, quantity int64, price float64, ts time.Time, side domain.PositionSide, commission float64) error {
	if quantity <= 0 {
		return fmt.Errorf("open %s: %w", symbol, ErrInvalidQuantity)
	}
	if _, ok := l.positions[symbol]; ok {
		return fmt.Errorf("open %s: %w", symbol, ErrDuplicatePosition)
	}

	notional := float64(quantity) * price
	if side == domain.SideLong {
		if notional+commission > l.cash {
			return fmt.Errorf("open %s: need %.2f, have %.2f: %w",
				symbol, notional+commission, l.cash, ErrInsufficientCapital)
		}
		l.cash -= notional + commission
	} else {
		if commission > l.cash {
			return fmt.Errorf("open %s: need %.2f, have %.2f: %w",
				symbol, commission, l.cash, ErrInsufficientCapital)
		}
		l.cash += notional - commission
	}

	l.positions[symbol] = &domain.Position{
		Symbol:          symbol,
		Side:            side,
		Quantity:        quantity,
		EntryPrice:      price,
		EntryTime:       ts,
		MarkPrice:       price,
		EntryCommission: commission,
	}
	return nil
}

// ClosePosition closes quantity shares of the open position in symbol at
// price, crediting the proceeds to cash and appending a Trade to the log.
// Partial closes reduce the position and release a proportional share of
// the entry commission into the trade record.
func (l *Ledger) ClosePosition(symbol string, quantity int64, price float64, ts time.Time, commission float64, reason domain.ExitReason) error {
	if quantity <= 0 {
		return fmt.Errorf("close %s: %w", symbol, ErrInvalidQuantity)
	}
	pos, ok := l.positions[symbol]
	if !ok {
		return fmt.Errorf("close %s: %w", symbol, ErrPositionNotFound)
	}
	if quantity > pos.Quantity {
		return fmt.Errorf("close %s: %d > %d held: %w",
			symbol, quantity, pos.Quantity, ErrOverClose)
	}

	notional := float64(quantity) * price
	if pos.Side == domain.SideLong {
		l.cash += notional - commission
	} else {
		l.cash -= notional + commission
	}

	entryShare := pos.EntryCommission * float64(quantity) / float64(pos.Quantity)
	gross := (price - pos.EntryPrice) * float64(quantity) * pos.Side.Sign()
	pnl := gross - commission - entryShare

	entryCost := pos.EntryPrice * float64(quantity)
	returnPct := 0.0
	if entryCost != 0 {
		returnPct = pnl / entryCost * 100
	}

	l.trades = append(l.trades, domain.Trade{
		Symbol:     symbol,
		Side:       pos.Side,
		Quantity:   quantity,
		EntryPrice: pos.EntryPrice,
		EntryTime:  pos.EntryTime,
		ExitPrice:  price,
		ExitTime:   ts,
		Commission: commission + entryShare,
		PnL:        pnl,
		ReturnPct:  returnPct,
		Holding:    ts.Sub(pos.EntryTime),
		Reason:     reason,
	})

	if quantity == pos.Quantity {
		delete(l.positions, symbol)
		return nil
	}
	pos.Quantity -= quantity
	pos.EntryCommission -= entryShare
	pos.RealizedPnL += pnl
	return nil
}

// MarkToMarket updates every open position's mark price and unrealized
// P&L from prices, then appends one equity-curve snapshot. The engine
// calls it exactly once per time step, after all fills for that step, so
// the snapshot reflects post-trade state. Symbols absent from prices keep
// their previous mark.
func (l *Ledger) MarkToMarket(prices map[string]float64, ts time.Time) {
	for _, pos := range l.positions {
		if price, ok := prices[pos.Symbol]; ok {
			pos.MarkPrice = price
		}
		pos.UnrealizedPnL = (pos.MarkPrice - pos.EntryPrice) * float64(pos.Quantity) * pos.Side.Sign()
	}
	l.valueSeries = append(l.valueSeries, ValuePoint{Timestamp: ts, Value: l.TotalValue()})
}

// TotalValue returns cash plus the signed market value of all open
// positions. Pure read.
func (l *Ledger) TotalValue() float64 {
	total := l.cash
	for _, pos := range l.positions {
		total += pos.MarketValue()
	}
	return total
}

// Snapshot returns a read-only copy of the ledger state for strategies.
func (l *Ledger) Snapshot() Snapshot {
	positions := make(map[string]domain.Position, len(l.positions))
	for sym, pos := range l.positions {
		positions[sym] = *pos
	}
	return Snapshot{
		Cash:       l.cash,
		Positions:  positions,
		TotalValue: l.TotalValue(),
	}
}

// Symbols returns the symbols with open positions in sorted order, so
// callers that iterate positions stay deterministic.
func (l *Ledger) Symbols() []string {
	symbols := make([]string, 0, len(l.positions))
	for sym := range l.positions {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)
	return symbols
}

// Trades returns the append-only trade log.
func (l *Ledger) Trades() []domain.Trade { return l.trades }

// ValueSeries returns the per-step equity curve.
func (l *Ledger) ValueSeries() []ValuePoint { return l.valueSeries }
