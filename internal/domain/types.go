// Package domain defines the core data types shared across the scizor
// backtesting platform: bars, signals, positions, and closed trades.
package domain

import "time"

// Market identifies the exchange universe a symbol belongs to.
type Market string

const (
	MarketASX Market = "asx"
	MarketUS  Market = "us"
)

// Bar is a single OHLCV observation for a symbol at a point in time.
// Bars are immutable once produced by a data provider.
type Bar struct {
	Symbol     string
	Timestamp  time.Time
	Open       float64
	High       float64
	Low        float64
	Close      float64
	Volume     int64
	TradeCount int64
	VWAP       float64
}

// SignalType classifies a strategy's instruction for a symbol.
type SignalType string

const (
	SignalBuy   SignalType = "BUY"
	SignalSell  SignalType = "SELL"
	SignalClose SignalType = "CLOSE"
)

// OrderType is the simulated order type of a signal. The backtest engine
// only fills OrderMarket; the other values exist for strategies that want
// to express intent for a live execution layer.
type OrderType string

const (
	OrderMarket OrderType = "MARKET"
	OrderLimit  OrderType = "LIMIT"
	OrderStop   OrderType = "STOP"
)

// PositionSide is the direction of an open position.
type PositionSide string

const (
	SideLong  PositionSide = "LONG"
	SideShort PositionSide = "SHORT"
)

// Sign returns +1 for long positions and -1 for short positions.
func (s PositionSide) Sign() float64 {
	if s == SideShort {
		return -1
	}
	return 1
}

// Signal is a strategy's instruction for one symbol at one time step. It is
// consumed by the engine in the order the strategy returned it and then
// discarded; signals are not a standing order book.
type Signal struct {
	Symbol     string
	Type       SignalType
	Price      float64 // reference price at signal time, typically last close
	Quantity   int64   // shares; must be positive
	Timestamp  time.Time
	Confidence float64 // [0,1], advisory only
	Order      OrderType
	Reason     string
}

// Position is an open holding, owned exclusively by the portfolio ledger.
// MarkPrice and UnrealizedPnL are updated on every mark-to-market step;
// RealizedPnL accumulates from partial closes.
type Position struct {
	Symbol          string
	Side            PositionSide
	Quantity        int64
	EntryPrice      float64
	EntryTime       time.Time
	MarkPrice       float64
	UnrealizedPnL   float64
	RealizedPnL     float64
	EntryCommission float64 // remaining entry commission, released on closes
}

// MarketValue returns the signed market value of the position at its
// current mark price.
func (p *Position) MarketValue() float64 {
	return float64(p.Quantity) * p.MarkPrice * p.Side.Sign()
}

// ExitReason records why a position (or part of one) was closed.
type ExitReason string

const (
	ExitSignal      ExitReason = "SIGNAL"
	ExitStopLoss    ExitReason = "STOP_LOSS"
	ExitTakeProfit  ExitReason = "TAKE_PROFIT"
	ExitBacktestEnd ExitReason = "BACKTEST_END"
)

// Trade is an immutable record of a closed position (or a partial close).
// The trade log is append-only and feeds performance analytics.
type Trade struct {
	Symbol     string
	Side       PositionSide
	Quantity   int64
	EntryPrice float64
	EntryTime  time.Time
	ExitPrice  float64
	ExitTime   time.Time
	Commission float64 // entry share + exit commission
	PnL        float64 // realized, net of commissions
	ReturnPct  float64 // PnL / entry cost, in percent
	Holding    time.Duration
	Reason     ExitReason
}
