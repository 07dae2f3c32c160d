// Package backtest implements the historical simulation engine: data
// provider caching, the time-stepping state machine, performance metrics,
// and the grid-search parameter optimizer.
package backtest

import (
	"fmt"
	"time"
)

// RebalanceFrequency selects how often strategies are consulted.
type RebalanceFrequency string

const (
	RebalanceDaily    RebalanceFrequency = "daily"
	RebalanceIntraday RebalanceFrequency = "intraday"
)

// Config is the immutable per-run configuration of a backtest. It is
// validated once at engine initialization and never mutated during the run.
type Config struct {
	Symbols        []string
	Start          time.Time
	End            time.Time
	InitialCapital float64

	// Fill simulation. Commission is per-share plus an optional
	// percentage of notional; slippage moves the fill price against the
	// trader by the given basis points.
	CommissionPerShare float64
	CommissionPct      float64
	SlippageBps        float64

	// Risk controls. MaxPositionPct bounds a single entry's notional as a
	// fraction of portfolio value; RiskPerTrade caps the quantity so that
	// the capital at risk per entry stays within the given fraction of
	// portfolio value. RiskPerTrade of zero rejects every entry.
	MaxPositions   int
	MaxPositionPct float64
	RiskPerTrade   float64
	StopLossPct    float64
	TakeProfitPct  float64

	// Lookback is the number of leading time steps the engine replays
	// without consulting the strategy, so indicators have history.
	Lookback  int
	Rebalance RebalanceFrequency

	EnableShortSelling bool
	RiskFreeRate       float64

	// LiquidateAtEnd closes positions still open after the last step at
	// their last traded price, recorded with the BACKTEST_END exit
	// reason. When false, open positions stay open and only contribute
	// unrealized value to the final snapshot.
	LiquidateAtEnd bool
}

// DefaultConfig returns a Config with the standard fill and risk settings:
// IBKR-style per-share commission, no slippage, and risk limits wide open.
func DefaultConfig() Config {
	return Config{
		InitialCapital:     100000,
		CommissionPerShare: 0.002,
		MaxPositions:       10,
		MaxPositionPct:     1.0,
		RiskPerTrade:       1.0,
		Rebalance:          RebalanceDaily,
	}
}

// Validate reports the first problem with the configuration. It is called
// by the engine before any simulation step runs.
func (c *Config) Validate() error {
	if len(c.Symbols) == 0 {
		return fmt.Errorf("config: no symbols")
	}
	if c.Start.IsZero() || c.End.IsZero() || !c.Start.Before(c.End) {
		return fmt.Errorf("config: start %s must be before end %s",
			c.Start.Format(time.DateOnly), c.End.Format(time.DateOnly))
	}
	if c.InitialCapital <= 0 {
		return fmt.Errorf("config: initial capital %.2f must be positive", c.InitialCapital)
	}
	if c.CommissionPerShare < 0 || c.CommissionPct < 0 {
		return fmt.Errorf("config: negative commission")
	}
	if c.SlippageBps < 0 {
		return fmt.Errorf("config: negative slippage %.1f bps", c.SlippageBps)
	}
	if c.MaxPositions <= 0 {
		return fmt.Errorf("config: max positions %d must be positive", c.MaxPositions)
	}
	if c.MaxPositionPct <= 0 || c.MaxPositionPct > 1 {
		return fmt.Errorf("config: max position pct %.3f outside (0,1]", c.MaxPositionPct)
	}
	if c.RiskPerTrade < 0 || c.RiskPerTrade > 1 {
		return fmt.Errorf("config: risk per trade %.3f outside [0,1]", c.RiskPerTrade)
	}
	if c.StopLossPct < 0 || c.StopLossPct >= 1 {
		return fmt.Errorf("config: stop loss pct %.3f outside [0,1)", c.StopLossPct)
	}
	if c.TakeProfitPct < 0 {
		return fmt.Errorf("config: negative take profit pct %.3f", c.TakeProfitPct)
	}
	if c.Lookback < 0 {
		return fmt.Errorf("config: negative lookback %d", c.Lookback)
	}
	switch c.Rebalance {
	case "", RebalanceDaily, RebalanceIntraday:
	default:
		return fmt.Errorf("config: unknown rebalance frequency %q", c.Rebalance)
	}
	return nil
}
