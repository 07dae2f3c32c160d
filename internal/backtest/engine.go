package backtest

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"scizor/internal/domain"
	"scizor/internal/portfolio"
	"scizor/internal/strategy"
)

// State is the engine lifecycle state.
type State string

const (
	StateUninitialized State = "UNINITIALIZED"
	StateInitialized   State = "INITIALIZED"
	StateRunning       State = "RUNNING"
	StateCompleted     State = "COMPLETED"
	StateFailed        State = "FAILED"
)

// StrategyExecutionError reports a strategy failure (error or panic) during
// a run, carrying the timestamp of the failing step. Strategy failures are
// always fatal to the run.
type StrategyExecutionError struct {
	Time time.Time
	Err  error
}

func (e *StrategyExecutionError) Error() string {
	return fmt.Sprintf("strategy failed at %s: %v", e.Time.Format(time.RFC3339), e.Err)
}

func (e *StrategyExecutionError) Unwrap() error { return e.Err }

// Rejection records a signal the engine declined to fill. Rejections are
// expected strategy behavior, not run failures.
type Rejection struct {
	Timestamp time.Time
	Symbol    string
	Signal    domain.SignalType
	Reason    string
}

// Result is the immutable output of one completed backtest run.
type Result struct {
	Symbols        []string
	Start          time.Time
	End            time.Time
	InitialCapital float64
	FinalValue     float64
	ValueSeries    []portfolio.ValuePoint
	Trades         []domain.Trade
	Rejections     []Rejection
	Metrics        Metrics
}

// Engine replays historical bars through a strategy against a simulated
// portfolio. It is single-threaded and deterministic: identical inputs
// always produce an identical trade log and value series.
type Engine struct {
	cfg      Config
	strategy strategy.Strategy
	provider DataProvider
	logger   *slog.Logger

	state      State
	ledger     *portfolio.Ledger
	bars       map[string][]domain.Bar
	timeline   []time.Time
	rejections []Rejection
}

// NewEngine creates an engine in the UNINITIALIZED state. A nil logger
// falls back to slog.Default.
func NewEngine(cfg Config, strat strategy.Strategy, provider DataProvider, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		cfg:      cfg,
		strategy: strat,
		provider: provider,
		logger:   logger.With("component", "backtest", "strategy", strat.Name()),
		state:    StateUninitialized,
	}
}

// State returns the engine's lifecycle state.
func (e *Engine) State() State { return e.state }

// Init validates the configuration, initializes the strategy, pre-fetches
// bars for every symbol, and builds the global time axis as the union of
// all symbols' timestamps in ascending order. Data errors are fatal: the
// run never proceeds with partial symbol coverage.
func (e *Engine) Init(ctx context.Context) error {
	if e.state != StateUninitialized {
		return fmt.Errorf("engine: Init called in state %s", e.state)
	}
	if err := e.cfg.Validate(); err != nil {
		e.state = StateFailed
		return err
	}
	if err := e.strategy.Init(e.cfg.Symbols, e.cfg.Start, e.cfg.End); err != nil {
		e.state = StateFailed
		return fmt.Errorf("engine: strategy init: %w", err)
	}

	e.bars = make(map[string][]domain.Bar, len(e.cfg.Symbols))
	stamps := make(map[int64]time.Time)
	for _, sym := range e.cfg.Symbols {
		bars, err := e.provider.GetBars(ctx, sym, e.cfg.Start, e.cfg.End)
		if err != nil {
			e.state = StateFailed
			return fmt.Errorf("engine: %s: %w", sym, err)
		}
		e.bars[sym] = bars
		for _, b := range bars {
			stamps[b.Timestamp.UnixNano()] = b.Timestamp
		}
	}

	e.timeline = make([]time.Time, 0, len(stamps))
	for _, ts := range stamps {
		e.timeline = append(e.timeline, ts)
	}
	sort.Slice(e.timeline, func(i, j int) bool { return e.timeline[i].Before(e.timeline[j]) })

	// Providers signal missing data with ErrDataNotFound, but an empty
	// slice with a nil error must not produce a zero-step run either.
	if len(e.timeline) == 0 {
		e.state = StateFailed
		return fmt.Errorf("engine: no bars for any symbol between %s and %s",
			e.cfg.Start.Format(time.DateOnly), e.cfg.End.Format(time.DateOnly))
	}

	e.state = StateInitialized
	e.logger.Info("engine initialized",
		"symbols", len(e.cfg.Symbols), "steps", len(e.timeline))
	return nil
}

// Run steps the engine through the time axis. Each step processes in fixed
// order: generate signals, execute them, check stops, mark to market,
// update strategy state. Cancellation is checked between timestamps so an
// aborted run never stops mid-step.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	if e.state != StateInitialized {
		return nil, fmt.Errorf("engine: Run called in state %s", e.state)
	}
	e.state = StateRunning
	e.ledger = portfolio.NewLedger(e.cfg.InitialCapital)

	cursor := make(map[string]int, len(e.cfg.Symbols))
	window := make(strategy.Window, len(e.cfg.Symbols))
	lastPrice := make(map[string]float64, len(e.cfg.Symbols))

	for step, ts := range e.timeline {
		if err := ctx.Err(); err != nil {
			e.state = StateFailed
			return nil, fmt.Errorf("engine: run aborted: %w", err)
		}

		prices := make(map[string]float64, len(e.cfg.Symbols))
		for _, sym := range e.cfg.Symbols {
			bars := e.bars[sym]
			i := cursor[sym]
			for i < len(bars) && !bars[i].Timestamp.After(ts) {
				i++
			}
			cursor[sym] = i
			window[sym] = bars[:i]
			if i > 0 && bars[i-1].Timestamp.Equal(ts) {
				prices[sym] = bars[i-1].Close
				lastPrice[sym] = bars[i-1].Close
			}
		}

		if step >= e.cfg.Lookback {
			signals, err := e.generate(window, ts)
			if err != nil {
				e.state = StateFailed
				return nil, &StrategyExecutionError{Time: ts, Err: err}
			}
			for _, sig := range signals {
				e.execute(sig, ts)
			}
		}

		e.applyStops(ts, prices)
		e.ledger.MarkToMarket(prices, ts)

		if err := e.updateState(window, ts); err != nil {
			e.state = StateFailed
			return nil, &StrategyExecutionError{Time: ts, Err: err}
		}
	}

	if e.cfg.LiquidateAtEnd {
		e.closeRemaining(lastPrice, e.timeline[len(e.timeline)-1])
	}

	e.state = StateCompleted
	result := &Result{
		Symbols:        e.cfg.Symbols,
		Start:          e.cfg.Start,
		End:            e.cfg.End,
		InitialCapital: e.cfg.InitialCapital,
		FinalValue:     e.ledger.TotalValue(),
		ValueSeries:    e.ledger.ValueSeries(),
		Trades:         e.ledger.Trades(),
		Rejections:     e.rejections,
	}
	result.Metrics = ComputeMetrics(e.cfg.InitialCapital, result.ValueSeries, result.Trades, e.cfg.RiskFreeRate)

	e.logger.Info("run completed",
		"final_value", result.FinalValue,
		"trades", len(result.Trades),
		"rejections", len(result.Rejections))
	return result, nil
}

// Run initializes and runs a fresh engine in one call.
func Run(ctx context.Context, cfg Config, strat strategy.Strategy, provider DataProvider, logger *slog.Logger) (*Result, error) {
	e := NewEngine(cfg, strat, provider, logger)
	if err := e.Init(ctx); err != nil {
		return nil, err
	}
	return e.Run(ctx)
}

// generate calls the strategy's GenerateSignals, converting a panic into an
// error so buggy strategies fail the run visibly instead of crashing the
// process.
func (e *Engine) generate(window strategy.Window, ts time.Time) (signals []domain.Signal, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("strategy panic: %v", r)
		}
	}()
	return e.strategy.GenerateSignals(window, ts, e.ledger.Snapshot())
}

func (e *Engine) updateState(window strategy.Window, ts time.Time) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("strategy panic: %v", r)
		}
	}()
	return e.strategy.UpdateState(window, ts, e.ledger.Snapshot())
}

// execute translates one signal into ledger operations. Failures here are
// rejections, never run failures.
func (e *Engine) execute(sig domain.Signal, ts time.Time) {
	switch sig.Type {
	case domain.SignalBuy:
		if pos, ok := e.ledger.Position(sig.Symbol); ok && pos.Side == domain.SideShort {
			e.closeFill(sig, ts, pos, domain.ExitSignal)
			return
		}
		e.openFill(sig, ts, domain.SideLong)

	case domain.SignalSell:
		if pos, ok := e.ledger.Position(sig.Symbol); ok && pos.Side == domain.SideLong {
			e.closeFill(sig, ts, pos, domain.ExitSignal)
			return
		}
		if !e.cfg.EnableShortSelling {
			e.reject(sig, ts, "short selling disabled")
			return
		}
		e.openFill(sig, ts, domain.SideShort)

	case domain.SignalClose:
		pos, ok := e.ledger.Position(sig.Symbol)
		if !ok {
			e.reject(sig, ts, "no open position")
			return
		}
		e.closeFill(sig, ts, pos, domain.ExitSignal)

	default:
		e.reject(sig, ts, fmt.Sprintf("unknown signal type %q", sig.Type))
	}
}

// openFill applies risk limits and opens a position at the slippage-adjusted
// fill price. The risk-per-trade limit caps quantity so the capital at risk
// stays within the configured fraction of portfolio value; with a stop loss
// configured the risk per share is the stop distance, otherwise the full
// fill price.
func (e *Engine) openFill(sig domain.Signal, ts time.Time, side domain.PositionSide) {
	if sig.Quantity <= 0 || sig.Price <= 0 {
		e.reject(sig, ts, "invalid quantity or price")
		return
	}
	if e.ledger.OpenPositions() >= e.cfg.MaxPositions {
		e.reject(sig, ts, fmt.Sprintf("max positions (%d) reached", e.cfg.MaxPositions))
		return
	}

	fill := e.entryFill(sig.Price, side)
	value := e.ledger.TotalValue()

	riskPerShare := fill
	if e.cfg.StopLossPct > 0 {
		riskPerShare = fill * e.cfg.StopLossPct
	}
	riskCap := int64(e.cfg.RiskPerTrade * value / riskPerShare)
	if riskCap <= 0 {
		e.reject(sig, ts, "risk per trade budget exhausted")
		return
	}
	qty := sig.Quantity
	if qty > riskCap {
		qty = riskCap
	}

	notional := float64(qty) * fill
	if notional > e.cfg.MaxPositionPct*value {
		e.reject(sig, ts, fmt.Sprintf("notional %.2f exceeds %.0f%% of portfolio",
			notional, e.cfg.MaxPositionPct*100))
		return
	}

	comm := e.commission(qty, fill)
	if err := e.ledger.OpenPosition(sig.Symbol, qty, fill, ts, side, comm); err != nil {
		e.reject(sig, ts, err.Error())
		return
	}
	e.logger.Debug("opened position",
		"symbol", sig.Symbol, "side", side, "quantity", qty, "fill", fill)
}

// closeFill closes up to the held quantity at the slippage-adjusted exit
// price. A signal quantity of zero or above the held quantity closes the
// whole position.
func (e *Engine) closeFill(sig domain.Signal, ts time.Time, pos domain.Position, reason domain.ExitReason) {
	qty := sig.Quantity
	if qty <= 0 || qty > pos.Quantity {
		qty = pos.Quantity
	}
	fill := e.exitFill(sig.Price, pos.Side)
	comm := e.commission(qty, fill)
	if err := e.ledger.ClosePosition(sig.Symbol, qty, fill, ts, comm, reason); err != nil {
		e.reject(sig, ts, err.Error())
		return
	}
	e.logger.Debug("closed position",
		"symbol", sig.Symbol, "quantity", qty, "fill", fill, "reason", reason)
}

// applyStops checks every open position against its stop-loss and
// take-profit levels at the step's close prices and exits any that
// triggered. Symbols without a bar at this step keep their position.
func (e *Engine) applyStops(ts time.Time, prices map[string]float64) {
	if e.cfg.StopLossPct == 0 && e.cfg.TakeProfitPct == 0 {
		return
	}
	for _, sym := range e.ledger.Symbols() {
		price, ok := prices[sym]
		if !ok {
			continue
		}
		pos, _ := e.ledger.Position(sym)

		var reason domain.ExitReason
		switch {
		case e.cfg.StopLossPct > 0 && stopHit(pos, price, e.cfg.StopLossPct):
			reason = domain.ExitStopLoss
		case e.cfg.TakeProfitPct > 0 && targetHit(pos, price, e.cfg.TakeProfitPct):
			reason = domain.ExitTakeProfit
		default:
			continue
		}

		fill := e.exitFill(price, pos.Side)
		comm := e.commission(pos.Quantity, fill)
		if err := e.ledger.ClosePosition(sym, pos.Quantity, fill, ts, comm, reason); err != nil {
			e.logger.Warn("stop exit failed", "symbol", sym, "error", err)
			continue
		}
		e.logger.Debug("stop exit", "symbol", sym, "fill", fill, "reason", reason)
	}
}

func stopHit(pos domain.Position, price, stopPct float64) bool {
	if pos.Side == domain.SideLong {
		return price <= pos.EntryPrice*(1-stopPct)
	}
	return price >= pos.EntryPrice*(1+stopPct)
}

func targetHit(pos domain.Position, price, targetPct float64) bool {
	if pos.Side == domain.SideLong {
		return price >= pos.EntryPrice*(1+targetPct)
	}
	return price <= pos.EntryPrice*(1-targetPct)
}

// closeRemaining liquidates positions still open after the last step at
// their last traded price, then records one final snapshot so the value
// series ends in post-liquidation state.
func (e *Engine) closeRemaining(lastPrice map[string]float64, ts time.Time) {
	open := e.ledger.Symbols()
	if len(open) == 0 {
		return
	}
	for _, sym := range open {
		pos, _ := e.ledger.Position(sym)
		price, ok := lastPrice[sym]
		if !ok {
			price = pos.MarkPrice
		}
		fill := e.exitFill(price, pos.Side)
		comm := e.commission(pos.Quantity, fill)
		if err := e.ledger.ClosePosition(sym, pos.Quantity, fill, ts, comm, domain.ExitBacktestEnd); err != nil {
			e.logger.Warn("end-of-run close failed", "symbol", sym, "error", err)
		}
	}
	e.ledger.MarkToMarket(nil, ts)
}

// entryFill moves the fill price against the trader: up for long entries,
// down for short entries.
func (e *Engine) entryFill(price float64, side domain.PositionSide) float64 {
	adj := price * e.cfg.SlippageBps / 10000
	if side == domain.SideLong {
		return price + adj
	}
	return price - adj
}

// exitFill moves the fill price against the trader: down when selling out
// of a long, up when buying back a short.
func (e *Engine) exitFill(price float64, side domain.PositionSide) float64 {
	adj := price * e.cfg.SlippageBps / 10000
	if side == domain.SideLong {
		return price - adj
	}
	return price + adj
}

func (e *Engine) commission(quantity int64, price float64) float64 {
	return float64(quantity)*e.cfg.CommissionPerShare +
		float64(quantity)*price*e.cfg.CommissionPct
}

func (e *Engine) reject(sig domain.Signal, ts time.Time, reason string) {
	e.rejections = append(e.rejections, Rejection{
		Timestamp: ts,
		Symbol:    sig.Symbol,
		Signal:    sig.Type,
		Reason:    reason,
	})
	e.logger.Debug("signal rejected",
		"symbol", sig.Symbol, "type", sig.Type, "reason", reason)
}
