package builtins

import (
	"fmt"
	"math"
	"time"

	"scizor/internal/domain"
	"scizor/internal/portfolio"
	"scizor/internal/strategy"
)

// Compile-time interface check.
var _ strategy.Strategy = (*RSIReversion)(nil)

// RSIReversion implements a mean-reversion strategy on the relative
// strength index. It buys when RSI drops below the oversold threshold and
// exits when RSI rises to the overbought threshold. The Wilder averages
// are carried forward bar to bar, so each step costs one smoothing update
// per symbol instead of a full-series recomputation.
//
// The exit rule follows the original mean-reversion parameters: the
// position is closed on the first bar where RSI >= overbought
// (default 70), not on a return to the neutral 50 band.
type RSIReversion struct {
	rsiPeriod       int
	oversold        float64
	overbought      float64
	positionSizePct float64
	symbols         []string
	state           map[string]*rsiState
}

// rsiState carries one symbol's Wilder smoothing chain. During warmup
// (the first rsiPeriod deltas) avgGain/avgLoss hold raw sums; from the
// first defined RSI onward they hold the smoothed averages. seen counts
// bars folded in and doubles as the cursor into the window's history
// prefix.
type rsiState struct {
	seen      int
	prevClose float64
	avgGain   float64
	avgLoss   float64
	prevRSI   float64
	curRSI    float64
}

// observe folds one close into the Wilder chain and shifts the current
// RSI into the previous-bar slot.
func (st *rsiState) observe(c float64, period int) {
	if st.seen == 0 {
		st.prevClose = c
		st.seen = 1
		return
	}

	delta := c - st.prevClose
	gain, loss := 0.0, 0.0
	if delta > 0 {
		gain = delta
	} else {
		loss = -delta
	}

	st.prevRSI = st.curRSI
	switch {
	case st.seen < period:
		st.avgGain += gain
		st.avgLoss += loss
	case st.seen == period:
		st.avgGain = (st.avgGain + gain) / float64(period)
		st.avgLoss = (st.avgLoss + loss) / float64(period)
		st.curRSI = rsiFrom(st.avgGain, st.avgLoss)
	default:
		st.avgGain = (st.avgGain*float64(period-1) + gain) / float64(period)
		st.avgLoss = (st.avgLoss*float64(period-1) + loss) / float64(period)
		st.curRSI = rsiFrom(st.avgGain, st.avgLoss)
	}

	st.prevClose = c
	st.seen++
}

// rsiFrom maps smoothed averages to the RSI value; a zero average loss
// pins RSI at 100.
func rsiFrom(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// NewRSIReversion creates an RSIReversion strategy.
func NewRSIReversion(rsiPeriod int, oversold, overbought, positionSizePct float64) *RSIReversion {
	return &RSIReversion{
		rsiPeriod:       rsiPeriod,
		oversold:        oversold,
		overbought:      overbought,
		positionSizePct: positionSizePct,
	}
}

// RSIReversionFactory builds an RSIReversion from params rsi_period
// (default 14), oversold (default 30), overbought (default 70), and
// position_size_pct (default 0.1).
func RSIReversionFactory(params strategy.Params) (strategy.Strategy, error) {
	period := int(params.Get("rsi_period", 14))
	oversold := params.Get("oversold", 30)
	overbought := params.Get("overbought", 70)
	if period <= 0 {
		return nil, fmt.Errorf("rsi-reversion: invalid rsi_period %d", period)
	}
	if oversold >= overbought {
		return nil, fmt.Errorf("rsi-reversion: oversold %v must be below overbought %v", oversold, overbought)
	}
	return NewRSIReversion(period, oversold, overbought, params.Get("position_size_pct", 0.1)), nil
}

// Name returns "rsi-reversion".
func (s *RSIReversion) Name() string {
	return "rsi-reversion"
}

// Init records the tracked symbols and allocates fresh Wilder state.
func (s *RSIReversion) Init(symbols []string, _, _ time.Time) error {
	s.symbols = symbols
	s.state = make(map[string]*rsiState, len(symbols))
	for _, sym := range symbols {
		s.state[sym] = &rsiState{prevRSI: math.NaN(), curRSI: math.NaN()}
	}
	return nil
}

// GenerateSignals buys on a downward crossing of the oversold threshold
// and closes when RSI reaches the overbought threshold. The first valid
// RSI value counts as a crossing if it is already oversold. Unconsumed
// window bars are folded into the Wilder chain first, so steps skipped
// during the engine's lookback phase are absorbed without recomputation.
func (s *RSIReversion) GenerateSignals(window strategy.Window, ts time.Time, pf portfolio.Snapshot) ([]domain.Signal, error) {
	var signals []domain.Signal

	for _, symbol := range s.symbols {
		bars := window[symbol]
		st := s.state[symbol]
		if st == nil || len(bars) == 0 {
			continue
		}
		if st.seen < len(bars) {
			for _, b := range bars[st.seen:] {
				st.observe(b.Close, s.rsiPeriod)
			}
		}
		cur := st.curRSI
		if math.IsNaN(cur) {
			continue
		}
		prev := st.prevRSI

		price := bars[len(bars)-1].Close
		pos, held := pf.Positions[symbol]

		if !held && cur < s.oversold && (math.IsNaN(prev) || prev >= s.oversold) {
			qty := int64(s.positionSizePct * pf.TotalValue / price)
			if qty <= 0 {
				continue
			}
			signals = append(signals, domain.Signal{
				Symbol:     symbol,
				Type:       domain.SignalBuy,
				Price:      price,
				Quantity:   qty,
				Timestamp:  ts,
				Confidence: math.Min((s.oversold-cur)/s.oversold+0.5, 1.0),
				Order:      domain.OrderMarket,
				Reason:     fmt.Sprintf("RSI(%d) %.1f crossed below %.0f", s.rsiPeriod, cur, s.oversold),
			})
			continue
		}

		if held && pos.Side == domain.SideLong && cur >= s.overbought {
			signals = append(signals, domain.Signal{
				Symbol:     symbol,
				Type:       domain.SignalClose,
				Price:      price,
				Quantity:   pos.Quantity,
				Timestamp:  ts,
				Confidence: 1.0,
				Order:      domain.OrderMarket,
				Reason:     fmt.Sprintf("RSI(%d) %.1f reached exit threshold %.0f", s.rsiPeriod, cur, s.overbought),
			})
		}
	}
	return signals, nil
}

// UpdateState is a no-op; the Wilder chain advances as new bars arrive in
// GenerateSignals.
func (s *RSIReversion) UpdateState(_ strategy.Window, _ time.Time, _ portfolio.Snapshot) error {
	return nil
}
