// Package builtins provides the strategy implementations that ship with
// the scizor platform.
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
var _ strategy.Strategy = (*SMACross)(nil)

// SMACross implements a moving average crossover strategy. It buys when
// the short-period SMA crosses above the long-period SMA and no position
// is open, and closes an open long when the short SMA crosses back below
// the long SMA. The averages are maintained incrementally: each new bar
// updates rolling sums in constant time rather than re-averaging the
// whole window every step.
type SMACross struct {
	shortPeriod     int
	longPeriod      int
	positionSizePct float64
	symbols         []string
	state           map[string]*smaState
}

// smaState holds one symbol's rolling accumulators. The ring buffer keeps
// the last longPeriod closes; seen counts bars folded in so far and
// doubles as the cursor into the window's history prefix.
type smaState struct {
	ring      []float64
	seen      int
	shortSum  float64
	longSum   float64
	prevShort float64
	prevLong  float64
	curShort  float64
	curLong   float64
}

// observe folds one close into the rolling sums and shifts the current
// averages into the previous-bar slots. Averages stay NaN until their
// window is filled, matching the leading-NaN convention of the indicator
// package.
func (st *smaState) observe(c float64, shortPeriod, longPeriod int) {
	n := st.seen
	if n >= longPeriod {
		st.longSum -= st.ring[n%longPeriod]
	}
	if n >= shortPeriod {
		st.shortSum -= st.ring[(n-shortPeriod)%longPeriod]
	}
	st.ring[n%longPeriod] = c
	st.shortSum += c
	st.longSum += c
	st.seen++

	st.prevShort, st.prevLong = st.curShort, st.curLong
	st.curShort = math.NaN()
	if st.seen >= shortPeriod {
		st.curShort = st.shortSum / float64(shortPeriod)
	}
	st.curLong = math.NaN()
	if st.seen >= longPeriod {
		st.curLong = st.longSum / float64(longPeriod)
	}
}

// NewSMACross creates an SMACross strategy with the given short and long
// moving average periods. positionSizePct is the fraction of portfolio
// value allocated to each entry.
func NewSMACross(short, long int, positionSizePct float64) *SMACross {
	return &SMACross{
		shortPeriod:     short,
		longPeriod:      long,
		positionSizePct: positionSizePct,
	}
}

// SMACrossFactory builds an SMACross from params short (default 10),
// long (default 20), and position_size_pct (default 0.1).
func SMACrossFactory(params strategy.Params) (strategy.Strategy, error) {
	short := int(params.Get("short", 10))
	long := int(params.Get("long", 20))
	if short <= 0 || long <= 0 || short >= long {
		return nil, fmt.Errorf("sma-cross: invalid periods short=%d long=%d", short, long)
	}
	return NewSMACross(short, long, params.Get("position_size_pct", 0.1)), nil
}

// Name returns "sma-cross".
func (s *SMACross) Name() string {
	return "sma-cross"
}

// Init records the tracked symbols and allocates fresh rolling state.
func (s *SMACross) Init(symbols []string, _, _ time.Time) error {
	s.symbols = symbols
	s.state = make(map[string]*smaState, len(symbols))
	for _, sym := range symbols {
		s.state[sym] = &smaState{ring: make([]float64, s.longPeriod)}
	}
	return nil
}

// GenerateSignals emits at most one signal per symbol per step, based on
// the most recent crossover of the two moving averages. Bars the rolling
// state has not consumed yet are folded in first, so steps skipped during
// the engine's lookback phase are absorbed without recomputation.
func (s *SMACross) GenerateSignals(window strategy.Window, ts time.Time, pf portfolio.Snapshot) ([]domain.Signal, error) {
	var signals []domain.Signal

	for _, symbol := range s.symbols {
		bars := window[symbol]
		st := s.state[symbol]
		if st == nil || len(bars) == 0 {
			continue
		}
		if st.seen < len(bars) {
			for _, b := range bars[st.seen:] {
				st.observe(b.Close, s.shortPeriod, s.longPeriod)
			}
		}
		if anyNaN(st.prevShort, st.curShort, st.prevLong, st.curLong) {
			continue
		}

		price := bars[len(bars)-1].Close
		pos, held := pf.Positions[symbol]

		crossedAbove := st.prevShort <= st.prevLong && st.curShort > st.curLong
		crossedBelow := st.prevShort >= st.prevLong && st.curShort < st.curLong

		switch {
		case crossedAbove && !held:
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
				Confidence: maConfidence(st.curShort, st.curLong),
				Order:      domain.OrderMarket,
				Reason:     fmt.Sprintf("SMA(%d) crossed above SMA(%d)", s.shortPeriod, s.longPeriod),
			})

		case crossedBelow && held && pos.Side == domain.SideLong:
			signals = append(signals, domain.Signal{
				Symbol:     symbol,
				Type:       domain.SignalClose,
				Price:      price,
				Quantity:   pos.Quantity,
				Timestamp:  ts,
				Confidence: maConfidence(st.curShort, st.curLong),
				Order:      domain.OrderMarket,
				Reason:     fmt.Sprintf("SMA(%d) crossed below SMA(%d)", s.shortPeriod, s.longPeriod),
			})
		}
	}
	return signals, nil
}

// UpdateState is a no-op; the rolling averages advance as new bars arrive
// in GenerateSignals.
func (s *SMACross) UpdateState(_ strategy.Window, _ time.Time, _ portfolio.Snapshot) error {
	return nil
}

// maConfidence maps the relative distance between the two averages onto
// [0.5, 1.0]: the wider the separation, the stronger the signal.
func maConfidence(short, long float64) float64 {
	if long == 0 {
		return 0.5
	}
	return math.Min(0.5+math.Abs(short-long)/math.Abs(long)*10, 1.0)
}

func anyNaN(values ...float64) bool {
	for _, v := range values {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}
