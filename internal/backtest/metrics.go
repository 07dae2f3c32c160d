package backtest

import (
	"math"
	"time"

	"scizor/internal/domain"
	"scizor/internal/portfolio"
)

// tradingDaysPerYear is the annualization factor for daily-bar series.
const tradingDaysPerYear = 252

// Metrics is the performance summary of one backtest run. Ratio fields are
// fractions (0.05 = 5%). Fields that are undefined for the run (no trades,
// zero variance, no losing trades) are NaN or +Inf rather than zero, so
// callers can tell "no information" from "flat performance".
type Metrics struct {
	InitialCapital float64
	FinalValue     float64
	TotalReturn    float64
	AnnualReturn   float64
	SharpeRatio    float64
	MaxDrawdown    float64
	Volatility     float64

	TotalTrades    int
	WinningTrades  int
	LosingTrades   int
	WinRate        float64
	ProfitFactor   float64
	AvgTradePnL    float64
	AvgWinPnL      float64
	AvgLossPnL     float64
	LargestWinPnL  float64
	LargestLossPnL float64
	AvgHoldingDays float64
}

// ComputeMetrics derives the performance summary from a run's equity curve
// and trade log. Pure function, computed once per run.
func ComputeMetrics(initialCapital float64, series []portfolio.ValuePoint, trades []domain.Trade, riskFreeRate float64) Metrics {
	m := Metrics{
		InitialCapital: initialCapital,
		FinalValue:     initialCapital,
	}
	if len(series) > 0 {
		m.FinalValue = series[len(series)-1].Value
	}
	m.TotalReturn = m.FinalValue/initialCapital - 1

	returns := dailyReturns(series)
	m.AnnualReturn = annualReturn(m.FinalValue/initialCapital, len(returns))
	m.SharpeRatio = sharpeRatio(returns, riskFreeRate)
	m.Volatility = volatility(returns)
	m.MaxDrawdown = maxDrawdown(series)

	tradeStats(&m, trades)
	return m
}

// dailyReturns resamples the equity curve to one value per calendar day
// (the last snapshot of each day) and returns the day-over-day percentage
// changes.
func dailyReturns(series []portfolio.ValuePoint) []float64 {
	var daily []float64
	lastDay := ""
	for _, p := range series {
		day := p.Timestamp.Format(time.DateOnly)
		if day == lastDay {
			daily[len(daily)-1] = p.Value
			continue
		}
		daily = append(daily, p.Value)
		lastDay = day
	}

	if len(daily) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(daily)-1)
	for i := 1; i < len(daily); i++ {
		returns = append(returns, daily[i]/daily[i-1]-1)
	}
	return returns
}

// sharpeRatio is the annualized mean excess daily return over its
// population standard deviation. NaN when the deviation is zero or there
// are no returns.
func sharpeRatio(returns []float64, riskFreeRate float64) float64 {
	if len(returns) == 0 {
		return math.NaN()
	}
	dailyRF := riskFreeRate / tradingDaysPerYear
	excess := make([]float64, len(returns))
	for i, r := range returns {
		excess[i] = r - dailyRF
	}
	std := popStd(excess)
	if std == 0 {
		return math.NaN()
	}
	return mean(excess) / std * math.Sqrt(tradingDaysPerYear)
}

// annualReturn compounds the total growth factor over the observed trading
// days to a one-year horizon. NaN without at least one daily return.
func annualReturn(growth float64, tradingDays int) float64 {
	if tradingDays == 0 || growth <= 0 {
		return math.NaN()
	}
	return math.Pow(growth, tradingDaysPerYear/float64(tradingDays)) - 1
}

func volatility(returns []float64) float64 {
	if len(returns) == 0 {
		return math.NaN()
	}
	return popStd(returns) * math.Sqrt(tradingDaysPerYear)
}

// maxDrawdown is the largest peak-to-trough decline of the equity curve,
// as a fraction of the peak. Zero for a monotonically rising curve.
func maxDrawdown(series []portfolio.ValuePoint) float64 {
	peak := math.Inf(-1)
	maxDD := 0.0
	for _, p := range series {
		if p.Value > peak {
			peak = p.Value
		}
		if peak > 0 {
			if dd := (peak - p.Value) / peak; dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}

func tradeStats(m *Metrics, trades []domain.Trade) {
	m.TotalTrades = len(trades)
	if len(trades) == 0 {
		m.WinRate = math.NaN()
		m.ProfitFactor = math.NaN()
		m.AvgTradePnL = math.NaN()
		m.AvgWinPnL = math.NaN()
		m.AvgLossPnL = math.NaN()
		m.AvgHoldingDays = math.NaN()
		return
	}

	var grossWin, grossLoss, totalPnL, holdingDays float64
	for _, t := range trades {
		totalPnL += t.PnL
		holdingDays += t.Holding.Hours() / 24
		switch {
		case t.PnL > 0:
			m.WinningTrades++
			grossWin += t.PnL
			if t.PnL > m.LargestWinPnL {
				m.LargestWinPnL = t.PnL
			}
		case t.PnL < 0:
			m.LosingTrades++
			grossLoss += t.PnL
			if t.PnL < m.LargestLossPnL {
				m.LargestLossPnL = t.PnL
			}
		}
	}

	m.WinRate = float64(m.WinningTrades) / float64(m.TotalTrades)
	m.AvgTradePnL = totalPnL / float64(m.TotalTrades)
	m.AvgHoldingDays = holdingDays / float64(m.TotalTrades)

	switch {
	case grossLoss != 0:
		m.ProfitFactor = grossWin / math.Abs(grossLoss)
	case grossWin > 0:
		m.ProfitFactor = math.Inf(1)
	default:
		m.ProfitFactor = math.NaN()
	}

	if m.WinningTrades > 0 {
		m.AvgWinPnL = grossWin / float64(m.WinningTrades)
	} else {
		m.AvgWinPnL = math.NaN()
	}
	if m.LosingTrades > 0 {
		m.AvgLossPnL = grossLoss / float64(m.LosingTrades)
	} else {
		m.AvgLossPnL = math.NaN()
	}
}

func mean(xs []float64) float64 {
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// popStd is the population standard deviation.
func popStd(xs []float64) float64 {
	mu := mean(xs)
	sum := 0.0
	for _, x := range xs {
		d := x - mu
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(xs)))
}
