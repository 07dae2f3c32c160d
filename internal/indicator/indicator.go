// Package indicator provides stateless technical-analysis transforms over
// price series. Every function returns a slice of the same length as its
// input, with leading entries set to NaN until the lookback window is
// filled. A period that is non-positive or not smaller than the input
// length yields an all-NaN series rather than an error, since early
// backtest steps always lack history.
package indicator

import "math"

// nans returns a slice of n NaN values.
func nans(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// SMA computes the simple moving average: the arithmetic mean of the last
// period values.
func SMA(values []float64, period int) []float64 {
	out := nans(len(values))
	if period <= 0 || period >= len(values) {
		return out
	}

	var sum float64
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}
	return out
}

// EMA computes the exponential moving average with smoothing factor
// alpha = 2/(period+1), seeded with the SMA of the first period values.
func EMA(values []float64, period int) []float64 {
	out := nans(len(values))
	if period <= 0 || period >= len(values) {
		return out
	}

	var sum float64
	for i := 0; i < period; i++ {
		sum += values[i]
	}
	out[period-1] = sum / float64(period)

	alpha := 2.0 / float64(period+1)
	for i := period; i < len(values); i++ {
		out[i] = alpha*values[i] + (1-alpha)*out[i-1]
	}
	return out
}

// RSI computes the relative strength index using Wilder's smoothing of
// average gains and losses. RSI = 100 - 100/(1+RS) with RS = avg gain /
// avg loss; when the average loss is zero RSI is 100.
func RSI(values []float64, period int) []float64 {
	out := nans(len(values))
	if period <= 0 || period >= len(values) {
		return out
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		delta := values[i] - values[i-1]
		if delta > 0 {
			avgGain += delta
		} else {
			avgLoss -= delta
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)
	out[period] = rsiValue(avgGain, avgLoss)

	for i := period + 1; i < len(values); i++ {
		delta := values[i] - values[i-1]
		gain, loss := 0.0, 0.0
		if delta > 0 {
			gain = delta
		} else {
			loss = -delta
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		out[i] = rsiValue(avgGain, avgLoss)
	}
	return out
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// MACD computes the moving average convergence/divergence: the fast EMA
// minus the slow EMA, an EMA of that difference as the signal line, and
// their difference as the histogram.
func MACD(values []float64, fast, slow, signal int) (macd, signalLine, histogram []float64) {
	n := len(values)
	macd, signalLine, histogram = nans(n), nans(n), nans(n)

	emaFast := EMA(values, fast)
	emaSlow := EMA(values, slow)
	for i := range values {
		if !math.IsNaN(emaFast[i]) && !math.IsNaN(emaSlow[i]) {
			macd[i] = emaFast[i] - emaSlow[i]
		}
	}

	// The signal line is an EMA over the valid region of the MACD line.
	offset := slow - 1
	if offset < 0 || offset >= n {
		return macd, signalLine, histogram
	}
	sig := EMA(macd[offset:], signal)
	for i, v := range sig {
		signalLine[offset+i] = v
		if !math.IsNaN(v) {
			histogram[offset+i] = macd[offset+i] - v
		}
	}
	return macd, signalLine, histogram
}

// BollingerBands computes the SMA of the values plus and minus numStd
// rolling population standard deviations. It returns the upper band, the
// middle band (SMA), and the lower band.
func BollingerBands(values []float64, period int, numStd float64) (upper, middle, lower []float64) {
	n := len(values)
	upper, lower = nans(n), nans(n)
	middle = SMA(values, period)
	if period <= 0 || period >= n {
		return upper, middle, lower
	}

	for i := period - 1; i < n; i++ {
		mean := middle[i]
		var variance float64
		for j := i - period + 1; j <= i; j++ {
			d := values[j] - mean
			variance += d * d
		}
		std := math.Sqrt(variance / float64(period))
		upper[i] = mean + numStd*std
		lower[i] = mean - numStd*std
	}
	return upper, middle, lower
}

// trueRanges computes the true range series: max(high-low,
// |high-prevClose|, |low-prevClose|). The first entry uses high-low only.
func trueRanges(high, low, close []float64) []float64 {
	tr := make([]float64, len(high))
	for i := range high {
		if i == 0 {
			tr[i] = high[i] - low[i]
			continue
		}
		tr[i] = math.Max(high[i]-low[i],
			math.Max(math.Abs(high[i]-close[i-1]), math.Abs(low[i]-close[i-1])))
	}
	return tr
}

// ATR computes the Wilder-smoothed average true range.
func ATR(high, low, close []float64, period int) []float64 {
	out := nans(len(high))
	if period <= 0 || period >= len(high) {
		return out
	}

	tr := trueRanges(high, low, close)
	var sum float64
	for i := 0; i < period; i++ {
		sum += tr[i]
	}
	out[period-1] = sum / float64(period)
	for i := period; i < len(tr); i++ {
		out[i] = (out[i-1]*float64(period-1) + tr[i]) / float64(period)
	}
	return out
}

// Stochastic computes the stochastic oscillator:
// %K = 100*(close-lowestLow)/(highestHigh-lowestLow) over kPeriod bars,
// %D = SMA(%K, dPeriod). A flat window (highest == lowest) yields %K = 50.
func Stochastic(high, low, close []float64, kPeriod, dPeriod int) (k, d []float64) {
	n := len(close)
	k, d = nans(n), nans(n)
	if kPeriod <= 0 || kPeriod >= n || dPeriod <= 0 {
		return k, d
	}

	for i := kPeriod - 1; i < n; i++ {
		hh, ll := high[i], low[i]
		for j := i - kPeriod + 1; j <= i; j++ {
			hh = math.Max(hh, high[j])
			ll = math.Min(ll, low[j])
		}
		if hh == ll {
			k[i] = 50
		} else {
			k[i] = 100 * (close[i] - ll) / (hh - ll)
		}
	}

	offset := kPeriod - 1
	smoothed := SMA(k[offset:], dPeriod)
	for i, v := range smoothed {
		d[offset+i] = v
	}
	return k, d
}

// ADX computes the average directional index from Wilder-smoothed
// directional movement and true range. It returns the ADX line together
// with the +DI and -DI series. The first valid ADX value appears after
// 2*period-1 bars.
func ADX(high, low, close []float64, period int) (adx, plusDI, minusDI []float64) {
	n := len(high)
	adx, plusDI, minusDI = nans(n), nans(n), nans(n)
	if period <= 0 || 2*period >= n {
		return adx, plusDI, minusDI
	}

	tr := trueRanges(high, low, close)
	plusDM := make([]float64, n)
	minusDM := make([]float64, n)
	for i := 1; i < n; i++ {
		up := high[i] - high[i-1]
		down := low[i-1] - low[i]
		if up > down && up > 0 {
			plusDM[i] = up
		}
		if down > up && down > 0 {
			minusDM[i] = down
		}
	}

	// Wilder-smoothed running sums, seeded over bars 1..period.
	var smTR, smPlus, smMinus float64
	for i := 1; i <= period; i++ {
		smTR += tr[i]
		smPlus += plusDM[i]
		smMinus += minusDM[i]
	}

	dx := nans(n)
	var adxSum float64
	for i := period; i < n; i++ {
		if i > period {
			smTR = smTR - smTR/float64(period) + tr[i]
			smPlus = smPlus - smPlus/float64(period) + plusDM[i]
			smMinus = smMinus - smMinus/float64(period) + minusDM[i]
		}
		if smTR == 0 {
			continue
		}
		plusDI[i] = 100 * smPlus / smTR
		minusDI[i] = 100 * smMinus / smTR
		if sum := plusDI[i] + minusDI[i]; sum != 0 {
			dx[i] = 100 * math.Abs(plusDI[i]-minusDI[i]) / sum
		} else {
			dx[i] = 0
		}

		if i < 2*period-1 {
			adxSum += dx[i]
		} else if i == 2*period-1 {
			adxSum += dx[i]
			adx[i] = adxSum / float64(period)
		} else {
			adx[i] = (adx[i-1]*float64(period-1) + dx[i]) / float64(period)
		}
	}
	return adx, plusDI, minusDI
}

// ROC computes the rate of change: the percentage change over period bars.
func ROC(values []float64, period int) []float64 {
	out := nans(len(values))
	if period <= 0 || period >= len(values) {
		return out
	}
	for i := period; i < len(values); i++ {
		if values[i-period] != 0 {
			out[i] = (values[i] - values[i-period]) / values[i-period] * 100
		}
	}
	return out
}

// Momentum computes the absolute price change over period bars.
func Momentum(values []float64, period int) []float64 {
	out := nans(len(values))
	if period <= 0 || period >= len(values) {
		return out
	}
	for i := period; i < len(values); i++ {
		out[i] = values[i] - values[i-period]
	}
	return out
}

// WilliamsR computes Williams %R over period bars, ranging from -100 to 0.
func WilliamsR(high, low, close []float64, period int) []float64 {
	out := nans(len(close))
	if period <= 0 || period >= len(close) {
		return out
	}
	for i := period - 1; i < len(close); i++ {
		hh, ll := high[i], low[i]
		for j := i - period + 1; j <= i; j++ {
			hh = math.Max(hh, high[j])
			ll = math.Min(ll, low[j])
		}
		if hh != ll {
			out[i] = -100 * (hh - close[i]) / (hh - ll)
		}
	}
	return out
}

// OBV computes on-balance volume: a running volume total that adds volume
// on up-closes and subtracts it on down-closes.
func OBV(close []float64, volume []int64) []float64 {
	out := make([]float64, len(close))
	for i := 1; i < len(close); i++ {
		switch {
		case close[i] > close[i-1]:
			out[i] = out[i-1] + float64(volume[i])
		case close[i] < close[i-1]:
			out[i] = out[i-1] - float64(volume[i])
		default:
			out[i] = out[i-1]
		}
	}
	return out
}
