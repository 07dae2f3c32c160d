package indicator

import (
	"math"
	"testing"
)

func approxEq(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func countValid(values []float64) int {
	n := 0
	for _, v := range values {
		if !math.IsNaN(v) {
			n++
		}
	}
	return n
}

func TestSMA(t *testing.T) {
	got := SMA([]float64{1, 2, 3, 4, 5}, 2)
	want := []float64{math.NaN(), 1.5, 2.5, 3.5, 4.5}
	for i := range want {
		if math.IsNaN(want[i]) {
			if !math.IsNaN(got[i]) {
				t.Errorf("SMA[%d] = %v, want NaN", i, got[i])
			}
			continue
		}
		if !approxEq(got[i], want[i]) {
			t.Errorf("SMA[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestSMAConstantSeries(t *testing.T) {
	// The SMA of a constant series equals that constant.
	values := []float64{42, 42, 42, 42, 42, 42}
	got := SMA(values, 3)
	for i := 2; i < len(got); i++ {
		if !approxEq(got[i], 42) {
			t.Errorf("SMA[%d] = %v, want 42", i, got[i])
		}
	}
}

func TestSMAInsufficientHistory(t *testing.T) {
	// period >= data length yields an all-NaN series, not an error.
	got := SMA([]float64{1, 2, 3}, 3)
	if countValid(got) != 0 {
		t.Errorf("SMA with period == len returned %d valid values, want 0", countValid(got))
	}
	if len(got) != 3 {
		t.Errorf("SMA returned length %d, want 3", len(got))
	}
}

func TestEMASeededWithSMA(t *testing.T) {
	// period 3, alpha = 0.5: seed = SMA(2,4,6) = 4, then 0.5*8+0.5*4 = 6,
	// then 0.5*10+0.5*6 = 8.
	got := EMA([]float64{2, 4, 6, 8, 10}, 3)
	if !math.IsNaN(got[0]) || !math.IsNaN(got[1]) {
		t.Error("EMA leading values should be NaN")
	}
	for i, want := range map[int]float64{2: 4, 3: 6, 4: 8} {
		if !approxEq(got[i], want) {
			t.Errorf("EMA[%d] = %v, want %v", i, got[i], want)
		}
	}
}

func TestRSIMonotonic(t *testing.T) {
	up := make([]float64, 30)
	down := make([]float64, 30)
	for i := range up {
		up[i] = 100 + float64(i)
		down[i] = 100 - float64(i)
	}

	rsiUp := RSI(up, 14)
	if got := rsiUp[len(rsiUp)-1]; !approxEq(got, 100) {
		t.Errorf("RSI of monotonically increasing series = %v, want 100", got)
	}
	rsiDown := RSI(down, 14)
	if got := rsiDown[len(rsiDown)-1]; !approxEq(got, 0) {
		t.Errorf("RSI of monotonically decreasing series = %v, want 0", got)
	}
}

func TestRSIWilderSmoothing(t *testing.T) {
	// period 2 over diffs +1, +1, -1, +1:
	//   avgGain=1, avgLoss=0        -> RSI = 100
	//   avgGain=0.5, avgLoss=0.5    -> RSI = 50
	//   avgGain=0.75, avgLoss=0.25  -> RSI = 75
	got := RSI([]float64{1, 2, 3, 2, 3}, 2)
	for i, want := range map[int]float64{2: 100, 3: 50, 4: 75} {
		if !approxEq(got[i], want) {
			t.Errorf("RSI[%d] = %v, want %v", i, got[i], want)
		}
	}
}

func TestMACDConstantSeries(t *testing.T) {
	values := make([]float64, 40)
	for i := range values {
		values[i] = 55
	}
	macd, signal, hist := MACD(values, 12, 26, 9)

	// A constant series has equal EMAs everywhere: MACD, signal, and
	// histogram are all zero once defined.
	if !approxEq(macd[39], 0) || !approxEq(signal[39], 0) || !approxEq(hist[39], 0) {
		t.Errorf("MACD of constant series = (%v, %v, %v), want zeros", macd[39], signal[39], hist[39])
	}
	if !math.IsNaN(macd[24]) {
		t.Error("MACD line should be NaN before the slow EMA window fills")
	}
	if !math.IsNaN(signal[32]) {
		t.Error("signal line should be NaN before its own window fills")
	}
	if math.IsNaN(signal[33]) {
		t.Error("signal line should be defined at index slow+signal-2")
	}
}

func TestBollingerBands(t *testing.T) {
	upper, middle, lower := BollingerBands([]float64{1, 2, 3, 4}, 3, 2)

	// At index 2: mean = 2, population std = sqrt(2/3).
	std := math.Sqrt(2.0 / 3.0)
	if !approxEq(middle[2], 2) {
		t.Errorf("middle[2] = %v, want 2", middle[2])
	}
	if !approxEq(upper[2], 2+2*std) {
		t.Errorf("upper[2] = %v, want %v", upper[2], 2+2*std)
	}
	if !approxEq(lower[2], 2-2*std) {
		t.Errorf("lower[2] = %v, want %v", lower[2], 2-2*std)
	}
	if !math.IsNaN(upper[1]) {
		t.Error("upper[1] should be NaN")
	}
}

func TestATRFlatSeries(t *testing.T) {
	n := 10
	high := make([]float64, n)
	low := make([]float64, n)
	close := make([]float64, n)
	for i := range high {
		high[i], low[i], close[i] = 50, 50, 50
	}
	got := ATR(high, low, close, 5)
	if !math.IsNaN(got[3]) {
		t.Error("ATR[3] should be NaN before the window fills")
	}
	for i := 4; i < n; i++ {
		if !approxEq(got[i], 0) {
			t.Errorf("ATR[%d] = %v, want 0 for flat series", i, got[i])
		}
	}
}

func TestATRUsesPreviousClose(t *testing.T) {
	// Gap up: TR = max(high-low, |high-prevClose|, |low-prevClose|).
	high := []float64{10, 20, 20}
	low := []float64{9, 18, 19}
	close := []float64{10, 19, 20}
	got := ATR(high, low, close, 1)

	// With period 1 the ATR is the true range itself.
	if !approxEq(got[0], 1) {
		t.Errorf("ATR[0] = %v, want 1", got[0])
	}
	// TR[1] = max(2, |20-10|, |18-10|) = 10.
	if !approxEq(got[1], 10) {
		t.Errorf("ATR[1] = %v, want 10", got[1])
	}
	// TR[2] = max(1, |20-19|, |19-19|) = 1.
	if !approxEq(got[2], 1) {
		t.Errorf("ATR[2] = %v, want 1", got[2])
	}
}

func TestStochastic(t *testing.T) {
	high := []float64{10, 11, 12, 13, 14}
	low := []float64{9, 10, 11, 12, 13}
	close := []float64{10, 11, 12, 13, 14}

	k, d := Stochastic(high, low, close, 3, 2)

	// Close is at the highest high of every window: %K = 100.
	for i := 2; i < len(k); i++ {
		if !approxEq(k[i], 100) {
			t.Errorf("%%K[%d] = %v, want 100", i, k[i])
		}
	}
	if !math.IsNaN(d[2]) {
		t.Error("%D[2] should be NaN before its SMA window fills")
	}
	if !approxEq(d[3], 100) {
		t.Errorf("%%D[3] = %v, want 100", d[3])
	}
}

func TestADXTrendingSeries(t *testing.T) {
	n := 40
	high := make([]float64, n)
	low := make([]float64, n)
	close := make([]float64, n)
	for i := range high {
		base := 100 + 2*float64(i)
		high[i] = base + 1
		low[i] = base - 1
		close[i] = base
	}

	adx, plusDI, minusDI := ADX(high, low, close, 14)

	if !math.IsNaN(adx[26]) {
		t.Error("ADX should be NaN before 2*period-1 bars")
	}
	last := n - 1
	if math.IsNaN(adx[last]) {
		t.Fatal("ADX should be defined at the end of a 40-bar series")
	}
	if adx[last] < 0 || adx[last] > 100 {
		t.Errorf("ADX = %v, want within [0,100]", adx[last])
	}
	// A steady uptrend has all directional movement on the plus side.
	if plusDI[last] <= minusDI[last] {
		t.Errorf("+DI (%v) should exceed -DI (%v) in an uptrend", plusDI[last], minusDI[last])
	}
	if !approxEq(minusDI[last], 0) {
		t.Errorf("-DI = %v, want 0 in a pure uptrend", minusDI[last])
	}
}

func TestSupplementalIndicators(t *testing.T) {
	values := []float64{10, 11, 12, 11, 13}
	volume := []int64{100, 200, 300, 400, 500}

	roc := ROC(values, 2)
	if !approxEq(roc[2], 20) {
		t.Errorf("ROC[2] = %v, want 20", roc[2])
	}

	mom := Momentum(values, 2)
	if !approxEq(mom[4], 1) {
		t.Errorf("Momentum[4] = %v, want 1", mom[4])
	}

	// OBV: +200, +300, -400, +500 cumulative.
	obv := OBV(values, volume)
	want := []float64{0, 200, 500, 100, 600}
	for i := range want {
		if !approxEq(obv[i], want[i]) {
			t.Errorf("OBV[%d] = %v, want %v", i, obv[i], want[i])
		}
	}

	wr := WilliamsR([]float64{12, 13, 14}, []float64{10, 11, 12}, []float64{11, 12, 14}, 3)
	// Close at the highest high: Williams %R = 0.
	if !approxEq(wr[2], 0) {
		t.Errorf("WilliamsR[2] = %v, want 0", wr[2])
	}
}
