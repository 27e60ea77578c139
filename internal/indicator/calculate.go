package indicator

import "math"

// The Calculate* functions return slices the same length as their input. The
// leading values that can't be computed yet are NaN, never zero, and the value
// at index i depends only on inputs at indices <= i.

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}

	return out
}

// Valid reports whether v is a computed indicator value.
func Valid(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// CalculateSMA is the mean of the trailing period values. A window containing
// NaN yields NaN.
func CalculateSMA(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	if period <= 0 {
		return out
	}

	for i := period - 1; i < len(values); i++ {
		sum := 0.0
		for _, v := range values[i-period+1 : i+1] {
			sum += v
		}

		out[i] = sum / float64(period)
	}

	return out
}

// CalculateEMA seeds with the SMA of the first period valid values and then
// applies the 2/(period+1) smoothing factor. Leading NaN input is skipped.
func CalculateEMA(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	if period <= 0 {
		return out
	}

	start := 0
	for start < len(values) && math.IsNaN(values[start]) {
		start++
	}

	seedEnd := start + period - 1
	if seedEnd >= len(values) {
		return out
	}

	sum := 0.0
	for _, v := range values[start : seedEnd+1] {
		sum += v
	}

	prev := sum / float64(period)
	out[seedEnd] = prev
	alpha := 2.0 / float64(period+1)

	for i := seedEnd + 1; i < len(values); i++ {
		prev = alpha*values[i] + (1-alpha)*prev
		out[i] = prev
	}

	return out
}

// CalculateRSI uses Wilder's smoothing. The first period values are undefined.
// A window with no losses reports 100.
func CalculateRSI(closes []float64, period int) []float64 {
	out := nanSlice(len(closes))
	if period <= 0 || len(closes) <= period {
		return out
	}

	avgGain, avgLoss := 0.0, 0.0
	for i := 1; i <= period; i++ {
		gain, loss := splitChange(closes[i] - closes[i-1])
		avgGain += gain
		avgLoss += loss
	}

	avgGain /= float64(period)
	avgLoss /= float64(period)
	out[period] = rsiFromAverages(avgGain, avgLoss)

	for i := period + 1; i < len(closes); i++ {
		gain, loss := splitChange(closes[i] - closes[i-1])
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		out[i] = rsiFromAverages(avgGain, avgLoss)
	}

	return out
}

func splitChange(change float64) (gain, loss float64) {
	if change > 0 {
		return change, 0
	}

	return 0, -change
}

func rsiFromAverages(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}

	rs := avgGain / avgLoss

	return 100 - (100 / (1 + rs))
}

// CalculateMACD returns the MACD line (fast EMA - slow EMA), its signal EMA and
// the histogram (line - signal).
func CalculateMACD(closes []float64, fast, slow, signal int) (line, signalLine, histogram []float64) {
	fastEMA := CalculateEMA(closes, fast)
	slowEMA := CalculateEMA(closes, slow)

	line = nanSlice(len(closes))
	for i := range closes {
		if Valid(fastEMA[i]) && Valid(slowEMA[i]) {
			line[i] = fastEMA[i] - slowEMA[i]
		}
	}

	signalLine = CalculateEMA(line, signal)

	histogram = nanSlice(len(closes))
	for i := range closes {
		if Valid(line[i]) && Valid(signalLine[i]) {
			histogram[i] = line[i] - signalLine[i]
		}
	}

	return line, signalLine, histogram
}

// CalculateStdDev is the sample standard deviation of the trailing period values.
func CalculateStdDev(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	if period <= 1 {
		return out
	}

	for i := period - 1; i < len(values); i++ {
		out[i] = sampleStdDev(values[i-period+1 : i+1])
	}

	return out
}

func sampleStdDev(window []float64) float64 {
	mean := 0.0
	for _, v := range window {
		mean += v
	}

	mean /= float64(len(window))

	variance := 0.0
	for _, v := range window {
		variance += (v - mean) * (v - mean)
	}

	return math.Sqrt(variance / float64(len(window)-1))
}

// CalculateBollingerBands returns middle = SMA(period) and upper/lower at
// multiplier sample standard deviations from it.
func CalculateBollingerBands(closes []float64, period int, multiplier float64) (upper, middle, lower []float64) {
	middle = CalculateSMA(closes, period)
	std := CalculateStdDev(closes, period)

	upper = nanSlice(len(closes))
	lower = nanSlice(len(closes))

	for i := range closes {
		if Valid(middle[i]) && Valid(std[i]) {
			upper[i] = middle[i] + multiplier*std[i]
			lower[i] = middle[i] - multiplier*std[i]
		}
	}

	return upper, middle, lower
}

// CalculateATR is Wilder's average true range, seeded with the mean of the first period true ranges.
func CalculateATR(highs, lows, closes []float64, period int) []float64 {
	n := len(closes)
	out := nanSlice(n)

	if period <= 0 || n < period || len(highs) != n || len(lows) != n {
		return out
	}

	tr := make([]float64, n)
	for i := range closes {
		tr[i] = highs[i] - lows[i]
		if i > 0 {
			tr[i] = math.Max(tr[i], math.Max(math.Abs(highs[i]-closes[i-1]), math.Abs(lows[i]-closes[i-1])))
		}
	}

	atr := 0.0
	for _, v := range tr[:period] {
		atr += v
	}

	atr /= float64(period)
	out[period-1] = atr

	for i := period; i < n; i++ {
		atr = (atr*float64(period-1) + tr[i]) / float64(period)
		out[i] = atr
	}

	return out
}

// CrossedAbove reports whether a moved from <= b at index i-1 to > b at index i.
func CrossedAbove(a, b []float64, i int) bool {
	if i < 1 || i >= len(a) || i >= len(b) {
		return false
	}

	if !Valid(a[i-1]) || !Valid(a[i]) || !Valid(b[i-1]) || !Valid(b[i]) {
		return false
	}

	return a[i-1] <= b[i-1] && a[i] > b[i]
}

// CrossedBelow reports whether a moved from >= b at index i-1 to < b at index i.
func CrossedBelow(a, b []float64, i int) bool {
	if i < 1 || i >= len(a) || i >= len(b) {
		return false
	}

	if !Valid(a[i-1]) || !Valid(a[i]) || !Valid(b[i-1]) || !Valid(b[i]) {
		return false
	}

	return a[i-1] >= b[i-1] && a[i] < b[i]
}
