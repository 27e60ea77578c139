package types

import (
	"time"

	"github.com/rxtech-lab/argo-quant/pkg/errors"
)

// Bar is one OHLCV observation for a symbol at a given time.
type Bar struct {
	Time   time.Time `json:"timestamp" yaml:"timestamp"`
	Open   float64   `json:"open" yaml:"open"`
	High   float64   `json:"high" yaml:"high"`
	Low    float64   `json:"low" yaml:"low"`
	Close  float64   `json:"close" yaml:"close"`
	Volume float64   `json:"volume" yaml:"volume"`
}

// Interval is the bar granularity of a MarketSeries.
type Interval string

const (
	Interval1m  Interval = "1m"
	Interval5m  Interval = "5m"
	Interval15m Interval = "15m"
	Interval30m Interval = "30m"
	Interval1h  Interval = "1h"
	Interval4h  Interval = "4h"
	Interval1d  Interval = "1d"
	Interval1w  Interval = "1w"
)

var intervalDurations = map[Interval]time.Duration{
	Interval1m:  time.Minute,
	Interval5m:  5 * time.Minute,
	Interval15m: 15 * time.Minute,
	Interval30m: 30 * time.Minute,
	Interval1h:  time.Hour,
	Interval4h:  4 * time.Hour,
	Interval1d:  24 * time.Hour,
	Interval1w:  7 * 24 * time.Hour,
}

// ParseInterval converts a string such as "1h" into an Interval.
func ParseInterval(s string) (Interval, error) {
	interval := Interval(s)
	if _, ok := intervalDurations[interval]; !ok {
		return "", errors.Newf(errors.ErrCodeInvalidInterval, "unsupported interval %q", s)
	}

	return interval, nil
}

// Duration returns the length of one bar. Unknown intervals return 0.
func (i Interval) Duration() time.Duration {
	return intervalDurations[i]
}

// PeriodsPerYear is the number of bars in a 365-day year. Daily bars use 252
// trading days so that annualized figures line up with equity conventions.
func (i Interval) PeriodsPerYear() float64 {
	d := i.Duration()
	if d == 0 {
		return 252
	}

	if i == Interval1d {
		return 252
	}

	return float64(365*24*time.Hour) / float64(d)
}

// MarketSeries is an ordered, immutable-by-convention sequence of bars for one
// symbol. Timestamps are strictly increasing.
type MarketSeries struct {
	symbol   string
	interval Interval
	bars     []Bar
}

// NewMarketSeries validates ordering and returns a series. An empty bar slice
// is allowed; consumers decide whether that is an error.
func NewMarketSeries(symbol string, interval Interval, bars []Bar) (MarketSeries, error) {
	for i := 1; i < len(bars); i++ {
		if !bars[i].Time.After(bars[i-1].Time) {
			return MarketSeries{}, errors.Newf(errors.ErrCodeInvalidParameters,
				"bars for %s are not strictly increasing at index %d (%s <= %s)",
				symbol, i, bars[i].Time.Format(time.RFC3339), bars[i-1].Time.Format(time.RFC3339))
		}
	}

	owned := make([]Bar, len(bars))
	copy(owned, bars)

	return MarketSeries{symbol: symbol, interval: interval, bars: owned}, nil
}

func (s MarketSeries) Symbol() string     { return s.symbol }
func (s MarketSeries) Interval() Interval { return s.interval }
func (s MarketSeries) Len() int           { return len(s.bars) }
func (s MarketSeries) IsEmpty() bool      { return len(s.bars) == 0 }

// At returns the bar at index i. It panics when i is out of range, like a slice.
func (s MarketSeries) At(i int) Bar {
	return s.bars[i]
}

// Last returns the most recent bar and false when the series is empty.
func (s MarketSeries) Last() (Bar, bool) {
	if len(s.bars) == 0 {
		return Bar{}, false
	}

	return s.bars[len(s.bars)-1], true
}

// Head returns a view containing only the first n bars. The view shares
// storage with s but its capacity is capped so appends cannot leak forward.
func (s MarketSeries) Head(n int) MarketSeries {
	if n < 0 {
		n = 0
	}

	if n > len(s.bars) {
		n = len(s.bars)
	}

	return MarketSeries{symbol: s.symbol, interval: s.interval, bars: s.bars[:n:n]}
}

// Between returns the bars with start <= Time <= end. A zero start or end is unbounded.
func (s MarketSeries) Between(start, end time.Time) MarketSeries {
	lo, hi := 0, len(s.bars)
	if !start.IsZero() {
		for lo < hi && s.bars[lo].Time.Before(start) {
			lo++
		}
	}

	if !end.IsZero() {
		for hi > lo && s.bars[hi-1].Time.After(end) {
			hi--
		}
	}

	return MarketSeries{symbol: s.symbol, interval: s.interval, bars: s.bars[lo:hi:hi]}
}

// Append returns a new series with bar added at the end.
func (s MarketSeries) Append(bar Bar) (MarketSeries, error) {
	if last, ok := s.Last(); ok && !bar.Time.After(last.Time) {
		return s, errors.Newf(errors.ErrCodeInvalidParameters,
			"bar at %s is not after last bar at %s", bar.Time.Format(time.RFC3339), last.Time.Format(time.RFC3339))
	}

	bars := make([]Bar, len(s.bars), len(s.bars)+1)
	copy(bars, s.bars)
	bars = append(bars, bar)

	return MarketSeries{symbol: s.symbol, interval: s.interval, bars: bars}, nil
}

// Bars returns a copy of the underlying bars.
func (s MarketSeries) Bars() []Bar {
	out := make([]Bar, len(s.bars))
	copy(out, s.bars)

	return out
}

func (s MarketSeries) Closes() []float64  { return s.column(func(b Bar) float64 { return b.Close }) }
func (s MarketSeries) Opens() []float64   { return s.column(func(b Bar) float64 { return b.Open }) }
func (s MarketSeries) Highs() []float64   { return s.column(func(b Bar) float64 { return b.High }) }
func (s MarketSeries) Lows() []float64    { return s.column(func(b Bar) float64 { return b.Low }) }
func (s MarketSeries) Volumes() []float64 { return s.column(func(b Bar) float64 { return b.Volume }) }

func (s MarketSeries) column(pick func(Bar) float64) []float64 {
	out := make([]float64, len(s.bars))
	for i, b := range s.bars {
		out[i] = pick(b)
	}

	return out
}
