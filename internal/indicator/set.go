package indicator

import (
	"math"

	"github.com/rxtech-lab/argo-quant/internal/types"
	"github.com/rxtech-lab/argo-quant/pkg/errors"
)

// Requirement asks for one indicator to be computed and stored under Key.
// Single-line indicators are addressed as Key, multi-line ones as Key.line
// (e.g. "macd.histogram").
type Requirement struct {
	Key    string
	Type   types.IndicatorType
	Params []any
}

// Set is a collection of precomputed indicator lines, all aligned with one
// series. A Set produced by Window(n) exposes only the first n values.
type Set struct {
	lines map[string][]float64
	n     int
}

// Compute evaluates every requirement over the full series once. Because every
// indicator is causal, windows of the result are identical to recomputing on a
// truncated series.
func Compute(registry IndicatorRegistry, series types.MarketSeries, reqs []Requirement) (Set, error) {
	set := Set{lines: make(map[string][]float64), n: series.Len()}

	for _, req := range reqs {
		ind, err := registry.GetIndicator(req.Type, req.Params...)
		if err != nil {
			return Set{}, err
		}

		lines, err := ind.Compute(series)
		if err != nil {
			return Set{}, errors.Wrapf(errors.ErrCodeIndicatorCalculation, err, "failed to compute %s", req.Key)
		}

		for name, values := range lines {
			key := req.Key
			if len(lines) > 1 || name != LineValue {
				key = req.Key + "." + name
			}

			if _, dup := set.lines[key]; dup {
				return Set{}, errors.Newf(errors.ErrCodeInvalidParameters, "duplicate indicator key %q", key)
			}

			set.lines[key] = values
		}
	}

	return set, nil
}

// Len is the number of visible values per line.
func (s Set) Len() int {
	return s.n
}

// Window returns a view of the first n values of every line. The lines are shared, not copied.
func (s Set) Window(n int) Set {
	if n < 0 {
		n = 0
	}

	if n > s.n {
		n = s.n
	}

	return Set{lines: s.lines, n: n}
}

// Line returns the visible values for key, or nil when the key is unknown.
func (s Set) Line(key string) []float64 {
	values, ok := s.lines[key]
	if !ok {
		return nil
	}

	return values[:s.n:s.n]
}

// At returns the value at index i, or NaN when the key is unknown or i is not visible.
func (s Set) At(key string, i int) float64 {
	values, ok := s.lines[key]
	if !ok || i < 0 || i >= s.n {
		return math.NaN()
	}

	return values[i]
}

// Last returns the latest visible value for key.
func (s Set) Last(key string) float64 {
	return s.At(key, s.n-1)
}

// Has reports whether key was computed.
func (s Set) Has(key string) bool {
	_, ok := s.lines[key]

	return ok
}
