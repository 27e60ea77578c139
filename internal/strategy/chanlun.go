package strategy

import (
	"github.com/rxtech-lab/argo-quant/internal/indicator"
	"github.com/rxtech-lab/argo-quant/internal/types"
)

const (
	keyChanlunMACD = "chanlun_macd"

	// chanlunScanBars bounds how far back pivots are searched at each bar.
	chanlunScanBars = 250
)

type fractalKind int

const (
	fractalTop fractalKind = iota + 1
	fractalBottom
)

type pivot struct {
	index int
	kind  fractalKind
	price float64
}

// Chanlun trades swing structure. A top (bottom) fractal is a bar whose high
// (low) exceeds the FractalWindow bars on both sides, so it is only confirmed
// FractalWindow bars later. Confirmed fractals are joined into alternating
// strokes at least MinSwingLength bars long. A higher low confirmed on a rising
// MACD histogram buys; a lower high on a falling histogram sells.
type Chanlun struct {
	id     string
	params ChanlunParams
}

func NewChanlun(id string, params ChanlunParams) *Chanlun {
	return &Chanlun{id: id, params: params}
}

func (s *Chanlun) ID() string               { return s.id }
func (s *Chanlun) Type() types.StrategyType { return types.StrategyTypeChanlun }
func (s *Chanlun) Risk() RiskParams         { return s.params.RiskParams }

func (s *Chanlun) Indicators() []indicator.Requirement {
	return []indicator.Requirement{
		{Key: keyChanlunMACD, Type: types.IndicatorTypeMACD, Params: []any{s.params.MACDFast, s.params.MACDSlow, s.params.MACDSignal}},
	}
}

func (s *Chanlun) RequiredBars() int {
	structure := 4*s.params.FractalWindow + s.params.MinSwingLength + 2

	return max(s.params.MACDSlow+s.params.MACDSignal, structure)
}

func (s *Chanlun) Decide(ctx DecisionContext) (types.Signal, error) {
	i := ctx.Index
	k := s.params.FractalWindow

	pivots := s.pivots(ctx.Series.Highs(), ctx.Series.Lows(), i)
	n := len(pivots)

	if n < 3 || pivots[n-1].index != i-k {
		return types.Hold(), nil
	}

	last, prevSame := pivots[n-1], pivots[n-3]

	hist := ctx.Indicators.Line(keyChanlunMACD + "." + indicator.LineHistogram)
	if i < 1 || len(hist) <= i || !indicator.Valid(hist[i]) || !indicator.Valid(hist[i-1]) {
		return types.Hold(), nil
	}

	switch {
	case last.kind == fractalBottom && last.price > prevSame.price && hist[i] > hist[i-1]:
		return types.Buy(types.TradeReasonStrategy), nil
	case last.kind == fractalTop && last.price < prevSame.price && hist[i] < hist[i-1]:
		return types.Sell(types.TradeReasonStrategy), nil
	default:
		return types.Hold(), nil
	}
}

// pivots returns the alternating stroke endpoints confirmed by bar i.
func (s *Chanlun) pivots(highs, lows []float64, i int) []pivot {
	k := s.params.FractalWindow
	start := max(k, i-chanlunScanBars)

	var out []pivot

	for j := start; j+k <= i; j++ {
		top, bottom := isTop(highs, j, k), isBottom(lows, j, k)
		if top == bottom {
			// neither, or an outside bar that is both
			continue
		}

		f := pivot{index: j, kind: fractalBottom, price: lows[j]}
		if top {
			f = pivot{index: j, kind: fractalTop, price: highs[j]}
		}

		if len(out) == 0 {
			out = append(out, f)

			continue
		}

		last := &out[len(out)-1]
		if f.kind == last.kind {
			if (f.kind == fractalTop && f.price > last.price) || (f.kind == fractalBottom && f.price < last.price) {
				*last = f
			}

			continue
		}

		if f.index-last.index < s.params.MinSwingLength {
			continue
		}

		if (f.kind == fractalTop && f.price > last.price) || (f.kind == fractalBottom && f.price < last.price) {
			out = append(out, f)
		}
	}

	return out
}

func isTop(highs []float64, j, k int) bool {
	for d := 1; d <= k; d++ {
		if highs[j] <= highs[j-d] || highs[j] <= highs[j+d] {
			return false
		}
	}

	return true
}

func isBottom(lows []float64, j, k int) bool {
	for d := 1; d <= k; d++ {
		if lows[j] >= lows[j-d] || lows[j] >= lows[j+d] {
			return false
		}
	}

	return true
}
