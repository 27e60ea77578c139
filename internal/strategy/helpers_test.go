package strategy

import (
	"time"

	"github.com/rxtech-lab/argo-quant/internal/indicator"
	"github.com/rxtech-lab/argo-quant/internal/types"
)

// seriesFromCloses builds an hourly series where high/low bracket the close by 1.
func seriesFromCloses(closes []float64) types.MarketSeries {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]types.Bar, len(closes))

	for i, c := range closes {
		bars[i] = types.Bar{
			Time:   start.Add(time.Duration(i) * time.Hour),
			Open:   c,
			High:   c + 1,
			Low:    c - 1,
			Close:  c,
			Volume: 1000,
		}
	}

	series, err := types.NewMarketSeries("TEST", types.Interval1h, bars)
	if err != nil {
		panic(err)
	}

	return series
}

// decideEach runs s over every prefix of series with a flat position, the way
// the engine would.
func decideEach(s Strategy, series types.MarketSeries) ([]types.Signal, error) {
	set, err := indicator.Compute(indicator.NewDefaultRegistry(), series, s.Indicators())
	if err != nil {
		return nil, err
	}

	signals := make([]types.Signal, series.Len())

	for i := range signals {
		signal, err := s.Decide(DecisionContext{
			Index:      i,
			Series:     series.Head(i + 1),
			Indicators: set.Window(i + 1),
			Position:   types.Position{Symbol: series.Symbol()},
		})
		if err != nil {
			return nil, err
		}

		signals[i] = signal
	}

	return signals, nil
}

// nonHold maps bar index to signal type for every actionable signal.
func nonHold(signals []types.Signal) map[int]types.SignalType {
	out := make(map[int]types.SignalType)

	for i, s := range signals {
		if !s.IsHold() {
			out[i] = s.Type
		}
	}

	return out
}
