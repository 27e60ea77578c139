package ml

import (
	"math"

	"github.com/rxtech-lab/argo-quant/internal/indicator"
	"github.com/rxtech-lab/argo-quant/internal/types"
	"github.com/rxtech-lab/argo-quant/pkg/errors"
)

// Indicator keys the feature extractor reads from an indicator.Set.
const (
	KeyRSI       = "ml_rsi"
	KeyMACD      = "ml_macd"
	KeyBollinger = "ml_bb"
)

// NumFeatures is the length of the vector returned by ExtractFeatures.
const NumFeatures = 8

// FeatureNames documents the vector layout, in order.
var FeatureNames = [NumFeatures]string{
	"last_return",
	"mean_return",
	"return_volatility",
	"close_to_sma",
	"rsi_centered",
	"macd_histogram_to_close",
	"bollinger_position",
	"volume_ratio",
}

// Requirements lists the indicators ExtractFeatures needs.
func Requirements() []indicator.Requirement {
	return []indicator.Requirement{
		{Key: KeyRSI, Type: types.IndicatorTypeRSI, Params: []any{14}},
		{Key: KeyMACD, Type: types.IndicatorTypeMACD, Params: []any{12, 26, 9}},
		{Key: KeyBollinger, Type: types.IndicatorTypeBollingerBands, Params: []any{20, 2.0}},
	}
}

// WarmupBars is the shortest series for which every feature is defined.
func WarmupBars(lookback int) int {
	// MACD(12,26,9) is the slowest of the fixed indicators
	return max(lookback+1, 34)
}

// ExtractFeatures builds the feature vector for the last bar of series using
// only the trailing lookback bars and indicator values at that bar.
func ExtractFeatures(series types.MarketSeries, set indicator.Set, lookback int) ([]float64, error) {
	n := series.Len()
	if lookback < 2 {
		return nil, errors.Newf(errors.ErrCodeInvalidParameters, "lookback must be at least 2, got %d", lookback)
	}

	if n < WarmupBars(lookback) {
		return nil, errors.NewInsufficientDataErrorf(WarmupBars(lookback), n, series.Symbol(),
			"insufficient data for ML features: required %d, got %d", WarmupBars(lookback), n)
	}

	closes := series.Closes()[n-lookback-1:]
	volumes := series.Volumes()[n-lookback:]
	last := closes[len(closes)-1]

	returns := make([]float64, lookback)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] != 0 {
			returns[i-1] = closes[i]/closes[i-1] - 1
		}
	}

	meanReturn, volatility := meanStd(returns)
	sma, _ := meanStd(closes[1:])
	meanVolume, _ := meanStd(volumes)

	upper := set.Last(KeyBollinger + "." + indicator.LineUpper)
	lower := set.Last(KeyBollinger + "." + indicator.LineLower)

	bbPosition := 0.0
	if width := upper - lower; width > 0 {
		bbPosition = (last-lower)/width - 0.5
	}

	volumeRatio := 0.0
	if meanVolume > 0 {
		volumeRatio = volumes[len(volumes)-1]/meanVolume - 1
	}

	closeToSMA := 0.0
	if sma != 0 {
		closeToSMA = last/sma - 1
	}

	macdToClose := 0.0
	if last != 0 {
		macdToClose = set.Last(KeyMACD+"."+indicator.LineHistogram) / last
	}

	features := []float64{
		returns[len(returns)-1],
		meanReturn,
		volatility,
		closeToSMA,
		(set.Last(KeyRSI) - 50) / 50,
		macdToClose,
		bbPosition,
		volumeRatio,
	}

	for i, f := range features {
		if !indicator.Valid(f) {
			return nil, errors.NewInsufficientDataErrorf(WarmupBars(lookback), n, series.Symbol(),
				"feature %s is undefined at bar %d", FeatureNames[i], n-1)
		}
	}

	return features, nil
}

// meanStd returns the mean and sample standard deviation.
func meanStd(values []float64) (mean, std float64) {
	if len(values) == 0 {
		return 0, 0
	}

	for _, v := range values {
		mean += v
	}

	mean /= float64(len(values))
	if len(values) < 2 {
		return mean, 0
	}

	for _, v := range values {
		std += (v - mean) * (v - mean)
	}

	return mean, math.Sqrt(std / float64(len(values)-1))
}
