package engine

import (
	"path/filepath"

	"github.com/rxtech-lab/argo-quant/internal/types"
)

// GetResultFolder places a run's output under
// <resultsFolder>/<strategy>/<symbol>/<start>_<end>.
func GetResultFolder(resultsFolder string, result types.BacktestResult) string {
	strategyFolder := filepath.Join(resultsFolder, result.StrategyID)
	symbolFolder := filepath.Join(strategyFolder, result.Symbol)

	startTimeStr := "all"
	endTimeStr := "all"

	if !result.StartTime.IsZero() {
		startTimeStr = result.StartTime.UTC().Format("20060102")
	}

	if !result.EndTime.IsZero() {
		endTimeStr = result.EndTime.UTC().Format("20060102")
	}

	return filepath.Join(symbolFolder, startTimeStr+"_"+endTimeStr)
}
