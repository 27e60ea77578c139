package engine

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/rxtech-lab/argo-quant/internal/types"
	"github.com/stretchr/testify/suite"
)

// UtilsTestSuite is a test suite for utils package
type UtilsTestSuite struct {
	suite.Suite
}

// TestUtilsSuite runs the test suite
func TestUtilsSuite(t *testing.T) {
	suite.Run(t, new(UtilsTestSuite))
}

func (suite *UtilsTestSuite) TestGetResultFolder() {
	tests := []struct {
		name     string
		result   types.BacktestResult
		expected string
	}{
		{
			name: "with time range",
			result: types.BacktestResult{
				StrategyID: "BTCUSDT_ma",
				Symbol:     "BTCUSDT",
				StartTime:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
				EndTime:    time.Date(2024, 3, 31, 23, 0, 0, 0, time.UTC),
			},
			expected: filepath.Join("results", "BTCUSDT_ma", "BTCUSDT", "20240101_20240331"),
		},
		{
			name:     "without times",
			result:   types.BacktestResult{StrategyID: "rsi", Symbol: "ETHUSDT"},
			expected: filepath.Join("results", "rsi", "ETHUSDT", "all_all"),
		},
		{
			name: "non utc times are normalised",
			result: types.BacktestResult{
				StrategyID: "chanlun",
				Symbol:     "AAPL",
				StartTime:  time.Date(2024, 1, 1, 23, 0, 0, 0, time.FixedZone("UTC-2", -2*3600)),
				EndTime:    time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
			},
			expected: filepath.Join("results", "chanlun", "AAPL", "20240102_20240102"),
		},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			suite.Equal(tc.expected, GetResultFolder("results", tc.result))
		})
	}
}
