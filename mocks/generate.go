package mocks

//go:generate mockgen -destination=./mock_strategy.go -package=mocks github.com/rxtech-lab/argo-quant/internal/strategy Strategy
//go:generate mockgen -destination=./mock_predictor.go -package=mocks github.com/rxtech-lab/argo-quant/internal/strategy/ml Predictor
//go:generate mockgen -destination=./mock_indicator.go -package=mocks github.com/rxtech-lab/argo-quant/internal/indicator Indicator
//go:generate mockgen -destination=./mock_datasource.go -package=mocks github.com/rxtech-lab/argo-quant/internal/backtest/engine/engine_v1/datasource Loader
//go:generate mockgen -destination=./mock_engine.go -package=mocks github.com/rxtech-lab/argo-quant/internal/backtest/engine Engine
