package main

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-quant/internal/backtest/engine"
	engine_v1 "github.com/rxtech-lab/argo-quant/internal/backtest/engine/engine_v1"
	"github.com/rxtech-lab/argo-quant/internal/paper"
	"github.com/rxtech-lab/argo-quant/internal/registry"
	"github.com/rxtech-lab/argo-quant/internal/report"
	"github.com/rxtech-lab/argo-quant/internal/service"
	"github.com/rxtech-lab/argo-quant/internal/strategy"
	"github.com/rxtech-lab/argo-quant/internal/types"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

// strategyView is how a registry entry is printed.
type strategyView struct {
	StrategyKey string                    `json:"strategy_key"`
	Enabled     bool                      `json:"enabled"`
	Parameters  map[string]float64        `json:"parameters"`
	LastResult  *registry.StrategySummary `json:"last_result"`
}

type paperView struct {
	Portfolio paper.Portfolio            `json:"portfolio"`
	Risk      types.RiskMetrics          `json:"risk"`
	Positions []service.PositionRiskView `json:"positions"`
	Trades    int                        `json:"trades"`
}

func backtestAction(ctx context.Context, cmd *cli.Command) error {
	a, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	params, err := parseParams(cmd.StringSlice("param"))
	if err != nil {
		return err
	}

	strategyType, err := types.ParseStrategyType(cmd.String("strategy"))
	if err != nil {
		return err
	}

	var bar *progressbar.ProgressBar

	onRunStart := engine.OnRunStartCallback(func(runID string, strategyID string, symbol string, total int) error {
		bar = progressbar.Default(int64(total))
		bar.Describe(fmt.Sprintf("Backtesting %s on %s", strategyID, symbol))

		return nil
	})
	onProcessData := engine.OnProcessDataCallback(func(current int, total int) error {
		return bar.Add(1)
	})
	onRunEnd := engine.OnRunEndCallback(func(runID string, status engine.RunStatus, result types.BacktestResult, err error) {
		if bar != nil {
			_ = bar.Finish()
		}
	})

	a.engine.SetCallbacks(engine.LifecycleCallbacks{
		OnRunStart:    &onRunStart,
		OnProcessData: &onProcessData,
		OnRunEnd:      &onRunEnd,
	})

	result, err := a.service.RunBacktest(ctx, service.BacktestRequest{
		StrategyType: string(strategyType),
		Symbol:       cmd.String("symbol"),
		StartDate:    formatTime(a.start),
		EndDate:      formatTime(a.end),
		Parameters:   params,
		ModelPath:    cmd.String("model"),
	})
	if err != nil {
		return err
	}

	resolved, err := strategy.DefaultParameters(strategyType)
	if err != nil {
		return err
	}

	maps.Copy(resolved, params)

	if err := a.writeReport(result, strategyType, resolved); err != nil {
		return err
	}

	return printJSON(summary(result))
}

func compareAction(ctx context.Context, cmd *cli.Command) error {
	a, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	symbol := cmd.String("symbol")

	series, err := a.loader.Load(ctx, symbol, a.cfg.Interval, a.start, a.end)
	if err != nil {
		return err
	}

	strategies := make([]strategy.Strategy, 0, len(strategy.KnownTypes()))

	for _, t := range strategy.KnownTypes() {
		strat, err := strategy.New(types.StrategyConfig{Symbol: symbol, StrategyType: t})
		if err != nil {
			return err
		}

		strategies = append(strategies, strat)
	}

	var bar *progressbar.ProgressBar

	onCompareStart := engine.OnCompareStartCallback(func(total int, symbol string) error {
		bar = progressbar.Default(int64(total))
		bar.Describe("Comparing strategies on " + symbol)

		return nil
	})
	onRunEnd := engine.OnRunEndCallback(func(runID string, status engine.RunStatus, result types.BacktestResult, err error) {
		if bar != nil {
			_ = bar.Add(1)
		}
	})

	a.engine.SetCallbacks(engine.LifecycleCallbacks{
		OnCompareStart: &onCompareStart,
		OnRunEnd:       &onRunEnd,
	})

	results, err := a.engine.Compare(ctx, strategies, series, a.cfg.InitialCash)
	if err != nil {
		return err
	}

	type comparisonView struct {
		StrategyID string               `json:"strategy_id"`
		Result     types.BacktestResult `json:"result"`
		Error      string               `json:"error,omitempty"`
	}

	views := make([]comparisonView, 0, len(results))

	for _, r := range results {
		view := comparisonView{StrategyID: r.StrategyID}

		if r.Err != nil {
			view.Error = r.Err.Error()
			views = append(views, view)

			continue
		}

		params, err := strategy.DefaultParameters(r.StrategyType)
		if err != nil {
			return err
		}

		if err := a.writeReport(r.Result, r.StrategyType, params); err != nil {
			return err
		}

		view.Result = summary(r.Result)
		views = append(views, view)
	}

	return printJSON(views)
}

func updateAction(ctx context.Context, cmd *cli.Command) error {
	a, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	symbols := cmd.StringSlice("symbol")
	if len(symbols) == 0 {
		symbols = a.cfg.Symbols
	}

	resp, err := a.service.UpdateStrategies(ctx, service.UpdateRequest{Symbols: symbols})
	if err != nil {
		return err
	}

	return printJSON(resp)
}

func strategiesAction(ctx context.Context, cmd *cli.Command) error {
	a, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	action := cmd.String("action")
	if action == "" {
		return printJSON(strategyViews(a.service.ListStrategies()))
	}

	req := service.ManageRequest{
		Action:      service.ManageAction(action),
		StrategyKey: cmd.String("key"),
	}

	if value := cmd.String("enabled"); value != "" {
		enabled, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid --enabled value %q: %w", value, err)
		}

		req.Enabled = &enabled
	}

	resp, err := a.service.ManageStrategies(ctx, req)
	if err != nil {
		return err
	}

	return printJSON(resp)
}

// paperAction replays the enabled strategies bar by bar through a paper
// session and prints the resulting portfolio and risk.
func paperAction(ctx context.Context, cmd *cli.Command) error {
	a, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	sessionOpts := []paper.Option{paper.WithLogger(a.log)}
	if a.cfg.Benchmark != "" {
		sessionOpts = append(sessionOpts, paper.WithBenchmark(a.cfg.Benchmark))
	}

	session, err := paper.NewSession(a.cfg.InitialCash, sessionOpts...)
	if err != nil {
		return err
	}

	feed, err := a.attachStrategies(ctx, session)
	if err != nil {
		return err
	}

	if err := replay(ctx, session, feed); err != nil {
		return err
	}

	svc := a.withService(service.WithSession(session))

	portfolio, err := svc.Portfolio()
	if err != nil {
		return err
	}

	metrics, err := svc.PortfolioRisk()
	if err != nil {
		return err
	}

	positions, err := svc.PositionRisks()
	if err != nil {
		return err
	}

	return printJSON(paperView{
		Portfolio: portfolio,
		Risk:      metrics,
		Positions: positions,
		Trades:    len(session.Trades()),
	})
}

// attachStrategies adds the first enabled strategy of every symbol to the
// session. Each strategy's warm-up bars become its history; the remaining
// bars, plus the benchmark's, are returned to be streamed.
func (a *app) attachStrategies(ctx context.Context, session *paper.Session) ([]types.MarketSeries, error) {
	var feed []types.MarketSeries

	attached := make(map[string]bool)

	for _, cfg := range a.registry.Enabled() {
		if attached[cfg.Symbol] {
			a.log.Warn("Symbol already has a paper strategy, skipping",
				zap.String("strategy", cfg.Key().String()),
			)

			continue
		}

		strat, err := strategy.New(cfg)
		if err != nil {
			return nil, err
		}

		series, err := a.loader.Load(ctx, cfg.Symbol, a.cfg.Interval, a.start, a.end)
		if err != nil {
			return nil, err
		}

		warmup := max(min(strat.RequiredBars()-1, series.Len()), 0)

		if err := session.AddStrategy(cfg.Symbol, strat, series.Head(warmup)); err != nil {
			return nil, err
		}

		attached[cfg.Symbol] = true
		feed = append(feed, tail(series, warmup))
	}

	if len(feed) == 0 {
		return nil, fmt.Errorf("no enabled strategies, enable some with the strategies command")
	}

	if benchmark := a.cfg.Benchmark; benchmark != "" && !attached[benchmark] {
		series, err := a.loader.Load(ctx, benchmark, a.cfg.Interval, a.start, a.end)
		if err != nil {
			return nil, err
		}

		feed = append(feed, series)
	}

	return feed, nil
}

// replay streams the bars of every series to the session in time order.
func replay(ctx context.Context, session *paper.Session, feed []types.MarketSeries) error {
	type event struct {
		symbol string
		bar    types.Bar
	}

	var events []event

	for _, series := range feed {
		for _, b := range series.Bars() {
			events = append(events, event{symbol: series.Symbol(), bar: b})
		}
	}

	slices.SortStableFunc(events, func(x, y event) int {
		return x.bar.Time.Compare(y.bar.Time)
	})

	bar := progressbar.Default(int64(len(events)))
	bar.Describe("Paper trading")

	for _, e := range events {
		if err := ctx.Err(); err != nil {
			return err
		}

		if _, err := session.OnBar(e.symbol, e.bar); err != nil {
			return err
		}

		_ = bar.Add(1)
	}

	return bar.Finish()
}

func schemaAction(ctx context.Context, cmd *cli.Command) error {
	name := cmd.String("strategy")
	if name == "" {
		schema, err := engine_v1.NewBacktestEngineV1(nil).GetConfigSchema()
		if err != nil {
			return err
		}

		fmt.Println(schema)

		return nil
	}

	strategyType, err := types.ParseStrategyType(name)
	if err != nil {
		return err
	}

	schema, err := strategy.ParameterSchema(strategyType)
	if err != nil {
		return err
	}

	fmt.Println(schema)

	return nil
}

func (a *app) writeReport(result types.BacktestResult, strategyType types.StrategyType, params map[string]float64) error {
	dir := engine_v1.GetResultFolder(a.cfg.ResultsDir, result)

	err := report.Write(dir, result, report.Metadata{
		StrategyType: strategyType,
		Parameters:   params,
		Interval:     a.cfg.Interval,
		EngineConfig: a.cfg.EngineConfig,
		GeneratedAt:  time.Now().UTC(),
	})
	if err != nil {
		return err
	}

	a.log.Info("Report written", zap.String("dir", dir), zap.String("strategy", result.StrategyID))

	return nil
}

// summary drops the per-bar data from result.
func summary(result types.BacktestResult) types.BacktestResult {
	result.Trades = nil
	result.EquityCurve = nil

	return result
}

func strategyViews(entries []registry.Entry) []strategyView {
	views := make([]strategyView, len(entries))

	for i, entry := range entries {
		views[i] = strategyView{
			StrategyKey: entry.Config.Key().String(),
			Enabled:     entry.Config.Enabled,
			Parameters:  entry.Config.Parameters,
			LastResult:  lastResult(entry.LastResult),
		}
	}

	return views
}

func lastResult(v optional.Option[registry.StrategySummary]) *registry.StrategySummary {
	if v.IsNone() {
		return nil
	}

	s := v.Unwrap()

	return &s
}

func tail(series types.MarketSeries, from int) types.MarketSeries {
	bars := series.Bars()[from:]
	out, _ := types.NewMarketSeries(series.Symbol(), series.Interval(), bars)

	return out
}
