// Package service exposes backtesting, strategy management and portfolio
// risk as request/response calls, the shape an HTTP layer would serve.
package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-quant/internal/backtest/engine"
	"github.com/rxtech-lab/argo-quant/internal/backtest/engine/engine_v1/datasource"
	"github.com/rxtech-lab/argo-quant/internal/logger"
	"github.com/rxtech-lab/argo-quant/internal/paper"
	"github.com/rxtech-lab/argo-quant/internal/registry"
	"github.com/rxtech-lab/argo-quant/internal/strategy"
	"github.com/rxtech-lab/argo-quant/internal/types"
	"github.com/rxtech-lab/argo-quant/pkg/errors"
	"go.uber.org/zap"
)

type ManageAction string

const (
	ManageActionEnableAll  ManageAction = "enable_all"
	ManageActionDisableAll ManageAction = "disable_all"
	ManageActionToggle     ManageAction = "toggle"
)

// dateLayouts are accepted for request dates, most specific first.
var dateLayouts = []string{time.RFC3339, "2006-01-02"}

type BacktestRequest struct {
	StrategyType string             `json:"strategy_type" validate:"required"`
	Symbol       string             `json:"symbol" validate:"required"`
	StartDate    string             `json:"start_date"`
	EndDate      string             `json:"end_date"`
	Parameters   map[string]float64 `json:"parameters"`
	// ModelPath loads a model for the ml strategy
	ModelPath string `json:"model_path,omitempty"`
}

type UpdateRequest struct {
	Symbols []string `json:"symbols" validate:"required,min=1"`
}

type UpdateResponse struct {
	Results []registry.SymbolUpdate `json:"results"`
}

type ManageRequest struct {
	Action      ManageAction `json:"action" validate:"required,oneof=enable_all disable_all toggle"`
	StrategyKey string       `json:"strategy_key" validate:"required_if=Action toggle"`
	// Enabled sets the flag on toggle; nil flips it.
	Enabled *bool `json:"enabled"`
}

type ManageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// PositionRiskView renders a position's risk with missing estimates as null.
type PositionRiskView struct {
	Symbol      string   `json:"symbol"`
	Quantity    float64  `json:"quantity"`
	MarketValue float64  `json:"market_value"`
	Weight      float64  `json:"weight"`
	Volatility  float64  `json:"volatility"`
	VaR95       float64  `json:"var_95"`
	Beta        *float64 `json:"beta"`
	Correlation *float64 `json:"correlation"`
}

// Service wires the engine, the registry and an optional paper session.
type Service struct {
	engine      engine.Engine
	loader      datasource.Loader
	registry    *registry.Registry
	store       registry.Store
	session     *paper.Session
	interval    types.Interval
	initialCash float64
	validate    *validator.Validate
	log         *logger.Logger
}

type Option func(*Service)

// WithStore persists the registry after every change.
func WithStore(store registry.Store) Option {
	return func(s *Service) {
		s.store = store
	}
}

// WithSession serves portfolio risk from a paper session.
func WithSession(session *paper.Session) Option {
	return func(s *Service) {
		s.session = session
	}
}

// WithInterval sets the bar interval of backtests. Defaults to 1h.
func WithInterval(interval types.Interval) Option {
	return func(s *Service) {
		s.interval = interval
	}
}

// WithInitialCash sets the starting cash of backtests. Zero uses the engine's configured capital.
func WithInitialCash(cash float64) Option {
	return func(s *Service) {
		s.initialCash = cash
	}
}

func WithLogger(log *logger.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

func New(e engine.Engine, loader datasource.Loader, reg *registry.Registry, opts ...Option) *Service {
	s := &Service{
		engine:   e,
		loader:   loader,
		registry: reg,
		interval: types.Interval1h,
		validate: validator.New(),
		log:      logger.NewNopLogger(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Restore replaces the registry content with what the store holds.
func (s *Service) Restore(ctx context.Context) error {
	if s.store == nil {
		return nil
	}

	entries, err := s.store.Load(ctx)
	if err != nil {
		return err
	}

	s.registry.Replace(entries)

	s.log.Info("Registry restored", zap.Int("strategies", len(entries)))

	return nil
}

// RunBacktest backtests one strategy on one symbol. Dates are inclusive; a
// bare end date covers that whole day.
func (s *Service) RunBacktest(ctx context.Context, req BacktestRequest) (types.BacktestResult, error) {
	if err := s.validate.Struct(req); err != nil {
		return types.BacktestResult{}, errors.Wrap(errors.ErrCodeInvalidParameters, "invalid backtest request", err)
	}

	strategyType, err := types.ParseStrategyType(req.StrategyType)
	if err != nil {
		return types.BacktestResult{}, err
	}

	start, err := parseDate(req.StartDate, false)
	if err != nil {
		return types.BacktestResult{}, err
	}

	end, err := parseDate(req.EndDate, true)
	if err != nil {
		return types.BacktestResult{}, err
	}

	strat, err := strategy.New(types.StrategyConfig{
		Symbol:       req.Symbol,
		StrategyType: strategyType,
		Parameters:   req.Parameters,
		ModelPath:    req.ModelPath,
	})
	if err != nil {
		return types.BacktestResult{}, err
	}

	series, err := s.loader.Load(ctx, req.Symbol, s.interval, start, end)
	if err != nil {
		return types.BacktestResult{}, err
	}

	return s.engine.Run(ctx, strat, series, s.initialCash)
}

// UpdateStrategies refreshes the registry for req.Symbols. On cancellation
// the partial results are returned with the error.
func (s *Service) UpdateStrategies(ctx context.Context, req UpdateRequest) (UpdateResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return UpdateResponse{}, errors.Wrap(errors.ErrCodeInvalidParameters, "invalid update request", err)
	}

	results, err := s.registry.Update(ctx, req.Symbols)
	if results == nil {
		return UpdateResponse{}, err
	}

	if saveErr := s.persist(ctx); saveErr != nil && err == nil {
		err = saveErr
	}

	return UpdateResponse{Results: results}, err
}

// ManageStrategies applies a bulk or single enable change. Failures are
// reported both in the response and as the error.
func (s *Service) ManageStrategies(ctx context.Context, req ManageRequest) (ManageResponse, error) {
	message, err := s.manage(req)
	if err == nil {
		err = s.persist(ctx)
	}

	if err != nil {
		return ManageResponse{Success: false, Message: err.Error()}, err
	}

	return ManageResponse{Success: true, Message: message}, nil
}

func (s *Service) manage(req ManageRequest) (string, error) {
	if err := s.validate.Struct(req); err != nil {
		return "", errors.Wrap(errors.ErrCodeInvalidParameters, "invalid manage request", err)
	}

	switch req.Action {
	case ManageActionEnableAll:
		return fmt.Sprintf("enabled %d strategies", s.registry.EnableAll()), nil
	case ManageActionDisableAll:
		return fmt.Sprintf("disabled %d strategies", s.registry.DisableAll()), nil
	case ManageActionToggle:
		if req.Enabled != nil {
			if err := s.registry.SetEnabled(req.StrategyKey, *req.Enabled); err != nil {
				return "", err
			}

			return fmt.Sprintf("%s %s", req.StrategyKey, enabledWord(*req.Enabled)), nil
		}

		enabled, err := s.registry.Toggle(req.StrategyKey)
		if err != nil {
			return "", err
		}

		return fmt.Sprintf("%s %s", req.StrategyKey, enabledWord(enabled)), nil
	default:
		return "", errors.Newf(errors.ErrCodeInvalidParameters, "unknown action %q", req.Action)
	}
}

// ListStrategies returns every registered strategy with its latest update result.
func (s *Service) ListStrategies() []registry.Entry {
	return s.registry.Entries()
}

// PortfolioRisk summarises the paper session.
func (s *Service) PortfolioRisk() (types.RiskMetrics, error) {
	if s.session == nil {
		return types.RiskMetrics{}, errors.New(errors.ErrCodeInvalidConfiguration, "no paper session configured")
	}

	return s.session.Risk(), nil
}

// Portfolio returns the paper session's value and positions.
func (s *Service) Portfolio() (paper.Portfolio, error) {
	if s.session == nil {
		return paper.Portfolio{}, errors.New(errors.ErrCodeInvalidConfiguration, "no paper session configured")
	}

	return s.session.Portfolio(), nil
}

// PositionRisks measures every open paper position.
func (s *Service) PositionRisks() ([]PositionRiskView, error) {
	if s.session == nil {
		return nil, errors.New(errors.ErrCodeInvalidConfiguration, "no paper session configured")
	}

	risks := s.session.PositionRisks()
	out := make([]PositionRiskView, len(risks))

	for i, r := range risks {
		out[i] = PositionRiskView{
			Symbol:      r.Symbol,
			Quantity:    r.Quantity,
			MarketValue: r.MarketValue,
			Weight:      r.Weight,
			Volatility:  r.Volatility,
			VaR95:       r.VaR95,
			Beta:        toPointer(r.Beta),
			Correlation: toPointer(r.Correlation),
		}
	}

	return out, nil
}

func (s *Service) persist(ctx context.Context) error {
	if s.store == nil {
		return nil
	}

	if err := s.store.Save(ctx, s.registry.Entries()); err != nil {
		s.log.Error("Failed to persist registry", zap.Error(err))

		return err
	}

	return nil
}

// parseDate parses an optional request date. A date without a time is
// midnight UTC, or the last instant of that day when endOfDay is set.
func parseDate(value string, endOfDay bool) (optional.Option[time.Time], error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return optional.None[time.Time](), nil
	}

	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, value)
		if err != nil {
			continue
		}

		if endOfDay && layout == "2006-01-02" {
			t = t.Add(24*time.Hour - time.Nanosecond)
		}

		return optional.Some(t), nil
	}

	return optional.None[time.Time](), errors.Newf(errors.ErrCodeInvalidParameters, "invalid date %q", value)
}

func enabledWord(enabled bool) string {
	if enabled {
		return "enabled"
	}

	return "disabled"
}

func toPointer(v optional.Option[float64]) *float64 {
	if v.IsNone() {
		return nil
	}

	value := v.Unwrap()

	return &value
}
