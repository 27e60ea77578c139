package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-quant/internal/backtest/engine"
	engine_v1 "github.com/rxtech-lab/argo-quant/internal/backtest/engine/engine_v1"
	"github.com/rxtech-lab/argo-quant/internal/backtest/engine/engine_v1/datasource"
	"github.com/rxtech-lab/argo-quant/internal/config"
	"github.com/rxtech-lab/argo-quant/internal/logger"
	"github.com/rxtech-lab/argo-quant/internal/registry"
	"github.com/rxtech-lab/argo-quant/internal/service"
	"github.com/rxtech-lab/argo-quant/pkg/errors"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

// app holds everything a command needs, built from the config file and flags.
type app struct {
	cfg         config.Config
	log         *logger.Logger
	loader      datasource.Loader
	engine      engine.Engine
	registry    *registry.Registry
	service     *service.Service
	serviceOpts []service.Option
	start       optional.Option[time.Time]
	end         optional.Option[time.Time]
	closers     []func() error
}

func newApp(ctx context.Context, cmd *cli.Command) (*app, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, err
	}

	log, err := logger.NewLoggerWithLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	a := &app{
		cfg:   cfg,
		log:   log,
		start: timeFlag(cmd, "start"),
		end:   timeFlag(cmd, "end"),
	}

	if err := a.init(ctx); err != nil {
		a.Close()

		return nil, err
	}

	return a, nil
}

func (a *app) init(ctx context.Context) error {
	duck, err := datasource.NewDuckDBLoader(":memory:", a.log)
	if err != nil {
		return err
	}

	a.closers = append(a.closers, duck.Close)

	if err := duck.Initialize(a.cfg.DataPath); err != nil {
		return err
	}

	a.loader = duck
	if a.cfg.CacheSize > 0 {
		a.loader = datasource.NewCachedLoader(duck, a.cfg.CacheSize)
	}

	a.engine = engine_v1.NewBacktestEngineV1(a.log)

	if a.cfg.EngineConfig != "" {
		data, err := os.ReadFile(a.cfg.EngineConfig)
		if err != nil {
			return errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "failed to read engine config %s", a.cfg.EngineConfig)
		}

		if err := a.engine.Initialize(string(data)); err != nil {
			return err
		}
	}

	a.registry = registry.New(
		registry.WithEngine(a.engine),
		registry.WithLoader(a.loader),
		registry.WithInterval(a.cfg.Interval),
		registry.WithRange(a.start, a.end),
		registry.WithInitialCash(a.cfg.InitialCash),
		registry.WithWorkers(a.cfg.Workers),
		registry.WithLogger(a.log),
	)

	opts := []service.Option{
		service.WithInterval(a.cfg.Interval),
		service.WithInitialCash(a.cfg.InitialCash),
		service.WithLogger(a.log),
	}

	if a.cfg.RegistryDB != "" {
		store, err := registry.NewSQLiteStore(a.cfg.RegistryDB)
		if err != nil {
			return err
		}

		a.closers = append(a.closers, store.Close)
		opts = append(opts, service.WithStore(store))
	}

	a.serviceOpts = opts
	a.service = service.New(a.engine, a.loader, a.registry, opts...)

	return a.service.Restore(ctx)
}

// withService builds a service sharing the app's registry and store, with extra options.
func (a *app) withService(extra ...service.Option) *service.Service {
	opts := append(append([]service.Option(nil), a.serviceOpts...), extra...)

	return service.New(a.engine, a.loader, a.registry, opts...)
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Warn("Failed to close resource", zap.Error(err))
		}
	}

	_ = a.log.Sync()
}

func timeFlag(cmd *cli.Command, name string) optional.Option[time.Time] {
	t := cmd.Timestamp(name)
	if t.IsZero() {
		return optional.None[time.Time]()
	}

	return optional.Some(t)
}

func formatTime(t optional.Option[time.Time]) string {
	if t.IsNone() {
		return ""
	}

	return t.Unwrap().Format(time.RFC3339)
}

// parseParams turns NAME=VALUE pairs into a parameter map.
func parseParams(pairs []string) (map[string]float64, error) {
	if len(pairs) == 0 {
		return nil, nil
	}

	params := make(map[string]float64, len(pairs))

	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)

		if !ok || name == "" {
			return nil, errors.Newf(errors.ErrCodeInvalidParameters, "parameter %q is not NAME=VALUE", pair)
		}

		v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return nil, errors.Wrapf(errors.ErrCodeInvalidParameters, err, "parameter %s is not a number", name)
		}

		params[name] = v
	}

	return params, nil
}

func printJSON(v any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")

	return encoder.Encode(v)
}
