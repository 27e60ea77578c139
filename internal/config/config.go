// Package config loads the application configuration: a YAML file, then
// ARGO_QUANT_* environment variables, with a .env file read first if present.
package config

import (
	"bytes"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/rxtech-lab/argo-quant/internal/types"
	"github.com/rxtech-lab/argo-quant/pkg/errors"
	"gopkg.in/yaml.v3"
)

const envPrefix = "ARGO_QUANT_"

// Config is the application configuration.
type Config struct {
	// LogLevel is one of debug, info, warn, error
	LogLevel string `yaml:"log_level" validate:"oneof=debug info warn error"`
	// DataPath is the parquet or CSV file (or glob) market data is read from
	DataPath string `yaml:"data_path"`
	// RegistryDB is the SQLite file of the strategy registry. Empty keeps the registry in memory.
	RegistryDB string `yaml:"registry_db"`
	// ResultsDir receives backtest reports
	ResultsDir string `yaml:"results_dir" validate:"required"`
	// EngineConfig is the path of the engine YAML config. Empty uses the engine defaults.
	EngineConfig string         `yaml:"engine_config"`
	Interval     types.Interval `yaml:"interval" validate:"required"`
	Symbols      []string       `yaml:"symbols"`
	// Benchmark is the symbol beta is measured against
	Benchmark   string  `yaml:"benchmark"`
	InitialCash float64 `yaml:"initial_cash" validate:"gt=0"`
	Workers     int     `yaml:"workers" validate:"gte=0"`
	// CacheSize is the number of series the loader keeps in memory
	CacheSize int `yaml:"cache_size" validate:"gte=0"`
}

func Default() Config {
	return Config{
		LogLevel:    "info",
		DataPath:    "data/*.parquet",
		ResultsDir:  "results",
		Interval:    types.Interval1h,
		Symbols:     []string{"BTCUSDT", "ETHUSDT"},
		InitialCash: 10000,
		CacheSize:   32,
	}
}

// Load reads path on top of Default and applies environment overrides. An
// empty path skips the file. Unknown YAML keys are rejected.
func Load(path string) (Config, error) {
	// a missing .env is fine
	_ = godotenv.Load()

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "failed to read config %s", path)
		}

		decoder := yaml.NewDecoder(bytes.NewReader(data))
		decoder.KnownFields(true)

		if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return Config{}, errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "failed to parse config %s", path)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks field constraints and the interval name.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid configuration", err)
	}

	if _, err := types.ParseInterval(string(c.Interval)); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid configuration", err)
	}

	return nil
}

func applyEnv(cfg *Config) error {
	strs := map[string]*string{
		"LOG_LEVEL":     &cfg.LogLevel,
		"DATA_PATH":     &cfg.DataPath,
		"REGISTRY_DB":   &cfg.RegistryDB,
		"RESULTS_DIR":   &cfg.ResultsDir,
		"ENGINE_CONFIG": &cfg.EngineConfig,
		"BENCHMARK":     &cfg.Benchmark,
	}

	for name, field := range strs {
		if value, ok := os.LookupEnv(envPrefix + name); ok {
			*field = value
		}
	}

	if value, ok := os.LookupEnv(envPrefix + "INTERVAL"); ok {
		cfg.Interval = types.Interval(value)
	}

	if value, ok := os.LookupEnv(envPrefix + "SYMBOLS"); ok {
		cfg.Symbols = splitList(value)
	}

	if value, ok := os.LookupEnv(envPrefix + "INITIAL_CASH"); ok {
		cash, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "invalid %sINITIAL_CASH", envPrefix)
		}

		cfg.InitialCash = cash
	}

	ints := map[string]*int{
		"WORKERS":    &cfg.Workers,
		"CACHE_SIZE": &cfg.CacheSize,
	}

	for name, field := range ints {
		value, ok := os.LookupEnv(envPrefix + name)
		if !ok {
			continue
		}

		n, err := strconv.Atoi(value)
		if err != nil {
			return errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "invalid %s%s", envPrefix, name)
		}

		*field = n
	}

	return nil
}

// splitList splits a comma separated list, dropping blanks.
func splitList(s string) []string {
	var out []string

	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}

	return out
}
