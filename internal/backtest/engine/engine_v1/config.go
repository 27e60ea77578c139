package engine

import (
	"encoding/json"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-quant/internal/backtest/engine/engine_v1/commission_fee"
	"github.com/rxtech-lab/argo-quant/pkg/errors"
	"gopkg.in/yaml.v3"
)

// FillPolicy decides which price a signal on bar i is filled at.
type FillPolicy string

const (
	// FillPolicyClose fills at the close of the signalling bar
	FillPolicyClose FillPolicy = "close"
	// FillPolicyNextOpen fills at the open of the following bar. A signal on
	// the last bar is dropped.
	FillPolicyNextOpen FillPolicy = "next_open"
)

var AllFillPolicies = []any{
	FillPolicyClose,
	FillPolicyNextOpen,
}

type BacktestEngineV1Config struct {
	InitialCapital   float64                    `yaml:"initial_capital" json:"initial_capital" jsonschema:"title=Initial Capital,description=Starting capital for the backtest in quote currency,minimum=0" validate:"gte=0"`
	Broker           commission_fee.Broker      `yaml:"broker" json:"broker" jsonschema:"title=Broker,description=The broker to use for commission calculations" validate:"omitempty,oneof=interactive_broker zero_commission percentage"`
	CommissionRate   float64                    `yaml:"commission_rate" json:"commission_rate" jsonschema:"title=Commission Rate,description=Fee charged on notional by the percentage broker,minimum=0" validate:"gte=0,lt=1"`
	FillPolicy       FillPolicy                 `yaml:"fill_policy" json:"fill_policy" jsonschema:"title=Fill Policy,description=Price used to fill a signal" validate:"omitempty,oneof=close next_open"`
	DecimalPrecision int                        `yaml:"decimal_precision" json:"decimal_precision" jsonschema:"title=Decimal Precision,description=Number of decimal places order quantities are rounded down to,minimum=0,maximum=12" validate:"gte=0,lte=12"`
	AllowShort       bool                       `yaml:"allow_short" json:"allow_short" jsonschema:"title=Allow Short,description=Let a SELL signal open a short position when flat"`
	CloseAtEnd       *bool                      `yaml:"close_at_end" json:"close_at_end" jsonschema:"title=Close At End,description=Flatten open positions at the last close of the run"`
	RiskFreeRate     float64                    `yaml:"risk_free_rate" json:"risk_free_rate" jsonschema:"title=Risk Free Rate,description=Annual risk free rate used by the sharpe ratio,minimum=0" validate:"gte=0,lt=1"`
	Workers          int                        `yaml:"workers" json:"workers" jsonschema:"title=Workers,description=Maximum concurrent runs in a comparison; 0 uses GOMAXPROCS,minimum=0" validate:"gte=0"`
	StartTime        optional.Option[time.Time] `yaml:"start_time" json:"start_time" jsonschema:"title=Start Time,description=Optional start time for the backtest period" validate:"-"`
	EndTime          optional.Option[time.Time] `yaml:"end_time" json:"end_time" jsonschema:"title=End Time,description=Optional end time for the backtest period" validate:"-"`
}

// UnmarshalYAML implements custom unmarshaling for BacktestEngineV1Config.
// Missing keys keep the values from DefaultConfig.
func (c *BacktestEngineV1Config) UnmarshalYAML(value *yaml.Node) error {
	type Config struct {
		InitialCapital   *float64              `yaml:"initial_capital"`
		Broker           commission_fee.Broker `yaml:"broker"`
		CommissionRate   float64               `yaml:"commission_rate"`
		FillPolicy       FillPolicy            `yaml:"fill_policy"`
		DecimalPrecision *int                  `yaml:"decimal_precision"`
		AllowShort       bool                  `yaml:"allow_short"`
		CloseAtEnd       *bool                 `yaml:"close_at_end"`
		RiskFreeRate     *float64              `yaml:"risk_free_rate"`
		Workers          int                   `yaml:"workers"`
		StartTime        *time.Time            `yaml:"start_time"`
		EndTime          *time.Time            `yaml:"end_time"`
	}

	var config Config
	if err := value.Decode(&config); err != nil {
		return err
	}

	*c = DefaultConfig()

	if config.InitialCapital != nil {
		c.InitialCapital = *config.InitialCapital
	}

	if config.Broker != "" {
		c.Broker = config.Broker
	}

	if config.FillPolicy != "" {
		c.FillPolicy = config.FillPolicy
	}

	if config.DecimalPrecision != nil {
		c.DecimalPrecision = *config.DecimalPrecision
	}

	if config.CloseAtEnd != nil {
		c.CloseAtEnd = config.CloseAtEnd
	}

	if config.RiskFreeRate != nil {
		c.RiskFreeRate = *config.RiskFreeRate
	}

	c.CommissionRate = config.CommissionRate
	c.AllowShort = config.AllowShort
	c.Workers = config.Workers

	if config.StartTime != nil {
		c.StartTime = optional.Some(*config.StartTime)
	}

	if config.EndTime != nil {
		c.EndTime = optional.Some(*config.EndTime)
	}

	return nil
}

// Validate checks field ranges and that the time range is not inverted.
func (c BacktestEngineV1Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeBacktestConfigError, "invalid backtest config", err)
	}

	if c.StartTime.IsSome() && c.EndTime.IsSome() && c.EndTime.Unwrap().Before(c.StartTime.Unwrap()) {
		return errors.New(errors.ErrCodeBacktestConfigError, "end_time is before start_time")
	}

	return nil
}

// ShouldCloseAtEnd defaults to true when close_at_end is unset.
func (c BacktestEngineV1Config) ShouldCloseAtEnd() bool {
	return c.CloseAtEnd == nil || *c.CloseAtEnd
}

// GenerateSchema generates a JSON schema for the BacktestEngineV1Config
func (c *BacktestEngineV1Config) GenerateSchema() (*jsonschema.Schema, error) {
	reflector := jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		ExpandedStruct:             true,
		AllowAdditionalProperties:  false,
		Mapper: func(t reflect.Type) *jsonschema.Schema {
			if t.String() == "optional.Option[time.Time]" {
				return &jsonschema.Schema{
					Type:   "string",
					Format: "date-time",
				}
			}

			if strings.Contains(t.String(), "commission_fee.Broker") {
				return &jsonschema.Schema{
					Type: "string",
					Enum: commission_fee.AllBrokers,
				}
			}

			if t == reflect.TypeOf(FillPolicy("")) {
				return &jsonschema.Schema{
					Type: "string",
					Enum: AllFillPolicies,
				}
			}

			return nil
		},
	}

	// Generate schema from BacktestEngineV1Config struct
	schema := reflector.Reflect(c)

	// Set schema metadata
	schema.Title = "backtest-engine-v1-config"
	schema.Description = "Configuration schema for BacktestEngineV1"
	schema.Version = "http://json-schema.org/draft-07/schema#"

	return schema, nil
}

// GenerateSchemaJSON generates a JSON schema string for the BacktestEngineV1Config
func (c *BacktestEngineV1Config) GenerateSchemaJSON() (string, error) {
	schema, err := c.GenerateSchema()
	if err != nil {
		return "", err
	}

	schemaBytes, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return "", err
	}

	return string(schemaBytes), nil
}

// DefaultConfig fills at close with no fees and flattens at the end of the run.
func DefaultConfig() BacktestEngineV1Config {
	return BacktestEngineV1Config{
		InitialCapital:   10000,
		Broker:           commission_fee.BrokerZero,
		FillPolicy:       FillPolicyClose,
		DecimalPrecision: 4,
		RiskFreeRate:     0.02,
		StartTime:        optional.None[time.Time](),
		EndTime:          optional.None[time.Time](),
	}
}

func TestConfig(startTime time.Time, endTime time.Time, broker commission_fee.Broker) BacktestEngineV1Config {
	config := DefaultConfig()
	config.Broker = broker
	config.StartTime = optional.Some(startTime)
	config.EndTime = optional.Some(endTime)

	return config
}
