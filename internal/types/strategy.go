package types

import (
	"maps"
	"strings"

	"github.com/rxtech-lab/argo-quant/pkg/errors"
)

type StrategyType string

const (
	StrategyTypeMA      StrategyType = "ma"
	StrategyTypeRSI     StrategyType = "rsi"
	StrategyTypeML      StrategyType = "ml"
	StrategyTypeChanlun StrategyType = "chanlun"
)

// AllStrategyTypes lists the built-in strategy types in a stable order.
var AllStrategyTypes = []StrategyType{
	StrategyTypeMA,
	StrategyTypeRSI,
	StrategyTypeML,
	StrategyTypeChanlun,
}

// ParseStrategyType returns ErrCodeUnknownStrategy for names outside AllStrategyTypes.
func ParseStrategyType(s string) (StrategyType, error) {
	t := StrategyType(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AllStrategyTypes {
		if t == known {
			return t, nil
		}
	}

	return "", errors.Newf(errors.ErrCodeUnknownStrategy, "unknown strategy type %q", s)
}

// StrategyKey identifies one configured strategy. Its string form is SYMBOL_type.
type StrategyKey struct {
	Symbol string
	Type   StrategyType
}

func (k StrategyKey) String() string {
	return k.Symbol + "_" + string(k.Type)
}

// ParseStrategyKey splits at the last underscore so symbols may contain underscores.
func ParseStrategyKey(s string) (StrategyKey, error) {
	idx := strings.LastIndex(s, "_")
	if idx <= 0 || idx == len(s)-1 {
		return StrategyKey{}, errors.Newf(errors.ErrCodeUnknownStrategy, "malformed strategy key %q", s)
	}

	t, err := ParseStrategyType(s[idx+1:])
	if err != nil {
		return StrategyKey{}, errors.Wrapf(errors.ErrCodeUnknownStrategy, err, "malformed strategy key %q", s)
	}

	return StrategyKey{Symbol: s[:idx], Type: t}, nil
}

// StrategyConfig is the persisted description of a strategy for one symbol.
type StrategyConfig struct {
	Symbol       string             `json:"symbol" yaml:"symbol"`
	StrategyType StrategyType       `json:"strategy_type" yaml:"strategy_type"`
	Enabled      bool               `json:"enabled" yaml:"enabled"`
	Parameters   map[string]float64 `json:"parameters" yaml:"parameters"`
	// ModelType selects the predictor for ML strategies ("logistic" or "onnx").
	ModelType string `json:"model_type,omitempty" yaml:"model_type,omitempty"`
	ModelPath string `json:"model_path,omitempty" yaml:"model_path,omitempty"`
}

func (c StrategyConfig) Key() StrategyKey {
	return StrategyKey{Symbol: c.Symbol, Type: c.StrategyType}
}

// Clone returns a deep copy so callers can't mutate a registry's parameters map.
func (c StrategyConfig) Clone() StrategyConfig {
	out := c
	if c.Parameters != nil {
		out.Parameters = maps.Clone(c.Parameters)
	}

	return out
}
