package application

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	alerts "agrowatch/internal/alerts/domain"
)

// Direction says which side of the band a rule watches.
type Direction string

const (
	DirectionBand Direction = "band"
	DirectionHigh Direction = "high"
	DirectionLow  Direction = "low"
)

// Rule declares the alarm policy for sensor types whose name contains
// one of the match tokens. Matching is case-insensitive; rules are
// evaluated in order and the first match wins.
type Rule struct {
	Match     []string  `yaml:"match"`
	Direction Direction `yaml:"direction"`
	HighKind  string    `yaml:"high_kind"`
	LowKind   string    `yaml:"low_kind"`
}

// Config holds the evaluator's classification rules.
type Config struct {
	Rules []Rule `yaml:"rules"`
}

// DefaultConfig returns the built-in vocabulary. Tokens are the
// Russian sensor-type names the field devices report.
func DefaultConfig() Config {
	return Config{Rules: []Rule{
		{Match: []string{"давл"}, Direction: DirectionBand, HighKind: alerts.KindHighPressure, LowKind: alerts.KindLowPressure},
		{Match: []string{"температур почв"}, Direction: DirectionBand, HighKind: alerts.KindHighTempSoil, LowKind: alerts.KindLowTempSoil},
		{Match: []string{"кислот"}, Direction: DirectionBand, HighKind: alerts.KindHighAcid, LowKind: alerts.KindLowAcid},
		{Match: []string{"температур", "вибрац", "влажн", "солен", "углекисл"}, Direction: DirectionHigh, HighKind: alerts.KindHighValue},
		{Match: []string{"уровня"}, Direction: DirectionLow, LowKind: alerts.KindLowLevel},
	}}
}

// LoadConfig reads rules from a yaml file, falling back to the
// built-in vocabulary when path is empty.
func LoadConfig(path string) (Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}
	if len(cfg.Rules) == 0 {
		return DefaultConfig(), nil
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that every rule is complete enough to classify.
func (c Config) Validate() error {
	for i, rule := range c.Rules {
		if len(rule.Match) == 0 {
			return fmt.Errorf("evaluator: rule %d has no match tokens", i)
		}
		for _, token := range rule.Match {
			if token == "" {
				return fmt.Errorf("evaluator: rule %d has an empty match token", i)
			}
		}
		// A missing high_kind falls back to GENERAL at compile time;
		// low-side kinds have no generic fallback.
		switch rule.Direction {
		case DirectionBand:
			if rule.LowKind == "" {
				return fmt.Errorf("evaluator: band rule %d needs low_kind", i)
			}
		case DirectionHigh:
		case DirectionLow:
			if rule.LowKind == "" {
				return fmt.Errorf("evaluator: low rule %d needs low_kind", i)
			}
		default:
			return fmt.Errorf("evaluator: rule %d has unknown direction %q", i, rule.Direction)
		}
	}
	return nil
}
