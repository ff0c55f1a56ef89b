package subledger

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// fileConfig is the on-disk shape of a run configuration. Tolerances are
// plain numbers in the file and converted to decimals on load.
type fileConfig struct {
	Accounts   Chart          `yaml:"accounts" json:"accounts"`
	Tolerances fileTolerances `yaml:"tolerances" json:"tolerances"`
	Convention string         `yaml:"convention" json:"convention"`
}

type fileTolerances struct {
	Position    *float64 `yaml:"position" json:"position"`
	Allocation  *float64 `yaml:"allocation" json:"allocation"`
	Revaluation *float64 `yaml:"revaluation" json:"revaluation"`
	Ledger      *float64 `yaml:"ledger" json:"ledger"`
}

// LoadConfig loads a run configuration from a file (YAML, with JSON
// fallback). Missing fields keep their defaults, so a minimal file can
// override just one tolerance or account code.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		if jsonErr := json.Unmarshal(data, &fc); jsonErr != nil {
			return cfg, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	applyAccount := func(dst *AccountCode, src AccountCode) {
		if src != 0 {
			*dst = src
		}
	}
	applyAccount(&cfg.Chart.Cash, fc.Accounts.Cash)
	applyAccount(&cfg.Chart.Securities, fc.Accounts.Securities)
	applyAccount(&cfg.Chart.RealisedPnL, fc.Accounts.RealisedPnL)
	applyAccount(&cfg.Chart.UnrealisedPnL, fc.Accounts.UnrealisedPnL)
	applyAccount(&cfg.Chart.RevalReserve, fc.Accounts.RevalReserve)

	applyTolerance := func(dst *decimal.Decimal, src *float64) {
		if src != nil {
			*dst = decimal.NewFromFloat(*src)
		}
	}
	applyTolerance(&cfg.Tolerances.Position, fc.Tolerances.Position)
	applyTolerance(&cfg.Tolerances.Allocation, fc.Tolerances.Allocation)
	applyTolerance(&cfg.Tolerances.Revaluation, fc.Tolerances.Revaluation)
	applyTolerance(&cfg.Tolerances.Ledger, fc.Tolerances.Ledger)

	if fc.Convention != "" {
		convention, err := ParseSignConvention(fc.Convention)
		if err != nil {
			return cfg, &ConfigurationError{Reason: err.Error()}
		}
		cfg.Convention = convention
	}

	if err := cfg.Chart.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
