// Package tuning holds the live-tunable game multipliers. They are read from
// disk on every use so edits apply without a restart.
package tuning

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
)

type Multipliers struct {
	Value           float64 `json:"value"`
	CastTimeDivisor float64 `json:"castTimeDivisor"`
	CatchChance     int     `json:"catchChance"` // per-mille, added to the rod's
	RarityBoost     bool    `json:"rarityBoost"`
	ShopDiscount    float64 `json:"shopDiscount"`
}

// Defaults leave every rule as the catalogs describe it.
func Defaults() Multipliers {
	return Multipliers{Value: 1, CastTimeDivisor: 1}
}

func (m Multipliers) Validate() error {
	if m.Value < 0 || math.IsNaN(m.Value) {
		return fmt.Errorf("value multiplier must not be negative")
	}
	if m.CastTimeDivisor <= 0 || math.IsNaN(m.CastTimeDivisor) {
		return fmt.Errorf("cast time divisor must be positive")
	}
	if m.ShopDiscount < 0 || m.ShopDiscount > 1 || math.IsNaN(m.ShopDiscount) {
		return fmt.Errorf("shop discount must be between 0 and 1")
	}
	return nil
}

// ConfigError reports missing or unusable tuning. It fails the request that
// hit it, not the process.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("multipliers %s: %v", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

type Source interface {
	Load() (Multipliers, error)
}

// File reads multipliers from a JSON file each time Load is called.
type File struct {
	Path string
}

func (f File) Load() (Multipliers, error) {
	raw, err := os.ReadFile(f.Path)
	if err != nil {
		return Multipliers{}, &ConfigError{Path: f.Path, Err: err}
	}

	m := Defaults()
	if err := json.Unmarshal(raw, &m); err != nil {
		return Multipliers{}, &ConfigError{Path: f.Path, Err: err}
	}
	if err := m.Validate(); err != nil {
		return Multipliers{}, &ConfigError{Path: f.Path, Err: err}
	}
	return m, nil
}

// Static always returns the same multipliers.
type Static Multipliers

func (s Static) Load() (Multipliers, error) {
	return Multipliers(s), nil
}
