package fish

import (
	"fmt"
	"math"

	"github.com/sk3pz/anglerbot/internal/rarity"
)

// Fish is a single sampled (or spawned) catch.
type Fish struct {
	Species Species
	Rarity  rarity.Tier
	Weight  float64
}

func (f Fish) String() string {
	return fmt.Sprintf("%s %s", f.Rarity, f.Species.Name)
}

// WeightDeviation is how far this fish is from its species average.
func (f Fish) WeightDeviation() float64 {
	return f.Weight - f.Species.AvgWeight
}

// Value is the coin value of the fish, never less than 1.
func (f Fish) Value(multiplier float64) uint {
	if multiplier <= 0 || math.IsNaN(multiplier) {
		return 1
	}
	v := math.Round(f.Weight * f.Rarity.ValueFactor() * multiplier)
	if v < 1 || math.IsNaN(v) {
		return 1
	}
	if v > math.MaxUint32 {
		return math.MaxUint32
	}
	return uint(v)
}
