package rod

import (
	"fmt"
	"math"

	"github.com/sk3pz/anglerbot/internal/rarity"
	"github.com/sk3pz/anglerbot/internal/roll"
)

// Stats are additive: a rod's stats are the sum of its parts.
type Stats struct {
	Cost        uint    `json:"cost"`
	CatchChance int     `json:"catchChance"` // per-mille
	CatchRate   float64 `json:"catchRate"`   // seconds until a bite, on average
	Depth       int     `json:"depth"`
	WeightLimit float64 `json:"weightLimit"`
}

func (s Stats) Add(o Stats) Stats {
	return Stats{
		Cost:        s.Cost + o.Cost,
		CatchChance: s.CatchChance + o.CatchChance,
		CatchRate:   s.CatchRate + o.CatchRate,
		Depth:       s.Depth + o.Depth,
		WeightLimit: s.WeightLimit + o.WeightLimit,
	}
}

// Component is a rod type or a rod material.
type Component struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Rarity      rarity.Tier `json:"rarity"`
	// ReservedFor names the only type a material may be combined with.
	ReservedFor string `json:"reservedFor,omitempty"`
	Stats
}

type Modifier struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Stats
}

type Rod struct {
	ID          string
	Type        string
	Material    string
	Modifier    string
	Description string
	Rarity      rarity.Tier
	Stats
}

func (r Rod) String() string {
	if r.Modifier != "" {
		return r.Modifier + " " + r.ID
	}
	return r.ID
}

func (r Rod) MaxDepth() int { return r.Depth }

// CatchPercent is the catch chance as a whole percentage.
func (r Rod) CatchPercent() int { return r.CatchChance / 10 }

// RandomCatchTime returns the seconds until a bite: the rod's catch rate
// jittered by +/-20%.
func (r Rod) RandomCatchTime(src roll.Source) float64 {
	return math.Max(0, r.CatchRate*roll.Range(src, 0.8, 1.2))
}

func rodID(typeName, materialName string) string {
	return fmt.Sprintf("%s %s", materialName, typeName)
}
