package rarity

import (
	"fmt"

	"github.com/sk3pz/anglerbot/internal/roll"
)

// Table draws a tier with probability proportional to its weight.
type Table struct {
	weights    map[Tier]int
	tiers      []Tier
	cumulative []int
	total      int
}

var DefaultFishWeights = map[Tier]int{
	Common:    5500,
	Uncommon:  2500,
	Rare:      1200,
	Epic:      550,
	Legendary: 200,
	Mythic:    50,
}

var DefaultShopWeights = map[Tier]int{
	Common:    50,
	Uncommon:  25,
	Rare:      13,
	Epic:      7,
	Legendary: 4,
	Mythic:    1,
}

func NewTable(weights map[Tier]int) (*Table, error) {
	t := &Table{weights: make(map[Tier]int, len(weights))}
	for _, tier := range All {
		w := weights[tier]
		if w < 0 {
			return nil, fmt.Errorf("negative weight for %s", tier)
		}
		if w == 0 {
			continue
		}
		t.weights[tier] = w
		t.total += w
		t.tiers = append(t.tiers, tier)
		t.cumulative = append(t.cumulative, t.total)
	}
	if t.total == 0 {
		return nil, fmt.Errorf("rarity table has no weight")
	}
	return t, nil
}

// MustTable is NewTable for package-level defaults.
func MustTable(weights map[Tier]int) *Table {
	t, err := NewTable(weights)
	if err != nil {
		panic(err)
	}
	return t
}

// Boosted doubles the weight of every tier above Common.
func (t *Table) Boosted() *Table {
	boosted := make(map[Tier]int, len(t.weights))
	for tier, w := range t.weights {
		if tier > Common {
			w *= 2
		}
		boosted[tier] = w
	}
	return MustTable(boosted)
}

func (t *Table) Pick(src roll.Source) Tier {
	r := src.Intn(t.total)

	lo, hi := 0, len(t.cumulative)-1
	for lo < hi {
		mid := (lo + hi) >> 1
		if r < t.cumulative[mid] {
			hi = mid
		} else {
			lo = mid + 1
		}
	}
	return t.tiers[lo]
}

// Chance returns the probability of drawing tier.
func (t *Table) Chance(tier Tier) float64 {
	return float64(t.weights[tier]) / float64(t.total)
}
