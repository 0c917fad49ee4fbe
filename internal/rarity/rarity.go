package rarity

import (
	"encoding/json"
	"fmt"
	"strings"
)

type Tier int

const (
	Common Tier = iota
	Uncommon
	Rare
	Epic
	Legendary
	Mythic
)

var All = []Tier{Common, Uncommon, Rare, Epic, Legendary, Mythic}

func (t Tier) String() string {
	switch t {
	case Mythic:
		return "Mythic"
	case Legendary:
		return "Legendary"
	case Epic:
		return "Epic"
	case Rare:
		return "Rare"
	case Uncommon:
		return "Uncommon"
	default:
		return "Common"
	}
}

func (t Tier) Valid() bool { return t >= Common && t <= Mythic }

// Notable tiers are called out in logs and notifications.
func (t Tier) Notable() bool { return t >= Legendary }

// ValueFactor scales a fish's weight into coins. Strictly increasing.
func (t Tier) ValueFactor() float64 {
	switch t {
	case Mythic:
		return 12
	case Legendary:
		return 7
	case Epic:
		return 4
	case Rare:
		return 2.5
	case Uncommon:
		return 1.5
	default:
		return 1
	}
}

func Parse(s string) (Tier, error) {
	for _, t := range All {
		if strings.EqualFold(strings.TrimSpace(s), t.String()) {
			return t, nil
		}
	}
	return Common, fmt.Errorf("unknown rarity %q", s)
}

func (t Tier) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *Tier) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

func ColorForTier(t Tier) int {
	switch t {
	case Mythic:
		return 0xE74C3C // red
	case Legendary:
		return 0xF1C40F // gold
	case Epic:
		return 0x9B59B6 // purple
	case Rare:
		return 0x3498DB // blue
	case Uncommon:
		return 0x2ECC71 // green
	default:
		return 0x95A5A6 // gray
	}
}
