package ledger

import (
	"fmt"
	"slices"
)

// Key identifies a player: ledgers are per guild.
type Key struct {
	Guild string
	User  string
}

func (k Key) String() string { return fmt.Sprintf("%s/%s", k.Guild, k.User) }

// Ledger is a player's persistent record. It is stored as this JSON shape.
type Ledger struct {
	FishCaught    uint     `json:"fishCaught"`
	Money         uint     `json:"money"`
	RodID         string   `json:"rodId"`
	RodModifierID *string  `json:"rodModifierId"`
	Casting       bool     `json:"casting"`
	SeenSpecies   []string `json:"seenSpecies"`
}

func Default(starterRod string) Ledger {
	return Ledger{
		RodID:       starterRod,
		SeenSpecies: []string{},
	}
}

func (l Ledger) HasSeen(species string) bool {
	return slices.Contains(l.SeenSpecies, species)
}

// MarkSeen records species and reports whether it was new.
func (l *Ledger) MarkSeen(species string) bool {
	if l.HasSeen(species) {
		return false
	}
	l.SeenSpecies = append(l.SeenSpecies, species)
	return true
}

func (l Ledger) Clone() Ledger {
	out := l
	out.SeenSpecies = slices.Clone(l.SeenSpecies)
	if out.SeenSpecies == nil {
		out.SeenSpecies = []string{}
	}
	if l.RodModifierID != nil {
		m := *l.RodModifierID
		out.RodModifierID = &m
	}
	return out
}
