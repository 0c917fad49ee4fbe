package angler

import (
	"github.com/sk3pz/anglerbot/internal/fish"
	"github.com/sk3pz/anglerbot/internal/ledger"
)

type OutcomeKind int

const (
	Caught OutcomeKind = iota
	Escaped
	LineBreak
	Stolen
)

func (k OutcomeKind) String() string {
	switch k {
	case Escaped:
		return "escaped"
	case LineBreak:
		return "line_break"
	case Stolen:
		return "stolen"
	default:
		return "caught"
	}
}

type Outcome struct {
	Kind       OutcomeKind
	Key        ledger.Key
	ChannelID  string
	Rod        string
	Fish       fish.Fish
	Value      uint
	NewSpecies bool
	Forced     bool
	// Ledger is the player's ledger after the outcome was applied.
	Ledger ledger.Ledger
}

// Resolve applies a cast to a ledger. Checks run in order: line break,
// escape, theft, catch. override skips the first three and leaves the
// casting flag alone, since a forced catch is not the player's cast.
func Resolve(l ledger.Ledger, c Cast, f fish.Fish, value uint, override bool) (ledger.Ledger, Outcome) {
	next := l.Clone()
	out := Outcome{
		Key:       c.Key(),
		ChannelID: c.ChannelID,
		Rod:       c.Rod,
		Fish:      f,
		Forced:    override,
	}
	if !override {
		next.Casting = false
	}

	switch {
	case !override && f.Weight > c.WeightLimit:
		out.Kind = LineBreak
	case !override && !c.CatchRoll:
		out.Kind = Escaped
	case !override && c.StolenRoll:
		out.Kind = Stolen
	default:
		out.Kind = Caught
		out.Value = max(1, value)
		out.NewSpecies = next.MarkSeen(f.Species.Key)
		next.Money += out.Value
		next.FishCaught++
	}

	out.Ledger = next
	return next, out
}
