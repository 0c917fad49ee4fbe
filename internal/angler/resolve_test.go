package angler

import (
	"testing"

	"github.com/sk3pz/anglerbot/internal/fish"
	"github.com/sk3pz/anglerbot/internal/ledger"
	"github.com/sk3pz/anglerbot/internal/rarity"
	"github.com/stretchr/testify/assert"
)

var carp = fish.Species{Key: "carp", Name: "Carp", MinWeight: 1, MaxWeight: 40, AvgWeight: 8, Depth: 5, Rarity: rarity.Common}

func starterCast(weight float64, catchRoll, stolen bool) Cast {
	return Cast{
		Guild:       "g",
		User:        "u",
		Rod:         "Stick with String",
		WeightLimit: 12,
		Species:     "carp",
		Rarity:      rarity.Common,
		Weight:      weight,
		CatchRoll:   catchRoll,
		StolenRoll:  stolen,
	}
}

func castingLedger() ledger.Ledger {
	l := ledger.Default("Stick with String")
	l.Casting = true
	return l
}

func TestResolveCarp(t *testing.T) {
	f := fish.Fish{Species: carp, Rarity: rarity.Common, Weight: 5}
	next, o := Resolve(castingLedger(), starterCast(5, true, false), f, f.Value(1), false)

	assert.Equal(t, Caught, o.Kind)
	assert.Equal(t, uint(5), o.Value)
	assert.True(t, o.NewSpecies)
	assert.False(t, next.Casting)
	assert.Equal(t, uint(5), next.Money)
	assert.Equal(t, uint(1), next.FishCaught)
	assert.Equal(t, []string{"carp"}, next.SeenSpecies)

	// seen species never repeat
	next.Casting = true
	again, o := Resolve(next, starterCast(5, true, false), f, f.Value(1), false)
	assert.False(t, o.NewSpecies)
	assert.Equal(t, []string{"carp"}, again.SeenSpecies)
	assert.Equal(t, uint(10), again.Money)
}

func TestResolveLineBreakWins(t *testing.T) {
	f := fish.Fish{Species: carp, Rarity: rarity.Common, Weight: 30}
	in := castingLedger()
	in.Money = 7

	// too heavy beats both a failed catch roll and a theft
	next, o := Resolve(in, starterCast(30, false, true), f, f.Value(1), false)
	assert.Equal(t, LineBreak, o.Kind)
	assert.Zero(t, o.Value)
	assert.False(t, next.Casting)
	assert.Equal(t, uint(7), next.Money)
	assert.Zero(t, next.FishCaught)
}

func TestResolveEscapeBeatsTheft(t *testing.T) {
	f := fish.Fish{Species: carp, Rarity: rarity.Common, Weight: 5}
	_, o := Resolve(castingLedger(), starterCast(5, false, true), f, 5, false)
	assert.Equal(t, Escaped, o.Kind)

	_, o = Resolve(castingLedger(), starterCast(5, true, true), f, 5, false)
	assert.Equal(t, Stolen, o.Kind)
}

func TestResolveOverride(t *testing.T) {
	f := fish.Fish{Species: carp, Rarity: rarity.Mythic, Weight: 39}
	in := castingLedger()

	next, o := Resolve(in, starterCast(39, false, true), f, 0, true)
	assert.Equal(t, Caught, o.Kind)
	assert.True(t, o.Forced)
	assert.Equal(t, uint(1), o.Value)
	assert.True(t, next.Casting)
	assert.Equal(t, uint(1), next.Money)

	// input ledger is not modified
	assert.Empty(t, in.SeenSpecies)
	assert.Zero(t, in.Money)
}

func TestOutcomeKindString(t *testing.T) {
	assert.Equal(t, "caught", Caught.String())
	assert.Equal(t, "escaped", Escaped.String())
	assert.Equal(t, "line_break", LineBreak.String())
	assert.Equal(t, "stolen", Stolen.String())
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("")
	assert.NoError(t, err)
	assert.Equal(t, PolicyDrop, p)

	p, err = ParsePolicy(" Replay ")
	assert.NoError(t, err)
	assert.Equal(t, PolicyReplay, p)

	_, err = ParsePolicy("keep")
	assert.Error(t, err)
}
