package angler

import (
	"time"

	"github.com/sk3pz/anglerbot/internal/ledger"
	"github.com/sk3pz/anglerbot/internal/rarity"
)

// WeightAddTime is the extra seconds a cast takes per lb the fish is above
// its species average. Lighter than average fish bite sooner.
const WeightAddTime = 0.05

// StealChance is the percent chance a turtle takes a landed fish.
const StealChance = 2

// Cast is a pending cast. Everything that decides the outcome is drawn when
// the line goes in; resolution only applies it.
type Cast struct {
	ID          string        `json:"id"`
	Guild       string        `json:"guildId"`
	User        string        `json:"userId"`
	ChannelID   string        `json:"channelId"`
	Rod         string        `json:"rod"`
	WeightLimit float64       `json:"weightLimit"`
	Species     string        `json:"species"`
	Rarity      rarity.Tier   `json:"rarity"`
	Weight      float64       `json:"weight"`
	CatchRoll   bool          `json:"catchRoll"`
	StolenRoll  bool          `json:"stolenRoll"`
	Delay       time.Duration `json:"delay"`
	StartedAt   time.Time     `json:"startedAt"`
	ResolveAt   time.Time     `json:"resolveAt"`
}

func (c Cast) Key() ledger.Key {
	return ledger.Key{Guild: c.Guild, User: c.User}
}

// CastDelay is how long a cast waits before it resolves:
// (catchTime + weightDeviation*WeightAddTime) / divisor seconds, never
// shorter than floor.
func CastDelay(catchTime, weightDeviation, divisor float64, floor time.Duration) time.Duration {
	if divisor <= 0 {
		divisor = 1
	}
	secs := (catchTime + weightDeviation*WeightAddTime) / divisor
	d := time.Duration(secs * float64(time.Second))
	if d < floor {
		d = floor
	}
	return d
}
