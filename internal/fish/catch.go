package fish

import (
	"time"

	"github.com/sk3pz/anglerbot/internal/rarity"
)

// Catch is the canonical record of a landed fish used by handlers and stores.
// Storage backends should persist weight_tenths (int) for precision/ordering.
type Catch struct {
	Id         int64
	GuildId    string
	UserId     string
	SpeciesKey string
	Rarity     rarity.Tier
	Weight     float64
	Value      uint
	CaughtAt   time.Time
}
