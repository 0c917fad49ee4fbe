package store

import (
	"context"

	"github.com/sk3pz/anglerbot/internal/fish"
	"github.com/sk3pz/anglerbot/internal/ledger"
	"github.com/sk3pz/anglerbot/internal/shop"
)

// Store is everything the bot persists.
type Store interface {
	ledger.Store
	shop.StateStore

	PutPending(ctx context.Context, key ledger.Key, castID string, doc []byte) error
	GetPending(ctx context.Context, key ledger.Key) (castID string, doc []byte, ok bool, err error)
	DeletePending(ctx context.Context, key ledger.Key) error
	PendingKeys(ctx context.Context) ([]ledger.Key, error)

	AddCatch(ctx context.Context, c fish.Catch) error
	TopByWeight(ctx context.Context, guildId string, limit int) ([]fish.Catch, error)
	TopByWeightSpecies(ctx context.Context, guildId, species string, limit int) ([]fish.Catch, error)
}

var _ Store = (*SQLiteStore)(nil)
