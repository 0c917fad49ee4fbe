package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/sk3pz/anglerbot/internal/angler"
	"github.com/sk3pz/anglerbot/internal/fish"
	"github.com/sk3pz/anglerbot/internal/ledger"
	"github.com/sk3pz/anglerbot/internal/rarity"
)

const spawnPrefix = "!spawn"

var errSpawnUsage = errors.New("usage: !spawn <rarity> <weight> <species...>")

// parseSpawn reads `!spawn <rarity> <weight> <species...>`. The species may
// be a key or a misspelled name.
func parseSpawn(content string, reg *fish.Registry) (fish.Fish, error) {
	args := strings.Fields(content)
	if len(args) < 4 || args[0] != spawnPrefix {
		return fish.Fish{}, errSpawnUsage
	}

	tier, err := rarity.Parse(args[1])
	if err != nil {
		return fish.Fish{}, err
	}

	weight, err := strconv.ParseFloat(args[2], 64)
	if err != nil || weight <= 0 {
		return fish.Fish{}, fmt.Errorf("bad weight %q", args[2])
	}

	name := strings.Join(args[3:], " ")
	sp, ok := reg.Get(name)
	if !ok {
		sp, ok = reg.Closest(name)
	}
	if !ok {
		return fish.Fish{}, fmt.Errorf("%w: %q", fish.ErrUnknownSpecies, name)
	}

	return fish.Fish{Species: sp, Rarity: tier, Weight: weight}, nil
}

type spawner interface {
	ForceCatch(ctx context.Context, key ledger.Key, channelID string, f fish.Fish) (angler.Outcome, error)
}

// spawnFish lands f for key under the same deadline as a slash command.
func spawnFish(sp spawner, key ledger.Key, channelID string, f fish.Fish) (angler.Outcome, error) {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	return sp.ForceCatch(ctx, key, channelID, f)
}

func (m *module) onMessage(s *discordgo.Session, mc *discordgo.MessageCreate) {
	if mc.Author == nil || mc.Author.Bot || mc.GuildID == "" {
		return
	}
	if m.adminID == "" || mc.Author.ID != m.adminID {
		return
	}
	if !strings.HasPrefix(mc.Content, spawnPrefix) {
		return
	}

	f, err := parseSpawn(mc.Content, m.reg)
	if err != nil {
		if _, err := s.ChannelMessageSend(mc.ChannelID, err.Error()); err != nil {
			logREST("spawn reply failed", err)
		}
		return
	}

	key := ledger.Key{Guild: mc.GuildID, User: mc.Author.ID}
	o, err := spawnFish(m.engine, key, mc.ChannelID, f)
	if err != nil {
		slog.Error("spawn failed", slog.String("key", key.String()), slog.Any("error", err))
		return
	}
	slog.Info("admin spawned a fish",
		slog.String("key", key.String()),
		slog.String("fish", o.Fish.String()),
		slog.Float64("weight", o.Fish.Weight))
}
