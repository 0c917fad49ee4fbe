package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/sk3pz/anglerbot/internal/angler"
	"github.com/sk3pz/anglerbot/internal/bot"
	"github.com/sk3pz/anglerbot/internal/clock"
	"github.com/sk3pz/anglerbot/internal/fish"
	"github.com/sk3pz/anglerbot/internal/ledger"
	"github.com/sk3pz/anglerbot/internal/logging"
	"github.com/sk3pz/anglerbot/internal/ratelimit"
	"github.com/sk3pz/anglerbot/internal/rod"
	"github.com/sk3pz/anglerbot/internal/roll"
	"github.com/sk3pz/anglerbot/internal/shop"
	"github.com/sk3pz/anglerbot/internal/store"
	"github.com/sk3pz/anglerbot/internal/tuning"
	"golang.org/x/sync/errgroup"
)

const (
	shutdownTimeout = 30 * time.Second
	sweepInterval   = 10 * time.Minute
)

func fatal(msg string, err error) {
	slog.Error(msg, slog.Any("error", err))
	os.Exit(1)
}

func main() {
	config, err := LoadConfig()
	if err != nil {
		fatal("failed to load config", err)
	}

	level, err := logging.ParseLevel(config.LogLevel)
	if err != nil {
		fatal("bad LOG_LEVEL", err)
	}
	logging.Setup(os.Stderr, level)

	var (
		rods    *rod.Catalog
		species *fish.Registry
	)
	var g errgroup.Group
	g.Go(func() (err error) {
		rods, err = rod.LoadCatalogFromJSON(config.RodsJson)
		return err
	})
	g.Go(func() (err error) {
		species, err = fish.LoadRegistryFromJSON(config.SpeciesJson)
		return err
	})
	if err := g.Wait(); err != nil {
		fatal("failed to load catalogs", err)
	}
	slog.Info("catalogs loaded",
		slog.Int("rods", rods.Count()),
		slog.Int("species", species.Count()))

	mults := tuning.File{Path: config.MultipliersJson}
	if _, err := mults.Load(); err != nil {
		// not fatal: requests fail until the file is fixed
		slog.Warn("multipliers are unusable", slog.Any("error", err))
	}

	policy, err := angler.ParsePolicy(config.ReconcilePolicy)
	if err != nil {
		fatal("bad RECONCILE_POLICY", err)
	}

	st, err := store.OpenSQLite(config.DBPath)
	if err != nil {
		fatal("failed to open database", err)
	}
	defer st.Close()

	src := roll.New(nil)
	clk := clock.Real{}

	engine := angler.New(angler.Config{
		Book:     ledger.NewBook(st, rods.Starter().ID),
		Pending:  st,
		Catches:  st,
		Rods:     rods,
		Species:  species,
		Sampler:  fish.NewSampler(species, nil, src),
		Shop:     shop.NewRotation(st, rods, src, clk, config.ShopRestockPeriod),
		Tuning:   mults,
		Rand:     src,
		Clock:    clk,
		Policy:   policy,
		MinDelay: angler.DefaultMinDelay,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// casts left over from the last run
	if _, err := engine.Reconcile(ctx); err != nil {
		fatal("failed to reconcile casts", err)
	}

	session, err := discordgo.New("Bot " + config.DiscordToken)
	if err != nil {
		fatal("failed to start session", err)
	}
	session.ShardCount = config.ShardCount
	session.ShardID = config.ShardId
	session.Identify.Intents = discordgo.IntentGuilds |
		discordgo.IntentGuildMessages |
		discordgo.IntentMessageContent

	if err := session.Open(); err != nil {
		fatal("failed to open session connection", err)
	}
	defer session.Close()

	fishLim := ratelimit.NewLimiter(
		seconds(config.CooldownFishingMin),
		seconds(config.CooldownFishingMax),
		clk, src,
	)
	lbLim := ratelimit.NewLimiter(
		seconds(config.CooldownLeaderboardMin),
		seconds(config.CooldownLeaderboardMax),
		clk, src,
	)

	teardown, err := bot.Setup(session, bot.Options{
		AppID:       session.State.User.ID,
		ScopeGuild:  config.DevGuild,
		AdminID:     config.AdminUserId,
		MOTD:        config.MOTD,
		Maintenance: config.Maintenance,
		Engine:      engine,
		Species:     species,
		Leaderboard: st,
		FishLimiter: fishLim,
		BoardLimit:  lbLim,
	})
	if err != nil {
		fatal("failed to setup bot", err)
	}
	defer teardown()

	go sweep(ctx, fishLim, lbLim)

	slog.Info("bot is running",
		slog.String("user", session.State.User.Username),
		slog.String("motd", config.MOTD),
		slog.Bool("maintenance", config.Maintenance))
	<-ctx.Done()

	slog.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if _, err := engine.Shutdown(sctx); err != nil {
		slog.Error("shutdown reconcile failed", slog.Any("error", err))
	}
}

// sweep drops expired cooldowns so the limiters don't grow forever.
func sweep(ctx context.Context, lims ...*ratelimit.Limiter) {
	t := time.NewTicker(sweepInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n := 0
			for _, l := range lims {
				n += l.Sweep()
			}
			slog.Debug("swept cooldowns", slog.Int("expired", n))
		}
	}
}
