package main

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/sk3pz/anglerbot/internal/angler"
)

type Config struct {
	DiscordToken    string `env:"DISCORD_TOKEN,required,notEmpty"`
	DevGuild        string `env:"DEV_GUILD_ID"`
	DBPath          string `env:"DB_PATH" envDefault:"anglerbot.db"`
	SpeciesJson     string `env:"SPECIES_JSON" envDefault:"data/species.json"`
	RodsJson        string `env:"RODS_JSON" envDefault:"data/rods.json"`
	MultipliersJson string `env:"MULTIPLIERS_JSON" envDefault:"data/multipliers.json"`
	AdminUserId     string `env:"ADMIN_USER_ID"`
	MOTD            string `env:"MOTD" envDefault:"Cast a line"`
	Maintenance     bool   `env:"MAINTENANCE_MODE" envDefault:"false"`
	ReconcilePolicy string `env:"RECONCILE_POLICY" envDefault:"drop"`
	LogLevel        string `env:"LOG_LEVEL" envDefault:"info"`

	ShopRestockPeriod time.Duration `env:"SHOP_RESTOCK_PERIOD" envDefault:"24h"`

	ShardCount int `env:"SHARD_COUNT" envDefault:"1"`
	ShardId    int `env:"SHARD_ID" envDefault:"0"`

	// cooldowns are in seconds
	CooldownFishingMin     int `env:"COOLDOWN_FISHING_MIN" envDefault:"2"`
	CooldownFishingMax     int `env:"COOLDOWN_FISHING_MAX" envDefault:"3"`
	CooldownLeaderboardMin int `env:"COOLDOWN_LEADERBOARD_MIN" envDefault:"30"`
	CooldownLeaderboardMax int `env:"COOLDOWN_LEADERBOARD_MAX" envDefault:"30"`
}

// LoadConfig reads .env if there is one, then the environment.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	return parseConfig()
}

func parseConfig() (*Config, error) {
	var c Config
	if err := env.Parse(&c); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) validate() error {
	if _, err := angler.ParsePolicy(c.ReconcilePolicy); err != nil {
		return err
	}
	if c.ShardCount < 1 || c.ShardId < 0 || c.ShardId >= c.ShardCount {
		return fmt.Errorf("shard %d of %d is out of range", c.ShardId, c.ShardCount)
	}
	if c.CooldownFishingMin < 0 || c.CooldownLeaderboardMin < 0 {
		return fmt.Errorf("cooldowns must not be negative")
	}
	if c.CooldownFishingMax < c.CooldownFishingMin {
		return fmt.Errorf("COOLDOWN_FISHING_MAX %d is below COOLDOWN_FISHING_MIN %d", c.CooldownFishingMax, c.CooldownFishingMin)
	}
	if c.CooldownLeaderboardMax < c.CooldownLeaderboardMin {
		return fmt.Errorf("COOLDOWN_LEADERBOARD_MAX %d is below COOLDOWN_LEADERBOARD_MIN %d", c.CooldownLeaderboardMax, c.CooldownLeaderboardMin)
	}
	if c.ShopRestockPeriod <= 0 {
		return fmt.Errorf("SHOP_RESTOCK_PERIOD must be positive")
	}
	return nil
}

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }
