package bot

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/sk3pz/anglerbot/internal/angler"
	"github.com/sk3pz/anglerbot/internal/fish"
	"github.com/sk3pz/anglerbot/internal/ledger"
	"github.com/sk3pz/anglerbot/internal/logging"
	"github.com/sk3pz/anglerbot/internal/ratelimit"
)

const (
	commandTimeout   = 10 * time.Second
	leaderboardLimit = 10
)

// Leaderboard reads the catch log.
type Leaderboard interface {
	TopByWeight(ctx context.Context, guildId string, limit int) ([]fish.Catch, error)
	TopByWeightSpecies(ctx context.Context, guildId, species string, limit int) ([]fish.Catch, error)
}

type Options struct {
	AppID       string
	ScopeGuild  string
	AdminID     string
	MOTD        string
	Maintenance bool

	Engine      *angler.Engine
	Species     *fish.Registry
	Leaderboard Leaderboard
	FishLimiter *ratelimit.Limiter
	BoardLimit  *ratelimit.Limiter
}

type module struct {
	s           *discordgo.Session
	adminID     string
	motd        string
	maintenance bool
	engine      *angler.Engine
	reg         *fish.Registry
	board       Leaderboard
	fishLim     *ratelimit.Limiter
	lbLim       *ratelimit.Limiter
}

// Setup registers the slash commands and hooks the handlers into session.
// The engine's notifier is pointed at the session. The returned func
// removes the handlers.
func Setup(session *discordgo.Session, opts Options) (func(), error) {
	m := &module{
		s:           session,
		adminID:     opts.AdminID,
		motd:        opts.MOTD,
		maintenance: opts.Maintenance,
		engine:      opts.Engine,
		reg:         opts.Species,
		board:       opts.Leaderboard,
		fishLim:     opts.FishLimiter,
		lbLim:       opts.BoardLimit,
	}
	if m.fishLim == nil {
		m.fishLim = ratelimit.NewLimiter(0, 0, nil, nil)
	}
	if m.lbLim == nil {
		m.lbLim = ratelimit.NewLimiter(0, 0, nil, nil)
	}

	created, err := session.ApplicationCommandBulkOverwrite(opts.AppID, opts.ScopeGuild, commandDefs(opts.MOTD))
	if err != nil {
		return nil, fmt.Errorf("failed to register commands: %w", err)
	}
	for _, c := range created {
		slog.Info("command active", slog.String("name", c.Name), slog.String("description", c.Description))
	}

	m.engine.SetNotifier(m)

	removers := []func(){
		session.AddHandler(m.onInteraction),
		session.AddHandler(m.onMessage),
		session.AddHandler(m.onResumed),
	}
	m.setPresence()

	return func() {
		for _, rm := range removers {
			rm()
		}
	}, nil
}

func (m *module) setPresence() {
	status := "/fish"
	if m.maintenance {
		status = "Under maintenance"
	}
	if err := m.s.UpdateGameStatus(0, status); err != nil {
		slog.Warn("failed to set presence", slog.Any("error", err))
	}
}

// onResumed clears casts that were in flight while the gateway was away.
func (m *module) onResumed(_ *discordgo.Session, _ *discordgo.Resumed) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if _, err := m.engine.Reconcile(ctx); err != nil {
		slog.Error("reconcile after resume failed", slog.Any("error", err))
	}
	slog.Info("gateway resumed", slog.String("motd", m.motd))
}

// Notify sends a resolved cast to the channel it was cast in.
func (m *module) Notify(_ context.Context, o angler.Outcome) {
	if o.ChannelID == "" {
		return
	}
	if _, err := m.s.ChannelMessageSendComplex(o.ChannelID, outcomeMessage(o, m.reg.Count())); err != nil {
		logREST("failed to send outcome", err)
	}
}

func (m *module) onInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}

	name := i.ApplicationCommandData().Name
	if i.GuildID == "" {
		respondEphemeral(s, i, "You must be in a server to do this!")
		return
	}

	user := userID(i)
	if m.maintenance && user != m.adminID {
		respondEphemeral(s, i, "The pond is closed for maintenance, check back soon!")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	key := ledger.Key{Guild: i.GuildID, User: user}
	start := time.Now()
	var err error

	switch name {
	case "fish":
		err = m.handleFish(ctx, s, i, key)
	case "shop":
		err = m.handleShop(ctx, s, i)
	case "buy":
		err = m.handleBuy(ctx, s, i, key)
	case "balance":
		err = m.handleBalance(ctx, s, i, key)
	case "info":
		err = m.handleInfo(ctx, s, i, key)
	case "bestiary":
		err = m.handleBestiary(ctx, s, i, key)
	case "rod":
		err = m.handleRod(ctx, s, i)
	case "leaderboard":
		m.handleLeaderboard(ctx, s, i)
	default:
		return
	}

	logged := err
	if angler.IsUserError(err) {
		logged = nil
	}
	logging.LogCommand(name, user, time.Since(start), logged)
	if err != nil {
		respondEphemeral(s, i, angler.UserMessage(err))
	}
}

func (m *module) handleFish(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, key ledger.Key) error {
	if ok, rem := m.fishLim.Try(key); !ok {
		respondEphemeral(s, i, fmt.Sprintf("⏳ You're still untangling your line... try again in %s.", pretty(rem)))
		return nil
	}

	rc, err := m.engine.StartCast(ctx, key, i.ChannelID)
	if err != nil {
		m.fishLim.Reset(key)
		return err
	}

	respond(s, i, fmt.Sprintf("You have cast your %s.", rc.Rod))
	return nil
}

func (m *module) handleShop(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) error {
	v, err := m.engine.Shop(ctx)
	if err != nil {
		return err
	}
	respondEmbed(s, i, shopEmbed(v))
	return nil
}

func (m *module) handleBuy(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, key ledger.Key) error {
	p, err := m.engine.Buy(ctx, key, itemOption(i))
	if err != nil {
		return err
	}
	respond(s, i, fmt.Sprintf("You bought a **%s** for $%d! You now have $%d.", p.Rod, p.Price, p.Balance))
	return nil
}

func (m *module) handleBalance(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, key ledger.Key) error {
	bal, err := m.engine.Balance(ctx, key)
	if err != nil {
		return err
	}
	respond(s, i, fmt.Sprintf("You have $%d", bal))
	return nil
}

func (m *module) handleInfo(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, key ledger.Key) error {
	p, err := m.engine.Profile(ctx, key)
	if err != nil {
		return err
	}
	respondEmbed(s, i, infoEmbed(displayName(i), p))
	return nil
}

func (m *module) handleBestiary(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, key ledger.Key) error {
	b, err := m.engine.Bestiary(ctx, key)
	if err != nil {
		return err
	}
	respondEmbed(s, i, bestiaryEmbed(displayName(i), b))
	return nil
}

func (m *module) handleRod(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) error {
	index := itemOption(i)
	it, err := m.engine.RodInfo(ctx, index)
	if err != nil {
		return err
	}
	respondEmbed(s, i, rodEmbed(index, it))
	return nil
}

func (m *module) handleLeaderboard(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	if ok, rem := m.lbLim.TryGuild(i.GuildID, "leaderboard"); !ok {
		respondEphemeral(s, i, fmt.Sprintf("⏳ Leaderboard refreshing... try again in %s.", pretty(rem)))
		return
	}

	var only *fish.Species
	for _, opt := range i.ApplicationCommandData().Options {
		if opt.Name != "species" {
			continue
		}
		name := opt.StringValue()
		sp, ok := m.reg.Get(name)
		if !ok {
			sp, ok = m.reg.Closest(name)
		}
		if !ok {
			respondEphemeral(s, i, fmt.Sprintf("Unknown fish '%s'", name))
			return
		}
		only = &sp
	}

	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	}); err != nil {
		logREST("defer response failed", err)
		return
	}

	var (
		rows []fish.Catch
		err  error
	)
	if only != nil {
		rows, err = m.board.TopByWeightSpecies(ctx, i.GuildID, only.Key, leaderboardLimit)
	} else {
		rows, err = m.board.TopByWeight(ctx, i.GuildID, leaderboardLimit)
	}
	if err != nil {
		slog.Error("failed to load leaderboard", slog.String("guild", i.GuildID), slog.Any("error", err))
		editResponseText(s, i, "Error loading leaderboard.")
		return
	}

	if len(rows) == 0 {
		editResponseText(s, i, "No catches yet - type `/fish` to make the first!")
		return
	}

	if _, err := s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{
		Embeds: &[]*discordgo.MessageEmbed{leaderboardEmbed(rows, m.reg, only)},
	}); err != nil {
		logREST("edit failed", err)
	}
}

func itemOption(i *discordgo.InteractionCreate) int {
	for _, opt := range i.ApplicationCommandData().Options {
		if opt.Name == "item" {
			return int(opt.IntValue())
		}
	}
	return 0
}

func userID(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}

func displayName(i *discordgo.InteractionCreate) string {
	if i.Member != nil {
		if i.Member.Nick != "" {
			return i.Member.Nick
		}
		if u := i.Member.User; u != nil {
			if u.GlobalName != "" {
				return u.GlobalName
			}
			return u.Username
		}
	}
	if i.User != nil {
		return i.User.Username
	}
	return "Angler"
}

func respond(s *discordgo.Session, i *discordgo.InteractionCreate, msg string) {
	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Content: msg},
	}); err != nil {
		logREST("respond failed", err)
	}
}

func respondEmbed(s *discordgo.Session, i *discordgo.InteractionCreate, embed *discordgo.MessageEmbed) {
	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Embeds: []*discordgo.MessageEmbed{embed}},
	}); err != nil {
		logREST("respond failed", err)
	}
}

func respondEphemeral(s *discordgo.Session, i *discordgo.InteractionCreate, msg string) {
	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: msg,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	}); err != nil {
		logREST("respond failed", err)
	}
}

func editResponseText(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	_, _ = s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{Content: &content})
}

func logREST(msg string, err error) {
	if rerr, ok := err.(*discordgo.RESTError); ok && rerr.Message != nil {
		slog.Error(msg, slog.Int("code", rerr.Message.Code), slog.String("message", rerr.Message.Message))
		return
	}
	slog.Error(msg, slog.Any("error", err))
}
