package bot

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/sk3pz/anglerbot/internal/angler"
	"github.com/sk3pz/anglerbot/internal/fish"
	"github.com/sk3pz/anglerbot/internal/rarity"
	"github.com/sk3pz/anglerbot/internal/rod"
)

const (
	colorTeal      = 0x1ABC9C
	colorDarkTeal  = 0x11806A
	colorGold      = 0xF1C40F
	colorDarkGold  = 0xC27C0E
	colorDarkGreen = 0x1F8B4C
)

func mention(userID string) string { return "<@" + userID + ">" }

func lbs(w float64) string {
	return strconv.FormatFloat(w, 'f', -1, 64) + "lbs"
}

func thumb(sp fish.Species) *discordgo.MessageEmbedThumbnail {
	if sp.Image == "" {
		return nil
	}
	return &discordgo.MessageEmbedThumbnail{URL: sp.Image}
}

func rodSummary(r rod.Rod) string {
	return fmt.Sprintf("**%s**\n- Catch Chance: %d%%\n- Avg Catch Rate: ~%s seconds\n- Max Depth: %dft\n- Max Weight: %s",
		r, r.CatchPercent(), strconv.FormatFloat(r.CatchRate, 'f', -1, 64), r.MaxDepth(), lbs(r.WeightLimit))
}

// outcomeMessage renders a resolved cast for the channel it was cast in.
func outcomeMessage(o angler.Outcome, speciesTotal int) *discordgo.MessageSend {
	who := mention(o.Key.User)
	msg := &discordgo.MessageSend{
		AllowedMentions: &discordgo.MessageAllowedMentions{Users: []string{o.Key.User}},
	}

	switch o.Kind {
	case angler.LineBreak:
		msg.Content = fmt.Sprintf("%s Your line broke! The %s **%s** was too heavy!", who, lbs(o.Fish.Weight), o.Fish)
	case angler.Escaped:
		msg.Content = fmt.Sprintf("%s A %s **%s** got away! Better luck next time!", who, lbs(o.Fish.Weight), o.Fish)
	case angler.Stolen:
		msg.Content = who
		msg.Embeds = []*discordgo.MessageEmbed{{
			Title:       "TURTLE EVENT",
			Description: fmt.Sprintf("A turtle stole your **%s**!\n:turtle::turtle::turtle:", o.Fish),
			Color:       colorDarkGreen,
			Timestamp:   time.Now().Format(time.RFC3339),
		}}
	default:
		msg.Content = fmt.Sprintf("%s has caught a fish!", who)
		embed := &discordgo.MessageEmbed{
			Title:       "You caught a fish!",
			Description: fmt.Sprintf("You caught a **%s** at %s (%s)!", o.Fish, lbs(o.Fish.Weight), o.Fish.Size()),
			Color:       rarity.ColorForTier(o.Fish.Rarity),
			Thumbnail:   thumb(o.Fish.Species),
			Fields: []*discordgo.MessageEmbedField{
				{Name: "Value:", Value: fmt.Sprintf("$%d", o.Value), Inline: true},
				{Name: "New Balance:", Value: fmt.Sprintf("$%d", o.Ledger.Money), Inline: true},
				{Name: "Your Rod:", Value: orDash(o.Rod)},
				{Name: "Fish caught:", Value: strconv.FormatUint(uint64(o.Ledger.FishCaught), 10), Inline: true},
				{Name: "Unique catches:", Value: fmt.Sprintf("%d/%d", len(o.Ledger.SeenSpecies), speciesTotal), Inline: true},
			},
			Timestamp: time.Now().Format(time.RFC3339),
		}
		if o.NewSpecies {
			embed.Footer = &discordgo.MessageEmbedFooter{Text: "New species added to your bestiary!"}
		}
		msg.Embeds = []*discordgo.MessageEmbed{embed}
	}
	return msg
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func shopEmbed(v angler.ShopView) *discordgo.MessageEmbed {
	fields := make([]*discordgo.MessageEmbedField, 0, len(v.Items))
	for idx, it := range v.Items {
		fields = append(fields, &discordgo.MessageEmbedField{
			Name:  fmt.Sprintf("%d: %s", idx+1, it.Rod.ID),
			Value: fmt.Sprintf("$%d\nRarity: %s", it.Price, it.Rod.Rarity),
		})
	}
	return &discordgo.MessageEmbed{
		Title:       "Fishing Shop",
		Description: "Run `/buy <#>` to buy an item from the shop!\nRun `/rod #` to view information about a rod\n**Today's Stock:**",
		Fields:      fields,
		Footer:      &discordgo.MessageEmbedFooter{Text: "Next restock in: " + pretty(v.UntilRestock)},
		Color:       colorDarkGold,
	}
}

func rodEmbed(index int, it angler.ShopItem) *discordgo.MessageEmbed {
	r := it.Rod
	desc := r.Description
	if desc == "" {
		desc = "-"
	}
	return &discordgo.MessageEmbed{
		Title:       r.ID + " Info",
		Description: fmt.Sprintf("This rod is item #%d in the shop", index),
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Description:", Value: desc},
			{Name: "Price:", Value: fmt.Sprintf("$%d", it.Price), Inline: true},
			{Name: "Rarity:", Value: r.Rarity.String(), Inline: true},
			{Name: "Catch Chance:", Value: fmt.Sprintf("%d%%", r.CatchPercent())},
			{Name: "Avg Catch Rate:", Value: strconv.FormatFloat(r.CatchRate, 'f', -1, 64) + " seconds"},
			{Name: "Max Depth:", Value: fmt.Sprintf("%dft", r.MaxDepth())},
			{Name: "Max Weight:", Value: lbs(r.WeightLimit)},
		},
		Color:     colorGold,
		Timestamp: time.Now().Format(time.RFC3339),
	}
}

func infoEmbed(name string, p angler.Profile) *discordgo.MessageEmbed {
	l := p.Ledger
	return &discordgo.MessageEmbed{
		Title:       name + "'s Info",
		Description: "Your information",
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Balance:", Value: fmt.Sprintf("$%d", l.Money)},
			{Name: "Fish caught:", Value: strconv.FormatUint(uint64(l.FishCaught), 10), Inline: true},
			{Name: "Unique catches:", Value: fmt.Sprintf("%d/%d", len(l.SeenSpecies), p.SpeciesTotal), Inline: true},
			{Name: "Rod:", Value: rodSummary(p.Rod)},
		},
		Color:     colorTeal,
		Timestamp: time.Now().Format(time.RFC3339),
	}
}

// Discord caps an embed at 25 fields.
const maxFields = 25

func bestiaryEmbed(name string, b angler.Bestiary) *discordgo.MessageEmbed {
	fields := make([]*discordgo.MessageEmbedField, 0, min(len(b.Seen), maxFields))
	for _, sp := range b.Seen {
		if len(fields) == maxFields {
			break
		}
		fields = append(fields, &discordgo.MessageEmbedField{
			Name: fmt.Sprintf("%s (%s)", sp.Name, sp.Rarity),
			Value: fmt.Sprintf("Can be found between %s to %s below %dft",
				lbs(sp.MinWeight), lbs(sp.MaxWeight), sp.Depth),
		})
	}

	desc := "Fish types you have caught:"
	if len(b.Seen) == 0 {
		desc = "You haven't caught anything yet. Try `/fish`!"
	}
	return &discordgo.MessageEmbed{
		Title:       name + "'s Bestiary",
		Description: desc,
		Fields:      fields,
		Footer:      &discordgo.MessageEmbedFooter{Text: fmt.Sprintf("%d/%d", len(b.Seen), b.Total)},
		Color:       colorTeal,
	}
}

func leaderboardEmbed(rows []fish.Catch, reg *fish.Registry, only *fish.Species) *discordgo.MessageEmbed {
	desc := strings.Builder{}
	for idx, c := range rows {
		name := reg.NameByKey(c.SpeciesKey)
		size := ""
		if sp, ok := reg.Get(c.SpeciesKey); ok {
			size = " (" + fish.SizeOf(sp, c.Weight).String() + ")"
		}
		fmt.Fprintf(&desc, "**#%d** **%s%s** - %s - %s %s\n",
			idx+1, lbs(c.Weight), size, mention(c.UserId), c.Rarity, name)
	}

	embed := &discordgo.MessageEmbed{
		Title:       "🏆 Leaderboard - Heaviest Catches",
		Description: desc.String(),
		Color:       colorGold,
	}
	if only != nil {
		embed.Title = "🏆 Leaderboard - " + only.Name
	}
	return embed
}

func pretty(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	h := int(d / time.Hour)
	m := int((d % time.Hour) / time.Minute)
	s := int((d % time.Minute) / time.Second)
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
