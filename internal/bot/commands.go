package bot

import "github.com/bwmarrin/discordgo"

const defaultMOTD = "Cast a line"

func commandDefs(motd string) []*discordgo.ApplicationCommand {
	if motd == "" {
		motd = defaultMOTD
	}
	noDMs := false
	one := 1.0

	shopItem := func(desc string) []*discordgo.ApplicationCommandOption {
		return []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionInteger,
				Name:        "item",
				Description: desc,
				Required:    true,
				MinValue:    &one,
				MaxValue:    6,
			},
		}
	}

	return []*discordgo.ApplicationCommand{
		{Name: "fish", Description: motd, DMPermission: &noDMs},
		{Name: "shop", Description: "View today's shop", DMPermission: &noDMs},
		{
			Name:         "buy",
			Description:  "Buy a rod from the shop",
			DMPermission: &noDMs,
			Options:      shopItem("The item to buy from the shop"),
		},
		{Name: "balance", Description: "Check your balance", DMPermission: &noDMs},
		{Name: "info", Description: "View your info", DMPermission: &noDMs},
		{Name: "bestiary", Description: "View stats on the fish you have caught", DMPermission: &noDMs},
		{
			Name:         "rod",
			Description:  "View info about a rod in the shop",
			DMPermission: &noDMs,
			Options:      shopItem("The shop item to look at"),
		},
		{
			Name:         "leaderboard",
			Description:  "Show the heaviest catches",
			DMPermission: &noDMs,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "species",
					Description: "Filter by species",
					Required:    false,
				},
			},
		},
	}
}
