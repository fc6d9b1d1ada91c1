package discord

import "github.com/bwmarrin/discordgo"

// Commands returns all slash commands for the playback module.
func Commands() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:        "play",
			Description: "Play audio from a URL in a voice channel",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:         "url",
					Description:  "Page, playlist or stream URL, or words to search for",
					Required:     true,
					Autocomplete: true,
				},
				loopOption(),
				channelOption(),
			},
		},
		{
			Name:        "playfile",
			Description: "Play an uploaded audio file in a voice channel",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionAttachment,
					Name:        "file",
					Description: "Audio file to play",
					Required:    true,
				},
				loopOption(),
				channelOption(),
			},
		},
		{
			Name:        "ytsearch",
			Description: "Search YouTube and pick a result to play",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "query",
					Description: "What to search for",
					Required:    true,
				},
				loopOption(),
				channelOption(),
			},
		},
		{
			Name:        "skip",
			Description: "Stop the current audio",
		},
		{
			Name:        "leave",
			Description: "Stop the current audio and leave the voice channel",
		},
		{
			Name:        "seek",
			Description: "Move the current audio forward or backward",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "seconds",
					Description: "Seconds to move by (negative to go back)",
					Required:    true,
				},
			},
		},
		{
			Name:        "queue",
			Description: "Show what is playing and what is waiting",
		},
	}
}

func loopOption() *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionBoolean,
		Name:        "loop",
		Description: "Replay until skipped",
		Required:    false,
	}
}

func channelOption() *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionChannel,
		Name:        "channel",
		Description: "Voice channel to play in (defaults to your current channel)",
		Required:    false,
		ChannelTypes: []discordgo.ChannelType{
			discordgo.ChannelTypeGuildVoice,
			discordgo.ChannelTypeGuildStageVoice,
		},
	}
}
