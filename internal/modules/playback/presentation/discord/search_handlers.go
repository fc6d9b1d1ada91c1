package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/vcbot/internal/bot"
	"github.com/sglre6355/vcbot/internal/modules/playback/application/usecases"
	"github.com/sglre6355/vcbot/internal/modules/playback/domain"
)

// SearchSelectPrefix routes result picks from /ytsearch.
const SearchSelectPrefix = "search"

const (
	maxOptionLabelLen       = 100
	maxOptionDescriptionLen = 100
	maxListedTitleLen       = 80
)

// searchSelection is the state carried in a result menu's custom ID.
type searchSelection struct {
	requesterID snowflake.ID
	loop        bool
	channelID   snowflake.ID // zero means the requester's current channel
}

func (s searchSelection) customID() string {
	loop := "0"
	if s.loop {
		loop = "1"
	}
	return strings.Join([]string{
		SearchSelectPrefix,
		s.requesterID.String(),
		loop,
		s.channelID.String(),
	}, bot.ComponentIDSeparator)
}

func parseSearchSelection(customID string) (searchSelection, error) {
	parts := strings.Split(customID, bot.ComponentIDSeparator)
	if len(parts) != 4 || parts[0] != SearchSelectPrefix {
		return searchSelection{}, fmt.Errorf("malformed search selection %q", customID)
	}

	requesterID, err := snowflake.Parse(parts[1])
	if err != nil {
		return searchSelection{}, fmt.Errorf("invalid requester: %w", err)
	}
	channelID, err := snowflake.Parse(parts[3])
	if err != nil {
		return searchSelection{}, fmt.Errorf("invalid channel: %w", err)
	}
	return searchSelection{
		requesterID: requesterID,
		loop:        parts[2] == "1",
		channelID:   channelID,
	}, nil
}

// HandleSearch handles the /ytsearch command. It lists results with a known
// length and lets the requester pick one.
func (h *CommandHandlers) HandleSearch(
	_ *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	rc, msg := parseRequestContext(i)
	if msg != "" {
		return respondError(r, msg)
	}
	opts, err := parsePlayOptions(i)
	if err != nil {
		return respondError(r, "Invalid options")
	}
	if opts.query == "" {
		return respondError(r, userMessage(usecases.ErrEmptyQuery))
	}

	if err := r.Respond(&discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Flags: discordgo.MessageFlagsEphemeral,
		},
	}); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), resolveTimeout)
	defer cancel()

	output, err := h.finder.Search(ctx, usecases.SearchInput{
		Query:             opts.query,
		KnownDurationOnly: true,
	})
	if err != nil {
		slog.Warn("failed to search", "query", opts.query, "error", err)
		if errors.Is(err, usecases.ErrEmptyQuery) {
			return editError(r, userMessage(err))
		}
		return editError(r, "The search failed.")
	}

	var sb strings.Builder
	options := make([]discordgo.SelectMenuOption, 0, len(output.Results))
	for _, result := range output.Results {
		if len(result.URL) > maxChoiceLen {
			continue
		}
		fmt.Fprintf(&sb, "%d\\. [%s](%s) `%s`", len(options)+1,
			truncate(result.Title, maxListedTitleLen), result.URL, formatDuration(result.Duration))
		if result.Uploader != "" {
			fmt.Fprintf(&sb, " - *%s*", result.Uploader)
		}
		sb.WriteString("\n")

		options = append(options, discordgo.SelectMenuOption{
			Label:       truncate(result.Title, maxOptionLabelLen),
			Value:       result.URL,
			Description: truncate(optionDescription(result.Uploader, formatDuration(result.Duration)), maxOptionDescriptionLen),
		})
	}
	if len(options) == 0 {
		return editError(r, "No results found.")
	}

	selection := searchSelection{requesterID: rc.userID, loop: opts.loop, channelID: opts.channelID}
	return r.Edit(&discordgo.WebhookEdit{
		Embeds: &[]*discordgo.MessageEmbed{
			{
				Title:       "Search results",
				Description: sb.String(),
				Color:       colorSuccess,
			},
		},
		Components: &[]discordgo.MessageComponent{
			discordgo.ActionsRow{
				Components: []discordgo.MessageComponent{
					discordgo.SelectMenu{
						MenuType:    discordgo.StringSelectMenu,
						CustomID:    selection.customID(),
						Placeholder: "Pick a result to play",
						Options:     options,
					},
				},
			},
		},
	})
}

// HandleSearchSelect queues the result picked from a /ytsearch menu.
func (h *CommandHandlers) HandleSearchSelect(
	_ *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	data := i.MessageComponentData()
	selection, err := parseSearchSelection(data.CustomID)
	if err != nil {
		slog.Warn("failed to parse search selection", "error", err)
		return respondEphemeral(r, "Invalid selection")
	}

	rc, msg := parseRequestContext(i)
	if msg != "" {
		return respondEphemeral(r, msg)
	}
	if rc.userID != selection.requesterID {
		return respondEphemeral(r, fmt.Sprintf("Only <@%s> can pick a result.", selection.requesterID))
	}
	if len(data.Values) == 0 || !domain.IsRemote(data.Values[0]) {
		return respondEphemeral(r, "Invalid selection")
	}
	url := data.Values[0]

	voiceChannelID, err := h.voiceChannel.SelectVoiceChannel(usecases.SelectVoiceChannelInput{
		GuildID:        rc.guildID,
		UserID:         rc.userID,
		VoiceChannelID: selection.channelID,
	})
	if err != nil {
		return respondEphemeral(r, userMessage(err))
	}

	if err := r.Respond(&discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredMessageUpdate,
	}); err != nil {
		return err
	}

	dest := domain.Destination{GuildID: rc.guildID, ChannelID: voiceChannelID}
	return h.enqueueStream(r, rc, dest, url, selection.loop)
}

func optionDescription(uploader, length string) string {
	if uploader == "" {
		return length
	}
	return uploader + " | " + length
}
