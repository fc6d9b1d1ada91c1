package discord

import (
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/vcbot/internal/bot"
	"github.com/sglre6355/vcbot/internal/modules/playback/domain"
)

// ComponentHandlers handles the control buttons attached to progress messages.
type ComponentHandlers struct {
	playback PlaybackController
}

// NewComponentHandlers creates new ComponentHandlers.
func NewComponentHandlers(playback PlaybackController) *ComponentHandlers {
	return &ComponentHandlers{playback: playback}
}

// Controls lists the custom IDs HandleControl accepts.
func Controls() []string {
	return []string{domain.ControlSeekBack, domain.ControlSeekForward, domain.ControlStop}
}

// HandleControl applies a control button press. Only the requester of the
// playing request may use the controls.
func (h *ComponentHandlers) HandleControl(
	_ *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	guildID, err := snowflake.Parse(i.GuildID)
	if err != nil {
		return respondEphemeral(r, "Invalid guild")
	}
	userID, err := interactionUserID(i)
	if err != nil {
		return respondEphemeral(r, "Invalid user")
	}

	nowPlaying, ok := h.playback.NowPlaying(guildID)
	if !ok {
		return respondEphemeral(r, "Nothing is playing.")
	}
	if nowPlaying.RequesterID != userID {
		return respondEphemeral(r, fmt.Sprintf("Only <@%s> can control this.", nowPlaying.RequesterID))
	}

	switch i.MessageComponentData().CustomID {
	case domain.ControlSeekBack:
		if _, ok := h.playback.RequestSeek(guildID, -domain.SeekStep); !ok {
			return respondEphemeral(r, "The current audio cannot be seeked.")
		}
	case domain.ControlSeekForward:
		if _, ok := h.playback.RequestSeek(guildID, domain.SeekStep); !ok {
			return respondEphemeral(r, "The current audio cannot be seeked.")
		}
	case domain.ControlStop:
		if !h.playback.RequestSkip(guildID) {
			return respondEphemeral(r, "Nothing is playing.")
		}
	default:
		return respondEphemeral(r, "Unknown control")
	}

	// The progress message itself is refreshed by the broadcaster.
	return r.Respond(&discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredMessageUpdate,
	})
}

func interactionUserID(i *discordgo.InteractionCreate) (snowflake.ID, error) {
	if i.Member != nil && i.Member.User != nil {
		return snowflake.Parse(i.Member.User.ID)
	}
	if i.User != nil {
		return snowflake.Parse(i.User.ID)
	}
	return 0, errors.New("interaction has no user")
}

func respondEphemeral(r bot.Responder, message string) error {
	return r.Respond(&discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: message,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
}
