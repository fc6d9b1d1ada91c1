package infrastructure

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/vcbot/internal/modules/playback/application/ports"
	"github.com/sglre6355/vcbot/internal/modules/playback/domain"
)

// Embed colors.
const (
	colorRed = 0xE74C3C
)

// Compile-time check that Notifier implements ports.Announcer.
var _ ports.Announcer = (*Notifier)(nil)

// Notifier posts progress messages to Discord channels.
type Notifier struct {
	session *discordgo.Session
}

// NewNotifier creates a new Notifier.
func NewNotifier(session *discordgo.Session) *Notifier {
	return &Notifier{
		session: session,
	}
}

// Post sends a progress embed and returns its handle.
func (n *Notifier) Post(
	ctx context.Context,
	channelID snowflake.ID,
	text string,
	controls bool,
) (domain.MessageHandle, error) {
	msg, err := n.session.ChannelMessageSendComplex(
		channelID.String(),
		&discordgo.MessageSend{
			Embeds:     []*discordgo.MessageEmbed{progressEmbed(text)},
			Components: controlComponents(controls),
		},
		discordgo.WithContext(ctx),
	)
	if err != nil {
		return domain.MessageHandle{}, fmt.Errorf("failed to send message: %w", err)
	}

	messageID, err := snowflake.Parse(msg.ID)
	if err != nil {
		return domain.MessageHandle{}, err
	}
	return domain.MessageHandle{ChannelID: channelID, MessageID: messageID}, nil
}

// Edit replaces the embed of a progress message. Without controls the buttons are removed.
func (n *Notifier) Edit(ctx context.Context, msg domain.MessageHandle, text string, controls bool) error {
	components := controlComponents(controls)
	if components == nil {
		components = []discordgo.MessageComponent{}
	}

	edit := discordgo.NewMessageEdit(msg.ChannelID.String(), msg.MessageID.String()).
		SetEmbed(progressEmbed(text))
	edit.Components = &components

	if _, err := n.session.ChannelMessageEditComplex(edit, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("failed to edit message: %w", err)
	}
	return nil
}

// SendError sends an error message embed to the channel.
func (n *Notifier) SendError(ctx context.Context, channelID snowflake.ID, message string) error {
	embed := &discordgo.MessageEmbed{
		Description: message,
		Color:       colorRed,
	}

	_, err := n.session.ChannelMessageSendEmbed(channelID.String(), embed, discordgo.WithContext(ctx))
	return err
}

func progressEmbed(text string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Description: text,
		Color:       domain.ParseSourceKind(displayURL(text)).Color(),
	}
}

// displayURL returns the <url> line of a rendered progress message, if any.
func displayURL(text string) string {
	for line := range strings.SplitSeq(text, "\n") {
		if strings.HasPrefix(line, "<") && strings.HasSuffix(line, ">") {
			return strings.TrimSuffix(strings.TrimPrefix(line, "<"), ">")
		}
	}
	return ""
}

// controlComponents returns the seek and stop buttons, or nil without controls.
func controlComponents(controls bool) []discordgo.MessageComponent {
	if !controls {
		return nil
	}
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.Button{
					Label:    fmt.Sprintf("-%ds", int(domain.SeekStep.Seconds())),
					Style:    discordgo.SecondaryButton,
					CustomID: domain.ControlSeekBack,
				},
				discordgo.Button{
					Label:    fmt.Sprintf("+%ds", int(domain.SeekStep.Seconds())),
					Style:    discordgo.SecondaryButton,
					CustomID: domain.ControlSeekForward,
				},
				discordgo.Button{
					Label:    "Stop",
					Style:    discordgo.DangerButton,
					CustomID: domain.ControlStop,
				},
			},
		},
	}
}
