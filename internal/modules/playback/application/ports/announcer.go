package ports

import (
	"context"

	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/vcbot/internal/modules/playback/domain"
)

// Announcer posts and edits progress messages.
type Announcer interface {
	// Post sends text to channelID, optionally with seek/stop controls attached.
	Post(ctx context.Context, channelID snowflake.ID, text string, controls bool) (domain.MessageHandle, error)
	// Edit replaces the text of a posted message. controls=false removes the controls.
	Edit(ctx context.Context, msg domain.MessageHandle, text string, controls bool) error
	// SendError posts an error notice to channelID.
	SendError(ctx context.Context, channelID snowflake.ID, message string) error
}
