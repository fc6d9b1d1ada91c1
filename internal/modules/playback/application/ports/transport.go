package ports

import (
	"context"

	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/vcbot/internal/modules/playback/domain"
)

// AudioTransport streams decoded audio into a guild's voice channel.
// All methods are keyed by guild: a guild holds at most one voice connection.
type AudioTransport interface {
	// EnsureConnected connects to the destination channel if not connected.
	EnsureConnected(ctx context.Context, dest domain.Destination) error
	// Move switches an existing connection to another channel of the same guild.
	Move(ctx context.Context, dest domain.Destination) error
	// Disconnect leaves the voice channel. Callers bound it with a context deadline.
	Disconnect(ctx context.Context, guildID snowflake.ID) error

	IsConnected(guildID snowflake.ID) bool
	// ConnectedChannel returns the channel the guild is connected to.
	ConnectedChannel(guildID snowflake.ID) (snowflake.ID, bool)
	IsPlaying(guildID snowflake.ID) bool

	// Start begins streaming src. It fails if another stream is still playing.
	Start(ctx context.Context, guildID snowflake.ID, src DecodedSource) error
	Stop(ctx context.Context, guildID snowflake.ID) error

	// StreamErr returns the error that ended the most recent stream, or nil
	// if it ended cleanly or is still playing.
	StreamErr(guildID snowflake.ID) error
}
