package ports

import "github.com/disgoorg/snowflake/v2"

// VoiceStateProvider looks up users' voice channels.
type VoiceStateProvider interface {
	// GetUserVoiceChannel returns the voice channel the user is in, or 0 if none.
	GetUserVoiceChannel(guildID, userID snowflake.ID) (snowflake.ID, error)
	// CanConnectAndSpeak reports whether the user may join and speak in channelID.
	CanConnectAndSpeak(channelID, userID snowflake.ID) (bool, error)
}
