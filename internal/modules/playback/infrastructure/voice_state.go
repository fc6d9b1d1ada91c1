package infrastructure

import (
	"errors"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/vcbot/internal/modules/playback/application/ports"
)

// voicePermissions are the permissions needed to play in a channel.
const voicePermissions = discordgo.PermissionVoiceConnect | discordgo.PermissionVoiceSpeak

// channelPermissionsFunc computes a user's permissions in a channel.
type channelPermissionsFunc func(userID, channelID string) (int64, error)

// VoiceStateProvider provides Discord voice state information from the session cache.
type VoiceStateProvider struct {
	state       *discordgo.State
	permissions channelPermissionsFunc
}

// NewVoiceStateProvider creates a new VoiceStateProvider. Permission lookups
// fall back to the REST API for members missing from the cache.
func NewVoiceStateProvider(session *discordgo.Session) *VoiceStateProvider {
	return &VoiceStateProvider{
		state: session.State,
		permissions: func(userID, channelID string) (int64, error) {
			return session.UserChannelPermissions(userID, channelID)
		},
	}
}

// GetUserVoiceChannel returns the voice channel ID that the user is currently in.
// Returns 0 if the user is not in a voice channel.
func (v *VoiceStateProvider) GetUserVoiceChannel(
	guildID, userID snowflake.ID,
) (snowflake.ID, error) {
	vs, err := v.state.VoiceState(guildID.String(), userID.String())
	if errors.Is(err, discordgo.ErrStateNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if vs.ChannelID == "" {
		return 0, nil
	}
	return snowflake.Parse(vs.ChannelID)
}

// CanConnectAndSpeak reports whether the user holds both the connect and speak
// permissions in channelID.
func (v *VoiceStateProvider) CanConnectAndSpeak(channelID, userID snowflake.ID) (bool, error) {
	perms, err := v.permissions(userID.String(), channelID.String())
	if err != nil {
		return false, err
	}
	return perms&voicePermissions == voicePermissions, nil
}

// Ensure VoiceStateProvider implements ports.VoiceStateProvider.
var _ ports.VoiceStateProvider = (*VoiceStateProvider)(nil)
