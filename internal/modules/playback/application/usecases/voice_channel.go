package usecases

import (
	"fmt"

	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/vcbot/internal/modules/playback/application/ports"
)

// VoiceChannelService picks the voice channel a request should play in.
type VoiceChannelService struct {
	voiceState ports.VoiceStateProvider
}

// NewVoiceChannelService creates a new VoiceChannelService.
func NewVoiceChannelService(voiceState ports.VoiceStateProvider) *VoiceChannelService {
	return &VoiceChannelService{
		voiceState: voiceState,
	}
}

// SelectVoiceChannel returns the user's current voice channel, falling back to
// the explicitly requested one when the user is not connected anywhere. The
// user must be allowed to connect and speak in an explicitly requested channel.
func (v *VoiceChannelService) SelectVoiceChannel(input SelectVoiceChannelInput) (snowflake.ID, error) {
	userChannel, err := v.voiceState.GetUserVoiceChannel(input.GuildID, input.UserID)
	if err != nil {
		return 0, fmt.Errorf("failed to look up voice state: %w", err)
	}
	if userChannel != 0 {
		return userChannel, nil
	}
	if input.VoiceChannelID != 0 {
		allowed, err := v.voiceState.CanConnectAndSpeak(input.VoiceChannelID, input.UserID)
		if err != nil {
			return 0, fmt.Errorf("failed to check channel permissions: %w", err)
		}
		if !allowed {
			return 0, ErrNoChannelPermission
		}
		return input.VoiceChannelID, nil
	}
	return 0, ErrUserNotInVoice
}
