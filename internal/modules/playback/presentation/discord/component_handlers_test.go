package discord

import (
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/sglre6355/vcbot/internal/bot"
	"github.com/sglre6355/vcbot/internal/modules/playback/application/usecases"
	"github.com/sglre6355/vcbot/internal/modules/playback/domain"
)

func componentInteraction(customID, userID string) *discordgo.InteractionCreate {
	return &discordgo.InteractionCreate{
		Interaction: &discordgo.Interaction{
			Type:    discordgo.InteractionMessageComponent,
			GuildID: "100",
			Member:  &discordgo.Member{User: &discordgo.User{ID: userID}},
			Data: discordgo.MessageComponentInteractionData{
				CustomID:      customID,
				ComponentType: discordgo.ButtonComponent,
			},
		},
	}
}

func TestControls_HaveNoRoutingSeparator(t *testing.T) {
	for _, id := range Controls() {
		if strings.Contains(id, bot.ComponentIDSeparator) {
			t.Errorf("control %q must not contain %q", id, bot.ComponentIDSeparator)
		}
	}
}

func TestComponentHandlers_HandleControl(t *testing.T) {
	tests := []struct {
		name          string
		customID      string
		userID        string
		playing       bool
		seekOK        bool
		skipOK        bool
		wantDeltas    []time.Duration
		wantSkips     int
		wantEphemeral bool
	}{
		{
			name:       "seek back",
			customID:   domain.ControlSeekBack,
			userID:     "200",
			playing:    true,
			seekOK:     true,
			wantDeltas: []time.Duration{-domain.SeekStep},
		},
		{
			name:       "seek forward",
			customID:   domain.ControlSeekForward,
			userID:     "200",
			playing:    true,
			seekOK:     true,
			wantDeltas: []time.Duration{domain.SeekStep},
		},
		{
			name:      "stop",
			customID:  domain.ControlStop,
			userID:    "200",
			playing:   true,
			skipOK:    true,
			wantSkips: 1,
		},
		{
			name:          "other user is refused",
			customID:      domain.ControlStop,
			userID:        "999",
			playing:       true,
			skipOK:        true,
			wantEphemeral: true,
		},
		{
			name:          "nothing playing",
			customID:      domain.ControlSeekForward,
			userID:        "200",
			wantEphemeral: true,
		},
		{
			name:          "not seekable",
			customID:      domain.ControlSeekForward,
			userID:        "200",
			playing:       true,
			wantDeltas:    []time.Duration{domain.SeekStep},
			wantEphemeral: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			playback := &mockPlayback{
				isPlaying:  tt.playing,
				nowPlaying: usecases.NowPlayingOutput{RequesterID: 200},
				seekOK:     tt.seekOK,
				skipOK:     tt.skipOK,
			}
			h := NewComponentHandlers(playback)
			r := &bot.MockResponder{}

			if err := h.HandleControl(nil, componentInteraction(tt.customID, tt.userID), r); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if len(playback.seekDeltas) != len(tt.wantDeltas) {
				t.Fatalf("expected seeks %v, got %v", tt.wantDeltas, playback.seekDeltas)
			}
			for idx, d := range tt.wantDeltas {
				if playback.seekDeltas[idx] != d {
					t.Errorf("expected seek %v, got %v", d, playback.seekDeltas[idx])
				}
			}
			if playback.skipCalls != tt.wantSkips {
				t.Errorf("expected %d skips, got %d", tt.wantSkips, playback.skipCalls)
			}

			if r.LastResponse == nil {
				t.Fatal("expected a response")
			}
			if tt.wantEphemeral {
				if r.LastResponse.Data == nil || r.LastResponse.Data.Flags != discordgo.MessageFlagsEphemeral {
					t.Errorf("expected ephemeral refusal, got %+v", r.LastResponse)
				}
			} else if r.LastResponse.Type != discordgo.InteractionResponseDeferredMessageUpdate {
				t.Errorf("expected deferred update, got %v", r.LastResponse.Type)
			}
		})
	}
}
