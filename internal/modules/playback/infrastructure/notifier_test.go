package infrastructure

import (
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/sglre6355/vcbot/internal/modules/playback/domain"
)

func TestControlComponents(t *testing.T) {
	if got := controlComponents(false); got != nil {
		t.Errorf("expected no components, got %v", got)
	}

	rows := controlComponents(true)
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	row, ok := rows[0].(discordgo.ActionsRow)
	if !ok {
		t.Fatalf("expected ActionsRow, got %T", rows[0])
	}

	want := []struct {
		id    string
		label string
	}{
		{domain.ControlSeekBack, "-10s"},
		{domain.ControlSeekForward, "+10s"},
		{domain.ControlStop, "Stop"},
	}
	if len(row.Components) != len(want) {
		t.Fatalf("expected %d buttons, got %d", len(want), len(row.Components))
	}
	for i, w := range want {
		b, ok := row.Components[i].(discordgo.Button)
		if !ok {
			t.Fatalf("expected Button, got %T", row.Components[i])
		}
		if b.CustomID != w.id || b.Label != w.label {
			t.Errorf("expected button %s/%s, got %s/%s", w.id, w.label, b.CustomID, b.Label)
		}
	}
}

func TestProgressEmbed(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		wantColor int
	}{
		{
			name:      "youtube",
			text:      domain.RenderProgress(0, 0, "Song", "https://www.youtube.com/watch?v=x", false, false),
			wantColor: domain.SourceYouTube.Color(),
		},
		{
			name:      "twitch",
			text:      domain.RenderProgress(0, 0, "Live", "https://www.twitch.tv/x", false, true),
			wantColor: domain.SourceTwitch.Color(),
		},
		{
			name:      "no url",
			text:      domain.RenderProgress(0, 0, "Local", "", false, false),
			wantColor: domain.SourceOther.Color(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			embed := progressEmbed(tt.text)
			if embed.Description != tt.text {
				t.Errorf("expected description to be the rendered text, got %q", embed.Description)
			}
			if embed.Color != tt.wantColor {
				t.Errorf("expected color %#x, got %#x", tt.wantColor, embed.Color)
			}
		})
	}
}
