package playback

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/adrg/xdg"
	"github.com/sglre6355/vcbot/internal/bot"
	"github.com/sglre6355/vcbot/internal/modules/playback/presentation/discord"
)

func TestPlaybackModule_LoadConfigDefaults(t *testing.T) {
	m := &PlaybackModule{}
	if err := m.LoadConfig(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg := m.config
	if cfg.AudioBackend != BackendNative {
		t.Errorf("expected backend %q, got %q", BackendNative, cfg.AudioBackend)
	}
	if cfg.FFmpegPath != "ffmpeg" {
		t.Errorf("expected ffmpeg path %q, got %q", "ffmpeg", cfg.FFmpegPath)
	}
	if cfg.OpusBitrate != 128 {
		t.Errorf("expected bitrate 128, got %d", cfg.OpusBitrate)
	}
	if cfg.ResolverWorkers != 6 {
		t.Errorf("expected 6 resolver workers, got %d", cfg.ResolverWorkers)
	}
	if cfg.PollInterval != 500*time.Millisecond {
		t.Errorf("expected poll interval 500ms, got %v", cfg.PollInterval)
	}
	if cfg.ProgressInterval != 15*time.Second || cfg.ProgressEarlyInterval != 5*time.Second {
		t.Errorf("unexpected progress intervals %v/%v", cfg.ProgressInterval, cfg.ProgressEarlyInterval)
	}
	if cfg.DisconnectTimeout != 10*time.Second {
		t.Errorf("expected disconnect timeout 10s, got %v", cfg.DisconnectTimeout)
	}
	if cfg.MaxAttachmentBytes != 25<<20 {
		t.Errorf("expected 25MiB attachment cap, got %d", cfg.MaxAttachmentBytes)
	}
	if cfg.MaxPlaylistEntries != 100 {
		t.Errorf("expected 100 playlist entries, got %d", cfg.MaxPlaylistEntries)
	}
	if got, want := cfg.ScratchDir(), filepath.Join(os.TempDir(), "vcbot"); got != want {
		t.Errorf("expected scratch dir %q, got %q", want, got)
	}
	if got, want := cfg.YtdlpCache(), filepath.Join(xdg.CacheHome, "vcbot", "yt-dlp"); got != want {
		t.Errorf("expected yt-dlp cache %q, got %q", want, got)
	}
}

func TestConfig_DirectoryOverrides(t *testing.T) {
	t.Setenv("PLAYBACK_TEMP_DIR", "/srv/vcbot/scratch")
	t.Setenv("YTDLP_CACHE_DIR", "/srv/vcbot/yt-dlp")

	m := &PlaybackModule{}
	if err := m.LoadConfig(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := m.config.ScratchDir(); got != "/srv/vcbot/scratch" {
		t.Errorf("expected scratch override, got %q", got)
	}
	if got := m.config.YtdlpCache(); got != "/srv/vcbot/yt-dlp" {
		t.Errorf("expected yt-dlp cache override, got %q", got)
	}
}

func TestPlaybackModule_LoadConfigFromEnv(t *testing.T) {
	t.Setenv("AUDIO_BACKEND", "lavalink")
	t.Setenv("LAVALINK_ADDRESS", "localhost:2333")
	t.Setenv("LAVALINK_PASSWORD", "youshallnotpass")
	t.Setenv("LAVALINK_SECURE", "true")
	t.Setenv("PROGRESS_INTERVAL", "30s")

	m := &PlaybackModule{}
	if err := m.LoadConfig(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if m.config.LavalinkAddress != "localhost:2333" || !m.config.LavalinkSecure {
		t.Errorf("unexpected lavalink config %+v", m.config)
	}
	if m.config.ProgressInterval != 30*time.Second {
		t.Errorf("expected progress interval 30s, got %v", m.config.ProgressInterval)
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() Config {
		return Config{
			AudioBackend:       BackendNative,
			OpusBitrate:        128,
			ResolverWorkers:    6,
			MaxPlaylistEntries: 100,
			MaxAttachmentBytes: 1024,
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "native defaults", mutate: func(c *Config) {}},
		{
			name: "lavalink with credentials",
			mutate: func(c *Config) {
				c.AudioBackend = BackendLavalink
				c.LavalinkAddress = "localhost:2333"
				c.LavalinkPassword = "pass"
			},
		},
		{
			name:    "lavalink without credentials",
			mutate:  func(c *Config) { c.AudioBackend = BackendLavalink },
			wantErr: true,
		},
		{
			name:    "unknown backend",
			mutate:  func(c *Config) { c.AudioBackend = "gstreamer" },
			wantErr: true,
		},
		{
			name:    "bitrate out of range",
			mutate:  func(c *Config) { c.OpusBitrate = 1000 },
			wantErr: true,
		},
		{
			name:    "no resolver workers",
			mutate:  func(c *Config) { c.ResolverWorkers = 0 },
			wantErr: true,
		},
		{
			name:    "no playlist entries",
			mutate:  func(c *Config) { c.MaxPlaylistEntries = 0 },
			wantErr: true,
		},
		{
			name:    "no attachment cap",
			mutate:  func(c *Config) { c.MaxAttachmentBytes = 0 },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr && err == nil {
				t.Error("expected error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestPlaybackModule_Commands(t *testing.T) {
	m := &PlaybackModule{}

	names := make(map[string]bool)
	for _, cmd := range m.Commands() {
		names[cmd.Name] = true
	}
	for _, want := range []string{"play", "playfile", "ytsearch", "skip", "leave", "seek", "queue"} {
		if !names[want] {
			t.Errorf("expected command %q to be registered", want)
		}
	}

	handlers := m.CommandHandlers()
	for name := range names {
		if _, ok := handlers[name]; !ok {
			t.Errorf("expected a handler for command %q", name)
		}
	}
}

func TestPlaybackModule_InitRequiresSession(t *testing.T) {
	m := &PlaybackModule{config: &Config{AudioBackend: BackendNative}}
	if err := m.Init(bot.ModuleDependencies{}); err == nil {
		t.Error("expected error without a session, got nil")
	}
}

func TestPlaybackModule_AutocompleteRoutes(t *testing.T) {
	m := &PlaybackModule{}

	handlers := m.AutocompleteHandlers()
	for _, cmd := range m.Commands() {
		for _, opt := range cmd.Options {
			if !opt.Autocomplete {
				continue
			}
			if _, ok := handlers[cmd.Name]; !ok {
				t.Errorf("expected an autocomplete handler for %q", cmd.Name)
			}
		}
	}
	if _, ok := handlers["play"]; !ok {
		t.Error("expected /play to be autocompleted")
	}
}

func TestPlaybackModule_ComponentRoutes(t *testing.T) {
	m := &PlaybackModule{}

	handlers := m.ComponentHandlers()
	want := append([]string{discord.SearchSelectPrefix}, discord.Controls()...)
	for _, prefix := range want {
		if _, ok := handlers[prefix]; !ok {
			t.Errorf("expected a component handler for %q", prefix)
		}
	}
	for prefix := range handlers {
		if strings.Contains(prefix, bot.ComponentIDSeparator) {
			t.Errorf("route %q must not contain %q", prefix, bot.ComponentIDSeparator)
		}
	}
}

func TestPlaybackModule_ShutdownBeforeInit(t *testing.T) {
	m := &PlaybackModule{}
	if err := m.Shutdown(context.Background()); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestPlaybackModule_Registered(t *testing.T) {
	mod, ok := bot.Lookup("playback")
	if !ok {
		t.Fatal("expected playback module in the global registry")
	}
	if _, ok := mod.(*PlaybackModule); !ok {
		t.Errorf("expected *PlaybackModule, got %T", mod)
	}
}
