package playback

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Audio backends.
const (
	BackendNative   = "native"
	BackendLavalink = "lavalink"
)

// Config holds the playback module configuration.
type Config struct {
	AudioBackend string `env:"AUDIO_BACKEND" envDefault:"native"`

	LavalinkAddress  string `env:"LAVALINK_ADDRESS"`
	LavalinkPassword string `env:"LAVALINK_PASSWORD"`
	LavalinkSecure   bool   `env:"LAVALINK_SECURE" envDefault:"false"`

	FFmpegPath  string `env:"FFMPEG_PATH" envDefault:"ffmpeg"`
	OpusBitrate int    `env:"OPUS_BITRATE" envDefault:"128"`
	YtdlpProxy  string `env:"YTDLP_PROXY"`
	// YtdlpCacheDir defaults to vcbot/yt-dlp under the XDG cache home.
	YtdlpCacheDir string `env:"YTDLP_CACHE_DIR"`

	ResolverWorkers    int `env:"RESOLVER_WORKERS" envDefault:"6"`
	MaxPlaylistEntries int `env:"MAX_PLAYLIST_ENTRIES" envDefault:"100"`

	// TempDir defaults to vcbot under os.TempDir, so /tmp/vcbot on Linux.
	// Local sources inside it are deleted after playing.
	TempDir            string `env:"PLAYBACK_TEMP_DIR"`
	MaxAttachmentBytes int64  `env:"MAX_ATTACHMENT_BYTES" envDefault:"26214400"`

	PollInterval          time.Duration `env:"PLAYBACK_POLL_INTERVAL" envDefault:"500ms"`
	ProgressInterval      time.Duration `env:"PROGRESS_INTERVAL" envDefault:"15s"`
	ProgressEarlyInterval time.Duration `env:"PROGRESS_EARLY_INTERVAL" envDefault:"5s"`
	DisconnectTimeout     time.Duration `env:"DISCONNECT_TIMEOUT" envDefault:"10s"`
}

// Validate checks settings that depend on each other.
func (c *Config) Validate() error {
	switch c.AudioBackend {
	case BackendNative:
		if c.OpusBitrate < 8 || c.OpusBitrate > 512 {
			return fmt.Errorf("OPUS_BITRATE must be between 8 and 512, got %d", c.OpusBitrate)
		}
	case BackendLavalink:
		if c.LavalinkAddress == "" || c.LavalinkPassword == "" {
			return errors.New("LAVALINK_ADDRESS and LAVALINK_PASSWORD are required for the lavalink backend")
		}
	default:
		return fmt.Errorf("unknown AUDIO_BACKEND %q", c.AudioBackend)
	}
	if c.ResolverWorkers < 1 {
		return fmt.Errorf("RESOLVER_WORKERS must be positive, got %d", c.ResolverWorkers)
	}
	if c.MaxPlaylistEntries < 1 {
		return fmt.Errorf("MAX_PLAYLIST_ENTRIES must be positive, got %d", c.MaxPlaylistEntries)
	}
	if c.MaxAttachmentBytes <= 0 {
		return fmt.Errorf("MAX_ATTACHMENT_BYTES must be positive, got %d", c.MaxAttachmentBytes)
	}
	return nil
}

// ScratchDir returns the configured TempDir or its default.
func (c *Config) ScratchDir() string {
	if c.TempDir != "" {
		return c.TempDir
	}
	return filepath.Join(os.TempDir(), "vcbot")
}

// YtdlpCache returns the configured yt-dlp cache directory or its default.
func (c *Config) YtdlpCache() string {
	if c.YtdlpCacheDir != "" {
		return c.YtdlpCacheDir
	}
	return filepath.Join(xdg.CacheHome, "vcbot", "yt-dlp")
}
