package bot

import (
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds the bot configuration loaded from environment variables.
type Config struct {
	DiscordToken string `env:"DISCORD_TOKEN,notEmpty"`

	// LogLevel is parsed with slog.Level.UnmarshalText (debug, info, warn, error).
	LogLevel slog.Level `env:"LOG_LEVEL" envDefault:"info"`

	// CommandGuildID registers commands in one guild instead of globally.
	CommandGuildID string `env:"COMMAND_GUILD_ID"`

	// ShutdownTimeout bounds the shutdown of all modules together.
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"20s"`
}

// DefaultShutdownTimeout applies when the configuration carries no timeout.
const DefaultShutdownTimeout = 20 * time.Second

// LoadConfig loads configuration from environment variables.
// Returns an error if required fields are missing.
func LoadConfig() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
