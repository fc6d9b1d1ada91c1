package playback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/caarlos0/env/v11"
	"github.com/sglre6355/vcbot/internal/bot"
	"github.com/sglre6355/vcbot/internal/modules/playback/application/events"
	"github.com/sglre6355/vcbot/internal/modules/playback/application/ports"
	"github.com/sglre6355/vcbot/internal/modules/playback/application/usecases"
	"github.com/sglre6355/vcbot/internal/modules/playback/infrastructure"
	"github.com/sglre6355/vcbot/internal/modules/playback/presentation/discord"
)

func init() {
	bot.Register(&PlaybackModule{})
}

// Compile-time interface checks.
var (
	_ bot.ConfigurableModule = (*PlaybackModule)(nil)
	_ bot.AutocompleteModule = (*PlaybackModule)(nil)
	_ bot.ComponentModule    = (*PlaybackModule)(nil)
)

// lavalinkConnectTimeout bounds the initial node connection.
const lavalinkConnectTimeout = 15 * time.Second

// PlaybackModule plays audio in voice channels, one request at a time per guild.
type PlaybackModule struct {
	config            *Config
	service           *usecases.PlaybackService
	commandHandlers   *discord.CommandHandlers
	componentHandlers *discord.ComponentHandlers
	autocomplete      *discord.AutocompleteHandler

	// Exactly one backend is set after Init.
	voiceTransport *infrastructure.VoiceTransport
	lavalink       *infrastructure.LavalinkBackend

	eventBus  *infrastructure.ChannelEventBus
	lifecycle *events.LifecycleLogger
}

// Name returns the module name.
func (m *PlaybackModule) Name() string {
	return "playback"
}

// Commands returns the slash commands for this module.
func (m *PlaybackModule) Commands() []*discordgo.ApplicationCommand {
	return discord.Commands()
}

// CommandHandlers returns the command handlers for this module.
func (m *PlaybackModule) CommandHandlers() map[string]bot.InteractionHandler {
	return map[string]bot.InteractionHandler{
		"play":     m.commandHandlers.HandlePlay,
		"playfile": m.commandHandlers.HandlePlayFile,
		"ytsearch": m.commandHandlers.HandleSearch,
		"skip":     m.commandHandlers.HandleSkip,
		"leave":    m.commandHandlers.HandleLeave,
		"seek":     m.commandHandlers.HandleSeek,
		"queue":    m.commandHandlers.HandleQueue,
	}
}

// AutocompleteHandlers returns the autocomplete handlers for this module.
func (m *PlaybackModule) AutocompleteHandlers() map[string]bot.InteractionHandler {
	return map[string]bot.InteractionHandler{
		"play": m.autocomplete.HandlePlay,
	}
}

// ComponentHandlers returns the message component handlers for this module.
func (m *PlaybackModule) ComponentHandlers() map[string]bot.InteractionHandler {
	handlers := map[string]bot.InteractionHandler{
		discord.SearchSelectPrefix: m.commandHandlers.HandleSearchSelect,
	}
	for _, id := range discord.Controls() {
		handlers[id] = m.componentHandlers.HandleControl
	}
	return handlers
}

// EventHandlers returns the event handlers for this module.
func (m *PlaybackModule) EventHandlers() []bot.EventHandler {
	return []bot.EventHandler{
		func(s *discordgo.Session, event *discordgo.VoiceServerUpdate) {
			m.handleVoiceServerUpdate(s, event)
		},
		func(s *discordgo.Session, event *discordgo.VoiceStateUpdate) {
			m.handleVoiceStateUpdate(s, event)
		},
	}
}

// LoadConfig loads module-specific configuration from environment variables.
func (m *PlaybackModule) LoadConfig() error {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	m.config = cfg
	return nil
}

// Init initializes the module. The session must already be open.
func (m *PlaybackModule) Init(deps bot.ModuleDependencies) error {
	if deps.Session == nil {
		return errors.New("playback module requires a Discord session")
	}
	if m.config == nil {
		if err := m.LoadConfig(); err != nil {
			return err
		}
	}

	tempDir := m.config.ScratchDir()
	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		return fmt.Errorf("failed to create temp dir: %w", err)
	}

	transport, decoder, resolver, err := m.initBackend(deps.Session)
	if err != nil {
		return err
	}

	m.eventBus = infrastructure.NewChannelEventBus(infrastructure.DefaultEventBufferSize)
	m.lifecycle = events.NewLifecycleLogger(m.eventBus, slog.Default().With("module", m.Name()))
	if err := m.lifecycle.Start(); err != nil {
		return err
	}

	notifier := infrastructure.NewNotifier(deps.Session)
	voiceState := infrastructure.NewVoiceStateProvider(deps.Session)
	downloader := infrastructure.NewAttachmentDownloader(tempDir, m.config.MaxAttachmentBytes)

	opts := usecases.DefaultOptions()
	opts.TempDir = tempDir
	opts.PollInterval = m.config.PollInterval
	opts.ProgressInterval = m.config.ProgressInterval
	opts.ProgressEarlyInterval = m.config.ProgressEarlyInterval
	opts.DisconnectTimeout = m.config.DisconnectTimeout

	m.service = usecases.NewPlaybackService(
		usecases.NewPlaybackRegistry(),
		transport,
		decoder,
		resolver,
		notifier,
		m.eventBus,
		opts,
	)
	voiceChannel := usecases.NewVoiceChannelService(voiceState)
	search := usecases.NewSearchService(resolver, m.config.MaxPlaylistEntries)

	m.commandHandlers = discord.NewCommandHandlers(
		m.service,
		voiceChannel,
		resolver,
		search,
		downloader,
		infrastructure.NewTagReader(),
		notifier,
	)
	m.componentHandlers = discord.NewComponentHandlers(m.service)
	m.autocomplete = discord.NewAutocompleteHandler(search)

	slog.Info("playback module initialized",
		"backend", m.config.AudioBackend,
		"temp_dir", tempDir,
	)

	return nil
}

// initBackend builds the transport, decoder and resolver for the configured backend.
func (m *PlaybackModule) initBackend(
	session *discordgo.Session,
) (ports.AudioTransport, ports.StreamDecoder, *infrastructure.BoundedResolver, error) {
	switch m.config.AudioBackend {
	case BackendLavalink:
		ctx, cancel := context.WithTimeout(context.Background(), lavalinkConnectTimeout)
		defer cancel()

		backend, err := infrastructure.NewLavalinkBackend(ctx, session, infrastructure.LavalinkConfig{
			Address:  m.config.LavalinkAddress,
			Password: m.config.LavalinkPassword,
			Secure:   m.config.LavalinkSecure,
		})
		if err != nil {
			return nil, nil, nil, err
		}
		m.lavalink = backend

		resolver := infrastructure.NewBoundedResolver(backend, m.config.ResolverWorkers)
		return backend, backend, resolver, nil

	default:
		m.voiceTransport = infrastructure.NewVoiceTransport(session)
		decoder := infrastructure.NewFFmpegDecoder(m.config.FFmpegPath, m.config.OpusBitrate)
		resolver := infrastructure.NewBoundedResolver(
			infrastructure.NewYtdlpResolver(nil, m.config.YtdlpProxy, m.config.YtdlpCache()),
			m.config.ResolverWorkers,
		)
		return m.voiceTransport, decoder, resolver, nil
	}
}

// Shutdown cleans up module resources before ctx expires.
func (m *PlaybackModule) Shutdown(ctx context.Context) error {
	var errs []error

	// Runners must finalize before the bus and transport close.
	if m.service != nil {
		if err := m.service.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	if m.eventBus != nil {
		m.eventBus.Close()
	}

	if m.voiceTransport != nil {
		m.voiceTransport.Close(ctx)
	}

	if m.lavalink != nil {
		m.lavalink.Close()
	}

	return errors.Join(errs...)
}

// Event handlers.

func (m *PlaybackModule) handleVoiceServerUpdate(
	_ *discordgo.Session,
	event *discordgo.VoiceServerUpdate,
) {
	if m.lavalink != nil {
		m.lavalink.OnVoiceServerUpdate(event)
	}
}

func (m *PlaybackModule) handleVoiceStateUpdate(
	_ *discordgo.Session,
	event *discordgo.VoiceStateUpdate,
) {
	if m.lavalink != nil {
		m.lavalink.OnVoiceStateUpdate(event)
	}
	if m.voiceTransport != nil {
		m.voiceTransport.OnVoiceStateUpdate(event)
	}
}
