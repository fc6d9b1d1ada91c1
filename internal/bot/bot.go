package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
)

// ComponentIDSeparator separates the routing prefix of a component custom ID
// from the data the owning module encodes after it.
const ComponentIDSeparator = ":"

// Bot manages the Discord bot lifecycle and module coordination.
type Bot struct {
	config  *Config
	session *discordgo.Session
	modules []Module

	// Interaction routes, filled by buildHandlerMap.
	handlers     map[string]InteractionHandler
	autocomplete map[string]InteractionHandler
	components   map[string]InteractionHandler
}

// NewBot creates a new Bot instance with the given configuration.
func NewBot(cfg *Config) *Bot {
	return &Bot{
		config:       cfg,
		modules:      make([]Module, 0),
		handlers:     make(map[string]InteractionHandler),
		autocomplete: make(map[string]InteractionHandler),
		components:   make(map[string]InteractionHandler),
	}
}

// LoadModules loads modules from the global registry.
func (b *Bot) LoadModules() {
	b.modules = Modules()
}

// Start initializes the bot, connects to Discord, and registers commands.
func (b *Bot) Start() error {
	// Create Discord session
	session, err := discordgo.New("Bot " + b.config.DiscordToken)
	if err != nil {
		return fmt.Errorf("failed to create Discord session: %w", err)
	}
	b.session = session
	b.session.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildVoiceStates

	// Load module configuration before connecting
	if err := b.loadModuleConfigs(); err != nil {
		return fmt.Errorf("failed to load module configuration: %w", err)
	}

	// Open connection. Modules need the bot user from the ready state.
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("failed to open Discord connection: %w", err)
	}

	// Initialize modules
	if err := b.initModules(); err != nil {
		return fmt.Errorf("failed to initialize modules: %w", err)
	}

	// Build handler map
	b.buildHandlerMap()

	// Register interaction handler
	b.session.AddHandler(b.handleInteraction)

	// Register module event handlers
	b.registerEventHandlers()

	// Register commands
	if err := b.registerCommands(); err != nil {
		return fmt.Errorf("failed to register commands: %w", err)
	}

	slog.Info("started bot",
		"user_id", b.session.State.User.ID,
		"username", b.session.State.User.Username,
	)

	return nil
}

// Stop gracefully shuts down the bot. All modules share one deadline of
// Config.ShutdownTimeout; modules shut down in reverse registration order.
func (b *Bot) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), b.shutdownTimeout())
	defer cancel()

	b.shutdownModules(ctx)

	// Close Discord session
	if b.session != nil {
		return b.session.Close()
	}

	return nil
}

func (b *Bot) shutdownTimeout() time.Duration {
	if b.config.ShutdownTimeout > 0 {
		return b.config.ShutdownTimeout
	}
	return DefaultShutdownTimeout
}

// shutdownModules shuts every module down, even after earlier failures.
func (b *Bot) shutdownModules(ctx context.Context) {
	for i := len(b.modules) - 1; i >= 0; i-- {
		mod := b.modules[i]
		if err := mod.Shutdown(ctx); err != nil {
			slog.Warn("failed to shutdown module", "module", mod.Name(), "error", err)
		}
	}
	if err := ctx.Err(); errors.Is(err, context.DeadlineExceeded) {
		slog.Warn("module shutdown exceeded deadline", "timeout", b.shutdownTimeout())
	}
}

// loadModuleConfigs calls LoadConfig on every module that implements ConfigurableModule.
func (b *Bot) loadModuleConfigs() error {
	for _, mod := range b.modules {
		cm, ok := mod.(ConfigurableModule)
		if !ok {
			continue
		}
		if err := cm.LoadConfig(); err != nil {
			return fmt.Errorf("failed to load %s module config: %w", mod.Name(), err)
		}
	}
	return nil
}

// initModules initializes all loaded modules.
func (b *Bot) initModules() error {
	deps := ModuleDependencies{
		Session: b.session,
	}

	for _, mod := range b.modules {
		if err := mod.Init(deps); err != nil {
			return fmt.Errorf("failed to initialize %s module: %w", mod.Name(), err)
		}
		slog.Debug("initialized module", "module", mod.Name())
	}

	moduleNames := make([]string, len(b.modules))
	for i, mod := range b.modules {
		moduleNames[i] = mod.Name()
	}
	slog.Info("initialized modules", "modules", moduleNames)

	return nil
}

// buildHandlerMap builds the interaction routes of all modules. When two
// modules claim the same route, the first registered module keeps it.
func (b *Bot) buildHandlerMap() {
	for _, mod := range b.modules {
		addRoutes(b.handlers, mod.Name(), "command", mod.CommandHandlers())
		if am, ok := mod.(AutocompleteModule); ok {
			addRoutes(b.autocomplete, mod.Name(), "autocomplete", am.AutocompleteHandlers())
		}
		if cm, ok := mod.(ComponentModule); ok {
			addRoutes(b.components, mod.Name(), "component", cm.ComponentHandlers())
		}
	}
}

func addRoutes(dst map[string]InteractionHandler, module, kind string, src map[string]InteractionHandler) {
	for key, handler := range src {
		if _, taken := dst[key]; taken {
			slog.Warn("ignored duplicate interaction route", "module", module, "kind", kind, "route", key)
			continue
		}
		dst[key] = handler
	}
}

// registerEventHandlers registers all module event handlers with the session.
func (b *Bot) registerEventHandlers() {
	for _, mod := range b.modules {
		for _, handler := range mod.EventHandlers() {
			b.session.AddHandler(handler)
		}
	}
}

// collectCommands gathers all commands from loaded modules.
func (b *Bot) collectCommands() []*discordgo.ApplicationCommand {
	var commands []*discordgo.ApplicationCommand
	for _, mod := range b.modules {
		commands = append(commands, mod.Commands()...)
	}
	return commands
}

// registerCommands registers all module commands with Discord.
func (b *Bot) registerCommands() error {
	commands := b.collectCommands()

	for _, cmd := range commands {
		_, err := b.session.ApplicationCommandCreate(
			b.session.State.User.ID,
			b.config.CommandGuildID, // Empty string registers commands globally
			cmd,
		)
		if err != nil {
			return fmt.Errorf("failed to register command %s: %w", cmd.Name, err)
		}
		slog.Debug("registered command", "command", cmd.Name)
	}

	return nil
}

// Embed colors for responses.
const (
	colorYellow = 0xFFFF00
	colorRed    = 0xFF0000
)

// handleInteraction routes incoming interactions to the appropriate handler.
func (b *Bot) handleInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	b.dispatch(s, i, NewDiscordResponder(s, i.Interaction))
}

// dispatch runs the handler registered for the interaction.
func (b *Bot) dispatch(s *discordgo.Session, i *discordgo.InteractionCreate, r Responder) {
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		cmdName := i.ApplicationCommandData().Name
		handler, ok := b.handlers[cmdName]
		if !ok {
			slog.Warn("found no handler for command", "command", cmdName)
			respondWithEmbed(r, "Unknown Command", "This command is not recognized.", colorYellow)
			return
		}
		if err := handler(s, i, r); err != nil {
			slog.Error("failed to handle command", "command", cmdName, "error", err)
			respondWithEmbed(r, "Error", "An error occurred while processing your command.", colorRed)
		}

	case discordgo.InteractionApplicationCommandAutocomplete:
		cmdName := i.ApplicationCommandData().Name
		handler, ok := b.autocomplete[cmdName]
		if !ok {
			return
		}
		if err := handler(s, i, r); err != nil {
			slog.Warn("failed to handle autocomplete", "command", cmdName, "error", err)
		}

	case discordgo.InteractionMessageComponent:
		customID := i.MessageComponentData().CustomID
		prefix, _, _ := strings.Cut(customID, ComponentIDSeparator)
		handler, ok := b.components[prefix]
		if !ok {
			slog.Debug("found no handler for component", "custom_id", customID)
			return
		}
		if err := handler(s, i, r); err != nil {
			slog.Error("failed to handle component", "custom_id", customID, "error", err)
		}
	}
}

// respondWithEmbed sends an embed response to an interaction.
func respondWithEmbed(r Responder, title, description string, color int) {
	err := r.Respond(&discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{
				{
					Title:       title,
					Description: description,
					Color:       color,
				},
			},
		},
	})
	if err != nil {
		slog.Error("failed to send embed response", "error", err)
	}
}
