package bot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
)

func TestNewBot(t *testing.T) {
	cfg := &Config{
		DiscordToken: "test-token",
	}

	b := NewBot(cfg)

	if b == nil {
		t.Fatal("expected bot to be created, got nil")
	}
	if b.config != cfg {
		t.Error("expected config to be stored")
	}
}

func TestBot_LoadModules_InitializesModules(t *testing.T) {
	cfg := &Config{DiscordToken: "test-token"}
	b := NewBot(cfg)

	initCalled := false
	mod := &stubModule{
		name:    "test",
		initErr: nil,
	}
	// Track if Init was called by wrapping
	origMod := mod
	b.modules = []Module{origMod}

	// Use a custom stub that tracks init
	trackingMod := &trackingStubModule{
		stubModule: stubModule{name: "tracking"},
		initCalled: &initCalled,
	}
	b.modules = []Module{trackingMod}

	err := b.initModules()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !initCalled {
		t.Error("expected Init to be called")
	}
}

func TestBot_LoadModules_ReturnsInitError(t *testing.T) {
	cfg := &Config{DiscordToken: "test-token"}
	b := NewBot(cfg)

	expectedErr := errors.New("init failed")
	mod := &stubModule{
		name:    "failing",
		initErr: expectedErr,
	}
	b.modules = []Module{mod}

	err := b.initModules()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !errors.Is(err, expectedErr) {
		t.Errorf("expected error %v, got %v", expectedErr, err)
	}
}

func TestBot_BuildHandlerMap(t *testing.T) {
	cfg := &Config{DiscordToken: "test-token"}
	b := NewBot(cfg)

	handler := func(s *discordgo.Session, i *discordgo.InteractionCreate, r Responder) error {
		return nil
	}

	mod := &stubModule{
		name: "test",
		handlers: map[string]InteractionHandler{
			"ping": handler,
		},
	}
	b.modules = []Module{mod}

	b.buildHandlerMap()

	if _, ok := b.handlers["ping"]; !ok {
		t.Error("expected ping handler to be registered")
	}
}

func TestBot_BuildHandlerMap_MultipleModules(t *testing.T) {
	cfg := &Config{DiscordToken: "test-token"}
	b := NewBot(cfg)

	handler1 := func(s *discordgo.Session, i *discordgo.InteractionCreate, r Responder) error {
		return nil
	}
	handler2 := func(s *discordgo.Session, i *discordgo.InteractionCreate, r Responder) error {
		return nil
	}

	mod1 := &stubModule{
		name: "mod1",
		handlers: map[string]InteractionHandler{
			"cmd1": handler1,
		},
	}
	mod2 := &stubModule{
		name: "mod2",
		handlers: map[string]InteractionHandler{
			"cmd2": handler2,
		},
	}
	b.modules = []Module{mod1, mod2}

	b.buildHandlerMap()

	if len(b.handlers) != 2 {
		t.Errorf("expected 2 handlers, got %d", len(b.handlers))
	}
}

func TestBot_CollectCommands(t *testing.T) {
	cfg := &Config{DiscordToken: "test-token"}
	b := NewBot(cfg)

	cmd := &discordgo.ApplicationCommand{
		Name:        "ping",
		Description: "Ping command",
	}

	mod := &stubModule{
		name:     "test",
		commands: []*discordgo.ApplicationCommand{cmd},
	}
	b.modules = []Module{mod}

	commands := b.collectCommands()

	if len(commands) != 1 {
		t.Fatalf("expected 1 command, got %d", len(commands))
	}
	if commands[0].Name != "ping" {
		t.Errorf("expected command name %q, got %q", "ping", commands[0].Name)
	}
}

// trackingStubModule is a stub that tracks if Init was called
type trackingStubModule struct {
	stubModule
	initCalled *bool
}

func (m *trackingStubModule) Init(deps ModuleDependencies) error {
	*m.initCalled = true
	return m.stubModule.Init(deps)
}

// configurableStubModule is a stub that implements ConfigurableModule
type configurableStubModule struct {
	stubModule
	loadCalled bool
	loadErr    error
}

func (m *configurableStubModule) LoadConfig() error {
	m.loadCalled = true
	return m.loadErr
}

func TestBot_LoadModuleConfigs(t *testing.T) {
	b := NewBot(&Config{DiscordToken: "test-token"})

	plain := &stubModule{name: "plain"}
	configurable := &configurableStubModule{stubModule: stubModule{name: "configurable"}}
	b.modules = []Module{plain, configurable}

	if err := b.loadModuleConfigs(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !configurable.loadCalled {
		t.Error("expected LoadConfig to be called")
	}
}

func TestBot_LoadModuleConfigs_ReturnsError(t *testing.T) {
	b := NewBot(&Config{DiscordToken: "test-token"})

	expectedErr := errors.New("missing setting")
	b.modules = []Module{&configurableStubModule{
		stubModule: stubModule{name: "configurable"},
		loadErr:    expectedErr,
	}}

	err := b.loadModuleConfigs()
	if !errors.Is(err, expectedErr) {
		t.Errorf("expected error %v, got %v", expectedErr, err)
	}
}

func TestBot_InitModules_PassesSession(t *testing.T) {
	b := NewBot(&Config{DiscordToken: "test-token"})
	b.session = &discordgo.Session{}

	var got ModuleDependencies
	b.modules = []Module{&depsRecordingModule{stubModule: stubModule{name: "deps"}, deps: &got}}

	if err := b.initModules(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Session != b.session {
		t.Error("expected the bot session to be passed to modules")
	}
}

// depsRecordingModule records the dependencies passed to Init
type depsRecordingModule struct {
	stubModule
	deps *ModuleDependencies
}

func (m *depsRecordingModule) Init(deps ModuleDependencies) error {
	*m.deps = deps
	return nil
}

// routedStubModule is a stub that also provides autocomplete and component handlers
type routedStubModule struct {
	stubModule
	autocomplete map[string]InteractionHandler
	components   map[string]InteractionHandler
}

func (m *routedStubModule) AutocompleteHandlers() map[string]InteractionHandler {
	return m.autocomplete
}

func (m *routedStubModule) ComponentHandlers() map[string]InteractionHandler {
	return m.components
}

// recordingHandler returns a handler that records its calls under name.
func recordingHandler(calls *[]string, name string, err error) InteractionHandler {
	return func(s *discordgo.Session, i *discordgo.InteractionCreate, r Responder) error {
		*calls = append(*calls, name)
		return err
	}
}

func TestBot_BuildHandlerMap_FirstModuleKeepsRoute(t *testing.T) {
	b := NewBot(&Config{DiscordToken: "test-token"})

	var calls []string
	b.modules = []Module{
		&stubModule{name: "first", handlers: map[string]InteractionHandler{
			"play": recordingHandler(&calls, "first", nil),
		}},
		&stubModule{name: "second", handlers: map[string]InteractionHandler{
			"play": recordingHandler(&calls, "second", nil),
		}},
	}
	b.buildHandlerMap()

	if err := b.handlers["play"](nil, nil, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(calls) != 1 || calls[0] != "first" {
		t.Errorf("expected the first module to keep the route, got %v", calls)
	}
}

func TestBot_Dispatch(t *testing.T) {
	var calls []string
	b := NewBot(&Config{DiscordToken: "test-token"})
	b.modules = []Module{&routedStubModule{
		stubModule: stubModule{name: "playback", handlers: map[string]InteractionHandler{
			"play":   recordingHandler(&calls, "command play", nil),
			"broken": recordingHandler(&calls, "command broken", errors.New("boom")),
		}},
		autocomplete: map[string]InteractionHandler{
			"play": recordingHandler(&calls, "autocomplete play", nil),
		},
		components: map[string]InteractionHandler{
			"search": recordingHandler(&calls, "component search", nil),
			"stop":   recordingHandler(&calls, "component stop", nil),
		},
	}}
	b.buildHandlerMap()

	command := func(typ discordgo.InteractionType, name string) *discordgo.InteractionCreate {
		return &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
			Type: typ,
			Data: discordgo.ApplicationCommandInteractionData{Name: name},
		}}
	}
	component := func(customID string) *discordgo.InteractionCreate {
		return &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
			Type: discordgo.InteractionMessageComponent,
			Data: discordgo.MessageComponentInteractionData{CustomID: customID},
		}}
	}

	tests := []struct {
		name      string
		i         *discordgo.InteractionCreate
		wantCall  string
		wantEmbed string
	}{
		{name: "command", i: command(discordgo.InteractionApplicationCommand, "play"), wantCall: "command play"},
		{name: "unknown command", i: command(discordgo.InteractionApplicationCommand, "nope"), wantEmbed: "Unknown Command"},
		{name: "failing command", i: command(discordgo.InteractionApplicationCommand, "broken"), wantCall: "command broken", wantEmbed: "Error"},
		{name: "autocomplete", i: command(discordgo.InteractionApplicationCommandAutocomplete, "play"), wantCall: "autocomplete play"},
		{name: "autocomplete without handler", i: command(discordgo.InteractionApplicationCommandAutocomplete, "skip")},
		{name: "component with data", i: component("search:200:true:0"), wantCall: "component search"},
		{name: "component without data", i: component("stop"), wantCall: "component stop"},
		{name: "unknown component", i: component("other:1")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls = nil
			r := &MockResponder{}

			b.dispatch(nil, tt.i, r)

			if tt.wantCall == "" && len(calls) != 0 {
				t.Errorf("expected no handler call, got %v", calls)
			}
			if tt.wantCall != "" && (len(calls) != 1 || calls[0] != tt.wantCall) {
				t.Errorf("expected call %q, got %v", tt.wantCall, calls)
			}
			if tt.wantEmbed == "" {
				if r.LastResponse != nil {
					t.Errorf("expected no fallback response, got %+v", r.LastResponse)
				}
				return
			}
			if r.LastResponse == nil || len(r.LastResponse.Data.Embeds) == 0 {
				t.Fatal("expected a fallback embed")
			}
			if got := r.LastResponse.Data.Embeds[0].Title; got != tt.wantEmbed {
				t.Errorf("expected embed %q, got %q", tt.wantEmbed, got)
			}
		})
	}
}

func TestBot_Stop_SharesDeadlineInReverseOrder(t *testing.T) {
	b := NewBot(&Config{DiscordToken: "test-token", ShutdownTimeout: time.Minute})

	var order []string
	var firstCtx, secondCtx context.Context
	b.modules = []Module{
		&stubModule{name: "first", shutdownLog: &order, shutdownCtx: &firstCtx},
		&stubModule{name: "second", shutdownLog: &order, shutdownCtx: &secondCtx, shutErr: errors.New("boom")},
	}

	if err := b.Stop(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(order) != 2 || order[0] != "second" || order[1] != "first" {
		t.Errorf("expected reverse shutdown order, got %v", order)
	}
	deadline, ok := firstCtx.Deadline()
	if !ok {
		t.Fatal("expected shutdown context to carry a deadline")
	}
	if remaining := time.Until(deadline); remaining <= 0 || remaining > time.Minute {
		t.Errorf("expected deadline within the configured timeout, got %v", remaining)
	}
	if secondDeadline, _ := secondCtx.Deadline(); !secondDeadline.Equal(deadline) {
		t.Errorf("expected modules to share one deadline, got %v and %v", secondDeadline, deadline)
	}
}
