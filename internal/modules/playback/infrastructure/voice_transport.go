package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"
	"github.com/jonas747/dca"
	"github.com/sglre6355/vcbot/internal/modules/playback/application/ports"
	"github.com/sglre6355/vcbot/internal/modules/playback/domain"
)

var (
	// ErrNotConnected is returned when a guild has no voice connection.
	ErrNotConnected = errors.New("not connected to voice")
	// ErrAlreadyPlaying is returned by Start while a stream is still playing.
	ErrAlreadyPlaying = errors.New("already playing")
	// ErrUnsupportedSource is returned when a source cannot produce Opus frames.
	ErrUnsupportedSource = errors.New("unsupported decoded source")
)

// Compile-time check that VoiceTransport implements ports.AudioTransport.
var _ ports.AudioTransport = (*VoiceTransport)(nil)

// voiceStream is one dca streaming session. Stopping it makes the next frame
// read return io.EOF, which ends the dca stream within one frame.
type voiceStream struct {
	src      OpusSource
	stopped  atomic.Bool
	done     chan error
	finished chan struct{}
}

func (s *voiceStream) OpusFrame() ([]byte, error) {
	if s.stopped.Load() {
		return nil, io.EOF
	}
	return s.src.OpusFrame()
}

func (s *voiceStream) isFinished() bool {
	select {
	case <-s.finished:
		return true
	default:
		return false
	}
}

// voiceGuild is the voice state of one guild.
type voiceGuild struct {
	vc        *discordgo.VoiceConnection
	stream    *voiceStream
	streamErr error
}

// VoiceTransport streams Opus audio over discordgo voice connections.
type VoiceTransport struct {
	session *discordgo.Session
	botID   string

	mu     sync.Mutex
	guilds map[snowflake.ID]*voiceGuild
}

// NewVoiceTransport creates a new VoiceTransport. The session must be open.
func NewVoiceTransport(session *discordgo.Session) *VoiceTransport {
	return &VoiceTransport{
		session: session,
		botID:   session.State.User.ID,
		guilds:  make(map[snowflake.ID]*voiceGuild),
	}
}

// EnsureConnected joins the destination channel if the guild has no connection.
func (t *VoiceTransport) EnsureConnected(ctx context.Context, dest domain.Destination) error {
	if t.IsConnected(dest.GuildID) {
		return nil
	}

	type result struct {
		vc  *discordgo.VoiceConnection
		err error
	}
	joined := make(chan result, 1)
	go func() {
		vc, err := t.session.ChannelVoiceJoin(dest.GuildID.String(), dest.ChannelID.String(), false, true)
		joined <- result{vc: vc, err: err}
	}()

	select {
	case r := <-joined:
		if r.err != nil {
			return fmt.Errorf("failed to join voice channel: %w", r.err)
		}
		t.mu.Lock()
		t.guilds[dest.GuildID] = &voiceGuild{vc: r.vc}
		t.mu.Unlock()
		slog.Debug("joined voice channel", "guild", dest.GuildID, "channel", dest.ChannelID)
		return nil
	case <-ctx.Done():
		// Release a connection that completes after we gave up.
		go func() {
			if r := <-joined; r.err == nil {
				_ = r.vc.Disconnect()
			}
		}()
		return fmt.Errorf("context cancelled while joining voice channel: %w", ctx.Err())
	}
}

// Move switches the guild's connection to dest.ChannelID.
func (t *VoiceTransport) Move(_ context.Context, dest domain.Destination) error {
	g := t.guild(dest.GuildID)
	if g == nil {
		return ErrNotConnected
	}
	if err := g.vc.ChangeChannel(dest.ChannelID.String(), false, true); err != nil {
		return fmt.Errorf("failed to change voice channel: %w", err)
	}
	return nil
}

// Disconnect stops any stream and leaves the guild's voice channel.
func (t *VoiceTransport) Disconnect(ctx context.Context, guildID snowflake.ID) error {
	t.mu.Lock()
	g := t.guilds[guildID]
	delete(t.guilds, guildID)
	t.mu.Unlock()

	if g == nil {
		return nil
	}
	if g.stream != nil {
		g.stream.stopped.Store(true)
	}

	done := make(chan error, 1)
	go func() { done <- g.vc.Disconnect() }()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("failed to disconnect: %w", err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("timed out disconnecting: %w", ctx.Err())
	}
}

// IsConnected reports whether the guild has a ready voice connection.
func (t *VoiceTransport) IsConnected(guildID snowflake.ID) bool {
	g := t.guild(guildID)
	if g == nil {
		return false
	}
	g.vc.RLock()
	defer g.vc.RUnlock()
	return g.vc.Ready
}

// ConnectedChannel returns the channel the guild is connected to.
func (t *VoiceTransport) ConnectedChannel(guildID snowflake.ID) (snowflake.ID, bool) {
	g := t.guild(guildID)
	if g == nil {
		return 0, false
	}
	g.vc.RLock()
	channelID := g.vc.ChannelID
	g.vc.RUnlock()

	id, err := snowflake.Parse(channelID)
	if err != nil {
		return 0, false
	}
	return id, true
}

// IsPlaying reports whether a stream is still sending frames.
func (t *VoiceTransport) IsPlaying(guildID snowflake.ID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	g := t.guilds[guildID]
	return g != nil && g.stream != nil && !g.stream.isFinished()
}

// Start streams src to the guild's voice connection.
func (t *VoiceTransport) Start(_ context.Context, guildID snowflake.ID, src ports.DecodedSource) error {
	opus, ok := src.(OpusSource)
	if !ok {
		return fmt.Errorf("%w: %T", ErrUnsupportedSource, src)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	g := t.guilds[guildID]
	if g == nil {
		return ErrNotConnected
	}
	if g.stream != nil && !g.stream.isFinished() {
		return ErrAlreadyPlaying
	}

	if err := g.vc.Speaking(true); err != nil {
		slog.Debug("failed to set speaking state", "guild", guildID, "error", err)
	}

	stream := &voiceStream{
		src:      opus,
		done:     make(chan error, 1),
		finished: make(chan struct{}),
	}
	g.stream = stream
	g.streamErr = nil
	dca.NewStream(stream, g.vc, stream.done)

	go t.watch(guildID, g, stream)
	return nil
}

// watch records how a stream ended.
func (t *VoiceTransport) watch(guildID snowflake.ID, g *voiceGuild, stream *voiceStream) {
	err := <-stream.done
	if errors.Is(err, io.EOF) || stream.stopped.Load() {
		err = nil
	}

	t.mu.Lock()
	if g.stream == stream {
		g.streamErr = err
	}
	t.mu.Unlock()
	close(stream.finished)

	if err != nil {
		slog.Warn("voice stream failed", "guild", guildID, "error", err)
	}
	if serr := g.vc.Speaking(false); serr != nil {
		slog.Debug("failed to clear speaking state", "guild", guildID, "error", serr)
	}
}

// Stop ends the current stream and releases its source.
func (t *VoiceTransport) Stop(_ context.Context, guildID snowflake.ID) error {
	t.mu.Lock()
	g := t.guilds[guildID]
	var stream *voiceStream
	if g != nil {
		stream = g.stream
	}
	t.mu.Unlock()

	if stream == nil {
		return nil
	}
	stream.stopped.Store(true)
	return stream.src.Close()
}

// StreamErr returns the error that ended the guild's last stream.
func (t *VoiceTransport) StreamErr(guildID snowflake.ID) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if g := t.guilds[guildID]; g != nil {
		return g.streamErr
	}
	return nil
}

// OnVoiceStateUpdate forgets a guild's connection when the bot is removed from voice.
// This must be called from the Discord event handler.
func (t *VoiceTransport) OnVoiceStateUpdate(event *discordgo.VoiceStateUpdate) {
	if event.UserID != t.botID || event.ChannelID != "" {
		return
	}

	guildID, err := snowflake.Parse(event.GuildID)
	if err != nil {
		slog.Error("failed to parse guild ID in voice state update", "error", err)
		return
	}

	t.mu.Lock()
	g := t.guilds[guildID]
	delete(t.guilds, guildID)
	t.mu.Unlock()

	if g == nil {
		return
	}
	if g.stream != nil {
		g.stream.stopped.Store(true)
	}
	slog.Info("removed from voice channel", "guild", guildID)
}

// Close disconnects every guild.
func (t *VoiceTransport) Close(ctx context.Context) {
	t.mu.Lock()
	ids := make([]snowflake.ID, 0, len(t.guilds))
	for id := range t.guilds {
		ids = append(ids, id)
	}
	t.mu.Unlock()

	for _, id := range ids {
		if err := t.Disconnect(ctx, id); err != nil {
			slog.Warn("failed to disconnect on shutdown", "guild", id, "error", err)
		}
	}
}

func (t *VoiceTransport) guild(guildID snowflake.ID) *voiceGuild {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.guilds[guildID]
}
