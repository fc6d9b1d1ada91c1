package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/disgolink/v3/disgolink"
	"github.com/disgoorg/disgolink/v3/lavalink"
	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/vcbot/internal/modules/playback/application/ports"
	"github.com/sglre6355/vcbot/internal/modules/playback/domain"
)

const (
	// voiceConnectionTimeout is the maximum time to wait for voice connection to be established.
	voiceConnectionTimeout = 10 * time.Second

	// encodedTrackPrefix marks a playable URL that is an already loaded track.
	encodedTrackPrefix   = "lavalink-track:"
	lavalinkSearchPrefix = "ytsearch:"
)

var (
	// ErrNoLavalinkNode is returned when no Lavalink node is available.
	ErrNoLavalinkNode = errors.New("no available Lavalink node")
	// ErrNoTracks is returned when Lavalink finds nothing for a source.
	ErrNoTracks = errors.New("no tracks found")
)

// pendingVoiceConnection tracks the state of a pending voice connection.
type pendingVoiceConnection struct {
	mu             sync.Mutex
	hasVoiceState  bool
	hasVoiceServer bool
	ready          chan struct{}
}

// onEvent marks an event as received and signals ready if both events are present.
func (p *pendingVoiceConnection) onEvent(isVoiceState bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if isVoiceState {
		p.hasVoiceState = true
	} else {
		p.hasVoiceServer = true
	}

	if p.hasVoiceState && p.hasVoiceServer {
		select {
		case <-p.ready:
		default:
			close(p.ready)
		}
	}
}

// voiceEventBuffer holds voice events until both VoiceStateUpdate and
// VoiceServerUpdate arrived, so Lavalink never sees a partial voice state.
type voiceEventBuffer struct {
	hasVoiceState bool
	channelID     *snowflake.ID
	sessionID     string

	hasVoiceServer bool
	token          string
	endpoint       string
}

func (b *voiceEventBuffer) complete() bool {
	return b.hasVoiceState && b.hasVoiceServer
}

// lavalinkSource is a track loaded on the Lavalink node.
type lavalinkSource struct {
	encoded string
	offset  time.Duration
}

// Close is a no-op; the node owns the decoder.
func (s *lavalinkSource) Close() error { return nil }

// lavalinkGuild is the playback state of one guild.
type lavalinkGuild struct {
	channelID snowflake.ID
	playing   bool
	streamErr error
}

// LavalinkConfig contains Lavalink connection configuration.
type LavalinkConfig struct {
	Address  string
	Password string
	Secure   bool
}

// LavalinkBackend wraps DisGoLink as transport, decoder and resolver: the node
// fetches and decodes sources itself and streams them to Discord.
type LavalinkBackend struct {
	link    disgolink.Client
	session *discordgo.Session
	botID   snowflake.ID

	mu      sync.Mutex
	guilds  map[snowflake.ID]*lavalinkGuild
	pending map[snowflake.ID]*pendingVoiceConnection
	buffers map[snowflake.ID]*voiceEventBuffer
}

// NewLavalinkBackend creates a new LavalinkBackend and connects to the node.
// The session must be open.
func NewLavalinkBackend(
	ctx context.Context,
	session *discordgo.Session,
	config LavalinkConfig,
) (*LavalinkBackend, error) {
	botID, err := snowflake.Parse(session.State.User.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to parse bot ID: %w", err)
	}

	b := &LavalinkBackend{
		session: session,
		botID:   botID,
		guilds:  make(map[snowflake.ID]*lavalinkGuild),
		pending: make(map[snowflake.ID]*pendingVoiceConnection),
		buffers: make(map[snowflake.ID]*voiceEventBuffer),
	}

	b.link = disgolink.New(botID,
		disgolink.WithListenerFunc(b.onTrackStart),
		disgolink.WithListenerFunc(b.onTrackEnd),
		disgolink.WithListenerFunc(b.onTrackException),
		disgolink.WithListenerFunc(b.onTrackStuck),
	)

	node, err := b.link.AddNode(ctx, disgolink.NodeConfig{
		Name:     "main",
		Address:  config.Address,
		Password: config.Password,
		Secure:   config.Secure,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add Lavalink node: %w", err)
	}

	slog.Info("connected to Lavalink", "node", node.Config().Name, "address", config.Address)

	return b, nil
}

// Compile-time checks that LavalinkBackend implements the playback ports.
var (
	_ ports.AudioTransport = (*LavalinkBackend)(nil)
	_ ports.StreamDecoder  = (*LavalinkBackend)(nil)
	_ ports.MediaResolver  = (*LavalinkBackend)(nil)
	_ ports.MediaSearcher  = (*LavalinkBackend)(nil)
)

// EnsureConnected joins the destination channel if the guild has no connection.
func (b *LavalinkBackend) EnsureConnected(ctx context.Context, dest domain.Destination) error {
	if b.IsConnected(dest.GuildID) {
		return nil
	}
	return b.join(ctx, dest)
}

// Move switches the guild's connection to another channel.
func (b *LavalinkBackend) Move(ctx context.Context, dest domain.Destination) error {
	return b.join(ctx, dest)
}

// join updates the bot's voice state and waits for both voice events.
func (b *LavalinkBackend) join(ctx context.Context, dest domain.Destination) error {
	pending := &pendingVoiceConnection{
		ready: make(chan struct{}),
	}

	b.mu.Lock()
	b.pending[dest.GuildID] = pending
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		delete(b.pending, dest.GuildID)
		b.mu.Unlock()
	}()

	err := b.session.ChannelVoiceJoinManual(dest.GuildID.String(), dest.ChannelID.String(), false, true)
	if err != nil {
		return fmt.Errorf("failed to join voice channel: %w", err)
	}

	select {
	case <-pending.ready:
		b.mu.Lock()
		b.guildLocked(dest.GuildID).channelID = dest.ChannelID
		b.mu.Unlock()
		return nil
	case <-ctx.Done():
		return fmt.Errorf("context cancelled while waiting for voice connection: %w", ctx.Err())
	case <-time.After(voiceConnectionTimeout):
		return errors.New("timeout waiting for voice connection")
	}
}

// Disconnect destroys the player and leaves the voice channel.
func (b *LavalinkBackend) Disconnect(ctx context.Context, guildID snowflake.ID) error {
	if player := b.link.ExistingPlayer(guildID); player != nil {
		if err := player.Destroy(ctx); err != nil {
			slog.Warn("failed to destroy player", "guild", guildID, "error", err)
		}
	}

	b.mu.Lock()
	delete(b.guilds, guildID)
	b.mu.Unlock()

	if err := b.session.ChannelVoiceJoinManual(guildID.String(), "", false, false); err != nil {
		return fmt.Errorf("failed to leave voice channel: %w", err)
	}
	return nil
}

// IsConnected reports whether the bot is in a voice channel of the guild.
func (b *LavalinkBackend) IsConnected(guildID snowflake.ID) bool {
	_, ok := b.ConnectedChannel(guildID)
	return ok
}

// ConnectedChannel returns the channel the bot is in.
func (b *LavalinkBackend) ConnectedChannel(guildID snowflake.ID) (snowflake.ID, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	g := b.guilds[guildID]
	if g == nil || g.channelID == 0 {
		return 0, false
	}
	return g.channelID, true
}

// IsPlaying reports whether the guild's player has a track that has not ended.
func (b *LavalinkBackend) IsPlaying(guildID snowflake.ID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	g := b.guilds[guildID]
	return g != nil && g.playing
}

// Start plays a loaded track from its offset.
func (b *LavalinkBackend) Start(ctx context.Context, guildID snowflake.ID, src ports.DecodedSource) error {
	track, ok := src.(*lavalinkSource)
	if !ok {
		return fmt.Errorf("%w: %T", ErrUnsupportedSource, src)
	}

	b.mu.Lock()
	g := b.guildLocked(guildID)
	if g.playing {
		b.mu.Unlock()
		return ErrAlreadyPlaying
	}
	g.playing = true
	g.streamErr = nil
	b.mu.Unlock()

	opts := []lavalink.PlayerUpdateOpt{lavalink.WithEncodedTrack(track.encoded)}
	if track.offset > 0 {
		opts = append(opts, lavalink.WithPosition(lavalink.Duration(track.offset.Milliseconds())))
	}

	if err := b.link.Player(guildID).Update(ctx, opts...); err != nil {
		b.setPlaying(guildID, false, nil)
		return fmt.Errorf("failed to play track: %w", err)
	}
	return nil
}

// Stop stops the current track.
func (b *LavalinkBackend) Stop(ctx context.Context, guildID snowflake.ID) error {
	if err := b.link.Player(guildID).Update(ctx, lavalink.WithNullTrack()); err != nil {
		return fmt.Errorf("failed to stop playback: %w", err)
	}
	b.setPlaying(guildID, false, nil)
	return nil
}

// StreamErr returns the error that ended the guild's last track.
func (b *LavalinkBackend) StreamErr(guildID snowflake.ID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if g := b.guilds[guildID]; g != nil {
		return g.streamErr
	}
	return nil
}

// Open loads source on the node. remote is irrelevant: the node fetches both.
// A source returned by Resolve already carries the encoded track.
func (b *LavalinkBackend) Open(
	ctx context.Context,
	source string,
	offset time.Duration,
	_ bool,
) (ports.DecodedSource, error) {
	if encoded, ok := strings.CutPrefix(source, encodedTrackPrefix); ok {
		return &lavalinkSource{encoded: encoded, offset: offset}, nil
	}

	track, err := b.loadTrack(ctx, source)
	if err != nil {
		return nil, err
	}
	return &lavalinkSource{encoded: track.Encoded, offset: offset}, nil
}

// Resolve loads identifier for its metadata. The encoded track becomes the
// playable URL so Open does not load it again.
func (b *LavalinkBackend) Resolve(ctx context.Context, identifier string) (ports.ResolvedMedia, error) {
	track, err := b.loadTrack(ctx, identifier)
	if err != nil {
		return ports.ResolvedMedia{}, err
	}
	return mediaFromTrack(track), nil
}

// Search loads a YouTube search on the node.
func (b *LavalinkBackend) Search(ctx context.Context, query string, limit int) ([]ports.SearchResult, error) {
	result, err := b.load(ctx, lavalinkSearchPrefix+query)
	if err != nil {
		return nil, err
	}

	var tracks []lavalink.Track
	switch data := result.Data.(type) {
	case lavalink.Search:
		tracks = data
	case lavalink.Track:
		tracks = []lavalink.Track{data}
	case lavalink.Exception:
		return nil, fmt.Errorf("failed to search: %s", data.Message)
	}

	if limit > 0 && len(tracks) > limit {
		tracks = tracks[:limit]
	}
	results := make([]ports.SearchResult, 0, len(tracks))
	for _, track := range tracks {
		results = append(results, entryFromTrack(track))
	}
	return results, nil
}

// ExpandPlaylist lists the tracks of url when the node loads it as a playlist.
func (b *LavalinkBackend) ExpandPlaylist(ctx context.Context, url string) (ports.Playlist, bool, error) {
	result, err := b.load(ctx, url)
	if err != nil {
		return ports.Playlist{}, false, err
	}
	playlist, ok := playlistFromResult(result)
	return playlist, ok, nil
}

func (b *LavalinkBackend) loadTrack(ctx context.Context, query string) (lavalink.Track, error) {
	result, err := b.load(ctx, query)
	if err != nil {
		return lavalink.Track{}, err
	}
	return firstTrack(result)
}

func (b *LavalinkBackend) load(ctx context.Context, query string) (*lavalink.LoadResult, error) {
	node := b.link.BestNode()
	if node == nil {
		return nil, ErrNoLavalinkNode
	}

	result, err := node.LoadTracks(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to load tracks: %w", err)
	}
	return result, nil
}

func mediaFromTrack(track lavalink.Track) ports.ResolvedMedia {
	media := ports.ResolvedMedia{
		PlayURL: encodedTrackPrefix + track.Encoded,
		Title:   track.Info.Title,
		IsLive:  track.Info.IsStream,
	}
	if !track.Info.IsStream {
		media.Duration = time.Duration(track.Info.Length) * time.Millisecond
	}
	return media
}

func entryFromTrack(track lavalink.Track) ports.SearchResult {
	entry := ports.SearchResult{
		Title:    track.Info.Title,
		Uploader: track.Info.Author,
		IsLive:   track.Info.IsStream,
	}
	if track.Info.URI != nil {
		entry.URL = *track.Info.URI
	}
	if !track.Info.IsStream {
		entry.Duration = time.Duration(track.Info.Length) * time.Millisecond
	}
	return entry
}

func playlistFromResult(result *lavalink.LoadResult) (ports.Playlist, bool) {
	data, ok := result.Data.(lavalink.Playlist)
	if !ok {
		return ports.Playlist{}, false
	}

	playlist := ports.Playlist{
		Name:    data.Info.Name,
		Entries: make([]ports.SearchResult, 0, len(data.Tracks)),
	}
	for _, track := range data.Tracks {
		playlist.Entries = append(playlist.Entries, entryFromTrack(track))
	}
	return playlist, true
}

// firstTrack picks the track to play from a load result.
func firstTrack(result *lavalink.LoadResult) (lavalink.Track, error) {
	switch data := result.Data.(type) {
	case lavalink.Track:
		return data, nil
	case lavalink.Playlist:
		if len(data.Tracks) > 0 {
			return data.Tracks[0], nil
		}
	case lavalink.Search:
		if len(data) > 0 {
			return data[0], nil
		}
	case lavalink.Exception:
		return lavalink.Track{}, fmt.Errorf("failed to load track: %s", data.Message)
	}
	return lavalink.Track{}, ErrNoTracks
}

// OnVoiceServerUpdate handles Discord voice server updates.
// This must be called from the Discord event handler.
func (b *LavalinkBackend) OnVoiceServerUpdate(event *discordgo.VoiceServerUpdate) {
	guildID, err := snowflake.Parse(event.GuildID)
	if err != nil {
		slog.Error("failed to parse guild ID in voice server update", "error", err)
		return
	}

	b.mu.Lock()
	buffer := b.bufferLocked(guildID)
	buffer.hasVoiceServer = true
	buffer.token = event.Token
	buffer.endpoint = event.Endpoint
	flush := buffer.complete()
	if flush {
		delete(b.buffers, guildID)
	}
	pending := b.pending[guildID]
	b.mu.Unlock()

	if flush {
		b.forward(guildID, buffer)
	}
	if pending != nil {
		pending.onEvent(false)
	}
}

// OnVoiceStateUpdate handles Discord voice state updates for the bot itself.
// This must be called from the Discord event handler.
func (b *LavalinkBackend) OnVoiceStateUpdate(event *discordgo.VoiceStateUpdate) {
	if event.UserID != b.botID.String() {
		return
	}

	guildID, err := snowflake.Parse(event.GuildID)
	if err != nil {
		slog.Error("failed to parse guild ID in voice state update", "error", err)
		return
	}

	// An empty channel means the bot left or was removed.
	if event.ChannelID == "" {
		b.mu.Lock()
		delete(b.guilds, guildID)
		delete(b.buffers, guildID)
		b.mu.Unlock()
		b.link.OnVoiceStateUpdate(context.Background(), guildID, nil, event.SessionID)
		return
	}

	channelID, err := snowflake.Parse(event.ChannelID)
	if err != nil {
		slog.Error("failed to parse channel ID in voice state update", "error", err)
		return
	}

	b.mu.Lock()
	if g := b.guilds[guildID]; g != nil {
		g.channelID = channelID
	}
	buffer := b.bufferLocked(guildID)
	buffer.hasVoiceState = true
	buffer.channelID = &channelID
	buffer.sessionID = event.SessionID
	flush := buffer.complete()
	if flush {
		delete(b.buffers, guildID)
	}
	pending := b.pending[guildID]
	b.mu.Unlock()

	if flush {
		b.forward(guildID, buffer)
	}
	if pending != nil {
		pending.onEvent(true)
	}
}

// forward sends a complete voice event pair to Lavalink in order.
func (b *LavalinkBackend) forward(guildID snowflake.ID, buffer *voiceEventBuffer) {
	slog.Debug("forwarding buffered voice events to Lavalink",
		"guild", guildID,
		"channel", buffer.channelID,
	)
	b.link.OnVoiceStateUpdate(context.Background(), guildID, buffer.channelID, buffer.sessionID)
	b.link.OnVoiceServerUpdate(context.Background(), guildID, buffer.token, buffer.endpoint)
}

// Close closes the Lavalink client.
func (b *LavalinkBackend) Close() {
	b.link.Close()
}

func (b *LavalinkBackend) onTrackStart(player disgolink.Player, event lavalink.TrackStartEvent) {
	slog.Debug("track started", "guild", player.GuildID(), "track", event.Track.Info.Title)
}

func (b *LavalinkBackend) onTrackEnd(player disgolink.Player, event lavalink.TrackEndEvent) {
	slog.Debug("track ended", "guild", player.GuildID(), "reason", event.Reason)

	switch event.Reason {
	case lavalink.TrackEndReasonStopped, lavalink.TrackEndReasonReplaced:
		// Caused by our own Stop or Start.
		return
	case lavalink.TrackEndReasonLoadFailed:
		b.setPlaying(player.GuildID(), false, errors.New("track failed to load"))
	default:
		b.setPlaying(player.GuildID(), false, nil)
	}
}

func (b *LavalinkBackend) onTrackException(
	player disgolink.Player,
	event lavalink.TrackExceptionEvent,
) {
	slog.Warn("track exception", "guild", player.GuildID(), "error", event.Exception.Message)
	b.setPlaying(player.GuildID(), false, fmt.Errorf("track exception: %s", event.Exception.Message))
}

func (b *LavalinkBackend) onTrackStuck(player disgolink.Player, event lavalink.TrackStuckEvent) {
	slog.Warn("track stuck", "guild", player.GuildID(), "threshold", event.Threshold)
}

// setPlaying updates the playing flag. A non-nil err is kept as the stream error;
// a nil err keeps any error recorded earlier for the same track.
func (b *LavalinkBackend) setPlaying(guildID snowflake.ID, playing bool, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	g := b.guilds[guildID]
	if g == nil {
		return
	}
	g.playing = playing
	if err != nil {
		g.streamErr = err
	}
}

// guildLocked returns the state of guildID, creating it. Caller must hold b.mu.
func (b *LavalinkBackend) guildLocked(guildID snowflake.ID) *lavalinkGuild {
	g, ok := b.guilds[guildID]
	if !ok {
		g = &lavalinkGuild{}
		b.guilds[guildID] = g
	}
	return g
}

// bufferLocked returns the voice buffer of guildID, creating it. Caller must hold b.mu.
func (b *LavalinkBackend) bufferLocked(guildID snowflake.ID) *voiceEventBuffer {
	buffer, ok := b.buffers[guildID]
	if !ok {
		buffer = &voiceEventBuffer{}
		b.buffers[guildID] = buffer
	}
	return buffer
}
