package usecases

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/vcbot/internal/modules/playback/application/ports"
	"github.com/sglre6355/vcbot/internal/modules/playback/domain"
)

var (
	testGuild   = snowflake.ID(1)
	testVoice   = snowflake.ID(10)
	testText    = snowflake.ID(20)
	testUser    = snowflake.ID(30)
	testDest    = domain.Destination{GuildID: testGuild, ChannelID: testVoice}
	errBoom     = errors.New("boom")
	waitTimeout = 3 * time.Second
	waitTick    = 5 * time.Millisecond
)

// fakeSource is a DecodedSource recording its parameters.
type fakeSource struct {
	source string
	offset time.Duration
	remote bool

	mu     sync.Mutex
	closed int
}

func (f *fakeSource) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

// fakeTransport simulates a voice connection. A started stream plays for
// playLength, or until hold is closed when hold is set.
type fakeTransport struct {
	mu sync.Mutex

	connected map[snowflake.ID]snowflake.ID
	playing   map[snowflake.ID]bool
	startedAt map[snowflake.ID]time.Time

	playLength time.Duration
	hold       chan struct{}

	connectErr    error
	moveErr       error
	startErr      error
	streamErr     error
	disconnectErr error

	connects    []domain.Destination
	moves       []domain.Destination
	disconnects int
	starts      []*fakeSource
	stops       int
}

func newFakeTransport(playLength time.Duration) *fakeTransport {
	return &fakeTransport{
		connected:  make(map[snowflake.ID]snowflake.ID),
		playing:    make(map[snowflake.ID]bool),
		startedAt:  make(map[snowflake.ID]time.Time),
		playLength: playLength,
	}
}

func (f *fakeTransport) EnsureConnected(_ context.Context, dest domain.Destination) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.connectErr != nil {
		return f.connectErr
	}
	f.connects = append(f.connects, dest)
	f.connected[dest.GuildID] = dest.ChannelID
	return nil
}

func (f *fakeTransport) Move(_ context.Context, dest domain.Destination) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.moveErr != nil {
		return f.moveErr
	}
	f.moves = append(f.moves, dest)
	f.connected[dest.GuildID] = dest.ChannelID
	return nil
}

func (f *fakeTransport) Disconnect(_ context.Context, guildID snowflake.ID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnects++
	delete(f.connected, guildID)
	f.playing[guildID] = false
	return f.disconnectErr
}

func (f *fakeTransport) IsConnected(guildID snowflake.ID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.connected[guildID]
	return ok
}

func (f *fakeTransport) ConnectedChannel(guildID snowflake.ID) (snowflake.ID, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, ok := f.connected[guildID]
	return ch, ok
}

func (f *fakeTransport) IsPlaying(guildID snowflake.ID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.isPlayingLocked(guildID)
}

func (f *fakeTransport) isPlayingLocked(guildID snowflake.ID) bool {
	if !f.playing[guildID] {
		return false
	}
	if f.hold != nil {
		select {
		case <-f.hold:
			f.playing[guildID] = false
			return false
		default:
			return true
		}
	}
	if f.playLength > 0 && time.Since(f.startedAt[guildID]) >= f.playLength {
		f.playing[guildID] = false
		return false
	}
	return true
}

func (f *fakeTransport) Start(_ context.Context, guildID snowflake.ID, src ports.DecodedSource) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	if f.isPlayingLocked(guildID) {
		return errors.New("already playing")
	}
	f.starts = append(f.starts, src.(*fakeSource))
	f.playing[guildID] = true
	f.startedAt[guildID] = time.Now()
	return nil
}

func (f *fakeTransport) Stop(_ context.Context, guildID snowflake.ID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	f.playing[guildID] = false
	return nil
}

func (f *fakeTransport) StreamErr(_ snowflake.ID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.streamErr
}

// drop simulates the bot being removed from the voice channel.
func (f *fakeTransport) drop(guildID snowflake.ID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.connected, guildID)
}

func (f *fakeTransport) startCalls() []*fakeSource {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*fakeSource, len(f.starts))
	copy(out, f.starts)
	return out
}

func (f *fakeTransport) disconnectCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.disconnects
}

// fakeDecoder records Open calls.
type fakeDecoder struct {
	mu      sync.Mutex
	opens   []*fakeSource
	openErr error
	onOpen  func(source string)
	panicOn string
}

func (f *fakeDecoder) Open(_ context.Context, source string, offset time.Duration, remote bool) (ports.DecodedSource, error) {
	if f.panicOn != "" && source == f.panicOn {
		panic("decoder exploded")
	}
	if f.onOpen != nil {
		f.onOpen(source)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.openErr != nil {
		return nil, f.openErr
	}
	src := &fakeSource{source: source, offset: offset, remote: remote}
	f.opens = append(f.opens, src)
	return src, nil
}

func (f *fakeDecoder) openCalls() []*fakeSource {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*fakeSource, len(f.opens))
	copy(out, f.opens)
	return out
}

// fakeResolver returns media for identifiers and records calls.
type fakeResolver struct {
	mu      sync.Mutex
	calls   []string
	media   ports.ResolvedMedia
	failOn  int // 1-based call number that fails; 0 never fails
	failErr error
}

func (f *fakeResolver) Resolve(_ context.Context, identifier string) (ports.ResolvedMedia, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, identifier)
	if f.failOn != 0 && len(f.calls) == f.failOn {
		return ports.ResolvedMedia{}, f.failErr
	}
	return f.media, nil
}

func (f *fakeResolver) callList() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

type editCall struct {
	msg      domain.MessageHandle
	text     string
	controls bool
}

// fakeAnnouncer records posted and edited messages.
type fakeAnnouncer struct {
	mu      sync.Mutex
	posts   []string
	edits   []editCall
	errors  []string
	postErr error
	editErr error
	nextID  snowflake.ID
	// panicOn makes Edit panic when the text contains it.
	panicOn string
}

func (f *fakeAnnouncer) Post(_ context.Context, channelID snowflake.ID, text string, _ bool) (domain.MessageHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.postErr != nil {
		return domain.MessageHandle{}, f.postErr
	}
	f.nextID++
	f.posts = append(f.posts, text)
	return domain.MessageHandle{ChannelID: channelID, MessageID: f.nextID}, nil
}

func (f *fakeAnnouncer) Edit(_ context.Context, msg domain.MessageHandle, text string, controls bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.panicOn != "" && strings.Contains(text, f.panicOn) {
		panic("edit exploded")
	}
	f.edits = append(f.edits, editCall{msg: msg, text: text, controls: controls})
	return f.editErr
}

func (f *fakeAnnouncer) SendError(_ context.Context, _ snowflake.ID, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors = append(f.errors, message)
	return nil
}

func (f *fakeAnnouncer) postCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.posts)
}

func (f *fakeAnnouncer) editCalls() []editCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]editCall, len(f.edits))
	copy(out, f.edits)
	return out
}

// fakePublisher records published events.
type fakePublisher struct {
	mu     sync.Mutex
	events []domain.Event
}

func (f *fakePublisher) Publish(event domain.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

func (f *fakePublisher) bestEffortOps() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ops []string
	for _, e := range f.events {
		if be, ok := e.(domain.BestEffortFailedEvent); ok {
			ops = append(ops, be.Operation)
		}
	}
	return ops
}

func (f *fakePublisher) spawnCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, e := range f.events {
		if en, ok := e.(domain.RequestEnqueuedEvent); ok && en.SpawnedRunner {
			n++
		}
	}
	return n
}

// testHarness wires a PlaybackService to fakes with fast timings.
type testHarness struct {
	svc       *PlaybackService
	transport *fakeTransport
	decoder   *fakeDecoder
	resolver  *fakeResolver
	announcer *fakeAnnouncer
	publisher *fakePublisher
	tempDir   string
}

func newTestHarness(t *testing.T, playLength time.Duration) *testHarness {
	t.Helper()

	h := &testHarness{
		transport: newFakeTransport(playLength),
		decoder:   &fakeDecoder{},
		resolver: &fakeResolver{media: ports.ResolvedMedia{
			PlayURL:  "https://cdn.example.com/stream",
			Title:    "Resolved",
			Duration: 100 * time.Second,
		}},
		announcer: &fakeAnnouncer{},
		publisher: &fakePublisher{},
		tempDir:   t.TempDir(),
	}
	return h
}

// start builds the service; call after adjusting fakes.
func (h *testHarness) start(t *testing.T) *PlaybackService {
	t.Helper()
	h.svc = NewPlaybackService(
		NewPlaybackRegistry(),
		h.transport,
		h.decoder,
		h.resolver,
		h.announcer,
		h.publisher,
		Options{
			TempDir:               h.tempDir,
			PollInterval:          5 * time.Millisecond,
			IdlePollInterval:      time.Millisecond,
			IdlePollAttempts:      20,
			ProgressInterval:      20 * time.Millisecond,
			ProgressEarlyInterval: 10 * time.Millisecond,
			ProgressEarlyTicks:    2,
			DisconnectTimeout:     time.Second,
		},
	)
	t.Cleanup(func() { _ = h.svc.Shutdown(context.Background()) })
	return h.svc
}

// tempFile creates a file in dir and returns its path.
func tempFile(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("audio"), 0o600); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	return path
}

func waitOutcome(t *testing.T, c *domain.Completion) domain.Outcome {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	outcome, err := c.Wait(ctx)
	if err != nil {
		t.Fatalf("completion did not resolve: %v", err)
	}
	return outcome
}
