package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"
	"github.com/dustin/go-humanize"
	"github.com/sglre6355/vcbot/internal/bot"
	"github.com/sglre6355/vcbot/internal/modules/playback/application/ports"
	"github.com/sglre6355/vcbot/internal/modules/playback/application/usecases"
	"github.com/sglre6355/vcbot/internal/modules/playback/domain"
)

// Embed colors.
const (
	colorSuccess = 0x08c404
	colorError   = 0xE74C3C
)

// maxQueueLines caps the number of pending requests listed by /queue.
const maxQueueLines = 10

// resolveTimeout bounds the metadata lookup done before a stream is queued.
const resolveTimeout = 30 * time.Second

// PlaybackController is the subset of the playback service the handlers drive.
type PlaybackController interface {
	Enqueue(input usecases.EnqueueInput) (*usecases.EnqueueOutput, error)
	RequestSkip(guildID snowflake.ID) bool
	RequestSeek(guildID snowflake.ID, delta time.Duration) (time.Duration, bool)
	QueueSnapshot(guildID snowflake.ID) []usecases.QueueItem
	NowPlaying(guildID snowflake.ID) (usecases.NowPlayingOutput, bool)
	Leave(ctx context.Context, guildID snowflake.ID) (bool, error)
}

// MediaFinder searches for media and lists playlist entries.
type MediaFinder interface {
	Search(ctx context.Context, input usecases.SearchInput) (*usecases.SearchOutput, error)
	ExpandPlaylist(
		ctx context.Context,
		input usecases.ExpandPlaylistInput,
	) (*usecases.ExpandPlaylistOutput, bool, error)
}

// VoiceChannelSelector picks the voice channel a request plays in.
type VoiceChannelSelector interface {
	SelectVoiceChannel(input usecases.SelectVoiceChannelInput) (snowflake.ID, error)
}

// AttachmentDownloader stores an uploaded file locally.
type AttachmentDownloader interface {
	Download(ctx context.Context, url, filename string, size int64) (string, error)
}

// TitleReader reads a display title from a local audio file.
type TitleReader interface {
	Title(path string) (string, error)
}

// ErrorReporter posts failure notices to a text channel.
type ErrorReporter interface {
	SendError(ctx context.Context, channelID snowflake.ID, message string) error
}

// Compile-time interface checks.
var (
	_ PlaybackController   = (*usecases.PlaybackService)(nil)
	_ VoiceChannelSelector = (*usecases.VoiceChannelService)(nil)
	_ MediaFinder          = (*usecases.SearchService)(nil)
)

// CommandHandlers holds all the command handlers.
type CommandHandlers struct {
	playback     PlaybackController
	voiceChannel VoiceChannelSelector
	resolver     ports.MediaResolver
	finder       MediaFinder
	downloader   AttachmentDownloader
	titles       TitleReader
	reporter     ErrorReporter
}

// NewCommandHandlers creates new CommandHandlers.
func NewCommandHandlers(
	playback PlaybackController,
	voiceChannel VoiceChannelSelector,
	resolver ports.MediaResolver,
	finder MediaFinder,
	downloader AttachmentDownloader,
	titles TitleReader,
	reporter ErrorReporter,
) *CommandHandlers {
	return &CommandHandlers{
		playback:     playback,
		voiceChannel: voiceChannel,
		resolver:     resolver,
		finder:       finder,
		downloader:   downloader,
		titles:       titles,
		reporter:     reporter,
	}
}

// playOptions are the options shared by the play commands.
type playOptions struct {
	url          string
	query        string
	attachmentID string
	loop         bool
	channelID    snowflake.ID
}

func parsePlayOptions(i *discordgo.InteractionCreate) (playOptions, error) {
	var opts playOptions
	for _, opt := range i.ApplicationCommandData().Options {
		switch opt.Name {
		case "url":
			opts.url = strings.TrimSpace(opt.StringValue())
		case "query":
			opts.query = strings.TrimSpace(opt.StringValue())
		case "file":
			id, ok := opt.Value.(string)
			if !ok {
				return opts, errors.New("invalid attachment option")
			}
			opts.attachmentID = id
		case "loop":
			opts.loop = opt.BoolValue()
		case "channel":
			// A nil session reads the ID from the option without a REST lookup.
			channelID, err := snowflake.Parse(opt.ChannelValue(nil).ID)
			if err != nil {
				return opts, err
			}
			opts.channelID = channelID
		}
	}
	return opts, nil
}

// requestContext holds the identifiers every play command needs.
type requestContext struct {
	guildID   snowflake.ID
	userID    snowflake.ID
	channelID snowflake.ID
}

func parseRequestContext(i *discordgo.InteractionCreate) (requestContext, string) {
	guildID, err := snowflake.Parse(i.GuildID)
	if err != nil {
		return requestContext{}, "Invalid guild"
	}
	if i.Member == nil || i.Member.User == nil {
		return requestContext{}, "Invalid user"
	}
	userID, err := snowflake.Parse(i.Member.User.ID)
	if err != nil {
		return requestContext{}, "Invalid user"
	}
	channelID, err := snowflake.Parse(i.ChannelID)
	if err != nil {
		return requestContext{}, "Invalid text channel"
	}
	return requestContext{guildID: guildID, userID: userID, channelID: channelID}, ""
}

// HandlePlay handles the /play command.
func (h *CommandHandlers) HandlePlay(
	_ *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	rc, msg := parseRequestContext(i)
	if msg != "" {
		return respondError(r, msg)
	}
	opts, err := parsePlayOptions(i)
	if err != nil {
		return respondError(r, "Invalid options")
	}
	if !domain.IsRemote(opts.url) {
		return respondError(r, "Please give an http(s) URL.")
	}

	voiceChannelID, err := h.voiceChannel.SelectVoiceChannel(usecases.SelectVoiceChannelInput{
		GuildID:        rc.guildID,
		UserID:         rc.userID,
		VoiceChannelID: opts.channelID,
	})
	if err != nil {
		return respondError(r, userMessage(err))
	}

	if err := respondDeferred(r); err != nil {
		return err
	}

	dest := domain.Destination{GuildID: rc.guildID, ChannelID: voiceChannelID}
	if domain.IsPlaylistURL(opts.url) {
		if handled, err := h.enqueuePlaylist(r, rc, dest, opts.url, opts.loop); handled {
			return err
		}
	}
	return h.enqueueStream(r, rc, dest, opts.url, opts.loop)
}

// enqueueStream resolves url and queues it. The interaction must already be
// deferred.
func (h *CommandHandlers) enqueueStream(
	r bot.Responder,
	rc requestContext,
	dest domain.Destination,
	url string,
	loop bool,
) error {
	ctx, cancel := context.WithTimeout(context.Background(), resolveTimeout)
	defer cancel()

	media, err := h.resolver.Resolve(ctx, url)
	if err != nil {
		slog.Warn("failed to resolve stream", "url", url, "error", err)
		return editError(r, "Could not read that URL.")
	}

	title := media.Title
	if title == "" {
		title = url
	}

	output, err := h.playback.Enqueue(usecases.EnqueueInput{
		Destination:       dest,
		AnnounceChannelID: rc.channelID,
		RequesterID:       rc.userID,
		Source:            url,
		IsStream:          true,
		StreamURL:         media.PlayURL,
		Title:             title,
		DisplayURL:        url,
		Duration:          media.Duration,
		Announce:          true,
		Loop:              loop,
		IsLive:            media.IsLive,
	})
	if err != nil {
		return editError(r, userMessage(err))
	}

	go h.reportFailure(output.Completion, rc.channelID, title)

	return editQueued(r, title, url, output.Position, loop)
}

// enqueuePlaylist queues every entry of a playlist URL as its own request.
// handled is false when url turned out not to be a playlist, so the caller
// can queue it as a single stream. Entries are resolved when they play and
// never loop.
func (h *CommandHandlers) enqueuePlaylist(
	r bot.Responder,
	rc requestContext,
	dest domain.Destination,
	url string,
	loop bool,
) (handled bool, err error) {
	ctx, cancel := context.WithTimeout(context.Background(), resolveTimeout)
	defer cancel()

	playlist, ok, err := h.finder.ExpandPlaylist(ctx, usecases.ExpandPlaylistInput{URL: url})
	if err != nil {
		slog.Warn("failed to expand playlist", "url", url, "error", err)
		return false, nil
	}
	if !ok {
		return false, nil
	}

	queued, firstPosition := 0, 0
	for _, entry := range playlist.Entries {
		title := entry.Title
		if title == "" {
			title = entry.URL
		}

		output, err := h.playback.Enqueue(usecases.EnqueueInput{
			Destination:       dest,
			AnnounceChannelID: rc.channelID,
			RequesterID:       rc.userID,
			Source:            entry.URL,
			IsStream:          true,
			Title:             title,
			DisplayURL:        entry.URL,
			Duration:          entry.Duration,
			Announce:          true,
			IsLive:            entry.IsLive,
		})
		if err != nil {
			if queued == 0 {
				return true, editError(r, userMessage(err))
			}
			slog.Warn("stopped queueing playlist", "url", url, "queued", queued, "error", err)
			break
		}
		if queued == 0 {
			firstPosition = output.Position
		}
		queued++

		go h.reportFailure(output.Completion, rc.channelID, title)
	}

	skipped := playlist.Omitted + len(playlist.Entries) - queued
	return true, editPlaylistQueued(r, playlist.Name, url, queued, skipped, firstPosition, loop)
}

// HandlePlayFile handles the /playfile command.
func (h *CommandHandlers) HandlePlayFile(
	_ *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	rc, msg := parseRequestContext(i)
	if msg != "" {
		return respondError(r, msg)
	}
	opts, err := parsePlayOptions(i)
	if err != nil {
		return respondError(r, "Invalid options")
	}

	data := i.ApplicationCommandData()
	var attachment *discordgo.MessageAttachment
	if data.Resolved != nil {
		attachment = data.Resolved.Attachments[opts.attachmentID]
	}
	if attachment == nil {
		return respondError(r, "Attachment not found")
	}

	voiceChannelID, err := h.voiceChannel.SelectVoiceChannel(usecases.SelectVoiceChannelInput{
		GuildID:        rc.guildID,
		UserID:         rc.userID,
		VoiceChannelID: opts.channelID,
	})
	if err != nil {
		return respondError(r, userMessage(err))
	}

	if err := respondDeferred(r); err != nil {
		return err
	}

	path, err := h.downloader.Download(
		context.Background(),
		attachment.URL,
		attachment.Filename,
		int64(attachment.Size),
	)
	if err != nil {
		slog.Warn("failed to download attachment", "filename", attachment.Filename, "error", err)
		return editError(r, userMessage(err))
	}

	title := attachment.Filename
	if tagged, err := h.titles.Title(path); err != nil {
		slog.Debug("failed to read audio tags", "path", path, "error", err)
	} else if tagged != "" {
		title = tagged
	}

	output, err := h.playback.Enqueue(usecases.EnqueueInput{
		Destination:       domain.Destination{GuildID: rc.guildID, ChannelID: voiceChannelID},
		AnnounceChannelID: rc.channelID,
		RequesterID:       rc.userID,
		Source:            path,
		Title:             title,
		Announce:          true,
		Loop:              opts.loop,
	})
	if err != nil {
		if rmErr := os.Remove(path); rmErr != nil {
			slog.Warn("failed to remove downloaded attachment", "path", path, "error", rmErr)
		}
		return editError(r, userMessage(err))
	}

	go h.reportFailure(output.Completion, rc.channelID, title)

	return editQueued(r, title, "", output.Position, opts.loop)
}

// HandleSkip handles the /skip command.
func (h *CommandHandlers) HandleSkip(
	_ *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	guildID, err := snowflake.Parse(i.GuildID)
	if err != nil {
		return respondError(r, "Invalid guild")
	}

	if !h.playback.RequestSkip(guildID) {
		return respondError(r, userMessage(usecases.ErrNotPlaying))
	}

	return respondEmbed(r, "Skipped.")
}

// HandleSeek handles the /seek command.
func (h *CommandHandlers) HandleSeek(
	_ *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	guildID, err := snowflake.Parse(i.GuildID)
	if err != nil {
		return respondError(r, "Invalid guild")
	}

	var seconds int64
	for _, opt := range i.ApplicationCommandData().Options {
		if opt.Name == "seconds" {
			seconds = opt.IntValue()
		}
	}
	if seconds == 0 {
		return respondError(r, "Give a non-zero number of seconds.")
	}

	target, ok := h.playback.RequestSeek(guildID, time.Duration(seconds)*time.Second)
	if !ok {
		if np, playing := h.playback.NowPlaying(guildID); playing && !np.Seekable {
			return respondError(r, userMessage(usecases.ErrNotSeekable))
		}
		return respondError(r, userMessage(usecases.ErrNotPlaying))
	}

	return respondEmbed(r, fmt.Sprintf("Seeking to `%s`.", domain.FormatTimestamp(target)))
}

// HandleLeave handles the /leave command.
func (h *CommandHandlers) HandleLeave(
	_ *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	guildID, err := snowflake.Parse(i.GuildID)
	if err != nil {
		return respondError(r, "Invalid guild")
	}

	left, err := h.playback.Leave(context.Background(), guildID)
	if err != nil {
		slog.Warn("failed to leave voice channel", "guild", guildID, "error", err)
		return respondError(r, "Could not leave the voice channel.")
	}
	if !left {
		return respondError(r, "I am not in a voice channel.")
	}

	return respondEmbed(r, "Leaving the voice channel.")
}

// HandleQueue handles the /queue command.
func (h *CommandHandlers) HandleQueue(
	_ *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	guildID, err := snowflake.Parse(i.GuildID)
	if err != nil {
		return respondError(r, "Invalid guild")
	}

	nowPlaying, playing := h.playback.NowPlaying(guildID)
	pending := h.playback.QueueSnapshot(guildID)
	if !playing && len(pending) == 0 {
		return respondEmbed(r, "Nothing is playing.")
	}

	var sb strings.Builder
	if playing {
		sb.WriteString("**Now playing**\n")
		writeNowPlaying(&sb, nowPlaying)
	}
	if len(pending) > 0 {
		if playing {
			sb.WriteString("\n")
		}
		sb.WriteString("**Up next**\n")
		for idx, item := range pending {
			if idx == maxQueueLines {
				fmt.Fprintf(&sb, "...and %d more\n", len(pending)-maxQueueLines)
				break
			}
			writeQueueLine(&sb, idx+1, item)
		}
	}

	return r.Respond(&discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{
				{
					Title:       "Queue",
					Description: sb.String(),
					Color:       colorSuccess,
				},
			},
		},
	})
}

// reportFailure waits for a request to finish and posts an error notice if it failed.
func (h *CommandHandlers) reportFailure(completion *domain.Completion, channelID snowflake.ID, title string) {
	<-completion.Done()
	outcome := completion.Outcome()
	if outcome.OK() || errors.Is(outcome.Err, context.Canceled) {
		return
	}

	message := fmt.Sprintf("%s: **%s**", failureMessage(outcome.Err), title)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := h.reporter.SendError(ctx, channelID, message); err != nil {
		slog.Warn("failed to report playback failure", "channel", channelID, "error", err)
	}
}

// userMessage maps synchronous errors to user-facing text.
func userMessage(err error) string {
	switch {
	case errors.Is(err, usecases.ErrUserNotInVoice):
		return "You must be in a voice channel or choose one."
	case errors.Is(err, usecases.ErrNoChannelPermission):
		return "You need permission to connect and speak in that channel."
	case errors.Is(err, usecases.ErrNotPlaying):
		return "Nothing is playing."
	case errors.Is(err, usecases.ErrNotSeekable):
		return "The current audio cannot be seeked."
	case errors.Is(err, usecases.ErrSourceNotFound):
		return "The file could not be found."
	case errors.Is(err, usecases.ErrEmptySource):
		return "Nothing to play."
	case errors.Is(err, usecases.ErrServiceClosed):
		return "Playback is shutting down."
	case errors.Is(err, usecases.ErrEmptyQuery):
		return "Give something to search for."
	default:
		return err.Error()
	}
}

// failureMessage maps a failed outcome to user-facing text.
func failureMessage(err error) string {
	switch domain.FailureKind(err) {
	case domain.ErrAdmission:
		return "Could not join the voice channel"
	case domain.ErrResolution:
		return "Could not load the stream"
	default:
		return "Playback failed"
	}
}

func respondError(r bot.Responder, message string) error {
	return r.Respond(&discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{
				{
					Title:       "Error",
					Description: message,
					Color:       colorError,
				},
			},
		},
	})
}

func respondEmbed(r bot.Responder, description string) error {
	return r.Respond(&discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{
				{
					Description: description,
					Color:       colorSuccess,
				},
			},
		},
	})
}

func respondDeferred(r bot.Responder) error {
	return r.Respond(&discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	})
}

func editError(r bot.Responder, message string) error {
	return r.Edit(&discordgo.WebhookEdit{
		Embeds: &[]*discordgo.MessageEmbed{
			{
				Title:       "Error",
				Description: message,
				Color:       colorError,
			},
		},
	})
}

func editQueued(r bot.Responder, title, url string, position int, loop bool) error {
	var sb strings.Builder
	if url != "" {
		fmt.Fprintf(&sb, "Queued [%s](%s)", title, url)
	} else {
		fmt.Fprintf(&sb, "Queued **%s**", title)
	}
	if position == 0 {
		sb.WriteString(", starting now.")
	} else {
		fmt.Fprintf(&sb, " at position %d.", position)
	}
	if loop {
		sb.WriteString(" Looping until skipped.")
	}

	return r.Edit(&discordgo.WebhookEdit{
		Embeds: &[]*discordgo.MessageEmbed{
			{
				Description: sb.String(),
				Color:       colorSuccess,
			},
		},
		Components: &[]discordgo.MessageComponent{},
	})
}

func editPlaylistQueued(r bot.Responder, name, url string, queued, skipped, position int, loop bool) error {
	if name == "" {
		name = "playlist"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Queued %d tracks from [%s](%s)", queued, name, url)
	if position == 0 {
		sb.WriteString(", starting now.")
	} else {
		fmt.Fprintf(&sb, " from position %d.", position)
	}
	if skipped > 0 {
		fmt.Fprintf(&sb, " %d entries were left out.", skipped)
	}
	if loop {
		sb.WriteString(" Playlists do not loop.")
	}

	return r.Edit(&discordgo.WebhookEdit{
		Embeds: &[]*discordgo.MessageEmbed{
			{
				Description: sb.String(),
				Color:       colorSuccess,
			},
		},
	})
}

func writeNowPlaying(sb *strings.Builder, np usecases.NowPlayingOutput) {
	writeTitle(sb, np.Title, np.DisplayURL)
	if np.IsLive {
		fmt.Fprintf(sb, " `live` - <@%s>\n", np.RequesterID)
		return
	}
	fmt.Fprintf(
		sb,
		" `%s / %s` - <@%s>\n",
		domain.FormatTimestamp(np.Elapsed),
		formatDuration(np.Duration),
		np.RequesterID,
	)
}

// writeQueueLine writes a single pending request line to the string builder.
// Escapes period to prevent Discord markdown list formatting.
func writeQueueLine(sb *strings.Builder, displayIndex int, item usecases.QueueItem) {
	fmt.Fprintf(sb, "%d\\. ", displayIndex)
	writeTitle(sb, item.Title, item.DisplayURL)
	length := formatDuration(item.Duration)
	if item.IsLive {
		length = "live"
	}
	fmt.Fprintf(sb, " `%s` - <@%s>, %s", length, item.RequesterID, humanize.Time(item.EnqueuedAt))
	if item.Loop {
		sb.WriteString(" (loop)")
	}
	sb.WriteString("\n")
}

func writeTitle(sb *strings.Builder, title, url string) {
	if url != "" {
		fmt.Fprintf(sb, "[%s](%s)", title, url)
	} else {
		fmt.Fprintf(sb, "**%s**", title)
	}
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "??:??"
	}
	return domain.FormatTimestamp(d)
}
