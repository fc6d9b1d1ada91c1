package infrastructure

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lrstanley/go-ytdlp"
	"github.com/sglre6355/vcbot/internal/modules/playback/application/ports"
)

// DefaultPlayerClients is the yt-dlp YouTube player client fallback order.
var DefaultPlayerClients = []string{"android", "ios", "web"}

const (
	resolvePrintTemplate = "%(.{url,title,duration,is_live})j"
	entryPrintTemplate   = "%(.{id,url,webpage_url,title,duration,uploader,channel,live_status,playlist_title,playlist_index})j"

	youtubeWatchURL = "https://www.youtube.com/watch?v="
)

// ErrUnparsableOutput is returned when yt-dlp prints nothing usable.
var ErrUnparsableOutput = errors.New("failed to parse yt-dlp output")

// Compile-time checks that YtdlpResolver implements the resolver ports.
var (
	_ ports.MediaResolver = (*YtdlpResolver)(nil)
	_ ports.MediaSearcher = (*YtdlpResolver)(nil)
)

// YtdlpResolver resolves page URLs to playable stream URLs with yt-dlp,
// trying each player client in turn until one succeeds.
type YtdlpResolver struct {
	clients  []string
	proxy    string
	cacheDir string
}

// NewYtdlpResolver creates a new YtdlpResolver. Empty clients means DefaultPlayerClients.
// An empty cacheDir leaves yt-dlp on its own default.
func NewYtdlpResolver(clients []string, proxy, cacheDir string) *YtdlpResolver {
	if len(clients) == 0 {
		clients = DefaultPlayerClients
	}
	return &YtdlpResolver{
		clients:  clients,
		proxy:    proxy,
		cacheDir: cacheDir,
	}
}

// Resolve extracts a fresh playable URL for identifier.
func (r *YtdlpResolver) Resolve(ctx context.Context, identifier string) (ports.ResolvedMedia, error) {
	return withClients(ctx, r.clients, identifier, func(client string) (ports.ResolvedMedia, error) {
		cmd := r.command().
			Print(resolvePrintTemplate).
			Format("bestaudio/best").
			NoPlaylist()
		stdout, err := r.run(ctx, cmd, client, identifier)
		if err != nil {
			return ports.ResolvedMedia{}, err
		}
		return parseResolveOutput(stdout)
	})
}

// Search runs a YouTube search and returns at most limit flat entries.
func (r *YtdlpResolver) Search(ctx context.Context, query string, limit int) ([]ports.SearchResult, error) {
	if limit <= 0 {
		limit = 1
	}
	target := fmt.Sprintf("ytsearch%d:%s", limit, query)
	return withClients(ctx, r.clients, target, func(client string) ([]ports.SearchResult, error) {
		cmd := r.command().
			FlatPlaylist().
			Print(entryPrintTemplate)
		stdout, err := r.run(ctx, cmd, client, target)
		if err != nil {
			return nil, err
		}
		entries, _ := parseEntries(stdout)
		return entries, nil
	})
}

// ExpandPlaylist lists the flat entries of url when it points at a playlist.
func (r *YtdlpResolver) ExpandPlaylist(ctx context.Context, url string) (ports.Playlist, bool, error) {
	type expanded struct {
		playlist ports.Playlist
		ok       bool
	}
	res, err := withClients(ctx, r.clients, url, func(client string) (expanded, error) {
		cmd := r.command().
			FlatPlaylist().
			YesPlaylist().
			Print(entryPrintTemplate)
		stdout, err := r.run(ctx, cmd, client, url)
		if err != nil {
			return expanded{}, err
		}
		playlist, ok := parsePlaylistOutput(stdout)
		return expanded{playlist: playlist, ok: ok}, nil
	})
	if err != nil {
		return ports.Playlist{}, false, err
	}
	return res.playlist, res.ok, nil
}

func (r *YtdlpResolver) command() *ytdlp.Command {
	cmd := ytdlp.New().
		NoWarnings().
		IgnoreConfig()
	if r.proxy != "" {
		cmd.Proxy(r.proxy)
	}
	return cmd
}

func (r *YtdlpResolver) run(ctx context.Context, cmd *ytdlp.Command, client, target string) (string, error) {
	res, err := cmd.Run(ctx, r.args(client, target)...)
	if err != nil {
		if res != nil && strings.TrimSpace(res.Stderr) != "" {
			return "", fmt.Errorf("%w: %s", err, lastLine(res.Stderr))
		}
		return "", err
	}
	return res.Stdout, nil
}

func (r *YtdlpResolver) args(client, target string) []string {
	args := []string{"--extractor-args", "youtube:player_client=" + client}
	if r.cacheDir != "" {
		args = append(args, "--cache-dir", r.cacheDir)
	}
	return append(args, target)
}

// withClients calls fn with each player client until one succeeds.
func withClients[T any](ctx context.Context, clients []string, source string, fn func(client string) (T, error)) (T, error) {
	var zero T
	var errs []error
	for _, client := range clients {
		v, err := fn(client)
		if err == nil {
			return v, nil
		}
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		slog.Debug("yt-dlp client failed", "client", client, "source", source, "error", err)
		errs = append(errs, fmt.Errorf("%s: %w", client, err))
	}
	return zero, fmt.Errorf("failed to resolve %s: %w", source, errors.Join(errs...))
}

type resolveLine struct {
	URL      string   `json:"url"`
	Title    string   `json:"title"`
	Duration *float64 `json:"duration"`
	IsLive   bool     `json:"is_live"`
}

// parseResolveOutput parses the first usable line printed with resolvePrintTemplate.
func parseResolveOutput(stdout string) (ports.ResolvedMedia, error) {
	for line := range strings.SplitSeq(strings.TrimSpace(stdout), "\n") {
		var v resolveLine
		if err := json.Unmarshal([]byte(strings.TrimSpace(line)), &v); err != nil {
			continue
		}
		if !strings.HasPrefix(v.URL, "http") {
			continue
		}

		media := ports.ResolvedMedia{
			PlayURL: v.URL,
			Title:   v.Title,
			IsLive:  v.IsLive,
		}
		if v.Duration != nil && *v.Duration > 0 && !media.IsLive {
			media.Duration = seconds(*v.Duration)
		}
		return media, nil
	}
	return ports.ResolvedMedia{}, ErrUnparsableOutput
}

type entryLine struct {
	ID            string   `json:"id"`
	URL           string   `json:"url"`
	WebpageURL    string   `json:"webpage_url"`
	Title         string   `json:"title"`
	Duration      *float64 `json:"duration"`
	Uploader      string   `json:"uploader"`
	Channel       string   `json:"channel"`
	LiveStatus    string   `json:"live_status"`
	PlaylistTitle string   `json:"playlist_title"`
	PlaylistIndex *int     `json:"playlist_index"`
}

func (e entryLine) result() ports.SearchResult {
	res := ports.SearchResult{
		URL:      e.pageURL(),
		Title:    e.Title,
		Uploader: e.Uploader,
		IsLive:   e.LiveStatus == "is_live",
	}
	if res.Uploader == "" {
		res.Uploader = e.Channel
	}
	if e.Duration != nil && *e.Duration > 0 && !res.IsLive {
		res.Duration = seconds(*e.Duration)
	}
	return res
}

func (e entryLine) pageURL() string {
	for _, u := range []string{e.WebpageURL, e.URL} {
		if strings.HasPrefix(u, "http") {
			return u
		}
	}
	if e.ID != "" {
		return youtubeWatchURL + e.ID
	}
	return ""
}

// parseEntries decodes one entry per line. inPlaylist reports whether any
// entry carried a playlist index.
func parseEntries(stdout string) (entries []ports.SearchResult, inPlaylist bool) {
	for line := range strings.SplitSeq(strings.TrimSpace(stdout), "\n") {
		var v entryLine
		if err := json.Unmarshal([]byte(strings.TrimSpace(line)), &v); err != nil {
			continue
		}
		if v.PlaylistIndex != nil {
			inPlaylist = true
		}
		entries = append(entries, v.result())
	}
	return entries, inPlaylist
}

func parsePlaylistOutput(stdout string) (ports.Playlist, bool) {
	entries, inPlaylist := parseEntries(stdout)
	if !inPlaylist {
		return ports.Playlist{}, false
	}

	playlist := ports.Playlist{Entries: entries}
	for line := range strings.SplitSeq(strings.TrimSpace(stdout), "\n") {
		var v entryLine
		if json.Unmarshal([]byte(strings.TrimSpace(line)), &v) == nil && v.PlaylistTitle != "" {
			playlist.Name = v.PlaylistTitle
			break
		}
	}
	return playlist, true
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
