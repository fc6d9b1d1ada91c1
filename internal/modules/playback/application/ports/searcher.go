package ports

import (
	"context"
	"time"
)

// SearchResult is one search hit or one entry of a playlist.
type SearchResult struct {
	// URL is the page URL. It is resolved again right before playing.
	URL      string
	Title    string
	Uploader string
	Duration time.Duration // zero when unknown
	IsLive   bool
}

// Playlist is an expanded playlist URL.
type Playlist struct {
	Name    string
	Entries []SearchResult
}

// MediaSearcher finds media by free text and lists the entries of playlists.
type MediaSearcher interface {
	// Search returns at most limit results for query, best match first.
	Search(ctx context.Context, query string, limit int) ([]SearchResult, error)
	// ExpandPlaylist lists the entries of url. ok is false when url is a single item.
	ExpandPlaylist(ctx context.Context, url string) (playlist Playlist, ok bool, err error)
}
