package usecases

import (
	"context"
	"strings"

	"github.com/sglre6355/vcbot/internal/modules/playback/application/ports"
)

// DefaultSearchLimit is the number of results offered by the search command.
const DefaultSearchLimit = 3

// DefaultMaxPlaylistEntries caps how many entries of one playlist are queued.
const DefaultMaxPlaylistEntries = 100

// knownDurationOverfetch widens the backend search when live and
// unknown-length hits are filtered out.
const knownDurationOverfetch = 3

// SearchInput contains the input for the Search use case.
type SearchInput struct {
	Query string
	Limit int // 0 means DefaultSearchLimit
	// KnownDurationOnly drops results without a known length, such as live streams.
	KnownDurationOnly bool
}

// SearchOutput contains the result of the Search use case.
type SearchOutput struct {
	Results []ports.SearchResult
}

// ExpandPlaylistInput contains the input for the ExpandPlaylist use case.
type ExpandPlaylistInput struct {
	URL string
}

// ExpandPlaylistOutput contains the result of the ExpandPlaylist use case.
type ExpandPlaylistOutput struct {
	Name    string
	Entries []ports.SearchResult
	// Omitted counts entries left out by the playlist cap.
	Omitted int
}

// SearchService handles media search and playlist expansion.
type SearchService struct {
	searcher   ports.MediaSearcher
	maxEntries int
}

// NewSearchService creates a new SearchService. maxEntries <= 0 means
// DefaultMaxPlaylistEntries.
func NewSearchService(searcher ports.MediaSearcher, maxEntries int) *SearchService {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxPlaylistEntries
	}
	return &SearchService{
		searcher:   searcher,
		maxEntries: maxEntries,
	}
}

// Search finds media matching the query.
func (s *SearchService) Search(ctx context.Context, input SearchInput) (*SearchOutput, error) {
	query := strings.TrimSpace(input.Query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if s.searcher == nil {
		return &SearchOutput{}, nil
	}

	limit := input.Limit
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	fetch := limit
	if input.KnownDurationOnly {
		fetch *= knownDurationOverfetch
	}

	results, err := s.searcher.Search(ctx, query, fetch)
	if err != nil {
		return nil, err
	}

	filtered := make([]ports.SearchResult, 0, min(len(results), limit))
	for _, r := range results {
		if r.URL == "" {
			continue
		}
		if input.KnownDurationOnly && (r.Duration <= 0 || r.IsLive) {
			continue
		}
		filtered = append(filtered, r)
		if len(filtered) == limit {
			break
		}
	}

	return &SearchOutput{Results: filtered}, nil
}

// ExpandPlaylist lists the playable entries of a playlist URL, without
// duplicates and capped at the configured maximum. ok is false when the URL
// is not a playlist or the playlist has no entries.
func (s *SearchService) ExpandPlaylist(
	ctx context.Context,
	input ExpandPlaylistInput,
) (*ExpandPlaylistOutput, bool, error) {
	if s.searcher == nil {
		return nil, false, nil
	}

	playlist, ok, err := s.searcher.ExpandPlaylist(ctx, input.URL)
	if err != nil || !ok {
		return nil, false, err
	}

	seen := make(map[string]struct{}, len(playlist.Entries))
	output := &ExpandPlaylistOutput{Name: playlist.Name}
	for _, entry := range playlist.Entries {
		if entry.URL == "" {
			continue
		}
		if _, dup := seen[entry.URL]; dup {
			continue
		}
		seen[entry.URL] = struct{}{}

		if len(output.Entries) == s.maxEntries {
			output.Omitted++
			continue
		}
		output.Entries = append(output.Entries, entry)
	}

	if len(output.Entries) == 0 {
		return nil, false, nil
	}
	return output, true, nil
}
