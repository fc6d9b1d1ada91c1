package infrastructure

import (
	"context"
	"fmt"

	"github.com/sglre6355/vcbot/internal/modules/playback/application/ports"
	"golang.org/x/sync/semaphore"
)

// DefaultResolverWorkers bounds concurrent resolutions when no size is configured.
const DefaultResolverWorkers = 6

// Compile-time checks that BoundedResolver implements the resolver ports.
var (
	_ ports.MediaResolver = (*BoundedResolver)(nil)
	_ ports.MediaSearcher = (*BoundedResolver)(nil)
)

// BoundedResolver limits how many resolutions run at once across all guilds.
// Slow extractions queue behind the limit instead of spawning unbounded processes.
type BoundedResolver struct {
	next ports.MediaResolver
	sem  *semaphore.Weighted
}

// NewBoundedResolver wraps next with a pool of workers slots.
func NewBoundedResolver(next ports.MediaResolver, workers int) *BoundedResolver {
	if workers <= 0 {
		workers = DefaultResolverWorkers
	}
	return &BoundedResolver{
		next: next,
		sem:  semaphore.NewWeighted(int64(workers)),
	}
}

// Resolve waits for a free slot, then delegates.
func (b *BoundedResolver) Resolve(ctx context.Context, identifier string) (ports.ResolvedMedia, error) {
	if err := b.sem.Acquire(ctx, 1); err != nil {
		return ports.ResolvedMedia{}, fmt.Errorf("failed to acquire resolver slot: %w", err)
	}
	defer b.sem.Release(1)

	return b.next.Resolve(ctx, identifier)
}

// Search shares the resolver slots. It returns nothing when next cannot search.
func (b *BoundedResolver) Search(ctx context.Context, query string, limit int) ([]ports.SearchResult, error) {
	searcher, ok := b.next.(ports.MediaSearcher)
	if !ok {
		return nil, nil
	}
	if err := b.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("failed to acquire resolver slot: %w", err)
	}
	defer b.sem.Release(1)

	return searcher.Search(ctx, query, limit)
}

// ExpandPlaylist shares the resolver slots. Without a searcher every URL is a single item.
func (b *BoundedResolver) ExpandPlaylist(ctx context.Context, url string) (ports.Playlist, bool, error) {
	searcher, ok := b.next.(ports.MediaSearcher)
	if !ok {
		return ports.Playlist{}, false, nil
	}
	if err := b.sem.Acquire(ctx, 1); err != nil {
		return ports.Playlist{}, false, fmt.Errorf("failed to acquire resolver slot: %w", err)
	}
	defer b.sem.Release(1)

	return searcher.ExpandPlaylist(ctx, url)
}
