package ports

import (
	"context"
	"time"
)

// ResolvedMedia is the result of resolving a stream identifier.
type ResolvedMedia struct {
	PlayURL  string
	Title    string
	Duration time.Duration // zero when unknown
	IsLive   bool
}

// MediaResolver resolves a page URL or identifier to a short-lived playable URL.
type MediaResolver interface {
	Resolve(ctx context.Context, identifier string) (ResolvedMedia, error)
}
