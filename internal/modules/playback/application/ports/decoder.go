package ports

import (
	"context"
	"time"
)

// DecodedSource is a playable source produced by a StreamDecoder.
// Concrete transports accept the concrete source types their decoder produces.
type DecodedSource interface {
	// Close releases the underlying decoder. It is safe to call more than once.
	Close() error
}

// StreamDecoder turns a local file or remote URL into a DecodedSource.
type StreamDecoder interface {
	// Open starts decoding source at offset. Remote sources reconnect on network errors.
	Open(ctx context.Context, source string, offset time.Duration, remote bool) (DecodedSource, error)
}
