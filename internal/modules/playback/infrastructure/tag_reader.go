package infrastructure

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/dhowden/tag"
)

// TagReader reads display titles from the embedded tags of audio files.
type TagReader struct{}

// NewTagReader creates a new TagReader.
func NewTagReader() *TagReader {
	return &TagReader{}
}

// Title returns "Artist - Title" from the file's tags, or just the title when
// there is no artist. It returns an empty string if the file has no usable tags.
func (r *TagReader) Title(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open audio file: %w", err)
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		if errors.Is(err, tag.ErrNoTagsFound) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read tags: %w", err)
	}

	title := strings.TrimSpace(m.Title())
	if title == "" {
		return "", nil
	}

	artist := strings.TrimSpace(m.Artist())
	if artist == "" {
		artist = strings.TrimSpace(m.AlbumArtist())
	}
	if artist == "" {
		return title, nil
	}
	return artist + " - " + title, nil
}
