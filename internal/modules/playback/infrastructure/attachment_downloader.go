package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// ErrAttachmentTooLarge is returned when an attachment exceeds the size limit.
var ErrAttachmentTooLarge = errors.New("attachment too large")

// AttachmentDownloader saves uploaded files into the playback scratch directory,
// where the runner deletes them after playing.
type AttachmentDownloader struct {
	dir        string
	maxBytes   int64
	httpClient *http.Client
}

// NewAttachmentDownloader creates a new AttachmentDownloader.
func NewAttachmentDownloader(dir string, maxBytes int64) *AttachmentDownloader {
	return &AttachmentDownloader{
		dir:      dir,
		maxBytes: maxBytes,
		httpClient: &http.Client{
			Timeout: 2 * time.Minute,
		},
	}
}

// Download fetches url into a new file named after filename and returns its path.
// size is the size reported by Discord and is checked before downloading.
func (d *AttachmentDownloader) Download(ctx context.Context, url, filename string, size int64) (string, error) {
	if d.maxBytes > 0 && size > d.maxBytes {
		return "", d.tooLarge(size)
	}

	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create temp dir: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := d.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to download attachment: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to download attachment: unexpected status %s", resp.Status)
	}

	f, err := os.CreateTemp(d.dir, "upload-*"+sanitizeExt(filename))
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}

	body := io.Reader(resp.Body)
	if d.maxBytes > 0 {
		body = io.LimitReader(resp.Body, d.maxBytes+1)
	}
	n, err := io.Copy(f, body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && d.maxBytes > 0 && n > d.maxBytes {
		err = d.tooLarge(n)
	}
	if err != nil {
		_ = os.Remove(f.Name())
		if errors.Is(err, ErrAttachmentTooLarge) {
			return "", err
		}
		return "", fmt.Errorf("failed to save attachment: %w", err)
	}

	return f.Name(), nil
}

func (d *AttachmentDownloader) tooLarge(size int64) error {
	return fmt.Errorf("%w: %s exceeds the %s limit",
		ErrAttachmentTooLarge,
		humanize.IBytes(uint64(size)),
		humanize.IBytes(uint64(d.maxBytes)),
	)
}

// sanitizeExt keeps a short alphanumeric extension so ffmpeg can detect the format.
func sanitizeExt(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if len(ext) < 2 || len(ext) > 6 {
		return ""
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}
