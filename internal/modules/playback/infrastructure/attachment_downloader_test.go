package infrastructure

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestAttachmentDownloader_Download(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok.mp3":
			_, _ = w.Write([]byte("audio-bytes"))
		case "/big.mp3":
			_, _ = w.Write([]byte(strings.Repeat("x", 64)))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	tests := []struct {
		name     string
		path     string
		filename string
		size     int64
		wantErr  error
		wantFail bool
		wantExt  string
	}{
		{name: "downloads", path: "/ok.mp3", filename: "song.MP3", size: 11, wantExt: ".mp3"},
		{name: "declared size over limit", path: "/ok.mp3", filename: "a.mp3", size: 1 << 20, wantErr: ErrAttachmentTooLarge},
		{name: "actual size over limit", path: "/big.mp3", filename: "a.mp3", size: 1, wantErr: ErrAttachmentTooLarge},
		{name: "not found", path: "/missing", filename: "a.mp3", size: 1, wantFail: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			d := NewAttachmentDownloader(dir, 32)

			path, err := d.Download(context.Background(), srv.URL+tt.path, tt.filename, tt.size)

			if tt.wantErr != nil || tt.wantFail {
				if err == nil {
					t.Fatal("expected error")
				}
				if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
					t.Errorf("expected %v, got %v", tt.wantErr, err)
				}
				entries, _ := os.ReadDir(dir)
				if len(entries) != 0 {
					t.Errorf("expected no leftover files, got %d", len(entries))
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if filepath.Dir(path) != dir {
				t.Errorf("expected file in %s, got %s", dir, path)
			}
			if filepath.Ext(path) != tt.wantExt {
				t.Errorf("expected extension %s, got %s", tt.wantExt, filepath.Ext(path))
			}
			data, err := os.ReadFile(path)
			if err != nil {
				t.Fatalf("failed to read download: %v", err)
			}
			if string(data) != "audio-bytes" {
				t.Errorf("expected downloaded content, got %q", data)
			}
		})
	}
}

func TestSanitizeExt(t *testing.T) {
	tests := map[string]string{
		"a.mp3":         ".mp3",
		"a.OGG":         ".ogg",
		"noext":         "",
		"a.tar.gz":      ".gz",
		"evil.m p3":     "",
		"a.verylongext": "",
	}
	for in, want := range tests {
		if got := sanitizeExt(in); got != want {
			t.Errorf("sanitizeExt(%q): expected %q, got %q", in, want, got)
		}
	}
}
