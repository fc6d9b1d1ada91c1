package domain

import "testing"

func TestParseSourceKind(t *testing.T) {
	tests := []struct {
		in   string
		want SourceKind
	}{
		{"https://www.youtube.com/watch?v=abc", SourceYouTube},
		{"https://music.youtube.com/watch?v=abc", SourceYouTube},
		{"https://youtu.be/abc", SourceYouTube},
		{"https://soundcloud.com/a/b", SourceSoundCloud},
		{"https://www.twitch.tv/somebody", SourceTwitch},
		{"https://example.com/a.mp3", SourceOther},
		{"/tmp/x.mp3", SourceFile},
		{"", SourceOther},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseSourceKind(tt.in); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestIsRemote(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"https://example.com/a.mp3", true},
		{"http://example.com/a.mp3", true},
		{"/tmp/a.mp3", false},
		{"file:///tmp/a.mp3", false},
		{"relative/a.mp3", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := IsRemote(tt.in); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestIsPlaylistURL(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"https://www.youtube.com/playlist?list=PL123", true},
		{"https://www.youtube.com/watch?v=abc&list=PL123", true},
		{"https://music.youtube.com/playlist?list=OLAK5", true},
		{"https://soundcloud.com/artist/sets/summer", true},
		{"https://artist.bandcamp.com/album/first", true},
		{"https://www.youtube.com/watch?v=abc", false},
		{"https://youtu.be/abc?list=", false},
		{"https://soundcloud.com/artist/track", false},
		{"/tmp/playlist/a.mp3", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := IsPlaylistURL(tt.in); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}
