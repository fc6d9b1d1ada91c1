package domain

import (
	"net/url"
	"strings"
)

// SourceKind is the origin platform of a playback source.
type SourceKind string

const (
	SourceYouTube    SourceKind = "youtube"
	SourceSoundCloud SourceKind = "soundcloud"
	SourceTwitch     SourceKind = "twitch"
	SourceFile       SourceKind = "file"
	SourceOther      SourceKind = "other"
)

// ParseSourceKind classifies a display URL or file path.
func ParseSourceKind(raw string) SourceKind {
	if raw == "" {
		return SourceOther
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		if u != nil && u.Scheme != "" && u.Scheme != "file" {
			return SourceOther
		}
		return SourceFile
	}

	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	switch {
	case host == "youtu.be" || host == "youtube.com" || strings.HasSuffix(host, ".youtube.com"):
		return SourceYouTube
	case host == "soundcloud.com" || strings.HasSuffix(host, ".soundcloud.com"):
		return SourceSoundCloud
	case host == "twitch.tv" || strings.HasSuffix(host, ".twitch.tv"):
		return SourceTwitch
	default:
		return SourceOther
	}
}

// Color returns the embed color used for the source.
func (k SourceKind) Color() int {
	switch k {
	case SourceYouTube:
		return 0xFF0000
	case SourceSoundCloud:
		return 0xFF5500
	case SourceTwitch:
		return 0x9146FF
	case SourceFile:
		return 0x2ECC71
	default:
		return 0x5865F2
	}
}

// IsRemote reports whether a source string is a network URL rather than a local path.
func IsRemote(source string) bool {
	u, err := url.Parse(source)
	if err != nil {
		return false
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https", "rtmp", "rtmps", "hls":
		return u.Host != ""
	default:
		return false
	}
}

// IsPlaylistURL reports whether a remote URL names a playlist, album or set
// rather than a single item.
func IsPlaylistURL(source string) bool {
	if !IsRemote(source) {
		return false
	}
	u, err := url.Parse(source)
	if err != nil {
		return false
	}
	if u.Query().Get("list") != "" {
		return true
	}
	path := strings.ToLower(u.Path)
	return strings.HasPrefix(path, "/playlist") ||
		strings.Contains(path, "/sets/") ||
		strings.Contains(path, "/album/")
}
