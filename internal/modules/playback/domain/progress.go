package domain

import (
	"fmt"
	"strings"
	"time"
)

const (
	// ProgressBarWidth is the number of cells in the rendered progress bar.
	ProgressBarWidth = 20

	progressFilled = "█"
	progressEmpty  = "░"

	glyphPlaying = "▶️"
	glyphEnded   = "⏹️"

	liveIndicator    = "🔴 LIVE"
	unknownTimestamp = "??:??"
	defaultTitle     = "Unknown title"
)

// RenderProgress renders the progress message body for a session.
// A zero duration means unknown. Live sources ignore elapsed and duration.
func RenderProgress(elapsed, duration time.Duration, title, url string, ended, live bool) string {
	var sb strings.Builder

	glyph := glyphPlaying
	if ended {
		glyph = glyphEnded
	}
	if title == "" {
		title = defaultTitle
	}
	fmt.Fprintf(&sb, "%s **%s**\n", glyph, title)
	if url != "" {
		fmt.Fprintf(&sb, "<%s>\n", url)
	}

	if live {
		sb.WriteString(liveIndicator)
		return sb.String()
	}

	if elapsed < 0 {
		elapsed = 0
	}

	if duration <= 0 {
		fmt.Fprintf(&sb, "`%s` %s / %s", progressBar(0), FormatTimestamp(elapsed), unknownTimestamp)
		return sb.String()
	}

	fraction := float64(elapsed) / float64(duration)
	fraction = min(max(fraction, 0), 1)
	fmt.Fprintf(&sb, "`%s` %s / %s",
		progressBar(fraction),
		FormatTimestamp(min(elapsed, duration)),
		FormatTimestamp(duration),
	)
	return sb.String()
}

func progressBar(fraction float64) string {
	filled := int(fraction * ProgressBarWidth)
	filled = min(max(filled, 0), ProgressBarWidth)
	return strings.Repeat(progressFilled, filled) + strings.Repeat(progressEmpty, ProgressBarWidth-filled)
}

// FormatTimestamp formats d as m:ss, or h:mm:ss from one hour up.
func FormatTimestamp(d time.Duration) string {
	total := int(d / time.Second)
	if total < 0 {
		total = 0
	}
	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60
	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%d:%02d", minutes, seconds)
}
