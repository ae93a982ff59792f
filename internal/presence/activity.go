// Package presence owns the lifecycle of the presence channel: it
// turns resolved sessions into channel activity updates, suppresses
// duplicates, and keeps the connection alive with backoff reconnects.
package presence

import (
	"strings"
	"time"

	"presenced/internal/session"
)

// maxFieldLen is the channel's limit on activity text fields.
const maxFieldLen = 128

// Activity is a channel-agnostic description of the presence to
// display: what the channel needs to render "mode, track, elapsed
// time, artwork".
type Activity struct {
	// Details is the first presence line (track name).
	Details string
	// State is the second presence line (mode).
	State string

	LargeImage string
	LargeText  string
	SmallImage string
	SmallText  string

	// StartUnix anchors the channel's elapsed-time display.
	StartUnix int64
}

// modeBackgrounds are the CDN fallback images used when a track has no
// artwork of its own.
var modeBackgrounds = map[session.Mode]string{
	session.ModeFocus:    "https://cdn.brain.fm/images/focus/focus_mental_state_bg_small_aura.webp",
	session.ModeRelax:    "https://cdn.brain.fm/images/relax/relax_mental_state_bg_small_aura.webp",
	session.ModeSleep:    "https://cdn.brain.fm/images/sleep/sleep_mental_state_bg_small_aura.webp",
	session.ModeMeditate: "https://cdn.brain.fm/images/meditate/meditate_mental_state_bg_small_aura.webp",
}

// genreIcons maps lowercase genre names to their CDN icons.
var genreIcons = map[string]string{
	"lofi":        "https://cdn.brain.fm/icons/lofi.png",
	"piano":       "https://cdn.brain.fm/icons/piano.png",
	"electronic":  "https://cdn.brain.fm/icons/electronic.png",
	"grooves":     "https://cdn.brain.fm/icons/grooves.png",
	"atmospheric": "https://cdn.brain.fm/icons/atmospheric.png",
	"cinematic":   "https://cdn.brain.fm/icons/cinematic.png",
	"classical":   "https://cdn.brain.fm/icons/classical.png",
	"acoustic":    "https://cdn.brain.fm/icons/acoustic.png",
	"drone":       "https://cdn.brain.fm/icons/drone.png",
	"rain":        "https://cdn.brain.fm/icons/rain.png",
	"forest":      "https://cdn.brain.fm/icons/forest.png",
	"beach":       "https://cdn.brain.fm/icons/beach.png",
	"night":       "https://cdn.brain.fm/icons/night.png",
}

const defaultGenreIcon = "https://cdn.brain.fm/icons/electronic.png"

// BuildActivity maps a non-idle resolved session to the activity the
// channel should display. start is when the current track began, used
// for the channel's elapsed counter.
func BuildActivity(s session.ResolvedSession, start time.Time) Activity {
	a := Activity{
		State:     s.Mode.String(),
		StartUnix: start.Unix(),
	}
	if s.Mode == session.ModeUnknown {
		a.State = "Focus"
	}

	details := "Brain.fm"
	genre := ""
	if s.Metadata != nil {
		if s.Metadata.DisplayName != "" {
			details = s.Metadata.DisplayName
		}
		genre = s.Metadata.Genre
		a.LargeImage = s.Metadata.ArtworkURL
		a.LargeText = s.Metadata.NeuralEffect
	}
	a.Details = truncate(details, maxFieldLen)

	if a.LargeImage == "" {
		a.LargeImage = modeBackground(s.Mode)
	}
	if a.LargeText == "" {
		a.LargeText = "Neural Effect Level"
	}
	a.LargeText = truncate(a.LargeText, maxFieldLen)

	a.SmallImage = genreIcon(genre)
	if genre != "" {
		a.SmallText = truncate(genre, maxFieldLen)
	} else {
		a.SmallText = "Brain.fm"
	}

	return a
}

func modeBackground(mode session.Mode) string {
	if url, ok := modeBackgrounds[mode]; ok {
		return url
	}
	return modeBackgrounds[session.ModeFocus]
}

func genreIcon(genre string) string {
	if url, ok := genreIcons[strings.ToLower(genre)]; ok {
		return url
	}
	return defaultGenreIcon
}

// truncate shortens s to at most max runes, appending "..." when cut.
// Rune-based so multi-byte titles are never split mid-character.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}
