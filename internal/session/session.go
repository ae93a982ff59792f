// Package session provides shared type definitions for the playback
// session state flowing through the daemon: raw observations from the
// local player, metadata records learned from the remote API, and the
// resolved sessions handed to the presence publisher.
package session

import (
	"strings"
	"time"
)

// Mode represents the mental-state mode of a Brain.fm session
type Mode int

const (
	ModeUnknown Mode = iota
	ModeFocus
	ModeRelax
	ModeSleep
	ModeMeditate
)

// String returns the display name of the mode
func (m Mode) String() string {
	switch m {
	case ModeFocus:
		return "Focus"
	case ModeRelax:
		return "Relax"
	case ModeSleep:
		return "Sleep"
	case ModeMeditate:
		return "Meditate"
	default:
		return "Unknown"
	}
}

// modePatterns maps known mode and activity names (lowercase) to their
// canonical mental state. Activities like "Deep Work" belong to Focus;
// "Recharge" and "Chill" belong to Relax.
var modePatterns = []struct {
	pattern string
	mode    Mode
}{
	{"deep work", ModeFocus},
	{"light work", ModeFocus},
	{"motivation", ModeFocus},
	{"learning", ModeFocus},
	{"creativity", ModeFocus},
	{"focus", ModeFocus},
	{"deep sleep", ModeSleep},
	{"light sleep", ModeSleep},
	{"wind down", ModeSleep},
	{"sleep", ModeSleep},
	{"recharge", ModeRelax},
	{"chill", ModeRelax},
	{"destress", ModeRelax},
	{"relax", ModeRelax},
	{"unguided", ModeMeditate},
	{"guided", ModeMeditate},
	{"meditate", ModeMeditate},
}

// ParseMode matches s against the known mode and activity names and
// returns the canonical mode, or ModeUnknown if nothing matches.
// Matching is case-insensitive and tolerates surrounding text, so both
// "Deep Work" and "Focus - Deep Work" parse to ModeFocus.
func ParseMode(s string) Mode {
	lower := strings.ToLower(s)
	for _, p := range modePatterns {
		if strings.Contains(lower, p.pattern) {
			return p.mode
		}
	}
	return ModeUnknown
}

// RawObservation is a single snapshot of the local player state.
// Produced fresh on each poll and never mutated; the next poll
// supersedes it.
type RawObservation struct {
	Mode       Mode
	TrackTitle string
	Elapsed    time.Duration
	ObservedAt time.Time
}

// TrackIdentity is the stable key joining local observations with
// remote metadata. It is either the remote track id, or a normalized
// "title|mode" pair when no remote id is known.
type TrackIdentity string

// DeriveIdentity builds a TrackIdentity. The remote id wins when
// present; otherwise the title is lowercased and whitespace-collapsed
// so that cosmetic differences between sources produce the same key.
// An empty title with no remote id yields the empty identity.
func DeriveIdentity(remoteID, title string, mode Mode) TrackIdentity {
	if remoteID != "" {
		return TrackIdentity(remoteID)
	}
	norm := strings.Join(strings.Fields(strings.ToLower(title)), " ")
	if norm == "" {
		return ""
	}
	return TrackIdentity(norm + "|" + strings.ToLower(mode.String()))
}

// MetadataRecord holds descriptive track metadata learned from the
// remote API. Records are immutable once inserted into the cache; a
// re-fetch creates a new record that replaces the old entry.
type MetadataRecord struct {
	Identity     TrackIdentity
	DisplayName  string
	Genre        string
	NeuralEffect string
	MentalState  string
	ArtworkURL   string
	FetchedAt    time.Time
}

// MetadataSource says where a resolved session's metadata came from
type MetadataSource int

const (
	// SourceNone means the remote fetch failed and the cache had no
	// entry; the session carries only locally observed fields.
	SourceNone MetadataSource = iota
	// SourceCache means a previously fetched record was reused.
	SourceCache
	// SourceRemote means the metadata was fetched fresh this cycle.
	SourceRemote
)

// String returns the source name for logging and the status endpoint
func (s MetadataSource) String() string {
	switch s {
	case SourceRemote:
		return "remote"
	case SourceCache:
		return "cache"
	default:
		return "none"
	}
}

// ResolvedSession is the merged, best-available description of the
// current session, built fresh each cycle and consumed immediately by
// the publisher.
type ResolvedSession struct {
	Identity TrackIdentity
	Mode     Mode
	Elapsed  time.Duration
	Metadata *MetadataRecord
	Source   MetadataSource
}

// IdleSession returns the sentinel session that signals "nothing
// playing" to the publisher, which responds by clearing presence.
func IdleSession() ResolvedSession {
	return ResolvedSession{}
}

// IsIdle reports whether this is the idle sentinel
func (s ResolvedSession) IsIdle() bool {
	return s.Identity == ""
}
