//go:build linux

package source

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/godbus/dbus/v5"

	"presenced/internal/session"
)

const (
	mprisPrefix          = "org.mpris.MediaPlayer2."
	mprisObjectPath      = "/org/mpris/MediaPlayer2"
	mprisPlayerInterface = "org.mpris.MediaPlayer2.Player"
	dbusBusName          = "org.freedesktop.DBus"
	dbusObjectPath       = "/org/freedesktop/DBus"
	propertiesGet        = "org.freedesktop.DBus.Properties.Get"
)

// MPRISSource reads playback state from the player's MPRIS interface
// on the session bus. It is read-only: it never sends commands to the
// player.
type MPRISSource struct {
	conn    *dbus.Conn
	player  string // lowercase bus-name fragment identifying the player
	timeout time.Duration
	log     *slog.Logger
}

// New creates a source that polls the MPRIS player whose bus name
// contains the player fragment (e.g. "brain.fm").
func New(player string, timeout time.Duration, log *slog.Logger) (Source, error) {
	conn, err := dbus.SessionBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to session bus: %w", err)
	}

	return &MPRISSource{
		conn:    conn,
		player:  strings.ToLower(player),
		timeout: timeout,
		log:     log,
	}, nil
}

// Poll probes the player state. Every failure path returns absence
// rather than an error: the source's own unavailability is not the
// caller's problem.
func (s *MPRISSource) Poll(ctx context.Context) (session.RawObservation, bool) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	busName, ok := s.findPlayer(ctx)
	if !ok {
		return session.RawObservation{}, false
	}

	obj := s.conn.Object(busName, mprisObjectPath)

	status, err := s.getStringProp(ctx, obj, "PlaybackStatus")
	if err != nil {
		s.log.Debug("mpris playback status unavailable", "error", err)
		return session.RawObservation{}, false
	}
	if status != "Playing" {
		return session.RawObservation{}, false
	}

	meta, err := s.getMetadata(ctx, obj)
	if err != nil {
		s.log.Debug("mpris metadata unavailable", "error", err)
		return session.RawObservation{}, false
	}

	obs := session.RawObservation{
		TrackTitle: meta.title,
		Mode:       meta.mode(),
		ObservedAt: time.Now(),
	}

	// Position failures leave elapsed at zero; the observation is
	// still usable.
	if pos, err := s.getPosition(ctx, obj); err == nil {
		obs.Elapsed = pos
	}

	return obs, obs.TrackTitle != ""
}

// Close releases the bus connection
func (s *MPRISSource) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

// findPlayer lists bus names and returns the first MPRIS player whose
// name contains the configured fragment.
func (s *MPRISSource) findPlayer(ctx context.Context) (string, bool) {
	var names []string
	err := s.conn.Object(dbusBusName, dbusObjectPath).
		CallWithContext(ctx, dbusBusName+".ListNames", 0).
		Store(&names)
	if err != nil {
		s.log.Debug("mpris list names failed", "error", err)
		return "", false
	}

	for _, name := range names {
		if !strings.HasPrefix(name, mprisPrefix) {
			continue
		}
		if strings.Contains(strings.ToLower(name), s.player) {
			return name, true
		}
	}
	return "", false
}

type trackMeta struct {
	title string
	album string
	genre string
}

// mode derives the session mode from the metadata fields the player
// exposes. Brain.fm publishes the mental state in the album field;
// genre is checked as a fallback.
func (m trackMeta) mode() session.Mode {
	if mode := session.ParseMode(m.album); mode != session.ModeUnknown {
		return mode
	}
	return session.ParseMode(m.genre)
}

func (s *MPRISSource) getMetadata(ctx context.Context, obj dbus.BusObject) (trackMeta, error) {
	var v dbus.Variant
	err := obj.CallWithContext(ctx, propertiesGet, 0, mprisPlayerInterface, "Metadata").Store(&v)
	if err != nil {
		return trackMeta{}, err
	}

	fields, ok := v.Value().(map[string]dbus.Variant)
	if !ok {
		return trackMeta{}, fmt.Errorf("unexpected metadata type %T", v.Value())
	}

	var meta trackMeta
	if t, ok := fields["xesam:title"].Value().(string); ok {
		meta.title = t
	}
	if a, ok := fields["xesam:album"].Value().(string); ok {
		meta.album = a
	}
	// xesam:genre is a string list in MPRIS metadata.
	if gs, ok := fields["xesam:genre"].Value().([]string); ok && len(gs) > 0 {
		meta.genre = gs[0]
	}
	return meta, nil
}

func (s *MPRISSource) getStringProp(ctx context.Context, obj dbus.BusObject, prop string) (string, error) {
	var v dbus.Variant
	err := obj.CallWithContext(ctx, propertiesGet, 0, mprisPlayerInterface, prop).Store(&v)
	if err != nil {
		return "", err
	}
	str, ok := v.Value().(string)
	if !ok {
		return "", fmt.Errorf("unexpected property type %T for %s", v.Value(), prop)
	}
	return str, nil
}

func (s *MPRISSource) getPosition(ctx context.Context, obj dbus.BusObject) (time.Duration, error) {
	var v dbus.Variant
	err := obj.CallWithContext(ctx, propertiesGet, 0, mprisPlayerInterface, "Position").Store(&v)
	if err != nil {
		return 0, err
	}
	micros, ok := v.Value().(int64)
	if !ok {
		return 0, fmt.Errorf("unexpected position type %T", v.Value())
	}
	return time.Duration(micros) * time.Microsecond, nil
}
