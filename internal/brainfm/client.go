// Package brainfm is the client for the Brain.fm metadata API.
// It fetches descriptive track metadata (genre, neural effect level,
// artwork) that the local player does not expose.
package brainfm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"presenced/internal/session"
)

// ErrNotFound is returned when the API has no track matching the query.
var ErrNotFound = errors.New("track not found")

// Client calls the Brain.fm API with Bearer authentication. A single
// fetch is bounded by the configured timeout; a slow API must not
// stall the caller's cycle.
type Client struct {
	baseURL string
	token   string
	httpc   *http.Client
	log     *slog.Logger
}

// NewClient creates a metadata client. The token may be empty, in
// which case requests are sent unauthenticated and the API decides
// whether to answer.
func NewClient(baseURL, token string, timeout time.Duration, log *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpc:   &http.Client{Timeout: timeout},
		log:     log,
	}
}

// trackPayload is the track object shape returned by the API
type trackPayload struct {
	ID                string  `json:"id"`
	Name              string  `json:"name"`
	GenreName         string  `json:"genreName"`
	NeuralEffectLevel float64 `json:"neuralEffectLevel"`
	NeuralEffect      string  `json:"neuralEffectDisplayValue"`
	MentalState       string  `json:"mentalStateDisplayValue"`
	ImageURL          string  `json:"imageUrl"`
}

type searchResponse struct {
	Result []trackPayload `json:"result"`
}

// FetchTrack looks up metadata for the given title and returns a fresh
// record carrying the supplied identity. An expired configured token
// short-circuits with ErrTokenExpired before any network traffic; the
// caller falls back to its cache and retries on a later cycle once the
// player has refreshed the token.
func (c *Client) FetchTrack(ctx context.Context, id session.TrackIdentity, title string) (session.MetadataRecord, error) {
	if c.token != "" && TokenExpired(c.token) {
		return session.MetadataRecord{}, ErrTokenExpired
	}

	u := fmt.Sprintf("%s/v3/tracks?name=%s", c.baseURL, url.QueryEscape(title))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return session.MetadataRecord{}, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return session.MetadataRecord{}, fmt.Errorf("metadata request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return session.MetadataRecord{}, fmt.Errorf("metadata request returned HTTP %d", resp.StatusCode)
	}

	var payload searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return session.MetadataRecord{}, fmt.Errorf("failed to decode metadata response: %w", err)
	}
	if len(payload.Result) == 0 {
		return session.MetadataRecord{}, ErrNotFound
	}

	track := pickTrack(payload.Result, title)
	c.log.Debug("metadata fetched", "track", track.Name, "genre", track.GenreName)

	return session.MetadataRecord{
		Identity:     id,
		DisplayName:  track.Name,
		Genre:        track.GenreName,
		NeuralEffect: neuralEffectDisplay(track),
		MentalState:  track.MentalState,
		ArtworkURL:   track.ImageURL,
		FetchedAt:    time.Now(),
	}, nil
}

// pickTrack prefers an exact (case-insensitive) name match over the
// API's own ranking, then falls back to the first result.
func pickTrack(tracks []trackPayload, title string) trackPayload {
	want := strings.ToLower(strings.TrimSpace(title))
	for _, t := range tracks {
		if strings.ToLower(strings.TrimSpace(t.Name)) == want {
			return t
		}
	}
	return tracks[0]
}

// neuralEffectDisplay returns the API's display string when present,
// otherwise derives one from the numeric level.
func neuralEffectDisplay(t trackPayload) string {
	if t.NeuralEffect != "" {
		return t.NeuralEffect
	}
	switch {
	case t.NeuralEffectLevel >= 0.7:
		return "High Neural Effect"
	case t.NeuralEffectLevel >= 0.4:
		return "Medium Neural Effect"
	case t.NeuralEffectLevel > 0:
		return "Low Neural Effect"
	default:
		return ""
	}
}
