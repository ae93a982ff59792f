package brainfm

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// ErrTokenExpired is returned when the configured JWT is expired, so
// callers can skip the network round trip entirely.
var ErrTokenExpired = errors.New("access token expired")

// tokenExpiryBuffer treats tokens expiring within this window as
// already expired, avoiding a race between the local check and
// server-side validation.
const tokenExpiryBuffer = 30 * time.Second

// TokenExpired reports whether the JWT's exp claim is in the past
// (with a safety buffer). Malformed tokens are treated as expired.
func TokenExpired(token string) bool {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return true
	}

	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return true
	}

	var claims struct {
		Exp float64 `json:"exp"`
	}
	if err := json.Unmarshal(payload, &claims); err != nil || claims.Exp == 0 {
		return true
	}

	exp := time.Unix(int64(claims.Exp), 0)
	return time.Now().Add(tokenExpiryBuffer).After(exp)
}
