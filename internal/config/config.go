// Package config handles daemon configuration from the environment.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Defaults for every tunable. The Discord application id is the
// registered "Brain.fm" app; override DISCORD_APP_ID to use your own.
const (
	DefaultPollInterval     = 5 * time.Second
	DefaultSourceTimeout    = 2 * time.Second
	DefaultPlayerName       = "brain.fm"
	DefaultCacheSize        = 32
	DefaultAPIBaseURL       = "https://api.brain.fm"
	DefaultAPITimeout       = 5 * time.Second
	DefaultDiscordAppID     = "1468727702675521547"
	DefaultStatusAddr       = "127.0.0.1:6312"
	DefaultReconnectInitial = 1 * time.Second
	DefaultReconnectMax     = 60 * time.Second
	DefaultDegradedAfter    = 5
)

// Config holds all daemon settings resolved from the environment
type Config struct {
	// PollInterval is the sync cycle cadence.
	PollInterval time.Duration

	// SourceTimeout bounds a single local state poll.
	SourceTimeout time.Duration

	// PlayerName is the MPRIS bus-name fragment identifying the player.
	PlayerName string

	// CacheSize is the metadata cache capacity, fixed at startup.
	CacheSize int

	// APIBaseURL and APIToken configure the remote metadata client.
	APIBaseURL string
	APIToken   string
	APITimeout time.Duration

	// DiscordAppID identifies the Rich Presence application.
	DiscordAppID string

	// StatusAddr is the listen address of the local status server.
	StatusAddr string

	// Logging: "debug"/"info"/"warn"/"error" and "json"/"text".
	LogLevel  string
	LogFormat string

	// Reconnect backoff bounds and the consecutive-failure count after
	// which the daemon reports itself degraded.
	ReconnectInitial time.Duration
	ReconnectMax     time.Duration
	DegradedAfter    int
}

// Load reads a .env file and sets environment variables. If the file
// does not exist, Load returns an error that callers can ignore and
// fall back to the system env or defaults.
func Load(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	return godotenv.Load(paths...)
}

// FromEnv builds a Config from environment variables, applying
// defaults for everything unset.
func FromEnv() Config {
	return Config{
		PollInterval:     GetEnvDuration("POLL_INTERVAL", DefaultPollInterval),
		SourceTimeout:    GetEnvDuration("SOURCE_TIMEOUT", DefaultSourceTimeout),
		PlayerName:       GetEnv("PLAYER_NAME", DefaultPlayerName),
		CacheSize:        GetEnvInt("CACHE_SIZE", DefaultCacheSize),
		APIBaseURL:       GetEnv("API_BASE_URL", DefaultAPIBaseURL),
		APIToken:         GetEnv("API_TOKEN", ""),
		APITimeout:       GetEnvDuration("API_TIMEOUT", DefaultAPITimeout),
		DiscordAppID:     GetEnv("DISCORD_APP_ID", DefaultDiscordAppID),
		StatusAddr:       GetEnv("STATUS_ADDR", DefaultStatusAddr),
		LogLevel:         GetEnv("LOG_LEVEL", "info"),
		LogFormat:        GetEnv("LOG_FORMAT", "text"),
		ReconnectInitial: GetEnvDuration("RECONNECT_INITIAL", DefaultReconnectInitial),
		ReconnectMax:     GetEnvDuration("RECONNECT_MAX_DELAY", DefaultReconnectMax),
		DegradedAfter:    GetEnvInt("DEGRADED_AFTER", DefaultDegradedAfter),
	}
}

// GetEnv returns the value of the environment variable named by key,
// or fallback if the variable is unset or empty.
func GetEnv(key, fallback string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return fallback
}

// GetEnvInt returns the integer value of the environment variable named
// by key, or fallback if unset, empty, or not a valid integer.
func GetEnvInt(key string, fallback int) int {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return fallback
}

// GetEnvDuration returns the duration value of the environment variable
// named by key (Go duration syntax, e.g. "5s"), or fallback if unset,
// empty, or not parseable.
func GetEnvDuration(key string, fallback time.Duration) time.Duration {
	if s := os.Getenv(key); s != "" {
		if d, err := time.ParseDuration(s); err == nil {
			return d
		}
	}
	return fallback
}
