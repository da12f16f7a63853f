package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Browser   BrowserConfig
	Scraper   ScraperConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Cache     CacheConfig
	Batch     BatchConfig
	Log       LogConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: $PORT, then 8080
	Mode string // "debug", "release", "test"; default: "release"
}

// BrowserConfig controls the shared Chromium process and the identity of
// each session opened in it.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// DefaultProxy is the proxy URL for all sessions.
	DefaultProxy string

	// Stealth opens pages through go-rod/stealth.
	Stealth bool // default: true

	// BlockedResourceTypes lists resource types to abort, e.g. "Font".
	// Empty keeps network-idle waiting available. default: none
	BlockedResourceTypes []string

	// BlockTrackers aborts requests to third-party analytics and ad-tech
	// hosts. The ad library's own hosts are never blocked.
	BlockTrackers bool // default: false

	// Locale and Timezone are applied to every session.
	Locale   string // default: "en-US"
	Timezone string // default: "America/New_York"

	// ViewportWidth and ViewportHeight size every session's page.
	ViewportWidth  int // default: 1920
	ViewportHeight int // default: 1080
}

// ScraperConfig controls the scroll-and-extract loop.
type ScraperConfig struct {
	// MaxSessions bounds concurrent browser sessions.
	MaxSessions int // default: 3

	// NavigationTimeout is the hard ceiling for loading the search page.
	NavigationTimeout time.Duration // default: 60s

	// SettleMin and SettleMax bound the pause after navigation.
	SettleMin time.Duration // default: 2s
	SettleMax time.Duration // default: 4s

	// ScrollDelayMin and ScrollDelayMax bound the pause after each scroll.
	ScrollDelayMin time.Duration // default: 1.5s
	ScrollDelayMax time.Duration // default: 3s

	// ScrollDistanceMin and ScrollDistanceMax bound each scroll in pixels.
	ScrollDistanceMin int // default: 800
	ScrollDistanceMax int // default: 1200
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication. With no keys configured an
	// enabled check rejects every request.
	Enabled bool // default: true

	// APIKeys is the list of valid API keys.
	APIKeys []string
}

// RateLimitConfig controls per-key rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per API key.
	RequestsPerSecond float64 // default: 1

	// Burst is the maximum burst size per API key.
	Burst int // default: 5
}

// CacheConfig controls the scrape response cache.
type CacheConfig struct {
	// MaxEntries is the maximum number of cached responses.
	MaxEntries int // default: 500
}

// BatchConfig controls async batch jobs.
type BatchConfig struct {
	// MaxKeywords caps the keywords accepted in one batch.
	MaxKeywords int // default: 20

	// JobTTL is how long finished jobs stay queryable.
	JobTTL time.Duration // default: 1h
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host: envOr("ADSCOPE_HOST", "0.0.0.0"),
			Port: envIntOr("ADSCOPE_PORT", envIntOr("PORT", 8080)),
			Mode: envOr("ADSCOPE_MODE", "release"),
		},
		Browser: BrowserConfig{
			Headless:             envBoolOr("ADSCOPE_HEADLESS", true),
			NoSandbox:            envBoolOr("ADSCOPE_NO_SANDBOX", false),
			BrowserBin:           os.Getenv("ADSCOPE_BROWSER_BIN"),
			DefaultProxy:         os.Getenv("ADSCOPE_PROXY"),
			Stealth:              envBoolOr("ADSCOPE_STEALTH", true),
			BlockedResourceTypes: envSliceOr("ADSCOPE_BLOCKED_RESOURCES", nil),
			BlockTrackers:        envBoolOr("ADSCOPE_BLOCK_TRACKERS", false),
			Locale:               envOr("ADSCOPE_LOCALE", "en-US"),
			Timezone:             envOr("ADSCOPE_TIMEZONE", "America/New_York"),
			ViewportWidth:        envIntOr("ADSCOPE_VIEWPORT_WIDTH", 1920),
			ViewportHeight:       envIntOr("ADSCOPE_VIEWPORT_HEIGHT", 1080),
		},
		Scraper: ScraperConfig{
			MaxSessions:       envIntOr("ADSCOPE_MAX_SESSIONS", 3),
			NavigationTimeout: envDurationOr("ADSCOPE_NAV_TIMEOUT", 60*time.Second),
			SettleMin:         envDurationOr("ADSCOPE_SETTLE_MIN", 2*time.Second),
			SettleMax:         envDurationOr("ADSCOPE_SETTLE_MAX", 4*time.Second),
			ScrollDelayMin:    envDurationOr("ADSCOPE_SCROLL_DELAY_MIN", 1500*time.Millisecond),
			ScrollDelayMax:    envDurationOr("ADSCOPE_SCROLL_DELAY_MAX", 3*time.Second),
			ScrollDistanceMin: envIntOr("ADSCOPE_SCROLL_MIN", 800),
			ScrollDistanceMax: envIntOr("ADSCOPE_SCROLL_MAX", 1200),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("ADSCOPE_AUTH_ENABLED", true),
			APIKeys: envSliceOr("ADSCOPE_API_KEYS", envSliceOr("PLAYWRIGHT_API_KEY", nil)),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("ADSCOPE_RATE_RPS", 1.0),
			Burst:             envIntOr("ADSCOPE_RATE_BURST", 5),
		},
		Cache: CacheConfig{
			MaxEntries: envIntOr("ADSCOPE_CACHE_MAX_ENTRIES", 500),
		},
		Batch: BatchConfig{
			MaxKeywords: envIntOr("ADSCOPE_MAX_BATCH", 20),
			JobTTL:      envDurationOr("ADSCOPE_BATCH_TTL", time.Hour),
		},
		Log: LogConfig{
			Level:  envOr("ADSCOPE_LOG_LEVEL", "info"),
			Format: envOr("ADSCOPE_LOG_FORMAT", "json"),
		},
	}
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
