package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Browser   BrowserConfig
	Portal    PortalConfig
	Scraper   ScraperConfig
	Snapshot  SnapshotConfig
	Webhook   WebhookConfig
	Runs      RunsConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Log       LogConfig
	Metrics   MetricsConfig
}

// ServerConfig controls the HTTP trigger listener.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 3000
	Mode string // "debug", "release", "test"; default: "release"
}

// BrowserConfig controls the Rod browser instance.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: true

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// Proxy is an optional upstream proxy for all browser traffic.
	Proxy string

	// UserDataDir is the persistent profile directory. Cookies stored here
	// let a later run land directly on the calendar.
	UserDataDir string // default: "user_data"

	ViewportWidth  int // default: 1400
	ViewportHeight int // default: 900

	UserAgent string

	// AcceptLanguage is sent as an extra header on every request.
	AcceptLanguage string // default: "fr-FR,fr;q=0.9,en;q=0.8"

	// SlowMotion delays every input action.
	SlowMotion time.Duration // default: 200ms

	// Stealth injects the anti-detection script before navigation.
	Stealth bool // default: true
}

// PortalConfig describes the scheduling portal being driven.
type PortalConfig struct {
	SigninURL string // default: "https://pro.doctolib.fr/signin"

	// CalendarURLPattern is a case-insensitive regular expression matched
	// against the page URL to decide whether the session is logged in.
	CalendarURLPattern string // default: `pro\.doctolib\.fr/calendar`

	// AcceptCookies clicks through the cookie consent banner when present.
	AcceptCookies bool // default: true
}

// ScraperConfig holds every wait and timeout of a run.
type ScraperConfig struct {
	NavigationTimeout    time.Duration // default: 90s
	LoginRedirectTimeout time.Duration // default: 120s
	SettleDelay          time.Duration // default: 3s, after sign-in navigation
	ConsentWait          time.Duration // default: 5s per selector
	ConsentSettle        time.Duration // default: 2s
	PasswordWait         time.Duration // default: 10s per selector
	FieldWait            time.Duration // default: 5s per selector (username, buttons)
	TypingPause          time.Duration // default: 1s
	ModalWait            time.Duration // default: 5s per selector
	ModalCloseWait       time.Duration // default: 3s per selector
	ModalSettle          time.Duration // default: 2s
	CalendarWait         time.Duration // default: 45s
	SidebarWait          time.Duration // default: 20s
	DetailWait           time.Duration // default: 10s
	SidebarCloseWait     time.Duration // default: 10s
	BetweenAppointments  time.Duration // default: 1s
	Jitter               time.Duration // default: 500ms

	// RunTimeout is the hard deadline for one complete run.
	RunTimeout time.Duration // default: 15m

	// BlockedResourceTypes lists resource types to block.
	// default: ["Media", "Font"]
	BlockedResourceTypes []string

	// BlockTrackers drops requests to known analytics and ad domains.
	BlockTrackers bool // default: true
}

// SnapshotConfig controls debug screenshots.
type SnapshotConfig struct {
	Enabled bool   // default: true
	Dir     string // default: "screenshots"

	// Markdown writes a markdown rendering of the page next to each screenshot.
	Markdown bool // default: false
}

// WebhookConfig controls delivery of scraped records.
type WebhookConfig struct {
	// Secret signs payloads with HMAC-SHA256 when non-empty.
	Secret string

	Timeout time.Duration // default: 10s

	// RetryDelays is the wait before each attempt; its length is the attempt count.
	RetryDelays []time.Duration // default: [0s, 1s, 5s]
}

// RunsConfig controls the in-process run queue.
type RunsConfig struct {
	QueueSize  int           // default: 4
	MaxEntries int           // default: 500
	RetainFor  time.Duration // default: 1h
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool // default: false

	APIKeys []string
}

// RateLimitConfig controls per-key rate limiting of the trigger.
type RateLimitConfig struct {
	RequestsPerSecond float64 // default: 1
	Burst             int     // default: 3
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool // default: true
}

// Load reads configuration from environment variables with sane defaults.
// A .env file in the working directory is read first when present; variables
// already set in the environment take precedence over it.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Server: ServerConfig{
			Host: envOr("APPTRELAY_HOST", "0.0.0.0"),
			Port: envIntOr("APPTRELAY_PORT", 3000),
			Mode: envOr("APPTRELAY_MODE", "release"),
		},
		Browser: BrowserConfig{
			Headless:       envBoolOr("APPTRELAY_HEADLESS", true),
			NoSandbox:      envBoolOr("APPTRELAY_NO_SANDBOX", true),
			BrowserBin:     os.Getenv("APPTRELAY_BROWSER_BIN"),
			Proxy:          os.Getenv("APPTRELAY_PROXY"),
			UserDataDir:    envOr("APPTRELAY_USER_DATA_DIR", "user_data"),
			ViewportWidth:  envIntOr("APPTRELAY_VIEWPORT_WIDTH", 1400),
			ViewportHeight: envIntOr("APPTRELAY_VIEWPORT_HEIGHT", 900),
			UserAgent: envOr("APPTRELAY_USER_AGENT",
				"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"),
			AcceptLanguage: envOr("APPTRELAY_ACCEPT_LANGUAGE", "fr-FR,fr;q=0.9,en;q=0.8"),
			SlowMotion:     envDurationOr("APPTRELAY_SLOW_MOTION", 200*time.Millisecond),
			Stealth:        envBoolOr("APPTRELAY_STEALTH", true),
		},
		Portal: PortalConfig{
			SigninURL:          envOr("APPTRELAY_SIGNIN_URL", "https://pro.doctolib.fr/signin"),
			CalendarURLPattern: envOr("APPTRELAY_CALENDAR_URL_PATTERN", `pro\.doctolib\.fr/calendar`),
			AcceptCookies:      envBoolOr("APPTRELAY_ACCEPT_COOKIES", true),
		},
		Scraper: ScraperConfig{
			NavigationTimeout:    envDurationOr("APPTRELAY_NAV_TIMEOUT", 90*time.Second),
			LoginRedirectTimeout: envDurationOr("APPTRELAY_LOGIN_TIMEOUT", 120*time.Second),
			SettleDelay:          envDurationOr("APPTRELAY_SETTLE_DELAY", 3*time.Second),
			ConsentWait:          envDurationOr("APPTRELAY_CONSENT_WAIT", 5*time.Second),
			ConsentSettle:        envDurationOr("APPTRELAY_CONSENT_SETTLE", 2*time.Second),
			PasswordWait:         envDurationOr("APPTRELAY_PASSWORD_WAIT", 10*time.Second),
			FieldWait:            envDurationOr("APPTRELAY_FIELD_WAIT", 5*time.Second),
			TypingPause:          envDurationOr("APPTRELAY_TYPING_PAUSE", time.Second),
			ModalWait:            envDurationOr("APPTRELAY_MODAL_WAIT", 5*time.Second),
			ModalCloseWait:       envDurationOr("APPTRELAY_MODAL_CLOSE_WAIT", 3*time.Second),
			ModalSettle:          envDurationOr("APPTRELAY_MODAL_SETTLE", 2*time.Second),
			CalendarWait:         envDurationOr("APPTRELAY_CALENDAR_WAIT", 45*time.Second),
			SidebarWait:          envDurationOr("APPTRELAY_SIDEBAR_WAIT", 20*time.Second),
			DetailWait:           envDurationOr("APPTRELAY_DETAIL_WAIT", 10*time.Second),
			SidebarCloseWait:     envDurationOr("APPTRELAY_SIDEBAR_CLOSE_WAIT", 10*time.Second),
			BetweenAppointments:  envDurationOr("APPTRELAY_BETWEEN_APPOINTMENTS", time.Second),
			Jitter:               envDurationOr("APPTRELAY_JITTER", 500*time.Millisecond),
			RunTimeout:           envDurationOr("APPTRELAY_RUN_TIMEOUT", 15*time.Minute),
			BlockedResourceTypes: envSliceOr("APPTRELAY_BLOCKED_RESOURCES", []string{"Media", "Font"}),
			BlockTrackers:        envBoolOr("APPTRELAY_BLOCK_TRACKERS", true),
		},
		Snapshot: SnapshotConfig{
			Enabled:  envBoolOr("APPTRELAY_SNAPSHOTS", true),
			Dir:      envOr("APPTRELAY_SNAPSHOT_DIR", "screenshots"),
			Markdown: envBoolOr("APPTRELAY_SNAPSHOT_MARKDOWN", false),
		},
		Webhook: WebhookConfig{
			Secret:      os.Getenv("APPTRELAY_WEBHOOK_SECRET"),
			Timeout:     envDurationOr("APPTRELAY_WEBHOOK_TIMEOUT", 10*time.Second),
			RetryDelays: envDurationSliceOr("APPTRELAY_WEBHOOK_RETRY_DELAYS", []time.Duration{0, time.Second, 5 * time.Second}),
		},
		Runs: RunsConfig{
			QueueSize:  envIntOr("APPTRELAY_QUEUE_SIZE", 4),
			MaxEntries: envIntOr("APPTRELAY_RUNS_MAX_ENTRIES", 500),
			RetainFor:  envDurationOr("APPTRELAY_RUNS_RETAIN", time.Hour),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("APPTRELAY_AUTH_ENABLED", false),
			APIKeys: envSliceOr("APPTRELAY_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("APPTRELAY_RATE_RPS", 1.0),
			Burst:             envIntOr("APPTRELAY_RATE_BURST", 3),
		},
		Log: LogConfig{
			Level:  envOr("APPTRELAY_LOG_LEVEL", "info"),
			Format: envOr("APPTRELAY_LOG_FORMAT", "json"),
		},
		Metrics: MetricsConfig{
			Enabled: envBoolOr("APPTRELAY_METRICS", true),
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

func envDurationSliceOr(key string, fallback []time.Duration) []time.Duration {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]time.Duration, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				if d, err := time.ParseDuration(trimmed); err == nil {
					result = append(result, d)
				}
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return fallback
}
