package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/use-agent/rcvscrap/models"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Browser   BrowserConfig
	Portal    PortalConfig
	Output    OutputConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Cache     CacheConfig
	Webhook   WebhookConfig
	Log       LogConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8080 (PORT is honoured for container platforms)
	Mode string // "debug", "release", "test"; default: "release"
}

// BrowserConfig controls the Rod browser instance.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	// default: true, false when AMBIENTE=DEV
	Headless bool

	// Stealth creates pages with anti-automation evasions applied.
	Stealth bool // default: true

	// DefaultProxy is the proxy URL for all browser traffic.
	DefaultProxy string

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// RemoteURL connects to an already running Chrome over CDP instead of
	// launching one.
	RemoteURL string

	// AcceptLanguage is sent on every request so the portal renders in Spanish.
	AcceptLanguage string // default: "es-CL,es;q=0.9"

	// BlockedResourceTypes lists resource types to block.
	// default: ["Image", "Font", "Media"]
	BlockedResourceTypes []string
}

// PortalConfig describes the remote tax portal and its timing budget.
type PortalConfig struct {
	// Identifier and Secret are the login credentials (SII_RUT / SII_CLAVE).
	Identifier string
	Secret     string

	// LoginURL is the portal's login entry point.
	LoginURL string

	// ModuleURL is the ledger module entry point.
	ModuleURL string

	// DefaultTimeout bounds every remote interaction without a shorter budget.
	DefaultTimeout time.Duration // default: 30s

	// ProbeTimeout is the window in which a login error banner must surface.
	ProbeTimeout time.Duration // default: 3s

	// CandidateTimeout bounds each probe of an ordered candidate selector.
	CandidateTimeout time.Duration // default: 500ms

	// PeriodTimeout bounds the wait for the month selector.
	PeriodTimeout time.Duration // default: 5s

	// IdleTimeout bounds each wait for the page to settle.
	IdleTimeout time.Duration // default: 10s

	// DialogTimeout bounds the wait for a record detail dialog.
	DialogTimeout time.Duration // default: 5s

	// RunTimeout bounds a whole extraction; zero disables the bound.
	RunTimeout time.Duration // default: 15m
}

// Credentials returns the login pair.
func (p PortalConfig) Credentials() models.Credentials {
	return models.NewCredentials(p.Identifier, p.Secret)
}

// OutputConfig controls where extraction results are persisted.
type OutputConfig struct {
	JSONPath  string // default: "datos_rcv.json"
	ExcelPath string // default: "datos_rcv.xlsx"
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool // default: true

	// APIKeys is the list of valid API keys.
	APIKeys []string
}

// RateLimitConfig controls per-key rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per API key.
	RequestsPerSecond float64 // default: 2

	// Burst is the maximum burst size per API key.
	Burst int // default: 5

	// ExtractPerMinute is how many runs one API key may start per minute.
	// Zero disables the extra limit on POST /extract.
	ExtractPerMinute float64 // default: 2
}

// CacheConfig controls the per-period result history.
type CacheConfig struct {
	// MaxEntries is the maximum number of cached results.
	MaxEntries int // default: 24

	// TTL is how long a cached result stays available.
	TTL time.Duration // default: 24h
}

// WebhookConfig controls completion notifications.
type WebhookConfig struct {
	// URL receives extraction.completed / extraction.failed events. Empty disables.
	URL string

	// Secret signs the payload with HMAC-SHA256 when non-empty.
	Secret string
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	env := envOr("AMBIENTE", "PROD")
	return &Config{
		Server: ServerConfig{
			Host: envOr("RCV_HOST", "0.0.0.0"),
			Port: envIntOr("RCV_PORT", envIntOr("PORT", 8080)),
			Mode: envOr("RCV_MODE", "release"),
		},
		Browser: BrowserConfig{
			Headless:       envBoolOr("RCV_HEADLESS", !strings.EqualFold(env, "DEV")),
			Stealth:        envBoolOr("RCV_STEALTH", true),
			DefaultProxy:   os.Getenv("RCV_PROXY"),
			NoSandbox:      envBoolOr("RCV_NO_SANDBOX", false),
			BrowserBin:     os.Getenv("RCV_BROWSER_BIN"),
			RemoteURL:      os.Getenv("RCV_CDP_URL"),
			AcceptLanguage: envOr("RCV_ACCEPT_LANGUAGE", "es-CL,es;q=0.9"),
			BlockedResourceTypes: envSliceOr("RCV_BLOCKED_RESOURCES", []string{
				"Image", "Font", "Media",
			}),
		},
		Portal: PortalConfig{
			Identifier:       os.Getenv("SII_RUT"),
			Secret:           os.Getenv("SII_CLAVE"),
			LoginURL:         envOr("RCV_LOGIN_URL", "https://misii.sii.cl/cgi_misii/siihome.cgi"),
			ModuleURL:        envOr("RCV_MODULE_URL", "https://www4.sii.cl/consdcvinternetui"),
			DefaultTimeout:   envDurationOr("RCV_DEFAULT_TIMEOUT", 30*time.Second),
			ProbeTimeout:     envDurationOr("RCV_PROBE_TIMEOUT", 3*time.Second),
			CandidateTimeout: envDurationOr("RCV_CANDIDATE_TIMEOUT", 500*time.Millisecond),
			PeriodTimeout:    envDurationOr("RCV_PERIOD_TIMEOUT", 5*time.Second),
			IdleTimeout:      envDurationOr("RCV_IDLE_TIMEOUT", 10*time.Second),
			DialogTimeout:    envDurationOr("RCV_DIALOG_TIMEOUT", 5*time.Second),
			RunTimeout:       envDurationOr("RCV_RUN_TIMEOUT", 15*time.Minute),
		},
		Output: OutputConfig{
			JSONPath:  envOr("RCV_OUTPUT_JSON", "datos_rcv.json"),
			ExcelPath: envOr("RCV_OUTPUT_EXCEL", "datos_rcv.xlsx"),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("RCV_AUTH_ENABLED", true),
			APIKeys: envSliceOr("RCV_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("RCV_RATE_RPS", 2.0),
			Burst:             envIntOr("RCV_RATE_BURST", 5),
			ExtractPerMinute:  envFloatOr("RCV_RATE_EXTRACT_PER_MIN", 2.0),
		},
		Cache: CacheConfig{
			MaxEntries: envIntOr("RCV_CACHE_MAX_ENTRIES", 24),
			TTL:        envDurationOr("RCV_CACHE_TTL", 24*time.Hour),
		},
		Webhook: WebhookConfig{
			URL:    os.Getenv("RCV_WEBHOOK_URL"),
			Secret: os.Getenv("RCV_WEBHOOK_SECRET"),
		},
		Log: LogConfig{
			Level:  envOr("RCV_LOG_LEVEL", "info"),
			Format: envOr("RCV_LOG_FORMAT", "json"),
		},
	}
}

// Validate checks the settings a pipeline run cannot start without.
func (c *Config) Validate() error {
	if !c.Portal.Credentials().Valid() {
		return models.NewExtractError(models.ErrCodeInvalidInput,
			"SII_RUT and SII_CLAVE must be set", nil)
	}
	if c.Portal.LoginURL == "" || c.Portal.ModuleURL == "" {
		return models.NewExtractError(models.ErrCodeInvalidInput,
			"RCV_LOGIN_URL and RCV_MODULE_URL must not be empty", nil)
	}
	if c.Portal.DefaultTimeout <= 0 {
		return models.NewExtractError(models.ErrCodeInvalidInput,
			"RCV_DEFAULT_TIMEOUT must be positive", nil)
	}
	return nil
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
