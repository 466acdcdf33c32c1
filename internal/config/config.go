// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes application settings
// such as server timeouts, logging, database paths, content limits, external
// generation and messaging credentials, and observability.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "moments-backend")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// GenerationConfig defines the upstream text-generation API used for the paid
// deep-truth analysis.
type GenerationConfig struct {
	BaseURL      string        // GEN_BASE_URL (chat-completions compatible)
	APIKey       string        // GEN_API_KEY
	Model        string        // GEN_MODEL
	SystemPrompt string        // GEN_SYSTEM_PROMPT (empty = built-in default)
	Timeout      time.Duration // GEN_TIMEOUT
	MaxTokens    int           // GEN_MAX_TOKENS
	Temperature  float64       // GEN_TEMPERATURE
}

// WhatsAppConfig defines the outbound messaging gateway used for share and
// reply notifications. An empty BaseURL disables notifications entirely.
type WhatsAppConfig struct {
	BaseURL    string  // WHATSAPP_BASE_URL
	Token      string  // WHATSAPP_TOKEN
	RatePerSec float64 // WHATSAPP_RATE_PER_SEC (outbound pacing)
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for API routes

	// App
	DBPath          string // SQLite path
	CodeLength      int    // short code length (symbols)
	CodeMaxAttempts int    // bounded retries for code generation
	MaxTeaserRunes  int    // teaser length guard (0 = unlimited)
	MaxHiddenRunes  int    // hidden text length guard (0 = unlimited)
	MaxReplyRunes   int    // reply length guard (0 = unlimited)

	// External services
	Generation GenerationConfig
	WhatsApp   WhatsAppConfig

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging / Docs
		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		// App
		DBPath:          getenv("DB_PATH", "app.db"),
		CodeLength:      getint("CODE_LENGTH", 6),
		CodeMaxAttempts: getint("CODE_MAX_ATTEMPTS", 20),
		MaxTeaserRunes:  getint("MAX_TEASER_RUNES", 500),
		MaxHiddenRunes:  getint("MAX_HIDDEN_RUNES", 2000),
		MaxReplyRunes:   getint("MAX_REPLY_RUNES", 1500),

		// External services
		Generation: GenerationConfig{
			BaseURL:      getenv("GEN_BASE_URL", "https://api.openai.com/v1"),
			APIKey:       getenv("GEN_API_KEY", ""),
			Model:        getenv("GEN_MODEL", "gpt-4o-mini"),
			SystemPrompt: getenv("GEN_SYSTEM_PROMPT", ""),
			Timeout:      getdur("GEN_TIMEOUT", 30*time.Second),
			MaxTokens:    getint("GEN_MAX_TOKENS", 600),
			Temperature:  getfloat("GEN_TEMPERATURE", 0.7),
		},
		WhatsApp: WhatsAppConfig{
			BaseURL:    getenv("WHATSAPP_BASE_URL", ""),
			Token:      getenv("WHATSAPP_TOKEN", ""),
			RatePerSec: getfloat("WHATSAPP_RATE_PER_SEC", 2.0),
		},

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "moments-backend"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return cfg, errors.New("DB_PATH must not be empty")
	}
	if cfg.CodeLength < 4 || cfg.CodeLength > 16 {
		return cfg, errors.New("CODE_LENGTH must be between 4 and 16")
	}
	if cfg.CodeMaxAttempts < 1 {
		return cfg, errors.New("CODE_MAX_ATTEMPTS must be >= 1")
	}
	if cfg.MaxTeaserRunes < 0 || cfg.MaxHiddenRunes < 0 || cfg.MaxReplyRunes < 0 {
		return cfg, errors.New("content length limits must be >= 0")
	}
	if cfg.Generation.Timeout <= 0 {
		return cfg, errors.New("GEN_TIMEOUT must be > 0")
	}
	if cfg.Generation.MaxTokens < 1 {
		return cfg, errors.New("GEN_MAX_TOKENS must be >= 1")
	}
	if cfg.Generation.Temperature < 0 || cfg.Generation.Temperature > 2 {
		return cfg, errors.New("GEN_TEMPERATURE must be in [0,2]")
	}
	if cfg.WhatsApp.RatePerSec < 0 {
		return cfg, errors.New("WHATSAPP_RATE_PER_SEC must be >= 0")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
