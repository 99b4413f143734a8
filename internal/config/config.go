// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes server settings,
// the delivery engine's retry and pacing knobs, downstream service URLs,
// rate limiting, and observability.
package config

import (
	"errors"
	"fmt"
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
	ServiceName string  // OTEL_SERVICE_NAME
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// DeliveryConfig tunes the outbound delivery engine.
type DeliveryConfig struct {
	Workers      int             // concurrent send workers
	MaxAttempts  int             // attempts before failed_permanent
	Backoff      []time.Duration // escalating retry delays
	PollInterval time.Duration   // queue poll cadence when idle
	ChunkSize    int             // batch chunk size for pacing
	ChunkPause   time.Duration   // stagger between batch chunks
	SendRate     float64         // global sends per second ceiling
	SendBurst    int             // ceiling burst
	SendTimeout  time.Duration   // per platform call
}

// ServicesConfig holds the downstream service base URLs. Empty URLs disable
// the corresponding integration.
type ServicesConfig struct {
	AuthURL        string
	ParticipantURL string
	GiveawayURL    string
	ChannelURL     string
	CallTimeout    time.Duration
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string
	ReadTimeout       time.Duration
	ReadHeaderTimeout time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
	MaxBodyBytes      int64 // webhook body cap
	GinMode           string

	// Logging
	LogLevel  string
	LogPretty bool

	// App
	DBPath   string
	BotToken string

	// Webhook ingestion
	DedupWindow     time.Duration // guard TTL for update IDs
	DedupMaxEntries int
	CaptchaTTL      time.Duration

	// Downstream services
	Services ServicesConfig

	// Delivery engine
	Delivery DeliveryConfig

	// HTTP edge rate limiting
	RateRPS   float64
	RateBurst int

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

// Load reads configuration from environment variables, applies defaults,
// normalizes values, and validates the result.
func Load() (Config, error) {
	backoff, err := getdurlist("DELIVERY_BACKOFF", []time.Duration{5 * time.Minute, 15 * time.Minute, time.Hour})
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		MaxBodyBytes:      int64(getint("MAX_BODY_BYTES", 1<<20)),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging
		LogLevel:  strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty: getbool("LOG_PRETTY", false),

		// App
		DBPath:   getenv("DB_PATH", "bot.db"),
		BotToken: getenv("BOT_TOKEN", ""),

		// Webhook ingestion
		DedupWindow:     getdur("DEDUP_WINDOW", 10*time.Minute),
		DedupMaxEntries: getint("DEDUP_MAX_ENTRIES", 10000),
		CaptchaTTL:      getdur("CAPTCHA_TTL", 5*time.Minute),

		// Downstream services
		Services: ServicesConfig{
			AuthURL:        strings.TrimRight(getenv("AUTH_SERVICE_URL", ""), "/"),
			ParticipantURL: strings.TrimRight(getenv("PARTICIPANT_SERVICE_URL", ""), "/"),
			GiveawayURL:    strings.TrimRight(getenv("GIVEAWAY_SERVICE_URL", ""), "/"),
			ChannelURL:     strings.TrimRight(getenv("CHANNEL_SERVICE_URL", ""), "/"),
			CallTimeout:    getdur("SERVICE_CALL_TIMEOUT", 10*time.Second),
		},

		// Delivery engine
		Delivery: DeliveryConfig{
			Workers:      getint("DELIVERY_WORKERS", 4),
			MaxAttempts:  getint("DELIVERY_MAX_ATTEMPTS", 3),
			Backoff:      backoff,
			PollInterval: getdur("DELIVERY_POLL_INTERVAL", time.Second),
			ChunkSize:    getint("DELIVERY_CHUNK_SIZE", 25),
			ChunkPause:   getdur("DELIVERY_CHUNK_PAUSE", 2*time.Second),
			SendRate:     getfloat("SEND_RATE", 25.0),
			SendBurst:    getint("SEND_BURST", 5),
			SendTimeout:  getdur("SEND_TIMEOUT", 10*time.Second),
		},

		// HTTP edge rate limiting
		RateRPS:   getfloat("RATE_RPS", 30.0),
		RateBurst: getint("RATE_BURST", 60),

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
			ServiceName: getenv("OTEL_SERVICE_NAME", "telegive-bot-service"),
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
	if cfg.MaxHeaderBytes <= 0 || cfg.MaxBodyBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES and MAX_BODY_BYTES must be > 0")
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return cfg, errors.New("DB_PATH must not be empty")
	}
	if strings.TrimSpace(cfg.BotToken) == "" {
		return cfg, errors.New("BOT_TOKEN must not be empty")
	}
	if cfg.DedupWindow <= 0 || cfg.DedupMaxEntries < 1 {
		return cfg, errors.New("DEDUP_WINDOW must be > 0 and DEDUP_MAX_ENTRIES >= 1")
	}
	if cfg.CaptchaTTL <= 0 {
		return cfg, errors.New("CAPTCHA_TTL must be > 0")
	}
	if cfg.Services.CallTimeout <= 0 {
		return cfg, errors.New("SERVICE_CALL_TIMEOUT must be > 0")
	}
	if err := cfg.Delivery.validate(); err != nil {
		return cfg, err
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

func (d DeliveryConfig) validate() error {
	if d.Workers < 1 {
		return errors.New("DELIVERY_WORKERS must be >= 1")
	}
	if d.MaxAttempts < 1 {
		return errors.New("DELIVERY_MAX_ATTEMPTS must be >= 1")
	}
	if len(d.Backoff) == 0 {
		return errors.New("DELIVERY_BACKOFF must not be empty")
	}
	for i := 1; i < len(d.Backoff); i++ {
		if d.Backoff[i] < d.Backoff[i-1] {
			return errors.New("DELIVERY_BACKOFF delays must be non-decreasing")
		}
	}
	if d.PollInterval <= 0 {
		return errors.New("DELIVERY_POLL_INTERVAL must be > 0")
	}
	if d.ChunkSize < 1 {
		return errors.New("DELIVERY_CHUNK_SIZE must be >= 1")
	}
	if d.ChunkPause < 0 {
		return errors.New("DELIVERY_CHUNK_PAUSE must be >= 0")
	}
	if d.SendRate <= 0 {
		return errors.New("SEND_RATE must be > 0")
	}
	if d.SendBurst < 1 {
		return errors.New("SEND_BURST must be >= 1")
	}
	if d.SendTimeout <= 0 {
		return errors.New("SEND_TIMEOUT must be > 0")
	}
	return nil
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

func getdurlist(k string, def []time.Duration) ([]time.Duration, error) {
	v, ok := os.LookupEnv(k)
	if !ok || strings.TrimSpace(v) == "" {
		return def, nil
	}
	parts := strings.Split(v, ",")
	out := make([]time.Duration, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		d, err := time.ParseDuration(p)
		if err != nil {
			return nil, fmt.Errorf("%s: bad duration %q", k, p)
		}
		out = append(out, d)
	}
	if len(out) == 0 {
		return def, nil
	}
	return out, nil
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
