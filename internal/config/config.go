package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	RedisURL           string
	MenuFile           string
	SlotTable          string
	QuoteCacheTTL      time.Duration
	RateLimit          string
	CORSAllowedOrigins []string
	MaxBodyBytes       int64
	TrustProxyHeaders  bool

	LogFormat        string
	LogLevel         string
	MetricsNamespace string
	MetricsEnabled   bool
	MetricsBuckets   string
	TracingEnabled   bool
	OTLPEndpoint     string
	TracingSampling  float64
	ShutdownTimeout  time.Duration
	RedisPingTimeout time.Duration
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		RedisURL:           strings.TrimSpace(k.String("REDIS_URL")),
		MenuFile:           strings.TrimSpace(k.String("MENU_FILE")),
		SlotTable:          valueOrDefault(k.String("SLOT_TABLE"), "default"),
		QuoteCacheTTL:      parseDuration(k.String("QUOTE_CACHE_TTL"), "5m"),
		RateLimit:          valueOrDefault(k.String("RATE_LIMIT"), "120-M"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		MaxBodyBytes:       parseInt64(k.String("MAX_BODY_BYTES"), 64<<10),
		TrustProxyHeaders:  parseBool(k.String("TRUST_PROXY_HEADERS"), false),
		LogFormat:          valueOrDefault(k.String("OBS_LOG_FORMAT"), "json"),
		LogLevel:           valueOrDefault(k.String("OBS_LOG_LEVEL"), "info"),
		MetricsNamespace:   valueOrDefault(k.String("OBS_METRICS_NAMESPACE"), "cafe"),
		MetricsEnabled:     parseBool(k.String("OBS_ENABLE_PROMETHEUS"), true),
		MetricsBuckets:     k.String("OBS_METRICS_BUCKETS_MS"),
		TracingEnabled:     parseBool(k.String("OBS_ENABLE_TRACING"), false),
		OTLPEndpoint:       strings.TrimSpace(k.String("OBS_OTLP_ENDPOINT")),
		TracingSampling:    parseFloat(k.String("OBS_TRACING_SAMPLING_RATIO"), 1.0),
		ShutdownTimeout:    parseDuration(k.String("SHUTDOWN_TIMEOUT"), "10s"),
		RedisPingTimeout:   parseDuration(k.String("HEALTH_READY_REDIS_TIMEOUT"), "300ms"),
	}

	if cfg.QuoteCacheTTL < 0 {
		return nil, fmt.Errorf("QUOTE_CACHE_TTL must not be negative")
	}
	if cfg.MaxBodyBytes <= 0 {
		return nil, fmt.Errorf("MAX_BODY_BYTES must be positive")
	}
	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseBool(value string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "t", "true", "yes", "on":
		return true
	case "0", "f", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func parseFloat(value string, fallback float64) float64 {
	if parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
		return parsed
	}
	return fallback
}

func parseInt64(value string, fallback int64) int64 {
	if parsed, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err == nil {
		return parsed
	}
	return fallback
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
