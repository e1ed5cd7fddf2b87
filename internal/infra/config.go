package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
// Provider credentials are validated here so a missing key fails at startup,
// not in the middle of a batch.
type Config struct {
	AppEnv      string
	Port        string
	StoragePath string

	// 3D model generation provider.
	TripoAPIKey       string
	TripoBaseURL      string
	TripoModelVersion string

	// Virtual garment fitting provider.
	FashnAPIKey  string
	FashnBaseURL string

	// Media upload target.
	WordPressBaseURL     string
	WordPressUsername    string
	WordPressAppPassword string

	// Stage toggles.
	Enable3D     bool
	EnableFit    bool
	EnableUpload bool

	// Task polling and transport retry tuning.
	PollInterval    time.Duration
	MaxPollAttempts int
	MaxRetries      int
	RequestTimeout  time.Duration

	// Concurrency caps.
	MaxConcurrentItems   int
	MaxConcurrentUploads int

	// Fit model variants, e.g. "female,male".
	FitVariants []string

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
}

// LoadConfig loads configuration from environment variables and applies
// defaults where needed. Credentials are required only for enabled stages.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:      getEnv("APP_ENV", "development"),
		Port:        getEnv("PORT", "8080"),
		StoragePath: getEnv("STORAGE_PATH", "./storage"),

		TripoAPIKey:       os.Getenv("TRIPO_API_KEY"),
		TripoBaseURL:      getEnv("TRIPO_BASE_URL", "https://api.tripo3d.ai/v2/openapi"),
		TripoModelVersion: getEnv("TRIPO_MODEL_VERSION", "v2.0-20240919"),

		FashnAPIKey:  os.Getenv("FASHN_API_KEY"),
		FashnBaseURL: getEnv("FASHN_BASE_URL", "https://api.fashn.ai/v1"),

		WordPressBaseURL:     os.Getenv("WORDPRESS_BASE_URL"),
		WordPressUsername:    os.Getenv("WORDPRESS_USERNAME"),
		WordPressAppPassword: os.Getenv("WORDPRESS_APP_PASSWORD"),

		Enable3D:     getEnvBool("ENABLE_3D_GENERATION", true),
		EnableFit:    getEnvBool("ENABLE_VIRTUAL_FIT", true),
		EnableUpload: getEnvBool("ENABLE_MEDIA_UPLOAD", true),

		PollInterval:    time.Second * time.Duration(getEnvInt("POLL_INTERVAL_SECONDS", 5)),
		MaxPollAttempts: getEnvInt("MAX_POLL_ATTEMPTS", 60),
		MaxRetries:      getEnvInt("MAX_RETRIES", 3),
		RequestTimeout:  time.Second * time.Duration(getEnvInt("REQUEST_TIMEOUT_SECONDS", 60)),

		MaxConcurrentItems:   getEnvInt("MAX_CONCURRENT_ITEMS", 5),
		MaxConcurrentUploads: getEnvInt("MAX_CONCURRENT_UPLOADS", 3),

		FitVariants: splitList(getEnv("FIT_MODEL_VARIANTS", "female,male")),

		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 120)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
	}

	if cfg.Enable3D && cfg.TripoAPIKey == "" {
		return nil, fmt.Errorf("TRIPO_API_KEY is required when 3D generation is enabled")
	}
	if cfg.EnableFit && cfg.FashnAPIKey == "" {
		return nil, fmt.Errorf("FASHN_API_KEY is required when virtual fitting is enabled")
	}
	if cfg.EnableUpload {
		if cfg.WordPressBaseURL == "" {
			return nil, fmt.Errorf("WORDPRESS_BASE_URL is required when media upload is enabled")
		}
		if cfg.WordPressUsername == "" || cfg.WordPressAppPassword == "" {
			return nil, fmt.Errorf("WORDPRESS_USERNAME and WORDPRESS_APP_PASSWORD are required when media upload is enabled")
		}
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
