package infra

import (
	"testing"
	"time"
)

func setAllCredentials(t *testing.T) {
	t.Helper()
	t.Setenv("TRIPO_API_KEY", "tripo-key")
	t.Setenv("FASHN_API_KEY", "fashn-key")
	t.Setenv("WORDPRESS_BASE_URL", "https://shop.example.com")
	t.Setenv("WORDPRESS_USERNAME", "admin")
	t.Setenv("WORDPRESS_APP_PASSWORD", "app-pass")
}

func TestLoadConfigDefaults(t *testing.T) {
	setAllCredentials(t)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.AppEnv != "development" {
		t.Errorf("app env = %q", cfg.AppEnv)
	}
	if cfg.Port != "8080" {
		t.Errorf("port = %q", cfg.Port)
	}
	if cfg.PollInterval != 5*time.Second {
		t.Errorf("poll interval = %v", cfg.PollInterval)
	}
	if cfg.MaxPollAttempts != 60 {
		t.Errorf("max poll attempts = %d", cfg.MaxPollAttempts)
	}
	if cfg.MaxRetries != 3 {
		t.Errorf("max retries = %d", cfg.MaxRetries)
	}
	if cfg.MaxConcurrentItems != 5 {
		t.Errorf("max concurrent items = %d", cfg.MaxConcurrentItems)
	}
	if cfg.MaxConcurrentUploads != 3 {
		t.Errorf("max concurrent uploads = %d", cfg.MaxConcurrentUploads)
	}
	if len(cfg.FitVariants) != 2 || cfg.FitVariants[0] != "female" || cfg.FitVariants[1] != "male" {
		t.Errorf("fit variants = %v", cfg.FitVariants)
	}
	if !cfg.Enable3D || !cfg.EnableFit || !cfg.EnableUpload {
		t.Errorf("all stages should default to enabled")
	}
}

func TestLoadConfigMissingTripoKey(t *testing.T) {
	setAllCredentials(t)
	t.Setenv("TRIPO_API_KEY", "")

	if _, err := LoadConfig(); err == nil {
		t.Fatalf("expected error for missing TRIPO_API_KEY")
	}
}

func TestLoadConfigDisabledStageSkipsCredentialCheck(t *testing.T) {
	setAllCredentials(t)
	t.Setenv("TRIPO_API_KEY", "")
	t.Setenv("ENABLE_3D_GENERATION", "false")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Enable3D {
		t.Fatalf("3d stage should be disabled")
	}
}

func TestLoadConfigMissingWordPressCredentials(t *testing.T) {
	setAllCredentials(t)
	t.Setenv("WORDPRESS_APP_PASSWORD", "")

	if _, err := LoadConfig(); err == nil {
		t.Fatalf("expected error for missing WORDPRESS_APP_PASSWORD")
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	setAllCredentials(t)
	t.Setenv("POLL_INTERVAL_SECONDS", "2")
	t.Setenv("MAX_POLL_ATTEMPTS", "10")
	t.Setenv("FIT_MODEL_VARIANTS", "female, male ,custom")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.PollInterval != 2*time.Second {
		t.Errorf("poll interval = %v", cfg.PollInterval)
	}
	if cfg.MaxPollAttempts != 10 {
		t.Errorf("max poll attempts = %d", cfg.MaxPollAttempts)
	}
	if len(cfg.FitVariants) != 3 || cfg.FitVariants[2] != "custom" {
		t.Errorf("fit variants = %v", cfg.FitVariants)
	}
}

func TestGetEnvIntIgnoresGarbage(t *testing.T) {
	t.Setenv("MAX_RETRIES_TEST", "not-a-number")
	if got := getEnvInt("MAX_RETRIES_TEST", 7); got != 7 {
		t.Fatalf("got %d, want fallback 7", got)
	}
}
