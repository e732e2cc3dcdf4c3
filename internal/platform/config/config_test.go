package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFromEnv_defaults(t *testing.T) {
	for _, k := range []string{"PORT", "UPSTREAM_TIMEOUT", "UPSTREAM_MAX_BODY_BYTES", "CACHE_MAX_BYTES", "PREFETCH_WORKERS", "SESSION_TIMEOUT", "PROXY_TOKEN"} {
		t.Setenv(k, "")
	}

	cfg := FromEnv()
	if cfg.Port != "8080" {
		t.Errorf("Port: got %q", cfg.Port)
	}
	if cfg.UpstreamTimeout != 30*time.Second {
		t.Errorf("UpstreamTimeout: got %v", cfg.UpstreamTimeout)
	}
	if cfg.UpstreamMaxBodyBytes != 64<<20 {
		t.Errorf("UpstreamMaxBodyBytes: got %d", cfg.UpstreamMaxBodyBytes)
	}
	if cfg.CacheMaxBytes != 256<<20 {
		t.Errorf("CacheMaxBytes: got %d", cfg.CacheMaxBytes)
	}
	if cfg.PrefetchWorkers != 8 {
		t.Errorf("PrefetchWorkers: got %d", cfg.PrefetchWorkers)
	}
	if cfg.SessionTimeout != 30*time.Minute {
		t.Errorf("SessionTimeout: got %v", cfg.SessionTimeout)
	}
	if cfg.ProxyToken != "" {
		t.Errorf("ProxyToken should default to empty, got %q", cfg.ProxyToken)
	}
}

func TestGetEnvDuration(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		t.Setenv("TEST_DURATION", "90s")
		if got := GetEnvDuration("TEST_DURATION", time.Second); got != 90*time.Second {
			t.Errorf("got %v", got)
		}
	})
	t.Run("invalid_falls_back", func(t *testing.T) {
		t.Setenv("TEST_DURATION", "soon")
		if got := GetEnvDuration("TEST_DURATION", time.Second); got != time.Second {
			t.Errorf("got %v", got)
		}
	})
	t.Run("negative_falls_back", func(t *testing.T) {
		t.Setenv("TEST_DURATION", "-5s")
		if got := GetEnvDuration("TEST_DURATION", time.Second); got != time.Second {
			t.Errorf("got %v", got)
		}
	})
}

func TestGetEnvInt64_invalid(t *testing.T) {
	t.Setenv("TEST_BYTES", "lots")
	if got := GetEnvInt64("TEST_BYTES", 42); got != 42 {
		t.Errorf("got %d", got)
	}
}

func TestLoad_dotenv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	if err := os.WriteFile(path, []byte("HLS_PROXY_TEST_KEY=from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("HLS_PROXY_TEST_KEY", "")
	os.Unsetenv("HLS_PROXY_TEST_KEY")

	if err := Load(path); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := GetEnv("HLS_PROXY_TEST_KEY", "fallback"); got != "from-file" {
		t.Errorf("got %q", got)
	}
}
