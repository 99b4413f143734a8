package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("BOT_TOKEN", "123:abc")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "8080" {
		t.Fatalf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.Delivery.MaxAttempts != 3 {
		t.Fatalf("MaxAttempts = %d, want 3", cfg.Delivery.MaxAttempts)
	}
	want := []time.Duration{5 * time.Minute, 15 * time.Minute, time.Hour}
	if len(cfg.Delivery.Backoff) != len(want) {
		t.Fatalf("Backoff = %v, want %v", cfg.Delivery.Backoff, want)
	}
	for i, d := range want {
		if cfg.Delivery.Backoff[i] != d {
			t.Fatalf("Backoff[%d] = %v, want %v", i, cfg.Delivery.Backoff[i], d)
		}
	}
	if cfg.Delivery.ChunkSize != 25 || cfg.Delivery.ChunkPause != 2*time.Second {
		t.Fatalf("chunking = %d/%v, want 25/2s", cfg.Delivery.ChunkSize, cfg.Delivery.ChunkPause)
	}
}

func TestLoadRequiresBotToken(t *testing.T) {
	t.Setenv("BOT_TOKEN", "")

	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "BOT_TOKEN") {
		t.Fatalf("err = %v, want BOT_TOKEN error", err)
	}
}

func TestLoadParsesBackoffCSV(t *testing.T) {
	t.Setenv("BOT_TOKEN", "123:abc")
	t.Setenv("DELIVERY_BACKOFF", "30s, 2m ,10m")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	want := []time.Duration{30 * time.Second, 2 * time.Minute, 10 * time.Minute}
	for i, d := range want {
		if cfg.Delivery.Backoff[i] != d {
			t.Fatalf("Backoff[%d] = %v, want %v", i, cfg.Delivery.Backoff[i], d)
		}
	}
}

func TestLoadRejectsDecreasingBackoff(t *testing.T) {
	t.Setenv("BOT_TOKEN", "123:abc")
	t.Setenv("DELIVERY_BACKOFF", "10m,5m")

	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "DELIVERY_BACKOFF") {
		t.Fatalf("err = %v, want DELIVERY_BACKOFF error", err)
	}
}

func TestLoadRejectsBadBackoffEntry(t *testing.T) {
	t.Setenv("BOT_TOKEN", "123:abc")
	t.Setenv("DELIVERY_BACKOFF", "5m,soon")

	if _, err := Load(); err == nil {
		t.Fatal("bad backoff entry accepted")
	}
}

func TestLoadNormalizesLogLevel(t *testing.T) {
	t.Setenv("BOT_TOKEN", "123:abc")
	t.Setenv("LOG_LEVEL", "WARNING")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LogLevel != "warn" {
		t.Fatalf("LogLevel = %q, want warn", cfg.LogLevel)
	}
}
