package config

import (
	"strings"
	"testing"
)

func setBaseEnv(t *testing.T) {
	t.Helper()
	t.Setenv("METERGATE_AUTH_SECRET", strings.Repeat("s", 32))
}

func TestLoadDefaults(t *testing.T) {
	setBaseEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != ":8080" {
		t.Fatalf("listen addr: %s", cfg.ListenAddr)
	}
	if cfg.Issuer != "metergate" {
		t.Fatalf("issuer: %s", cfg.Issuer)
	}
	if cfg.AccessTTL.Hours() != 1 {
		t.Fatalf("access ttl: %v", cfg.AccessTTL)
	}
}

func TestLoadRejectsShortSecret(t *testing.T) {
	t.Setenv("METERGATE_AUTH_SECRET", "short")
	if _, err := Load(); err == nil {
		t.Fatalf("short secret must be rejected")
	}
}

func TestLoadRequiresSecret(t *testing.T) {
	t.Setenv("METERGATE_AUTH_SECRET", "")
	if _, err := Load(); err == nil {
		t.Fatalf("missing secret must be rejected")
	}
}

func TestLoadOverrides(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("METERGATE_LISTEN_ADDR", ":9090")
	t.Setenv("METERGATE_ACCESS_TTL", "30m")
	t.Setenv("METERGATE_PG_DSN", "postgres://mg@localhost/mg")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != ":9090" || cfg.AccessTTL.Minutes() != 30 || cfg.PGDSN == "" {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
}
