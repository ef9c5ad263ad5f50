package config

import (
	"errors"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds runtime configuration for the API server. All values come
// from METERGATE_-prefixed environment variables.
type Config struct {
	ListenAddr      string        `envconfig:"LISTEN_ADDR" default:":8080"`
	ReadTimeout     time.Duration `envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"WRITE_TIMEOUT" default:"15s"`
	IdleTimeout     time.Duration `envconfig:"IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`

	AuthSecret string        `envconfig:"AUTH_SECRET" required:"true"`
	Issuer     string        `envconfig:"ISSUER" default:"metergate"`
	AccessTTL  time.Duration `envconfig:"ACCESS_TTL" default:"1h"`
	RefreshTTL time.Duration `envconfig:"REFRESH_TTL" default:"720h"`

	PGDSN string `envconfig:"PG_DSN"`

	MaxBodyBytes    int64   `envconfig:"MAX_BODY_BYTES" default:"1048576"`
	FloodGuardRPS   float64 `envconfig:"FLOOD_GUARD_RPS" default:"50"`
	FloodGuardBurst int     `envconfig:"FLOOD_GUARD_BURST" default:"100"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("metergate", &cfg); err != nil {
		return nil, err
	}
	if len(cfg.AuthSecret) < 32 {
		return nil, errors.New("auth secret must be at least 32 bytes")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("token lifetimes must be positive")
	}
	return &cfg, nil
}
