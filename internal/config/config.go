// Package config aggregates the service configuration from environment
// variables.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/Kadacheahmedrami/Email-Craft/pkg/db"
	"github.com/Kadacheahmedrami/Email-Craft/pkg/gmail"
	"github.com/Kadacheahmedrami/Email-Craft/pkg/logger"
	"github.com/Kadacheahmedrami/Email-Craft/pkg/redis"
	"github.com/Kadacheahmedrami/Email-Craft/pkg/token"
)

// Config is the full service configuration.
type Config struct {
	DB     db.Config
	Token  token.Config
	Gmail  gmail.Config
	Redis  redis.Config
	Sentry logger.SentryConfig

	// HTTP server.
	Addr            string        `env:"HTTP_ADDR" envDefault:":8080"`
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"10s"`
	RequestTimeout  time.Duration `env:"HTTP_REQUEST_TIMEOUT" envDefault:"60s"`

	// Signs the OAuth state cookie; 32+ bytes.
	CookieSecret string `env:"COOKIE_SECRET,required"`

	// Where Google redirects after consent.
	OAuthRedirectURL string `env:"GOOGLE_OAUTH_REDIRECT_URL,required"`

	// Optional. When set, rendered bodies are cached in Redis and shared
	// across replicas; otherwise an in-process LRU is used.
	RedisURL       string        `env:"REDIS_URL"`
	RenderCacheTTL time.Duration `env:"RENDER_CACHE_TTL" envDefault:"1h"`

	// Stale PENDING record sweeping.
	ReaperSchedule string        `env:"SEND_REAPER_SCHEDULE" envDefault:"*/5 * * * *"`
	ReaperMaxAge   time.Duration `env:"SEND_REAPER_MAX_AGE" envDefault:"15m"`
}

// Load parses the configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("config: parse environment: %w", err)
	}
	return &cfg, nil
}
