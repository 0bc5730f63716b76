package http

import (
	"time"

	"github.com/spriteops/key-server/internal/batch"
	"github.com/spriteops/key-server/internal/mail"
	"github.com/spriteops/key-server/internal/metrics"
	"github.com/spriteops/key-server/internal/ratelimit"
)

type Config struct {
	Port        uint            `mapstructure:"port"`
	BaseURL     string          `mapstructure:"base_url"`
	AdminSecret string          `mapstructure:"admin_secret"`
	RateLimit   RateLimitConfig `mapstructure:"rate_limit"`
}

type RateLimitConfig struct {
	Max      int `mapstructure:"max"`
	WindowMs int `mapstructure:"window_ms"`
}

// Services carries the process-wide state every handler needs. Constructed
// once at startup and passed by handle — no ambient singletons.
type Services struct {
	Store   *batch.Store
	Limiter *ratelimit.Limiter
	Mailer  *mail.Sender
	Metrics *metrics.Collector

	// AdminSecret guards /admin and signs capability links.
	AdminSecret string
	// BaseURL prefixes generated collection links.
	BaseURL string
	// LinkTTL is how long a generated link stays valid.
	LinkTTL time.Duration
}
