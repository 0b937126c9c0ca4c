package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/imrishuroy/go-listing-sync/internal/validation"
)

// Config is read once at startup. Adapters receive what they need from it and
// never read the environment themselves.
type Config struct {
	WebhookSecret string `env:"WEBHOOK_SECRET"`

	SearchHost      string `env:"SEARCH_HOST"`
	SearchAPIKey    string `env:"SEARCH_API_KEY"`
	SearchIndex     string `env:"SEARCH_INDEX" envDefault:"listings" validate:"required"`
	DefaultCurrency string `env:"DEFAULT_CURRENCY" envDefault:"USD" validate:"required,len=3"`

	RevalidateURL    string `env:"REVALIDATE_URL" validate:"omitempty,url"`
	RevalidateSecret string `env:"REVALIDATE_SECRET"`

	DownstreamTimeout time.Duration `env:"DOWNSTREAM_TIMEOUT" envDefault:"10s" validate:"gt=0"`

	LedgerBackend string `env:"LEDGER_BACKEND" envDefault:"memory" validate:"oneof=memory redis dynamodb"`
	RedisAddr     string `env:"REDIS_ADDR" validate:"required_if=LedgerBackend redis"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0" validate:"gte=0"`
	LedgerTable   string `env:"LEDGER_TABLE" validate:"required_if=LedgerBackend dynamodb"`

	FailureQueueURL     string `env:"SYNC_FAILURE_QUEUE_URL"`
	CloudWatchNamespace string `env:"CLOUDWATCH_NAMESPACE"`

	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`
	RunLocal bool   `env:"RUN_LOCAL"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	AppEnv   string `env:"APP_ENV"`

	DatabaseURL string `env:"DATABASE_URL"`
}

// Capabilities says which downstream systems are configured.
type Capabilities struct {
	Search          bool
	Revalidate      bool
	ReducedSecurity bool // no webhook secret, signatures are not checked
}

// Load reads a .env file when present, then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return parse(env.Options{})
}

// LoadFrom parses the given variables instead of the process environment.
func LoadFrom(vars map[string]string) (*Config, error) {
	if vars == nil {
		vars = map[string]string{}
	}
	return parse(env.Options{Environment: vars})
}

func parse(opts env.Options) (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.LedgerBackend = strings.ToLower(strings.TrimSpace(cfg.LedgerBackend))
	cfg.DefaultCurrency = strings.ToUpper(strings.TrimSpace(cfg.DefaultCurrency))

	if err := validation.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// Capabilities resolves the capability set. Each downstream is enabled only
// when all of its credentials are present.
func (c *Config) Capabilities() Capabilities {
	return Capabilities{
		Search:          c.SearchHost != "" && c.SearchAPIKey != "",
		Revalidate:      c.RevalidateURL != "" && c.RevalidateSecret != "",
		ReducedSecurity: c.WebhookSecret == "",
	}
}
