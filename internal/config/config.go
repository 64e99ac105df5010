// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"premium-order-sync/internal/domain"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type HTTPConfig struct {
	Port            int           `yaml:"port"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type AdminConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"` // empty disables cache invalidation, locking and rate limiting
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"` // sync lock expiry
}

type RazorpayConfig struct {
	KeyID     string        `yaml:"key_id"`
	KeySecret string        `yaml:"key_secret"`
	BaseURL   string        `yaml:"base_url"`
	Timeout   time.Duration `yaml:"timeout"`
}

type PaymentConfig struct {
	Provider string         `yaml:"provider"` // razorpay | noop
	Razorpay RazorpayConfig `yaml:"razorpay"`
}

type ReconcileConfig struct {
	MaxOrders           int           `yaml:"max_orders"`  // per refresh call
	ChunkSize           int           `yaml:"chunk_size"`  // concurrent gateway calls per chunk
	ChunkDelay          time.Duration `yaml:"chunk_delay"` // pause between chunks
	SyncLimit           int           `yaml:"sync_limit"`  // orders per sync run, rest deferred
	Interval            time.Duration `yaml:"interval"`    // 0 disables the periodic sync
	ActivationTimeout   time.Duration `yaml:"activation_timeout"`
	ExcludeNamePatterns []string      `yaml:"exclude_name_patterns"`
}

type TelegramConfig struct {
	Token   string  `yaml:"token"`
	ChatIDs []int64 `yaml:"chat_ids"`
}

type NotifyConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

type RateLimitConfig struct {
	SyncPerWindow int           `yaml:"sync_per_window"`
	Window        time.Duration `yaml:"window"`
}

type Config struct {
	Log       LogConfig       `yaml:"log"`
	HTTP      HTTPConfig      `yaml:"http"`
	Admin     AdminConfig     `yaml:"admin"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Payment   PaymentConfig   `yaml:"payment"`
	Reconcile ReconcileConfig `yaml:"reconcile"`
	Notify    NotifyConfig    `yaml:"notify"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads the YAML file at path, expands ${ENV} references,
// applies defaults and validates.
func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b, dev)
}

// Parse decodes raw YAML. Split from LoadConfig for tests.
func Parse(b []byte, dev bool) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(b))), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.Runtime.Dev = dev
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 8080
	}
	if cfg.HTTP.RequestTimeout <= 0 {
		cfg.HTTP.RequestTimeout = 60 * time.Second
	}
	if cfg.HTTP.ShutdownTimeout <= 0 {
		cfg.HTTP.ShutdownTimeout = 15 * time.Second
	}
	if cfg.Admin.TokenTTL <= 0 {
		cfg.Admin.TokenTTL = 12 * time.Hour
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	cfg.Redis.TTL = normalizeTTL(cfg.Redis.TTL)

	cfg.Payment.Provider = strings.ToLower(strings.TrimSpace(cfg.Payment.Provider))
	if cfg.Payment.Provider == "" {
		cfg.Payment.Provider = "razorpay"
	}
	if cfg.Payment.Razorpay.BaseURL == "" {
		cfg.Payment.Razorpay.BaseURL = "https://api.razorpay.com/v1"
	}
	if cfg.Payment.Razorpay.Timeout <= 0 {
		cfg.Payment.Razorpay.Timeout = 15 * time.Second
	}

	r := &cfg.Reconcile
	if r.MaxOrders <= 0 {
		r.MaxOrders = 50
	}
	if r.ChunkSize <= 0 {
		r.ChunkSize = 10
	}
	if r.ChunkDelay == 0 {
		r.ChunkDelay = 100 * time.Millisecond
	}
	if r.SyncLimit <= 0 {
		r.SyncLimit = 500
	}
	if r.ActivationTimeout <= 0 {
		r.ActivationTimeout = 10 * time.Second
	}
	if r.ExcludeNamePatterns == nil {
		r.ExcludeNamePatterns = []string{"Demo"}
	}

	if cfg.RateLimit.SyncPerWindow <= 0 {
		cfg.RateLimit.SyncPerWindow = 6
	}
	if cfg.RateLimit.Window <= 0 {
		cfg.RateLimit.Window = time.Minute
	}
}

func (cfg *Config) validate() error {
	switch cfg.Payment.Provider {
	case "razorpay":
		if cfg.Payment.Razorpay.KeyID == "" || cfg.Payment.Razorpay.KeySecret == "" {
			return fmt.Errorf("%w: payment.razorpay.key_id and key_secret are required", domain.ErrConfiguration)
		}
	case "noop":
		if !cfg.Runtime.Dev {
			return fmt.Errorf("%w: the noop payment provider is only allowed with -dev", domain.ErrConfiguration)
		}
	default:
		return fmt.Errorf("%w: unknown payment.provider %q", domain.ErrConfiguration, cfg.Payment.Provider)
	}
	if cfg.Database.URL == "" {
		return errors.New("database.url is required")
	}
	if cfg.Admin.JWTSecret == "" {
		return errors.New("admin.jwt_secret is required")
	}
	if cfg.Reconcile.MaxOrders > 50 {
		return errors.New("reconcile.max_orders must not exceed 50")
	}
	return nil
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return 5 * time.Minute
	}
	return d
}
