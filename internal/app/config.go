package app

import (
	"errors"
	"time"

	"github.com/hibiken/asynq"
	"github.com/kelseyhightower/envconfig"

	"github.com/machineskills/console/internal/platform/cache"
)

// Config holds runtime configuration for the console and the worker.
type Config struct {
	AppEnv            string        `envconfig:"APP_ENV" default:"development"`
	AppAddr           string        `envconfig:"APP_ADDR" default:":8080"`
	AppReadTimeout    time.Duration `envconfig:"APP_READ_TIMEOUT" default:"15s"`
	AppWriteTimeout   time.Duration `envconfig:"APP_WRITE_TIMEOUT" default:"60s"`
	AppRequestTimeout time.Duration `envconfig:"APP_REQUEST_TIMEOUT" default:"55s"`
	RequestMaxMB      int64         `envconfig:"REQUEST_MAX_MB" default:"100"`
	RateLimit         int           `envconfig:"RATE_LIMIT_PER_MINUTE" default:"600"`

	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty"`

	BackendBaseURL string        `envconfig:"BACKEND_BASE_URL" default:"http://127.0.0.1:4000"`
	BackendTimeout time.Duration `envconfig:"BACKEND_TIMEOUT" default:"20s"`

	// PGDSN enables the Postgres audit trail when set.
	PGDSN      string `envconfig:"PG_DSN"`
	PGMaxConns int32  `envconfig:"PG_MAX_CONNS" default:"4"`

	// WorkerMetricsAddr serves the worker's /metrics; empty disables it.
	WorkerMetricsAddr string `envconfig:"WORKER_METRICS_ADDR" default:":9091"`

	RedisAddr     string        `envconfig:"REDIS_ADDR" default:"127.0.0.1:6379"`
	RedisPassword string        `envconfig:"REDIS_PASSWORD"`
	RedisDB       int           `envconfig:"REDIS_DB" default:"0"`
	SessionSecret string        `envconfig:"SESSION_SECRET" required:"true"`
	SessionTTL    time.Duration `envconfig:"SESSION_TTL" default:"12h"`

	CSRFSecret string `envconfig:"CSRF_SECRET" required:"true"`

	StagingDir   string        `envconfig:"STAGING_DIR" default:"./var/staging"`
	StagingTTL   time.Duration `envconfig:"STAGING_TTL" default:"24h"`
	UploadMaxMB  int64         `envconfig:"UPLOAD_MAX_MB" default:"10"`
	DraftTTL     time.Duration `envconfig:"DRAFT_TTL" default:"2h"`
	ToastDismiss time.Duration `envconfig:"TOAST_DISMISS" default:"4200ms"`
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values envconfig cannot express.
func (c *Config) Validate() error {
	if c.SessionSecret == "" {
		return errors.New("session secret must be provided")
	}
	if c.CSRFSecret == "" {
		return errors.New("csrf secret must be provided")
	}
	if c.BackendBaseURL == "" {
		return errors.New("backend base url must be provided")
	}
	if c.UploadMaxMB <= 0 {
		return errors.New("upload limit must be positive")
	}
	if c.RequestMaxMB < c.UploadMaxMB {
		return errors.New("request limit must not be smaller than the upload limit")
	}
	if c.DraftTTL <= 0 || c.StagingTTL <= 0 {
		return errors.New("draft and staging ttl must be positive")
	}
	if c.StagingTTL < c.DraftTTL {
		return errors.New("staging ttl must not be shorter than draft ttl")
	}
	return nil
}

// IsProduction returns true when the application runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}

// UploadMaxBytes is the per-file upload limit in bytes.
func (c *Config) UploadMaxBytes() int64 {
	return c.UploadMaxMB << 20
}

// RequestMaxBytes bounds a whole request body, all form files included.
func (c *Config) RequestMaxBytes() int64 {
	return c.RequestMaxMB << 20
}

// RedisOptions addresses the session store.
func (c *Config) RedisOptions() cache.Options {
	return cache.Options{Addr: c.RedisAddr, Password: c.RedisPassword, DB: c.RedisDB}
}

// QueueRedis addresses the asynq queue, which shares the session Redis.
func (c *Config) QueueRedis() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{Addr: c.RedisAddr, Password: c.RedisPassword, DB: c.RedisDB}
}

// AuditEnabled reports whether a Postgres audit trail is configured.
func (c *Config) AuditEnabled() bool {
	return c != nil && c.PGDSN != ""
}
