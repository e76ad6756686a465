// Package config loads process configuration from the environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	CacheDisk   = "disk"
	CacheMemory = "memory"
	CacheRedis  = "redis"
	CacheBadger = "badger"

	BlobS3     = "s3"
	BlobMemory = "memory"
)

type Config struct {
	Env         string `env:"APP_ENV" envDefault:"local"`
	DatabaseURL string `env:"DATABASE_URL"`
	// Migrate applies the embedded schema migrations on startup.
	Migrate    bool  `env:"DB_MIGRATE" envDefault:"false"`
	DBMaxConns int32 `env:"DB_MAX_CONNS" envDefault:"10"`

	Cache CacheConfig
	Blob  BlobConfig

	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat   string `env:"LOG_FORMAT" envDefault:"json"`
	MetricsAddr string `env:"METRICS_ADDR" envDefault:":9090"`
}

type CacheConfig struct {
	Backend    string `env:"CACHE_BACKEND" envDefault:"disk"`
	Dir        string `env:"CACHE_DIR" envDefault:".socialcore/cache"`
	MaxEntries int    `env:"CACHE_MAX_ENTRIES" envDefault:"0"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisPrefix   string `env:"REDIS_PREFIX" envDefault:"socialcore:"`

	BadgerDir string `env:"BADGER_DIR" envDefault:".socialcore/badger"`
}

type BlobConfig struct {
	Backend       string        `env:"BLOB_BACKEND" envDefault:"memory"`
	Endpoint      string        `env:"S3_ENDPOINT"`
	Region        string        `env:"S3_REGION" envDefault:"us-east-1"`
	AccessKey     string        `env:"S3_ACCESS_KEY"`
	SecretKey     string        `env:"S3_SECRET_KEY"`
	UseSSL        bool          `env:"S3_USE_SSL" envDefault:"false"`
	PublicBaseURL string        `env:"S3_PUBLIC_BASE_URL"`
	CreateBuckets bool          `env:"S3_CREATE_BUCKETS" envDefault:"false"`
	SignedURLTTL  time.Duration `env:"SIGNED_URL_TTL" envDefault:"24h"`
}

// Load reads .env when present and decodes the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return Parse()
}

// Parse decodes the current environment without touching .env.
func Parse() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() {
	c.Env = strings.TrimSpace(c.Env)
	c.DatabaseURL = strings.TrimSpace(c.DatabaseURL)
	c.Cache.Backend = strings.ToLower(strings.TrimSpace(c.Cache.Backend))
	if c.Cache.Backend == "" {
		c.Cache.Backend = CacheDisk
	}
	c.Blob.Backend = strings.ToLower(strings.TrimSpace(c.Blob.Backend))
	if c.Blob.Backend == "" {
		c.Blob.Backend = BlobMemory
	}
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	c.LogFormat = strings.ToLower(strings.TrimSpace(c.LogFormat))
}

func (c *Config) Validate() error {
	switch c.Cache.Backend {
	case CacheDisk, CacheMemory, CacheBadger:
	case CacheRedis:
		if strings.TrimSpace(c.Cache.RedisAddr) == "" {
			return fmt.Errorf("CACHE_BACKEND=redis requires REDIS_ADDR")
		}
	default:
		return fmt.Errorf("unknown CACHE_BACKEND %q", c.Cache.Backend)
	}
	switch c.Blob.Backend {
	case BlobMemory:
	case BlobS3:
		if strings.TrimSpace(c.Blob.Endpoint) == "" {
			return fmt.Errorf("BLOB_BACKEND=s3 requires S3_ENDPOINT")
		}
	default:
		return fmt.Errorf("unknown BLOB_BACKEND %q", c.Blob.Backend)
	}
	if c.Cache.MaxEntries < 0 {
		return fmt.Errorf("CACHE_MAX_ENTRIES must not be negative")
	}
	if c.Blob.SignedURLTTL <= 0 {
		return fmt.Errorf("SIGNED_URL_TTL must be positive")
	}
	return nil
}

// HasDatabase reports whether a database URL is configured.
func (c *Config) HasDatabase() bool {
	return c.DatabaseURL != ""
}

// String renders the configuration with secrets masked.
func (c Config) String() string {
	return fmt.Sprintf(
		"env=%s db=%s cache=%s(dir=%s redis=%s badger=%s max=%d) blob=%s(endpoint=%s region=%s access=%s secret=%s ssl=%t) signed_ttl=%s log=%s/%s metrics=%s",
		c.Env, maskURL(c.DatabaseURL),
		c.Cache.Backend, c.Cache.Dir, c.Cache.RedisAddr, c.Cache.BadgerDir, c.Cache.MaxEntries,
		c.Blob.Backend, c.Blob.Endpoint, c.Blob.Region, mask(c.Blob.AccessKey), mask(c.Blob.SecretKey), c.Blob.UseSSL,
		c.Blob.SignedURLTTL, c.LogLevel, c.LogFormat, c.MetricsAddr,
	)
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return "****"
}

// maskURL hides the password of a URL-style DSN.
func maskURL(dsn string) string {
	scheme := strings.Index(dsn, "://")
	at := strings.LastIndex(dsn, "@")
	if scheme < 0 || at < scheme {
		return mask(dsn)
	}
	creds := dsn[scheme+3 : at]
	if user, _, ok := strings.Cut(creds, ":"); ok {
		return dsn[:scheme+3] + user + ":****" + dsn[at:]
	}
	return dsn
}
