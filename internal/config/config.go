// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const (
	VariantUser   = "user"
	VariantGlobal = "global"

	MergeDefaults = "defaults"
	MergePrevious = "previous"

	DefaultCacheTTLMillis  = 300000
	DefaultSweepCron       = "*/5 * * * *"
	DefaultAssetMaxBytes   = 2 << 20
	DefaultAssetPublicPath = "/uploads"
	DefaultAuthTokenTTL    = 24 * time.Hour

	DefaultRateLimitWindow    = time.Minute
	DefaultRateLimitMaxPerKey = 30
	DefaultRateLimitMaxPerIP  = 120
)

type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	Filename string `yaml:"filename"`
	URL      string `yaml:"url,omitempty"` // postgres DSN; DATABASE_URL overrides
}

type ThemeConfig struct {
	Variant string `yaml:"variant"`
	// Empty picks the variant's natural policy.
	MergePolicy string `yaml:"merge_policy"`
}

type CacheConfig struct {
	Enabled   *bool  `yaml:"enabled"`
	TTLMillis int64  `yaml:"ttl_ms"`
	SweepCron string `yaml:"sweep_cron"`
}

type S3Config struct {
	Bucket        string `yaml:"bucket"`
	Region        string `yaml:"region"`
	Prefix        string `yaml:"prefix"`
	PublicBaseURL string `yaml:"public_base_url"`
}

type AssetsConfig struct {
	Driver     string   `yaml:"driver"`
	Dir        string   `yaml:"dir"`
	PublicPath string   `yaml:"public_path"`
	MaxBytes   int64    `yaml:"max_bytes"`
	S3         S3Config `yaml:"s3"`
}

type AuthConfig struct {
	TokenTTL time.Duration `yaml:"token_ttl"`
}

// RateLimitConfig throttles theme writes per identity and per client IP.
type RateLimitConfig struct {
	Enabled    *bool         `yaml:"enabled"`
	Window     time.Duration `yaml:"window"`
	MaxPerKey  int           `yaml:"max_per_key"`
	MaxPerIP   int           `yaml:"max_per_ip"`
	TrustProxy bool          `yaml:"trust_proxy"`
}

// Secrets are never read from the YAML file.
type Secrets struct {
	AppSecretKey       string `envconfig:"APP_SECRET_KEY"`
	DatabaseURL        string `envconfig:"DATABASE_URL"`
	ClerkSecretKey     string `envconfig:"CLERK_SECRET_KEY"`
	AWSAccessKeyID     string `envconfig:"AWS_ACCESS_KEY_ID"`
	AWSSecretAccessKey string `envconfig:"AWS_SECRET_ACCESS_KEY"`
}

type Config struct {
	App struct {
		Name        string `yaml:"name"`
		Environment string `yaml:"environment"`
		Port        int    `yaml:"port"`
		BaseURL     string `yaml:"base_url"`
	} `yaml:"app"`

	Database  DatabaseConfig  `yaml:"database"`
	Theme     ThemeConfig     `yaml:"theme"`
	Cache     CacheConfig     `yaml:"cache"`
	Assets    AssetsConfig    `yaml:"assets"`
	Auth      AuthConfig      `yaml:"auth"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`

	Features struct {
		EnableDebug bool `yaml:"enable_debug"`
	} `yaml:"features"`

	Secrets Secrets `yaml:"-"`
}

// Load loads both .env and yaml configuration
func Load(configPath string) (*Config, error) {
	// Load .env file if it exists
	envPath := filepath.Join(filepath.Dir(configPath), ".env")
	if err := godotenv.Load(envPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}

	if err := envconfig.Process("", &cfg.Secrets); err != nil {
		return nil, fmt.Errorf("error loading secrets from environment: %w", err)
	}
	if cfg.Secrets.DatabaseURL != "" {
		cfg.Database.URL = cfg.Secrets.DatabaseURL
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Parse decodes YAML and fills defaults. It does not read the environment or validate.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Theme.Variant == "" {
		c.Theme.Variant = VariantUser
	}
	if c.Theme.MergePolicy == "" {
		c.Theme.MergePolicy = MergeDefaults
		if c.Theme.Variant == VariantGlobal {
			c.Theme.MergePolicy = MergePrevious
		}
	}
	if c.Cache.Enabled == nil {
		enabled := true
		c.Cache.Enabled = &enabled
	}
	if c.Cache.TTLMillis == 0 {
		c.Cache.TTLMillis = DefaultCacheTTLMillis
	}
	if c.Cache.SweepCron == "" {
		c.Cache.SweepCron = DefaultSweepCron
	}
	if c.Assets.Driver == "" {
		c.Assets.Driver = "local"
	}
	if c.Assets.PublicPath == "" {
		c.Assets.PublicPath = DefaultAssetPublicPath
	}
	if c.Assets.MaxBytes == 0 {
		c.Assets.MaxBytes = DefaultAssetMaxBytes
	}
	if c.Auth.TokenTTL == 0 {
		c.Auth.TokenTTL = DefaultAuthTokenTTL
	}
	if c.RateLimit.Enabled == nil {
		enabled := true
		c.RateLimit.Enabled = &enabled
	}
	if c.RateLimit.Window == 0 {
		c.RateLimit.Window = DefaultRateLimitWindow
	}
	if c.RateLimit.MaxPerKey == 0 {
		c.RateLimit.MaxPerKey = DefaultRateLimitMaxPerKey
	}
	if c.RateLimit.MaxPerIP == 0 {
		c.RateLimit.MaxPerIP = DefaultRateLimitMaxPerIP
	}
}

// CacheEnabled reports the effective cache switch.
func (c *Config) CacheEnabled() bool {
	return c.Cache.Enabled == nil || *c.Cache.Enabled
}

// RateLimitEnabled reports the effective write throttle switch.
func (c *Config) RateLimitEnabled() bool {
	return c.RateLimit.Enabled == nil || *c.RateLimit.Enabled
}

// CacheTTL returns the configured TTL as a duration.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLMillis) * time.Millisecond
}

// IsDevelopment reports whether the app runs in a development environment.
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

func (c *Config) Validate() error {
	if c.App.Name == "" {
		return fmt.Errorf("app name is required")
	}
	if c.App.Port == 0 {
		return fmt.Errorf("app port is required")
	}
	if c.Database.Driver == "" {
		return fmt.Errorf("database driver is required")
	}

	// Validate based on database driver
	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Filename == "" {
			return fmt.Errorf("database filename is required for sqlite")
		}
	case "postgres":
		if c.Database.URL == "" {
			return fmt.Errorf("database URL is required for postgres")
		}
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}

	switch c.Theme.Variant {
	case VariantUser, VariantGlobal:
	default:
		return fmt.Errorf("unsupported theme variant: %s", c.Theme.Variant)
	}
	switch c.Theme.MergePolicy {
	case MergeDefaults, MergePrevious:
	default:
		return fmt.Errorf("unsupported theme merge policy: %s", c.Theme.MergePolicy)
	}

	if c.Cache.TTLMillis < 0 {
		return fmt.Errorf("cache ttl_ms must not be negative")
	}

	switch c.Assets.Driver {
	case "local":
		if c.Theme.Variant == VariantGlobal && c.Assets.Dir == "" {
			return fmt.Errorf("assets dir is required for the local asset driver")
		}
	case "s3":
		if c.Assets.S3.Bucket == "" {
			return fmt.Errorf("assets s3 bucket is required for the s3 asset driver")
		}
		if c.Assets.S3.Region == "" {
			return fmt.Errorf("assets s3 region is required for the s3 asset driver")
		}
	default:
		return fmt.Errorf("unsupported assets driver: %s", c.Assets.Driver)
	}
	if c.Assets.MaxBytes < 0 {
		return fmt.Errorf("assets max_bytes must not be negative")
	}

	if c.RateLimit.Window < 0 || c.RateLimit.MaxPerKey < 0 || c.RateLimit.MaxPerIP < 0 {
		return fmt.Errorf("rate_limit values must not be negative")
	}

	if c.App.Environment != "development" && c.Secrets.AppSecretKey == "" && c.Secrets.ClerkSecretKey == "" {
		return fmt.Errorf("APP_SECRET_KEY or CLERK_SECRET_KEY is required outside development")
	}

	return nil
}
