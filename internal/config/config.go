package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	AWS      AWSConfig      `yaml:"aws"`
	App      AppConfig      `yaml:"app"`
	Dispatch DispatchConfig `yaml:"dispatch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// DatabaseConfig holds PostgreSQL settings.
type DatabaseConfig struct {
	URL          string `yaml:"url"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

// RedisConfig holds Redis connection settings for the subscription cache.
type RedisConfig struct {
	URL string `yaml:"url"`
}

// AWSConfig holds SES credentials. Endpoint overrides the SES API endpoint
// for local development stacks.
type AWSConfig struct {
	AccessKey     string `yaml:"access_key"`
	SecretKey     string `yaml:"secret_key"`
	DefaultRegion string `yaml:"default_region"`
	SESEndpoint   string `yaml:"ses_endpoint"`
	// ConfigSetPrefix names the per-tracking-mode SES configuration sets.
	ConfigSetPrefix string `yaml:"config_set_prefix"`
}

// AppConfig holds application-level settings.
type AppConfig struct {
	// BaseURL is the public URL unsubscribe links are built against.
	BaseURL string `yaml:"base_url"`
	// UnsubscribeSecret signs unsubscribe tokens and outbound webhooks.
	UnsubscribeSecret string `yaml:"unsubscribe_secret"`
	LogLevel          string `yaml:"log_level"`
}

// DispatchConfig holds dispatch lane defaults.
type DispatchConfig struct {
	// PollInterval is how often idle lane workers poll the queue.
	PollInterval time.Duration `yaml:"poll_interval"`
	// DefaultQuota is used for regions with no persisted rate setting.
	DefaultQuota int `yaml:"default_quota"`
	// DefaultTransactionalPct splits DefaultQuota between lanes.
	DefaultTransactionalPct int `yaml:"default_transactional_pct"`
}

// Load reads configuration from the given YAML file, then applies
// environment variable overrides. A missing file is not an error; env-only
// deployments are supported. A .env file is loaded first if present.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	if cfg.Database.URL == "" {
		return nil, fmt.Errorf("database url is required (DATABASE_URL)")
	}
	if cfg.App.UnsubscribeSecret == "" {
		return nil, fmt.Errorf("unsubscribe secret is required (UNSUBSCRIBE_SECRET)")
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			MaxOpenConns: 25,
			MaxIdleConns: 5,
		},
		Redis: RedisConfig{URL: "redis://localhost:6379"},
		AWS:   AWSConfig{DefaultRegion: "us-east-1", ConfigSetPrefix: "mail"},
		App:   AppConfig{BaseURL: "http://localhost:8080", LogLevel: "info"},
		Dispatch: DispatchConfig{
			PollInterval:            200 * time.Millisecond,
			DefaultQuota:            10,
			DefaultTransactionalPct: 50,
		},
	}
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = p
		}
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := os.Getenv("AWS_ACCESS_KEY"); v != "" {
		cfg.AWS.AccessKey = v
	}
	if v := os.Getenv("AWS_SECRET_KEY"); v != "" {
		cfg.AWS.SecretKey = v
	}
	if v := os.Getenv("AWS_DEFAULT_REGION"); v != "" {
		cfg.AWS.DefaultRegion = v
	}
	if v := os.Getenv("AWS_SES_ENDPOINT"); v != "" {
		cfg.AWS.SESEndpoint = v
	}
	if v := os.Getenv("SES_CONFIG_SET_PREFIX"); v != "" {
		cfg.AWS.ConfigSetPrefix = v
	}
	if v := os.Getenv("APP_BASE_URL"); v != "" {
		cfg.App.BaseURL = v
	}
	if v := os.Getenv("UNSUBSCRIBE_SECRET"); v != "" {
		cfg.App.UnsubscribeSecret = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.App.LogLevel = v
	}
}
