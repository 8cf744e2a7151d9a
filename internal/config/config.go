// Package config loads runtime settings from defaults, an optional config
// file, a .env file and YANGGAENG_* environment variables, in increasing
// order of precedence.
package config

import (
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/youngukshin9402-code/cloud-sync-manager/internal/errors"
)

// EnvPrefix is prepended to every environment override.
const EnvPrefix = "YANGGAENG"

// Config is the fully resolved runtime configuration.
type Config struct {
	DataDir  string         `mapstructure:"data_dir"`
	UserID   string         `mapstructure:"user_id"`
	Log      LogConfig      `mapstructure:"log"`
	Supabase SupabaseConfig `mapstructure:"supabase"`
	Storage  StorageConfig  `mapstructure:"storage"`
	S3       S3Config       `mapstructure:"s3"`
	Sync     SyncConfig     `mapstructure:"sync"`
	AI       AIConfig       `mapstructure:"ai"`
	Server   ServerConfig   `mapstructure:"server"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

type SupabaseConfig struct {
	URL         string        `mapstructure:"url"`
	AnonKey     string        `mapstructure:"anon_key"`
	AccessToken string        `mapstructure:"access_token"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// StorageConfig selects the object storage backend: "supabase" or "s3".
type StorageConfig struct {
	Backend string `mapstructure:"backend"`
}

// S3Config configures the S3-compatible backend. Provider is one of
// "aws", "minio" or "r2". Application buckets map to S3 buckets named
// BucketPrefix + bucket.
type S3Config struct {
	Provider      string `mapstructure:"provider"`
	Endpoint      string `mapstructure:"endpoint"`
	Region        string `mapstructure:"region"`
	AccessKey     string `mapstructure:"access_key"`
	SecretKey     string `mapstructure:"secret_key"`
	AccountID     string `mapstructure:"account_id"`
	UseSSL        bool   `mapstructure:"use_ssl"`
	BucketPrefix  string `mapstructure:"bucket_prefix"`
	PublicBaseURL string `mapstructure:"public_base_url"`
}

type SyncConfig struct {
	MaxRetries      int           `mapstructure:"max_retries"`
	MealConcurrency int           `mapstructure:"meal_concurrency"`
	QueueInterval   time.Duration `mapstructure:"queue_interval"`
	DrainTimeout    time.Duration `mapstructure:"drain_timeout"`
}

type AIConfig struct {
	Endpoint          string  `mapstructure:"endpoint"`
	APIKey            string  `mapstructure:"api_key"`
	Model             string  `mapstructure:"model"`
	RequestsPerMinute float64 `mapstructure:"requests_per_minute"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

func setDefaults(v *viper.Viper) {
	home, _ := os.UserHomeDir()
	v.SetDefault("data_dir", filepath.Join(home, ".yanggaeng"))
	v.SetDefault("log.level", "info")
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 28)
	v.SetDefault("supabase.timeout", 30*time.Second)
	v.SetDefault("storage.backend", "supabase")
	v.SetDefault("s3.provider", "aws")
	v.SetDefault("s3.region", "ap-northeast-2")
	v.SetDefault("s3.use_ssl", true)
	v.SetDefault("sync.max_retries", 3)
	v.SetDefault("sync.meal_concurrency", 3)
	v.SetDefault("sync.queue_interval", time.Minute)
	v.SetDefault("sync.drain_timeout", 2*time.Minute)
	v.SetDefault("ai.model", "google/gemini-2.5-flash")
	v.SetDefault("ai.requests_per_minute", 20)
	v.SetDefault("server.addr", "127.0.0.1:8765")
}

// Load resolves configuration. configFile may be empty, in which case
// config.yaml is looked up in the working directory and the data dir.
func Load(configFile string) (*Config, error) {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(v.GetString("data_dir"))
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !stderrors.As(err, &notFound) {
			return nil, errors.Wrap(errors.ErrConfig, "read config file", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(errors.ErrConfig, "decode config", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks invariants that defaults cannot guarantee.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return errors.New(errors.ErrConfig, "data_dir is required")
	}
	if c.Sync.MaxRetries < 1 {
		return errors.Newf(errors.ErrConfig, "sync.max_retries must be >= 1, got %d", c.Sync.MaxRetries)
	}
	if c.Sync.MealConcurrency < 1 {
		return errors.Newf(errors.ErrConfig, "sync.meal_concurrency must be >= 1, got %d", c.Sync.MealConcurrency)
	}
	switch c.Storage.Backend {
	case "supabase":
	case "s3":
		switch c.S3.Provider {
		case "aws", "minio", "r2":
		default:
			return errors.Newf(errors.ErrConfig, "unknown s3.provider %q", c.S3.Provider)
		}
	default:
		return errors.Newf(errors.ErrConfig, "unknown storage.backend %q", c.Storage.Backend)
	}
	return nil
}

// SupabaseConfigured reports whether a remote backend is reachable in principle.
func (c *Config) SupabaseConfigured() bool {
	return c.Supabase.URL != "" && c.Supabase.AnonKey != ""
}
