package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultModelID is the image editing model used for scenario synthesis
const DefaultModelID = "fal-ai/alpha-image-232/edit-image"

// Config holds all application configuration
type Config struct {
	// Local assets
	AssetDir    string `mapstructure:"asset-dir"`
	MaxFileSize int64  `mapstructure:"max-file-size"`

	// HTTP server
	ListenAddr string `mapstructure:"listen-addr"`
	LogLevel   string `mapstructure:"log-level"`

	// Synthesis service
	FalKey       string        `mapstructure:"fal-key"`
	FalQueueURL  string        `mapstructure:"fal-queue-url"`
	ModelID      string        `mapstructure:"model-id"`
	PollInterval time.Duration `mapstructure:"poll-interval"`

	// Scenario defaults
	DefaultFlow float64 `mapstructure:"default-flow"`
	PromptA     string  `mapstructure:"prompt-a"`
	PromptB     string  `mapstructure:"prompt-b"`

	// S3 configuration
	S3Bucket        string        `mapstructure:"s3-bucket"`
	S3Region        string        `mapstructure:"s3-region"`
	S3Endpoint      string        `mapstructure:"s3-endpoint"`
	S3AccessKey     string        `mapstructure:"s3-access-key"`
	S3SecretKey     string        `mapstructure:"s3-secret-key"`
	S3Prefix        string        `mapstructure:"s3-prefix"`
	S3PublicBaseURL string        `mapstructure:"s3-public-base-url"`
	PresignTTL      time.Duration `mapstructure:"presign-ttl"`

	// Database paths
	SQLitePath string `mapstructure:"sqlite-path"`
	FSMDBPath  string `mapstructure:"fsm-db-path"`
}

// SetDefaults registers the default value of every key
func SetDefaults(v *viper.Viper) {
	v.SetDefault("asset-dir", "images")
	v.SetDefault("max-file-size", 25*1024*1024)
	v.SetDefault("listen-addr", ":3000")
	v.SetDefault("log-level", "info")
	v.SetDefault("fal-key", "")
	v.SetDefault("fal-queue-url", "https://queue.fal.run")
	v.SetDefault("model-id", DefaultModelID)
	v.SetDefault("poll-interval", time.Second)
	v.SetDefault("default-flow", 25.0)
	v.SetDefault("prompt-a", "")
	v.SetDefault("prompt-b", "")
	v.SetDefault("s3-bucket", "")
	v.SetDefault("s3-region", "us-east-1")
	v.SetDefault("s3-endpoint", "")
	v.SetDefault("s3-access-key", "")
	v.SetDefault("s3-secret-key", "")
	v.SetDefault("s3-prefix", "evacsim/uploads")
	v.SetDefault("s3-public-base-url", "")
	v.SetDefault("presign-ttl", time.Hour)
	v.SetDefault("sqlite-path", ".artifacts/runs.db")
	v.SetDefault("fsm-db-path", ".artifacts/fsm.db")
}

// Load reads configuration from environment, config file, and defaults
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom is Load against a specific viper instance
func LoadFrom(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	// Environment variables (will be EVACSIM_S3_BUCKET, etc.)
	v.SetEnvPrefix("EVACSIM")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	// Existing .env files name the synthesis credential FAL_KEY
	if err := v.BindEnv("fal-key", "EVACSIM_FAL_KEY", "FAL_KEY"); err != nil {
		return nil, fmt.Errorf("failed to bind fal-key env: %w", err)
	}

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.evacsim")

	// Read config file (ignore if not found)
	_ = v.ReadInConfig()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Validate checks configuration for errors
func (c *Config) Validate() error {
	if c.AssetDir == "" {
		return fmt.Errorf("asset-dir cannot be empty")
	}
	if c.S3Bucket == "" {
		return fmt.Errorf("s3-bucket cannot be empty")
	}
	if c.FalKey == "" {
		return fmt.Errorf("fal-key cannot be empty")
	}
	if c.ModelID == "" {
		return fmt.Errorf("model-id cannot be empty")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll-interval must be positive")
	}
	if c.MaxFileSize <= 0 {
		return fmt.Errorf("max-file-size must be positive")
	}
	if c.DefaultFlow <= 0 {
		return fmt.Errorf("default-flow must be positive")
	}
	if c.SQLitePath == "" {
		return fmt.Errorf("sqlite-path cannot be empty")
	}
	if c.FSMDBPath == "" {
		return fmt.Errorf("fsm-db-path cannot be empty")
	}
	return nil
}
