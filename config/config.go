package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Gemini  GeminiConfig  `mapstructure:"gemini"`
	Store   StoreConfig   `mapstructure:"store"`
	Blob    BlobConfig    `mapstructure:"blob"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Session SessionConfig `mapstructure:"session"`
	Log     LogConfig     `mapstructure:"log"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port              string        `mapstructure:"port"`
	Environment       string        `mapstructure:"environment"`
	AllowedOrigins    []string      `mapstructure:"allowed_origins"`
	PublicURL         string        `mapstructure:"public_url"`
	MaxUploadBytes    int64         `mapstructure:"max_upload_bytes"`
	ImageFetchTimeout time.Duration `mapstructure:"image_fetch_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
}

// GeminiConfig holds generative model configuration
type GeminiConfig struct {
	APIKey            string        `mapstructure:"api_key"`
	Model             string        `mapstructure:"model"`
	MaxRetries        int           `mapstructure:"max_retries"`
	InitialBackoff    time.Duration `mapstructure:"initial_backoff"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
}

// StoreConfig selects the document store
type StoreConfig struct {
	Type      string `mapstructure:"type"` // "memory" or "firestore"
	ProjectID string `mapstructure:"project_id"`
}

// BlobConfig selects the image store
type BlobConfig struct {
	Type          string        `mapstructure:"type"` // "memory" or "s3"
	Bucket        string        `mapstructure:"bucket"`
	Region        string        `mapstructure:"region"`
	Endpoint      string        `mapstructure:"endpoint"`
	AccessKey     string        `mapstructure:"access_key"`
	SecretKey     string        `mapstructure:"secret_key"`
	UsePathStyle  bool          `mapstructure:"use_path_style"`
	PublicBaseURL string        `mapstructure:"public_base_url"`
	PresignExpiry time.Duration `mapstructure:"presign_expiry"`
}

// CacheConfig holds cache-related configuration
type CacheConfig struct {
	Type            string        `mapstructure:"type"` // "memory" or "redis"
	RedisURL        string        `mapstructure:"redis_url"`
	Prefix          string        `mapstructure:"prefix"`
	TTL             time.Duration `mapstructure:"ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// AuthConfig holds ID-token verification settings
type AuthConfig struct {
	TokenSecret string `mapstructure:"token_secret"`
	Issuer      string `mapstructure:"issuer"`
	Audience    string `mapstructure:"audience"`
}

// SessionConfig holds per-session behavior
type SessionConfig struct {
	IdleTimeout                 time.Duration `mapstructure:"idle_timeout"`
	SweepInterval               time.Duration `mapstructure:"sweep_interval"`
	DefaultLanguage             string        `mapstructure:"default_language"`
	RetranslateOnLanguageChange bool          `mapstructure:"retranslate_on_language_change"`
	TranslateConcurrency        int           `mapstructure:"translate_concurrency"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	if err := loadEnvFile(); err != nil {
		return nil, fmt.Errorf("error reading .env file: %w", err)
	}

	v := viper.New()

	// Set config name and paths
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/nutriscan/")

	// Environment variable settings
	v.SetEnvPrefix("NUTRISCAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set default values
	setDefaults(v)

	// Read config file (optional - will use env vars if file doesn't exist)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Validate configuration
	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// loadEnvFile loads .env from the working directory if present.
// Variables already set in the environment win.
func loadEnvFile() error {
	err := godotenv.Load()
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// setDefaults sets default configuration values. Every key needs a default
// so AutomaticEnv can see it during Unmarshal.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000", "http://localhost:5173"})
	v.SetDefault("server.public_url", "http://localhost:8080")
	v.SetDefault("server.max_upload_bytes", 10<<20)
	v.SetDefault("server.image_fetch_timeout", "15s")
	v.SetDefault("server.shutdown_timeout", "15s")

	// Gemini defaults
	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.model", "gemini-2.5-flash")
	v.SetDefault("gemini.max_retries", 3)
	v.SetDefault("gemini.initial_backoff", "2s")
	v.SetDefault("gemini.requests_per_second", 0)
	v.SetDefault("gemini.burst", 1)

	// Store defaults
	v.SetDefault("store.type", "memory")
	v.SetDefault("store.project_id", "")

	// Blob defaults
	v.SetDefault("blob.type", "memory")
	v.SetDefault("blob.bucket", "")
	v.SetDefault("blob.region", "us-east-1")
	v.SetDefault("blob.endpoint", "")
	v.SetDefault("blob.access_key", "")
	v.SetDefault("blob.secret_key", "")
	v.SetDefault("blob.use_path_style", false)
	v.SetDefault("blob.public_base_url", "")
	v.SetDefault("blob.presign_expiry", "168h")

	// Cache defaults
	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.prefix", "nutriscan:")
	v.SetDefault("cache.ttl", "720h") // 30 days
	v.SetDefault("cache.cleanup_interval", "10m")

	// Auth defaults
	v.SetDefault("auth.token_secret", "")
	v.SetDefault("auth.issuer", "nutriscan")
	v.SetDefault("auth.audience", "nutriscan-web")

	// Session defaults
	v.SetDefault("session.idle_timeout", "2h")
	v.SetDefault("session.sweep_interval", "5m")
	v.SetDefault("session.default_language", "en")
	v.SetDefault("session.retranslate_on_language_change", true)
	v.SetDefault("session.translate_concurrency", 4)

	// Log defaults
	v.SetDefault("log.level", "info")
}

// validate validates the configuration
func validate(config *Config) error {
	if config.Gemini.APIKey == "" {
		return fmt.Errorf("Gemini API key is required (set NUTRISCAN_GEMINI_API_KEY)")
	}

	if config.Gemini.MaxRetries < 0 {
		return fmt.Errorf("gemini max_retries must not be negative, got: %d", config.Gemini.MaxRetries)
	}

	if config.Gemini.InitialBackoff <= 0 {
		return fmt.Errorf("gemini initial_backoff must be positive, got: %s", config.Gemini.InitialBackoff)
	}

	if config.Cache.Type != "memory" && config.Cache.Type != "redis" {
		return fmt.Errorf("cache type must be 'memory' or 'redis', got: %s", config.Cache.Type)
	}

	if config.Cache.Type == "redis" && config.Cache.RedisURL == "" {
		return fmt.Errorf("Redis URL is required when cache type is 'redis'")
	}

	if config.Store.Type != "memory" && config.Store.Type != "firestore" {
		return fmt.Errorf("store type must be 'memory' or 'firestore', got: %s", config.Store.Type)
	}

	if config.Store.Type == "firestore" && config.Store.ProjectID == "" {
		return fmt.Errorf("project id is required when store type is 'firestore'")
	}

	if config.Blob.Type != "memory" && config.Blob.Type != "s3" {
		return fmt.Errorf("blob type must be 'memory' or 's3', got: %s", config.Blob.Type)
	}

	if config.Blob.Type == "s3" && config.Blob.Bucket == "" {
		return fmt.Errorf("bucket is required when blob type is 's3'")
	}

	return nil
}
