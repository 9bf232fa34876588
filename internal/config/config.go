package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"lingo-core/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	Redis       RedisConfig       `yaml:"redis"`
	AWS         AWSConfig         `yaml:"aws"`
	APNs        APNsConfig        `yaml:"apns"`
	JWT         JWTConfig         `yaml:"jwt"`
	Log         LogConfig         `yaml:"log"`
	Backend     BackendConfig     `yaml:"backend"`
	Model       ModelConfig       `yaml:"model"`
	Speech      SpeechConfig      `yaml:"speech"`
	Preferences PreferencesConfig `yaml:"preferences"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
	URL      string `yaml:"url"`
}

// RedisConfig holds the Redis URL used for feed fan-out between instances
type RedisConfig struct {
	URL string `yaml:"url"`
}

// AWSConfig holds AWS configuration for avatar uploads
type AWSConfig struct {
	Region    string `yaml:"region"`
	S3Bucket  string `yaml:"s3_bucket"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Endpoint  string `yaml:"endpoint"`
}

// APNsConfig holds Apple push notification configuration
type APNsConfig struct {
	CertFile   string `yaml:"cert_file"`
	Password   string `yaml:"password"`
	Topic      string `yaml:"topic"`
	Production bool   `yaml:"production"`
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret string        `yaml:"secret"`
	TTL    time.Duration `yaml:"ttl"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string `yaml:"level"`
}

// BackendConfig selects and tunes the backend gateway
type BackendConfig struct {
	Mode                 string        `yaml:"mode"` // local or remote
	BaseURL              string        `yaml:"base_url"`
	CallTimeout          time.Duration `yaml:"call_timeout"`
	DemoActivityInterval time.Duration `yaml:"demo_activity_interval"`
	MinPasswordEntropy   float64       `yaml:"min_password_entropy"`
	SeedDemoData         bool          `yaml:"seed_demo_data"`
}

// ModelConfig configures the conversational model
type ModelConfig struct {
	Local        models.LocalModelConfig `yaml:"local"`
	GeminiAPIKey string                  `yaml:"gemini_api_key"`
	GeminiModel  string                  `yaml:"gemini_model"`
	CacheSize    int                     `yaml:"cache_size"`
	// PreferCloud asks Gemini first and uses the local model as the fallback
	PreferCloud  bool                    `yaml:"prefer_cloud"`
}

// SpeechConfig holds speech defaults
type SpeechConfig struct {
	Language string  `yaml:"language"`
	Rate     float64 `yaml:"rate"`
}

// PreferencesConfig holds defaults applied before a session exists
type PreferencesConfig struct {
	Theme    models.ThemeMode    `yaml:"theme"`
	Language models.LanguageCode `yaml:"language"`
}

// Default returns the configuration used when no file is present
func Default() *Config {
	return &Config{
		Server: ServerConfig{Host: "0.0.0.0", Port: 8080},
		JWT:    JWTConfig{Secret: "dev-secret-change-me", TTL: 24 * time.Hour},
		Log:    LogConfig{Level: "info"},
		Backend: BackendConfig{
			Mode:                 "local",
			BaseURL:              "http://localhost:8080",
			CallTimeout:          10 * time.Second,
			DemoActivityInterval: time.Minute,
			MinPasswordEntropy:   40,
			SeedDemoData:         true,
		},
		Model: ModelConfig{
			Local: models.LocalModelConfig{
				ModelName:        "Qwen2.5-0.5B-Instruct",
				ModelSizeMB:      400,
				Quantization:     models.Quantization4Bit,
				MaxContextTokens: 2048,
				Temperature:      0.6,
				TopP:             0.9,
			},
			GeminiModel: "gemini-2.0-flash",
			CacheSize:   256,
		},
		Speech:      SpeechConfig{Language: "en-US", Rate: 1.0},
		Preferences: PreferencesConfig{Theme: models.ThemeLight, Language: models.LanguageCzech},
	}
}

// Load reads configuration from a YAML file on top of the defaults.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv lets secrets come from the environment instead of the file
func (c *Config) applyEnv() {
	overrides := map[string]*string{
		"LINGO_JWT_SECRET":   &c.JWT.Secret,
		"LINGO_DATABASE_URL": &c.Database.URL,
		"LINGO_REDIS_URL":    &c.Redis.URL,
		"LINGO_BACKEND_URL":  &c.Backend.BaseURL,
		"LINGO_BACKEND_MODE": &c.Backend.Mode,
		"GEMINI_API_KEY":     &c.Model.GeminiAPIKey,
	}
	for key, target := range overrides {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*target = v
		}
	}
}

// Validate checks values that would otherwise fail late
func (c *Config) Validate() error {
	switch c.Backend.Mode {
	case "local", "remote":
	default:
		return fmt.Errorf("unknown backend mode %q", c.Backend.Mode)
	}
	if c.Backend.Mode == "remote" && c.Backend.BaseURL == "" {
		return fmt.Errorf("backend.base_url is required in remote mode")
	}
	if c.JWT.Secret == "" {
		return fmt.Errorf("jwt.secret is required")
	}
	if !c.Preferences.Theme.Valid() {
		return fmt.Errorf("unknown default theme %q", c.Preferences.Theme)
	}
	if !c.Preferences.Language.Valid() {
		return fmt.Errorf("unknown default language %q", c.Preferences.Language)
	}
	return nil
}

// DSN returns the PostgreSQL connection string, or "" when no database is configured
func (c *DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	if c.Host == "" {
		return ""
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}
