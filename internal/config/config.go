// Package config loads server settings from defaults, an optional TOML file
// and the environment, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/livescript/livescript/internal/audio"
	"github.com/livescript/livescript/internal/storage"
	"github.com/pelletier/go-toml/v2"
)

const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

type Config struct {
	Port                 string  `toml:"port"`
	BaseURL              string  `toml:"base_url"`
	Store                string  `toml:"store"`
	DatabaseURL          string  `toml:"database_url"`
	JWTSecret            string  `toml:"jwt_secret"`
	OperatorPasswordHash string  `toml:"operator_password_hash"`
	PlaybackRate         float64 `toml:"audio_playback_rate"`
	LogLevel             string  `toml:"log_level"`
	LogFormat            string  `toml:"log_format"`

	S3 S3 `toml:"s3"`
}

type S3 struct {
	Endpoint       string `toml:"endpoint"`
	PublicEndpoint string `toml:"public_endpoint"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	Region         string `toml:"region"`
	VoiceURLTTL    string `toml:"voice_url_ttl"`
}

func Default() Config {
	return Config{
		Port:         "8080",
		BaseURL:      "http://localhost:8080",
		Store:        StorePostgres,
		PlaybackRate: audio.DefaultPlaybackRate,
		LogLevel:     "info",
		LogFormat:    "text",
		S3: S3{
			Endpoint:    "http://localhost:3900",
			Bucket:      "livescript",
			Region:      "eu-central-1",
			VoiceURLTTL: storage.DefaultVoiceURLTTL.String(),
		},
	}
}

// Option overrides a loaded value, typically from a command line flag.
type Option func(*Config)

func WithStore(store string) Option {
	return func(c *Config) {
		if store != "" {
			c.Store = strings.ToLower(store)
		}
	}
}

// Load builds the configuration. An empty path skips the file; a path that
// does not exist is an error. Options are applied after the environment.
func Load(path string, opts ...Option) (*Config, error) {
	cfg := Default()

	if path = strings.TrimSpace(path); path != "" {
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		if err := toml.NewDecoder(file).DisallowUnknownFields().Decode(&cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	for _, opt := range opts {
		opt(&cfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	c.Port = getEnv("PORT", c.Port)
	c.BaseURL = strings.TrimRight(getEnv("BASE_URL", c.BaseURL), "/")
	c.Store = strings.ToLower(getEnv("STORE", c.Store))
	c.DatabaseURL = getEnv("DATABASE_URL", c.DatabaseURL)
	c.JWTSecret = getEnv("JWT_SECRET", c.JWTSecret)
	c.OperatorPasswordHash = getEnv("OPERATOR_PASSWORD_HASH", c.OperatorPasswordHash)
	c.PlaybackRate = getEnvFloat("AUDIO_PLAYBACK_RATE", c.PlaybackRate)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv("LOG_FORMAT", c.LogFormat)

	c.S3.Endpoint = getEnv("S3_ENDPOINT", c.S3.Endpoint)
	c.S3.PublicEndpoint = getEnv("S3_PUBLIC_ENDPOINT", c.S3.PublicEndpoint)
	c.S3.Bucket = getEnv("S3_BUCKET", c.S3.Bucket)
	c.S3.AccessKey = getEnv("S3_ACCESS_KEY", c.S3.AccessKey)
	c.S3.SecretKey = getEnv("S3_SECRET_KEY", c.S3.SecretKey)
	c.S3.Region = getEnv("S3_REGION", c.S3.Region)
	c.S3.VoiceURLTTL = getEnv("VOICE_URL_TTL", c.S3.VoiceURLTTL)
}

func (c *Config) Validate() error {
	var errs []error
	switch c.Store {
	case StorePostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required unless the memory store is selected"))
		}
	case StoreMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown store %q", c.Store))
	}
	if c.PlaybackRate <= 0 {
		errs = append(errs, fmt.Errorf("audio playback rate must be positive, got %v", c.PlaybackRate))
	}
	if _, err := c.VoiceURLTTL(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Level(); err != nil {
		errs = append(errs, err)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("log format must be text or json, got %q", c.LogFormat))
	}
	return errors.Join(errs...)
}

// StorageEnabled reports whether voice clips are served from S3. Without an
// access key voice paths resolve to nothing and every line plays silent.
func (c *Config) StorageEnabled() bool {
	return c.S3.AccessKey != "" && c.S3.Bucket != ""
}

func (c *Config) VoiceURLTTL() (time.Duration, error) {
	if c.S3.VoiceURLTTL == "" {
		return storage.DefaultVoiceURLTTL, nil
	}
	d, err := time.ParseDuration(c.S3.VoiceURLTTL)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid voice URL TTL %q", c.S3.VoiceURLTTL)
	}
	return d, nil
}

func (c *Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("invalid log level %q", c.LogLevel)
	}
	return level, nil
}

func (c *Config) StorageConfig() storage.Config {
	ttl, _ := c.VoiceURLTTL()
	return storage.Config{
		Endpoint:       c.S3.Endpoint,
		PublicEndpoint: c.S3.PublicEndpoint,
		Bucket:         c.S3.Bucket,
		AccessKey:      c.S3.AccessKey,
		SecretKey:      c.S3.SecretKey,
		Region:         c.S3.Region,
		VoiceURLTTL:    ttl,
	}
}

// StorageEndpoint is the origin browsers fetch voice clips from.
func (c *Config) StorageEndpoint() string {
	if !c.StorageEnabled() {
		return ""
	}
	if c.S3.PublicEndpoint != "" {
		return c.S3.PublicEndpoint
	}
	return c.S3.Endpoint
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}
