// Package config loads runtime settings from a .env file and the
// environment, environment winning.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/dotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server   ServerConfig
	Provider ProviderConfig
	Stream   StreamConfig
	Store    StoreConfig
	Log      LogConfig
}

type ServerConfig struct {
	BindAddr         string
	Env              string
	MetricsNamespace string
	ShutdownTimeout  time.Duration
	AllowAnyOrigin   bool
}

type ProviderConfig struct {
	Mode           string
	DeepSeekAPIKey string
	DeepSeekModel  string
	OpenAIAPIKey   string
	OpenAIBaseURL  string
	OpenAIModel    string
}

// StreamConfig holds the delivery policies for the frame protocol.
type StreamConfig struct {
	ChunkWords     int
	ChunkDelay     time.Duration
	ConnectTimeout time.Duration
	MetadataWait   time.Duration
	HealthTTL      time.Duration
}

type StoreConfig struct {
	DatabaseURL string
}

type LogConfig struct {
	Level string
}

// Load reads the optional .env file, then the environment, and applies
// defaults. TUTOR_CHUNK_WORDS becomes tutor.chunk.words and so on.
func Load() (*Config, error) {
	k := koanf.New(".")

	_ = k.Load(file.Provider(".env"), dotenv.Parser())

	err := k.Load(env.Provider("", ".", func(s string) string {
		return strings.ToLower(strings.ReplaceAll(s, "_", "."))
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("loading env vars: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			BindAddr:         k.String("tutor.bind.addr"),
			Env:              k.String("tutor.env"),
			MetricsNamespace: k.String("tutor.metrics.namespace"),
			AllowAnyOrigin:   k.Bool("tutor.allow.any.origin"),
		},
		Provider: ProviderConfig{
			Mode:           k.String("tutor.provider.mode"),
			DeepSeekAPIKey: strings.TrimSpace(k.String("deepseek.api.key")),
			DeepSeekModel:  k.String("deepseek.model"),
			OpenAIAPIKey:   strings.TrimSpace(k.String("openai.api.key")),
			OpenAIBaseURL:  k.String("openai.base.url"),
			OpenAIModel:    k.String("openai.model"),
		},
		Stream: StreamConfig{
			ChunkWords: k.Int("tutor.chunk.words"),
		},
		Store: StoreConfig{
			DatabaseURL: strings.TrimSpace(k.String("database.url")),
		},
		Log: LogConfig{
			Level: k.String("log.level"),
		},
	}

	if cfg.Server.BindAddr == "" {
		cfg.Server.BindAddr = ":8080"
	}
	if cfg.Server.Env == "" {
		cfg.Server.Env = "development"
	}
	if cfg.Server.MetricsNamespace == "" {
		cfg.Server.MetricsNamespace = "tutorstream"
	}
	if cfg.Provider.Mode == "" {
		cfg.Provider.Mode = "auto"
	}
	if cfg.Stream.ChunkWords == 0 {
		cfg.Stream.ChunkWords = 10
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}

	cfg.Server.ShutdownTimeout, err = parseDuration(k, "tutor.shutdown.timeout", 15*time.Second)
	if err != nil {
		return nil, err
	}
	cfg.Stream.ChunkDelay, err = parseDuration(k, "tutor.chunk.delay", 50*time.Millisecond)
	if err != nil {
		return nil, err
	}
	cfg.Stream.ConnectTimeout, err = parseDuration(k, "tutor.connect.timeout", 15*time.Second)
	if err != nil {
		return nil, err
	}
	cfg.Stream.MetadataWait, err = parseDuration(k, "tutor.metadata.wait", 10*time.Second)
	if err != nil {
		return nil, err
	}
	cfg.Stream.HealthTTL, err = parseDuration(k, "tutor.health.ttl", 5*time.Second)
	if err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Stream.ChunkWords <= 0 {
		return fmt.Errorf("TUTOR_CHUNK_WORDS must be positive")
	}
	if c.Stream.ChunkDelay < 0 {
		return fmt.Errorf("TUTOR_CHUNK_DELAY must not be negative")
	}
	if c.Stream.ConnectTimeout < time.Second {
		return fmt.Errorf("TUTOR_CONNECT_TIMEOUT must be at least 1s")
	}
	switch c.Provider.Mode {
	case "auto", "deepseek", "openai", "mock":
	default:
		return fmt.Errorf("TUTOR_PROVIDER_MODE must be one of auto, deepseek, openai, mock")
	}
	return nil
}

func parseDuration(k *koanf.Koanf, key string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(k.String(key))
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", strings.ToUpper(strings.ReplaceAll(key, ".", "_")), err)
	}
	return d, nil
}
