// Package config loads runtime configuration from defaults, an optional
// .env file, and PAPERCHAT_* environment variables.
package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// envPrefix scopes the environment variables this app reads, except for
// OPENAI_API_KEY which keeps its conventional name.
const envPrefix = "PAPERCHAT_"

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	OpenAI    OpenAIConfig    `koanf:"openai"`
	Storage   StorageConfig   `koanf:"storage"`
	Chunking  ChunkingConfig  `koanf:"chunking"`
	Retrieval RetrievalConfig `koanf:"retrieval"`
	Log       LogConfig       `koanf:"log"`
}

type ServerConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"`
}

type OpenAIConfig struct {
	APIKey     string `koanf:"api_key"`
	BaseURL    string `koanf:"base_url"`
	ChatModel  string `koanf:"chat_model"`
	EmbedModel string `koanf:"embed_model"`
}

type StorageConfig struct {
	DataDir   string `koanf:"data_dir"`
	UploadDir string `koanf:"upload_dir"`
	IndexDir  string `koanf:"index_dir"`
}

type ChunkingConfig struct {
	Size    int `koanf:"size"`
	Overlap int `koanf:"overlap"`
}

type RetrievalConfig struct {
	TopK         int `koanf:"top_k"`
	HistoryTurns int `koanf:"history_turns"`
}

type LogConfig struct {
	Level string `koanf:"level"`
}

// KeyValid reports whether the configured OpenAI key looks usable. This is
// the single check that switches both pipelines into dummy mode: placeholder
// keys from sample .env files are treated the same as no key at all.
func (c OpenAIConfig) KeyValid() bool {
	key := c.APIKey
	if key == "" || key == "placeholder" || strings.HasPrefix(key, "sk-your-key") {
		return false
	}
	return true
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8000,
		},
		OpenAI: OpenAIConfig{
			ChatModel:  "gpt-3.5-turbo",
			EmbedModel: "text-embedding-3-small",
		},
		Storage: StorageConfig{
			DataDir:   "data",
			UploadDir: "data/uploads",
			IndexDir:  "data/vector_stores",
		},
		Chunking: ChunkingConfig{
			Size:    1000,
			Overlap: 200,
		},
		Retrieval: RetrievalConfig{
			TopK:         5,
			HistoryTurns: 3,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration. A .env file in the working directory is applied
// to the process environment first, if present.
func Load() (Config, error) {
	_ = godotenv.Load() // missing .env is fine
	return loadFromEnv()
}

func loadFromEnv() (Config, error) {
	cfg := defaults()

	k := koanf.New(".")

	// PAPERCHAT_SERVER_PORT -> server.port, PAPERCHAT_OPENAI_API_KEY ->
	// openai.api_key: split once on the first underscore after the prefix.
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		lower := strings.ToLower(strings.TrimPrefix(s, envPrefix))
		parts := strings.SplitN(lower, "_", 2)
		if len(parts) == 1 {
			return lower
		}
		return parts[0] + "." + parts[1]
	}), nil); err != nil {
		return Config{}, fmt.Errorf("loading environment variables: %w", err)
	}

	// OPENAI_API_KEY is honored under its conventional name.
	if err := k.Load(env.Provider("OPENAI_API_KEY", ".", func(string) string {
		return "openai.api_key"
	}), nil); err != nil {
		return Config{}, fmt.Errorf("loading OPENAI_API_KEY: %w", err)
	}

	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}

	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validate(cfg Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", cfg.Server.Port)
	}
	if cfg.Chunking.Size <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", cfg.Chunking.Size)
	}
	if cfg.Chunking.Overlap < 0 || cfg.Chunking.Overlap >= cfg.Chunking.Size {
		return fmt.Errorf("chunk overlap %d must be in [0, %d)", cfg.Chunking.Overlap, cfg.Chunking.Size)
	}
	if cfg.Retrieval.TopK <= 0 {
		return fmt.Errorf("retrieval top_k must be positive, got %d", cfg.Retrieval.TopK)
	}
	if cfg.Retrieval.HistoryTurns < 0 {
		return fmt.Errorf("history_turns must not be negative, got %d", cfg.Retrieval.HistoryTurns)
	}
	return nil
}
