// Package config loads settings for both binaries from defaults, an optional
// file and the environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

const EnvPrefix = "FIGHTCLUB"

type Config struct {
	Env      string     `mapstructure:"env" validate:"oneof=development production"`
	LogLevel string     `mapstructure:"log_level" validate:"oneof=debug info warn error"`
	Game     GameConfig `mapstructure:"game"`
	API      APIConfig  `mapstructure:"api"`
}

// GameConfig configures cmd/game.
type GameConfig struct {
	Port            int           `mapstructure:"port" validate:"min=1,max=65535"`
	BackendURL      string        `mapstructure:"backend_url" validate:"required,url"`
	AIEnabled       bool          `mapstructure:"ai_enabled"`
	ContentPath     string        `mapstructure:"content_path"`
	Store           string        `mapstructure:"store" validate:"oneof=memory sqlite"`
	SQLitePath      string        `mapstructure:"sqlite_path" validate:"required_if=Store sqlite"`
	MemoryCapacity  int           `mapstructure:"memory_capacity" validate:"min=1"`
	SessionTTL      time.Duration `mapstructure:"session_ttl" validate:"min=1m"`
	GenerateTimeout time.Duration `mapstructure:"generate_timeout" validate:"min=1s"`
	BackendRetries  uint          `mapstructure:"backend_retries" validate:"max=10"`
	MockEntries     int           `mapstructure:"mock_entries" validate:"min=0,max=500"`
	MockSeed        int64         `mapstructure:"mock_seed"`
	AllowedOrigin   string        `mapstructure:"allowed_origin"`
}

// APIConfig configures cmd/api, the AI backend.
type APIConfig struct {
	Port           int           `mapstructure:"port" validate:"min=1,max=65535"`
	GeminiAPIKey   string        `mapstructure:"gemini_api_key"`
	Model          string        `mapstructure:"model" validate:"required"`
	Temperature    float32       `mapstructure:"temperature" validate:"min=0,max=2"`
	MaxTokens      int32         `mapstructure:"max_tokens" validate:"min=64,max=8192"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" validate:"min=1s"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "production")
	v.SetDefault("log_level", "info")

	v.SetDefault("game.port", 8081)
	v.SetDefault("game.backend_url", "http://localhost:3080")
	v.SetDefault("game.ai_enabled", true)
	v.SetDefault("game.content_path", "")
	v.SetDefault("game.store", "memory")
	v.SetDefault("game.sqlite_path", "data/sessions.db")
	v.SetDefault("game.memory_capacity", 10000)
	v.SetDefault("game.session_ttl", 24*time.Hour)
	v.SetDefault("game.generate_timeout", 20*time.Second)
	v.SetDefault("game.backend_retries", 2)
	v.SetDefault("game.mock_entries", 20)
	v.SetDefault("game.mock_seed", 1)
	v.SetDefault("game.allowed_origin", "*")

	v.SetDefault("api.port", 3080)
	v.SetDefault("api.gemini_api_key", "")
	v.SetDefault("api.model", "gemini-2.0-flash")
	v.SetDefault("api.temperature", 0.7)
	v.SetDefault("api.max_tokens", 1024)
	v.SetDefault("api.request_timeout", 30*time.Second)
}

// plainEnv keeps the short variable names working next to the prefixed ones.
var plainEnv = map[string][]string{
	"game.port":          {"GAME_PORT", "PORT"},
	"game.backend_url":   {"BACKEND_URL"},
	"api.port":           {"API_PORT"},
	"api.gemini_api_key": {"GEMINI_API_KEY"},
}

// Load reads configuration. path may be empty; a set path must exist.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, names := range plainEnv {
		args := append([]string{key, EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))}, names...)
		if err := v.BindEnv(args...); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Env = strings.ToLower(strings.TrimSpace(cfg.Env))
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Development() bool { return c.Env == "development" }
