package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	platformerrors "voicenote-server-go/internal/platform/errors"
)

// Candidate config file locations, checked in order.
var configPaths = []string{".config.yaml", "config.yaml", "config/config.yaml"}

// Loader reads configuration from disk with environment overrides.
type Loader struct {
	useDotEnv bool
	path      string
}

func NewLoader() *Loader {
	return &Loader{useDotEnv: true}
}

// WithDotEnv toggles loading variables from a .env file before reading config.
func (l *Loader) WithDotEnv(enabled bool) *Loader {
	l.useDotEnv = enabled
	return l
}

// WithPath pins the loader to one config file instead of the search list.
func (l *Loader) WithPath(path string) *Loader {
	l.path = path
	return l
}

// Result captures the loaded configuration and its origin path.
type Result struct {
	Config *Config
	Path   string
}

// Load merges defaults, the first config file found and environment
// overrides, then validates the result.
func (l *Loader) Load() (*Result, error) {
	if l.useDotEnv {
		_ = godotenv.Load()
	}

	cfg := DefaultConfig()

	path, err := l.resolvePath()
	if err != nil {
		return nil, err
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, platformerrors.Wrap(platformerrors.KindConfig, "load", "read config file", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, platformerrors.Wrap(platformerrors.KindConfig, "load", "parse config file", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return &Result{Config: cfg, Path: path}, nil
}

func (l *Loader) resolvePath() (string, error) {
	if l.path != "" {
		if _, err := os.Stat(l.path); err != nil {
			return "", platformerrors.Wrap(platformerrors.KindConfig, "load", "config file not found", err)
		}
		return l.path, nil
	}
	for _, candidate := range configPaths {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("VOICENOTE_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("VOICENOTE_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("VOICENOTE_SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}
	if v := os.Getenv("VOICENOTE_REDIS_ADDR"); v != "" {
		cfg.Redis.Enabled = true
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("VOICENOTE_AUTH_SECRET"); v != "" {
		cfg.Auth.Enabled = true
		cfg.Auth.Secret = v
	}
}

// Validate rejects configurations the server cannot start with.
func Validate(cfg *Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return platformerrors.New(platformerrors.KindConfig, "validate",
			fmt.Sprintf("invalid server port %d", cfg.Server.Port))
	}
	if cfg.Web.Enabled && (cfg.Web.Port <= 0 || cfg.Web.Port > 65535) {
		return platformerrors.New(platformerrors.KindConfig, "validate",
			fmt.Sprintf("invalid web port %d", cfg.Web.Port))
	}
	if cfg.Transport.WebSocket.Enabled &&
		(cfg.Transport.WebSocket.Port <= 0 || cfg.Transport.WebSocket.Port > 65535) {
		return platformerrors.New(platformerrors.KindConfig, "validate",
			fmt.Sprintf("invalid websocket port %d", cfg.Transport.WebSocket.Port))
	}
	if cfg.Audio.TransformSize <= 0 || cfg.Audio.TransformSize%2 != 0 {
		return platformerrors.New(platformerrors.KindConfig, "validate",
			fmt.Sprintf("transform size must be a positive even number, got %d", cfg.Audio.TransformSize))
	}
	if cfg.Audio.SampleInterval <= 0 {
		return platformerrors.New(platformerrors.KindConfig, "validate",
			"sample interval must be positive")
	}
	if cfg.Auth.Enabled && cfg.Auth.Secret == "" {
		return platformerrors.New(platformerrors.KindConfig, "validate",
			"auth enabled but no secret configured")
	}
	if cfg.Storage.SQLitePath == "" {
		return platformerrors.New(platformerrors.KindConfig, "validate",
			"sqlite path is required")
	}
	return nil
}
