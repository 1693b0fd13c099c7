package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"
)

type Config struct {
	Server  ServerConfig
	Storage StorageConfig
	Log     LogConfig
	Feeds   FeedsConfig
	Updates UpdatesConfig
}

type ServerConfig struct {
	Port     int
	APIToken string
}

type StorageConfig struct {
	DataDir string
	Backend string // "sqlite" or "bolt"
}

type LogConfig struct {
	Level string
}

type FeedsConfig struct {
	CheckInterval string
	Concurrency   int
	FetchTimeout  string
}

type UpdatesConfig struct {
	URL         string
	VersionCode int
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 4100,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
			Backend: "sqlite",
		},
		Log: LogConfig{
			Level: "info",
		},
		Feeds: FeedsConfig{
			CheckInterval: "30m",
			Concurrency:   4,
			FetchTimeout:  "30s",
		},
		Updates: UpdatesConfig{
			URL: "",
		},
	}
}

// Load reads configuration from the platform-native backend, environment
// variables, and platform secret store.
//
// On macOS the backend is UserDefaults (domain: com.seedlink.app) and the API
// token lives in the Keychain.
// On Linux the backend is a JSON file at $XDG_CONFIG_HOME/seedlink/config.json
// and the API token is kept in $XDG_DATA_HOME/seedlink/secrets.json.
//
// Environment variables (SEEDLINK_*) override backend values on all platforms.
func Load() (Config, error) {
	return loadWith(newPlatformBackend(), keychainStore{})
}

// keychain abstracts secret storage for testing.
type keychain interface {
	Get(service, account string) (string, error)
	Set(service, account, value string) error
}

func loadWith(b ConfigBackend, kc keychain) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	if cfg.Server.APIToken == "" {
		if tok, err := kc.Get(secretService, tokenAccount); err == nil && tok != "" {
			cfg.Server.APIToken = tok
		}
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Storage.Backend {
	case "sqlite", "bolt":
	default:
		return fmt.Errorf("invalid config storage.backend=%q: want sqlite or bolt", c.Storage.Backend)
	}
	for key, raw := range map[string]string{
		"feeds.check_interval": c.Feeds.CheckInterval,
		"feeds.fetch_timeout":  c.Feeds.FetchTimeout,
	} {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("invalid config %s=%q: %w", key, raw, err)
		}
		if d <= 0 {
			return fmt.Errorf("invalid config %s=%q: must be positive", key, raw)
		}
	}
	if c.Feeds.Concurrency < 1 {
		return fmt.Errorf("invalid config feeds.concurrency=%d: must be at least 1", c.Feeds.Concurrency)
	}
	return nil
}

// CheckEvery returns the feed check interval. Load has already validated it.
func (f FeedsConfig) CheckEvery() time.Duration {
	d, _ := time.ParseDuration(f.CheckInterval)
	return d
}

// Timeout returns the per-feed fetch timeout.
func (f FeedsConfig) Timeout() time.Duration {
	d, _ := time.ParseDuration(f.FetchTimeout)
	return d
}

// SlogLevel maps log.level to a slog level. Unknown values mean info.
func (l LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// keychainStore reads and writes the platform secret store.
type keychainStore struct{}

func (keychainStore) Get(service, account string) (string, error) {
	out, err := keychainGet(service, account)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

func (keychainStore) Set(service, account, value string) error {
	return keychainSet(service, account, value)
}
