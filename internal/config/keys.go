package config

import (
	"fmt"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "SEEDLINK_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.api_token", typ: kString, env: tokenEnv,
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Server.APIToken = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.APIToken },
	},
	{
		key: "storage.data_dir", typ: kString, env: "SEEDLINK_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "storage.backend", typ: kString, env: "SEEDLINK_STORAGE_BACKEND",
		apply:   func(cfg *Config, v any) { cfg.Storage.Backend = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.Backend },
	},
	{
		key: "log.level", typ: kString, env: "SEEDLINK_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
	{
		key: "feeds.check_interval", typ: kString, env: "SEEDLINK_FEEDS_CHECK_INTERVAL",
		apply:   func(cfg *Config, v any) { cfg.Feeds.CheckInterval = v.(string) },
		extract: func(cfg Config) any { return cfg.Feeds.CheckInterval },
	},
	{
		key: "feeds.concurrency", typ: kInt, env: "SEEDLINK_FEEDS_CONCURRENCY",
		apply:   func(cfg *Config, v any) { cfg.Feeds.Concurrency = v.(int) },
		extract: func(cfg Config) any { return cfg.Feeds.Concurrency },
	},
	{
		key: "feeds.fetch_timeout", typ: kString, env: "SEEDLINK_FEEDS_FETCH_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Feeds.FetchTimeout = v.(string) },
		extract: func(cfg Config) any { return cfg.Feeds.FetchTimeout },
	},
	{
		key: "updates.url", typ: kString, env: "SEEDLINK_UPDATES_URL",
		apply:   func(cfg *Config, v any) { cfg.Updates.URL = v.(string) },
		extract: func(cfg Config) any { return cfg.Updates.URL },
	},
	{
		key: "updates.version_code", typ: kInt, env: "SEEDLINK_UPDATES_VERSION_CODE",
		apply:   func(cfg *Config, v any) { cfg.Updates.VersionCode = v.(int) },
		extract: func(cfg Config) any { return cfg.Updates.VersionCode },
	},
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}
