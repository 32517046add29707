// Package config loads the notebook server's own ambient configuration —
// bind address, default pool size, default row cap, default cell timeout,
// and event-queue depth. Per spec.md §6, "DSN is the only runtime-
// configurable item" at the notebook level; everything this package loads
// is a compile-time default the operator may override at process start,
// never per-notebook state. It generalizes the teacher's
// internal/cli/config.LoadConfigWithTarget koanf provider chain (confmap
// defaults → yaml file → env → posflag) from project/target config to
// this small server config shape.
package config

import (
	"fmt"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// ServerConfig is the notebook server's startup configuration.
type ServerConfig struct {
	Addr              string        `koanf:"addr"`
	DefaultPoolSize   int           `koanf:"default_pool_size"`
	DefaultRowCap     int           `koanf:"default_row_cap"`
	ImperativeTimeout time.Duration `koanf:"imperative_timeout"`
	QueryTimeout      time.Duration `koanf:"query_timeout"`
	EventQueueDepth   int           `koanf:"event_queue_depth"`
}

// Defaults mirrors the compile-time defaults spec.md names throughout
// §4.D/§4.E/§4.F/§4.H (30s executor timeouts, 1000-row cap, 64-deep event
// queues) plus a conventional HTTP bind address.
func Defaults() ServerConfig {
	return ServerConfig{
		Addr:              ":8080",
		DefaultPoolSize:   0, // 0 defers to pgxpool's own default
		DefaultRowCap:     1000,
		ImperativeTimeout: 30 * time.Second,
		QueryTimeout:      30 * time.Second,
		EventQueueDepth:   64,
	}
}

// Load builds a ServerConfig by layering, in increasing priority: the
// compile-time Defaults, an optional YAML file, environment variables
// prefixed NOTEBOOK_, and any CLI flags bound to flags (posflag), the same
// provider order the teacher's loader uses for project config.
func Load(configPath string, flags *pflag.FlagSet) (ServerConfig, error) {
	k := koanf.New(".")

	defaults := Defaults()
	defaultsMap := map[string]any{
		"addr":                defaults.Addr,
		"default_pool_size":   defaults.DefaultPoolSize,
		"default_row_cap":     defaults.DefaultRowCap,
		"imperative_timeout":  defaults.ImperativeTimeout.String(),
		"query_timeout":       defaults.QueryTimeout.String(),
		"event_queue_depth":   defaults.EventQueueDepth,
	}
	if err := k.Load(confmap.Provider(defaultsMap, "."), nil); err != nil {
		return ServerConfig{}, fmt.Errorf("loading defaults: %w", err)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return ServerConfig{}, fmt.Errorf("loading %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("NOTEBOOK_", ".", envKeyMap), nil); err != nil {
		return ServerConfig{}, fmt.Errorf("loading environment: %w", err)
	}

	if flags != nil {
		provider := posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			if !f.Changed {
				return "", nil
			}
			return flagKeyToSnake(f.Name), posflag.FlagVal(flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return ServerConfig{}, fmt.Errorf("loading flags: %w", err)
		}
	}

	var cfg ServerConfig
	if err := k.Unmarshal("", &cfg); err != nil {
		return ServerConfig{}, fmt.Errorf("unmarshaling config: %w", err)
	}

	imp, err := parseDurationField(k, "imperative_timeout", defaults.ImperativeTimeout)
	if err != nil {
		return ServerConfig{}, err
	}
	cfg.ImperativeTimeout = imp

	q, err := parseDurationField(k, "query_timeout", defaults.QueryTimeout)
	if err != nil {
		return ServerConfig{}, err
	}
	cfg.QueryTimeout = q

	return cfg, nil
}

func parseDurationField(k *koanf.Koanf, key string, fallback time.Duration) (time.Duration, error) {
	s := k.String(key)
	if s == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

// envKeyMap turns NOTEBOOK_DEFAULT_ROW_CAP into default_row_cap, matching
// the koanf.env field-name convention.
func envKeyMap(s string) string {
	return toSnake(stripPrefix(s, "NOTEBOOK_"))
}

func stripPrefix(s, prefix string) string {
	if len(s) >= len(prefix) && s[:len(prefix)] == prefix {
		return s[len(prefix):]
	}
	return s
}

func toSnake(s string) string {
	out := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'A' && c <= 'Z' {
			c = c - 'A' + 'a'
		}
		out[i] = c
	}
	return string(out)
}

// flagKeyToSnake turns a hyphenated CLI flag name like "default-row-cap"
// into its koanf key "default_row_cap". Cobra/pflag convention is
// hyphenated flags; our config keys follow koanf's underscored convention.
func flagKeyToSnake(name string) string {
	out := make([]byte, len(name))
	for i := 0; i < len(name); i++ {
		if name[i] == '-' {
			out[i] = '_'
		} else {
			out[i] = name[i]
		}
	}
	return string(out)
}
