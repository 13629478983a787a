// Package config loads entityql settings from defaults, an optional YAML
// file, ENTITYQL_ environment variables and explicitly set command flags, in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

const (
	EnvPrefix   = "ENTITYQL_"
	DefaultFile = "entityql.yaml"
)

type Config struct {
	Addr     string   `koanf:"addr"`
	Dialect  string   `koanf:"dialect"`
	Database Database `koanf:"database"`
	Log      Log      `koanf:"log"`
	Schemas  Schemas  `koanf:"schemas"`
	Probe    Probe    `koanf:"probe"`
}

type Database struct {
	URL string `koanf:"url"`
	// Schema scopes catalog lookups; empty means the connection default.
	Schema string `koanf:"schema"`
}

type Log struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	// SQL enables pgx query tracing at the given level.
	SQL string `koanf:"sql"`
}

// Schemas selects where deployed schemas come from. Files win over the
// catalog table when both are set.
type Schemas struct {
	Files   []string `koanf:"files"`
	Catalog bool     `koanf:"catalog"`
}

type Probe struct {
	Parallel int `koanf:"parallel"`
}

func (c *Config) Validate() error {
	var errs []error
	if c.Dialect == "" {
		errs = append(errs, errors.New("dialect is required"))
	}
	if c.Probe.Parallel < 0 {
		errs = append(errs, fmt.Errorf("probe.parallel must not be negative, got %d", c.Probe.Parallel))
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("log.format must be json or console, got %q", c.Log.Format))
	}
	return errors.Join(errs...)
}

// ListenAddr returns the listen address, accepting a bare port.
func (c *Config) ListenAddr() string {
	if c.Addr != "" && !strings.Contains(c.Addr, ":") {
		return ":" + c.Addr
	}
	return c.Addr
}

func defaults() map[string]any {
	return map[string]any{
		"addr":            ":8080",
		"dialect":         "postgres",
		"database.url":    "",
		"database.schema": "",
		"log.level":       "info",
		"log.format":      "json",
		"log.sql":         "",
		"schemas.files":   []string{},
		"schemas.catalog": false,
		"probe.parallel":  4,
	}
}

// flagKeys maps command flag names onto configuration keys.
var flagKeys = map[string]string{
	"addr":         "addr",
	"dialect":      "dialect",
	"database-url": "database.url",
	"db-schema":    "database.schema",
	"log-level":    "log.level",
	"log-format":   "log.format",
	"log-sql":      "log.sql",
	"schema":       "schemas.files",
	"catalog":      "schemas.catalog",
	"parallel":     "probe.parallel",
}

// Load reads the configuration. cfgFile may be empty, in which case
// entityql.yaml in the working directory is used when present. flags may be
// nil.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	path := cfgFile
	if path == "" {
		if _, err := os.Stat(DefaultFile); err == nil {
			path = DefaultFile
		}
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	// ENTITYQL_LOG__LEVEL -> log.level
	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", func(key, value string) (string, any) {
		key = strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(key, EnvPrefix)), "__", ".")
		if key == "schemas.files" {
			return key, splitList(value)
		}
		return key, value
	}), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
