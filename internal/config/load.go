// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MDIP Contributors

package config

import (
	"errors"
	"io/fs"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/mdip/authd/internal/xdg"
)

// flagKeys maps command-line flags to configuration keys.
var flagKeys = map[string]string{
	"log-format":      "log.format",
	"log-level":       "log.level",
	"grpc-addr":       "grpc.addr",
	"metrics-addr":    "metrics.addr",
	"storage-backend": "storage.backend",
	"sqlite-path":     "storage.sqlite.path",
	"database-url":    "storage.postgres.url",
	"redis-url":       "storage.redis.url",
}

// RegisterFlags adds the configuration override flags to fs. Only flags the
// user sets take effect; their defaults never override other sources.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("log-format", "", "log format (json, text)")
	fs.String("log-level", "", "log level (debug, info, warn, error)")
	fs.String("grpc-addr", "", "gRPC listen address")
	fs.String("metrics-addr", "", "metrics and health listen address")
	fs.String("storage-backend", "", "storage backend (sqlite, postgres, memory)")
	fs.String("sqlite-path", "", "SQLite database file")
	fs.String("database-url", "", "PostgreSQL connection URL")
	fs.String("redis-url", "", "Redis URL for lockout and session state")
}

type fallbackEnv struct {
	DatabaseURL string `env:"DATABASE_URL"`
}

// Load builds the configuration from defaults, the YAML file at path, the
// environment and the changed flags in flags, then validates it. An empty
// path reads the XDG config file when one exists. flags may be nil.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	cfg := Default()

	path, err := resolvePath(path)
	if err != nil {
		return nil, err
	}
	if path != "" {
		if err := ValidateFile(path); err != nil {
			return nil, err
		}
		k := koanf.New(".")
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_READ_FAILED").With("path", path).Wrap(err)
		}
		if err := unmarshal(k, cfg); err != nil {
			return nil, oops.With("path", path).Wrap(err)
		}
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, oops.Code("CONFIG_ENV_INVALID").Wrap(err)
	}

	if flags != nil {
		k := koanf.New(".")
		provider := posflag.ProviderWithFlag(flags, ".", nil, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_FLAGS_INVALID").Wrap(err)
		}
		if err := unmarshal(k, cfg); err != nil {
			return nil, err
		}
	}

	if cfg.Storage.Postgres.URL == "" {
		var fallback fallbackEnv
		if err := env.Parse(&fallback); err != nil {
			return nil, oops.Code("CONFIG_ENV_INVALID").Wrap(err)
		}
		cfg.Storage.Postgres.URL = fallback.DatabaseURL
	}
	if cfg.Storage.SQLite.Path == "" {
		dbFile, err := xdg.DatabaseFile()
		if err != nil {
			return nil, err
		}
		cfg.Storage.SQLite.Path = dbFile
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func unmarshal(k *koanf.Koanf, cfg *Config) error {
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return oops.Code("CONFIG_DECODE_FAILED").Wrap(err)
	}
	return nil
}

// resolvePath returns the file to load, or "" when no file applies.
func resolvePath(path string) (string, error) {
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return "", oops.Code("CONFIG_NOT_FOUND").With("path", path).Wrap(err)
		}
		return path, nil
	}

	def, err := xdg.ConfigFile()
	if err != nil {
		return "", nil //nolint:nilerr // no home directory means no default file
	}
	if _, err := os.Stat(def); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", oops.Code("CONFIG_NOT_FOUND").With("path", def).Wrap(err)
	}
	return def, nil
}
