// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MDIP Contributors

// Package config loads authd configuration. Sources are layered in order:
// built-in defaults, a YAML file, AUTHD_* environment variables, then
// command-line flags that were explicitly set.
package config

import (
	"net"
	"slices"
	"time"

	"github.com/gobwas/glob"
	"github.com/samber/oops"

	"github.com/mdip/authd/internal/auth"
)

// Storage backends.
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "AUTHD_"

// Config is the complete authd configuration.
type Config struct {
	Log     LogConfig     `koanf:"log" json:"log,omitempty" yaml:"log" envPrefix:"LOG_"`
	GRPC    GRPCConfig    `koanf:"grpc" json:"grpc,omitempty" yaml:"grpc" envPrefix:"GRPC_"`
	Metrics MetricsConfig `koanf:"metrics" json:"metrics,omitempty" yaml:"metrics" envPrefix:"METRICS_"`
	Storage StorageConfig `koanf:"storage" json:"storage,omitempty" yaml:"storage" envPrefix:"STORAGE_"`
	Auth    AuthConfig    `koanf:"auth" json:"auth,omitempty" yaml:"auth" envPrefix:"AUTH_"`
	Hasher  HasherConfig  `koanf:"hasher" json:"hasher,omitempty" yaml:"hasher" envPrefix:"HASHER_"`
}

// LogConfig controls log output.
type LogConfig struct {
	Format string `koanf:"format" json:"format,omitempty" yaml:"format" env:"FORMAT" jsonschema:"enum=json,enum=text"`
	Level  string `koanf:"level" json:"level,omitempty" yaml:"level" env:"LEVEL" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
}

// GRPCConfig controls the gRPC listener.
type GRPCConfig struct {
	Addr    string `koanf:"addr" json:"addr,omitempty" yaml:"addr" env:"ADDR"`
	TLSCert string `koanf:"tls_cert" json:"tls_cert,omitempty" yaml:"tls_cert,omitempty" env:"TLS_CERT"`
	TLSKey  string `koanf:"tls_key" json:"tls_key,omitempty" yaml:"tls_key,omitempty" env:"TLS_KEY"`
}

// MetricsConfig controls the metrics and health HTTP listener.
type MetricsConfig struct {
	// Addr is empty to disable the listener.
	Addr string `koanf:"addr" json:"addr,omitempty" yaml:"addr" env:"ADDR"`
}

// StorageConfig selects and configures the storage backend.
type StorageConfig struct {
	Backend  string         `koanf:"backend" json:"backend,omitempty" yaml:"backend" env:"BACKEND" jsonschema:"enum=sqlite,enum=postgres,enum=memory"`
	Timeout  Duration       `koanf:"timeout" json:"timeout,omitempty" yaml:"timeout" env:"TIMEOUT"`
	SQLite   SQLiteConfig   `koanf:"sqlite" json:"sqlite,omitempty" yaml:"sqlite" envPrefix:"SQLITE_"`
	Postgres PostgresConfig `koanf:"postgres" json:"postgres,omitempty" yaml:"postgres" envPrefix:"POSTGRES_"`
	Redis    RedisConfig    `koanf:"redis" json:"redis,omitempty" yaml:"redis" envPrefix:"REDIS_"`
}

// SQLiteConfig configures the embedded backend.
type SQLiteConfig struct {
	Path string `koanf:"path" json:"path,omitempty" yaml:"path" env:"PATH"`
}

// PostgresConfig configures the PostgreSQL backend.
type PostgresConfig struct {
	URL             string `koanf:"url" json:"url,omitempty" yaml:"url,omitempty" env:"URL"`
	ConnectAttempts int    `koanf:"connect_attempts" json:"connect_attempts,omitempty" yaml:"connect_attempts" env:"CONNECT_ATTEMPTS" jsonschema:"minimum=1"`
}

// RedisConfig moves lockout and session state to Redis when URL is set.
type RedisConfig struct {
	URL string `koanf:"url" json:"url,omitempty" yaml:"url,omitempty" env:"URL"`
}

// AuthConfig holds role and lockout policy.
type AuthConfig struct {
	DefaultRole string        `koanf:"default_role" json:"default_role,omitempty" yaml:"default_role" env:"DEFAULT_ROLE"`
	Roles       []string      `koanf:"roles" json:"roles,omitempty" yaml:"roles" env:"ROLES" envSeparator:","`
	Lockout     LockoutConfig `koanf:"lockout" json:"lockout,omitempty" yaml:"lockout" envPrefix:"LOCKOUT_"`
}

// LockoutConfig sets the failure threshold and window.
type LockoutConfig struct {
	Threshold int      `koanf:"threshold" json:"threshold,omitempty" yaml:"threshold" env:"THRESHOLD" jsonschema:"minimum=1"`
	Window    Duration `koanf:"window" json:"window,omitempty" yaml:"window" env:"WINDOW"`
}

// HasherConfig selects the password hashing algorithm and cost.
type HasherConfig struct {
	Algorithm  string       `koanf:"algorithm" json:"algorithm,omitempty" yaml:"algorithm" env:"ALGORITHM" jsonschema:"enum=argon2id,enum=bcrypt"`
	Argon2     Argon2Config `koanf:"argon2" json:"argon2,omitempty" yaml:"argon2" envPrefix:"ARGON2_"`
	BcryptCost int          `koanf:"bcrypt_cost" json:"bcrypt_cost,omitempty" yaml:"bcrypt_cost" env:"BCRYPT_COST" jsonschema:"minimum=4,maximum=31"`
}

// Argon2Config holds argon2id work factors.
type Argon2Config struct {
	Time      uint32 `koanf:"time" json:"time,omitempty" yaml:"time" env:"TIME" jsonschema:"minimum=1"`
	MemoryKiB uint32 `koanf:"memory_kib" json:"memory_kib,omitempty" yaml:"memory_kib" env:"MEMORY_KIB" jsonschema:"minimum=8"`
	Threads   uint8  `koanf:"threads" json:"threads,omitempty" yaml:"threads" env:"THREADS" jsonschema:"minimum=1"`
}

// Default returns the built-in configuration. The SQLite path is left empty
// and resolved to the XDG data directory by Load.
func Default() *Config {
	hp := auth.DefaultHasherParams()
	return &Config{
		Log:     LogConfig{Format: "json", Level: "info"},
		GRPC:    GRPCConfig{Addr: "127.0.0.1:9400"},
		Metrics: MetricsConfig{Addr: "127.0.0.1:9401"},
		Storage: StorageConfig{
			Backend:  BackendSQLite,
			Timeout:  Duration(5 * time.Second),
			Postgres: PostgresConfig{ConnectAttempts: 5},
		},
		Auth: AuthConfig{
			DefaultRole: "user",
			Roles:       []string{"user", "admin", "analyst", "it_support"},
			Lockout: LockoutConfig{
				Threshold: auth.DefaultLockoutThreshold,
				Window:    Duration(auth.DefaultLockoutWindow),
			},
		},
		Hasher: HasherConfig{
			Algorithm:  hp.Algorithm,
			Argon2:     Argon2Config{Time: hp.Time, MemoryKiB: hp.MemoryKiB, Threads: hp.Threads},
			BcryptCost: hp.BcryptCost,
		},
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	invalid := func(key string, value any, msg string) error {
		return oops.Code("CONFIG_INVALID").With("key", key).With("value", value).Errorf("%s: %s", key, msg)
	}

	if !slices.Contains([]string{"json", "text"}, c.Log.Format) {
		return invalid("log.format", c.Log.Format, "must be json or text")
	}
	if !slices.Contains([]string{"debug", "info", "warn", "error"}, c.Log.Level) {
		return invalid("log.level", c.Log.Level, "must be debug, info, warn or error")
	}
	if _, _, err := net.SplitHostPort(c.GRPC.Addr); err != nil {
		return invalid("grpc.addr", c.GRPC.Addr, "must be host:port")
	}
	if (c.GRPC.TLSCert == "") != (c.GRPC.TLSKey == "") {
		return invalid("grpc.tls_cert", c.GRPC.TLSCert, "tls_cert and tls_key must be set together")
	}
	if c.Metrics.Addr != "" {
		if _, _, err := net.SplitHostPort(c.Metrics.Addr); err != nil {
			return invalid("metrics.addr", c.Metrics.Addr, "must be host:port or empty")
		}
	}

	switch c.Storage.Backend {
	case BackendSQLite, BackendMemory:
	case BackendPostgres:
		if c.Storage.Postgres.URL == "" {
			return invalid("storage.postgres.url", "", "required for the postgres backend (or set DATABASE_URL)")
		}
	default:
		return invalid("storage.backend", c.Storage.Backend, "must be sqlite, postgres or memory")
	}
	if c.Storage.Timeout < 0 {
		return invalid("storage.timeout", c.Storage.Timeout.String(), "must not be negative")
	}
	if c.Storage.Postgres.ConnectAttempts < 1 {
		return invalid("storage.postgres.connect_attempts", c.Storage.Postgres.ConnectAttempts, "must be at least 1")
	}

	if c.Auth.DefaultRole == "" {
		return invalid("auth.default_role", "", "must not be empty")
	}
	for _, pattern := range c.Auth.Roles {
		if _, err := glob.Compile(pattern); err != nil {
			return invalid("auth.roles", pattern, "invalid glob pattern")
		}
	}
	if c.Auth.Lockout.Threshold < 1 {
		return invalid("auth.lockout.threshold", c.Auth.Lockout.Threshold, "must be at least 1")
	}
	if c.Auth.Lockout.Window <= 0 {
		return invalid("auth.lockout.window", c.Auth.Lockout.Window.String(), "must be positive")
	}

	if _, err := auth.NewHasher(c.HasherParams()); err != nil {
		return invalid("hasher", c.Hasher.Algorithm, err.Error())
	}
	return nil
}

// HasherParams converts the hasher section to auth.HasherParams.
func (c *Config) HasherParams() auth.HasherParams {
	return auth.HasherParams{
		Algorithm:  c.Hasher.Algorithm,
		Time:       c.Hasher.Argon2.Time,
		MemoryKiB:  c.Hasher.Argon2.MemoryKiB,
		Threads:    c.Hasher.Argon2.Threads,
		BcryptCost: c.Hasher.BcryptCost,
	}
}

// LockoutPolicy converts the lockout section to auth.LockoutPolicy.
func (c *Config) LockoutPolicy() auth.LockoutPolicy {
	return auth.LockoutPolicy{Threshold: c.Auth.Lockout.Threshold, Window: c.Auth.Lockout.Window.Std()}
}

// RolePolicy builds the role allow-list.
func (c *Config) RolePolicy() (*auth.RolePolicy, error) {
	return auth.NewRolePolicy(c.Auth.DefaultRole, c.Auth.Roles)
}
