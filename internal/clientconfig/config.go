// Package clientconfig defines the top-level configuration for the RTM
// client and provides validation helpers.
package clientconfig

import (
	"fmt"
	"strings"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by RTMCLIENT_* environment
// variables.
type Config struct {
	Endpoint string `toml:"endpoint"`
	AppKey   string `toml:"appkey"`
	Codec    string `toml:"codec"`

	Proxy ProxyConfig `toml:"proxy"`

	ReconnectIntervalSeconds    int  `toml:"reconnect_interval_seconds"`
	MaxReconnectIntervalSeconds int  `toml:"max_reconnect_interval_seconds"`
	FailCountThreshold          int  `toml:"fail_count_threshold"`
	MaxQueueSize                int  `toml:"max_queue_size"`
	RestoreAuthOnReconnect      bool `toml:"restore_auth_on_reconnect"`

	Role           string `toml:"role"`
	RoleSecretPath string `toml:"role_secret_path"`

	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Postgres PostgresConfig `toml:"postgres"`
	Notify   NotifyConfig   `toml:"notify"`

	LogLevel string `toml:"log_level"`
}

// ProxyConfig holds the optional HTTPS CONNECT proxy (spec.md section 6).
type ProxyConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// Enabled reports whether a proxy was configured.
func (p ProxyConfig) Enabled() bool { return p.Host != "" }

// RedisConfig holds connection parameters for the optional position cache
// (SPEC_FULL.md domain stack).
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds parameters for the optional raw-frame archive sink.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// PostgresConfig holds parameters for the optional state-transition audit
// log.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// NotifyConfig holds notification channel credentials used to surface
// on_internal_error / on_enter_disposed to an operator.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// Defaults returns a Config populated with reasonable default values,
// matching spec.md's stated defaults (base/max reconnect interval, queue
// bound, unbounded fail_count_threshold).
func Defaults() Config {
	return Config{
		Codec:                       "json",
		ReconnectIntervalSeconds:    1,
		MaxReconnectIntervalSeconds: 120,
		FailCountThreshold:          0,
		MaxQueueSize:                20000,
		RestoreAuthOnReconnect:      true,
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   10,
			MaxRetries: 3,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "rtmclient",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		LogLevel: "info",
	}
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and
// returns a combined error describing every problem found. It mirrors
// spec.md section 7's "malformed credentials" error class: raised
// synchronously at construction, before any network I/O.
func (c *Config) Validate() error {
	var errs []string

	if c.Endpoint == "" {
		errs = append(errs, "endpoint must not be empty")
	} else if !strings.HasPrefix(c.Endpoint, "ws://") && !strings.HasPrefix(c.Endpoint, "wss://") {
		errs = append(errs, fmt.Sprintf("endpoint %q must use the ws:// or wss:// scheme", c.Endpoint))
	} else if strings.Contains(c.Endpoint, "/v2") {
		errs = append(errs, "endpoint must not pre-specify the /v2 path component")
	}

	if c.AppKey == "" {
		errs = append(errs, "appkey must not be empty")
	}

	switch c.Codec {
	case "", "json", "cbor":
	default:
		errs = append(errs, fmt.Sprintf("unknown codec %q (valid: json, cbor)", c.Codec))
	}

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	if c.MaxQueueSize < 1 {
		errs = append(errs, "max_queue_size must be >= 1")
	}
	if c.ReconnectIntervalSeconds < 1 {
		errs = append(errs, "reconnect_interval_seconds must be >= 1")
	}
	if c.MaxReconnectIntervalSeconds < c.ReconnectIntervalSeconds {
		errs = append(errs, "max_reconnect_interval_seconds must be >= reconnect_interval_seconds")
	}

	if c.Redis.Enabled && c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty when enabled")
	}
	if c.S3.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty when enabled")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when enabled")
		}
	}
	if c.Postgres.Enabled && strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty when enabled (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("clientconfig: validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
