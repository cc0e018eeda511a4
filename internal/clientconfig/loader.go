package clientconfig

import (
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies RTMCLIENT_* environment variable overrides,
// and returns the final Config. The returned Config has NOT been
// validated; the caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known RTMCLIENT_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e.
// not empty). This lets operators inject secrets at deploy time without
// touching the TOML file.
func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.Endpoint, "RTMCLIENT_ENDPOINT")
	setStr(&cfg.AppKey, "RTMCLIENT_APPKEY")
	setStr(&cfg.Codec, "RTMCLIENT_CODEC")

	setStr(&cfg.Proxy.Host, "RTMCLIENT_PROXY_HOST")
	setInt(&cfg.Proxy.Port, "RTMCLIENT_PROXY_PORT")

	setInt(&cfg.ReconnectIntervalSeconds, "RTMCLIENT_RECONNECT_INTERVAL_SECONDS")
	setInt(&cfg.MaxReconnectIntervalSeconds, "RTMCLIENT_MAX_RECONNECT_INTERVAL_SECONDS")
	setInt(&cfg.FailCountThreshold, "RTMCLIENT_FAIL_COUNT_THRESHOLD")
	setInt(&cfg.MaxQueueSize, "RTMCLIENT_MAX_QUEUE_SIZE")
	setBool(&cfg.RestoreAuthOnReconnect, "RTMCLIENT_RESTORE_AUTH_ON_RECONNECT")

	setStr(&cfg.Role, "RTMCLIENT_ROLE")
	setStr(&cfg.RoleSecretPath, "RTMCLIENT_ROLE_SECRET_PATH")

	setBool(&cfg.Redis.Enabled, "RTMCLIENT_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "RTMCLIENT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "RTMCLIENT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "RTMCLIENT_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "RTMCLIENT_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "RTMCLIENT_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "RTMCLIENT_REDIS_TLS_ENABLED")

	setBool(&cfg.S3.Enabled, "RTMCLIENT_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "RTMCLIENT_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "RTMCLIENT_S3_REGION")
	setStr(&cfg.S3.Bucket, "RTMCLIENT_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "RTMCLIENT_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "RTMCLIENT_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "RTMCLIENT_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "RTMCLIENT_S3_FORCE_PATH_STYLE")

	setBool(&cfg.Postgres.Enabled, "RTMCLIENT_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "RTMCLIENT_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "RTMCLIENT_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "RTMCLIENT_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "RTMCLIENT_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "RTMCLIENT_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "RTMCLIENT_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "RTMCLIENT_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "RTMCLIENT_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "RTMCLIENT_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "RTMCLIENT_POSTGRES_RUN_MIGRATIONS")

	setStr(&cfg.Notify.TelegramToken, "RTMCLIENT_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "RTMCLIENT_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "RTMCLIENT_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "RTMCLIENT_NOTIFY_EVENTS")

	setStr(&cfg.LogLevel, "RTMCLIENT_LOG_LEVEL")
}

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
