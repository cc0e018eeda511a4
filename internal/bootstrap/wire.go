// Package bootstrap constructs the optional domain-stack components
// (position cache, archive sink, audit log, notifier) from a
// clientconfig.Config, mirroring the teacher's internal/app/wire.go
// Dependencies-bundling pattern: one Wire call returns a populated struct
// plus a cleanup function. The position cache, archive sink and audit log
// are built only when their config section is enabled; the notifier is
// always built, with no senders when none are configured.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/satori-rtm/rtmclient/internal/archive"
	"github.com/satori-rtm/rtmclient/internal/audit"
	"github.com/satori-rtm/rtmclient/internal/clientconfig"
	"github.com/satori-rtm/rtmclient/internal/notify"
	"github.com/satori-rtm/rtmclient/internal/position"
)

// Dependencies bundles every optional domain-stack dependency a Client may
// use. Position, Archive and Audit are nil when their config section is
// disabled; Notifier is never nil.
type Dependencies struct {
	Position *position.Client
	Archive  *archive.Client
	Audit    *audit.Store
	Notifier *notify.Notifier
}

// Wire constructs the enabled optional components and returns them together
// with a cleanup function that releases every resource it opened, in
// reverse order, regardless of which step failed.
func Wire(ctx context.Context, cfg *clientconfig.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	if cfg.Redis.Enabled {
		posClient, err := position.New(ctx, position.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("bootstrap: position cache: %w", err)
		}
		closers = append(closers, func() { _ = posClient.Close() })
		deps.Position = posClient
	}

	if cfg.S3.Enabled {
		archClient, err := archive.New(ctx, archive.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("bootstrap: archive: %w", err)
		}
		closers = append(closers, func() { _ = archClient.Close() })
		deps.Archive = archClient
	}

	if cfg.Postgres.Enabled {
		pgClient, err := audit.New(ctx, audit.ClientConfig{
			DSN:          cfg.Postgres.DSN,
			Host:         cfg.Postgres.Host,
			Port:         cfg.Postgres.Port,
			Database:     cfg.Postgres.Database,
			User:         cfg.Postgres.User,
			Password:     cfg.Postgres.Password,
			SSLMode:      cfg.Postgres.SSLMode,
			PoolMaxConns: cfg.Postgres.PoolMaxConns,
			PoolMinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("bootstrap: audit: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("bootstrap: audit migrations: %w", err)
			}
		}

		deps.Audit = audit.NewStore(pgClient.Pool())
	}

	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}
