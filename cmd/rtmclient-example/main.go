// Command rtmclient-example is a thin wiring example, not a core
// deliverable (spec.md section 1 places example programs out of scope): it
// loads a clientconfig.Config, constructs a rtmclient.Client, subscribes to
// one channel, and logs whatever arrives until interrupted.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/satori-rtm/rtmclient"
	"github.com/satori-rtm/rtmclient/internal/clientconfig"
)

func main() {
	configPath := flag.String("config", "config.toml", "path to configuration file")
	channel := flag.String("channel", "example-channel", "channel to subscribe to")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := clientconfig.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", slog.String("path", *configPath), slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("rtmclient-example starting",
		slog.String("endpoint", cfg.Endpoint),
		slog.String("channel", *channel),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := rtmclient.Open(ctx, *cfg,
		rtmclient.WithLogger(logger),
		rtmclient.WithObserver(&lifecycleObserver{logger: logger}),
	)
	if err != nil {
		logger.Error("failed to open client", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer client.Dispose()

	if err := client.Subscribe(*channel, rtmclient.Reliable, nil, &channelObserver{channel: *channel, logger: logger}); err != nil {
		logger.Error("subscribe failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("rtmclient-example stopping")
}

// lifecycleObserver logs supervisor state transitions and the two
// connection-scoped events every application embedding this client cares
// about (spec.md section 6, "Client observer").
type lifecycleObserver struct {
	rtmclient.NoopClientObserver
	logger *slog.Logger
}

func (o *lifecycleObserver) OnEnterConnected() { o.logger.Info("connected") }
func (o *lifecycleObserver) OnEnterAwaiting()  { o.logger.Warn("awaiting reconnect") }
func (o *lifecycleObserver) OnEnterStopped()   { o.logger.Info("stopped") }
func (o *lifecycleObserver) OnEnterDisposed()  { o.logger.Info("disposed") }
func (o *lifecycleObserver) OnFastForward(channel string) {
	o.logger.Warn("fast forward", slog.String("channel", channel))
}
func (o *lifecycleObserver) OnInternalError(err error) {
	o.logger.Error("internal error", slog.String("error", err.Error()))
}

// channelObserver logs subscription data and errors for one channel.
type channelObserver struct {
	rtmclient.NoopSubscriptionObserver
	channel string
	logger  *slog.Logger
}

func (o *channelObserver) OnEnterFailed(reason string) {
	o.logger.Error("subscription failed", slog.String("channel", o.channel), slog.String("reason", reason))
}

func (o *channelObserver) OnSubscriptionData(messages []interface{}, position string) {
	o.logger.Info("subscription data",
		slog.String("channel", o.channel),
		slog.Int("count", len(messages)),
		slog.String("position", position),
	)
	for _, m := range messages {
		fmt.Printf("%s: %v\n", o.channel, m)
	}
}

func (o *channelObserver) OnSubscriptionError(code, reason string) {
	o.logger.Error("subscription error", slog.String("channel", o.channel), slog.String("code", code), slog.String("reason", reason))
}
