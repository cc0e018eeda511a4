// Package rtmclient is a client library for a hosted publish/subscribe and
// key/value service exchanging framed PDUs over one persistent WebSocket. A
// Client drives two coupled state machines -- a connection/reconnect
// supervisor (internal/supervisor) and a per-channel subscription machine
// (internal/subscription) -- from a single event-loop goroutine fed by a
// bounded action queue (internal/actionqueue), the same way the teacher's
// internal/app.App drives its dependency-wired modes from one Run call.
package rtmclient

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/satori-rtm/rtmclient/internal/actionqueue"
	"github.com/satori-rtm/rtmclient/internal/auth"
	"github.com/satori-rtm/rtmclient/internal/bootstrap"
	"github.com/satori-rtm/rtmclient/internal/clientconfig"
	"github.com/satori-rtm/rtmclient/internal/rtmerr"
	"github.com/satori-rtm/rtmclient/internal/subscription"
	"github.com/satori-rtm/rtmclient/internal/supervisor"
)

// Client is the root handle applications hold: one per logical RTM
// connection. It is safe for concurrent use; every public method enqueues
// work for the single event-loop goroutine rather than mutating state
// directly (spec.md section 5).
type Client struct {
	cfg      clientconfig.Config
	logger   *slog.Logger
	observer ClientObserver
	deps     *bootstrap.Dependencies
	cleanup  func()

	transientMu sync.Mutex
	transient   ClientObserver

	ctx    context.Context
	cancel context.CancelFunc

	sup   *supervisor.Machine
	queue *actionqueue.Queue

	conn *connWrapper
	subs map[string]*subscriptionHandle

	// offlineQueue holds publish/authenticate actions issued while
	// disconnected (spec.md section 4.3, "Drain the offline-queue"), in
	// FIFO order, bounded at maxOfflineQueueLength. Written and drained
	// only by the event-loop thread (spec.md section 5, "Shared
	// resources").
	offlineQueue []offlineAction

	authDelegate  auth.Delegate // retained for reconnect replay, nil if unset
	authenticated bool          // true once an explicit Authenticate has succeeded

	unsubCallbacks map[string]func(error)

	reconnectTimer *time.Timer

	closed   atomic.Bool
	loopDone chan struct{}
}

// New constructs a Client from cfg without starting it. Construction fails
// synchronously for malformed credentials (spec.md section 7, class 1):
// bad endpoint, missing appkey, or an unknown codec.
func New(cfg clientconfig.Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("rtmclient: %w", err)
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	ctx, cancel := context.WithCancel(context.Background())

	policy := supervisor.Policy{
		BaseInterval:       time.Duration(cfg.ReconnectIntervalSeconds) * time.Second,
		MaxInterval:        time.Duration(cfg.MaxReconnectIntervalSeconds) * time.Second,
		FailCountThreshold: cfg.FailCountThreshold,
	}

	c := &Client{
		cfg:            cfg,
		logger:         o.logger.With(slog.String("component", "rtmclient")),
		observer:       o.observer,
		ctx:            ctx,
		cancel:         cancel,
		sup:            supervisor.New(policy),
		queue:          actionqueue.New(cfg.MaxQueueSize),
		subs:           make(map[string]*subscriptionHandle),
		unsubCallbacks: make(map[string]func(error)),
		loopDone:       make(chan struct{}),
	}

	if cfg.Role != "" {
		secret, err := auth.LoadRoleSecret(auth.SecretConfig{
			RawSecret:           o.rawRoleSecret,
			EncryptedSecretPath: cfg.RoleSecretPath,
			Password:            o.roleSecretPassword,
		})
		if err != nil {
			cancel()
			return nil, fmt.Errorf("rtmclient: %w", err)
		}
		c.authDelegate = auth.RoleSecretDelegate{Role: cfg.Role, Secret: secret}
	}

	deps, cleanup, err := bootstrap.Wire(ctx, &cfg, c.logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("rtmclient: %w", err)
	}
	c.deps = deps
	c.cleanup = cleanup

	go c.run()

	return c, nil
}

// Open is the make_client-equivalent convenience constructor: it builds a
// Client, starts it, blocks until the supervisor reaches Connected or gives
// up and returns to Stopped (mirroring original_source's make_client
// ready_event wait), and authenticates first if a role was configured.
func Open(ctx context.Context, cfg clientconfig.Config, opts ...Option) (*Client, error) {
	c, err := New(cfg, opts...)
	if err != nil {
		return nil, err
	}

	readyCtx, cancel := context.WithTimeout(ctx, 70*time.Second)
	defer cancel()

	if err := c.Start(); err != nil {
		c.Dispose()
		return nil, err
	}

	if err := c.waitReady(readyCtx); err != nil {
		c.Dispose()
		return nil, err
	}

	if c.authDelegate != nil {
		if err := c.AuthenticateSync(readyCtx); err != nil {
			c.Dispose()
			return nil, err
		}
	}

	return c, nil
}

// waitReady blocks until the supervisor enters Connected or Stopped.
func (c *Client) waitReady(ctx context.Context) error {
	obs := &readyWaiter{done: make(chan struct{})}
	c.attachTransientObserver(obs)
	defer c.detachTransientObserver()

	select {
	case <-obs.done:
		if !obs.connected {
			return fmt.Errorf("rtmclient: gave up connecting before reaching Connected")
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Start transitions the supervisor from Stopped to Connecting and begins
// dialing (spec.md section 4.3). It is an error to call Start more than
// once without an intervening Stop.
func (c *Client) Start() error {
	if c.closed.Load() {
		return rtmerr.ErrAlreadyDisposed
	}
	result := make(chan error, 1)
	c.queue.PushInternal(actionStart{result: result})
	return <-result
}

// Stop transitions the supervisor back to Stopped, closing the current
// connection and cancelling any pending reconnect timer, but keeps the
// Client usable for a subsequent Start.
func (c *Client) Stop() {
	if c.closed.Load() {
		return
	}
	done := make(chan struct{})
	c.queue.PushInternal(actionStop{done: done})
	<-done
}

// Dispose is the idempotent terminal transition (spec.md section 4.3,
// "Dispose"): it stops the supervisor, releases every optional domain-stack
// resource, and joins the event-loop goroutine. Safe to call more than
// once; subsequent calls return immediately.
func (c *Client) Dispose() {
	if !c.closed.CompareAndSwap(false, true) {
		return
	}
	done := make(chan struct{})
	c.queue.PushInternal(actionDispose{done: done})
	<-done
	<-c.loopDone
	if c.cleanup != nil {
		c.cleanup()
	}
	c.cancel()
}
