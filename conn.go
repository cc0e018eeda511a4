package rtmclient

import (
	"context"
	"log/slog"

	"github.com/satori-rtm/rtmclient/internal/codec"
	"github.com/satori-rtm/rtmclient/internal/connection"
	"github.com/satori-rtm/rtmclient/internal/transport"
)

// connWrapper pairs a live Connection with the cancel function for the
// context its Run loop was started with, so Stop/reconnect can tear it down
// deliberately rather than relying only on transport-detected failure.
type connWrapper struct {
	conn   *connection.Connection
	cancel context.CancelFunc
}

func (w *connWrapper) close() {
	w.cancel()
	w.conn.Close()
}

// connDelegate adapts connection.Delegate callbacks onto the Client's action
// queue so that every effect of inbound traffic is handled on the single
// event-loop thread (spec.md section 5), never on the transport-reader
// goroutine that invokes these methods.
type connDelegate struct {
	queueInternal func(a interface{})
	wrapper       *connWrapper
}

func (d *connDelegate) OnSubscriptionData(subscriptionID string, body map[string]interface{}) {
	d.queueInternal(actionSubscriptionEvent{subscriptionID: subscriptionID, kind: subEventData, body: body})
}

func (d *connDelegate) OnSubscriptionError(subscriptionID string, body map[string]interface{}) {
	d.queueInternal(actionSubscriptionEvent{subscriptionID: subscriptionID, kind: subEventError, body: body})
}

func (d *connDelegate) OnFastForward(subscriptionID string) {
	d.queueInternal(actionSubscriptionEvent{subscriptionID: subscriptionID, kind: subEventFastForward})
}

func (d *connDelegate) OnClosed(err error) {
	d.queueInternal(actionConnectionLost{conn: d.wrapper, err: err})
}

func (d *connDelegate) OnInternalError(err error) {
	d.queueInternal(actionConnectionLost{conn: d.wrapper, err: err})
}

var _ connection.Delegate = (*connDelegate)(nil)

// dial opens one new WebSocket and Connection, blocking until the transport
// handshake completes or fails, then starts the connection's event pump in
// its own goroutine. It never touches Client fields directly; the result is
// reported back through an internal action so only the event-loop goroutine
// mutates c.conn.
func (c *Client) dial() {
	wsURL, err := buildEndpoint(c.cfg.Endpoint, c.cfg.AppKey, c.logger)
	if err != nil {
		c.queue.PushInternal(actionDialResult{err: err})
		return
	}

	var proxy *transport.Proxy
	if c.cfg.Proxy.Enabled() {
		proxy = &transport.Proxy{Host: c.cfg.Proxy.Host, Port: c.cfg.Proxy.Port}
	}

	cd, err := codec.ByName(c.cfg.Codec)
	if err != nil {
		c.queue.PushInternal(actionDialResult{err: err})
		return
	}

	tr := transport.New(wsURL, proxy)

	ctx, cancel := context.WithCancel(c.ctx)
	wrapper := &connWrapper{cancel: cancel}
	delegate := &connDelegate{queueInternal: c.queue.PushInternal, wrapper: wrapper}

	conn := connection.New(tr, cd, delegate, c.logger)
	wrapper.conn = conn

	if err := conn.Connect(ctx); err != nil {
		cancel()
		c.queue.PushInternal(actionDialResult{err: err})
		return
	}

	go conn.Run(ctx)

	c.logger.Debug("dial succeeded", slog.String("endpoint", wsURL))
	c.queue.PushInternal(actionDialResult{conn: wrapper})
}
