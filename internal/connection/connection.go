// Package connection implements one authenticated request/reply channel
// plus one unsolicited event stream over a single WebSocket (spec.md
// section 4.1). It owns the Transport, the Codec, the request-id counter,
// the pending-continuation map, the authentication sub-state-machine, and
// the liveness pinger.
//
// Every exported method that touches c.pending, c.authState, or c.nextID
// must be called from the single event-loop thread; Connection performs no
// internal locking over that state (spec.md section 5: "the pending-
// continuation map is mutated only by the event-loop thread").
package connection

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/satori-rtm/rtmclient/internal/auth"
	"github.com/satori-rtm/rtmclient/internal/codec"
	"github.com/satori-rtm/rtmclient/internal/pdu"
	"github.com/satori-rtm/rtmclient/internal/rtmerr"
	"github.com/satori-rtm/rtmclient/internal/transport"
)

const (
	// pendingWatermark is the high-watermark on the pending-continuation
	// map beyond which new requests incur a short cooperative delay
	// (spec.md section 4.1, "Throttling").
	pendingWatermark = 20000
	// throttleDelay matches the reference implementation's
	// time.sleep(0.001) back-pressure delay.
	throttleDelay = time.Millisecond

	// pingInterval is the cadence of application-level liveness pings
	// while connected (spec.md section 4.1, "Liveness").
	pingInterval = 60 * time.Second
	// pongGrace is how long a ping may go unmatched before the
	// Connection considers itself broken.
	pongGrace = 90 * time.Second
)

// Continuation is the callback registered against a request id
// (spec.md section 3, "PendingContinuation"). ok is true for a "*/ok"
// reply and false otherwise.
type Continuation func(p pdu.PDU, ok bool)

type pendingEntry struct {
	cb Continuation
}

// Delegate receives everything a Connection cannot resolve against a
// continuation: subscription events, fast-forward notices, closure, and
// internal protocol errors (spec.md section 4.1).
type Delegate interface {
	OnSubscriptionData(subscriptionID string, body map[string]interface{})
	OnSubscriptionError(subscriptionID string, body map[string]interface{})
	OnFastForward(subscriptionID string)
	OnClosed(err error)
	OnInternalError(err error)
}

// Connection is one live request/reply channel over one Transport.
type Connection struct {
	transport transport.Transport
	codec     codec.Codec
	delegate  Delegate
	logger    *slog.Logger

	nextID  uint64
	pending map[uint64]pendingEntry

	authMu    sync.Mutex // reentrant-in-spirit guard (spec.md section 5)
	authState authPhase
	authNext  interface{} // func(auth.HandshakeOK) auth.Action or func(auth.AuthenticateOK) auth.Action
	authDone  func(error)

	lastPong time.Time
	pongMu   sync.Mutex

	closeOnce sync.Once
	closed    chan struct{}
}

type authPhase int

const (
	authIdle authPhase = iota
	authHandshakeSent
	authAuthenticateSent
)

// New wires a Connection over an already-constructed Transport and Codec.
// The caller (the Client Supervisor) owns calling Connect before issuing
// operations. Each Connection gets its own instance id, used only to
// correlate this connection's log lines across reconnects (grounded on the
// teacher's internal/cache/redis/lock.go use of uuid.New().String() for
// lock tokens).
func New(tr transport.Transport, c codec.Codec, delegate Delegate, logger *slog.Logger) *Connection {
	return &Connection{
		transport: tr,
		codec:     c,
		delegate:  delegate,
		logger:    logger.With(slog.String("component", "connection"), slog.String("conn_id", uuid.NewString())),
		pending:   make(map[uint64]pendingEntry),
		closed:    make(chan struct{}),
	}
}

// Connect opens the transport. It does not start the inbound-routing or
// liveness loops; call Run in a dedicated goroutine afterward.
func (c *Connection) Connect(ctx context.Context) error {
	return c.transport.Connect(ctx)
}

// Run supervises the frame-reader pump and the liveness pinger as a single
// errgroup-bound unit: whichever goroutine exits first cancels the group's
// derived context, which unwinds the other, the same
// errgroup.WithContext(ctx) / g.Go(...) shape the teacher's
// internal/app/modes.go uses to supervise a mode's concurrent feed
// consumers. It must run on its own goroutine; it posts no events back
// except through Delegate, so serialization onto the event-loop thread is
// the Delegate's job (the root package's connDelegate forwards every
// callback onto the action queue).
func (c *Connection) Run(ctx context.Context) {
	c.lastPong = time.Now()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return c.runLivenessPinger(gctx) })
	g.Go(func() error { return c.runFrameReader(gctx) })

	if err := g.Wait(); err != nil {
		c.fail(err)
		return
	}
	c.Close()
}

// runLivenessPinger sends periodic application-level pings and declares the
// connection dead if a pong has not landed within pongGrace (spec.md
// section 4.1, "Liveness").
func (c *Connection) runLivenessPinger(ctx context.Context) error {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-c.closed:
			return nil
		case <-ticker.C:
			c.pongMu.Lock()
			stale := time.Since(c.lastPong) > pongGrace
			c.pongMu.Unlock()
			if stale {
				return fmt.Errorf("connection: missed pong, closing")
			}
			if err := c.transport.Ping(); err != nil {
				return fmt.Errorf("connection: ping failed: %w", err)
			}
		}
	}
}

// runFrameReader pumps transport events into Connection's routing logic
// until the transport closes or ctx is cancelled.
func (c *Connection) runFrameReader(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-c.closed:
			return nil
		case ev, ok := <-c.transport.Events():
			if !ok {
				return nil
			}
			switch ev.Kind {
			case transport.EventFrame:
				c.pongMu.Lock()
				c.lastPong = time.Now()
				c.pongMu.Unlock()
				c.handleFrame(ev.Frame)
			case transport.EventClosed:
				return ev.Err
			}
		}
	}
}

// handleFrame implements the inbound routing rules of spec.md section 4.1.
func (c *Connection) handleFrame(f transport.Frame) {
	p, err := c.codec.Decode(f.Data)
	if err != nil {
		c.fail(fmt.Errorf("%w: %v", rtmerr.ErrMalformedFrame, err))
		return
	}
	if p.Action == "" {
		c.fail(fmt.Errorf("%w: missing action", rtmerr.ErrMalformedFrame))
		return
	}

	switch p.Action {
	case pdu.ActionSubscriptionData, pdu.ActionSubscriptionError, pdu.ActionSubscriptionInfo:
		c.routeSubscriptionEvent(p)
		return
	}

	if p.Body == nil && !pdu.BodylessOK[p.Action] {
		c.fail(fmt.Errorf("%w: missing body for %s", rtmerr.ErrMalformedFrame, p.Action))
		return
	}

	if pdu.IsAuth(p.Action) {
		c.routeAuthReply(p)
		return
	}

	c.routeContinuation(p)
}

func (c *Connection) routeSubscriptionEvent(p pdu.PDU) {
	body, _ := p.Body.(map[string]interface{})
	subID, _ := body["subscription_id"].(string)

	switch p.Action {
	case pdu.ActionSubscriptionData:
		c.delegate.OnSubscriptionData(subID, body)
	case pdu.ActionSubscriptionError:
		c.delegate.OnSubscriptionError(subID, body)
	case pdu.ActionSubscriptionInfo:
		if info, _ := body["info"].(string); info == pdu.InfoFastForward {
			c.delegate.OnFastForward(subID)
		}
	}
}

func (c *Connection) routeContinuation(p pdu.PDU) {
	if p.ID == nil {
		if pdu.IsError(p.Action) {
			c.fail(fmt.Errorf("%w: %s", rtmerr.ErrUnsolicitedError, p.Action))
		}
		return
	}

	entry, ok := c.pending[*p.ID]
	if !ok {
		if pdu.IsError(p.Action) {
			c.fail(fmt.Errorf("%w: unknown id %d", rtmerr.ErrUnsolicitedError, *p.ID))
		}
		return
	}

	if !pdu.IsData(p.Action) {
		delete(c.pending, *p.ID)
	}
	entry.cb(p, pdu.IsOK(p.Action))
}

// fail marks the connection broken, closes the transport, and notifies the
// delegate exactly once. Pending continuations are dropped silently
// (spec.md section 4.1, "Failure semantics").
func (c *Connection) fail(err error) {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.pending = make(map[uint64]pendingEntry)
		_ = c.transport.Close()
		c.delegate.OnClosed(err)
	})
}

// Close tears down the connection deliberately (supervisor-initiated),
// sharing the same idempotent guard as a transport-detected failure.
func (c *Connection) Close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.pending = make(map[uint64]pendingEntry)
		_ = c.transport.Close()
		c.delegate.OnClosed(nil)
	})
}

// send allocates an id (if cont is non-nil), registers the continuation,
// encodes, and writes the frame. Throttles per spec.md section 4.1 when
// the pending map is above watermark.
func (c *Connection) send(action string, body interface{}, cont Continuation) error {
	p := pdu.PDU{Action: action, Body: body}

	if cont != nil {
		if len(c.pending) >= pendingWatermark {
			time.Sleep(throttleDelay)
		}
		c.nextID++
		id := c.nextID
		p.ID = &id
		c.pending[id] = pendingEntry{cb: cont}
	}

	data, err := c.codec.Encode(p)
	if err != nil {
		if cont != nil && p.ID != nil {
			delete(c.pending, *p.ID)
		}
		return fmt.Errorf("connection: encode: %w", err)
	}

	frame := transport.Frame{Binary: c.codec.FrameKind() == codec.Binary, Data: data}
	if err := c.transport.Send(frame); err != nil {
		if cont != nil && p.ID != nil {
			delete(c.pending, *p.ID)
		}
		return fmt.Errorf("connection: send: %w", err)
	}
	return nil
}

// Publish sends rtm/publish; cont may be nil.
func (c *Connection) Publish(channel string, message interface{}, cont Continuation) error {
	return c.send(pdu.ActionPublish, map[string]interface{}{"channel": channel, "message": message}, cont)
}

// Subscribe sends rtm/subscribe. If args contains "filter", the body uses
// subscription_id instead of channel (spec.md section 4.1).
func (c *Connection) Subscribe(subscriptionID string, args map[string]interface{}, cont Continuation) error {
	body := map[string]interface{}{}
	for k, v := range args {
		body[k] = v
	}
	if _, hasFilter := args["filter"]; hasFilter {
		body["subscription_id"] = subscriptionID
	} else {
		body["channel"] = subscriptionID
	}
	return c.send(pdu.ActionSubscribe, body, cont)
}

// Unsubscribe sends rtm/unsubscribe.
func (c *Connection) Unsubscribe(subscriptionID string, cont Continuation) error {
	return c.send(pdu.ActionUnsubscribe, map[string]interface{}{"subscription_id": subscriptionID}, cont)
}

// Read sends rtm/read.
func (c *Connection) Read(channel string, args map[string]interface{}, cont Continuation) error {
	body := map[string]interface{}{"channel": channel}
	for k, v := range args {
		body[k] = v
	}
	return c.send(pdu.ActionRead, body, cont)
}

// Write sends rtm/write.
func (c *Connection) Write(channel string, value interface{}, cont Continuation) error {
	return c.send(pdu.ActionWrite, map[string]interface{}{"channel": channel, "message": value}, cont)
}

// Delete sends rtm/delete.
func (c *Connection) Delete(channel string, cont Continuation) error {
	return c.send(pdu.ActionDelete, map[string]interface{}{"channel": channel}, cont)
}

// SendAction is the arbitrary-action escape hatch (spec.md section 4.1).
func (c *Connection) SendAction(action string, body interface{}, cont Continuation) error {
	return c.send(action, body, cont)
}

// Search sends rtm/search. cont is invoked once per rtm/search/data reply
// (a page of matching channel names) and once more for the terminal
// rtm/search/ok or rtm/search/error; pdu.IsData keeps the continuation
// registered across the data replies.
func (c *Connection) Search(prefix string, cont Continuation) error {
	return c.send(pdu.ActionSearch, map[string]interface{}{"prefix": prefix}, cont)
}

// Authenticate drives delegate through the handshake/authenticate
// round-trip described in spec.md section 4.1. onDone is called exactly
// once with the final outcome (nil on success).
func (c *Connection) Authenticate(delegate auth.Delegate, onDone func(error)) error {
	c.authMu.Lock()
	if c.authState != authIdle {
		c.authMu.Unlock()
		return rtmerr.ErrAuthInProgress
	}
	c.authState = authHandshakeSent
	c.authDone = onDone
	c.authMu.Unlock()

	return c.stepAuth(delegate.Start())
}

func (c *Connection) stepAuth(action auth.Action) error {
	switch a := action.(type) {
	case auth.Handshake:
		c.authMu.Lock()
		c.authNext = a.Next
		c.authMu.Unlock()
		return c.send(pdu.ActionAuthHandshake, map[string]interface{}{"method": a.Method, "data": a.Data}, func(p pdu.PDU, ok bool) {
			c.onAuthReply(p, ok, authHandshakeSent)
		})
	case auth.Authenticate:
		c.authMu.Lock()
		c.authState = authAuthenticateSent
		c.authNext = a.Next
		c.authMu.Unlock()
		return c.send(pdu.ActionAuthenticate, map[string]interface{}{"method": a.Method, "credentials": a.Credentials}, func(p pdu.PDU, ok bool) {
			c.onAuthReply(p, ok, authAuthenticateSent)
		})
	case auth.Done:
		c.finishAuth(nil)
		return nil
	case auth.Error:
		c.finishAuth(a)
		return a
	}
	return nil
}

func (c *Connection) onAuthReply(p pdu.PDU, ok bool, expectedPhase authPhase) {
	c.authMu.Lock()
	if c.authState != expectedPhase {
		c.authMu.Unlock()
		return
	}
	next := c.authNext
	c.authMu.Unlock()

	if !ok {
		msg, _ := bodyString(p.Body, "message")
		c.finishAuth(auth.Error{Message: msg})
		return
	}

	body, _ := p.Body.(map[string]interface{})
	var result auth.Action
	switch fn := next.(type) {
	case func(auth.HandshakeOK) auth.Action:
		result = fn(auth.HandshakeOK{Data: body})
	case func(auth.AuthenticateOK) auth.Action:
		result = fn(auth.AuthenticateOK{})
	default:
		return
	}
	_ = c.stepAuth(result)
}

func (c *Connection) routeAuthReply(p pdu.PDU) {
	// Auth replies carry an id like any other request and are delivered
	// through the same pending-continuation path; this handler only
	// exists for forward compatibility with unsolicited auth/* frames
	// that lack a matching continuation.
	c.routeContinuation(p)
}

func (c *Connection) finishAuth(err error) {
	c.authMu.Lock()
	c.authState = authIdle
	c.authNext = nil
	done := c.authDone
	c.authDone = nil
	c.authMu.Unlock()
	if done != nil {
		done(err)
	}
}

func bodyString(body interface{}, key string) (string, bool) {
	m, ok := body.(map[string]interface{})
	if !ok {
		return "", false
	}
	s, ok := m[key].(string)
	return s, ok
}
