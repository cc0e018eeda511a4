package rtmclient

import (
	"context"

	"github.com/satori-rtm/rtmclient/internal/rtmerr"
)

// runSync is the single generic wait-on-one-shot-channel wrapper every
// *Sync method in this package is built from (spec.md section 9: "implement
// once generically, do not duplicate" the reference implementation's four
// hand-rolled _sync methods). submit is handed a 1-buffered channel and must
// arrange for exactly one value to be sent to it.
func runSync[T any](ctx context.Context, submit func(chan<- T)) (T, error) {
	ch := make(chan T, 1)
	submit(ch)
	select {
	case v := <-ch:
		return v, nil
	case <-ctx.Done():
		var zero T
		return zero, rtmerr.ErrTimeout
	}
}

// PublishSync publishes and waits for the publish/ok or publish/error reply.
func (c *Client) PublishSync(ctx context.Context, channel string, message interface{}) error {
	err, syncErr := runSync(ctx, func(ch chan<- error) {
		c.Publish(channel, message, func(e error) { ch <- e })
	})
	if syncErr != nil {
		return syncErr
	}
	return err
}

// ReadSync reads a channel's latest value and waits for the reply.
func (c *Client) ReadSync(ctx context.Context, channel string, args map[string]interface{}) (interface{}, error) {
	r, syncErr := runSync(ctx, func(ch chan<- readResult) {
		c.Read(channel, args, func(msg interface{}, err error) { ch <- readResult{message: msg, err: err} })
	})
	if syncErr != nil {
		return nil, syncErr
	}
	return r.message, r.err
}

// WriteSync writes a value and waits for the reply.
func (c *Client) WriteSync(ctx context.Context, channel string, value interface{}) error {
	err, syncErr := runSync(ctx, func(ch chan<- error) {
		c.Write(channel, value, func(e error) { ch <- e })
	})
	if syncErr != nil {
		return syncErr
	}
	return err
}

// DeleteSync deletes a channel's value and waits for the reply.
func (c *Client) DeleteSync(ctx context.Context, channel string) error {
	err, syncErr := runSync(ctx, func(ch chan<- error) {
		c.Delete(channel, func(e error) { ch <- e })
	})
	if syncErr != nil {
		return syncErr
	}
	return err
}

// AuthenticateSync authenticates using the role configured at construction
// time and waits for the outcome.
func (c *Client) AuthenticateSync(ctx context.Context) error {
	err, syncErr := runSync(ctx, func(ch chan<- error) {
		c.Authenticate(func(e error) { ch <- e })
	})
	if syncErr != nil {
		return syncErr
	}
	return err
}

// UnsubscribeSync unsubscribes and waits for the subscription to reach
// Deleted.
func (c *Client) UnsubscribeSync(ctx context.Context, channel string) error {
	return c.subscribeLifecycleSync(ctx, channel, func(done chan<- error) {
		c.Unsubscribe(channel, func(e error) { done <- e })
	})
}

func (c *Client) subscribeLifecycleSync(ctx context.Context, channel string, submit func(chan<- error)) error {
	err, syncErr := runSync(ctx, submit)
	if syncErr != nil {
		return syncErr
	}
	return err
}

// SubscribeSync subscribes and waits until the subscription reaches
// Subscribed (success) or Failed (the returned error carries the failure
// reason), wrapping observer so its own callbacks still fire normally.
func (c *Client) SubscribeSync(ctx context.Context, channel string, mode DeliveryMode, args map[string]interface{}, observer SubscriptionObserver) error {
	result, syncErr := runSync(ctx, func(ch chan<- error) {
		waiter := &subscribeWaiter{inner: observer, done: ch}
		if err := c.Subscribe(channel, mode, args, waiter); err != nil {
			ch <- err
		}
	})
	if syncErr != nil {
		return syncErr
	}
	return result
}

// subscribeWaiter wraps a caller's SubscriptionObserver, forwarding every
// callback while also resolving a SubscribeSync call's completion channel
// the first time the subscription reaches Subscribed or Failed.
type subscribeWaiter struct {
	NoopSubscriptionObserver
	inner SubscriptionObserver
	done  chan<- error
	fired bool
}

func (w *subscribeWaiter) OnCreated() {
	if w.inner != nil {
		w.inner.OnCreated()
	}
}

func (w *subscribeWaiter) OnDeleted() {
	if w.inner != nil {
		w.inner.OnDeleted()
	}
}

func (w *subscribeWaiter) OnEnterState(state string) {
	if w.inner != nil {
		w.inner.OnEnterState(state)
	}
	if !w.fired && state == "subscribed" {
		w.fired = true
		w.done <- nil
	}
}

func (w *subscribeWaiter) OnLeaveState(state string) {
	if w.inner != nil {
		w.inner.OnLeaveState(state)
	}
}

func (w *subscribeWaiter) OnEnterFailed(reason string) {
	if w.inner != nil {
		w.inner.OnEnterFailed(reason)
	}
	if !w.fired {
		w.fired = true
		w.done <- &subscribeFailedError{reason: reason}
	}
}

func (w *subscribeWaiter) OnSubscriptionData(messages []interface{}, position string) {
	if w.inner != nil {
		w.inner.OnSubscriptionData(messages, position)
	}
}

func (w *subscribeWaiter) OnSubscriptionError(code, reason string) {
	if w.inner != nil {
		w.inner.OnSubscriptionError(code, reason)
	}
}

type subscribeFailedError struct{ reason string }

func (e *subscribeFailedError) Error() string { return "rtmclient: subscribe failed: " + e.reason }
