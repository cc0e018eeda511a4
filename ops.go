package rtmclient

import (
	"fmt"

	"github.com/satori-rtm/rtmclient/internal/auth"
	"github.com/satori-rtm/rtmclient/internal/rtmerr"
)

// Publish sends a message to channel. cb (may be nil) is invoked once with
// the outcome; it runs on the connection's own goroutine, not the event
// loop, since publishing never mutates subscription or supervisor state.
func (c *Client) Publish(channel string, message interface{}, cb func(error)) {
	if c.closed.Load() {
		invoke(cb, rtmerr.ErrAlreadyDisposed)
		return
	}
	if err := c.queue.PushUser(actionPublish{channel: channel, message: message, cb: cb}); err != nil {
		invoke(cb, err)
	}
}

// Read fetches a channel's latest written value.
func (c *Client) Read(channel string, args map[string]interface{}, cb func(interface{}, error)) {
	if c.closed.Load() {
		if cb != nil {
			cb(nil, rtmerr.ErrAlreadyDisposed)
		}
		return
	}
	if err := c.queue.PushUser(actionRead{channel: channel, args: args, cb: cb}); err != nil {
		if cb != nil {
			cb(nil, err)
		}
	}
}

// Write sets a channel's value.
func (c *Client) Write(channel string, value interface{}, cb func(error)) {
	if c.closed.Load() {
		invoke(cb, rtmerr.ErrAlreadyDisposed)
		return
	}
	if err := c.queue.PushUser(actionWrite{channel: channel, value: value, cb: cb}); err != nil {
		invoke(cb, err)
	}
}

// Delete removes a channel's value.
func (c *Client) Delete(channel string, cb func(error)) {
	if c.closed.Load() {
		invoke(cb, rtmerr.ErrAlreadyDisposed)
		return
	}
	if err := c.queue.PushUser(actionDelete{channel: channel, cb: cb}); err != nil {
		invoke(cb, err)
	}
}

// SendAction is the arbitrary-action escape hatch (spec.md section 4.1):
// any action name, any body, routed back to cb exactly like the named
// operations above.
func (c *Client) SendAction(action string, body interface{}, cb func(map[string]interface{}, error)) {
	if c.closed.Load() {
		if cb != nil {
			cb(nil, rtmerr.ErrAlreadyDisposed)
		}
		return
	}
	if err := c.queue.PushUser(actionSendRaw{action: action, body: body, cb: cb}); err != nil {
		if cb != nil {
			cb(nil, err)
		}
	}
}

// Search streams rtm/search/data replies to cb and then a final nil-error
// call once rtm/search/ok arrives (spec.md section 6.1's supplemented
// rtm/search support -- optional, outside the two core state machines).
func (c *Client) Search(prefix string, cb func(channels []string, done bool, err error)) {
	if c.closed.Load() {
		if cb != nil {
			cb(nil, true, rtmerr.ErrAlreadyDisposed)
		}
		return
	}
	if err := c.queue.PushUser(actionSearch{prefix: prefix, cb: cb}); err != nil {
		if cb != nil {
			cb(nil, true, err)
		}
	}
}

// Authenticate (re)runs the role_secret handshake configured at
// construction time (Config.Role/RoleSecretPath). cb is invoked once with
// the outcome.
func (c *Client) Authenticate(cb func(error)) {
	if c.closed.Load() {
		invoke(cb, rtmerr.ErrAlreadyDisposed)
		return
	}
	if c.authDelegate == nil {
		invoke(cb, fmt.Errorf("rtmclient: no role configured"))
		return
	}
	if err := c.queue.PushUser(actionAuthenticate{delegate: c.authDelegate, cb: cb}); err != nil {
		invoke(cb, err)
	}
}

// AuthenticateWith runs a caller-supplied auth.Delegate instead of the one
// derived from Config.Role, for callers implementing an auth method other
// than role_secret.
func (c *Client) AuthenticateWith(delegate auth.Delegate, cb func(error)) {
	if c.closed.Load() {
		invoke(cb, rtmerr.ErrAlreadyDisposed)
		return
	}
	if err := c.queue.PushUser(actionAuthenticate{delegate: delegate, cb: cb}); err != nil {
		invoke(cb, err)
	}
}

// Subscribe creates or retargets a subscription (spec.md section 4.2). It
// returns once the event loop has taken the request, not once the server
// has acknowledged it -- use SubscribeSync to wait for Subscribed/Failed.
func (c *Client) Subscribe(channel string, mode DeliveryMode, args map[string]interface{}, observer SubscriptionObserver) error {
	if c.closed.Load() {
		return rtmerr.ErrAlreadyDisposed
	}
	result := make(chan error, 1)
	if err := c.queue.PushUser(actionSubscribe{channel: channel, mode: mode, args: args, observer: observer, result: result}); err != nil {
		return err
	}
	return <-result
}

// Unsubscribe tears down a subscription. cb fires once the unsubscribe/ok
// (or error) reply is processed.
func (c *Client) Unsubscribe(channel string, cb func(error)) {
	if c.closed.Load() {
		invoke(cb, rtmerr.ErrAlreadyDisposed)
		return
	}
	if err := c.queue.PushUser(actionUnsubscribe{channel: channel, cb: cb}); err != nil {
		invoke(cb, err)
	}
}

func invoke(cb func(error), err error) {
	if cb != nil {
		cb(err)
	}
}
