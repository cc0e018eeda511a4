package rtmclient

import "sync"

// readyWaiter is a transient ClientObserver used only by waitReady/Open to
// learn the outcome of the first connection attempt without requiring the
// caller to have registered their own ClientObserver.
type readyWaiter struct {
	NoopClientObserver
	once      sync.Once
	done      chan struct{}
	connected bool
}

func (w *readyWaiter) OnEnterConnected() {
	w.once.Do(func() { w.connected = true; close(w.done) })
}

func (w *readyWaiter) OnEnterStopped() {
	w.once.Do(func() { close(w.done) })
}

// attachTransientObserver and detachTransientObserver let Open observe the
// first connect attempt alongside any observer the caller already
// registered via WithObserver, without replacing it.
func (c *Client) attachTransientObserver(obs ClientObserver) {
	c.transientMu.Lock()
	c.transient = obs
	c.transientMu.Unlock()
}

func (c *Client) detachTransientObserver() {
	c.transientMu.Lock()
	c.transient = nil
	c.transientMu.Unlock()
}
