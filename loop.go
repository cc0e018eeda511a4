package rtmclient

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/satori-rtm/rtmclient/internal/audit"
	"github.com/satori-rtm/rtmclient/internal/auth"
	"github.com/satori-rtm/rtmclient/internal/pdu"
	"github.com/satori-rtm/rtmclient/internal/rtmerr"
	"github.com/satori-rtm/rtmclient/internal/subscription"
	"github.com/satori-rtm/rtmclient/internal/supervisor"
)

// run is the single event-loop goroutine that owns every piece of shared
// state the two coupled machines touch (spec.md section 5): c.sup, c.subs,
// c.conn, and the pending-auth/unsubscribe bookkeeping below. Every public
// method reaches this goroutine only by pushing an Action onto c.queue.
func (c *Client) run() {
	defer close(c.loopDone)
	for {
		a, ok := c.queue.Pop()
		if !ok {
			return
		}
		switch v := a.(type) {
		case actionStart:
			c.handleStart(v)
		case actionStop:
			c.handleStop(v)
		case actionDispose:
			c.handleDispose(v)
			return
		case actionDialResult:
			c.handleDialResult(v)
		case actionConnectionLost:
			c.handleConnectionLost(v)
		case actionReconnectTick:
			c.handleReconnectTick()
		case actionSubscribe:
			c.handleSubscribe(v)
		case actionUnsubscribe:
			c.handleUnsubscribe(v)
		case actionSubscribeReply:
			c.handleSubscribeReply(v)
		case actionUnsubscribeReply:
			c.handleUnsubscribeReply(v)
		case actionSubscriptionEvent:
			c.handleSubscriptionEvent(v)
		case actionPublish:
			c.handlePublish(v)
		case actionRead:
			c.handleRead(v)
		case actionWrite:
			c.handleWrite(v)
		case actionDelete:
			c.handleDelete(v)
		case actionSendRaw:
			c.handleSendRaw(v)
		case actionSearch:
			c.handleSearch(v)
		case actionAuthenticate:
			c.handleAuthenticate(v)
		case actionAuthResult:
			c.handleAuthResult(v)
		}
	}
}

// --- Supervisor lifecycle -------------------------------------------------

func (c *Client) handleStart(a actionStart) {
	if c.sup.State != supervisor.Stopped {
		a.result <- rtmerr.ErrAlreadyStarted
		return
	}
	c.applySupervisorActions(c.transitionSupervisor(supervisor.EventStart))
	a.result <- nil
}

func (c *Client) handleStop(a actionStop) {
	c.applySupervisorActions(c.transitionSupervisor(supervisor.EventStop))
	c.cancelReconnectTimer()
	c.notifySubscriptionsDisconnected()
	close(a.done)
}

func (c *Client) handleDispose(a actionDispose) {
	c.applySupervisorActions(c.transitionSupervisor(supervisor.EventDispose))
	c.cancelReconnectTimer()
	c.queue.Close()
	close(a.done)
}

func (c *Client) handleDialResult(a actionDialResult) {
	if a.err != nil {
		c.logger.Warn("dial failed", slog.String("err", a.err.Error()))
		c.applySupervisorActions(c.transitionSupervisor(supervisor.EventConnectFailed))
		return
	}
	c.conn = a.conn
	c.applySupervisorActions(c.transitionSupervisor(supervisor.EventConnectSucceeded))
}

func (c *Client) handleConnectionLost(a actionConnectionLost) {
	if c.conn == nil || c.conn != a.conn {
		return
	}
	c.applySupervisorActions(c.transitionSupervisor(supervisor.EventConnectionLost))
	c.notifySubscriptionsDisconnected()
	if a.err != nil {
		c.dispatchClientObserver(func(o ClientObserver) { o.OnInternalError(a.err) })
		c.notifyAsync("internal_error", "rtmclient: internal error", a.err.Error())
	}
}

// notifyAsync pages an operator through the optional domain-stack notifier
// (spec.md section 4, ambient "Propagation policy": user-visible failures
// with no associated continuation go to on_internal_error; this mirrors
// that same class of event to Telegram/Discord if configured). It never
// blocks the event-loop goroutine -- Sender.Send is network I/O.
func (c *Client) notifyAsync(event, title, message string) {
	if c.deps == nil || c.deps.Notifier == nil {
		return
	}
	notifier := c.deps.Notifier
	ctx := c.ctx
	go func() {
		if err := notifier.Notify(ctx, event, title, message); err != nil {
			c.logger.Warn("notify failed", slog.String("err", err.Error()))
		}
	}()
}

func (c *Client) handleReconnectTick() {
	c.applySupervisorActions(c.transitionSupervisor(supervisor.EventReconnectTick))
}

// applySupervisorActions performs the side effects Transition asked for.
// It never mutates c.sup.State itself -- Transition already did that.
func (c *Client) applySupervisorActions(actions []supervisor.Action) {
	for _, act := range actions {
		switch act.Kind {
		case supervisor.ActionFireEnterState:
			c.fireSupervisorEnter(act.State)
		case supervisor.ActionFireLeaveState:
			c.fireSupervisorLeave(act.State)
		case supervisor.ActionDial:
			go c.dial()
		case supervisor.ActionScheduleReconnect:
			c.scheduleReconnect(act.Delay)
		case supervisor.ActionEnterConnected:
			c.onConnected()
		case supervisor.ActionCloseConnection:
			c.closeConnection()
		}
	}
}

func (c *Client) fireSupervisorEnter(s supervisor.State) {
	c.dispatchClientObserver(func(o ClientObserver) {
		switch s {
		case supervisor.Stopped:
			o.OnEnterStopped()
		case supervisor.Connecting:
			o.OnEnterConnecting()
		case supervisor.Connected:
			o.OnEnterConnected()
		case supervisor.Awaiting:
			o.OnEnterAwaiting()
		case supervisor.Stopping:
			o.OnEnterStopping()
		case supervisor.Disposed:
			o.OnEnterDisposed()
			c.notifyAsync("disposed", "rtmclient: client disposed", "the client has reached its terminal state")
		}
	})
}

func (c *Client) fireSupervisorLeave(s supervisor.State) {
	c.dispatchClientObserver(func(o ClientObserver) {
		switch s {
		case supervisor.Stopped:
			o.OnLeaveStopped()
		case supervisor.Connecting:
			o.OnLeaveConnecting()
		case supervisor.Connected:
			o.OnLeaveConnected()
		case supervisor.Awaiting:
			o.OnLeaveAwaiting()
		case supervisor.Stopping:
			o.OnLeaveStopping()
		}
	})
}

func (c *Client) dispatchClientObserver(fn func(ClientObserver)) {
	if c.observer != nil {
		fn(c.observer)
	}
	c.transientMu.Lock()
	t := c.transient
	c.transientMu.Unlock()
	if t != nil {
		fn(t)
	}
}

func (c *Client) closeConnection() {
	if c.conn != nil {
		c.conn.close()
		c.conn = nil
	}
}

func (c *Client) scheduleReconnect(delay time.Duration) {
	c.cancelReconnectTimer()
	c.reconnectTimer = time.AfterFunc(delay, func() {
		c.queue.PushInternal(actionReconnectTick{})
	})
}

func (c *Client) cancelReconnectTimer() {
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
}

// onConnected re-subscribes every live handle, replays authentication when
// an earlier one succeeded and RestoreAuthOnReconnect is set, and drains the
// offline queue (spec.md section 4.3, "Entry actions for Connected" items
// 1-3).
func (c *Client) onConnected() {
	for _, h := range c.subs {
		c.loadCachedPosition(h)
		actions := c.transitionSubscription(h, subscription.Event{Kind: subscription.EventConnect})
		c.dispatchSubscriptionActions(h, actions)
		c.runSubscriptionActions(h, actions)
	}

	if c.authDelegate != nil && c.authenticated && c.cfg.RestoreAuthOnReconnect {
		c.sendAuthenticate(c.authDelegate, func(err error) {
			if err != nil {
				c.logger.Warn("reconnect auth replay failed", slog.String("err", err.Error()))
			}
		})
	}

	c.drainOfflineQueue()
}

// maxOfflineQueueLength bounds the offline queue at the same length the
// reference implementation uses (original_source's
// max_offline_queue_length = 1000 in satori/rtm/internal_client.py).
const maxOfflineQueueLength = 1000

// offlineAction is a publish or authenticate request queued while
// disconnected (spec.md section 4.3, "Drain the offline-queue (publishes
// and authenticate calls that were issued while disconnected) into the
// Connection"); replay re-runs it once onConnected drains the queue.
type offlineAction interface {
	replay(c *Client)
}

func (a actionPublish) replay(c *Client) { c.handlePublish(a) }

func (a actionAuthenticate) replay(c *Client) { c.sendAuthenticate(a.delegate, a.cb) }

// enqueueOffline appends a to the offline queue, evicting the oldest entry
// once the queue is at capacity -- the same bounded-FIFO behavior as the
// reference implementation's collections.deque(maxlen=max_offline_queue_length).
func (c *Client) enqueueOffline(a offlineAction) {
	if len(c.offlineQueue) >= maxOfflineQueueLength {
		c.offlineQueue = c.offlineQueue[1:]
	}
	c.offlineQueue = append(c.offlineQueue, a)
}

// drainOfflineQueue replays every queued action now that c.conn is set,
// in FIFO order (spec.md section 4.3, "Entry actions for Connected" item 3).
func (c *Client) drainOfflineQueue() {
	queued := c.offlineQueue
	c.offlineQueue = nil
	for _, a := range queued {
		a.replay(c)
	}
}

func (c *Client) notifySubscriptionsDisconnected() {
	for _, h := range c.subs {
		actions := c.transitionSubscription(h, subscription.Event{Kind: subscription.EventDisconnect})
		c.dispatchSubscriptionActions(h, actions)
		c.runSubscriptionActions(h, actions)
	}
}

// --- Subscriptions ---------------------------------------------------------

// handleSubscribe stages or (re)drives a subscription. The subscription
// machine is connectivity-agnostic: given EventUserSubscribe on a fresh
// handle it unconditionally produces ActionSendSubscribe. While
// disconnected that send has nowhere to go, so the disconnected branch
// below stores the requested args/observer directly and leaves the state
// at Unsubscribed; the next onConnected drives the real Subscribing
// transition and wire send via EventConnect.
func (c *Client) handleSubscribe(a actionSubscribe) {
	h, exists := c.subs[a.channel]
	if !exists {
		h = &subscriptionHandle{sub: &subscription.Subscription{ID: a.channel, State: subscription.Unsubscribed}}
		c.subs[a.channel] = h
	}
	// While a subscription is live the observer swap happens on
	// ActionFireCreated in dispatchSubscriptionActions, so the outgoing
	// observer still receives its OnDeleted.
	switch h.sub.State {
	case subscription.Subscribing, subscription.Subscribed, subscription.Unsubscribing:
		if c.conn == nil {
			h.observer = a.observer
		}
	default:
		h.observer = a.observer
	}
	h.sub.DeliveryMode = a.mode.internal()

	if c.conn == nil {
		h.sub.State = subscription.Unsubscribed
		h.sub.Mode = subscription.ModeLinked
		h.sub.Args = a.args
		h.sub.Observer = a.observer
		h.sub.LastError = ""
		h.sub.Retarget = nil
		a.result <- nil
		return
	}

	actions := c.transitionSubscription(h, subscription.Event{
		Kind:         subscription.EventUserSubscribe,
		NextArgs:     a.args,
		NextObserver: a.observer,
	})
	c.dispatchSubscriptionActions(h, actions)
	c.runSubscriptionActions(h, actions)
	a.result <- nil
}

func (c *Client) handleUnsubscribe(a actionUnsubscribe) {
	h, ok := c.subs[a.channel]
	if !ok {
		invoke(a.cb, rtmerr.ErrConnectionClosed)
		return
	}

	actions := c.transitionSubscription(h, subscription.Event{Kind: subscription.EventUserUnsubscribe})
	c.dispatchSubscriptionActions(h, actions)
	c.runSubscriptionActions(h, actions)

	if h.sub.State == subscription.Deleted {
		delete(c.subs, a.channel)
		invoke(a.cb, nil)
		return
	}
	if a.cb != nil {
		c.unsubCallbacks[a.channel] = a.cb
	}
}

func (c *Client) handleSubscribeReply(a actionSubscribeReply) {
	h, ok := c.subs[a.subscriptionID]
	if !ok {
		return
	}

	ev := subscription.Event{Kind: subscription.EventSubscribeOK}
	if !a.ok {
		ev.Kind = subscription.EventSubscribeError
		ev.ErrorCode, _ = a.body["error"].(string)
		ev.ErrorReason, _ = a.body["reason"].(string)
	} else if pos, ok2 := a.body["position"].(string); ok2 && pos != "" {
		ev.Position = pos
		c.cachePosition(a.subscriptionID, pos)
	}

	actions := c.transitionSubscription(h, ev)
	c.dispatchSubscriptionActions(h, actions)
	c.runSubscriptionActions(h, actions)
}

func (c *Client) handleUnsubscribeReply(a actionUnsubscribeReply) {
	h, ok := c.subs[a.subscriptionID]
	if !ok {
		return
	}

	kind := subscription.EventUnsubscribeOK
	if !a.ok {
		kind = subscription.EventUnsubscribeError
	}
	actions := c.transitionSubscription(h, subscription.Event{Kind: kind})
	c.dispatchSubscriptionActions(h, actions)
	c.runSubscriptionActions(h, actions)

	if h.sub.State == subscription.Deleted {
		delete(c.subs, a.subscriptionID)
	}

	if cb, hasCb := c.unsubCallbacks[a.subscriptionID]; hasCb {
		delete(c.unsubCallbacks, a.subscriptionID)
		var err error
		if !a.ok {
			err = fmt.Errorf("rtmclient: unsubscribe failed")
		}
		invoke(cb, err)
	}
}

func (c *Client) handleSubscriptionEvent(a actionSubscriptionEvent) {
	h, ok := c.subs[a.subscriptionID]
	if !ok {
		return
	}
	switch a.kind {
	case subEventData:
		c.handleSubscriptionData(h, a.body)
	case subEventError:
		c.handleSubscriptionChannelError(h, a.body)
	case subEventFastForward:
		c.dispatchClientObserver(func(o ClientObserver) { o.OnFastForward(h.sub.ID) })
	}
}

func (c *Client) handleSubscriptionData(h *subscriptionHandle, body map[string]interface{}) {
	messages, _ := body["messages"].([]interface{})
	position, _ := body["position"].(string)

	if h.sub.DeliveryMode != subscription.Simple && position != "" {
		h.sub.Position = position
		c.cachePosition(h.sub.ID, position)
	}

	if h.observer != nil {
		h.observer.OnSubscriptionData(messages, position)
	}

	c.archiveFrame(h.sub.ID, body)
}

func (c *Client) handleSubscriptionChannelError(h *subscriptionHandle, body map[string]interface{}) {
	code, _ := body["error"].(string)
	reason, _ := body["reason"].(string)

	if h.observer != nil {
		h.observer.OnSubscriptionError(code, reason)
	}

	actions := c.transitionSubscription(h, subscription.Event{
		Kind:        subscription.EventChannelError,
		ErrorCode:   code,
		ErrorReason: reason,
	})
	c.dispatchSubscriptionActions(h, actions)
	c.runSubscriptionActions(h, actions)

	if code == "out_of_sync" {
		c.clearCachedPosition(h.sub.ID)
	}
}

// runSubscriptionActions performs the I/O side effects Transition asked
// for: sending the wire request a state change requires. Observer
// notifications were already dispatched by c.dispatchSubscriptionActions.
func (c *Client) runSubscriptionActions(h *subscriptionHandle, actions []subscription.Action) {
	for _, a := range actions {
		switch a.Kind {
		case subscription.ActionSendSubscribe:
			c.sendSubscribeWire(h)
		case subscription.ActionSendUnsubscribe:
			c.sendUnsubscribeWire(h)
		}
	}
}

func (c *Client) sendSubscribeWire(h *subscriptionHandle) {
	if c.conn == nil {
		return
	}
	subID := h.sub.ID
	if err := c.conn.conn.Subscribe(subID, h.sub.Args, func(p pdu.PDU, ok bool) {
		body, _ := p.Body.(map[string]interface{})
		c.queue.PushInternal(actionSubscribeReply{subscriptionID: subID, ok: ok, body: body})
	}); err != nil {
		c.queue.PushInternal(actionSubscribeReply{
			subscriptionID: subID,
			ok:             false,
			body:           map[string]interface{}{"reason": err.Error()},
		})
	}
}

func (c *Client) sendUnsubscribeWire(h *subscriptionHandle) {
	if c.conn == nil {
		return
	}
	subID := h.sub.ID
	if err := c.conn.conn.Unsubscribe(subID, func(p pdu.PDU, ok bool) {
		c.queue.PushInternal(actionUnsubscribeReply{subscriptionID: subID, ok: ok})
	}); err != nil {
		c.queue.PushInternal(actionUnsubscribeReply{subscriptionID: subID, ok: false})
	}
}

// --- Authentication ---------------------------------------------------------

func (c *Client) handleAuthenticate(a actionAuthenticate) {
	c.sendAuthenticate(a.delegate, a.cb)
}

func (c *Client) sendAuthenticate(delegate auth.Delegate, cb func(error)) {
	if c.conn == nil {
		c.enqueueOffline(actionAuthenticate{delegate: delegate, cb: cb})
		return
	}
	if err := c.conn.conn.Authenticate(delegate, func(err error) {
		c.queue.PushInternal(actionAuthResult{err: err, cb: cb})
	}); err != nil {
		invoke(cb, err)
	}
}

func (c *Client) handleAuthResult(a actionAuthResult) {
	if a.err == nil {
		c.authenticated = true
	}
	invoke(a.cb, a.err)
}

// --- Publish/Read/Write/Delete/SendAction/Search ---------------------------
//
// These never mutate subscription or supervisor state, so their replies
// invoke cb directly from whichever goroutine the continuation runs on
// (spec.md section 5 constrains only state-mutating continuations to the
// event-loop thread).

func (c *Client) handlePublish(a actionPublish) {
	if c.conn == nil {
		c.enqueueOffline(a)
		return
	}
	if err := c.conn.conn.Publish(a.channel, a.message, func(p pdu.PDU, ok bool) {
		invoke(a.cb, replyError(p, ok))
	}); err != nil {
		invoke(a.cb, err)
	}
}

func (c *Client) handleRead(a actionRead) {
	if c.conn == nil {
		if a.cb != nil {
			a.cb(nil, rtmerr.ErrConnectionClosed)
		}
		return
	}
	if err := c.conn.conn.Read(a.channel, a.args, func(p pdu.PDU, ok bool) {
		if a.cb == nil {
			return
		}
		if !ok {
			a.cb(nil, replyError(p, ok))
			return
		}
		body, _ := p.Body.(map[string]interface{})
		var msg interface{}
		if body != nil {
			msg = body["message"]
		}
		a.cb(msg, nil)
	}); err != nil {
		if a.cb != nil {
			a.cb(nil, err)
		}
	}
}

func (c *Client) handleWrite(a actionWrite) {
	if c.conn == nil {
		invoke(a.cb, rtmerr.ErrConnectionClosed)
		return
	}
	if err := c.conn.conn.Write(a.channel, a.value, func(p pdu.PDU, ok bool) {
		invoke(a.cb, replyError(p, ok))
	}); err != nil {
		invoke(a.cb, err)
	}
}

func (c *Client) handleDelete(a actionDelete) {
	if c.conn == nil {
		invoke(a.cb, rtmerr.ErrConnectionClosed)
		return
	}
	if err := c.conn.conn.Delete(a.channel, func(p pdu.PDU, ok bool) {
		invoke(a.cb, replyError(p, ok))
	}); err != nil {
		invoke(a.cb, err)
	}
}

func (c *Client) handleSendRaw(a actionSendRaw) {
	if c.conn == nil {
		if a.cb != nil {
			a.cb(nil, rtmerr.ErrConnectionClosed)
		}
		return
	}
	if err := c.conn.conn.SendAction(a.action, a.body, func(p pdu.PDU, ok bool) {
		if a.cb == nil {
			return
		}
		if !ok {
			a.cb(nil, replyError(p, ok))
			return
		}
		body, _ := p.Body.(map[string]interface{})
		a.cb(body, nil)
	}); err != nil {
		if a.cb != nil {
			a.cb(nil, err)
		}
	}
}

func (c *Client) handleSearch(a actionSearch) {
	if c.conn == nil {
		if a.cb != nil {
			a.cb(nil, true, rtmerr.ErrConnectionClosed)
		}
		return
	}
	if err := c.conn.conn.Search(a.prefix, func(p pdu.PDU, ok bool) {
		if a.cb == nil {
			return
		}
		if !ok {
			a.cb(nil, true, replyError(p, ok))
			return
		}
		body, _ := p.Body.(map[string]interface{})
		var channels []string
		if raw, ok2 := body["channels"].([]interface{}); ok2 {
			for _, v := range raw {
				if s, ok3 := v.(string); ok3 {
					channels = append(channels, s)
				}
			}
		}
		a.cb(channels, !pdu.IsData(p.Action), nil)
	}); err != nil {
		if a.cb != nil {
			a.cb(nil, true, err)
		}
	}
}

func replyError(p pdu.PDU, ok bool) error {
	if ok {
		return nil
	}
	body, _ := p.Body.(map[string]interface{})
	code, _ := body["error"].(string)
	reason, _ := body["reason"].(string)
	switch {
	case reason != "":
		return fmt.Errorf("rtmclient: %s", reason)
	case code != "":
		return fmt.Errorf("rtmclient: %s", code)
	default:
		return fmt.Errorf("rtmclient: request failed")
	}
}

// --- Domain-stack wiring: audit, position cache, archive --------------------

func (c *Client) transitionSupervisor(ev supervisor.EventKind) []supervisor.Action {
	before := c.sup.State
	actions := c.sup.Transition(ev)
	if after := c.sup.State; before != after {
		c.auditTransition(audit.MachineSupervisor, "client", before.String(), after.String())
	}
	return actions
}

func (c *Client) transitionSubscription(h *subscriptionHandle, ev subscription.Event) []subscription.Action {
	before := h.sub.State
	actions := subscription.Transition(h.sub, ev)
	if after := h.sub.State; before != after {
		c.auditTransition(audit.MachineSubscription, h.sub.ID, before.String(), after.String())
	}
	return actions
}

func (c *Client) auditTransition(machine audit.Machine, entityID, from, to string) {
	if c.deps == nil || c.deps.Audit == nil {
		return
	}
	store := c.deps.Audit
	logger := c.logger
	go func() {
		if err := store.Log(context.Background(), machine, entityID, from, to, nil); err != nil {
			logger.Warn("audit log failed", slog.String("err", err.Error()))
		}
	}()
}

func (c *Client) loadCachedPosition(h *subscriptionHandle) {
	if h.sub.Position != "" || h.sub.DeliveryMode == subscription.Simple {
		return
	}
	if c.deps == nil || c.deps.Position == nil {
		return
	}
	ctx, cancel := context.WithTimeout(c.ctx, 2*time.Second)
	defer cancel()
	if pos, ok, err := c.deps.Position.Load(ctx, h.sub.ID); err == nil && ok {
		h.sub.Position = pos
	}
}

func (c *Client) cachePosition(subID, pos string) {
	if pos == "" || c.deps == nil || c.deps.Position == nil {
		return
	}
	pc := c.deps.Position
	logger := c.logger
	go func() {
		if err := pc.Store(context.Background(), subID, pos, 24*time.Hour); err != nil {
			logger.Warn("position cache store failed", slog.String("err", err.Error()))
		}
	}()
}

func (c *Client) clearCachedPosition(subID string) {
	if c.deps == nil || c.deps.Position == nil {
		return
	}
	pc := c.deps.Position
	logger := c.logger
	go func() {
		if err := pc.Clear(context.Background(), subID); err != nil {
			logger.Warn("position cache clear failed", slog.String("err", err.Error()))
		}
	}()
}

func (c *Client) archiveFrame(subID string, body map[string]interface{}) {
	if c.deps == nil || c.deps.Archive == nil {
		return
	}
	data, err := json.Marshal(body)
	if err != nil {
		return
	}
	ac := c.deps.Archive
	logger := c.logger
	now := time.Now()
	go func() {
		if err := ac.WriteFrame(context.Background(), subID, now, data); err != nil {
			logger.Warn("archive write failed", slog.String("err", err.Error()))
		}
	}()
}
