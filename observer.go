package rtmclient

// ClientObserver receives the Client Supervisor's lifecycle callbacks
// (spec.md section 4.3, 6): optional on_enter_*/on_leave_* for each
// supervisor state, the terminal on_enter_disposed, and the two
// connection-scoped events on_fast_forward and on_internal_error. Every
// method has a no-op default via NoopClientObserver; embed it to implement
// only the callbacks a caller cares about.
type ClientObserver interface {
	OnEnterStopped()
	OnLeaveStopped()
	OnEnterConnecting()
	OnLeaveConnecting()
	OnEnterConnected()
	OnLeaveConnected()
	OnEnterAwaiting()
	OnLeaveAwaiting()
	OnEnterStopping()
	OnLeaveStopping()
	OnEnterDisposed()

	// OnFastForward fires when the server reports a subscription skipped
	// ahead over a gap instead of replaying it (spec.md section 4.2).
	OnFastForward(channel string)
	// OnInternalError fires for protocol violations and transport failures
	// that are not attributable to any single in-flight request (spec.md
	// section 4, "Propagation policy").
	OnInternalError(err error)
}

// NoopClientObserver implements ClientObserver with no-op methods. Embed it
// in a caller's observer type to override only what is needed.
type NoopClientObserver struct{}

func (NoopClientObserver) OnEnterStopped()      {}
func (NoopClientObserver) OnLeaveStopped()      {}
func (NoopClientObserver) OnEnterConnecting()   {}
func (NoopClientObserver) OnLeaveConnecting()   {}
func (NoopClientObserver) OnEnterConnected()    {}
func (NoopClientObserver) OnLeaveConnected()    {}
func (NoopClientObserver) OnEnterAwaiting()     {}
func (NoopClientObserver) OnLeaveAwaiting()     {}
func (NoopClientObserver) OnEnterStopping()     {}
func (NoopClientObserver) OnLeaveStopping()     {}
func (NoopClientObserver) OnEnterDisposed()     {}
func (NoopClientObserver) OnFastForward(string) {}
func (NoopClientObserver) OnInternalError(error) {}

// SubscriptionObserver receives per-channel subscription callbacks (spec.md
// section 4.2, 6): creation/deletion, state transitions (named by string so
// callers never need internal/subscription's State type), the terminal
// failure reason, and the data/error callbacks applications actually care
// about.
type SubscriptionObserver interface {
	OnCreated()
	OnDeleted()
	OnEnterState(state string)
	OnLeaveState(state string)
	OnEnterFailed(reason string)
	OnSubscriptionData(messages []interface{}, position string)
	OnSubscriptionError(code, reason string)
}

// NoopSubscriptionObserver implements SubscriptionObserver with no-op
// methods.
type NoopSubscriptionObserver struct{}

func (NoopSubscriptionObserver) OnCreated()                                   {}
func (NoopSubscriptionObserver) OnDeleted()                                   {}
func (NoopSubscriptionObserver) OnEnterState(string)                          {}
func (NoopSubscriptionObserver) OnLeaveState(string)                          {}
func (NoopSubscriptionObserver) OnEnterFailed(string)                         {}
func (NoopSubscriptionObserver) OnSubscriptionData(messages []interface{}, position string) {}
func (NoopSubscriptionObserver) OnSubscriptionError(code, reason string)      {}
