package subscription

// Observer is the capability set an application may implement to receive
// subscription callbacks (spec.md section 6). Every method is optional;
// embed NoopObserver to get no-op defaults instead of implementing all of
// them, replacing the source's dynamic on_enter_*/on_leave_* attribute
// lookup with an explicit interface (spec.md section 9).
type Observer interface {
	OnCreated()
	OnDeleted()
	OnEnterState(State)
	OnLeaveState(State)
	OnEnterFailed(reason string)
	OnSubscriptionData(messages []interface{}, position string)
	OnSubscriptionError(code, reason string)
}

// NoopObserver implements Observer with no-op methods. Embed it in a
// partial observer to override only the callbacks that matter.
type NoopObserver struct{}

func (NoopObserver) OnCreated()                                               {}
func (NoopObserver) OnDeleted()                                               {}
func (NoopObserver) OnEnterState(State)                                       {}
func (NoopObserver) OnLeaveState(State)                                       {}
func (NoopObserver) OnEnterFailed(string)                                     {}
func (NoopObserver) OnSubscriptionData(messages []interface{}, position string) {}
func (NoopObserver) OnSubscriptionError(code, reason string)                  {}

var _ Observer = NoopObserver{}

// Dispatch runs the side effects Transition produced against an Observer.
// It is the mechanical state-to-callback mapping spec.md section 9 asks
// for: a switch over the action kind, not attribute lookup.
func Dispatch(obs Observer, actions []Action) {
	if obs == nil {
		return
	}
	for _, a := range actions {
		switch a.Kind {
		case ActionFireCreated:
			obs.OnCreated()
		case ActionFireDeleted:
			obs.OnDeleted()
		case ActionFireEnterState:
			obs.OnEnterState(a.State)
		case ActionFireLeaveState:
			obs.OnLeaveState(a.State)
		case ActionFireFailed:
			obs.OnEnterFailed(a.Reason)
		}
	}
}
