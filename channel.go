package rtmclient

import "github.com/satori-rtm/rtmclient/internal/subscription"

// subscriptionHandle bundles the pure subscription state record with the
// observer the application registered for it. It is owned exclusively by
// the event-loop goroutine (spec.md section 5).
type subscriptionHandle struct {
	sub      *subscription.Subscription
	observer SubscriptionObserver
}

// subObserverAdapter bridges the public, string-keyed SubscriptionObserver
// to internal/subscription's State-typed Observer so the facade never
// exposes internal/subscription's types.
type subObserverAdapter struct {
	obs SubscriptionObserver
}

func (a subObserverAdapter) OnCreated() {
	if a.obs != nil {
		a.obs.OnCreated()
	}
}

func (a subObserverAdapter) OnDeleted() {
	if a.obs != nil {
		a.obs.OnDeleted()
	}
}

func (a subObserverAdapter) OnEnterState(s subscription.State) {
	if a.obs != nil {
		a.obs.OnEnterState(s.String())
	}
}

func (a subObserverAdapter) OnLeaveState(s subscription.State) {
	if a.obs != nil {
		a.obs.OnLeaveState(s.String())
	}
}

func (a subObserverAdapter) OnEnterFailed(reason string) {
	if a.obs != nil {
		a.obs.OnEnterFailed(reason)
	}
}

func (a subObserverAdapter) OnSubscriptionData(messages []interface{}, position string) {
	if a.obs != nil {
		a.obs.OnSubscriptionData(messages, position)
	}
}

func (a subObserverAdapter) OnSubscriptionError(code, reason string) {
	if a.obs != nil {
		a.obs.OnSubscriptionError(code, reason)
	}
}

var _ subscription.Observer = subObserverAdapter{}

// dispatch runs subscription.Dispatch against h's observer, adapting it
// on the fly.
func (h *subscriptionHandle) dispatch(actions []subscription.Action) {
	subscription.Dispatch(subObserverAdapter{h.observer}, actions)
}

// dispatchSubscriptionActions runs actions against h's observer, handling
// the one case h.dispatch cannot: an observer-swap cycle (spec.md section
// 4.2, "Observer swap semantics"), where ActionFireDeleted belongs to the
// outgoing observer and ActionFireCreated plus everything after it belongs
// to the incoming one. subscription.Dispatch takes a single fixed Observer
// per call, so a swap batch is walked action-by-action here instead.
func (c *Client) dispatchSubscriptionActions(h *subscriptionHandle, actions []subscription.Action) {
	swap := false
	for _, a := range actions {
		if a.Kind == subscription.ActionFireCreated {
			swap = true
			break
		}
	}
	if !swap {
		h.dispatch(actions)
		return
	}

	outgoing := h.observer
	incoming, _ := h.sub.Observer.(SubscriptionObserver)
	for _, a := range actions {
		switch a.Kind {
		case subscription.ActionFireDeleted:
			if outgoing != nil {
				outgoing.OnDeleted()
			}
		case subscription.ActionFireCreated:
			h.observer = incoming
			if incoming != nil {
				incoming.OnCreated()
			}
		case subscription.ActionFireEnterState:
			if h.observer != nil {
				h.observer.OnEnterState(a.State.String())
			}
		case subscription.ActionFireLeaveState:
			if h.observer != nil {
				h.observer.OnLeaveState(a.State.String())
			}
		case subscription.ActionFireFailed:
			if h.observer != nil {
				h.observer.OnEnterFailed(a.Reason)
			}
		}
	}
}
