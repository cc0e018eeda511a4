package rtmclient

import (
	"github.com/satori-rtm/rtmclient/internal/auth"
)

// The types below are the concrete Action values pushed onto the
// actionqueue.Queue (spec.md section 4.4). The event loop's run() method
// type-switches over them -- the mechanical "generated enum" dispatch
// spec.md section 9 asks for, not reflection or dynamic lookup.

// --- Internal signals (PushInternal; can never fail to enqueue) ---

type actionStart struct{ result chan error }

type actionDialResult struct {
	conn *connWrapper
	err  error
}

type actionConnectionLost struct {
	conn *connWrapper
	err  error
}

type actionReconnectTick struct{}

type actionStop struct{ done chan struct{} }

type actionDispose struct{ done chan struct{} }

type subEventKind int

const (
	subEventData subEventKind = iota
	subEventError
	subEventFastForward
)

type actionSubscriptionEvent struct {
	subscriptionID string
	kind           subEventKind
	body           map[string]interface{}
}

type actionSubscribeReply struct {
	subscriptionID string
	ok             bool
	body           map[string]interface{}
}

type actionUnsubscribeReply struct {
	subscriptionID string
	ok             bool
}

// actionAuthResult carries an auth.Delegate flow's outcome back onto the
// event-loop thread, since a successful outcome mutates Client.authenticated
// (shared state) even though the flow itself runs on the connection's
// goroutine.
type actionAuthResult struct {
	err error
	cb  func(error)
}

// --- User-originated actions (PushUser; soft-bounded by MaxQueueSize) ---

type actionPublish struct {
	channel string
	message interface{}
	cb      func(error)
}

type actionSubscribe struct {
	channel  string
	mode     DeliveryMode
	args     map[string]interface{}
	observer SubscriptionObserver
	result   chan error
}

type actionUnsubscribe struct {
	channel string
	cb      func(error)
}

type actionRead struct {
	channel string
	args    map[string]interface{}
	cb      func(interface{}, error)
}

type actionWrite struct {
	channel string
	value   interface{}
	cb      func(error)
}

type actionDelete struct {
	channel string
	cb      func(error)
}

type actionAuthenticate struct {
	delegate auth.Delegate
	cb       func(error)
}

type actionSearch struct {
	prefix string
	cb     func(channels []string, done bool, err error)
}

type actionSendRaw struct {
	action string
	body   interface{}
	cb     func(map[string]interface{}, error)
}
