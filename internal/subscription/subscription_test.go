package subscription

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func kindsOf(actions []Action) []ActionKind {
	kinds := make([]ActionKind, len(actions))
	for i, a := range actions {
		kinds[i] = a.Kind
	}
	return kinds
}

func TestConnectSendsSubscribeWithFastForward(t *testing.T) {
	s := &Subscription{ID: "ch", State: Unsubscribed, DeliveryMode: Simple}
	actions := Transition(s, Event{Kind: EventConnect})

	require.Equal(t, Subscribing, s.State)
	assert.Contains(t, kindsOf(actions), ActionSendSubscribe)
	assert.Equal(t, true, s.Args["fast_forward"])
}

func TestAdvancedModeOmitsFastForward(t *testing.T) {
	s := &Subscription{ID: "ch", State: Unsubscribed, DeliveryMode: Advanced}
	Transition(s, Event{Kind: EventConnect})

	_, present := s.Args["fast_forward"]
	assert.False(t, present, "fast_forward must be absent for Advanced delivery mode")
}

func TestSubscribeOKUpdatesPositionWhenTracked(t *testing.T) {
	s := &Subscription{ID: "ch", State: Subscribing, DeliveryMode: Reliable}
	Transition(s, Event{Kind: EventSubscribeOK, Position: "p1"})

	assert.Equal(t, Subscribed, s.State)
	assert.Equal(t, "p1", s.Position)
}

func TestSubscribeOKIgnoresPositionWhenNotTracked(t *testing.T) {
	s := &Subscription{ID: "ch", State: Subscribing, DeliveryMode: Simple}
	Transition(s, Event{Kind: EventSubscribeOK, Position: "p1"})

	assert.Equal(t, Subscribed, s.State)
	assert.Equal(t, "", s.Position)
}

// TestOutOfSyncUnderAdvancedReachesFailed exercises S2 from spec.md section 8:
// subscribe(ch, Advanced, {position: "bogus"}); the subscription must reach
// Failed with a latched reason, position cleared, and unsubscribe then moves
// it to Deleted.
func TestOutOfSyncUnderAdvancedReachesFailed(t *testing.T) {
	s := &Subscription{ID: "ch", State: Subscribed, DeliveryMode: Advanced, Position: "bogus"}
	actions := Transition(s, Event{Kind: EventChannelError, ErrorCode: "out_of_sync", ErrorReason: "out of sync"})

	require.Equal(t, Failed, s.State)
	assert.Equal(t, "", s.Position, "position must be cleared on out_of_sync")
	assert.Equal(t, "out of sync", s.LastError)
	assert.Contains(t, kindsOf(actions), ActionFireFailed)

	actions = transitionUserUnsubscribe(s, Event{Kind: EventUserUnsubscribe})
	assert.Equal(t, Deleted, s.State)
	assert.Contains(t, kindsOf(actions), ActionFireDeleted)
}

func TestNonFatalChannelErrorRecyclesToSubscribing(t *testing.T) {
	s := &Subscription{ID: "ch", State: Subscribed, DeliveryMode: Reliable, Position: "p1"}
	actions := Transition(s, Event{Kind: EventChannelError, ErrorCode: "some_other_error", ErrorReason: "transient"})

	assert.Equal(t, Subscribing, s.State)
	assert.Equal(t, "p1", s.Position, "position survives a recoverable channel error")
	assert.Contains(t, kindsOf(actions), ActionSendSubscribe)
}

// TestResubscribeWhileSubscribedCycles exercises testable property 2: a user
// subscribe issued while a subscription already exists never sends an
// overlapping rtm/subscribe; it queues a cycle instead.
func TestResubscribeWhileSubscribedCycles(t *testing.T) {
	s := &Subscription{ID: "ch", State: Subscribed, DeliveryMode: Simple, Observer: "old"}
	actions := transitionUserSubscribe(s, Event{Kind: EventUserSubscribe, NextObserver: "new"})

	assert.Equal(t, Unsubscribing, s.State, "must unsubscribe first, not send an overlapping subscribe")
	assert.Equal(t, ModeCycle, s.Mode)
	require.NotNil(t, s.Retarget)
	assert.Equal(t, "new", s.Retarget.Observer)
	assert.Contains(t, kindsOf(actions), ActionSendUnsubscribe)
	assert.NotContains(t, kindsOf(actions), ActionSendSubscribe)
}

func TestUnsubscribeOKCycleSwapsObserverAndResubscribes(t *testing.T) {
	s := &Subscription{ID: "ch", State: Unsubscribing, Mode: ModeCycle, Observer: "old",
		Retarget: &Retarget{Observer: "new", Args: map[string]interface{}{"k": "v"}}}

	actions := Transition(s, Event{Kind: EventUnsubscribeOK})

	assert.Equal(t, Subscribing, s.State)
	assert.Equal(t, ModeLinked, s.Mode)
	assert.Equal(t, "new", s.Observer)
	assert.Nil(t, s.Retarget)
	kinds := kindsOf(actions)
	assert.Contains(t, kinds, ActionFireDeleted)
	assert.Contains(t, kinds, ActionFireCreated)
	assert.Contains(t, kinds, ActionSendSubscribe)
}

func TestUnsubscribeOKUnlinkedReachesDeleted(t *testing.T) {
	s := &Subscription{ID: "ch", State: Unsubscribing, Mode: ModeUnlinked}
	actions := Transition(s, Event{Kind: EventUnsubscribeOK})

	assert.Equal(t, Deleted, s.State)
	assert.Contains(t, kindsOf(actions), ActionFireDeleted)
}

func TestUnsubscribeErrorRemainsSubscribed(t *testing.T) {
	s := &Subscription{ID: "ch", State: Unsubscribing, Mode: ModeCycle}
	Transition(s, Event{Kind: EventUnsubscribeError})

	assert.Equal(t, Subscribed, s.State, "open question 1: on UnsubscribeError in cycle mode, remain subscribed")
	assert.Equal(t, ModeLinked, s.Mode)
}

func TestDisconnectReturnsToUnsubscribedWithoutSendingUnsubscribe(t *testing.T) {
	s := &Subscription{ID: "ch", State: Subscribed, DeliveryMode: Reliable, Position: "p1"}
	actions := Transition(s, Event{Kind: EventDisconnect})

	assert.Equal(t, Unsubscribed, s.State)
	assert.Equal(t, "p1", s.Position, "disconnect does not clear position; only out_of_sync does")
	assert.NotContains(t, kindsOf(actions), ActionSendUnsubscribe)
}

func TestDisconnectFromFailedOrDeletedIsNoop(t *testing.T) {
	s := &Subscription{ID: "ch", State: Failed}
	actions := Transition(s, Event{Kind: EventDisconnect})
	assert.Equal(t, Failed, s.State)
	assert.Empty(t, actions)
}

func TestFailedUnsubscribeGoesToDeleted(t *testing.T) {
	s := &Subscription{ID: "ch", State: Failed}
	actions := transitionUserUnsubscribe(s, Event{Kind: EventUserUnsubscribe})
	assert.Equal(t, Deleted, s.State)
	assert.Contains(t, kindsOf(actions), ActionFireDeleted)
}
