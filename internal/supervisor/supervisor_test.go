package supervisor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func kindsOf(actions []Action) []ActionKind {
	out := make([]ActionKind, len(actions))
	for i, a := range actions {
		out[i] = a.Kind
	}
	return out
}

func TestStartDialsFromStopped(t *testing.T) {
	m := New(DefaultPolicy())
	actions := m.Transition(EventStart)

	assert.Equal(t, Connecting, m.State)
	assert.Contains(t, kindsOf(actions), ActionDial)
}

func TestConnectSucceededResetsFailCount(t *testing.T) {
	m := New(DefaultPolicy())
	m.Transition(EventStart)
	m.FailCount = 3
	actions := m.Transition(EventConnectSucceeded)

	assert.Equal(t, Connected, m.State)
	assert.Equal(t, 0, m.FailCount)
	assert.Contains(t, kindsOf(actions), ActionEnterConnected)
}

// TestBackoffDoublesAndCaps exercises testable property 8: successive
// failed connects double the delay up to max_reconnect_interval.
func TestBackoffDoublesAndCaps(t *testing.T) {
	policy := Policy{BaseInterval: time.Second, MaxInterval: 8 * time.Second}
	m := New(policy)
	m.Transition(EventStart)

	var delays []time.Duration
	for i := 0; i < 6; i++ {
		for _, a := range m.Transition(EventConnectFailed) {
			if a.Kind == ActionScheduleReconnect {
				delays = append(delays, a.Delay)
			}
		}
		m.Transition(EventReconnectTick) // back to Connecting for the next failed attempt
	}

	require.Len(t, delays, 6)
	for i := 1; i < len(delays); i++ {
		assert.LessOrEqual(t, delays[i-1], delays[i], "delays must be monotonically non-decreasing")
	}
	for _, d := range delays {
		assert.LessOrEqual(t, d, policy.MaxInterval)
	}
	assert.Equal(t, policy.MaxInterval, delays[len(delays)-1])
}

func TestFailCountThresholdDropsToStopped(t *testing.T) {
	policy := Policy{BaseInterval: time.Second, MaxInterval: 10 * time.Second, FailCountThreshold: 2}
	m := New(policy)
	m.Transition(EventStart)
	m.Transition(EventConnectFailed)
	assert.Equal(t, Awaiting, m.State)

	m.Transition(EventReconnectTick)
	actions := m.Transition(EventConnectFailed)
	assert.Equal(t, Stopped, m.State)
	assert.Contains(t, kindsOf(actions), ActionFireEnterState)
}

func TestConnectionLostFromConnectedSchedulesReconnect(t *testing.T) {
	m := New(DefaultPolicy())
	m.Transition(EventStart)
	m.Transition(EventConnectSucceeded)

	actions := m.Transition(EventConnectionLost)
	assert.Equal(t, Awaiting, m.State)
	assert.Contains(t, kindsOf(actions), ActionScheduleReconnect)
	assert.Contains(t, kindsOf(actions), ActionCloseConnection)
}

// TestDisposeIsIdempotent exercises testable property 6.
func TestDisposeIsIdempotent(t *testing.T) {
	m := New(DefaultPolicy())
	m.Transition(EventStart)
	m.Transition(EventConnectSucceeded)

	actions := m.Transition(EventDispose)
	assert.Equal(t, Disposed, m.State)
	assert.Contains(t, kindsOf(actions), ActionFireDisposed)

	actions = m.Transition(EventDispose)
	assert.Empty(t, actions, "a second Dispose must be a no-op")
	assert.Equal(t, Disposed, m.State)
}

func TestStopFromAwaitingReturnsToStopped(t *testing.T) {
	m := New(DefaultPolicy())
	m.Transition(EventStart)
	m.Transition(EventConnectFailed)
	require.Equal(t, Awaiting, m.State)

	m.Transition(EventStop)
	assert.Equal(t, Stopped, m.State)
}
