// Package supervisor implements the Client Supervisor state machine
// (spec.md section 4.3): the outer lifecycle Stopped/Connecting/Connected/
// Awaiting/Stopping/Disposed. Machine is a pure state holder: it decides
// whether and when to reconnect and returns the actions to perform. The
// client event loop (loop.go in the root package) owns the Connection and
// the Subscriptions, re-applies authentication and subscriptions after
// reconnect, and drains the offline queue.
package supervisor

import (
	"time"
)

// State is one node of the supervisor lifecycle.
type State int

const (
	Stopped State = iota
	Connecting
	Connected
	Awaiting
	Stopping
	Disposed
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Awaiting:
		return "awaiting"
	case Stopping:
		return "stopping"
	case Disposed:
		return "disposed"
	default:
		return "unknown"
	}
}

// Policy bundles the reconnect-backoff parameters (spec.md section 4.3).
type Policy struct {
	BaseInterval       time.Duration
	MaxInterval        time.Duration
	FailCountThreshold int // 0 means unlimited
}

// DefaultPolicy matches the reference implementation's defaults.
func DefaultPolicy() Policy {
	return Policy{
		BaseInterval:       1 * time.Second,
		MaxInterval:        120 * time.Second,
		FailCountThreshold: 0,
	}
}

// NextDelay computes min(base*2^failCount, max) (spec.md section 4.3,
// "Reconnection policy"), matching testable property 8 (monotonically
// doubling back-off with a ceiling).
func (p Policy) NextDelay(failCount int) time.Duration {
	if failCount < 0 {
		failCount = 0
	}
	delay := p.BaseInterval
	for i := 0; i < failCount; i++ {
		delay *= 2
		if delay >= p.MaxInterval {
			return p.MaxInterval
		}
	}
	if delay > p.MaxInterval {
		return p.MaxInterval
	}
	return delay
}

// ShouldDropToStopped reports whether failCount has reached the configured
// threshold, in which case the supervisor gives up reconnecting entirely
// (spec.md section 4.3).
func (p Policy) ShouldDropToStopped(failCount int) bool {
	return p.FailCountThreshold > 0 && failCount >= p.FailCountThreshold
}

// Machine is the pure state holder driven by Transition. Side effects
// (dialing, closing, timers) are the caller's responsibility; Machine only
// tracks State and FailCount and tells the caller what to do next via the
// returned Actions.
type Machine struct {
	State     State
	FailCount int
	policy    Policy
}

// New creates a Machine in the Stopped state.
func New(policy Policy) *Machine {
	return &Machine{State: Stopped, policy: policy}
}

// EventKind enumerates supervisor-level inputs.
type EventKind int

const (
	EventStart EventKind = iota
	EventConnectSucceeded
	EventConnectFailed
	EventConnectionLost
	EventReconnectTick
	EventStop
	EventDispose
)

// ActionKind enumerates side effects the caller must perform.
type ActionKind int

const (
	ActionDial ActionKind = iota
	ActionScheduleReconnect
	ActionEnterConnected
	ActionCloseConnection
	ActionFireEnterState
	ActionFireLeaveState
	ActionFireDisposed
)

// Action is one instruction produced by Transition.
type Action struct {
	Kind  ActionKind
	State State
	Delay time.Duration
}

func enter(s State) Action { return Action{Kind: ActionFireEnterState, State: s} }
func leave(s State) Action { return Action{Kind: ActionFireLeaveState, State: s} }

// Transition advances m according to ev, mutating m.State/m.FailCount in
// place, and returns the actions the caller must perform.
func (m *Machine) Transition(ev EventKind) []Action {
	from := m.State
	var actions []Action

	switch ev {
	case EventStart:
		if m.State == Stopped {
			m.State = Connecting
			actions = append(actions, leave(from), enter(Connecting), Action{Kind: ActionDial})
		}

	case EventConnectSucceeded:
		if m.State == Connecting {
			m.FailCount = 0
			m.State = Connected
			actions = append(actions, leave(from), enter(Connected), Action{Kind: ActionEnterConnected})
		}

	case EventConnectFailed:
		if m.State == Connecting {
			m.FailCount++
			if m.policy.ShouldDropToStopped(m.FailCount) {
				m.State = Stopped
				actions = append(actions, leave(from), enter(Stopped))
			} else {
				m.State = Awaiting
				delay := m.policy.NextDelay(m.FailCount - 1)
				actions = append(actions, leave(from), enter(Awaiting), Action{Kind: ActionScheduleReconnect, Delay: delay})
			}
		}

	case EventConnectionLost:
		if m.State == Connected {
			m.FailCount++
			if m.policy.ShouldDropToStopped(m.FailCount) {
				m.State = Stopped
				actions = append(actions, leave(from), Action{Kind: ActionCloseConnection}, enter(Stopped))
			} else {
				m.State = Awaiting
				delay := m.policy.NextDelay(m.FailCount - 1)
				actions = append(actions, leave(from), Action{Kind: ActionCloseConnection}, enter(Awaiting), Action{Kind: ActionScheduleReconnect, Delay: delay})
			}
		}

	case EventReconnectTick:
		if m.State == Awaiting {
			m.State = Connecting
			actions = append(actions, leave(from), enter(Connecting), Action{Kind: ActionDial})
		}

	case EventStop:
		switch m.State {
		case Connecting, Connected, Awaiting:
			m.State = Stopped
			actions = append(actions, leave(from), Action{Kind: ActionCloseConnection}, enter(Stopped))
		}

	case EventDispose:
		if m.State != Disposed {
			m.State = Disposed
			actions = append(actions, leave(from), Action{Kind: ActionCloseConnection}, enter(Disposed), Action{Kind: ActionFireDisposed})
		}
	}

	return actions
}
