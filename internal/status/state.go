// Package status tracks the connection state of the sync loop.
package status

import (
	"fmt"
	"slices"
	"sync"

	"github.com/matheus3301/typec/internal/bus"
)

// State is a connection state of the sync loop.
type State string

const (
	Booting      State = "BOOTING"
	Connecting   State = "CONNECTING"
	Prepared     State = "PREPARED" // first sync response processed
	Syncing      State = "SYNCING"  // live incremental sync
	Reconnecting State = "RECONNECTING"
	Stopped      State = "STOPPED"
	Error        State = "ERROR"
)

var validTransitions = map[State][]State{
	Booting:      {Connecting, Error},
	Connecting:   {Prepared, Syncing, Reconnecting, Stopped, Error},
	Prepared:     {Syncing, Reconnecting, Stopped, Error},
	Syncing:      {Reconnecting, Stopped, Error},
	Reconnecting: {Connecting, Stopped, Error},
	Stopped:      {Connecting},
	Error:        {Booting, Connecting},
}

// Online reports whether the client is receiving sync responses.
func (s State) Online() bool {
	return s == Prepared || s == Syncing
}

// Machine tracks and enforces connection state transitions.
type Machine struct {
	mu      sync.RWMutex
	current State
	reason  string
	bus     *bus.Bus
}

// NewMachine creates a new state machine starting in Booting state.
func NewMachine(b *bus.Bus) *Machine {
	return &Machine{current: Booting, bus: b}
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Reason returns the detail recorded with the last transition, such as the
// error that caused a reconnect.
func (m *Machine) Reason() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.reason
}

// Transition attempts to move to a new state. Returns error if transition is invalid.
func (m *Machine) Transition(to State) error {
	return m.TransitionWithReason(to, "")
}

// TransitionWithReason is Transition with a detail for status displays.
func (m *Machine) TransitionWithReason(to State, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !slices.Contains(validTransitions[m.current], to) {
		return fmt.Errorf("invalid transition from %s to %s", m.current, to)
	}
	from := m.current
	m.current = to
	m.reason = reason
	if m.bus != nil {
		m.bus.Publish(bus.NewEvent(bus.SessionStatus, StatusChange{From: from, To: to, Reason: reason}))
	}
	return nil
}

// StatusChange is the payload for status change events.
type StatusChange struct {
	From   State
	To     State
	Reason string
}
