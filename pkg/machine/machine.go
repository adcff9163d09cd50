// Package machine is a tiny generic state machine. The scan engine uses it
// to enforce that reconciliation stages run in order.
package machine

import "errors"

type State interface {
	~string
}

// Allowable maps where a from state is allowed to transition to
type Allowable[S State] struct {
	from S
	to   []S
}

// StateMachine tracks a current state and its allowed transitions.
type StateMachine[S State] struct {
	current  S
	toStates []Allowable[S]
}

var (
	ErrInvalidTransition = errors.New("invalid state transition")
)

// TransitionBuilder helps in creating a from-to relationship for state transitions
type TransitionBuilder[S State] struct {
	transition Allowable[S]
}

func New[S State](currentState S, transitions ...Allowable[S]) *StateMachine[S] {
	return &StateMachine[S]{current: currentState, toStates: transitions}
}

// From initializes a transition from a specific state
func From[S State](from S) *TransitionBuilder[S] {
	return &TransitionBuilder[S]{transition: Allowable[S]{from: from}}
}

// To sets the possible destination states and returns the configured transition
func (tb *TransitionBuilder[S]) To(to ...S) Allowable[S] {
	tb.transition.to = to
	return tb.transition
}

// Current returns the machine's current state.
func (m *StateMachine[S]) Current() S {
	return m.current
}

// CanTransition reports whether the current state may move to s.
func (m *StateMachine[S]) CanTransition(s S) error {
	for _, transition := range m.toStates {
		if transition.from != m.current {
			continue
		}

		for _, to := range transition.to {
			if to == s {
				return nil
			}
		}
	}

	return ErrInvalidTransition
}

// Transition advances the machine to s if the move is allowed.
func (m *StateMachine[S]) Transition(s S) error {
	if err := m.CanTransition(s); err != nil {
		return err
	}

	m.current = s
	return nil
}
