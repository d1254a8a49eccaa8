package workflow

import (
	"context"
	"fmt"
	"sort"
)

// GuardFunc is a function that evaluates whether a transition should be allowed
type GuardFunc func(ctx context.Context) bool

// StateMachineBuilder builds a configured state machine
type StateMachineBuilder[S State] interface {
	// Configure returns a state configuration for the given state
	Configure(state S) StateConfiguration[S]

	// Build creates a new state machine instance with the given initial state
	Build(initialState S) StateMachine[S]
}

// StateConfiguration configures transitions for a specific state
type StateConfiguration[S State] interface {
	// Permit allows a trigger to transition to the target state
	Permit(trigger Trigger, toState S) StateConfiguration[S]

	// PermitIf allows a trigger to transition to the target state if the guard condition passes
	PermitIf(trigger Trigger, toState S, guard GuardFunc) StateConfiguration[S]
}

type transition[S State] struct {
	toState S
	guard   GuardFunc
}

type stateConfig[S State] struct {
	fromState   S
	transitions map[Trigger][]transition[S]
}

type stateMachineBuilder[S State] struct {
	configurations map[S]*stateConfig[S]
}

type stateMachine[S State] struct {
	currentState   S
	configurations map[S]*stateConfig[S]
}

// NewBuilder creates a new state machine builder
func NewBuilder[S State]() StateMachineBuilder[S] {
	return &stateMachineBuilder[S]{
		configurations: make(map[S]*stateConfig[S]),
	}
}

func (b *stateMachineBuilder[S]) Configure(state S) StateConfiguration[S] {
	if !state.IsValid() {
		panic(fmt.Sprintf("invalid state: %s", string(state)))
	}

	config, exists := b.configurations[state]
	if !exists {
		config = &stateConfig[S]{
			fromState:   state,
			transitions: make(map[Trigger][]transition[S]),
		}
		b.configurations[state] = config
	}

	return config
}

func (b *stateMachineBuilder[S]) Build(initialState S) StateMachine[S] {
	if !initialState.IsValid() {
		panic(fmt.Sprintf("invalid initial state: %s", string(initialState)))
	}

	// Machines never see later Configure calls on the builder
	configsCopy := make(map[S]*stateConfig[S], len(b.configurations))
	for state, config := range b.configurations {
		transitionsCopy := make(map[Trigger][]transition[S], len(config.transitions))
		for trigger, transitions := range config.transitions {
			transitionsCopy[trigger] = append([]transition[S]{}, transitions...)
		}
		configsCopy[state] = &stateConfig[S]{
			fromState:   state,
			transitions: transitionsCopy,
		}
	}

	return &stateMachine[S]{
		currentState:   initialState,
		configurations: configsCopy,
	}
}

func (c *stateConfig[S]) Permit(trigger Trigger, toState S) StateConfiguration[S] {
	return c.PermitIf(trigger, toState, nil)
}

func (c *stateConfig[S]) PermitIf(trigger Trigger, toState S, guard GuardFunc) StateConfiguration[S] {
	if !toState.IsValid() {
		panic(fmt.Sprintf("invalid target state: %s", string(toState)))
	}

	c.transitions[trigger] = append(c.transitions[trigger], transition[S]{
		toState: toState,
		guard:   guard,
	})

	return c
}

func (m *stateMachine[S]) State() S {
	return m.currentState
}

func (m *stateMachine[S]) transitionsFor(trigger Trigger) []transition[S] {
	config, exists := m.configurations[m.currentState]
	if !exists {
		return nil
	}
	return config.transitions[trigger]
}

// CanFire does not evaluate guards; it only checks that a transition exists
func (m *stateMachine[S]) CanFire(trigger Trigger) bool {
	return len(m.transitionsFor(trigger)) > 0
}

func (m *stateMachine[S]) CanFireTo(trigger Trigger, to S) bool {
	for _, t := range m.transitionsFor(trigger) {
		if t.toState == to {
			return true
		}
	}
	return false
}

func (m *stateMachine[S]) Fire(ctx context.Context, trigger Trigger) error {
	transitions := m.transitionsFor(trigger)
	if len(transitions) == 0 {
		return fmt.Errorf("%w: cannot fire %s from state %s", ErrInvalidTransition, trigger, string(m.currentState))
	}

	for _, t := range transitions {
		if t.guard == nil || t.guard(ctx) {
			m.currentState = t.toState
			return nil
		}
	}

	return fmt.Errorf("%w: trigger %s from state %s", ErrGuardFailed, trigger, string(m.currentState))
}

func (m *stateMachine[S]) FireTo(ctx context.Context, trigger Trigger, to S) error {
	matched := false
	for _, t := range m.transitionsFor(trigger) {
		if t.toState != to {
			continue
		}
		matched = true
		if t.guard == nil || t.guard(ctx) {
			m.currentState = t.toState
			return nil
		}
	}

	if !matched {
		return fmt.Errorf("%w: cannot fire %s from state %s to %s", ErrInvalidTransition, trigger, string(m.currentState), string(to))
	}
	return fmt.Errorf("%w: trigger %s from state %s to %s", ErrGuardFailed, trigger, string(m.currentState), string(to))
}

// PermittedTriggers returns triggers in a stable order
func (m *stateMachine[S]) PermittedTriggers() []Trigger {
	config, exists := m.configurations[m.currentState]
	if !exists {
		return []Trigger{}
	}

	triggers := make([]Trigger, 0, len(config.transitions))
	for trigger := range config.transitions {
		triggers = append(triggers, trigger)
	}
	sort.Slice(triggers, func(i, j int) bool { return triggers[i] < triggers[j] })

	return triggers
}
