package workflow

import "context"

// StateMachine tracks the current state of one record and validates transitions
type StateMachine[S State] interface {
	// State returns the current state
	State() S

	// CanFire returns true if the trigger is permitted in the current state
	CanFire(trigger Trigger) bool

	// CanFireTo returns true if the trigger may lead to the given state
	CanFireTo(trigger Trigger, to S) bool

	// Fire takes the first permitted transition for the trigger
	Fire(ctx context.Context, trigger Trigger) error

	// FireTo takes the transition for the trigger that ends in the given state
	FireTo(ctx context.Context, trigger Trigger, to S) error

	// PermittedTriggers returns all triggers configured for the current state
	PermittedTriggers() []Trigger
}
