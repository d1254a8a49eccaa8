package workflow

import (
	"context"
	"errors"
	"testing"
)

type testState string

const (
	stOpen     testState = "open"
	stReview   testState = "review"
	stPendingA testState = "pending_a"
	stPendingB testState = "pending_b"
	stDone     testState = "done"
	stRefused  testState = "refused"
)

func (s testState) IsValid() bool {
	switch s {
	case stOpen, stReview, stPendingA, stPendingB, stDone, stRefused:
		return true
	}
	return false
}

type ctxKey string

func TestTrigger_String(t *testing.T) {
	if got := TriggerSubmit.String(); got != "SUBMIT" {
		t.Errorf("Trigger.String() = %v, want %v", got, "SUBMIT")
	}
}

func TestBuilder_Configure(t *testing.T) {
	builder := NewBuilder[testState]()

	config := builder.Configure(stOpen)
	if config == nil {
		t.Fatal("Configure() returned nil")
	}

	if config2 := builder.Configure(stOpen); config != config2 {
		t.Error("Configure() should return same config for same state")
	}
}

func TestBuilder_PanicsOnInvalidStates(t *testing.T) {
	tests := []struct {
		name string
		fn   func(b StateMachineBuilder[testState])
	}{
		{"configure", func(b StateMachineBuilder[testState]) { b.Configure(testState("bogus")) }},
		{"build", func(b StateMachineBuilder[testState]) { b.Build(testState("")) }},
		{"permit", func(b StateMachineBuilder[testState]) {
			b.Configure(stOpen).Permit(TriggerSubmit, testState("bogus"))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				if r := recover(); r == nil {
					t.Errorf("%s should panic on invalid state", tt.name)
				}
			}()
			tt.fn(NewBuilder[testState]())
		})
	}
}

func TestStateConfiguration_Permit(t *testing.T) {
	builder := NewBuilder[testState]()
	builder.Configure(stOpen).Permit(TriggerSubmit, stReview)

	machine := builder.Build(stOpen)

	if !machine.CanFire(TriggerSubmit) {
		t.Error("CanFire() should return true for permitted trigger")
	}
	if err := machine.Fire(context.Background(), TriggerSubmit); err != nil {
		t.Errorf("Fire() failed: %v", err)
	}
	if machine.State() != stReview {
		t.Errorf("State after Fire() = %v, want %v", machine.State(), stReview)
	}
}

func TestStateConfiguration_PermitIf_GuardFails(t *testing.T) {
	builder := NewBuilder[testState]()
	builder.Configure(stOpen).
		PermitIf(TriggerSubmit, stReview, func(ctx context.Context) bool { return false })

	machine := builder.Build(stOpen)

	err := machine.Fire(context.Background(), TriggerSubmit)
	if !errors.Is(err, ErrGuardFailed) {
		t.Errorf("Fire() error = %v, want %v", err, ErrGuardFailed)
	}
	if machine.State() != stOpen {
		t.Errorf("State should remain %v after failed Fire(), got %v", stOpen, machine.State())
	}
}

func TestStateConfiguration_PermitIf_MultipleTransitions(t *testing.T) {
	key := ctxKey("fast")
	builder := NewBuilder[testState]()
	builder.Configure(stOpen).
		PermitIf(TriggerSubmit, stDone, func(ctx context.Context) bool {
			return ctx.Value(key).(bool)
		}).
		PermitIf(TriggerSubmit, stReview, func(ctx context.Context) bool {
			return !ctx.Value(key).(bool)
		})

	machine1 := builder.Build(stOpen)
	if err := machine1.Fire(context.WithValue(context.Background(), key, true), TriggerSubmit); err != nil {
		t.Errorf("Fire() failed: %v", err)
	}
	if machine1.State() != stDone {
		t.Errorf("State after Fire() = %v, want %v", machine1.State(), stDone)
	}

	machine2 := builder.Build(stOpen)
	if err := machine2.Fire(context.WithValue(context.Background(), key, false), TriggerSubmit); err != nil {
		t.Errorf("Fire() failed: %v", err)
	}
	if machine2.State() != stReview {
		t.Errorf("State after Fire() = %v, want %v", machine2.State(), stReview)
	}
}

func TestStateMachine_FireTo(t *testing.T) {
	builder := NewBuilder[testState]()
	for _, from := range []testState{stPendingA, stPendingB} {
		builder.Configure(from).
			Permit(TriggerAdvance, stPendingA).
			Permit(TriggerAdvance, stPendingB).
			Permit(TriggerComplete, stDone)
	}

	machine := builder.Build(stPendingA)

	if !machine.CanFireTo(TriggerAdvance, stPendingB) {
		t.Error("CanFireTo() should allow pending_a -> pending_b")
	}
	if machine.CanFireTo(TriggerAdvance, stRefused) {
		t.Error("CanFireTo() should not allow advance to refused")
	}

	if err := machine.FireTo(context.Background(), TriggerAdvance, stPendingB); err != nil {
		t.Fatalf("FireTo() failed: %v", err)
	}
	if machine.State() != stPendingB {
		t.Errorf("State = %v, want %v", machine.State(), stPendingB)
	}

	err := machine.FireTo(context.Background(), TriggerAdvance, stDone)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("FireTo() error = %v, want %v", err, ErrInvalidTransition)
	}
	if machine.State() != stPendingB {
		t.Errorf("State should remain %v, got %v", stPendingB, machine.State())
	}
}

func TestStateMachine_FireTo_GuardFails(t *testing.T) {
	builder := NewBuilder[testState]()
	builder.Configure(stOpen).
		PermitIf(TriggerSubmit, stReview, func(ctx context.Context) bool { return false })

	machine := builder.Build(stOpen)
	if err := machine.FireTo(context.Background(), TriggerSubmit, stReview); !errors.Is(err, ErrGuardFailed) {
		t.Errorf("FireTo() error = %v, want %v", err, ErrGuardFailed)
	}
}

func TestStateMachine_CanFire(t *testing.T) {
	builder := NewBuilder[testState]()
	builder.Configure(stOpen).Permit(TriggerSubmit, stReview)

	machine := builder.Build(stOpen)

	tests := []struct {
		trigger  Trigger
		expected bool
	}{
		{TriggerSubmit, true},
		{TriggerApprove, false},
		{TriggerReject, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.trigger), func(t *testing.T) {
			if got := machine.CanFire(tt.trigger); got != tt.expected {
				t.Errorf("CanFire() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestStateMachine_Fire_NoConfiguration(t *testing.T) {
	machine := NewBuilder[testState]().Build(stOpen)

	err := machine.Fire(context.Background(), TriggerSubmit)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Fire() error = %v, want %v", err, ErrInvalidTransition)
	}
}

func TestStateMachine_PermittedTriggers(t *testing.T) {
	builder := NewBuilder[testState]()
	builder.Configure(stReview).
		Permit(TriggerReject, stRefused).
		Permit(TriggerApprove, stDone)

	machine := builder.Build(stReview)

	triggers := machine.PermittedTriggers()
	if len(triggers) != 2 {
		t.Fatalf("PermittedTriggers() returned %d triggers, want 2", len(triggers))
	}
	if triggers[0] != TriggerApprove || triggers[1] != TriggerReject {
		t.Errorf("PermittedTriggers() = %v, want sorted [APPROVE REJECT]", triggers)
	}

	if got := NewBuilder[testState]().Build(stOpen).PermittedTriggers(); len(got) != 0 {
		t.Errorf("PermittedTriggers() returned %d triggers, want 0", len(got))
	}
}

func TestStateMachine_Immutability(t *testing.T) {
	builder := NewBuilder[testState]()
	builder.Configure(stOpen).Permit(TriggerSubmit, stReview)

	machine1 := builder.Build(stOpen)
	machine2 := builder.Build(stOpen)

	// Later configuration must not leak into built machines
	builder.Configure(stOpen).Permit(TriggerReject, stRefused)

	if err := machine1.Fire(context.Background(), TriggerSubmit); err != nil {
		t.Errorf("Fire() failed: %v", err)
	}
	if machine2.State() != stOpen {
		t.Errorf("machine2 state = %v, want %v (machines should be independent)", machine2.State(), stOpen)
	}
	if machine2.CanFire(TriggerReject) {
		t.Error("machine2 should not see transitions configured after Build()")
	}
}
