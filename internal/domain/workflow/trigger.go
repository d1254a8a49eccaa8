package workflow

// Trigger represents an event that can cause a state transition
type Trigger string

const (
	TriggerSubmit      Trigger = "SUBMIT"
	TriggerAssign      Trigger = "ASSIGN"
	TriggerApprove     Trigger = "APPROVE"
	TriggerAutoApprove Trigger = "AUTO_APPROVE"
	TriggerReject      Trigger = "REJECT"
	TriggerSkip        Trigger = "SKIP"
	TriggerEscalate    Trigger = "ESCALATE"
	TriggerAdvance     Trigger = "ADVANCE"
	TriggerComplete    Trigger = "COMPLETE"
	TriggerTerminate   Trigger = "TERMINATE"
	TriggerReopen      Trigger = "REOPEN"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}
