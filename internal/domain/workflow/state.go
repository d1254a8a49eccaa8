package workflow

// State is the constraint satisfied by status types driven through a machine.
// Quote statuses and step statuses both implement it.
type State interface {
	~string
	IsValid() bool
}
