package ir

// ChangeStatus is the propagation status of a submitted DNS change.
type ChangeStatus string

const (
	ChangeStatusPending ChangeStatus = "PENDING"
	ChangeStatusInSync  ChangeStatus = "INSYNC"
)

// Pending reports whether the change is still propagating. Every other
// status is terminal.
func (s ChangeStatus) Pending() bool {
	return s == ChangeStatusPending
}
