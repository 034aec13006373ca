package domain

// Status is the closed status enumeration shared by per-user entries and the
// task-level aggregate.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
	StatusApproved   Status = "approved"
	StatusRejected   Status = "rejected"
	StatusOnHold     Status = "onhold"
	StatusReopen     Status = "reopen"
	StatusCancelled  Status = "cancelled"
	StatusOverdue    Status = "overdue"
)

// Valid reports whether s is a member of the status enumeration.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted, StatusApproved,
		StatusRejected, StatusOnHold, StatusReopen, StatusCancelled, StatusOverdue:
		return true
	default:
		return false
	}
}

// Open reports whether s still requires work. Open entries are the ones the
// overdue pass may force to overdue.
func (s Status) Open() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusReopen, StatusOnHold:
		return true
	default:
		return false
	}
}

// Closed reports whether s is a resolved state. Overdue marking never
// downgrades a closed entry.
func (s Status) Closed() bool {
	switch s {
	case StatusCompleted, StatusApproved, StatusRejected, StatusCancelled:
		return true
	default:
		return false
	}
}

// Priority is the task priority level.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	default:
		return false
	}
}

// ActorType distinguishes user-driven status changes from system-driven ones
// in the audit trail.
type ActorType string

const (
	ActorUser   ActorType = "user"
	ActorSystem ActorType = "system"
)
