package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// PerUserStatus is one assignee's private progress marker on a shared task.
// Entries are created lazily: an assignee with no entry is implicitly pending.
type PerUserStatus struct {
	Status    Status    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
	Remarks   string    `json:"remarks,omitempty"`
}

// StatusChange is one record of the append-only status audit trail. Records
// are never mutated or reordered after being appended.
type StatusChange struct {
	Status        Status    `json:"status"`
	ChangedBy     uuid.UUID `json:"changed_by"`
	ChangedByType ActorType `json:"changed_by_type"`
	ChangedAt     time.Time `json:"changed_at"`
	Remarks       string    `json:"remarks,omitempty"`
}

// Task is the central entity: one shared piece of work assigned to many
// users, each tracking an independent status, with a single derived aggregate.
type Task struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Priority    Priority  `json:"priority"`
	CreatedBy   uuid.UUID `json:"created_by"`

	// DueAt absent means the task never becomes overdue.
	DueAt *time.Time `json:"due_at,omitempty"`

	// DirectAssignees and AssignedGroups record how the audience was built.
	// Assignees is the effective set: the union of direct assignees and group
	// members, snapshotted when the task is created or extended. Group
	// membership changes after that point do not change a task's audience.
	DirectAssignees []uuid.UUID `json:"direct_assignees"`
	AssignedGroups  []uuid.UUID `json:"assigned_groups,omitempty"`
	Assignees       []uuid.UUID `json:"assignees"`

	StatusByUser  map[uuid.UUID]PerUserStatus `json:"status_by_user"`
	StatusHistory []StatusChange              `json:"status_history"`
	OverallStatus Status                      `json:"overall_status"`

	CompletionDate *time.Time `json:"completion_date,omitempty"`

	// Overdue episode bookkeeping. Set once per episode, cleared when the task
	// exits the overdue aggregate state.
	MarkedOverdueAt *time.Time `json:"marked_overdue_at,omitempty"`
	OverdueReason   string     `json:"overdue_reason,omitempty"`
	OverdueNotified bool       `json:"overdue_notified"`

	// IsActive is a soft-delete flag; inactive tasks are excluded from scans
	// and default queries but retained for audit.
	IsActive bool `json:"is_active"`

	// Version is the optimistic concurrency token checked by TaskRepository.Save.
	Version int64 `json:"version"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsAssignee reports whether userID is in the task's effective assignee set.
func (t *Task) IsAssignee(userID uuid.UUID) bool {
	for _, id := range t.Assignees {
		if id == userID {
			return true
		}
	}
	return false
}

// StatusFor returns userID's effective per-user status, defaulting to pending
// when the user has never reported one.
func (t *Task) StatusFor(userID uuid.UUID) Status {
	if entry, ok := t.StatusByUser[userID]; ok {
		return entry.Status
	}
	return StatusPending
}

type TaskRepository interface {
	Create(ctx context.Context, t *Task) error
	GetByID(ctx context.Context, id uuid.UUID) (*Task, error)
	// Save replaces the whole task document if the stored version still
	// matches t.Version, then increments it. A stale write fails with
	// ErrConflict; a missing row fails with ErrNotFound.
	Save(ctx context.Context, t *Task) error
	ListActive(ctx context.Context, limit, offset int) ([]*Task, error)
	ListByAssignee(ctx context.Context, userID uuid.UUID) ([]*Task, error)
	// FindOverdueCandidates returns active tasks with due_at before now whose
	// aggregate is still open or already overdue. The overdue pass re-filters
	// precisely, so the query may over-approximate.
	FindOverdueCandidates(ctx context.Context, now time.Time) ([]*Task, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
}
