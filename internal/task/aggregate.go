// Package task implements the task lifecycle core: aggregate status
// derivation, per-user status transitions, and automatic overdue detection.
package task

import (
	"github.com/google/uuid"

	"github.com/kadro-hq/kadro/internal/domain"
)

// DeriveOverallStatus computes the single task-level status from the assignee
// set and the per-user status map. An assignee absent from the map counts as
// pending. Pure function; callers persist the result.
//
// Rules, in order:
//   - empty assignee set: pending
//   - every assignee completed: completed
//   - any assignee in-progress: in-progress
//   - every assignee pending: pending
//   - any other mix: in-progress (the aggregate is never more complete than
//     the least-progressed member)
//
// The system overdue override is the engine's concern; an overdue entry here
// just counts as a non-pending, non-completed member.
func DeriveOverallStatus(assigneeIDs []uuid.UUID, statusByUser map[uuid.UUID]domain.PerUserStatus) domain.Status {
	if len(assigneeIDs) == 0 {
		return domain.StatusPending
	}

	allCompleted := true
	allPending := true
	anyInProgress := false

	for _, id := range assigneeIDs {
		status := domain.StatusPending
		if entry, ok := statusByUser[id]; ok {
			status = entry.Status
		}

		if status != domain.StatusCompleted {
			allCompleted = false
		}
		if status != domain.StatusPending {
			allPending = false
		}
		if status == domain.StatusInProgress {
			anyInProgress = true
		}
	}

	switch {
	case allCompleted:
		return domain.StatusCompleted
	case anyInProgress:
		return domain.StatusInProgress
	case allPending:
		return domain.StatusPending
	default:
		return domain.StatusInProgress
	}
}
