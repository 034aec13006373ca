package task

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/kadro-hq/kadro/internal/domain"
)

// overdueRemarks is the per-user remark written by the automatic overdue pass.
const overdueRemarks = "Automatically marked as overdue"

// overdueReason is recorded on the task when an overdue episode starts.
const overdueReason = "Automatic overdue detection"

// GroupResolver resolves a group id to its current member set.
type GroupResolver interface {
	ResolveMembers(ctx context.Context, id uuid.UUID) ([]uuid.UUID, error)
}

// Notifier delivers a notification to a user. Calls are best-effort from the
// engine's perspective: failures are logged and never roll back a task
// mutation.
type Notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, title, message string, ntype domain.NotificationType, relatedTaskID *uuid.UUID) error
}

// Engine owns the task lifecycle: creation, per-user status transitions, and
// overdue detection. All persisted mutations go through the repository's
// version-checked Save.
type Engine struct {
	tasks    domain.TaskRepository
	groups   GroupResolver
	notifier Notifier
	now      func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the engine's time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func NewEngine(tasks domain.TaskRepository, groups GroupResolver, notifier Notifier, opts ...Option) *Engine {
	e := &Engine{
		tasks:    tasks,
		groups:   groups,
		notifier: notifier,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CreateTaskParams are the caller-supplied fields for Create.
type CreateTaskParams struct {
	Title           string
	Description     string
	Priority        domain.Priority
	DueAt           *time.Time
	DirectAssignees []uuid.UUID
	AssignedGroups  []uuid.UUID
	CreatedBy       uuid.UUID
}

// Create builds and persists a new task. Group membership is resolved once,
// here; the resolved union becomes the task's assignee snapshot. Every
// assignee starts as implicit pending (no materialized entry) and a single
// "created" history record is appended.
func (e *Engine) Create(ctx context.Context, p CreateTaskParams) (*domain.Task, error) {
	now := e.now()

	if strings.TrimSpace(p.Title) == "" {
		return nil, fmt.Errorf("task.Engine.Create: title is required: %w", domain.ErrValidation)
	}
	if p.DueAt != nil && p.DueAt.Before(now) {
		return nil, fmt.Errorf("task.Engine.Create: due date is in the past: %w", domain.ErrValidation)
	}

	priority := p.Priority
	if priority == "" {
		priority = domain.PriorityMedium
	}
	if !priority.Valid() {
		return nil, fmt.Errorf("task.Engine.Create: unknown priority %q: %w", priority, domain.ErrValidation)
	}

	assignees, err := e.resolveAssignees(ctx, p.DirectAssignees, p.AssignedGroups, nil)
	if err != nil {
		return nil, fmt.Errorf("task.Engine.Create: %w", err)
	}

	t := &domain.Task{
		ID:              uuid.New(),
		Title:           strings.TrimSpace(p.Title),
		Description:     p.Description,
		Priority:        priority,
		CreatedBy:       p.CreatedBy,
		DueAt:           p.DueAt,
		DirectAssignees: dedupe(p.DirectAssignees),
		AssignedGroups:  dedupe(p.AssignedGroups),
		Assignees:       assignees,
		StatusByUser:    make(map[uuid.UUID]domain.PerUserStatus),
		StatusHistory: []domain.StatusChange{{
			Status:        domain.StatusPending,
			ChangedBy:     p.CreatedBy,
			ChangedByType: domain.ActorUser,
			ChangedAt:     now,
			Remarks:       "created",
		}},
		OverallStatus: domain.StatusPending,
		IsActive:      true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := e.tasks.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("task.Engine.Create: %w", err)
	}

	for _, userID := range t.Assignees {
		e.notify(ctx, userID, "New task assigned", t.Title, domain.NotificationTaskAssigned, t.ID)
	}

	return t, nil
}

// ReportStatus records actingUserID's own status on a task, appends the
// history record, and re-derives the aggregate. A normal report also ends a
// running overdue episode when the re-derived aggregate leaves overdue.
func (e *Engine) ReportStatus(ctx context.Context, taskID, actingUserID uuid.UUID, newStatus domain.Status, remarks string) (*domain.Task, error) {
	if !newStatus.Valid() {
		return nil, fmt.Errorf("task.Engine.ReportStatus: unknown status %q: %w", newStatus, domain.ErrValidation)
	}

	t, err := e.mutate(ctx, taskID, func(t *domain.Task) error {
		if !t.IsAssignee(actingUserID) {
			return fmt.Errorf("user is not an assignee: %w", domain.ErrForbidden)
		}

		now := e.now()
		t.StatusByUser[actingUserID] = domain.PerUserStatus{
			Status:    newStatus,
			UpdatedAt: now,
			Remarks:   remarks,
		}
		t.StatusHistory = append(t.StatusHistory, domain.StatusChange{
			Status:        newStatus,
			ChangedBy:     actingUserID,
			ChangedByType: domain.ActorUser,
			ChangedAt:     now,
			Remarks:       remarks,
		})

		t.OverallStatus = DeriveOverallStatus(t.Assignees, t.StatusByUser)
		if newStatus == domain.StatusCompleted && t.OverallStatus == domain.StatusCompleted {
			t.CompletionDate = &now
		}

		// A normal status-affecting mutation re-derives the aggregate and,
		// when that leaves overdue, closes the episode.
		if t.MarkedOverdueAt != nil && t.OverallStatus != domain.StatusOverdue {
			t.MarkedOverdueAt = nil
			t.OverdueReason = ""
			t.OverdueNotified = false
		}

		t.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("task.Engine.ReportStatus: %w", err)
	}

	if t.CreatedBy != actingUserID {
		e.notify(ctx, t.CreatedBy, "Task status changed",
			fmt.Sprintf("%s: %s", t.Title, newStatus), domain.NotificationStatusChanged, t.ID)
	}

	return t, nil
}

// AddAssignees extends a task's audience with more users and/or the current
// members of more groups. New assignees join as implicit pending; the
// aggregate is re-derived since a fresh pending member can move a completed
// task back to in-progress.
func (e *Engine) AddAssignees(ctx context.Context, taskID, editorID uuid.UUID, userIDs, groupIDs []uuid.UUID) (*domain.Task, error) {
	var added []uuid.UUID

	t, err := e.mutate(ctx, taskID, func(t *domain.Task) error {
		assignees, err := e.resolveAssignees(ctx, userIDs, groupIDs, t.Assignees)
		if err != nil {
			return err
		}

		added = added[:0]
		for _, id := range assignees {
			if !t.IsAssignee(id) {
				added = append(added, id)
			}
		}
		if len(added) == 0 {
			return nil
		}

		now := e.now()
		t.Assignees = append(t.Assignees, added...)
		t.DirectAssignees = dedupe(append(t.DirectAssignees, userIDs...))
		t.AssignedGroups = dedupe(append(t.AssignedGroups, groupIDs...))
		t.OverallStatus = DeriveOverallStatus(t.Assignees, t.StatusByUser)
		t.StatusHistory = append(t.StatusHistory, domain.StatusChange{
			Status:        t.OverallStatus,
			ChangedBy:     editorID,
			ChangedByType: domain.ActorUser,
			ChangedAt:     now,
			Remarks:       "assignees added",
		})
		t.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("task.Engine.AddAssignees: %w", err)
	}

	for _, userID := range added {
		e.notify(ctx, userID, "New task assigned", t.Title, domain.NotificationTaskAssigned, t.ID)
	}

	return t, nil
}

// UpdateDetailsParams is a partial metadata patch; nil fields are unchanged.
type UpdateDetailsParams struct {
	Title       *string
	Description *string
	Priority    *domain.Priority
	DueAt       *time.Time
}

// UpdateDetails edits task metadata. It never touches per-user statuses, the
// aggregate, or the history.
func (e *Engine) UpdateDetails(ctx context.Context, taskID, editorID uuid.UUID, p UpdateDetailsParams) (*domain.Task, error) {
	t, err := e.mutate(ctx, taskID, func(t *domain.Task) error {
		if p.Title != nil {
			if strings.TrimSpace(*p.Title) == "" {
				return fmt.Errorf("title is required: %w", domain.ErrValidation)
			}
			t.Title = strings.TrimSpace(*p.Title)
		}
		if p.Description != nil {
			t.Description = *p.Description
		}
		if p.Priority != nil {
			if !p.Priority.Valid() {
				return fmt.Errorf("unknown priority %q: %w", *p.Priority, domain.ErrValidation)
			}
			t.Priority = *p.Priority
		}
		if p.DueAt != nil {
			if p.DueAt.Before(e.now()) {
				return fmt.Errorf("due date is in the past: %w", domain.ErrValidation)
			}
			t.DueAt = p.DueAt
		}
		t.UpdatedAt = e.now()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("task.Engine.UpdateDetails: %w", err)
	}

	log.Debug().Str("task_id", taskID.String()).Str("editor_id", editorID.String()).Msg("task details updated")

	return t, nil
}

// SetActive soft-deletes or restores a task.
func (e *Engine) SetActive(ctx context.Context, taskID uuid.UUID, active bool) error {
	if err := e.tasks.SetActive(ctx, taskID, active); err != nil {
		return fmt.Errorf("task.Engine.SetActive: %w", err)
	}
	return nil
}

// CheckAndMarkOverdue forces every still-open assignee entry to overdue when
// the task is past due. Closed entries (completed, approved, rejected,
// cancelled) are never downgraded. Pure in-memory mutation; callers persist.
// Idempotent: with no open assignees left it reports false and changes
// nothing.
func (e *Engine) CheckAndMarkOverdue(t *domain.Task, now time.Time) bool {
	if t.DueAt == nil || !t.DueAt.Before(now) {
		return false
	}

	changed := false
	for _, userID := range t.Assignees {
		if !t.StatusFor(userID).Open() {
			continue
		}
		t.StatusByUser[userID] = domain.PerUserStatus{
			Status:    domain.StatusOverdue,
			UpdatedAt: now,
			Remarks:   overdueRemarks,
		}
		changed = true
	}
	if !changed {
		return false
	}

	t.OverallStatus = domain.StatusOverdue
	if t.MarkedOverdueAt == nil {
		t.MarkedOverdueAt = &now
	}
	t.OverdueReason = overdueReason
	t.StatusHistory = append(t.StatusHistory, domain.StatusChange{
		Status:        domain.StatusOverdue,
		ChangedBy:     uuid.Nil,
		ChangedByType: domain.ActorSystem,
		ChangedAt:     now,
		Remarks:       overdueReason,
	})
	t.UpdatedAt = now

	return true
}

// mutate runs the read-modify-write cycle for a single task. A version
// conflict from Save triggers one re-read and re-apply before the error is
// surfaced.
func (e *Engine) mutate(ctx context.Context, taskID uuid.UUID, apply func(*domain.Task) error) (*domain.Task, error) {
	const attempts = 2

	var lastErr error
	for range attempts {
		t, err := e.tasks.GetByID(ctx, taskID)
		if err != nil {
			return nil, err
		}
		if !t.IsActive {
			return nil, fmt.Errorf("task is inactive: %w", domain.ErrNotFound)
		}
		if t.StatusByUser == nil {
			t.StatusByUser = make(map[uuid.UUID]domain.PerUserStatus)
		}

		if err := apply(t); err != nil {
			return nil, err
		}

		err = e.tasks.Save(ctx, t)
		if err == nil {
			return t, nil
		}
		if !errors.Is(err, domain.ErrConflict) {
			return nil, err
		}
		lastErr = err
		log.Warn().Str("task_id", taskID.String()).Msg("stale task write, retrying")
	}

	return nil, lastErr
}

// resolveAssignees builds the deduplicated union of direct users and the
// current members of each group. An unknown group fails validation naming the
// offending id. existing seeds the seen-set so callers get only a combined,
// duplicate-free result.
func (e *Engine) resolveAssignees(ctx context.Context, userIDs, groupIDs, existing []uuid.UUID) ([]uuid.UUID, error) {
	seen := make(map[uuid.UUID]struct{}, len(userIDs)+len(existing))
	var out []uuid.UUID

	add := func(id uuid.UUID) {
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}

	for _, id := range existing {
		add(id)
	}
	for _, id := range userIDs {
		add(id)
	}
	for _, groupID := range groupIDs {
		members, err := e.groups.ResolveMembers(ctx, groupID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, fmt.Errorf("group %s cannot be resolved: %w", groupID, domain.ErrValidation)
			}
			return nil, err
		}
		for _, id := range members {
			add(id)
		}
	}

	return out, nil
}

// notify dispatches a best-effort notification; failures are logged only.
func (e *Engine) notify(ctx context.Context, userID uuid.UUID, title, message string, ntype domain.NotificationType, taskID uuid.UUID) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.Notify(ctx, userID, title, message, ntype, &taskID); err != nil {
		log.Warn().Err(err).
			Str("task_id", taskID.String()).
			Str("user_id", userID.String()).
			Msg("notification dispatch failed")
	}
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
