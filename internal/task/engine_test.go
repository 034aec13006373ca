package task_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadro-hq/kadro/internal/domain"
	"github.com/kadro-hq/kadro/internal/task"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

type engineFixture struct {
	repo     *memTaskRepo
	groups   *fakeGroups
	notifier *fakeNotifier
	engine   *task.Engine
	now      time.Time
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()

	f := &engineFixture{
		repo:     newMemTaskRepo(),
		groups:   &fakeGroups{members: make(map[uuid.UUID][]uuid.UUID)},
		notifier: &fakeNotifier{},
		now:      time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
	}
	f.engine = task.NewEngine(f.repo, f.groups, f.notifier, task.WithClock(fixedClock(f.now)))
	return f
}

func (f *engineFixture) createTask(t *testing.T, assignees []uuid.UUID, due *time.Time) *domain.Task {
	t.Helper()

	created, err := f.engine.Create(context.Background(), task.CreateTaskParams{
		Title:           "Quarterly compliance review",
		DirectAssignees: assignees,
		DueAt:           due,
		CreatedBy:       uuid.New(),
	})
	require.NoError(t, err)
	return created
}

// ---------------------------------------------------------------------------
// Create
// ---------------------------------------------------------------------------

func TestEngine_Create(t *testing.T) {
	t.Parallel()

	u1 := uuid.New()
	u2 := uuid.New()

	t.Run("happy_path", func(t *testing.T) {
		t.Parallel()

		f := newEngineFixture(t)
		due := f.now.Add(time.Hour)
		creator := uuid.New()

		created, err := f.engine.Create(context.Background(), task.CreateTaskParams{
			Title:           "Onboard new hires",
			Description:     "Prepare accounts and equipment",
			Priority:        domain.PriorityHigh,
			DueAt:           &due,
			DirectAssignees: []uuid.UUID{u1, u2},
			CreatedBy:       creator,
		})
		require.NoError(t, err)

		assert.Equal(t, domain.StatusPending, created.OverallStatus)
		assert.Equal(t, domain.StatusPending, created.StatusFor(u1))
		assert.Equal(t, domain.StatusPending, created.StatusFor(u2))
		assert.Empty(t, created.StatusByUser, "per-user entries are lazy")
		assert.True(t, created.IsActive)

		require.Len(t, created.StatusHistory, 1)
		assert.Equal(t, domain.StatusPending, created.StatusHistory[0].Status)
		assert.Equal(t, creator, created.StatusHistory[0].ChangedBy)
		assert.Equal(t, domain.ActorUser, created.StatusHistory[0].ChangedByType)
		assert.Equal(t, "created", created.StatusHistory[0].Remarks)

		require.NotNil(t, f.repo.stored(created.ID), "task must be persisted")
		assert.Equal(t, 1, f.notifier.sentTo(u1))
		assert.Equal(t, 1, f.notifier.sentTo(u2))
	})

	t.Run("empty_title", func(t *testing.T) {
		t.Parallel()

		f := newEngineFixture(t)
		_, err := f.engine.Create(context.Background(), task.CreateTaskParams{
			Title:           "   ",
			DirectAssignees: []uuid.UUID{u1},
			CreatedBy:       uuid.New(),
		})
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("due_date_in_past", func(t *testing.T) {
		t.Parallel()

		f := newEngineFixture(t)
		due := f.now.Add(-time.Minute)
		_, err := f.engine.Create(context.Background(), task.CreateTaskParams{
			Title:           "Late already",
			DueAt:           &due,
			DirectAssignees: []uuid.UUID{u1},
			CreatedBy:       uuid.New(),
		})
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("unknown_group_names_offender", func(t *testing.T) {
		t.Parallel()

		f := newEngineFixture(t)
		badGroup := uuid.New()
		_, err := f.engine.Create(context.Background(), task.CreateTaskParams{
			Title:          "Group task",
			AssignedGroups: []uuid.UUID{badGroup},
			CreatedBy:      uuid.New(),
		})
		require.ErrorIs(t, err, domain.ErrValidation)
		assert.Contains(t, err.Error(), badGroup.String())
	})

	t.Run("group_members_unioned_and_deduplicated", func(t *testing.T) {
		t.Parallel()

		f := newEngineFixture(t)
		groupID := uuid.New()
		f.groups.members[groupID] = []uuid.UUID{u1, u2} // u1 also direct

		created, err := f.engine.Create(context.Background(), task.CreateTaskParams{
			Title:           "Team-wide survey",
			DirectAssignees: []uuid.UUID{u1},
			AssignedGroups:  []uuid.UUID{groupID},
			CreatedBy:       uuid.New(),
		})
		require.NoError(t, err)

		assert.ElementsMatch(t, []uuid.UUID{u1, u2}, created.Assignees)
	})
}

// ---------------------------------------------------------------------------
// ReportStatus
// ---------------------------------------------------------------------------

func TestEngine_ReportStatus(t *testing.T) {
	t.Parallel()

	t.Run("scenario_partial_completion_is_in_progress", func(t *testing.T) {
		t.Parallel()

		f := newEngineFixture(t)
		u1, u2 := uuid.New(), uuid.New()
		due := f.now.Add(time.Hour)
		created := f.createTask(t, []uuid.UUID{u1, u2}, &due)

		updated, err := f.engine.ReportStatus(context.Background(), created.ID, u1, domain.StatusCompleted, "done on my side")
		require.NoError(t, err)

		assert.Equal(t, domain.StatusInProgress, updated.OverallStatus)
		assert.Equal(t, domain.StatusCompleted, updated.StatusFor(u1))
		assert.Equal(t, domain.StatusPending, updated.StatusFor(u2))
		assert.Nil(t, updated.CompletionDate)
	})

	t.Run("scenario_unanimous_completion", func(t *testing.T) {
		t.Parallel()

		f := newEngineFixture(t)
		u1, u2 := uuid.New(), uuid.New()
		created := f.createTask(t, []uuid.UUID{u1, u2}, nil)

		_, err := f.engine.ReportStatus(context.Background(), created.ID, u1, domain.StatusCompleted, "")
		require.NoError(t, err)
		updated, err := f.engine.ReportStatus(context.Background(), created.ID, u2, domain.StatusCompleted, "")
		require.NoError(t, err)

		assert.Equal(t, domain.StatusCompleted, updated.OverallStatus)
		require.NotNil(t, updated.CompletionDate)
		assert.Equal(t, f.now, *updated.CompletionDate)
	})

	t.Run("non_assignee_is_forbidden_and_task_unchanged", func(t *testing.T) {
		t.Parallel()

		f := newEngineFixture(t)
		u1 := uuid.New()
		created := f.createTask(t, []uuid.UUID{u1}, nil)
		before := f.repo.stored(created.ID)

		_, err := f.engine.ReportStatus(context.Background(), created.ID, uuid.New(), domain.StatusCompleted, "")
		require.ErrorIs(t, err, domain.ErrForbidden)

		after := f.repo.stored(created.ID)
		assert.Equal(t, before, after, "failed authorization must not change the document")
	})

	t.Run("unknown_status", func(t *testing.T) {
		t.Parallel()

		f := newEngineFixture(t)
		u1 := uuid.New()
		created := f.createTask(t, []uuid.UUID{u1}, nil)

		_, err := f.engine.ReportStatus(context.Background(), created.ID, u1, domain.Status("archived"), "")
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("missing_task", func(t *testing.T) {
		t.Parallel()

		f := newEngineFixture(t)
		_, err := f.engine.ReportStatus(context.Background(), uuid.New(), uuid.New(), domain.StatusCompleted, "")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("inactive_task_reads_as_not_found", func(t *testing.T) {
		t.Parallel()

		f := newEngineFixture(t)
		u1 := uuid.New()
		created := f.createTask(t, []uuid.UUID{u1}, nil)
		require.NoError(t, f.engine.SetActive(context.Background(), created.ID, false))

		_, err := f.engine.ReportStatus(context.Background(), created.ID, u1, domain.StatusInProgress, "")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("history_grows_by_exactly_one_per_operation", func(t *testing.T) {
		t.Parallel()

		f := newEngineFixture(t)
		u1, u2 := uuid.New(), uuid.New()
		created := f.createTask(t, []uuid.UUID{u1, u2}, nil)
		initial := len(created.StatusHistory)

		ops := []struct {
			user   uuid.UUID
			status domain.Status
		}{
			{u1, domain.StatusInProgress},
			{u2, domain.StatusOnHold},
			{u1, domain.StatusCompleted},
			{u2, domain.StatusReopen},
		}
		for i, op := range ops {
			updated, err := f.engine.ReportStatus(context.Background(), created.ID, op.user, op.status, "")
			require.NoError(t, err)
			assert.Len(t, updated.StatusHistory, initial+i+1)
		}

		// Existing records are never altered.
		final := f.repo.stored(created.ID)
		assert.Equal(t, created.StatusHistory[0], final.StatusHistory[0])
	})

	t.Run("reopen_allowed_from_terminal_states", func(t *testing.T) {
		t.Parallel()

		f := newEngineFixture(t)
		u1 := uuid.New()
		created := f.createTask(t, []uuid.UUID{u1}, nil)

		for _, terminal := range []domain.Status{domain.StatusCompleted, domain.StatusCancelled, domain.StatusRejected} {
			_, err := f.engine.ReportStatus(context.Background(), created.ID, u1, terminal, "")
			require.NoError(t, err)
			updated, err := f.engine.ReportStatus(context.Background(), created.ID, u1, domain.StatusReopen, "back again")
			require.NoError(t, err)
			assert.Equal(t, domain.StatusReopen, updated.StatusFor(u1))
		}
	})

	t.Run("notifies_creator_best_effort", func(t *testing.T) {
		t.Parallel()

		f := newEngineFixture(t)
		f.notifier.err = assert.AnError

		u1 := uuid.New()
		created := f.createTask(t, []uuid.UUID{u1}, nil)

		// Notifier failure must not fail the status change.
		updated, err := f.engine.ReportStatus(context.Background(), created.ID, u1, domain.StatusInProgress, "")
		require.NoError(t, err)
		assert.Equal(t, domain.StatusInProgress, updated.OverallStatus)
	})

	t.Run("retries_once_on_version_conflict", func(t *testing.T) {
		t.Parallel()

		f := newEngineFixture(t)
		u1 := uuid.New()
		created := f.createTask(t, []uuid.UUID{u1}, nil)

		f.repo.saveErr = domain.ErrConflict
		f.repo.saveErrCount = 1

		updated, err := f.engine.ReportStatus(context.Background(), created.ID, u1, domain.StatusInProgress, "")
		require.NoError(t, err)
		assert.Equal(t, domain.StatusInProgress, updated.StatusFor(u1))
	})

	t.Run("surfaces_conflict_after_retry_exhausted", func(t *testing.T) {
		t.Parallel()

		f := newEngineFixture(t)
		u1 := uuid.New()
		created := f.createTask(t, []uuid.UUID{u1}, nil)

		f.repo.saveErr = domain.ErrConflict
		f.repo.saveErrCount = 2

		_, err := f.engine.ReportStatus(context.Background(), created.ID, u1, domain.StatusInProgress, "")
		assert.ErrorIs(t, err, domain.ErrConflict)
	})
}

// ---------------------------------------------------------------------------
// Overdue episode lifecycle through ReportStatus
// ---------------------------------------------------------------------------

func TestEngine_ReportStatus_ClearsOverdueEpisode(t *testing.T) {
	t.Parallel()

	f := newEngineFixture(t)
	u1 := uuid.New()
	due := f.now.Add(time.Hour)
	created := f.createTask(t, []uuid.UUID{u1}, &due)

	// Force the overdue transition in memory and persist it.
	stored := f.repo.stored(created.ID)
	require.True(t, f.engine.CheckAndMarkOverdue(stored, f.now.Add(2*time.Hour)))
	stored.OverdueNotified = true
	require.NoError(t, f.repo.Save(context.Background(), stored))

	// A fresh report moves the aggregate off overdue and ends the episode.
	updated, err := f.engine.ReportStatus(context.Background(), created.ID, u1, domain.StatusReopen, "picking it back up")
	require.NoError(t, err)

	assert.NotEqual(t, domain.StatusOverdue, updated.OverallStatus)
	assert.Nil(t, updated.MarkedOverdueAt)
	assert.Empty(t, updated.OverdueReason)
	assert.False(t, updated.OverdueNotified)
}

// ---------------------------------------------------------------------------
// CheckAndMarkOverdue
// ---------------------------------------------------------------------------

func TestEngine_CheckAndMarkOverdue(t *testing.T) {
	t.Parallel()

	t.Run("no_due_date_is_noop", func(t *testing.T) {
		t.Parallel()

		f := newEngineFixture(t)
		created := f.createTask(t, []uuid.UUID{uuid.New()}, nil)
		assert.False(t, f.engine.CheckAndMarkOverdue(created, f.now.Add(time.Hour)))
	})

	t.Run("future_due_date_is_noop", func(t *testing.T) {
		t.Parallel()

		f := newEngineFixture(t)
		due := f.now.Add(time.Hour)
		created := f.createTask(t, []uuid.UUID{uuid.New()}, &due)
		assert.False(t, f.engine.CheckAndMarkOverdue(created, f.now))
	})

	t.Run("marks_open_assignees_and_spares_closed_ones", func(t *testing.T) {
		t.Parallel()

		f := newEngineFixture(t)
		u1, u2 := uuid.New(), uuid.New()
		due := f.now.Add(time.Hour)
		created := f.createTask(t, []uuid.UUID{u1, u2}, &due)

		_, err := f.engine.ReportStatus(context.Background(), created.ID, u2, domain.StatusCompleted, "")
		require.NoError(t, err)

		stored := f.repo.stored(created.ID)
		later := f.now.Add(2 * time.Hour)
		require.True(t, f.engine.CheckAndMarkOverdue(stored, later))

		assert.Equal(t, domain.StatusOverdue, stored.StatusFor(u1))
		assert.Equal(t, domain.StatusCompleted, stored.StatusFor(u2), "closed work is never downgraded")
		assert.Equal(t, domain.StatusOverdue, stored.OverallStatus)
		require.NotNil(t, stored.MarkedOverdueAt)
		assert.Equal(t, later, *stored.MarkedOverdueAt)
		assert.Equal(t, "Automatic overdue detection", stored.OverdueReason)

		last := stored.StatusHistory[len(stored.StatusHistory)-1]
		assert.Equal(t, domain.ActorSystem, last.ChangedByType)
		assert.Equal(t, domain.StatusOverdue, last.Status)
	})

	t.Run("never_downgrades_any_closed_status", func(t *testing.T) {
		t.Parallel()

		for _, closed := range []domain.Status{
			domain.StatusCompleted, domain.StatusApproved,
			domain.StatusRejected, domain.StatusCancelled,
		} {
			f := newEngineFixture(t)
			u1 := uuid.New()
			due := f.now.Add(time.Hour)
			created := f.createTask(t, []uuid.UUID{u1}, &due)

			_, err := f.engine.ReportStatus(context.Background(), created.ID, u1, closed, "")
			require.NoError(t, err)

			stored := f.repo.stored(created.ID)
			assert.False(t, f.engine.CheckAndMarkOverdue(stored, f.now.Add(2*time.Hour)),
				"task with only %s assignee must not be marked", closed)
			assert.Equal(t, closed, stored.StatusFor(u1))
		}
	})

	t.Run("idempotent_second_call", func(t *testing.T) {
		t.Parallel()

		f := newEngineFixture(t)
		u1, u2 := uuid.New(), uuid.New()
		due := f.now.Add(time.Hour)
		created := f.createTask(t, []uuid.UUID{u1, u2}, &due)

		_, err := f.engine.ReportStatus(context.Background(), created.ID, u2, domain.StatusCompleted, "")
		require.NoError(t, err)

		stored := f.repo.stored(created.ID)
		later := f.now.Add(2 * time.Hour)
		require.True(t, f.engine.CheckAndMarkOverdue(stored, later))
		historyLen := len(stored.StatusHistory)
		markedAt := *stored.MarkedOverdueAt

		assert.False(t, f.engine.CheckAndMarkOverdue(stored, later.Add(time.Hour)))
		assert.Len(t, stored.StatusHistory, historyLen, "no additional history on a no-op pass")
		assert.Equal(t, markedAt, *stored.MarkedOverdueAt, "episode timestamp is not overwritten")
	})
}

// ---------------------------------------------------------------------------
// AddAssignees / UpdateDetails
// ---------------------------------------------------------------------------

func TestEngine_AddAssignees(t *testing.T) {
	t.Parallel()

	f := newEngineFixture(t)
	u1, u2, u3 := uuid.New(), uuid.New(), uuid.New()
	groupID := uuid.New()
	f.groups.members[groupID] = []uuid.UUID{u3}

	created := f.createTask(t, []uuid.UUID{u1}, nil)

	_, err := f.engine.ReportStatus(context.Background(), created.ID, u1, domain.StatusCompleted, "")
	require.NoError(t, err)

	updated, err := f.engine.AddAssignees(context.Background(), created.ID, created.CreatedBy, []uuid.UUID{u2}, []uuid.UUID{groupID})
	require.NoError(t, err)

	assert.ElementsMatch(t, []uuid.UUID{u1, u2, u3}, updated.Assignees)
	assert.Equal(t, domain.StatusInProgress, updated.OverallStatus,
		"fresh pending members move a completed task back to in-progress")
	assert.Equal(t, 1, f.notifier.sentTo(u2))
	assert.Equal(t, 1, f.notifier.sentTo(u3))
}

func TestEngine_UpdateDetails(t *testing.T) {
	t.Parallel()

	t.Run("edits_metadata_without_touching_statuses", func(t *testing.T) {
		t.Parallel()

		f := newEngineFixture(t)
		u1 := uuid.New()
		created := f.createTask(t, []uuid.UUID{u1}, nil)
		historyLen := len(created.StatusHistory)

		title := "Renamed task"
		prio := domain.PriorityLow
		updated, err := f.engine.UpdateDetails(context.Background(), created.ID, created.CreatedBy, task.UpdateDetailsParams{
			Title:    &title,
			Priority: &prio,
		})
		require.NoError(t, err)

		assert.Equal(t, "Renamed task", updated.Title)
		assert.Equal(t, domain.PriorityLow, updated.Priority)
		assert.Len(t, updated.StatusHistory, historyLen, "metadata edits do not append history")
		assert.Equal(t, domain.StatusPending, updated.OverallStatus)
	})

	t.Run("rejects_past_due_date", func(t *testing.T) {
		t.Parallel()

		f := newEngineFixture(t)
		created := f.createTask(t, []uuid.UUID{uuid.New()}, nil)

		past := f.now.Add(-time.Hour)
		_, err := f.engine.UpdateDetails(context.Background(), created.ID, created.CreatedBy, task.UpdateDetailsParams{
			DueAt: &past,
		})
		assert.ErrorIs(t, err, domain.ErrValidation)
	})
}
