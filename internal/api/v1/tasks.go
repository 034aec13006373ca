package v1

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/kadro-hq/kadro/internal/api/ws"
	"github.com/kadro-hq/kadro/internal/domain"
	redisstore "github.com/kadro-hq/kadro/internal/store/redis"
	"github.com/kadro-hq/kadro/internal/task"
)

type CreateTaskInput struct {
	Body struct {
		Title       string      `json:"title" minLength:"1" maxLength:"500" doc:"Task title"`
		Description string      `json:"description,omitempty" doc:"Task description"`
		Priority    string      `json:"priority,omitempty" enum:"low,medium,high" doc:"Task priority (default medium)"`
		DueAt       *time.Time  `json:"due_at,omitempty" doc:"Optional due date"`
		AssigneeIDs []uuid.UUID `json:"assignee_ids,omitempty" doc:"Directly assigned user IDs"`
		GroupIDs    []uuid.UUID `json:"group_ids,omitempty" doc:"Assigned group IDs (membership resolved now)"`
	}
}

type TaskOutput struct {
	Body *domain.Task
}

type ListTasksInput struct {
	Mine   bool `query:"mine" doc:"Only tasks the caller is assigned to"`
	Limit  int  `query:"limit" minimum:"1" maximum:"200" default:"50" doc:"Page size"`
	Offset int  `query:"offset" minimum:"0" doc:"Page offset"`
}

type ListTasksOutput struct {
	Body []*domain.Task
}

type GetTaskInput struct {
	ID uuid.UUID `path:"id" doc:"Task ID"`
}

type UpdateTaskInput struct {
	ID   uuid.UUID `path:"id" doc:"Task ID"`
	Body struct {
		Title       *string    `json:"title,omitempty" maxLength:"500" doc:"Task title"`
		Description *string    `json:"description,omitempty" doc:"Task description"`
		Priority    *string    `json:"priority,omitempty" enum:"low,medium,high" doc:"Task priority"`
		DueAt       *time.Time `json:"due_at,omitempty" doc:"Due date"`
	}
}

type ReportStatusInput struct {
	ID   uuid.UUID `path:"id" doc:"Task ID"`
	Body struct {
		Status  string `json:"status" minLength:"1" doc:"The caller's new per-user status"`
		Remarks string `json:"remarks,omitempty" maxLength:"2000" doc:"Optional remarks"`
	}
}

type AddAssigneesInput struct {
	ID   uuid.UUID `path:"id" doc:"Task ID"`
	Body struct {
		UserIDs  []uuid.UUID `json:"user_ids,omitempty" doc:"User IDs to add"`
		GroupIDs []uuid.UUID `json:"group_ids,omitempty" doc:"Group IDs whose current members are added"`
	}
}

type DeactivateTaskInput struct {
	ID uuid.UUID `path:"id" doc:"Task ID"`
}

type RestoreTaskInput struct {
	ID uuid.UUID `path:"id" doc:"Task ID"`
}

func RegisterTaskRoutes(api huma.API, store DataStore, engine TaskEngine, events Publisher) {
	huma.Register(api, huma.Operation{
		OperationID: "create-task",
		Method:      http.MethodPost,
		Path:        "/tasks",
		Summary:     "Create a new task",
		Tags:        []string{"Tasks"},
	}, func(ctx context.Context, input *CreateTaskInput) (*TaskOutput, error) {
		userID, err := requireUser(ctx)
		if err != nil {
			return nil, err
		}
		if err := requireRole(ctx, domain.RoleAdmin, domain.RoleManager); err != nil {
			return nil, err
		}

		t, err := engine.Create(ctx, task.CreateTaskParams{
			Title:           input.Body.Title,
			Description:     input.Body.Description,
			Priority:        domain.Priority(input.Body.Priority),
			DueAt:           input.Body.DueAt,
			DirectAssignees: input.Body.AssigneeIDs,
			AssignedGroups:  input.Body.GroupIDs,
			CreatedBy:       userID,
		})
		if err != nil {
			return nil, mapDomainError(err)
		}

		publishTaskEvent(ctx, events, ws.TaskEventCreated, t)

		return &TaskOutput{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-tasks",
		Method:      http.MethodGet,
		Path:        "/tasks",
		Summary:     "List active tasks",
		Tags:        []string{"Tasks"},
	}, func(ctx context.Context, input *ListTasksInput) (*ListTasksOutput, error) {
		userID, err := requireUser(ctx)
		if err != nil {
			return nil, err
		}

		if input.Mine {
			tasks, err := store.Tasks().ListByAssignee(ctx, userID)
			if err != nil {
				return nil, huma.Error500InternalServerError("failed to list tasks", err)
			}
			return &ListTasksOutput{Body: tasks}, nil
		}

		tasks, err := store.Tasks().ListActive(ctx, input.Limit, input.Offset)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list tasks", err)
		}

		return &ListTasksOutput{Body: tasks}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-task",
		Method:      http.MethodGet,
		Path:        "/tasks/{id}",
		Summary:     "Get a task by ID",
		Tags:        []string{"Tasks"},
	}, func(ctx context.Context, input *GetTaskInput) (*TaskOutput, error) {
		t, err := store.Tasks().GetByID(ctx, input.ID)
		if err != nil {
			return nil, mapDomainError(err)
		}

		return &TaskOutput{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-task",
		Method:      http.MethodPatch,
		Path:        "/tasks/{id}",
		Summary:     "Update task details",
		Description: "Edits title, description, priority, or due date. Never touches per-user statuses or the audit trail.",
		Tags:        []string{"Tasks"},
	}, func(ctx context.Context, input *UpdateTaskInput) (*TaskOutput, error) {
		userID, err := requireUser(ctx)
		if err != nil {
			return nil, err
		}
		if err := requireRole(ctx, domain.RoleAdmin, domain.RoleManager); err != nil {
			return nil, err
		}

		var priority *domain.Priority
		if input.Body.Priority != nil {
			p := domain.Priority(*input.Body.Priority)
			priority = &p
		}

		t, err := engine.UpdateDetails(ctx, input.ID, userID, task.UpdateDetailsParams{
			Title:       input.Body.Title,
			Description: input.Body.Description,
			Priority:    priority,
			DueAt:       input.Body.DueAt,
		})
		if err != nil {
			return nil, mapDomainError(err)
		}

		publishTaskEvent(ctx, events, ws.TaskEventUpdated, t)

		return &TaskOutput{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "report-task-status",
		Method:      http.MethodPatch,
		Path:        "/tasks/{id}/status",
		Summary:     "Report the caller's status on a task",
		Description: "Records the caller's own per-user status, appends to the audit trail and re-derives the overall status.",
		Tags:        []string{"Tasks"},
	}, func(ctx context.Context, input *ReportStatusInput) (*TaskOutput, error) {
		userID, err := requireUser(ctx)
		if err != nil {
			return nil, err
		}

		t, err := engine.ReportStatus(ctx, input.ID, userID, domain.Status(input.Body.Status), input.Body.Remarks)
		if err != nil {
			return nil, mapDomainError(err)
		}

		publishTaskEvent(ctx, events, ws.TaskEventStatusChanged, t)

		return &TaskOutput{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "add-task-assignees",
		Method:      http.MethodPost,
		Path:        "/tasks/{id}/assignees",
		Summary:     "Add assignees to a task",
		Tags:        []string{"Tasks"},
	}, func(ctx context.Context, input *AddAssigneesInput) (*TaskOutput, error) {
		userID, err := requireUser(ctx)
		if err != nil {
			return nil, err
		}
		if err := requireRole(ctx, domain.RoleAdmin, domain.RoleManager); err != nil {
			return nil, err
		}

		t, err := engine.AddAssignees(ctx, input.ID, userID, input.Body.UserIDs, input.Body.GroupIDs)
		if err != nil {
			return nil, mapDomainError(err)
		}

		publishTaskEvent(ctx, events, ws.TaskEventUpdated, t)

		return &TaskOutput{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "deactivate-task",
		Method:      http.MethodDelete,
		Path:        "/tasks/{id}",
		Summary:     "Deactivate a task",
		Description: "Soft delete: the task is excluded from listings and the overdue sweep but retained for audit.",
		Tags:        []string{"Tasks"},
	}, func(ctx context.Context, input *DeactivateTaskInput) (*struct{}, error) {
		if err := requireRole(ctx, domain.RoleAdmin, domain.RoleManager); err != nil {
			return nil, err
		}

		if err := engine.SetActive(ctx, input.ID, false); err != nil {
			return nil, mapDomainError(err)
		}

		return nil, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "restore-task",
		Method:      http.MethodPost,
		Path:        "/tasks/{id}/restore",
		Summary:     "Restore a deactivated task",
		Tags:        []string{"Tasks"},
	}, func(ctx context.Context, input *RestoreTaskInput) (*struct{}, error) {
		if err := requireRole(ctx, domain.RoleAdmin, domain.RoleManager); err != nil {
			return nil, err
		}

		if err := engine.SetActive(ctx, input.ID, true); err != nil {
			return nil, mapDomainError(err)
		}

		return nil, nil
	})
}

type OverdueScanOutput struct {
	Body task.ScanReport
}

// RegisterAdminRoutes exposes the on-demand overdue sweep. The route group is
// expected to sit behind RequireRole(admin) middleware; the in-handler check
// is kept so the operation stays safe if remounted.
func RegisterAdminRoutes(api huma.API, scanner OverdueScanner) {
	huma.Register(api, huma.Operation{
		OperationID: "trigger-overdue-scan",
		Method:      http.MethodPost,
		Path:        "/tasks/overdue-scan",
		Summary:     "Run one overdue detection pass now",
		Tags:        []string{"Admin"},
	}, func(ctx context.Context, _ *struct{}) (*OverdueScanOutput, error) {
		if err := requireRole(ctx, domain.RoleAdmin); err != nil {
			return nil, err
		}

		report, err := scanner.ScanAndMarkOverdue(ctx, time.Now())
		if err != nil {
			return nil, huma.Error500InternalServerError("overdue scan failed", err)
		}

		return &OverdueScanOutput{Body: report}, nil
	})
}

// publishTaskEvent pushes a task event onto the task's redis channel for the
// live WebSocket feed. Best effort: failures are logged, never surfaced.
func publishTaskEvent(ctx context.Context, events Publisher, eventType string, t *domain.Task) {
	if events == nil {
		return
	}

	payload, err := json.Marshal(ws.TaskEvent{
		Type:          eventType,
		TaskID:        t.ID,
		OverallStatus: t.OverallStatus,
		Timestamp:     time.Now(),
	})
	if err != nil {
		log.Warn().Err(err).Str("task_id", t.ID.String()).Msg("api: failed to encode task event")
		return
	}

	if err := events.Publish(ctx, redisstore.TaskChannel(t.ID), payload); err != nil {
		log.Warn().Err(err).Str("task_id", t.ID.String()).Msg("api: failed to publish task event")
	}
}
