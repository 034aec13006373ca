package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kadro-hq/kadro/internal/domain"
)

// TaskRepo persists tasks as documents: scalar columns for the queryable
// fields, JSONB for the per-user status map, the history, and the assignee
// lists. Save is the optimistic whole-document replace.
type TaskRepo struct {
	pool *pgxpool.Pool
}

func NewTaskRepo(pool *pgxpool.Pool) *TaskRepo {
	return &TaskRepo{pool: pool}
}

const taskColumns = `id, title, description, priority, created_by, due_at,
	direct_assignees, assigned_groups, assignees, status_by_user, status_history,
	overall_status, completion_date, marked_overdue_at, overdue_reason,
	overdue_notified, is_active, version, created_at, updated_at`

func (r *TaskRepo) Create(ctx context.Context, t *domain.Task) error {
	doc, err := marshalTaskDoc(t)
	if err != nil {
		return fmt.Errorf("taskRepo.Create: %w", err)
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO tasks (`+taskColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`,
		t.ID, t.Title, t.Description, t.Priority, t.CreatedBy, t.DueAt,
		doc.directAssignees, doc.assignedGroups, doc.assignees, doc.statusByUser, doc.statusHistory,
		t.OverallStatus, t.CompletionDate, t.MarkedOverdueAt, t.OverdueReason,
		t.OverdueNotified, t.IsActive, t.Version, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("taskRepo.Create: %w", err)
	}

	return nil
}

func (r *TaskRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id)

	t, err := scanTask(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("taskRepo.GetByID: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("taskRepo.GetByID: %w", err)
	}

	return t, nil
}

// Save replaces the whole document if the stored version still matches
// t.Version, then increments both. A stale write fails with ErrConflict.
func (r *TaskRepo) Save(ctx context.Context, t *domain.Task) error {
	doc, err := marshalTaskDoc(t)
	if err != nil {
		return fmt.Errorf("taskRepo.Save: %w", err)
	}

	tag, err := r.pool.Exec(ctx,
		`UPDATE tasks SET title = $1, description = $2, priority = $3, due_at = $4,
		        direct_assignees = $5, assigned_groups = $6, assignees = $7,
		        status_by_user = $8, status_history = $9, overall_status = $10,
		        completion_date = $11, marked_overdue_at = $12, overdue_reason = $13,
		        overdue_notified = $14, is_active = $15, version = version + 1,
		        updated_at = $16
		 WHERE id = $17 AND version = $18`,
		t.Title, t.Description, t.Priority, t.DueAt,
		doc.directAssignees, doc.assignedGroups, doc.assignees,
		doc.statusByUser, doc.statusHistory, t.OverallStatus,
		t.CompletionDate, t.MarkedOverdueAt, t.OverdueReason,
		t.OverdueNotified, t.IsActive, t.UpdatedAt,
		t.ID, t.Version,
	)
	if err != nil {
		return fmt.Errorf("taskRepo.Save: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if checkErr := r.pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM tasks WHERE id = $1)`, t.ID,
		).Scan(&exists); checkErr != nil {
			return fmt.Errorf("taskRepo.Save: %w", checkErr)
		}
		if !exists {
			return fmt.Errorf("taskRepo.Save: %w", domain.ErrNotFound)
		}
		return fmt.Errorf("taskRepo.Save: stale version %d: %w", t.Version, domain.ErrConflict)
	}

	t.Version++

	return nil
}

func (r *TaskRepo) ListActive(ctx context.Context, limit, offset int) ([]*domain.Task, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+taskColumns+` FROM tasks
		 WHERE is_active
		 ORDER BY created_at DESC
		 LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("taskRepo.ListActive: %w", err)
	}
	defer rows.Close()

	return scanTasks(rows, "taskRepo.ListActive")
}

func (r *TaskRepo) ListByAssignee(ctx context.Context, userID uuid.UUID) ([]*domain.Task, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+taskColumns+` FROM tasks
		 WHERE is_active AND assignees @> $1
		 ORDER BY created_at DESC
		 LIMIT 500`,
		jsonIDs(userID),
	)
	if err != nil {
		return nil, fmt.Errorf("taskRepo.ListByAssignee: %w", err)
	}
	defer rows.Close()

	return scanTasks(rows, "taskRepo.ListByAssignee")
}

// FindOverdueCandidates over-approximates: any active past-due task whose
// aggregate is still open or already overdue. The overdue pass itself decides
// per assignee.
func (r *TaskRepo) FindOverdueCandidates(ctx context.Context, now time.Time) ([]*domain.Task, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+taskColumns+` FROM tasks
		 WHERE is_active
		   AND due_at IS NOT NULL AND due_at < $1
		   AND overall_status = ANY($2)
		 ORDER BY due_at`,
		now,
		[]string{
			string(domain.StatusPending), string(domain.StatusInProgress),
			string(domain.StatusReopen), string(domain.StatusOnHold),
			string(domain.StatusOverdue),
		},
	)
	if err != nil {
		return nil, fmt.Errorf("taskRepo.FindOverdueCandidates: %w", err)
	}
	defer rows.Close()

	return scanTasks(rows, "taskRepo.FindOverdueCandidates")
}

func (r *TaskRepo) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE tasks SET is_active = $1, updated_at = now() WHERE id = $2`,
		active, id,
	)
	if err != nil {
		return fmt.Errorf("taskRepo.SetActive: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("taskRepo.SetActive: %w", domain.ErrNotFound)
	}

	return nil
}

// taskDoc holds the JSONB-encoded document fields.
type taskDoc struct {
	directAssignees []byte
	assignedGroups  []byte
	assignees       []byte
	statusByUser    []byte
	statusHistory   []byte
}

func marshalTaskDoc(t *domain.Task) (*taskDoc, error) {
	var doc taskDoc
	var err error

	if doc.directAssignees, err = json.Marshal(orEmptyIDs(t.DirectAssignees)); err != nil {
		return nil, fmt.Errorf("marshal direct_assignees: %w", err)
	}
	if doc.assignedGroups, err = json.Marshal(orEmptyIDs(t.AssignedGroups)); err != nil {
		return nil, fmt.Errorf("marshal assigned_groups: %w", err)
	}
	if doc.assignees, err = json.Marshal(orEmptyIDs(t.Assignees)); err != nil {
		return nil, fmt.Errorf("marshal assignees: %w", err)
	}
	if doc.statusByUser, err = json.Marshal(t.StatusByUser); err != nil {
		return nil, fmt.Errorf("marshal status_by_user: %w", err)
	}
	if doc.statusHistory, err = json.Marshal(t.StatusHistory); err != nil {
		return nil, fmt.Errorf("marshal status_history: %w", err)
	}

	return &doc, nil
}

func orEmptyIDs(ids []uuid.UUID) []uuid.UUID {
	if ids == nil {
		return []uuid.UUID{}
	}
	return ids
}

// jsonIDs encodes ids as a JSON array for JSONB containment queries.
func jsonIDs(ids ...uuid.UUID) []byte {
	b, _ := json.Marshal(ids)
	return b
}

func scanTask(row pgx.Row) (*domain.Task, error) {
	var t domain.Task
	var doc taskDoc

	err := row.Scan(
		&t.ID, &t.Title, &t.Description, &t.Priority, &t.CreatedBy, &t.DueAt,
		&doc.directAssignees, &doc.assignedGroups, &doc.assignees,
		&doc.statusByUser, &doc.statusHistory,
		&t.OverallStatus, &t.CompletionDate, &t.MarkedOverdueAt, &t.OverdueReason,
		&t.OverdueNotified, &t.IsActive, &t.Version, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(doc.directAssignees, &t.DirectAssignees); err != nil {
		return nil, fmt.Errorf("unmarshal direct_assignees: %w", err)
	}
	if err := json.Unmarshal(doc.assignedGroups, &t.AssignedGroups); err != nil {
		return nil, fmt.Errorf("unmarshal assigned_groups: %w", err)
	}
	if err := json.Unmarshal(doc.assignees, &t.Assignees); err != nil {
		return nil, fmt.Errorf("unmarshal assignees: %w", err)
	}
	if err := json.Unmarshal(doc.statusByUser, &t.StatusByUser); err != nil {
		return nil, fmt.Errorf("unmarshal status_by_user: %w", err)
	}
	if err := json.Unmarshal(doc.statusHistory, &t.StatusHistory); err != nil {
		return nil, fmt.Errorf("unmarshal status_history: %w", err)
	}
	if t.StatusByUser == nil {
		t.StatusByUser = make(map[uuid.UUID]domain.PerUserStatus)
	}

	return &t, nil
}

func scanTasks(rows pgx.Rows, caller string) ([]*domain.Task, error) {
	var tasks []*domain.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", caller, err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows: %w", caller, err)
	}

	return tasks, nil
}
