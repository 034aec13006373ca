package task_test

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kadro-hq/kadro/internal/domain"
)

// ---------------------------------------------------------------------------
// In-memory TaskRepository with version-checked Save
// ---------------------------------------------------------------------------

type memTaskRepo struct {
	mu    sync.Mutex
	tasks map[uuid.UUID]*domain.Task

	// saveErr, when set, is returned by Save the given number of times.
	saveErr      error
	saveErrCount int
}

func newMemTaskRepo() *memTaskRepo {
	return &memTaskRepo{tasks: make(map[uuid.UUID]*domain.Task)}
}

func cloneTask(t *domain.Task) *domain.Task {
	c := *t
	c.DirectAssignees = append([]uuid.UUID(nil), t.DirectAssignees...)
	c.AssignedGroups = append([]uuid.UUID(nil), t.AssignedGroups...)
	c.Assignees = append([]uuid.UUID(nil), t.Assignees...)
	c.StatusHistory = append([]domain.StatusChange(nil), t.StatusHistory...)
	c.StatusByUser = make(map[uuid.UUID]domain.PerUserStatus, len(t.StatusByUser))
	for k, v := range t.StatusByUser {
		c.StatusByUser[k] = v
	}
	return &c
}

func (r *memTaskRepo) Create(_ context.Context, t *domain.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks[t.ID] = cloneTask(t)
	return nil
}

func (r *memTaskRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneTask(t), nil
}

func (r *memTaskRepo) Save(_ context.Context, t *domain.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.saveErrCount > 0 {
		r.saveErrCount--
		return r.saveErr
	}

	stored, ok := r.tasks[t.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if stored.Version != t.Version {
		return domain.ErrConflict
	}
	t.Version++
	r.tasks[t.ID] = cloneTask(t)
	return nil
}

func (r *memTaskRepo) ListActive(_ context.Context, _, _ int) ([]*domain.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Task
	for _, t := range r.tasks {
		if t.IsActive {
			out = append(out, cloneTask(t))
		}
	}
	return out, nil
}

func (r *memTaskRepo) ListByAssignee(_ context.Context, userID uuid.UUID) ([]*domain.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Task
	for _, t := range r.tasks {
		if t.IsActive && t.IsAssignee(userID) {
			out = append(out, cloneTask(t))
		}
	}
	return out, nil
}

func (r *memTaskRepo) FindOverdueCandidates(_ context.Context, now time.Time) ([]*domain.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Task
	for _, t := range r.tasks {
		if !t.IsActive || t.DueAt == nil || !t.DueAt.Before(now) {
			continue
		}
		if t.OverallStatus.Open() || t.OverallStatus == domain.StatusOverdue {
			out = append(out, cloneTask(t))
		}
	}
	return out, nil
}

func (r *memTaskRepo) SetActive(_ context.Context, id uuid.UUID, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok {
		return domain.ErrNotFound
	}
	t.IsActive = active
	return nil
}

// stored returns the persisted copy for assertions.
func (r *memTaskRepo) stored(id uuid.UUID) *domain.Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok {
		return nil
	}
	return cloneTask(t)
}

// ---------------------------------------------------------------------------
// Fake group resolver
// ---------------------------------------------------------------------------

type fakeGroups struct {
	members map[uuid.UUID][]uuid.UUID
}

func (g *fakeGroups) ResolveMembers(_ context.Context, id uuid.UUID) ([]uuid.UUID, error) {
	members, ok := g.members[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return members, nil
}

// ---------------------------------------------------------------------------
// Recording notifier
// ---------------------------------------------------------------------------

type sentNotification struct {
	UserID uuid.UUID
	Title  string
	Type   domain.NotificationType
	TaskID *uuid.UUID
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
	err  error
}

func (n *fakeNotifier) Notify(_ context.Context, userID uuid.UUID, title, _ string, ntype domain.NotificationType, relatedTaskID *uuid.UUID) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, sentNotification{UserID: userID, Title: title, Type: ntype, TaskID: relatedTaskID})
	return nil
}

func (n *fakeNotifier) sentTo(userID uuid.UUID) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	count := 0
	for _, s := range n.sent {
		if s.UserID == userID {
			count++
		}
	}
	return count
}
