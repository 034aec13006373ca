package v1

import (
	"context"
	"errors"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/kadro-hq/kadro/internal/domain"
	"github.com/kadro-hq/kadro/internal/server/middleware"
	"github.com/kadro-hq/kadro/internal/task"
)

// DataStore abstracts the repository accessor pattern for handler testing.
// *postgres.Store satisfies this interface.
type DataStore interface {
	Users() domain.UserRepository
	Groups() domain.GroupRepository
	Tasks() domain.TaskRepository
	Notifications() domain.NotificationRepository
}

// TaskEngine abstracts task lifecycle operations for handler testing.
// *task.Engine satisfies this interface.
type TaskEngine interface {
	Create(ctx context.Context, p task.CreateTaskParams) (*domain.Task, error)
	ReportStatus(ctx context.Context, taskID, actingUserID uuid.UUID, newStatus domain.Status, remarks string) (*domain.Task, error)
	AddAssignees(ctx context.Context, taskID, editorID uuid.UUID, userIDs, groupIDs []uuid.UUID) (*domain.Task, error)
	UpdateDetails(ctx context.Context, taskID, editorID uuid.UUID, p task.UpdateDetailsParams) (*domain.Task, error)
	SetActive(ctx context.Context, taskID uuid.UUID, active bool) error
}

// OverdueScanner abstracts the overdue sweep for handler testing.
// *task.Scanner satisfies this interface.
type OverdueScanner interface {
	ScanAndMarkOverdue(ctx context.Context, now time.Time) (task.ScanReport, error)
}

// AuthService abstracts authentication operations for handler testing.
// *auth.Service satisfies this interface.
type AuthService interface {
	Register(ctx context.Context, email, password, name, role string) (*domain.User, error)
	Login(ctx context.Context, email, password string) (accessToken, refreshToken string, err error)
	RefreshToken(ctx context.Context, refreshToken string) (string, error)
}

// Publisher pushes event payloads onto the redis bus for the live WebSocket
// feeds. *ws.Hub satisfies this interface.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// mapDomainError translates the domain sentinel wrapped in err into the
// matching huma status error. Anything unrecognized becomes a 500 with err
// attached as cause.
func mapDomainError(err error) error {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return huma.Error400BadRequest(err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		return huma.Error401Unauthorized(err.Error())
	case errors.Is(err, domain.ErrForbidden):
		return huma.Error403Forbidden(err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return huma.Error404NotFound(err.Error())
	case errors.Is(err, domain.ErrConflict):
		return huma.Error409Conflict(err.Error())
	default:
		return huma.Error500InternalServerError("internal error", err)
	}
}

// requireUser pulls the authenticated user ID out of the request context.
func requireUser(ctx context.Context) (uuid.UUID, error) {
	userID, ok := middleware.UserIDFromContext(ctx)
	if !ok {
		return uuid.Nil, huma.Error401Unauthorized("authentication required")
	}
	return userID, nil
}

// requireRole rejects callers whose role is not in the allowed set.
func requireRole(ctx context.Context, roles ...string) error {
	role, ok := middleware.RoleFromContext(ctx)
	if !ok {
		return huma.Error401Unauthorized("authentication required")
	}
	for _, r := range roles {
		if role == r {
			return nil
		}
	}
	return huma.Error403Forbidden("insufficient permissions")
}
