package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// NotificationType classifies what triggered a notification.
type NotificationType string

const (
	NotificationStatusChanged NotificationType = "status_changed"
	NotificationTaskAssigned  NotificationType = "task_assigned"
	NotificationTaskOverdue   NotificationType = "task_overdue"
)

type Notification struct {
	ID            uuid.UUID        `json:"id"`
	UserID        uuid.UUID        `json:"user_id"`
	Title         string           `json:"title"`
	Message       string           `json:"message"`
	Type          NotificationType `json:"type"`
	RelatedTaskID *uuid.UUID       `json:"related_task_id,omitempty"`
	Read          bool             `json:"read"`
	CreatedAt     time.Time        `json:"created_at"`
}

type NotificationRepository interface {
	Create(ctx context.Context, n *Notification) error
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Notification, error)
	CountUnread(ctx context.Context, userID uuid.UUID) (int64, error)
	MarkRead(ctx context.Context, userID, id uuid.UUID) error
}
