package ws

import (
	"time"

	"github.com/google/uuid"

	"github.com/kadro-hq/kadro/internal/domain"
)

// Task event types pushed to per-task feeds.
const (
	TaskEventCreated       = "task_created"
	TaskEventUpdated       = "task_updated"
	TaskEventStatusChanged = "status_changed"
)

// TaskEvent represents a real-time task update pushed to subscribers of a
// task's channel.
type TaskEvent struct {
	Type          string        `json:"type"`
	TaskID        uuid.UUID     `json:"task_id"`
	OverallStatus domain.Status `json:"overall_status"`
	Timestamp     time.Time     `json:"timestamp"`
}
