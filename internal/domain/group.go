package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Group is a named set of users that can be assigned to a task as a unit.
// Membership is resolved when a task is created or extended, not stored on
// the task as a live reference.
type Group struct {
	ID          uuid.UUID   `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	MemberIDs   []uuid.UUID `json:"member_ids"`
	CreatedBy   uuid.UUID   `json:"created_by"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

type GroupRepository interface {
	Create(ctx context.Context, g *Group) error
	GetByID(ctx context.Context, id uuid.UUID) (*Group, error)
	List(ctx context.Context) ([]*Group, error)
	// ResolveMembers returns the current member set of a group, or ErrNotFound
	// for an unknown group id.
	ResolveMembers(ctx context.Context, id uuid.UUID) ([]uuid.UUID, error)
	AddMember(ctx context.Context, groupID, userID uuid.UUID) error
	RemoveMember(ctx context.Context, groupID, userID uuid.UUID) error
}
