package v1

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/kadro-hq/kadro/internal/domain"
)

type CreateGroupInput struct {
	Body struct {
		Name        string      `json:"name" minLength:"1" maxLength:"255" doc:"Group name"`
		Description string      `json:"description,omitempty" doc:"Group description"`
		MemberIDs   []uuid.UUID `json:"member_ids,omitempty" doc:"Initial member user IDs"`
	}
}

type GroupOutput struct {
	Body *domain.Group
}

type ListGroupsOutput struct {
	Body []*domain.Group
}

type GetGroupInput struct {
	ID uuid.UUID `path:"id" doc:"Group ID"`
}

type GroupMemberInput struct {
	ID     uuid.UUID `path:"id" doc:"Group ID"`
	UserID uuid.UUID `path:"userID" doc:"User ID"`
}

func RegisterGroupRoutes(api huma.API, store DataStore) {
	huma.Register(api, huma.Operation{
		OperationID: "create-group",
		Method:      http.MethodPost,
		Path:        "/groups",
		Summary:     "Create a new group",
		Tags:        []string{"Groups"},
	}, func(ctx context.Context, input *CreateGroupInput) (*GroupOutput, error) {
		userID, err := requireUser(ctx)
		if err != nil {
			return nil, err
		}
		if err := requireRole(ctx, domain.RoleAdmin, domain.RoleManager); err != nil {
			return nil, err
		}

		// Unknown member IDs are rejected up front; a group must never refer
		// to users that do not exist.
		for _, memberID := range input.Body.MemberIDs {
			if _, err := store.Users().GetByID(ctx, memberID); err != nil {
				return nil, mapDomainError(err)
			}
		}

		now := time.Now()
		g := &domain.Group{
			ID:          uuid.New(),
			Name:        input.Body.Name,
			Description: input.Body.Description,
			MemberIDs:   input.Body.MemberIDs,
			CreatedBy:   userID,
			CreatedAt:   now,
			UpdatedAt:   now,
		}

		if err := store.Groups().Create(ctx, g); err != nil {
			return nil, mapDomainError(err)
		}

		return &GroupOutput{Body: g}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-groups",
		Method:      http.MethodGet,
		Path:        "/groups",
		Summary:     "List all groups",
		Tags:        []string{"Groups"},
	}, func(ctx context.Context, _ *struct{}) (*ListGroupsOutput, error) {
		groups, err := store.Groups().List(ctx)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list groups", err)
		}

		return &ListGroupsOutput{Body: groups}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-group",
		Method:      http.MethodGet,
		Path:        "/groups/{id}",
		Summary:     "Get a group by ID",
		Tags:        []string{"Groups"},
	}, func(ctx context.Context, input *GetGroupInput) (*GroupOutput, error) {
		g, err := store.Groups().GetByID(ctx, input.ID)
		if err != nil {
			return nil, mapDomainError(err)
		}

		return &GroupOutput{Body: g}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "add-group-member",
		Method:      http.MethodPut,
		Path:        "/groups/{id}/members/{userID}",
		Summary:     "Add a user to a group",
		Description: "Affects future task assignments only. Tasks already assigned to the group keep their snapshotted audience.",
		Tags:        []string{"Groups"},
	}, func(ctx context.Context, input *GroupMemberInput) (*struct{}, error) {
		if err := requireRole(ctx, domain.RoleAdmin, domain.RoleManager); err != nil {
			return nil, err
		}

		if _, err := store.Users().GetByID(ctx, input.UserID); err != nil {
			return nil, mapDomainError(err)
		}

		if err := store.Groups().AddMember(ctx, input.ID, input.UserID); err != nil {
			return nil, mapDomainError(err)
		}

		return nil, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "remove-group-member",
		Method:      http.MethodDelete,
		Path:        "/groups/{id}/members/{userID}",
		Summary:     "Remove a user from a group",
		Tags:        []string{"Groups"},
	}, func(ctx context.Context, input *GroupMemberInput) (*struct{}, error) {
		if err := requireRole(ctx, domain.RoleAdmin, domain.RoleManager); err != nil {
			return nil, err
		}

		if err := store.Groups().RemoveMember(ctx, input.ID, input.UserID); err != nil {
			return nil, mapDomainError(err)
		}

		return nil, nil
	})
}
