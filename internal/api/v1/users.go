package v1

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/kadro-hq/kadro/internal/domain"
)

type ListUsersOutput struct {
	Body []*domain.User
}

type MeOutput struct {
	Body *domain.User
}

func RegisterUserRoutes(api huma.API, store DataStore) {
	huma.Register(api, huma.Operation{
		OperationID: "list-users",
		Method:      http.MethodGet,
		Path:        "/users",
		Summary:     "List all users",
		Description: "Used by assignment pickers; password hashes are never serialized.",
		Tags:        []string{"Users"},
	}, func(ctx context.Context, _ *struct{}) (*ListUsersOutput, error) {
		users, err := store.Users().List(ctx)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list users", err)
		}

		return &ListUsersOutput{Body: users}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-me",
		Method:      http.MethodGet,
		Path:        "/me",
		Summary:     "Get the authenticated user",
		Tags:        []string{"Users"},
	}, func(ctx context.Context, _ *struct{}) (*MeOutput, error) {
		userID, err := requireUser(ctx)
		if err != nil {
			return nil, err
		}

		u, err := store.Users().GetByID(ctx, userID)
		if err != nil {
			return nil, mapDomainError(err)
		}

		return &MeOutput{Body: u}, nil
	})
}
