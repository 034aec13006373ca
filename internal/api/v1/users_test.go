package v1_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v1 "github.com/kadro-hq/kadro/internal/api/v1"
	"github.com/kadro-hq/kadro/internal/domain"
)

func TestListUsers(t *testing.T) {
	t.Parallel()

	_, api := humatest.New(t)
	store := &mockDataStore{
		users: &mockUserRepo{
			listFunc: func(_ context.Context) ([]*domain.User, error) {
				return []*domain.User{
					{ID: uuid.New(), Email: "alice@example.com", Name: "Alice", Role: domain.RoleManager},
					{ID: uuid.New(), Email: "bob@example.com", Name: "Bob", Role: domain.RoleMember},
				}, nil
			},
		},
	}
	v1.RegisterUserRoutes(api, store)

	resp := api.GetCtx(memberCtx(uuid.New()), "/users")

	require.Equal(t, http.StatusOK, resp.Code)

	var body []*domain.User
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Len(t, body, 2)
	assert.NotContains(t, resp.Body.String(), "password", "hashes never serialize")
}

func TestGetMe(t *testing.T) {
	t.Parallel()

	userID := uuid.New()

	_, api := humatest.New(t)
	store := &mockDataStore{
		users: &mockUserRepo{
			getByIDFunc: func(_ context.Context, id uuid.UUID) (*domain.User, error) {
				assert.Equal(t, userID, id)
				return &domain.User{ID: id, Email: "alice@example.com", Name: "Alice", Role: domain.RoleAdmin}, nil
			},
		},
	}
	v1.RegisterUserRoutes(api, store)

	resp := api.GetCtx(adminCtx(userID), "/me")

	require.Equal(t, http.StatusOK, resp.Code)

	var body domain.User
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, userID, body.ID)
	assert.Equal(t, domain.RoleAdmin, body.Role)
}
