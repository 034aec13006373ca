package v1

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/kadro-hq/kadro/internal/domain"
)

type ListNotificationsInput struct {
	Limit  int `query:"limit" minimum:"1" maximum:"200" default:"50" doc:"Page size"`
	Offset int `query:"offset" minimum:"0" doc:"Page offset"`
}

type ListNotificationsOutput struct {
	Body []*domain.Notification
}

type UnreadCountOutput struct {
	Body struct {
		Unread int64 `json:"unread"`
	}
}

type MarkReadInput struct {
	ID uuid.UUID `path:"id" doc:"Notification ID"`
}

func RegisterNotificationRoutes(api huma.API, store DataStore) {
	huma.Register(api, huma.Operation{
		OperationID: "list-notifications",
		Method:      http.MethodGet,
		Path:        "/notifications",
		Summary:     "List the caller's notifications",
		Tags:        []string{"Notifications"},
	}, func(ctx context.Context, input *ListNotificationsInput) (*ListNotificationsOutput, error) {
		userID, err := requireUser(ctx)
		if err != nil {
			return nil, err
		}

		items, err := store.Notifications().ListByUser(ctx, userID, input.Limit, input.Offset)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list notifications", err)
		}

		return &ListNotificationsOutput{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "unread-notification-count",
		Method:      http.MethodGet,
		Path:        "/notifications/unread",
		Summary:     "Count the caller's unread notifications",
		Tags:        []string{"Notifications"},
	}, func(ctx context.Context, _ *struct{}) (*UnreadCountOutput, error) {
		userID, err := requireUser(ctx)
		if err != nil {
			return nil, err
		}

		count, err := store.Notifications().CountUnread(ctx, userID)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to count notifications", err)
		}

		out := &UnreadCountOutput{}
		out.Body.Unread = count
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "mark-notification-read",
		Method:      http.MethodPost,
		Path:        "/notifications/{id}/read",
		Summary:     "Mark one of the caller's notifications as read",
		Tags:        []string{"Notifications"},
	}, func(ctx context.Context, input *MarkReadInput) (*struct{}, error) {
		userID, err := requireUser(ctx)
		if err != nil {
			return nil, err
		}

		// Scoped to the caller; marking another user's notification yields
		// not found rather than leaking its existence.
		if err := store.Notifications().MarkRead(ctx, userID, input.ID); err != nil {
			return nil, mapDomainError(err)
		}

		return nil, nil
	})
}
