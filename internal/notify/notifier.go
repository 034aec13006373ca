// Package notify persists notifications and fans them out to live channels:
// the user's redis feed and, when configured, Slack.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	slacklib "github.com/slack-go/slack"

	"github.com/kadro-hq/kadro/internal/domain"
	redisstore "github.com/kadro-hq/kadro/internal/store/redis"
)

// Publisher is the event bus side of the service (satisfied by
// *redisstore.PubSub).
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// SlackAPI abstracts the subset of the Slack client the service uses, so
// tests run without real HTTP calls.
type SlackAPI interface {
	PostMessage(channelID string, options ...slacklib.MsgOption) (string, string, error)
}

// UserDirectory resolves a user's Slack link.
type UserDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

// Service implements the engine-facing Notifier contract. The database write
// is the source of truth; the redis and Slack deliveries after it are
// best-effort and only logged on failure.
type Service struct {
	notifications domain.NotificationRepository
	bus           Publisher
	users         UserDirectory
	slack         SlackAPI // nil when Slack is not configured
}

func NewService(notifications domain.NotificationRepository, bus Publisher, users UserDirectory, slack SlackAPI) *Service {
	return &Service{
		notifications: notifications,
		bus:           bus,
		users:         users,
		slack:         slack,
	}
}

// Notify records a notification for userID and pushes it to the user's live
// channels.
func (s *Service) Notify(ctx context.Context, userID uuid.UUID, title, message string, ntype domain.NotificationType, relatedTaskID *uuid.UUID) error {
	n := &domain.Notification{
		ID:            uuid.New(),
		UserID:        userID,
		Title:         title,
		Message:       message,
		Type:          ntype,
		RelatedTaskID: relatedTaskID,
		CreatedAt:     time.Now(),
	}

	if err := s.notifications.Create(ctx, n); err != nil {
		return fmt.Errorf("notify.Service.Notify: %w", err)
	}

	s.publish(ctx, n)
	s.sendSlack(ctx, n)

	return nil
}

func (s *Service) publish(ctx context.Context, n *domain.Notification) {
	if s.bus == nil {
		return
	}

	payload, err := json.Marshal(n)
	if err != nil {
		log.Warn().Err(err).Msg("notify: marshal event")
		return
	}
	if err := s.bus.Publish(ctx, redisstore.UserChannel(n.UserID), payload); err != nil {
		log.Warn().Err(err).Str("user_id", n.UserID.String()).Msg("notify: publish event")
	}
}

func (s *Service) sendSlack(ctx context.Context, n *domain.Notification) {
	if s.slack == nil {
		return
	}

	user, err := s.users.GetByID(ctx, n.UserID)
	if err != nil {
		log.Warn().Err(err).Str("user_id", n.UserID.String()).Msg("notify: slack user lookup")
		return
	}
	if user.SlackID == "" {
		return
	}

	text := n.Title + ": " + n.Message
	if _, _, err := s.slack.PostMessage(user.SlackID, slacklib.MsgOptionText(text, false)); err != nil {
		log.Warn().Err(err).Str("user_id", n.UserID.String()).Msg("notify: slack delivery")
	}
}
