package task

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/kadro-hq/kadro/internal/domain"
)

// ScanReport summarizes one overdue batch pass.
type ScanReport struct {
	TotalChecked   int `json:"total_checked"`
	Updated        int `json:"updated"`
	AlreadyOverdue int `json:"already_overdue"`
	Skipped        int `json:"skipped"`
}

// Scanner is the periodic batch process that marks expired tasks overdue and
// fans out notifications to the affected assignees. Failures are isolated per
// task: the batch always completes.
type Scanner struct {
	tasks    domain.TaskRepository
	engine   *Engine
	notifier Notifier
	now      func() time.Time
}

func NewScanner(tasks domain.TaskRepository, engine *Engine, notifier Notifier) *Scanner {
	return &Scanner{
		tasks:    tasks,
		engine:   engine,
		notifier: notifier,
		now:      time.Now,
	}
}

// ScanAndMarkOverdue fetches the candidate set once, applies the overdue
// transition to each task, persists the modified ones, and notifies every
// assignee the pass transitioned. Notification fan-out for an episode happens
// at most once across scanner runs, guarded by the OverdueNotified flag.
func (s *Scanner) ScanAndMarkOverdue(ctx context.Context, now time.Time) (ScanReport, error) {
	candidates, err := s.tasks.FindOverdueCandidates(ctx, now)
	if err != nil {
		return ScanReport{}, fmt.Errorf("task.Scanner.ScanAndMarkOverdue: %w", err)
	}

	report := ScanReport{TotalChecked: len(candidates)}

	for _, t := range candidates {
		if t.StatusByUser == nil {
			t.StatusByUser = make(map[uuid.UUID]domain.PerUserStatus)
		}

		transitioned := transitionedAssignees(t, now, s.engine)
		if len(transitioned) == 0 {
			report.AlreadyOverdue++
			continue
		}

		notify := !t.OverdueNotified
		if notify {
			t.OverdueNotified = true
		}

		if err := s.tasks.Save(ctx, t); err != nil {
			report.Skipped++
			log.Error().Err(err).Str("task_id", t.ID.String()).Msg("overdue scan: persist failed")
			continue
		}
		report.Updated++

		if !notify {
			continue
		}
		for _, userID := range transitioned {
			if err := s.notifier.Notify(ctx, userID, "Task overdue",
				fmt.Sprintf("%s is past its due date", t.Title),
				domain.NotificationTaskOverdue, &t.ID); err != nil {
				log.Warn().Err(err).
					Str("task_id", t.ID.String()).
					Str("user_id", userID.String()).
					Msg("overdue scan: notification failed")
			}
		}
	}

	log.Info().
		Int("total_checked", report.TotalChecked).
		Int("updated", report.Updated).
		Int("already_overdue", report.AlreadyOverdue).
		Int("skipped", report.Skipped).
		Msg("overdue scan finished")

	return report, nil
}

// Run invokes the batch on a fixed interval until ctx is cancelled. One pass
// runs immediately on start.
func (s *Scanner) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := s.ScanAndMarkOverdue(ctx, s.now()); err != nil {
			log.Error().Err(err).Msg("overdue scan failed")
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// transitionedAssignees applies the overdue transition and returns the
// assignees whose entries it forced to overdue on this pass.
func transitionedAssignees(t *domain.Task, now time.Time, engine *Engine) []uuid.UUID {
	var open []uuid.UUID
	if t.DueAt != nil && t.DueAt.Before(now) {
		for _, userID := range t.Assignees {
			if t.StatusFor(userID).Open() {
				open = append(open, userID)
			}
		}
	}

	if !engine.CheckAndMarkOverdue(t, now) {
		return nil
	}
	return open
}
