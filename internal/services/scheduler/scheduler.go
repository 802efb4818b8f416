// Package services содержит периодические проверки подписок: напоминания о конце
// пробного периода, истечение пробных периодов и отмену подписок, для которых
// не пришел вебхук Stripe.
package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/rhmaster-billing/internal/cache"
	"github.com/magabrotheeeer/rhmaster-billing/internal/lib/sl"
	"github.com/magabrotheeeer/rhmaster-billing/internal/models"
)

// SubscriptionRepository методы хранилища для периодических проверок.
type SubscriptionRepository interface {
	FindTrialsEndingBetween(ctx context.Context, from, to time.Time) ([]models.ExpiringTrial, error)
	FindElapsedTrials(ctx context.Context, now time.Time) ([]models.ExpiringTrial, error)
	ExpireTrial(ctx context.Context, subscriptionID int64) (bool, error)
	FindDueCancellations(ctx context.Context, now time.Time) ([]*models.Subscription, error)
	MarkCanceled(ctx context.Context, mentorID string, at time.Time) error
}

// Cache отметки об отправленных напоминаниях и сброс снимков подписок.
type Cache interface {
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) (bool, error)
	Invalidate(ctx context.Context, keys ...string) error
}

// Publisher публикует события жизненного цикла.
type Publisher interface {
	Publish(ctx context.Context, event models.LifecycleEvent) error
}

// Report итог одного прохода планировщика.
type Report struct {
	Reminded int
	Expired  int
	Canceled int
}

// SchedulerService выполняет проверки по расписанию.
type SchedulerService struct {
	repo        SubscriptionRepository
	cache       Cache
	publisher   Publisher
	interval    time.Duration
	cancelGrace time.Duration
	log         *slog.Logger
	now         func() time.Time
}

// NewSchedulerService создает новый экземпляр SchedulerService.
func NewSchedulerService(repo SubscriptionRepository, cache Cache, publisher Publisher, interval, cancelGrace time.Duration, log *slog.Logger) *SchedulerService {
	return &SchedulerService{
		repo:        repo,
		cache:       cache,
		publisher:   publisher,
		interval:    interval,
		cancelGrace: cancelGrace,
		log:         log,
		now:         time.Now,
	}
}

// Run выполняет проход сразу и затем каждые interval до отмены ctx.
func (s *SchedulerService) Run(ctx context.Context) {
	s.RunOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopped")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce выполняет все проверки один раз. Ошибки одной проверки не мешают остальным.
func (s *SchedulerService) RunOnce(ctx context.Context) Report {
	now := s.now().UTC()
	report := Report{
		Reminded: s.remindTrialsEnding(ctx, now),
		Expired:  s.expireTrials(ctx, now),
		Canceled: s.reconcileCancellations(ctx, now),
	}
	s.log.Info("scheduler pass finished",
		slog.Int("reminded", report.Reminded),
		slog.Int("expired", report.Expired),
		slog.Int("canceled", report.Canceled))
	return report
}

// remindTrialsEnding публикует trial.ending для пробных периодов, которые заканчиваются завтра.
// Каждому ментору напоминание отправляется один раз.
func (s *SchedulerService) remindTrialsEnding(ctx context.Context, now time.Time) int {
	from := now.Truncate(24 * time.Hour).Add(24 * time.Hour)
	to := from.Add(24 * time.Hour)

	trials, err := s.repo.FindTrialsEndingBetween(ctx, from, to)
	if err != nil {
		s.log.Error("failed to find trials ending tomorrow", sl.Err(err))
		return 0
	}

	sent := 0
	for _, trial := range trials {
		first, err := s.cache.SetNX(ctx, cache.TrialReminderKey(trial.MentorID), trial.TrialEndDate, 72*time.Hour)
		if err != nil {
			s.log.Warn("failed to mark trial reminder", sl.Mentor(trial.MentorID), sl.Err(err))
			continue
		}
		if !first {
			continue
		}
		end := trial.TrialEndDate
		if !s.publish(ctx, models.LifecycleEvent{
			Type: models.EventTrialEnding, MentorID: trial.MentorID, Email: trial.Email, Name: trial.Name,
			Plan: trial.Plan, Status: models.StatusTrial, PeriodEnd: &end,
		}) {
			_ = s.cache.Invalidate(ctx, cache.TrialReminderKey(trial.MentorID))
			continue
		}
		sent++
	}
	return sent
}

// expireTrials переводит закончившиеся пробные периоды в expired.
func (s *SchedulerService) expireTrials(ctx context.Context, now time.Time) int {
	trials, err := s.repo.FindElapsedTrials(ctx, now)
	if err != nil {
		s.log.Error("failed to find elapsed trials", sl.Err(err))
		return 0
	}

	expired := 0
	for _, trial := range trials {
		ok, err := s.repo.ExpireTrial(ctx, trial.SubscriptionID)
		if err != nil {
			s.log.Error("failed to expire trial", sl.Mentor(trial.MentorID), sl.Err(err))
			continue
		}
		if !ok {
			continue
		}
		expired++
		s.invalidate(ctx, trial.MentorID)
		end := trial.TrialEndDate
		s.publish(ctx, models.LifecycleEvent{
			Type: models.EventTrialExpired, MentorID: trial.MentorID, Email: trial.Email, Name: trial.Name,
			Plan: trial.Plan, Status: models.StatusExpired, PeriodEnd: &end,
		})
	}
	return expired
}

// reconcileCancellations отменяет подписки с отменой в конце периода, если после конца
// периода прошло больше cancelGrace, а вебхук так и не пришел.
func (s *SchedulerService) reconcileCancellations(ctx context.Context, now time.Time) int {
	due, err := s.repo.FindDueCancellations(ctx, now.Add(-s.cancelGrace))
	if err != nil {
		s.log.Error("failed to find due cancellations", sl.Err(err))
		return 0
	}

	canceled := 0
	for _, sub := range due {
		at := now
		if sub.CurrentPeriodEnd != nil {
			at = *sub.CurrentPeriodEnd
		}
		if err := s.repo.MarkCanceled(ctx, sub.MentorID, at); err != nil {
			s.log.Error("failed to cancel subscription", sl.Mentor(sub.MentorID), sl.Err(err))
			continue
		}
		canceled++
		s.invalidate(ctx, sub.MentorID)
		s.publish(ctx, models.LifecycleEvent{
			Type: models.EventSubscriptionCanceled, MentorID: sub.MentorID, Plan: sub.Plan,
			Status: models.StatusCanceled, PeriodEnd: sub.CurrentPeriodEnd,
		})
	}
	return canceled
}

func (s *SchedulerService) invalidate(ctx context.Context, mentorID string) {
	if err := s.cache.Invalidate(ctx, cache.SubscriptionKey(mentorID)); err != nil {
		s.log.Warn("failed to invalidate subscription cache", sl.Mentor(mentorID), sl.Err(err))
	}
}

func (s *SchedulerService) publish(ctx context.Context, event models.LifecycleEvent) bool {
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.log.Error("failed to publish message", slog.String("type", string(event.Type)), sl.Err(err))
		return false
	}
	return true
}
