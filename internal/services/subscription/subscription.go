// Package services содержит бизнес-логику подписок менторов: чтение состояния
// с кешированием, оформление и смену тарифа через Stripe, отмену и возобновление,
// обработку вебхуков и лимит клиентов.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/magabrotheeeer/rhmaster-billing/internal/cache"
	"github.com/magabrotheeeer/rhmaster-billing/internal/config"
	"github.com/magabrotheeeer/rhmaster-billing/internal/lib/plans"
	"github.com/magabrotheeeer/rhmaster-billing/internal/lib/sl"
	"github.com/magabrotheeeer/rhmaster-billing/internal/lifecycle"
	"github.com/magabrotheeeer/rhmaster-billing/internal/metrics"
	"github.com/magabrotheeeer/rhmaster-billing/internal/models"
	"github.com/magabrotheeeer/rhmaster-billing/internal/paymentprovider"
	"github.com/magabrotheeeer/rhmaster-billing/internal/storage/repository"
)

// SubscriptionRepository определяет методы хранилища, нужные сервису подписок.
type SubscriptionRepository interface {
	GetMentor(ctx context.Context, mentorID string) (*models.Mentor, error)
	GetSubscription(ctx context.Context, mentorID string) (*models.Subscription, error)
	GetSubscriptionByProviderID(ctx context.Context, providerSubscriptionID string) (*models.Subscription, error)
	GetSubscriptionByCustomerID(ctx context.Context, customerID string) (*models.Subscription, error)
	SaveSubscription(ctx context.Context, sub models.Subscription) (int64, error)
	SetProviderCustomer(ctx context.Context, mentorID, customerID string) error
	SetCancelAtPeriodEnd(ctx context.Context, mentorID string, cancel bool) error
	MarkCanceled(ctx context.Context, mentorID string, at time.Time) error
	InsertCancellation(ctx context.Context, c models.Cancellation) error
	UpsertInvoice(ctx context.Context, inv models.Invoice) (bool, error)
	ListInvoices(ctx context.Context, mentorID string) ([]models.Invoice, error)
	MarkWebhookProcessed(ctx context.Context, eventID, eventType string) (bool, error)
	ForgetWebhook(ctx context.Context, eventID string) error
}

// PaymentProvider описывает операции платежного провайдера.
type PaymentProvider interface {
	CreateCustomer(ctx context.Context, mentorID, email, name string) (string, error)
	CreateSubscription(ctx context.Context, mentorID, customerID, priceID, idempotencyKey string) (*paymentprovider.Subscription, error)
	ChangePrice(ctx context.Context, subscriptionID, priceID, idempotencyKey string) (*paymentprovider.Subscription, error)
	Cancel(ctx context.Context, subscriptionID, reason string) (*paymentprovider.Subscription, error)
	SetCancelAtPeriodEnd(ctx context.Context, subscriptionID string, cancel bool, reason string) (*paymentprovider.Subscription, error)
	ListInvoices(ctx context.Context, customerID string) ([]models.Invoice, error)
	ParseWebhook(payload []byte, signature string) (*paymentprovider.Event, error)
}

// Cache описывает методы для кеширования, идемпотентности и блокировок.
type Cache interface {
	Get(ctx context.Context, key string, result any) (bool, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) (bool, error)
	Invalidate(ctx context.Context, keys ...string) error
	Lock(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error)
}

// Publisher публикует события жизненного цикла для уведомлений.
type Publisher interface {
	Publish(ctx context.Context, event models.LifecycleEvent) error
}

type priceRef struct {
	plan  models.PlanID
	cycle models.BillingCycle
}

// SubscriptionService реализует бизнес-логику подписок.
type SubscriptionService struct {
	repo      SubscriptionRepository
	provider  PaymentProvider
	cache     Cache
	publisher Publisher
	metrics   *metrics.Metrics
	stripe    config.Stripe
	billing   config.Billing
	byPrice   map[string]priceRef
	log       *slog.Logger
	now       func() time.Time
}

// NewSubscriptionService создает новый экземпляр SubscriptionService.
func NewSubscriptionService(
	repo SubscriptionRepository,
	provider PaymentProvider,
	cache Cache,
	publisher Publisher,
	m *metrics.Metrics,
	cfg *config.Config,
	log *slog.Logger,
) *SubscriptionService {
	byPrice := make(map[string]priceRef, len(cfg.Prices))
	for key, priceID := range cfg.Prices {
		i := strings.LastIndex(key, "_")
		if i <= 0 || priceID == "" {
			continue
		}
		byPrice[priceID] = priceRef{plan: models.PlanID(key[:i]), cycle: models.BillingCycle(key[i+1:])}
	}
	return &SubscriptionService{
		repo:      repo,
		provider:  provider,
		cache:     cache,
		publisher: publisher,
		metrics:   m,
		stripe:    cfg.Stripe,
		billing:   cfg.Billing,
		byPrice:   byPrice,
		log:       log,
		now:       time.Now,
	}
}

// Current возвращает подписку ментора. Снимок читается из кеша, при промахе из БД.
func (s *SubscriptionService) Current(ctx context.Context, mentorID string) (*models.Subscription, error) {
	const op = "services.subscription.Current"

	var sub *models.Subscription
	key := cache.SubscriptionKey(mentorID)
	found, err := s.cache.Get(ctx, key, &sub)
	if err != nil {
		s.log.Warn("failed to read subscription from cache", slog.String("key", key), sl.Err(err))
	}
	if !found || sub == nil {
		sub, err = s.repo.GetSubscription(ctx, mentorID)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrSubscriptionNotFound)
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if err := s.cache.Set(ctx, key, sub, s.billing.CacheTTL); err != nil {
			s.log.Warn("failed to cache subscription", slog.String("key", key), sl.Err(err))
		}
	}

	if sub.Status == models.StatusTrial {
		days := sub.TrialDaysRemainingAt(s.now())
		sub.DaysRemaining = &days
	} else {
		sub.DaysRemaining = nil
	}
	return sub, nil
}

// TrialInfo возвращает сведения о пробном периоде. Без подписки все поля нулевые.
func (s *SubscriptionService) TrialInfo(ctx context.Context, mentorID string) (*models.TrialInfo, error) {
	const op = "services.subscription.TrialInfo"

	sub, err := s.Current(ctx, mentorID)
	if errors.Is(err, ErrSubscriptionNotFound) {
		return &models.TrialInfo{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	info := &models.TrialInfo{
		TrialEndDate:          sub.TrialEndDate,
		HasActiveSubscription: sub.Status == models.StatusActive,
	}
	if sub.Status == models.StatusTrial {
		info.DaysRemaining = sub.TrialDaysRemainingAt(s.now())
		info.IsTrialActive = info.DaysRemaining > 0
	}
	if sub.Status == models.StatusActive || sub.Status == models.StatusTrial {
		plan := sub.Plan
		info.Plan = &plan
	}
	return info, nil
}

// Invoices возвращает счета ментора, новые первыми. Если локальная история пуста,
// а покупатель в Stripe уже есть, счета подтягиваются из Stripe и сохраняются.
func (s *SubscriptionService) Invoices(ctx context.Context, mentorID string) ([]models.Invoice, error) {
	const op = "services.subscription.Invoices"

	invoices, err := s.repo.ListInvoices(ctx, mentorID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if len(invoices) > 0 {
		return invoices, nil
	}

	sub, err := s.repo.GetSubscription(ctx, mentorID)
	if errors.Is(err, repository.ErrNotFound) {
		return invoices, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if sub.ProviderCustomerID == "" {
		return invoices, nil
	}

	remote, err := s.provider.ListInvoices(ctx, sub.ProviderCustomerID)
	if err != nil {
		s.log.Warn("failed to backfill invoices", sl.Mentor(mentorID), sl.Err(err))
		return invoices, nil
	}
	if len(remote) == 0 {
		return invoices, nil
	}
	for i := range remote {
		remote[i].MentorID = mentorID
		if _, err := s.repo.UpsertInvoice(ctx, remote[i]); err != nil {
			s.log.Warn("failed to store backfilled invoice", slog.String("invoice", remote[i].ID), sl.Err(err))
		}
	}
	return remote, nil
}

// Plans возвращает витрину тарифов.
func (s *SubscriptionService) Plans() plans.Catalog {
	return plans.CurrentCatalog()
}

// Create оформляет платную подписку. Если первый счет требует оплаты,
// возвращает client secret, иначе Success. Локальный статус до подтверждения
// оплаты не меняется, его переводит вебхук.
func (s *SubscriptionService) Create(ctx context.Context, mentorID string, req models.ChangePlanRequest, idempotencyKey string) (models.ChangePlanResult, error) {
	const op = "services.subscription.Create"

	var result models.ChangePlanResult
	err := s.mutate(ctx, op, mentorID, func(ctx context.Context) error {
		if s.replay(ctx, mentorID, idempotencyKey, &result) {
			return nil
		}

		plan, cycle, priceID, err := s.resolvePrice(req)
		if err != nil {
			return err
		}

		sub, err := s.repo.GetSubscription(ctx, mentorID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return err
		}
		if sub != nil && sub.Status == models.StatusActive && sub.ProviderSubscriptionID != "" {
			return ErrAlreadySubscribed
		}

		customerID, err := s.ensureCustomer(ctx, mentorID, sub)
		if err != nil {
			return err
		}

		ps, err := s.provider.CreateSubscription(ctx, mentorID, customerID, priceID, idempotencyKey)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrProvider, err)
		}

		if ps.ClientSecret != "" {
			result = models.ChangePlanResult{ClientSecret: ps.ClientSecret}
		} else {
			next := s.applyProvider(sub, ps, mentorID)
			next.Plan, next.BillingCycle, next.MaxClients = plan.ID, cycle, plan.MaxClients
			if _, err := s.repo.SaveSubscription(ctx, next); err != nil {
				return err
			}
			s.publish(ctx, models.LifecycleEvent{
				Type: models.EventSubscriptionActivated, MentorID: mentorID, Plan: plan.ID,
				Status: next.Status, PeriodEnd: next.CurrentPeriodEnd,
			})
			result = models.ChangePlanResult{Success: true}
		}
		s.remember(ctx, mentorID, idempotencyKey, result)
		return nil
	})
	if err != nil {
		return models.ChangePlanResult{}, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// Update меняет тариф или цикл оплаты действующей подписки. Перерасчет делает Stripe,
// доплата выставляется отдельным счетом.
func (s *SubscriptionService) Update(ctx context.Context, mentorID string, req models.ChangePlanRequest, idempotencyKey string) (models.ChangePlanResult, error) {
	const op = "services.subscription.Update"

	var result models.ChangePlanResult
	err := s.mutate(ctx, op, mentorID, func(ctx context.Context) error {
		if s.replay(ctx, mentorID, idempotencyKey, &result) {
			return nil
		}

		plan, cycle, priceID, err := s.resolvePrice(req)
		if err != nil {
			return err
		}

		sub, err := s.repo.GetSubscription(ctx, mentorID)
		if errors.Is(err, repository.ErrNotFound) {
			return ErrSubscriptionNotFound
		}
		if err != nil {
			return err
		}
		if sub.Status != models.StatusActive || sub.ProviderSubscriptionID == "" {
			return ErrSubscriptionNotFound
		}
		if sub.Plan == plan.ID && sub.BillingCycle == cycle && !sub.CancelAtPeriodEnd {
			return ErrAlreadySubscribed
		}

		ps, err := s.provider.ChangePrice(ctx, sub.ProviderSubscriptionID, priceID, idempotencyKey)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrProvider, err)
		}

		if ps.ClientSecret != "" {
			result = models.ChangePlanResult{ClientSecret: ps.ClientSecret}
		} else {
			next := s.applyProvider(sub, ps, mentorID)
			next.Plan, next.BillingCycle, next.MaxClients = plan.ID, cycle, plan.MaxClients
			if _, err := s.repo.SaveSubscription(ctx, next); err != nil {
				return err
			}
			s.publish(ctx, models.LifecycleEvent{
				Type: models.EventSubscriptionUpdated, MentorID: mentorID, Plan: plan.ID,
				Status: next.Status, PeriodEnd: next.CurrentPeriodEnd,
			})
			result = models.ChangePlanResult{Success: true}
		}
		s.remember(ctx, mentorID, idempotencyKey, result)
		return nil
	})
	if err != nil {
		return models.ChangePlanResult{}, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// Cancel отменяет подписку сразу или в конце оплаченного периода.
func (s *SubscriptionService) Cancel(ctx context.Context, mentorID string, req models.CancelRequest) (models.MessageResponse, error) {
	const op = "services.subscription.Cancel"

	var resp models.MessageResponse
	err := s.mutate(ctx, op, mentorID, func(ctx context.Context) error {
		sub, err := s.repo.GetSubscription(ctx, mentorID)
		if errors.Is(err, repository.ErrNotFound) {
			return ErrSubscriptionNotFound
		}
		if err != nil {
			return err
		}

		event := lifecycle.CancelAtPeriodEnd
		if req.CancelImmediate {
			event = lifecycle.CancelImmediate
		}
		if !lifecycle.CanTransition(lifecycle.Observe(sub), event) {
			return ErrNotCancelable
		}

		reason := ""
		if req.Reason != nil {
			reason = strings.TrimSpace(*req.Reason)
		}
		now := s.now().UTC()

		if req.CancelImmediate {
			if sub.ProviderSubscriptionID != "" {
				if _, err := s.provider.Cancel(ctx, sub.ProviderSubscriptionID, reason); err != nil {
					return fmt.Errorf("%w: %w", ErrProvider, err)
				}
			}
			if err := s.repo.MarkCanceled(ctx, mentorID, now); err != nil {
				return err
			}
			resp.Message = "Subscription canceled"
			s.publish(ctx, models.LifecycleEvent{
				Type: models.EventSubscriptionCanceled, MentorID: mentorID, Plan: sub.Plan, Status: models.StatusCanceled,
			})
		} else {
			if sub.ProviderSubscriptionID != "" {
				if _, err := s.provider.SetCancelAtPeriodEnd(ctx, sub.ProviderSubscriptionID, true, reason); err != nil {
					return fmt.Errorf("%w: %w", ErrProvider, err)
				}
			}
			if err := s.repo.SetCancelAtPeriodEnd(ctx, mentorID, true); err != nil {
				return err
			}
			resp.Message = "Subscription will be canceled at the end of the billing period"
			if sub.CurrentPeriodEnd != nil {
				resp.Message += " (" + sub.CurrentPeriodEnd.Format("January 2, 2006") + ")"
			}
			s.publish(ctx, models.LifecycleEvent{
				Type: models.EventSubscriptionCancelSched, MentorID: mentorID, Plan: sub.Plan,
				Status: sub.Status, PeriodEnd: sub.CurrentPeriodEnd,
			})
		}

		err = s.repo.InsertCancellation(ctx, models.Cancellation{
			SubscriptionID: sub.ID,
			MentorID:       mentorID,
			Reason:         reason,
			Immediate:      req.CancelImmediate,
			CreatedAt:      now,
		})
		if err != nil {
			s.log.Warn("failed to record cancellation reason", sl.Mentor(mentorID), sl.Err(err))
		}
		return nil
	})
	if err != nil {
		return models.MessageResponse{}, fmt.Errorf("%s: %w", op, err)
	}
	return resp, nil
}

// Reactivate снимает запланированную отмену.
func (s *SubscriptionService) Reactivate(ctx context.Context, mentorID string) (models.MessageResponse, error) {
	const op = "services.subscription.Reactivate"

	err := s.mutate(ctx, op, mentorID, func(ctx context.Context) error {
		sub, err := s.repo.GetSubscription(ctx, mentorID)
		if errors.Is(err, repository.ErrNotFound) {
			return ErrSubscriptionNotFound
		}
		if err != nil {
			return err
		}
		if !lifecycle.CanTransition(lifecycle.Observe(sub), lifecycle.Reactivate) {
			return ErrNotReactivatable
		}

		if sub.ProviderSubscriptionID != "" {
			if _, err := s.provider.SetCancelAtPeriodEnd(ctx, sub.ProviderSubscriptionID, false, ""); err != nil {
				return fmt.Errorf("%w: %w", ErrProvider, err)
			}
		}
		if err := s.repo.SetCancelAtPeriodEnd(ctx, mentorID, false); err != nil {
			return err
		}
		s.publish(ctx, models.LifecycleEvent{
			Type: models.EventSubscriptionReactivated, MentorID: mentorID, Plan: sub.Plan,
			Status: sub.Status, PeriodEnd: sub.CurrentPeriodEnd,
		})
		return nil
	})
	if err != nil {
		return models.MessageResponse{}, fmt.Errorf("%s: %w", op, err)
	}
	return models.MessageResponse{Message: "Subscription reactivated"}, nil
}

// mutate выполняет fn под блокировкой ментора и сбрасывает кеш подписки.
func (s *SubscriptionService) mutate(ctx context.Context, op, mentorID string, fn func(context.Context) error) error {
	unlock, err := s.cache.Lock(ctx, cache.MutationLockKey(mentorID), s.billing.MutationLock)
	if errors.Is(err, cache.ErrLocked) {
		s.metrics.ObserveOperation(op, ErrMutationInProgress)
		return ErrMutationInProgress
	}
	if err != nil {
		s.metrics.ObserveOperation(op, err)
		return err
	}
	defer func() {
		if err := unlock(context.WithoutCancel(ctx)); err != nil {
			s.log.Warn("failed to release mutation lock", sl.Mentor(mentorID), sl.Err(err))
		}
	}()

	err = fn(ctx)
	s.invalidate(ctx, mentorID)
	s.metrics.ObserveOperation(op, err)
	if err != nil {
		return err
	}
	s.log.Info("subscription changed", sl.Op(op), sl.Mentor(mentorID))
	return nil
}

func (s *SubscriptionService) invalidate(ctx context.Context, mentorID string) {
	if err := s.cache.Invalidate(context.WithoutCancel(ctx), cache.SubscriptionKey(mentorID)); err != nil {
		s.log.Warn("failed to invalidate subscription cache", sl.Mentor(mentorID), sl.Err(err))
	}
}

// replay подставляет ранее сохраненный результат для повторного ключа идемпотентности.
func (s *SubscriptionService) replay(ctx context.Context, mentorID, idempotencyKey string, result *models.ChangePlanResult) bool {
	if idempotencyKey == "" {
		return false
	}
	found, err := s.cache.Get(ctx, cache.IdempotencyKey(mentorID, idempotencyKey), result)
	if err != nil {
		s.log.Warn("failed to read idempotency key", sl.Mentor(mentorID), sl.Err(err))
		return false
	}
	if found {
		s.log.Info("replaying idempotent request", sl.Mentor(mentorID))
	}
	return found
}

func (s *SubscriptionService) remember(ctx context.Context, mentorID, idempotencyKey string, result models.ChangePlanResult) {
	if idempotencyKey == "" {
		return
	}
	if _, err := s.cache.SetNX(ctx, cache.IdempotencyKey(mentorID, idempotencyKey), result, s.billing.IdempotencyTTL); err != nil {
		s.log.Warn("failed to store idempotency key", sl.Mentor(mentorID), sl.Err(err))
	}
}

func (s *SubscriptionService) resolvePrice(req models.ChangePlanRequest) (plans.Plan, models.BillingCycle, string, error) {
	plan, err := plans.ByID(req.PlanID)
	if err != nil {
		return plans.Plan{}, "", "", ErrUnknownPlan
	}
	cycle := req.BillingCycle
	if cycle == "" {
		cycle = models.CycleMonthly
	}
	priceID, ok := s.stripe.PriceID(string(plan.ID), string(cycle))
	if !ok {
		return plans.Plan{}, "", "", fmt.Errorf("%w: no price for %s %s", ErrUnknownPlan, plan.ID, cycle)
	}
	return plan, cycle, priceID, nil
}

func (s *SubscriptionService) ensureCustomer(ctx context.Context, mentorID string, sub *models.Subscription) (string, error) {
	if sub != nil && sub.ProviderCustomerID != "" {
		return sub.ProviderCustomerID, nil
	}
	mentor, err := s.repo.GetMentor(ctx, mentorID)
	if err != nil {
		return "", err
	}
	customerID, err := s.provider.CreateCustomer(ctx, mentorID, mentor.Email, mentor.Name)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrProvider, err)
	}
	if sub != nil {
		if err := s.repo.SetProviderCustomer(ctx, mentorID, customerID); err != nil {
			return "", err
		}
	}
	return customerID, nil
}

// applyProvider возвращает локальную запись, обновленную по подписке Stripe.
func (s *SubscriptionService) applyProvider(local *models.Subscription, ps *paymentprovider.Subscription, mentorID string) models.Subscription {
	var next models.Subscription
	if local != nil {
		next = *local
	}
	now := s.now().UTC()
	next.MentorID = mentorID
	next.Status = paymentprovider.MapStatus(ps.Status)
	next.ProviderSubscriptionID = ps.ID
	if ps.CustomerID != "" {
		next.ProviderCustomerID = ps.CustomerID
	}
	next.CurrentPeriodEnd = ps.CurrentPeriodEnd
	next.CancelAtPeriodEnd = ps.CancelAtPeriodEnd
	next.AutoRenew = !ps.CancelAtPeriodEnd
	next.CanceledAt = ps.CanceledAt

	if ref, ok := s.byPrice[ps.PriceID]; ok {
		if plan, err := plans.ByID(ref.plan); err == nil {
			next.Plan, next.BillingCycle, next.MaxClients = plan.ID, ref.cycle, plan.MaxClients
		}
	}

	switch next.Status {
	case models.StatusActive:
		if local == nil || local.Status != models.StatusActive || local.ProviderSubscriptionID != ps.ID {
			next.StartDate = now
			if ps.CurrentPeriodStart != nil {
				next.StartDate = *ps.CurrentPeriodStart
			}
		}
		next.EndDate = nil
	case models.StatusCanceled, models.StatusExpired:
		end := now
		if ps.CanceledAt != nil {
			end = *ps.CanceledAt
		}
		next.EndDate = &end
		next.AutoRenew = false
		next.CancelAtPeriodEnd = false
	}
	if next.StartDate.IsZero() {
		next.StartDate = now
	}
	return next
}

func (s *SubscriptionService) publish(ctx context.Context, event models.LifecycleEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(context.WithoutCancel(ctx), event); err != nil {
		s.log.Warn("failed to publish lifecycle event", slog.String("type", string(event.Type)), sl.Err(err))
		return
	}
	s.metrics.ObservePublished(string(event.Type))
}
