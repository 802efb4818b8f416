package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/magabrotheeeer/rhmaster-billing/internal/lib/sl"
	"github.com/magabrotheeeer/rhmaster-billing/internal/lifecycle"
	"github.com/magabrotheeeer/rhmaster-billing/internal/models"
	"github.com/magabrotheeeer/rhmaster-billing/internal/paymentprovider"
	"github.com/magabrotheeeer/rhmaster-billing/internal/storage/repository"
)

// HandleWebhook проверяет подпись события Stripe и применяет его к локальным данным.
// Повторно доставленные события пропускаются. При ошибке отметка об обработке
// удаляется, и Stripe повторит доставку.
func (s *SubscriptionService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	const op = "services.subscription.HandleWebhook"

	event, err := s.provider.ParseWebhook(payload, signature)
	if err != nil {
		s.metrics.ObserveWebhook("invalid", err)
		return fmt.Errorf("%s: %w", op, err)
	}
	log := s.log.With(slog.String("event_id", event.ID), slog.String("event_type", event.Type))

	first, err := s.repo.MarkWebhookProcessed(ctx, event.ID, event.Type)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !first {
		log.Info("duplicate webhook event skipped")
		return nil
	}

	switch {
	case event.Subscription != nil:
		err = s.applySubscriptionEvent(ctx, log, event)
	case event.Invoice != nil:
		err = s.applyInvoiceEvent(ctx, log, event)
	default:
		log.Debug("webhook event ignored")
	}
	s.metrics.ObserveWebhook(event.Type, err)

	if err != nil {
		if forgetErr := s.repo.ForgetWebhook(context.WithoutCancel(ctx), event.ID); forgetErr != nil {
			log.Error("failed to forget webhook event", sl.Err(forgetErr))
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *SubscriptionService) applySubscriptionEvent(ctx context.Context, log *slog.Logger, event *paymentprovider.Event) error {
	ps := event.Subscription
	if event.Type == paymentprovider.EventSubscriptionDeleted {
		ps.Status = "canceled"
	}

	local, err := s.findLocal(ctx, ps)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return err
	}

	mentorID := ps.MentorID
	if local != nil {
		mentorID = local.MentorID
	}
	if mentorID == "" {
		log.Warn("subscription event without known mentor ignored", slog.String("subscription", ps.ID))
		return nil
	}

	status := paymentprovider.MapStatus(ps.Status)
	settled := status == models.StatusActive || status == models.StatusTrial
	if !settled && (local == nil || local.ProviderSubscriptionID != ps.ID) {
		// Неоплаченная новая или старая отмененная подписка Stripe не заменяет текущую запись.
		log.Info("unsettled provider subscription ignored", slog.String("subscription", ps.ID))
		return nil
	}

	next := s.applyProvider(local, ps, mentorID)
	if _, err := s.repo.SaveSubscription(ctx, next); err != nil {
		return err
	}
	s.invalidate(ctx, mentorID)

	if typ, ok := transitionEvent(local, &next); ok {
		s.publish(ctx, models.LifecycleEvent{
			Type: typ, MentorID: mentorID, Plan: next.Plan, Status: next.Status, PeriodEnd: next.CurrentPeriodEnd,
		})
	}
	log.Info("subscription synced from provider", sl.Mentor(mentorID), slog.String("status", string(next.Status)))
	return nil
}

func (s *SubscriptionService) findLocal(ctx context.Context, ps *paymentprovider.Subscription) (*models.Subscription, error) {
	if ps.MentorID != "" {
		return s.repo.GetSubscription(ctx, ps.MentorID)
	}
	local, err := s.repo.GetSubscriptionByProviderID(ctx, ps.ID)
	if errors.Is(err, repository.ErrNotFound) && ps.CustomerID != "" {
		return s.repo.GetSubscriptionByCustomerID(ctx, ps.CustomerID)
	}
	return local, err
}

// transitionEvent определяет событие уведомления по смене наблюдаемого состояния.
func transitionEvent(prev, next *models.Subscription) (models.EventType, bool) {
	from, to := lifecycle.Observe(prev), lifecycle.Observe(next)
	switch {
	case from == to && to == lifecycle.Active && (prev.Plan != next.Plan || prev.BillingCycle != next.BillingCycle):
		return models.EventSubscriptionUpdated, true
	case from == to:
		return "", false
	case to == lifecycle.Active && from == lifecycle.CancelScheduled:
		return models.EventSubscriptionReactivated, true
	case to == lifecycle.Active:
		return models.EventSubscriptionActivated, true
	case to == lifecycle.CancelScheduled:
		return models.EventSubscriptionCancelSched, true
	case to == lifecycle.Canceled:
		return models.EventSubscriptionCanceled, true
	}
	return "", false
}

func (s *SubscriptionService) applyInvoiceEvent(ctx context.Context, log *slog.Logger, event *paymentprovider.Event) error {
	ie := event.Invoice
	local, err := s.repo.GetSubscriptionByCustomerID(ctx, ie.CustomerID)
	if errors.Is(err, repository.ErrNotFound) {
		log.Warn("invoice for unknown customer ignored", slog.String("customer", ie.CustomerID))
		return nil
	}
	if err != nil {
		return err
	}

	inv := ie.Invoice
	inv.MentorID = local.MentorID
	inserted, err := s.repo.UpsertInvoice(ctx, inv)
	if err != nil {
		return err
	}
	log.Info("invoice stored", slog.String("invoice", inv.ID), slog.Bool("inserted", inserted))

	var typ models.EventType
	switch event.Type {
	case paymentprovider.EventInvoicePaid:
		typ = models.EventInvoicePaid
	case paymentprovider.EventInvoicePaymentFailed:
		typ = models.EventInvoicePaymentFailed
	default:
		return nil
	}
	s.publish(ctx, models.LifecycleEvent{
		Type: typ, MentorID: local.MentorID, Plan: local.Plan, Status: local.Status,
		AmountDue: inv.AmountDue, Currency: inv.Currency,
	})
	return nil
}
