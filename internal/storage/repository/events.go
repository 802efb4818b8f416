package repository

import (
	"context"
	"fmt"

	"github.com/magabrotheeeer/rhmaster-billing/internal/models"
)

// InsertCancellation сохраняет причину отмены.
func (s *Storage) InsertCancellation(ctx context.Context, c models.Cancellation) error {
	const op = "storage.InsertCancellation"
	if err := ctxDone(ctx, op); err != nil {
		return err
	}
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO cancellations (subscription_id, mentor_id, reason, immediate)
		VALUES ($1, $2, $3, $4)`, c.SubscriptionID, c.MentorID, c.Reason, c.Immediate)
	if err != nil {
		return mapErr(op, err)
	}
	return nil
}

// MarkWebhookProcessed записывает ID события Stripe. Возвращает false, если событие уже обработано.
func (s *Storage) MarkWebhookProcessed(ctx context.Context, eventID, eventType string) (bool, error) {
	const op = "storage.MarkWebhookProcessed"
	if err := ctxDone(ctx, op); err != nil {
		return false, err
	}
	res, err := s.DB.ExecContext(ctx, `
		INSERT INTO webhook_events (id, type) VALUES ($1, $2)
		ON CONFLICT (id) DO NOTHING`, eventID, eventType)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return n == 1, nil
}

// ForgetWebhook удаляет отметку об обработке, чтобы Stripe мог повторить событие после сбоя.
func (s *Storage) ForgetWebhook(ctx context.Context, eventID string) error {
	const op = "storage.ForgetWebhook"
	if _, err := s.DB.ExecContext(ctx, `DELETE FROM webhook_events WHERE id = $1`, eventID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
