package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/magabrotheeeer/rhmaster-billing/internal/models"
)

const subscriptionColumns = `
	s.id, s.mentor_id, s.plan, s.status, s.billing_cycle, s.max_clients,
	(SELECT COUNT(*) FROM clients c WHERE c.mentor_id = s.mentor_id) AS client_count,
	s.start_date, s.end_date, s.current_period_end, s.trial_end_date, s.canceled_at,
	s.auto_renew, s.cancel_at_period_end, s.provider_customer_id,
	s.provider_subscription_id, s.updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubscription(row rowScanner) (*models.Subscription, error) {
	var (
		sub                                      models.Subscription
		endDate, periodEnd, trialEnd, canceledAt sql.NullTime
		providerSubID                            sql.NullString
	)
	err := row.Scan(&sub.ID, &sub.MentorID, &sub.Plan, &sub.Status, &sub.BillingCycle, &sub.MaxClients,
		&sub.ClientCount, &sub.StartDate, &endDate, &periodEnd, &trialEnd, &canceledAt,
		&sub.AutoRenew, &sub.CancelAtPeriodEnd, &sub.ProviderCustomerID, &providerSubID, &sub.UpdatedAt)
	if err != nil {
		return nil, err
	}
	sub.EndDate = nullTime(endDate)
	sub.CurrentPeriodEnd = nullTime(periodEnd)
	sub.TrialEndDate = nullTime(trialEnd)
	sub.CanceledAt = nullTime(canceledAt)
	sub.ProviderSubscriptionID = providerSubID.String
	return &sub, nil
}

// GetSubscription возвращает подписку ментора вместе с количеством его клиентов.
func (s *Storage) GetSubscription(ctx context.Context, mentorID string) (*models.Subscription, error) {
	const op = "storage.GetSubscription"
	if err := ctxDone(ctx, op); err != nil {
		return nil, err
	}
	sub, err := scanSubscription(s.DB.QueryRowContext(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions s WHERE s.mentor_id = $1`, mentorID))
	if err != nil {
		return nil, mapErr(op, err)
	}
	return sub, nil
}

// GetSubscriptionByProviderID ищет подписку по ID подписки в Stripe.
func (s *Storage) GetSubscriptionByProviderID(ctx context.Context, providerSubscriptionID string) (*models.Subscription, error) {
	const op = "storage.GetSubscriptionByProviderID"
	if err := ctxDone(ctx, op); err != nil {
		return nil, err
	}
	sub, err := scanSubscription(s.DB.QueryRowContext(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions s WHERE s.provider_subscription_id = $1`,
		providerSubscriptionID))
	if err != nil {
		return nil, mapErr(op, err)
	}
	return sub, nil
}

// GetSubscriptionByCustomerID ищет подписку по ID покупателя в Stripe.
func (s *Storage) GetSubscriptionByCustomerID(ctx context.Context, customerID string) (*models.Subscription, error) {
	const op = "storage.GetSubscriptionByCustomerID"
	if err := ctxDone(ctx, op); err != nil {
		return nil, err
	}
	if customerID == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	sub, err := scanSubscription(s.DB.QueryRowContext(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions s WHERE s.provider_customer_id = $1`, customerID))
	if err != nil {
		return nil, mapErr(op, err)
	}
	return sub, nil
}

// SaveSubscription создает или полностью перезаписывает подписку ментора.
// У ментора одна актуальная запись подписки. Возвращает ID записи.
func (s *Storage) SaveSubscription(ctx context.Context, sub models.Subscription) (int64, error) {
	const op = "storage.SaveSubscription"
	if err := ctxDone(ctx, op); err != nil {
		return 0, err
	}

	var providerSubID any
	if sub.ProviderSubscriptionID != "" {
		providerSubID = sub.ProviderSubscriptionID
	}

	var id int64
	err := s.DB.QueryRowContext(ctx, `
		INSERT INTO subscriptions (mentor_id, plan, status, billing_cycle, max_clients, start_date,
		    end_date, current_period_end, trial_end_date, canceled_at, auto_renew,
		    cancel_at_period_end, provider_customer_id, provider_subscription_id, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, NOW())
		ON CONFLICT (mentor_id) DO UPDATE SET
		    plan = EXCLUDED.plan,
		    status = EXCLUDED.status,
		    billing_cycle = EXCLUDED.billing_cycle,
		    max_clients = EXCLUDED.max_clients,
		    start_date = EXCLUDED.start_date,
		    end_date = EXCLUDED.end_date,
		    current_period_end = EXCLUDED.current_period_end,
		    trial_end_date = EXCLUDED.trial_end_date,
		    canceled_at = EXCLUDED.canceled_at,
		    auto_renew = EXCLUDED.auto_renew,
		    cancel_at_period_end = EXCLUDED.cancel_at_period_end,
		    provider_customer_id = EXCLUDED.provider_customer_id,
		    provider_subscription_id = EXCLUDED.provider_subscription_id,
		    updated_at = NOW()
		RETURNING id`,
		sub.MentorID, sub.Plan, sub.Status, cycleOrDefault(sub.BillingCycle), sub.MaxClients, sub.StartDate,
		sub.EndDate, sub.CurrentPeriodEnd, sub.TrialEndDate, sub.CanceledAt, sub.AutoRenew,
		sub.CancelAtPeriodEnd, sub.ProviderCustomerID, providerSubID).Scan(&id)
	if err != nil {
		return 0, mapErr(op, err)
	}
	return id, nil
}

// SetProviderCustomer запоминает ID покупателя Stripe для ментора.
func (s *Storage) SetProviderCustomer(ctx context.Context, mentorID, customerID string) error {
	const op = "storage.SetProviderCustomer"
	if err := ctxDone(ctx, op); err != nil {
		return err
	}
	res, err := s.DB.ExecContext(ctx, `
		UPDATE subscriptions SET provider_customer_id = $2, updated_at = NOW()
		WHERE mentor_id = $1`, mentorID, customerID)
	if err != nil {
		return mapErr(op, err)
	}
	return affected(op, res)
}

// SetCancelAtPeriodEnd включает или снимает отмену в конце периода.
func (s *Storage) SetCancelAtPeriodEnd(ctx context.Context, mentorID string, cancel bool) error {
	const op = "storage.SetCancelAtPeriodEnd"
	if err := ctxDone(ctx, op); err != nil {
		return err
	}
	res, err := s.DB.ExecContext(ctx, `
		UPDATE subscriptions
		SET cancel_at_period_end = $2, auto_renew = NOT $2, updated_at = NOW()
		WHERE mentor_id = $1`, mentorID, cancel)
	if err != nil {
		return mapErr(op, err)
	}
	return affected(op, res)
}

// MarkCanceled переводит подписку в canceled на момент at.
func (s *Storage) MarkCanceled(ctx context.Context, mentorID string, at time.Time) error {
	const op = "storage.MarkCanceled"
	if err := ctxDone(ctx, op); err != nil {
		return err
	}
	res, err := s.DB.ExecContext(ctx, `
		UPDATE subscriptions
		SET status = 'canceled', canceled_at = $2, end_date = $2,
		    auto_renew = false, cancel_at_period_end = false, updated_at = NOW()
		WHERE mentor_id = $1`, mentorID, at)
	if err != nil {
		return mapErr(op, err)
	}
	return affected(op, res)
}

// ExpireTrial переводит пробную подписку в expired. Возвращает false, если подписка уже не в trial.
func (s *Storage) ExpireTrial(ctx context.Context, subscriptionID int64) (bool, error) {
	const op = "storage.ExpireTrial"
	if err := ctxDone(ctx, op); err != nil {
		return false, err
	}
	res, err := s.DB.ExecContext(ctx, `
		UPDATE subscriptions
		SET status = 'expired', end_date = trial_end_date, updated_at = NOW()
		WHERE id = $1 AND status = 'trial'`, subscriptionID)
	if err != nil {
		return false, mapErr(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return n > 0, nil
}

// FindTrialsEndingBetween возвращает пробные подписки, у которых trial_end_date попадает в [from, to).
func (s *Storage) FindTrialsEndingBetween(ctx context.Context, from, to time.Time) ([]models.ExpiringTrial, error) {
	const op = "storage.FindTrialsEndingBetween"
	if err := ctxDone(ctx, op); err != nil {
		return nil, err
	}
	return s.queryTrials(ctx, op, `
		SELECT s.id, s.mentor_id, m.email, m.name, s.plan, s.trial_end_date
		FROM subscriptions s
		JOIN mentors m ON m.id = s.mentor_id
		WHERE s.status = 'trial' AND s.trial_end_date >= $1 AND s.trial_end_date < $2
		ORDER BY s.trial_end_date`, from, to)
}

// FindElapsedTrials возвращает пробные подписки, закончившиеся к моменту now.
func (s *Storage) FindElapsedTrials(ctx context.Context, now time.Time) ([]models.ExpiringTrial, error) {
	const op = "storage.FindElapsedTrials"
	if err := ctxDone(ctx, op); err != nil {
		return nil, err
	}
	return s.queryTrials(ctx, op, `
		SELECT s.id, s.mentor_id, m.email, m.name, s.plan, s.trial_end_date
		FROM subscriptions s
		JOIN mentors m ON m.id = s.mentor_id
		WHERE s.status = 'trial' AND s.trial_end_date <= $1
		ORDER BY s.trial_end_date`, now)
}

func (s *Storage) queryTrials(ctx context.Context, op, query string, args ...any) ([]models.ExpiringTrial, error) {
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = rows.Close() }()

	var res []models.ExpiringTrial
	for rows.Next() {
		var t models.ExpiringTrial
		if err := rows.Scan(&t.SubscriptionID, &t.MentorID, &t.Email, &t.Name, &t.Plan, &t.TrialEndDate); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		res = append(res, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return res, nil
}

// FindDueCancellations возвращает подписки с отменой в конце периода, период которых закончился к now.
func (s *Storage) FindDueCancellations(ctx context.Context, now time.Time) ([]*models.Subscription, error) {
	const op = "storage.FindDueCancellations"
	if err := ctxDone(ctx, op); err != nil {
		return nil, err
	}
	rows, err := s.DB.QueryContext(ctx, `SELECT `+subscriptionColumns+`
		FROM subscriptions s
		WHERE s.cancel_at_period_end AND s.status = 'active' AND s.current_period_end <= $1
		ORDER BY s.current_period_end`, now)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = rows.Close() }()

	var res []*models.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		res = append(res, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return res, nil
}

func affected(op string, res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return nil
}
