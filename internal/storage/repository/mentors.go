package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/magabrotheeeer/rhmaster-billing/internal/models"
)

// CreateMentorWithTrial в одной транзакции сохраняет ментора и его пробную подписку.
// Возвращает ID ментора.
func (s *Storage) CreateMentorWithTrial(ctx context.Context, mentor models.Mentor, trial models.Subscription) (string, error) {
	const op = "storage.CreateMentorWithTrial"
	if err := ctxDone(ctx, op); err != nil {
		return "", err
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = tx.Rollback() }()

	var id string
	err = tx.QueryRowContext(ctx, `
		INSERT INTO mentors (email, name, password_hash, trial_end_date)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		mentor.Email, mentor.Name, mentor.PasswordHash, mentor.TrialEndDate).Scan(&id)
	if err != nil {
		return "", mapErr(op, err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO subscriptions (mentor_id, plan, status, billing_cycle, max_clients,
		    start_date, trial_end_date, auto_renew, cancel_at_period_end)
		VALUES ($1, $2, $3, $4, $5, $6, $7, false, false)`,
		id, trial.Plan, trial.Status, cycleOrDefault(trial.BillingCycle), trial.MaxClients,
		trial.StartDate, trial.TrialEndDate)
	if err != nil {
		return "", mapErr(op, err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return id, nil
}

// GetMentorByEmail возвращает ментора по email.
func (s *Storage) GetMentorByEmail(ctx context.Context, email string) (*models.Mentor, error) {
	const op = "storage.GetMentorByEmail"
	if err := ctxDone(ctx, op); err != nil {
		return nil, err
	}
	return s.scanMentor(op, s.DB.QueryRowContext(ctx, `
		SELECT id, email, name, password_hash, trial_end_date, created_at
		FROM mentors WHERE email = $1`, email))
}

// GetMentor возвращает ментора по ID.
func (s *Storage) GetMentor(ctx context.Context, mentorID string) (*models.Mentor, error) {
	const op = "storage.GetMentor"
	if err := ctxDone(ctx, op); err != nil {
		return nil, err
	}
	return s.scanMentor(op, s.DB.QueryRowContext(ctx, `
		SELECT id, email, name, password_hash, trial_end_date, created_at
		FROM mentors WHERE id = $1`, mentorID))
}

func (s *Storage) scanMentor(op string, row *sql.Row) (*models.Mentor, error) {
	var (
		m        models.Mentor
		trialEnd sql.NullTime
	)
	if err := row.Scan(&m.ID, &m.Email, &m.Name, &m.PasswordHash, &trialEnd, &m.CreatedAt); err != nil {
		return nil, mapErr(op, err)
	}
	m.TrialEndDate = nullTime(trialEnd)
	return &m, nil
}

func cycleOrDefault(c models.BillingCycle) models.BillingCycle {
	if c == "" {
		return models.CycleMonthly
	}
	return c
}
