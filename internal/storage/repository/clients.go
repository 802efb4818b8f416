package repository

import (
	"context"
	"fmt"

	"github.com/magabrotheeeer/rhmaster-billing/internal/models"
)

// CreateClientWithinLimit добавляет клиента, если у ментора меньше maxClients клиентов.
// Строка подписки блокируется на время проверки, поэтому параллельные вставки не превысят лимит.
// Возвращает ErrLimitReached, если лимит исчерпан.
func (s *Storage) CreateClientWithinLimit(ctx context.Context, c models.Client, maxClients int) (*models.Client, error) {
	const op = "storage.CreateClientWithinLimit"
	if err := ctxDone(ctx, op); err != nil {
		return nil, err
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `SELECT id FROM subscriptions WHERE mentor_id = $1 FOR UPDATE`, c.MentorID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var count int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM clients WHERE mentor_id = $1`, c.MentorID).Scan(&count); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if count >= maxClients {
		return nil, fmt.Errorf("%s: %w", op, ErrLimitReached)
	}

	created := c
	err = tx.QueryRowContext(ctx, `
		INSERT INTO clients (mentor_id, name, email)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`, c.MentorID, c.Name, c.Email).Scan(&created.ID, &created.CreatedAt)
	if err != nil {
		return nil, mapErr(op, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &created, nil
}

// ListClients возвращает клиентов ментора в порядке добавления.
func (s *Storage) ListClients(ctx context.Context, mentorID string) ([]models.Client, error) {
	const op = "storage.ListClients"
	if err := ctxDone(ctx, op); err != nil {
		return nil, err
	}
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, mentor_id, name, email, created_at
		FROM clients WHERE mentor_id = $1 ORDER BY id`, mentorID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = rows.Close() }()

	res := make([]models.Client, 0)
	for rows.Next() {
		var c models.Client
		if err := rows.Scan(&c.ID, &c.MentorID, &c.Name, &c.Email, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		res = append(res, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return res, nil
}
