package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/magabrotheeeer/rhmaster-billing/internal/models"
)

// UpsertInvoice сохраняет копию счета Stripe. Существующая запись не переписывается,
// меняются только статус и оплаченная сумма, которые ведет провайдер.
// Возвращает true, если счет записан впервые.
func (s *Storage) UpsertInvoice(ctx context.Context, inv models.Invoice) (bool, error) {
	const op = "storage.UpsertInvoice"
	if err := ctxDone(ctx, op); err != nil {
		return false, err
	}

	var inserted bool
	err := s.DB.QueryRowContext(ctx, `
		INSERT INTO invoices (id, mentor_id, number, status, amount_due, amount_paid, currency,
		    created, period_start, period_end, receipt_url, pdf)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
		    status = EXCLUDED.status,
		    amount_paid = EXCLUDED.amount_paid,
		    receipt_url = COALESCE(EXCLUDED.receipt_url, invoices.receipt_url),
		    pdf = COALESCE(EXCLUDED.pdf, invoices.pdf)
		RETURNING (xmax = 0)`,
		inv.ID, inv.MentorID, inv.Number, inv.Status, inv.AmountDue, inv.AmountPaid, inv.Currency,
		inv.Created, inv.PeriodStart, inv.PeriodEnd, inv.ReceiptURL, inv.PDF).Scan(&inserted)
	if err != nil {
		return false, mapErr(op, err)
	}
	return inserted, nil
}

// ListInvoices возвращает счета ментора, новые первыми.
func (s *Storage) ListInvoices(ctx context.Context, mentorID string) ([]models.Invoice, error) {
	const op = "storage.ListInvoices"
	if err := ctxDone(ctx, op); err != nil {
		return nil, err
	}

	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, mentor_id, number, status, amount_due, amount_paid, currency, created,
		    period_start, period_end, receipt_url, pdf
		FROM invoices
		WHERE mentor_id = $1
		ORDER BY created DESC, id`, mentorID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = rows.Close() }()

	res := make([]models.Invoice, 0)
	for rows.Next() {
		var (
			inv                    models.Invoice
			periodStart, periodEnd sql.NullTime
			receipt, pdf           sql.NullString
		)
		if err := rows.Scan(&inv.ID, &inv.MentorID, &inv.Number, &inv.Status, &inv.AmountDue,
			&inv.AmountPaid, &inv.Currency, &inv.Created, &periodStart, &periodEnd, &receipt, &pdf); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if periodStart.Valid {
			inv.PeriodStart = periodStart.Time
		}
		if periodEnd.Valid {
			inv.PeriodEnd = periodEnd.Time
		}
		inv.ReceiptURL = nullString(receipt)
		inv.PDF = nullString(pdf)
		res = append(res, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return res, nil
}
