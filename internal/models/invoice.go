package models

import "time"

// Invoice неизменяемая запись счета. Копия счета из Stripe, история только дополняется.
type Invoice struct {
	ID          string    `json:"id" validate:"required"`
	MentorID    string    `json:"-"`
	Number      string    `json:"number"`
	Status      string    `json:"status" validate:"required"`
	AmountDue   int64     `json:"amountDue" validate:"gte=0"`
	AmountPaid  int64     `json:"amountPaid" validate:"gte=0"`
	Currency    string    `json:"currency" validate:"required"`
	Created     time.Time `json:"created" validate:"required"`
	PeriodStart time.Time `json:"periodStart"`
	PeriodEnd   time.Time `json:"periodEnd"`
	ReceiptURL  *string   `json:"receiptUrl,omitempty"`
	PDF         *string   `json:"pdf,omitempty"`
}
