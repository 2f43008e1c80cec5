package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PaymentType string

const (
	PaymentOneTime      PaymentType = "one_time"
	PaymentSubscription PaymentType = "subscription"
	PaymentInstallment  PaymentType = "installment"
)

type PaymentStatus string

const (
	PaymentPending           PaymentStatus = "pending"
	PaymentProcessing        PaymentStatus = "processing"
	PaymentSucceeded         PaymentStatus = "succeeded"
	PaymentFailed            PaymentStatus = "failed"
	PaymentRefunded          PaymentStatus = "refunded"
	PaymentPartiallyRefunded PaymentStatus = "partially_refunded"
)

type Payment struct {
	ID       uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	TenantID uuid.UUID `gorm:"type:uuid;not null;index" json:"tenant_id"`
	OrderID  uuid.UUID `gorm:"type:uuid;not null;index" json:"order_id"`

	Type   PaymentType   `gorm:"size:20;not null" json:"type"`
	Status PaymentStatus `gorm:"size:20;not null;default:'pending'" json:"status"`

	Amount       decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"amount"`
	RefundAmount decimal.Decimal `gorm:"type:numeric(10,2);not null;default:0" json:"refund_amount"`
	Currency     string          `gorm:"size:3;default:'USD'" json:"currency"`

	ProviderReference *string `gorm:"size:255;index" json:"provider_reference"`
	ProviderEventID   *string `gorm:"size:255" json:"-"`

	InstallmentPaymentID *uuid.UUID `gorm:"type:uuid" json:"installment_payment_id"`

	Order Order `gorm:"foreignkey:OrderID" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ApplyRefund adds amount to the running refund total and derives the
// status from the invariant: refunded iff refund_amount >= amount,
// partially_refunded iff 0 < refund_amount < amount.
func (p *Payment) ApplyRefund(amount decimal.Decimal) {
	p.RefundAmount = p.RefundAmount.Add(amount)
	if p.RefundAmount.GreaterThan(p.Amount) {
		p.RefundAmount = p.Amount
	}
	switch {
	case p.RefundAmount.GreaterThanOrEqual(p.Amount):
		p.Status = PaymentRefunded
	case p.RefundAmount.GreaterThan(decimal.Zero):
		p.Status = PaymentPartiallyRefunded
	}
}

func (p *Payment) FullyRefunded() bool {
	return p.RefundAmount.GreaterThanOrEqual(p.Amount)
}
