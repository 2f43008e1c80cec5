package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type InstallmentPaymentStatus string

const (
	InstallmentPending InstallmentPaymentStatus = "pending"
	InstallmentPaid    InstallmentPaymentStatus = "paid"
	InstallmentFailed  InstallmentPaymentStatus = "failed"
	InstallmentSkipped InstallmentPaymentStatus = "skipped"
)

// MaxInstallmentAttempts is the number of consecutive failed charge
// attempts tolerated on a single installment before the owning plan
// defaults.
const MaxInstallmentAttempts = 3

type InstallmentPayment struct {
	ID       uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	TenantID uuid.UUID `gorm:"type:uuid;not null;index" json:"tenant_id"`
	PlanID   uuid.UUID `gorm:"type:uuid;not null;index" json:"plan_id"`

	InstallmentNumber int                      `gorm:"not null" json:"installment_number"`
	DueDate           time.Time                `gorm:"not null;index" json:"due_date"`
	Amount            decimal.Decimal          `gorm:"type:numeric(10,2);not null" json:"amount"`
	Status            InstallmentPaymentStatus `gorm:"size:20;not null;default:'pending'" json:"status"`
	AttemptCount      int                      `gorm:"not null;default:0" json:"attempt_count"`

	PaidAt *time.Time `json:"paid_at"`

	Plan InstallmentPlan `gorm:"foreignkey:PlanID" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
