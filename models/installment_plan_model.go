package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type InstallmentPlanStatus string

const (
	PlanActive    InstallmentPlanStatus = "active"
	PlanCompleted InstallmentPlanStatus = "completed"
	PlanCancelled InstallmentPlanStatus = "cancelled"
	PlanDefaulted InstallmentPlanStatus = "defaulted"
)

type InstallmentFrequency string

const (
	FrequencyWeekly   InstallmentFrequency = "weekly"
	FrequencyBiweekly InstallmentFrequency = "biweekly"
	FrequencyMonthly  InstallmentFrequency = "monthly"
)

var planTransitions = map[InstallmentPlanStatus][]InstallmentPlanStatus{
	PlanActive:    {PlanCompleted, PlanCancelled, PlanDefaulted},
	PlanCompleted: {},
	PlanCancelled: {},
	PlanDefaulted: {},
}

func (s InstallmentPlanStatus) CanTransitionTo(next InstallmentPlanStatus) bool {
	for _, allowed := range planTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// NextDueDate steps a schedule date forward by one frequency interval.
func (f InstallmentFrequency) NextDueDate(from time.Time) time.Time {
	switch f {
	case FrequencyWeekly:
		return from.AddDate(0, 0, 7)
	case FrequencyBiweekly:
		return from.AddDate(0, 0, 14)
	default:
		return from.AddDate(0, 1, 0)
	}
}

type InstallmentPlan struct {
	ID       uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	TenantID uuid.UUID `gorm:"type:uuid;not null;index" json:"tenant_id"`
	OrderID  uuid.UUID `gorm:"type:uuid;not null;unique" json:"order_id"`
	UserID   uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`

	TotalAmount       decimal.Decimal       `gorm:"type:numeric(10,2);not null" json:"total_amount"`
	NumInstallments   int                   `gorm:"not null" json:"num_installments"`
	InstallmentAmount decimal.Decimal       `gorm:"type:numeric(10,2);not null" json:"installment_amount"`
	Frequency         InstallmentFrequency  `gorm:"size:20;not null" json:"frequency"`
	Status            InstallmentPlanStatus `gorm:"size:20;not null;default:'active'" json:"status"`

	PaymentMethodID        uuid.UUID `gorm:"type:uuid;not null" json:"payment_method_id"`
	ProviderSubscriptionID *string   `gorm:"size:255;index" json:"-"`

	Installments []InstallmentPayment `gorm:"foreignkey:PlanID" json:"installments,omitempty"`
	Order        Order                `gorm:"foreignkey:OrderID" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
