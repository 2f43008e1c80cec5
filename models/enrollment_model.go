package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type EnrollmentStatus string

const (
	EnrollmentPending    EnrollmentStatus = "pending"
	EnrollmentActive     EnrollmentStatus = "active"
	EnrollmentWaitlisted EnrollmentStatus = "waitlisted"
	EnrollmentCancelled  EnrollmentStatus = "cancelled"
	EnrollmentCompleted  EnrollmentStatus = "completed"
)

type WaitlistTier string

const (
	WaitlistTierPriority WaitlistTier = "priority"
	WaitlistTierRegular  WaitlistTier = "regular"
)

// enrollmentTransitions is the closed transition table for enrollment
// statuses. Cancelled and completed are terminal.
var enrollmentTransitions = map[EnrollmentStatus][]EnrollmentStatus{
	EnrollmentPending:    {EnrollmentActive, EnrollmentCancelled},
	EnrollmentActive:     {EnrollmentCancelled, EnrollmentCompleted},
	EnrollmentWaitlisted: {EnrollmentActive, EnrollmentCancelled},
	EnrollmentCancelled:  {},
	EnrollmentCompleted:  {},
}

func (s EnrollmentStatus) CanTransitionTo(next EnrollmentStatus) bool {
	for _, allowed := range enrollmentTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s EnrollmentStatus) IsTerminal() bool {
	return len(enrollmentTransitions[s]) == 0
}

// Enrollment links one child to one class purchase attempt. Cancelled
// records are kept for audit and refund linkage, never hard-deleted.
type Enrollment struct {
	ID       uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	TenantID uuid.UUID `gorm:"type:uuid;not null;index" json:"tenant_id"`
	ChildID  uuid.UUID `gorm:"type:uuid;not null;index:idx_enrollment_child_class" json:"child_id"`
	ClassID  uuid.UUID `gorm:"type:uuid;not null;index:idx_enrollment_child_class" json:"class_id"`
	UserID   uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`

	Status EnrollmentStatus `gorm:"size:20;not null;default:'pending'" json:"status"`

	WaitlistTier         *WaitlistTier `gorm:"size:20" json:"waitlist_tier"`
	AutoPromote          bool          `gorm:"default:false" json:"auto_promote"`
	ClaimWindowExpiresAt *time.Time    `json:"claim_window_expires_at"`
	PaymentMethodID      *uuid.UUID    `gorm:"type:uuid" json:"payment_method_id"`

	BasePrice      decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"base_price"`
	DiscountAmount decimal.Decimal `gorm:"type:numeric(10,2);not null;default:0" json:"discount_amount"`
	FinalPrice     decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"final_price"`

	EnrolledAt  *time.Time `json:"enrolled_at"`
	CancelledAt *time.Time `json:"cancelled_at"`

	Child Child `gorm:"foreignkey:ChildID" json:"child,omitempty"`
	Class Class `gorm:"foreignkey:ClassID" json:"class,omitempty"`
	User  User  `gorm:"foreignkey:UserID" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (e *Enrollment) ClaimWindowOpen(now time.Time) bool {
	return e.Status == EnrollmentWaitlisted &&
		e.ClaimWindowExpiresAt != nil &&
		now.Before(*e.ClaimWindowExpiresAt)
}
