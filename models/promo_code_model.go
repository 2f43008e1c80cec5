package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PromoCode is a fixed-amount discount code. ProgramID/ClassID restrict
// where the code may be applied; both nil means unrestricted.
type PromoCode struct {
	ID       uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	TenantID uuid.UUID `gorm:"type:uuid;not null;index" json:"tenant_id"`
	Code     string    `gorm:"size:50;not null;uniqueIndex:idx_promo_tenant_code" json:"code"`

	Amount    decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"amount"`
	ExpiresAt time.Time       `gorm:"not null" json:"expires_at"`

	ProgramID *uuid.UUID `gorm:"type:uuid" json:"program_id"`
	ClassID   *uuid.UUID `gorm:"type:uuid" json:"class_id"`

	// Uses allowed per (user, class) pair. Zero means unlimited.
	MaxUsesPerUserClass int  `gorm:"not null;default:1" json:"max_uses_per_user_class"`
	IsActive            bool `gorm:"default:true" json:"is_active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (p *PromoCode) Expired(now time.Time) bool {
	return now.After(p.ExpiresAt)
}

type PromoCodeUsage struct {
	ID          uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	TenantID    uuid.UUID `gorm:"type:uuid;not null;index" json:"tenant_id"`
	PromoCodeID uuid.UUID `gorm:"type:uuid;not null;index" json:"promo_code_id"`
	UserID      uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	ClassID     uuid.UUID `gorm:"type:uuid;not null" json:"class_id"`
	OrderID     uuid.UUID `gorm:"type:uuid;not null" json:"order_id"`

	CreatedAt time.Time `json:"created_at"`
}
