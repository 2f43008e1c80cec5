package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Scholarship grants a fixed discount to one parent account. A nil
// ClassID means the award applies to any class.
type Scholarship struct {
	ID       uuid.UUID  `gorm:"type:uuid;primary_key" json:"id"`
	TenantID uuid.UUID  `gorm:"type:uuid;not null;index" json:"tenant_id"`
	UserID   uuid.UUID  `gorm:"type:uuid;not null;index" json:"user_id"`
	ClassID  *uuid.UUID `gorm:"type:uuid" json:"class_id"`

	Amount   decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"amount"`
	IsActive bool            `gorm:"default:true" json:"is_active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
