package models

import (
	"time"

	"github.com/google/uuid"
)

// PaymentMethod is a card saved with the payment provider. Priority
// waitlist entries and installment plans require one on file.
type PaymentMethod struct {
	ID       uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	TenantID uuid.UUID `gorm:"type:uuid;not null;index" json:"tenant_id"`
	UserID   uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`

	ProviderMethodID string `gorm:"size:255;not null;unique" json:"-"`
	Brand            string `gorm:"size:20" json:"brand"`
	Last4            string `gorm:"size:4" json:"last4"`
	IsDefault        bool   `gorm:"default:false" json:"is_default"`

	User User `gorm:"foreignkey:UserID" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
