package models

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID       uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	TenantID uuid.UUID `gorm:"type:uuid;not null;index" json:"tenant_id"`
	FullName string    `gorm:"size:255;not null" json:"full_name"`
	Email    string    `gorm:"size:255;not null;unique" json:"email"`
	Password string    `gorm:"not null" json:"-"`
	Role     string    `gorm:"size:20;not null;default:'parent'" json:"role"`

	Phone    *string `gorm:"size:30" json:"phone"`
	IsActive bool    `gorm:"default:true" json:"is_active"`

	ProviderCustomerID *string `gorm:"size:255;unique" json:"-"`

	Children []Child `gorm:"foreignkey:UserID" json:"children,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
