package models

import (
	"time"

	"github.com/google/uuid"
)

type Child struct {
	ID        uuid.UUID  `gorm:"type:uuid;primary_key" json:"id"`
	TenantID  uuid.UUID  `gorm:"type:uuid;not null;index" json:"tenant_id"`
	UserID    uuid.UUID  `gorm:"type:uuid;not null;index" json:"user_id"`
	FullName  string     `gorm:"size:255;not null" json:"full_name"`
	BirthDate *time.Time `json:"birth_date"`
	Notes     *string    `gorm:"type:text" json:"notes"`

	User User `gorm:"foreignkey:UserID" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
