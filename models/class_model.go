package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Class seat accounting: seats_taken is only ever mutated through the
// conditional UPDATE paths in the enrollment service, never by plain saves.
type Class struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	TenantID  uuid.UUID `gorm:"type:uuid;not null;index" json:"tenant_id"`
	ProgramID uuid.UUID `gorm:"type:uuid;not null;index" json:"program_id"`
	Name      string    `gorm:"size:255;not null" json:"name"`

	UnitPrice  decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"unit_price"`
	Currency   string          `gorm:"size:3;default:'USD'" json:"currency"`
	Capacity   int             `gorm:"not null" json:"capacity"`
	SeatsTaken int             `gorm:"not null;default:0" json:"seats_taken"`

	StartsAt time.Time `gorm:"not null" json:"starts_at"`
	EndsAt   time.Time `gorm:"not null" json:"ends_at"`
	IsActive bool      `gorm:"default:true" json:"is_active"`

	Program Program `gorm:"foreignkey:ProgramID" json:"program,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (c *Class) HasOpenSeats() bool {
	return c.SeatsTaken < c.Capacity
}
