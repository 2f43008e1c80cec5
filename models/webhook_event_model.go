package models

import (
	"time"

	"github.com/google/uuid"
)

// WebhookEvent is the idempotency store for provider events. The row is
// inserted in the same transaction as the event's side effects, so a
// unique violation on EventID means the event was already applied, and
// a mid-processing failure rolls the marker back for safe redelivery.
type WebhookEvent struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	TenantID  uuid.UUID `gorm:"type:uuid;not null;index" json:"tenant_id"`
	EventID   string    `gorm:"size:255;not null;unique" json:"event_id"`
	EventType string    `gorm:"size:100;not null" json:"event_type"`

	ProcessedAt time.Time `gorm:"not null" json:"processed_at"`
	CreatedAt   time.Time `json:"created_at"`
}
