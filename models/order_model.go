package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderDraft          OrderStatus = "draft"
	OrderPendingPayment OrderStatus = "pending_payment"
	OrderPaid           OrderStatus = "paid"
	OrderPartiallyPaid  OrderStatus = "partially_paid"
	OrderRefunded       OrderStatus = "refunded"
	OrderCancelled      OrderStatus = "cancelled"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderDraft:          {OrderPendingPayment, OrderCancelled},
	OrderPendingPayment: {OrderPaid, OrderPartiallyPaid, OrderCancelled},
	OrderPartiallyPaid:  {OrderPaid, OrderRefunded, OrderCancelled},
	OrderPaid:           {OrderRefunded},
	OrderRefunded:       {},
	OrderCancelled:      {},
}

func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type Order struct {
	ID       uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	TenantID uuid.UUID `gorm:"type:uuid;not null;index" json:"tenant_id"`
	UserID   uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`

	Status OrderStatus `gorm:"size:20;not null;default:'draft'" json:"status"`

	Subtotal      decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"subtotal"`
	DiscountTotal decimal.Decimal `gorm:"type:numeric(10,2);not null;default:0" json:"discount_total"`
	Total         decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"total"`
	Currency      string          `gorm:"size:3;default:'USD'" json:"currency"`

	PromoCodeID *uuid.UUID `gorm:"type:uuid" json:"promo_code_id"`

	LineItems []OrderLineItem `gorm:"foreignkey:OrderID" json:"line_items,omitempty"`
	User      User            `gorm:"foreignkey:UserID" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type OrderLineItem struct {
	ID       uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	TenantID uuid.UUID `gorm:"type:uuid;not null;index" json:"tenant_id"`
	OrderID  uuid.UUID `gorm:"type:uuid;not null;index" json:"order_id"`
	ChildID  uuid.UUID `gorm:"type:uuid;not null" json:"child_id"`
	ClassID  uuid.UUID `gorm:"type:uuid;not null" json:"class_id"`

	EnrollmentID *uuid.UUID `gorm:"type:uuid" json:"enrollment_id"`

	UnitPrice           decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"unit_price"`
	SiblingDiscount     decimal.Decimal `gorm:"type:numeric(10,2);not null;default:0" json:"sibling_discount"`
	ScholarshipDiscount decimal.Decimal `gorm:"type:numeric(10,2);not null;default:0" json:"scholarship_discount"`
	PromoDiscount       decimal.Decimal `gorm:"type:numeric(10,2);not null;default:0" json:"promo_discount"`
	LineTotal           decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"line_total"`

	Enrollment *Enrollment `gorm:"foreignkey:EnrollmentID" json:"enrollment,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
