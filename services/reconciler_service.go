package services

import (
	"errors"
	"log"

	"github.com/google/uuid"
	"github.com/mwangi-dev/kidsclass_backend/models"
	"github.com/mwangi-dev/kidsclass_backend/notifications"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Provider event names consumed by the reconciler.
const (
	EventCheckoutCompleted   = "checkout-completed"
	EventPaymentSucceeded    = "payment-succeeded"
	EventPaymentFailed       = "payment-failed"
	EventInvoicePaid         = "invoice-paid"
	EventInvoiceFailed       = "invoice-failed"
	EventInvoiceUpcoming     = "invoice-upcoming"
	EventSubscriptionUpdated = "subscription-updated"
	EventSubscriptionDeleted = "subscription-deleted"
	EventChargeRefunded      = "charge-refunded"
)

// ProviderEvent is the decoded webhook payload. Delivery is
// at-least-once and unordered; the reconciler dedups on ID.
type ProviderEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		TenantID       string `json:"tenant_id"`
		Reference      string `json:"reference"`
		ChargeID       string `json:"charge_id"`
		SubscriptionID string `json:"subscription_id"`
		Amount         string `json:"amount"`
		Status         string `json:"status"`
	} `json:"data"`
}

// ProcessEvent applies one provider event. The idempotency marker is
// inserted in the same transaction as the side effects: a duplicate
// delivery is acknowledged without touching anything, and a
// mid-processing failure rolls the marker back so redelivery can
// complete the work.
func ProcessEvent(db *gorm.DB, tenantID uuid.UUID, event *ProviderEvent) error {
	if event.ID == "" || event.Type == "" {
		return ErrUnrecognizedEvent
	}

	var freedClasses []uuid.UUID

	err := db.Transaction(func(tx *gorm.DB) error {
		var seen int64
		if err := tx.Model(&models.WebhookEvent{}).Where("event_id = ?", event.ID).Count(&seen).Error; err != nil {
			return err
		}
		if seen > 0 {
			log.Printf("Provider event %s already processed, acknowledging duplicate delivery", event.ID)
			return nil
		}

		marker := models.WebhookEvent{
			TenantID:    tenantID,
			EventID:     event.ID,
			EventType:   event.Type,
			ProcessedAt: nowFunc(),
		}
		if err := tx.Create(&marker).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return nil
			}
			return err
		}

		switch event.Type {
		case EventCheckoutCompleted, EventPaymentSucceeded:
			return handleOrderPaid(tx, tenantID, event)
		case EventPaymentFailed:
			return handlePaymentFailed(tx, tenantID, event)
		case EventInvoicePaid:
			return handleInvoiceOutcome(tx, tenantID, event, true)
		case EventInvoiceFailed:
			return handleInvoiceOutcome(tx, tenantID, event, false)
		case EventInvoiceUpcoming:
			return handleInvoiceUpcoming(tx, tenantID, event)
		case EventSubscriptionUpdated:
			return handleSubscriptionUpdated(tx, tenantID, event)
		case EventSubscriptionDeleted:
			return handleSubscriptionDeleted(tx, tenantID, event)
		case EventChargeRefunded:
			var err error
			freedClasses, err = handleChargeRefunded(tx, tenantID, event)
			return err
		default:
			log.Printf("⚠️ Ignoring unrecognized provider event type %q (id %s)", event.Type, event.ID)
			return ErrUnrecognizedEvent
		}
	})
	if err != nil {
		return err
	}

	for _, classID := range freedClasses {
		if err := PromoteNext(db, tenantID, classID); err != nil {
			log.Printf("🔥 Waitlist promotion after refund failed for class %s: %v", classID, err)
		}
	}
	return nil
}

// handleOrderPaid resolves a one-time payment confirmation: order paid,
// payment succeeded, and only this order's enrollments activated.
func handleOrderPaid(tx *gorm.DB, tenantID uuid.UUID, event *ProviderEvent) error {
	orderID, err := uuid.Parse(event.Data.Reference)
	if err != nil {
		return ErrUnrecognizedEvent
	}
	if err := activateOrderEnrollments(tx, tenantID, orderID, event.Data.ChargeID); err != nil {
		return err
	}

	var order models.Order
	if err := tx.Preload("User").Where("id = ? AND tenant_id = ?", orderID, tenantID).First(&order).Error; err != nil {
		return err
	}
	go notifications.SendOrderConfirmed(order.User.FullName, order.User.Email, order.Total.StringFixed(2))
	return nil
}

func handlePaymentFailed(tx *gorm.DB, tenantID uuid.UUID, event *ProviderEvent) error {
	orderID, err := uuid.Parse(event.Data.Reference)
	if err != nil {
		return ErrUnrecognizedEvent
	}

	// Record the failure; enrollments stay as they are and the family
	// can retry checkout.
	err = tx.Model(&models.Payment{}).
		Where("tenant_id = ? AND order_id = ? AND status = ?", tenantID, orderID, models.PaymentPending).
		Update("status", models.PaymentFailed).Error
	if err != nil {
		return err
	}

	var order models.Order
	if err := tx.Preload("User").Where("id = ? AND tenant_id = ?", orderID, tenantID).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUnrecognizedEvent
		}
		return err
	}
	go notifications.SendPaymentFailed(order.User.FullName, order.User.Email)
	return nil
}

func findPlanBySubscription(tx *gorm.DB, tenantID uuid.UUID, subscriptionID string) (*models.InstallmentPlan, error) {
	if subscriptionID == "" {
		return nil, ErrUnrecognizedEvent
	}
	var plan models.InstallmentPlan
	err := tx.Where("tenant_id = ? AND provider_subscription_id = ?", tenantID, subscriptionID).First(&plan).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUnrecognizedEvent
		}
		return nil, err
	}
	return &plan, nil
}

func handleInvoiceOutcome(tx *gorm.DB, tenantID uuid.UUID, event *ProviderEvent, paid bool) error {
	plan, err := findPlanBySubscription(tx, tenantID, event.Data.SubscriptionID)
	if err != nil {
		return err
	}
	if paid {
		return applyInstallmentPaid(tx, plan, event.Data.ChargeID)
	}
	return applyInstallmentFailure(tx, plan)
}

func handleInvoiceUpcoming(tx *gorm.DB, tenantID uuid.UUID, event *ProviderEvent) error {
	plan, err := findPlanBySubscription(tx, tenantID, event.Data.SubscriptionID)
	if err != nil {
		return err
	}

	var installment models.InstallmentPayment
	err = tx.Where("plan_id = ? AND status = ?", plan.ID, models.InstallmentPending).
		Order("installment_number ASC").
		First(&installment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}

	var user models.User
	if err := tx.Where("id = ? AND tenant_id = ?", plan.UserID, tenantID).First(&user).Error; err != nil {
		return err
	}
	go notifications.SendInstallmentReminder(user.FullName, user.Email,
		installment.Amount.StringFixed(2), installment.DueDate.Format("Jan 2, 2006"))
	return nil
}

func handleSubscriptionUpdated(tx *gorm.DB, tenantID uuid.UUID, event *ProviderEvent) error {
	plan, err := findPlanBySubscription(tx, tenantID, event.Data.SubscriptionID)
	if err != nil {
		return err
	}
	if event.Data.Status == "unpaid" {
		return markPlanStatus(tx, plan, models.PlanDefaulted)
	}
	return nil
}

func handleSubscriptionDeleted(tx *gorm.DB, tenantID uuid.UUID, event *ProviderEvent) error {
	plan, err := findPlanBySubscription(tx, tenantID, event.Data.SubscriptionID)
	if err != nil {
		return err
	}
	return markPlanStatus(tx, plan, models.PlanCancelled)
}

// handleChargeRefunded updates the payment's refund bookkeeping and,
// once the payment is fully refunded, cancels the order's active
// enrollments. Freed seats are promoted after the transaction commits.
func handleChargeRefunded(tx *gorm.DB, tenantID uuid.UUID, event *ProviderEvent) ([]uuid.UUID, error) {
	if event.Data.ChargeID == "" {
		return nil, ErrUnrecognizedEvent
	}

	var payment models.Payment
	err := tx.Where("tenant_id = ? AND provider_reference = ?", tenantID, event.Data.ChargeID).First(&payment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUnrecognizedEvent
		}
		return nil, err
	}

	amount, err := decimal.NewFromString(event.Data.Amount)
	if err != nil || amount.LessThanOrEqual(decimal.Zero) {
		return nil, ErrUnrecognizedEvent
	}

	payment.ApplyRefund(amount)
	if err := tx.Model(&models.Payment{}).Where("id = ?", payment.ID).
		Updates(map[string]interface{}{
			"refund_amount": payment.RefundAmount,
			"status":        payment.Status,
		}).Error; err != nil {
		return nil, err
	}

	if !payment.FullyRefunded() {
		return nil, nil
	}

	if err := tx.Model(&models.Order{}).
		Where("id = ? AND tenant_id = ? AND status IN ?", payment.OrderID, tenantID,
			[]models.OrderStatus{models.OrderPaid, models.OrderPartiallyPaid}).
		Update("status", models.OrderRefunded).Error; err != nil {
		return nil, err
	}

	var enrollments []models.Enrollment
	err = tx.Joins("JOIN order_line_items ON order_line_items.enrollment_id = enrollments.id").
		Where("order_line_items.order_id = ? AND enrollments.status = ?", payment.OrderID, models.EnrollmentActive).
		Find(&enrollments).Error
	if err != nil {
		return nil, err
	}

	var freed []uuid.UUID
	now := nowFunc()
	for _, enrollment := range enrollments {
		result := tx.Model(&models.Enrollment{}).
			Where("id = ? AND status = ?", enrollment.ID, models.EnrollmentActive).
			Updates(map[string]interface{}{
				"status":       models.EnrollmentCancelled,
				"cancelled_at": now,
			})
		if result.Error != nil {
			return nil, result.Error
		}
		if result.RowsAffected == 0 {
			continue
		}
		if err := releaseSeat(tx, tenantID, enrollment.ClassID); err != nil {
			return nil, err
		}
		freed = append(freed, enrollment.ClassID)
	}
	return freed, nil
}
