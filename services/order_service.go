package services

import (
	"errors"
	"log"

	"github.com/google/uuid"
	"github.com/mwangi-dev/kidsclass_backend/models"
	"github.com/mwangi-dev/kidsclass_backend/notifications"
	"github.com/mwangi-dev/kidsclass_backend/payments"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type OrderItemRequest struct {
	ChildID uuid.UUID
	ClassID uuid.UUID
}

type PlacedOrder struct {
	Order       models.Order
	Enrollments []models.Enrollment
	CheckoutURL string
}

// PlaceOrder prices the requested (child, class) pairs, creates the
// order with its line items and enrollments, and opens a provider
// checkout session for the total. Enrollments land pending when the
// class has seats and waitlisted when it is full; seats themselves are
// only taken once payment is confirmed.
func PlaceOrder(db *gorm.DB, tenantID, userID uuid.UUID, itemRequests []OrderItemRequest, promoCode string) (*PlacedOrder, error) {
	items, err := loadOrderItems(db, tenantID, userID, itemRequests)
	if err != nil {
		return nil, err
	}

	priced, err := PriceOrder(db, tenantID, userID, items, promoCode)
	if err != nil {
		return nil, err
	}

	placed := &PlacedOrder{}
	err = db.Transaction(func(tx *gorm.DB) error {
		order := models.Order{
			TenantID:      tenantID,
			UserID:        userID,
			Status:        models.OrderPendingPayment,
			Subtotal:      priced.Subtotal,
			DiscountTotal: priced.DiscountTotal,
			Total:         priced.Total,
		}
		if priced.PromoCode != nil {
			order.PromoCodeID = &priced.PromoCode.ID
		}
		if err := tx.Create(&order).Error; err != nil {
			return err
		}

		for _, line := range priced.Lines {
			discount := line.SiblingDiscount.Add(line.ScholarshipDiscount).Add(line.PromoDiscount)
			enrollment, err := CreateEnrollment(tx, tenantID, userID, line.ChildID, line.ClassID,
				line.UnitPrice, discount, line.LineTotal)
			if err != nil {
				return err
			}
			placed.Enrollments = append(placed.Enrollments, *enrollment)

			lineItem := models.OrderLineItem{
				TenantID:            tenantID,
				OrderID:             order.ID,
				ChildID:             line.ChildID,
				ClassID:             line.ClassID,
				EnrollmentID:        &enrollment.ID,
				UnitPrice:           line.UnitPrice,
				SiblingDiscount:     line.SiblingDiscount,
				ScholarshipDiscount: line.ScholarshipDiscount,
				PromoDiscount:       line.PromoDiscount,
				LineTotal:           line.LineTotal,
			}
			if err := tx.Create(&lineItem).Error; err != nil {
				return err
			}

			if priced.PromoCode != nil && line.PromoDiscount.GreaterThan(decimal.Zero) {
				usage := models.PromoCodeUsage{
					TenantID:    tenantID,
					PromoCodeID: priced.PromoCode.ID,
					UserID:      userID,
					ClassID:     line.ClassID,
					OrderID:     order.ID,
				}
				if err := tx.Create(&usage).Error; err != nil {
					return err
				}
			}
		}

		payment := models.Payment{
			TenantID: tenantID,
			OrderID:  order.ID,
			Type:     models.PaymentOneTime,
			Status:   models.PaymentPending,
			Amount:   priced.Total,
		}
		if err := tx.Create(&payment).Error; err != nil {
			return err
		}

		placed.Order = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Fully discounted orders never reach the provider.
	if priced.Total.IsZero() {
		if err := settleZeroTotalOrder(db, tenantID, placed.Order.ID); err != nil {
			return nil, err
		}
		return placed, nil
	}

	session, err := openCheckoutSession(db, tenantID, userID, &placed.Order)
	if err != nil {
		// The order stays pending_payment; the caller can retry
		// checkout without re-placing it.
		log.Printf("🔥 Failed to open checkout session for order %s: %v", placed.Order.ID, err)
		return nil, err
	}
	placed.CheckoutURL = session.URL
	return placed, nil
}

func loadOrderItems(db *gorm.DB, tenantID, userID uuid.UUID, requests []OrderItemRequest) ([]PricingItem, error) {
	if len(requests) == 0 {
		return nil, NewValidationError("order must contain at least one enrollment")
	}

	items := make([]PricingItem, 0, len(requests))
	for _, request := range requests {
		var child models.Child
		err := db.Where("id = ? AND tenant_id = ? AND user_id = ?", request.ChildID, tenantID, userID).First(&child).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, NewValidationError("child %s not found", request.ChildID)
			}
			return nil, err
		}

		var class models.Class
		err = db.Where("id = ? AND tenant_id = ? AND is_active = ?", request.ClassID, tenantID, true).First(&class).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, NewValidationError("class %s not found", request.ClassID)
			}
			return nil, err
		}

		items = append(items, PricingItem{Child: child, Class: class})
	}
	return items, nil
}

func openCheckoutSession(db *gorm.DB, tenantID, userID uuid.UUID, order *models.Order) (*payments.CheckoutSession, error) {
	var user models.User
	if err := db.Where("id = ? AND tenant_id = ?", userID, tenantID).First(&user).Error; err != nil {
		return nil, err
	}

	customer, err := payments.EnsureCustomer(user.Email, user.FullName, user.ProviderCustomerID)
	if err != nil {
		return nil, err
	}
	if user.ProviderCustomerID == nil {
		db.Model(&user).Update("provider_customer_id", customer.ID)
	}

	session, err := payments.CreateCheckoutSession(customer.ID, order.ID.String(), order.Total, order.Currency)
	if err != nil {
		return nil, err
	}

	err = db.Model(&models.Payment{}).
		Where("tenant_id = ? AND order_id = ? AND status = ?", tenantID, order.ID, models.PaymentPending).
		Update("provider_reference", session.ID).Error
	if err != nil {
		return nil, err
	}
	return session, nil
}

// settleZeroTotalOrder marks a 100%-discounted order paid and activates
// its enrollments immediately.
func settleZeroTotalOrder(db *gorm.DB, tenantID, orderID uuid.UUID) error {
	return activateOrderEnrollments(db, tenantID, orderID, "")
}

// activateOrderEnrollments marks the order paid and activates exactly
// the enrollments referenced by its line items. An enrollment losing
// the seat race is rerouted to the priority waitlist rather than
// failing the whole order.
func activateOrderEnrollments(db *gorm.DB, tenantID, orderID uuid.UUID, providerRef string) error {
	var notify []models.Enrollment

	err := db.Transaction(func(tx *gorm.DB) error {
		var order models.Order
		if err := tx.Preload("LineItems").Where("id = ? AND tenant_id = ?", orderID, tenantID).First(&order).Error; err != nil {
			return err
		}
		if order.Status == models.OrderPaid {
			return nil
		}
		if !order.Status.CanTransitionTo(models.OrderPaid) {
			return NewValidationError("order cannot be marked paid from status %s", order.Status)
		}

		if err := tx.Model(&order).Update("status", models.OrderPaid).Error; err != nil {
			return err
		}

		updates := map[string]interface{}{"status": models.PaymentSucceeded}
		if providerRef != "" {
			updates["provider_reference"] = providerRef
		}
		if err := tx.Model(&models.Payment{}).
			Where("tenant_id = ? AND order_id = ? AND status = ?", tenantID, orderID, models.PaymentPending).
			Updates(updates).Error; err != nil {
			return err
		}

		for _, lineItem := range order.LineItems {
			if lineItem.EnrollmentID == nil {
				continue
			}
			var enrollment models.Enrollment
			if err := tx.Preload("Child").Preload("Class").Preload("User").
				First(&enrollment, "id = ?", *lineItem.EnrollmentID).Error; err != nil {
				return err
			}
			if enrollment.Status == models.EnrollmentActive {
				continue
			}
			if enrollment.Status.IsTerminal() {
				continue
			}

			err := ActivateEnrollment(tx, tenantID, &enrollment)
			if errors.Is(err, ErrCapacityExceeded) {
				// The class filled between order placement and payment
				// confirmation. The family has already paid, so they go
				// to the priority tier with auto-promote set and no
				// payment method: promotion activates them without a
				// second charge.
				if err := tx.Model(&models.Enrollment{}).
					Where("id = ? AND status = ?", enrollment.ID, enrollment.Status).
					Updates(map[string]interface{}{
						"status":            models.EnrollmentWaitlisted,
						"waitlist_tier":     models.WaitlistTierPriority,
						"auto_promote":      true,
						"payment_method_id": nil,
					}).Error; err != nil {
					return err
				}
				continue
			}
			if err != nil {
				return err
			}
			notify = append(notify, enrollment)
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, enrollment := range notify {
		go notifications.SendEnrollmentConfirmed(enrollment.User.FullName, enrollment.User.Email,
			enrollment.Child.FullName, enrollment.Class.Name)
	}
	return nil
}
