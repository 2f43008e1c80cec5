package services

import (
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/mwangi-dev/kidsclass_backend/models"
	"github.com/mwangi-dev/kidsclass_backend/notifications"
	"github.com/mwangi-dev/kidsclass_backend/payments"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	// ClaimWindowHours is how long a regular-tier family has to claim
	// an offered seat before it moves to the next entry in line.
	ClaimWindowHours = 12

	// claimSweepBatchSize bounds one sweep invocation.
	claimSweepBatchSize = 100
)

// JoinWaitlist creates a waitlisted enrollment. Priority tier requires
// a saved payment method and is auto-charged on promotion; regular tier
// gets a time-boxed claim window instead.
func JoinWaitlist(db *gorm.DB, tenantID, userID, childID, classID uuid.UUID, tier models.WaitlistTier, paymentMethodID *uuid.UUID) (*models.Enrollment, error) {
	if tier != models.WaitlistTierPriority && tier != models.WaitlistTierRegular {
		return nil, NewValidationError("invalid waitlist tier: %s", tier)
	}

	var child models.Child
	if err := db.Where("id = ? AND tenant_id = ? AND user_id = ?", childID, tenantID, userID).First(&child).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewValidationError("child not found")
		}
		return nil, err
	}

	var class models.Class
	if err := db.Where("id = ? AND tenant_id = ?", classID, tenantID).First(&class).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewValidationError("class not found")
		}
		return nil, err
	}
	if class.HasOpenSeats() {
		return nil, NewValidationError("class still has open seats, enroll directly instead of joining the waitlist")
	}

	if tier == models.WaitlistTierPriority {
		if paymentMethodID == nil {
			return nil, NewValidationError("priority waitlist requires a saved payment method")
		}
		var method models.PaymentMethod
		if err := db.Where("id = ? AND tenant_id = ? AND user_id = ?", *paymentMethodID, tenantID, userID).First(&method).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, NewValidationError("payment method not found")
			}
			return nil, err
		}
	}

	var existing int64
	err := db.Model(&models.Enrollment{}).
		Where("tenant_id = ? AND child_id = ? AND class_id = ? AND status IN ?",
			tenantID, childID, classID,
			[]models.EnrollmentStatus{models.EnrollmentPending, models.EnrollmentActive, models.EnrollmentWaitlisted}).
		Count(&existing).Error
	if err != nil {
		return nil, err
	}
	if existing > 0 {
		return nil, NewValidationError("this child is already enrolled or waitlisted for this class")
	}

	enrollment := models.Enrollment{
		TenantID:        tenantID,
		ChildID:         childID,
		ClassID:         classID,
		UserID:          userID,
		Status:          models.EnrollmentWaitlisted,
		WaitlistTier:    &tier,
		AutoPromote:     tier == models.WaitlistTierPriority,
		PaymentMethodID: paymentMethodID,
		BasePrice:       class.UnitPrice,
		DiscountAmount:  decimal.Zero,
		FinalPrice:      class.UnitPrice,
	}
	if err := db.Create(&enrollment).Error; err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// nextInLine selects the head of the waitlist ordering: every priority
// entry ahead of every regular one, strict FIFO within a tier. Entries
// that already hold an open claim window are skipped; expired windows
// belong to the sweep.
func nextInLine(db *gorm.DB, tenantID, classID uuid.UUID, excluded []uuid.UUID) (*models.Enrollment, error) {
	query := db.Preload("Child").Preload("Class").Preload("User").
		Where("tenant_id = ? AND class_id = ? AND status = ? AND claim_window_expires_at IS NULL",
			tenantID, classID, models.EnrollmentWaitlisted)
	if len(excluded) > 0 {
		query = query.Where("id NOT IN ?", excluded)
	}

	var head models.Enrollment
	err := query.
		Order("CASE WHEN waitlist_tier = 'priority' THEN 0 ELSE 1 END, created_at ASC").
		First(&head).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &head, nil
}

// PromoteNext is invoked whenever a seat frees up. Auto-promote entries
// are charged and activated in one step, moving down the line past
// declined cards; the first manual entry gets a claim window and the
// promotion stops there.
func PromoteNext(db *gorm.DB, tenantID, classID uuid.UUID) error {
	var excluded []uuid.UUID

	for {
		var class models.Class
		if err := db.Where("id = ? AND tenant_id = ?", classID, tenantID).First(&class).Error; err != nil {
			return err
		}
		if !class.HasOpenSeats() {
			return nil
		}

		head, err := nextInLine(db, tenantID, classID, excluded)
		if err != nil {
			return err
		}
		if head == nil {
			return nil
		}

		if head.AutoPromote && head.PaymentMethodID == nil {
			// Already paid (rerouted after losing a seat race on a
			// confirmed order): activate without another charge.
			err := db.Transaction(func(tx *gorm.DB) error {
				return ActivateEnrollment(tx, tenantID, head)
			})
			if err != nil {
				return err
			}
			go notifications.SendEnrollmentConfirmed(head.User.FullName, head.User.Email, head.Child.FullName, head.Class.Name)
			return nil
		}

		if head.AutoPromote && head.PaymentMethodID != nil {
			err := chargeAndActivate(db, tenantID, head, *head.PaymentMethodID)
			if err != nil {
				if errors.Is(err, payments.ErrCardDeclined) {
					log.Printf("⚠️ Auto-promote charge declined for enrollment %s, trying next in line", head.ID)
					go notifications.SendPaymentFailed(head.User.FullName, head.User.Email)
					excluded = append(excluded, head.ID)
					continue
				}
				return err
			}
			go notifications.SendEnrollmentConfirmed(head.User.FullName, head.User.Email, head.Child.FullName, head.Class.Name)
			return nil
		}

		expiresAt := nowFunc().Add(ClaimWindowHours * time.Hour)
		result := db.Model(&models.Enrollment{}).
			Where("id = ? AND tenant_id = ? AND status = ? AND claim_window_expires_at IS NULL",
				head.ID, tenantID, models.EnrollmentWaitlisted).
			Update("claim_window_expires_at", expiresAt)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			// Another promoter got here first; re-evaluate the line.
			excluded = append(excluded, head.ID)
			continue
		}

		go notifications.SendWaitlistSpotAvailable(head.User.FullName, head.User.Email,
			head.Child.FullName, head.Class.Name, ClaimWindowHours)
		return nil
	}
}

// ClaimSeat completes a manual promotion: charge, then the
// waitlisted -> active transition. Valid only while the claim window
// is open.
func ClaimSeat(db *gorm.DB, tenantID, enrollmentID, userID, paymentMethodID uuid.UUID) (*models.Enrollment, error) {
	var enrollment models.Enrollment
	err := db.Preload("Child").Preload("Class").Preload("User").
		Where("id = ? AND tenant_id = ? AND user_id = ?", enrollmentID, tenantID, userID).
		First(&enrollment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewValidationError("waitlist entry not found")
		}
		return nil, err
	}

	if enrollment.Status != models.EnrollmentWaitlisted || enrollment.ClaimWindowExpiresAt == nil {
		return nil, NewValidationError("no claimable seat for this enrollment")
	}
	if !enrollment.ClaimWindowOpen(nowFunc()) {
		return nil, ErrClaimWindowExpired
	}

	var method models.PaymentMethod
	if err := db.Where("id = ? AND tenant_id = ? AND user_id = ?", paymentMethodID, tenantID, userID).First(&method).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewValidationError("payment method not found")
		}
		return nil, err
	}

	if err := chargeAndActivate(db, tenantID, &enrollment, paymentMethodID); err != nil {
		return nil, err
	}

	go notifications.SendEnrollmentConfirmed(enrollment.User.FullName, enrollment.User.Email,
		enrollment.Child.FullName, enrollment.Class.Name)
	return &enrollment, nil
}

// WithdrawFromWaitlist is a voluntary exit. If the entry held an open
// claim window, the offer moves to the next family in line.
func WithdrawFromWaitlist(db *gorm.DB, tenantID, enrollmentID, userID uuid.UUID) error {
	var enrollment models.Enrollment
	err := db.Where("id = ? AND tenant_id = ? AND user_id = ?", enrollmentID, tenantID, userID).
		First(&enrollment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return NewValidationError("waitlist entry not found")
		}
		return err
	}

	result := db.Model(&models.Enrollment{}).
		Where("id = ? AND tenant_id = ? AND status = ?", enrollmentID, tenantID, models.EnrollmentWaitlisted).
		Updates(map[string]interface{}{
			"status":       models.EnrollmentCancelled,
			"cancelled_at": nowFunc(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return NewValidationError("only waitlisted enrollments can be withdrawn")
	}

	if enrollment.ClaimWindowOpen(nowFunc()) {
		if err := PromoteNext(db, tenantID, enrollment.ClassID); err != nil {
			log.Printf("🔥 Waitlist promotion after withdrawal failed for class %s: %v", enrollment.ClassID, err)
		}
	}
	return nil
}

// SweepExpiredClaims cancels waitlist entries whose claim window has
// passed and advances the line for each. Bounded batch; the conditional
// update makes overlapping sweep invocations safe.
func SweepExpiredClaims(db *gorm.DB) (int, error) {
	var expired []models.Enrollment
	err := db.Preload("User").Preload("Class").
		Where("status = ? AND claim_window_expires_at IS NOT NULL AND claim_window_expires_at < ?",
			models.EnrollmentWaitlisted, nowFunc()).
		Order("claim_window_expires_at ASC").
		Limit(claimSweepBatchSize).
		Find(&expired).Error
	if err != nil {
		return 0, err
	}

	swept := 0
	for _, entry := range expired {
		result := db.Model(&models.Enrollment{}).
			Where("id = ? AND status = ? AND claim_window_expires_at < ?",
				entry.ID, models.EnrollmentWaitlisted, nowFunc()).
			Updates(map[string]interface{}{
				"status":       models.EnrollmentCancelled,
				"cancelled_at": nowFunc(),
			})
		if result.Error != nil {
			return swept, result.Error
		}
		if result.RowsAffected == 0 {
			continue
		}
		swept++

		go notifications.SendWaitlistSpotExpired(entry.User.FullName, entry.User.Email, entry.Class.Name)

		if err := PromoteNext(db, entry.TenantID, entry.ClassID); err != nil {
			log.Printf("🔥 Waitlist promotion after claim expiry failed for class %s: %v", entry.ClassID, err)
		}
	}
	return swept, nil
}

// chargeAndActivate charges the saved method, then performs the
// activation transition with a fresh single-line order and payment
// record. A charge that lands on a seat lost in the meantime is
// refunded and surfaces ErrCapacityExceeded.
func chargeAndActivate(db *gorm.DB, tenantID uuid.UUID, enrollment *models.Enrollment, paymentMethodID uuid.UUID) error {
	var user models.User
	if err := db.Where("id = ? AND tenant_id = ?", enrollment.UserID, tenantID).First(&user).Error; err != nil {
		return err
	}
	var method models.PaymentMethod
	if err := db.Where("id = ? AND tenant_id = ?", paymentMethodID, tenantID).First(&method).Error; err != nil {
		return err
	}

	customer, err := payments.EnsureCustomer(user.Email, user.FullName, user.ProviderCustomerID)
	if err != nil {
		return err
	}
	if user.ProviderCustomerID == nil {
		db.Model(&user).Update("provider_customer_id", customer.ID)
	}

	charge, err := payments.ChargeSavedMethod(customer.ID, method.ProviderMethodID, enrollment.ID.String(),
		enrollment.FinalPrice, "USD")
	if err != nil {
		return err
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := ActivateEnrollment(tx, tenantID, enrollment); err != nil {
			return err
		}

		order := models.Order{
			TenantID:      tenantID,
			UserID:        enrollment.UserID,
			Status:        models.OrderPaid,
			Subtotal:      enrollment.BasePrice,
			DiscountTotal: enrollment.DiscountAmount,
			Total:         enrollment.FinalPrice,
		}
		if err := tx.Create(&order).Error; err != nil {
			return err
		}

		lineItem := models.OrderLineItem{
			TenantID:     tenantID,
			OrderID:      order.ID,
			ChildID:      enrollment.ChildID,
			ClassID:      enrollment.ClassID,
			EnrollmentID: &enrollment.ID,
			UnitPrice:    enrollment.BasePrice,
			LineTotal:    enrollment.FinalPrice,
		}
		if err := tx.Create(&lineItem).Error; err != nil {
			return err
		}

		payment := models.Payment{
			TenantID:          tenantID,
			OrderID:           order.ID,
			Type:              models.PaymentOneTime,
			Status:            models.PaymentSucceeded,
			Amount:            enrollment.FinalPrice,
			ProviderReference: &charge.ID,
		}
		return tx.Create(&payment).Error
	})
	if err != nil {
		if errors.Is(err, ErrCapacityExceeded) {
			if _, refundErr := payments.CreateRefund(charge.ID, enrollment.FinalPrice); refundErr != nil {
				log.Printf("🔥 CRITICAL: Failed to refund charge %s after lost seat race: %v", charge.ID, refundErr)
			}
		}
		return err
	}
	return nil
}
