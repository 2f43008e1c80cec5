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

// RefundWindowDays: cancelling an active enrollment within this many
// days of enrolled_at earns a full refund; after that, none.
const RefundWindowDays = 15

// takeSeat is the capacity ledger's only increment path: a conditional
// update that can never push seats_taken past capacity, no matter how
// many transactions race for the last seat.
func takeSeat(tx *gorm.DB, tenantID, classID uuid.UUID) error {
	result := tx.Model(&models.Class{}).
		Where("id = ? AND tenant_id = ? AND seats_taken < capacity", classID, tenantID).
		UpdateColumn("seats_taken", gorm.Expr("seats_taken + 1"))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrCapacityExceeded
	}
	return nil
}

func releaseSeat(tx *gorm.DB, tenantID, classID uuid.UUID) error {
	return tx.Model(&models.Class{}).
		Where("id = ? AND tenant_id = ? AND seats_taken > 0", classID, tenantID).
		UpdateColumn("seats_taken", gorm.Expr("seats_taken - 1")).Error
}

// CreateEnrollment inserts a new enrollment inside the caller's
// transaction. The initial status is decided by capacity at creation
// time: pending when a seat could still be taken, waitlisted otherwise.
// A pending enrollment does not hold a seat; the seat is only taken by
// ActivateEnrollment.
func CreateEnrollment(tx *gorm.DB, tenantID, userID, childID, classID uuid.UUID, basePrice, discount, finalPrice decimal.Decimal) (*models.Enrollment, error) {
	var existing int64
	err := tx.Model(&models.Enrollment{}).
		Where("tenant_id = ? AND child_id = ? AND class_id = ? AND status IN ?",
			tenantID, childID, classID,
			[]models.EnrollmentStatus{models.EnrollmentPending, models.EnrollmentActive}).
		Count(&existing).Error
	if err != nil {
		return nil, err
	}
	if existing > 0 {
		return nil, NewValidationError("this child already has a pending or active enrollment in this class")
	}

	var class models.Class
	if err := tx.Where("id = ? AND tenant_id = ?", classID, tenantID).First(&class).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewValidationError("class not found")
		}
		return nil, err
	}

	status := models.EnrollmentPending
	var tier *models.WaitlistTier
	if !class.HasOpenSeats() {
		status = models.EnrollmentWaitlisted
		regular := models.WaitlistTierRegular
		tier = &regular
	}

	enrollment := models.Enrollment{
		TenantID:       tenantID,
		ChildID:        childID,
		ClassID:        classID,
		UserID:         userID,
		Status:         status,
		WaitlistTier:   tier,
		BasePrice:      basePrice,
		DiscountAmount: discount,
		FinalPrice:     finalPrice,
	}
	if err := tx.Create(&enrollment).Error; err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// ActivateEnrollment performs the pending|waitlisted -> active
// transition. The seat increment and the status write share the
// caller's transaction, so either both commit or neither does.
func ActivateEnrollment(tx *gorm.DB, tenantID uuid.UUID, enrollment *models.Enrollment) error {
	if !enrollment.Status.CanTransitionTo(models.EnrollmentActive) {
		return NewValidationError("enrollment cannot be activated from status %s", enrollment.Status)
	}

	if err := takeSeat(tx, tenantID, enrollment.ClassID); err != nil {
		return err
	}

	now := nowFunc()
	result := tx.Model(&models.Enrollment{}).
		Where("id = ? AND tenant_id = ? AND status IN ?", enrollment.ID, tenantID,
			[]models.EnrollmentStatus{models.EnrollmentPending, models.EnrollmentWaitlisted}).
		Updates(map[string]interface{}{
			"status":                  models.EnrollmentActive,
			"enrolled_at":             now,
			"claim_window_expires_at": nil,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		// Lost a race with another transition on the same row; the
		// seat increment rolls back with the transaction.
		return NewValidationError("enrollment was modified concurrently")
	}

	enrollment.Status = models.EnrollmentActive
	enrollment.EnrolledAt = &now
	enrollment.ClaimWindowExpiresAt = nil
	return nil
}

// CompleteEnrollment marks a finished term. The seat stays counted.
func CompleteEnrollment(db *gorm.DB, tenantID, enrollmentID uuid.UUID) error {
	result := db.Model(&models.Enrollment{}).
		Where("id = ? AND tenant_id = ? AND status = ?", enrollmentID, tenantID, models.EnrollmentActive).
		Update("status", models.EnrollmentCompleted)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return NewValidationError("only active enrollments can be completed")
	}
	return nil
}

// CancelEnrollment drives the -> cancelled transition from any
// non-terminal status. Cancelling an active enrollment frees the seat,
// computes the refund due under the 15-day policy and hands the freed
// seat to the waitlist.
func CancelEnrollment(db *gorm.DB, tenantID, enrollmentID uuid.UUID) error {
	var enrollment models.Enrollment
	var refundDue decimal.Decimal
	var seatFreed bool

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Preload("Child").Preload("Class").Preload("User").
			Where("id = ? AND tenant_id = ?", enrollmentID, tenantID).
			First(&enrollment).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return NewValidationError("enrollment not found")
			}
			return err
		}

		if !enrollment.Status.CanTransitionTo(models.EnrollmentCancelled) {
			return NewValidationError("enrollment cannot be cancelled from status %s", enrollment.Status)
		}

		wasActive := enrollment.Status == models.EnrollmentActive

		now := nowFunc()
		result := tx.Model(&models.Enrollment{}).
			Where("id = ? AND tenant_id = ? AND status = ?", enrollment.ID, tenantID, enrollment.Status).
			Updates(map[string]interface{}{
				"status":       models.EnrollmentCancelled,
				"cancelled_at": now,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return NewValidationError("enrollment was modified concurrently")
		}

		if wasActive {
			if err := releaseSeat(tx, tenantID, enrollment.ClassID); err != nil {
				return err
			}
			seatFreed = true
			refundDue = refundAmountDue(&enrollment)
		}
		return nil
	})
	if err != nil {
		return err
	}

	go notifications.SendCancellationConfirmed(
		enrollment.User.FullName, enrollment.User.Email,
		enrollment.Child.FullName, enrollment.Class.Name)

	if refundDue.GreaterThan(decimal.Zero) {
		if err := issueEnrollmentRefund(db, tenantID, &enrollment, refundDue); err != nil {
			log.Printf("🔥 Failed to issue refund for enrollment %s: %v", enrollment.ID, err)
		}
	}

	if seatFreed {
		if err := PromoteNext(db, tenantID, enrollment.ClassID); err != nil {
			log.Printf("🔥 Waitlist promotion failed for class %s: %v", enrollment.ClassID, err)
		}
	}
	return nil
}

// refundAmountDue: full refund within RefundWindowDays of enrollment,
// nothing after.
func refundAmountDue(enrollment *models.Enrollment) decimal.Decimal {
	if enrollment.EnrolledAt == nil {
		return decimal.Zero
	}
	cutoff := enrollment.EnrolledAt.AddDate(0, 0, RefundWindowDays)
	if nowFunc().After(cutoff) {
		return decimal.Zero
	}
	return enrollment.FinalPrice
}

// issueEnrollmentRefund asks the provider for a refund of the
// enrollment's share of its order payment. The charge-refunded webhook
// is the authoritative confirmation; the provider call is only the
// request.
func issueEnrollmentRefund(db *gorm.DB, tenantID uuid.UUID, enrollment *models.Enrollment, amount decimal.Decimal) error {
	var lineItem models.OrderLineItem
	err := db.Where("tenant_id = ? AND enrollment_id = ?", tenantID, enrollment.ID).First(&lineItem).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Waitlist-claimed seats are paid through their own
			// single-line order; nothing to refund if none exists.
			return nil
		}
		return err
	}

	var payment models.Payment
	err = db.Where("tenant_id = ? AND order_id = ? AND status IN ?", tenantID, lineItem.OrderID,
		[]models.PaymentStatus{models.PaymentSucceeded, models.PaymentPartiallyRefunded}).
		First(&payment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	if payment.ProviderReference == nil {
		return nil
	}

	_, err = payments.CreateRefund(*payment.ProviderReference, amount)
	return err
}
