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
	MinInstallments = 2
	MaxInstallments = 12

	// installmentSweepBatchSize bounds one due/retry sweep invocation.
	installmentSweepBatchSize = 100
)

// MinInstallmentAmount is the smallest per-installment charge worth
// processing.
var MinInstallmentAmount = decimal.NewFromInt(10)

type ScheduleEntry struct {
	InstallmentNumber int
	DueDate           time.Time
	Amount            decimal.Decimal
}

// ComputeSchedule splits total into n equal amounts rounded to cents,
// with the final installment absorbing the rounding remainder so the
// schedule sums to total exactly. Due dates step by frequency from
// startDate.
func ComputeSchedule(total decimal.Decimal, n int, frequency models.InstallmentFrequency, startDate time.Time) []ScheduleEntry {
	per := total.DivRound(decimal.NewFromInt(int64(n)), 2)
	last := total.Sub(per.Mul(decimal.NewFromInt(int64(n - 1))))

	entries := make([]ScheduleEntry, 0, n)
	due := startDate
	for i := 1; i <= n; i++ {
		amount := per
		if i == n {
			amount = last
		}
		entries = append(entries, ScheduleEntry{
			InstallmentNumber: i,
			DueDate:           due,
			Amount:            amount,
		})
		due = frequency.NextDueDate(due)
	}
	return entries
}

// CreatePlan turns an unpaid order into an installment plan: validates
// the request, registers a recurring billing arrangement with the
// provider and persists the schedule as pending installment payments.
func CreatePlan(db *gorm.DB, tenantID, orderID, userID uuid.UUID, numInstallments int, frequency models.InstallmentFrequency, startDate time.Time, paymentMethodID uuid.UUID) (*models.InstallmentPlan, error) {
	if numInstallments < MinInstallments || numInstallments > MaxInstallments {
		return nil, NewValidationError("number of installments must be between %d and %d", MinInstallments, MaxInstallments)
	}
	switch frequency {
	case models.FrequencyWeekly, models.FrequencyBiweekly, models.FrequencyMonthly:
	default:
		return nil, NewValidationError("invalid installment frequency: %s", frequency)
	}

	today := nowFunc().Truncate(24 * time.Hour)
	if startDate.Before(today) {
		return nil, NewValidationError("installment start date cannot be in the past")
	}

	var order models.Order
	err := db.Where("id = ? AND tenant_id = ? AND user_id = ?", orderID, tenantID, userID).First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewValidationError("order not found")
		}
		return nil, err
	}
	switch order.Status {
	case models.OrderPaid, models.OrderCancelled, models.OrderRefunded:
		return nil, NewValidationError("cannot create an installment plan for a %s order", order.Status)
	}

	per := order.Total.DivRound(decimal.NewFromInt(int64(numInstallments)), 2)
	if per.LessThan(MinInstallmentAmount) {
		return nil, NewValidationError("per-installment amount %s is below the %s minimum",
			per.StringFixed(2), MinInstallmentAmount.StringFixed(2))
	}

	var existing int64
	if err := db.Model(&models.InstallmentPlan{}).Where("tenant_id = ? AND order_id = ?", tenantID, orderID).Count(&existing).Error; err != nil {
		return nil, err
	}
	if existing > 0 {
		return nil, NewValidationError("an installment plan already exists for this order")
	}

	var method models.PaymentMethod
	if err := db.Where("id = ? AND tenant_id = ? AND user_id = ?", paymentMethodID, tenantID, userID).First(&method).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewValidationError("payment method not found")
		}
		return nil, err
	}

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

	subscription, err := payments.CreateSubscription(customer.ID, method.ProviderMethodID, order.ID.String(),
		per, order.Currency, string(frequency), numInstallments)
	if err != nil {
		return nil, err
	}

	schedule := ComputeSchedule(order.Total, numInstallments, frequency, startDate)

	plan := models.InstallmentPlan{
		TenantID:               tenantID,
		OrderID:                order.ID,
		UserID:                 userID,
		TotalAmount:            order.Total,
		NumInstallments:        numInstallments,
		InstallmentAmount:      per,
		Frequency:              frequency,
		Status:                 models.PlanActive,
		PaymentMethodID:        paymentMethodID,
		ProviderSubscriptionID: &subscription.ID,
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&plan).Error; err != nil {
			return err
		}
		for _, entry := range schedule {
			installment := models.InstallmentPayment{
				TenantID:          tenantID,
				PlanID:            plan.ID,
				InstallmentNumber: entry.InstallmentNumber,
				DueDate:           entry.DueDate,
				Amount:            entry.Amount,
				Status:            models.InstallmentPending,
			}
			if err := tx.Create(&installment).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		// The provider arrangement exists but the plan does not; undo
		// the registration so the customer is never billed for it.
		if cancelErr := payments.CancelSubscription(subscription.ID); cancelErr != nil {
			log.Printf("🔥 CRITICAL: failed to cancel orphaned subscription %s: %v", subscription.ID, cancelErr)
		}
		return nil, err
	}
	return &plan, nil
}

// CancelPlan stops an active plan: remaining pending installments are
// skipped, already-paid ones are not refunded, and the provider
// arrangement is torn down.
func CancelPlan(db *gorm.DB, tenantID, planID, userID uuid.UUID) error {
	var plan models.InstallmentPlan
	err := db.Where("id = ? AND tenant_id = ? AND user_id = ?", planID, tenantID, userID).First(&plan).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return NewValidationError("installment plan not found")
		}
		return err
	}

	if !plan.Status.CanTransitionTo(models.PlanCancelled) {
		return NewValidationError("installment plan cannot be cancelled from status %s", plan.Status)
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.InstallmentPlan{}).
			Where("id = ? AND status = ?", plan.ID, models.PlanActive).
			Update("status", models.PlanCancelled)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return NewValidationError("installment plan was modified concurrently")
		}

		return tx.Model(&models.InstallmentPayment{}).
			Where("plan_id = ? AND status = ?", plan.ID, models.InstallmentPending).
			Update("status", models.InstallmentSkipped).Error
	})
	if err != nil {
		return err
	}

	if plan.ProviderSubscriptionID != nil {
		if err := payments.CancelSubscription(*plan.ProviderSubscriptionID); err != nil {
			log.Printf("🔥 Failed to cancel provider subscription %s: %v", *plan.ProviderSubscriptionID, err)
		}
	}
	return nil
}

// applyInstallmentPaid marks the plan's earliest pending installment
// paid, links a payment record and completes the plan when the last
// installment clears. Runs inside the reconciler's transaction.
func applyInstallmentPaid(tx *gorm.DB, plan *models.InstallmentPlan, providerRef string) error {
	var installment models.InstallmentPayment
	err := tx.Where("plan_id = ? AND status = ?", plan.ID, models.InstallmentPending).
		Order("installment_number ASC").
		First(&installment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Nothing pending: a duplicate or late invoice event.
			return nil
		}
		return err
	}

	now := nowFunc()
	if err := tx.Model(&installment).Updates(map[string]interface{}{
		"status":        models.InstallmentPaid,
		"paid_at":       now,
		"attempt_count": installment.AttemptCount + 1,
	}).Error; err != nil {
		return err
	}

	payment := models.Payment{
		TenantID:             plan.TenantID,
		OrderID:              plan.OrderID,
		Type:                 models.PaymentInstallment,
		Status:               models.PaymentSucceeded,
		Amount:               installment.Amount,
		ProviderReference:    &providerRef,
		InstallmentPaymentID: &installment.ID,
	}
	if err := tx.Create(&payment).Error; err != nil {
		return err
	}

	var remaining int64
	if err := tx.Model(&models.InstallmentPayment{}).
		Where("plan_id = ? AND status = ?", plan.ID, models.InstallmentPending).
		Count(&remaining).Error; err != nil {
		return err
	}

	orderStatus := models.OrderPartiallyPaid
	if remaining == 0 {
		if err := tx.Model(&models.InstallmentPlan{}).
			Where("id = ? AND status = ?", plan.ID, models.PlanActive).
			Update("status", models.PlanCompleted).Error; err != nil {
			return err
		}
		orderStatus = models.OrderPaid
	}

	return tx.Model(&models.Order{}).
		Where("id = ? AND status IN ?", plan.OrderID,
			[]models.OrderStatus{models.OrderPendingPayment, models.OrderPartiallyPaid}).
		Update("status", orderStatus).Error
}

// applyInstallmentFailure increments the earliest pending installment's
// attempt count. The third consecutive failure on the same installment
// defaults the plan; the remaining pending installments are left as
// they are.
func applyInstallmentFailure(tx *gorm.DB, plan *models.InstallmentPlan) error {
	var installment models.InstallmentPayment
	err := tx.Where("plan_id = ? AND status = ?", plan.ID, models.InstallmentPending).
		Order("installment_number ASC").
		First(&installment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}

	attempts := installment.AttemptCount + 1
	updates := map[string]interface{}{"attempt_count": attempts}
	defaulted := attempts >= models.MaxInstallmentAttempts
	if defaulted {
		updates["status"] = models.InstallmentFailed
	}
	if err := tx.Model(&installment).Updates(updates).Error; err != nil {
		return err
	}

	if defaulted {
		return tx.Model(&models.InstallmentPlan{}).
			Where("id = ? AND status = ?", plan.ID, models.PlanActive).
			Update("status", models.PlanDefaulted).Error
	}
	return nil
}

// markPlanStatus mirrors a provider subscription outcome into the
// local plan. Cancellation skips the remaining pending installments.
func markPlanStatus(tx *gorm.DB, plan *models.InstallmentPlan, status models.InstallmentPlanStatus) error {
	if !plan.Status.CanTransitionTo(status) {
		return nil
	}
	result := tx.Model(&models.InstallmentPlan{}).
		Where("id = ? AND status = ?", plan.ID, models.PlanActive).
		Update("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return nil
	}

	if status == models.PlanCancelled {
		return tx.Model(&models.InstallmentPayment{}).
			Where("plan_id = ? AND status = ?", plan.ID, models.InstallmentPending).
			Update("status", models.InstallmentSkipped).Error
	}
	return nil
}

// SweepDueInstallments charges due pending installments on active
// plans against the saved method. Declined cards count as a failed
// attempt; transient provider errors are left for the next sweep.
func SweepDueInstallments(db *gorm.DB) (int, error) {
	var due []models.InstallmentPayment
	err := db.
		Joins("JOIN installment_plans ON installment_plans.id = installment_payments.plan_id").
		Where("installment_payments.status = ? AND installment_payments.due_date <= ? AND installment_plans.status = ?",
			models.InstallmentPending, nowFunc(), models.PlanActive).
		Order("installment_payments.due_date ASC").
		Limit(installmentSweepBatchSize).
		Find(&due).Error
	if err != nil {
		return 0, err
	}

	charged := 0
	for _, installment := range due {
		var plan models.InstallmentPlan
		if err := db.First(&plan, "id = ?", installment.PlanID).Error; err != nil {
			log.Printf("🔥 Installment sweep: plan %s not found: %v", installment.PlanID, err)
			continue
		}
		if plan.Status != models.PlanActive {
			continue
		}

		if err := chargeInstallment(db, &plan, &installment); err != nil {
			if payments.IsTransient(err) {
				log.Printf("⚠️ Installment sweep: transient error charging installment %s, will retry next sweep: %v", installment.ID, err)
				continue
			}
			log.Printf("🔥 Installment sweep: charge failed for installment %s: %v", installment.ID, err)
			continue
		}
		charged++
	}
	return charged, nil
}

func chargeInstallment(db *gorm.DB, plan *models.InstallmentPlan, installment *models.InstallmentPayment) error {
	var user models.User
	if err := db.Where("id = ? AND tenant_id = ?", plan.UserID, plan.TenantID).First(&user).Error; err != nil {
		return err
	}
	var method models.PaymentMethod
	if err := db.Where("id = ? AND tenant_id = ?", plan.PaymentMethodID, plan.TenantID).First(&method).Error; err != nil {
		return err
	}

	customer, err := payments.EnsureCustomer(user.Email, user.FullName, user.ProviderCustomerID)
	if err != nil {
		return err
	}

	charge, err := payments.ChargeSavedMethod(customer.ID, method.ProviderMethodID,
		installment.ID.String(), installment.Amount, "USD")
	if err != nil {
		if errors.Is(err, payments.ErrCardDeclined) {
			failErr := db.Transaction(func(tx *gorm.DB) error {
				return applyInstallmentFailure(tx, plan)
			})
			if failErr != nil {
				return failErr
			}
			go notifications.SendPaymentFailed(user.FullName, user.Email)
		}
		return err
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		return applyInstallmentPaid(tx, plan, charge.ID)
	})
	if err != nil {
		return err
	}

	go notifications.SendPaymentSucceeded(user.FullName, user.Email, installment.Amount.StringFixed(2))
	return nil
}
