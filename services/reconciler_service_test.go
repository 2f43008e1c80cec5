package services

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mwangi-dev/kidsclass_backend/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func checkoutEvent(id string, tenantID uuid.UUID, orderID uuid.UUID, chargeID string) *ProviderEvent {
	event := &ProviderEvent{ID: id, Type: EventCheckoutCompleted}
	event.Data.TenantID = tenantID.String()
	event.Data.Reference = orderID.String()
	event.Data.ChargeID = chargeID
	return event
}

func placeTestOrder(t *testing.T, db *gorm.DB, tenantID uuid.UUID, user *models.User, class *models.Class) *PlacedOrder {
	t.Helper()
	child := seedChild(t, db, user, "Amani")
	placed, err := PlaceOrder(db, tenantID, user.ID, []OrderItemRequest{
		{ChildID: child.ID, ClassID: class.ID},
	}, "")
	require.NoError(t, err)
	return placed
}

func TestProcessEventRejectsMalformedAndUnknownEvents(t *testing.T) {
	db := setupTestDB(t)
	tenantID := uuid.New()

	err := ProcessEvent(db, tenantID, &ProviderEvent{ID: "", Type: EventCheckoutCompleted})
	assert.ErrorIs(t, err, ErrUnrecognizedEvent)

	err = ProcessEvent(db, tenantID, &ProviderEvent{ID: "evt_1", Type: "something-new"})
	assert.ErrorIs(t, err, ErrUnrecognizedEvent)

	// A rejected event leaves no idempotency marker, so a corrected
	// redelivery can still be processed.
	var markers int64
	db.Model(&models.WebhookEvent{}).Count(&markers)
	assert.EqualValues(t, 0, markers)
}

func TestProcessEventCheckoutCompletedActivatesOrder(t *testing.T) {
	db := setupTestDB(t)
	startFakeProvider(t)
	tenantID := uuid.New()
	user := seedUser(t, db, tenantID)
	class := seedClass(t, db, tenantID, "100.00", 5, 0)
	placed := placeTestOrder(t, db, tenantID, user, class)

	require.NoError(t, ProcessEvent(db, tenantID, checkoutEvent("evt_1", tenantID, placed.Order.ID, "ch_1")))

	var order models.Order
	require.NoError(t, db.First(&order, "id = ?", placed.Order.ID).Error)
	assert.Equal(t, models.OrderPaid, order.Status)

	var payment models.Payment
	require.NoError(t, db.Where("order_id = ?", order.ID).First(&payment).Error)
	assert.Equal(t, models.PaymentSucceeded, payment.Status)
	require.NotNil(t, payment.ProviderReference)
	assert.Equal(t, "ch_1", *payment.ProviderReference)

	var enrollment models.Enrollment
	require.NoError(t, db.First(&enrollment, "id = ?", placed.Enrollments[0].ID).Error)
	assert.Equal(t, models.EnrollmentActive, enrollment.Status)
}

func TestProcessEventDuplicateDeliveryIsHarmless(t *testing.T) {
	db := setupTestDB(t)
	startFakeProvider(t)
	tenantID := uuid.New()
	user := seedUser(t, db, tenantID)
	class := seedClass(t, db, tenantID, "100.00", 5, 0)
	placed := placeTestOrder(t, db, tenantID, user, class)

	event := checkoutEvent("evt_dup", tenantID, placed.Order.ID, "ch_1")
	require.NoError(t, ProcessEvent(db, tenantID, event))
	require.NoError(t, ProcessEvent(db, tenantID, event))
	require.NoError(t, ProcessEvent(db, tenantID, event))

	var markers int64
	db.Model(&models.WebhookEvent{}).Where("event_id = ?", "evt_dup").Count(&markers)
	assert.EqualValues(t, 1, markers)

	var freshClass models.Class
	require.NoError(t, db.First(&freshClass, "id = ?", class.ID).Error)
	assert.Equal(t, 1, freshClass.SeatsTaken, "redelivery must not take another seat")
}

func TestProcessEventPaymentFailedLeavesEnrollmentsAlone(t *testing.T) {
	db := setupTestDB(t)
	startFakeProvider(t)
	tenantID := uuid.New()
	user := seedUser(t, db, tenantID)
	class := seedClass(t, db, tenantID, "100.00", 5, 0)
	placed := placeTestOrder(t, db, tenantID, user, class)

	event := &ProviderEvent{ID: "evt_fail", Type: EventPaymentFailed}
	event.Data.TenantID = tenantID.String()
	event.Data.Reference = placed.Order.ID.String()
	require.NoError(t, ProcessEvent(db, tenantID, event))

	var payment models.Payment
	require.NoError(t, db.Where("order_id = ?", placed.Order.ID).First(&payment).Error)
	assert.Equal(t, models.PaymentFailed, payment.Status)

	var enrollment models.Enrollment
	require.NoError(t, db.First(&enrollment, "id = ?", placed.Enrollments[0].ID).Error)
	assert.Equal(t, models.EnrollmentPending, enrollment.Status, "the family can retry checkout")

	var order models.Order
	require.NoError(t, db.First(&order, "id = ?", placed.Order.ID).Error)
	assert.Equal(t, models.OrderPendingPayment, order.Status)
}

func TestProcessEventInvoiceOutcomesDriveThePlan(t *testing.T) {
	db := setupTestDB(t)
	startFakeProvider(t)
	tenantID := uuid.New()
	user := seedUser(t, db, tenantID)
	method := seedPaymentMethod(t, db, user)

	now := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	freezeTime(t, now)

	order := seedUnpaidOrder(t, db, user, "100.00")
	plan, err := CreatePlan(db, tenantID, order.ID, user.ID, 2, models.FrequencyMonthly, now.AddDate(0, 0, 1), method.ID)
	require.NoError(t, err)

	paidEvent := &ProviderEvent{ID: "evt_inv_1", Type: EventInvoicePaid}
	paidEvent.Data.TenantID = tenantID.String()
	paidEvent.Data.SubscriptionID = *plan.ProviderSubscriptionID
	paidEvent.Data.ChargeID = "ch_inv_1"
	require.NoError(t, ProcessEvent(db, tenantID, paidEvent))

	var first models.InstallmentPayment
	require.NoError(t, db.Where("plan_id = ? AND installment_number = 1", plan.ID).First(&first).Error)
	assert.Equal(t, models.InstallmentPaid, first.Status)

	failEvent := &ProviderEvent{ID: "evt_inv_2", Type: EventInvoiceFailed}
	failEvent.Data.TenantID = tenantID.String()
	failEvent.Data.SubscriptionID = *plan.ProviderSubscriptionID
	require.NoError(t, ProcessEvent(db, tenantID, failEvent))

	var second models.InstallmentPayment
	require.NoError(t, db.Where("plan_id = ? AND installment_number = 2", plan.ID).First(&second).Error)
	assert.Equal(t, models.InstallmentPending, second.Status)
	assert.Equal(t, 1, second.AttemptCount)

	// Events for an unknown subscription are rejected.
	orphan := &ProviderEvent{ID: "evt_inv_3", Type: EventInvoicePaid}
	orphan.Data.TenantID = tenantID.String()
	orphan.Data.SubscriptionID = "sub_nobody"
	assert.ErrorIs(t, ProcessEvent(db, tenantID, orphan), ErrUnrecognizedEvent)
}

func TestProcessEventSubscriptionLifecycle(t *testing.T) {
	db := setupTestDB(t)
	startFakeProvider(t)
	tenantID := uuid.New()
	user := seedUser(t, db, tenantID)
	method := seedPaymentMethod(t, db, user)

	now := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	freezeTime(t, now)

	order := seedUnpaidOrder(t, db, user, "100.00")
	plan, err := CreatePlan(db, tenantID, order.ID, user.ID, 2, models.FrequencyMonthly, now.AddDate(0, 0, 1), method.ID)
	require.NoError(t, err)

	unpaid := &ProviderEvent{ID: "evt_sub_1", Type: EventSubscriptionUpdated}
	unpaid.Data.TenantID = tenantID.String()
	unpaid.Data.SubscriptionID = *plan.ProviderSubscriptionID
	unpaid.Data.Status = "unpaid"
	require.NoError(t, ProcessEvent(db, tenantID, unpaid))

	var fresh models.InstallmentPlan
	require.NoError(t, db.First(&fresh, "id = ?", plan.ID).Error)
	assert.Equal(t, models.PlanDefaulted, fresh.Status)

	// Deletion of an already-defaulted plan changes nothing: defaulted
	// is terminal.
	deleted := &ProviderEvent{ID: "evt_sub_2", Type: EventSubscriptionDeleted}
	deleted.Data.TenantID = tenantID.String()
	deleted.Data.SubscriptionID = *plan.ProviderSubscriptionID
	require.NoError(t, ProcessEvent(db, tenantID, deleted))

	require.NoError(t, db.First(&fresh, "id = ?", plan.ID).Error)
	assert.Equal(t, models.PlanDefaulted, fresh.Status)
}

func TestProcessEventChargeRefundedCascades(t *testing.T) {
	db := setupTestDB(t)
	startFakeProvider(t)
	tenantID := uuid.New()
	user := seedUser(t, db, tenantID)
	class := seedClass(t, db, tenantID, "100.00", 1, 0)
	placed := placeTestOrder(t, db, tenantID, user, class)

	require.NoError(t, ProcessEvent(db, tenantID, checkoutEvent("evt_paid", tenantID, placed.Order.ID, "ch_refund_me")))

	// Someone is waiting for the seat.
	waiter := seedUser(t, db, tenantID)
	waiterChild := seedChild(t, db, waiter, "Baraka")
	waiting, err := JoinWaitlist(db, tenantID, waiter.ID, waiterChild.ID, class.ID, models.WaitlistTierRegular, nil)
	require.NoError(t, err)

	// Partial refund first: bookkeeping only, no cascade.
	partial := &ProviderEvent{ID: "evt_ref_1", Type: EventChargeRefunded}
	partial.Data.TenantID = tenantID.String()
	partial.Data.ChargeID = "ch_refund_me"
	partial.Data.Amount = "40.00"
	require.NoError(t, ProcessEvent(db, tenantID, partial))

	var payment models.Payment
	require.NoError(t, db.Where("order_id = ?", placed.Order.ID).First(&payment).Error)
	assert.Equal(t, models.PaymentPartiallyRefunded, payment.Status)
	assert.True(t, payment.RefundAmount.Equal(mustDecimal(t, "40.00")))

	var enrollment models.Enrollment
	require.NoError(t, db.First(&enrollment, "id = ?", placed.Enrollments[0].ID).Error)
	assert.Equal(t, models.EnrollmentActive, enrollment.Status)

	// The remainder completes the refund and cancels the enrollment.
	rest := &ProviderEvent{ID: "evt_ref_2", Type: EventChargeRefunded}
	rest.Data.TenantID = tenantID.String()
	rest.Data.ChargeID = "ch_refund_me"
	rest.Data.Amount = "60.00"
	require.NoError(t, ProcessEvent(db, tenantID, rest))

	require.NoError(t, db.Where("order_id = ?", placed.Order.ID).First(&payment).Error)
	assert.Equal(t, models.PaymentRefunded, payment.Status)
	assert.True(t, payment.RefundAmount.Equal(payment.Amount), "refund total never exceeds the charge")

	var order models.Order
	require.NoError(t, db.First(&order, "id = ?", placed.Order.ID).Error)
	assert.Equal(t, models.OrderRefunded, order.Status)

	require.NoError(t, db.First(&enrollment, "id = ?", placed.Enrollments[0].ID).Error)
	assert.Equal(t, models.EnrollmentCancelled, enrollment.Status)

	// The freed seat went straight to the waitlist.
	enrollment = models.Enrollment{}
	require.NoError(t, db.First(&enrollment, "id = ?", waiting.ID).Error)
	require.NotNil(t, enrollment.ClaimWindowExpiresAt, "the waiting family gets a claim window")
}

func TestProcessEventChargeRefundedUnknownCharge(t *testing.T) {
	db := setupTestDB(t)
	tenantID := uuid.New()

	event := &ProviderEvent{ID: "evt_ref_x", Type: EventChargeRefunded}
	event.Data.TenantID = tenantID.String()
	event.Data.ChargeID = "ch_ghost"
	event.Data.Amount = "10.00"
	assert.ErrorIs(t, ProcessEvent(db, tenantID, event), ErrUnrecognizedEvent)
}
