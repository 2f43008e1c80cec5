package services

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mwangi-dev/kidsclass_backend/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func seedWaitlisted(t *testing.T, db *gorm.DB, user *models.User, child *models.Child, class *models.Class, tier models.WaitlistTier, methodID *uuid.UUID, createdAt time.Time) *models.Enrollment {
	t.Helper()
	entry := models.Enrollment{
		ID:              uuid.New(),
		TenantID:        user.TenantID,
		ChildID:         child.ID,
		ClassID:         class.ID,
		UserID:          user.ID,
		Status:          models.EnrollmentWaitlisted,
		WaitlistTier:    &tier,
		AutoPromote:     tier == models.WaitlistTierPriority,
		PaymentMethodID: methodID,
		BasePrice:       class.UnitPrice,
		DiscountAmount:  decimal.Zero,
		FinalPrice:      class.UnitPrice,
	}
	require.NoError(t, db.Create(&entry).Error)
	// Force FIFO ordering regardless of insert timing.
	require.NoError(t, db.Model(&models.Enrollment{}).Where("id = ?", entry.ID).
		UpdateColumn("created_at", createdAt).Error)
	return &entry
}

func TestJoinWaitlistValidations(t *testing.T) {
	db := setupTestDB(t)
	tenantID := uuid.New()
	user := seedUser(t, db, tenantID)
	child := seedChild(t, db, user, "Amani")

	openClass := seedClass(t, db, tenantID, "100.00", 5, 0)
	_, err := JoinWaitlist(db, tenantID, user.ID, child.ID, openClass.ID, models.WaitlistTierRegular, nil)
	assert.True(t, IsValidationError(err), "joining the waitlist of a class with open seats must fail")

	fullClass := seedClass(t, db, tenantID, "100.00", 1, 1)
	_, err = JoinWaitlist(db, tenantID, user.ID, child.ID, fullClass.ID, models.WaitlistTierPriority, nil)
	assert.True(t, IsValidationError(err), "priority tier requires a saved payment method")

	_, err = JoinWaitlist(db, tenantID, user.ID, child.ID, fullClass.ID, "platinum", nil)
	assert.True(t, IsValidationError(err))

	entry, err := JoinWaitlist(db, tenantID, user.ID, child.ID, fullClass.ID, models.WaitlistTierRegular, nil)
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentWaitlisted, entry.Status)
	assert.False(t, entry.AutoPromote)

	_, err = JoinWaitlist(db, tenantID, user.ID, child.ID, fullClass.ID, models.WaitlistTierRegular, nil)
	assert.True(t, IsValidationError(err), "a child cannot join the same waitlist twice")
}

func TestPromoteNextPrefersPriorityOverEarlierRegular(t *testing.T) {
	db := setupTestDB(t)
	provider := startFakeProvider(t)
	tenantID := uuid.New()
	user := seedUser(t, db, tenantID)
	method := seedPaymentMethod(t, db, user)
	class := seedClass(t, db, tenantID, "100.00", 1, 0)

	base := time.Now().Add(-2 * time.Hour)
	regularChild := seedChild(t, db, user, "Amani")
	regular := seedWaitlisted(t, db, user, regularChild, class, models.WaitlistTierRegular, nil, base)

	priorityChild := seedChild(t, db, user, "Baraka")
	priority := seedWaitlisted(t, db, user, priorityChild, class, models.WaitlistTierPriority, &method.ID, base.Add(time.Hour))

	require.NoError(t, PromoteNext(db, tenantID, class.ID))

	// The later priority entry wins over the earlier regular one, is
	// charged and activated in one step.
	var fresh models.Enrollment
	require.NoError(t, db.First(&fresh, "id = ?", priority.ID).Error)
	assert.Equal(t, models.EnrollmentActive, fresh.Status)
	assert.Equal(t, 1, provider.chargeCount())

	fresh = models.Enrollment{}
	require.NoError(t, db.First(&fresh, "id = ?", regular.ID).Error)
	assert.Equal(t, models.EnrollmentWaitlisted, fresh.Status)
	assert.Nil(t, fresh.ClaimWindowExpiresAt)

	// The charge produced its own paid single-line order.
	var paymentCount int64
	db.Model(&models.Payment{}).Where("tenant_id = ? AND status = ?", tenantID, models.PaymentSucceeded).Count(&paymentCount)
	assert.EqualValues(t, 1, paymentCount)
}

func TestPromoteNextOpensClaimWindowForRegularTier(t *testing.T) {
	db := setupTestDB(t)
	tenantID := uuid.New()
	user := seedUser(t, db, tenantID)
	class := seedClass(t, db, tenantID, "100.00", 1, 0)

	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	freezeTime(t, now)

	child := seedChild(t, db, user, "Amani")
	entry := seedWaitlisted(t, db, user, child, class, models.WaitlistTierRegular, nil, now.Add(-time.Hour))

	require.NoError(t, PromoteNext(db, tenantID, class.ID))

	var fresh models.Enrollment
	require.NoError(t, db.First(&fresh, "id = ?", entry.ID).Error)
	assert.Equal(t, models.EnrollmentWaitlisted, fresh.Status, "regular tier waits for an explicit claim")
	require.NotNil(t, fresh.ClaimWindowExpiresAt)
	assert.Equal(t, now.Add(ClaimWindowHours*time.Hour).Unix(), fresh.ClaimWindowExpiresAt.Unix())

	// An entry holding an open window is not offered the seat again.
	require.NoError(t, PromoteNext(db, tenantID, class.ID))
	var windows int64
	db.Model(&models.Enrollment{}).
		Where("class_id = ? AND claim_window_expires_at IS NOT NULL", class.ID).
		Count(&windows)
	assert.EqualValues(t, 1, windows)
}

func TestPromoteNextSkipsDeclinedCards(t *testing.T) {
	db := setupTestDB(t)
	provider := startFakeProvider(t)
	tenantID := uuid.New()
	user := seedUser(t, db, tenantID)
	class := seedClass(t, db, tenantID, "100.00", 1, 0)

	base := time.Now().Add(-2 * time.Hour)

	badMethod := seedPaymentMethod(t, db, user)
	provider.decline(badMethod.ProviderMethodID)
	firstChild := seedChild(t, db, user, "Amani")
	declinedEntry := seedWaitlisted(t, db, user, firstChild, class, models.WaitlistTierPriority, &badMethod.ID, base)

	goodMethod := seedPaymentMethod(t, db, user)
	secondChild := seedChild(t, db, user, "Baraka")
	nextEntry := seedWaitlisted(t, db, user, secondChild, class, models.WaitlistTierPriority, &goodMethod.ID, base.Add(time.Minute))

	require.NoError(t, PromoteNext(db, tenantID, class.ID))

	var fresh models.Enrollment
	require.NoError(t, db.First(&fresh, "id = ?", declinedEntry.ID).Error)
	assert.Equal(t, models.EnrollmentWaitlisted, fresh.Status, "declined entry stays in line")

	fresh = models.Enrollment{}
	require.NoError(t, db.First(&fresh, "id = ?", nextEntry.ID).Error)
	assert.Equal(t, models.EnrollmentActive, fresh.Status)
	assert.Equal(t, 1, provider.chargeCount())
}

func TestPromoteNextActivatesPrepaidEntryWithoutCharge(t *testing.T) {
	db := setupTestDB(t)
	provider := startFakeProvider(t)
	tenantID := uuid.New()
	user := seedUser(t, db, tenantID)
	class := seedClass(t, db, tenantID, "100.00", 1, 0)
	child := seedChild(t, db, user, "Amani")

	// Rerouted after losing a seat race on a paid order: auto-promote
	// with no payment method on file.
	entry := seedWaitlisted(t, db, user, child, class, models.WaitlistTierPriority, nil, time.Now().Add(-time.Hour))
	require.NoError(t, db.Model(&models.Enrollment{}).Where("id = ?", entry.ID).
		UpdateColumn("auto_promote", true).Error)

	require.NoError(t, PromoteNext(db, tenantID, class.ID))

	var fresh models.Enrollment
	require.NoError(t, db.First(&fresh, "id = ?", entry.ID).Error)
	assert.Equal(t, models.EnrollmentActive, fresh.Status)
	assert.Equal(t, 0, provider.chargeCount(), "already-paid entries must not be charged again")
}

func TestClaimSeatWithinWindow(t *testing.T) {
	db := setupTestDB(t)
	provider := startFakeProvider(t)
	tenantID := uuid.New()
	user := seedUser(t, db, tenantID)
	method := seedPaymentMethod(t, db, user)
	class := seedClass(t, db, tenantID, "100.00", 1, 0)
	child := seedChild(t, db, user, "Amani")

	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	freezeTime(t, now)

	entry := seedWaitlisted(t, db, user, child, class, models.WaitlistTierRegular, nil, now.Add(-time.Hour))
	expires := now.Add(ClaimWindowHours * time.Hour)
	require.NoError(t, db.Model(&models.Enrollment{}).Where("id = ?", entry.ID).
		UpdateColumn("claim_window_expires_at", expires).Error)

	claimed, err := ClaimSeat(db, tenantID, entry.ID, user.ID, method.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentActive, claimed.Status)
	assert.Equal(t, 1, provider.chargeCount())

	var fresh models.Class
	require.NoError(t, db.First(&fresh, "id = ?", class.ID).Error)
	assert.Equal(t, 1, fresh.SeatsTaken)
}

func TestClaimSeatAfterWindowExpires(t *testing.T) {
	db := setupTestDB(t)
	startFakeProvider(t)
	tenantID := uuid.New()
	user := seedUser(t, db, tenantID)
	method := seedPaymentMethod(t, db, user)
	class := seedClass(t, db, tenantID, "100.00", 1, 0)
	child := seedChild(t, db, user, "Amani")

	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	freezeTime(t, now)

	entry := seedWaitlisted(t, db, user, child, class, models.WaitlistTierRegular, nil, now.Add(-24*time.Hour))
	expired := now.Add(-time.Minute)
	require.NoError(t, db.Model(&models.Enrollment{}).Where("id = ?", entry.ID).
		UpdateColumn("claim_window_expires_at", expired).Error)

	_, err := ClaimSeat(db, tenantID, entry.ID, user.ID, method.ID)
	assert.ErrorIs(t, err, ErrClaimWindowExpired)

	// No window at all is a validation error, not an expiry.
	noWindowChild := seedChild(t, db, user, "Baraka")
	noWindow := seedWaitlisted(t, db, user, noWindowChild, class, models.WaitlistTierRegular, nil, now)
	_, err = ClaimSeat(db, tenantID, noWindow.ID, user.ID, method.ID)
	assert.True(t, IsValidationError(err))
}

func TestWithdrawFromWaitlistPassesOfferAlong(t *testing.T) {
	db := setupTestDB(t)
	tenantID := uuid.New()
	user := seedUser(t, db, tenantID)
	class := seedClass(t, db, tenantID, "100.00", 1, 0)

	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	freezeTime(t, now)

	firstChild := seedChild(t, db, user, "Amani")
	holder := seedWaitlisted(t, db, user, firstChild, class, models.WaitlistTierRegular, nil, now.Add(-2*time.Hour))
	window := now.Add(ClaimWindowHours * time.Hour)
	require.NoError(t, db.Model(&models.Enrollment{}).Where("id = ?", holder.ID).
		UpdateColumn("claim_window_expires_at", window).Error)

	secondChild := seedChild(t, db, user, "Baraka")
	next := seedWaitlisted(t, db, user, secondChild, class, models.WaitlistTierRegular, nil, now.Add(-time.Hour))

	require.NoError(t, WithdrawFromWaitlist(db, tenantID, holder.ID, user.ID))

	var fresh models.Enrollment
	require.NoError(t, db.First(&fresh, "id = ?", holder.ID).Error)
	assert.Equal(t, models.EnrollmentCancelled, fresh.Status)

	fresh = models.Enrollment{}
	require.NoError(t, db.First(&fresh, "id = ?", next.ID).Error)
	require.NotNil(t, fresh.ClaimWindowExpiresAt, "the open offer moves to the next entry in line")
}

func TestSweepExpiredClaims(t *testing.T) {
	db := setupTestDB(t)
	tenantID := uuid.New()
	user := seedUser(t, db, tenantID)
	class := seedClass(t, db, tenantID, "100.00", 1, 0)

	now := time.Date(2026, 5, 2, 9, 0, 0, 0, time.UTC)
	freezeTime(t, now)

	expiredChild := seedChild(t, db, user, "Amani")
	expired := seedWaitlisted(t, db, user, expiredChild, class, models.WaitlistTierRegular, nil, now.Add(-48*time.Hour))
	past := now.Add(-time.Hour)
	require.NoError(t, db.Model(&models.Enrollment{}).Where("id = ?", expired.ID).
		UpdateColumn("claim_window_expires_at", past).Error)

	nextChild := seedChild(t, db, user, "Baraka")
	next := seedWaitlisted(t, db, user, nextChild, class, models.WaitlistTierRegular, nil, now.Add(-24*time.Hour))

	swept, err := SweepExpiredClaims(db)
	require.NoError(t, err)
	assert.Equal(t, 1, swept)

	var fresh models.Enrollment
	require.NoError(t, db.First(&fresh, "id = ?", expired.ID).Error)
	assert.Equal(t, models.EnrollmentCancelled, fresh.Status)

	fresh = models.Enrollment{}
	require.NoError(t, db.First(&fresh, "id = ?", next.ID).Error)
	assert.Equal(t, models.EnrollmentWaitlisted, fresh.Status)
	require.NotNil(t, fresh.ClaimWindowExpiresAt, "the sweep hands the seat to the next family")

	// A second sweep finds nothing new.
	swept, err = SweepExpiredClaims(db)
	require.NoError(t, err)
	assert.Equal(t, 0, swept)
}
