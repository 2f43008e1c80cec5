package services

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mwangi-dev/kidsclass_backend/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriceOrderSingleChildNoDiscounts(t *testing.T) {
	db := setupTestDB(t)
	tenantID := uuid.New()
	user := seedUser(t, db, tenantID)
	child := seedChild(t, db, user, "Amani")
	class := seedClass(t, db, tenantID, "100.00", 10, 0)

	priced, err := PriceOrder(db, tenantID, user.ID, []PricingItem{{Child: *child, Class: *class}}, "")
	require.NoError(t, err)

	require.Len(t, priced.Lines, 1)
	assert.True(t, priced.Lines[0].SiblingDiscount.IsZero())
	assert.True(t, priced.Lines[0].LineTotal.Equal(mustDecimal(t, "100.00")))
	assert.True(t, priced.Total.Equal(mustDecimal(t, "100.00")))
	assert.True(t, priced.DiscountTotal.IsZero())
}

func TestPriceOrderSiblingTiers(t *testing.T) {
	db := setupTestDB(t)
	tenantID := uuid.New()
	user := seedUser(t, db, tenantID)
	class := seedClass(t, db, tenantID, "100.00", 10, 0)

	first := seedChild(t, db, user, "Amani")
	second := seedChild(t, db, user, "Baraka")

	// Two children: 10% off each line.
	priced, err := PriceOrder(db, tenantID, user.ID, []PricingItem{
		{Child: *first, Class: *class},
		{Child: *second, Class: *class},
	}, "")
	require.NoError(t, err)
	for _, line := range priced.Lines {
		assert.True(t, line.SiblingDiscount.Equal(mustDecimal(t, "10.00")),
			"expected 10%% sibling discount, got %s", line.SiblingDiscount)
		assert.True(t, line.LineTotal.Equal(mustDecimal(t, "90.00")))
	}
	assert.True(t, priced.Total.Equal(mustDecimal(t, "180.00")))

	// Three children: 15% off each line.
	third := seedChild(t, db, user, "Chausiku")
	priced, err = PriceOrder(db, tenantID, user.ID, []PricingItem{
		{Child: *first, Class: *class},
		{Child: *second, Class: *class},
		{Child: *third, Class: *class},
	}, "")
	require.NoError(t, err)
	for _, line := range priced.Lines {
		assert.True(t, line.SiblingDiscount.Equal(mustDecimal(t, "15.00")))
	}
	assert.True(t, priced.Total.Equal(mustDecimal(t, "255.00")))
}

func TestPriceOrderDiscountsAreAdditiveAgainstUnitPrice(t *testing.T) {
	db := setupTestDB(t)
	tenantID := uuid.New()
	user := seedUser(t, db, tenantID)
	child := seedChild(t, db, user, "Amani")
	class := seedClass(t, db, tenantID, "100.00", 10, 0)

	require.NoError(t, db.Create(&models.Scholarship{
		ID:       uuid.New(),
		TenantID: tenantID,
		UserID:   user.ID,
		Amount:   mustDecimal(t, "25.00"),
		IsActive: true,
	}).Error)
	require.NoError(t, db.Create(&models.PromoCode{
		ID:                  uuid.New(),
		TenantID:            tenantID,
		Code:                "WELCOME10",
		Amount:              mustDecimal(t, "10.00"),
		ExpiresAt:           time.Now().AddDate(0, 1, 0),
		MaxUsesPerUserClass: 1,
		IsActive:            true,
	}).Error)

	priced, err := PriceOrder(db, tenantID, user.ID, []PricingItem{{Child: *child, Class: *class}}, "WELCOME10")
	require.NoError(t, err)

	line := priced.Lines[0]
	assert.True(t, line.ScholarshipDiscount.Equal(mustDecimal(t, "25.00")))
	assert.True(t, line.PromoDiscount.Equal(mustDecimal(t, "10.00")))
	assert.True(t, line.LineTotal.Equal(mustDecimal(t, "65.00")),
		"100 - 25 - 10 should price at 65, got %s", line.LineTotal)
	assert.True(t, priced.DiscountTotal.Equal(mustDecimal(t, "35.00")))
}

func TestPriceOrderLineTotalFlooredAtZero(t *testing.T) {
	db := setupTestDB(t)
	tenantID := uuid.New()
	user := seedUser(t, db, tenantID)
	child := seedChild(t, db, user, "Amani")
	class := seedClass(t, db, tenantID, "30.00", 10, 0)

	require.NoError(t, db.Create(&models.Scholarship{
		ID:       uuid.New(),
		TenantID: tenantID,
		UserID:   user.ID,
		Amount:   mustDecimal(t, "50.00"),
		IsActive: true,
	}).Error)

	priced, err := PriceOrder(db, tenantID, user.ID, []PricingItem{{Child: *child, Class: *class}}, "")
	require.NoError(t, err)
	assert.True(t, priced.Lines[0].LineTotal.IsZero())
	assert.True(t, priced.Total.IsZero())
}

func TestPriceOrderClassScholarshipPreferredOverGeneral(t *testing.T) {
	db := setupTestDB(t)
	tenantID := uuid.New()
	user := seedUser(t, db, tenantID)
	child := seedChild(t, db, user, "Amani")
	class := seedClass(t, db, tenantID, "100.00", 10, 0)

	require.NoError(t, db.Create(&models.Scholarship{
		ID:       uuid.New(),
		TenantID: tenantID,
		UserID:   user.ID,
		Amount:   mustDecimal(t, "20.00"),
		IsActive: true,
	}).Error)
	require.NoError(t, db.Create(&models.Scholarship{
		ID:       uuid.New(),
		TenantID: tenantID,
		UserID:   user.ID,
		ClassID:  &class.ID,
		Amount:   mustDecimal(t, "40.00"),
		IsActive: true,
	}).Error)

	priced, err := PriceOrder(db, tenantID, user.ID, []PricingItem{{Child: *child, Class: *class}}, "")
	require.NoError(t, err)
	assert.True(t, priced.Lines[0].ScholarshipDiscount.Equal(mustDecimal(t, "40.00")))
}

func TestPriceOrderRejectsBadPromoCodes(t *testing.T) {
	db := setupTestDB(t)
	tenantID := uuid.New()
	user := seedUser(t, db, tenantID)
	child := seedChild(t, db, user, "Amani")
	class := seedClass(t, db, tenantID, "100.00", 10, 0)
	items := []PricingItem{{Child: *child, Class: *class}}

	_, err := PriceOrder(db, tenantID, user.ID, items, "NOSUCHCODE")
	assert.True(t, IsValidationError(err))

	require.NoError(t, db.Create(&models.PromoCode{
		ID:        uuid.New(),
		TenantID:  tenantID,
		Code:      "EXPIRED",
		Amount:    mustDecimal(t, "10.00"),
		ExpiresAt: time.Now().AddDate(0, 0, -1),
		IsActive:  true,
	}).Error)
	_, err = PriceOrder(db, tenantID, user.ID, items, "EXPIRED")
	assert.True(t, IsValidationError(err))

	otherClass := seedClass(t, db, tenantID, "50.00", 10, 0)
	require.NoError(t, db.Create(&models.PromoCode{
		ID:        uuid.New(),
		TenantID:  tenantID,
		Code:      "OTHERCLASS",
		Amount:    mustDecimal(t, "10.00"),
		ExpiresAt: time.Now().AddDate(0, 1, 0),
		ClassID:   &otherClass.ID,
		IsActive:  true,
	}).Error)
	_, err = PriceOrder(db, tenantID, user.ID, items, "OTHERCLASS")
	assert.True(t, IsValidationError(err))
}

func TestPriceOrderEnforcesPromoUsageLimit(t *testing.T) {
	db := setupTestDB(t)
	tenantID := uuid.New()
	user := seedUser(t, db, tenantID)
	child := seedChild(t, db, user, "Amani")
	class := seedClass(t, db, tenantID, "100.00", 10, 0)

	promo := models.PromoCode{
		ID:                  uuid.New(),
		TenantID:            tenantID,
		Code:                "ONCE",
		Amount:              mustDecimal(t, "10.00"),
		ExpiresAt:           time.Now().AddDate(0, 1, 0),
		MaxUsesPerUserClass: 1,
		IsActive:            true,
	}
	require.NoError(t, db.Create(&promo).Error)
	require.NoError(t, db.Create(&models.PromoCodeUsage{
		ID:          uuid.New(),
		TenantID:    tenantID,
		PromoCodeID: promo.ID,
		UserID:      user.ID,
		ClassID:     class.ID,
		OrderID:     uuid.New(),
	}).Error)

	_, err := PriceOrder(db, tenantID, user.ID, []PricingItem{{Child: *child, Class: *class}}, "ONCE")
	assert.True(t, IsValidationError(err))
}

func TestPriceOrderIsTenantScoped(t *testing.T) {
	db := setupTestDB(t)
	tenantID := uuid.New()
	otherTenant := uuid.New()
	user := seedUser(t, db, tenantID)
	child := seedChild(t, db, user, "Amani")
	class := seedClass(t, db, tenantID, "100.00", 10, 0)

	// A scholarship belonging to another tenant never applies.
	require.NoError(t, db.Create(&models.Scholarship{
		ID:       uuid.New(),
		TenantID: otherTenant,
		UserID:   user.ID,
		Amount:   mustDecimal(t, "25.00"),
		IsActive: true,
	}).Error)

	priced, err := PriceOrder(db, tenantID, user.ID, []PricingItem{{Child: *child, Class: *class}}, "")
	require.NoError(t, err)
	assert.True(t, priced.Lines[0].ScholarshipDiscount.IsZero())
	assert.True(t, priced.Total.Equal(mustDecimal(t, "100.00")))
}

func TestPriceOrderRejectsEmptyOrder(t *testing.T) {
	db := setupTestDB(t)
	_, err := PriceOrder(db, uuid.New(), uuid.New(), nil, "")
	assert.True(t, IsValidationError(err))
}
