package services

import (
	"errors"

	"github.com/google/uuid"
	"github.com/mwangi-dev/kidsclass_backend/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Sibling discount tiers, applied against the original unit price:
// one other child in the order earns 10%, two or more earn 15%.
var (
	siblingRateOneOther = decimal.NewFromFloat(0.10)
	siblingRateTwoPlus  = decimal.NewFromFloat(0.15)
)

type PricingItem struct {
	Child models.Child
	Class models.Class
}

type PricedLine struct {
	ChildID             uuid.UUID
	ClassID             uuid.UUID
	UnitPrice           decimal.Decimal
	SiblingDiscount     decimal.Decimal
	ScholarshipDiscount decimal.Decimal
	PromoDiscount       decimal.Decimal
	LineTotal           decimal.Decimal
}

type PricedOrder struct {
	Lines         []PricedLine
	Subtotal      decimal.Decimal
	DiscountTotal decimal.Decimal
	Total         decimal.Decimal
	PromoCode     *models.PromoCode
}

// PriceOrder computes the price of every (child, class) pair in an
// order. The three discount sources are each evaluated against the
// original unit price (not compounded) and summed; the line total is
// floored at zero. Reads scholarship and promo records, writes nothing.
func PriceOrder(db *gorm.DB, tenantID, userID uuid.UUID, items []PricingItem, promoCode string) (*PricedOrder, error) {
	if len(items) == 0 {
		return nil, NewValidationError("order must contain at least one enrollment")
	}

	var promo *models.PromoCode
	if promoCode != "" {
		var err error
		promo, err = lookupPromoCode(db, tenantID, userID, promoCode, items)
		if err != nil {
			return nil, err
		}
	}

	distinctChildren := map[uuid.UUID]bool{}
	for _, item := range items {
		distinctChildren[item.Child.ID] = true
	}
	otherChildren := len(distinctChildren) - 1

	priced := &PricedOrder{
		Subtotal:      decimal.Zero,
		DiscountTotal: decimal.Zero,
		Total:         decimal.Zero,
		PromoCode:     promo,
	}

	for _, item := range items {
		unit := item.Class.UnitPrice

		sibling := siblingDiscount(unit, otherChildren)

		scholarship, err := scholarshipDiscount(db, tenantID, userID, item.Class.ID)
		if err != nil {
			return nil, err
		}

		promoDiscount := decimal.Zero
		if promo != nil && promoApplies(promo, &item.Class) {
			promoDiscount = promo.Amount
		}

		lineTotal := unit.Sub(sibling).Sub(scholarship).Sub(promoDiscount)
		if lineTotal.IsNegative() {
			lineTotal = decimal.Zero
		}

		priced.Lines = append(priced.Lines, PricedLine{
			ChildID:             item.Child.ID,
			ClassID:             item.Class.ID,
			UnitPrice:           unit,
			SiblingDiscount:     sibling,
			ScholarshipDiscount: scholarship,
			PromoDiscount:       promoDiscount,
			LineTotal:           lineTotal,
		})

		priced.Subtotal = priced.Subtotal.Add(unit)
		priced.Total = priced.Total.Add(lineTotal)
	}

	priced.DiscountTotal = priced.Subtotal.Sub(priced.Total)
	return priced, nil
}

func siblingDiscount(unit decimal.Decimal, otherChildren int) decimal.Decimal {
	switch {
	case otherChildren <= 0:
		return decimal.Zero
	case otherChildren == 1:
		return unit.Mul(siblingRateOneOther).Round(2)
	default:
		return unit.Mul(siblingRateTwoPlus).Round(2)
	}
}

// scholarshipDiscount prefers a class-specific award over an
// any-class one.
func scholarshipDiscount(db *gorm.DB, tenantID, userID, classID uuid.UUID) (decimal.Decimal, error) {
	var scholarship models.Scholarship
	err := db.
		Where("tenant_id = ? AND user_id = ? AND is_active = ? AND (class_id = ? OR class_id IS NULL)",
			tenantID, userID, true, classID).
		Order("class_id DESC NULLS LAST").
		First(&scholarship).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return decimal.Zero, nil
		}
		return decimal.Zero, err
	}
	return scholarship.Amount, nil
}

func lookupPromoCode(db *gorm.DB, tenantID, userID uuid.UUID, code string, items []PricingItem) (*models.PromoCode, error) {
	var promo models.PromoCode
	err := db.Where("tenant_id = ? AND code = ? AND is_active = ?", tenantID, code, true).First(&promo).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewValidationError("unknown promo code: %s", code)
		}
		return nil, err
	}

	if promo.Expired(nowFunc()) {
		return nil, NewValidationError("promo code %s has expired", code)
	}

	inScope := false
	for _, item := range items {
		if promoApplies(&promo, &item.Class) {
			inScope = true
			break
		}
	}
	if !inScope {
		return nil, NewValidationError("promo code %s does not apply to any class in this order", code)
	}

	if promo.MaxUsesPerUserClass > 0 {
		for _, item := range items {
			if !promoApplies(&promo, &item.Class) {
				continue
			}
			var used int64
			err := db.Model(&models.PromoCodeUsage{}).
				Where("tenant_id = ? AND promo_code_id = ? AND user_id = ? AND class_id = ?",
					tenantID, promo.ID, userID, item.Class.ID).
				Count(&used).Error
			if err != nil {
				return nil, err
			}
			if used >= int64(promo.MaxUsesPerUserClass) {
				return nil, NewValidationError("promo code %s already used for this class", code)
			}
		}
	}

	return &promo, nil
}

func promoApplies(promo *models.PromoCode, class *models.Class) bool {
	if promo.ClassID != nil {
		return *promo.ClassID == class.ID
	}
	if promo.ProgramID != nil {
		return *promo.ProgramID == class.ProgramID
	}
	return true
}
