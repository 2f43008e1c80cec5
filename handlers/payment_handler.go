package handlers

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/mwangi-dev/kidsclass_backend/database"
	"github.com/mwangi-dev/kidsclass_backend/models"
	"github.com/mwangi-dev/kidsclass_backend/payments"
	"gorm.io/gorm"
)

func GetMyPayments(c *fiber.Ctx) error {
	userID, tenantID, _ := requester(c)

	var results []models.Payment
	database.DB.
		Joins("JOIN orders ON orders.id = payments.order_id").
		Where("payments.tenant_id = ? AND orders.user_id = ?", tenantID, userID).
		Order("payments.created_at DESC").
		Find(&results)

	return c.JSON(results)
}

type AddPaymentMethodRequest struct {
	ProviderMethodID string `json:"provider_method_id" validate:"required"`
	Brand            string `json:"brand" validate:"required"`
	Last4            string `json:"last4" validate:"required,len=4"`
	IsDefault        bool   `json:"is_default"`
}

// AddPaymentMethod stores a card the client already tokenized with the
// provider.
func AddPaymentMethod(c *fiber.Ctx) error {
	userID, tenantID, _ := requester(c)

	var req AddPaymentMethodRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	method := models.PaymentMethod{
		TenantID:         tenantID,
		UserID:           userID,
		ProviderMethodID: req.ProviderMethodID,
		Brand:            req.Brand,
		Last4:            req.Last4,
		IsDefault:        req.IsDefault,
	}

	err := database.DB.Transaction(func(tx *gorm.DB) error {
		if req.IsDefault {
			if err := tx.Model(&models.PaymentMethod{}).
				Where("tenant_id = ? AND user_id = ?", tenantID, userID).
				Update("is_default", false).Error; err != nil {
				return err
			}
		}
		return tx.Create(&method).Error
	})
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Failed to save payment method"})
	}

	return c.Status(fiber.StatusCreated).JSON(method)
}

func GetMyPaymentMethods(c *fiber.Ctx) error {
	userID, tenantID, _ := requester(c)

	var methods []models.PaymentMethod
	database.DB.Where("tenant_id = ? AND user_id = ?", tenantID, userID).
		Order("is_default DESC, created_at ASC").
		Find(&methods)

	return c.JSON(methods)
}

func RemovePaymentMethod(c *fiber.Ctx) error {
	userID, tenantID, _ := requester(c)
	methodID := c.Params("methodId")
	if _, err := uuid.Parse(methodID); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid payment method ID format"})
	}

	var method models.PaymentMethod
	err := database.DB.Where("id = ? AND tenant_id = ? AND user_id = ?", methodID, tenantID, userID).
		First(&method).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Payment method not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Database error"})
	}

	var inUse int64
	database.DB.Model(&models.InstallmentPlan{}).
		Where("payment_method_id = ? AND status = ?", method.ID, models.PlanActive).
		Count(&inUse)
	if inUse > 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "This card is used by an active installment plan"})
	}

	if err := payments.DetachPaymentMethod(method.ProviderMethodID); err != nil {
		log.Printf("⚠️ Failed to detach payment method %s at provider: %v", method.ProviderMethodID, err)
	}

	if err := database.DB.Delete(&method).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to remove payment method"})
	}
	return c.JSON(fiber.Map{"message": "Payment method removed"})
}
