package handlers

import (
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/mwangi-dev/kidsclass_backend/database"
	"github.com/mwangi-dev/kidsclass_backend/models"
	"github.com/mwangi-dev/kidsclass_backend/services"
)

type CreatePlanRequest struct {
	OrderID         string `json:"order_id" validate:"required,uuid"`
	NumInstallments int    `json:"num_installments" validate:"required,min=2,max=12"`
	Frequency       string `json:"frequency" validate:"required,oneof=weekly biweekly monthly"`
	StartDate       string `json:"start_date" validate:"required,datetime=2006-01-02"`
	PaymentMethodID string `json:"payment_method_id" validate:"required,uuid"`
}

func CreateInstallmentPlan(c *fiber.Ctx) error {
	userID, tenantID, _ := requester(c)

	var req CreatePlanRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	orderID, _ := uuid.Parse(req.OrderID)
	methodID, _ := uuid.Parse(req.PaymentMethodID)
	startDate, _ := time.Parse("2006-01-02", req.StartDate)

	plan, err := services.CreatePlan(database.DB, tenantID, orderID, userID,
		req.NumInstallments, models.InstallmentFrequency(req.Frequency), startDate, methodID)
	if err != nil {
		if !services.IsValidationError(err) {
			log.Printf("🔥 Failed to create installment plan for order %s: %v", orderID, err)
		}
		return serviceError(c, err)
	}

	var withSchedule models.InstallmentPlan
	database.DB.Preload("Installments").First(&withSchedule, "id = ?", plan.ID)

	return c.Status(fiber.StatusCreated).JSON(withSchedule)
}

func CancelInstallmentPlan(c *fiber.Ctx) error {
	userID, tenantID, _ := requester(c)
	planID, err := uuid.Parse(c.Params("planId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid plan ID format"})
	}

	if err := services.CancelPlan(database.DB, tenantID, planID, userID); err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Installment plan cancelled. Remaining installments will not be charged."})
}

func GetMyInstallmentPlans(c *fiber.Ctx) error {
	userID, tenantID, _ := requester(c)

	var plans []models.InstallmentPlan
	database.DB.Preload("Installments").
		Where("tenant_id = ? AND user_id = ?", tenantID, userID).
		Order("created_at DESC").
		Find(&plans)

	return c.JSON(plans)
}
