package handlers

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/mwangi-dev/kidsclass_backend/database"
	"github.com/mwangi-dev/kidsclass_backend/models"
	"github.com/mwangi-dev/kidsclass_backend/services"
)

type JoinWaitlistRequest struct {
	ChildID         string  `json:"child_id" validate:"required,uuid"`
	ClassID         string  `json:"class_id" validate:"required,uuid"`
	Tier            string  `json:"tier" validate:"required,oneof=priority regular"`
	PaymentMethodID *string `json:"payment_method_id,omitempty" validate:"omitempty,uuid"`
}

func JoinWaitlist(c *fiber.Ctx) error {
	userID, tenantID, _ := requester(c)

	var req JoinWaitlistRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	childID, _ := uuid.Parse(req.ChildID)
	classID, _ := uuid.Parse(req.ClassID)
	var methodID *uuid.UUID
	if req.PaymentMethodID != nil {
		parsed, _ := uuid.Parse(*req.PaymentMethodID)
		methodID = &parsed
	}

	entry, err := services.JoinWaitlist(database.DB, tenantID, userID, childID, classID,
		models.WaitlistTier(req.Tier), methodID)
	if err != nil {
		return serviceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":  "Added to the waitlist. We will notify you when a spot opens up.",
		"waitlist": entry,
	})
}

type ClaimSeatRequest struct {
	PaymentMethodID string `json:"payment_method_id" validate:"required,uuid"`
}

func ClaimSeat(c *fiber.Ctx) error {
	userID, tenantID, _ := requester(c)
	enrollmentID, err := uuid.Parse(c.Params("enrollmentId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid enrollment ID format"})
	}

	var req ClaimSeatRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	methodID, _ := uuid.Parse(req.PaymentMethodID)

	enrollment, err := services.ClaimSeat(database.DB, tenantID, enrollmentID, userID, methodID)
	if err != nil {
		if !services.IsValidationError(err) {
			log.Printf("⚠️ Claim failed for enrollment %s: %v", enrollmentID, err)
		}
		return serviceError(c, err)
	}

	return c.JSON(fiber.Map{
		"message":    "Seat claimed! Your enrollment is now active.",
		"enrollment": enrollment,
	})
}

func WithdrawFromWaitlist(c *fiber.Ctx) error {
	userID, tenantID, _ := requester(c)
	enrollmentID, err := uuid.Parse(c.Params("enrollmentId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid enrollment ID format"})
	}

	if err := services.WithdrawFromWaitlist(database.DB, tenantID, enrollmentID, userID); err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Removed from the waitlist."})
}

func GetMyWaitlistEntries(c *fiber.Ctx) error {
	userID, tenantID, _ := requester(c)

	var entries []models.Enrollment
	database.DB.Preload("Child").Preload("Class").
		Where("tenant_id = ? AND user_id = ? AND status = ?", tenantID, userID, models.EnrollmentWaitlisted).
		Order("created_at ASC").
		Find(&entries)

	return c.JSON(entries)
}
