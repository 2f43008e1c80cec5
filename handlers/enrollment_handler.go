package handlers

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/mwangi-dev/kidsclass_backend/database"
	"github.com/mwangi-dev/kidsclass_backend/models"
	"github.com/mwangi-dev/kidsclass_backend/services"
	"gorm.io/gorm"
)

func GetMyEnrollments(c *fiber.Ctx) error {
	userID, tenantID, _ := requester(c)

	var enrollments []models.Enrollment
	database.DB.Preload("Child").Preload("Class").
		Where("tenant_id = ? AND user_id = ?", tenantID, userID).
		Order("created_at DESC").
		Find(&enrollments)

	return c.JSON(enrollments)
}

func CancelEnrollment(c *fiber.Ctx) error {
	userID, tenantID, _ := requester(c)
	enrollmentID := c.Params("enrollmentId")
	if _, err := uuid.Parse(enrollmentID); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid enrollment ID format"})
	}

	var enrollment models.Enrollment
	err := database.DB.Where("id = ? AND tenant_id = ?", enrollmentID, tenantID).First(&enrollment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Enrollment not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Database error"})
	}
	if enrollment.UserID != userID {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "This is not your enrollment"})
	}

	if err := services.CancelEnrollment(database.DB, tenantID, enrollment.ID); err != nil {
		if !services.IsValidationError(err) {
			log.Printf("🔥 Failed to cancel enrollment %s: %v", enrollment.ID, err)
		}
		return serviceError(c, err)
	}

	return c.JSON(fiber.Map{"message": "Enrollment cancelled. Any eligible refund will be processed shortly."})
}

// MarkEnrollmentComplete is an admin action used at the end of a term.
func MarkEnrollmentComplete(c *fiber.Ctx) error {
	_, tenantID, _ := requester(c)
	enrollmentID, err := uuid.Parse(c.Params("enrollmentId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid enrollment ID format"})
	}

	if err := services.CompleteEnrollment(database.DB, tenantID, enrollmentID); err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Enrollment marked as completed"})
}
