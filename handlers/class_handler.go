package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/mwangi-dev/kidsclass_backend/database"
	"github.com/mwangi-dev/kidsclass_backend/models"
	"github.com/shopspring/decimal"
)

func tenantFromQuery(c *fiber.Ctx) (uuid.UUID, error) {
	return uuid.Parse(c.Query("tenant_id"))
}

func GetPrograms(c *fiber.Ctx) error {
	tenantID, err := tenantFromQuery(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "tenant_id query parameter is required"})
	}

	var programs []models.Program
	database.DB.Where("tenant_id = ? AND is_active = ?", tenantID, true).
		Order("name ASC").Find(&programs)
	return c.JSON(programs)
}

func GetClasses(c *fiber.Ctx) error {
	tenantID, err := tenantFromQuery(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "tenant_id query parameter is required"})
	}

	query := database.DB.Preload("Program").
		Where("tenant_id = ? AND is_active = ?", tenantID, true)
	if programID := c.Query("program_id"); programID != "" {
		query = query.Where("program_id = ?", programID)
	}

	var classes []models.Class
	query.Order("starts_at ASC").Find(&classes)
	return c.JSON(classes)
}

type CreateProgramRequest struct {
	Name        string  `json:"name" validate:"required,min=2"`
	Description *string `json:"description,omitempty"`
}

func CreateProgram(c *fiber.Ctx) error {
	_, tenantID, _ := requester(c)

	var req CreateProgramRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	program := models.Program{TenantID: tenantID, Name: req.Name, Description: req.Description, IsActive: true}
	if err := database.DB.Create(&program).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create program"})
	}
	return c.Status(fiber.StatusCreated).JSON(program)
}

type CreateClassRequest struct {
	ProgramID string `json:"program_id" validate:"required,uuid"`
	Name      string `json:"name" validate:"required,min=2"`
	UnitPrice string `json:"unit_price" validate:"required"`
	Capacity  int    `json:"capacity" validate:"required,min=1"`
	StartsAt  string `json:"starts_at" validate:"required,datetime=2006-01-02T15:04:05Z07:00"`
	EndsAt    string `json:"ends_at" validate:"required,datetime=2006-01-02T15:04:05Z07:00"`
}

func CreateClass(c *fiber.Ctx) error {
	_, tenantID, _ := requester(c)

	var req CreateClassRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	unitPrice, err := decimal.NewFromString(req.UnitPrice)
	if err != nil || unitPrice.IsNegative() {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid unit price"})
	}
	programID, _ := uuid.Parse(req.ProgramID)
	startsAt, _ := time.Parse(time.RFC3339, req.StartsAt)
	endsAt, _ := time.Parse(time.RFC3339, req.EndsAt)
	if !endsAt.After(startsAt) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Class must end after it starts"})
	}

	class := models.Class{
		TenantID:  tenantID,
		ProgramID: programID,
		Name:      req.Name,
		UnitPrice: unitPrice,
		Capacity:  req.Capacity,
		StartsAt:  startsAt,
		EndsAt:    endsAt,
		IsActive:  true,
	}
	if err := database.DB.Create(&class).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create class"})
	}
	return c.Status(fiber.StatusCreated).JSON(class)
}

type CreatePromoCodeRequest struct {
	Code                string  `json:"code" validate:"required,min=3,max=50"`
	Amount              string  `json:"amount" validate:"required"`
	ExpiresAt           string  `json:"expires_at" validate:"required,datetime=2006-01-02T15:04:05Z07:00"`
	ProgramID           *string `json:"program_id,omitempty" validate:"omitempty,uuid"`
	ClassID             *string `json:"class_id,omitempty" validate:"omitempty,uuid"`
	MaxUsesPerUserClass int     `json:"max_uses_per_user_class" validate:"min=0"`
}

func CreatePromoCode(c *fiber.Ctx) error {
	_, tenantID, _ := requester(c)

	var req CreatePromoCodeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || !amount.IsPositive() {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid discount amount"})
	}
	expiresAt, _ := time.Parse(time.RFC3339, req.ExpiresAt)

	promo := models.PromoCode{
		TenantID:            tenantID,
		Code:                req.Code,
		Amount:              amount,
		ExpiresAt:           expiresAt,
		MaxUsesPerUserClass: req.MaxUsesPerUserClass,
		IsActive:            true,
	}
	if req.ProgramID != nil {
		programID, _ := uuid.Parse(*req.ProgramID)
		promo.ProgramID = &programID
	}
	if req.ClassID != nil {
		classID, _ := uuid.Parse(*req.ClassID)
		promo.ClassID = &classID
	}

	if err := database.DB.Create(&promo).Error; err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Promo code already exists"})
	}
	return c.Status(fiber.StatusCreated).JSON(promo)
}

type CreateScholarshipRequest struct {
	UserID  string  `json:"user_id" validate:"required,uuid"`
	ClassID *string `json:"class_id,omitempty" validate:"omitempty,uuid"`
	Amount  string  `json:"amount" validate:"required"`
}

func CreateScholarship(c *fiber.Ctx) error {
	_, tenantID, _ := requester(c)

	var req CreateScholarshipRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || !amount.IsPositive() {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid scholarship amount"})
	}
	userID, _ := uuid.Parse(req.UserID)

	scholarship := models.Scholarship{
		TenantID: tenantID,
		UserID:   userID,
		Amount:   amount,
		IsActive: true,
	}
	if req.ClassID != nil {
		classID, _ := uuid.Parse(*req.ClassID)
		scholarship.ClassID = &classID
	}

	if err := database.DB.Create(&scholarship).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create scholarship"})
	}
	return c.Status(fiber.StatusCreated).JSON(scholarship)
}
