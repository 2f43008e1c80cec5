package handlers

import (
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	config "github.com/mwangi-dev/kidsclass_backend/configs"
	"github.com/mwangi-dev/kidsclass_backend/database"
	"github.com/mwangi-dev/kidsclass_backend/models"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var validate = validator.New()

// requester pulls the authenticated identity out of the JWT. Every
// service call downstream receives the tenant key explicitly.
func requester(c *fiber.Ctx) (userID, tenantID uuid.UUID, role string) {
	token := c.Locals("user").(*jwt.Token)
	claims := token.Claims.(jwt.MapClaims)
	userID, _ = uuid.Parse(claims["user_id"].(string))
	tenantID, _ = uuid.Parse(claims["tenant_id"].(string))
	role, _ = claims["role"].(string)
	return userID, tenantID, role
}

type RegisterRequest struct {
	FullName string `json:"full_name" validate:"required,min=2"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	TenantID string `json:"tenant_id" validate:"required,uuid"`
}

func Register(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	tenantID, _ := uuid.Parse(req.TenantID)

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to hash password"})
	}

	user := models.User{
		TenantID: tenantID,
		FullName: req.FullName,
		Email:    req.Email,
		Password: string(hashedPassword),
		Role:     "parent",
	}
	if err := database.DB.Create(&user).Error; err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Email already registered"})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": "Account created successfully", "user": user})
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	var user models.User
	if err := database.DB.Where("email = ?", req.Email).First(&user).Error; err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid email or password"})
	}
	if !user.IsActive {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Account is deactivated"})
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid email or password"})
	}

	claims := jwt.MapClaims{
		"user_id":   user.ID.String(),
		"tenant_id": user.TenantID.String(),
		"role":      user.Role,
		"exp":       time.Now().Add(72 * time.Hour).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(config.Config("JWT_SECRET")))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to sign token"})
	}

	return c.JSON(fiber.Map{"token": signed, "user": user})
}

type AddChildRequest struct {
	FullName  string  `json:"full_name" validate:"required,min=2"`
	BirthDate *string `json:"birth_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Notes     *string `json:"notes,omitempty"`
}

func AddChild(c *fiber.Ctx) error {
	userID, tenantID, _ := requester(c)

	var req AddChildRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	child := models.Child{
		TenantID: tenantID,
		UserID:   userID,
		FullName: req.FullName,
		Notes:    req.Notes,
	}
	if req.BirthDate != nil {
		birthDate, _ := time.Parse("2006-01-02", *req.BirthDate)
		child.BirthDate = &birthDate
	}

	if err := database.DB.Create(&child).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to add child"})
	}
	return c.Status(fiber.StatusCreated).JSON(child)
}

func GetMyChildren(c *fiber.Ctx) error {
	userID, tenantID, _ := requester(c)

	var children []models.Child
	err := database.DB.Where("tenant_id = ? AND user_id = ?", tenantID, userID).
		Order("created_at ASC").Find(&children).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Database error"})
	}
	return c.JSON(children)
}
