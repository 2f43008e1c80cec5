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

type OrderItemPayload struct {
	ChildID string `json:"child_id" validate:"required,uuid"`
	ClassID string `json:"class_id" validate:"required,uuid"`
}

type CreateOrderRequest struct {
	Items     []OrderItemPayload `json:"items" validate:"required,min=1,dive"`
	PromoCode string             `json:"promo_code,omitempty"`
}

func CreateOrder(c *fiber.Ctx) error {
	userID, tenantID, _ := requester(c)

	var req CreateOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	items := make([]services.OrderItemRequest, 0, len(req.Items))
	for _, item := range req.Items {
		childID, _ := uuid.Parse(item.ChildID)
		classID, _ := uuid.Parse(item.ClassID)
		items = append(items, services.OrderItemRequest{ChildID: childID, ClassID: classID})
	}

	placed, err := services.PlaceOrder(database.DB, tenantID, userID, items, req.PromoCode)
	if err != nil {
		if !services.IsValidationError(err) {
			log.Printf("🔥 Failed to place order for user %s: %v", userID, err)
		}
		return serviceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"order":        placed.Order,
		"enrollments":  placed.Enrollments,
		"checkout_url": placed.CheckoutURL,
	})
}

func GetMyOrders(c *fiber.Ctx) error {
	userID, tenantID, _ := requester(c)

	var orders []models.Order
	database.DB.Preload("LineItems").
		Where("tenant_id = ? AND user_id = ?", tenantID, userID).
		Order("created_at DESC").
		Find(&orders)

	return c.JSON(orders)
}

func GetOrder(c *fiber.Ctx) error {
	userID, tenantID, _ := requester(c)
	orderID := c.Params("orderId")
	if _, err := uuid.Parse(orderID); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid order ID format"})
	}

	var order models.Order
	err := database.DB.Preload("LineItems.Enrollment").
		Where("id = ? AND tenant_id = ? AND user_id = ?", orderID, tenantID, userID).
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Order not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Database error"})
	}

	return c.JSON(order)
}
