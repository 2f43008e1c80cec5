package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/mwangi-dev/kidsclass_backend/payments"
	"github.com/mwangi-dev/kidsclass_backend/services"
)

// serviceError maps the core error taxonomy onto HTTP responses.
// Validation and capacity/claim errors are actionable for the caller;
// anything else stays a generic 500.
func serviceError(c *fiber.Ctx, err error) error {
	switch {
	case services.IsValidationError(err):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrCapacityExceeded):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "This class is full. You can join the waitlist instead."})
	case errors.Is(err, services.ErrClaimWindowExpired):
		return c.Status(fiber.StatusGone).JSON(fiber.Map{"error": "Your claim window has expired. Please rejoin the waitlist."})
	case errors.Is(err, payments.ErrCardDeclined):
		return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{"error": "Your card was declined. Please try another payment method."})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Something went wrong, please try again."})
	}
}
