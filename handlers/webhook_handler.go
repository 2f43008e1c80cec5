package handlers

import (
	"encoding/json"
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/mwangi-dev/kidsclass_backend/database"
	"github.com/mwangi-dev/kidsclass_backend/payments"
	"github.com/mwangi-dev/kidsclass_backend/services"
)

// HandleProviderWebhook verifies the provider signature, decodes the
// event and hands it to the reconciler. A non-2xx response makes the
// provider redeliver, so unrecognized events are rejected rather than
// acknowledged.
func HandleProviderWebhook(c *fiber.Ctx) error {
	body := c.Body()
	signature := c.Get("X-Provider-Signature")

	if !payments.VerifyWebhookSignature(body, signature) {
		log.Println("⚠️ Rejected webhook with invalid signature")
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid signature"})
	}

	var event services.ProviderEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse webhook payload"})
	}

	tenantID, err := uuid.Parse(event.Data.TenantID)
	if err != nil {
		log.Printf("⚠️ Webhook event %s missing tenant scope", event.ID)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Missing tenant scope"})
	}

	if err := services.ProcessEvent(database.DB, tenantID, &event); err != nil {
		if errors.Is(err, services.ErrUnrecognizedEvent) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Unrecognized event"})
		}
		log.Printf("🔥 CRITICAL: Error processing provider event %s (%s): %v", event.ID, event.Type, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to process event"})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"message": "Event processed"})
}
