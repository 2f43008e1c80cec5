package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/mwangi-dev/kidsclass_backend/handlers"
	"github.com/mwangi-dev/kidsclass_backend/middleware"
)

func PaymentRoutes(app *fiber.App) {
	api := app.Group("/api/v1")

	// Signed by the provider, not by a user token.
	api.Post("/webhooks/provider", handlers.HandleProviderWebhook)

	payments := api.Group("/payments", middleware.Protected())
	payments.Get("/me", handlers.GetMyPayments)

	methods := api.Group("/payment-methods", middleware.Protected())
	methods.Get("/me", handlers.GetMyPaymentMethods)
	methods.Post("", handlers.AddPaymentMethod)
	methods.Delete("/:methodId", handlers.RemovePaymentMethod)

	plans := api.Group("/installment-plans", middleware.Protected())
	plans.Get("/me", handlers.GetMyInstallmentPlans)
	plans.Post("", handlers.CreateInstallmentPlan)
	plans.Post("/:planId/cancel", handlers.CancelInstallmentPlan)
}
