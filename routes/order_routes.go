package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/mwangi-dev/kidsclass_backend/handlers"
	"github.com/mwangi-dev/kidsclass_backend/middleware"
)

func OrderRoutes(app *fiber.App) {
	api := app.Group("/api/v1")

	orders := api.Group("/orders", middleware.Protected())
	orders.Get("/me", handlers.GetMyOrders)
	orders.Get("/:orderId", handlers.GetOrder)
	orders.Post("", handlers.CreateOrder)
}
