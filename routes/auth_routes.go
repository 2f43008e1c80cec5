package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/mwangi-dev/kidsclass_backend/handlers"
	"github.com/mwangi-dev/kidsclass_backend/middleware"
)

func AuthRoutes(app *fiber.App) {
	api := app.Group("/api/v1")

	auth := api.Group("/auth")
	auth.Post("/register", handlers.Register)
	auth.Post("/login", handlers.Login)

	children := api.Group("/children", middleware.Protected())
	children.Get("/me", handlers.GetMyChildren)
	children.Post("", handlers.AddChild)
}
