package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/mwangi-dev/kidsclass_backend/handlers"
	"github.com/mwangi-dev/kidsclass_backend/middleware"
)

func AdminRoutes(app *fiber.App) {
	api := app.Group("/api/v1")

	admin := api.Group("/admin", middleware.Protected(), middleware.AdminRequired())
	admin.Post("/programs", handlers.CreateProgram)
	admin.Post("/classes", handlers.CreateClass)
	admin.Post("/promo-codes", handlers.CreatePromoCode)
	admin.Post("/scholarships", handlers.CreateScholarship)
	admin.Post("/enrollments/:enrollmentId/complete", handlers.MarkEnrollmentComplete)
}
