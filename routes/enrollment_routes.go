package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/mwangi-dev/kidsclass_backend/handlers"
	"github.com/mwangi-dev/kidsclass_backend/middleware"
)

func EnrollmentRoutes(app *fiber.App) {
	api := app.Group("/api/v1")

	enrollments := api.Group("/enrollments", middleware.Protected())
	enrollments.Get("/me", handlers.GetMyEnrollments)
	enrollments.Post("/:enrollmentId/cancel", handlers.CancelEnrollment)

	waitlist := api.Group("/waitlist", middleware.Protected())
	waitlist.Get("/me", handlers.GetMyWaitlistEntries)
	waitlist.Post("", handlers.JoinWaitlist)
	waitlist.Post("/:enrollmentId/claim", handlers.ClaimSeat)
	waitlist.Post("/:enrollmentId/withdraw", handlers.WithdrawFromWaitlist)
}
