package jobs

import (
	"log"
	"time"

	"github.com/mwangi-dev/kidsclass_backend/database"
	"github.com/mwangi-dev/kidsclass_backend/models"
	"github.com/mwangi-dev/kidsclass_backend/services"
)

// CompleteFinishedClasses moves active enrollments to completed once
// their class has ended.
func CompleteFinishedClasses() {
	log.Println("Running job: CompleteFinishedClasses...")

	var finished []models.Enrollment
	err := database.DB.
		Joins("JOIN classes ON classes.id = enrollments.class_id").
		Where("enrollments.status = ? AND classes.ends_at < ?", models.EnrollmentActive, time.Now()).
		Find(&finished).Error
	if err != nil {
		log.Printf("Error checking for finished classes: %v", err)
		return
	}

	if len(finished) == 0 {
		log.Println("No finished classes found.")
		return
	}

	completed := 0
	for _, enrollment := range finished {
		if err := services.CompleteEnrollment(database.DB, enrollment.TenantID, enrollment.ID); err != nil {
			log.Printf("Error completing enrollment %s: %v", enrollment.ID, err)
			continue
		}
		completed++
	}
	log.Printf("Marked %d enrollment(s) as completed.", completed)
}
