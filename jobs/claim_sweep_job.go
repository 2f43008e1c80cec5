package jobs

import (
	"log"

	"github.com/mwangi-dev/kidsclass_backend/database"
	"github.com/mwangi-dev/kidsclass_backend/services"
)

func SweepExpiredClaims() {
	log.Println("Running job: SweepExpiredClaims...")

	expired, err := services.SweepExpiredClaims(database.DB)
	if err != nil {
		log.Printf("Error sweeping expired claim windows: %v", err)
		return
	}

	if expired == 0 {
		log.Println("No expired claim windows found.")
		return
	}
	log.Printf("Expired %d claim window(s) and promoted the next entries in line.", expired)
}
