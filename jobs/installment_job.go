package jobs

import (
	"log"

	"github.com/mwangi-dev/kidsclass_backend/database"
	"github.com/mwangi-dev/kidsclass_backend/services"
)

func ChargeDueInstallments() {
	log.Println("Running job: ChargeDueInstallments...")

	charged, err := services.SweepDueInstallments(database.DB)
	if err != nil {
		log.Printf("Error sweeping due installments: %v", err)
		return
	}

	if charged == 0 {
		log.Println("No due installments found.")
		return
	}
	log.Printf("Attempted %d due installment charge(s).", charged)
}
