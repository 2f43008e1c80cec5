package database

import (
	"fmt"
	"log"

	"github.com/google/uuid"
	config "github.com/mwangi-dev/kidsclass_backend/configs"
	"github.com/mwangi-dev/kidsclass_backend/models"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var DB *gorm.DB

func ConnectDB() {
	var err error
	dsn := config.Config("DATABASE_URL")

	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
		PrepareStmt:                              false,
		SkipDefaultTransaction:                   true,
		DisableForeignKeyConstraintWhenMigrating: true,
		DisableNestedTransaction:                 true,
	})
	if err != nil {
		log.Fatalf("🔥 Failed to connect to database: %v", err)
	}

	fmt.Println("✅ Database connected successfully")
}

func Migrate() {
	err := DB.AutoMigrate(
		&models.User{},
		&models.Child{},
		&models.Program{},
		&models.Class{},
		&models.Enrollment{},
		&models.Order{},
		&models.OrderLineItem{},
		&models.Payment{},
		&models.InstallmentPlan{},
		&models.InstallmentPayment{},
		&models.Scholarship{},
		&models.PromoCode{},
		&models.PromoCodeUsage{},
		&models.PaymentMethod{},
		&models.WebhookEvent{},
	)
	if err != nil {
		log.Fatalf("🔥 Failed to migrate database: %v", err)
	}
	fmt.Println("✅ Database migration successful")
}

func SeedAdmin() {
	adminEmail := config.Config("ADMIN_EMAIL")
	adminPassword := config.Config("ADMIN_PASSWORD")
	if adminEmail == "" || adminPassword == "" {
		log.Println("⚠️ Admin credentials not configured, skipping admin seed.")
		return
	}

	tenantID, err := uuid.Parse(config.Config("ADMIN_TENANT_ID"))
	if err != nil {
		log.Println("⚠️ ADMIN_TENANT_ID missing or invalid, skipping admin seed.")
		return
	}

	var count int64
	err = DB.Model(&models.User{}).Where("email = ?", adminEmail).Count(&count).Error
	if err != nil {
		log.Fatalf("🔥 Failed to check for admin user: %v", err)
		return
	}

	if count > 0 {
		log.Println("Admin user already exists.")
		return
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("🔥 Failed to hash admin password: %v", err)
		return
	}

	adminUser := models.User{
		TenantID: tenantID,
		FullName: config.Config("ADMIN_FULL_NAME"),
		Email:    adminEmail,
		Password: string(hashedPassword),
		Role:     "admin",
	}

	if err := DB.Create(&adminUser).Error; err != nil {
		log.Fatalf("🔥 Failed to seed admin user: %v", err)
		return
	}

	log.Println("✅ Admin user seeded successfully")
}
