package services

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/mwangi-dev/kidsclass_backend/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestDB opens an in-memory sqlite database with a single
// connection, so concurrent transactions serialize instead of failing
// with a busy error.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Child{},
		&models.Program{},
		&models.Class{},
		&models.Enrollment{},
		&models.Order{},
		&models.OrderLineItem{},
		&models.Payment{},
		&models.PaymentMethod{},
		&models.InstallmentPlan{},
		&models.InstallmentPayment{},
		&models.Scholarship{},
		&models.PromoCode{},
		&models.PromoCodeUsage{},
		&models.WebhookEvent{},
	))
	return db
}

func freezeTime(t *testing.T, at time.Time) {
	t.Helper()
	nowFunc = func() time.Time { return at }
	t.Cleanup(func() { nowFunc = time.Now })
}

func seedUser(t *testing.T, db *gorm.DB, tenantID uuid.UUID) *models.User {
	t.Helper()
	user := models.User{
		ID:       uuid.New(),
		TenantID: tenantID,
		FullName: "Jane Wanjiru",
		Email:    uuid.New().String() + "@example.com",
		Password: "hashed",
		Role:     "parent",
		IsActive: true,
	}
	require.NoError(t, db.Create(&user).Error)
	return &user
}

func seedChild(t *testing.T, db *gorm.DB, user *models.User, name string) *models.Child {
	t.Helper()
	child := models.Child{
		ID:       uuid.New(),
		TenantID: user.TenantID,
		UserID:   user.ID,
		FullName: name,
	}
	require.NoError(t, db.Create(&child).Error)
	return &child
}

func seedClass(t *testing.T, db *gorm.DB, tenantID uuid.UUID, price string, capacity, seatsTaken int) *models.Class {
	t.Helper()
	program := models.Program{
		ID:       uuid.New(),
		TenantID: tenantID,
		Name:     "STEM",
		IsActive: true,
	}
	require.NoError(t, db.Create(&program).Error)

	class := models.Class{
		ID:         uuid.New(),
		TenantID:   tenantID,
		ProgramID:  program.ID,
		Name:       "Robotics 101",
		UnitPrice:  mustDecimal(t, price),
		Currency:   "USD",
		Capacity:   capacity,
		SeatsTaken: seatsTaken,
		StartsAt:   time.Now().AddDate(0, 1, 0),
		EndsAt:     time.Now().AddDate(0, 4, 0),
		IsActive:   true,
	}
	require.NoError(t, db.Create(&class).Error)
	return &class
}

func seedPaymentMethod(t *testing.T, db *gorm.DB, user *models.User) *models.PaymentMethod {
	t.Helper()
	method := models.PaymentMethod{
		ID:               uuid.New(),
		TenantID:         user.TenantID,
		UserID:           user.ID,
		ProviderMethodID: "pm_" + uuid.New().String(),
		Brand:            "visa",
		Last4:            "4242",
	}
	require.NoError(t, db.Create(&method).Error)
	return &method
}

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

// fakeProvider stands in for the payment provider API.
type fakeProvider struct {
	mu sync.Mutex

	// Provider method IDs whose charges are declined.
	declineMethods map[string]bool

	charges       int
	refunds       int
	subscriptions int
	cancelledSubs []string
}

func (p *fakeProvider) chargeCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.charges
}

func (p *fakeProvider) refundCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.refunds
}

func (p *fakeProvider) decline(providerMethodID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.declineMethods == nil {
		p.declineMethods = map[string]bool{}
	}
	p.declineMethods[providerMethodID] = true
}

func startFakeProvider(t *testing.T) *fakeProvider {
	t.Helper()
	provider := &fakeProvider{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		if r.Body != nil {
			json.NewDecoder(r.Body).Decode(&body)
		}
		w.Header().Set("Content-Type", "application/json")

		switch {
		case r.Method == "POST" && r.URL.Path == "/v1/customers":
			json.NewEncoder(w).Encode(map[string]string{"id": "cus_test", "email": "test@example.com"})
		case r.Method == "POST" && r.URL.Path == "/v1/checkout/sessions":
			json.NewEncoder(w).Encode(map[string]string{"id": "cs_" + uuid.New().String(), "url": "https://provider.test/checkout"})
		case r.Method == "POST" && r.URL.Path == "/v1/charges":
			provider.mu.Lock()
			declined := provider.declineMethods[body["payment_method"].(string)]
			if !declined {
				provider.charges++
			}
			provider.mu.Unlock()
			if declined {
				w.WriteHeader(http.StatusPaymentRequired)
				json.NewEncoder(w).Encode(map[string]interface{}{
					"error": map[string]string{"code": "card_declined", "message": "card declined"},
				})
				return
			}
			json.NewEncoder(w).Encode(map[string]string{"id": "ch_" + uuid.New().String(), "status": "succeeded"})
		case r.Method == "POST" && r.URL.Path == "/v1/subscriptions":
			provider.mu.Lock()
			provider.subscriptions++
			provider.mu.Unlock()
			json.NewEncoder(w).Encode(map[string]string{"id": "sub_" + uuid.New().String(), "status": "active"})
		case r.Method == "DELETE":
			provider.mu.Lock()
			provider.cancelledSubs = append(provider.cancelledSubs, r.URL.Path)
			provider.mu.Unlock()
			json.NewEncoder(w).Encode(map[string]string{})
		case r.Method == "POST" && r.URL.Path == "/v1/refunds":
			provider.mu.Lock()
			provider.refunds++
			provider.mu.Unlock()
			json.NewEncoder(w).Encode(map[string]string{"id": "re_" + uuid.New().String(), "status": "succeeded"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(server.Close)

	t.Setenv("PROVIDER_API_BASE_URL", server.URL)
	t.Setenv("PROVIDER_SECRET_KEY", "sk_test")
	return provider
}
