package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/example/sooq/internal/database"
	"github.com/example/sooq/internal/models"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, database.Migrate(conn))
	return conn
}

func createTestUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()

	user := models.User{
		FirstName: "Test",
		LastName:  "User",
		Email:     uuid.NewString() + "@example.com",
		Role:      models.RoleCustomer,
	}
	require.NoError(t, db.Create(&user).Error)
	return &user
}

type productOpts struct {
	colors      []string
	sizes       []string
	weightClass string
}

func createTestProduct(t *testing.T, db *gorm.DB, name string, price float64, stock int, opts productOpts) *models.Product {
	t.Helper()

	weightClass := opts.weightClass
	if weightClass == "" {
		weightClass = models.WeightStandard
	}

	product := models.Product{
		Name:        name,
		Slug:        name + "-" + uuid.NewString()[:8],
		SKU:         "SKU-" + uuid.NewString()[:8],
		Price:       price,
		Stock:       stock,
		Colors:      opts.colors,
		Sizes:       opts.sizes,
		WeightClass: weightClass,
	}
	require.NoError(t, db.Create(&product).Error)
	return &product
}

func testAddress() models.ShippingAddress {
	return models.ShippingAddress{
		FirstName:  "Test",
		LastName:   "User",
		Phone:      "+966500000000",
		Email:      "test@example.com",
		Country:    "SA",
		City:       "Riyadh",
		Address:    "123 King Fahd Road",
		PostalCode: "11564",
	}
}

// fakeGateway is an in-memory PaymentGateway whose charge statuses are
// scripted by tests.
type fakeGateway struct {
	mu sync.Mutex

	createStatus   string
	transactionURL string
	createErr      error
	refundErr      error

	payments    map[string]*GatewayPayment
	createCalls int
	refundCalls int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		createStatus: PaymentStatusInitiated,
		payments:     map[string]*GatewayPayment{},
	}
}

func (f *fakeGateway) CreateCharge(ctx context.Context, req CreateChargeRequest, idempotencyKey string) (*GatewayPayment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.createCalls++
	if f.createErr != nil {
		return nil, f.createErr
	}

	payment := &GatewayPayment{
		ID:       "pay_" + uuid.NewString()[:8],
		Status:   f.createStatus,
		Amount:   req.Amount,
		Currency: req.Currency,
		Metadata: req.Metadata,
	}
	payment.Source.Type = req.Source.Type
	payment.Source.TransactionURL = f.transactionURL
	f.payments[payment.ID] = payment
	return payment, nil
}

func (f *fakeGateway) GetCharge(ctx context.Context, id string) (*GatewayPayment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	payment, ok := f.payments[id]
	if !ok {
		return nil, fmt.Errorf("payment %s not found", id)
	}
	copied := *payment
	return &copied, nil
}

func (f *fakeGateway) Refund(ctx context.Context, id string) (*GatewayPayment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.refundCalls++
	if f.refundErr != nil {
		return nil, f.refundErr
	}

	payment, ok := f.payments[id]
	if !ok {
		return nil, fmt.Errorf("payment %s not found", id)
	}
	payment.Status = PaymentStatusRefunded
	copied := *payment
	return &copied, nil
}

// setStatus scripts the authoritative status GetCharge will report.
func (f *fakeGateway) setStatus(id, status string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if payment, ok := f.payments[id]; ok {
		payment.Status = status
	}
}

// fakeCourier is an in-memory Courier recording dispatches. onCreate,
// when set, runs inside CreateOrder before it returns.
type fakeCourier struct {
	mu sync.Mutex

	err      error
	calls    int
	lastReq  CourierOrderRequest
	onCreate func()

	productCalls int
	lastProduct  CourierProductRequest
}

func (f *fakeCourier) CreateOrder(ctx context.Context, req CourierOrderRequest) (*CourierOrderResult, error) {
	f.mu.Lock()
	f.calls++
	f.lastReq = req
	err := f.err
	hook := f.onCreate
	calls := f.calls
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	if err != nil {
		return nil, err
	}
	return &CourierOrderResult{
		OTOOrderID:     fmt.Sprintf("oto-%d", calls),
		TrackingNumber: "TRK-" + uuid.NewString()[:8],
		TrackingURL:    "https://track.example.com/" + req.OrderID,
	}, nil
}

func (f *fakeCourier) CreateProduct(ctx context.Context, req CourierProductRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.productCalls++
	f.lastProduct = req
	return fmt.Sprintf("oto-product-%d", f.productCalls), nil
}

func (f *fakeCourier) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeCourier) productCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.productCalls
}

// testEnv wires every service against one database with fakes for the
// external providers.
type testEnv struct {
	db        *gorm.DB
	gateway   *fakeGateway
	courier   *fakeCourier
	carts     *CartService
	promos    *PromoService
	shipments *ShipmentService
	orders    *OrderService
	payments  *PaymentService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := openTestDB(t)
	gateway := newFakeGateway()
	courier := &fakeCourier{}
	logger := zerolog.Nop()

	carts := NewCartService(db, 7*24*time.Hour)
	promos := NewPromoService(db)
	shipments := NewShipmentService(db, courier, logger, "pickup-1", "delivery-1", 72*time.Hour, 0.15)
	orders := NewOrderService(db, promos, shipments, logger, 0.15, "ORD")
	payments := NewPaymentService(db, gateway, orders, shipments, logger, "https://shop.example.com/callback", "https://shop.example.com/webhook")

	return &testEnv{
		db:        db,
		gateway:   gateway,
		courier:   courier,
		carts:     carts,
		promos:    promos,
		shipments: shipments,
		orders:    orders,
		payments:  payments,
	}
}
