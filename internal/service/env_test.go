package service

import (
	"context"
	"testing"
	"time"

	"github.com/haloapotek/apotek-api/internal/models"
	"github.com/haloapotek/apotek-api/internal/repository"
)

// testEnv wires the services over the in-memory store with a movable
// clock and one seeded user per role.
type testEnv struct {
	store *repository.Store
	svc   *Services
	clock time.Time

	buyer      models.Actor
	cashier    models.Actor
	pharmacist models.Actor
	driver     models.Actor
	admin      models.Actor
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		store: repository.NewMemory(),
		clock: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
	}
	env.svc = New(env.store).WithClock(func() time.Time { return env.clock })

	env.buyer = env.seedUser(t, "Budi", "budi@example.com", models.RoleBuyer)
	env.cashier = env.seedUser(t, "Citra", "citra@example.com", models.RoleCashier)
	env.pharmacist = env.seedUser(t, "Farah", "farah@example.com", models.RolePharmacist)
	env.driver = env.seedUser(t, "Dodi", "dodi@example.com", models.RoleDriver)
	env.admin = env.seedUser(t, "Agus", "agus@example.com", models.RoleAdmin)
	return env
}

// advance moves the clock forward.
func (e *testEnv) advance(d time.Duration) {
	e.clock = e.clock.Add(d)
}

func (e *testEnv) seedUser(t *testing.T, name, email string, role models.Role) models.Actor {
	t.Helper()
	u := &models.User{
		Name:         name,
		Email:        email,
		PasswordHash: "x",
		Role:         role,
		IsActive:     true,
		CreatedAt:    e.clock,
		UpdatedAt:    e.clock,
	}
	if role == models.RoleDriver {
		license, vehicle := "SIM-123", "B 1234 XY"
		u.DriverLicense = &license
		u.VehicleNumber = &vehicle
	}
	if err := e.store.Users.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("seed user %s: %v", email, err)
	}
	return models.Actor{ID: u.ID, Role: role}
}

func (e *testEnv) seedProduct(t *testing.T, name string, price float64, stock int, requiresRx bool) *models.Product {
	t.Helper()
	p := &models.Product{
		Name:                 name,
		Slug:                 name,
		Price:                price,
		Stock:                stock,
		Category:             "obat",
		Type:                 "obat_bebas",
		RequiresPrescription: requiresRx,
		IsActive:             true,
		CreatedAt:            e.clock,
		UpdatedAt:            e.clock,
	}
	if requiresRx {
		p.Type = "obat_keras"
	}
	if err := e.store.Products.CreateProduct(context.Background(), p); err != nil {
		t.Fatalf("seed product %s: %v", name, err)
	}
	return p
}

// fillCart puts quantity of a product into the buyer's cart through
// the service, as a request would.
func (e *testEnv) fillCart(t *testing.T, buyer models.Actor, productID int64, quantity int) {
	t.Helper()
	if _, err := e.svc.Carts.AddItem(context.Background(), buyer, productID, quantity); err != nil {
		t.Fatalf("fill cart with product %d: %v", productID, err)
	}
}

// checkout runs a plain checkout and fails the test on error.
func (e *testEnv) checkout(t *testing.T, buyer models.Actor) *models.Order {
	t.Helper()
	order, err := e.svc.Orders.Checkout(context.Background(), buyer, CheckoutInput{
		ShippingAddress: "Jl. Melati 5, Bandung",
		PaymentMethod:   models.PaymentMethodTransfer,
	})
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	return order
}

// payOrder walks an order through proof submission and verification so
// it ends up paid.
func (e *testEnv) payOrder(t *testing.T, buyer models.Actor, orderID int64) *models.Payment {
	t.Helper()
	payment, err := e.svc.Payments.SubmitProof(context.Background(), buyer, orderID, SubmitProofInput{
		Method:   models.PaymentMethodTransfer,
		ProofRef: "proof.jpg",
	})
	if err != nil {
		t.Fatalf("submit proof: %v", err)
	}
	if _, err := e.svc.Payments.Verify(context.Background(), e.cashier, payment.ID, true, nil); err != nil {
		t.Fatalf("verify payment: %v", err)
	}
	return payment
}

func (e *testEnv) productStock(t *testing.T, productID int64) int {
	t.Helper()
	p, err := e.store.Products.GetProduct(context.Background(), productID)
	if err != nil {
		t.Fatalf("get product %d: %v", productID, err)
	}
	return p.Stock
}

func (e *testEnv) orderStatus(t *testing.T, orderID int64) models.OrderStatus {
	t.Helper()
	o, err := e.store.Orders.GetOrder(context.Background(), orderID)
	if err != nil {
		t.Fatalf("get order %d: %v", orderID, err)
	}
	return o.Status
}
