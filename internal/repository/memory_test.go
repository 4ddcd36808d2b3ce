package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/haloapotek/apotek-api/internal/models"
)

func seedProduct(t *testing.T, store *Store, slug string, stock int) *models.Product {
	t.Helper()
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	p := &models.Product{
		Name:      slug,
		Slug:      slug,
		Price:     10000,
		Stock:     stock,
		Category:  "obat",
		Type:      "obat_bebas",
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := store.Products.CreateProduct(context.Background(), p); err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return p
}

func TestReserveAndRelease(t *testing.T) {
	store := NewMemory()
	p := seedProduct(t, store, "paracetamol", 5)
	ctx := context.Background()

	if err := store.Products.Reserve(ctx, p.ID, 3); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	got, _ := store.Products.GetProduct(ctx, p.ID)
	if got.Stock != 2 {
		t.Errorf("stock = %d, want 2", got.Stock)
	}

	err := store.Products.Reserve(ctx, p.ID, 3)
	var insufficient *models.InsufficientStockError
	if !errors.As(err, &insufficient) {
		t.Fatalf("err = %v, want InsufficientStockError", err)
	}
	got, _ = store.Products.GetProduct(ctx, p.ID)
	if got.Stock != 2 {
		t.Errorf("stock after failed reserve = %d, want 2", got.Stock)
	}

	if err := store.Products.Release(ctx, p.ID, 3); err != nil {
		t.Fatalf("release: %v", err)
	}
	got, _ = store.Products.GetProduct(ctx, p.ID)
	if got.Stock != 5 {
		t.Errorf("stock after release = %d, want 5", got.Stock)
	}

	if err := store.Products.Reserve(ctx, 999, 1); err != ErrNotFound {
		t.Errorf("unknown product: err = %v, want ErrNotFound", err)
	}
}

func TestWithTransactionRollsBackEverything(t *testing.T) {
	store := NewMemory()
	p := seedProduct(t, store, "paracetamol", 5)
	ctx := context.Background()
	boom := errors.New("boom")

	var orderID int64
	err := store.Tx.WithTransaction(ctx, func(ctx context.Context) error {
		if err := store.Products.Reserve(ctx, p.ID, 2); err != nil {
			return err
		}
		now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
		order := &models.Order{
			OrderNumber:     "ORD-20250601-AAAA0001",
			UserID:          1,
			Status:          models.OrderStatusPending,
			PaymentStatus:   models.PaymentStatusPending,
			PaymentMethod:   models.PaymentMethodTransfer,
			TotalAmount:     20000,
			ShippingAddress: "Jl. Melati 5",
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := store.Orders.CreateOrder(ctx, order, []models.OrderItem{
			{ProductID: p.ID, ProductName: p.Name, Quantity: 2, Price: p.Price, Subtotal: 20000},
		}); err != nil {
			return err
		}
		orderID = order.ID
		return boom
	})
	if err != boom {
		t.Fatalf("err = %v, want the fn error", err)
	}

	got, _ := store.Products.GetProduct(ctx, p.ID)
	if got.Stock != 5 {
		t.Errorf("stock = %d, want 5 after rollback", got.Stock)
	}
	if _, err := store.Orders.GetOrder(ctx, orderID); err != ErrNotFound {
		t.Errorf("order survived rollback: err = %v", err)
	}
}

func TestWithTransactionCommits(t *testing.T) {
	store := NewMemory()
	p := seedProduct(t, store, "paracetamol", 5)
	ctx := context.Background()

	err := store.Tx.WithTransaction(ctx, func(ctx context.Context) error {
		return store.Products.Reserve(ctx, p.ID, 2)
	})
	if err != nil {
		t.Fatal(err)
	}
	got, _ := store.Products.GetProduct(ctx, p.ID)
	if got.Stock != 3 {
		t.Errorf("stock = %d, want 3", got.Stock)
	}
}

func TestCreateProductDuplicateSlug(t *testing.T) {
	store := NewMemory()
	seedProduct(t, store, "paracetamol", 5)

	p := &models.Product{Name: "Paracetamol", Slug: "paracetamol", Price: 9000, IsActive: true}
	if err := store.Products.CreateProduct(context.Background(), p); err != ErrDuplicate {
		t.Errorf("err = %v, want ErrDuplicate", err)
	}
}

func TestSaveCartItemUpserts(t *testing.T) {
	store := NewMemory()
	p := seedProduct(t, store, "paracetamol", 5)
	ctx := context.Background()

	cart, err := store.Carts.GetOrCreateCart(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	again, err := store.Carts.GetOrCreateCart(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if again.ID != cart.ID {
		t.Errorf("second GetOrCreateCart made a new cart")
	}

	item := &models.CartItem{CartID: cart.ID, ProductID: p.ID, Quantity: 1, Price: p.Price}
	if err := store.Carts.SaveCartItem(ctx, item); err != nil {
		t.Fatal(err)
	}
	item.Quantity = 4
	if err := store.Carts.SaveCartItem(ctx, item); err != nil {
		t.Fatal(err)
	}

	items, err := store.Carts.CartItems(ctx, cart.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 {
		t.Fatalf("items = %d, want 1", len(items))
	}
	if items[0].Quantity != 4 {
		t.Errorf("quantity = %d, want 4", items[0].Quantity)
	}
}
