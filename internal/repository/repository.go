package repository

import (
	"context"
	"errors"
	"time"

	"github.com/haloapotek/apotek-api/internal/models"
)

// ErrNotFound is the storage-level miss; services translate it into a
// typed models.NotFoundError naming the entity.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when a unique constraint (email, order /
// payment / tracking number) is violated.
var ErrDuplicate = errors.New("duplicate key")

// ProductFilter narrows catalog listings.
type ProductFilter struct {
	Search               string
	Category             string
	RequiresPrescription *bool
	ActiveOnly           bool
}

// ProductRepository owns the inventory ledger. Reserve and Release are
// the only operations that may mutate stock; both must be usable inside
// a TxManager transaction so a multi-line checkout commits or rolls
// back as one unit.
type ProductRepository interface {
	CreateProduct(ctx context.Context, p *models.Product) error
	GetProduct(ctx context.Context, id int64) (*models.Product, error)
	// GetProductForUpdate locks the row for the rest of the transaction.
	GetProductForUpdate(ctx context.Context, id int64) (*models.Product, error)
	UpdateProduct(ctx context.Context, p *models.Product) error
	DeleteProduct(ctx context.Context, id int64) error
	ListProducts(ctx context.Context, f ProductFilter) ([]models.Product, error)

	// Reserve atomically decrements stock, failing with a
	// models.InsufficientStockError when stock < qty. Concurrent
	// reservations against one product serialize.
	Reserve(ctx context.Context, productID int64, qty int) error
	// Release atomically restores stock (cancellation, rejection).
	Release(ctx context.Context, productID int64, qty int) error

	CountLowStock(ctx context.Context, threshold int) (int, error)
}

// CartRepository stores the per-buyer cart aggregate.
type CartRepository interface {
	// GetOrCreateCart finds the buyer's cart, creating it lazily.
	GetOrCreateCart(ctx context.Context, userID int64) (*models.Cart, error)
	CartItems(ctx context.Context, cartID int64) ([]models.CartItem, error)
	GetCartItem(ctx context.Context, cartID, productID int64) (*models.CartItem, error)
	// SaveCartItem inserts or updates the (cart, product) line.
	SaveCartItem(ctx context.Context, item *models.CartItem) error
	DeleteCartItem(ctx context.Context, cartID, productID int64) error
	ClearCart(ctx context.Context, cartID int64) error
}

// OrderFilter narrows order listings and aggregates. Nil/zero fields
// are ignored.
type OrderFilter struct {
	UserID        *int64
	DriverID      *int64
	Status        []models.OrderStatus
	PaymentStatus *models.PaymentStatus
	OrderNumber   string
	CreatedBefore *time.Time
	CreatedAfter  *time.Time
}

// OrderRepository persists orders and their immutable lines.
type OrderRepository interface {
	// CreateOrder inserts the order and all lines in one shot.
	CreateOrder(ctx context.Context, o *models.Order, items []models.OrderItem) error
	GetOrder(ctx context.Context, id int64) (*models.Order, error)
	GetOrderForUpdate(ctx context.Context, id int64) (*models.Order, error)
	GetOrderByNumber(ctx context.Context, number string) (*models.Order, error)
	OrderItems(ctx context.Context, orderID int64) ([]models.OrderItem, error)
	UpdateOrder(ctx context.Context, o *models.Order) error
	ListOrders(ctx context.Context, f OrderFilter) ([]models.Order, error)
	CountOrders(ctx context.Context, f OrderFilter) (int, error)
	SumOrderTotals(ctx context.Context, f OrderFilter) (float64, error)
}

// PaymentFilter narrows payment listings.
type PaymentFilter struct {
	OrderUserID   *int64
	Status        *models.PaymentState
	PaymentNumber string
}

// PaymentRepository persists proof-of-payment submissions.
type PaymentRepository interface {
	CreatePayment(ctx context.Context, p *models.Payment) error
	GetPayment(ctx context.Context, id int64) (*models.Payment, error)
	GetPaymentForUpdate(ctx context.Context, id int64) (*models.Payment, error)
	UpdatePayment(ctx context.Context, p *models.Payment) error
	PaymentsByOrder(ctx context.Context, orderID int64) ([]models.Payment, error)
	ListPayments(ctx context.Context, f PaymentFilter) ([]models.Payment, error)
}

// PrescriptionFilter narrows prescription listings.
type PrescriptionFilter struct {
	OrderUserID *int64
	Status      *models.PrescriptionStatus
}

// PrescriptionRepository persists prescription review cycles. The
// latest row per order is the authoritative one.
type PrescriptionRepository interface {
	CreatePrescription(ctx context.Context, p *models.Prescription) error
	GetPrescription(ctx context.Context, id int64) (*models.Prescription, error)
	GetPrescriptionForUpdate(ctx context.Context, id int64) (*models.Prescription, error)
	UpdatePrescription(ctx context.Context, p *models.Prescription) error
	LatestPrescriptionByOrder(ctx context.Context, orderID int64) (*models.Prescription, error)
	ListPrescriptions(ctx context.Context, f PrescriptionFilter) ([]models.Prescription, error)
	CountPrescriptions(ctx context.Context, f PrescriptionFilter) (int, error)
}

// DeliveryFilter narrows delivery listings.
type DeliveryFilter struct {
	DriverID       *int64
	OrderUserID    *int64
	Status         []models.DeliveryStatus
	UnassignedOnly bool
	TrackingNumber string
}

// DeliveryRepository persists the delivery leg, one row per order.
type DeliveryRepository interface {
	CreateDelivery(ctx context.Context, d *models.Delivery) error
	GetDelivery(ctx context.Context, id int64) (*models.Delivery, error)
	GetDeliveryForUpdate(ctx context.Context, id int64) (*models.Delivery, error)
	GetDeliveryByOrder(ctx context.Context, orderID int64) (*models.Delivery, error)
	GetDeliveryByTracking(ctx context.Context, trackingNumber string) (*models.Delivery, error)
	UpdateDelivery(ctx context.Context, d *models.Delivery) error
	ListDeliveries(ctx context.Context, f DeliveryFilter) ([]models.Delivery, error)
	CountDeliveries(ctx context.Context, f DeliveryFilter) (int, error)
}

// UserFilter narrows user counts/listings.
type UserFilter struct {
	Role       *models.Role
	ActiveOnly bool
}

// UserRepository persists accounts. Authentication is handled above
// this layer; this only stores and fetches.
type UserRepository interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, id int64) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateUser(ctx context.Context, u *models.User) error
	CountUsers(ctx context.Context, f UserFilter) (int, error)
}

// TxManager runs fn inside one atomic unit of work. Every repository
// call made with the ctx it passes joins that unit; an error from fn
// rolls everything back.
type TxManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Store bundles every repository plus the transaction manager, so the
// service layer can be wired with one value.
type Store struct {
	Products      ProductRepository
	Carts         CartRepository
	Orders        OrderRepository
	Payments      PaymentRepository
	Prescriptions PrescriptionRepository
	Deliveries    DeliveryRepository
	Users         UserRepository
	Tx            TxManager
}
