package models

import "time"

// OrderStatus is the fulfilment state of an order. Payment state is
// tracked separately in PaymentStatus; the two are loosely coupled.
type OrderStatus string

const (
	OrderStatusPending         OrderStatus = "pending"
	OrderStatusWaitingApproval OrderStatus = "waiting_approval"
	OrderStatusProcessing      OrderStatus = "processing"
	OrderStatusShipped         OrderStatus = "shipped"
	OrderStatusDelivered       OrderStatus = "delivered"
	OrderStatusCompleted       OrderStatus = "completed"
	OrderStatusCancelled       OrderStatus = "cancelled"
	OrderStatusRejected        OrderStatus = "rejected"
)

// IsTerminal reports whether no further transition is defined for the status.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusCompleted, OrderStatusCancelled, OrderStatusRejected:
		return true
	}
	return false
}

// IsCancellable reports whether a buyer/staff cancellation may still
// short-circuit the order. Shipped and later states cannot be cancelled.
func (s OrderStatus) IsCancellable() bool {
	switch s {
	case OrderStatusPending, OrderStatusWaitingApproval, OrderStatusProcessing:
		return true
	}
	return false
}

// PaymentStatus is the payment state of an order as a whole. Individual
// submissions live in the payments sub-ledger.
type PaymentStatus string

const (
	PaymentStatusPending             PaymentStatus = "pending"
	PaymentStatusWaitingVerification PaymentStatus = "waiting_verification"
	PaymentStatusPaid                PaymentStatus = "paid"
	PaymentStatusFailed              PaymentStatus = "failed"
)

// PaymentMethod values accepted at checkout.
const (
	PaymentMethodCash       = "cash"
	PaymentMethodTransfer   = "transfer"
	PaymentMethodCreditCard = "credit_card"
	PaymentMethodQRIS       = "qris"
)

// ValidPaymentMethod reports whether m is one of the accepted methods.
func ValidPaymentMethod(m string) bool {
	switch m {
	case PaymentMethodCash, PaymentMethodTransfer, PaymentMethodCreditCard, PaymentMethodQRIS:
		return true
	}
	return false
}

// Order is the model for the 'orders' table. TotalAmount is fixed at
// checkout from the line subtotals and never recomputed. Orders are
// never physically deleted.
type Order struct {
	ID            int64         `json:"id" db:"id"`
	OrderNumber   string        `json:"orderNumber" db:"order_number"`
	UserID        int64         `json:"userId" db:"user_id"`
	TotalAmount   float64       `json:"totalAmount" db:"total_amount"`
	Status        OrderStatus   `json:"status" db:"status"`
	PaymentStatus PaymentStatus `json:"paymentStatus" db:"payment_status"`
	PaymentMethod string        `json:"paymentMethod" db:"payment_method"`

	ShippingAddress string  `json:"shippingAddress" db:"shipping_address"`
	ShippingCost    float64 `json:"shippingCost" db:"shipping_cost"`
	Notes           *string `json:"notes,omitempty" db:"notes"`
	CancelReason    *string `json:"cancelReason,omitempty" db:"cancel_reason"`

	// Milestone audit fields
	ApprovedBy  *int64     `json:"approvedBy,omitempty" db:"approved_by"`
	ApprovedAt  *time.Time `json:"approvedAt,omitempty" db:"approved_at"`
	ProcessedBy *int64     `json:"processedBy,omitempty" db:"processed_by"`
	ProcessedAt *time.Time `json:"processedAt,omitempty" db:"processed_at"`
	CancelledAt *time.Time `json:"cancelledAt,omitempty" db:"cancelled_at"`
	DeliveredAt *time.Time `json:"deliveredAt,omitempty" db:"delivered_at"`

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`

	// Joins (populated manually, not DB columns)
	Items []OrderItem `json:"items,omitempty" db:"-"`
}

// OrderItem is the model for the 'order_items' table. Price is the
// unit price at checkout time, decoupled from the live product price.
// Rows are immutable after creation.
type OrderItem struct {
	ID        int64     `json:"id" db:"id"`
	OrderID   int64     `json:"orderId" db:"order_id"`
	ProductID int64     `json:"productId" db:"product_id"`
	Quantity  int       `json:"quantity" db:"quantity"`
	Price     float64   `json:"price" db:"price"`
	Subtotal  float64   `json:"subtotal" db:"subtotal"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`

	// Join field for detail views
	ProductName string `json:"productName,omitempty" db:"-"`
}
