package service

import (
	"context"
	"time"

	"github.com/haloapotek/apotek-api/internal/models"
	"github.com/haloapotek/apotek-api/internal/repository"
)

// OrderService owns the order state machine. Every transition runs in a
// transaction, re-checks its precondition under the row lock, and
// reports a stale precondition as a ConflictError.
type OrderService struct {
	store *repository.Store
	now   func() time.Time
}

func NewOrderService(store *repository.Store) *OrderService {
	return &OrderService{store: store, now: time.Now}
}

// CheckoutInput is the buyer's checkout request. PrescriptionRef is an
// upload reference for orders that contain prescription-only products;
// it may also be supplied later through the prescription endpoint.
type CheckoutInput struct {
	ShippingAddress string  `json:"shippingAddress" binding:"required"`
	ShippingCost    float64 `json:"shippingCost"`
	PaymentMethod   string  `json:"paymentMethod" binding:"required"`
	Notes           *string `json:"notes"`
	PrescriptionRef *string `json:"prescriptionRef"`
}

// Checkout converts the actor's cart into an order in one atomic unit:
// stock is reserved line by line in ascending product id, the order and
// its items are written, and the cart is cleared. Any failure rolls the
// whole unit back, including every reservation already made.
func (s *OrderService) Checkout(ctx context.Context, actor models.Actor, in CheckoutInput) (*models.Order, error) {
	if actor.Role != models.RoleBuyer {
		return nil, &models.UnauthorizedError{Actor: actor, Action: "order.checkout"}
	}
	if in.ShippingAddress == "" {
		return nil, &models.ValidationError{Field: "shippingAddress", Reason: "must not be empty"}
	}
	if !models.ValidPaymentMethod(in.PaymentMethod) {
		return nil, &models.ValidationError{Field: "paymentMethod", Reason: "unknown method"}
	}

	var order *models.Order
	err := s.store.Tx.WithTransaction(ctx, func(ctx context.Context) error {
		cart, err := s.store.Carts.GetOrCreateCart(ctx, actor.ID)
		if err != nil {
			return err
		}
		lines, err := s.store.Carts.CartItems(ctx, cart.ID)
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			return models.ErrEmptyCart
		}

		now := s.now()
		var total float64
		needsPrescription := false
		items := make([]models.OrderItem, 0, len(lines))

		// lines come back ordered by product id; locking in that fixed
		// order keeps concurrent checkouts deadlock free.
		for _, line := range lines {
			product, err := s.store.Products.GetProductForUpdate(ctx, line.ProductID)
			if err != nil {
				return notFound(err, "product", line.ProductID)
			}
			if !product.IsActive {
				return &models.NotFoundError{Entity: "product", ID: line.ProductID}
			}
			if err := s.store.Products.Reserve(ctx, product.ID, line.Quantity); err != nil {
				return err
			}
			subtotal := float64(line.Quantity) * product.Price
			total += subtotal
			if product.RequiresPrescription {
				needsPrescription = true
			}
			items = append(items, models.OrderItem{
				ProductID: product.ID,
				Quantity:  line.Quantity,
				Price:     product.Price,
				Subtotal:  subtotal,
				CreatedAt: now,
			})
		}

		status := models.OrderStatusPending
		if needsPrescription {
			status = models.OrderStatusWaitingApproval
		}
		order = &models.Order{
			OrderNumber:     newOrderNumber(now),
			UserID:          actor.ID,
			TotalAmount:     total,
			Status:          status,
			PaymentStatus:   models.PaymentStatusPending,
			PaymentMethod:   in.PaymentMethod,
			ShippingAddress: in.ShippingAddress,
			ShippingCost:    in.ShippingCost,
			Notes:           in.Notes,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := s.store.Orders.CreateOrder(ctx, order, items); err != nil {
			return err
		}
		order.Items = items

		if needsPrescription && in.PrescriptionRef != nil && *in.PrescriptionRef != "" {
			p := &models.Prescription{
				OrderID:   order.ID,
				ImageRef:  *in.PrescriptionRef,
				Status:    models.PrescriptionPending,
				CreatedAt: now,
				UpdatedAt: now,
			}
			if err := s.store.Prescriptions.CreatePrescription(ctx, p); err != nil {
				return err
			}
		}

		return s.store.Carts.ClearCart(ctx, cart.ID)
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// Cancel ends an order from one of the cancellable states, releasing
// every reserved line. Buyers may cancel their own orders; cashiers and
// admins may cancel any.
func (s *OrderService) Cancel(ctx context.Context, actor models.Actor, orderID int64, reason string) (*models.Order, error) {
	var order *models.Order
	err := s.store.Tx.WithTransaction(ctx, func(ctx context.Context) error {
		o, err := s.store.Orders.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return notFound(err, "order", orderID)
		}
		if !canManageOrder(actor, o) {
			return &models.UnauthorizedError{Actor: actor, Action: "order.cancel"}
		}
		if !o.Status.IsCancellable() {
			return &models.InvalidTransitionError{
				Entity: "order", From: string(o.Status), To: string(models.OrderStatusCancelled),
			}
		}
		if err := releaseStockForOrder(ctx, s.store, o.ID); err != nil {
			return err
		}

		now := s.now()
		o.Status = models.OrderStatusCancelled
		o.CancelledAt = &now
		o.UpdatedAt = now
		if reason != "" {
			o.CancelReason = &reason
		}
		if err := s.store.Orders.UpdateOrder(ctx, o); err != nil {
			return err
		}
		order = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// Process moves a pending order into fulfilment. Cashier or admin only.
func (s *OrderService) Process(ctx context.Context, actor models.Actor, orderID int64) (*models.Order, error) {
	if !isStaff(actor.Role) {
		return nil, &models.UnauthorizedError{Actor: actor, Action: "order.process"}
	}
	return s.transition(ctx, orderID, models.OrderStatusPending, models.OrderStatusProcessing,
		func(o *models.Order, now time.Time) {
			o.ProcessedBy = &actor.ID
			o.ProcessedAt = &now
		})
}

// Complete closes a delivered order. The buyer confirms receipt, or an
// admin closes it on their behalf.
func (s *OrderService) Complete(ctx context.Context, actor models.Actor, orderID int64) (*models.Order, error) {
	var order *models.Order
	err := s.store.Tx.WithTransaction(ctx, func(ctx context.Context) error {
		o, err := s.store.Orders.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return notFound(err, "order", orderID)
		}
		owns := actor.Role == models.RoleBuyer && o.UserID == actor.ID
		if !owns && actor.Role != models.RoleAdmin {
			return &models.UnauthorizedError{Actor: actor, Action: "order.complete"}
		}
		if o.Status != models.OrderStatusDelivered {
			return &models.ConflictError{Entity: "order", ID: o.ID}
		}
		o.Status = models.OrderStatusCompleted
		o.UpdatedAt = s.now()
		if err := s.store.Orders.UpdateOrder(ctx, o); err != nil {
			return err
		}
		order = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// transition performs a single guarded status move under the row lock.
func (s *OrderService) transition(ctx context.Context, orderID int64, from, to models.OrderStatus, mutate func(*models.Order, time.Time)) (*models.Order, error) {
	var order *models.Order
	err := s.store.Tx.WithTransaction(ctx, func(ctx context.Context) error {
		o, err := s.store.Orders.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return notFound(err, "order", orderID)
		}
		if o.Status != from {
			return &models.ConflictError{Entity: "order", ID: o.ID}
		}
		now := s.now()
		o.Status = to
		o.UpdatedAt = now
		if mutate != nil {
			mutate(o, now)
		}
		if err := s.store.Orders.UpdateOrder(ctx, o); err != nil {
			return err
		}
		order = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// Get returns one order with its items, scoped by role: buyers see
// their own, drivers see orders they deliver, staff see all.
func (s *OrderService) Get(ctx context.Context, actor models.Actor, orderID int64) (*models.Order, error) {
	o, err := s.store.Orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, notFound(err, "order", orderID)
	}
	if err := s.authorizeView(ctx, actor, o); err != nil {
		return nil, err
	}
	o.Items, err = s.store.Orders.OrderItems(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (s *OrderService) authorizeView(ctx context.Context, actor models.Actor, o *models.Order) error {
	switch actor.Role {
	case models.RoleAdmin, models.RoleCashier, models.RolePharmacist:
		return nil
	case models.RoleBuyer:
		if o.UserID == actor.ID {
			return nil
		}
	case models.RoleDriver:
		d, err := s.store.Deliveries.GetDeliveryByOrder(ctx, o.ID)
		if err == nil && d.DriverID != nil && *d.DriverID == actor.ID {
			return nil
		}
		if err != nil && err != repository.ErrNotFound {
			return err
		}
	}
	return &models.UnauthorizedError{Actor: actor, Action: "order.view"}
}

// List returns orders visible to the actor, optionally narrowed by status.
func (s *OrderService) List(ctx context.Context, actor models.Actor, status []models.OrderStatus) ([]models.Order, error) {
	f := repository.OrderFilter{Status: status}
	switch actor.Role {
	case models.RoleBuyer:
		f.UserID = &actor.ID
	case models.RoleDriver:
		f.DriverID = &actor.ID
	case models.RoleAdmin, models.RoleCashier, models.RolePharmacist:
		// unrestricted
	default:
		return nil, &models.UnauthorizedError{Actor: actor, Action: "order.list"}
	}
	return s.store.Orders.ListOrders(ctx, f)
}

// Invoice is the buyer-facing document for one order.
type Invoice struct {
	InvoiceNumber string       `json:"invoiceNumber"`
	Order         models.Order `json:"order"`
	Subtotal      float64      `json:"subtotal"`
	ShippingCost  float64      `json:"shippingCost"`
	GrandTotal    float64      `json:"grandTotal"`
	IssuedAt      time.Time    `json:"issuedAt"`
}

func (s *OrderService) Invoice(ctx context.Context, actor models.Actor, orderID int64) (*Invoice, error) {
	o, err := s.Get(ctx, actor, orderID)
	if err != nil {
		return nil, err
	}
	return &Invoice{
		InvoiceNumber: invoiceNumber(o.OrderNumber),
		Order:         *o,
		Subtotal:      o.TotalAmount,
		ShippingCost:  o.ShippingCost,
		GrandTotal:    o.TotalAmount + o.ShippingCost,
		IssuedAt:      s.now(),
	}, nil
}

// CancelOverdue cancels orders still unpaid past the deadline and
// releases their stock. Run periodically by the background worker.
// Each order is its own transaction so one failure does not hold the
// rest hostage.
func (s *OrderService) CancelOverdue(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := s.now().Add(-olderThan)
	unpaid := models.PaymentStatusPending
	stale, err := s.store.Orders.ListOrders(ctx, repository.OrderFilter{
		Status: []models.OrderStatus{
			models.OrderStatusPending,
			models.OrderStatusWaitingApproval,
		},
		PaymentStatus: &unpaid,
		CreatedBefore: &cutoff,
	})
	if err != nil {
		return 0, err
	}

	cancelled := 0
	for _, o := range stale {
		err := s.store.Tx.WithTransaction(ctx, func(ctx context.Context) error {
			locked, err := s.store.Orders.GetOrderForUpdate(ctx, o.ID)
			if err != nil {
				return err
			}
			if !locked.Status.IsCancellable() || locked.PaymentStatus != models.PaymentStatusPending {
				return nil // state moved on since the scan
			}
			if err := releaseStockForOrder(ctx, s.store, locked.ID); err != nil {
				return err
			}
			now := s.now()
			reason := "payment overdue"
			locked.Status = models.OrderStatusCancelled
			locked.CancelReason = &reason
			locked.CancelledAt = &now
			locked.UpdatedAt = now
			if err := s.store.Orders.UpdateOrder(ctx, locked); err != nil {
				return err
			}
			cancelled++
			return nil
		})
		if err != nil {
			return cancelled, err
		}
	}
	return cancelled, nil
}

func canManageOrder(actor models.Actor, o *models.Order) bool {
	if actor.Role == models.RoleBuyer {
		return o.UserID == actor.ID
	}
	return isStaff(actor.Role)
}

func isStaff(r models.Role) bool {
	return r == models.RoleCashier || r == models.RoleAdmin
}
