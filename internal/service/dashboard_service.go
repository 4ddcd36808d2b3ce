package service

import (
	"context"
	"time"

	"github.com/haloapotek/apotek-api/internal/models"
	"github.com/haloapotek/apotek-api/internal/repository"
)

// DashboardService aggregates the per-role landing-page counters.
type DashboardService struct {
	store *repository.Store
	now   func() time.Time
}

func NewDashboardService(store *repository.Store) *DashboardService {
	return &DashboardService{store: store, now: time.Now}
}

// lowStockThreshold marks products that need reordering on the admin
// dashboard.
const lowStockThreshold = 10

// DashboardStats is the role-dependent counter set. Only the fields
// relevant to the caller's role are populated.
type DashboardStats struct {
	Role models.Role `json:"role"`

	// Staff
	TotalOrders           *int     `json:"totalOrders,omitempty"`
	OrdersAwaitingAction  *int     `json:"ordersAwaitingAction,omitempty"`
	PaymentsToVerify      *int     `json:"paymentsToVerify,omitempty"`
	PrescriptionsToReview *int     `json:"prescriptionsToReview,omitempty"`
	Revenue               *float64 `json:"revenue,omitempty"`
	LowStockProducts      *int     `json:"lowStockProducts,omitempty"`
	ActiveBuyers          *int     `json:"activeBuyers,omitempty"`
	ActiveDrivers         *int     `json:"activeDrivers,omitempty"`

	// Buyer
	MyOrders          *int `json:"myOrders,omitempty"`
	MyOrdersInFlight  *int `json:"myOrdersInFlight,omitempty"`
	MyOrdersCompleted *int `json:"myOrdersCompleted,omitempty"`

	// Driver
	AvailableDeliveries *int `json:"availableDeliveries,omitempty"`
	MyActiveDeliveries  *int `json:"myActiveDeliveries,omitempty"`
	MyDeliveredTotal    *int `json:"myDeliveredTotal,omitempty"`
}

// Stats builds the dashboard for the calling actor's role.
func (s *DashboardService) Stats(ctx context.Context, actor models.Actor) (*DashboardStats, error) {
	stats := &DashboardStats{Role: actor.Role}
	switch actor.Role {
	case models.RoleAdmin, models.RoleCashier:
		return stats, s.staffStats(ctx, stats)
	case models.RolePharmacist:
		return stats, s.pharmacistStats(ctx, stats)
	case models.RoleBuyer:
		return stats, s.buyerStats(ctx, actor, stats)
	case models.RoleDriver:
		return stats, s.driverStats(ctx, actor, stats)
	}
	return nil, &models.UnauthorizedError{Actor: actor, Action: "dashboard.view"}
}

func (s *DashboardService) staffStats(ctx context.Context, stats *DashboardStats) error {
	total, err := s.store.Orders.CountOrders(ctx, repository.OrderFilter{})
	if err != nil {
		return err
	}
	awaiting, err := s.store.Orders.CountOrders(ctx, repository.OrderFilter{
		Status: []models.OrderStatus{models.OrderStatusPending, models.OrderStatusWaitingApproval},
	})
	if err != nil {
		return err
	}
	waitingVerification := models.PaymentStatusWaitingVerification
	toVerify, err := s.store.Orders.CountOrders(ctx, repository.OrderFilter{PaymentStatus: &waitingVerification})
	if err != nil {
		return err
	}
	pendingRx := models.PrescriptionPending
	toReview, err := s.store.Prescriptions.CountPrescriptions(ctx, repository.PrescriptionFilter{Status: &pendingRx})
	if err != nil {
		return err
	}
	paid := models.PaymentStatusPaid
	revenue, err := s.store.Orders.SumOrderTotals(ctx, repository.OrderFilter{PaymentStatus: &paid})
	if err != nil {
		return err
	}
	lowStock, err := s.store.Products.CountLowStock(ctx, lowStockThreshold)
	if err != nil {
		return err
	}
	buyerRole := models.RoleBuyer
	buyers, err := s.store.Users.CountUsers(ctx, repository.UserFilter{Role: &buyerRole, ActiveOnly: true})
	if err != nil {
		return err
	}
	driverRole := models.RoleDriver
	drivers, err := s.store.Users.CountUsers(ctx, repository.UserFilter{Role: &driverRole, ActiveOnly: true})
	if err != nil {
		return err
	}

	stats.TotalOrders = &total
	stats.OrdersAwaitingAction = &awaiting
	stats.PaymentsToVerify = &toVerify
	stats.PrescriptionsToReview = &toReview
	stats.Revenue = &revenue
	stats.LowStockProducts = &lowStock
	stats.ActiveBuyers = &buyers
	stats.ActiveDrivers = &drivers
	return nil
}

func (s *DashboardService) pharmacistStats(ctx context.Context, stats *DashboardStats) error {
	pendingRx := models.PrescriptionPending
	toReview, err := s.store.Prescriptions.CountPrescriptions(ctx, repository.PrescriptionFilter{Status: &pendingRx})
	if err != nil {
		return err
	}
	gated, err := s.store.Orders.CountOrders(ctx, repository.OrderFilter{
		Status: []models.OrderStatus{models.OrderStatusWaitingApproval},
	})
	if err != nil {
		return err
	}
	stats.PrescriptionsToReview = &toReview
	stats.OrdersAwaitingAction = &gated
	return nil
}

func (s *DashboardService) buyerStats(ctx context.Context, actor models.Actor, stats *DashboardStats) error {
	mine, err := s.store.Orders.CountOrders(ctx, repository.OrderFilter{UserID: &actor.ID})
	if err != nil {
		return err
	}
	inFlight, err := s.store.Orders.CountOrders(ctx, repository.OrderFilter{
		UserID: &actor.ID,
		Status: []models.OrderStatus{
			models.OrderStatusPending, models.OrderStatusWaitingApproval,
			models.OrderStatusProcessing, models.OrderStatusShipped,
			models.OrderStatusDelivered,
		},
	})
	if err != nil {
		return err
	}
	completed, err := s.store.Orders.CountOrders(ctx, repository.OrderFilter{
		UserID: &actor.ID,
		Status: []models.OrderStatus{models.OrderStatusCompleted},
	})
	if err != nil {
		return err
	}
	stats.MyOrders = &mine
	stats.MyOrdersInFlight = &inFlight
	stats.MyOrdersCompleted = &completed
	return nil
}

func (s *DashboardService) driverStats(ctx context.Context, actor models.Actor, stats *DashboardStats) error {
	available, err := s.store.Deliveries.CountDeliveries(ctx, repository.DeliveryFilter{
		UnassignedOnly: true,
		Status:         []models.DeliveryStatus{models.DeliveryPending},
	})
	if err != nil {
		return err
	}
	active, err := s.store.Deliveries.CountDeliveries(ctx, repository.DeliveryFilter{
		DriverID: &actor.ID,
		Status: []models.DeliveryStatus{
			models.DeliveryAccepted, models.DeliveryPickedUp, models.DeliveryOnDelivery,
		},
	})
	if err != nil {
		return err
	}
	delivered, err := s.store.Deliveries.CountDeliveries(ctx, repository.DeliveryFilter{
		DriverID: &actor.ID,
		Status:   []models.DeliveryStatus{models.DeliveryDelivered},
	})
	if err != nil {
		return err
	}
	stats.AvailableDeliveries = &available
	stats.MyActiveDeliveries = &active
	stats.MyDeliveredTotal = &delivered
	return nil
}
