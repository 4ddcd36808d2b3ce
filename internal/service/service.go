package service

import (
	"errors"
	"time"

	"github.com/haloapotek/apotek-api/internal/repository"
)

// ErrInvalidCredentials is returned by Login for a wrong email or
// password. It is deliberately indistinguishable between the two.
var ErrInvalidCredentials = errors.New("invalid email or password")

// Services bundles every domain service over one store.
type Services struct {
	Users         *UserService
	Products      *ProductService
	Carts         *CartService
	Orders        *OrderService
	Payments      *PaymentService
	Prescriptions *PrescriptionService
	Deliveries    *DeliveryService
	Dashboard     *DashboardService
}

func New(store *repository.Store) *Services {
	return &Services{
		Users:         NewUserService(store),
		Products:      NewProductService(store),
		Carts:         NewCartService(store),
		Orders:        NewOrderService(store),
		Payments:      NewPaymentService(store),
		Prescriptions: NewPrescriptionService(store),
		Deliveries:    NewDeliveryService(store),
		Dashboard:     NewDashboardService(store),
	}
}

// WithClock overrides the time source of every service. Tests use this
// to pin timestamps.
func (s *Services) WithClock(now func() time.Time) *Services {
	s.Users.now = now
	s.Products.now = now
	s.Carts.now = now
	s.Orders.now = now
	s.Payments.now = now
	s.Prescriptions.now = now
	s.Deliveries.now = now
	s.Dashboard.now = now
	return s
}
