package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/haloapotek/apotek-api/internal/models"
)

// shippedDelivery walks an order to shipped and returns the delivery.
func (e *testEnv) shippedDelivery(t *testing.T) *models.Delivery {
	t.Helper()
	order := e.shipOrder(t)
	d, err := e.store.Deliveries.GetDeliveryByOrder(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("get delivery: %v", err)
	}
	return d
}

// acceptedDelivery additionally has the test driver on it.
func (e *testEnv) acceptedDelivery(t *testing.T) *models.Delivery {
	t.Helper()
	d := e.shippedDelivery(t)
	accepted, err := e.svc.Deliveries.Accept(context.Background(), e.driver, d.ID)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	return accepted
}

func TestAssignDriverRequiresProcessingAndPaid(t *testing.T) {
	env := newTestEnv(t)
	product := env.seedProduct(t, "Paracetamol", 10000, 5, false)
	env.fillCart(t, env.buyer, product.ID, 1)
	order := env.checkout(t, env.buyer)
	ctx := context.Background()

	// not yet processing
	_, err := env.svc.Deliveries.AssignDriver(ctx, env.cashier, order.ID, nil, nil)
	var transition *models.InvalidTransitionError
	if !errors.As(err, &transition) {
		t.Fatalf("err = %v, want InvalidTransitionError", err)
	}

	env.payOrder(t, env.buyer, order.ID)
	if _, err := env.svc.Orders.Process(ctx, env.cashier, order.ID); err != nil {
		t.Fatal(err)
	}

	d, err := env.svc.Deliveries.AssignDriver(ctx, env.cashier, order.ID, nil, nil)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if !strings.HasPrefix(d.TrackingNumber, "TRK-") {
		t.Errorf("tracking number %q lacks TRK- prefix", d.TrackingNumber)
	}
	if d.Status != models.DeliveryPending {
		t.Errorf("status = %s, want pending", d.Status)
	}
}

func TestAssignDriverUnpaidOrderRejected(t *testing.T) {
	env := newTestEnv(t)
	product := env.seedProduct(t, "Paracetamol", 10000, 5, false)
	env.fillCart(t, env.buyer, product.ID, 1)
	order := env.checkout(t, env.buyer)
	ctx := context.Background()

	// processing but unpaid is not dispatchable
	if _, err := env.svc.Orders.Process(ctx, env.cashier, order.ID); err != nil {
		t.Fatal(err)
	}
	_, err := env.svc.Deliveries.AssignDriver(ctx, env.cashier, order.ID, nil, nil)
	var conflict *models.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("err = %v, want ConflictError", err)
	}
}

func TestAcceptClaimsDelivery(t *testing.T) {
	env := newTestEnv(t)
	d := env.shippedDelivery(t)
	ctx := context.Background()

	available, err := env.svc.Deliveries.Available(ctx, env.driver)
	if err != nil {
		t.Fatal(err)
	}
	if len(available) != 1 {
		t.Fatalf("available = %d, want 1", len(available))
	}

	accepted, err := env.svc.Deliveries.Accept(ctx, env.driver, d.ID)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if accepted.Status != models.DeliveryAccepted {
		t.Errorf("status = %s, want accepted", accepted.Status)
	}
	if accepted.DriverID == nil || *accepted.DriverID != env.driver.ID {
		t.Error("driver not recorded")
	}
	if accepted.AcceptedAt == nil {
		t.Error("acceptedAt not set")
	}

	// claimed deliveries leave the feed, and cannot be claimed again
	available, err = env.svc.Deliveries.Available(ctx, env.driver)
	if err != nil {
		t.Fatal(err)
	}
	if len(available) != 0 {
		t.Errorf("available after accept = %d, want 0", len(available))
	}
	other := env.seedUser(t, "Rudi", "rudi@example.com", models.RoleDriver)
	_, err = env.svc.Deliveries.Accept(ctx, other, d.ID)
	var conflict *models.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("err = %v, want ConflictError", err)
	}
}

func TestAcceptPreassignedToOtherDriverDenied(t *testing.T) {
	env := newTestEnv(t)
	order := func() *models.Order {
		product := env.seedProduct(t, "Obat Flu", 9000, 5, false)
		env.fillCart(t, env.buyer, product.ID, 1)
		o := env.checkout(t, env.buyer)
		env.payOrder(t, env.buyer, o.ID)
		if _, err := env.svc.Orders.Process(context.Background(), env.cashier, o.ID); err != nil {
			t.Fatal(err)
		}
		return o
	}()

	other := env.seedUser(t, "Rudi", "rudi@example.com", models.RoleDriver)
	d, err := env.svc.Deliveries.AssignDriver(context.Background(), env.cashier, order.ID, &other.ID, nil)
	if err != nil {
		t.Fatal(err)
	}

	_, err = env.svc.Deliveries.Accept(context.Background(), env.driver, d.ID)
	var unauthorized *models.UnauthorizedError
	if !errors.As(err, &unauthorized) {
		t.Fatalf("err = %v, want UnauthorizedError", err)
	}
}

func TestDeliveryTransitionTable(t *testing.T) {
	cases := []struct {
		from  models.DeliveryStatus
		to    models.DeliveryStatus
		valid bool
	}{
		{models.DeliveryPending, models.DeliveryAccepted, true},
		{models.DeliveryPending, models.DeliveryDelivered, false},
		{models.DeliveryPending, models.DeliveryCancelled, false},
		{models.DeliveryAccepted, models.DeliveryPickedUp, true},
		{models.DeliveryAccepted, models.DeliveryCancelled, true},
		{models.DeliveryAccepted, models.DeliveryDelivered, false},
		{models.DeliveryPickedUp, models.DeliveryOnDelivery, true},
		{models.DeliveryPickedUp, models.DeliveryCancelled, true},
		{models.DeliveryPickedUp, models.DeliveryAccepted, false},
		{models.DeliveryOnDelivery, models.DeliveryDelivered, true},
		{models.DeliveryOnDelivery, models.DeliveryCancelled, true},
		{models.DeliveryDelivered, models.DeliveryCancelled, false},
		{models.DeliveryCancelled, models.DeliveryAccepted, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.valid {
			t.Errorf("%s -> %s = %v, want %v", tc.from, tc.to, got, tc.valid)
		}
	}
}

func TestSkippingStatusRejected(t *testing.T) {
	env := newTestEnv(t)
	d := env.acceptedDelivery(t)

	// accepted -> delivered skips picked_up and on_delivery
	_, err := env.svc.Deliveries.UpdateStatus(context.Background(), env.driver, d.ID, models.DeliveryDelivered, &Evidence{
		ReceiverName:  "Budi",
		ReceiverPhone: "0812000111",
	})
	var transition *models.InvalidTransitionError
	if !errors.As(err, &transition) {
		t.Fatalf("err = %v, want InvalidTransitionError", err)
	}
}

func TestDeliveredRequiresEvidence(t *testing.T) {
	env := newTestEnv(t)
	d := env.acceptedDelivery(t)
	ctx := context.Background()

	if _, err := env.svc.Deliveries.UpdateStatus(ctx, env.driver, d.ID, models.DeliveryPickedUp, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := env.svc.Deliveries.UpdateStatus(ctx, env.driver, d.ID, models.DeliveryOnDelivery, nil); err != nil {
		t.Fatal(err)
	}

	// no evidence at all
	_, err := env.svc.Deliveries.UpdateStatus(ctx, env.driver, d.ID, models.DeliveryDelivered, nil)
	var validation *models.ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("err = %v, want ValidationError", err)
	}

	// receiver identity without signature or photo is not enough
	_, err = env.svc.Deliveries.UpdateStatus(ctx, env.driver, d.ID, models.DeliveryDelivered, &Evidence{
		ReceiverName:  "Budi",
		ReceiverPhone: "0812000111",
	})
	if !errors.As(err, &validation) {
		t.Fatalf("err = %v, want ValidationError", err)
	}

	photo := "door.jpg"
	delivered, err := env.svc.Deliveries.UpdateStatus(ctx, env.driver, d.ID, models.DeliveryDelivered, &Evidence{
		ReceiverName:  "Budi",
		ReceiverPhone: "0812000111",
		PhotoRef:      &photo,
	})
	if err != nil {
		t.Fatalf("delivered: %v", err)
	}
	if delivered.DeliveredAt == nil || delivered.EvidenceUploadedAt == nil {
		t.Error("delivery timestamps not set")
	}
}

func TestCancelledDeliveryReturnsOrderToProcessing(t *testing.T) {
	env := newTestEnv(t)
	d := env.acceptedDelivery(t)
	ctx := context.Background()

	cancelled, err := env.svc.Deliveries.UpdateStatus(ctx, env.driver, d.ID, models.DeliveryCancelled, nil)
	if err != nil {
		t.Fatalf("cancel delivery: %v", err)
	}
	if cancelled.Status != models.DeliveryCancelled {
		t.Errorf("status = %s, want cancelled", cancelled.Status)
	}
	if got := env.orderStatus(t, d.OrderID); got != models.OrderStatusProcessing {
		t.Errorf("order status = %s, want processing", got)
	}

	// redispatch reuses the delivery row and tracking number
	redispatched, err := env.svc.Deliveries.AssignDriver(ctx, env.cashier, d.OrderID, nil, nil)
	if err != nil {
		t.Fatalf("redispatch: %v", err)
	}
	if redispatched.ID != d.ID {
		t.Errorf("redispatch created a new row")
	}
	if redispatched.TrackingNumber != d.TrackingNumber {
		t.Errorf("tracking number changed on redispatch")
	}
	if redispatched.Status != models.DeliveryPending {
		t.Errorf("status = %s, want pending", redispatched.Status)
	}
}

func TestUpdateStatusByUnassignedDriverDenied(t *testing.T) {
	env := newTestEnv(t)
	d := env.acceptedDelivery(t)

	other := env.seedUser(t, "Rudi", "rudi@example.com", models.RoleDriver)
	_, err := env.svc.Deliveries.UpdateStatus(context.Background(), other, d.ID, models.DeliveryPickedUp, nil)
	var unauthorized *models.UnauthorizedError
	if !errors.As(err, &unauthorized) {
		t.Fatalf("err = %v, want UnauthorizedError", err)
	}
}

func TestUpdateLocationBounds(t *testing.T) {
	env := newTestEnv(t)
	d := env.acceptedDelivery(t)
	ctx := context.Background()

	cases := []struct {
		lat, lon float64
		ok       bool
	}{
		{-6.2, 106.8, true},
		{90, 180, true},
		{-90, -180, true},
		{90.1, 0, false},
		{-90.1, 0, false},
		{0, 180.1, false},
		{0, -180.1, false},
	}
	for _, tc := range cases {
		err := env.svc.Deliveries.UpdateLocation(ctx, env.driver, d.ID, tc.lat, tc.lon)
		var validation *models.ValidationError
		if tc.ok && err != nil {
			t.Errorf("(%v, %v): unexpected error %v", tc.lat, tc.lon, err)
		}
		if !tc.ok && !errors.As(err, &validation) {
			t.Errorf("(%v, %v): err = %v, want ValidationError", tc.lat, tc.lon, err)
		}
	}
}

func TestUpdateLocationOnlyWhileInTransit(t *testing.T) {
	env := newTestEnv(t)
	d := env.shippedDelivery(t)

	// pending is not in transit, and the delivery is unassigned anyway
	err := env.svc.Deliveries.UpdateLocation(context.Background(), env.driver, d.ID, -6.2, 106.8)
	if err == nil {
		t.Fatal("expected error for pending delivery")
	}
}

func TestTrackTimeline(t *testing.T) {
	env := newTestEnv(t)
	d := env.acceptedDelivery(t)
	ctx := context.Background()

	env.advance(10 * time.Minute)
	if _, err := env.svc.Deliveries.UpdateStatus(ctx, env.driver, d.ID, models.DeliveryPickedUp, nil); err != nil {
		t.Fatal(err)
	}

	view, err := env.svc.Deliveries.Track(ctx, d.TrackingNumber)
	if err != nil {
		t.Fatalf("track: %v", err)
	}
	if view.Status != models.DeliveryPickedUp {
		t.Errorf("status = %s, want picked_up", view.Status)
	}
	// dispatched, accepted, picked_up
	if len(view.Timeline) != 3 {
		t.Errorf("timeline length = %d, want 3", len(view.Timeline))
	}

	_, err = env.svc.Deliveries.Track(ctx, "TRK-NOPE")
	var notFoundErr *models.NotFoundError
	if !errors.As(err, &notFoundErr) {
		t.Fatalf("err = %v, want NotFoundError", err)
	}
}
