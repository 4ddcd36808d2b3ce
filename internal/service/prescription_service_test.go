package service

import (
	"context"
	"errors"
	"testing"

	"github.com/haloapotek/apotek-api/internal/models"
)

func (e *testEnv) newGatedOrder(t *testing.T) (*models.Order, *models.Product) {
	t.Helper()
	rx := e.seedProduct(t, "Amoxicillin", 15000, 10, true)
	e.fillCart(t, e.buyer, rx.ID, 2)
	return e.checkout(t, e.buyer), rx
}

func TestPrescriptionApprovalOpensGate(t *testing.T) {
	env := newTestEnv(t)
	order, _ := env.newGatedOrder(t)
	ctx := context.Background()

	p, err := env.svc.Prescriptions.Upload(ctx, env.buyer, order.ID, "resep.jpg", nil)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if p.Status != models.PrescriptionPending {
		t.Fatalf("status = %s, want pending", p.Status)
	}

	verified, err := env.svc.Prescriptions.Verify(ctx, env.pharmacist, p.ID, true, nil)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if verified.Status != models.PrescriptionApproved {
		t.Errorf("status = %s, want approved", verified.Status)
	}

	o, err := env.store.Orders.GetOrder(ctx, order.ID)
	if err != nil {
		t.Fatal(err)
	}
	if o.Status != models.OrderStatusPending {
		t.Errorf("order status = %s, want pending", o.Status)
	}
	if o.ApprovedBy == nil || *o.ApprovedBy != env.pharmacist.ID {
		t.Error("approvedBy not recorded")
	}
}

func TestPrescriptionRejectionEndsOrderAndReleasesStock(t *testing.T) {
	env := newTestEnv(t)
	order, rx := env.newGatedOrder(t)
	ctx := context.Background()

	if got := env.productStock(t, rx.ID); got != 8 {
		t.Fatalf("stock after checkout = %d, want 8", got)
	}

	p, err := env.svc.Prescriptions.Upload(ctx, env.buyer, order.ID, "resep.jpg", nil)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	reason := "prescription expired"
	if _, err := env.svc.Prescriptions.Verify(ctx, env.pharmacist, p.ID, false, &reason); err != nil {
		t.Fatalf("reject: %v", err)
	}

	if got := env.orderStatus(t, order.ID); got != models.OrderStatusRejected {
		t.Errorf("order status = %s, want rejected", got)
	}
	if got := env.productStock(t, rx.ID); got != 10 {
		t.Errorf("stock after rejection = %d, want 10", got)
	}
}

func TestUploadWhilePendingReviewRejected(t *testing.T) {
	env := newTestEnv(t)
	order, _ := env.newGatedOrder(t)
	ctx := context.Background()

	if _, err := env.svc.Prescriptions.Upload(ctx, env.buyer, order.ID, "resep.jpg", nil); err != nil {
		t.Fatalf("first upload: %v", err)
	}
	_, err := env.svc.Prescriptions.Upload(ctx, env.buyer, order.ID, "resep2.jpg", nil)
	var conflict *models.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("err = %v, want ConflictError", err)
	}
}

func TestReuploadAfterRejectionCreatesNewRow(t *testing.T) {
	env := newTestEnv(t)
	rx := env.seedProduct(t, "Amoxicillin", 15000, 10, true)
	env.fillCart(t, env.buyer, rx.ID, 1)
	order, err := env.svc.Orders.Checkout(context.Background(), env.buyer, CheckoutInput{
		ShippingAddress: "Jl. Melati 5",
		PaymentMethod:   models.PaymentMethodTransfer,
	})
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	first, err := env.svc.Prescriptions.Upload(ctx, env.buyer, order.ID, "resep.jpg", nil)
	if err != nil {
		t.Fatal(err)
	}
	// a rejected review closes the order, so re-upload only applies to
	// reviews rejected while the gate is still open. Simulate that by
	// rejecting the row directly, keeping the order gated.
	first.Status = models.PrescriptionRejected
	if err := env.store.Prescriptions.UpdatePrescription(ctx, first); err != nil {
		t.Fatal(err)
	}

	second, err := env.svc.Prescriptions.Upload(ctx, env.buyer, order.ID, "resep-baru.jpg", nil)
	if err != nil {
		t.Fatalf("re-upload: %v", err)
	}
	if second.ID == first.ID {
		t.Error("re-upload reused the rejected row")
	}
}

func TestVerifyRequiresPharmacistOrAdmin(t *testing.T) {
	env := newTestEnv(t)
	order, _ := env.newGatedOrder(t)
	ctx := context.Background()

	p, err := env.svc.Prescriptions.Upload(ctx, env.buyer, order.ID, "resep.jpg", nil)
	if err != nil {
		t.Fatal(err)
	}

	for _, actor := range []models.Actor{env.buyer, env.cashier, env.driver} {
		_, err := env.svc.Prescriptions.Verify(ctx, actor, p.ID, true, nil)
		var unauthorized *models.UnauthorizedError
		if !errors.As(err, &unauthorized) {
			t.Errorf("role %s: err = %v, want UnauthorizedError", actor.Role, err)
		}
	}

	// admin may verify too
	if _, err := env.svc.Prescriptions.Verify(ctx, env.admin, p.ID, true, nil); err != nil {
		t.Errorf("admin verify: %v", err)
	}
}

func TestUploadOnUngatedOrderRejected(t *testing.T) {
	env := newTestEnv(t)
	product := env.seedProduct(t, "Vitamin C", 5000, 10, false)
	env.fillCart(t, env.buyer, product.ID, 1)
	order := env.checkout(t, env.buyer)

	_, err := env.svc.Prescriptions.Upload(context.Background(), env.buyer, order.ID, "resep.jpg", nil)
	var conflict *models.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("err = %v, want ConflictError", err)
	}
}
