package service

import (
	"context"
	"errors"
	"testing"

	"github.com/haloapotek/apotek-api/internal/models"
)

func (e *testEnv) newOrder(t *testing.T) *models.Order {
	t.Helper()
	product := e.seedProduct(t, "Tolak Angin", 4000, 20, false)
	e.fillCart(t, e.buyer, product.ID, 2)
	return e.checkout(t, e.buyer)
}

func TestSubmitProofMovesOrderToWaitingVerification(t *testing.T) {
	env := newTestEnv(t)
	order := env.newOrder(t)

	payment, err := env.svc.Payments.SubmitProof(context.Background(), env.buyer, order.ID, SubmitProofInput{
		Method:   models.PaymentMethodTransfer,
		ProofRef: "proof.jpg",
	})
	if err != nil {
		t.Fatalf("submit proof: %v", err)
	}
	if payment.Status != models.PaymentPending {
		t.Errorf("payment status = %s, want pending", payment.Status)
	}
	if payment.Amount != order.TotalAmount {
		t.Errorf("amount = %v, want %v", payment.Amount, order.TotalAmount)
	}

	o, err := env.store.Orders.GetOrder(context.Background(), order.ID)
	if err != nil {
		t.Fatal(err)
	}
	if o.PaymentStatus != models.PaymentStatusWaitingVerification {
		t.Errorf("order payment status = %s, want waiting_verification", o.PaymentStatus)
	}
}

func TestSecondSubmissionWhilePendingRejected(t *testing.T) {
	env := newTestEnv(t)
	order := env.newOrder(t)
	in := SubmitProofInput{Method: models.PaymentMethodTransfer, ProofRef: "proof.jpg"}

	if _, err := env.svc.Payments.SubmitProof(context.Background(), env.buyer, order.ID, in); err != nil {
		t.Fatalf("first submission: %v", err)
	}
	_, err := env.svc.Payments.SubmitProof(context.Background(), env.buyer, order.ID, in)
	var conflict *models.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("err = %v, want ConflictError", err)
	}
}

func TestVerifyApprovalMarksOrderPaid(t *testing.T) {
	env := newTestEnv(t)
	order := env.newOrder(t)
	payment := env.payOrder(t, env.buyer, order.ID)

	p, err := env.store.Payments.GetPayment(context.Background(), payment.ID)
	if err != nil {
		t.Fatal(err)
	}
	if p.Status != models.PaymentVerified {
		t.Errorf("payment status = %s, want verified", p.Status)
	}
	if p.VerifiedBy == nil || *p.VerifiedBy != env.cashier.ID {
		t.Error("verifiedBy not recorded")
	}

	o, err := env.store.Orders.GetOrder(context.Background(), order.ID)
	if err != nil {
		t.Fatal(err)
	}
	if o.PaymentStatus != models.PaymentStatusPaid {
		t.Errorf("order payment status = %s, want paid", o.PaymentStatus)
	}

	// the settled submission cannot be verified twice
	_, err = env.svc.Payments.Verify(context.Background(), env.cashier, payment.ID, true, nil)
	var conflict *models.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("err = %v, want ConflictError", err)
	}
}

func TestRejectionAllowsResubmission(t *testing.T) {
	env := newTestEnv(t)
	order := env.newOrder(t)
	ctx := context.Background()
	in := SubmitProofInput{Method: models.PaymentMethodTransfer, ProofRef: "blurry.jpg"}

	first, err := env.svc.Payments.SubmitProof(ctx, env.buyer, order.ID, in)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	reason := "proof unreadable"
	if _, err := env.svc.Payments.Verify(ctx, env.cashier, first.ID, false, &reason); err != nil {
		t.Fatalf("reject: %v", err)
	}

	o, err := env.store.Orders.GetOrder(ctx, order.ID)
	if err != nil {
		t.Fatal(err)
	}
	if o.PaymentStatus != models.PaymentStatusFailed {
		t.Fatalf("order payment status = %s, want failed", o.PaymentStatus)
	}

	in.ProofRef = "clear.jpg"
	second, err := env.svc.Payments.SubmitProof(ctx, env.buyer, order.ID, in)
	if err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if second.ID == first.ID {
		t.Error("resubmission reused the rejected row")
	}

	history, err := env.svc.Payments.ListByOrder(ctx, env.buyer, order.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 2 {
		t.Errorf("history length = %d, want 2", len(history))
	}
}

func TestVerifyRequiresStaff(t *testing.T) {
	env := newTestEnv(t)
	order := env.newOrder(t)
	payment, err := env.svc.Payments.SubmitProof(context.Background(), env.buyer, order.ID, SubmitProofInput{
		Method:   models.PaymentMethodTransfer,
		ProofRef: "proof.jpg",
	})
	if err != nil {
		t.Fatal(err)
	}

	for _, actor := range []models.Actor{env.buyer, env.driver, env.pharmacist} {
		_, err := env.svc.Payments.Verify(context.Background(), actor, payment.ID, true, nil)
		var unauthorized *models.UnauthorizedError
		if !errors.As(err, &unauthorized) {
			t.Errorf("role %s: err = %v, want UnauthorizedError", actor.Role, err)
		}
	}
}

func TestSubmitProofForeignOrderDenied(t *testing.T) {
	env := newTestEnv(t)
	order := env.newOrder(t)
	other := env.seedUser(t, "Eka", "eka@example.com", models.RoleBuyer)

	_, err := env.svc.Payments.SubmitProof(context.Background(), other, order.ID, SubmitProofInput{
		Method:   models.PaymentMethodTransfer,
		ProofRef: "proof.jpg",
	})
	var unauthorized *models.UnauthorizedError
	if !errors.As(err, &unauthorized) {
		t.Fatalf("err = %v, want UnauthorizedError", err)
	}
}
