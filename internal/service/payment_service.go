package service

import (
	"context"
	"time"

	"github.com/haloapotek/apotek-api/internal/models"
	"github.com/haloapotek/apotek-api/internal/repository"
)

// PaymentService keeps the sub-ledger of proof-of-payment submissions.
// An order accumulates rows across resubmissions but holds at most one
// pending and at most one verified row at any time.
type PaymentService struct {
	store *repository.Store
	now   func() time.Time
}

func NewPaymentService(store *repository.Store) *PaymentService {
	return &PaymentService{store: store, now: time.Now}
}

// SubmitProofInput carries one proof-of-payment submission.
type SubmitProofInput struct {
	Method   string  `json:"method" binding:"required"`
	ProofRef string  `json:"proofRef" binding:"required"`
	Notes    *string `json:"notes"`
}

// SubmitProof records a payment submission for the buyer's own order
// and moves the order to waiting_verification. A submission is only
// accepted while the order's payment status is pending or failed; a
// second one while verification is open is a conflict.
func (s *PaymentService) SubmitProof(ctx context.Context, actor models.Actor, orderID int64, in SubmitProofInput) (*models.Payment, error) {
	if actor.Role != models.RoleBuyer {
		return nil, &models.UnauthorizedError{Actor: actor, Action: "payment.submit"}
	}
	if !models.ValidPaymentMethod(in.Method) {
		return nil, &models.ValidationError{Field: "method", Reason: "unknown method"}
	}
	if in.ProofRef == "" {
		return nil, &models.ValidationError{Field: "proofRef", Reason: "must not be empty"}
	}

	var payment *models.Payment
	err := s.store.Tx.WithTransaction(ctx, func(ctx context.Context) error {
		o, err := s.store.Orders.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return notFound(err, "order", orderID)
		}
		if o.UserID != actor.ID {
			return &models.UnauthorizedError{Actor: actor, Action: "payment.submit"}
		}
		if o.Status.IsTerminal() {
			return &models.ConflictError{Entity: "order", ID: o.ID}
		}
		if o.PaymentStatus != models.PaymentStatusPending && o.PaymentStatus != models.PaymentStatusFailed {
			return &models.ConflictError{Entity: "payment", ID: o.ID}
		}

		now := s.now()
		payment = &models.Payment{
			OrderID:       o.ID,
			PaymentNumber: newPaymentNumber(now),
			Amount:        o.TotalAmount + o.ShippingCost,
			Method:        in.Method,
			ProofRef:      in.ProofRef,
			Status:        models.PaymentPending,
			Notes:         in.Notes,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := s.store.Payments.CreatePayment(ctx, payment); err != nil {
			return err
		}

		o.PaymentStatus = models.PaymentStatusWaitingVerification
		o.UpdatedAt = now
		return s.store.Orders.UpdateOrder(ctx, o)
	})
	if err != nil {
		return nil, err
	}
	return payment, nil
}

// Verify settles one pending submission. Approval marks the payment
// verified and the order paid; rejection marks the payment rejected and
// the order failed so the buyer can resubmit. Cashier or admin only.
func (s *PaymentService) Verify(ctx context.Context, actor models.Actor, paymentID int64, approve bool, notes *string) (*models.Payment, error) {
	if !isStaff(actor.Role) {
		return nil, &models.UnauthorizedError{Actor: actor, Action: "payment.verify"}
	}

	var payment *models.Payment
	err := s.store.Tx.WithTransaction(ctx, func(ctx context.Context) error {
		p, err := s.store.Payments.GetPaymentForUpdate(ctx, paymentID)
		if err != nil {
			return notFound(err, "payment", paymentID)
		}
		if p.Status != models.PaymentPending {
			return &models.ConflictError{Entity: "payment", ID: p.ID}
		}
		o, err := s.store.Orders.GetOrderForUpdate(ctx, p.OrderID)
		if err != nil {
			return notFound(err, "order", p.OrderID)
		}
		if o.PaymentStatus != models.PaymentStatusWaitingVerification {
			return &models.ConflictError{Entity: "order", ID: o.ID}
		}

		now := s.now()
		p.VerifiedBy = &actor.ID
		p.VerifiedAt = &now
		p.UpdatedAt = now
		if notes != nil {
			p.Notes = notes
		}
		if approve {
			p.Status = models.PaymentVerified
			o.PaymentStatus = models.PaymentStatusPaid
		} else {
			p.Status = models.PaymentRejected
			o.PaymentStatus = models.PaymentStatusFailed
		}
		if err := s.store.Payments.UpdatePayment(ctx, p); err != nil {
			return err
		}
		o.UpdatedAt = now
		if err := s.store.Orders.UpdateOrder(ctx, o); err != nil {
			return err
		}
		payment = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return payment, nil
}

// Get returns one payment, visible to staff and the owning buyer.
func (s *PaymentService) Get(ctx context.Context, actor models.Actor, paymentID int64) (*models.Payment, error) {
	p, err := s.store.Payments.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, notFound(err, "payment", paymentID)
	}
	if isStaff(actor.Role) {
		return p, nil
	}
	o, err := s.store.Orders.GetOrder(ctx, p.OrderID)
	if err != nil {
		return nil, notFound(err, "order", p.OrderID)
	}
	if actor.Role == models.RoleBuyer && o.UserID == actor.ID {
		return p, nil
	}
	return nil, &models.UnauthorizedError{Actor: actor, Action: "payment.view"}
}

// ListByOrder returns the full submission history of one order.
func (s *PaymentService) ListByOrder(ctx context.Context, actor models.Actor, orderID int64) ([]models.Payment, error) {
	o, err := s.store.Orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, notFound(err, "order", orderID)
	}
	if !isStaff(actor.Role) && !(actor.Role == models.RoleBuyer && o.UserID == actor.ID) {
		return nil, &models.UnauthorizedError{Actor: actor, Action: "payment.list"}
	}
	return s.store.Payments.PaymentsByOrder(ctx, orderID)
}

// List returns payments scoped by role: buyers see their own, staff see
// all, optionally narrowed to one submission state.
func (s *PaymentService) List(ctx context.Context, actor models.Actor, status *models.PaymentState) ([]models.Payment, error) {
	f := repository.PaymentFilter{Status: status}
	switch actor.Role {
	case models.RoleBuyer:
		f.OrderUserID = &actor.ID
	case models.RoleCashier, models.RoleAdmin:
		// unrestricted
	default:
		return nil, &models.UnauthorizedError{Actor: actor, Action: "payment.list"}
	}
	return s.store.Payments.ListPayments(ctx, f)
}
