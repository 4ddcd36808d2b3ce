package service

import (
	"context"
	"time"

	"github.com/haloapotek/apotek-api/internal/models"
	"github.com/haloapotek/apotek-api/internal/repository"
)

// PrescriptionService gates orders that contain prescription-only
// products. An order holds the gate open in waiting_approval until a
// pharmacist settles the latest upload.
type PrescriptionService struct {
	store *repository.Store
	now   func() time.Time
}

func NewPrescriptionService(store *repository.Store) *PrescriptionService {
	return &PrescriptionService{store: store, now: time.Now}
}

func canVerifyPrescription(r models.Role) bool {
	return r == models.RolePharmacist || r == models.RoleAdmin
}

// Upload records a prescription image for the buyer's own order. Each
// upload is a new row; a re-upload is only accepted after the previous
// one was rejected.
func (s *PrescriptionService) Upload(ctx context.Context, actor models.Actor, orderID int64, imageRef string, doctorNotes *string) (*models.Prescription, error) {
	if actor.Role != models.RoleBuyer {
		return nil, &models.UnauthorizedError{Actor: actor, Action: "prescription.upload"}
	}
	if imageRef == "" {
		return nil, &models.ValidationError{Field: "imageRef", Reason: "must not be empty"}
	}

	var prescription *models.Prescription
	err := s.store.Tx.WithTransaction(ctx, func(ctx context.Context) error {
		o, err := s.store.Orders.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return notFound(err, "order", orderID)
		}
		if o.UserID != actor.ID {
			return &models.UnauthorizedError{Actor: actor, Action: "prescription.upload"}
		}
		if o.Status != models.OrderStatusWaitingApproval {
			return &models.ConflictError{Entity: "order", ID: o.ID}
		}

		latest, err := s.store.Prescriptions.LatestPrescriptionByOrder(ctx, o.ID)
		if err != nil && err != repository.ErrNotFound {
			return err
		}
		if latest != nil && latest.Status == models.PrescriptionPending {
			return &models.ConflictError{Entity: "prescription", ID: latest.ID}
		}

		now := s.now()
		prescription = &models.Prescription{
			OrderID:     o.ID,
			ImageRef:    imageRef,
			DoctorNotes: doctorNotes,
			Status:      models.PrescriptionPending,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		return s.store.Prescriptions.CreatePrescription(ctx, prescription)
	})
	if err != nil {
		return nil, err
	}
	return prescription, nil
}

// Verify settles one pending upload. Approval releases the order gate
// (waiting_approval becomes pending); rejection ends the order and
// returns its reserved stock to the shelf. Pharmacist or admin only.
func (s *PrescriptionService) Verify(ctx context.Context, actor models.Actor, prescriptionID int64, approve bool, reason *string) (*models.Prescription, error) {
	if !canVerifyPrescription(actor.Role) {
		return nil, &models.UnauthorizedError{Actor: actor, Action: "prescription.verify"}
	}
	if !approve && (reason == nil || *reason == "") {
		return nil, &models.ValidationError{Field: "reason", Reason: "required when rejecting"}
	}

	var prescription *models.Prescription
	err := s.store.Tx.WithTransaction(ctx, func(ctx context.Context) error {
		p, err := s.store.Prescriptions.GetPrescriptionForUpdate(ctx, prescriptionID)
		if err != nil {
			return notFound(err, "prescription", prescriptionID)
		}
		if p.Status != models.PrescriptionPending {
			return &models.ConflictError{Entity: "prescription", ID: p.ID}
		}
		o, err := s.store.Orders.GetOrderForUpdate(ctx, p.OrderID)
		if err != nil {
			return notFound(err, "order", p.OrderID)
		}
		if o.Status != models.OrderStatusWaitingApproval {
			return &models.ConflictError{Entity: "order", ID: o.ID}
		}

		now := s.now()
		p.VerifiedBy = &actor.ID
		p.VerifiedAt = &now
		p.UpdatedAt = now
		o.UpdatedAt = now

		if approve {
			p.Status = models.PrescriptionApproved
			o.Status = models.OrderStatusPending
			o.ApprovedBy = &actor.ID
			o.ApprovedAt = &now
		} else {
			p.Status = models.PrescriptionRejected
			p.RejectionReason = reason
			o.Status = models.OrderStatusRejected
			o.CancelReason = reason
			if err := releaseStockForOrder(ctx, s.store, o.ID); err != nil {
				return err
			}
		}

		if err := s.store.Prescriptions.UpdatePrescription(ctx, p); err != nil {
			return err
		}
		if err := s.store.Orders.UpdateOrder(ctx, o); err != nil {
			return err
		}
		prescription = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return prescription, nil
}

// Get returns one prescription, visible to verifiers and the owning buyer.
func (s *PrescriptionService) Get(ctx context.Context, actor models.Actor, prescriptionID int64) (*models.Prescription, error) {
	p, err := s.store.Prescriptions.GetPrescription(ctx, prescriptionID)
	if err != nil {
		return nil, notFound(err, "prescription", prescriptionID)
	}
	if canVerifyPrescription(actor.Role) || actor.Role == models.RoleCashier {
		return p, nil
	}
	o, err := s.store.Orders.GetOrder(ctx, p.OrderID)
	if err != nil {
		return nil, notFound(err, "order", p.OrderID)
	}
	if actor.Role == models.RoleBuyer && o.UserID == actor.ID {
		return p, nil
	}
	return nil, &models.UnauthorizedError{Actor: actor, Action: "prescription.view"}
}

// List returns prescriptions scoped by role, optionally narrowed to one
// review state. The pending queue is the pharmacist's worklist.
func (s *PrescriptionService) List(ctx context.Context, actor models.Actor, status *models.PrescriptionStatus) ([]models.Prescription, error) {
	f := repository.PrescriptionFilter{Status: status}
	switch actor.Role {
	case models.RoleBuyer:
		f.OrderUserID = &actor.ID
	case models.RolePharmacist, models.RoleAdmin, models.RoleCashier:
		// unrestricted
	default:
		return nil, &models.UnauthorizedError{Actor: actor, Action: "prescription.list"}
	}
	return s.store.Prescriptions.ListPrescriptions(ctx, f)
}

// releaseStockForOrder returns every line quantity of an order to the
// shelf. Shared by cancellation and prescription rejection.
func releaseStockForOrder(ctx context.Context, store *repository.Store, orderID int64) error {
	items, err := store.Orders.OrderItems(ctx, orderID)
	if err != nil {
		return err
	}
	for _, it := range items {
		if err := store.Products.Release(ctx, it.ProductID, it.Quantity); err != nil {
			if err == repository.ErrNotFound {
				continue
			}
			return err
		}
	}
	return nil
}
