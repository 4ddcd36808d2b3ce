package service

import (
	"context"
	"time"

	"github.com/haloapotek/apotek-api/internal/models"
	"github.com/haloapotek/apotek-api/internal/repository"
)

// DeliveryService runs the last mile: dispatch, the driver's strict
// status ladder, proof-of-delivery evidence, and public tracking.
type DeliveryService struct {
	store *repository.Store
	now   func() time.Time
}

func NewDeliveryService(store *repository.Store) *DeliveryService {
	return &DeliveryService{store: store, now: time.Now}
}

// AssignDriver dispatches a processing, paid order: the delivery row is
// created (or reset after a cancelled run) and the order moves to
// shipped. The driver may be named up front or left open for the
// available-deliveries feed. Cashier or admin only.
func (s *DeliveryService) AssignDriver(ctx context.Context, actor models.Actor, orderID int64, driverID *int64, notes *string) (*models.Delivery, error) {
	if !isStaff(actor.Role) {
		return nil, &models.UnauthorizedError{Actor: actor, Action: "delivery.assign"}
	}

	var delivery *models.Delivery
	err := s.store.Tx.WithTransaction(ctx, func(ctx context.Context) error {
		o, err := s.store.Orders.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return notFound(err, "order", orderID)
		}
		if o.Status != models.OrderStatusProcessing {
			return &models.InvalidTransitionError{
				Entity: "order", From: string(o.Status), To: string(models.OrderStatusShipped),
			}
		}
		if o.PaymentStatus != models.PaymentStatusPaid {
			return &models.ConflictError{Entity: "order", ID: o.ID}
		}
		if driverID != nil {
			driver, err := s.store.Users.GetUser(ctx, *driverID)
			if err != nil {
				return notFound(err, "driver", *driverID)
			}
			if driver.Role != models.RoleDriver || !driver.IsActive {
				return &models.ValidationError{Field: "driverId", Reason: "not an active driver"}
			}
		}

		now := s.now()
		existing, err := s.store.Deliveries.GetDeliveryByOrder(ctx, o.ID)
		switch {
		case err == nil:
			// redispatch after a cancelled run, same tracking number
			existing.DriverID = driverID
			existing.Status = models.DeliveryPending
			existing.Notes = notes
			existing.AcceptedAt = nil
			existing.PickedUpAt = nil
			existing.UpdatedAt = now
			if err := s.store.Deliveries.UpdateDelivery(ctx, existing); err != nil {
				return err
			}
			delivery = existing
		case err == repository.ErrNotFound:
			delivery = &models.Delivery{
				OrderID:        o.ID,
				DriverID:       driverID,
				TrackingNumber: newTrackingNumber(now),
				Status:         models.DeliveryPending,
				Address:        o.ShippingAddress,
				Notes:          notes,
				CreatedAt:      now,
				UpdatedAt:      now,
			}
			if err := s.store.Deliveries.CreateDelivery(ctx, delivery); err != nil {
				return err
			}
		default:
			return err
		}

		o.Status = models.OrderStatusShipped
		o.UpdatedAt = now
		return s.store.Orders.UpdateOrder(ctx, o)
	})
	if err != nil {
		return nil, err
	}
	return delivery, nil
}

// Accept claims a pending delivery for the calling driver. A delivery
// pre-assigned to another driver cannot be claimed.
func (s *DeliveryService) Accept(ctx context.Context, actor models.Actor, deliveryID int64) (*models.Delivery, error) {
	if actor.Role != models.RoleDriver {
		return nil, &models.UnauthorizedError{Actor: actor, Action: "delivery.accept"}
	}

	var delivery *models.Delivery
	err := s.store.Tx.WithTransaction(ctx, func(ctx context.Context) error {
		d, err := s.store.Deliveries.GetDeliveryForUpdate(ctx, deliveryID)
		if err != nil {
			return notFound(err, "delivery", deliveryID)
		}
		if d.Status != models.DeliveryPending {
			return &models.ConflictError{Entity: "delivery", ID: d.ID}
		}
		if d.DriverID != nil && *d.DriverID != actor.ID {
			return &models.UnauthorizedError{Actor: actor, Action: "delivery.accept"}
		}

		now := s.now()
		d.DriverID = &actor.ID
		d.Status = models.DeliveryAccepted
		d.AcceptedAt = &now
		d.UpdatedAt = now
		if err := s.store.Deliveries.UpdateDelivery(ctx, d); err != nil {
			return err
		}
		delivery = d
		return nil
	})
	if err != nil {
		return nil, err
	}
	return delivery, nil
}

// Evidence is the proof-of-delivery payload. The delivered transition
// needs the receiver's identity plus a signature or a photo.
type Evidence struct {
	ReceiverName  string  `json:"receiverName" binding:"required"`
	ReceiverPhone string  `json:"receiverPhone" binding:"required"`
	SignatureRef  *string `json:"signatureRef"`
	PhotoRef      *string `json:"photoRef"`
}

func (d *DeliveryService) applyEvidence(dl *models.Delivery, ev Evidence, now time.Time) {
	dl.ReceiverName = &ev.ReceiverName
	dl.ReceiverPhone = &ev.ReceiverPhone
	if ev.SignatureRef != nil {
		dl.SignatureRef = ev.SignatureRef
	}
	if ev.PhotoRef != nil {
		dl.PhotoRef = ev.PhotoRef
	}
	dl.EvidenceUploadedAt = &now
}

// UpdateStatus moves the assigned driver's delivery along the strict
// ladder. delivered requires evidence in the same call and completes
// the order leg; cancelled returns the order to processing for
// redispatch.
func (s *DeliveryService) UpdateStatus(ctx context.Context, actor models.Actor, deliveryID int64, to models.DeliveryStatus, evidence *Evidence) (*models.Delivery, error) {
	var delivery *models.Delivery
	err := s.store.Tx.WithTransaction(ctx, func(ctx context.Context) error {
		d, err := s.store.Deliveries.GetDeliveryForUpdate(ctx, deliveryID)
		if err != nil {
			return notFound(err, "delivery", deliveryID)
		}
		if err := s.requireAssignedDriver(actor, d, "delivery.update"); err != nil {
			return err
		}
		if !d.Status.CanTransitionTo(to) {
			return &models.InvalidTransitionError{
				Entity: "delivery", From: string(d.Status), To: string(to),
			}
		}

		now := s.now()
		switch to {
		case models.DeliveryAccepted:
			d.AcceptedAt = &now
		case models.DeliveryPickedUp:
			d.PickedUpAt = &now
		case models.DeliveryDelivered:
			if evidence != nil {
				s.applyEvidence(d, *evidence, now)
			}
			if !d.HasEvidence() {
				return &models.ValidationError{Field: "evidence", Reason: "receiver identity and a signature or photo are required"}
			}
			d.DeliveredAt = &now
			o, err := s.store.Orders.GetOrderForUpdate(ctx, d.OrderID)
			if err != nil {
				return notFound(err, "order", d.OrderID)
			}
			if o.Status != models.OrderStatusShipped {
				return &models.ConflictError{Entity: "order", ID: o.ID}
			}
			o.Status = models.OrderStatusDelivered
			o.DeliveredAt = &now
			o.UpdatedAt = now
			if err := s.store.Orders.UpdateOrder(ctx, o); err != nil {
				return err
			}
		case models.DeliveryCancelled:
			o, err := s.store.Orders.GetOrderForUpdate(ctx, d.OrderID)
			if err != nil {
				return notFound(err, "order", d.OrderID)
			}
			if o.Status == models.OrderStatusShipped {
				o.Status = models.OrderStatusProcessing
				o.UpdatedAt = now
				if err := s.store.Orders.UpdateOrder(ctx, o); err != nil {
					return err
				}
			}
		}

		d.Status = to
		d.UpdatedAt = now
		if err := s.store.Deliveries.UpdateDelivery(ctx, d); err != nil {
			return err
		}
		delivery = d
		return nil
	})
	if err != nil {
		return nil, err
	}
	return delivery, nil
}

// UploadEvidence records proof of delivery ahead of the delivered
// transition, while the delivery is still in transit.
func (s *DeliveryService) UploadEvidence(ctx context.Context, actor models.Actor, deliveryID int64, ev Evidence) (*models.Delivery, error) {
	var delivery *models.Delivery
	err := s.store.Tx.WithTransaction(ctx, func(ctx context.Context) error {
		d, err := s.store.Deliveries.GetDeliveryForUpdate(ctx, deliveryID)
		if err != nil {
			return notFound(err, "delivery", deliveryID)
		}
		if err := s.requireAssignedDriver(actor, d, "delivery.evidence"); err != nil {
			return err
		}
		if !d.Status.InTransit() {
			return &models.ConflictError{Entity: "delivery", ID: d.ID}
		}

		now := s.now()
		s.applyEvidence(d, ev, now)
		d.UpdatedAt = now
		if err := s.store.Deliveries.UpdateDelivery(ctx, d); err != nil {
			return err
		}
		delivery = d
		return nil
	})
	if err != nil {
		return nil, err
	}
	return delivery, nil
}

// UpdateLocation records best-effort driver telemetry while in transit.
func (s *DeliveryService) UpdateLocation(ctx context.Context, actor models.Actor, deliveryID int64, lat, lon float64) error {
	if lat < -90 || lat > 90 {
		return &models.ValidationError{Field: "latitude", Reason: "must be between -90 and 90"}
	}
	if lon < -180 || lon > 180 {
		return &models.ValidationError{Field: "longitude", Reason: "must be between -180 and 180"}
	}

	return s.store.Tx.WithTransaction(ctx, func(ctx context.Context) error {
		d, err := s.store.Deliveries.GetDeliveryForUpdate(ctx, deliveryID)
		if err != nil {
			return notFound(err, "delivery", deliveryID)
		}
		if err := s.requireAssignedDriver(actor, d, "delivery.location"); err != nil {
			return err
		}
		if !d.Status.InTransit() {
			return &models.ConflictError{Entity: "delivery", ID: d.ID}
		}

		now := s.now()
		d.CurrentLatitude = &lat
		d.CurrentLongitude = &lon
		d.LocationUpdatedAt = &now
		d.UpdatedAt = now
		return s.store.Deliveries.UpdateDelivery(ctx, d)
	})
}

func (s *DeliveryService) requireAssignedDriver(actor models.Actor, d *models.Delivery, action string) error {
	if actor.Role != models.RoleDriver || d.DriverID == nil || *d.DriverID != actor.ID {
		return &models.UnauthorizedError{Actor: actor, Action: action}
	}
	return nil
}

// TimelineEvent is one milestone in a delivery's history.
type TimelineEvent struct {
	Status string    `json:"status"`
	At     time.Time `json:"at"`
}

// TrackingView is the public tracking payload: no buyer or driver
// identity, just the delivery's progress.
type TrackingView struct {
	TrackingNumber string                `json:"trackingNumber"`
	OrderNumber    string                `json:"orderNumber"`
	Status         models.DeliveryStatus `json:"status"`
	Timeline       []TimelineEvent       `json:"timeline"`
}

// Track looks a delivery up by tracking number. No authentication; the
// number itself is the capability.
func (s *DeliveryService) Track(ctx context.Context, trackingNumber string) (*TrackingView, error) {
	d, err := s.store.Deliveries.GetDeliveryByTracking(ctx, trackingNumber)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, &models.NotFoundError{Entity: "delivery", ID: 0}
		}
		return nil, err
	}
	o, err := s.store.Orders.GetOrder(ctx, d.OrderID)
	if err != nil {
		return nil, notFound(err, "order", d.OrderID)
	}

	view := &TrackingView{
		TrackingNumber: d.TrackingNumber,
		OrderNumber:    o.OrderNumber,
		Status:         d.Status,
		Timeline: []TimelineEvent{
			{Status: "dispatched", At: d.CreatedAt},
		},
	}
	if d.AcceptedAt != nil {
		view.Timeline = append(view.Timeline, TimelineEvent{Status: string(models.DeliveryAccepted), At: *d.AcceptedAt})
	}
	if d.PickedUpAt != nil {
		view.Timeline = append(view.Timeline, TimelineEvent{Status: string(models.DeliveryPickedUp), At: *d.PickedUpAt})
	}
	if d.DeliveredAt != nil {
		view.Timeline = append(view.Timeline, TimelineEvent{Status: string(models.DeliveryDelivered), At: *d.DeliveredAt})
	}
	return view, nil
}

// Available lists pending, unassigned deliveries for drivers to claim.
func (s *DeliveryService) Available(ctx context.Context, actor models.Actor) ([]models.Delivery, error) {
	if actor.Role != models.RoleDriver {
		return nil, &models.UnauthorizedError{Actor: actor, Action: "delivery.available"}
	}
	return s.store.Deliveries.ListDeliveries(ctx, repository.DeliveryFilter{
		UnassignedOnly: true,
		Status:         []models.DeliveryStatus{models.DeliveryPending},
	})
}

// Get returns one delivery, scoped by role: the assigned driver, the
// order's buyer, and staff may see it.
func (s *DeliveryService) Get(ctx context.Context, actor models.Actor, deliveryID int64) (*models.Delivery, error) {
	d, err := s.store.Deliveries.GetDelivery(ctx, deliveryID)
	if err != nil {
		return nil, notFound(err, "delivery", deliveryID)
	}
	if isStaff(actor.Role) || actor.Role == models.RolePharmacist {
		return d, nil
	}
	if actor.Role == models.RoleDriver && d.DriverID != nil && *d.DriverID == actor.ID {
		return d, nil
	}
	if actor.Role == models.RoleBuyer {
		o, err := s.store.Orders.GetOrder(ctx, d.OrderID)
		if err != nil {
			return nil, notFound(err, "order", d.OrderID)
		}
		if o.UserID == actor.ID {
			return d, nil
		}
	}
	return nil, &models.UnauthorizedError{Actor: actor, Action: "delivery.view"}
}

// List returns deliveries scoped by role, optionally narrowed by status.
func (s *DeliveryService) List(ctx context.Context, actor models.Actor, status []models.DeliveryStatus) ([]models.Delivery, error) {
	f := repository.DeliveryFilter{Status: status}
	switch actor.Role {
	case models.RoleDriver:
		f.DriverID = &actor.ID
	case models.RoleBuyer:
		f.OrderUserID = &actor.ID
	case models.RoleAdmin, models.RoleCashier:
		// unrestricted
	default:
		return nil, &models.UnauthorizedError{Actor: actor, Action: "delivery.list"}
	}
	return s.store.Deliveries.ListDeliveries(ctx, f)
}
