package models

import "time"

// DeliveryStatus is the state of the physical delivery leg.
type DeliveryStatus string

const (
	DeliveryPending    DeliveryStatus = "pending"
	DeliveryAccepted   DeliveryStatus = "accepted"
	DeliveryPickedUp   DeliveryStatus = "picked_up"
	DeliveryOnDelivery DeliveryStatus = "on_delivery"
	DeliveryDelivered  DeliveryStatus = "delivered"
	DeliveryCancelled  DeliveryStatus = "cancelled"
)

// deliveryTransitions is the strict valid-transition table. Anything
// not listed fails with an InvalidTransitionError.
var deliveryTransitions = map[DeliveryStatus][]DeliveryStatus{
	DeliveryPending:    {DeliveryAccepted},
	DeliveryAccepted:   {DeliveryPickedUp, DeliveryCancelled},
	DeliveryPickedUp:   {DeliveryOnDelivery, DeliveryCancelled},
	DeliveryOnDelivery: {DeliveryDelivered, DeliveryCancelled},
	DeliveryDelivered:  {},
	DeliveryCancelled:  {},
}

// CanTransitionTo reports whether the transition table allows s -> target.
func (s DeliveryStatus) CanTransitionTo(target DeliveryStatus) bool {
	for _, next := range deliveryTransitions[s] {
		if next == target {
			return true
		}
	}
	return false
}

// InTransit reports whether the driver is actively carrying the order,
// the only window in which location updates are accepted.
func (s DeliveryStatus) InTransit() bool {
	switch s {
	case DeliveryAccepted, DeliveryPickedUp, DeliveryOnDelivery:
		return true
	}
	return false
}

// Delivery is the model for the 'deliveries' table. One per order.
type Delivery struct {
	ID             int64          `json:"id" db:"id"`
	OrderID        int64          `json:"orderId" db:"order_id"`
	DriverID       *int64         `json:"driverId,omitempty" db:"driver_id"`
	TrackingNumber string         `json:"trackingNumber" db:"tracking_number"`
	Status         DeliveryStatus `json:"status" db:"status"`
	Address        string         `json:"address" db:"delivery_address"`
	Notes          *string        `json:"notes,omitempty" db:"notes"`

	// Proof-of-delivery evidence, required for the delivered transition
	SignatureRef  *string `json:"signatureRef,omitempty" db:"signature_image"`
	PhotoRef      *string `json:"photoRef,omitempty" db:"delivery_photo"`
	ReceiverName  *string `json:"receiverName,omitempty" db:"receiver_name"`
	ReceiverPhone *string `json:"receiverPhone,omitempty" db:"receiver_phone"`

	// Best-effort live telemetry
	CurrentLatitude   *float64   `json:"currentLatitude,omitempty" db:"current_latitude"`
	CurrentLongitude  *float64   `json:"currentLongitude,omitempty" db:"current_longitude"`
	LocationUpdatedAt *time.Time `json:"locationUpdatedAt,omitempty" db:"location_updated_at"`

	AcceptedAt         *time.Time `json:"acceptedAt,omitempty" db:"accepted_at"`
	PickedUpAt         *time.Time `json:"pickedUpAt,omitempty" db:"picked_up_at"`
	DeliveredAt        *time.Time `json:"deliveredAt,omitempty" db:"delivered_at"`
	EvidenceUploadedAt *time.Time `json:"evidenceUploadedAt,omitempty" db:"evidence_uploaded_at"`

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// HasEvidence reports whether proof of delivery has been recorded:
// receiver identity plus a signature or a photo.
func (d *Delivery) HasEvidence() bool {
	if d.ReceiverName == nil || *d.ReceiverName == "" {
		return false
	}
	if d.ReceiverPhone == nil || *d.ReceiverPhone == "" {
		return false
	}
	return (d.SignatureRef != nil && *d.SignatureRef != "") ||
		(d.PhotoRef != nil && *d.PhotoRef != "")
}
