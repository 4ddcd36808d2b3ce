package models

import "time"

// PrescriptionStatus is the review state of one prescription upload.
// Approved and rejected are terminal per submission; a re-upload after
// rejection opens a new review cycle as a new row.
type PrescriptionStatus string

const (
	PrescriptionPending  PrescriptionStatus = "pending"
	PrescriptionApproved PrescriptionStatus = "approved"
	PrescriptionRejected PrescriptionStatus = "rejected"
)

// Prescription is the model for the 'prescriptions' table.
type Prescription struct {
	ID              int64              `json:"id" db:"id"`
	OrderID         int64              `json:"orderId" db:"order_id"`
	ImageRef        string             `json:"imageRef" db:"prescription_image"`
	DoctorNotes     *string            `json:"doctorNotes,omitempty" db:"doctor_notes"`
	Status          PrescriptionStatus `json:"status" db:"status"`
	VerifiedBy      *int64             `json:"verifiedBy,omitempty" db:"verified_by"`
	VerifiedAt      *time.Time         `json:"verifiedAt,omitempty" db:"verified_at"`
	RejectionReason *string            `json:"rejectionReason,omitempty" db:"rejection_reason"`
	CreatedAt       time.Time          `json:"createdAt" db:"created_at"`
	UpdatedAt       time.Time          `json:"updatedAt" db:"updated_at"`
}
