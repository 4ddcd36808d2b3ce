package models

import "time"

// PaymentState is the state of a single proof-of-payment submission.
type PaymentState string

const (
	PaymentPending  PaymentState = "pending"
	PaymentVerified PaymentState = "verified"
	PaymentRejected PaymentState = "rejected"
)

// Payment is the model for the 'payments' table. An order may hold many
// rows (resubmissions after rejection) but at most one pending and at
// most one verified at any time.
type Payment struct {
	ID            int64        `json:"id" db:"id"`
	OrderID       int64        `json:"orderId" db:"order_id"`
	PaymentNumber string       `json:"paymentNumber" db:"payment_number"`
	Amount        float64      `json:"amount" db:"amount"`
	Method        string       `json:"method" db:"method"`
	ProofRef      string       `json:"proofRef" db:"payment_proof"`
	Status        PaymentState `json:"status" db:"status"`
	Notes         *string      `json:"notes,omitempty" db:"notes"`
	VerifiedBy    *int64       `json:"verifiedBy,omitempty" db:"verified_by"`
	VerifiedAt    *time.Time   `json:"verifiedAt,omitempty" db:"verified_at"`
	CreatedAt     time.Time    `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time    `json:"updatedAt" db:"updated_at"`
}
