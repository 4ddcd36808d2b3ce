package service

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Document numbers follow PREFIX-YYYYMMDD-SUFFIX where the suffix is
// eight uppercase hex characters from a fresh UUID, 4 billion values
// per prefix and day. Uniqueness is backed by the database's unique
// keys; a collision surfaces as ErrDuplicate.

func numberSuffix() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:8])
}

func newDocumentNumber(prefix string, t time.Time) string {
	return prefix + "-" + t.Format("20060102") + "-" + numberSuffix()
}

func newOrderNumber(t time.Time) string    { return newDocumentNumber("ORD", t) }
func newPaymentNumber(t time.Time) string  { return newDocumentNumber("PAY", t) }
func newTrackingNumber(t time.Time) string { return newDocumentNumber("TRK", t) }

// invoiceNumber derives the invoice identifier from the order number so
// the two always correlate.
func invoiceNumber(orderNumber string) string {
	return "INV-" + strings.TrimPrefix(orderNumber, "ORD-")
}
