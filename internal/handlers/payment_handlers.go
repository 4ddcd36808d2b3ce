package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/haloapotek/apotek-api/internal/models"
	"github.com/haloapotek/apotek-api/internal/service"
)

// SubmitPaymentProof handles POST /v1/orders/:id/payments.
func (h *Handlers) SubmitPaymentProof(c *gin.Context) {
	orderID, ok := idParam(c, "id")
	if !ok {
		return
	}
	var input service.SubmitProofInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}
	payment, err := h.Services.Payments.SubmitProof(c.Request.Context(), actor(c), orderID, input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"payment": payment})
}

type verifyPaymentInput struct {
	Approve bool    `json:"approve"`
	Notes   *string `json:"notes"`
}

// VerifyPayment handles POST /v1/staff/payments/:id/verify.
func (h *Handlers) VerifyPayment(c *gin.Context) {
	paymentID, ok := idParam(c, "id")
	if !ok {
		return
	}
	var input verifyPaymentInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}
	payment, err := h.Services.Payments.Verify(c.Request.Context(), actor(c), paymentID, input.Approve, input.Notes)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payment": payment})
}

// ListPayments handles GET /v1/payments, scoped by role. ?status=
// narrows to one submission state, e.g. the cashier's pending queue.
func (h *Handlers) ListPayments(c *gin.Context) {
	var status *models.PaymentState
	if v := c.Query("status"); v != "" {
		st := models.PaymentState(v)
		status = &st
	}
	payments, err := h.Services.Payments.List(c.Request.Context(), actor(c), status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payments": payments})
}

// OrderPayments handles GET /v1/orders/:id/payments.
func (h *Handlers) OrderPayments(c *gin.Context) {
	orderID, ok := idParam(c, "id")
	if !ok {
		return
	}
	payments, err := h.Services.Payments.ListByOrder(c.Request.Context(), actor(c), orderID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payments": payments})
}
