package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/haloapotek/apotek-api/internal/models"
)

type uploadPrescriptionInput struct {
	ImageRef    string  `json:"imageRef" binding:"required"`
	DoctorNotes *string `json:"doctorNotes"`
}

// UploadPrescription handles POST /v1/orders/:id/prescriptions.
func (h *Handlers) UploadPrescription(c *gin.Context) {
	orderID, ok := idParam(c, "id")
	if !ok {
		return
	}
	var input uploadPrescriptionInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}
	prescription, err := h.Services.Prescriptions.Upload(c.Request.Context(), actor(c), orderID, input.ImageRef, input.DoctorNotes)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"prescription": prescription})
}

type verifyPrescriptionInput struct {
	Approve bool    `json:"approve"`
	Reason  *string `json:"reason"`
}

// VerifyPrescription handles POST /v1/pharmacy/prescriptions/:id/verify.
func (h *Handlers) VerifyPrescription(c *gin.Context) {
	prescriptionID, ok := idParam(c, "id")
	if !ok {
		return
	}
	var input verifyPrescriptionInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}
	prescription, err := h.Services.Prescriptions.Verify(c.Request.Context(), actor(c), prescriptionID, input.Approve, input.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"prescription": prescription})
}

// ListPrescriptions handles GET /v1/prescriptions, scoped by role.
// ?status=pending is the pharmacist's review queue.
func (h *Handlers) ListPrescriptions(c *gin.Context) {
	var status *models.PrescriptionStatus
	if v := c.Query("status"); v != "" {
		st := models.PrescriptionStatus(v)
		status = &st
	}
	prescriptions, err := h.Services.Prescriptions.List(c.Request.Context(), actor(c), status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"prescriptions": prescriptions})
}

// GetPrescription handles GET /v1/prescriptions/:id.
func (h *Handlers) GetPrescription(c *gin.Context) {
	prescriptionID, ok := idParam(c, "id")
	if !ok {
		return
	}
	prescription, err := h.Services.Prescriptions.Get(c.Request.Context(), actor(c), prescriptionID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"prescription": prescription})
}
