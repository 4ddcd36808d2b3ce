package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/haloapotek/apotek-api/internal/models"
	"github.com/haloapotek/apotek-api/internal/service"
)

type assignDriverInput struct {
	DriverID *int64  `json:"driverId"`
	Notes    *string `json:"notes"`
}

// AssignDriver handles POST /v1/staff/orders/:id/assign. Leaving
// driverId empty publishes the delivery to the available feed.
func (h *Handlers) AssignDriver(c *gin.Context) {
	orderID, ok := idParam(c, "id")
	if !ok {
		return
	}
	var input assignDriverInput
	if err := c.ShouldBindJSON(&input); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}
	delivery, err := h.Services.Deliveries.AssignDriver(c.Request.Context(), actor(c), orderID, input.DriverID, input.Notes)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"delivery": delivery})
}

// AvailableDeliveries handles GET /v1/driver/deliveries/available.
func (h *Handlers) AvailableDeliveries(c *gin.Context) {
	deliveries, err := h.Services.Deliveries.Available(c.Request.Context(), actor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deliveries": deliveries})
}

// AcceptDelivery handles POST /v1/driver/deliveries/:id/accept.
func (h *Handlers) AcceptDelivery(c *gin.Context) {
	deliveryID, ok := idParam(c, "id")
	if !ok {
		return
	}
	delivery, err := h.Services.Deliveries.Accept(c.Request.Context(), actor(c), deliveryID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"delivery": delivery})
}

type updateDeliveryStatusInput struct {
	Status   string            `json:"status" binding:"required"`
	Evidence *service.Evidence `json:"evidence"`
}

// UpdateDeliveryStatus handles POST /v1/driver/deliveries/:id/status.
// The delivered status must carry evidence in the same request.
func (h *Handlers) UpdateDeliveryStatus(c *gin.Context) {
	deliveryID, ok := idParam(c, "id")
	if !ok {
		return
	}
	var input updateDeliveryStatusInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}
	delivery, err := h.Services.Deliveries.UpdateStatus(c.Request.Context(), actor(c), deliveryID,
		models.DeliveryStatus(input.Status), input.Evidence)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"delivery": delivery})
}

// UploadDeliveryEvidence handles POST /v1/driver/deliveries/:id/evidence.
func (h *Handlers) UploadDeliveryEvidence(c *gin.Context) {
	deliveryID, ok := idParam(c, "id")
	if !ok {
		return
	}
	var input service.Evidence
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}
	delivery, err := h.Services.Deliveries.UploadEvidence(c.Request.Context(), actor(c), deliveryID, input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"delivery": delivery})
}

// Pointers so a binding-level required check does not reject the zero
// value: latitude 0 and longitude 0 are real coordinates. Range checks
// live in the service.
type updateLocationInput struct {
	Latitude  *float64 `json:"latitude" binding:"required"`
	Longitude *float64 `json:"longitude" binding:"required"`
}

// UpdateDeliveryLocation handles POST /v1/driver/deliveries/:id/location.
func (h *Handlers) UpdateDeliveryLocation(c *gin.Context) {
	deliveryID, ok := idParam(c, "id")
	if !ok {
		return
	}
	var input updateLocationInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}
	err := h.Services.Deliveries.UpdateLocation(c.Request.Context(), actor(c), deliveryID,
		*input.Latitude, *input.Longitude)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Location updated"})
}

// GetDelivery handles GET /v1/deliveries/:id.
func (h *Handlers) GetDelivery(c *gin.Context) {
	deliveryID, ok := idParam(c, "id")
	if !ok {
		return
	}
	delivery, err := h.Services.Deliveries.Get(c.Request.Context(), actor(c), deliveryID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"delivery": delivery})
}

// ListDeliveries handles GET /v1/deliveries, scoped by role.
func (h *Handlers) ListDeliveries(c *gin.Context) {
	var status []models.DeliveryStatus
	for _, s := range c.QueryArray("status") {
		status = append(status, models.DeliveryStatus(s))
	}
	deliveries, err := h.Services.Deliveries.List(c.Request.Context(), actor(c), status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deliveries": deliveries})
}

// TrackDelivery handles GET /v1/track/:trackingNumber. Public; the
// tracking number itself is the capability.
func (h *Handlers) TrackDelivery(c *gin.Context) {
	trackingNumber := c.Param("trackingNumber")
	if trackingNumber == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Tracking number required"})
		return
	}
	view, err := h.Services.Deliveries.Track(c.Request.Context(), trackingNumber)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tracking": view})
}
