package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/haloapotek/apotek-api/internal/models"
	"github.com/haloapotek/apotek-api/internal/service"
)

// Checkout handles POST /v1/orders.
func (h *Handlers) Checkout(c *gin.Context) {
	var input service.CheckoutInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}
	order, err := h.Services.Orders.Checkout(c.Request.Context(), actor(c), input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"order": order})
}

// ListOrders handles GET /v1/orders, scoped by role. Repeated ?status=
// parameters narrow the listing.
func (h *Handlers) ListOrders(c *gin.Context) {
	var status []models.OrderStatus
	for _, s := range c.QueryArray("status") {
		status = append(status, models.OrderStatus(s))
	}
	orders, err := h.Services.Orders.List(c.Request.Context(), actor(c), status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

// GetOrder handles GET /v1/orders/:id.
func (h *Handlers) GetOrder(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	order, err := h.Services.Orders.Get(c.Request.Context(), actor(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order})
}

type cancelOrderInput struct {
	Reason string `json:"reason"`
}

// CancelOrder handles POST /v1/orders/:id/cancel.
func (h *Handlers) CancelOrder(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var input cancelOrderInput
	if err := c.ShouldBindJSON(&input); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}
	order, err := h.Services.Orders.Cancel(c.Request.Context(), actor(c), id, input.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order})
}

// ProcessOrder handles POST /v1/staff/orders/:id/process.
func (h *Handlers) ProcessOrder(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	order, err := h.Services.Orders.Process(c.Request.Context(), actor(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order})
}

// CompleteOrder handles POST /v1/orders/:id/complete.
func (h *Handlers) CompleteOrder(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	order, err := h.Services.Orders.Complete(c.Request.Context(), actor(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order})
}

// OrderInvoice handles GET /v1/orders/:id/invoice.
func (h *Handlers) OrderInvoice(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	invoice, err := h.Services.Orders.Invoice(c.Request.Context(), actor(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"invoice": invoice})
}
