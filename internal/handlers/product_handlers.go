package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/haloapotek/apotek-api/internal/service"
)

// ListProducts handles GET /v1/products. Public; staff may pass
// ?include_inactive=true to see the whole catalog.
func (h *Handlers) ListProducts(c *gin.Context) {
	input := service.ListInput{
		Search:          c.Query("search"),
		Category:        c.Query("category"),
		IncludeInactive: c.Query("include_inactive") == "true",
	}
	if v := c.Query("requires_prescription"); v != "" {
		rx := v == "true"
		input.RequiresPrescription = &rx
	}

	products, err := h.Services.Products.List(c.Request.Context(), actor(c), input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products})
}

// GetProduct handles GET /v1/products/:id.
func (h *Handlers) GetProduct(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	product, err := h.Services.Products.Get(c.Request.Context(), actor(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"product": product})
}

// CreateProduct handles POST /v1/admin/products.
func (h *Handlers) CreateProduct(c *gin.Context) {
	var input service.ProductInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}
	product, err := h.Services.Products.Create(c.Request.Context(), actor(c), input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"product": product})
}

// UpdateProduct handles PUT /v1/admin/products/:id.
func (h *Handlers) UpdateProduct(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var input service.ProductInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}
	product, err := h.Services.Products.Update(c.Request.Context(), actor(c), id, input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"product": product})
}

type restockInput struct {
	Quantity int `json:"quantity" binding:"required,gt=0"`
}

// RestockProduct handles POST /v1/admin/products/:id/restock.
func (h *Handlers) RestockProduct(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var input restockInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}
	product, err := h.Services.Products.Restock(c.Request.Context(), actor(c), id, input.Quantity)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"product": product})
}

// DeleteProduct handles DELETE /v1/admin/products/:id.
func (h *Handlers) DeleteProduct(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.Services.Products.Delete(c.Request.Context(), actor(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Product deleted"})
}
