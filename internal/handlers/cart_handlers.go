package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type addToCartInput struct {
	ProductID int64 `json:"productId" binding:"required"`
	Quantity  int   `json:"quantity" binding:"required,gt=0"`
}

// AddToCart handles POST /v1/cart/items.
func (h *Handlers) AddToCart(c *gin.Context) {
	var input addToCartInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}
	view, err := h.Services.Carts.AddItem(c.Request.Context(), actor(c), input.ProductID, input.Quantity)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cart": view})
}

type updateCartItemInput struct {
	Quantity int `json:"quantity" binding:"gte=0"`
}

// UpdateCartItem handles PUT /v1/cart/items/:productId. Quantity zero
// removes the line.
func (h *Handlers) UpdateCartItem(c *gin.Context) {
	productID, ok := idParam(c, "productId")
	if !ok {
		return
	}
	var input updateCartItemInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}
	view, err := h.Services.Carts.UpdateItem(c.Request.Context(), actor(c), productID, input.Quantity)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cart": view})
}

// RemoveCartItem handles DELETE /v1/cart/items/:productId.
func (h *Handlers) RemoveCartItem(c *gin.Context) {
	productID, ok := idParam(c, "productId")
	if !ok {
		return
	}
	view, err := h.Services.Carts.RemoveItem(c.Request.Context(), actor(c), productID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cart": view})
}

// GetCart handles GET /v1/cart.
func (h *Handlers) GetCart(c *gin.Context) {
	view, err := h.Services.Carts.Get(c.Request.Context(), actor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cart": view})
}

// ClearCart handles DELETE /v1/cart.
func (h *Handlers) ClearCart(c *gin.Context) {
	if err := h.Services.Carts.Clear(c.Request.Context(), actor(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Cart cleared"})
}
