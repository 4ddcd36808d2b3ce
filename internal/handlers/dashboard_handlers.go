package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Dashboard handles GET /v1/dashboard. The counters depend on the
// caller's role.
func (h *Handlers) Dashboard(c *gin.Context) {
	stats, err := h.Services.Dashboard.Stats(c.Request.Context(), actor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stats": stats})
}
