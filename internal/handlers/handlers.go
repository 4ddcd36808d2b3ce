package handlers

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/haloapotek/apotek-api/internal/middleware"
	"github.com/haloapotek/apotek-api/internal/models"
	"github.com/haloapotek/apotek-api/internal/service"
)

// Handlers holds the dependencies shared by every HTTP handler.
type Handlers struct {
	Services *service.Services
}

func New(services *service.Services) *Handlers {
	return &Handlers{Services: services}
}

// actor reads the authenticated caller that AuthMiddleware stored in
// the gin context.
func actor(c *gin.Context) models.Actor {
	a := models.Actor{}
	if v, ok := c.Get(middleware.ContextUserID); ok {
		if id, ok := v.(int64); ok {
			a.ID = id
		}
	}
	if v, ok := c.Get(middleware.ContextUserRole); ok {
		if role, ok := v.(models.Role); ok {
			a.Role = role
		}
	}
	return a
}

// idParam parses a numeric path parameter, responding 400 on garbage.
func idParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name})
		return 0, false
	}
	return id, true
}

// respondError maps domain errors onto HTTP status codes. Anything
// unrecognized is a 500 with the detail kept out of the response.
func respondError(c *gin.Context, err error) {
	var (
		notFoundErr     *models.NotFoundError
		unauthorizedErr *models.UnauthorizedError
		stockErr        *models.InsufficientStockError
		conflictErr     *models.ConflictError
		transitionErr   *models.InvalidTransitionError
		validationErr   *models.ValidationError
	)
	switch {
	case errors.Is(err, models.ErrEmptyCart):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.As(err, &notFoundErr):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.As(err, &unauthorizedErr):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.As(err, &stockErr), errors.As(err, &conflictErr):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.As(err, &transitionErr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		log.Printf("internal error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
