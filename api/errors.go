package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mlevkov/expertbooking/internal/domain"
)

// writeError maps the domain error taxonomy onto HTTP statuses. Anything
// unrecognized is an internal error and its detail stays out of the
// response.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrInvalidState):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, domain.ErrSlotUnavailable):
		c.JSON(http.StatusConflict, gin.H{"error": "slot unavailable"})
	case errors.Is(err, domain.ErrAlreadyResolved):
		c.JSON(http.StatusConflict, gin.H{"error": "booking already resolved"})
	case errors.Is(err, domain.ErrProcessor):
		c.JSON(http.StatusBadGateway, gin.H{"error": "payment could not be processed"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
