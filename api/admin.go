package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mlevkov/expertbooking/internal/service/booking"
)

// AdminHandler exposes the sweep trigger for external schedulers. The
// in-process worker ticker covers normal operation; this endpoint lets a
// cron service drive the same sweep.
type AdminHandler struct {
	service booking.BookingUseCase
	secret  string
}

func NewAdminHandler(service booking.BookingUseCase, secret string) *AdminHandler {
	return &AdminHandler{service: service, secret: secret}
}

func (h *AdminHandler) Register(router *gin.RouterGroup) {
	router.POST("/sweep", h.sweep)
}

func (h *AdminHandler) sweep(c *gin.Context) {
	token, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
	if !ok || h.secret == "" || subtle.ConstantTimeCompare([]byte(token), []byte(h.secret)) != 1 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	cancelled, err := h.service.SweepExpired(c.Request.Context(), time.Now())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"cancelled_count": cancelled})
}
