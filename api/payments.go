package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mlevkov/expertbooking/internal/service/payment"
)

type PaymentHandler struct {
	service payment.PaymentUseCase
}

type createHoldRequest struct {
	BookingToken string `json:"booking_token"`
	AmountCents  int64  `json:"amount_cents"`
	Currency     string `json:"currency"`
}

func NewPaymentHandler(service payment.PaymentUseCase) *PaymentHandler {
	return &PaymentHandler{service: service}
}

func (h *PaymentHandler) Register(router *gin.RouterGroup) {
	router.POST("/holds", h.createHold)
}

func (h *PaymentHandler) createHold(c *gin.Context) {
	var req createHoldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	hold, err := h.service.Authorize(c.Request.Context(), req.BookingToken, req.AmountCents, req.Currency)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"hold_reference": hold.ID,
		"client_secret":  hold.ClientSecret,
	})
}
