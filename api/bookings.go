package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mlevkov/expertbooking/internal/domain"
	"github.com/mlevkov/expertbooking/internal/service/booking"
)

type BookingHandler struct {
	service booking.BookingUseCase
}

type createBookingRequest struct {
	LearnerID int64  `json:"learner_id"`
	SlotID    int64  `json:"slot_id"`
	SessionID int64  `json:"session_id"`
	Notes     string `json:"notes"`
}

type resolveBookingRequest struct {
	Action string `json:"action"`
	Notes  string `json:"notes"`
	Reason string `json:"reason"`
}

type cancelBookingRequest struct {
	Reason string `json:"reason"`
}

type bookingResponse struct {
	Token         string `json:"token"`
	LearnerID     int64  `json:"learner_id"`
	ExpertID      int64  `json:"expert_id"`
	SlotID        int64  `json:"slot_id"`
	SessionID     int64  `json:"session_id"`
	StartsAt      string `json:"starts_at"`
	EndsAt        string `json:"ends_at"`
	AmountCents   int64  `json:"amount_cents"`
	Currency      string `json:"currency"`
	Status        string `json:"status"`
	PaymentStatus string `json:"payment_status"`
	HeldUntil     string `json:"held_until"`
	Notes         string `json:"notes,omitempty"`
	DeclineReason string `json:"decline_reason,omitempty"`
}

func toBookingResponse(b *domain.Booking) bookingResponse {
	return bookingResponse{
		Token:         b.Token,
		LearnerID:     b.LearnerID,
		ExpertID:      b.ExpertID,
		SlotID:        b.SlotID,
		SessionID:     b.SessionID,
		StartsAt:      b.StartsAt.Format(time.RFC3339),
		EndsAt:        b.EndsAt.Format(time.RFC3339),
		AmountCents:   b.AmountCents,
		Currency:      b.Currency,
		Status:        string(b.Status),
		PaymentStatus: string(b.PaymentStatus),
		HeldUntil:     b.HeldUntil.Format(time.RFC3339),
		Notes:         b.Notes,
		DeclineReason: b.DeclineReason,
	}
}

func NewBookingHandler(service booking.BookingUseCase) *BookingHandler {
	return &BookingHandler{service: service}
}

func (h *BookingHandler) Register(router *gin.RouterGroup) {
	router.POST("/", h.create)
	router.GET("/:token", h.get)
	router.POST("/:token/resolve", h.resolve)
	router.DELETE("/:token", h.cancel)
}

func (h *BookingHandler) create(c *gin.Context) {
	var req createBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	b, err := h.service.Reserve(c.Request.Context(), booking.ReserveInput{
		LearnerID: req.LearnerID,
		SlotID:    req.SlotID,
		SessionID: req.SessionID,
		Notes:     req.Notes,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"booking": toBookingResponse(b)})
}

func (h *BookingHandler) get(c *gin.Context) {
	b, err := h.service.GetByToken(c.Request.Context(), c.Param("token"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"booking": toBookingResponse(b)})
}

func (h *BookingHandler) resolve(c *gin.Context) {
	expertID, err := actorID(c, "X-Expert-ID")
	if err != nil {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}

	var req resolveBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	b, err := h.service.Resolve(c.Request.Context(), booking.ResolveInput{
		Token:    c.Param("token"),
		ExpertID: expertID,
		Action:   booking.ResolveAction(req.Action),
		Notes:    req.Notes,
		Reason:   req.Reason,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"booking": toBookingResponse(b)})
}

func (h *BookingHandler) cancel(c *gin.Context) {
	learnerID, err := actorID(c, "X-Learner-ID")
	if err != nil {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}

	var req cancelBookingRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	b, refunded, err := h.service.Cancel(c.Request.Context(), c.Param("token"), learnerID, req.Reason)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"booking":             toBookingResponse(b),
		"refund_amount_cents": refunded,
	})
}

// actorID reads the authenticated caller id that the access layer in front
// of this service injects as a header.
func actorID(c *gin.Context, header string) (int64, error) {
	return strconv.ParseInt(c.GetHeader(header), 10, 64)
}
