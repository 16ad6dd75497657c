package api

import (
	"encoding/json"
	"io"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mlevkov/expertbooking/internal/processor"
	"github.com/mlevkov/expertbooking/internal/service/webhook"
)

const signatureHeader = "X-Processor-Signature"

type WebhookHandler struct {
	service webhook.WebhookUseCase
	secret  string
}

// webhookPayload mirrors the processor's event envelope. The booking token
// travels in the hold's metadata, set when the hold was created.
type webhookPayload struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID       string `json:"id"`
			Metadata struct {
				BookingToken string `json:"booking_token"`
			} `json:"metadata"`
		} `json:"object"`
	} `json:"data"`
}

func NewWebhookHandler(service webhook.WebhookUseCase, secret string) *WebhookHandler {
	return &WebhookHandler{service: service, secret: secret}
}

func (h *WebhookHandler) Register(router *gin.RouterGroup) {
	router.POST("/payment", h.ingest)
}

func (h *WebhookHandler) ingest(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}

	// Authenticity first: nothing is touched before the signature checks
	// out. Failures are logged as security events.
	sig := c.GetHeader(signatureHeader)
	if sig == "" || !processor.VerifySignature(h.secret, body, sig) {
		log.Printf("webhook signature verification failed from %s", c.ClientIP())
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid signature"})
		return
	}

	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil || payload.ID == "" || payload.Type == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed payload"})
		return
	}

	result, err := h.service.Ingest(c.Request.Context(), payload.ID, payload.Type, payload.Data.Object.Metadata.BookingToken)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	// Duplicates must still return success to stop upstream retries.
	c.JSON(http.StatusOK, gin.H{"status": string(result)})
}
