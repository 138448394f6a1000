package api

import (
	"net/http"

	reqdto "github.com/beligro/smart-carwash-sub000/internal/handler/dto/request"
	"github.com/beligro/smart-carwash-sub000/internal/handler/middleware"

	"github.com/beligro/smart-carwash-sub000/internal/usecase"
	"github.com/beligro/smart-carwash-sub000/internal/usecase/readmodel"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type PaymentHandler struct {
	commands *usecase.SessionCommands
	payments *usecase.PaymentOrchestrator
}

func NewPaymentHandler(commands *usecase.SessionCommands, payments *usecase.PaymentOrchestrator) *PaymentHandler {
	return &PaymentHandler{commands: commands, payments: payments}
}

// @Summary Payment webhook
// @Description Provider settlement callback; idempotent on redelivery
// @Tags payments
// @Accept json
// @Produce json
// @Param request body reqdto.PaymentWebhookRequest true "Settlement event"
// @Success 200 {object} map[string]string
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /webhooks/payments [post]
func (h *PaymentHandler) Webhook(c *gin.Context) {
	var req reqdto.PaymentWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid webhook payload"})
		return
	}

	if err := h.commands.HandlePaymentEvent(c.Request.Context(), req.PaymentID, req.Succeeded()); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// @Summary Refund payment
// @Description Partial or full refund of a settled payment
// @Tags payments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Payment ID"
// @Param request body reqdto.RefundRequest true "Refund amount"
// @Success 200 {object} readmodel.PaymentRM
// @Failure 404 {object} map[string]string
// @Failure 422 {object} map[string]string
// @Failure 502 {object} map[string]string
// @Router /payments/{id}/refund [post]
func (h *PaymentHandler) Refund(c *gin.Context) {
	act, ok := middleware.GetActor(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	paymentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid payment ID format"})
		return
	}

	var req reqdto.RefundRequest
	if bindErr := c.ShouldBindJSON(&req); bindErr != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	p, err := h.payments.Refund(c.Request.Context(), act, paymentID, req.AmountCents)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, readmodel.FromPayment(p))
}
