package api

import (
	"net/http"

	"pos-backend/internal/apperr"
	"pos-backend/internal/models"
	"pos-backend/internal/provider"
	"pos-backend/internal/util"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// createPayment handles payment creation. Payments always start pending
// regardless of the requested status.
func (h *Handler) createPayment(c *gin.Context) {
	var req createPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, bindError(err))
		return
	}

	payment, err := h.payments.CreatePayment(c.Request.Context(), req.toInput())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, payment)
}

func (h *Handler) getPayment(c *gin.Context) {
	id, err := parseID(c.Param("id"), "id")
	if err != nil {
		respondError(c, err)
		return
	}

	payment, err := h.payments.GetPayment(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, payment)
}

// updatePaymentStatus settles the payment and moves the order along with it
func (h *Handler) updatePaymentStatus(c *gin.Context) {
	id, err := parseID(c.Param("id"), "id")
	if err != nil {
		respondError(c, err)
		return
	}

	var req updatePaymentStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, bindError(err))
		return
	}
	actor := req.ActorID
	if actor == "" {
		actor = models.ActorSystem
	}

	settlement, err := h.payments.Settle(c.Request.Context(), id, models.PaymentStatus(req.Status), req.ProviderReference, actor)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, newSettlementResponse(settlement))
}

// listPaymentsByStatus returns payments in one status, oldest first
func (h *Handler) listPaymentsByStatus(c *gin.Context) {
	var q statusQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondError(c, bindError(err))
		return
	}
	limit := q.Limit
	if limit == 0 {
		limit = models.DefaultStatusLimit
	}

	payments, err := h.payments.ListByStatus(c.Request.Context(), models.PaymentStatus(q.Status), limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"payments": payments})
}

func (h *Handler) listPayments(c *gin.Context) {
	var q listQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondError(c, bindError(err))
		return
	}
	filter, err := q.paymentFilter()
	if err != nil {
		respondError(c, err)
		return
	}

	page, err := h.payments.ListPayments(c.Request.Context(), c.Param("storeId"), filter, q.page())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, page)
}

// paymentWebhook applies a verified provider callback. The signature has
// already been checked by the webhook middleware.
func (h *Handler) paymentWebhook(c *gin.Context) {
	source := models.PaymentProvider(c.Param("provider"))
	if !source.Valid() {
		respondError(c, notFound("Unknown payment provider "+string(source)))
		return
	}

	var req webhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, bindError(err))
		return
	}

	status, ok := provider.NormalizeStatus(req.Status)
	if !ok {
		respondError(c, apperr.Validation(map[string]string{"status": "is not a recognised payment status"}, "Validation failed"))
		return
	}

	id, err := parseID(req.PaymentID, "payment_id")
	if err != nil {
		respondError(c, err)
		return
	}

	ctx := c.Request.Context()
	payment, err := h.payments.GetPayment(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}
	if payment.Provider != source {
		util.GetLogger().Warn("Webhook provider mismatch",
			zap.String("payment_id", id.String()),
			zap.String("payment_provider", string(payment.Provider)),
			zap.String("webhook_provider", string(source)))
		respondError(c, apperr.Validation(map[string]string{"payment_id": "belongs to another provider"}, "Validation failed"))
		return
	}

	settlement, err := h.payments.Settle(ctx, id, status, req.ProviderReference, "webhook:"+string(source))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, newSettlementResponse(settlement))
}
