package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// createOrder handles order creation. A repeated client_order_id in the same
// store is answered with 409.
func (h *Handler) createOrder(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, bindError(err))
		return
	}

	order, err := h.orders.CreateOrder(c.Request.Context(), req.toInput())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, order)
}

// getOrder handles get order by ID
func (h *Handler) getOrder(c *gin.Context) {
	id, err := parseID(c.Param("id"), "id")
	if err != nil {
		respondError(c, err)
		return
	}

	order, err := h.orders.GetOrder(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, order)
}

func (h *Handler) getOrderByClientID(c *gin.Context) {
	order, err := h.orders.FindByClientOrderID(c.Request.Context(), c.Param("storeId"), c.Param("clientOrderId"))
	if err != nil {
		respondError(c, err)
		return
	}
	if order == nil {
		respondError(c, notFound("No order with client_order_id "+c.Param("clientOrderId")))
		return
	}

	c.JSON(http.StatusOK, order)
}

func (h *Handler) updateOrderStatus(c *gin.Context) {
	id, err := parseID(c.Param("id"), "id")
	if err != nil {
		respondError(c, err)
		return
	}

	var req updateOrderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, bindError(err))
		return
	}

	order, changed, err := h.orders.UpdateOrderStatus(c.Request.Context(), id, req.Status, req.ActorID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, orderStatusResponse{Order: order, Changed: changed})
}

func (h *Handler) getOrderEvents(c *gin.Context) {
	id, err := parseID(c.Param("id"), "id")
	if err != nil {
		respondError(c, err)
		return
	}

	events, err := h.orders.GetEventHistory(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"events": events})
}

// getOrderPayment answers 404 when the order exists but has no payment yet
func (h *Handler) getOrderPayment(c *gin.Context) {
	id, err := parseID(c.Param("id"), "id")
	if err != nil {
		respondError(c, err)
		return
	}

	payment, err := h.payments.GetPaymentForOrder(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	if payment == nil {
		respondError(c, notFound("No payment for order "+id.String()))
		return
	}

	c.JSON(http.StatusOK, payment)
}

func (h *Handler) listOrders(c *gin.Context) {
	var q listQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondError(c, bindError(err))
		return
	}
	filter, err := q.orderFilter()
	if err != nil {
		respondError(c, err)
		return
	}

	page, err := h.orders.ListOrders(c.Request.Context(), c.Param("storeId"), filter, q.page())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, page)
}
