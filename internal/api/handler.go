package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"pos-backend/internal/auth"
	"pos-backend/internal/service"
	"pos-backend/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const readinessTimeout = 2 * time.Second

// Pinger is a dependency checked by /ready
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler contains HTTP handlers
type Handler struct {
	orders   *service.OrderService
	payments *service.PaymentService
	webhooks *auth.WebhookVerifier

	readiness map[string]Pinger
	now       func() time.Time
}

// NewHandler creates a new HTTP handler. readiness maps a dependency name to
// its health probe.
func NewHandler(orders *service.OrderService, payments *service.PaymentService, webhooks *auth.WebhookVerifier, readiness map[string]Pinger) *Handler {
	return &Handler{
		orders:    orders,
		payments:  payments,
		webhooks:  webhooks,
		readiness: readiness,
		now:       time.Now,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(requestLogger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1", auth.BearerMiddleware(respondError))
	{
		v1.POST("/orders", h.createOrder)
		v1.GET("/orders/:id", h.getOrder)
		v1.PATCH("/orders/:id/status", h.updateOrderStatus)
		v1.GET("/orders/:id/events", h.getOrderEvents)
		v1.GET("/orders/:id/payment", h.getOrderPayment)

		v1.GET("/stores/:storeId/orders", h.listOrders)
		v1.GET("/stores/:storeId/orders/client/:clientOrderId", h.getOrderByClientID)
		v1.GET("/stores/:storeId/payments", h.listPayments)

		v1.POST("/payments", h.createPayment)
		v1.GET("/payments", h.listPaymentsByStatus)
		v1.GET("/payments/:id", h.getPayment)
		v1.PATCH("/payments/:id/status", h.updatePaymentStatus)
	}

	webhooks := router.Group("/webhooks", h.webhooks.Middleware(respondError))
	{
		webhooks.POST("/payments/:provider", h.paymentWebhook)
	}

	router.NoRoute(func(c *gin.Context) {
		respondError(c, errNoRoute)
	})
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   h.now().Unix(),
	})
}

// readinessCheck pings every registered dependency
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
	defer cancel()

	checks := make(map[string]string, len(h.readiness))
	ready := true
	for name, p := range h.readiness {
		if err := p.Ping(ctx); err != nil {
			util.GetLogger().Warn("Readiness check failed", zap.String("dependency", name), zap.Error(err))
			checks[name] = "unavailable"
			ready = false
			continue
		}
		checks[name] = "ok"
	}

	status, code := "ready", http.StatusOK
	if !ready {
		status, code = "not_ready", http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status": status,
		"checks": checks,
		"time":   h.now().Unix(),
	})
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		util.HTTPRequestDuration.WithLabelValues(c.Request.Method, path, status).Observe(duration)
		util.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
	}
}

// requestLogger writes one access log line per request
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		util.GetLogger().Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()))
	}
}
