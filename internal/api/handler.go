package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"checkout-service/internal/models"
	"checkout-service/internal/service"
	"checkout-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const idempotencyHeader = "Idempotency-Key"

// Checkouter is the checkout service as seen by the HTTP layer
type Checkouter interface {
	Checkout(ctx context.Context, req *service.CheckoutRequest) (*service.CheckoutResult, error)
	GetOrder(ctx context.Context, orderID string) (*models.Order, error)
}

// Pinger reports whether a dependency is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler contains HTTP handlers
type Handler struct {
	checkout        Checkouter
	deps            map[string]Pinger
	checkoutTimeout time.Duration
	logger          *zap.Logger
}

// NewHandler creates a new HTTP handler. deps are checked by /ready.
func NewHandler(checkout Checkouter, checkoutTimeout time.Duration, deps map[string]Pinger) *Handler {
	return &Handler{
		checkout:        checkout,
		deps:            deps,
		checkoutTimeout: checkoutTimeout,
		logger:          util.GetLogger(),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(h.requestLogger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.POST("/events/:eventId/checkout", h.createCheckout)

	v1 := router.Group("/api/v1")
	{
		v1.POST("/events/:eventId/checkout", h.createCheckout)
		v1.GET("/orders/:id", h.getOrder)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck pings every dependency the checkout path needs
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	failing := gin.H{}
	for name, dep := range h.deps {
		if err := dep.Ping(ctx); err != nil {
			failing[name] = err.Error()
		}
	}
	if len(failing) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "not ready",
			"failing": failing,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// createCheckout handles a cart checkout for one event
func (h *Handler) createCheckout(c *gin.Context) {
	var req service.CheckoutRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "invalid request body: " + err.Error(),
		})
		return
	}
	req.EventID = c.Param("eventId")
	req.IdempotencyKey = c.GetHeader(idempotencyHeader)

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.checkoutTimeout)
	defer cancel()

	res, err := h.checkout.Checkout(ctx, &req)
	if err != nil {
		h.writeCheckoutError(c, err)
		return
	}

	status := http.StatusCreated
	if res.Replayed {
		status = http.StatusOK
	}
	c.JSON(status, newOrderResponse(res.Order))
}

func (h *Handler) writeCheckoutError(c *gin.Context, err error) {
	var ce *service.CheckoutError
	switch {
	case errors.As(err, &ce) && errors.Is(ce, service.ErrIdempotencyConflict):
		c.JSON(http.StatusConflict, gin.H{"error": ce.Reason})
	case errors.As(err, &ce) && ce.ClientAttributable():
		c.JSON(http.StatusBadRequest, gin.H{"error": ce.Reason})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "checkout failed, please retry"})
	}
}

// getOrder handles get order by ID
func (h *Handler) getOrder(c *gin.Context) {
	order, err := h.checkout.GetOrder(c.Request.Context(), c.Param("id"))
	if errors.Is(err, models.ErrOrderNotFound) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "order not found",
		})
		return
	}
	if err != nil {
		h.logger.Error("Failed to load order", zap.String("order_id", c.Param("id")), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "failed to load order",
		})
		return
	}

	c.JSON(http.StatusOK, newOrderResponse(order))
}

// requestLogger logs one structured line per request
func (h *Handler) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		h.logger.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()))
	}
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
