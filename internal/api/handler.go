package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"kiosk-service/internal/ledger"
	"kiosk-service/internal/models"
	"kiosk-service/internal/service"
	"kiosk-service/internal/store"
	"kiosk-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler contains HTTP handlers
type Handler struct {
	orders  *service.OrderService
	queue   *service.QueueService
	ledgers *ledger.Manager
	watcher *service.Watcher
	catalog *store.Store
}

// NewHandler creates a new HTTP handler
func NewHandler(
	orders *service.OrderService,
	queue *service.QueueService,
	ledgers *ledger.Manager,
	watcher *service.Watcher,
	catalog *store.Store,
) *Handler {
	return &Handler{
		orders:  orders,
		queue:   queue,
		ledgers: ledgers,
		watcher: watcher,
		catalog: catalog,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/qr/:code", h.resolveQR)
		v1.GET("/sites/:siteKey/menu", h.getMenu)
		v1.GET("/sites/:siteKey/queue", h.getQueue)
		v1.POST("/sites/:siteKey/orders", h.submitOrder)
		v1.GET("/sites/:siteKey/orders/:orderNo", h.getOrder)
		v1.POST("/sites/:siteKey/orders/:orderNo/complete", h.completeOrder)
		v1.POST("/sites/:siteKey/visibility", h.visibilityRegained)
	}
}

func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// resolveQR maps a printed QR code to its site key
func (h *Handler) resolveQR(c *gin.Context) {
	siteKey, err := h.catalog.ResolveSiteKey(c.Request.Context(), c.Param("code"))
	if err != nil {
		if errors.Is(err, models.ErrSiteNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Unknown or inactive code"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to resolve code"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"site_key": siteKey})
}

// getMenu returns the site's sections and products in display order
func (h *Handler) getMenu(c *gin.Context) {
	ctx := c.Request.Context()
	siteKey := c.Param("siteKey")

	sections, err := h.catalog.GetSections(ctx, siteKey)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load sections"})
		return
	}
	products, err := h.catalog.GetProducts(ctx, siteKey)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load products"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"sections": sections,
		"products": products,
	})
}

type submitOrderBody struct {
	Items              []service.SubmitItemRequest `json:"items" binding:"required"`
	NotificationTarget string                      `json:"notification_target,omitempty"`
	IdempotencyKey     string                      `json:"idempotency_key,omitempty"`
}

// submitOrder handles order submission from a device
func (h *Handler) submitOrder(c *gin.Context) {
	ctx := c.Request.Context()
	siteKey := c.Param("siteKey")
	deviceID := c.GetHeader("X-Device-ID")

	var body submitOrderBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	if body.IdempotencyKey == "" {
		body.IdempotencyKey = c.GetHeader("Idempotency-Key")
	}

	order, err := h.orders.SubmitOrder(ctx, &service.SubmitOrderRequest{
		SiteKey:            siteKey,
		Items:              body.Items,
		NotificationTarget: body.NotificationTarget,
		IdempotencyKey:     body.IdempotencyKey,
	})
	if err != nil {
		switch {
		case errors.Is(err, models.ErrEmptyOrder):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Order has no items"})
		case errors.Is(err, models.ErrSiteClosed):
			c.JSON(http.StatusConflict, gin.H{"error": "Site is currently closed"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "Failed to submit order",
				"details": err.Error(),
			})
		}
		return
	}

	wait := 0
	if deviceID != "" {
		// Fresh snapshot so the first wait estimate counts the orders
		// already ahead, not a stale view.
		_ = h.queue.Refresh(ctx, siteKey)

		led, lerr := h.ledgers.Get(ctx, siteKey, deviceID)
		if lerr == nil {
			if lerr = led.Reload(ctx); lerr == nil {
				tracker := h.queue.Tracker(siteKey)
				entry := models.LedgerEntry{
					OrderNo:    order.OrderNo,
					OrderID:    order.ID,
					TotalItems: order.TotalItems,
				}
				entry.WaitMinutes = tracker.WaitForEntry(entry)
				wait = entry.WaitMinutes
				lerr = led.Append(ctx, entry)
			}
			if lerr == nil {
				h.watcher.Sync(ctx, siteKey, led)
			}
		}
		if lerr != nil {
			c.JSON(http.StatusCreated, gin.H{
				"order":   order,
				"warning": "Order placed but completion tracking is unavailable on this device",
			})
			return
		}
	}

	c.JSON(http.StatusCreated, gin.H{
		"order":        order,
		"wait_minutes": wait,
	})
}

// getOrder handles get order by number
func (h *Handler) getOrder(c *gin.Context) {
	orderNo, err := strconv.ParseInt(c.Param("orderNo"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order number"})
		return
	}

	order, err := h.orders.GetOrder(c.Request.Context(), c.Param("siteKey"), orderNo)
	if err != nil {
		if errors.Is(err, models.ErrOrderNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load order"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order})
}

// completeOrder handles the staff-side completion transition
func (h *Handler) completeOrder(c *gin.Context) {
	orderNo, err := strconv.ParseInt(c.Param("orderNo"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order number"})
		return
	}

	order, err := h.orders.CompleteOrder(c.Request.Context(), c.Param("siteKey"), orderNo)
	if err != nil {
		if errors.Is(err, models.ErrOrderNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to complete order"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order})
}

// getQueue returns the live queue view: now serving plus, when a device is
// given, that device's tracked orders with position and wait estimates
func (h *Handler) getQueue(c *gin.Context) {
	ctx := c.Request.Context()
	siteKey := c.Param("siteKey")
	deviceID := c.Query("device")

	tracker := h.queue.Tracker(siteKey)
	if !tracker.Primed() {
		// First read for this site: prime from the store before answering.
		_ = h.queue.Refresh(ctx, siteKey)
	}

	resp := gin.H{
		"now_serving":  tracker.NowServing(),
		"active_count": tracker.ActiveCount(),
	}

	if deviceID != "" {
		led, err := h.ledgers.Get(ctx, siteKey, deviceID)
		if err == nil {
			type trackedOrder struct {
				OrderNo     int64 `json:"order_no"`
				WaitMinutes int   `json:"wait_minutes"`
				Position    *int  `json:"position,omitempty"`
			}
			entries := led.All()
			tracked := make([]trackedOrder, 0, len(entries))
			for _, e := range entries {
				to := trackedOrder{OrderNo: e.OrderNo, WaitMinutes: e.WaitMinutes}
				if est, ok := tracker.Estimate(e.OrderNo); ok {
					pos := est.Position
					to.Position = &pos
					to.WaitMinutes = est.WaitMinutes
				}
				tracked = append(tracked, to)
			}
			resp["my_orders"] = tracked
		}
	}

	c.JSON(http.StatusOK, resp)
}

// visibilityRegained handles a device reporting its page became visible
// again: the ledger reloads persisted state and completion watches are
// reconciled, picking up writes from other tabs
func (h *Handler) visibilityRegained(c *gin.Context) {
	ctx := c.Request.Context()
	siteKey := c.Param("siteKey")
	deviceID := c.GetHeader("X-Device-ID")
	if deviceID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing X-Device-ID header"})
		return
	}

	led, err := h.ledgers.Get(ctx, siteKey, deviceID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load ledger"})
		return
	}
	if err := led.Reload(ctx); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to reload ledger"})
		return
	}
	h.watcher.Sync(ctx, siteKey, led)

	c.JSON(http.StatusOK, gin.H{"entries": led.All()})
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
