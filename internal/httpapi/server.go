// Package httpapi exposes the ledger operations over HTTP with gin.
package httpapi

import (
	"net/http"
	"time"

	"settlement-ledger-go/internal/api"
	"settlement-ledger-go/internal/models"
	"settlement-ledger-go/internal/observability"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type Handler struct {
	svc     *api.LedgerService
	health  *observability.HealthChecker
	metrics *observability.Metrics
}

func NewHandler(svc *api.LedgerService, health *observability.HealthChecker, metrics *observability.Metrics) *Handler {
	return &Handler{
		svc:     svc,
		health:  health,
		metrics: metrics,
	}
}

// NewRouter builds the engine. gatherer backs /metrics; nil uses the default
// registry.
func NewRouter(h *Handler, gatherer prometheus.Gatherer) *gin.Engine {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	router := gin.New()
	router.Use(gin.Recovery(), h.requestLogger())

	router.GET("/healthz", h.Healthz)
	router.GET("/readyz", h.Readyz)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	v1 := router.Group("/api")
	{
		v1.GET("/products", h.ListProducts)

		users := v1.Group("/users/:userId")
		{
			users.GET("", h.GetUser)
			users.POST("/wallet", h.ConnectWallet)
			users.GET("/balances", h.GetBalances)
			users.GET("/balances/:coin", h.GetBalance)
			users.GET("/transactions", h.GetTransactionHistory)
			users.GET("/trades", h.ListTrades)
			users.GET("/subscriptions", h.ListSubscriptions)
			users.GET("/topups", h.ListTopups)
			users.GET("/withdrawals", h.ListWithdrawals)
		}

		trades := v1.Group("/trades")
		{
			trades.POST("", h.PlaceTrade)
			trades.GET("/:id", h.GetTrade)
			trades.POST("/:id/settle", h.SettleTrade)
			trades.GET("/:id/outcome", h.QueryTradeOutcome)
		}

		subs := v1.Group("/subscriptions")
		{
			subs.POST("", h.CreateSubscription)
			subs.GET("/:id", h.GetSubscription)
			subs.POST("/:id/redeem", h.RequestRedeem)
		}

		v1.POST("/topups", h.RequestTopup)
		v1.POST("/withdrawals", h.RequestWithdrawal)
		v1.POST("/exchange", h.Exchange)
	}

	admin := router.Group("/admin")
	{
		admin.POST("/users/:userId/adjust", h.AdjustBalance)
		admin.PUT("/users/:userId/balances/:coin", h.SetBalance)
		admin.POST("/users/:userId/ban", h.SetUserBanned)
		admin.GET("/users/:userId/flags/:key", h.GetUserFlag)
		admin.PUT("/users/:userId/flags/:key", h.SetUserFlag)
		admin.POST("/users/:userId/reconcile", h.ReconcileUser)

		admin.POST("/trades/:id/force", h.SetForcedOutcome)
		admin.POST("/trades/:id/correct", h.CorrectTradeOutcome)

		admin.POST("/topups/:id/approve", h.ApproveTopup)
		admin.POST("/topups/:id/reject", h.RejectTopup)
		admin.POST("/withdrawals/:id/complete", h.CompleteWithdrawal)
		admin.POST("/withdrawals/:id/reject", h.RejectWithdrawal)
		admin.POST("/subscriptions/:id/complete-redeem", h.CompleteRedeem)

		admin.POST("/sweep", h.Sweep)
	}

	return router
}

func (h *Handler) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestId := c.GetHeader("X-Request-Id")
		if requestId == "" {
			requestId = uuid.New().String()
		}
		c.Header("X-Request-Id", requestId)
		c.Request = c.Request.WithContext(models.WithRequestContext(c.Request.Context(), &models.RequestContext{
			RequestId: requestId,
			Actor:     c.GetHeader("X-Actor"),
			Source:    "http",
		}))

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		h.metrics.HTTPRequest(c.Request.Method, route, status)

		zap.L().Debug("HTTP request",
			zap.String("request_id", requestId),
			zap.String("method", c.Request.Method),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Duration("elapsed", time.Since(start)))
	}
}

func (h *Handler) Healthz(c *gin.Context) {
	if err := h.svc.HealthCheck(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"uptime": h.health.Uptime().Round(time.Second).String(),
	})
}

func (h *Handler) Readyz(c *gin.Context) {
	if !h.health.IsReady() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
