package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type createSubscriptionRequest struct {
	UserId    string          `json:"user_id" binding:"required"`
	ProductId string          `json:"product_id" binding:"required"`
	Amount    decimal.Decimal `json:"amount"`
}

func (h *Handler) ListProducts(c *gin.Context) {
	products := h.svc.ListProducts()
	c.JSON(http.StatusOK, gin.H{"success": true, "products": products, "count": len(products)})
}

func (h *Handler) CreateSubscription(c *gin.Context) {
	var req createSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	sub, err := h.svc.CreateSubscription(c.Request.Context(), req.UserId, req.ProductId, req.Amount)
	if err != nil {
		respondError(c, "Failed to create subscription", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "subscription": sub})
}

func (h *Handler) GetSubscription(c *gin.Context) {
	sub, err := h.svc.GetSubscription(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, "Failed to get subscription", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "subscription": sub})
}

func (h *Handler) ListSubscriptions(c *gin.Context) {
	subs, err := h.svc.ListSubscriptions(c.Request.Context(), c.Param("userId"))
	if err != nil {
		respondError(c, "Failed to list subscriptions", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "subscriptions": subs, "count": len(subs)})
}

func (h *Handler) RequestRedeem(c *gin.Context) {
	sub, err := h.svc.RequestRedeem(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, "Failed to request redemption", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "subscription": sub})
}

func (h *Handler) CompleteRedeem(c *gin.Context) {
	sub, err := h.svc.CompleteRedeem(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, "Failed to complete redemption", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "subscription": sub})
}

// Sweep runs one settlement sweep on demand. A sweep already in flight makes
// this return skipped=true.
func (h *Handler) Sweep(c *gin.Context) {
	result, err := h.svc.SweepDueSettlements(c.Request.Context())
	if err != nil {
		respondError(c, "Sweep finished with errors", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "result": result})
}
