package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type adjustRequest struct {
	Coin           string          `json:"coin" binding:"required"`
	Delta          decimal.Decimal `json:"delta"`
	Reason         string          `json:"reason"`
	IdempotencyKey string          `json:"idempotency_key"`
}

type setBalanceRequest struct {
	Value  decimal.Decimal `json:"value"`
	Reason string          `json:"reason"`
}

type banRequest struct {
	Banned bool `json:"banned"`
}

type flagRequest struct {
	Value string `json:"value"`
}

func (h *Handler) AdjustBalance(c *gin.Context) {
	var req adjustRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if key := c.GetHeader("Idempotency-Key"); key != "" && req.IdempotencyKey == "" {
		req.IdempotencyKey = key
	}

	result, err := h.svc.AdjustBalance(c.Request.Context(), c.Param("userId"), req.Coin, req.Delta, req.Reason, req.IdempotencyKey)
	if err != nil {
		respondError(c, "Failed to adjust balance", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "result": result})
}

func (h *Handler) SetBalance(c *gin.Context) {
	var req setBalanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	result, err := h.svc.SetBalance(c.Request.Context(), c.Param("userId"), c.Param("coin"), req.Value, req.Reason)
	if err != nil {
		respondError(c, "Failed to set balance", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "result": result})
}

func (h *Handler) SetUserBanned(c *gin.Context) {
	var req banRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	userId := c.Param("userId")
	if err := h.svc.SetUserBanned(c.Request.Context(), userId, req.Banned); err != nil {
		respondError(c, "Failed to update user", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "user_id": userId, "banned": req.Banned})
}

func (h *Handler) GetUserFlag(c *gin.Context) {
	value, err := h.svc.GetUserFlag(c.Request.Context(), c.Param("userId"), c.Param("key"))
	if err != nil {
		respondError(c, "Failed to get flag", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "key": c.Param("key"), "value": value})
}

// SetUserFlag sets a flag; an empty value clears it.
func (h *Handler) SetUserFlag(c *gin.Context) {
	var req flagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	if err := h.svc.SetUserFlag(c.Request.Context(), c.Param("userId"), c.Param("key"), req.Value); err != nil {
		respondError(c, "Failed to set flag", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "key": c.Param("key"), "value": req.Value})
}

func (h *Handler) ReconcileUser(c *gin.Context) {
	if err := h.svc.ReconcileUser(c.Request.Context(), c.Param("userId")); err != nil {
		respondError(c, "Reconciliation failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "reconciled": true})
}
