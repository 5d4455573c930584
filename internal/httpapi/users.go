package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

type connectWalletRequest struct {
	WalletAddress string `json:"wallet_address" binding:"required"`
}

func (h *Handler) GetUser(c *gin.Context) {
	user, err := h.svc.GetUser(c.Request.Context(), c.Param("userId"))
	if err != nil {
		respondError(c, "Failed to get user", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "user": user})
}

func (h *Handler) ConnectWallet(c *gin.Context) {
	var req connectWalletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	user, err := h.svc.ConnectWallet(c.Request.Context(), c.Param("userId"), req.WalletAddress)
	if err != nil {
		respondError(c, "Failed to connect wallet", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "user": user})
}

func (h *Handler) GetBalances(c *gin.Context) {
	balances, err := h.svc.GetBalances(c.Request.Context(), c.Param("userId"))
	if err != nil {
		respondError(c, "Failed to get balances", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "balances": balances})
}

func (h *Handler) GetBalance(c *gin.Context) {
	coin := c.Param("coin")
	balance, err := h.svc.GetUserBalance(c.Request.Context(), c.Param("userId"), coin)
	if err != nil {
		respondError(c, "Failed to get balance", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"asset":   coin,
		"balance": balance,
	})
}

func (h *Handler) GetTransactionHistory(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil {
		limit = 20
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}

	txs, err := h.svc.GetTransactionHistory(c.Request.Context(), c.Param("userId"), c.Query("coin"), limit, offset)
	if err != nil {
		respondError(c, "Failed to get transaction history", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"transactions": txs,
		"count":        len(txs),
	})
}

func (h *Handler) ListTopups(c *gin.Context) {
	topups, err := h.svc.ListTopups(c.Request.Context(), c.Param("userId"))
	if err != nil {
		respondError(c, "Failed to list top-ups", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "topups": topups, "count": len(topups)})
}

func (h *Handler) ListWithdrawals(c *gin.Context) {
	withdrawals, err := h.svc.ListWithdrawals(c.Request.Context(), c.Param("userId"))
	if err != nil {
		respondError(c, "Failed to list withdrawals", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "withdrawals": withdrawals, "count": len(withdrawals)})
}
