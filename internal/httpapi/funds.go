package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type topupRequest struct {
	UserId string          `json:"user_id" binding:"required"`
	Coin   string          `json:"coin" binding:"required"`
	Amount decimal.Decimal `json:"amount"`
	TxHash string          `json:"tx_hash"`
}

type withdrawalRequest struct {
	UserId      string          `json:"user_id" binding:"required"`
	Coin        string          `json:"coin" binding:"required"`
	Amount      decimal.Decimal `json:"amount"`
	Destination string          `json:"destination" binding:"required"`
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

type exchangeRequest struct {
	UserId string          `json:"user_id" binding:"required"`
	From   string          `json:"from" binding:"required"`
	To     string          `json:"to" binding:"required"`
	Amount decimal.Decimal `json:"amount"`
}

func (h *Handler) RequestTopup(c *gin.Context) {
	var req topupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	topup, err := h.svc.RequestTopup(c.Request.Context(), req.UserId, req.Coin, req.Amount, req.TxHash)
	if err != nil {
		respondError(c, "Failed to request top-up", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "topup": topup})
}

func (h *Handler) ApproveTopup(c *gin.Context) {
	topup, err := h.svc.ApproveTopup(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, "Failed to approve top-up", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "topup": topup})
}

func (h *Handler) RejectTopup(c *gin.Context) {
	topup, err := h.svc.RejectTopup(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, "Failed to reject top-up", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "topup": topup})
}

func (h *Handler) RequestWithdrawal(c *gin.Context) {
	var req withdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	withdrawal, err := h.svc.RequestWithdrawal(c.Request.Context(), req.UserId, req.Coin, req.Amount, req.Destination)
	if err != nil {
		respondError(c, "Failed to request withdrawal", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "withdrawal": withdrawal})
}

func (h *Handler) CompleteWithdrawal(c *gin.Context) {
	withdrawal, err := h.svc.CompleteWithdrawal(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, "Failed to complete withdrawal", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "withdrawal": withdrawal})
}

func (h *Handler) RejectWithdrawal(c *gin.Context) {
	var req rejectRequest
	// The reason is optional, so an empty body is fine.
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}

	withdrawal, err := h.svc.RejectWithdrawal(c.Request.Context(), c.Param("id"), req.Reason)
	if err != nil {
		respondError(c, "Failed to reject withdrawal", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "withdrawal": withdrawal})
}

func (h *Handler) Exchange(c *gin.Context) {
	var req exchangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	result, err := h.svc.Exchange(c.Request.Context(), req.UserId, req.From, req.To, req.Amount)
	if err != nil {
		respondError(c, "Exchange failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "result": result})
}
