package httpapi

import (
	"net/http"

	"settlement-ledger-go/internal/models"
	"settlement-ledger-go/internal/settlement"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type placeTradeRequest struct {
	UserId          string          `json:"user_id" binding:"required"`
	Coin            string          `json:"coin" binding:"required"`
	Currency        string          `json:"currency"`
	Direction       string          `json:"direction" binding:"required"`
	Stake           decimal.Decimal `json:"stake"`
	DurationSeconds int64           `json:"duration_seconds" binding:"required"`
	ProfitRatio     decimal.Decimal `json:"profit_ratio"`
}

type outcomeRequest struct {
	Outcome string `json:"outcome" binding:"required"`
}

func (h *Handler) PlaceTrade(c *gin.Context) {
	var req placeTradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	direction, err := models.ParseDirection(req.Direction)
	if err != nil {
		badRequest(c, err)
		return
	}

	trade, err := h.svc.PlaceTrade(c.Request.Context(), settlement.PlaceTradeRequest{
		UserId:          req.UserId,
		Coin:            req.Coin,
		Currency:        req.Currency,
		Direction:       direction,
		Stake:           req.Stake,
		DurationSeconds: req.DurationSeconds,
		ProfitRatio:     req.ProfitRatio,
	})
	if err != nil {
		respondError(c, "Failed to place trade", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "trade": trade})
}

func (h *Handler) GetTrade(c *gin.Context) {
	trade, err := h.svc.GetTrade(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, "Failed to get trade", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "trade": trade})
}

func (h *Handler) ListTrades(c *gin.Context) {
	trades, err := h.svc.ListTrades(c.Request.Context(), c.Param("userId"))
	if err != nil {
		respondError(c, "Failed to list trades", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "trades": trades, "count": len(trades)})
}

// SettleTrade settles with a client-proposed outcome. Retries are safe.
func (h *Handler) SettleTrade(c *gin.Context) {
	outcome, ok := bindOutcome(c)
	if !ok {
		return
	}

	result, err := h.svc.SettleTrade(c.Request.Context(), c.Param("id"), outcome)
	if err != nil {
		respondError(c, "Failed to settle trade", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "result": result})
}

func (h *Handler) QueryTradeOutcome(c *gin.Context) {
	outcome, err := h.svc.QueryTradeOutcome(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, "Failed to query trade outcome", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "outcome": outcome})
}

func (h *Handler) SetForcedOutcome(c *gin.Context) {
	outcome, ok := bindOutcome(c)
	if !ok {
		return
	}

	trade, err := h.svc.SetForcedOutcome(c.Request.Context(), c.Param("id"), outcome)
	if err != nil {
		respondError(c, "Failed to force trade outcome", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "trade": trade})
}

func (h *Handler) CorrectTradeOutcome(c *gin.Context) {
	outcome, ok := bindOutcome(c)
	if !ok {
		return
	}

	result, err := h.svc.CorrectTradeOutcome(c.Request.Context(), c.Param("id"), outcome)
	if err != nil {
		respondError(c, "Failed to correct trade outcome", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "result": result})
}

func bindOutcome(c *gin.Context) (models.TradeStatus, bool) {
	var req outcomeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return "", false
	}
	outcome, err := models.ParseOutcome(req.Outcome)
	if err != nil {
		badRequest(c, err)
		return "", false
	}
	return outcome, true
}
