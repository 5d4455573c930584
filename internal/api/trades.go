package api

import (
	"context"

	"settlement-ledger-go/internal/models"
	"settlement-ledger-go/internal/settlement"
)

func (s *LedgerService) PlaceTrade(ctx context.Context, req settlement.PlaceTradeRequest) (*models.Trade, error) {
	return s.settlement.PlaceTrade(ctx, req)
}

func (s *LedgerService) SettleTrade(ctx context.Context, tradeId string, proposed models.TradeStatus) (*models.SettlementResult, error) {
	return s.settlement.SettleTrade(ctx, tradeId, proposed)
}

func (s *LedgerService) QueryTradeOutcome(ctx context.Context, tradeId string) (*models.TradeOutcome, error) {
	return s.settlement.QueryTradeOutcome(ctx, tradeId)
}

func (s *LedgerService) GetTrade(ctx context.Context, tradeId string) (*models.Trade, error) {
	return s.settlement.GetTrade(ctx, tradeId)
}

func (s *LedgerService) ListTrades(ctx context.Context, userId string) ([]models.Trade, error) {
	return s.settlement.ListTrades(ctx, userId)
}

func (s *LedgerService) SetForcedOutcome(ctx context.Context, tradeId string, outcome models.TradeStatus) (*models.Trade, error) {
	return s.settlement.SetForcedOutcome(ctx, tradeId, outcome)
}

func (s *LedgerService) CorrectTradeOutcome(ctx context.Context, tradeId string, outcome models.TradeStatus) (*models.SettlementResult, error) {
	return s.settlement.CorrectTradeOutcome(ctx, tradeId, outcome)
}
