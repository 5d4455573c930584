package api

import (
	"context"

	"settlement-ledger-go/internal/models"

	"github.com/shopspring/decimal"
)

func (s *LedgerService) CreateSubscription(ctx context.Context, userId, productId string, amount decimal.Decimal) (*models.Subscription, error) {
	return s.accrual.CreateSubscription(ctx, userId, productId, amount)
}

func (s *LedgerService) GetSubscription(ctx context.Context, id string) (*models.Subscription, error) {
	return s.accrual.GetSubscription(ctx, id)
}

func (s *LedgerService) ListSubscriptions(ctx context.Context, userId string) ([]models.Subscription, error) {
	return s.accrual.ListSubscriptions(ctx, userId)
}

func (s *LedgerService) ListProducts() []models.Product {
	return s.accrual.Products()
}

func (s *LedgerService) RequestRedeem(ctx context.Context, id string) (*models.Subscription, error) {
	return s.accrual.RequestRedeem(ctx, id)
}

func (s *LedgerService) CompleteRedeem(ctx context.Context, id string) (*models.Subscription, error) {
	return s.accrual.CompleteRedeem(ctx, id)
}

// SweepDueSettlements runs one scheduler sweep on demand. It shares the
// scheduler's overlap guard, so a call during a timer sweep is skipped.
func (s *LedgerService) SweepDueSettlements(ctx context.Context) (models.SweepResult, error) {
	return s.scheduler.Sweep(ctx)
}
