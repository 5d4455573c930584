package settlement

import (
	"context"
	"errors"
	"fmt"

	"settlement-ledger-go/internal/models"
	"settlement-ledger-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PriceOutcome resolves a trade from its entry and exit prices. A higher exit
// wins an up trade and a lower exit wins a down trade; an unchanged price is
// a loss for either direction.
func PriceOutcome(direction models.Direction, entry, exit decimal.Decimal) models.TradeStatus {
	switch cmp := exit.Cmp(entry); {
	case cmp > 0 && direction == models.DirectionUp:
		return models.TradeWin
	case cmp < 0 && direction == models.DirectionDown:
		return models.TradeWin
	default:
		return models.TradeLoss
	}
}

// resolveExpired settles one expired pending trade from the current market
// price. When the price feed fails the trade is left pending, unless an
// administrator already pinned its outcome.
func (s *Service) resolveExpired(ctx context.Context, trade *models.Trade) (*models.SettlementResult, error) {
	exit, err := s.fetchPrice(ctx, trade.Coin)
	if err != nil {
		if trade.ForcedOutcome.IsTerminal() {
			return s.settle(ctx, trade.Id, trade.ForcedOutcome, nil)
		}
		return nil, err
	}

	proposed := PriceOutcome(trade.Direction, trade.EntryPrice, exit)
	return s.settle(ctx, trade.Id, proposed, &exit)
}

// SettleExpired resolves every pending trade whose duration has elapsed. One
// trade failing does not stop the sweep; price feed outages only defer the
// affected trades to the next run. It returns the number of trades settled.
func (s *Service) SettleExpired(ctx context.Context) (int, error) {
	trades, err := s.loadTrades(ctx)
	if err != nil {
		return 0, err
	}

	now := s.now()
	settled := 0
	var errs []error
	for i := range trades {
		trade := &trades[i]
		if trade.Status != models.TradePending || trade.SettlementApplied || !trade.Expired(now) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return settled, err
		}

		result, err := s.resolveExpired(ctx, trade)
		switch {
		case err == nil:
			if result.Applied {
				settled++
			}
		case errors.Is(err, store.ErrExternalUnavailable):
			zap.L().Warn("Price unavailable, deferring trade",
				zap.String("trade_id", trade.Id),
				zap.String("coin", trade.Coin),
				zap.Error(err))
		case errors.Is(err, store.ErrInsufficientBalance):
			zap.L().Warn("Loss exceeds balance, trade stays pending",
				zap.String("trade_id", trade.Id),
				zap.String("user_id", trade.UserId),
				zap.Error(err))
		default:
			zap.L().Error("Failed to settle expired trade",
				zap.String("trade_id", trade.Id),
				zap.Error(err))
			errs = append(errs, fmt.Errorf("trade %s: %w", trade.Id, err))
		}
	}

	if settled > 0 {
		zap.L().Info("Settled expired trades", zap.Int("count", settled))
	}
	return settled, errors.Join(errs...)
}
