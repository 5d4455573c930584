package funds

import (
	"context"
	"fmt"

	"settlement-ledger-go/internal/ledger"
	"settlement-ledger-go/internal/models"
	"settlement-ledger-go/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Exchange converts amount of from into to at the current market rate,
// price(from)/price(to). Both legs are booked inside one ledger scope;
// stablecoin targets round to cents and everything else to eight places.
func (s *Service) Exchange(ctx context.Context, userId, from, to string, amount decimal.Decimal) (*models.ExchangeResult, error) {
	fromCoin, err := validAmount(userId, from, amount)
	if err != nil {
		return nil, err
	}
	toCoin, err := models.NormalizeCoin(to)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrInvalidArgument, err)
	}
	if fromCoin == toCoin {
		return nil, fmt.Errorf("%w: cannot exchange %s to itself", store.ErrInvalidArgument, fromCoin)
	}

	// Prices first, lock second
	fromPrice, err := s.fetchPrice(ctx, fromCoin)
	if err != nil {
		return nil, fmt.Errorf("exchange: %w", err)
	}
	toPrice, err := s.fetchPrice(ctx, toCoin)
	if err != nil {
		return nil, fmt.Errorf("exchange: %w", err)
	}
	rate := fromPrice.DivRound(toPrice, 16)

	places := int32(models.RewardPlaces)
	if models.IsStablecoin(toCoin) {
		places = models.ProfitPlaces
	}
	received := amount.Mul(fromPrice).DivRound(toPrice, places)
	if !received.IsPositive() {
		return nil, fmt.Errorf("%w: %s %s is worth nothing in %s", store.ErrInvalidArgument, amount.String(), fromCoin, toCoin)
	}

	if _, err := s.ledger.ActiveUser(ctx, userId); err != nil {
		return nil, fmt.Errorf("exchange: %w", err)
	}
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate exchange id: %w", err)
	}

	result := &models.ExchangeResult{
		Id:         id.String(),
		UserId:     userId,
		FromCoin:   fromCoin,
		ToCoin:     toCoin,
		FromAmount: amount,
		ToAmount:   received,
		Rate:       rate,
	}
	err = s.ledger.WithUser(ctx, userId, func(scope *ledger.Scope) error {
		out, err := scope.Apply(ledger.Entry{
			Coin:      fromCoin,
			Delta:     amount.Neg(),
			Type:      models.TxTypeExchangeOut,
			Key:       "exchange:" + result.Id + ":out",
			Reference: result.Id,
		})
		if err != nil {
			return err
		}
		in, err := scope.Apply(ledger.Entry{
			Coin:      toCoin,
			Delta:     received,
			Type:      models.TxTypeExchangeIn,
			Key:       "exchange:" + result.Id + ":in",
			Reference: result.Id,
		})
		if err != nil {
			// Undo the debit so a failed credit never loses funds
			if _, undoErr := scope.Apply(ledger.Entry{
				Coin:      fromCoin,
				Delta:     amount,
				Type:      models.TxTypeExchangeIn,
				Key:       "exchange:" + result.Id + ":refund",
				Reference: result.Id,
			}); undoErr != nil {
				zap.L().Error("Failed to refund exchange debit",
					zap.String("exchange_id", result.Id),
					zap.String("user_id", userId),
					zap.Error(undoErr))
			}
			return err
		}
		result.FromBalance = out.BalanceAfter
		result.ToBalance = in.BalanceAfter
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("exchange: %w", err)
	}

	zap.L().Info("Exchange completed",
		zap.String("exchange_id", result.Id),
		zap.String("user_id", userId),
		zap.String("from", fromCoin),
		zap.String("to", toCoin),
		zap.String("amount", amount.String()),
		zap.String("received", received.String()),
		zap.String("rate", rate.String()))
	return result, nil
}

// fetchPrice asks the price feed with the configured timeout. Any failure is
// reported as store.ErrExternalUnavailable.
func (s *Service) fetchPrice(ctx context.Context, coin string) (decimal.Decimal, error) {
	if s.prices == nil {
		return decimal.Zero, fmt.Errorf("%w: no price feed configured", store.ErrExternalUnavailable)
	}

	priceCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	price, err := s.prices.GetPrice(priceCtx, coin)
	if err != nil {
		s.metrics.PriceFetched("error")
		return decimal.Zero, fmt.Errorf("%w: price for %s: %v", store.ErrExternalUnavailable, coin, err)
	}
	if !price.IsPositive() {
		s.metrics.PriceFetched("error")
		return decimal.Zero, fmt.Errorf("%w: price for %s is %s", store.ErrExternalUnavailable, coin, price.String())
	}
	s.metrics.PriceFetched("ok")
	return price, nil
}
