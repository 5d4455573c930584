package settlement

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"settlement-ledger-go/internal/ledger"
	"settlement-ledger-go/internal/models"
	"settlement-ledger-go/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PlaceTradeRequest describes a new trade. Currency is the coin the stake is
// booked in and defaults to the service's settlement currency; Coin is the
// market whose price decides the outcome.
type PlaceTradeRequest struct {
	UserId          string
	Coin            string
	Currency        string
	Direction       models.Direction
	Stake           decimal.Decimal
	DurationSeconds int64
	ProfitRatio     decimal.Decimal
}

func (s *Service) validate(req *PlaceTradeRequest) error {
	if req.UserId == "" {
		return fmt.Errorf("%w: user id is required", store.ErrInvalidArgument)
	}
	coin, err := models.NormalizeCoin(req.Coin)
	if err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidArgument, err)
	}
	req.Coin = coin

	if req.Currency == "" {
		req.Currency = s.currency
	}
	currency, err := models.NormalizeCoin(req.Currency)
	if err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidArgument, err)
	}
	req.Currency = currency

	if _, err := models.ParseDirection(string(req.Direction)); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidArgument, err)
	}
	if !req.Stake.IsPositive() {
		return fmt.Errorf("%w: stake must be positive, got %s", store.ErrInvalidArgument, req.Stake.String())
	}
	if req.DurationSeconds <= 0 {
		return fmt.Errorf("%w: duration must be positive, got %d", store.ErrInvalidArgument, req.DurationSeconds)
	}
	if req.ProfitRatio.IsNegative() {
		return fmt.Errorf("%w: profit ratio cannot be negative, got %s", store.ErrInvalidArgument, req.ProfitRatio.String())
	}
	return nil
}

// PlaceTrade records a pending trade. The stake is checked against the
// balance not already committed to other pending trades and added to
// total_invested but not debited; a loss settlement debits it later.
func (s *Service) PlaceTrade(ctx context.Context, req PlaceTradeRequest) (*models.Trade, error) {
	if err := s.validate(&req); err != nil {
		return nil, err
	}
	if _, err := s.ledger.ActiveUser(ctx, req.UserId); err != nil {
		return nil, fmt.Errorf("place trade: %w", err)
	}

	// Price first, lock second
	entryPrice, err := s.fetchPrice(ctx, req.Coin)
	if err != nil {
		return nil, fmt.Errorf("place trade: %w", err)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate trade id: %w", err)
	}

	now := s.now()
	trade := &models.Trade{
		Id:              id.String(),
		UserId:          req.UserId,
		Coin:            req.Coin,
		Currency:        req.Currency,
		Direction:       req.Direction,
		Stake:           req.Stake,
		DurationSeconds: req.DurationSeconds,
		EntryPrice:      entryPrice,
		ProfitRatio:     req.ProfitRatio,
		Status:          models.TradePending,
		CreatedAt:       now,
		UpdatedAt:       now,
		ExpiresAt:       now.Add(time.Duration(req.DurationSeconds) * time.Second),
	}

	err = s.ledger.WithUser(ctx, req.UserId, func(scope *ledger.Scope) error {
		available, err := scope.Available(req.Currency)
		if err != nil {
			return err
		}
		if available.LessThan(req.Stake) {
			return fmt.Errorf("%w: available %s %s cannot cover stake %s",
				store.ErrInsufficientBalance, available.String(), req.Currency, req.Stake.String())
		}

		_, err = scope.Apply(ledger.Entry{
			Coin:          req.Currency,
			Delta:         decimal.Zero,
			Type:          models.TxTypeTradeInvest,
			Key:           tradeKey(trade.Id, "invest"),
			Reference:     trade.Id,
			InvestedDelta: req.Stake,
		})
		if err != nil {
			return err
		}
		return s.saveTrade(ctx, trade)
	})
	if err != nil {
		return nil, fmt.Errorf("place trade: %w", err)
	}

	s.metrics.TradePlaced()
	zap.L().Info("Trade placed",
		zap.String("trade_id", trade.Id),
		zap.String("user_id", trade.UserId),
		zap.String("coin", trade.Coin),
		zap.String("direction", string(trade.Direction)),
		zap.String("stake", trade.Stake.String()),
		zap.String("currency", trade.Currency),
		zap.String("entry_price", trade.EntryPrice.String()),
		zap.Time("expires_at", trade.ExpiresAt))
	return trade, nil
}

// GetTrade returns the stored trade.
func (s *Service) GetTrade(ctx context.Context, tradeId string) (*models.Trade, error) {
	return s.loadTrade(ctx, tradeId)
}

// ListTrades returns a user's trades, newest first. An empty userId lists
// every trade.
func (s *Service) ListTrades(ctx context.Context, userId string) ([]models.Trade, error) {
	trades, err := s.loadTrades(ctx)
	if err != nil {
		return nil, err
	}

	var result []models.Trade
	for _, trade := range trades {
		if userId == "" || trade.UserId == userId {
			result = append(result, trade)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

// QueryTradeOutcome reports the trade status. A pending trade whose duration
// has elapsed is resolved first; if the price feed is unavailable it stays
// pending and the profit is nil.
func (s *Service) QueryTradeOutcome(ctx context.Context, tradeId string) (*models.TradeOutcome, error) {
	trade, err := s.loadTrade(ctx, tradeId)
	if err != nil {
		return nil, err
	}

	if trade.Status == models.TradePending && trade.Expired(s.now()) {
		if _, err := s.resolveExpired(ctx, trade); err != nil {
			if !errors.Is(err, store.ErrExternalUnavailable) && !errors.Is(err, store.ErrInsufficientBalance) {
				return nil, err
			}
			zap.L().Warn("Deferred trade resolution",
				zap.String("trade_id", trade.Id),
				zap.Error(err))
		}
		if trade, err = s.loadTrade(ctx, tradeId); err != nil {
			return nil, err
		}
	}

	outcome := &models.TradeOutcome{
		TradeId: trade.Id,
		Status:  trade.Status,
	}
	if trade.SettlementApplied {
		profit := trade.ProfitAmount
		outcome.ProfitAmount = &profit
	}
	return outcome, nil
}
