package accrual

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"settlement-ledger-go/internal/ledger"
	"settlement-ledger-go/internal/models"
	"settlement-ledger-go/internal/notify"
	"settlement-ledger-go/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CreateSubscription stakes amount into a catalog product. Unlike trades the
// stake is debited immediately.
func (s *Service) CreateSubscription(ctx context.Context, userId, productId string, amount decimal.Decimal) (*models.Subscription, error) {
	if userId == "" {
		return nil, fmt.Errorf("%w: user id is required", store.ErrInvalidArgument)
	}
	product, err := s.Product(productId)
	if err != nil {
		return nil, err
	}
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive, got %s", store.ErrInvalidArgument, amount.String())
	}
	if amount.LessThan(product.MinAmount) {
		return nil, fmt.Errorf("%w: %s requires at least %s %s", store.ErrInvalidArgument, product.Id, product.MinAmount.String(), product.Coin)
	}
	if product.MaxAmount.IsPositive() && amount.GreaterThan(product.MaxAmount) {
		return nil, fmt.Errorf("%w: %s accepts at most %s %s", store.ErrInvalidArgument, product.Id, product.MaxAmount.String(), product.Coin)
	}

	if _, err := s.ledger.ActiveUser(ctx, userId); err != nil {
		return nil, fmt.Errorf("create subscription: %w", err)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate subscription id: %w", err)
	}

	now := s.now()
	sub := &models.Subscription{
		Id:          id.String(),
		UserId:      userId,
		ProductId:   product.Id,
		Kind:        product.Kind,
		Coin:        product.Coin,
		Amount:      amount,
		YieldRate:   product.YieldRate,
		Status:      models.SubscriptionActive,
		TotalIncome: decimal.Zero,
		TodayIncome: decimal.Zero,
		StartDate:   now,
		UpdatedAt:   now,
	}

	err = s.ledger.WithUser(ctx, userId, func(scope *ledger.Scope) error {
		_, err := scope.Apply(ledger.Entry{
			Coin:          sub.Coin,
			Delta:         amount.Neg(),
			Type:          models.TxTypeSubscriptionStake,
			Key:           subscriptionKey(sub.Id, "stake"),
			Reference:     sub.Id,
			InvestedDelta: amount,
		})
		if err != nil {
			return err
		}
		return s.saveSubscription(ctx, sub)
	})
	if err != nil {
		return nil, fmt.Errorf("create subscription: %w", err)
	}

	zap.L().Info("Subscription created",
		zap.String("subscription_id", sub.Id),
		zap.String("user_id", userId),
		zap.String("product_id", product.Id),
		zap.String("kind", string(sub.Kind)),
		zap.String("amount", amount.String()),
		zap.String("coin", sub.Coin))
	return sub, nil
}

func (s *Service) GetSubscription(ctx context.Context, id string) (*models.Subscription, error) {
	return s.loadSubscription(ctx, id)
}

// ListSubscriptions returns a user's subscriptions, newest first. An empty
// userId lists all of them.
func (s *Service) ListSubscriptions(ctx context.Context, userId string) ([]models.Subscription, error) {
	subs, err := s.loadSubscriptions(ctx)
	if err != nil {
		return nil, err
	}

	var result []models.Subscription
	for _, sub := range subs {
		if userId == "" || sub.UserId == userId {
			result = append(result, sub)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].StartDate.After(result[j].StartDate)
	})
	return result, nil
}

// RequestRedeem stops accrual and queues the subscription for redemption.
// Repeating the request is a no-op.
func (s *Service) RequestRedeem(ctx context.Context, id string) (*models.Subscription, error) {
	sub, err := s.loadSubscription(ctx, id)
	if err != nil {
		return nil, err
	}

	var updated *models.Subscription
	err = s.ledger.WithUser(ctx, sub.UserId, func(scope *ledger.Scope) error {
		current, err := s.loadSubscription(ctx, id)
		if err != nil {
			return err
		}
		updated = current

		switch current.Status {
		case models.SubscriptionRedeeming:
			return nil
		case models.SubscriptionRedeemed:
			return fmt.Errorf("%w: subscription %s is already redeemed", store.ErrInvalidState, id)
		}
		current.Status = models.SubscriptionRedeeming
		current.UpdatedAt = s.now()
		return s.saveSubscription(ctx, current)
	})
	if err != nil {
		return nil, fmt.Errorf("request redeem: %w", err)
	}

	zap.L().Info("Redemption requested",
		zap.String("subscription_id", id),
		zap.String("user_id", updated.UserId))
	return updated, nil
}

// CompleteRedeem returns the principal of a redeeming subscription. The
// credit is keyed on the subscription so it lands once even if the call is
// retried after a crash.
func (s *Service) CompleteRedeem(ctx context.Context, id string) (*models.Subscription, error) {
	sub, err := s.loadSubscription(ctx, id)
	if err != nil {
		return nil, err
	}

	var updated *models.Subscription
	var completed bool
	err = s.ledger.WithUser(ctx, sub.UserId, func(scope *ledger.Scope) error {
		current, err := s.loadSubscription(ctx, id)
		if err != nil {
			return err
		}
		updated = current

		switch current.Status {
		case models.SubscriptionRedeemed:
			return nil
		case models.SubscriptionActive:
			return fmt.Errorf("%w: subscription %s has no pending redemption", store.ErrInvalidState, id)
		}

		_, err = scope.Apply(ledger.Entry{
			Coin:      current.Coin,
			Delta:     current.Amount,
			Type:      models.TxTypeRedemption,
			Key:       subscriptionKey(current.Id, "redeem"),
			Reference: current.Id,
		})
		if err != nil && !errors.Is(err, store.ErrDuplicateTransaction) {
			return err
		}

		now := s.now()
		current.Status = models.SubscriptionRedeemed
		current.UpdatedAt = now
		current.RedeemedAt = &now
		completed = true
		return s.saveSubscription(ctx, current)
	})
	if err != nil {
		return nil, fmt.Errorf("complete redeem: %w", err)
	}

	if completed {
		zap.L().Info("Subscription redeemed",
			zap.String("subscription_id", id),
			zap.String("user_id", updated.UserId),
			zap.String("principal", updated.Amount.String()),
			zap.String("coin", updated.Coin))
		notify.Emit(ctx, s.notifier, s.timeout, s.metrics, updated.UserId, "Subscription redeemed",
			fmt.Sprintf("Your %s principal of %s %s has been returned", updated.Kind, updated.Amount.String(), updated.Coin))
	}
	return updated, nil
}
