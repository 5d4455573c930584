package accrual

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"settlement-ledger-go/internal/ledger"
	"settlement-ledger-go/internal/models"
	"settlement-ledger-go/internal/notify"
	"settlement-ledger-go/internal/store"

	"go.uber.org/zap"
)

// Reward is the income one window pays for a subscription.
func Reward(sub *models.Subscription) ledger.Entry {
	reward := sub.Amount.Mul(sub.YieldRate).Round(models.RewardPlaces)
	return ledger.Entry{
		Coin:        sub.Coin,
		Delta:       reward,
		Type:        models.TxTypeAccrual,
		Reference:   sub.Id,
		IncomeDelta: reward,
	}
}

// SweepDue credits every subscription whose window has elapsed and returns
// how many were credited. A failing subscription is logged and does not
// stop the others.
func (s *Service) SweepDue(ctx context.Context) (int, error) {
	subs, err := s.loadSubscriptions(ctx)
	if err != nil {
		return 0, err
	}

	now := s.now()
	accrued := 0
	var errs []error
	for i := range subs {
		sub := &subs[i]
		if !sub.AccrualDue(now, s.window) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return accrued, err
		}

		credited, err := s.Accrue(ctx, sub.Id)
		if err != nil {
			zap.L().Error("Failed to accrue subscription",
				zap.String("subscription_id", sub.Id),
				zap.String("user_id", sub.UserId),
				zap.Error(err))
			errs = append(errs, fmt.Errorf("subscription %s: %w", sub.Id, err))
			continue
		}
		if credited {
			accrued++
		}
	}

	if accrued > 0 {
		zap.L().Info("Accrued subscriptions", zap.Int("count", accrued))
	}
	return accrued, errors.Join(errs...)
}

// Accrue credits one window if the subscription is due. It reports false
// when another caller already credited the current window.
func (s *Service) Accrue(ctx context.Context, id string) (bool, error) {
	sub, err := s.loadSubscription(ctx, id)
	if err != nil {
		return false, err
	}

	var credited *models.Subscription
	var entry ledger.Entry
	err = s.ledger.WithUser(ctx, sub.UserId, func(scope *ledger.Scope) error {
		current, err := s.loadSubscription(ctx, id)
		if err != nil {
			return err
		}
		now := s.now()
		if !current.AccrualDue(now, s.window) {
			return nil
		}

		// One key per window anchor, so a crash between the credit and
		// the save cannot pay the same window twice
		entry = Reward(current)
		entry.Key = subscriptionKey(current.Id, "accrual", strconv.FormatInt(current.AccrualAnchor().Unix(), 10))
		if _, err := scope.Apply(entry); err != nil {
			if !errors.Is(err, store.ErrDuplicateTransaction) {
				return err
			}
			zap.L().Warn("Accrual already booked, latching subscription",
				zap.String("subscription_id", current.Id),
				zap.String("key", entry.Key))
		}

		current.TotalIncome = current.TotalIncome.Add(entry.Delta)
		current.TodayIncome = entry.Delta
		current.LastIncomeAt = &now
		current.UpdatedAt = now
		if err := s.saveSubscription(ctx, current); err != nil {
			return err
		}
		credited = current
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("accrue subscription %s: %w", id, err)
	}
	if credited == nil {
		return false, nil
	}

	s.metrics.Accrued(string(credited.Kind))
	zap.L().Info("Subscription income credited",
		zap.String("subscription_id", credited.Id),
		zap.String("user_id", credited.UserId),
		zap.String("reward", entry.Delta.String()),
		zap.String("coin", credited.Coin),
		zap.String("total_income", credited.TotalIncome.String()))
	notify.Emit(ctx, s.notifier, s.timeout, s.metrics, credited.UserId, "Income credited",
		fmt.Sprintf("Your %s subscription earned %s %s", credited.Kind, entry.Delta.String(), credited.Coin))
	return true, nil
}
