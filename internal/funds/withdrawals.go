package funds

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

// RequestWithdrawal debits the amount immediately and records a pending
// payout. A rejected payout is credited back.
func (s *Service) RequestWithdrawal(ctx context.Context, userId, coin string, amount decimal.Decimal, destination string) (*models.Withdrawal, error) {
	symbol, err := validAmount(userId, coin, amount)
	if err != nil {
		return nil, err
	}
	if destination == "" {
		return nil, fmt.Errorf("%w: destination is required", store.ErrInvalidArgument)
	}
	if _, err := s.ledger.ActiveUser(ctx, userId); err != nil {
		return nil, fmt.Errorf("request withdrawal: %w", err)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate withdrawal id: %w", err)
	}
	now := s.now()
	withdrawal := &models.Withdrawal{
		Id:          id.String(),
		UserId:      userId,
		Coin:        symbol,
		Amount:      amount,
		Destination: destination,
		Status:      models.FundsPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err = s.ledger.WithUser(ctx, userId, func(scope *ledger.Scope) error {
		_, err := scope.Apply(ledger.Entry{
			Coin:      symbol,
			Delta:     amount.Neg(),
			Type:      models.TxTypeWithdrawal,
			Key:       "withdrawal:" + withdrawal.Id,
			Reference: withdrawal.Id,
		})
		if err != nil {
			return err
		}
		return s.put(ctx, store.CollectionWithdrawals, withdrawal.Id, withdrawal)
	})
	if err != nil {
		return nil, fmt.Errorf("request withdrawal: %w", err)
	}

	zap.L().Info("Withdrawal requested",
		zap.String("withdrawal_id", withdrawal.Id),
		zap.String("user_id", userId),
		zap.String("amount", amount.String()),
		zap.String("coin", symbol),
		zap.String("destination", destination))
	return withdrawal, nil
}

// CompleteWithdrawal marks a pending payout as sent.
func (s *Service) CompleteWithdrawal(ctx context.Context, id string) (*models.Withdrawal, error) {
	var withdrawal models.Withdrawal
	if err := s.get(ctx, store.CollectionWithdrawals, id, &withdrawal); err != nil {
		return nil, err
	}

	var completed bool
	err := s.ledger.WithUser(ctx, withdrawal.UserId, func(scope *ledger.Scope) error {
		if err := s.get(ctx, store.CollectionWithdrawals, id, &withdrawal); err != nil {
			return err
		}
		switch withdrawal.Status {
		case models.FundsCompleted:
			return nil
		case models.FundsRejected:
			return fmt.Errorf("%w: withdrawal %s was rejected", store.ErrInvalidState, id)
		}
		withdrawal.Status = models.FundsCompleted
		withdrawal.UpdatedAt = s.now()
		completed = true
		return s.put(ctx, store.CollectionWithdrawals, withdrawal.Id, &withdrawal)
	})
	if err != nil {
		return nil, fmt.Errorf("complete withdrawal: %w", err)
	}

	if completed {
		zap.L().Info("Withdrawal completed", zap.String("withdrawal_id", id), zap.String("user_id", withdrawal.UserId))
		notify.Emit(ctx, s.notifier, s.timeout, s.metrics, withdrawal.UserId, "Withdrawal sent",
			fmt.Sprintf("Your withdrawal of %s %s has been sent", withdrawal.Amount.String(), withdrawal.Coin))
	}
	return &withdrawal, nil
}

// RejectWithdrawal cancels a pending payout and credits the amount back
// exactly once.
func (s *Service) RejectWithdrawal(ctx context.Context, id, reason string) (*models.Withdrawal, error) {
	var withdrawal models.Withdrawal
	if err := s.get(ctx, store.CollectionWithdrawals, id, &withdrawal); err != nil {
		return nil, err
	}

	var rejected bool
	err := s.ledger.WithUser(ctx, withdrawal.UserId, func(scope *ledger.Scope) error {
		if err := s.get(ctx, store.CollectionWithdrawals, id, &withdrawal); err != nil {
			return err
		}
		switch withdrawal.Status {
		case models.FundsRejected:
			return nil
		case models.FundsCompleted:
			return fmt.Errorf("%w: withdrawal %s was already sent", store.ErrInvalidState, id)
		}

		_, err := scope.Apply(ledger.Entry{
			Coin:      withdrawal.Coin,
			Delta:     withdrawal.Amount,
			Type:      models.TxTypeWithdrawalReverse,
			Key:       "withdrawal:" + withdrawal.Id + ":reversal",
			Reference: withdrawal.Id,
		})
		if err != nil && !errors.Is(err, store.ErrDuplicateTransaction) {
			return err
		}

		withdrawal.Status = models.FundsRejected
		withdrawal.Reason = reason
		withdrawal.UpdatedAt = s.now()
		rejected = true
		return s.put(ctx, store.CollectionWithdrawals, withdrawal.Id, &withdrawal)
	})
	if err != nil {
		return nil, fmt.Errorf("reject withdrawal: %w", err)
	}

	if rejected {
		zap.L().Info("Withdrawal rejected",
			zap.String("withdrawal_id", id),
			zap.String("user_id", withdrawal.UserId),
			zap.String("reason", reason))
		notify.Emit(ctx, s.notifier, s.timeout, s.metrics, withdrawal.UserId, "Withdrawal rejected",
			fmt.Sprintf("Your withdrawal of %s %s was rejected and refunded", withdrawal.Amount.String(), withdrawal.Coin))
	}
	return &withdrawal, nil
}

// ListWithdrawals returns a user's withdrawals, newest first. An empty
// userId lists all of them.
func (s *Service) ListWithdrawals(ctx context.Context, userId string) ([]models.Withdrawal, error) {
	withdrawals, err := list(ctx, s.records, store.CollectionWithdrawals, func(w *models.Withdrawal) bool {
		return userId == "" || w.UserId == userId
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(withdrawals, func(i, j int) bool {
		return withdrawals[i].CreatedAt.After(withdrawals[j].CreatedAt)
	})
	return withdrawals, nil
}
