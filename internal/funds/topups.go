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

// RequestTopup records a deposit claim. Nothing is credited until an
// administrator approves it.
func (s *Service) RequestTopup(ctx context.Context, userId, coin string, amount decimal.Decimal, txHash string) (*models.Topup, error) {
	symbol, err := validAmount(userId, coin, amount)
	if err != nil {
		return nil, err
	}
	if _, err := s.ledger.EnsureUser(ctx, userId, ""); err != nil {
		return nil, fmt.Errorf("request topup: %w", err)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate topup id: %w", err)
	}
	now := s.now()
	topup := &models.Topup{
		Id:        id.String(),
		UserId:    userId,
		Coin:      symbol,
		Amount:    amount,
		TxHash:    txHash,
		Status:    models.FundsPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.put(ctx, store.CollectionTopups, topup.Id, topup); err != nil {
		return nil, err
	}

	zap.L().Info("Topup requested",
		zap.String("topup_id", topup.Id),
		zap.String("user_id", userId),
		zap.String("amount", amount.String()),
		zap.String("coin", symbol),
		zap.String("tx_hash", txHash))
	return topup, nil
}

// ApproveTopup credits a pending top-up exactly once.
func (s *Service) ApproveTopup(ctx context.Context, id string) (*models.Topup, error) {
	var topup models.Topup
	if err := s.get(ctx, store.CollectionTopups, id, &topup); err != nil {
		return nil, err
	}

	var approved bool
	err := s.ledger.WithUser(ctx, topup.UserId, func(scope *ledger.Scope) error {
		if err := s.get(ctx, store.CollectionTopups, id, &topup); err != nil {
			return err
		}
		switch topup.Status {
		case models.FundsApproved:
			return nil
		case models.FundsRejected:
			return fmt.Errorf("%w: topup %s was rejected", store.ErrInvalidState, id)
		}

		_, err := scope.Apply(ledger.Entry{
			Coin:      topup.Coin,
			Delta:     topup.Amount,
			Type:      models.TxTypeTopup,
			Key:       "topup:" + topup.Id,
			Reference: topup.Id,
		})
		if err != nil && !errors.Is(err, store.ErrDuplicateTransaction) {
			return err
		}

		topup.Status = models.FundsApproved
		topup.UpdatedAt = s.now()
		approved = true
		return s.put(ctx, store.CollectionTopups, topup.Id, &topup)
	})
	if err != nil {
		return nil, fmt.Errorf("approve topup: %w", err)
	}

	if approved {
		zap.L().Info("Topup approved",
			zap.String("topup_id", id),
			zap.String("user_id", topup.UserId),
			zap.String("amount", topup.Amount.String()),
			zap.String("coin", topup.Coin))
		notify.Emit(ctx, s.notifier, s.timeout, s.metrics, topup.UserId, "Deposit credited",
			fmt.Sprintf("Your deposit of %s %s has been credited", topup.Amount.String(), topup.Coin))
	}
	return &topup, nil
}

// RejectTopup closes a pending top-up without crediting it.
func (s *Service) RejectTopup(ctx context.Context, id string) (*models.Topup, error) {
	var topup models.Topup
	if err := s.get(ctx, store.CollectionTopups, id, &topup); err != nil {
		return nil, err
	}

	err := s.ledger.WithUser(ctx, topup.UserId, func(scope *ledger.Scope) error {
		if err := s.get(ctx, store.CollectionTopups, id, &topup); err != nil {
			return err
		}
		switch topup.Status {
		case models.FundsRejected:
			return nil
		case models.FundsApproved:
			return fmt.Errorf("%w: topup %s was already credited", store.ErrInvalidState, id)
		}
		topup.Status = models.FundsRejected
		topup.UpdatedAt = s.now()
		return s.put(ctx, store.CollectionTopups, topup.Id, &topup)
	})
	if err != nil {
		return nil, fmt.Errorf("reject topup: %w", err)
	}

	zap.L().Info("Topup rejected", zap.String("topup_id", id), zap.String("user_id", topup.UserId))
	return &topup, nil
}

// ListTopups returns a user's top-ups, newest first. An empty userId lists
// all of them.
func (s *Service) ListTopups(ctx context.Context, userId string) ([]models.Topup, error) {
	topups, err := list(ctx, s.records, store.CollectionTopups, func(t *models.Topup) bool {
		return userId == "" || t.UserId == userId
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(topups, func(i, j int) bool {
		return topups[i].CreatedAt.After(topups[j].CreatedAt)
	})
	return topups, nil
}

func validAmount(userId, coin string, amount decimal.Decimal) (string, error) {
	if userId == "" {
		return "", fmt.Errorf("%w: user id is required", store.ErrInvalidArgument)
	}
	symbol, err := models.NormalizeCoin(coin)
	if err != nil {
		return "", fmt.Errorf("%w: %v", store.ErrInvalidArgument, err)
	}
	if !amount.IsPositive() {
		return "", fmt.Errorf("%w: amount must be positive, got %s", store.ErrInvalidArgument, amount.String())
	}
	return symbol, nil
}
