/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package api

import (
	"context"
	"fmt"

	"settlement-ledger-go/internal/models"
	"settlement-ledger-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// GetUserBalance returns the current balance for a user and specific coin
func (s *LedgerService) GetUserBalance(ctx context.Context, userId, coin string) (decimal.Decimal, error) {
	if userId == "" || coin == "" {
		return decimal.Zero, fmt.Errorf("%w: user_id and coin are required", store.ErrInvalidArgument)
	}
	symbol, err := models.NormalizeCoin(coin)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", store.ErrInvalidArgument, err)
	}

	balance, err := s.ledger.GetBalance(ctx, userId, symbol)
	if err != nil {
		zap.L().Error("Failed to get user balance",
			zap.String("user_id", userId),
			zap.String("coin", symbol),
			zap.Error(err))
		return decimal.Zero, err
	}
	return balance, nil
}

// GetBalances returns every supported coin for a user, zero-filled
func (s *LedgerService) GetBalances(ctx context.Context, userId string) ([]models.UserBalance, error) {
	if userId == "" {
		return nil, fmt.Errorf("%w: user_id is required", store.ErrInvalidArgument)
	}

	balances, err := s.ledger.Balances(ctx, userId)
	if err != nil {
		zap.L().Error("Failed to get user balances", zap.String("user_id", userId), zap.Error(err))
		return nil, err
	}

	result := make([]models.UserBalance, 0, len(models.SupportedCoins))
	for _, coin := range models.SupportedCoins {
		result = append(result, models.UserBalance{Asset: coin, Balance: balances[coin]})
	}
	return result, nil
}

// AdjustBalance applies a signed delta to one coin. A non-empty key makes
// the call safe to retry.
func (s *LedgerService) AdjustBalance(ctx context.Context, userId, coin string, delta decimal.Decimal, reason, key string) (*models.AdjustmentResult, error) {
	if userId == "" {
		return nil, fmt.Errorf("%w: user_id is required", store.ErrInvalidArgument)
	}
	if delta.IsZero() {
		return nil, fmt.Errorf("%w: delta must be non-zero", store.ErrInvalidArgument)
	}
	symbol, err := models.NormalizeCoin(coin)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrInvalidArgument, err)
	}
	if _, err := s.ledger.EnsureUser(ctx, userId, ""); err != nil {
		return nil, err
	}

	newBalance, err := s.ledger.Adjust(ctx, userId, symbol, delta, reason, key)
	if err != nil {
		zap.L().Warn("Balance adjustment rejected",
			zap.String("user_id", userId),
			zap.String("coin", symbol),
			zap.String("delta", delta.String()),
			zap.Error(err))
		return nil, err
	}

	return &models.AdjustmentResult{
		UserId:     userId,
		Asset:      symbol,
		Delta:      delta,
		NewBalance: newBalance,
		Reason:     reason,
	}, nil
}

// SetBalance overwrites one coin balance. Admin only.
func (s *LedgerService) SetBalance(ctx context.Context, userId, coin string, value decimal.Decimal, reason string) (*models.AdjustmentResult, error) {
	if userId == "" {
		return nil, fmt.Errorf("%w: user_id is required", store.ErrInvalidArgument)
	}
	symbol, err := models.NormalizeCoin(coin)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrInvalidArgument, err)
	}
	if _, err := s.ledger.EnsureUser(ctx, userId, ""); err != nil {
		return nil, err
	}

	entry, err := s.ledger.SetBalance(ctx, userId, symbol, value, reason, "")
	if err != nil {
		return nil, err
	}

	return &models.AdjustmentResult{
		UserId:     userId,
		Asset:      symbol,
		Delta:      entry.BalanceAfter.Sub(entry.BalanceBefore),
		NewBalance: entry.BalanceAfter,
		Reason:     reason,
	}, nil
}

// GetTransactionHistory returns paginated ledger entries for a user and coin
func (s *LedgerService) GetTransactionHistory(ctx context.Context, userId, coin string, limit, offset int) ([]models.Transaction, error) {
	if userId == "" || coin == "" {
		return nil, fmt.Errorf("%w: user_id and coin are required", store.ErrInvalidArgument)
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	transactions, err := s.ledger.History(ctx, userId, coin, limit, offset)
	if err != nil {
		zap.L().Error("Failed to get transaction history",
			zap.String("user_id", userId),
			zap.String("coin", coin),
			zap.Error(err))
		return nil, err
	}
	return transactions, nil
}

// ReconcileUser verifies every balance of the user against its ledger entries
func (s *LedgerService) ReconcileUser(ctx context.Context, userId string) error {
	return s.ledger.Reconcile(ctx, userId)
}
