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

	"settlement-ledger-go/internal/models"

	"github.com/shopspring/decimal"
)

func (s *LedgerService) RequestWithdrawal(ctx context.Context, userId, coin string, amount decimal.Decimal, destination string) (*models.Withdrawal, error) {
	return s.funds.RequestWithdrawal(ctx, userId, coin, amount, destination)
}

func (s *LedgerService) CompleteWithdrawal(ctx context.Context, id string) (*models.Withdrawal, error) {
	return s.funds.CompleteWithdrawal(ctx, id)
}

func (s *LedgerService) RejectWithdrawal(ctx context.Context, id, reason string) (*models.Withdrawal, error) {
	return s.funds.RejectWithdrawal(ctx, id, reason)
}

func (s *LedgerService) ListWithdrawals(ctx context.Context, userId string) ([]models.Withdrawal, error) {
	return s.funds.ListWithdrawals(ctx, userId)
}

func (s *LedgerService) Exchange(ctx context.Context, userId, from, to string, amount decimal.Decimal) (*models.ExchangeResult, error) {
	return s.funds.Exchange(ctx, userId, from, to, amount)
}
