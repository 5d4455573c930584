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

func (s *LedgerService) RequestTopup(ctx context.Context, userId, coin string, amount decimal.Decimal, txHash string) (*models.Topup, error) {
	return s.funds.RequestTopup(ctx, userId, coin, amount, txHash)
}

func (s *LedgerService) ApproveTopup(ctx context.Context, id string) (*models.Topup, error) {
	return s.funds.ApproveTopup(ctx, id)
}

func (s *LedgerService) RejectTopup(ctx context.Context, id string) (*models.Topup, error) {
	return s.funds.RejectTopup(ctx, id)
}

func (s *LedgerService) ListTopups(ctx context.Context, userId string) ([]models.Topup, error) {
	return s.funds.ListTopups(ctx, userId)
}
