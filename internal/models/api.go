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

package models

import (
	"github.com/shopspring/decimal"
)

// UserBalance represents a user's balance for a specific asset
type UserBalance struct {
	Asset   string          `json:"asset"`
	Balance decimal.Decimal `json:"balance"`
}

// AdjustmentResult represents the result of a manual balance adjustment
type AdjustmentResult struct {
	UserId     string          `json:"user_id"`
	Asset      string          `json:"asset"`
	Delta      decimal.Decimal `json:"delta"`
	NewBalance decimal.Decimal `json:"new_balance"`
	Reason     string          `json:"reason,omitempty"`
}

// SweepResult summarizes one settlement sweep
type SweepResult struct {
	TradesSettled        int  `json:"trades_settled"`
	SubscriptionsAccrued int  `json:"subscriptions_accrued"`
	Skipped              bool `json:"skipped"`
}
