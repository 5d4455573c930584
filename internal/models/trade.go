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
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// TradeStatus is the settlement state of a trade
type TradeStatus string

const (
	TradePending TradeStatus = "pending"
	TradeWin     TradeStatus = "win"
	TradeLoss    TradeStatus = "loss"
)

// Direction is the side a trade bets on
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

// ParseOutcome accepts "win" or "loss".
func ParseOutcome(s string) (TradeStatus, error) {
	switch TradeStatus(s) {
	case TradeWin, TradeLoss:
		return TradeStatus(s), nil
	}
	return "", fmt.Errorf("invalid outcome %q", s)
}

// ParseDirection accepts "up" or "down".
func ParseDirection(s string) (Direction, error) {
	switch Direction(s) {
	case DirectionUp, DirectionDown:
		return Direction(s), nil
	}
	return "", fmt.Errorf("invalid direction %q", s)
}

// IsTerminal reports whether the status is win or loss.
func (s TradeStatus) IsTerminal() bool {
	return s == TradeWin || s == TradeLoss
}

// Trade is a time-boxed up/down position. The stake is recorded as invested
// at creation and only debited if the trade settles as a loss.
type Trade struct {
	Id                string           `json:"id"`
	UserId            string           `json:"user_id"`
	Coin              string           `json:"coin"`
	Currency          string           `json:"currency"`
	Direction         Direction        `json:"direction"`
	Stake             decimal.Decimal  `json:"stake"`
	DurationSeconds   int64            `json:"duration_seconds"`
	EntryPrice        decimal.Decimal  `json:"entry_price"`
	ExitPrice         *decimal.Decimal `json:"exit_price,omitempty"`
	ProfitRatio       decimal.Decimal  `json:"profit_ratio"`
	Status            TradeStatus      `json:"status"`
	ForcedOutcome     TradeStatus      `json:"forced_outcome,omitempty"`
	SettlementApplied bool             `json:"settlement_applied"`
	ProfitAmount      decimal.Decimal  `json:"profit_amount"`
	Corrections       int              `json:"corrections"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
	ExpiresAt         time.Time        `json:"expires_at"`
	SettledAt         *time.Time       `json:"settled_at,omitempty"`
}

// Expired reports whether the trade duration has elapsed at now.
func (t *Trade) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// SettlementResult is returned by settle calls
type SettlementResult struct {
	TradeId      string          `json:"trade_id"`
	Status       TradeStatus     `json:"status"`
	ProfitOrLoss decimal.Decimal `json:"profit_or_loss"`
	Applied      bool            `json:"applied"`
}

// TradeOutcome is the read-only view of a trade result. ProfitAmount is nil
// while the trade is pending.
type TradeOutcome struct {
	TradeId      string           `json:"trade_id"`
	Status       TradeStatus      `json:"status"`
	ProfitAmount *decimal.Decimal `json:"profit_amount"`
}
