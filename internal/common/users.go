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

package common

import (
	"context"
	"fmt"

	"settlement-ledger-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// UserInfo represents simplified user information for command-line utilities
type UserInfo struct {
	Id            string
	WalletAddress string
	Banned        bool
	TotalInvested decimal.Decimal
	TotalIncome   decimal.Decimal
}

// InitializeUsers retrieves users based on optional filters.
// A userId or walletFilter returns that single user; with neither, all users.
func InitializeUsers(ctx context.Context, dbService store.LedgerStore, userId, walletFilter string, logger *zap.Logger) ([]UserInfo, error) {
	var users []UserInfo

	switch {
	case userId != "":
		logger.Info("Looking up user by id", zap.String("user_id", userId))
		user, err := dbService.GetUserById(ctx, userId)
		if err != nil {
			return nil, fmt.Errorf("user not found: %w", err)
		}
		users = append(users, UserInfo{user.Id, user.WalletAddress, user.Banned, user.TotalInvested, user.TotalIncome})
	case walletFilter != "":
		logger.Info("Looking up user by wallet", zap.String("wallet_address", walletFilter))
		user, err := dbService.GetUserByWallet(ctx, walletFilter)
		if err != nil {
			return nil, fmt.Errorf("user not found: %w", err)
		}
		users = append(users, UserInfo{user.Id, user.WalletAddress, user.Banned, user.TotalInvested, user.TotalIncome})
	default:
		allUsers, err := dbService.GetUsers(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get users: %w", err)
		}
		for _, u := range allUsers {
			users = append(users, UserInfo{u.Id, u.WalletAddress, u.Banned, u.TotalInvested, u.TotalIncome})
		}
	}

	logger.Info("Retrieved users", zap.Int("count", len(users)))
	return users, nil
}
