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

package main

import (
	"context"
	"flag"
	"fmt"

	"settlement-ledger-go/internal/common"
	"settlement-ledger-go/internal/config"
	"settlement-ledger-go/internal/database"
	"settlement-ledger-go/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type balanceStats struct {
	totalUsers        int
	usersWithBalances int
	driftedBalances   int
}

func printBalance(coin string, balance decimal.Decimal, drift bool, isLast bool) {
	symbol := common.BoxPrefix(isLast)
	marker := ""
	if drift {
		marker = "  (journal mismatch)"
	}
	fmt.Printf("%s %-6s: %24s%s\n", symbol, coin, common.FormatCoinAmount(balance, coin), marker)
}

func printUserHeader(user common.UserInfo) {
	status := "active"
	if user.Banned {
		status = "banned"
	}
	fmt.Printf("\n┌─ User: %s (%s)\n", user.Id, status)
	if user.WalletAddress != "" {
		fmt.Printf("│  Wallet: %s\n", user.WalletAddress)
	}
	fmt.Printf("│  Invested: %s  Income: %s\n",
		user.TotalInvested.StringFixed(models.ProfitPlaces),
		user.TotalIncome.StringFixed(models.ProfitPlaces))
	common.PrintBoxSeparator(78)
}

// processUser prints every supported coin, zero-filled, and returns how many
// balances are non-zero and how many disagree with the journal.
func processUser(ctx context.Context, user common.UserInfo, dbService *database.Service, reconcile bool) (int, int, error) {
	printUserHeader(user)

	nonZero, drifted := 0, 0
	for i, coin := range models.SupportedCoins {
		balance, err := dbService.GetUserBalance(ctx, user.Id, coin)
		if err != nil {
			return nonZero, drifted, fmt.Errorf("failed to get %s balance: %w", coin, err)
		}
		if !balance.IsZero() {
			nonZero++
		}

		drift := false
		if reconcile {
			if err := dbService.ReconcileUserBalance(ctx, user.Id, coin); err != nil {
				drift = true
				drifted++
			}
		}
		printBalance(coin, balance, drift, i == len(models.SupportedCoins)-1)
	}

	return nonZero, drifted, nil
}

func processUsersAndGenerateReport(ctx context.Context, users []common.UserInfo, dbService *database.Service, reconcile bool, logger *zap.Logger) balanceStats {
	stats := balanceStats{}

	for _, user := range users {
		stats.totalUsers++

		nonZero, drifted, err := processUser(ctx, user, dbService, reconcile)
		if err != nil {
			logger.Error("Failed to process user",
				zap.String("user_id", user.Id),
				zap.Error(err))
			continue
		}

		if nonZero > 0 {
			stats.usersWithBalances++
		}
		stats.driftedBalances += drifted
	}

	return stats
}

func main() {
	ctx := context.Background()

	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	userFlag := flag.String("user", "", "Filter by user id (optional)")
	walletFlag := flag.String("wallet", "", "Filter by wallet address (optional)")
	reconcileFlag := flag.Bool("reconcile", false, "Check each balance against the journal")
	flag.Parse()

	logger.Info("Starting balance query")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	logger.Info("Connecting to database", zap.String("path", cfg.Database.Path))
	dbService, err := common.InitializeDatabaseOnly(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer dbService.Close()

	users, err := common.InitializeUsers(ctx, dbService, *userFlag, *walletFlag, logger)
	if err != nil {
		logger.Fatal("Failed to initialize users", zap.Error(err))
	}

	common.PrintHeader("USER BALANCE REPORT", common.DefaultWidth)

	stats := processUsersAndGenerateReport(ctx, users, dbService, *reconcileFlag, logger)

	summary := fmt.Sprintf("SUMMARY: %d users with balances (%d users queried)",
		stats.usersWithBalances, stats.totalUsers)
	if *reconcileFlag {
		summary += fmt.Sprintf(", %d balances out of line with the journal", stats.driftedBalances)
	}
	common.PrintFooter(summary, common.DefaultWidth)

	logger.Info("Balance query completed",
		zap.Int("users_queried", stats.totalUsers),
		zap.Int("users_with_balances", stats.usersWithBalances),
		zap.Int("drifted_balances", stats.driftedBalances))
}
