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
	"settlement-ledger-go/internal/models"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

type reportStats struct {
	totalUsers         int
	totalPositions     int
	pendingTrades      int
	usersWithPositions int
}

func printUserHeader(user common.UserInfo, tradeCount, subCount int) {
	fmt.Printf("\n┌─ User: %s\n", user.Id)
	if user.WalletAddress != "" {
		fmt.Printf("│  Wallet: %s\n", user.WalletAddress)
	}
	fmt.Printf("│  Trades: %d  Subscriptions: %d\n", tradeCount, subCount)
	common.PrintBoxSeparator(98)
}

func printTrade(trade models.Trade, isLast bool) {
	symbol := common.BoxPrefix(isLast)
	pair := fmt.Sprintf("%s/%s %s", trade.Coin, trade.Currency, trade.Direction)
	fmt.Printf("%s trade %-11s %-16s stake %s  %s\n",
		symbol, common.ShortId(trade.Id), pair,
		common.FormatCoinAmount(trade.Stake, trade.Currency), trade.Status)

	detailSymbol := common.BoxDetailPrefix(isLast)
	if trade.SettlementApplied && trade.SettledAt != nil {
		fmt.Printf("%s   P/L: %s  settled: %s\n", detailSymbol,
			trade.ProfitAmount.StringFixed(models.ProfitPlaces),
			trade.SettledAt.Format("2006-01-02 15:04:05"))
	} else {
		fmt.Printf("%s   expires: %s\n", detailSymbol, trade.ExpiresAt.Format("2006-01-02 15:04:05"))
	}
	if trade.ForcedOutcome != "" || trade.Corrections > 0 {
		fmt.Printf("%s   forced: %s  corrections: %d\n", detailSymbol, trade.ForcedOutcome, trade.Corrections)
	}
}

func printSubscription(sub models.Subscription, isLast bool) {
	symbol := common.BoxPrefix(isLast)
	fmt.Printf("%s %-5s %-11s %-18s %s %s  %s\n",
		symbol, sub.Kind, common.ShortId(sub.Id), sub.ProductId,
		common.FormatCoinAmount(sub.Amount, sub.Coin), sub.Coin, sub.Status)

	detailSymbol := common.BoxDetailPrefix(isLast)
	fmt.Printf("%s   income: %s total, %s today\n", detailSymbol,
		common.FormatCoinAmount(sub.TotalIncome, sub.Coin),
		common.FormatCoinAmount(sub.TodayIncome, sub.Coin))
}

func processUser(ctx context.Context, user common.UserInfo, services *common.Services) (int, int, error) {
	trades, err := services.Settlement.ListTrades(ctx, user.Id)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to list trades: %w", err)
	}
	subs, err := services.Accrual.ListSubscriptions(ctx, user.Id)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to list subscriptions: %w", err)
	}

	if len(trades) == 0 && len(subs) == 0 {
		return 0, 0, nil
	}

	printUserHeader(user, len(trades), len(subs))
	pending := 0
	total := len(trades) + len(subs)
	for i, trade := range trades {
		if !trade.SettlementApplied {
			pending++
		}
		printTrade(trade, i == total-1)
	}
	for i, sub := range subs {
		printSubscription(sub, len(trades)+i == total-1)
	}

	return total, pending, nil
}

func processUsersAndGenerateReport(ctx context.Context, users []common.UserInfo, services *common.Services, logger *zap.Logger) reportStats {
	stats := reportStats{}

	for _, user := range users {
		stats.totalUsers++

		count, pending, err := processUser(ctx, user, services)
		if err != nil {
			logger.Error("Failed to process user",
				zap.String("user_id", user.Id),
				zap.Error(err))
			continue
		}

		if count > 0 {
			stats.usersWithPositions++
			stats.totalPositions += count
			stats.pendingTrades += pending
		}
	}

	return stats
}

func main() {
	ctx := context.Background()

	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	userFlag := flag.String("user", "", "Filter by user id (optional)")
	walletFlag := flag.String("wallet", "", "Filter by wallet address (optional)")
	flag.Parse()

	logger.Info("Starting positions query")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	services, err := common.InitializeServices(ctx, cfg, prometheus.NewRegistry())
	if err != nil {
		logger.Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	users, err := common.InitializeUsers(ctx, services.DbService, *userFlag, *walletFlag, logger)
	if err != nil {
		logger.Fatal("Failed to initialize users", zap.Error(err))
	}

	common.PrintHeader("POSITIONS REPORT", common.WideWidth)

	stats := processUsersAndGenerateReport(ctx, users, services, logger)

	summary := fmt.Sprintf("SUMMARY: %d users with positions (%d positions, %d unsettled trades across %d users queried)",
		stats.usersWithPositions, stats.totalPositions, stats.pendingTrades, stats.totalUsers)
	common.PrintFooter(summary, common.WideWidth)

	logger.Info("Positions query completed",
		zap.Int("users_queried", stats.totalUsers),
		zap.Int("users_with_positions", stats.usersWithPositions),
		zap.Int("total_positions", stats.totalPositions),
		zap.Int("pending_trades", stats.pendingTrades))
}
