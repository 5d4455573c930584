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
	"errors"
	"flag"
	"fmt"
	"regexp"
	"strings"

	"settlement-ledger-go/internal/api"
	"settlement-ledger-go/internal/common"
	"settlement-ledger-go/internal/config"
	"settlement-ledger-go/internal/models"
	"settlement-ledger-go/internal/store"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var walletRegex = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

type fundingResult struct {
	coin       string
	amount     decimal.Decimal
	newBalance decimal.Decimal
	err        error
}

func validateWallet(wallet string) error {
	if wallet == "" {
		return fmt.Errorf("wallet address cannot be empty")
	}
	if !walletRegex.MatchString(wallet) {
		return fmt.Errorf("invalid wallet address format: %s", wallet)
	}
	return nil
}

// parseFunding reads "USDT=1000,ETH=2" into per-coin opening balances.
func parseFunding(raw string) (map[string]decimal.Decimal, error) {
	funding := map[string]decimal.Decimal{}
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		coin, value, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("invalid funding %q, want COIN=AMOUNT", pair)
		}
		symbol, err := models.NormalizeCoin(coin)
		if err != nil {
			return nil, err
		}
		amount, err := decimal.NewFromString(strings.TrimSpace(value))
		if err != nil {
			return nil, fmt.Errorf("invalid amount for %s: %w", symbol, err)
		}
		if !amount.IsPositive() {
			return nil, fmt.Errorf("amount for %s must be greater than zero", symbol)
		}
		funding[symbol] = amount
	}
	return funding, nil
}

// fundUser credits opening balances. The key is derived from the user id so
// re-running the command does not credit twice.
func fundUser(ctx context.Context, svc *api.LedgerService, userId string, funding map[string]decimal.Decimal) []fundingResult {
	var results []fundingResult
	for _, coin := range models.SupportedCoins {
		amount, ok := funding[coin]
		if !ok {
			continue
		}
		result := fundingResult{coin: coin, amount: amount}
		adjusted, err := svc.AdjustBalance(ctx, userId, coin, amount, "opening balance", "onboarding:"+userId+":"+coin)
		switch {
		case errors.Is(err, store.ErrDuplicateTransaction):
			result.newBalance, result.err = svc.GetUserBalance(ctx, userId, coin)
		case err != nil:
			result.err = err
		default:
			result.newBalance = adjusted.NewBalance
		}
		results = append(results, result)
	}
	return results
}

func main() {
	ctx := context.Background()

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	idFlag := flag.String("id", "", "User id (optional, generated when empty)")
	walletFlag := flag.String("wallet", "", "User's wallet address (required)")
	fundFlag := flag.String("fund", "", "Opening balances, e.g. USDT=1000,ETH=2 (optional)")
	flag.Parse()

	if err := validateWallet(*walletFlag); err != nil {
		zap.L().Fatal("Invalid wallet", zap.Error(err))
	}
	funding, err := parseFunding(*fundFlag)
	if err != nil {
		zap.L().Fatal("Invalid funding", zap.Error(err))
	}

	userId := *idFlag
	if userId == "" {
		userId = uuid.New().String()
	}

	zap.L().Info("Starting user creation process",
		zap.String("id", userId),
		zap.String("wallet", *walletFlag))

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load config", zap.Error(err))
	}

	zap.L().Info("Initializing services")
	services, err := common.InitializeServices(ctx, cfg, prometheus.NewRegistry())
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	user, err := services.API.ConnectWallet(ctx, userId, *walletFlag)
	if err != nil {
		if errors.Is(err, store.ErrInvalidArgument) {
			zap.L().Fatal("Wallet already belongs to another user", zap.String("wallet", *walletFlag))
		}
		zap.L().Fatal("Failed to create user", zap.Error(err))
	}

	fmt.Println()
	common.PrintHeader("USER CREATED", common.DefaultWidth)
	fmt.Printf("ID:     %s\n", user.Id)
	fmt.Printf("Wallet: %s\n", user.WalletAddress)
	common.PrintSeparator("=", common.DefaultWidth)
	fmt.Println()

	zap.L().Info("User created successfully", zap.String("id", user.Id))

	if len(funding) == 0 {
		return
	}

	results := fundUser(ctx, services.API, user.Id, funding)

	common.PrintHeader("OPENING BALANCES", common.DefaultWidth)
	var failed []string
	for _, r := range results {
		if r.err != nil {
			fmt.Printf("✗ %-6s %s (%v)\n", r.coin, common.FormatCoinAmount(r.amount, r.coin), r.err)
			failed = append(failed, r.coin)
			continue
		}
		fmt.Printf("✓ %-6s balance %s\n", r.coin, common.FormatCoinAmount(r.newBalance, r.coin))
	}
	common.PrintSeparator("=", common.DefaultWidth)
	fmt.Println()

	if len(failed) > 0 {
		zap.L().Warn("User created but some opening balances failed",
			zap.String("user_id", user.Id),
			zap.Strings("failed_coins", failed))
		return
	}
	zap.L().Info("User funded", zap.String("user_id", user.Id), zap.Int("coins", len(results)))
}
