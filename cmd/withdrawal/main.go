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

	"settlement-ledger-go/internal/common"
	"settlement-ledger-go/internal/config"
	"settlement-ledger-go/internal/models"
	"settlement-ledger-go/internal/store"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type withdrawalRequest struct {
	wallet      string
	coin        string
	amount      decimal.Decimal
	destination string
	completeId  string
	rejectId    string
	reason      string
}

func parseAndValidateFlags() (*withdrawalRequest, error) {
	walletFlag := flag.String("wallet", "", "User wallet address")
	coinFlag := flag.String("coin", "", "Coin symbol (e.g., USDT, BTC)")
	amountFlag := flag.String("amount", "", "Amount to withdraw")
	destinationFlag := flag.String("destination", "", "Destination address")
	completeFlag := flag.String("complete", "", "Mark a pending withdrawal as sent")
	rejectFlag := flag.String("reject", "", "Reject a pending withdrawal and refund it")
	reasonFlag := flag.String("reason", "", "Rejection reason")
	flag.Parse()

	req := &withdrawalRequest{
		wallet:      *walletFlag,
		destination: *destinationFlag,
		completeId:  *completeFlag,
		rejectId:    *rejectFlag,
		reason:      *reasonFlag,
	}
	if req.completeId != "" || req.rejectId != "" {
		if req.completeId != "" && req.rejectId != "" {
			return nil, fmt.Errorf("--complete and --reject are mutually exclusive")
		}
		return req, nil
	}

	if *walletFlag == "" || *coinFlag == "" || *amountFlag == "" || *destinationFlag == "" {
		return nil, fmt.Errorf("all flags are required: --wallet, --coin, --amount, --destination")
	}

	coin, err := models.NormalizeCoin(*coinFlag)
	if err != nil {
		return nil, err
	}
	amount, err := decimal.NewFromString(*amountFlag)
	if err != nil {
		return nil, fmt.Errorf("invalid amount format: %w", err)
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("amount must be greater than zero")
	}

	req.coin = coin
	req.amount = amount
	return req, nil
}

func verifyBalance(ctx context.Context, services *common.Services, user *models.User, coin string, amount decimal.Decimal) (decimal.Decimal, error) {
	balance, err := services.API.GetUserBalance(ctx, user.Id, coin)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to get user balance: %w", err)
	}

	if balance.LessThan(amount) {
		return balance, fmt.Errorf("insufficient balance: current=%s, requested=%s, shortfall=%s",
			balance.String(), amount.String(), amount.Sub(balance).String())
	}

	zap.L().Info("Balance verification successful",
		zap.String("user_id", user.Id),
		zap.String("coin", coin),
		zap.String("balance", balance.String()))

	return balance, nil
}

func printWithdrawalSummary(user *models.User, coin string, currentBalance, amount decimal.Decimal, destination string) {
	common.PrintHeader("WITHDRAWAL REQUEST", common.DefaultWidth)
	fmt.Printf("User:              %s (%s)\n", user.Id, user.WalletAddress)
	fmt.Printf("Coin:              %s\n", coin)
	fmt.Printf("Current Balance:   %s %s\n", common.FormatCoinAmount(currentBalance, coin), coin)
	fmt.Printf("Withdrawal Amount: %s %s\n", common.FormatCoinAmount(amount, coin), coin)
	fmt.Printf("Remaining Balance: %s %s\n", common.FormatCoinAmount(currentBalance.Sub(amount), coin), coin)
	fmt.Printf("Destination:       %s\n", destination)
	common.PrintSeparator("=", common.DefaultWidth)
	fmt.Println("\n✅ Balance verification PASSED")
	fmt.Println()
}

func printWithdrawal(title string, w *models.Withdrawal) {
	common.PrintHeader(title, common.DefaultWidth)
	fmt.Printf("ID:          %s\n", w.Id)
	fmt.Printf("User:        %s\n", w.UserId)
	fmt.Printf("Amount:      %s %s\n", common.FormatCoinAmount(w.Amount, w.Coin), w.Coin)
	fmt.Printf("Destination: %s\n", w.Destination)
	fmt.Printf("Status:      %s\n", w.Status)
	common.PrintSeparator("=", common.DefaultWidth)
	fmt.Println()
}

func main() {
	ctx := context.Background()

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	req, err := parseAndValidateFlags()
	if err != nil {
		zap.L().Fatal("Invalid flags", zap.Error(err))
	}

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

	switch {
	case req.completeId != "":
		w, err := services.API.CompleteWithdrawal(ctx, req.completeId)
		if err != nil {
			zap.L().Fatal("Failed to complete withdrawal", zap.String("id", req.completeId), zap.Error(err))
		}
		printWithdrawal("WITHDRAWAL COMPLETED", w)
		return
	case req.rejectId != "":
		w, err := services.API.RejectWithdrawal(ctx, req.rejectId, req.reason)
		if err != nil {
			zap.L().Fatal("Failed to reject withdrawal", zap.String("id", req.rejectId), zap.Error(err))
		}
		printWithdrawal("WITHDRAWAL REJECTED (REFUNDED)", w)
		return
	}

	zap.L().Info("Starting withdrawal process",
		zap.String("wallet", req.wallet),
		zap.String("coin", req.coin),
		zap.String("amount", req.amount.String()),
		zap.String("destination", req.destination))

	targetUser, err := services.DbService.GetUserByWallet(ctx, req.wallet)
	if err != nil {
		common.PrintHeader("WITHDRAWAL FAILED", common.DefaultWidth)
		fmt.Printf("Error: User not found for wallet %s\n", req.wallet)
		common.PrintSeparator("=", common.DefaultWidth)
		zap.L().Fatal("User not found", zap.String("wallet", req.wallet), zap.Error(err))
	}

	currentBalance, err := verifyBalance(ctx, services, targetUser, req.coin, req.amount)
	if err != nil {
		common.PrintHeader("WITHDRAWAL FAILED", common.DefaultWidth)
		fmt.Printf("Error: %v\n", err)
		common.PrintSeparator("=", common.DefaultWidth)
		zap.L().Fatal("Balance verification failed", zap.Error(err))
	}

	printWithdrawalSummary(targetUser, req.coin, currentBalance, req.amount, req.destination)

	// The debit happens under the user lock, so a concurrent spend can
	// still make it fail after the check above.
	w, err := services.API.RequestWithdrawal(ctx, targetUser.Id, req.coin, req.amount, req.destination)
	if err != nil {
		if errors.Is(err, store.ErrInsufficientBalance) {
			zap.L().Fatal("Balance changed before the debit - please retry", zap.Error(err))
		}
		zap.L().Fatal("Failed to request withdrawal", zap.Error(err))
	}

	printWithdrawal("WITHDRAWAL PENDING", w)
	fmt.Printf("Complete with: go run cmd/withdrawal/main.go --complete %s\n\n", w.Id)

	zap.L().Info("Withdrawal requested",
		zap.String("withdrawal_id", w.Id),
		zap.String("user_id", targetUser.Id))
}
