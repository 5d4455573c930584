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
	"crypto/sha256"
	"encoding/hex"
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

// printCatalog lists the loaded products so a bad products.yaml is caught at
// setup time rather than on the first subscription.
func printCatalog(products []models.Product) {
	common.PrintHeader("PRODUCT CATALOG", common.WideWidth)
	for i, p := range products {
		symbol := common.BoxPrefix(i == len(products)-1)
		limit := "unbounded"
		if p.MaxAmount.IsPositive() {
			limit = p.MaxAmount.String()
		}
		fmt.Printf("%s %-20s %-9s %-5s yield %-8s min %-10s max %s\n",
			symbol, p.Id, p.Kind, p.Coin, p.YieldRate.String(), p.MinAmount.String(), limit)
	}
	common.PrintSeparator("=", common.WideWidth)
}

// demoWallet derives a stable wallet address so seeding is repeatable.
func demoWallet(n int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("demo-user-%d", n)))
	return "0x" + hex.EncodeToString(sum[:20])
}

func seedDemoUsers(ctx context.Context, services *common.Services, count int, funding decimal.Decimal, currency string) {
	var created, failed int
	for n := 1; n <= count; n++ {
		userId := fmt.Sprintf("demo-%03d", n)

		user, err := services.API.ConnectWallet(ctx, userId, demoWallet(n))
		if err != nil {
			zap.L().Error("Error creating demo user", zap.String("user_id", userId), zap.Error(err))
			failed++
			continue
		}

		_, err = services.API.AdjustBalance(ctx, user.Id, currency, funding, "demo funding", "seed:"+user.Id+":"+currency)
		if err != nil && !errors.Is(err, store.ErrDuplicateTransaction) {
			zap.L().Error("Error funding demo user", zap.String("user_id", userId), zap.Error(err))
			failed++
			continue
		}

		zap.L().Info("Demo user ready",
			zap.String("user_id", user.Id),
			zap.String("wallet", user.WalletAddress))
		created++
	}

	if failed > 0 {
		zap.L().Warn("Demo seeding completed with some failures",
			zap.Int("users_ready", created),
			zap.Int("failed", failed))
	} else {
		zap.L().Info("Demo seeding completed successfully", zap.Int("users_ready", created))
	}
}

func runInit(ctx context.Context, services *common.Services) {
	zap.L().Info("Verifying database schema")
	if err := services.API.HealthCheck(ctx); err != nil {
		zap.L().Fatal("Database not usable", zap.Error(err))
	}

	users, err := services.DbService.GetUsers(ctx)
	if err != nil {
		zap.L().Fatal("Failed to read users from database", zap.Error(err))
	}

	var drifted int
	for _, user := range users {
		if err := services.API.ReconcileUser(ctx, user.Id); err != nil {
			zap.L().Error("Balance does not match journal", zap.String("user_id", user.Id), zap.Error(err))
			drifted++
		}
	}

	zap.L().Info("Initialization complete",
		zap.Int("users", len(users)),
		zap.Int("users_out_of_balance", drifted))
}

func main() {
	ctx := context.Background()

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	initFlag := flag.Bool("init", false, "Initialize the database and reconcile existing users")
	seedFlag := flag.Int("seed", 0, "Create this many demo users")
	fundFlag := flag.String("fund", "1000", "Settlement-currency balance for each demo user")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load config", zap.Error(err))
	}

	funding, err := decimal.NewFromString(*fundFlag)
	if err != nil || !funding.IsPositive() {
		zap.L().Fatal("Invalid --fund amount", zap.String("fund", *fundFlag))
	}

	services, err := common.InitializeServices(ctx, cfg, prometheus.NewRegistry())
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	printCatalog(services.API.ListProducts())

	if *initFlag {
		runInit(ctx, services)
	}
	if *seedFlag > 0 {
		seedDemoUsers(ctx, services, *seedFlag, funding, cfg.Settlement.Currency)
	}
}
