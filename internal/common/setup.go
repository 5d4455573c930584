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
	"log"
	"strings"

	"settlement-ledger-go/internal/accrual"
	"settlement-ledger-go/internal/api"
	"settlement-ledger-go/internal/database"
	"settlement-ledger-go/internal/flags"
	"settlement-ledger-go/internal/funds"
	"settlement-ledger-go/internal/ledger"
	"settlement-ledger-go/internal/models"
	"settlement-ledger-go/internal/notify"
	"settlement-ledger-go/internal/observability"
	"settlement-ledger-go/internal/pricefeed"
	"settlement-ledger-go/internal/scheduler"
	"settlement-ledger-go/internal/settlement"
	"settlement-ledger-go/internal/store"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// init loads environment variables from .env file if it exists
func init() {
	// Try to load .env file - if it doesn't exist, that's okay
	// Environment variables can be set via other means (shell export, docker, etc.)
	if err := godotenv.Load(); err != nil {
		log.Printf("Note: No .env file found or unable to load it: %v\n", err)
	} else {
		log.Println("✓ Loaded environment variables from .env file")
	}
}

// Services holds every wired component of the settlement core.
type Services struct {
	DbService  *database.Service
	Ledger     *ledger.Ledger
	Settlement *settlement.Service
	Accrual    *accrual.Service
	Funds      *funds.Service
	Scheduler  *scheduler.Scheduler
	Metrics    *observability.Metrics
	Health     *observability.HealthChecker
	API        *api.LedgerService

	redis *flags.RedisStore
	nats  *nats.Conn
}

func InitializeLogger() (*zap.Logger, func()) {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	zap.ReplaceGlobals(logger)

	cleanup := func() {
		if err := logger.Sync(); err != nil {
			if !isIgnorableSyncError(err) {
				log.Printf("Failed to sync logger: %v\n", err)
			}
		}
	}

	return logger, cleanup
}

// InitializeServices opens the database and wires the ledger, settlement,
// accrual, funds and scheduler components. Optional collaborators fall back
// to local implementations: SQLite flags without Redis, log-only
// notifications without NATS, static prices without a price feed URL.
func InitializeServices(ctx context.Context, cfg *models.Config, reg prometheus.Registerer) (*Services, error) {
	dbService, err := database.NewService(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	s := &Services{
		DbService: dbService,
		Metrics:   observability.NewMetrics(reg),
		Health:    observability.NewHealthChecker(),
	}

	products, err := LoadProducts(cfg.Settlement.ProductsFile)
	if err != nil {
		s.Close()
		return nil, err
	}

	flagStore, err := s.initFlags(ctx, cfg.External)
	if err != nil {
		s.Close()
		return nil, err
	}
	prices, err := initPrices(cfg.External)
	if err != nil {
		s.Close()
		return nil, err
	}
	notifier, err := s.initNotifier(ctx, cfg.External)
	if err != nil {
		s.Close()
		return nil, err
	}

	s.Ledger = ledger.New(dbService, s.Metrics)
	s.Settlement = settlement.NewService(settlement.Dependencies{
		Ledger:   s.Ledger,
		Records:  dbService,
		Prices:   prices,
		Notifier: notifier,
		Flags:    flagStore,
		Metrics:  s.Metrics,
	}, cfg.Settlement.Currency, cfg.External.Timeout)

	s.Accrual, err = accrual.NewService(accrual.Dependencies{
		Ledger:   s.Ledger,
		Records:  dbService,
		Notifier: notifier,
		Metrics:  s.Metrics,
	}, products, cfg.Settlement.AccrualWindow, cfg.External.Timeout)
	if err != nil {
		s.Close()
		return nil, err
	}

	s.Funds = funds.NewService(funds.Dependencies{
		Ledger:   s.Ledger,
		Records:  dbService,
		Prices:   prices,
		Notifier: notifier,
		Metrics:  s.Metrics,
	}, cfg.External.Timeout)

	s.Scheduler = scheduler.New(s.Settlement, s.Accrual, s.Metrics, cfg.Scheduler.Interval, cfg.Scheduler.InitialDelay)

	s.API = api.NewLedgerService(api.Options{
		Ledger:     s.Ledger,
		Settlement: s.Settlement,
		Accrual:    s.Accrual,
		Funds:      s.Funds,
		Scheduler:  s.Scheduler,
		Flags:      flagStore,
		DB:         dbService,
	})

	zap.L().Info("Services initialized",
		zap.Int("products", len(products)),
		zap.String("settlement_currency", cfg.Settlement.Currency),
		zap.Bool("redis_flags", s.redis != nil),
		zap.Bool("nats_notifications", s.nats != nil))
	return s, nil
}

func (s *Services) initFlags(ctx context.Context, cfg models.ExternalConfig) (store.FlagStore, error) {
	if cfg.RedisAddr == "" {
		zap.L().Info("REDIS_ADDR not set, keeping admin flags in SQLite")
		return s.DbService, nil
	}

	redisStore, err := flags.NewRedisStore(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, err
	}
	s.redis = redisStore
	zap.L().Info("Using Redis admin flags", zap.String("addr", cfg.RedisAddr))
	return redisStore, nil
}

func initPrices(cfg models.ExternalConfig) (store.PriceFeed, error) {
	if cfg.PriceFeedURL == "" {
		zap.L().Warn("PRICE_FEED_URL not set, using static prices", zap.String("prices", cfg.StaticPrices))
		return pricefeed.ParseStatic(cfg.StaticPrices)
	}
	return pricefeed.NewClient(cfg.PriceFeedURL,
		pricefeed.WithTimeout(cfg.Timeout),
		pricefeed.WithQuoteAsset(cfg.QuoteAsset))
}

func (s *Services) initNotifier(ctx context.Context, cfg models.ExternalConfig) (store.Notifier, error) {
	if cfg.NatsURL == "" {
		return notify.LogSink{}, nil
	}

	nc, js, err := notify.ConnectNATS(cfg.NatsURL)
	if err != nil {
		return nil, err
	}
	s.nats = nc

	sink := notify.NewJetStreamSink(js, cfg.NatsSubject)
	if err := sink.EnsureStream(ctx); err != nil {
		return nil, err
	}
	return notify.Multi{notify.LogSink{}, sink}, nil
}

// InitializeDatabaseOnly initializes just the database service
// Useful for read-only operations like querying balances
func InitializeDatabaseOnly(ctx context.Context, cfg *models.Config) (*database.Service, error) {
	dbService, err := database.NewService(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return dbService, nil
}

// Close stops the scheduler and releases every connection. Safe to call on
// a partially initialized Services.
func (s *Services) Close() {
	if s.Scheduler != nil {
		s.Scheduler.Stop()
	}
	if s.nats != nil {
		if err := s.nats.Drain(); err != nil {
			zap.L().Warn("Failed to drain NATS connection", zap.Error(err))
		}
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			zap.L().Warn("Failed to close Redis client", zap.Error(err))
		}
	}
	if s.DbService != nil {
		s.DbService.Close()
	}
}

func isIgnorableSyncError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "sync /dev/stderr: inappropriate ioctl for device") ||
		strings.Contains(msg, "sync /dev/stdout: inappropriate ioctl for device")
}
