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

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"settlement-ledger-go/internal/models"
)

func Load() (*models.Config, error) {
	durations := map[string]*struct {
		value    time.Duration
		fallback time.Duration
	}{
		"DB_CONN_MAX_LIFETIME":    {fallback: 5 * time.Minute},
		"DB_CONN_MAX_IDLE_TIME":   {fallback: 30 * time.Second},
		"DB_PING_TIMEOUT":         {fallback: 5 * time.Second},
		"DB_BUSY_TIMEOUT":         {fallback: 5 * time.Second},
		"SCHEDULER_INTERVAL":      {fallback: 60 * time.Second},
		"SCHEDULER_INITIAL_DELAY": {fallback: 5 * time.Second},
		"ACCRUAL_WINDOW":          {fallback: 24 * time.Hour},
		"EXTERNAL_TIMEOUT":        {fallback: 2 * time.Second},
	}
	for key, d := range durations {
		value, err := getEnvDuration(key, d.fallback)
		if err != nil {
			return nil, err
		}
		d.value = value
	}

	if durations["SCHEDULER_INTERVAL"].value <= 0 {
		return nil, fmt.Errorf("SCHEDULER_INTERVAL must be positive, got %v", durations["SCHEDULER_INTERVAL"].value)
	}
	if durations["ACCRUAL_WINDOW"].value <= 0 {
		return nil, fmt.Errorf("ACCRUAL_WINDOW must be positive, got %v", durations["ACCRUAL_WINDOW"].value)
	}

	currency, err := models.NormalizeCoin(getEnvString("SETTLEMENT_CURRENCY", "USDT"))
	if err != nil {
		return nil, fmt.Errorf("invalid SETTLEMENT_CURRENCY: %w", err)
	}

	return &models.Config{
		Database: models.DatabaseConfig{
			Path:            getEnvString("DATABASE_PATH", "settlement.db"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: durations["DB_CONN_MAX_LIFETIME"].value,
			ConnMaxIdleTime: durations["DB_CONN_MAX_IDLE_TIME"].value,
			PingTimeout:     durations["DB_PING_TIMEOUT"].value,
			BusyTimeout:     durations["DB_BUSY_TIMEOUT"].value,
		},
		Scheduler: models.SchedulerConfig{
			Interval:     durations["SCHEDULER_INTERVAL"].value,
			InitialDelay: durations["SCHEDULER_INITIAL_DELAY"].value,
		},
		Settlement: models.SettlementConfig{
			Currency:      currency,
			AccrualWindow: durations["ACCRUAL_WINDOW"].value,
			ProductsFile:  getEnvString("PRODUCTS_FILE", "products.yaml"),
		},
		External: models.ExternalConfig{
			Timeout:       durations["EXTERNAL_TIMEOUT"].value,
			PriceFeedURL:  getEnvString("PRICE_FEED_URL", ""),
			StaticPrices:  getEnvString("STATIC_PRICES", ""),
			QuoteAsset:    getEnvString("QUOTE_ASSET", "USDT"),
			RedisAddr:     getEnvString("REDIS_ADDR", ""),
			RedisPassword: getEnvString("REDIS_PASSWORD", ""),
			RedisDB:       getEnvInt("REDIS_DB", 0),
			NatsURL:       getEnvString("NATS_URL", ""),
			NatsSubject:   getEnvString("NATS_SUBJECT", "settlement.notifications"),
		},
		Server: models.ServerConfig{
			Addr: getEnvString("HTTP_ADDR", ":8080"),
			Mode: getEnvString("GIN_MODE", "release"),
		},
	}, nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	if value := os.Getenv(key); value != "" {
		duration, err := time.ParseDuration(value)
		if err != nil {
			return 0, fmt.Errorf("invalid duration for %s: %q (%w)", key, value, err)
		}
		return duration, nil
	}
	return defaultValue, nil
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
