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

package api

import (
	"context"
	"fmt"

	"settlement-ledger-go/internal/accrual"
	"settlement-ledger-go/internal/funds"
	"settlement-ledger-go/internal/ledger"
	"settlement-ledger-go/internal/scheduler"
	"settlement-ledger-go/internal/settlement"
	"settlement-ledger-go/internal/store"
)

// Pinger reports whether a backing service is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// LedgerService is the operation surface shared by the HTTP API and the
// command line tools.
type LedgerService struct {
	ledger     *ledger.Ledger
	settlement *settlement.Service
	accrual    *accrual.Service
	funds      *funds.Service
	scheduler  *scheduler.Scheduler
	flags      store.FlagStore
	db         Pinger
}

type Options struct {
	Ledger     *ledger.Ledger
	Settlement *settlement.Service
	Accrual    *accrual.Service
	Funds      *funds.Service
	Scheduler  *scheduler.Scheduler
	Flags      store.FlagStore
	DB         Pinger
}

func NewLedgerService(opts Options) *LedgerService {
	return &LedgerService{
		ledger:     opts.Ledger,
		settlement: opts.Settlement,
		accrual:    opts.Accrual,
		funds:      opts.Funds,
		scheduler:  opts.Scheduler,
		flags:      opts.Flags,
		db:         opts.DB,
	}
}

func (s *LedgerService) HealthCheck(ctx context.Context) error {
	if err := s.db.Ping(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}
