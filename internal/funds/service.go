// Package funds moves value in and out of user balances: admin-approved
// top-ups, withdrawals debited on request, and coin-to-coin exchange.
package funds

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"settlement-ledger-go/internal/ledger"
	"settlement-ledger-go/internal/observability"
	"settlement-ledger-go/internal/store"
)

type Dependencies struct {
	Ledger   *ledger.Ledger
	Records  store.RecordStore
	Prices   store.PriceFeed
	Notifier store.Notifier
	Metrics  *observability.Metrics
}

type Service struct {
	ledger   *ledger.Ledger
	records  store.RecordStore
	prices   store.PriceFeed
	notifier store.Notifier
	metrics  *observability.Metrics

	timeout time.Duration
	now     func() time.Time
}

func NewService(deps Dependencies, timeout time.Duration) *Service {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Service{
		ledger:   deps.Ledger,
		records:  deps.Records,
		prices:   deps.Prices,
		notifier: deps.Notifier,
		metrics:  deps.Metrics,
		timeout:  timeout,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the time source.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

func (s *Service) get(ctx context.Context, collection, id string, v any) error {
	record, err := s.records.Get(ctx, collection, id)
	if err != nil {
		return fmt.Errorf("load %s %s: %w", collection, id, err)
	}
	if err := json.Unmarshal(record.Body, v); err != nil {
		return fmt.Errorf("%w: decode %s %s: %v", store.ErrStorage, collection, id, err)
	}
	return nil
}

func (s *Service) put(ctx context.Context, collection, id string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s %s: %w", collection, id, err)
	}
	if err := s.records.Put(ctx, collection, store.Record{Id: id, Body: body}); err != nil {
		return fmt.Errorf("save %s %s: %w", collection, id, err)
	}
	return nil
}

func list[T any](ctx context.Context, records store.RecordStore, collection string, keep func(*T) bool) ([]T, error) {
	rows, err := records.Load(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", collection, err)
	}

	result := make([]T, 0, len(rows))
	for _, row := range rows {
		var v T
		if err := json.Unmarshal(row.Body, &v); err != nil {
			return nil, fmt.Errorf("%w: decode %s %s: %v", store.ErrStorage, collection, row.Id, err)
		}
		if keep(&v) {
			result = append(result, v)
		}
	}
	return result, nil
}
