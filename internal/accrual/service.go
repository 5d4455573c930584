// Package accrual credits mining and arbitrage rewards. Each active
// subscription earns staked * yield once per accrual window; the due check and
// the lastIncomeAt write share the owner's ledger scope, so overlapping sweeps
// credit a window once.
package accrual

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"settlement-ledger-go/internal/ledger"
	"settlement-ledger-go/internal/models"
	"settlement-ledger-go/internal/observability"
	"settlement-ledger-go/internal/store"
)

// DefaultWindow is the accrual period.
const DefaultWindow = 24 * time.Hour

type Dependencies struct {
	Ledger   *ledger.Ledger
	Records  store.RecordStore
	Notifier store.Notifier
	Metrics  *observability.Metrics
}

type Service struct {
	ledger   *ledger.Ledger
	records  store.RecordStore
	notifier store.Notifier
	metrics  *observability.Metrics

	products map[string]models.Product
	window   time.Duration
	timeout  time.Duration
	now      func() time.Time
}

// NewService creates the accrual engine over a product catalog. Products
// with an unknown kind or an unsupported coin are rejected.
func NewService(deps Dependencies, products []models.Product, window, timeout time.Duration) (*Service, error) {
	if window <= 0 {
		window = DefaultWindow
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}

	catalog := make(map[string]models.Product, len(products))
	for _, p := range products {
		if p.Id == "" {
			return nil, fmt.Errorf("%w: product without id", store.ErrInvalidArgument)
		}
		if _, ok := catalog[p.Id]; ok {
			return nil, fmt.Errorf("%w: duplicate product %s", store.ErrInvalidArgument, p.Id)
		}
		if _, err := collectionFor(p.Kind); err != nil {
			return nil, fmt.Errorf("product %s: %w", p.Id, err)
		}
		coin, err := models.NormalizeCoin(p.Coin)
		if err != nil {
			return nil, fmt.Errorf("%w: product %s: %v", store.ErrInvalidArgument, p.Id, err)
		}
		if !p.YieldRate.IsPositive() {
			return nil, fmt.Errorf("%w: product %s yield must be positive", store.ErrInvalidArgument, p.Id)
		}
		p.Coin = coin
		catalog[p.Id] = p
	}

	return &Service{
		ledger:   deps.Ledger,
		records:  deps.Records,
		notifier: deps.Notifier,
		metrics:  deps.Metrics,
		products: catalog,
		window:   window,
		timeout:  timeout,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// SetClock replaces the time source.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Product looks up a catalog entry.
func (s *Service) Product(productId string) (models.Product, error) {
	p, ok := s.products[productId]
	if !ok {
		return models.Product{}, fmt.Errorf("product %s: %w", productId, store.ErrNotFound)
	}
	return p, nil
}

// Products returns the catalog.
func (s *Service) Products() []models.Product {
	result := make([]models.Product, 0, len(s.products))
	for _, p := range s.products {
		result = append(result, p)
	}
	return result
}

func collectionFor(kind models.SubscriptionKind) (string, error) {
	switch kind {
	case models.KindMining:
		return store.CollectionMining, nil
	case models.KindArbitrage:
		return store.CollectionArbitrage, nil
	}
	return "", fmt.Errorf("%w: unknown subscription kind %q", store.ErrInvalidArgument, kind)
}

func (s *Service) saveSubscription(ctx context.Context, sub *models.Subscription) error {
	collection, err := collectionFor(sub.Kind)
	if err != nil {
		return err
	}
	body, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("encode subscription %s: %w", sub.Id, err)
	}
	if err := s.records.Put(ctx, collection, store.Record{Id: sub.Id, Body: body}); err != nil {
		return fmt.Errorf("save subscription %s: %w", sub.Id, err)
	}
	return nil
}

// loadSubscription finds a subscription in either collection.
func (s *Service) loadSubscription(ctx context.Context, id string) (*models.Subscription, error) {
	for _, collection := range []string{store.CollectionMining, store.CollectionArbitrage} {
		record, err := s.records.Get(ctx, collection, id)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load subscription %s: %w", id, err)
		}

		var sub models.Subscription
		if err := json.Unmarshal(record.Body, &sub); err != nil {
			return nil, fmt.Errorf("%w: decode subscription %s: %v", store.ErrStorage, id, err)
		}
		return &sub, nil
	}
	return nil, fmt.Errorf("subscription %s: %w", id, store.ErrNotFound)
}

func (s *Service) loadSubscriptions(ctx context.Context) ([]models.Subscription, error) {
	var subs []models.Subscription
	for _, collection := range []string{store.CollectionMining, store.CollectionArbitrage} {
		records, err := s.records.Load(ctx, collection)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", collection, err)
		}
		for _, record := range records {
			var sub models.Subscription
			if err := json.Unmarshal(record.Body, &sub); err != nil {
				return nil, fmt.Errorf("%w: decode subscription %s: %v", store.ErrStorage, record.Id, err)
			}
			subs = append(subs, sub)
		}
	}
	return subs, nil
}

func subscriptionKey(id string, parts ...string) string {
	key := "subscription:" + id
	for _, p := range parts {
		key += ":" + p
	}
	return key
}
