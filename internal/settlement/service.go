// Package settlement runs the trade state machine: pending trades settle to
// win or loss exactly once, and a settled trade changes only through the
// administrative correction path.
package settlement

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"settlement-ledger-go/internal/ledger"
	"settlement-ledger-go/internal/models"
	"settlement-ledger-go/internal/observability"
	"settlement-ledger-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Dependencies are the collaborators a Service needs. Notifier and Metrics
// may be nil.
type Dependencies struct {
	Ledger   *ledger.Ledger
	Records  store.RecordStore
	Prices   store.PriceFeed
	Notifier store.Notifier
	Flags    store.FlagStore
	Metrics  *observability.Metrics
}

type Service struct {
	ledger   *ledger.Ledger
	records  store.RecordStore
	prices   store.PriceFeed
	notifier store.Notifier
	flags    store.FlagStore
	metrics  *observability.Metrics

	currency string
	timeout  time.Duration
	now      func() time.Time
}

// NewService creates the trade settlement service. currency is the default
// coin stakes and profits are booked in; timeout bounds every price, flag
// and notification call. The stakes of unsettled trades are registered with
// the ledger as committed funds.
func NewService(deps Dependencies, currency string, timeout time.Duration) *Service {
	if currency == "" {
		currency = "USDT"
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	s := &Service{
		ledger:   deps.Ledger,
		records:  deps.Records,
		prices:   deps.Prices,
		notifier: deps.Notifier,
		flags:    deps.Flags,
		metrics:  deps.Metrics,
		currency: currency,
		timeout:  timeout,
		now:      func() time.Time { return time.Now().UTC() },
	}
	if deps.Ledger != nil {
		deps.Ledger.SetCommitted(s.CommittedStake)
	}
	return s
}

// CommittedStake sums the stakes of the user's unsettled trades booked in
// coin. Those stakes are not debited until a loss, so the balance must keep
// covering them.
func (s *Service) CommittedStake(ctx context.Context, userId, coin string) (decimal.Decimal, error) {
	trades, err := s.loadTrades(ctx)
	if err != nil {
		return decimal.Zero, err
	}

	committed := decimal.Zero
	for _, trade := range trades {
		if trade.UserId == userId && trade.Currency == coin && !trade.SettlementApplied {
			committed = committed.Add(trade.Stake)
		}
	}
	return committed, nil
}

// SetClock replaces the time source.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

func (s *Service) loadTrade(ctx context.Context, tradeId string) (*models.Trade, error) {
	record, err := s.records.Get(ctx, store.CollectionTrades, tradeId)
	if err != nil {
		return nil, fmt.Errorf("load trade %s: %w", tradeId, err)
	}

	var trade models.Trade
	if err := json.Unmarshal(record.Body, &trade); err != nil {
		return nil, fmt.Errorf("%w: decode trade %s: %v", store.ErrStorage, tradeId, err)
	}
	return &trade, nil
}

func (s *Service) saveTrade(ctx context.Context, trade *models.Trade) error {
	body, err := json.Marshal(trade)
	if err != nil {
		return fmt.Errorf("encode trade %s: %w", trade.Id, err)
	}
	if err := s.records.Put(ctx, store.CollectionTrades, store.Record{Id: trade.Id, Body: body}); err != nil {
		return fmt.Errorf("save trade %s: %w", trade.Id, err)
	}
	return nil
}

func (s *Service) loadTrades(ctx context.Context) ([]models.Trade, error) {
	records, err := s.records.Load(ctx, store.CollectionTrades)
	if err != nil {
		return nil, fmt.Errorf("load trades: %w", err)
	}

	trades := make([]models.Trade, 0, len(records))
	for _, record := range records {
		var trade models.Trade
		if err := json.Unmarshal(record.Body, &trade); err != nil {
			return nil, fmt.Errorf("%w: decode trade %s: %v", store.ErrStorage, record.Id, err)
		}
		trades = append(trades, trade)
	}
	return trades, nil
}

// fetchPrice asks the price feed with the configured timeout. Any failure is
// reported as store.ErrExternalUnavailable.
func (s *Service) fetchPrice(ctx context.Context, coin string) (decimal.Decimal, error) {
	priceCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	price, err := s.prices.GetPrice(priceCtx, coin)
	if err != nil {
		s.metrics.PriceFetched("error")
		return decimal.Zero, fmt.Errorf("%w: price for %s: %v", store.ErrExternalUnavailable, coin, err)
	}
	if !price.IsPositive() {
		s.metrics.PriceFetched("error")
		return decimal.Zero, fmt.Errorf("%w: price for %s is %s", store.ErrExternalUnavailable, coin, price.String())
	}
	s.metrics.PriceFetched("ok")
	return price, nil
}

// forcedFlag reads the user's force_outcome admin flag. An unset or
// unrecognized value yields "".
func (s *Service) forcedFlag(ctx context.Context, userId string) (models.TradeStatus, error) {
	if s.flags == nil {
		return "", nil
	}

	flagCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	value, err := s.flags.GetFlag(flagCtx, userId, store.FlagForceOutcome)
	if err != nil {
		return "", fmt.Errorf("%w: read %s flag: %v", store.ErrExternalUnavailable, store.FlagForceOutcome, err)
	}
	if value == "" {
		return "", nil
	}
	outcome, err := models.ParseOutcome(value)
	if err != nil {
		zap.L().Warn("Ignoring unrecognized forced outcome flag",
			zap.String("user_id", userId),
			zap.String("value", value))
		return "", nil
	}
	return outcome, nil
}

func tradeKey(tradeId string, parts ...string) string {
	key := "trade:" + tradeId
	for _, p := range parts {
		key += ":" + p
	}
	return key
}
