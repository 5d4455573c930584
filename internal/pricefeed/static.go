package pricefeed

import (
	"context"
	"fmt"
	"strings"

	"settlement-ledger-go/internal/models"
	"settlement-ledger-go/internal/store"

	"github.com/shopspring/decimal"
)

// StaticFeed serves fixed prices. Used when no PRICE_FEED_URL is configured.
// Stablecoins are always worth 1.
type StaticFeed map[string]decimal.Decimal

// ParseStatic builds a StaticFeed from "BTC=64000,ETH=3100".
func ParseStatic(raw string) (StaticFeed, error) {
	feed := StaticFeed{}
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		symbol, value, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("invalid static price %q, want SYMBOL=PRICE", pair)
		}
		price, err := decimal.NewFromString(strings.TrimSpace(value))
		if err != nil {
			return nil, fmt.Errorf("invalid static price %q: %w", pair, err)
		}
		feed[strings.ToUpper(strings.TrimSpace(symbol))] = price
	}
	return feed, nil
}

func (f StaticFeed) GetPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	symbol = strings.ToUpper(symbol)
	if price, ok := f[symbol]; ok {
		return price, nil
	}
	if models.IsStablecoin(symbol) {
		return decimal.NewFromInt(1), nil
	}
	return decimal.Zero, fmt.Errorf("%w: no static price for %s", store.ErrExternalUnavailable, symbol)
}
