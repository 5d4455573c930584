package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"settlement-ledger-go/internal/store"

	"github.com/shopspring/decimal"
)

// PriceFeed is an in-memory store.PriceFeed. Unknown symbols fail with
// store.ErrExternalUnavailable, as does every call while Err is set.
type PriceFeed struct {
	mu     sync.Mutex
	prices map[string]decimal.Decimal
	err    error
	calls  int
}

func NewPriceFeed() *PriceFeed {
	return &PriceFeed{prices: make(map[string]decimal.Decimal)}
}

func (f *PriceFeed) Set(symbol string, price string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prices[strings.ToUpper(symbol)] = decimal.RequireFromString(price)
}

func (f *PriceFeed) Fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *PriceFeed) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *PriceFeed) GetPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return decimal.Zero, f.err
	}
	price, ok := f.prices[strings.ToUpper(symbol)]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: no price for %s", store.ErrExternalUnavailable, symbol)
	}
	return price, nil
}

// Notification is one captured Notify call.
type Notification struct {
	UserId string
	Title  string
	Body   string
}

// Notifier records notifications and optionally fails every call.
type Notifier struct {
	mu   sync.Mutex
	sent []Notification
	Err  error
}

func (n *Notifier) Notify(ctx context.Context, userId, title, body string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.Err != nil {
		return n.Err
	}
	n.sent = append(n.sent, Notification{UserId: userId, Title: title, Body: body})
	return nil
}

func (n *Notifier) Sent() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Notification(nil), n.sent...)
}

// FlagStore is an in-memory store.FlagStore.
type FlagStore struct {
	mu    sync.Mutex
	flags map[string]string
	Err   error
}

func NewFlagStore() *FlagStore {
	return &FlagStore{flags: make(map[string]string)}
}

func (f *FlagStore) GetFlag(ctx context.Context, userId, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return "", f.Err
	}
	return f.flags[userId+"/"+key], nil
}

func (f *FlagStore) SetFlag(ctx context.Context, userId, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	if value == "" {
		delete(f.flags, userId+"/"+key)
		return nil
	}
	f.flags[userId+"/"+key] = value
	return nil
}
