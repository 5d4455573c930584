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

// Package pricefeed fetches spot prices from a ticker endpoint of the form
// GET <base>?symbol=BTCUSDT returning {"symbol":"BTCUSDT","price":"64000.12"}.
package pricefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"settlement-ledger-go/internal/models"
	"settlement-ledger-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/net/http2"
)

const (
	DefaultTimeout    = 2 * time.Second
	DefaultQuoteAsset = "USDT"
)

type Client struct {
	endpoint   string
	quoteAsset string
	client     *http.Client
}

// Option configures Client.
type Option func(*Client)

// WithTimeout bounds each price request.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.client.Timeout = d
	}
}

// WithQuoteAsset sets the asset prices are quoted in.
func WithQuoteAsset(asset string) Option {
	return func(c *Client) {
		c.quoteAsset = strings.ToUpper(asset)
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.client = client
	}
}

func NewClient(endpoint string, opts ...Option) (*Client, error) {
	if _, err := url.ParseRequestURI(endpoint); err != nil {
		return nil, fmt.Errorf("invalid price feed url %q: %w", endpoint, err)
	}

	httpClient, err := createCustomHttpClient()
	if err != nil {
		return nil, fmt.Errorf("unable to create custom http client: %w", err)
	}

	c := &Client{
		endpoint:   endpoint,
		quoteAsset: DefaultQuoteAsset,
		client:     httpClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func createCustomHttpClient() (*http.Client, error) {
	tr := &http.Transport{
		ResponseHeaderTimeout: 5 * time.Second,
		Proxy:                 http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			KeepAlive: 30 * time.Second,
			Timeout:   5 * time.Second,
		}).DialContext,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		MaxIdleConnsPerHost:   5,
		ExpectContinueTimeout: time.Second,
	}

	if err := http2.ConfigureTransport(tr); err != nil {
		return nil, err
	}

	return &http.Client{
		Transport: tr,
		Timeout:   DefaultTimeout,
	}, nil
}

type tickerResponse struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

// GetPrice returns the price of symbol in the quote asset. The quote asset
// itself and pegged stablecoins are priced at 1 without a request. Every
// failure wraps store.ErrExternalUnavailable.
func (c *Client) GetPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == c.quoteAsset || (models.IsStablecoin(symbol) && models.IsStablecoin(c.quoteAsset)) {
		return decimal.NewFromInt(1), nil
	}

	pair := symbol + c.quoteAsset
	reqURL, err := url.Parse(c.endpoint)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", store.ErrExternalUnavailable, err)
	}
	q := reqURL.Query()
	q.Set("symbol", pair)
	reqURL.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", store.ErrExternalUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: fetch %s: %v", store.ErrExternalUnavailable, pair, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: read %s: %v", store.ErrExternalUnavailable, pair, err)
	}
	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("%w: %s returned HTTP %d: %s",
			store.ErrExternalUnavailable, pair, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var ticker tickerResponse
	if err := json.Unmarshal(body, &ticker); err != nil {
		return decimal.Zero, fmt.Errorf("%w: decode %s: %v", store.ErrExternalUnavailable, pair, err)
	}
	price, err := decimal.NewFromString(ticker.Price)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: bad price %q for %s", store.ErrExternalUnavailable, ticker.Price, pair)
	}
	if !price.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: non-positive price %s for %s", store.ErrExternalUnavailable, price.String(), pair)
	}

	zap.L().Debug("Fetched price",
		zap.String("symbol", pair),
		zap.String("price", price.String()))
	return price, nil
}
