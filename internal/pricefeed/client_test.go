package pricefeed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"settlement-ledger-go/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tickerServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestGetPrice(t *testing.T) {
	srv := tickerServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"symbol":"BTCUSDT","price":"64123.45000000"}`))
	})

	c, err := NewClient(srv.URL + "/api/v3/ticker/price")
	require.NoError(t, err)

	price, err := c.GetPrice(context.Background(), "btc")
	require.NoError(t, err)
	assert.Equal(t, "64123.45", price.String())
}

func TestGetPrice_QuoteAssetNeedsNoRequest(t *testing.T) {
	var calls atomic.Int32
	srv := tickerServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	})

	c, err := NewClient(srv.URL)
	require.NoError(t, err)

	for _, symbol := range []string{"USDT", "usdc", "PYUSD"} {
		price, err := c.GetPrice(context.Background(), symbol)
		require.NoError(t, err)
		assert.Equal(t, "1", price.String())
	}
	assert.Equal(t, int32(0), calls.Load())
}

func TestGetPrice_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"http error", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"code":-1121,"msg":"Invalid symbol."}`, http.StatusBadRequest)
		}},
		{"bad json", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`not json`))
		}},
		{"bad price", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"symbol":"ETHUSDT","price":"abc"}`))
		}},
		{"zero price", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"symbol":"ETHUSDT","price":"0"}`))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := tickerServer(t, tt.handler)
			c, err := NewClient(srv.URL)
			require.NoError(t, err)

			_, err = c.GetPrice(context.Background(), "ETH")
			assert.ErrorIs(t, err, store.ErrExternalUnavailable)
		})
	}
}

func TestGetPrice_Timeout(t *testing.T) {
	srv := tickerServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	})

	c, err := NewClient(srv.URL, WithTimeout(50*time.Millisecond))
	require.NoError(t, err)

	start := time.Now()
	_, err = c.GetPrice(context.Background(), "SOL")
	assert.ErrorIs(t, err, store.ErrExternalUnavailable)
	assert.Less(t, time.Since(start), 900*time.Millisecond)
}

func TestNewClient_RejectsBadURL(t *testing.T) {
	_, err := NewClient("not a url")
	assert.Error(t, err)
}

func TestWithQuoteAsset(t *testing.T) {
	srv := tickerServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "ETHBTC", r.URL.Query().Get("symbol"))
		_, _ = w.Write([]byte(`{"symbol":"ETHBTC","price":"0.0521"}`))
	})

	c, err := NewClient(srv.URL, WithQuoteAsset("btc"))
	require.NoError(t, err)

	price, err := c.GetPrice(context.Background(), "ETH")
	require.NoError(t, err)
	assert.Equal(t, "0.0521", price.String())

	one, err := c.GetPrice(context.Background(), "BTC")
	require.NoError(t, err)
	assert.Equal(t, "1", one.String())
}

func TestStaticFeed(t *testing.T) {
	feed, err := ParseStatic("BTC=64000, eth=3100.5,")
	require.NoError(t, err)

	price, err := feed.GetPrice(context.Background(), "eth")
	require.NoError(t, err)
	assert.Equal(t, "3100.5", price.String())

	_, err = feed.GetPrice(context.Background(), "SOL")
	assert.ErrorIs(t, err, store.ErrExternalUnavailable)

	one, err := feed.GetPrice(context.Background(), "usdc")
	require.NoError(t, err)
	assert.Equal(t, "1", one.String())

	_, err = ParseStatic("BTC")
	assert.Error(t, err)
}
