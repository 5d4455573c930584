package models

import (
	"fmt"
	"strings"
)

// SupportedCoins is the fixed set of balance keys every account carries.
var SupportedCoins = []string{"USDT", "BTC", "ETH", "USDC", "PYUSD", "SOL"}

// Rounding places used by settlement math.
const (
	ProfitPlaces = 2
	RewardPlaces = 8
)

var stablecoins = map[string]bool{
	"USDT":  true,
	"USDC":  true,
	"PYUSD": true,
}

// NormalizeCoin upper-cases a symbol and verifies it is supported.
func NormalizeCoin(coin string) (string, error) {
	symbol := strings.ToUpper(strings.TrimSpace(coin))
	for _, c := range SupportedCoins {
		if c == symbol {
			return symbol, nil
		}
	}
	return "", fmt.Errorf("unsupported coin %q", coin)
}

// IsStablecoin reports whether the coin is pegged to the quote currency.
func IsStablecoin(coin string) bool {
	return stablecoins[coin]
}

// NormalizeWallet lower-cases a hex wallet address.
func NormalizeWallet(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}
