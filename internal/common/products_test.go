package common

import (
	"os"
	"path/filepath"
	"testing"

	"settlement-ledger-go/internal/models"
)

func TestParseProducts(t *testing.T) {
	data := []byte(`
products:
  - id: eth-miner
    name: ETH Miner
    kind: mining
    coin: ETH
    yield_rate: "0.005"
    min_amount: "1"
    max_amount: "100"
  - id: usdt-arb
    kind: arbitrage
    coin: USDT
    yield_rate: "0.012"
`)

	products, err := ParseProducts(data)
	if err != nil {
		t.Fatalf("ParseProducts failed: %v", err)
	}
	if len(products) != 2 {
		t.Fatalf("Expected 2 products, got %d", len(products))
	}
	if products[0].Kind != models.KindMining || products[0].YieldRate.String() != "0.005" {
		t.Errorf("Unexpected first product: %+v", products[0])
	}
	if !products[1].MaxAmount.IsZero() {
		t.Errorf("Expected unbounded max amount, got %s", products[1].MaxAmount)
	}
}

func TestParseProducts_Invalid(t *testing.T) {
	tests := map[string]string{
		"missing id":    "products:\n  - coin: ETH\n    yield_rate: \"0.1\"\n",
		"missing yield": "products:\n  - id: x\n    coin: ETH\n",
		"bad yield":     "products:\n  - id: x\n    coin: ETH\n    yield_rate: abc\n",
		"negative min":  "products:\n  - id: x\n    coin: ETH\n    yield_rate: \"0.1\"\n    min_amount: \"-1\"\n",
		"max below min": "products:\n  - id: x\n    coin: ETH\n    yield_rate: \"0.1\"\n    min_amount: \"10\"\n    max_amount: \"5\"\n",
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseProducts([]byte(data)); err == nil {
				t.Errorf("Expected error for %s", name)
			}
		})
	}
}

func TestLoadProducts_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "products.yaml")
	if err := os.WriteFile(path, []byte("products:\n  - id: sol\n    kind: mining\n    coin: SOL\n    yield_rate: \"0.004\"\n"), 0o600); err != nil {
		t.Fatalf("write products: %v", err)
	}

	products, err := LoadProducts(path)
	if err != nil {
		t.Fatalf("LoadProducts failed: %v", err)
	}
	if len(products) != 1 || products[0].Id != "sol" {
		t.Errorf("Unexpected products: %+v", products)
	}

	if _, err := LoadProducts(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Expected error for missing file")
	}
}
