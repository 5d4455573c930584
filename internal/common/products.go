package common

import (
	"fmt"
	"os"
	"path/filepath"

	"settlement-ledger-go/internal/models"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v2"
)

// ProductConfig is one catalog entry as written in products.yaml. Amounts
// and rates are strings so they parse exactly.
type ProductConfig struct {
	Id        string `yaml:"id"`
	Name      string `yaml:"name"`
	Kind      string `yaml:"kind"`
	Coin      string `yaml:"coin"`
	YieldRate string `yaml:"yield_rate"`
	MinAmount string `yaml:"min_amount"`
	MaxAmount string `yaml:"max_amount"`
}

type ProductsConfig struct {
	Products []ProductConfig `yaml:"products"`
}

func LoadProducts(productsFile string) ([]models.Product, error) {
	var productsPath string
	if filepath.IsAbs(productsFile) {
		productsPath = productsFile
	} else {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		productsPath = filepath.Join(wd, productsFile)
	}

	data, err := os.ReadFile(productsPath)
	if err != nil {
		return nil, fmt.Errorf("unable to read %s: %w", productsFile, err)
	}
	return ParseProducts(data)
}

func ParseProducts(data []byte) ([]models.Product, error) {
	var config ProductsConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("unable to parse products: %w", err)
	}

	products := make([]models.Product, 0, len(config.Products))
	for i, p := range config.Products {
		if p.Id == "" {
			return nil, fmt.Errorf("product at index %d missing id", i)
		}
		if p.Coin == "" {
			return nil, fmt.Errorf("product %s missing coin", p.Id)
		}

		yieldRate, err := parseAmount(p.YieldRate, "yield_rate", p.Id, true)
		if err != nil {
			return nil, err
		}
		minAmount, err := parseAmount(p.MinAmount, "min_amount", p.Id, false)
		if err != nil {
			return nil, err
		}
		maxAmount, err := parseAmount(p.MaxAmount, "max_amount", p.Id, false)
		if err != nil {
			return nil, err
		}
		if maxAmount.IsPositive() && maxAmount.LessThan(minAmount) {
			return nil, fmt.Errorf("product %s max_amount %s is below min_amount %s", p.Id, maxAmount.String(), minAmount.String())
		}

		products = append(products, models.Product{
			Id:        p.Id,
			Name:      p.Name,
			Kind:      models.SubscriptionKind(p.Kind),
			Coin:      p.Coin,
			YieldRate: yieldRate,
			MinAmount: minAmount,
			MaxAmount: maxAmount,
		})
	}
	return products, nil
}

func parseAmount(value, field, productId string, required bool) (decimal.Decimal, error) {
	if value == "" {
		if required {
			return decimal.Zero, fmt.Errorf("product %s missing %s", productId, field)
		}
		return decimal.Zero, nil
	}
	amount, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("product %s has invalid %s %q: %w", productId, field, value, err)
	}
	if amount.IsNegative() {
		return decimal.Zero, fmt.Errorf("product %s %s cannot be negative", productId, field)
	}
	return amount, nil
}
