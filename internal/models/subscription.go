package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// SubscriptionKind distinguishes mining from arbitrage products
type SubscriptionKind string

const (
	KindMining    SubscriptionKind = "mining"
	KindArbitrage SubscriptionKind = "arbitrage"
)

// SubscriptionStatus is the lifecycle state of a subscription
type SubscriptionStatus string

const (
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionRedeeming SubscriptionStatus = "redeeming"
	SubscriptionRedeemed  SubscriptionStatus = "redeemed"
)

// Product is a mining or arbitrage offering from the product catalog
type Product struct {
	Id        string           `yaml:"id" json:"id"`
	Name      string           `yaml:"name" json:"name"`
	Kind      SubscriptionKind `yaml:"kind" json:"kind"`
	Coin      string           `yaml:"coin" json:"coin"`
	YieldRate decimal.Decimal  `yaml:"-" json:"yield_rate"`
	MinAmount decimal.Decimal  `yaml:"-" json:"min_amount"`
	MaxAmount decimal.Decimal  `yaml:"-" json:"max_amount"`
}

// Subscription is a staked position earning a reward every accrual window
type Subscription struct {
	Id           string             `json:"id"`
	UserId       string             `json:"user_id"`
	ProductId    string             `json:"product_id"`
	Kind         SubscriptionKind   `json:"kind"`
	Coin         string             `json:"coin"`
	Amount       decimal.Decimal    `json:"amount"`
	YieldRate    decimal.Decimal    `json:"yield_rate"`
	Status       SubscriptionStatus `json:"status"`
	TotalIncome  decimal.Decimal    `json:"total_income"`
	TodayIncome  decimal.Decimal    `json:"today_income"`
	LastIncomeAt *time.Time         `json:"last_income_at,omitempty"`
	StartDate    time.Time          `json:"start_date"`
	UpdatedAt    time.Time          `json:"updated_at"`
	RedeemedAt   *time.Time         `json:"redeemed_at,omitempty"`
}

// AccrualAnchor is the start of the current accrual window:
// max(StartDate, LastIncomeAt).
func (s *Subscription) AccrualAnchor() time.Time {
	if s.LastIncomeAt != nil && s.LastIncomeAt.After(s.StartDate) {
		return *s.LastIncomeAt
	}
	return s.StartDate
}

// AccrualDue reports whether an active subscription has completed a window.
func (s *Subscription) AccrualDue(now time.Time, window time.Duration) bool {
	if s.Status != SubscriptionActive {
		return false
	}
	return now.Sub(s.AccrualAnchor()) >= window
}
