package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// User represents a platform account
type User struct {
	Id            string          `db:"id" json:"id"`
	WalletAddress string          `db:"wallet_address" json:"wallet_address,omitempty"`
	Banned        bool            `db:"banned" json:"banned"`
	TotalInvested decimal.Decimal `db:"total_invested" json:"total_invested"`
	TotalIncome   decimal.Decimal `db:"total_income" json:"total_income"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"`
}

// AccountBalance represents current balance state (hot data)
type AccountBalance struct {
	Id                string          `db:"id" json:"-"`
	UserId            string          `db:"user_id" json:"user_id"`
	Asset             string          `db:"asset" json:"asset"`
	Balance           decimal.Decimal `db:"balance" json:"balance"`
	LastTransactionId string          `db:"last_transaction_id" json:"last_transaction_id,omitempty"`
	Version           int64           `db:"version" json:"version"`
	UpdatedAt         time.Time       `db:"updated_at" json:"updated_at"`
}

// Transaction represents one immutable ledger entry (cold data)
type Transaction struct {
	Id              string          `db:"id" json:"id"`
	UserId          string          `db:"user_id" json:"user_id"`
	Asset           string          `db:"asset" json:"asset"`
	TransactionType string          `db:"transaction_type" json:"type"`
	Amount          decimal.Decimal `db:"amount" json:"amount"`
	BalanceBefore   decimal.Decimal `db:"balance_before" json:"balance_before"`
	BalanceAfter    decimal.Decimal `db:"balance_after" json:"balance_after"`
	IdempotencyKey  string          `db:"idempotency_key" json:"idempotency_key,omitempty"`
	Reference       string          `db:"reference" json:"reference,omitempty"`
	Status          string          `db:"status" json:"status"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
}

// Ledger entry types
const (
	TxTypeAdjustment        = "adjustment"
	TxTypeAdminSet          = "admin_set"
	TxTypeTradeInvest       = "trade_invest"
	TxTypeTradeWin          = "trade_win"
	TxTypeTradeLoss         = "trade_loss"
	TxTypeTradeReversal     = "trade_reversal"
	TxTypeSubscriptionStake = "subscription_stake"
	TxTypeAccrual           = "accrual"
	TxTypeRedemption        = "redemption"
	TxTypeTopup             = "topup"
	TxTypeWithdrawal        = "withdrawal"
	TxTypeWithdrawalReverse = "withdrawal_reversal"
	TxTypeExchangeOut       = "exchange_out"
	TxTypeExchangeIn        = "exchange_in"
)
