package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// FundsStatus is the lifecycle state of a top-up or withdrawal request
type FundsStatus string

const (
	FundsPending   FundsStatus = "pending"
	FundsApproved  FundsStatus = "approved"
	FundsCompleted FundsStatus = "completed"
	FundsRejected  FundsStatus = "rejected"
)

// Topup is a user deposit awaiting admin approval. The balance is credited
// only on approval.
type Topup struct {
	Id        string          `json:"id"`
	UserId    string          `json:"user_id"`
	Coin      string          `json:"coin"`
	Amount    decimal.Decimal `json:"amount"`
	TxHash    string          `json:"tx_hash,omitempty"`
	Status    FundsStatus     `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Withdrawal is a payout request. The balance is debited when the request is
// created and credited back if it is rejected.
type Withdrawal struct {
	Id          string          `json:"id"`
	UserId      string          `json:"user_id"`
	Coin        string          `json:"coin"`
	Amount      decimal.Decimal `json:"amount"`
	Destination string          `json:"destination"`
	Status      FundsStatus     `json:"status"`
	Reason      string          `json:"reason,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// ExchangeResult describes a completed coin-to-coin conversion
type ExchangeResult struct {
	Id          string          `json:"id"`
	UserId      string          `json:"user_id"`
	FromCoin    string          `json:"from_coin"`
	ToCoin      string          `json:"to_coin"`
	FromAmount  decimal.Decimal `json:"from_amount"`
	ToAmount    decimal.Decimal `json:"to_amount"`
	Rate        decimal.Decimal `json:"rate"`
	FromBalance decimal.Decimal `json:"from_balance"`
	ToBalance   decimal.Decimal `json:"to_balance"`
}
