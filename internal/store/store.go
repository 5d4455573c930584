package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"settlement-ledger-go/internal/models"

	"github.com/shopspring/decimal"
)

// Sentinel errors shared across all backend implementations.
var (
	ErrNotFound               = errors.New("not found")
	ErrInsufficientBalance    = errors.New("insufficient balance")
	ErrStorage                = errors.New("storage error")
	ErrExternalUnavailable    = errors.New("external service unavailable")
	ErrOverrideConflict       = errors.New("administrative override conflict")
	ErrDuplicateTransaction   = errors.New("duplicate transaction")
	ErrConcurrentModification = errors.New("concurrent modification detected")
	ErrInvalidArgument        = errors.New("invalid argument")
	ErrInvalidState           = errors.New("invalid state transition")
	ErrUserBanned             = errors.New("user is banned")
)

// Named record collections.
const (
	CollectionTrades      = "trades"
	CollectionMining      = "mining_records"
	CollectionArbitrage   = "arbitrage_subscriptions"
	CollectionTopups      = "topup_records"
	CollectionWithdrawals = "withdrawal_records"
)

// Record is one JSON document inside a named collection.
type Record struct {
	Id        string
	Body      json.RawMessage
	UpdatedAt time.Time
}

// RecordStore gives read/modify/write access to named JSON collections.
// A collection that was never written loads as an empty slice.
type RecordStore interface {
	Load(ctx context.Context, collection string) ([]Record, error)
	Save(ctx context.Context, collection string, records []Record) error
	Get(ctx context.Context, collection, id string) (*Record, error)
	Put(ctx context.Context, collection string, record Record) error
}

// TransactionParams describes one ledger operation. Amount is the signed
// delta; when Target is set the delta is computed as Target - current and the
// non-negativity check is skipped (admin overwrite).
type TransactionParams struct {
	UserId          string
	Asset           string
	TransactionType string
	Amount          decimal.Decimal
	Target          *decimal.Decimal
	IdempotencyKey  string
	Reference       string
	InvestedDelta   decimal.Decimal
	IncomeDelta     decimal.Decimal
	// Floor is the lowest balance a debit may leave behind. Zero unless the
	// user has funds committed elsewhere.
	Floor decimal.Decimal
}

// LedgerStore is the persistence contract behind the balance ledger.
type LedgerStore interface {
	// --- Users ---
	EnsureUser(ctx context.Context, userId, walletAddress string) (*models.User, error)
	GetUserById(ctx context.Context, userId string) (*models.User, error)
	GetUserByWallet(ctx context.Context, walletAddress string) (*models.User, error)
	GetUsers(ctx context.Context) ([]models.User, error)
	SetUserBanned(ctx context.Context, userId string, banned bool) error

	// --- Balances ---
	GetUserBalance(ctx context.Context, userId, asset string) (decimal.Decimal, error)
	GetAllUserBalances(ctx context.Context, userId string) ([]models.AccountBalance, error)

	// --- Transactions ---
	ProcessTransaction(ctx context.Context, params TransactionParams) (*models.Transaction, error)
	GetTransactionByKey(ctx context.Context, idempotencyKey string) (*models.Transaction, error)
	GetTransactionHistory(ctx context.Context, userId, asset string, limit, offset int) ([]models.Transaction, error)
	ReconcileUserBalance(ctx context.Context, userId, asset string) error

	// --- Lifecycle ---
	Close()
}

// PriceFeed returns the current market price of a coin in the quote asset.
type PriceFeed interface {
	GetPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// Notifier delivers user-facing settlement events. Delivery is best-effort.
type Notifier interface {
	Notify(ctx context.Context, userId, title, body string) error
}

// FlagStore reads administrative per-user flags. A missing flag is "".
type FlagStore interface {
	GetFlag(ctx context.Context, userId, key string) (string, error)
	SetFlag(ctx context.Context, userId, key, value string) error
}

// Admin flag keys.
const (
	FlagForceOutcome = "force_outcome"
)
