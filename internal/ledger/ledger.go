// Package ledger owns every balance mutation. All writes for one user run
// inside that user's exclusion scope, so a read-check-write sequence such as
// "is the trade already settled, then credit it" cannot interleave with any
// other mutation of the same account.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"settlement-ledger-go/internal/models"
	"settlement-ledger-go/internal/observability"
	"settlement-ledger-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Entry is one ledger operation: a signed delta on a coin plus the running
// total adjustments that travel with it. Key makes the entry idempotent.
type Entry struct {
	Coin          string
	Delta         decimal.Decimal
	Type          string
	Key           string
	Reference     string
	InvestedDelta decimal.Decimal
	IncomeDelta   decimal.Decimal
	// Releases is the part of the user's committed funds this entry settles,
	// such as the stake of the trade a loss entry closes.
	Releases decimal.Decimal
}

// CommittedFunc reports how much of a coin the user has committed to open
// positions. Debits may not dip into it.
type CommittedFunc func(ctx context.Context, userId, coin string) (decimal.Decimal, error)

type Ledger struct {
	store     store.LedgerStore
	locks     *userLocks
	metrics   *observability.Metrics
	committed CommittedFunc
}

func New(st store.LedgerStore, metrics *observability.Metrics) *Ledger {
	return &Ledger{
		store:   st,
		locks:   newUserLocks(),
		metrics: metrics,
	}
}

// Scope is the handle passed to WithUser callbacks. It is only valid until
// the callback returns and must not be shared with other goroutines.
type Scope struct {
	ctx    context.Context
	userId string
	ledger *Ledger
}

// WithUser runs fn while holding the user's exclusive lock. fn must not call
// WithUser for the same user again.
func (l *Ledger) WithUser(ctx context.Context, userId string, fn func(*Scope) error) error {
	unlock := l.locks.lock(userId)
	defer unlock()

	return fn(&Scope{ctx: ctx, userId: userId, ledger: l})
}

// SetCommitted registers the source of committed funds. Call it before the
// ledger is shared.
func (l *Ledger) SetCommitted(fn CommittedFunc) {
	l.committed = fn
}

func (s *Scope) UserId() string {
	return s.userId
}

// Balance reads the stored balance inside the scope.
func (s *Scope) Balance(coin string) (decimal.Decimal, error) {
	return s.ledger.store.GetUserBalance(s.ctx, s.userId, strings.ToUpper(coin))
}

// Committed returns the part of the balance held by open positions.
func (s *Scope) Committed(coin string) (decimal.Decimal, error) {
	if s.ledger.committed == nil {
		return decimal.Zero, nil
	}
	committed, err := s.ledger.committed(s.ctx, s.userId, strings.ToUpper(coin))
	if err != nil {
		return decimal.Zero, fmt.Errorf("committed %s for %s: %w", coin, s.userId, err)
	}
	return committed, nil
}

// Available is the balance minus committed funds.
func (s *Scope) Available(coin string) (decimal.Decimal, error) {
	balance, err := s.Balance(coin)
	if err != nil {
		return decimal.Zero, err
	}
	committed, err := s.Committed(coin)
	if err != nil {
		return decimal.Zero, err
	}
	return balance.Sub(committed), nil
}

// Apply writes one entry. A debit below zero or into committed funds fails
// with store.ErrInsufficientBalance and a reused key with
// store.ErrDuplicateTransaction; neither changes any balance.
func (s *Scope) Apply(e Entry) (*models.Transaction, error) {
	coin, err := models.NormalizeCoin(e.Coin)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrInvalidArgument, err)
	}
	if e.Type == "" {
		e.Type = models.TxTypeAdjustment
	}

	floor := decimal.Zero
	if e.Delta.IsNegative() {
		committed, err := s.Committed(coin)
		if err != nil {
			return nil, err
		}
		floor = decimal.Max(committed.Sub(e.Releases), decimal.Zero)
	}

	tx, err := s.ledger.store.ProcessTransaction(s.ctx, store.TransactionParams{
		UserId:          s.userId,
		Asset:           coin,
		TransactionType: e.Type,
		Amount:          e.Delta,
		IdempotencyKey:  e.Key,
		Reference:       e.Reference,
		InvestedDelta:   e.InvestedDelta,
		IncomeDelta:     e.IncomeDelta,
		Floor:           floor,
	})
	if err != nil {
		s.ledger.rejected(err)
		return nil, err
	}

	s.ledger.metrics.LedgerApplied(e.Type)
	return tx, nil
}

// Set overwrites a balance without the non-negativity check. The difference
// is recorded as an admin_set entry so reconciliation still holds.
func (s *Scope) Set(coin string, value decimal.Decimal, key, reference string) (*models.Transaction, error) {
	symbol, err := models.NormalizeCoin(coin)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrInvalidArgument, err)
	}

	tx, err := s.ledger.store.ProcessTransaction(s.ctx, store.TransactionParams{
		UserId:          s.userId,
		Asset:           symbol,
		TransactionType: models.TxTypeAdminSet,
		Target:          &value,
		IdempotencyKey:  key,
		Reference:       reference,
	})
	if err != nil {
		s.ledger.rejected(err)
		return nil, err
	}

	s.ledger.metrics.LedgerApplied(models.TxTypeAdminSet)
	zap.L().Warn("Balance overwritten", append(models.RequestFields(s.ctx),
		zap.String("user_id", s.userId),
		zap.String("coin", symbol),
		zap.String("old_balance", tx.BalanceBefore.String()),
		zap.String("new_balance", tx.BalanceAfter.String()),
		zap.String("reason", reference))...)
	return tx, nil
}

func (l *Ledger) rejected(err error) {
	switch {
	case errors.Is(err, store.ErrInsufficientBalance):
		l.metrics.LedgerRejectedFor("insufficient_balance")
	case errors.Is(err, store.ErrDuplicateTransaction):
		l.metrics.LedgerRejectedFor("duplicate")
	default:
		l.metrics.LedgerRejectedFor("error")
	}
}

// GetBalance returns the committed balance, zero when the user or coin has
// never been touched.
func (l *Ledger) GetBalance(ctx context.Context, userId, coin string) (decimal.Decimal, error) {
	return l.store.GetUserBalance(ctx, userId, strings.ToUpper(coin))
}

// Balances returns every supported coin for the user, zero-filled.
func (l *Ledger) Balances(ctx context.Context, userId string) (map[string]decimal.Decimal, error) {
	rows, err := l.store.GetAllUserBalances(ctx, userId)
	if err != nil {
		return nil, err
	}

	balances := make(map[string]decimal.Decimal, len(models.SupportedCoins))
	for _, coin := range models.SupportedCoins {
		balances[coin] = decimal.Zero
	}
	for _, row := range rows {
		balances[row.Asset] = row.Balance
	}
	return balances, nil
}

// Adjust applies a signed delta under the user's lock and returns the new
// balance.
func (l *Ledger) Adjust(ctx context.Context, userId, coin string, delta decimal.Decimal, reason, key string) (decimal.Decimal, error) {
	var newBalance decimal.Decimal
	err := l.WithUser(ctx, userId, func(s *Scope) error {
		tx, err := s.Apply(Entry{
			Coin:      coin,
			Delta:     delta,
			Type:      models.TxTypeAdjustment,
			Key:       key,
			Reference: reason,
		})
		if err != nil {
			return err
		}
		newBalance = tx.BalanceAfter
		return nil
	})
	if err != nil {
		return decimal.Zero, fmt.Errorf("adjust %s %s for %s: %w", delta.String(), coin, userId, err)
	}

	zap.L().Info("Balance adjusted", append(models.RequestFields(ctx),
		zap.String("user_id", userId),
		zap.String("coin", coin),
		zap.String("delta", delta.String()),
		zap.String("new_balance", newBalance.String()),
		zap.String("reason", reason))...)
	return newBalance, nil
}

// SetBalance overwrites a balance under the user's lock and returns the
// admin_set entry, which carries the balance before and after.
func (l *Ledger) SetBalance(ctx context.Context, userId, coin string, value decimal.Decimal, reason, key string) (*models.Transaction, error) {
	var entry *models.Transaction
	err := l.WithUser(ctx, userId, func(s *Scope) error {
		tx, err := s.Set(coin, value, key, reason)
		if err != nil {
			return err
		}
		entry = tx
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("set %s for %s: %w", coin, userId, err)
	}
	return entry, nil
}

// EnsureUser creates the account with all coin balances at zero if needed.
func (l *Ledger) EnsureUser(ctx context.Context, userId, walletAddress string) (*models.User, error) {
	return l.store.EnsureUser(ctx, userId, walletAddress)
}

// ActiveUser creates the user on first touch and rejects banned accounts.
func (l *Ledger) ActiveUser(ctx context.Context, userId string) (*models.User, error) {
	user, err := l.store.EnsureUser(ctx, userId, "")
	if err != nil {
		return nil, err
	}
	if user.Banned {
		return nil, fmt.Errorf("%w: %s", store.ErrUserBanned, userId)
	}
	return user, nil
}

func (l *Ledger) GetUser(ctx context.Context, userId string) (*models.User, error) {
	return l.store.GetUserById(ctx, userId)
}

// SetBanned toggles the soft ban flag. Banned users keep their balances but
// cannot open new trades or subscriptions.
func (l *Ledger) SetBanned(ctx context.Context, userId string, banned bool) error {
	return l.WithUser(ctx, userId, func(s *Scope) error {
		return l.store.SetUserBanned(ctx, userId, banned)
	})
}

// EntryByKey returns the ledger entry written under an idempotency key.
func (l *Ledger) EntryByKey(ctx context.Context, key string) (*models.Transaction, error) {
	return l.store.GetTransactionByKey(ctx, key)
}

func (l *Ledger) History(ctx context.Context, userId, coin string, limit, offset int) ([]models.Transaction, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return l.store.GetTransactionHistory(ctx, userId, strings.ToUpper(coin), limit, offset)
}

// Reconcile checks every coin balance of the user against the sum of its
// ledger entries. Mismatches are joined into one error.
func (l *Ledger) Reconcile(ctx context.Context, userId string) error {
	return l.WithUser(ctx, userId, func(s *Scope) error {
		var errs []error
		for _, coin := range models.SupportedCoins {
			if err := l.store.ReconcileUserBalance(ctx, userId, coin); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", coin, err))
			}
		}
		return errors.Join(errs...)
	})
}
