package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"settlement-ledger-go/internal/store"
	"settlement-ledger-go/internal/testutil"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	l := New(testutil.SetupTestService(t), nil)
	_, err := l.EnsureUser(context.Background(), "U1", "")
	require.NoError(t, err)
	return l
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestGetBalance_AbsentIsZero(t *testing.T) {
	l := newTestLedger(t)

	balance, err := l.GetBalance(context.Background(), "nobody", "BTC")
	require.NoError(t, err)
	assert.True(t, balance.IsZero())

	balances, err := l.Balances(context.Background(), "U1")
	require.NoError(t, err)
	assert.Len(t, balances, 6)
	assert.True(t, balances["PYUSD"].IsZero())
}

func TestAdjust_RejectsNegativeAndLeavesBalance(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	newBalance, err := l.Adjust(ctx, "U1", "usdt", d("50"), "seed", "seed-1")
	require.NoError(t, err)
	assert.Equal(t, "50", newBalance.String())

	_, err = l.Adjust(ctx, "U1", "USDT", d("-50.01"), "too much", "")
	require.ErrorIs(t, err, store.ErrInsufficientBalance)

	balance, err := l.GetBalance(ctx, "U1", "USDT")
	require.NoError(t, err)
	assert.Equal(t, "50", balance.String())

	newBalance, err = l.Adjust(ctx, "U1", "USDT", d("-50"), "drain", "")
	require.NoError(t, err)
	assert.True(t, newBalance.IsZero())
}

func TestAdjust_UnsupportedCoin(t *testing.T) {
	l := newTestLedger(t)

	_, err := l.Adjust(context.Background(), "U1", "DOGE", d("1"), "", "")
	assert.ErrorIs(t, err, store.ErrInvalidArgument)
}

func TestAdjust_DuplicateKeyAppliesOnce(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	_, err := l.Adjust(ctx, "U1", "BTC", d("1"), "bonus", "bonus-1")
	require.NoError(t, err)
	_, err = l.Adjust(ctx, "U1", "BTC", d("1"), "bonus", "bonus-1")
	require.ErrorIs(t, err, store.ErrDuplicateTransaction)

	balance, err := l.GetBalance(ctx, "U1", "BTC")
	require.NoError(t, err)
	assert.Equal(t, "1", balance.String())
}

func TestApply_DebitsStopAtCommittedFunds(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	l.SetCommitted(func(ctx context.Context, userId, coin string) (decimal.Decimal, error) {
		if userId == "U1" && coin == "USDT" {
			return d("700"), nil
		}
		return decimal.Zero, nil
	})

	_, err := l.Adjust(ctx, "U1", "USDT", d("1000"), "seed", "")
	require.NoError(t, err)

	_, err = l.Adjust(ctx, "U1", "USDT", d("-300.01"), "withdraw", "")
	require.ErrorIs(t, err, store.ErrInsufficientBalance)

	err = l.WithUser(ctx, "U1", func(s *Scope) error {
		available, err := s.Available("USDT")
		require.NoError(t, err)
		assert.Equal(t, "300", available.String())
		return nil
	})
	require.NoError(t, err)

	newBalance, err := l.Adjust(ctx, "U1", "USDT", d("-300"), "withdraw", "")
	require.NoError(t, err)
	assert.Equal(t, "700", newBalance.String())

	// An entry that settles the committed amount itself may use it
	err = l.WithUser(ctx, "U1", func(s *Scope) error {
		_, err := s.Apply(Entry{Coin: "USDT", Delta: d("-700"), Releases: d("700"), Key: "close-1"})
		return err
	})
	require.NoError(t, err)

	// Other coins are not affected
	_, err = l.Adjust(ctx, "U1", "ETH", d("2"), "seed", "")
	require.NoError(t, err)
	_, err = l.Adjust(ctx, "U1", "ETH", d("-2"), "drain", "")
	require.NoError(t, err)
}

func TestApply_CommittedLookupFailure(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	l.SetCommitted(func(ctx context.Context, userId, coin string) (decimal.Decimal, error) {
		return decimal.Zero, store.ErrStorage
	})

	_, err := l.Adjust(ctx, "U1", "USDT", d("10"), "seed", "")
	require.NoError(t, err, "credits do not consult committed funds")

	_, err = l.Adjust(ctx, "U1", "USDT", d("-1"), "withdraw", "")
	require.ErrorIs(t, err, store.ErrStorage)
}

func TestSetBalance_BypassesNonNegativity(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	_, err := l.Adjust(ctx, "U1", "SOL", d("10"), "seed", "")
	require.NoError(t, err)

	entry, err := l.SetBalance(ctx, "U1", "SOL", d("-3"), "manual correction", "fix-1")
	require.NoError(t, err)
	assert.Equal(t, "10", entry.BalanceBefore.String())
	assert.Equal(t, "-3", entry.BalanceAfter.String())
	assert.Equal(t, "-13", entry.Amount.String())

	require.NoError(t, l.Reconcile(ctx, "U1"))
}

// Concurrent +100 USDT and -5 ETH on the same user must both land.
func TestConcurrentAdjustDifferentCoins(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	_, err := l.Adjust(ctx, "U1", "ETH", d("5"), "seed", "")
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, err := l.Adjust(ctx, "U1", "USDT", d("100"), "credit", "")
		errs <- err
	}()
	go func() {
		defer wg.Done()
		_, err := l.Adjust(ctx, "U1", "ETH", d("-5"), "debit", "")
		errs <- err
	}()
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	balances, err := l.Balances(ctx, "U1")
	require.NoError(t, err)
	assert.Equal(t, "100", balances["USDT"].String())
	assert.True(t, balances["ETH"].IsZero())
}

// Many concurrent debits against a limited balance: exactly as many succeed
// as the balance covers and the balance never goes below zero.
func TestConcurrentDebitsNeverOverdraw(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	_, err := l.Adjust(ctx, "U1", "USDT", d("10"), "seed", "")
	require.NoError(t, err)

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded, rejected := 0, 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := l.Adjust(ctx, "U1", "USDT", d("-1"), "spend", fmt.Sprintf("spend-%d", i))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, store.ErrInsufficientBalance):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 10, succeeded)
	assert.Equal(t, 10, rejected)

	balance, err := l.GetBalance(ctx, "U1", "USDT")
	require.NoError(t, err)
	assert.True(t, balance.IsZero())
}

func TestWithUser_SerializesReadCheckWrite(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := l.WithUser(ctx, "U1", func(s *Scope) error {
				balance, err := s.Balance("BTC")
				if err != nil {
					return err
				}
				// Only the first caller may credit
				if !balance.IsZero() {
					return nil
				}
				_, err = s.Apply(Entry{Coin: "BTC", Delta: d("1")})
				return err
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	balance, err := l.GetBalance(ctx, "U1", "BTC")
	require.NoError(t, err)
	assert.Equal(t, "1", balance.String())
	assert.Equal(t, 0, l.locks.active())
}

func TestActiveUser_RejectsBanned(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	require.NoError(t, l.SetBanned(ctx, "U1", true))
	_, err := l.ActiveUser(ctx, "U1")
	assert.ErrorIs(t, err, store.ErrUserBanned)

	user, err := l.ActiveUser(ctx, "fresh")
	require.NoError(t, err)
	assert.Equal(t, "fresh", user.Id)
}

func TestApply_TracksTotals(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	err := l.WithUser(ctx, "U1", func(s *Scope) error {
		_, err := s.Apply(Entry{Coin: "USDT", Delta: decimal.Zero, InvestedDelta: d("1000"), Key: "inv"})
		return err
	})
	require.NoError(t, err)

	user, err := l.GetUser(ctx, "U1")
	require.NoError(t, err)
	assert.Equal(t, "1000", user.TotalInvested.String())

	entry, err := l.EntryByKey(ctx, "inv")
	require.NoError(t, err)
	assert.True(t, entry.Amount.IsZero())
}
